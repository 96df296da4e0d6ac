// Package sharding names, discovers and orders the files that make up a
// sharded dataset.
//
// A dataset is a directory of files named {prefix}_{index}. Writers use a
// FileSharder to pick file names, including rollover files past the initial
// slots. Readers walk a Set through a Locator, either once in index order or
// forever in a freshly shuffled order per pass. The shuffled locator leases
// each path until it is released, so a file has one reader at a time.
package sharding
