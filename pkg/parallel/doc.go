// Package parallel provides the multi-threaded writer and reader that spread
// records over many shard files.
//
// The writer routes each record to a shard slot and hands it to the worker
// goroutine owning that slot through a bounded queue, so producers block
// instead of buffering without limit. The reader runs workers that each keep
// a few shards open and feed a queue bounded by payload bytes.
//
// Both follow the same lifecycle: Created, Running, Draining, Closed.
package parallel
