//go:build !linux

package store

import "os"

func adviseSequential(_ *os.File) error {
	return nil
}
