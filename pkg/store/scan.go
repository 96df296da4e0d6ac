package store

import (
	"errors"
	"io"
)

// CountRecords returns the number of valid records in the file at path
func CountRecords(path string, strategy CorruptionStrategy) (int, error) {
	res, err := ScanFile(path, strategy)
	if err != nil {
		return 0, err
	}
	return res.Records, nil
}

// ScanFile reads the file at path to the end without retaining records
func ScanFile(path string, strategy CorruptionStrategy) (ScanResult, error) {
	var res ScanResult

	r, err := OpenRecordReader(path, strategy)
	if err != nil {
		return res, err
	}
	defer r.Close()

	for {
		rec, err := r.NextRecord()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			res.Skipped = r.Skipped()
			return res, err
		}
		res.Records++
		res.Bytes += int64(len(rec))
	}

	res.Skipped = r.Skipped()
	return res, nil
}
