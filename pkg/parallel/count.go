package parallel

import (
	"sync"

	"github.com/ssargent/shardlog/pkg/sharding"
	"github.com/ssargent/shardlog/pkg/store"
)

// CountRecordsWithShards counts the records in every {prefix}_{n} file in dir
func CountRecordsWithShards(dir, prefix string, config ReaderConfig) (int, error) {
	set, err := sharding.Discover(dir, prefix)
	if err != nil {
		return 0, err
	}
	res, err := ScanShards(set.Sequential(), config)
	return res.Records, err
}

// CountRecordsWithShardPaths counts the records in paths
func CountRecordsWithShardPaths(paths []string, config ReaderConfig) (int, error) {
	set, err := sharding.FromPaths(paths)
	if err != nil {
		return 0, err
	}
	res, err := ScanShards(set.Sequential(), config)
	return res.Records, err
}

// ScanShards scans every shard of a finite locator with config.WorkerThreads
// workers and sums the results. Records are not retained.
func ScanShards(locator sharding.Locator, config ReaderConfig) (store.ScanResult, error) {
	var total store.ScanResult

	if locator == nil || locator.Len() == 0 {
		return total, store.ArgumentError("at least one shard is required")
	}
	if locator.Infinite() {
		return total, store.ArgumentError("cannot count an infinite shard locator")
	}
	config, err := config.normalize()
	if err != nil {
		return total, err
	}

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		firstErr error
	)
	for i := 0; i < config.WorkerThreads; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				path, ok := locator.Next()
				if !ok {
					return
				}

				res, err := store.ScanFile(path, config.CorruptionStrategy)
				locator.Release(path)

				mu.Lock()
				total.Records += res.Records
				total.Bytes += res.Bytes
				total.Skipped += res.Skipped
				if err != nil && firstErr == nil {
					firstErr = err
				}
				stop := firstErr != nil
				mu.Unlock()

				config.Metrics.RecordShardOpened()
				if res.Skipped > 0 {
					config.Metrics.RecordCorruptSkipped(res.Skipped)
				}
				if stop {
					return
				}
			}
		}()
	}
	wg.Wait()

	if firstErr != nil {
		config.Logger.Errorf("count failed: %v", firstErr)
		return total, firstErr
	}
	config.Logger.Debugf("counted %d records (%d skipped) across %d shards", total.Records, total.Skipped, locator.Len())
	return total, nil
}
