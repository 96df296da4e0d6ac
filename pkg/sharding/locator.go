package sharding

import (
	"math/rand/v2"
	"sync"
)

// Locator hands out shard paths to reader workers. Implementations are safe
// for concurrent use.
type Locator interface {
	// Next returns the next path, or false once a finite locator is exhausted.
	// An infinite locator returns false only while every path is leased.
	Next() (string, bool)
	// Release hands a path returned by Next back once its reader is closed
	Release(path string)
	// Len returns the number of distinct paths
	Len() int
	// Infinite reports whether Next keeps returning paths after every path
	// has been handed out once
	Infinite() bool
}

type sequentialLocator struct {
	mu    sync.Mutex
	paths []string
	pos   int
}

func (l *sequentialLocator) Next() (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.pos >= len(l.paths) {
		return "", false
	}
	p := l.paths[l.pos]
	l.pos++
	return p, true
}

func (l *sequentialLocator) Release(string) {}

func (l *sequentialLocator) Len() int { return len(l.paths) }

func (l *sequentialLocator) Infinite() bool { return false }

// randomLocator reshuffles the paths on every pass. A path stays leased from
// Next until Release, and a leased path is never handed out again, so two
// readers never hold the same file.
type randomLocator struct {
	mu     sync.Mutex
	rng    *rand.Rand
	paths  []string
	order  []string
	pos    int
	leased map[string]bool
}

func newRandomLocator(paths []string, seed uint64) *randomLocator {
	return &randomLocator{
		rng:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		paths:  paths,
		leased: make(map[string]bool, len(paths)),
	}
}

func (l *randomLocator) Next() (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.paths) == 0 || len(l.leased) >= len(l.paths) {
		return "", false
	}
	if p, ok := l.take(); ok {
		return p, true
	}

	// The rest of this pass is held by other readers; they skip it
	l.order = append(l.order[:0], l.paths...)
	l.rng.Shuffle(len(l.order), func(i, j int) {
		l.order[i], l.order[j] = l.order[j], l.order[i]
	})
	l.pos = 0
	return l.take()
}

// take leases the first path of the current pass that is not leased, moving
// it ahead of the leased paths it skipped
func (l *randomLocator) take() (string, bool) {
	for i := l.pos; i < len(l.order); i++ {
		p := l.order[i]
		if l.leased[p] {
			continue
		}
		l.order[i], l.order[l.pos] = l.order[l.pos], p
		l.pos++
		l.leased[p] = true
		return p, true
	}
	return "", false
}

func (l *randomLocator) Release(path string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.leased, path)
}

func (l *randomLocator) Len() int { return len(l.paths) }

func (l *randomLocator) Infinite() bool { return true }
