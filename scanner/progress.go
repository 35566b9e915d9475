package scanner

import (
	"fmt"
	"sync"
	"time"
)

// ProgressTracker prints periodic fingerprinting progress while the worker
// pool runs.
type ProgressTracker struct {
	mu        sync.Mutex
	processed int
	cacheHits int
	errors    int
	total     int
	ticker    *time.Ticker
	done      chan bool
}

func newProgressTracker(total int) *ProgressTracker {
	tracker := &ProgressTracker{
		total:  total,
		ticker: time.NewTicker(500 * time.Millisecond),
		done:   make(chan bool),
	}
	go tracker.displayProgress()
	return tracker
}

func (p *ProgressTracker) displayProgress() {
	for {
		select {
		case <-p.done:
			return
		case <-p.ticker.C:
			p.mu.Lock()
			if p.errors > 0 {
				fmt.Printf("\rFingerprints: %d/%d (cached: %d, errors: %d)", p.processed, p.total, p.cacheHits, p.errors)
			} else {
				fmt.Printf("\rFingerprints: %d/%d (cached: %d)", p.processed, p.total, p.cacheHits)
			}
			p.mu.Unlock()
		}
	}
}

func (p *ProgressTracker) record(success, cacheHit bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.processed++
	if cacheHit {
		p.cacheHits++
	}
	if !success {
		p.errors++
	}
}

func (p *ProgressTracker) stop() {
	p.ticker.Stop()
	p.done <- true
	fmt.Println()
}
