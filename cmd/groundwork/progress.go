package main

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// progressTracker reports the batch writes of Add calls.
// Observe has the storage.BatchObserver signature.
type progressTracker struct {
	writer    io.Writer
	total     int
	current   int
	startTime time.Time
	started   bool
	now       func() time.Time
	mu        sync.Mutex
}

func newProgressTracker(writer io.Writer) *progressTracker {
	return &progressTracker{writer: writer, now: time.Now}
}

// Observe records that written of total entries are stored. A new total, or
// fewer entries written than last seen, starts a new run.
func (p *progressTracker) Observe(written, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started || total != p.total || written < p.current {
		p.startTime = p.now()
		p.started = true
		p.total = total
	}
	p.current = min(written, total)
	p.report()

	if p.current == p.total {
		fmt.Fprintln(p.writer)
		p.started = false
		p.current = 0
	}
}

// report prints the current progress. Must be called with lock held.
func (p *progressTracker) report() {
	percentage := 0.0
	if p.total > 0 {
		percentage = float64(p.current) / float64(p.total) * 100.0
	}
	fmt.Fprintf(p.writer, "\rStored: %d/%d (%.1f%%)", p.current, p.total, percentage)

	if elapsed := p.now().Sub(p.startTime); elapsed > 0 {
		fmt.Fprintf(p.writer, " - %.1f entries/s", float64(p.current)/elapsed.Seconds())
	}
}
