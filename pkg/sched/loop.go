// Package sched provides the single-threaded cooperative tick loop that all
// sanction state mutations are confined to.
//
// There are no locks around the moderation state: mutual exclusion comes
// from every mutation running on the loop goroutine. Code running off the
// loop (Async workers, network readers) must marshal back with Submit before
// touching shared state.
package sched

import (
	"context"
	"sync"
	"time"
)

// DefaultTickInterval is the length of one loop tick.
const DefaultTickInterval = 50 * time.Millisecond

// Loop is a tick-driven task queue executed by a single goroutine.
type Loop struct {
	interval time.Duration

	mu      sync.Mutex
	tick    int64
	ready   []func()
	delayed map[int64][]func()
}

// NewLoop creates a Loop. interval <= 0 selects DefaultTickInterval.
func NewLoop(interval time.Duration) *Loop {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &Loop{
		interval: interval,
		delayed:  make(map[int64][]func()),
	}
}

// Submit queues fn to run on the next tick.
func (l *Loop) Submit(fn func()) {
	l.mu.Lock()
	l.ready = append(l.ready, fn)
	l.mu.Unlock()
}

// Later queues fn to run after the given number of ticks. ticks <= 0 behaves
// like Submit.
func (l *Loop) Later(ticks int64, fn func()) {
	if ticks <= 0 {
		l.Submit(fn)
		return
	}
	l.mu.Lock()
	due := l.tick + ticks
	l.delayed[due] = append(l.delayed[due], fn)
	l.mu.Unlock()
}

// Async runs fn on its own goroutine, off the loop. fn must not touch loop-
// confined state directly; it marshals results back with Submit.
func (l *Loop) Async(fn func()) {
	go fn()
}

// Step advances one tick and runs everything due, in submission order with
// ready tasks before delayed ones. Exposed for tests; Run calls it on every
// tick.
func (l *Loop) Step() {
	l.mu.Lock()
	l.tick++
	due := l.ready
	l.ready = nil
	if delayed, ok := l.delayed[l.tick]; ok {
		due = append(due, delayed...)
		delete(l.delayed, l.tick)
	}
	l.mu.Unlock()

	for _, fn := range due {
		fn()
	}
}

// Tick returns the current tick count.
func (l *Loop) Tick() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tick
}

// Run drives the loop until ctx is cancelled. It owns the only goroutine
// that ever executes queued tasks.
func (l *Loop) Run(ctx context.Context) {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Step()
		}
	}
}
