// Package sched provides the cooperative schedulers that drive highlight
// passes: Loop runs every callback on one goroutine with real timers, and
// Manual runs them synchronously under a fake clock for tests.
package sched

import (
	"fmt"
	"sync"
	"time"
)

type request struct {
	fn   func() error
	done chan error // nil for fire-and-forget callbacks
}

// Loop serializes callbacks through a single goroutine. Timer callbacks
// and Do calls never run concurrently with each other, so state touched
// only from the loop needs no locking.
type Loop struct {
	requests chan request
	quit     chan struct{}
	stopOnce sync.Once

	mu     sync.Mutex
	timers map[*time.Timer]struct{}
}

// NewLoop creates a Loop and starts its goroutine.
func NewLoop() *Loop {
	l := &Loop{
		requests: make(chan request, 64),
		quit:     make(chan struct{}),
		timers:   make(map[*time.Timer]struct{}),
	}
	go l.loop()
	return l
}

func (l *Loop) loop() {
	for {
		select {
		case <-l.quit:
			return
		default:
		}
		select {
		case req := <-l.requests:
			err := execute(req.fn)
			if req.done != nil {
				req.done <- err
			}
		case <-l.quit:
			return
		}
	}
}

// execute runs fn, turning a panic into an error.
func execute(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sched: callback panicked: %v", r)
		}
	}()
	return fn()
}

// Schedule runs fn on the loop after delay. Callbacks due after Stop are
// dropped.
func (l *Loop) Schedule(delay time.Duration, fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var t *time.Timer
	t = time.AfterFunc(delay, func() {
		l.mu.Lock()
		delete(l.timers, t)
		l.mu.Unlock()
		l.post(request{fn: func() error { fn(); return nil }})
	})
	l.timers[t] = struct{}{}
}

func (l *Loop) post(req request) bool {
	select {
	case l.requests <- req:
		return true
	case <-l.quit:
		return false
	}
}

// Do runs fn on the loop and waits for it. It returns fn's error, an error
// for a panic, or an error when the loop is stopped.
func (l *Loop) Do(fn func() error) error {
	req := request{fn: fn, done: make(chan error, 1)}
	if !l.post(req) {
		return fmt.Errorf("sched: loop stopped")
	}
	select {
	case err := <-req.done:
		return err
	case <-l.quit:
		return fmt.Errorf("sched: loop stopped")
	}
}

// Stop cancels pending timers and shuts the goroutine down. It is safe to
// call more than once.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() {
		l.mu.Lock()
		for t := range l.timers {
			t.Stop()
		}
		l.timers = make(map[*time.Timer]struct{})
		l.mu.Unlock()
		close(l.quit)
	})
}
