// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package event

import (
	"context"
	"sync"
)

// Queue is a Scheduler backed by a single worker goroutine. Deferred
// actions run one at a time in the order they were scheduled.
//
// Use q.Schedule as the [Scheduler] passed to [Factory.Defer].
type Queue struct {
	w    *worker
	wake chan struct{} // buffered(1); poked when pending grows

	mu      sync.Mutex
	pending []func()
	closed  bool
}

// NewQueue returns a new Queue with its worker running. Call Close to stop
// it.
func NewQueue() *Queue {
	q := &Queue{wake: make(chan struct{}, 1)}
	q.w = runWorker(q.pump)
	return q
}

// Schedule enqueues action. It never blocks on action running.
// It panics if q is closed.
func (q *Queue) Schedule(action func()) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		panic("event: Schedule on closed Queue")
	}
	q.pending = append(q.pending, action)
	q.mu.Unlock()
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Len reports the number of actions that have been scheduled but not yet
// started.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Close stops accepting actions, runs the ones already scheduled, and
// waits for the worker goroutine to exit. Close is idempotent.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.w.StopAndWait()
}

// Done returns a channel that is closed once the worker has exited.
func (q *Queue) Done() <-chan struct{} { return q.w.Done() }

func (q *Queue) take() []func() {
	q.mu.Lock()
	defer q.mu.Unlock()
	batch := q.pending
	q.pending = nil
	return batch
}

func (q *Queue) pump(ctx context.Context) {
	for {
		batch := q.take()
		for _, action := range batch {
			action()
		}
		if len(batch) > 0 {
			continue
		}
		select {
		case <-q.wake:
		case <-ctx.Done():
			// Close marks the queue closed before stopping us, so
			// nothing can be added after this final drain.
			for batch := q.take(); len(batch) > 0; batch = q.take() {
				for _, action := range batch {
					action()
				}
			}
			return
		}
	}
}

// A worker runs a worker goroutine and helps coordinate its shutdown.
type worker struct {
	ctx     context.Context
	stop    context.CancelFunc
	stopped chan struct{}
}

// runWorker creates a worker goroutine running fn. The context passed
// to fn is canceled by [worker.StopAndWait].
func runWorker(fn func(context.Context)) *worker {
	ctx, stop := context.WithCancel(context.Background())
	ret := &worker{
		ctx:     ctx,
		stop:    stop,
		stopped: make(chan struct{}),
	}
	go ret.run(fn)
	return ret
}

func (w *worker) run(fn func(context.Context)) {
	defer close(w.stopped)
	fn(w.ctx)
}

// Done returns a channel that is closed when the worker goroutine
// exits.
func (w *worker) Done() <-chan struct{} { return w.stopped }

// StopAndWait signals the worker goroutine to shut down, then waits
// for it to exit.
func (w *worker) StopAndWait() {
	w.stop()
	<-w.stopped
}

// Pending is a Scheduler that holds deferred actions until Run is called,
// for callers that run deferred work at a point of their choosing (the end
// of a tick, after a lock is released, ...).
//
// The zero value is ready to use. It is not safe for concurrent use.
type Pending struct {
	actions []func()
}

// Schedule appends action to p.
func (p *Pending) Schedule(action func()) {
	p.actions = append(p.actions, action)
}

// Len reports the number of actions waiting to run.
func (p *Pending) Len() int { return len(p.actions) }

// Run runs the pending actions in scheduling order, including actions
// scheduled by those actions, and reports how many ran.
func (p *Pending) Run() int {
	n := 0
	for len(p.actions) > 0 {
		action := p.actions[0]
		p.actions[0] = nil
		p.actions = p.actions[1:]
		action()
		n++
	}
	p.actions = nil
	return n
}
