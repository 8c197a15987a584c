// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package event

import (
	"errors"
	"fmt"
)

// Factory builds derived handlers for one event kind with full handler type
// F and view handler type V. Generated code provides one Factory per event.
type Factory[F, V any] interface {
	// Adapt returns a full handler that forwards every call to view, by
	// position, and returns the event's default value.
	Adapt(view V) F

	// Aggregate returns a full handler that calls each of handlers in
	// slice order on the caller's goroutine and folds their results with
	// the event's combiner, starting from the event's default value.
	// Aggregate does not sort; see [Key.Sort].
	Aggregate(handlers []F) F

	// Defer returns a full handler that, when called, hands a closure
	// invoking delegate with the same arguments to s and immediately
	// returns the event's default value.
	Defer(delegate F, s Scheduler) F
}

// A Scheduler accepts a deferred action and decides how and when it runs.
// The action must eventually be called at most once.
type Scheduler func(action func())

// ErrUnorderable is matched (with errors.Is) by the value generated handlers
// panic with when the ordering accessor of an aggregate or deferred handler
// is called.
var ErrUnorderable = errors.New("event: handler cannot be ordered")

// UnorderableError is the panic value of Ord on aggregate and deferred
// handlers. A composite or postponed handler has no position in an order;
// sorting one is a caller bug.
type UnorderableError struct {
	Event string // event name, e.g. "Damage"
	Kind  string // "aggregate" or "defer"
}

func (e UnorderableError) Error() string {
	return fmt.Sprintf("event: Ord called on %s handler of %s", e.Kind, e.Event)
}

func (e UnorderableError) Is(target error) bool { return target == ErrUnorderable }
