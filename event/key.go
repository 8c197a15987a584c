// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// Package event contains the runtime types that code generated by
// github.com/tailscale/evgen/cmd/evgen implements and refers to.
//
// Generated code defines the event and view interfaces and the derived
// handlers. This package names the contract between them ([Key], [Factory]
// and [Scheduler]) and provides two schedulers, [Queue] and [Pending].
// Handler registration is up to the caller.
package event

import (
	"fmt"
	"reflect"
	"slices"
)

// Key identifies one event kind at the type level: the full handler type F,
// the narrowed view handler type V and, for ordered events, a comparator
// over F.
//
// Keys are created once by generated code and are immutable.
type Key[F, V any] struct {
	full, view reflect.Type
	cmp        func(a, b F) int // nil if the event is unordered
}

// NewKey returns the key of an unordered event kind.
func NewKey[F, V any]() Key[F, V] {
	return Key[F, V]{
		full: reflect.TypeFor[F](),
		view: reflect.TypeFor[V](),
	}
}

// NewOrderedKey returns the key of an ordered event kind. cmp compares two
// handlers by their ordering accessor. It panics if cmp is nil.
func NewOrderedKey[F, V any](cmp func(a, b F) int) Key[F, V] {
	if cmp == nil {
		panic("event: NewOrderedKey with nil comparator")
	}
	k := NewKey[F, V]()
	k.cmp = cmp
	return k
}

// FullType returns the reflect.Type of the full event interface.
func (k Key[F, V]) FullType() reflect.Type { return k.full }

// ViewType returns the reflect.Type of the view interface.
func (k Key[F, V]) ViewType() reflect.Type { return k.view }

// Ordered reports whether handlers of this event kind can be ordered.
func (k Key[F, V]) Ordered() bool { return k.cmp != nil }

// Comparator returns the handler comparator, or nil if the event kind is
// unordered.
func (k Key[F, V]) Comparator() func(a, b F) int { return k.cmp }

// Sort stably sorts handlers by the key's comparator. It does nothing for
// unordered keys.
//
// Callers that want ordered dispatch sort their handler list with Sort and
// then pass it to [Factory.Aggregate], which never reorders.
func (k Key[F, V]) Sort(handlers []F) {
	if k.cmp == nil {
		return
	}
	slices.SortStableFunc(handlers, k.cmp)
}

func (k Key[F, V]) String() string {
	if k.full == nil {
		return "event.Key{}"
	}
	if k.cmp != nil {
		return fmt.Sprintf("event.Key[%v, %v, ordered]", k.full, k.view)
	}
	return fmt.Sprintf("event.Key[%v, %v]", k.full, k.view)
}
