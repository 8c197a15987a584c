// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// Package narrow resolves the view type of an event handler parameter.
//
// A type may declare a narrower "view" type. The view of a parameter of
// type T is found by following those declarations until a type without one
// is reached, checking at every step that the current type is a subtype of
// the (fully applied) view it names. This is the only place evgen reasons
// about subtyping; the questions themselves are answered by an [Oracle], so
// the walk does not depend on how types are represented.
package narrow

import (
	"fmt"
	"strings"
)

// An Oracle answers the type questions a [Resolver] asks.
type Oracle[T any] interface {
	// Declared returns the view type declared on t, if any. For a
	// generic view the result may be uninstantiated.
	Declared(t T) (view T, ok bool, err error)

	// Apply returns view with t's type arguments substituted for its
	// type parameters. A non-generic view is returned as is.
	Apply(view, t T) (T, error)

	// IsSubtype reports whether a value of type t can be used where a
	// view is expected.
	IsSubtype(t, view T) bool

	// String returns a stable, unique description of t. It is used to
	// detect cycles and in errors.
	String(t T) string
}

// ViolationError reports a declared view that the narrowed type is not a
// subtype of.
type ViolationError struct {
	Type string // the narrowed type
	View string // the fully applied view type
}

func (e *ViolationError) Error() string {
	return fmt.Sprintf("%s is not a subtype of its view %s", e.Type, e.View)
}

// CycleError reports a chain of view declarations that returns to a type
// already on the chain.
type CycleError struct {
	Chain []string // first and last elements are the same type
}

func (e *CycleError) Error() string {
	return "view declarations form a cycle: " + strings.Join(e.Chain, " -> ")
}

// A Resolver finds view types by consulting its Oracle.
type Resolver[T any] struct {
	Oracle Oracle[T]
}

// Resolve returns the view type of t: t itself if it declares no view,
// otherwise the resolved view of its fully applied declared view.
func (r Resolver[T]) Resolve(t T) (T, error) {
	var zero T
	var chain []string
	onChain := map[string]bool{}
	for {
		id := r.Oracle.String(t)
		chain = append(chain, id)
		if onChain[id] {
			return zero, &CycleError{Chain: chain}
		}
		onChain[id] = true

		view, ok, err := r.Oracle.Declared(t)
		if err != nil {
			return zero, fmt.Errorf("view of %s: %w", id, err)
		}
		if !ok {
			return t, nil
		}
		applied, err := r.Oracle.Apply(view, t)
		if err != nil {
			return zero, fmt.Errorf("applying view %s to %s: %w", r.Oracle.String(view), id, err)
		}
		if !r.Oracle.IsSubtype(t, applied) {
			return zero, &ViolationError{Type: id, View: r.Oracle.String(applied)}
		}
		t = applied
	}
}

// ResolveAll resolves each of ts, returning the views in the same order.
// Errors name the position of the failing type.
func (r Resolver[T]) ResolveAll(ts []T) ([]T, error) {
	out := make([]T, len(ts))
	for i, t := range ts {
		v, err := r.Resolve(t)
		if err != nil {
			return nil, fmt.Errorf("parameter %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}
