// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// Package tests serves a list of tests for github.com/tailscale/evgen/cmd/evgen.
// The *_evgen.go files are its checked-in output.
//
//evgen:package .
//evgen:keys . Events
package tests

import (
	"cmp"
	"strings"
)

//go:generate go run github.com/tailscale/evgen/cmd/evgen generate

// Entity is a game object.
//
//evgen:view EntityView
type Entity struct {
	Name string
	HP   int
}

func (e *Entity) Health() int   { return e.HP }
func (e *Entity) Label() string { return strings.TrimSpace(e.Name) }
func (e *Entity) Hurt(n int)    { e.HP -= n }

// EntityView is the read-only side of an Entity.
//
//evgen:view Labeled
type EntityView interface {
	Health() int
	Label() string
}

type Labeled interface {
	Label() string
}

// Box holds one item.
//
//evgen:view BoxView
type Box[T any] struct {
	Item T
}

func (b *Box[T]) Peek() T { return b.Item }

type BoxView[T any] interface {
	Peek() T
}

// Priority orders Score handlers. Higher priorities sort first.
type Priority int

func comparePriority(a, b Priority) int { return cmp.Compare(b, a) }

func sum(a, b int) int { return a + b }

//evgen:events
type events interface {
	//evgen:default 0
	//evgen:combiner sum
	Damage(target *Entity, amount int) int

	Tick()

	//evgen:order int
	Heal(amount int, targets ...*Entity)

	//evgen:default 0
	//evgen:combiner max
	//evgen:order Priority comparePriority
	Score(names ...string) int

	//evgen:order string strings.Compare
	Chat(msg string)

	Loot(box *Box[string])
}
