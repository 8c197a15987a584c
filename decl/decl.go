// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// Package decl defines the declaration model consumed by the evgen
// generator: one [Decl] per event method, with the metadata needed to
// synthesize its interfaces, handler wrappers and key.
//
// A Decl carries no logic beyond validation. It is filled in by package
// scan (or by tests) and read by packages narrow and gen.
package decl

import (
	"bytes"
	"errors"
	"fmt"
	"go/format"
	"go/parser"
	"go/token"
	"go/types"
)

// Decl describes one event kind.
type Decl struct {
	// Name is the event name, an exported Go identifier such as "Damage".
	// The generated interface is Name, its handler method On<Name>.
	Name string

	// Params are the handler method parameters, in order. Arguments are
	// forwarded by position.
	Params []Param

	// Variadic reports whether the last parameter is variadic. Its Type is
	// then a *types.Slice, as in a types.Signature.
	Variadic bool

	// Result is the handler result type, or nil for void events.
	Result types.Type

	// Default and Combiner are Go expressions. Generated code uses their
	// gofmt form as returned by [Expr], so comments are dropped. Both are
	// required for non-void events and ignored otherwise. Combiner must
	// evaluate to a func(R, R) R.
	Default  string
	Combiner string

	// Order is non-nil for ordered events.
	Order *Order

	// Imports are the packages that Default, Combiner and Order.Compare
	// may refer to by name. Generated files import those they use.
	Imports []Import

	Keys    KeyLocation // where the event's key constant goes
	Package Package     // where the event and view interfaces go

	Pos token.Position // declaring method, for error messages
}

// Param is one handler parameter. Name may be empty or "_" when the
// declaration leaves parameters unnamed.
type Param struct {
	Name string
	Type types.Type
}

// Order describes the ordering accessor of an ordered event.
type Order struct {
	// Type is the result type of the generated Ord method.
	Type types.Type
	// Compare is a Go expression for a func(Type, Type) int. If empty,
	// cmp.Compare is used and Type must be ordered.
	Compare string
}

// Import is a package an expression refers to as Name.
type Import struct {
	Path string
	Name string
}

// Package identifies a Go package that generated files are written to.
type Package struct {
	Path string // import path
	Name string // package name
	Dir  string // directory on disk
}

// IsZero reports whether p is unset.
func (p Package) IsZero() bool { return p == Package{} }

func (p Package) String() string { return p.Path }

// KeyLocation identifies one key container: a package-level variable named
// Container in Package holding the keys of every event targeting it.
type KeyLocation struct {
	Package
	Container string
}

// IsZero reports whether l is unset.
func (l KeyLocation) IsZero() bool { return l == KeyLocation{} }

func (l KeyLocation) String() string { return l.Path + "." + l.Container }

// Void reports whether the event handler returns nothing.
func (d *Decl) Void() bool { return d.Result == nil }

// Ordered reports whether the event has an ordering accessor.
func (d *Decl) Ordered() bool { return d.Order != nil }

// ErrNoLocation is returned (wrapped) by Validate for declarations without
// a package or key location.
var ErrNoLocation = errors.New("no output location")

// MissingMetadataError reports a value-returning event without the default
// value or combiner it needs.
type MissingMetadataError struct {
	Decl  string // event name
	Field string // "default" or "combiner"
}

func (e *MissingMetadataError) Error() string {
	return fmt.Sprintf("event %s returns a value but has no %s", e.Decl, e.Field)
}

// Validate checks d for everything the generator relies on. It does not
// look at view types; that is package narrow's job.
func (d *Decl) Validate() error {
	if !token.IsIdentifier(d.Name) || !token.IsExported(d.Name) {
		return fmt.Errorf("%v: event name %q is not an exported identifier", d.Pos, d.Name)
	}
	if d.Package.IsZero() {
		return fmt.Errorf("%v: event %s: package: %w", d.Pos, d.Name, ErrNoLocation)
	}
	if d.Keys.IsZero() {
		return fmt.Errorf("%v: event %s: keys: %w", d.Pos, d.Name, ErrNoLocation)
	}
	if !token.IsIdentifier(d.Package.Name) {
		return fmt.Errorf("%v: event %s: invalid package name %q", d.Pos, d.Name, d.Package.Name)
	}
	if !token.IsIdentifier(d.Keys.Name) {
		return fmt.Errorf("%v: event %s: invalid key package name %q", d.Pos, d.Name, d.Keys.Name)
	}
	if !token.IsIdentifier(d.Keys.Container) || !token.IsExported(d.Keys.Container) {
		return fmt.Errorf("%v: event %s: key container %q is not an exported identifier", d.Pos, d.Name, d.Keys.Container)
	}
	for i, p := range d.Params {
		if p.Type == nil {
			return fmt.Errorf("%v: event %s: parameter %d has no type", d.Pos, d.Name, i)
		}
	}
	if d.Variadic {
		if len(d.Params) == 0 {
			return fmt.Errorf("%v: event %s: variadic without parameters", d.Pos, d.Name)
		}
		if _, ok := d.Params[len(d.Params)-1].Type.(*types.Slice); !ok {
			return fmt.Errorf("%v: event %s: variadic parameter is not a slice", d.Pos, d.Name)
		}
	}
	if !d.Void() {
		if d.Default == "" {
			return &MissingMetadataError{Decl: d.Name, Field: "default"}
		}
		if d.Combiner == "" {
			return &MissingMetadataError{Decl: d.Name, Field: "combiner"}
		}
		if err := checkExpr(d.Default); err != nil {
			return fmt.Errorf("%v: event %s: default: %w", d.Pos, d.Name, err)
		}
		if err := checkExpr(d.Combiner); err != nil {
			return fmt.Errorf("%v: event %s: combiner: %w", d.Pos, d.Name, err)
		}
	}
	if o := d.Order; o != nil {
		if o.Type == nil {
			return fmt.Errorf("%v: event %s: ordering type missing", d.Pos, d.Name)
		}
		if o.Compare != "" {
			if err := checkExpr(o.Compare); err != nil {
				return fmt.Errorf("%v: event %s: compare: %w", d.Pos, d.Name, err)
			}
		} else if !IsOrdered(o.Type) {
			return fmt.Errorf("%v: event %s: ordering type %v is not ordered; name a compare func", d.Pos, d.Name, o.Type)
		}
	}
	return nil
}

// IsOrdered reports whether values of t support the < operator, which is
// what cmp.Compare needs.
func IsOrdered(t types.Type) bool {
	b, ok := t.Underlying().(*types.Basic)
	return ok && b.Info()&types.IsOrdered != 0
}

func checkExpr(src string) error {
	_, err := Expr(src)
	return err
}

// Expr parses src as a Go expression and returns it printed by gofmt.
// Comments in src are not part of the result.
func Expr(src string) (string, error) {
	fset := token.NewFileSet()
	x, err := parser.ParseExprFrom(fset, "", src, 0)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := format.Node(&buf, fset, x); err != nil {
		return "", err
	}
	return buf.String(), nil
}
