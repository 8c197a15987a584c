// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package narrow

import (
	"errors"
	"go/ast"
	"go/importer"
	"go/parser"
	"go/token"
	"go/types"
	"strings"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/google/go-cmp/cmp"
)

// fakeOracle models types as strings. "List<int>" is the generic "List"
// applied to "int".
type fakeOracle struct {
	views    map[string]string          // type (without args) -> view
	subtypes map[string]map[string]bool // t -> views it is assignable to
	applied  []string
}

func base(t string) (name, args string) {
	if i := strings.IndexByte(t, '<'); i >= 0 {
		return t[:i], t[i:]
	}
	return t, ""
}

func (o *fakeOracle) Declared(t string) (string, bool, error) {
	name, _ := base(t)
	v, ok := o.views[name]
	if v == "bad" {
		return "", false, errors.New("bad view")
	}
	return v, ok, nil
}

func (o *fakeOracle) Apply(view, t string) (string, error) {
	_, args := base(t)
	o.applied = append(o.applied, view+args)
	return view + args, nil
}

func (o *fakeOracle) IsSubtype(t, view string) bool { return t == view || o.subtypes[t][view] }

func (o *fakeOracle) String(t string) string { return t }

func TestResolve(t *testing.T) {
	o := &fakeOracle{
		views: map[string]string{
			"T1":      "T2",
			"T2":      "T3",
			"List":    "ListView",
			"Broken":  "NotSuper",
			"Self":    "Self",
			"A":       "B",
			"B":       "A",
			"Failing": "bad",
		},
		subtypes: map[string]map[string]bool{
			"T1":        {"T2": true},
			"T2":        {"T3": true},
			"List<int>": {"ListView<int>": true},
			"A":         {"B": true},
			"B":         {"A": true},
		},
	}
	r := Resolver[string]{Oracle: o}

	tests := []struct {
		in        string
		want      string
		violation *ViolationError
		cycle     []string
		errSubstr string
	}{
		{in: "int", want: "int"},
		{in: "T3", want: "T3"},
		{in: "T2", want: "T3"},
		{in: "T1", want: "T3"},
		{in: "List<int>", want: "ListView<int>"},
		{in: "Broken", violation: &ViolationError{Type: "Broken", View: "NotSuper"}},
		{in: "Self", cycle: []string{"Self", "Self"}},
		{in: "A", cycle: []string{"A", "B", "A"}},
		{in: "Failing", errSubstr: "bad view"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := r.Resolve(tt.in)
			switch {
			case tt.violation != nil:
				var ve *ViolationError
				if !errors.As(err, &ve) {
					t.Fatalf("Resolve = %q, %v; want ViolationError", got, err)
				}
				if diff := cmp.Diff(tt.violation, ve); diff != "" {
					t.Errorf("ViolationError mismatch (-want +got):\n%s", diff)
				}
			case tt.cycle != nil:
				var ce *CycleError
				if !errors.As(err, &ce) {
					t.Fatalf("Resolve = %q, %v; want CycleError", got, err)
				}
				if diff := cmp.Diff(tt.cycle, ce.Chain); diff != "" {
					t.Errorf("cycle chain mismatch (-want +got):\n%s", diff)
				}
			case tt.errSubstr != "":
				if err == nil || !strings.Contains(err.Error(), tt.errSubstr) {
					t.Fatalf("Resolve = %q, %v; want error containing %q", got, err, tt.errSubstr)
				}
			default:
				if err != nil {
					t.Fatalf("Resolve: %v", err)
				}
				if got != tt.want {
					t.Errorf("Resolve(%q) = %q; want %q", tt.in, got, tt.want)
				}
			}
		})
	}

	views, err := r.ResolveAll([]string{"T1", "int", "List<string>"})
	var ve *ViolationError
	if !errors.As(err, &ve) || !strings.HasPrefix(err.Error(), "parameter 2: ") {
		t.Fatalf("ResolveAll = %v, %v; want violation at parameter 2", views, err)
	}
	views, err = r.ResolveAll([]string{"T1", "int"})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"T3", "int"}, views); diff != "" {
		t.Errorf("ResolveAll mismatch (-want +got):\n%s", diff)
	}
}

const goSrc = `package game

type Entity struct{ name string; hp int }

func (e *Entity) ID() string  { return e.name }
func (e *Entity) Health() int { return e.hp }

type EntityView interface {
	ID() string
	Health() int
}

type Named interface{ ID() string }

type Identified interface{ ID() string }

type List[T any] struct{ items []T }

func (l *List[T]) Len() int    { return len(l.items) }
func (l *List[T]) At(i int) T  { return l.items[i] }

type ListView[T any] interface {
	Len() int
	At(int) T
}

type Sized interface{ Len() int }

type Pair[K comparable, V any] struct{}

type Opaque struct{}

type NotAnInterface struct{}

type Alias = EntityView
`

func checkSource(t *testing.T) *types.Package {
	t.Helper()
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "game.go", goSrc, parser.ParseComments)
	if err != nil {
		t.Fatal(err)
	}
	conf := types.Config{Importer: importer.Default()}
	pkg, err := conf.Check("example.com/game", fset, []*ast.File{f}, nil)
	if err != nil {
		t.Fatal(err)
	}
	return pkg
}

func TestTypesOracle(t *testing.T) {
	c := qt.New(t)
	pkg := checkSource(t)
	obj := func(name string) *types.TypeName {
		tn, ok := pkg.Scope().Lookup(name).(*types.TypeName)
		if !ok {
			t.Fatalf("no type %q", name)
		}
		return tn
	}

	o := NewTypesOracle()
	o.Declare(obj("Entity"), obj("EntityView"))
	o.Declare(obj("EntityView"), obj("Named"))
	o.Declare(obj("List"), obj("ListView"))
	o.Declare(obj("ListView"), obj("Sized"))
	o.Declare(obj("Opaque"), obj("NotAnInterface"))
	o.Declare(obj("Pair"), obj("ListView"))
	c.Assert(o.Len(), qt.Equals, 6)
	r := Resolver[types.Type]{Oracle: o}

	entityPtr := types.NewPointer(obj("Entity").Type())
	got, err := r.Resolve(entityPtr)
	c.Assert(err, qt.IsNil)
	c.Assert(types.Identical(got, obj("Named").Type()), qt.IsTrue, qt.Commentf("got %v", got))

	// A value Entity has no methods; *Entity does.
	_, err = r.Resolve(obj("Entity").Type())
	var ve *ViolationError
	c.Assert(errors.As(err, &ve), qt.IsTrue, qt.Commentf("err = %v", err))
	c.Assert(ve.Type, qt.Equals, "example.com/game.Entity")
	c.Assert(ve.View, qt.Equals, "example.com/game.EntityView")

	listInt, err := types.Instantiate(nil, obj("List").Type(), []types.Type{types.Typ[types.Int]}, true)
	c.Assert(err, qt.IsNil)
	got, err = r.Resolve(types.NewPointer(listInt))
	c.Assert(err, qt.IsNil)
	c.Assert(types.Identical(got, obj("Sized").Type()), qt.IsTrue, qt.Commentf("got %v", got))

	// Stop one step early to see the applied generic view.
	view, ok, err := o.Declared(types.NewPointer(listInt))
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsTrue)
	applied, err := o.Apply(view, types.NewPointer(listInt))
	c.Assert(err, qt.IsNil)
	c.Assert(o.String(applied), qt.Equals, "example.com/game.ListView[int]")

	_, err = r.Resolve(obj("Opaque").Type())
	c.Assert(errors.As(err, &ve), qt.IsTrue)

	pair, err := types.Instantiate(nil, obj("Pair").Type(), []types.Type{types.Typ[types.String], types.Typ[types.Int]}, true)
	c.Assert(err, qt.IsNil)
	_, err = r.Resolve(pair)
	c.Assert(err, qt.ErrorMatches, ".*2 type arguments.*")

	got, err = r.Resolve(types.Typ[types.Int])
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.Equals, types.Type(types.Typ[types.Int]))

	// Aliases are looked through.
	got, err = r.Resolve(obj("Alias").Type())
	c.Assert(err, qt.IsNil)
	c.Assert(types.Identical(got, obj("Named").Type()), qt.IsTrue)
}

func TestTypesOracleCycle(t *testing.T) {
	pkg := checkSource(t)
	ident := pkg.Scope().Lookup("Identified").(*types.TypeName)
	named := pkg.Scope().Lookup("Named").(*types.TypeName)

	o := NewTypesOracle()
	o.Declare(ident, named)
	o.Declare(named, ident)
	_, err := Resolver[types.Type]{Oracle: o}.Resolve(ident.Type())
	var ce *CycleError
	if !errors.As(err, &ce) {
		t.Fatalf("Resolve = %v; want CycleError", err)
	}
	if len(ce.Chain) != 3 {
		t.Errorf("chain = %q; want 3 elements", ce.Chain)
	}
}
