// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package gen

import (
	"context"
	"errors"
	"go/ast"
	"go/parser"
	"go/token"
	"go/types"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"
	"github.com/tailscale/evgen/decl"
	"github.com/tailscale/evgen/narrow"
	"go.uber.org/zap/zaptest"
)

const gameSrc = `package game

type Entity struct {
	name string
	hp   int
}

func (e *Entity) ID() string  { return e.name }
func (e *Entity) Health() int { return e.hp }

type EntityView interface {
	ID() string
	Health() int
}

type Opaque struct{}
`

func checkGame(t *testing.T) *types.Package {
	t.Helper()
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "game.go", gameSrc, 0)
	if err != nil {
		t.Fatal(err)
	}
	pkg, err := new(types.Config).Check("example.com/game", fset, []*ast.File{f}, nil)
	if err != nil {
		t.Fatal(err)
	}
	return pkg
}

func typeName(pkg *types.Package, name string) *types.TypeName {
	return pkg.Scope().Lookup(name).(*types.TypeName)
}

var (
	eventsPkg = decl.Package{Path: "example.com/game/events", Name: "events", Dir: filepath.FromSlash("/src/game/events")}
	keysLoc   = decl.KeyLocation{Package: eventsPkg, Container: "Events"}
)

// fixture returns declarations over the game package and an oracle that
// narrows *Entity to EntityView.
func fixture(t *testing.T) (*types.Package, *narrow.TypesOracle, []*decl.Decl) {
	game := checkGame(t)
	o := narrow.NewTypesOracle()
	o.Declare(typeName(game, "Entity"), typeName(game, "EntityView"))
	entity := types.NewPointer(typeName(game, "Entity").Type())
	decls := []*decl.Decl{
		{
			Name:    "Tick",
			Params:  []decl.Param{{Name: "n", Type: types.Typ[types.Int]}},
			Keys:    keysLoc,
			Package: eventsPkg,
		},
		{
			Name: "Damage",
			Params: []decl.Param{
				{Name: "target", Type: entity},
				{Name: "amount", Type: types.Typ[types.Int]},
			},
			Result:   types.Typ[types.Int],
			Default:  "0",
			Combiner: "sum",
			Order:    &decl.Order{Type: types.Typ[types.Int]},
			Keys:     keysLoc,
			Package:  eventsPkg,
		},
		{
			Name:     "Heal",
			Params:   []decl.Param{{Name: "amount", Type: types.Typ[types.Int]}, {Name: "targets", Type: types.NewSlice(entity)}},
			Variadic: true,
			Order:    &decl.Order{Type: types.Typ[types.String], Compare: "strings.Compare"},
			Imports:  []decl.Import{{Path: "strings", Name: "strings"}},
			Keys:     keysLoc,
			Package:  eventsPkg,
		},
	}
	return game, o, decls
}

func generate(t *testing.T, g *Generator, decls []*decl.Decl) map[string]string {
	t.Helper()
	files, err := g.Generate(context.Background(), decls)
	if err != nil {
		t.Fatal(err)
	}
	out := map[string]string{}
	for _, f := range files {
		if _, err := parser.ParseFile(token.NewFileSet(), f.Path, f.Source, parser.AllErrors); err != nil {
			t.Errorf("generated %s does not parse: %v\n%s", f.Path, err, f.Source)
		}
		out[filepath.Base(f.Path)] = string(f.Source)
	}
	return out
}

func mustContain(t *testing.T, name, src string, wants ...string) {
	t.Helper()
	for _, want := range wants {
		if !strings.Contains(src, want) {
			t.Errorf("%s: missing %q in:\n%s", name, want, src)
		}
	}
}

func TestGenerate(t *testing.T) {
	_, o, decls := fixture(t)
	g := &Generator{
		Oracle:  o,
		License: "// Copyright (c) Tailscale Inc & AUTHORS\n// SPDX-License-Identifier: BSD-3-Clause",
		Log:     zaptest.NewLogger(t).Sugar(),
	}
	files := generate(t, g, decls)

	var names []string
	for n := range files {
		names = append(names, n)
	}
	want := []string{"damage_evgen.go", "events_keys_evgen.go", "heal_evgen.go", "tick_evgen.go"}
	slices.Sort(names)
	if diff := cmp.Diff(want, names); diff != "" {
		t.Fatalf("files mismatch (-want +got):\n%s", diff)
	}

	for name, src := range files {
		mustContain(t, name, src,
			"// Copyright (c) Tailscale Inc & AUTHORS\n// SPDX-License-Identifier: BSD-3-Clause\n\n// Code generated by "+Tool+"; DO NOT EDIT.\n\npackage events\n",
			`"github.com/tailscale/evgen/event"`,
		)
	}

	mustContain(t, "tick", files["tick_evgen.go"],
		"type Tick interface {\n\tOnTick(n int)\n}",
		"type TickView interface {\n\tOnTick(n int)\n}",
		"func TickFactory() event.Factory[Tick, TickView] {",
		"func (x tickInvoker) OnTick(a0 int) {\n\tfor _, h := range x {\n\t\th.OnTick(a0)\n\t}\n}",
		"func (x tickDeferred) OnTick(a0 int) {\n\tx.s(func() {\n\t\tx.d.OnTick(a0)\n\t})\n}",
	)
	if strings.Contains(files["tick_evgen.go"], "Ord()") {
		t.Error("unordered event has an ordering accessor")
	}

	mustContain(t, "damage", files["damage_evgen.go"],
		`"example.com/game"`,
		"type Damage interface {\n\tOrd() int\n\tOnDamage(target *game.Entity, amount int) int\n}",
		"type DamageView interface {\n\tOrd() int\n\tOnDamage(target game.EntityView, amount int)\n}",
		"func (x damageAdapter) OnDamage(a0 *game.Entity, a1 int) int {\n\tx.v.OnDamage(a0, a1)\n\treturn 0\n}",
		"var res int = 0\n\tfor _, h := range x {\n\t\tr := h.OnDamage(a0, a1)\n\t\tres = sum(res, r)\n\t}\n\treturn res",
		`panic(event.UnorderableError{Event: "Damage", Kind: "aggregate"})`,
		`panic(event.UnorderableError{Event: "Damage", Kind: "defer"})`,
		"return damageInvoker(slices.Clone(handlers))",
	)

	mustContain(t, "heal", files["heal_evgen.go"],
		"OnHeal(amount int, targets ...*game.Entity)",
		"OnHeal(amount int, targets ...game.EntityView)",
		"vs := make([]game.EntityView, len(a1))\n\tfor i, e := range a1 {\n\t\tvs[i] = e\n\t}\n\tx.v.OnHeal(a0, vs...)",
		"x.d.OnHeal(a0, a1...)",
	)
	if strings.Contains(files["heal_evgen.go"], `"strings"`) {
		t.Error("heal imports strings, which only its key uses")
	}

	keys := files["events_keys_evgen.go"]
	mustContain(t, "keys", keys,
		`"strings"`,
		"type eventsKeys struct{}\n",
		"var Events eventsKeys\n",
		"eventsTickKey   = event.NewKey[Tick, TickView]()",
		"eventsDamageKey = event.NewOrderedKey[Damage, DamageView](func(a, b Damage) int { return cmp.Compare(a.Ord(), b.Ord()) })",
		"eventsHealKey   = event.NewOrderedKey[Heal, HealView](func(a, b Heal) int { return strings.Compare(a.Ord(), b.Ord()) })",
		"func (eventsKeys) DAMAGE_KEY() event.Key[Damage, DamageView] { return eventsDamageKey }",
	)
	if regexp.MustCompile(`(?m)^\s+[A-Z]\w*_KEY\s`).MatchString(keys) {
		t.Errorf("keys: exported key field:\n%s", keys)
	}
	// Keys appear in declaration order.
	tick, damage, heal := strings.Index(keys, "TICK_KEY()"), strings.Index(keys, "DAMAGE_KEY()"), strings.Index(keys, "HEAL_KEY()")
	if !(tick >= 0 && tick < damage && damage < heal) {
		t.Errorf("keys out of order: TICK %d, DAMAGE %d, HEAL %d", tick, damage, heal)
	}
}

func TestGenerateExprComments(t *testing.T) {
	_, o, decls := fixture(t)
	decls[1].Combiner = "sum // add up"
	decls[1].Default = "0 /* none */"
	decls[2].Order.Compare = "strings.Compare // ascending"
	files := generate(t, &Generator{Oracle: o}, decls)
	mustContain(t, "damage", files["damage_evgen.go"],
		"res = sum(res, r)",
		"var res int = 0\n",
	)
	mustContain(t, "keys", files["events_keys_evgen.go"],
		"func(a, b Heal) int { return strings.Compare(a.Ord(), b.Ord()) }",
	)
	for name, src := range files {
		if strings.Contains(src, "add up") || strings.Contains(src, "ascending") || strings.Contains(src, "none") {
			t.Errorf("%s carries a directive comment:\n%s", name, src)
		}
	}
}

func TestGenerateCrossPackageKeys(t *testing.T) {
	_, o, decls := fixture(t)
	registry := decl.Package{Path: "example.com/game/registry", Name: "registry", Dir: filepath.FromSlash("/src/game/registry")}
	for _, d := range decls {
		d.Keys = decl.KeyLocation{Package: registry, Container: "GameEvents"}
	}
	files := generate(t, &Generator{Oracle: o}, decls)
	keys, ok := files["game_events_keys_evgen.go"]
	if !ok {
		t.Fatalf("no key file in %v", files)
	}
	mustContain(t, "keys", keys,
		"package registry\n",
		`"example.com/game/events"`,
		"var GameEvents gameEventsKeys\n",
		"gameEventsTickKey   = event.NewKey[events.Tick, events.TickView]()",
		"func (gameEventsKeys) TICK_KEY() event.Key[events.Tick, events.TickView] { return gameEventsTickKey }",
		"func(a, b events.Damage) int { return cmp.Compare(a.Ord(), b.Ord()) }",
	)
}

func TestGenerateDeterministic(t *testing.T) {
	_, o, decls := fixture(t)
	serial := generate(t, &Generator{Oracle: o, Parallelism: 1}, decls)
	parallel := generate(t, &Generator{Oracle: o, Parallelism: 8}, decls)
	if diff := cmp.Diff(serial, parallel); diff != "" {
		t.Errorf("output depends on parallelism (-serial +parallel):\n%s", diff)
	}
}

func TestGenerateWithoutOracle(t *testing.T) {
	_, _, decls := fixture(t)
	files := generate(t, &Generator{}, decls[1:2])
	mustContain(t, "damage", files["damage_evgen.go"],
		"type DamageView interface {\n\tOrd() int\n\tOnDamage(target *game.Entity, amount int)\n}",
	)
}

func TestGenerateErrors(t *testing.T) {
	t.Run("duplicate key", func(t *testing.T) {
		_, o, decls := fixture(t)
		other := *decls[0]
		other.Package = decl.Package{Path: "example.com/game/more", Name: "more", Dir: "/src/game/more"}
		_, err := (&Generator{Oracle: o}).Generate(context.Background(), append(decls, &other))
		var dke *DuplicateKeyError
		if !errors.As(err, &dke) {
			t.Fatalf("got %v; want DuplicateKeyError", err)
		}
		want := &DuplicateKeyError{
			Container: "example.com/game/events.Events",
			Key:       "TICK_KEY",
			Events:    [2]string{"example.com/game/events.Tick", "example.com/game/more.Tick"},
		}
		if diff := cmp.Diff(want, dke); diff != "" {
			t.Errorf("error mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("duplicate event", func(t *testing.T) {
		_, o, decls := fixture(t)
		again := *decls[1]
		again.Keys.Container = "Other"
		_, err := (&Generator{Oracle: o}).Generate(context.Background(), append(decls, &again))
		var dee *DuplicateEventError
		if !errors.As(err, &dee) || dee.Name != "Damage" {
			t.Fatalf("got %v; want DuplicateEventError for Damage", err)
		}
	})

	t.Run("file collision", func(t *testing.T) {
		_, o, decls := fixture(t)
		serve := func(name string) *decl.Decl {
			return &decl.Decl{Name: name, Keys: keysLoc, Package: eventsPkg}
		}
		tests := []struct {
			name  string
			decls []*decl.Decl
			want  *CollisionError
		}{
			{
				name:  "initialisms",
				decls: []*decl.Decl{serve("HTTPServe"), serve("HttpServe")},
				want: &CollisionError{
					Package: "example.com/game/events",
					Name:    filepath.Join(eventsPkg.Dir, "http_serve_evgen.go"),
					Sources: [2]string{"event HTTPServe", "event HttpServe"},
				},
			},
			{
				name:  "key container",
				decls: []*decl.Decl{serve("DamageKeys"), decls[0]},
				want: &CollisionError{
					Package: "example.com/game/events",
					Name:    filepath.Join(eventsPkg.Dir, "damage_keys_evgen.go"),
					Sources: [2]string{"event DamageKeys", "key container Damage"},
				},
			},
		}
		decls[0].Keys.Container = "Damage"
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				files, err := (&Generator{Oracle: o}).Generate(context.Background(), tt.decls)
				var ce *CollisionError
				if !errors.As(err, &ce) {
					t.Fatalf("got %v; want CollisionError", err)
				}
				if diff := cmp.Diff(tt.want, ce); diff != "" {
					t.Errorf("error mismatch (-want +got):\n%s", diff)
				}
				if files != nil {
					t.Errorf("got %d files on error", len(files))
				}
			})
		}
	})

	t.Run("type prefix collision", func(t *testing.T) {
		_, o, decls := fixture(t)
		a := &decl.Decl{Name: "Playerjoin", Keys: keysLoc, Package: eventsPkg}
		b := &decl.Decl{Name: "Player_join", Keys: keysLoc, Package: eventsPkg}
		_, err := (&Generator{Oracle: o}).Generate(context.Background(), append(decls, a, b))
		var ce *CollisionError
		if !errors.As(err, &ce) {
			t.Fatalf("got %v; want CollisionError", err)
		}
		want := &CollisionError{
			Package: "example.com/game/events",
			Name:    "playerjoin",
			Sources: [2]string{"event Playerjoin", "event Player_join"},
		}
		if diff := cmp.Diff(want, ce); diff != "" {
			t.Errorf("error mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("missing combiner", func(t *testing.T) {
		_, o, decls := fixture(t)
		decls[1].Combiner = ""
		files, err := (&Generator{Oracle: o}).Generate(context.Background(), decls)
		var mme *decl.MissingMetadataError
		if !errors.As(err, &mme) {
			t.Fatalf("got %v; want MissingMetadataError", err)
		}
		if files != nil {
			t.Errorf("got %d files on error", len(files))
		}
	})

	t.Run("view violation", func(t *testing.T) {
		game, _, decls := fixture(t)
		o := narrow.NewTypesOracle()
		o.Declare(typeName(game, "Opaque"), typeName(game, "EntityView"))
		decls[0].Params[0].Type = typeName(game, "Opaque").Type()
		_, err := (&Generator{Oracle: o}).Generate(context.Background(), decls[:1])
		var ve *narrow.ViolationError
		if !errors.As(err, &ve) {
			t.Fatalf("got %v; want ViolationError", err)
		}
	})

	t.Run("bad combiner", func(t *testing.T) {
		_, o, decls := fixture(t)
		decls[1].Combiner = "sum("
		if _, err := (&Generator{Oracle: o}).Generate(context.Background(), decls); err == nil {
			t.Fatal("accepted a combiner that is not an expression")
		}
	})

	t.Run("canceled", func(t *testing.T) {
		_, o, decls := fixture(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := (&Generator{Oracle: o}).Generate(ctx, decls)
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("got %v; want context.Canceled", err)
		}
	})
}

func TestWriteFiles(t *testing.T) {
	_, o, decls := fixture(t)
	files, err := (&Generator{Oracle: o}).Generate(context.Background(), decls)
	if err != nil {
		t.Fatal(err)
	}
	fs := afero.NewMemMapFs()
	if err := WriteFiles(fs, files); err != nil {
		t.Fatal(err)
	}
	for _, f := range files {
		got, err := afero.ReadFile(fs, f.Path)
		if err != nil {
			t.Fatal(err)
		}
		if string(got) != string(f.Source) {
			t.Errorf("%s: written content differs", f.Path)
		}
	}
}

func TestHandlerMethod(t *testing.T) {
	if got := HandlerMethod("PlayerJoin"); got != "OnPlayerJoin" {
		t.Errorf("HandlerMethod = %q", got)
	}
}
