// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// Package gen synthesizes Go source for evgen declarations.
//
// For every [decl.Decl] it produces one file in the declaration's package
// location holding the event interface, its view interface and the factory
// for the derived adapt, aggregate and defer handlers. For every key
// location it produces one file holding the key container. Generation is
// all or nothing: any error aborts the run and no files are returned.
package gen

import (
	"bytes"
	"context"
	"fmt"
	"go/ast"
	"go/parser"
	"go/types"
	"path/filepath"
	"runtime"

	"github.com/spf13/afero"
	"github.com/tailscale/evgen/atomicfile"
	"github.com/tailscale/evgen/decl"
	"github.com/tailscale/evgen/narrow"
	"github.com/tailscale/evgen/util/codegen"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Tool is the name generated files credit in their header.
const Tool = "github.com/tailscale/evgen/cmd/evgen"

// DefaultSuffix is the file name suffix of generated files.
const DefaultSuffix = "_evgen.go"

// eventPkg is the import path of the runtime package generated code uses.
const eventPkg = "github.com/tailscale/evgen/event"

// Generator turns declarations into Go source files.
type Generator struct {
	// Oracle resolves parameter view types. If nil, view parameters
	// have the same types as the full ones.
	Oracle narrow.Oracle[types.Type]

	// License, if non-empty, is written at the top of every file.
	License string

	// Suffix is appended to generated file names. Empty means
	// DefaultSuffix.
	Suffix string

	// Parallelism bounds how many declarations are synthesized at once.
	// Zero or less means GOMAXPROCS.
	Parallelism int

	// Log receives progress at debug level. Nil means no logging.
	Log *zap.SugaredLogger
}

// A File is one generated Go source file.
type File struct {
	Path    string       // absolute path of the file
	Package decl.Package // package the file belongs to
	Source  []byte       // formatted Go source
	Events  []string     // events declared or keyed by the file
}

// DuplicateKeyError reports two events with the same key name in one key
// container.
type DuplicateKeyError struct {
	Container string // KeyLocation.String()
	Key       string // e.g. "DAMAGE_KEY"
	Events    [2]string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("key container %s: %s declared by both %s and %s", e.Container, e.Key, e.Events[0], e.Events[1])
}

// DuplicateEventError reports two events with the same name generated into
// the same package.
type DuplicateEventError struct {
	Package string
	Name    string
}

func (e *DuplicateEventError) Error() string {
	return fmt.Sprintf("event %s declared twice for package %s", e.Name, e.Package)
}

// CollisionError reports two outputs of one run that would be written to
// the same file, or that would declare the same unexported identifiers in
// one package.
type CollisionError struct {
	Package string    // import path
	Name    string    // file path or identifier prefix
	Sources [2]string // e.g. "event HTTPServe", "key container Damage"
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("package %s: %s and %s both generate %s", e.Package, e.Sources[0], e.Sources[1], e.Name)
}

// FormatError reports generated code that gofmt rejected. Source holds the
// unformatted code so that it can be written out for debugging.
type FormatError struct {
	Path   string
	Source []byte
	Err    error
}

func (e *FormatError) Error() string { return e.Err.Error() }

func (e *FormatError) Unwrap() error { return e.Err }

func (g *Generator) log() *zap.SugaredLogger {
	if g.Log == nil {
		return zap.NewNop().Sugar()
	}
	return g.Log
}

func (g *Generator) suffix() string {
	if g.Suffix == "" {
		return DefaultSuffix
	}
	return g.Suffix
}

func (g *Generator) parallelism() int {
	if g.Parallelism <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return g.Parallelism
}

// Generate synthesizes the files for decls. Declarations are processed
// concurrently; key containers are built once all of them succeeded, with
// keys in the order of decls. The event files come first in the result, in
// the order of decls, followed by the key container files.
func (g *Generator) Generate(ctx context.Context, decls []*decl.Decl) ([]File, error) {
	log := g.log()
	if err := checkUniqueEvents(decls); err != nil {
		return nil, err
	}
	if err := g.checkCollisions(decls); err != nil {
		return nil, err
	}

	files := make([]File, len(decls))
	grp, gctx := errgroup.WithContext(ctx)
	grp.SetLimit(g.parallelism())
	for i, d := range decls {
		grp.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			f, err := g.eventFile(d)
			if err != nil {
				return err
			}
			files[i] = f
			log.Debugf("synthesized %s in %s", d.Name, d.Package)
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, err
	}

	containers, err := groupKeys(decls)
	if err != nil {
		return nil, err
	}
	for _, c := range containers {
		f, err := g.keyFile(c)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
		log.Debugf("key container %s: %d keys", c.loc, len(c.decls))
	}
	return files, nil
}

func checkUniqueEvents(decls []*decl.Decl) error {
	type key struct{ pkg, name string }
	seen := map[key]bool{}
	for _, d := range decls {
		k := key{d.Package.Path, d.Name}
		if seen[k] {
			return &DuplicateEventError{Package: d.Package.Path, Name: d.Name}
		}
		seen[k] = true
	}
	return nil
}

// checkCollisions reports distinct events or key containers whose file
// names or unexported type prefixes coincide, such as HTTPServe and
// HttpServe.
func (g *Generator) checkCollisions(decls []*decl.Decl) error {
	paths := map[string]string{}
	check := func(pkg, path, src string) error {
		if prev, ok := paths[path]; ok {
			return &CollisionError{Package: pkg, Name: path, Sources: [2]string{prev, src}}
		}
		paths[path] = src
		return nil
	}
	type prefix struct{ pkg, lower string }
	lowers := map[prefix]string{}
	for _, d := range decls {
		src := "event " + d.Name
		if err := check(d.Package.Path, g.eventPath(d), src); err != nil {
			return err
		}
		p := prefix{d.Package.Path, decl.LowerCamel(d.Name)}
		if prev, ok := lowers[p]; ok {
			return &CollisionError{Package: p.pkg, Name: p.lower, Sources: [2]string{prev, src}}
		}
		lowers[p] = src
	}
	seen := map[decl.KeyLocation]bool{}
	for _, d := range decls {
		if seen[d.Keys] {
			continue
		}
		seen[d.Keys] = true
		if err := check(d.Keys.Path, g.keyPath(d.Keys), "key container "+d.Keys.Container); err != nil {
			return err
		}
	}
	return nil
}

func (g *Generator) eventPath(d *decl.Decl) string {
	return filepath.Join(d.Package.Dir, decl.SnakeName(d.Name)+g.suffix())
}

func (g *Generator) keyPath(loc decl.KeyLocation) string {
	return filepath.Join(loc.Dir, decl.SnakeName(loc.Container)+"_keys"+g.suffix())
}

// eventFile synthesizes the interfaces and behaviours of d.
func (g *Generator) eventFile(d *decl.Decl) (File, error) {
	if err := d.Validate(); err != nil {
		return File{}, err
	}
	views, err := g.viewTypes(d)
	if err != nil {
		return File{}, err
	}
	it := codegen.NewImportTracker(d.Package.Path)
	args := newEventArgs(d, views, it)
	if !d.Void() {
		if err := importExprs(it, d.Imports, d.Default, d.Combiner); err != nil {
			return File{}, fmt.Errorf("%v: event %s: %w", d.Pos, d.Name, err)
		}
		if args.Default, err = decl.Expr(d.Default); err != nil {
			return File{}, fmt.Errorf("%v: event %s: default: %w", d.Pos, d.Name, err)
		}
		if args.Combiner, err = decl.Expr(d.Combiner); err != nil {
			return File{}, fmt.Errorf("%v: event %s: combiner: %w", d.Pos, d.Name, err)
		}
	}

	body := new(bytes.Buffer)
	if err := writeInterfaces(body, args); err != nil {
		return File{}, err
	}
	if err := writeBehaviors(body, args); err != nil {
		return File{}, err
	}
	path := g.eventPath(d)
	src, err := g.format(path, d.Package.Name, it, body)
	if err != nil {
		return File{}, err
	}
	return File{Path: path, Package: d.Package, Source: src, Events: []string{d.Name}}, nil
}

func (g *Generator) format(path, pkgName string, it *codegen.ImportTracker, body *bytes.Buffer) ([]byte, error) {
	src := codegen.Source(g.License, Tool, pkgName, it, body.Bytes())
	out, err := codegen.Format(path, src)
	if err != nil {
		return nil, &FormatError{Path: path, Source: src, Err: err}
	}
	return out, nil
}

// viewTypes returns the view type of every parameter of d. The element
// type of a variadic parameter is narrowed, not the slice.
func (g *Generator) viewTypes(d *decl.Decl) ([]types.Type, error) {
	variadic := d.Variadic && len(d.Params) > 0
	ts := make([]types.Type, len(d.Params))
	for i, p := range d.Params {
		ts[i] = p.Type
	}
	if variadic {
		last := len(ts) - 1
		ts[last] = ts[last].(*types.Slice).Elem()
	}
	views := ts
	if g.Oracle != nil {
		var err error
		views, err = narrow.Resolver[types.Type]{Oracle: g.Oracle}.ResolveAll(ts)
		if err != nil {
			return nil, fmt.Errorf("%v: event %s: %w", d.Pos, d.Name, err)
		}
	}
	if variadic {
		last := len(views) - 1
		views[last] = types.NewSlice(views[last])
	}
	return views, nil
}

// importExprs imports the packages of imports that exprs refer to. Empty
// expressions are skipped.
func importExprs(it *codegen.ImportTracker, imports []decl.Import, exprs ...string) error {
	if len(imports) == 0 {
		return nil
	}
	byName := map[string]string{}
	for _, imp := range imports {
		byName[imp.Name] = imp.Path
	}
	for _, src := range exprs {
		if src == "" {
			continue
		}
		x, err := parser.ParseExpr(src)
		if err != nil {
			return err
		}
		for n := range ast.Preorder(x) {
			sel, ok := n.(*ast.SelectorExpr)
			if !ok {
				continue
			}
			id, ok := sel.X.(*ast.Ident)
			if !ok {
				continue
			}
			path, ok := byName[id.Name]
			if !ok {
				continue
			}
			if local := it.ImportNamed(path, id.Name); local != id.Name {
				return fmt.Errorf("%q refers to package %s, which is imported as %q", src, path, local)
			}
		}
	}
	return nil
}

// WriteFiles writes files to fs. Each file is written atomically.
func WriteFiles(fs afero.Fs, files []File) error {
	for _, f := range files {
		if err := atomicfile.WriteFile(fs, f.Path, f.Source, 0644); err != nil {
			return err
		}
	}
	return nil
}
