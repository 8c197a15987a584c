// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// Package scan finds evgen declarations in type-checked Go packages.
//
// A declaration set is an interface type documented with
//
//	//evgen:events
//
// Each of its methods declares one event kind named after the method.
// Metadata comes from further directives:
//
//	//evgen:package <dir> [name]    where event interfaces go
//	//evgen:keys <dir> <Container>  where the event's key goes
//	//evgen:default <expr>          default result (value events)
//	//evgen:combiner <expr>         result combiner (value events)
//	//evgen:order <type> [<expr>]   ordering accessor type and comparator
//	//evgen:view <Type>             on any type: its narrowed view
//
// Locations are looked up on the method, then on the interface, then in
// the package documentation, then in the Scanner defaults. A dir starting
// with "." is relative to the declaring package's directory; anything else
// is an import path within the declaring module.
package scan

import (
	"errors"
	"fmt"
	"go/ast"
	"go/token"
	"go/types"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/tailscale/evgen/decl"
	"github.com/tailscale/evgen/narrow"
	"go.uber.org/zap"
	"golang.org/x/mod/module"
)

// Source is one type-checked package to scan.
type Source struct {
	Fset   *token.FileSet
	Files  []*ast.File
	Pkg    *types.Package
	Info   *types.Info // needs Defs and Scopes
	Dir    string      // directory holding the package's files
	Module *Module     // nil outside a module
}

// Module is the Go module a Source belongs to.
type Module struct {
	Path string // module path
	Dir  string // directory holding go.mod
}

// Scanner turns Sources into declarations.
type Scanner struct {
	// DefaultPackage and DefaultKeys are arguments of the package and
	// keys directives, used where no directive names a location.
	DefaultPackage string
	DefaultKeys    string

	// Log receives debug messages. Nil means no logging.
	Log *zap.SugaredLogger
}

// Result is the outcome of a scan.
type Result struct {
	// Decls are the declarations of the root packages, in discovery
	// order: packages in the given order, files by name, declarations in
	// source order.
	Decls []*decl.Decl

	// Oracle knows every view declared in any scanned package.
	Oracle *narrow.TypesOracle

	// Dirs are the directories of the root packages.
	Dirs []string
}

func (s *Scanner) log() *zap.SugaredLogger {
	if s.Log == nil {
		return zap.NewNop().Sugar()
	}
	return s.Log
}

// Scan finds the declarations in roots and the view declarations in roots
// and deps. All directive errors of a package are reported together.
func (s *Scanner) Scan(roots, deps []*Source) (*Result, error) {
	names := map[string]string{} // import path -> package name
	seen := map[*types.Package]bool{}
	o := narrow.NewTypesOracle()
	for _, src := range slices.Concat(roots, deps) {
		if seen[src.Pkg] {
			continue
		}
		seen[src.Pkg] = true
		names[src.Pkg.Path()] = src.Pkg.Name()
		if err := s.indexViews(o, src); err != nil {
			return nil, err
		}
	}

	res := &Result{Oracle: o}
	for _, src := range roots {
		ds, err := s.scanPackage(src, names)
		if err != nil {
			return nil, err
		}
		res.Decls = append(res.Decls, ds...)
		res.Dirs = append(res.Dirs, src.Dir)
	}
	s.log().Debugf("scanned %d packages: %d events, %d views", len(seen), len(res.Decls), o.Len())
	return res, nil
}

// sortedFiles returns the files of src ordered by file name.
func sortedFiles(src *Source) []*ast.File {
	files := slices.Clone(src.Files)
	slices.SortStableFunc(files, func(a, b *ast.File) int {
		return strings.Compare(src.Fset.Position(a.Package).Filename, src.Fset.Position(b.Package).Filename)
	})
	return files
}

// typeDoc returns the documentation of ts. A lone spec in an unparenthesized
// declaration has its doc on the GenDecl.
func typeDoc(gd *ast.GenDecl, ts *ast.TypeSpec) *ast.CommentGroup {
	if ts.Doc != nil {
		return ts.Doc
	}
	if !gd.Lparen.IsValid() {
		return gd.Doc
	}
	return nil
}

// typeSpecs calls fn for every type spec of f, in source order.
func typeSpecs(f *ast.File, fn func(*ast.GenDecl, *ast.TypeSpec) error) error {
	for _, d := range f.Decls {
		gd, ok := d.(*ast.GenDecl)
		if !ok || gd.Tok != token.TYPE {
			continue
		}
		for _, spec := range gd.Specs {
			if err := fn(gd, spec.(*ast.TypeSpec)); err != nil {
				return err
			}
		}
	}
	return nil
}

// indexViews declares in o every view declared in src.
func (s *Scanner) indexViews(o *narrow.TypesOracle, src *Source) error {
	for _, f := range sortedFiles(src) {
		err := typeSpecs(f, func(gd *ast.GenDecl, ts *ast.TypeSpec) error {
			ds, err := parseDirectives(src.Fset, typeDoc(gd, ts), typeLevel)
			if err != nil {
				return err
			}
			d, ok := ds["view"]
			if !ok {
				return nil
			}
			typ, ok := src.Info.Defs[ts.Name].(*types.TypeName)
			if !ok {
				return d.errorf("no type information for %s", ts.Name.Name)
			}
			view, err := lookupType(src, f, d.Args)
			if err != nil {
				return d.errorf("view of %s: %v", ts.Name.Name, err)
			}
			o.Declare(typ, view)
			s.log().Debugf("view %s -> %s", typ.Name(), view.Name())
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// lookupType finds the type named by ref ("T" or "pkg.T") as seen from f.
func lookupType(src *Source, f *ast.File, ref string) (*types.TypeName, error) {
	var obj types.Object
	if q, name, ok := strings.Cut(ref, "."); ok {
		pkg := importedAs(src, f, q)
		if pkg == nil {
			return nil, fmt.Errorf("package %s is not imported", q)
		}
		obj = pkg.Scope().Lookup(name)
	} else {
		obj = src.Pkg.Scope().Lookup(ref)
	}
	tn, ok := obj.(*types.TypeName)
	if !ok {
		return nil, fmt.Errorf("%s is not a type declared at package level", ref)
	}
	return tn, nil
}

// importedAs returns the package f imports under name, or nil.
func importedAs(src *Source, f *ast.File, name string) *types.Package {
	for _, imp := range fileImports(src, f) {
		if imp.Name == name {
			for _, p := range src.Pkg.Imports() {
				if p.Path() == imp.Path {
					return p
				}
			}
		}
	}
	return nil
}

// fileImports returns the imports of f with the names f refers to them by.
func fileImports(src *Source, f *ast.File) []decl.Import {
	var out []decl.Import
	if scope := src.Info.Scopes[f]; scope != nil {
		for _, name := range scope.Names() {
			if pn, ok := scope.Lookup(name).(*types.PkgName); ok {
				out = append(out, decl.Import{Path: pn.Imported().Path(), Name: name})
			}
		}
		return out
	}
	byPath := map[string]string{}
	for _, p := range src.Pkg.Imports() {
		byPath[p.Path()] = p.Name()
	}
	for _, spec := range f.Imports {
		p := strings.Trim(spec.Path.Value, "\"`")
		name := byPath[p]
		if spec.Name != nil {
			name = spec.Name.Name
		}
		if name == "" || name == "_" || name == "." {
			continue
		}
		out = append(out, decl.Import{Path: p, Name: name})
	}
	return out
}

// locations are the location directives in effect at some level.
type locations struct {
	pkg, keys *directive
}

// with returns l overridden by the location directives in ds.
func (l locations) with(ds directives) locations {
	if d, ok := ds["package"]; ok {
		l.pkg = &d
	}
	if d, ok := ds["keys"]; ok {
		l.keys = &d
	}
	return l
}

func (s *Scanner) defaults() locations {
	var l locations
	if s.DefaultPackage != "" {
		l.pkg = &directive{Verb: "package", Args: s.DefaultPackage, Pos: token.Position{Filename: "config"}}
	}
	if s.DefaultKeys != "" {
		l.keys = &directive{Verb: "keys", Args: s.DefaultKeys, Pos: token.Position{Filename: "config"}}
	}
	return l
}

// scanPackage returns the declarations of src.
func (s *Scanner) scanPackage(src *Source, names map[string]string) ([]*decl.Decl, error) {
	files := sortedFiles(src)
	pkgLocs := s.defaults()
	// The first file by name wins.
	for _, f := range slices.Backward(files) {
		ds, err := parseDirectives(src.Fset, f.Doc, packageLevel)
		if err != nil {
			return nil, err
		}
		pkgLocs = pkgLocs.with(ds)
	}

	var (
		out  []*decl.Decl
		errs []error
	)
	for _, f := range files {
		err := typeSpecs(f, func(gd *ast.GenDecl, ts *ast.TypeSpec) error {
			ds, err := parseDirectives(src.Fset, typeDoc(gd, ts), typeLevel)
			if err != nil {
				errs = append(errs, err)
				return nil
			}
			d, ok := ds["events"]
			if !ok {
				return nil
			}
			it, ok := ts.Type.(*ast.InterfaceType)
			if !ok {
				errs = append(errs, d.errorf("%s%s on %s, which is not an interface", DirectivePrefix, "events", ts.Name.Name))
				return nil
			}
			if ts.TypeParams != nil {
				errs = append(errs, d.errorf("declaration set %s is generic", ts.Name.Name))
				return nil
			}
			s.log().Debugf("declaration set %s.%s", src.Pkg.Path(), ts.Name.Name)
			locs := pkgLocs.with(ds)
			for _, m := range it.Methods.List {
				if len(m.Names) == 0 {
					continue // embedded interface
				}
				ev, err := s.method(src, f, m, locs, names)
				if err != nil {
					errs = append(errs, err)
					continue
				}
				out = append(out, ev)
			}
			return nil
		})
		if err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

// method builds the declaration of the interface method m.
func (s *Scanner) method(src *Source, f *ast.File, m *ast.Field, locs locations, names map[string]string) (*decl.Decl, error) {
	ident := m.Names[0]
	pos := src.Fset.Position(ident.Pos())
	fn, ok := src.Info.Defs[ident].(*types.Func)
	if !ok {
		return nil, &DirectiveError{Pos: pos, Msg: "no type information for " + ident.Name}
	}
	sig := fn.Type().(*types.Signature)
	ds, err := parseDirectives(src.Fset, m.Doc, methodLevel)
	if err != nil {
		return nil, err
	}

	d := &decl.Decl{
		Name:     ident.Name,
		Variadic: sig.Variadic(),
		Pos:      pos,
	}
	for v := range sig.Params().Variables() {
		d.Params = append(d.Params, decl.Param{Name: v.Name(), Type: v.Type()})
	}
	switch sig.Results().Len() {
	case 0:
	case 1:
		d.Result = sig.Results().At(0).Type()
	default:
		return nil, &DirectiveError{Pos: pos, Msg: fmt.Sprintf("event %s has %d results; at most one is supported", ident.Name, sig.Results().Len())}
	}
	if dd, ok := ds["default"]; ok {
		d.Default = dd.Args
	}
	if dd, ok := ds["combiner"]; ok {
		d.Combiner = dd.Args
	}
	if dd, ok := ds["order"]; ok {
		typExpr := dd.fields()[0]
		tv, err := types.Eval(src.Fset, src.Pkg, ident.Pos(), typExpr)
		if err != nil || !tv.IsType() {
			return nil, dd.errorf("%s%s: %s is not a type", DirectivePrefix, "order", typExpr)
		}
		d.Order = &decl.Order{
			Type:    tv.Type,
			Compare: strings.TrimSpace(strings.TrimPrefix(dd.Args, typExpr)),
		}
	}
	if d.Default != "" || d.Combiner != "" || d.Order != nil {
		d.Imports = fileImports(src, f)
	}

	locs = locs.with(ds)
	if locs.pkg != nil {
		if d.Package, err = s.packageLocation(src, *locs.pkg, names); err != nil {
			return nil, err
		}
	}
	if locs.keys != nil {
		if d.Keys, err = s.keyLocation(src, *locs.keys, names); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// packageLocation resolves the arguments of a package directive.
func (s *Scanner) packageLocation(src *Source, d directive, names map[string]string) (decl.Package, error) {
	f := d.fields()
	p, err := resolveDir(src, f[0])
	if err != nil {
		return decl.Package{}, d.errorf("%v", err)
	}
	if len(f) > 1 {
		p.Name = f[1]
	} else {
		p.Name = packageName(src, p.Path, names)
	}
	return p, nil
}

// keyLocation resolves the arguments of a keys directive.
func (s *Scanner) keyLocation(src *Source, d directive, names map[string]string) (decl.KeyLocation, error) {
	f := d.fields()
	p, err := resolveDir(src, f[0])
	if err != nil {
		return decl.KeyLocation{}, d.errorf("%v", err)
	}
	p.Name = packageName(src, p.Path, names)
	return decl.KeyLocation{Package: p, Container: f[1]}, nil
}

// packageName returns the package name of the package at importPath: its
// loaded name if known, else the last path element.
func packageName(src *Source, importPath string, names map[string]string) string {
	if importPath == src.Pkg.Path() {
		return src.Pkg.Name()
	}
	if name, ok := names[importPath]; ok {
		return name
	}
	return path.Base(importPath)
}

// resolveDir returns the import path and directory named by dir, as seen
// from src. The package name is left empty.
func resolveDir(src *Source, dir string) (decl.Package, error) {
	p, err := locateDir(src, dir)
	if err != nil {
		return decl.Package{}, err
	}
	if err := module.CheckImportPath(p.Path); err != nil {
		return decl.Package{}, err
	}
	return p, nil
}

func locateDir(src *Source, dir string) (decl.Package, error) {
	if strings.HasPrefix(dir, ".") {
		abs := filepath.Join(src.Dir, filepath.FromSlash(dir))
		if src.Module == nil {
			return decl.Package{Path: path.Join(src.Pkg.Path(), dir), Dir: abs}, nil
		}
		rel, err := filepath.Rel(src.Module.Dir, abs)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return decl.Package{}, fmt.Errorf("%s is outside module %s", dir, src.Module.Path)
		}
		return decl.Package{Path: path.Join(src.Module.Path, filepath.ToSlash(rel)), Dir: abs}, nil
	}
	m := src.Module
	if m == nil {
		return decl.Package{}, fmt.Errorf("import path %s needs a module; use a relative directory", dir)
	}
	rest, ok := strings.CutPrefix(dir, m.Path)
	if !ok || (rest != "" && rest[0] != '/') {
		return decl.Package{}, fmt.Errorf("%s is outside module %s", dir, m.Path)
	}
	return decl.Package{Path: dir, Dir: filepath.Join(m.Dir, filepath.FromSlash(rest))}, nil
}
