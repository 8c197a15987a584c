// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// Package codegen contains shared utilities for generating code.
package codegen

import (
	"bytes"
	"errors"
	"fmt"
	"go/types"
	"io"
	"path"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/afero"
	"github.com/tailscale/evgen/atomicfile"
	"golang.org/x/tools/go/packages"
	"golang.org/x/tools/imports"
)

// LoadMode is the go/packages mode LoadPackages uses. Dependencies are
// loaded from source so that directives on their type declarations are
// visible.
const LoadMode = packages.NeedName |
	packages.NeedFiles |
	packages.NeedImports |
	packages.NeedDeps |
	packages.NeedTypes |
	packages.NeedTypesInfo |
	packages.NeedSyntax |
	packages.NeedModule

// LoadPackages loads the packages matching patterns, with their
// dependencies, using buildTags (comma-separated) if non-empty. Package
// errors are joined into the returned error.
func LoadPackages(dir, buildTags string, patterns ...string) ([]*packages.Package, error) {
	cfg := &packages.Config{
		Mode: LoadMode,
		Dir:  dir,
	}
	if buildTags != "" {
		cfg.BuildFlags = []string{"-tags=" + buildTags}
	}
	if len(patterns) == 0 {
		patterns = []string{"."}
	}
	pkgs, err := packages.Load(cfg, patterns...)
	if err != nil {
		return nil, err
	}
	var errs []error
	packages.Visit(pkgs, nil, func(p *packages.Package) {
		for _, e := range p.Errors {
			errs = append(errs, e)
		}
	})
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return pkgs, nil
}

// NewImportTracker returns a new ImportTracker for code that will live in
// the package with import path thisPkg.
func NewImportTracker(thisPkg string) *ImportTracker {
	return &ImportTracker{
		thisPkg:  thisPkg,
		packages: map[string]string{},
		names:    map[string]string{},
	}
}

// ImportTracker provides a mechanism to track and build import paths.
//
// Two imported packages with the same name get distinct local names: the
// first keeps its name, later ones get a numeric suffix.
type ImportTracker struct {
	thisPkg  string
	packages map[string]string // import path -> local name
	names    map[string]string // local name -> import path
}

// Import records pkg (an import path) under its last path element and
// returns the local name to refer to it by.
func (it *ImportTracker) Import(pkg string) string {
	return it.ImportNamed(pkg, path.Base(pkg))
}

// ImportNamed records the package at import path pkg whose package name
// is name, and returns the local name to refer to it by. It returns ""
// for the tracker's own package.
func (it *ImportTracker) ImportNamed(pkg, name string) string {
	if pkg == "" || pkg == it.thisPkg {
		return ""
	}
	if local, ok := it.packages[pkg]; ok {
		return local
	}
	local := name
	for i := 2; ; i++ {
		if _, taken := it.names[local]; !taken {
			break
		}
		local = name + strconv.Itoa(i)
	}
	it.packages[pkg] = local
	it.names[local] = pkg
	return local
}

// Has reports whether the specified package path has been imported.
func (it *ImportTracker) Has(pkg string) bool {
	_, ok := it.packages[pkg]
	return ok
}

// Ref returns a reference to the identifier name declared in the package
// with import path pkg and package name pkgName, importing it if needed.
func (it *ImportTracker) Ref(pkg, pkgName, name string) string {
	if local := it.ImportNamed(pkg, pkgName); local != "" {
		return local + "." + name
	}
	return name
}

func (it *ImportTracker) qualifier(pkg *types.Package) string {
	return it.ImportNamed(pkg.Path(), pkg.Name())
}

// QualifiedName returns the string representation of t in the package
// for which it was created.
func (it *ImportTracker) QualifiedName(t types.Type) string {
	return types.TypeString(t, it.qualifier)
}

// Write prints all the tracked imports in a single import block to w.
func (it *ImportTracker) Write(w io.Writer) {
	if len(it.packages) == 0 {
		return
	}
	paths := make([]string, 0, len(it.packages))
	for p := range it.packages {
		paths = append(paths, p)
	}
	slices.Sort(paths)
	fmt.Fprintf(w, "import (\n")
	for _, p := range paths {
		if local := it.packages[p]; local != path.Base(p) {
			fmt.Fprintf(w, "\t%s %q\n", local, p)
		} else {
			fmt.Fprintf(w, "\t%q\n", p)
		}
	}
	fmt.Fprintf(w, ")\n\n")
}

const genAndPackageHeader = `// Code generated by %v; DO NOT EDIT.

package %s

`

// Source assembles a complete Go source file: the license header (may be
// empty), the generated-code marker naming tool, the package clause, the
// imports recorded by it and contents.
func Source(license, tool, pkgName string, it *ImportTracker, contents []byte) []byte {
	buf := new(bytes.Buffer)
	if license != "" {
		buf.WriteString(strings.TrimRight(license, "\n"))
		buf.WriteString("\n\n")
	}
	fmt.Fprintf(buf, genAndPackageHeader, tool, pkgName)
	it.Write(buf)
	buf.Write(contents)
	return buf.Bytes()
}

// Format gofmts code the way goimports does, without touching its imports.
// filename is only used in errors. On failure it returns code unchanged
// along with the error.
func Format(filename string, code []byte) ([]byte, error) {
	out, err := imports.Process(filename, code, &imports.Options{
		Comments:   true,
		TabIndent:  true,
		TabWidth:   8,
		FormatOnly: true,
	})
	if err != nil {
		// Parse errors already carry the file name.
		if strings.HasPrefix(err.Error(), filename+":") {
			return code, err
		}
		return code, fmt.Errorf("%s: %w", filename, err)
	}
	return out, nil
}

// WriteFormatted writes code to path on fs.
// It runs gofmt on it before writing;
// if gofmt fails, it writes code unchanged.
// Errors can include I/O errors and gofmt errors.
//
// The advantage of always writing code to path,
// even if gofmt fails, is that it makes debugging easier.
// The code can be long, but you need it in order to debug.
// It is nicer to work with it in a file than a terminal.
// It is also easier to interpret gofmt errors
// with an editor providing file and line numbers.
func WriteFormatted(fs afero.Fs, code []byte, path string) error {
	out, fmterr := Format(path, code)
	ioerr := atomicfile.WriteFile(fs, path, out, 0644)
	// Prefer I/O errors. They're usually easier to fix,
	// and until they're fixed you can't do much else.
	if ioerr != nil {
		return ioerr
	}
	return fmterr
}
