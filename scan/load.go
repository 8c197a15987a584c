// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package scan

import (
	"path/filepath"

	"github.com/tailscale/evgen/util/codegen"
	"golang.org/x/tools/go/packages"
)

// Load loads the packages matching patterns, relative to dir, and returns
// them as roots along with every module dependency they reach. Standard
// library packages are not returned as dependencies; they declare no views.
func Load(dir, buildTags string, patterns ...string) (roots, deps []*Source, err error) {
	pkgs, err := codegen.LoadPackages(dir, buildTags, patterns...)
	if err != nil {
		return nil, nil, err
	}
	isRoot := map[*packages.Package]bool{}
	for _, p := range pkgs {
		isRoot[p] = true
		roots = append(roots, FromPackage(p))
	}
	packages.Visit(pkgs, nil, func(p *packages.Package) {
		if isRoot[p] || p.Module == nil || p.Types == nil || p.TypesInfo == nil {
			return
		}
		deps = append(deps, FromPackage(p))
	})
	return roots, deps, nil
}

// FromPackage returns the Source of a package loaded with codegen.LoadMode.
func FromPackage(p *packages.Package) *Source {
	src := &Source{
		Fset:  p.Fset,
		Files: p.Syntax,
		Pkg:   p.Types,
		Info:  p.TypesInfo,
	}
	if len(p.GoFiles) > 0 {
		src.Dir = filepath.Dir(p.GoFiles[0])
	}
	if p.Module != nil {
		src.Module = &Module{Path: p.Module.Path, Dir: p.Module.Dir}
	}
	return src
}
