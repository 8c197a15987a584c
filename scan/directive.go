// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package scan

import (
	"fmt"
	"go/ast"
	"go/token"
	"slices"
	"strings"
)

// DirectivePrefix starts every evgen directive comment.
const DirectivePrefix = "//evgen:"

// DirectiveError reports a malformed or misplaced directive, or a
// declaration evgen cannot generate code for.
type DirectiveError struct {
	Pos token.Position
	Msg string
}

func (e *DirectiveError) Error() string {
	return fmt.Sprintf("%v: %s", e.Pos, e.Msg)
}

// level is where a directive appears.
type level int

const (
	packageLevel level = iota // package clause doc
	typeLevel                 // type declaration doc
	methodLevel               // interface method doc
)

func (l level) String() string {
	switch l {
	case packageLevel:
		return "package"
	case typeLevel:
		return "type"
	default:
		return "method"
	}
}

// verbSpec is the placement and arity of a directive verb. A max of -1
// means the arguments are one free-form Go expression.
type verbSpec struct {
	levels   []level
	min, max int
}

var verbs = map[string]verbSpec{
	"events":   {levels: []level{typeLevel}, min: 0, max: 0},
	"view":     {levels: []level{typeLevel}, min: 1, max: 1},
	"package":  {levels: []level{packageLevel, typeLevel, methodLevel}, min: 1, max: 2},
	"keys":     {levels: []level{packageLevel, typeLevel, methodLevel}, min: 2, max: 2},
	"default":  {levels: []level{methodLevel}, min: 1, max: -1},
	"combiner": {levels: []level{methodLevel}, min: 1, max: -1},
	"order":    {levels: []level{methodLevel}, min: 1, max: -1},
}

type directive struct {
	Pos  token.Position
	Verb string
	Args string // everything after the verb, trimmed
}

func (d directive) fields() []string { return strings.Fields(d.Args) }

func (d directive) errorf(format string, args ...any) error {
	return &DirectiveError{Pos: d.Pos, Msg: fmt.Sprintf(format, args...)}
}

// directives is the set of directives found in one comment group.
type directives map[string]directive

// has reports whether verb is present.
func (ds directives) has(verb string) bool {
	_, ok := ds[verb]
	return ok
}

// parseDirectives extracts the evgen directives of cg, which appears at
// level lvl. The raw comment list is read because CommentGroup.Text drops
// directive lines.
func parseDirectives(fset *token.FileSet, cg *ast.CommentGroup, lvl level) (directives, error) {
	if cg == nil {
		return nil, nil
	}
	var ds directives
	for _, c := range cg.List {
		text, ok := strings.CutPrefix(c.Text, DirectivePrefix)
		if !ok {
			continue
		}
		verb, args, _ := strings.Cut(text, " ")
		d := directive{
			Pos:  fset.Position(c.Slash),
			Verb: verb,
			Args: strings.TrimSpace(args),
		}
		spec, ok := verbs[verb]
		if !ok {
			return nil, d.errorf("unknown directive %s%s", DirectivePrefix, verb)
		}
		if !slices.Contains(spec.levels, lvl) {
			return nil, d.errorf("%s%s is not allowed in %s documentation", DirectivePrefix, verb, lvl)
		}
		n := len(d.fields())
		if n < spec.min || (spec.max >= 0 && n > spec.max) {
			return nil, d.errorf("%s%s: wrong number of arguments (%d)", DirectivePrefix, verb, n)
		}
		if ds == nil {
			ds = directives{}
		}
		if prev, dup := ds[verb]; dup {
			return nil, d.errorf("%s%s repeated; first at %v", DirectivePrefix, verb, prev.Pos)
		}
		ds[verb] = d
	}
	return ds, nil
}
