// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package gen

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/tailscale/evgen/decl"
	"github.com/tailscale/evgen/util/codegen"
)

// container is a key location with the events keyed in it, in
// declaration order.
type container struct {
	loc   decl.KeyLocation
	decls []*decl.Decl
}

// groupKeys groups decls by key location, preserving the order in which
// locations and events first appear. Key names must be unique within a
// location.
func groupKeys(decls []*decl.Decl) ([]*container, error) {
	var out []*container
	byLoc := map[decl.KeyLocation]*container{}
	owner := map[decl.KeyLocation]map[string]*decl.Decl{}
	for _, d := range decls {
		c, ok := byLoc[d.Keys]
		if !ok {
			c = &container{loc: d.Keys}
			byLoc[d.Keys] = c
			owner[d.Keys] = map[string]*decl.Decl{}
			out = append(out, c)
		}
		key := decl.KeyName(d.Name)
		if prev, dup := owner[d.Keys][key]; dup {
			return nil, &DuplicateKeyError{
				Container: d.Keys.String(),
				Key:       key,
				Events:    [2]string{qualified(prev), qualified(d)},
			}
		}
		owner[d.Keys][key] = d
		c.decls = append(c.decls, d)
	}
	return out, nil
}

func qualified(d *decl.Decl) string {
	return d.Package.Path + "." + d.Name
}

type keyArgs struct {
	Name  string // e.g. "DAMAGE_KEY"
	Var   string // unexported var holding the key
	Event string
	Full  string
	View  string
	Init  string // expression constructing the key
}

type containerArgs struct {
	Container string
	Type      string
	Pkg       string // local name of the event package
	Keys      []keyArgs
}

// Keys are held in unexported vars. The container only has accessors.
var keysTemplate = template.Must(template.New("keys").Parse(`
// {{.Type}} is the type of {{.Container}}.
type {{.Type}} struct{}

// {{.Container}} holds the key of every event kind keyed here.
var {{.Container}} {{.Type}}

var (
{{- range .Keys}}
	{{.Var}} = {{.Init}}
{{- end}}
)
{{range .Keys}}
// {{.Name}} returns the key of {{.Event}}.
func ({{$.Type}}) {{.Name}}() {{$.Pkg}}.Key[{{.Full}}, {{.View}}] { return {{.Var}} }
{{end}}`))

// keyFile emits the key container c.
func (g *Generator) keyFile(c *container) (File, error) {
	loc := c.loc
	it := codegen.NewImportTracker(loc.Path)
	args := containerArgs{
		Container: loc.Container,
		Type:      decl.LowerCamel(loc.Container) + "Keys",
		Pkg:       it.Import(eventPkg),
	}
	var events []string
	for _, d := range c.decls {
		k := keyArgs{
			Name:  decl.KeyName(d.Name),
			Var:   decl.LowerCamel(loc.Container) + d.Name + "Key",
			Event: d.Name,
			Full:  it.Ref(d.Package.Path, d.Package.Name, d.Name),
			View:  it.Ref(d.Package.Path, d.Package.Name, d.Name+"View"),
		}
		k.Init = fmt.Sprintf("%s.NewKey[%s, %s]()", args.Pkg, k.Full, k.View)
		if d.Ordered() {
			if err := importExprs(it, d.Imports, d.Order.Compare); err != nil {
				return File{}, fmt.Errorf("%v: event %s: compare: %w", d.Pos, d.Name, err)
			}
			cmpFunc, err := comparator(d, k.Full, it)
			if err != nil {
				return File{}, fmt.Errorf("%v: event %s: compare: %w", d.Pos, d.Name, err)
			}
			k.Init = fmt.Sprintf("%s.NewOrderedKey[%s, %s](%s)", args.Pkg, k.Full, k.View, cmpFunc)
		}
		args.Keys = append(args.Keys, k)
		events = append(events, d.Name)
	}

	body := new(bytes.Buffer)
	if err := keysTemplate.Execute(body, args); err != nil {
		return File{}, err
	}
	path := g.keyPath(loc)
	src, err := g.format(path, loc.Name, it, body)
	if err != nil {
		return File{}, err
	}
	return File{Path: path, Package: loc.Package, Source: src, Events: events}, nil
}

// comparator returns a func literal comparing two handlers of type full by
// their Ord values.
func comparator(d *decl.Decl, full string, it *codegen.ImportTracker) (string, error) {
	var compare string
	if strings.TrimSpace(d.Order.Compare) == "" {
		compare = it.Import("cmp") + ".Compare"
	} else {
		var err error
		if compare, err = decl.Expr(d.Order.Compare); err != nil {
			return "", err
		}
	}
	return fmt.Sprintf("func(a, b %s) int { return %s(a.Ord(), b.Ord()) }", full, compare), nil
}
