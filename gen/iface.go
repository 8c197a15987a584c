// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package gen

import (
	"fmt"
	"go/types"
	"io"
	"strings"
	"text/template"

	"github.com/tailscale/evgen/decl"
	"github.com/tailscale/evgen/util/codegen"
)

// eventArgs is what the event templates need to know about a declaration,
// with every type already qualified for the output package.
type eventArgs struct {
	Name   string // event name, e.g. "Damage"
	Lower  string // prefix of unexported type names, e.g. "damage"
	Method string // handler method, e.g. "OnDamage"

	Params     string // declared parameters of the full handler
	ViewParams string // declared parameters of the view handler
	ImplParams string // parameters as a0..an
	Args       string // a0..an as call arguments
	ViewPrep   string // statements run before calling a view, or ""
	ViewArgs   string // arguments passed to a view

	Result   string // "" for void events
	Default  string // gofmt form of Decl.Default
	Combiner string // gofmt form of Decl.Combiner
	OrdType  string // "" for unordered events

	Event  string // local name of the event package
	Slices string // local name of the slices package
}

// HandlerMethod returns the name of the handler method of the event name.
func HandlerMethod(name string) string {
	return "On" + name
}

func newEventArgs(d *decl.Decl, views []types.Type, it *codegen.ImportTracker) *eventArgs {
	a := &eventArgs{
		Name:   d.Name,
		Lower:  decl.LowerCamel(d.Name),
		Method: HandlerMethod(d.Name),
		Event:  it.Import(eventPkg),
		Slices: it.Import("slices"),
	}
	if !d.Void() {
		a.Result = it.QualifiedName(d.Result)
	}
	if d.Ordered() {
		a.OrdType = it.QualifiedName(d.Order.Type)
	}

	n := len(d.Params)
	var (
		params     = make([]string, n)
		viewParams = make([]string, n)
		implParams = make([]string, n)
		args       = make([]string, n)
		viewArgs   = make([]string, n)
	)
	for i, p := range d.Params {
		full, view := it.QualifiedName(p.Type), it.QualifiedName(views[i])
		arg := fmt.Sprintf("a%d", i)
		variadic := d.Variadic && i == n-1
		if variadic {
			full = "..." + strings.TrimPrefix(full, "[]")
			view = "..." + strings.TrimPrefix(view, "[]")
		}
		params[i] = declParam(p.Name, full)
		viewParams[i] = declParam(p.Name, view)
		implParams[i] = arg + " " + full
		args[i] = arg
		viewArgs[i] = arg
		if variadic {
			args[i] = arg + "..."
			viewArgs[i] = arg + "..."
			if full != view {
				// []T does not convert to []V; copy element-wise.
				elem := strings.TrimPrefix(view, "...")
				a.ViewPrep = fmt.Sprintf("\tvs := make([]%s, len(%s))\n\tfor i, e := range %s {\n\t\tvs[i] = e\n\t}", elem, arg, arg)
				viewArgs[i] = "vs..."
			}
		}
	}
	a.Params = strings.Join(params, ", ")
	a.ViewParams = strings.Join(viewParams, ", ")
	a.ImplParams = strings.Join(implParams, ", ")
	a.Args = strings.Join(args, ", ")
	a.ViewArgs = strings.Join(viewArgs, ", ")
	return a
}

func declParam(name, typ string) string {
	if name == "" {
		return typ
	}
	return name + " " + typ
}

var ifaceTemplate = template.Must(template.New("iface").Parse(`
// {{.Name}} is implemented by handlers of the {{.Name}} event.
type {{.Name}} interface {
{{- if .OrdType}}
	Ord() {{.OrdType}}
{{- end}}
	{{.Method}}({{.Params}}){{if .Result}} {{.Result}}{{end}}
}

// {{.Name}}View is implemented by handlers that only observe {{.Name}}
// events. {{.Name}}Factory().Adapt turns one into a {{.Name}}.
type {{.Name}}View interface {
{{- if .OrdType}}
	Ord() {{.OrdType}}
{{- end}}
	{{.Method}}({{.ViewParams}})
}
`))

// writeInterfaces writes the full and view interfaces of an event.
func writeInterfaces(w io.Writer, a *eventArgs) error {
	return ifaceTemplate.Execute(w, a)
}
