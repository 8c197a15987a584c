// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package gen

import (
	"io"
	"text/template"
)

// The derived handlers of an event. Adapters return the event's default
// after forwarding to their view. Invokers call every handler in slice
// order and fold results with the combiner, seeded with the default.
// Deferred handlers hand the call to a scheduler and return the default
// immediately. Neither invokers nor deferred handlers can be ordered.
var behaviorTemplate = template.Must(template.New("behavior").Parse(`
// {{.Name}}Factory returns the factory of derived {{.Name}} handlers.
func {{.Name}}Factory() {{.Event}}.Factory[{{.Name}}, {{.Name}}View] {
	return {{.Lower}}Factory{}
}

type {{.Lower}}Factory struct{}

var _ {{.Event}}.Factory[{{.Name}}, {{.Name}}View] = {{.Lower}}Factory{}

func ({{.Lower}}Factory) Adapt(v {{.Name}}View) {{.Name}} {
	return {{.Lower}}Adapter{v}
}

func ({{.Lower}}Factory) Aggregate(handlers []{{.Name}}) {{.Name}} {
	return {{.Lower}}Invoker({{.Slices}}.Clone(handlers))
}

func ({{.Lower}}Factory) Defer(delegate {{.Name}}, s {{.Event}}.Scheduler) {{.Name}} {
	return {{.Lower}}Deferred{delegate, s}
}

type {{.Lower}}Adapter struct {
	v {{.Name}}View
}
{{- if .OrdType}}

func (x {{.Lower}}Adapter) Ord() {{.OrdType}} {
	return x.v.Ord()
}
{{- end}}

func (x {{.Lower}}Adapter) {{.Method}}({{.ImplParams}}){{if .Result}} {{.Result}}{{end}} {
{{- if .ViewPrep}}
{{.ViewPrep}}
{{- end}}
	x.v.{{.Method}}({{.ViewArgs}})
{{- if .Result}}
	return {{.Default}}
{{- end}}
}

type {{.Lower}}Invoker []{{.Name}}
{{- if .OrdType}}

func ({{.Lower}}Invoker) Ord() {{.OrdType}} {
	panic({{.Event}}.UnorderableError{Event: "{{.Name}}", Kind: "aggregate"})
}
{{- end}}

func (x {{.Lower}}Invoker) {{.Method}}({{.ImplParams}}){{if .Result}} {{.Result}}{{end}} {
{{- if .Result}}
	var res {{.Result}} = {{.Default}}
	for _, h := range x {
		r := h.{{.Method}}({{.Args}})
		res = {{.Combiner}}(res, r)
	}
	return res
{{- else}}
	for _, h := range x {
		h.{{.Method}}({{.Args}})
	}
{{- end}}
}

type {{.Lower}}Deferred struct {
	d {{.Name}}
	s {{.Event}}.Scheduler
}
{{- if .OrdType}}

func ({{.Lower}}Deferred) Ord() {{.OrdType}} {
	panic({{.Event}}.UnorderableError{Event: "{{.Name}}", Kind: "defer"})
}
{{- end}}

func (x {{.Lower}}Deferred) {{.Method}}({{.ImplParams}}){{if .Result}} {{.Result}}{{end}} {
	x.s(func() {
		x.d.{{.Method}}({{.Args}})
	})
{{- if .Result}}
	return {{.Default}}
{{- end}}
}
`))

// writeBehaviors writes the factory and the derived handler types of an
// event.
func writeBehaviors(w io.Writer, a *eventArgs) error {
	return behaviorTemplate.Execute(w, a)
}
