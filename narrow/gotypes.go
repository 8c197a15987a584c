// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package narrow

import (
	"fmt"
	"go/types"
	"sync"
)

// InvalidViewError reports a view declaration naming something that cannot
// be a view: views must be defined (named) types.
type InvalidViewError struct {
	Type string // the declaring type
	View string // what it named
}

func (e *InvalidViewError) Error() string {
	return fmt.Sprintf("%s declares view %s, which is not a defined type", e.Type, e.View)
}

// TypesOracle is an [Oracle] over go/types.
//
// A parameter type is narrowable when it is a defined type N, an instance
// N[A...], or a pointer to either, and N has a view declared with Declare.
// Subtyping is Go assignability.
//
// A TypesOracle is safe for concurrent use once all views are declared.
type TypesOracle struct {
	views map[*types.TypeName]*types.TypeName

	mu   sync.Mutex // guards ctxt and serializes go/types queries
	ctxt *types.Context
}

var _ Oracle[types.Type] = (*TypesOracle)(nil)

// NewTypesOracle returns an oracle with no views declared.
func NewTypesOracle() *TypesOracle {
	return &TypesOracle{
		views: map[*types.TypeName]*types.TypeName{},
		ctxt:  types.NewContext(),
	}
}

// Declare records that typ declares view. For generic types, view names the
// generic view type, which is instantiated with typ's type arguments.
func (o *TypesOracle) Declare(typ, view *types.TypeName) {
	o.views[typ] = view
}

// Len reports the number of declared views.
func (o *TypesOracle) Len() int { return len(o.views) }

// namedOf returns the defined type behind t, looking through aliases and
// one level of pointer.
func namedOf(t types.Type) *types.Named {
	t = types.Unalias(t)
	if p, ok := t.(*types.Pointer); ok {
		t = types.Unalias(p.Elem())
	}
	n, _ := t.(*types.Named)
	return n
}

func (o *TypesOracle) Declared(t types.Type) (types.Type, bool, error) {
	n := namedOf(t)
	if n == nil {
		return nil, false, nil
	}
	view, ok := o.views[n.Origin().Obj()]
	if !ok {
		return nil, false, nil
	}
	vt := types.Unalias(view.Type())
	if _, ok := vt.(*types.Named); !ok {
		return nil, false, &InvalidViewError{Type: o.String(t), View: o.String(vt)}
	}
	return vt, true, nil
}

func (o *TypesOracle) Apply(view, t types.Type) (types.Type, error) {
	vn, ok := types.Unalias(view).(*types.Named)
	if !ok {
		return nil, &InvalidViewError{Type: o.String(t), View: o.String(view)}
	}
	tparams := vn.Origin().TypeParams()
	if tparams.Len() == 0 {
		return vn, nil
	}
	var targs []types.Type
	if n := namedOf(t); n != nil {
		for i := range n.TypeArgs().Len() {
			targs = append(targs, n.TypeArgs().At(i))
		}
	}
	if len(targs) != tparams.Len() {
		return nil, fmt.Errorf("view %s has %d type parameters but %s has %d type arguments",
			o.String(vn.Origin()), tparams.Len(), o.String(t), len(targs))
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	return types.Instantiate(o.ctxt, vn.Origin(), targs, true)
}

func (o *TypesOracle) IsSubtype(t, view types.Type) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return types.AssignableTo(t, view)
}

func (o *TypesOracle) String(t types.Type) string {
	return types.TypeString(t, nil)
}
