// Package vars implements C1: a layered variable resolver and the
// ${name} template expansion used across URL, header, and body
// templates.
//
// A Resolver is an immutable stack of four scopes — iteration,
// thread-group, plan, global — consulted in that order so the
// innermost binding always wins. The iteration layer is the only one
// that changes during a run; thread-group/plan/global layers are
// shared read-only snapshots, following the layered-map design of
// github.com/georgi-georgiev/testmesh's internal/runner/context.go,
// narrowed to this closed four-layer stack with no magic built-ins
// (no ${UUID}, ${TIMESTAMP}, or step-output dot paths) since nothing
// downstream of this resolver needs them.
package vars

import "github.com/Rixmerz/rmeter/internal/plan"

// InitialValues turns a plan-declared variable list into the
// name->initial-value map a Resolver layer is built from.
func InitialValues(list []plan.Variable) map[string]string {
	out := make(map[string]string, len(list))
	for _, v := range list {
		out[v.Name] = v.Initial
	}
	return out
}

// ScopedValues is InitialValues narrowed to the variables declared at a
// single scope — used to split a plan's flat Variable list into its
// global and plan layers.
func ScopedValues(list []plan.Variable, scope plan.Scope) map[string]string {
	out := make(map[string]string)
	for _, v := range list {
		if v.Scope == scope {
			out[v.Name] = v.Initial
		}
	}
	return out
}

// Resolver resolves a variable name to its current string value by
// consulting scopes in order: iteration -> thread-group -> plan -> global.
type Resolver struct {
	iteration   map[string]string
	threadGroup map[string]string
	plan        map[string]string
	global      map[string]string
}

// NewResolver builds the base resolver for one thread-group, before any
// iteration has begun. The three outer layers are shared read-only for
// the lifetime of the run; callers must not mutate the maps passed in.
func NewResolver(global, planScope, threadGroup map[string]string) *Resolver {
	return &Resolver{
		iteration:   nil,
		threadGroup: threadGroup,
		plan:        planScope,
		global:      global,
	}
}

// WithIteration returns a new Resolver sharing this one's outer layers
// but with the iteration layer replaced. The VU owns the returned
// value and discards it at the end of the iteration — no layer is ever
// mutated in place, so concurrent VUs can safely share the same outer
// Resolver.
func (r *Resolver) WithIteration(bindings map[string]string) *Resolver {
	return &Resolver{
		iteration:   bindings,
		threadGroup: r.threadGroup,
		plan:        r.plan,
		global:      r.global,
	}
}

// WithExtra returns a new Resolver whose iteration layer is this one's
// iteration layer overlaid with extra (extra wins on key collision).
// Used to fold extractor results into the iteration scope mid-loop
// without disturbing the resolver any other request in the same
// iteration already captured.
func (r *Resolver) WithExtra(extra map[string]string) *Resolver {
	merged := make(map[string]string, len(r.iteration)+len(extra))
	for k, v := range r.iteration {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	return r.WithIteration(merged)
}

// Get resolves name against iteration -> thread-group -> plan -> global,
// in that order. The bool reports whether any scope defined it.
func (r *Resolver) Get(name string) (string, bool) {
	if v, ok := r.iteration[name]; ok {
		return v, true
	}
	if v, ok := r.threadGroup[name]; ok {
		return v, true
	}
	if v, ok := r.plan[name]; ok {
		return v, true
	}
	if v, ok := r.global[name]; ok {
		return v, true
	}
	return "", false
}
