package csvdata

import (
	"go.uber.org/zap"

	"github.com/Rixmerz/rmeter/internal/plan"
)

// Registry holds one Provider per CSV source declared on a plan.
type Registry struct {
	providers map[string]*Provider
}

// NewRegistry builds a Registry covering every CSV source on the plan.
func NewRegistry(p *plan.Plan, logger *zap.Logger) *Registry {
	reg := &Registry{providers: make(map[string]*Provider, len(p.CSVSources))}
	for i := range p.CSVSources {
		src := &p.CSVSources[i]
		reg.providers[src.Name] = NewProvider(src, logger)
	}
	return reg
}

// DrawAll draws one row from every registered source for the given VU,
// merging all column bindings into a single map — the iteration-scope
// seed for one loop iteration.
func (reg *Registry) DrawAll(vuID int) map[string]string {
	out := make(map[string]string)
	for _, p := range reg.providers {
		for k, v := range p.Next(vuID) {
			out[k] = v
		}
	}
	return out
}
