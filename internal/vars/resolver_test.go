package vars

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Rixmerz/rmeter/internal/plan"
)

func TestInitialValues(t *testing.T) {
	list := []plan.Variable{
		{Name: "a", Initial: "1", Scope: plan.ScopeGlobal},
		{Name: "b", Initial: "2", Scope: plan.ScopePlan},
	}
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, InitialValues(list))
}

func TestScopedValuesFiltersByScope(t *testing.T) {
	list := []plan.Variable{
		{Name: "g1", Initial: "gv1", Scope: plan.ScopeGlobal},
		{Name: "p1", Initial: "pv1", Scope: plan.ScopePlan},
		{Name: "t1", Initial: "tv1", Scope: plan.ScopeThreadGroup},
	}

	assert.Equal(t, map[string]string{"g1": "gv1"}, ScopedValues(list, plan.ScopeGlobal))
	assert.Equal(t, map[string]string{"p1": "pv1"}, ScopedValues(list, plan.ScopePlan))
	assert.Equal(t, map[string]string{"t1": "tv1"}, ScopedValues(list, plan.ScopeThreadGroup))
}

func TestScopedValuesEmptyWhenNoneMatch(t *testing.T) {
	list := []plan.Variable{{Name: "g1", Initial: "gv1", Scope: plan.ScopeGlobal}}
	assert.Empty(t, ScopedValues(list, plan.ScopeThreadGroup))
}

func TestGetReturnsFalseForUndefined(t *testing.T) {
	r := NewResolver(nil, nil, nil)
	v, ok := r.Get("nope")
	assert.False(t, ok)
	assert.Empty(t, v)
}

func TestGetPrecedenceMatchesExpand(t *testing.T) {
	r := resolverFixture()
	v, ok := r.Get("shared")
	assert.True(t, ok)
	assert.Equal(t, "iter-shared", v)
}

func TestWithExtraOverlaysIterationWithoutMutatingParent(t *testing.T) {
	base := NewResolver(nil, nil, nil).WithIteration(map[string]string{"a": "1"})
	extended := base.WithExtra(map[string]string{"b": "2", "a": "override"})

	a, _ := extended.Get("a")
	b, _ := extended.Get("b")
	assert.Equal(t, "override", a)
	assert.Equal(t, "2", b)

	baseA, _ := base.Get("a")
	_, baseHasB := base.Get("b")
	assert.Equal(t, "1", baseA)
	assert.False(t, baseHasB)
}
