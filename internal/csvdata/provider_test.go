package csvdata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Rixmerz/rmeter/internal/plan"
)

func fiveRowSource(t *testing.T, sharing plan.SharingMode, recycle bool) *plan.CSVSource {
	t.Helper()
	src, err := ParseSource("users", sharing, recycle, "username,password\nu1,p1\nu2,p2\nu3,p3\nu4,p4\nu5,p5\n")
	require.NoError(t, err)
	return src
}

func TestProviderAllThreadsNoRecycleExhaustsAndReusesLast(t *testing.T) {
	src := fiveRowSource(t, plan.SharingAllThreads, false)
	p := NewProvider(src, zap.NewNop())

	var seen []string
	for i := 0; i < 10; i++ {
		b := p.Next(i % 3) // 3 VUs sharing one cursor
		seen = append(seen, b["username"])
	}

	assert.Equal(t, []string{"u1", "u2", "u3", "u4", "u5", "u5", "u5", "u5", "u5", "u5"}, seen)
}

func TestProviderAllThreadsRecycleWraps(t *testing.T) {
	src := fiveRowSource(t, plan.SharingAllThreads, true)
	p := NewProvider(src, zap.NewNop())

	var seen []string
	for i := 0; i < 7; i++ {
		seen = append(seen, p.Next(0)["username"])
	}
	assert.Equal(t, []string{"u1", "u2", "u3", "u4", "u5", "u1", "u2"}, seen)
}

func TestProviderPerThreadIndependentCursors(t *testing.T) {
	src := fiveRowSource(t, plan.SharingPerThread, false)
	p := NewProvider(src, zap.NewNop())

	vu0First := p.Next(0)["username"]
	vu1First := p.Next(1)["username"]
	vu0Second := p.Next(0)["username"]

	assert.Equal(t, "u1", vu0First)
	assert.Equal(t, "u1", vu1First, "per_thread VUs each start at row 0")
	assert.Equal(t, "u2", vu0Second)
}

func TestRegistryDrawAllMergesAcrossSources(t *testing.T) {
	p := &plan.Plan{
		CSVSources: []plan.CSVSource{
			*fiveRowSource(t, plan.SharingAllThreads, true),
		},
	}
	reg := NewRegistry(p, zap.NewNop())
	b := reg.DrawAll(0)
	assert.Equal(t, "u1", b["username"])
	assert.Equal(t, "p1", b["password"])
}

func TestParseSourceRejectsRaggedRows(t *testing.T) {
	_, err := ParseSource("bad", plan.SharingAllThreads, false, "a,b\n1,2\n3\n")
	require.Error(t, err)
}
