package engine

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rixmerz/rmeter/internal/aggregator"
	"github.com/Rixmerz/rmeter/internal/events"
	"github.com/Rixmerz/rmeter/internal/httpdispatch"
	"github.com/Rixmerz/rmeter/internal/plan"
)

func testServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func onePlan(id, url string, loop plan.LoopCount) *plan.Plan {
	return &plan.Plan{
		ID:            id,
		Name:          "smoke",
		FormatVersion: 1,
		ThreadGroups: []plan.ThreadGroup{
			{
				ID:         "g1",
				Name:       "group-1",
				NumThreads: 2,
				Loop:       loop,
				Enabled:    true,
				Requests: []plan.Request{
					{ID: "r1", Name: "ping", Method: plan.MethodGET, URL: url, Enabled: true},
				},
			},
		},
	}
}

func newController(t *testing.T, lookup PlanLookup) (*Controller, *events.Hub) {
	t.Helper()
	hub := events.NewHub(nil)
	d := httpdispatch.New(0, 0)
	return New(lookup, d, hub, nil), hub
}

func TestStartPlanNotFound(t *testing.T) {
	c, _ := newController(t, func(string) (*plan.Plan, bool) { return nil, false })
	err := c.Start(t.Context(), "missing")
	require.Error(t, err)
	ee, ok := err.(*EngineError)
	require.True(t, ok)
	assert.Equal(t, ErrPlanNotFound, ee.Kind)
}

func TestStartPlanEmpty(t *testing.T) {
	p := &plan.Plan{ID: "p1"}
	c, _ := newController(t, func(string) (*plan.Plan, bool) { return p, true })
	err := c.Start(t.Context(), "p1")
	require.Error(t, err)
	assert.Equal(t, ErrPlanEmpty, err.(*EngineError).Kind)
}

func TestStartAlreadyRunningRejectsSecondStart(t *testing.T) {
	srv := testServer(t)
	p := onePlan("p1", srv.URL, plan.LoopCount{Kind: plan.LoopDuration, Secs: 1})
	c, _ := newController(t, func(string) (*plan.Plan, bool) { return p, true })

	require.NoError(t, c.Start(t.Context(), "p1"))
	err := c.Start(t.Context(), "p1")
	require.Error(t, err)
	assert.Equal(t, ErrAlreadyRunning, err.(*EngineError).Kind)

	require.NoError(t, c.ForceStop())
}

func TestFiniteRunReachesCompletedAndPublishesLifecycle(t *testing.T) {
	srv := testServer(t)
	p := onePlan("p1", srv.URL, plan.LoopCount{Kind: plan.LoopFinite, N: 3})
	c, hub := newController(t, func(string) (*plan.Plan, bool) { return p, true })

	sub, unsub := hub.Subscribe()
	defer unsub()

	require.NoError(t, c.Start(t.Context(), "p1"))
	runID := c.RunID()
	assert.NotEmpty(t, runID)

	var sawComplete bool
	var summary aggregator.Summary
	deadline := time.After(5 * time.Second)
	for !sawComplete {
		select {
		case e := <-sub:
			if e.Type == events.TestComplete {
				sawComplete = true
				summary = e.Data.(aggregator.Summary)
			}
		case <-deadline:
			t.Fatal("timed out waiting for test-complete")
		}
	}

	assert.Equal(t, runID, summary.RunID)
	assert.Equal(t, StatusCompleted, c.Status())

	require.NoError(t, c.Reset())
	assert.Equal(t, StatusIdle, c.Status())
}

func TestStopOnlyValidWhileRunning(t *testing.T) {
	c, _ := newController(t, func(string) (*plan.Plan, bool) { return nil, false })
	err := c.Stop()
	require.Error(t, err)
	assert.Equal(t, ErrNotRunning, err.(*EngineError).Kind)
}

func TestForceStopStopsInfiniteLoopPromptly(t *testing.T) {
	srv := testServer(t)
	p := onePlan("p1", srv.URL, plan.LoopCount{Kind: plan.LoopInfinite})
	c, hub := newController(t, func(string) (*plan.Plan, bool) { return p, true })

	sub, unsub := hub.Subscribe()
	defer unsub()

	require.NoError(t, c.Start(t.Context(), "p1"))
	time.Sleep(100 * time.Millisecond)

	start := time.Now()
	require.NoError(t, c.ForceStop())

	var sawComplete bool
	deadline := time.After(2 * time.Second)
	for !sawComplete {
		select {
		case e := <-sub:
			if e.Type == events.TestComplete {
				sawComplete = true
			}
		case <-deadline:
			t.Fatal("timed out waiting for test-complete after force_stop")
		}
	}
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, StatusCompleted, c.Status())
}

func TestProgressAndTimeSeriesAvailableDuringRun(t *testing.T) {
	srv := testServer(t)
	p := onePlan("p1", srv.URL, plan.LoopCount{Kind: plan.LoopDuration, Secs: 1})
	c, _ := newController(t, func(string) (*plan.Plan, bool) { return p, true })

	require.NoError(t, c.Start(t.Context(), "p1"))
	require.Eventually(t, func() bool {
		return c.Progress().CompletedRequests > 0
	}, 2*time.Second, 10*time.Millisecond)

	assert.NotNil(t, c.TimeSeries())
	require.NoError(t, c.ForceStop())
}

func TestProgressZeroValueBeforeAnyRun(t *testing.T) {
	c, _ := newController(t, func(string) (*plan.Plan, bool) { return nil, false })
	assert.Equal(t, int64(0), c.Progress().CompletedRequests)
	assert.Nil(t, c.TimeSeries())
}
