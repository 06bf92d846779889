package vuser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Rixmerz/rmeter/internal/csvdata"
	"github.com/Rixmerz/rmeter/internal/httpdispatch"
	"github.com/Rixmerz/rmeter/internal/pipeline"
	"github.com/Rixmerz/rmeter/internal/plan"
	"github.com/Rixmerz/rmeter/internal/vars"
)

func TestRunFiniteLoopEmitsExactlyNTimesRequestCount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	var results []pipeline.Result
	vu := &VirtualUser{
		ID:   1,
		Loop: plan.LoopCount{Kind: plan.LoopFinite, N: 3},
		Requests: []plan.Request{
			{ID: "r1", Method: plan.MethodGET, URL: srv.URL},
			{ID: "r2", Method: plan.MethodGET, URL: srv.URL},
		},
		GroupStart: time.Now(),
		Dispatcher: httpdispatch.New(0, 0),
		CSV:        csvdata.NewRegistry(&plan.Plan{}, zap.NewNop()),
		Base:       vars.NewResolver(nil, nil, nil),
		OnResult:   func(r pipeline.Result) { results = append(results, r) },
	}

	vu.Run(context.Background(), nil)

	require.Len(t, results, 6) // 3 iterations * 2 requests
}

func TestRunDurationLoopChecksBoundaryOnly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	var count int
	vu := &VirtualUser{
		ID:         1,
		Loop:       plan.LoopCount{Kind: plan.LoopDuration, Secs: 1},
		Requests:   []plan.Request{{ID: "r1", Method: plan.MethodGET, URL: srv.URL}},
		GroupStart: time.Now(),
		Dispatcher: httpdispatch.New(0, 0),
		CSV:        csvdata.NewRegistry(&plan.Plan{}, zap.NewNop()),
		Base:       vars.NewResolver(nil, nil, nil),
		OnResult:   func(r pipeline.Result) { count++ },
	}

	start := time.Now()
	vu.Run(context.Background(), nil)
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 1*time.Second)
	assert.Greater(t, count, 0)
}

func TestRunStoppingChannelStopsBeforeNextIteration(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	stopping := make(chan struct{})
	close(stopping)

	var count int
	vu := &VirtualUser{
		ID:         1,
		Loop:       plan.LoopCount{Kind: plan.LoopInfinite},
		Requests:   []plan.Request{{ID: "r1", Method: plan.MethodGET, URL: srv.URL}},
		GroupStart: time.Now(),
		Dispatcher: httpdispatch.New(0, 0),
		CSV:        csvdata.NewRegistry(&plan.Plan{}, zap.NewNop()),
		Base:       vars.NewResolver(nil, nil, nil),
		OnResult:   func(r pipeline.Result) { count++ },
	}

	vu.Run(context.Background(), stopping)
	assert.Equal(t, 0, count)
}

func TestRunForceStopDropsInFlightResult(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	defer close(block)

	ctx, cancel := context.WithCancel(context.Background())
	var count int
	vu := &VirtualUser{
		ID:         1,
		Loop:       plan.LoopCount{Kind: plan.LoopInfinite},
		Requests:   []plan.Request{{ID: "r1", Method: plan.MethodGET, URL: srv.URL}},
		GroupStart: time.Now(),
		Dispatcher: httpdispatch.New(0, 0),
		CSV:        csvdata.NewRegistry(&plan.Plan{}, zap.NewNop()),
		Base:       vars.NewResolver(nil, nil, nil),
		OnResult:   func(r pipeline.Result) { count++ },
	}

	done := make(chan struct{})
	go func() {
		vu.Run(ctx, nil)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	<-done

	assert.Equal(t, 0, count)
}
