// Package vuser implements C7: one independent task per virtual user,
// iterating its group's enabled requests per the group's loop policy.
//
// Follows the loop structure of github.com/georgi-georgiev/testmesh's
// loadtest.LoadTester.runVirtualUser (internal/loadtest/load_tester.go),
// which also loops until cancelled or a count is reached, but replaces
// its continuous-flow-over-steps shape with a draw-CSV-once-per-iteration
// structure and duration-at-iteration-boundary termination, a distinction
// its ticker-driven loop does not make.
package vuser

import (
	"context"
	"time"

	"github.com/Rixmerz/rmeter/internal/csvdata"
	"github.com/Rixmerz/rmeter/internal/httpdispatch"
	"github.com/Rixmerz/rmeter/internal/pipeline"
	"github.com/Rixmerz/rmeter/internal/plan"
	"github.com/Rixmerz/rmeter/internal/vars"
)

// VirtualUser is one independent load-generating task.
type VirtualUser struct {
	ID         int
	GroupName  string
	Loop       plan.LoopCount
	Requests   []plan.Request // pre-filtered to Enabled == true, group order
	GroupStart time.Time

	Dispatcher *httpdispatch.Dispatcher
	CSV        *csvdata.Registry
	Base       *vars.Resolver // thread-group/plan/global layers already merged

	// OnResult, when set, is invoked once per emitted result event, in
	// request order. It must not block the VU for long; callers that
	// need buffering should do it themselves.
	OnResult func(pipeline.Result)
}

// Run executes iterations until the loop policy terminates the VU or
// either signal fires. ctx cancellation is a force-stop: a request
// already in flight is dropped without emitting a result event.
// stopping closing is a cooperative stop: the current iteration is
// never interrupted, but no further iteration begins.
func (vu *VirtualUser) Run(ctx context.Context, stopping <-chan struct{}) {
	iteration := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-stopping:
			return
		default:
		}

		if vu.loopDone(iteration) {
			return
		}

		csvBindings := vu.CSV.DrawAll(vu.ID)
		resolver := vu.Base.WithIteration(csvBindings)

		for _, req := range vu.Requests {
			if ctx.Err() != nil {
				return
			}

			result, bound := pipeline.Run(ctx, vu.Dispatcher, vu.GroupName, req, resolver)

			if ctx.Err() != nil {
				// force_stop fired while the request was in flight: drop
				// the partial attempt rather than report a spurious result.
				return
			}

			if vu.OnResult != nil {
				vu.OnResult(result)
			}
			resolver = resolver.WithExtra(bound)
		}

		iteration++
	}
}

func (vu *VirtualUser) loopDone(iteration int) bool {
	switch vu.Loop.Kind {
	case plan.LoopFinite:
		return iteration >= vu.Loop.N
	case plan.LoopDuration:
		return time.Since(vu.GroupStart) >= time.Duration(vu.Loop.Secs)*time.Second
	case plan.LoopInfinite:
		return false
	default:
		return true
	}
}
