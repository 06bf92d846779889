// Package threadgroup starts a thread-group's virtual users with
// paced ramp-up and enforces cooperative vs. immediate cancellation.
// VUs start at exact per-VU offsets (i * ramp/N) via time.Timer rather
// than a coarse polling ticker, to hold ramp-up pacing within tens of
// milliseconds, and fan out through golang.org/x/sync/errgroup.
package threadgroup

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Rixmerz/rmeter/internal/csvdata"
	"github.com/Rixmerz/rmeter/internal/httpdispatch"
	"github.com/Rixmerz/rmeter/internal/pipeline"
	"github.com/Rixmerz/rmeter/internal/plan"
	"github.com/Rixmerz/rmeter/internal/vars"
	"github.com/Rixmerz/rmeter/internal/vuser"
)

// GraceWindow bounds how long a cooperative stop waits for in-flight
// VUs before forcing cancellation.
const GraceWindow = 5 * time.Second

// Scheduler runs one enabled thread-group's virtual users.
type Scheduler struct {
	Group      plan.ThreadGroup
	Dispatcher *httpdispatch.Dispatcher
	CSV        *csvdata.Registry
	PlanScope  map[string]string
	Global     map[string]string
	OnResult   func(pipeline.Result)
	Logger     *zap.Logger

	active atomic.Int32
}

// ActiveVUs reports the number of VUs currently past their ramp-up offset
// and running, not yet terminated. Safe to call concurrently with Run.
func (s *Scheduler) ActiveVUs() int {
	return int(s.active.Load())
}

// Run starts Group.NumThreads VUs staggered by i*(ramp/N) seconds and
// blocks until every VU has terminated. ctx cancellation is an
// immediate force-stop. Closing stop is a cooperative stop: no VU
// begins a further iteration, and stragglers are force-cancelled after
// GraceWindow.
func (s *Scheduler) Run(ctx context.Context, stop <-chan struct{}) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	internalStop := make(chan struct{})
	done := make(chan struct{})
	go s.watchStop(ctx, stop, internalStop, done, cancel)

	base := vars.NewResolver(s.Global, s.PlanScope, vars.InitialValues(s.Group.Variables))
	requests := s.Group.EnabledRequests()
	groupStart := time.Now()

	n := s.Group.NumThreads
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		offset := rampOffset(i, n, s.Group.RampUpSeconds)
		vu := &vuser.VirtualUser{
			ID:         i,
			GroupName:  s.Group.Name,
			Loop:       s.Group.Loop,
			Requests:   requests,
			GroupStart: groupStart,
			Dispatcher: s.Dispatcher,
			CSV:        s.CSV,
			Base:       base,
			OnResult:   s.OnResult,
		}
		g.Go(func() (err error) {
			if !waitOffset(gctx, internalStop, offset) {
				return nil
			}
			s.active.Add(1)
			defer s.active.Add(-1)
			defer func() {
				if rec := recover(); rec != nil {
					if s.Logger != nil {
						s.Logger.Error("virtual user panicked",
							zap.String("group_id", s.Group.ID),
							zap.Int("vu_id", vu.ID),
							zap.Any("panic", rec))
					}
					err = fmt.Errorf("virtual user %d panicked: %v", vu.ID, rec)
				}
			}()
			vu.Run(gctx, internalStop)
			return nil
		})
	}

	err := g.Wait()
	close(done)
	return err
}

// watchStop translates a cooperative stop signal into internalStop,
// then force-cancels via cancel if the group hasn't finished within
// GraceWindow.
func (s *Scheduler) watchStop(ctx context.Context, stop <-chan struct{}, internalStop, done chan struct{}, cancel context.CancelFunc) {
	select {
	case <-ctx.Done():
		return
	case <-done:
		return
	case <-stop:
	}

	close(internalStop)
	select {
	case <-done:
	case <-time.After(GraceWindow):
		if s.Logger != nil {
			s.Logger.Warn("thread group grace window expired, forcing cancellation",
				zap.String("group_id", s.Group.ID))
		}
		cancel()
	}
}

// rampOffset returns VU i's start delay for a group of n threads
// ramping up over rampUpSeconds: i * (rampUpSeconds / n).
func rampOffset(i, n int, rampUpSeconds float64) time.Duration {
	if rampUpSeconds <= 0 || n <= 0 {
		return 0
	}
	secs := float64(i) * rampUpSeconds / float64(n)
	return time.Duration(secs * float64(time.Second))
}

// waitOffset blocks until offset elapses, returning false if ctx or
// stop fires first (in which case the VU never starts).
func waitOffset(ctx context.Context, stop <-chan struct{}, offset time.Duration) bool {
	if offset <= 0 {
		select {
		case <-ctx.Done():
			return false
		case <-stop:
			return false
		default:
			return true
		}
	}

	timer := time.NewTimer(offset)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	case <-stop:
		return false
	}
}
