// Package engine implements C9: the single state machine that owns one
// run at a time, spawning a threadgroup.Scheduler per enabled thread-group
// and folding every result into the live aggregator and event stream.
//
// The error taxonomy (AlreadyRunning, PlanNotFound, PlanEmpty, Validation,
// NotRunning) follows the shape of github.com/georgi-georgiev/testmesh's
// runner/errors.go tagged error structs, narrowed to the single
// EngineError{Kind, Message} shape the control surface needs.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Rixmerz/rmeter/internal/aggregator"
	"github.com/Rixmerz/rmeter/internal/csvdata"
	"github.com/Rixmerz/rmeter/internal/events"
	"github.com/Rixmerz/rmeter/internal/httpdispatch"
	"github.com/Rixmerz/rmeter/internal/pipeline"
	"github.com/Rixmerz/rmeter/internal/plan"
	"github.com/Rixmerz/rmeter/internal/threadgroup"
	"github.com/Rixmerz/rmeter/internal/vars"
)

// Status is the engine's current state in the
// idle -> running -> stopping -> completed/error -> idle state machine.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusStopping  Status = "stopping"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

// ErrorKind discriminates the closed set of user-visible engine failures.
type ErrorKind string

const (
	ErrAlreadyRunning ErrorKind = "AlreadyRunning"
	ErrPlanNotFound   ErrorKind = "PlanNotFound"
	ErrPlanEmpty      ErrorKind = "PlanEmpty"
	ErrValidation     ErrorKind = "Validation"
	ErrNotRunning     ErrorKind = "NotRunning"
)

// EngineError is the single user-visible failure shape; the host maps
// Kind to presentation.
type EngineError struct {
	Kind    ErrorKind
	Message string
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func newError(kind ErrorKind, format string, args ...interface{}) *EngineError {
	return &EngineError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// PlanLookup resolves a plan_id to the plan the host holds externally.
// The engine never persists or mutates plans itself.
type PlanLookup func(planID string) (*plan.Plan, bool)

// run holds everything created at start() and torn down at reset().
type run struct {
	runID      string
	planID     string
	planName   string
	cancel     context.CancelFunc
	stop       chan struct{}
	stopOnce   sync.Once
	aggregator *aggregator.Aggregator
	schedulers []*threadgroup.Scheduler
	startedAt  time.Time
	finishedAt time.Time
	done       chan struct{} // closed once every scheduler has returned
}

// Controller is the engine's state machine. At most one run is active at
// any time; Controller.mu serializes every state transition.
type Controller struct {
	mu     sync.Mutex
	status Status
	errMsg string
	r      *run

	lookup     PlanLookup
	dispatcher *httpdispatch.Dispatcher
	hub        *events.Hub
	logger     *zap.Logger
}

// New builds an idle Controller. dispatcher is shared across every
// scheduler the controller ever spawns.
func New(lookup PlanLookup, dispatcher *httpdispatch.Dispatcher, hub *events.Hub, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		status:     StatusIdle,
		lookup:     lookup,
		dispatcher: dispatcher,
		hub:        hub,
		logger:     logger,
	}
}

// Status reports the engine's current state.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Start validates planID against the lookup and, on success, spawns one
// scheduler per enabled thread-group concurrently and returns immediately.
func (c *Controller) Start(ctx context.Context, planID string) error {
	c.mu.Lock()

	if c.status != StatusIdle {
		c.mu.Unlock()
		return newError(ErrAlreadyRunning, "engine is %s, call reset() before starting a new run", c.status)
	}

	p, ok := c.lookup(planID)
	if !ok {
		c.mu.Unlock()
		return newError(ErrPlanNotFound, "no plan with id %q", planID)
	}
	if !p.HasWork() {
		c.mu.Unlock()
		return newError(ErrPlanEmpty, "plan %q has no enabled thread-group with an enabled request", planID)
	}
	if errs := plan.ValidateSemantics(p); len(errs) > 0 {
		c.mu.Unlock()
		return newError(ErrValidation, "%s", multierr.Combine(errs...).Error())
	}

	runCtx, cancel := context.WithCancel(ctx)
	r := &run{
		runID:     uuid.NewString(),
		planID:    p.ID,
		planName:  p.Name,
		cancel:    cancel,
		stop:      make(chan struct{}),
		startedAt: time.Now(),
		done:      make(chan struct{}),
	}
	r.aggregator = aggregator.New(r.startedAt, func() int { return c.activeVUs(r) })

	csvReg := csvdata.NewRegistry(p, c.logger)
	global := vars.ScopedValues(p.Variables, plan.ScopeGlobal)
	planScope := vars.ScopedValues(p.Variables, plan.ScopePlan)

	enabled := p.EnabledGroups()
	r.schedulers = make([]*threadgroup.Scheduler, len(enabled))
	for i, g := range enabled {
		r.schedulers[i] = &threadgroup.Scheduler{
			Group:      g,
			Dispatcher: c.dispatcher,
			CSV:        csvReg,
			PlanScope:  planScope,
			Global:     global,
			OnResult:   c.onResult(r),
			Logger:     c.logger,
		}
	}

	c.r = r
	c.status = StatusRunning
	c.mu.Unlock()

	c.publishStatus(r.runID, StatusRunning, "")
	go c.runSchedulers(runCtx, r)
	return nil
}

// activeVUs sums the active VU count across every scheduler of the
// current run. Called from the aggregator on every Progress() read.
func (c *Controller) activeVUs(r *run) int {
	total := 0
	for _, s := range r.schedulers {
		total += s.ActiveVUs()
	}
	return total
}

// onResult folds one request result into the aggregator and publishes it
// as a test-result event.
func (c *Controller) onResult(r *run) func(pipeline.Result) {
	return func(result pipeline.Result) {
		r.aggregator.Record(result)
		c.hub.Publish(events.Event{Type: events.TestResult, Data: result})
	}
}

// runSchedulers waits for every scheduler in r to finish, then transitions
// the engine out of running/stopping and publishes exactly one
// test-complete event, whatever the outcome.
func (c *Controller) runSchedulers(ctx context.Context, r *run) {
	g, gctx := errgroup.WithContext(ctx)
	for _, s := range r.schedulers {
		s := s
		g.Go(func() (err error) {
			defer func() {
				if rec := recover(); rec != nil {
					c.logger.Error("scheduler task panicked",
						zap.String("group_id", s.Group.ID),
						zap.Any("panic", rec))
					err = fmt.Errorf("scheduler %q panicked: %v", s.Group.ID, rec)
				}
			}()
			return s.Run(gctx, r.stop)
		})
	}
	err := g.Wait()
	close(r.done)

	c.mu.Lock()
	r.finishedAt = time.Now()
	if err != nil {
		c.status = StatusError
		c.errMsg = err.Error()
	} else {
		c.status = StatusCompleted
	}
	final := c.status
	msg := c.errMsg
	c.mu.Unlock()

	c.publishStatus(r.runID, final, msg)
	c.hub.Publish(events.Event{
		Type: events.TestComplete,
		Data: r.aggregator.Summary(r.runID, r.planID, r.planName, r.finishedAt),
	})
}

// Stop requests cooperative cancellation: no VU begins a further
// iteration, but in-flight requests are allowed to finish.
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status != StatusRunning {
		return newError(ErrNotRunning, "engine is %s, not running", c.status)
	}

	c.status = StatusStopping
	r := c.r
	r.stopOnce.Do(func() { close(r.stop) })
	go c.publishStatus(r.runID, StatusStopping, "")
	return nil
}

// ForceStop cancels the run immediately, dropping in-flight requests.
// runSchedulers still publishes the single test-complete event once the
// cancelled schedulers unwind, carrying whatever partial summary the
// aggregator accumulated.
func (c *Controller) ForceStop() error {
	c.mu.Lock()
	if c.status != StatusRunning && c.status != StatusStopping {
		c.mu.Unlock()
		return newError(ErrNotRunning, "engine is %s, neither running nor stopping", c.status)
	}
	r := c.r
	c.mu.Unlock()

	r.stopOnce.Do(func() { close(r.stop) })
	r.cancel()
	return nil
}

// Reset clears the finished run's context and returns the engine to idle.
// Valid only from completed or error.
func (c *Controller) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status != StatusCompleted && c.status != StatusError {
		return newError(ErrNotRunning, "engine is %s, neither completed nor error", c.status)
	}

	c.r = nil
	c.errMsg = ""
	c.status = StatusIdle
	return nil
}

// Progress returns the current run's progress snapshot. Returns the zero
// snapshot if no run has ever started.
func (c *Controller) Progress() aggregator.ProgressSnapshot {
	c.mu.Lock()
	r := c.r
	c.mu.Unlock()
	if r == nil {
		return aggregator.ProgressSnapshot{}
	}
	return r.aggregator.Progress()
}

// TimeSeries returns the current run's per-second buckets accumulated so
// far. Returns nil if no run has ever started.
func (c *Controller) TimeSeries() []aggregator.Bucket {
	c.mu.Lock()
	r := c.r
	c.mu.Unlock()
	if r == nil {
		return nil
	}
	return r.aggregator.TimeSeries()
}

// RunID returns the identifier of the current or most recently started
// run, empty if none has ever started. The same id is carried on every
// test-status payload and on the test-complete summary, so a host can tell
// which of those events belong to one run; test-result payloads do not
// carry it.
func (c *Controller) RunID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.r == nil {
		return ""
	}
	return c.r.runID
}

func (c *Controller) publishStatus(runID string, status Status, errMsg string) {
	payload := map[string]string{"status": string(status)}
	if runID != "" {
		payload["run_id"] = runID
	}
	if errMsg != "" {
		payload["message"] = errMsg
	}
	c.hub.Publish(events.Event{Type: events.TestStatus, Data: payload})
}
