package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Rixmerz/rmeter/internal/engine"
	"github.com/Rixmerz/rmeter/internal/plan"
)

// Handlers implements every control-surface operation as a thin method
// call onto engine.Controller.
type Handlers struct {
	controller *engine.Controller
	store      *engine.PlanStore
	logger     *zap.Logger
}

// RegisterPlan validates the request body against the plan schema and
// registers it for a later start_test by id. Not the excluded plan
// editor/CRUD service: there is no update, delete, or list — only the
// one-shot handoff a host needs before calling start_test.
func (h *Handlers) RegisterPlan(c *gin.Context) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read request body"})
		return
	}

	p, err := plan.Validate(raw)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	h.store.Put(p)
	c.JSON(http.StatusCreated, gin.H{"plan_id": p.ID})
}

type startTestRequest struct {
	PlanID string `json:"plan_id" binding:"required"`
}

// StartTest implements start_test.
func (h *Handlers) StartTest(c *gin.Context) {
	var req startTestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.controller.Start(c.Request.Context(), req.PlanID); err != nil {
		writeEngineError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

// StopTest implements stop_test.
func (h *Handlers) StopTest(c *gin.Context) {
	if err := h.controller.Stop(); err != nil {
		writeEngineError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

// ForceStopTest implements force_stop_test.
func (h *Handlers) ForceStopTest(c *gin.Context) {
	if err := h.controller.ForceStop(); err != nil {
		writeEngineError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

// GetEngineStatus implements get_engine_status.
func (h *Handlers) GetEngineStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": h.controller.Status(),
		"run_id": h.controller.RunID(),
	})
}

// GetResults implements get_results, returning the current progress
// snapshot.
func (h *Handlers) GetResults(c *gin.Context) {
	c.JSON(http.StatusOK, h.controller.Progress())
}

// GetTimeSeries implements get_time_series.
func (h *Handlers) GetTimeSeries(c *gin.Context) {
	c.JSON(http.StatusOK, h.controller.TimeSeries())
}

// writeEngineError maps an *engine.EngineError to the HTTP status its kind
// implies; any other error (should not happen, Controller only ever
// returns *EngineError) becomes a 500.
func writeEngineError(c *gin.Context, err error) {
	var ee *engine.EngineError
	if !errors.As(err, &ee) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	status := http.StatusConflict
	switch ee.Kind {
	case engine.ErrPlanNotFound:
		status = http.StatusNotFound
	case engine.ErrPlanEmpty, engine.ErrValidation:
		status = http.StatusUnprocessableEntity
	case engine.ErrAlreadyRunning, engine.ErrNotRunning:
		status = http.StatusConflict
	}
	c.JSON(status, gin.H{"error_kind": ee.Kind, "message": ee.Message})
}
