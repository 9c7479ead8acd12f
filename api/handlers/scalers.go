package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/OldStager01/generalscaler/internal/orchestrator"
	"github.com/OldStager01/generalscaler/pkg/models"
	"github.com/OldStager01/generalscaler/pkg/validation"
)

// ScalerManager is the orchestrator surface the API drives.
type ScalerManager interface {
	List() []orchestrator.Status
	Get(target models.ScalingTarget) (orchestrator.Status, error)
	Apply(ctx context.Context, scaler models.Scaler) (*models.Scaler, error)
	Remove(ctx context.Context, target models.ScalingTarget) error
	Reconcile(ctx context.Context, target models.ScalingTarget) (*models.ScalingDecision, error)
	ResetCooldown(target models.ScalingTarget) error
}

// DecisionHistory reads persisted decisions. It is nil when the database is
// disabled.
type DecisionHistory interface {
	ListByTarget(ctx context.Context, target models.ScalingTarget, limit int) ([]*models.DecisionRecord, error)
}

type ScalerHandler struct {
	manager      ScalerManager
	history      DecisionHistory
	defaultLimit int
	maxLimit     int
}

func NewScalerHandler(manager ScalerManager, history DecisionHistory, defaultLimit, maxLimit int) *ScalerHandler {
	if defaultLimit <= 0 {
		defaultLimit = 50
	}
	if maxLimit < defaultLimit {
		maxLimit = defaultLimit
	}
	return &ScalerHandler{
		manager:      manager,
		history:      history,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
	}
}

type StatusResponse struct {
	orchestrator.Status
	CooldownRemainingSeconds float64 `json:"cooldown_remaining_seconds"`
}

func toResponse(st orchestrator.Status) StatusResponse {
	return StatusResponse{Status: st, CooldownRemainingSeconds: st.CooldownRemaining.Seconds()}
}

func (h *ScalerHandler) List(c *gin.Context) {
	statuses := h.manager.List()
	out := make([]StatusResponse, 0, len(statuses))
	for _, st := range statuses {
		out = append(out, toResponse(st))
	}
	c.JSON(http.StatusOK, gin.H{"scalers": out, "count": len(out)})
}

func (h *ScalerHandler) Get(c *gin.Context) {
	target, ok := targetParam(c)
	if !ok {
		return
	}
	st, err := h.manager.Get(target)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toResponse(st))
}

func (h *ScalerHandler) History(c *gin.Context) {
	target, ok := targetParam(c)
	if !ok {
		return
	}
	if h.history == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "decision history requires the database"})
		return
	}
	limit, err := validation.ValidateLimit(c.Query("limit"), h.defaultLimit, h.maxLimit)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	records, err := h.history.ListByTarget(c.Request.Context(), target, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"decisions": records, "count": len(records)})
}

// Put creates or replaces the target's spec. The body is a ScalingSpec.
func (h *ScalerHandler) Put(c *gin.Context) {
	target, ok := targetParam(c)
	if !ok {
		return
	}
	var spec models.ScalingSpec
	if err := c.ShouldBindJSON(&spec); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	scaler, err := h.manager.Apply(c.Request.Context(), models.Scaler{Target: target, Spec: spec})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, scaler)
}

func (h *ScalerHandler) Delete(c *gin.Context) {
	target, ok := targetParam(c)
	if !ok {
		return
	}
	if err := h.manager.Remove(c.Request.Context(), target); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ScalerHandler) Reconcile(c *gin.Context) {
	target, ok := targetParam(c)
	if !ok {
		return
	}
	d, err := h.manager.Reconcile(c.Request.Context(), target)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *ScalerHandler) ResetCooldown(c *gin.Context) {
	target, ok := targetParam(c)
	if !ok {
		return
	}
	if err := h.manager.ResetCooldown(target); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func targetParam(c *gin.Context) (models.ScalingTarget, bool) {
	target, err := validation.ValidateTarget(c.Param("namespace"), c.Param("name"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return models.ScalingTarget{}, false
	}
	return target, true
}

// respondError maps domain errors onto HTTP statuses.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, orchestrator.ErrScalerNotFound):
		status = http.StatusNotFound
	case models.ClassifyError(err) != models.FailureTransient:
		status = http.StatusUnprocessableEntity
	}

	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error(), "failure_kind": models.ClassifyError(err)})
}
