package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/suPer8Hu/content-pipeline/internal/common"
	"github.com/suPer8Hu/content-pipeline/internal/httpapi/middleware"
	"github.com/suPer8Hu/content-pipeline/internal/jobs"
)

type generateReq struct {
	Content string `json:"content" binding:"required"`
}

type generateResp struct {
	ID      string      `json:"id"`
	PlanID  string      `json:"plan_id"`
	Status  jobs.Status `json:"status"`
	Message string      `json:"message"`
}

type statusResp struct {
	ID            string            `json:"id"`
	PlanID        string            `json:"plan_id"`
	Status        jobs.Status       `json:"status"`
	Outputs       map[string]string `json:"outputs"`
	Error         *string           `json:"error"`
	Logs          []string          `json:"logs"`
	StartedAt     *time.Time        `json:"started_at,omitempty"`
	ExecutionTime *float64          `json:"execution_time,omitempty"`
}

func newStatusResp(s jobs.Snapshot) statusResp {
	resp := statusResp{
		ID:      s.ID,
		PlanID:  s.ID,
		Status:  s.Status,
		Outputs: s.Outputs,
		Logs:    s.Logs,
	}
	if s.Error != "" {
		msg := s.Error
		resp.Error = &msg
	}
	if s.StartedAt != nil {
		resp.StartedAt = s.StartedAt
		secs := s.ExecutionTime.Seconds()
		resp.ExecutionTime = &secs
	}
	return resp
}

func (h *Handler) Generate(c *gin.Context) {
	var req generateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, "content is required")
		return
	}

	snap, _, err := h.Jobs.Submit(req.Content)
	if err != nil {
		if errors.Is(err, jobs.ErrEmptyContent) {
			common.Fail(c, http.StatusBadRequest, "content is required")
			return
		}
		h.Log.Error().Err(err).Str("request_id", c.GetString(middleware.RequestIDKey)).Msg("submit failed")
		common.Fail(c, http.StatusServiceUnavailable, "content generation unavailable")
		return
	}

	c.JSON(http.StatusOK, generateResp{
		ID:      snap.ID,
		PlanID:  snap.ID,
		Status:  snap.Status,
		Message: "Content generation started",
	})
}

func (h *Handler) Status(c *gin.Context) {
	snap, err := h.Jobs.Get(c.Param("id"))
	if err != nil {
		planNotFound(c, err)
		return
	}
	c.JSON(http.StatusOK, newStatusResp(snap))
}

func (h *Handler) ListPlans(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"plans": h.Jobs.List()})
}

func (h *Handler) DeletePlan(c *gin.Context) {
	if err := h.Jobs.Delete(c.Param("id")); err != nil {
		planNotFound(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Plan deleted"})
}

func planNotFound(c *gin.Context, err error) {
	if errors.Is(err, jobs.ErrNotFound) {
		common.Fail(c, http.StatusNotFound, "Plan not found")
		return
	}
	common.Fail(c, http.StatusInternalServerError, "internal error")
}
