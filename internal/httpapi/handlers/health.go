package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/suPer8Hu/content-pipeline/internal/analytics"
	"github.com/suPer8Hu/content-pipeline/internal/common"
)

func (h *Handler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Content Creator API is running"})
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":       "healthy",
		"active_plans": h.Jobs.Store().Len(),
	})
}

func (h *Handler) Analytics(c *gin.Context) {
	summary, err := h.Ledger.Summary(c.Request.Context())
	if err != nil {
		h.Log.Error().Err(err).Msg("analytics summary failed")
		common.Fail(c, http.StatusInternalServerError, "analytics unavailable")
		return
	}
	c.JSON(http.StatusOK, analytics.BuildReport(summary, h.Jobs.Store()))
}
