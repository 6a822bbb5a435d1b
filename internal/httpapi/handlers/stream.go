package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/suPer8Hu/content-pipeline/internal/jobs"
)

type logEvent struct {
	Type    string `json:"type"`
	Index   int    `json:"index"`
	Message string `json:"message"`
}

type statusEvent struct {
	Type      string      `json:"type"`
	Status    jobs.Status `json:"status"`
	LogsCount int         `json:"logs_count"`
}

type completeEvent struct {
	Type    string            `json:"type"`
	Status  jobs.Status       `json:"status"`
	Outputs map[string]string `json:"outputs"`
	Error   *string           `json:"error"`
}

// Stream pushes job progress as server-sent events until the job is terminal.
// Log lines are diffed by index so each line is sent exactly once.
func (h *Handler) Stream(c *gin.Context) {
	id := c.Param("id")
	if _, err := h.Jobs.Get(id); err != nil {
		planNotFound(c, err)
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "streaming unsupported"})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	writeJSON := func(payload any) {
		b, err := json.Marshal(payload)
		if err != nil {
			fmt.Fprintf(c.Writer, "data: {\"type\":\"status\",\"status\":\"error\"}\n\n")
			flusher.Flush()
			return
		}
		fmt.Fprintf(c.Writer, "data: %s\n\n", b)
		flusher.Flush()
	}

	sent := 0
	// tick reports whether the stream is finished.
	tick := func() bool {
		snap, err := h.Jobs.Get(id)
		if err != nil {
			msg := "plan not found"
			writeJSON(completeEvent{Type: "complete", Status: jobs.StatusError, Outputs: map[string]string{}, Error: &msg})
			return true
		}

		for i := sent; i < len(snap.Logs); i++ {
			writeJSON(logEvent{Type: "log", Index: i, Message: snap.Logs[i]})
		}
		sent = len(snap.Logs)

		writeJSON(statusEvent{Type: "status", Status: snap.Status, LogsCount: sent})

		if snap.Status.Terminal() {
			ev := completeEvent{Type: "complete", Status: snap.Status, Outputs: snap.Outputs}
			if snap.Error != "" {
				msg := snap.Error
				ev.Error = &msg
			}
			writeJSON(ev)
			return true
		}
		return false
	}

	ctx := c.Request.Context()
	ticker := time.NewTicker(h.PollInterval)
	defer ticker.Stop()

	if tick() {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if tick() {
				return
			}
		}
	}
}
