package handlers

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Events handles GET /sessions/:id/events: a snapshot of the display
// followed by every view command as Server-Sent Events.
func (h *SessionHandler) Events(c *gin.Context) {
	handle, ok := h.lookup(c)
	if !ok {
		return
	}

	events, unsubscribe := handle.Subscribe(64)
	defer unsubscribe()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	c.SSEvent("snapshot", handle.Scene.Snapshot())
	c.Writer.Flush()

	keepalive := time.NewTicker(15 * time.Second)
	defer keepalive.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case cmd, ok := <-events:
			if !ok {
				c.SSEvent("closed", gin.H{"device_id": handle.ID})
				return false
			}
			handle.Session.Touch()
			c.SSEvent("command", cmd)
			return true
		case <-keepalive.C:
			c.SSEvent("ping", time.Now().Unix())
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
