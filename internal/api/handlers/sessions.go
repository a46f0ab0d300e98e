package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"standmap-service/internal/api/dto"
	"standmap-service/internal/domain"
	"standmap-service/internal/ports"
	"standmap-service/internal/services/sessions"
)

const DeviceIDHeader = "X-Device-ID"

type SessionHandler struct {
	Manager *sessions.Manager
	Log     *zap.Logger
}

// lookup resolves :id or writes 404.
func (h *SessionHandler) lookup(c *gin.Context) (*sessions.Handle, bool) {
	handle, ok := h.Manager.Get(c.Param("id"))
	if !ok {
		writeError(c, http.StatusNotFound, "session not found")
		return nil, false
	}
	return handle, true
}

// Open handles POST /sessions. The device id comes from the body, the
// X-Device-ID header, or is generated.
func (h *SessionHandler) Open(c *gin.Context) {
	var req dto.OpenSessionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, http.StatusBadRequest, "invalid json body")
			return
		}
	}

	deviceID := strings.TrimSpace(req.DeviceID)
	if deviceID == "" {
		deviceID = strings.TrimSpace(c.GetHeader(DeviceIDHeader))
	}

	handle, created, err := h.Manager.Open(c.Request.Context(), deviceID)
	if err != nil {
		if errors.Is(err, sessions.ErrInvalidDeviceID) {
			writeError(c, http.StatusBadRequest, "device_id must be 1-64 letters, digits, '-' or '_'")
			return
		}
		writeOpError(c, h.Log, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.Header(DeviceIDHeader, handle.ID)
	c.JSON(status, dto.OpenSessionResponse{DeviceID: handle.ID, Created: created})
}

// State handles GET /sessions/:id/state.
func (h *SessionHandler) State(c *gin.Context) {
	handle, ok := h.lookup(c)
	if !ok {
		return
	}

	st, err := handle.Session.Status(c.Request.Context())
	if err != nil {
		writeOpError(c, h.Log, err)
		return
	}

	c.JSON(http.StatusOK, dto.StateResponse{
		DeviceID: handle.ID,
		Status:   st,
		Display:  handle.Scene.Snapshot(),
	})
}

// Position handles POST /sessions/:id/position. The event is queued for
// the session; the response does not wait for it to be applied.
func (h *SessionHandler) Position(c *gin.Context) {
	handle, ok := h.lookup(c)
	if !ok {
		return
	}

	var req dto.PositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json body")
		return
	}

	var ev ports.PositionEvent
	switch {
	case req.ErrorCode != nil:
		ev = ports.PositionError(ports.PositionErrorKindFromCode(*req.ErrorCode), req.Message)
	case req.Lat != nil && req.Lng != nil:
		at := domain.NewCoordinate(*req.Lat, *req.Lng)
		if !at.Valid() {
			writeError(c, http.StatusBadRequest, "lat/lng out of range")
			return
		}
		ts := time.Now()
		if req.Timestamp > 0 {
			ts = time.UnixMilli(req.Timestamp)
		}
		ev = ports.PositionFound(at, req.Accuracy, ts)
	default:
		writeError(c, http.StatusBadRequest, "either lat/lng or error_code is required")
		return
	}

	if err := handle.PushPosition(ev); err != nil {
		if errors.Is(err, sessions.ErrPushUnsupported) {
			writeError(c, http.StatusConflict, "this session reads positions from gpsd")
			return
		}
		writeOpError(c, h.Log, err)
		return
	}

	c.Status(http.StatusAccepted)
}

// Select handles POST /sessions/:id/select.
func (h *SessionHandler) Select(c *gin.Context) {
	handle, ok := h.lookup(c)
	if !ok {
		return
	}

	var req dto.SelectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json body")
		return
	}

	if err := handle.Session.SelectStand(c.Request.Context(), req.Index); err != nil {
		writeOpError(c, h.Log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// SaveCar handles POST /sessions/:id/car.
func (h *SessionHandler) SaveCar(c *gin.Context) {
	handle, ok := h.lookup(c)
	if !ok {
		return
	}

	if err := handle.Session.SaveCarLocation(c.Request.Context()); err != nil {
		writeOpError(c, h.Log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RouteToCar handles POST /sessions/:id/car/route.
func (h *SessionHandler) RouteToCar(c *gin.Context) {
	handle, ok := h.lookup(c)
	if !ok {
		return
	}

	if err := handle.Session.RouteToCar(c.Request.Context()); err != nil {
		writeOpError(c, h.Log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Close handles DELETE /sessions/:id.
func (h *SessionHandler) Close(c *gin.Context) {
	if !h.Manager.Close(c.Request.Context(), c.Param("id")) {
		writeError(c, http.StatusNotFound, "session not found")
		return
	}
	c.Status(http.StatusNoContent)
}
