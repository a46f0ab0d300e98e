package dto

import (
	"standmap-service/internal/adapters/view"
	"standmap-service/internal/services/mapstate"
)

type OpenSessionRequest struct {
	DeviceID string `json:"device_id"`
}

type OpenSessionResponse struct {
	DeviceID string `json:"device_id"`
	Created  bool   `json:"created"`
}

// PositionRequest is one browser geolocation callback: either a fix
// (lat/lng) or a W3C error code (1 denied, 2 unavailable, 3 timeout).
type PositionRequest struct {
	Lat       *float64 `json:"lat"`
	Lng       *float64 `json:"lng"`
	Accuracy  float64  `json:"accuracy"`
	Timestamp int64    `json:"timestamp"` // ms since epoch, as the browser reports it
	ErrorCode *int     `json:"error_code"`
	Message   string   `json:"message"`
}

// SelectRequest carries the stand index. A null index is the empty
// placeholder option.
type SelectRequest struct {
	Index *int `json:"index"`
}

type StateResponse struct {
	DeviceID string            `json:"device_id"`
	Status   mapstate.Status   `json:"status"`
	Display  view.DisplayState `json:"display"`
}
