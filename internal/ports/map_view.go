package ports

import "standmap-service/internal/domain"

type MarkerKind string

const (
	UserMarker        MarkerKind = "user"
	DestinationMarker MarkerKind = "destination"
	CarMarker         MarkerKind = "car"
	StandMarker       MarkerKind = "stand"
)

type (
	MarkerID  string
	OverlayID string
	ControlID string
)

type ControlPosition string

const (
	TopLeft     ControlPosition = "topleft"
	TopRight    ControlPosition = "topright"
	BottomLeft  ControlPosition = "bottomleft"
	BottomRight ControlPosition = "bottomright"
)

// MapView is the rendering surface. Commands are idempotent with respect to
// unknown ids: moving, removing or clearing something absent is a no-op.
type MapView interface {
	SetView(center domain.Coordinate, zoom int)

	AddMarker(kind MarkerKind, at domain.Coordinate, popup string) MarkerID
	MoveMarker(id MarkerID, at domain.Coordinate)
	RemoveMarker(id MarkerID)
	OpenPopup(id MarkerID)

	DrawRoute(route domain.Route) OverlayID
	UpdateRoute(id OverlayID, route domain.Route)
	ClearRoute(id OverlayID)

	AddOverlayControl(content string, pos ControlPosition) ControlID
	ShowControl(id ControlID)
	HideControl(id ControlID)
}
