package ports

import (
	"context"
	"time"

	"standmap-service/internal/domain"
)

// Classifies a failed geolocation attempt.
type PositionErrorKind int

const (
	PositionErrorUnknown PositionErrorKind = iota
	PermissionDenied
	PositionUnavailable
	PositionTimeout
)

func (k PositionErrorKind) String() string {
	switch k {
	case PermissionDenied:
		return "permission_denied"
	case PositionUnavailable:
		return "position_unavailable"
	case PositionTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Err returns the matching domain error, or nil for PositionErrorUnknown.
func (k PositionErrorKind) Err() error {
	switch k {
	case PermissionDenied:
		return domain.ErrGeolocationPermissionDenied
	case PositionUnavailable:
		return domain.ErrGeolocationUnavailable
	case PositionTimeout:
		return domain.ErrGeolocationTimeout
	default:
		return nil
	}
}

// PositionErrorKindFromCode maps W3C GeolocationPositionError codes (1, 2, 3).
func PositionErrorKindFromCode(code int) PositionErrorKind {
	switch code {
	case 1:
		return PermissionDenied
	case 2:
		return PositionUnavailable
	case 3:
		return PositionTimeout
	default:
		return PositionErrorUnknown
	}
}

// A single event from the platform location stream: either a fix or an error.
type PositionEvent struct {
	Found     bool
	Coords    domain.Coordinate
	Accuracy  float64 // meters
	Timestamp time.Time
	ErrKind   PositionErrorKind
	Message   string
}

func PositionFound(c domain.Coordinate, accuracy float64, ts time.Time) PositionEvent {
	return PositionEvent{Found: true, Coords: c, Accuracy: accuracy, Timestamp: ts}
}

func PositionError(kind PositionErrorKind, msg string) PositionEvent {
	return PositionEvent{ErrKind: kind, Message: msg, Timestamp: time.Now()}
}

// Options for a continuous watch. SetView and MaxZoom are hints for the
// rendering surface only.
type WatchOptions struct {
	EnableHighAccuracy bool
	SetView            bool
	MaxZoom            int
	Timeout            time.Duration
	MaximumAge         time.Duration
}

// Subscription is the disposable handle of a running watch.
// Stop must be safe to call more than once.
type Subscription interface {
	Stop()
}

// Contract for a continuous, possibly infinite, stream of position events.
// The handler is the single consumer for the lifetime of the subscription.
type PositionWatcher interface {
	Start(ctx context.Context, opts WatchOptions, handler func(PositionEvent)) (Subscription, error)
}
