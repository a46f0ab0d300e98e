package ports

import (
	"context"

	"standmap-service/internal/domain"
)

// Opaque reference to a route computation and its rendered result.
type RouteHandle string

type RouteEventKind int

const (
	RoutingStarted RouteEventKind = iota
	RoutesFound
	RoutingError
)

func (k RouteEventKind) String() string {
	switch k {
	case RoutingStarted:
		return "routingstart"
	case RoutesFound:
		return "routesfound"
	case RoutingError:
		return "routingerror"
	default:
		return "unknown"
	}
}

type RouteEvent struct {
	Handle RouteHandle
	Kind   RouteEventKind
	Route  *domain.Route
	Err    error
}

// RouteService computes routes asynchronously. Each computation (initial or
// after ReplaceOrigin) emits RoutingStarted followed by exactly one of
// RoutesFound or RoutingError through notify, possibly from another goroutine.
type RouteService interface {
	ComputeRoute(ctx context.Context, origin, destination domain.Coordinate, notify func(RouteEvent)) RouteHandle
	// Replace waypoint 0 of an existing route and recompute, keeping the destination.
	ReplaceOrigin(ctx context.Context, h RouteHandle, origin domain.Coordinate) error
	// Release the route. Disposing twice is a no-op.
	Dispose(h RouteHandle)
}
