package domain

import "github.com/paulmach/orb"

// Represents a computed path between two waypoints.
// Waypoint 0 is the origin and waypoint 1 the destination.
// Path is the polyline returned by the routing backend, in [lon, lat] order.
type Route struct {
	Origin          Coordinate
	Destination     Coordinate
	Path            orb.LineString
	DistanceMeters  int
	DurationSeconds int
}

// Waypoints returns the ordered endpoints supplied to the routing backend.
func (r Route) Waypoints() [2]Coordinate {
	return [2]Coordinate{r.Origin, r.Destination}
}
