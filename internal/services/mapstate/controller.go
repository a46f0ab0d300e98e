// Package mapstate holds the map-state reconciliation core: a controller
// that keeps the user position, the selected destination, the active route
// and the saved car location consistent, and drives a MapView accordingly.
//
// A Controller is not safe for concurrent use. Every method, and every
// function handed to its scheduler, must run on the same Loop.
package mapstate

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"standmap-service/internal/domain"
	"standmap-service/internal/platform/errreport"
	"standmap-service/internal/ports"
)

// PointStore persists the car location.
type PointStore interface {
	Save(ctx context.Context, key string, c domain.Coordinate) error
	Load(ctx context.Context, key string) (domain.Coordinate, bool)
}

// CarMarkerPolicy decides what happens to the car marker when a stand is
// selected.
type CarMarkerPolicy int

const (
	// CarMarkerPreserve keeps the car marker when a stand is selected.
	CarMarkerPreserve CarMarkerPolicy = iota
	// CarMarkerClearOnSelect removes the car marker (not the saved point)
	// when a stand is selected.
	CarMarkerClearOnSelect
)

// ParseCarMarkerPolicy accepts "preserve" (or empty) and "clear".
func ParseCarMarkerPolicy(s string) (CarMarkerPolicy, error) {
	switch s {
	case "", "preserve":
		return CarMarkerPreserve, nil
	case "clear":
		return CarMarkerClearOnSelect, nil
	default:
		return CarMarkerPreserve, errors.New("car marker policy must be preserve or clear")
	}
}

// Phase is the coarse controller state derived from the fix and the route.
type Phase int

const (
	NoFix Phase = iota
	HasFixNoRoute
	HasFixRouteActive // a route overlay is drawn
)

func (p Phase) String() string {
	switch p {
	case NoFix:
		return "no_fix"
	case HasFixNoRoute:
		return "has_fix_no_route"
	case HasFixRouteActive:
		return "has_fix_route_active"
	default:
		return "unknown"
	}
}

// Options configures the initial view and the car marker.
type Options struct {
	Center           domain.Coordinate
	Zoom             int
	CarKey           string // storage key of the saved car location
	CarMarkerPolicy  CarMarkerPolicy
	ShowStandMarkers bool
}

// Deps are the collaborators a Controller drives. Notifier and Reporter may
// be nil.
type Deps struct {
	View     ports.MapView
	Notifier ports.Notifier
	Routes   ports.RouteService
	Points   PointStore
	Stands   []domain.Stand
	// Schedule runs fn later on the controller's loop. Route events arrive
	// through it.
	Schedule func(fn func())
	Reporter *errreport.Reporter
	Log      *zap.Logger
}

type activeRoute struct {
	handle      ports.RouteHandle
	origin      domain.Coordinate // waypoint 0 as last sent to the route service
	destination domain.Coordinate
	token       uint64          // results carrying another token are stale
	overlay     ports.OverlayID // empty until the first result is drawn
}

type state struct {
	user    domain.Coordinate
	hasFix  bool
	lastFix ports.PositionEvent

	userMarker ports.MarkerID
	destMarker ports.MarkerID
	carMarker  ports.MarkerID
	car        domain.Coordinate

	selected *int
	route    *activeRoute
	token    uint64

	recalculating    ports.ControlID
	indicatorVisible bool
	initialized      bool
	tornDown         bool
}

// Controller reconciles user position, destination, route and car marker
// with the map.
type Controller struct {
	deps Deps
	opts Options
	st   state
}

// NewController builds a controller; call Init before anything else.
func NewController(deps Deps, opts Options) *Controller {
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	if opts.CarKey == "" {
		opts.CarKey = "showRuralCarLocation"
	}
	return &Controller{deps: deps, opts: opts}
}

// Init renders the initial view: venue center, the hidden recalculating
// indicator, optionally every stand, and the saved car marker if any.
func (c *Controller) Init(ctx context.Context) {
	if c.st.initialized {
		return
	}
	c.st.initialized = true

	v := c.deps.View
	v.SetView(c.opts.Center, c.opts.Zoom)

	c.st.recalculating = v.AddOverlayControl(RecalculatingMsg, ports.TopRight)
	v.HideControl(c.st.recalculating)

	if c.opts.ShowStandMarkers {
		for _, s := range c.deps.Stands {
			v.AddMarker(ports.StandMarker, s.Coords, standPopup(s))
		}
	}

	if car, ok := c.deps.Points.Load(ctx, c.opts.CarKey); ok {
		c.placeCarMarker(car)
	}
}

// HandlePosition dispatches a watcher event.
func (c *Controller) HandlePosition(ctx context.Context, ev ports.PositionEvent) {
	if !ev.Found {
		c.OnPositionError(ev.ErrKind)
		return
	}
	if c.applyFix(ctx, ev.Coords) {
		c.st.lastFix = ev
	}
}

// OnPositionFound moves the user marker to at and, when a route is active
// from a different origin, recomputes it from at.
func (c *Controller) OnPositionFound(ctx context.Context, at domain.Coordinate) {
	c.applyFix(ctx, at)
}

// applyFix reports whether at became the user position.
func (c *Controller) applyFix(ctx context.Context, at domain.Coordinate) bool {
	if c.st.tornDown {
		return false
	}
	if !at.Valid() {
		c.deps.Log.Warn("ignoring invalid position", zap.Float64("lat", at.Lat), zap.Float64("lng", at.Lon))
		return false
	}

	c.st.user = at
	c.st.hasFix = true

	if c.st.userMarker == "" {
		c.st.userMarker = c.deps.View.AddMarker(ports.UserMarker, at, PopupUser)
	} else {
		c.deps.View.MoveMarker(c.st.userMarker, at)
	}

	r := c.st.route
	if r == nil || r.origin.Equal(at) {
		return true
	}
	if err := c.deps.Routes.ReplaceOrigin(ctx, r.handle, at); err != nil {
		c.deps.Log.Warn("replace route origin failed", zap.Error(err))
		return true
	}
	r.origin = at
	return true
}

// OnPositionError tells the user why no position is available. The user
// position and the watch are left as they are.
func (c *Controller) OnPositionError(kind ports.PositionErrorKind) {
	if c.st.tornDown {
		return
	}
	c.deps.Log.Info("geolocation error", zap.Stringer("kind", kind), zap.Error(kind.Err()))
	c.notify(ports.NoticeWarning, positionErrorMessage(kind))
}

// SelectStand replaces the destination with the stand at index and routes
// to it. A nil index is the "no selection" placeholder and is ignored.
func (c *Controller) SelectStand(ctx context.Context, index *int) error {
	if index == nil || c.st.tornDown {
		return nil
	}
	i := *index
	if i < 0 || i >= len(c.deps.Stands) {
		return domain.NewPreconditionError("select stand", domain.ErrUnknownStand, "Unknown stand.")
	}
	stand := c.deps.Stands[i]

	c.clearDestination()
	if c.opts.CarMarkerPolicy == CarMarkerClearOnSelect && c.st.carMarker != "" {
		c.deps.View.RemoveMarker(c.st.carMarker)
		c.st.carMarker = ""
	}

	c.st.selected = &i
	c.st.destMarker = c.deps.View.AddMarker(ports.DestinationMarker, stand.Coords, standPopup(stand))
	c.deps.View.OpenPopup(c.st.destMarker)

	return c.RequestRoute(ctx, stand.Coords)
}

// SaveCarLocation stores the current user position as the car location.
func (c *Controller) SaveCarLocation(ctx context.Context) error {
	if !c.st.hasFix {
		c.notify(ports.NoticeWarning, MsgLocationNotFound)
		return domain.NewPreconditionError("save car location", domain.ErrNoFix, MsgLocationNotFound)
	}

	at := c.st.user
	if err := c.deps.Points.Save(ctx, c.opts.CarKey, at); err != nil {
		c.deps.Reporter.Capture(err, map[string]string{"component": "pointstore"})
		c.notify(ports.NoticeError, MsgCarSaveFailed)
		return err
	}

	c.placeCarMarker(at)
	c.notify(ports.NoticeInfo, MsgCarSaved)
	return nil
}

// RouteToCar routes from the user to the saved car location. The car
// marker stays, it is the destination.
func (c *Controller) RouteToCar(ctx context.Context) error {
	car, ok := c.deps.Points.Load(ctx, c.opts.CarKey)
	if !ok {
		c.notify(ports.NoticeWarning, MsgNoSavedCar)
		return domain.NewPreconditionError("route to car", domain.ErrNoSavedCar, MsgNoSavedCar)
	}

	c.clearDestination()
	c.placeCarMarker(car)

	return c.RequestRoute(ctx, car)
}

// RequestRoute drops any current route and starts a new one from the user
// position to destination. Without a fix nothing on the map changes.
func (c *Controller) RequestRoute(ctx context.Context, destination domain.Coordinate) error {
	if !c.st.hasFix {
		c.notify(ports.NoticeWarning, MsgWaitingForLocation)
		return domain.NewPreconditionError("request route", domain.ErrNoFix, MsgWaitingForLocation)
	}

	c.removeRoute()

	c.st.token++
	r := &activeRoute{
		origin:      c.st.user,
		destination: destination,
		token:       c.st.token,
	}
	c.st.route = r

	token := r.token
	r.handle = c.deps.Routes.ComputeRoute(ctx, r.origin, destination, func(ev ports.RouteEvent) {
		c.deps.Schedule(func() { c.onRouteEvent(token, ev) })
	})

	return nil
}

// Teardown releases the route and stops reacting to events. The caller
// stops the position watch.
func (c *Controller) Teardown() {
	if c.st.tornDown {
		return
	}
	c.removeRoute()
	c.st.tornDown = true
}

// Phase reports NoFix until the first accepted fix, then whether a route is
// drawn.
func (c *Controller) Phase() Phase {
	switch {
	case !c.st.hasFix:
		return NoFix
	case c.st.route != nil && c.st.route.overlay != "":
		return HasFixRouteActive
	default:
		return HasFixNoRoute
	}
}

// Status is a read-only copy of the controller state.
type Status struct {
	Phase         string             `json:"phase"`
	User          *domain.Coordinate `json:"user,omitempty"`
	Accuracy      float64            `json:"accuracy,omitempty"`
	Selected      *int               `json:"selected"`
	Destination   *domain.Coordinate `json:"destination,omitempty"`
	RoutePending  bool               `json:"route_pending"`
	Recalculating bool               `json:"recalculating"`
	Car           *domain.Coordinate `json:"car,omitempty"`
}

// Status snapshots the controller state for the API.
func (c *Controller) Status() Status {
	s := Status{
		Phase:         c.Phase().String(),
		Recalculating: c.st.indicatorVisible,
	}
	if c.st.hasFix {
		u := c.st.user
		s.User = &u
		s.Accuracy = c.st.lastFix.Accuracy
	}
	if c.st.selected != nil {
		i := *c.st.selected
		s.Selected = &i
	}
	if r := c.st.route; r != nil {
		d := r.destination
		s.Destination = &d
		s.RoutePending = r.overlay == ""
	}
	if c.st.carMarker != "" {
		car := c.st.car
		s.Car = &car
	}
	return s
}

func (c *Controller) onRouteEvent(token uint64, ev ports.RouteEvent) {
	r := c.st.route
	if c.st.tornDown || r == nil || r.token != token {
		c.deps.Log.Debug("ignoring stale route event",
			zap.Uint64("token", token),
			zap.Stringer("kind", ev.Kind),
		)
		return
	}

	switch ev.Kind {
	case ports.RoutingStarted:
		c.showIndicator()

	case ports.RoutesFound:
		c.hideIndicator()
		if ev.Route == nil {
			c.failRoute(errors.New("route service returned no route"))
			return
		}
		if r.overlay == "" {
			r.overlay = c.deps.View.DrawRoute(*ev.Route)
		} else {
			c.deps.View.UpdateRoute(r.overlay, *ev.Route)
		}

	case ports.RoutingError:
		c.failRoute(ev.Err)
	}
}

// failRoute leaves the controller in HasFixNoRoute with nothing drawn.
func (c *Controller) failRoute(err error) {
	c.deps.Log.Warn("route computation failed", zap.Error(err))
	c.removeRoute()
	c.notify(ports.NoticeError, MsgRouteFailed)
}

func (c *Controller) removeRoute() {
	c.hideIndicator()

	r := c.st.route
	if r == nil {
		return
	}
	if r.overlay != "" {
		c.deps.View.ClearRoute(r.overlay)
	}
	c.deps.Routes.Dispose(r.handle)
	c.st.route = nil
}

func (c *Controller) clearDestination() {
	c.removeRoute()
	if c.st.destMarker != "" {
		c.deps.View.RemoveMarker(c.st.destMarker)
		c.st.destMarker = ""
	}
	c.st.selected = nil
}

func (c *Controller) placeCarMarker(at domain.Coordinate) {
	c.st.car = at
	if c.st.carMarker == "" {
		c.st.carMarker = c.deps.View.AddMarker(ports.CarMarker, at, PopupCar)
		return
	}
	c.deps.View.MoveMarker(c.st.carMarker, at)
}

func (c *Controller) showIndicator() {
	if c.st.indicatorVisible || c.st.recalculating == "" {
		return
	}
	c.deps.View.ShowControl(c.st.recalculating)
	c.st.indicatorVisible = true
}

func (c *Controller) hideIndicator() {
	if !c.st.indicatorVisible {
		return
	}
	c.deps.View.HideControl(c.st.recalculating)
	c.st.indicatorVisible = false
}

func (c *Controller) notify(kind ports.NoticeKind, msg string) {
	c.deps.Log.Info("notification", zap.String("kind", string(kind)), zap.String("message", msg))
	if c.deps.Notifier != nil {
		c.deps.Notifier.Notify(ports.Notice{Kind: kind, Message: msg})
	}
}
