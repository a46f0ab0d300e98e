package mapstate

import (
	"context"
	"fmt"

	"standmap-service/internal/domain"
	"standmap-service/internal/ports"
)

type fakeMarker struct {
	kind  ports.MarkerKind
	at    domain.Coordinate
	popup string
	open  int
}

// fakeView records the current display and counts every command.
type fakeView struct {
	next     int
	ops      int
	markers  map[ports.MarkerID]*fakeMarker
	overlays map[ports.OverlayID]domain.Route
	drawn    int
	controls map[ports.ControlID]bool
	center   domain.Coordinate
	zoom     int
}

func newFakeView() *fakeView {
	return &fakeView{
		markers:  make(map[ports.MarkerID]*fakeMarker),
		overlays: make(map[ports.OverlayID]domain.Route),
		controls: make(map[ports.ControlID]bool),
	}
}

func (v *fakeView) id(prefix string) string {
	v.next++
	return fmt.Sprintf("%s-%d", prefix, v.next)
}

func (v *fakeView) SetView(center domain.Coordinate, zoom int) {
	v.ops++
	v.center, v.zoom = center, zoom
}

func (v *fakeView) AddMarker(kind ports.MarkerKind, at domain.Coordinate, popup string) ports.MarkerID {
	v.ops++
	id := ports.MarkerID(v.id("marker"))
	v.markers[id] = &fakeMarker{kind: kind, at: at, popup: popup}
	return id
}

func (v *fakeView) MoveMarker(id ports.MarkerID, at domain.Coordinate) {
	v.ops++
	if m, ok := v.markers[id]; ok {
		m.at = at
	}
}

func (v *fakeView) RemoveMarker(id ports.MarkerID) {
	v.ops++
	delete(v.markers, id)
}

func (v *fakeView) OpenPopup(id ports.MarkerID) {
	v.ops++
	if m, ok := v.markers[id]; ok {
		m.open++
	}
}

func (v *fakeView) DrawRoute(route domain.Route) ports.OverlayID {
	v.ops++
	v.drawn++
	id := ports.OverlayID(v.id("route"))
	v.overlays[id] = route
	return id
}

func (v *fakeView) UpdateRoute(id ports.OverlayID, route domain.Route) {
	v.ops++
	if _, ok := v.overlays[id]; ok {
		v.overlays[id] = route
	}
}

func (v *fakeView) ClearRoute(id ports.OverlayID) {
	v.ops++
	delete(v.overlays, id)
}

func (v *fakeView) AddOverlayControl(content string, pos ports.ControlPosition) ports.ControlID {
	v.ops++
	id := ports.ControlID(v.id("control"))
	v.controls[id] = true
	return id
}

func (v *fakeView) ShowControl(id ports.ControlID) {
	v.ops++
	v.controls[id] = true
}

func (v *fakeView) HideControl(id ports.ControlID) {
	v.ops++
	v.controls[id] = false
}

func (v *fakeView) markersOf(kind ports.MarkerKind) []*fakeMarker {
	var out []*fakeMarker
	for _, m := range v.markers {
		if m.kind == kind {
			out = append(out, m)
		}
	}
	return out
}

func (v *fakeView) visibleControls() int {
	n := 0
	for _, visible := range v.controls {
		if visible {
			n++
		}
	}
	return n
}

type fakeNotifier struct {
	notices []ports.Notice
}

func (n *fakeNotifier) Notify(notice ports.Notice) {
	n.notices = append(n.notices, notice)
}

func (n *fakeNotifier) last() string {
	if len(n.notices) == 0 {
		return ""
	}
	return n.notices[len(n.notices)-1].Message
}

type computeCall struct {
	handle      ports.RouteHandle
	origin      domain.Coordinate
	destination domain.Coordinate
	notify      func(ports.RouteEvent)
}

// fakeRoutes hands every notify func back to the test. With immediate set
// it answers synchronously with routingstart + routesfound.
type fakeRoutes struct {
	immediate bool
	calls     []*computeCall
	replaced  []domain.Coordinate
	disposed  []ports.RouteHandle
}

func (r *fakeRoutes) ComputeRoute(
	ctx context.Context,
	origin domain.Coordinate,
	destination domain.Coordinate,
	notify func(ports.RouteEvent),
) ports.RouteHandle {
	h := ports.RouteHandle(fmt.Sprintf("h%d", len(r.calls)+1))
	call := &computeCall{handle: h, origin: origin, destination: destination, notify: notify}
	r.calls = append(r.calls, call)
	if r.immediate {
		r.succeed(call)
	}
	return h
}

func (r *fakeRoutes) ReplaceOrigin(ctx context.Context, h ports.RouteHandle, origin domain.Coordinate) error {
	for _, c := range r.calls {
		if c.handle == h {
			c.origin = origin
			r.replaced = append(r.replaced, origin)
			return nil
		}
	}
	return fmt.Errorf("unknown handle %s", h)
}

func (r *fakeRoutes) Dispose(h ports.RouteHandle) {
	r.disposed = append(r.disposed, h)
}

func (r *fakeRoutes) succeed(c *computeCall) {
	c.notify(ports.RouteEvent{Handle: c.handle, Kind: ports.RoutingStarted})
	c.notify(ports.RouteEvent{
		Handle: c.handle,
		Kind:   ports.RoutesFound,
		Route:  &domain.Route{Origin: c.origin, Destination: c.destination},
	})
}

func (r *fakeRoutes) fail(c *computeCall) {
	c.notify(ports.RouteEvent{Handle: c.handle, Kind: ports.RoutingError, Err: domain.ErrRouteComputationFailed})
}

type fakePoints struct {
	values  map[string]domain.Coordinate
	writes  int
	saveErr error
}

func newFakePoints() *fakePoints {
	return &fakePoints{values: make(map[string]domain.Coordinate)}
}

func (p *fakePoints) Save(ctx context.Context, key string, c domain.Coordinate) error {
	if p.saveErr != nil {
		return p.saveErr
	}
	p.writes++
	p.values[key] = c
	return nil
}

func (p *fakePoints) Load(ctx context.Context, key string) (domain.Coordinate, bool) {
	c, ok := p.values[key]
	return c, ok
}

// manualQueue stands in for the loop: scheduled work runs on flush.
type manualQueue struct {
	pending []func()
}

func (q *manualQueue) schedule(fn func()) {
	q.pending = append(q.pending, fn)
}

func (q *manualQueue) flush() {
	for len(q.pending) > 0 {
		fn := q.pending[0]
		q.pending = q.pending[1:]
		fn()
	}
}
