// Package view keeps the server-side copy of what a client map displays and
// streams every change to the client.
package view

import (
	"fmt"
	"sync"

	"github.com/paulmach/orb/geojson"

	"standmap-service/internal/domain"
	"standmap-service/internal/ports"
)

// Command ops.
const (
	OpSetView      = "set_view"
	OpAddMarker    = "add_marker"
	OpMoveMarker   = "move_marker"
	OpRemoveMarker = "remove_marker"
	OpOpenPopup    = "open_popup"
	OpDrawRoute    = "draw_route"
	OpUpdateRoute  = "update_route"
	OpClearRoute   = "clear_route"
	OpAddControl   = "add_control"
	OpShowControl  = "show_control"
	OpHideControl  = "hide_control"
	OpNotify       = "notify"
)

// Command is one rendering instruction for the client.
type Command struct {
	Seq      uint64             `json:"seq"`
	Op       string             `json:"op"`
	ID       string             `json:"id,omitempty"`
	Kind     string             `json:"kind,omitempty"`
	At       *domain.Coordinate `json:"at,omitempty"`
	Zoom     int                `json:"zoom,omitempty"`
	Popup    string             `json:"popup,omitempty"`
	Route    *geojson.Feature   `json:"route,omitempty"`
	Content  string             `json:"content,omitempty"`
	Position string             `json:"position,omitempty"`
	Notice   *ports.Notice      `json:"notice,omitempty"`
}

type Marker struct {
	ID        ports.MarkerID    `json:"id"`
	Kind      ports.MarkerKind  `json:"kind"`
	At        domain.Coordinate `json:"at"`
	Popup     string            `json:"popup,omitempty"`
	PopupOpen bool              `json:"popup_open"`
}

type overlay struct {
	id    ports.OverlayID
	route domain.Route
}

type Control struct {
	ID       ports.ControlID       `json:"id"`
	Content  string                `json:"content"`
	Position ports.ControlPosition `json:"position"`
	Visible  bool                  `json:"visible"`
}

// DisplayState is a snapshot of everything currently rendered. Seq is the
// last command it includes.
type DisplayState struct {
	Seq      uint64            `json:"seq"`
	Center   domain.Coordinate `json:"center"`
	Zoom     int               `json:"zoom"`
	Markers  []Marker          `json:"markers"`
	Routes   []RouteView       `json:"routes"`
	Controls []Control         `json:"controls"`
	Notices  []ports.Notice    `json:"notices"`
}

type RouteView struct {
	ID              ports.OverlayID   `json:"id"`
	Origin          domain.Coordinate `json:"origin"`
	Destination     domain.Coordinate `json:"destination"`
	DistanceMeters  int               `json:"distance_meters"`
	DurationSeconds int               `json:"duration_seconds"`
	Route           *geojson.Feature  `json:"route"`
}

const maxNotices = 20

// Scene implements ports.MapView and ports.Notifier. It is safe for
// concurrent use: the session loop writes, HTTP handlers read snapshots.
type Scene struct {
	mu       sync.Mutex
	seq      uint64
	ids      int
	center   domain.Coordinate
	zoom     int
	markers  []Marker
	overlays []overlay
	controls []Control
	notices  []ports.Notice
	hub      *Hub
}

func NewScene(hub *Hub) *Scene {
	return &Scene{hub: hub}
}

func (s *Scene) Hub() *Hub { return s.hub }

func (s *Scene) newID(prefix string) string {
	s.ids++
	return fmt.Sprintf("%s-%d", prefix, s.ids)
}

// publishLocked stamps cmd with the next sequence number.
func (s *Scene) publishLocked(cmd Command) {
	s.seq++
	cmd.Seq = s.seq
	if s.hub != nil {
		s.hub.Publish(cmd)
	}
}

func (s *Scene) SetView(center domain.Coordinate, zoom int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.center, s.zoom = center, zoom
	s.publishLocked(Command{Op: OpSetView, At: &center, Zoom: zoom})
}

func (s *Scene) AddMarker(kind ports.MarkerKind, at domain.Coordinate, popup string) ports.MarkerID {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := ports.MarkerID(s.newID("marker"))
	s.markers = append(s.markers, Marker{ID: id, Kind: kind, At: at, Popup: popup})
	s.publishLocked(Command{Op: OpAddMarker, ID: string(id), Kind: string(kind), At: &at, Popup: popup})
	return id
}

func (s *Scene) MoveMarker(id ports.MarkerID, at domain.Coordinate) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.markerIndex(id)
	if i < 0 {
		return
	}
	if s.markers[i].At.Equal(at) {
		return
	}
	s.markers[i].At = at
	s.publishLocked(Command{Op: OpMoveMarker, ID: string(id), At: &at})
}

func (s *Scene) RemoveMarker(id ports.MarkerID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.markerIndex(id)
	if i < 0 {
		return
	}
	s.markers = append(s.markers[:i], s.markers[i+1:]...)
	s.publishLocked(Command{Op: OpRemoveMarker, ID: string(id)})
}

func (s *Scene) OpenPopup(id ports.MarkerID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.markerIndex(id)
	if i < 0 {
		return
	}
	s.markers[i].PopupOpen = true
	s.publishLocked(Command{Op: OpOpenPopup, ID: string(id)})
}

func (s *Scene) DrawRoute(route domain.Route) ports.OverlayID {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := ports.OverlayID(s.newID("route"))
	s.overlays = append(s.overlays, overlay{id: id, route: route})
	s.publishLocked(Command{Op: OpDrawRoute, ID: string(id), Route: routeFeature(route)})
	return id
}

func (s *Scene) UpdateRoute(id ports.OverlayID, route domain.Route) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.overlayIndex(id)
	if i < 0 {
		return
	}
	s.overlays[i].route = route
	s.publishLocked(Command{Op: OpUpdateRoute, ID: string(id), Route: routeFeature(route)})
}

func (s *Scene) ClearRoute(id ports.OverlayID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.overlayIndex(id)
	if i < 0 {
		return
	}
	s.overlays = append(s.overlays[:i], s.overlays[i+1:]...)
	s.publishLocked(Command{Op: OpClearRoute, ID: string(id)})
}

// AddOverlayControl adds a control. Controls start visible.
func (s *Scene) AddOverlayControl(content string, pos ports.ControlPosition) ports.ControlID {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := ports.ControlID(s.newID("control"))
	s.controls = append(s.controls, Control{ID: id, Content: content, Position: pos, Visible: true})
	s.publishLocked(Command{Op: OpAddControl, ID: string(id), Content: content, Position: string(pos)})
	return id
}

func (s *Scene) ShowControl(id ports.ControlID) { s.setControlVisible(id, true) }

func (s *Scene) HideControl(id ports.ControlID) { s.setControlVisible(id, false) }

func (s *Scene) setControlVisible(id ports.ControlID, visible bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.controlIndex(id)
	if i < 0 || s.controls[i].Visible == visible {
		return
	}
	s.controls[i].Visible = visible

	op := OpHideControl
	if visible {
		op = OpShowControl
	}
	s.publishLocked(Command{Op: op, ID: string(id)})
}

func (s *Scene) Notify(n ports.Notice) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.notices = append(s.notices, n)
	if len(s.notices) > maxNotices {
		s.notices = s.notices[len(s.notices)-maxNotices:]
	}
	s.publishLocked(Command{Op: OpNotify, Notice: &n})
}

// Snapshot copies the current display state.
func (s *Scene) Snapshot() DisplayState {
	s.mu.Lock()
	defer s.mu.Unlock()

	ds := DisplayState{
		Seq:      s.seq,
		Center:   s.center,
		Zoom:     s.zoom,
		Markers:  append([]Marker{}, s.markers...),
		Routes:   make([]RouteView, 0, len(s.overlays)),
		Controls: append([]Control{}, s.controls...),
		Notices:  append([]ports.Notice{}, s.notices...),
	}
	for _, o := range s.overlays {
		ds.Routes = append(ds.Routes, RouteView{
			ID:              o.id,
			Origin:          o.route.Origin,
			Destination:     o.route.Destination,
			DistanceMeters:  o.route.DistanceMeters,
			DurationSeconds: o.route.DurationSeconds,
			Route:           routeFeature(o.route),
		})
	}
	return ds
}

// Seq returns the sequence number of the last published command.
func (s *Scene) Seq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

func (s *Scene) markerIndex(id ports.MarkerID) int {
	for i, m := range s.markers {
		if m.ID == id {
			return i
		}
	}
	return -1
}

func (s *Scene) overlayIndex(id ports.OverlayID) int {
	for i, o := range s.overlays {
		if o.id == id {
			return i
		}
	}
	return -1
}

func (s *Scene) controlIndex(id ports.ControlID) int {
	for i, c := range s.controls {
		if c.ID == id {
			return i
		}
	}
	return -1
}

// routeFeature encodes a route as a GeoJSON LineString feature.
func routeFeature(r domain.Route) *geojson.Feature {
	f := geojson.NewFeature(r.Path)
	f.Properties["distance_meters"] = r.DistanceMeters
	f.Properties["duration_seconds"] = r.DurationSeconds
	return f
}
