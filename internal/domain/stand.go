package domain

// A point of interest (vendor/exhibitor) shown on the venue map.
// The catalog is loaded once and never mutated at runtime.
type Stand struct {
	ID     string     `json:"id"`
	Name   string     `json:"name"`
	Coords Coordinate `json:"coords"`
	Image  string     `json:"img,omitempty"`
}

// HasImage reports whether the stand carries an image reference.
func (s Stand) HasImage() bool { return s.Image != "" }
