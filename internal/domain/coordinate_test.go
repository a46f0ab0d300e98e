package domain

import (
	"errors"
	"math"
	"testing"
)

func TestCoordinateEqualIsExact(t *testing.T) {
	a := NewCoordinate(-24.98024, -53.33931)
	b := NewCoordinate(-24.98024, -53.33931)
	c := NewCoordinate(-24.98024, -53.339310000001)

	if !a.Equal(b) {
		t.Fatalf("expected %v to equal %v", a, b)
	}
	if a.Equal(c) {
		t.Fatalf("expected %v to differ from %v", a, c)
	}
}

func TestCoordinateValid(t *testing.T) {
	cases := []struct {
		name string
		c    Coordinate
		want bool
	}{
		{"venue", NewCoordinate(-24.980359, -53.339052), true},
		{"poles", NewCoordinate(90, 180), true},
		{"lat out of range", NewCoordinate(91, 0), false},
		{"lon out of range", NewCoordinate(0, -181), false},
		{"nan", NewCoordinate(math.NaN(), 0), false},
		{"inf", NewCoordinate(0, math.Inf(1)), false},
	}

	for _, tc := range cases {
		if got := tc.c.Valid(); got != tc.want {
			t.Errorf("%s: Valid() = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestCoordinateLonLat(t *testing.T) {
	got := NewCoordinate(1.5, 2.5).LonLat()
	if got[0] != 2.5 || got[1] != 1.5 {
		t.Fatalf("LonLat() = %v, want [2.5 1.5]", got)
	}
}

func TestPreconditionErrorUnwrap(t *testing.T) {
	err := NewPreconditionError("route to car", ErrNoSavedCar, "no car location saved")
	if !errors.Is(err, ErrNoSavedCar) {
		t.Fatalf("expected errors.Is(err, ErrNoSavedCar)")
	}

	var pe *PreconditionError
	if !errors.As(err, &pe) || pe.Message != "no car location saved" {
		t.Fatalf("unexpected precondition error: %v", err)
	}
}
