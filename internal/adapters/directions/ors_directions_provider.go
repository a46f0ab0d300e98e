package directions

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"

	"standmap-service/internal/domain"
	"standmap-service/internal/platform/obs"
)

// ORSDirectionsProvider implements DirectionsProvider using the
// OpenRouteService directions endpoint (GeoJSON flavour).
//
// The provider is safe for concurrent use.
type ORSDirectionsProvider struct {
	session        *http.Client
	apiKey         string
	baseURL        string
	profile        string
	maxAttempts    int
	initialBackoff time.Duration
	log            *zap.Logger
}

type ORSOption func(*ORSDirectionsProvider)

// WithBaseURL points the provider at a self-hosted ORS instance.
func WithBaseURL(u string) ORSOption {
	return func(o *ORSDirectionsProvider) { o.baseURL = strings.TrimRight(u, "/") }
}

// WithProfile selects the travel profile, e.g. foot-walking or driving-car.
func WithProfile(p string) ORSOption {
	return func(o *ORSDirectionsProvider) { o.profile = p }
}

func WithHTTPClient(c *http.Client) ORSOption {
	return func(o *ORSDirectionsProvider) { o.session = c }
}

func WithRetry(maxAttempts int, initialBackoff time.Duration) ORSOption {
	return func(o *ORSDirectionsProvider) {
		o.maxAttempts = maxAttempts
		o.initialBackoff = initialBackoff
	}
}

func NewORSDirectionsProvider(apiKey string, log *zap.Logger, opts ...ORSOption) (*ORSDirectionsProvider, error) {
	if apiKey == "" {
		return nil, errors.New("ORS api key is empty")
	}

	provider := &ORSDirectionsProvider{
		session:        &http.Client{Timeout: 10 * time.Second},
		apiKey:         apiKey,
		baseURL:        "https://api.openrouteservice.org",
		profile:        "foot-walking",
		maxAttempts:    4,
		initialBackoff: 200 * time.Millisecond,
		log:            log,
	}
	for _, opt := range opts {
		opt(provider)
	}
	if provider.maxAttempts < 1 {
		provider.maxAttempts = 1
	}

	return provider, nil
}

type directionsRequest struct {
	Coordinates  [][]float64 `json:"coordinates"`
	Instructions bool        `json:"instructions"`
}

// GetRoute fetches a single route from origin to destination.
func (o *ORSDirectionsProvider) GetRoute(
	ctx context.Context,
	origin domain.Coordinate,
	destination domain.Coordinate,
) (_ *domain.Route, err error) {
	defer obs.Time(ctx, o.log, "ors.GetRoute")(&err)

	if !origin.Valid() {
		return nil, fmt.Errorf("get ORS route: invalid origin %v", origin)
	}
	if !destination.Valid() {
		return nil, fmt.Errorf("get ORS route: invalid destination %v", destination)
	}

	endpoint := fmt.Sprintf("%s/v2/directions/%s/geojson", o.baseURL, o.profile)

	payload, err := json.Marshal(directionsRequest{
		Coordinates:  [][]float64{origin.LonLat(), destination.LonLat()},
		Instructions: false,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal directions request: %w", err)
	}

	resp, err := o.doWithRetry(ctx, func() (*http.Request, error) {
		return o.newRequest(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	})
	if err != nil {
		return nil, fmt.Errorf("directions request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read directions response: %w", err)
	}

	route, err := decodeDirections(body)
	if err != nil {
		return nil, err
	}
	route.Origin = origin
	route.Destination = destination

	return route, nil
}

// decodeDirections reads the first feature of an ORS GeoJSON response:
// a LineString geometry and a properties.summary with distance/duration.
func decodeDirections(body []byte) (*domain.Route, error) {
	fc, err := geojson.UnmarshalFeatureCollection(body)
	if err != nil {
		return nil, fmt.Errorf("decode directions response: %w", err)
	}
	if len(fc.Features) == 0 {
		return nil, errors.New("directions response contains no routes")
	}

	f := fc.Features[0]
	line, ok := f.Geometry.(orb.LineString)
	if !ok {
		return nil, fmt.Errorf("directions response: unexpected geometry %T", f.Geometry)
	}
	if len(line) < 2 {
		return nil, errors.New("directions response: route geometry has fewer than 2 points")
	}

	var meters, seconds float64
	if summary, ok := f.Properties["summary"].(map[string]interface{}); ok {
		meters, _ = summary["distance"].(float64)
		seconds, _ = summary["duration"].(float64)
	}

	// ORS returns float metrics; round to nearest integer for domain consistency.
	return &domain.Route{
		Path:            line,
		DistanceMeters:  int(math.Round(meters)),
		DurationSeconds: int(math.Round(seconds)),
	}, nil
}
