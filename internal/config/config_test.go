package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "STORE_DRIVER", "CAR_MARKER_POLICY", "ROUTE_TIMEOUT", "ORS_PROFILE", "MAP_ZOOM", "CAR_LOCATION_KEY"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, "foot-walking", cfg.Routing.Profile)
	assert.Equal(t, 15*time.Second, cfg.Routing.Timeout)
	assert.Equal(t, "preserve", cfg.Map.CarMarkerPolicy)
	assert.Equal(t, "showRuralCarLocation", cfg.Map.CarLocationKey)
	assert.Equal(t, 16, cfg.Map.Zoom)
	assert.Equal(t, -24.98024, cfg.Map.Center.Lat)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "Redis")
	t.Setenv("CAR_MARKER_POLICY", "clear")
	t.Setenv("ROUTE_TIMEOUT", "3s")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example ,")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "redis", cfg.Store.Driver)
	assert.Equal(t, "clear", cfg.Map.CarMarkerPolicy)
	assert.Equal(t, 3*time.Second, cfg.Routing.Timeout)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"CAR_MARKER_POLICY": "sometimes",
		"STORE_DRIVER":      "mongo",
		"ROUTE_TIMEOUT":     "soon",
	}

	for key, val := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, val)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadPostgresRequiresURL(t *testing.T) {
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	assert.ErrorContains(t, err, "DATABASE_URL")
}
