package repositories

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"standmap-service/internal/platform/db"
)

func TestDefaultStandsAreValid(t *testing.T) {
	stands := DefaultStands()
	require.Len(t, stands, 6)

	for _, s := range stands {
		assert.True(t, s.Coords.Valid(), s.Name)
	}
	assert.True(t, stands[0].HasImage())
	assert.Equal(t, "Perche", stands[5].Name)
}

func TestStaticCatalogReturnsCopies(t *testing.T) {
	c := NewStaticStandCatalog(DefaultStands())

	first, err := c.ListStands(context.Background())
	require.NoError(t, err)
	first[0].Name = "changed"

	second, err := c.ListStands(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "John Dear", second[0].Name)
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stands.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadStandsJSON(t *testing.T) {
	path := writeFile(t, `[
		{"name": "John Dear", "lat": -24.980359, "lng": -53.339052, "img": "assets/images/johndeere.jpg"},
		{"id": "jacto", "name": " Jacto ", "lat": -24.980052, "lng": -53.339754}
	]`)

	stands, err := LoadStandsJSON(path)
	require.NoError(t, err)
	require.Len(t, stands, 2)

	assert.Equal(t, "john-dear", stands[0].ID)
	assert.Equal(t, "assets/images/johndeere.jpg", stands[0].Image)
	assert.Equal(t, "Jacto", stands[1].Name)
	assert.False(t, stands[1].HasImage())
}

func TestLoadStandsJSONRejectsBadEntries(t *testing.T) {
	bodies := map[string]string{
		"empty name":   `[{"name": "", "lat": 1, "lng": 2}]`,
		"bad coords":   `[{"name": "A", "lat": 100, "lng": 2}]`,
		"duplicate id": `[{"name": "A", "lat": 1, "lng": 2}, {"name": "a", "lat": 1, "lng": 2}]`,
		"not json":     `{`,
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			_, err := LoadStandsJSON(writeFile(t, body))
			assert.Error(t, err)
		})
	}

	_, err := LoadStandsJSON(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestSQLStandRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	conn, err := db.OpenSqlite(context.Background(), ":memory:")
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, InitSchema(ctx, conn))
	require.NoError(t, InitSchema(ctx, conn))
	require.NoError(t, SeedStands(ctx, conn, Sqlite, DefaultStands()))
	require.NoError(t, SeedStands(ctx, conn, Sqlite, DefaultStands()))

	repo := NewSQLStandRepository(conn, zap.NewNop())
	stands, err := repo.ListStands(ctx)
	require.NoError(t, err)
	assert.Equal(t, DefaultStands(), stands)
}

func TestParseDialect(t *testing.T) {
	d, err := ParseDialect("sqlite")
	require.NoError(t, err)
	assert.Equal(t, Sqlite, d)
	assert.Equal(t, "?", d.bind(3))

	d, err = ParseDialect("postgres")
	require.NoError(t, err)
	assert.Equal(t, "$3", d.bind(3))

	_, err = ParseDialect("mysql")
	assert.Error(t, err)
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "new-holland", slug("New Holland"))
	assert.Equal(t, "a-b", slug("  A -- B!! "))
}
