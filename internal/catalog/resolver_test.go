package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/autoatlas/dealercrawler/internal/dealer"
)

const testCatalogURL = "https://cdn.example.com/city_json.js"

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Sleep(context.Context, time.Duration) {}

func newTestResolver(t *testing.T, maxAge time.Duration) (*Resolver, *http.Client, string) {
	t.Helper()
	dir := t.TempDir()
	client := &http.Client{}
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	r := NewResolver(Config{
		URL:            testCatalogURL,
		Dir:            dir,
		MaxSnapshotAge: maxAge,
	}, client, clock, zap.NewNop())
	return r, client, dir
}

func TestResolveExplicitListPassesThroughVerbatim(t *testing.T) {
	t.Parallel()

	r, _, _ := newTestResolver(t, 0)
	cities, err := r.Resolve(context.Background(), "bmw", dealer.ExplicitLocations([]string{"Hyderabad", "Chennai"}))
	require.NoError(t, err)
	require.Equal(t, []string{"Hyderabad", "Chennai"}, cities)
}

func TestResolveFetchesAndDeduplicatesCatalog(t *testing.T) {
	r, client, dir := newTestResolver(t, 0)
	httpmock.ActivateNonDefault(client)
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodGet, testCatalogURL,
		httpmock.NewStringResponder(200, `[
			{"value":"Mumbai"},
			{"value":"Delhi"},
			{"value":"mumbai"},
			{"value":""},
			{"value":"Chennai"}
		]`))

	cities, err := r.Resolve(context.Background(), "bmw", dealer.AllLocations())
	require.NoError(t, err)
	require.Equal(t, []string{"Chennai", "Delhi", "Mumbai"}, cities)

	// A snapshot is written after a successful fetch.
	paths, err := filepath.Glob(filepath.Join(dir, "cities_*.json"))
	require.NoError(t, err)
	require.Len(t, paths, 1)
}

func TestResolveSoftFailsOnBadResponses(t *testing.T) {
	cases := []struct {
		name      string
		responder httpmock.Responder
	}{
		{"non-200", httpmock.NewStringResponder(503, "nope")},
		{"non-array json", httpmock.NewStringResponder(200, `{"cities":[]}`)},
		{"malformed body", httpmock.NewStringResponder(200, `not json at all`)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r, client, _ := newTestResolver(t, 0)
			httpmock.ActivateNonDefault(client)
			defer httpmock.DeactivateAndReset()
			httpmock.RegisterResponder(http.MethodGet, testCatalogURL, tc.responder)

			cities, err := r.Resolve(context.Background(), "bmw", dealer.AllLocations())
			require.NoError(t, err)
			require.Empty(t, cities)
		})
	}
}

func TestResolvePrefersFreshSnapshot(t *testing.T) {
	r, client, dir := newTestResolver(t, 24*time.Hour)
	httpmock.ActivateNonDefault(client)
	defer httpmock.DeactivateAndReset()
	// No responder registered: any network call would fail the test.

	writeSnapshot(t, dir, Snapshot{
		Timestamp: time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC),
		Cities:    []string{"Pune", "pune", "Jaipur"},
	})

	cities, err := r.Resolve(context.Background(), "bmw", dealer.AllLocations())
	require.NoError(t, err)
	require.Equal(t, []string{"Pune", "Jaipur"}, cities)
	require.Zero(t, httpmock.GetTotalCallCount())
}

func TestResolveIgnoresStaleSnapshot(t *testing.T) {
	r, client, dir := newTestResolver(t, time.Hour)
	httpmock.ActivateNonDefault(client)
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodGet, testCatalogURL,
		httpmock.NewStringResponder(200, `[{"value":"Kochi"}]`))

	writeSnapshot(t, dir, Snapshot{
		Timestamp: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		Cities:    []string{"Pune"},
	})

	cities, err := r.Resolve(context.Background(), "bmw", dealer.AllLocations())
	require.NoError(t, err)
	require.Equal(t, []string{"Kochi"}, cities)
	require.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestResolveStopsOnCanceledContext(t *testing.T) {
	t.Parallel()

	r, _, _ := newTestResolver(t, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Resolve(ctx, "bmw", dealer.AllLocations())
	require.ErrorIs(t, err, context.Canceled)
}

func writeSnapshot(t *testing.T, dir string, snap Snapshot) {
	t.Helper()
	body, err := json.Marshal(snap)
	require.NoError(t, err)
	path := filepath.Join(dir, "cities_20260301_060000.json")
	require.NoError(t, os.WriteFile(path, body, 0o600))
}
