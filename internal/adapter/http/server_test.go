package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	httpadapter "github.com/couchcryptid/weather-feed-etl/internal/adapter/http"
	"github.com/couchcryptid/weather-feed-etl/internal/adapter/sqlite"
	"github.com/couchcryptid/weather-feed-etl/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

func ptr[T any](v T) *T { return &v }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	ctx := context.Background()
	store, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "data.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	_, err = store.InsertObservations(ctx, []domain.ObservationRecord{
		{Location: "Taipei", Date: "2024-05-01T08:00:00", MinTemp: ptr(18.0), MaxTemp: ptr(27.5), Description: ptr("Cloudy")},
		{Location: "Keelung", Date: "2024-05-01T09:00:00"},
	})
	require.NoError(t, err)
	_, err = store.InsertPrecipitation(ctx, []domain.PrecipitationRecord{
		{Location: "Taipei", Date: "2024-05-01T07:00:00", Period: "Now", Precipitation: ptr(9.9)},
		{Location: "Taipei", Date: "2024-05-01T08:00:00", Period: "Past24hr", Precipitation: ptr(3.5)},
		{Location: "Taipei", Date: "2024-05-01T08:00:00", Period: "Now", Precipitation: ptr(0.0)},
		{Location: "Taipei", Date: "2024-05-01T08:00:00", Period: "Past1hr"},
		{Location: "Keelung", Date: "2024-05-01T08:00:00", Period: "Past3days", Precipitation: ptr(12.0)},
	})
	require.NoError(t, err)
	return store
}

func newTestServer(t *testing.T, readyErr error) *httpadapter.Server {
	t.Helper()
	return httpadapter.NewServer(":0", &mockReadiness{err: readyErr}, newTestStore(t), discardLogger())
}

func get(t *testing.T, srv http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthzReturns200(t *testing.T) {
	rec := get(t, newTestServer(t, nil), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decode[map[string]string](t, rec)["status"])
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	rec := get(t, newTestServer(t, nil), "/readyz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", decode[map[string]string](t, rec)["status"])
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	rec := get(t, newTestServer(t, fmt.Errorf("not ready yet")), "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	body := decode[map[string]string](t, rec)
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "not ready yet", body["error"])
}

func TestMetricsEndpoint(t *testing.T) {
	rec := get(t, newTestServer(t, nil), "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestAllReady(t *testing.T) {
	ctx := context.Background()
	assert.NoError(t, httpadapter.AllReady(&mockReadiness{}, &mockReadiness{}).CheckReadiness(ctx))

	err := httpadapter.AllReady(&mockReadiness{}, &mockReadiness{err: errors.New("db locked")}).CheckReadiness(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db locked")
}

func TestObservationsEndpoint(t *testing.T) {
	srv := newTestServer(t, nil)

	rows := decode[[]sqlite.StoredObservation](t, get(t, srv, "/api/observations"))
	require.Len(t, rows, 2)
	assert.Equal(t, "Keelung", rows[0].Location)
	assert.Nil(t, rows[0].MinTemp)

	for _, target := range []string{"/api/observations?location=Taipei", "/api/observations?location=Taipei&limit=5"} {
		rows = decode[[]sqlite.StoredObservation](t, get(t, srv, target))
		require.Len(t, rows, 1, target)
		require.NotNil(t, rows[0].MaxTemp)
		assert.Equal(t, 27.5, *rows[0].MaxTemp)
	}

	rows = decode[[]sqlite.StoredObservation](t, get(t, srv, "/api/observations?location=All"))
	assert.Len(t, rows, 2)

	rec := get(t, srv, "/api/observations?limit=-3")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestObservationsEndpoint_JSONShape(t *testing.T) {
	rec := get(t, newTestServer(t, nil), "/api/observations?location=Keelung")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var raw []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	require.Len(t, raw, 1)
	for _, key := range []string{"id", "location", "date", "min_temp", "max_temp", "description", "inserted_at"} {
		assert.Contains(t, raw[0], key)
	}
	assert.Nil(t, raw[0]["description"])
}

func TestPrecipitationEndpoint(t *testing.T) {
	srv := newTestServer(t, nil)

	rows := decode[[]sqlite.StoredPrecipitation](t, get(t, srv, "/api/precipitation?location=Taipei&period=Now"))
	require.Len(t, rows, 2)
	assert.Equal(t, "2024-05-01T08:00:00", rows[0].Date)

	rows = decode[[]sqlite.StoredPrecipitation](t, get(t, srv, "/api/precipitation?location=All&period=All"))
	assert.Len(t, rows, 5)
}

func TestLocationsEndpoint(t *testing.T) {
	srv := newTestServer(t, nil)

	assert.Equal(t, []string{"Keelung", "Taipei"}, decode[[]string](t, get(t, srv, "/api/locations")))
	assert.Equal(t, []string{"Keelung", "Taipei"}, decode[[]string](t, get(t, srv, "/api/locations?stream=precipitation")))

	rec := get(t, srv, "/api/locations?stream=alerts")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPeriodsEndpoint(t *testing.T) {
	srv := newTestServer(t, nil)

	assert.Equal(t, []string{"Now", "Past1hr", "Past24hr", "Past3days"}, decode[[]string](t, get(t, srv, "/api/periods")))
	assert.Equal(t, []string{"Now", "Past1hr", "Past24hr"}, decode[[]string](t, get(t, srv, "/api/periods?location=Taipei")))
}

func TestProfileEndpoint_Latest(t *testing.T) {
	srv := newTestServer(t, nil)

	for _, target := range []string{
		"/api/precipitation/profile?location=Taipei",
		"/api/precipitation/profile?location=Taipei&date=Latest",
	} {
		rec := get(t, srv, target)
		require.Equal(t, http.StatusOK, rec.Code, target)

		profile := decode[httpadapter.ProfileResponse](t, rec)
		assert.Equal(t, "2024-05-01T08:00:00", profile.Date)
		require.Len(t, profile.Periods, len(domain.PeriodOrder))

		byPeriod := map[string]*float64{}
		for _, p := range profile.Periods {
			byPeriod[p.Period] = p.Precipitation
		}
		require.NotNil(t, byPeriod["Now"])
		assert.Equal(t, 0.0, *byPeriod["Now"])
		require.NotNil(t, byPeriod["Past24hr"])
		assert.Equal(t, 3.5, *byPeriod["Past24hr"])
		assert.Nil(t, byPeriod["Past1hr"])
		assert.Nil(t, byPeriod["Past10Min"])
	}
}

func TestProfileEndpoint_ExplicitDate(t *testing.T) {
	rec := get(t, newTestServer(t, nil), "/api/precipitation/profile?location=Taipei&date=2024-05-01T07:00:00")
	require.Equal(t, http.StatusOK, rec.Code)

	profile := decode[httpadapter.ProfileResponse](t, rec)
	require.NotNil(t, profile.Periods[0].Precipitation)
	assert.Equal(t, 9.9, *profile.Periods[0].Precipitation)
	assert.Nil(t, profile.Periods[6].Precipitation)
}

func TestProfileEndpoint_Errors(t *testing.T) {
	srv := newTestServer(t, nil)

	assert.Equal(t, http.StatusBadRequest, get(t, srv, "/api/precipitation/profile").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, srv, "/api/precipitation/profile?location=All").Code)
	assert.Equal(t, http.StatusNotFound, get(t, srv, "/api/precipitation/profile?location=Nowhere").Code)
}
