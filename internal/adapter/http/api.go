package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strconv"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/couchcryptid/weather-feed-etl/internal/adapter/sqlite"
	"github.com/couchcryptid/weather-feed-etl/internal/domain"
)

// RecordQuerier is the read side of the record store.
type RecordQuerier interface {
	Observations(ctx context.Context, f sqlite.ObservationFilter) ([]sqlite.StoredObservation, error)
	Precipitation(ctx context.Context, f sqlite.PrecipitationFilter) ([]sqlite.StoredPrecipitation, error)
	Locations(ctx context.Context, stream string) ([]string, error)
	Periods(ctx context.Context, location string) ([]string, error)
	LatestPrecipitationDate(ctx context.Context, location string) (string, error)
}

// Sentinel query values meaning "no filter" and "newest date".
const (
	filterAll    = "All"
	latestDate   = "Latest"
	queryLimit   = "limit"
	queryLocName = "location"
)

var errBadLimit = errors.New("limit must be a positive integer")

type queryAPI struct {
	records RecordQuerier
	logger  *slog.Logger
}

// ProfileResponse is the precipitation of one station at one observation
// time, laid out over the canonical periods.
type ProfileResponse struct {
	Location string               `json:"location"`
	Date     string               `json:"date"`
	Periods  []domain.PeriodValue `json:"periods"`
}

func (a *queryAPI) handleObservations(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	rows, err := a.records.Observations(r.Context(), sqlite.ObservationFilter{
		Location: filterValue(r, queryLocName),
		Limit:    limit,
	})
	if err != nil {
		a.internalError(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, rows)
}

func (a *queryAPI) handlePrecipitation(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	rows, err := a.records.Precipitation(r.Context(), sqlite.PrecipitationFilter{
		Location: filterValue(r, queryLocName),
		Period:   filterValue(r, "period"),
		Date:     r.URL.Query().Get("date"),
		Limit:    limit,
	})
	if err != nil {
		a.internalError(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, rows)
}

func (a *queryAPI) handleLocations(w http.ResponseWriter, r *http.Request) {
	locations, err := a.records.Locations(r.Context(), r.URL.Query().Get("stream"))
	if errors.Is(err, sqlite.ErrUnknownStream) {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err != nil {
		a.internalError(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, locations)
}

func (a *queryAPI) handlePeriods(w http.ResponseWriter, r *http.Request) {
	periods, err := a.records.Periods(r.Context(), filterValue(r, queryLocName))
	if err != nil {
		a.internalError(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, periods)
}

func (a *queryAPI) handleProfile(w http.ResponseWriter, r *http.Request) {
	location := filterValue(r, queryLocName)
	if location == "" {
		writeError(w, http.StatusBadRequest, errors.New("location is required"))
		return
	}

	date := r.URL.Query().Get("date")
	if date == "" || date == latestDate {
		latest, err := a.records.LatestPrecipitationDate(r.Context(), location)
		if err != nil {
			a.internalError(w, r, err)
			return
		}
		if latest == "" {
			writeError(w, http.StatusNotFound, errors.New("no precipitation records for location"))
			return
		}
		date = latest
	}

	rows, err := a.records.Precipitation(r.Context(), sqlite.PrecipitationFilter{
		Location: location,
		Date:     date,
		Limit:    sqlite.MaxLimit,
	})
	if err != nil {
		a.internalError(w, r, err)
		return
	}

	// Rows arrive newest first; replay oldest first so the newest insert of a
	// repeated period wins.
	records := make([]domain.PrecipitationRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.PrecipitationRecord)
	}
	slices.Reverse(records)

	sharedobs.WriteJSON(w, http.StatusOK, ProfileResponse{
		Location: location,
		Date:     date,
		Periods:  domain.PeriodProfile(records),
	})
}

func (a *queryAPI) internalError(w http.ResponseWriter, r *http.Request, err error) {
	a.logger.Error("query failed", "path", r.URL.Path, "error", err)
	writeError(w, http.StatusInternalServerError, errors.New("internal error"))
}

// filterValue reads a filter parameter, mapping "All" to no filter.
func filterValue(r *http.Request, key string) string {
	v := r.URL.Query().Get(key)
	if v == filterAll {
		return ""
	}
	return v
}

func parseLimit(r *http.Request) (int, error) {
	s := r.URL.Query().Get(queryLimit)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, errBadLimit
	}
	return n, nil
}

func writeError(w http.ResponseWriter, status int, err error) {
	sharedobs.WriteJSON(w, status, map[string]string{"error": err.Error()})
}
