package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/couchcryptid/weather-feed-etl/internal/domain"
	_ "github.com/mattn/go-sqlite3" // registers the "sqlite3" driver
)

const (
	// DefaultLimit caps read queries that do not ask for a limit.
	DefaultLimit = 1000
	// MaxLimit is the largest limit a read query accepts.
	MaxLimit = 10000
)

// Stream names accepted by Locations.
const (
	StreamObservations  = "observations"
	StreamPrecipitation = "precipitation"
)

// ErrUnknownStream is returned by Locations for an unsupported stream name.
var ErrUnknownStream = errors.New("unknown record stream")

const schema = `
CREATE TABLE IF NOT EXISTS weather (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	location TEXT,
	date TEXT,
	min_temp REAL,
	max_temp REAL,
	description TEXT,
	inserted_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS precipitation (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	location TEXT,
	date TEXT,
	period TEXT,
	precipitation REAL,
	inserted_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_weather_location_date ON weather(location, date);
CREATE INDEX IF NOT EXISTS idx_precipitation_location_date ON precipitation(location, date);
`

const (
	insertObservationQuery   = `INSERT INTO weather (location, date, min_temp, max_temp, description) VALUES (?, ?, ?, ?, ?)`
	insertPrecipitationQuery = `INSERT INTO precipitation (location, date, period, precipitation) VALUES (?, ?, ?, ?)`
)

// StoredObservation is an observation row as persisted.
type StoredObservation struct {
	ID int64 `json:"id"`
	domain.ObservationRecord
	InsertedAt time.Time `json:"inserted_at"`
}

// StoredPrecipitation is a precipitation row as persisted.
type StoredPrecipitation struct {
	ID int64 `json:"id"`
	domain.PrecipitationRecord
	InsertedAt time.Time `json:"inserted_at"`
}

// ObservationFilter narrows Observations. Zero values mean no filter.
type ObservationFilter struct {
	Location string
	Limit    int
}

// PrecipitationFilter narrows Precipitation. Zero values mean no filter.
type PrecipitationFilter struct {
	Location string
	Period   string
	Date     string
	Limit    int
}

// Store is the SQLite-backed record store. Rows are append-only.
// It implements pipeline.Loader.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and ensures the schema exists.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// A single connection serializes writers and keeps ":memory:" databases
	// from splitting across connections.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Name identifies the store in logs and metrics.
func (s *Store) Name() string { return "sqlite" }

// CheckReadiness pings the database.
func (s *Store) CheckReadiness(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// LoadObservations implements pipeline.Loader.
func (s *Store) LoadObservations(ctx context.Context, records []domain.ObservationRecord) (int, error) {
	return s.InsertObservations(ctx, records)
}

// LoadPrecipitation implements pipeline.Loader.
func (s *Store) LoadPrecipitation(ctx context.Context, records []domain.PrecipitationRecord) (int, error) {
	return s.InsertPrecipitation(ctx, records)
}

// InsertObservations appends records in one transaction. Either all rows are
// written or none are.
func (s *Store) InsertObservations(ctx context.Context, records []domain.ObservationRecord) (int, error) {
	return insertAll(ctx, s.db, insertObservationQuery, records, func(r domain.ObservationRecord) []any {
		return []any{r.Location, r.Date, r.MinTemp, r.MaxTemp, r.Description}
	})
}

// InsertPrecipitation appends records in one transaction.
func (s *Store) InsertPrecipitation(ctx context.Context, records []domain.PrecipitationRecord) (int, error) {
	return insertAll(ctx, s.db, insertPrecipitationQuery, records, func(r domain.PrecipitationRecord) []any {
		return []any{r.Location, r.Date, r.Period, r.Precipitation}
	})
}

func insertAll[T any](ctx context.Context, db *sql.DB, query string, records []T, args func(T) []any) (n int, err error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range records {
		if _, err := stmt.ExecContext(ctx, args(r)...); err != nil {
			return 0, fmt.Errorf("insert row %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(records), nil
}

// Observations returns stored observations, newest first.
func (s *Store) Observations(ctx context.Context, f ObservationFilter) ([]StoredObservation, error) {
	var (
		where []string
		args  []any
	)
	if f.Location != "" {
		where = append(where, "location = ?")
		args = append(args, f.Location)
	}
	query := `SELECT id, location, date, min_temp, max_temp, description, inserted_at FROM weather` +
		whereClause(where) + ` ORDER BY date DESC, id DESC LIMIT ?`
	args = append(args, clampLimit(f.Limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query observations: %w", err)
	}
	defer rows.Close()

	out := []StoredObservation{}
	for rows.Next() {
		var (
			o                StoredObservation
			location, date   sql.NullString
			minTemp, maxTemp sql.NullFloat64
			description      sql.NullString
		)
		if err := rows.Scan(&o.ID, &location, &date, &minTemp, &maxTemp, &description, &o.InsertedAt); err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		o.Location = location.String
		o.Date = date.String
		o.MinTemp = nullFloat(minTemp)
		o.MaxTemp = nullFloat(maxTemp)
		o.Description = nullString(description)
		out = append(out, o)
	}
	return out, rows.Err()
}

// Precipitation returns stored precipitation rows, newest first.
func (s *Store) Precipitation(ctx context.Context, f PrecipitationFilter) ([]StoredPrecipitation, error) {
	var (
		where []string
		args  []any
	)
	if f.Location != "" {
		where = append(where, "location = ?")
		args = append(args, f.Location)
	}
	if f.Period != "" {
		where = append(where, "period = ?")
		args = append(args, f.Period)
	}
	if f.Date != "" {
		where = append(where, "date = ?")
		args = append(args, f.Date)
	}
	query := `SELECT id, location, date, period, precipitation, inserted_at FROM precipitation` +
		whereClause(where) + ` ORDER BY date DESC, id DESC LIMIT ?`
	args = append(args, clampLimit(f.Limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query precipitation: %w", err)
	}
	defer rows.Close()

	out := []StoredPrecipitation{}
	for rows.Next() {
		var (
			p                      StoredPrecipitation
			location, date, period sql.NullString
			value                  sql.NullFloat64
		)
		if err := rows.Scan(&p.ID, &location, &date, &period, &value, &p.InsertedAt); err != nil {
			return nil, fmt.Errorf("scan precipitation: %w", err)
		}
		p.Location = location.String
		p.Date = date.String
		p.Period = period.String
		p.Precipitation = nullFloat(value)
		out = append(out, p)
	}
	return out, rows.Err()
}

// Locations lists the distinct station names of a stream, alphabetically.
func (s *Store) Locations(ctx context.Context, stream string) ([]string, error) {
	var table string
	switch stream {
	case StreamObservations, "":
		table = "weather"
	case StreamPrecipitation:
		table = "precipitation"
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStream, stream)
	}
	return s.distinct(ctx, `SELECT DISTINCT location FROM `+table+` WHERE location IS NOT NULL ORDER BY location`)
}

// Periods lists the distinct rainfall periods, optionally for one station, in
// canonical order with unknown periods last.
func (s *Store) Periods(ctx context.Context, location string) ([]string, error) {
	query := `SELECT DISTINCT period FROM precipitation WHERE period IS NOT NULL`
	var args []any
	if location != "" {
		query += ` AND location = ?`
		args = append(args, location)
	}
	periods, err := s.distinct(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	domain.SortPeriods(periods)
	return periods, nil
}

// LatestPrecipitationDate returns the newest observation date stored for a
// station, or "" when there is none.
func (s *Store) LatestPrecipitationDate(ctx context.Context, location string) (string, error) {
	var date sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT date FROM precipitation WHERE location = ? ORDER BY date DESC, id DESC LIMIT 1`, location,
	).Scan(&date)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query latest date: %w", err)
	}
	return date.String, nil
}

func (s *Store) distinct(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query distinct: %w", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan distinct: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func whereClause(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

func clampLimit(n int) int {
	switch {
	case n <= 0:
		return DefaultLimit
	case n > MaxLimit:
		return MaxLimit
	default:
		return n
	}
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}
