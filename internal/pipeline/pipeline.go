package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/weather-feed-etl/internal/domain"
	"github.com/couchcryptid/weather-feed-etl/internal/observability"
	"github.com/google/uuid"
)

type runIDKey struct{}

// RunIDFromContext returns the identifier of the run that issued ctx, or ""
// outside a run. Loaders use it to tag what they write.
func RunIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}

// ErrNoRecords is returned when a document yields no observation records.
// Nothing is loaded in that case.
var ErrNoRecords = errors.New("no observation records extracted")

// Run outcomes reported on the runs_total metric.
const (
	OutcomeSuccess    = "success"
	OutcomeNoRecords  = "no_records"
	OutcomeFetchError = "fetch_error"
	OutcomeParseError = "parse_error"
	OutcomeLoadError  = "load_error"
)

// Fetcher retrieves one raw provider document.
type Fetcher interface {
	Fetch(ctx context.Context) (domain.RawDocument, error)
}

// Transformer turns a raw document into both normalized record streams.
type Transformer interface {
	Transform(ctx context.Context, raw domain.RawDocument) (domain.Batch, error)
}

// Loader stores normalized records. Each method returns the number of rows
// written.
type Loader interface {
	Name() string
	LoadObservations(ctx context.Context, records []domain.ObservationRecord) (int, error)
	LoadPrecipitation(ctx context.Context, records []domain.PrecipitationRecord) (int, error)
}

// LoadResult is what one loader accepted during a run.
type LoadResult struct {
	Sink          string
	Observations  int
	Precipitation int
}

// RunSummary describes a finished run, successful or not.
type RunSummary struct {
	RunID         string
	Source        string
	Shape         string
	Stations      int
	Observations  int
	Precipitation int
	Skipped       map[string]map[string]int
	Loaded        []LoadResult
	Duration      time.Duration
}

// Pipeline orchestrates one fetch-normalize-load run at a time.
type Pipeline struct {
	fetcher     Fetcher
	transformer Transformer
	loaders     []Loader
	logger      *slog.Logger
	metrics     *observability.Metrics

	mu    sync.Mutex
	ready atomic.Bool
}

// New creates a Pipeline. Loaders are written in the order given; the first
// one is normally the durable store.
func New(f Fetcher, t Transformer, logger *slog.Logger, metrics *observability.Metrics, loaders ...Loader) *Pipeline {
	return &Pipeline{
		fetcher:     f,
		transformer: t,
		loaders:     loaders,
		logger:      logger,
		metrics:     metrics,
	}
}

// CheckReadiness returns nil once a run has stored records.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not completed a successful run yet")
	}
	return nil
}

// RunOnce performs a single run. Concurrent calls are serialized.
func (p *Pipeline) RunOnce(ctx context.Context) (RunSummary, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := time.Now()
	summary := RunSummary{RunID: uuid.NewString()}
	logger := p.logger.With("run_id", summary.RunID)
	ctx = context.WithValue(ctx, runIDKey{}, summary.RunID)

	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	outcome, err := p.run(ctx, logger, &summary)
	summary.Duration = time.Since(start)
	p.metrics.RunsTotal.WithLabelValues(outcome).Inc()
	p.metrics.RunDuration.Observe(summary.Duration.Seconds())

	if err != nil {
		if errors.Is(err, ErrNoRecords) {
			logger.Warn("run produced no records", "source", summary.Source, "shape", summary.Shape, "stations", summary.Stations)
		} else {
			logger.Error("run failed", "outcome", outcome, "error", err)
		}
		return summary, err
	}

	p.ready.Store(true)
	p.metrics.LastSuccessTimestamp.SetToCurrentTime()
	logger.Info("run complete",
		"shape", summary.Shape,
		"stations", summary.Stations,
		"observations", summary.Observations,
		"precipitation", summary.Precipitation,
		"duration", summary.Duration,
	)
	return summary, nil
}

func (p *Pipeline) run(ctx context.Context, logger *slog.Logger, summary *RunSummary) (string, error) {
	raw, err := p.fetcher.Fetch(ctx)
	if err != nil {
		return OutcomeFetchError, fmt.Errorf("fetch: %w", err)
	}
	summary.Source = raw.Source
	p.metrics.DocumentsFetched.Inc()
	logger.Info("document fetched", "source", raw.Source, "bytes", len(raw.Body))

	batch, err := p.transformer.Transform(ctx, raw)
	if err != nil {
		return OutcomeParseError, fmt.Errorf("transform: %w", err)
	}
	summary.Shape = batch.Shape
	summary.Stations = batch.Stations
	summary.Skipped = batch.SkipCounts()
	p.reportSkips(logger, batch)

	observations := batch.ObservationRecords()
	precipitation := batch.PrecipitationRecords()
	summary.Observations = len(observations)
	summary.Precipitation = len(precipitation)
	p.metrics.RecordsExtracted.WithLabelValues(streamObservation).Add(float64(len(observations)))
	p.metrics.RecordsExtracted.WithLabelValues(streamPrecipitation).Add(float64(len(precipitation)))

	if len(observations) == 0 {
		return OutcomeNoRecords, ErrNoRecords
	}
	if len(precipitation) == 0 {
		logger.Info("no precipitation records found in document")
	}

	for _, l := range p.loaders {
		res, err := p.load(ctx, l, observations, precipitation)
		summary.Loaded = append(summary.Loaded, res)
		if err != nil {
			return OutcomeLoadError, err
		}
		logger.Info("records loaded", "sink", res.Sink, "observations", res.Observations, "precipitation", res.Precipitation)
	}
	return OutcomeSuccess, nil
}

const (
	streamObservation   = "observation"
	streamPrecipitation = "precipitation"
)

func (p *Pipeline) load(ctx context.Context, l Loader, observations []domain.ObservationRecord, precipitation []domain.PrecipitationRecord) (LoadResult, error) {
	res := LoadResult{Sink: l.Name()}

	n, err := l.LoadObservations(ctx, observations)
	if err != nil {
		return res, fmt.Errorf("load observations into %s: %w", res.Sink, err)
	}
	res.Observations = n
	p.metrics.RecordsStored.WithLabelValues(streamObservation, res.Sink).Add(float64(n))

	if len(precipitation) == 0 {
		return res, nil
	}
	n, err = l.LoadPrecipitation(ctx, precipitation)
	if err != nil {
		return res, fmt.Errorf("load precipitation into %s: %w", res.Sink, err)
	}
	res.Precipitation = n
	p.metrics.RecordsStored.WithLabelValues(streamPrecipitation, res.Sink).Add(float64(n))
	return res, nil
}

// reportSkips logs each skipped station at debug and one warning per run.
func (p *Pipeline) reportSkips(logger *slog.Logger, batch domain.Batch) {
	for _, r := range batch.Observations {
		if r.Status == domain.StatusSkipped {
			logger.Debug("station skipped", "stream", streamObservation, "index", r.Index, "reason", r.Reason)
		}
	}
	for _, r := range batch.Precipitation {
		if r.Status == domain.StatusSkipped {
			logger.Debug("station skipped", "stream", streamPrecipitation, "index", r.Index, "reason", r.Reason)
		}
	}

	counts := batch.SkipCounts()
	total := 0
	for stream, reasons := range counts {
		for reason, n := range reasons {
			p.metrics.RecordsSkipped.WithLabelValues(stream, reason).Add(float64(n))
			total += n
		}
	}
	if total > 0 {
		logger.Warn("stations skipped", "count", total, "by_stream", counts)
	}
}
