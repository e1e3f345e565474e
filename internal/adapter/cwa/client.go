package cwa

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/storm-data-shared/retry"
	"github.com/couchcryptid/weather-feed-etl/internal/config"
	"github.com/couchcryptid/weather-feed-etl/internal/domain"
	"github.com/couchcryptid/weather-feed-etl/internal/observability"
	"github.com/sony/gobreaker"
	"github.com/tidwall/gjson"
)

const (
	initialBackoff = 500 * time.Millisecond
	maxBackoff     = 5 * time.Second

	// maxBodyBytes bounds a single provider document.
	maxBodyBytes = 64 << 20
)

var (
	// ErrCircuitOpen is returned while the breaker rejects requests.
	ErrCircuitOpen = errors.New("feed circuit breaker open")
	// ErrStatus is wrapped for any non-2xx provider response.
	ErrStatus = errors.New("unexpected feed status")

	errRetryable = errors.New("retryable")
)

// Client fetches the CWA open-data feed. It implements pipeline.Fetcher.
type Client struct {
	feedURL      string
	apiKey       string
	maxRetries   int
	snapshotPath string

	httpClient     *http.Client
	breaker        *gobreaker.CircuitBreaker
	initialBackoff time.Duration
	maxBackoff     time.Duration
	logger         *slog.Logger
	metrics        *observability.Metrics
}

// NewClient creates a feed client from the fetch settings in cfg.
func NewClient(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		feedURL:        cfg.FeedURL,
		apiKey:         cfg.APIKey,
		maxRetries:     cfg.FetchMaxRetries,
		snapshotPath:   cfg.RawSnapshotPath,
		httpClient:     &http.Client{Timeout: cfg.FetchTimeout},
		breaker:        newBreaker(logger),
		initialBackoff: initialBackoff,
		maxBackoff:     maxBackoff,
		logger:         logger,
		metrics:        metrics,
	}
}

func newBreaker(logger *slog.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "cwa-feed",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
}

// Fetch downloads one document, retrying rate limits, server errors, and
// transport failures with exponential backoff. The body must be valid JSON.
func (c *Client) Fetch(ctx context.Context) (domain.RawDocument, error) {
	reqURL, err := c.requestURL()
	if err != nil {
		return domain.RawDocument{}, err
	}

	backoff := c.initialBackoff
	for attempt := 0; ; attempt++ {
		body, err := c.attempt(ctx, reqURL)
		if err == nil {
			if !gjson.ValidBytes(body) {
				return domain.RawDocument{}, fmt.Errorf("fetch %s: %w", c.feedURL, domain.ErrInvalidDocument)
			}
			c.writeSnapshot(body)
			return domain.RawDocument{Body: body, Source: c.feedURL, FetchedAt: time.Now().UTC()}, nil
		}

		c.metrics.FetchErrors.Inc()
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return domain.RawDocument{}, fmt.Errorf("%w: %v", ErrCircuitOpen, err)
		}
		if !errors.Is(err, errRetryable) || attempt >= c.maxRetries {
			return domain.RawDocument{}, err
		}

		c.logger.Warn("feed request failed, retrying", "error", err, "attempt", attempt+1, "backoff", backoff)
		if !retry.SleepWithContext(ctx, backoff) {
			return domain.RawDocument{}, ctx.Err()
		}
		backoff = retry.NextBackoff(backoff, c.maxBackoff)
	}
}

// requestURL adds the CWA download parameters, keeping any already on the URL.
func (c *Client) requestURL() (string, error) {
	u, err := url.Parse(c.feedURL)
	if err != nil {
		return "", fmt.Errorf("parse feed url: %w", err)
	}
	q := u.Query()
	if c.apiKey != "" {
		q.Set("Authorization", c.apiKey)
	}
	if q.Get("downloadType") == "" {
		q.Set("downloadType", "WEB")
	}
	if q.Get("format") == "" {
		q.Set("format", "JSON")
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Client) attempt(ctx context.Context, reqURL string) ([]byte, error) {
	result, err := c.breaker.Execute(func() (any, error) {
		start := time.Now()
		defer func() { c.metrics.FetchDuration.Observe(time.Since(start).Seconds()) }()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("%w: feed request: %v", errRetryable, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil, fmt.Errorf("%w: %w %d", errRetryable, ErrStatus, resp.StatusCode)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return nil, fmt.Errorf("%w %d: %s", ErrStatus, resp.StatusCode, snippet)
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return nil, fmt.Errorf("%w: read feed body: %v", errRetryable, err)
		}
		return body, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}

// writeSnapshot stores a pretty-printed copy of the document for inspection.
// Failures are logged and otherwise ignored.
func (c *Client) writeSnapshot(body []byte) {
	if c.snapshotPath == "" {
		return
	}
	pretty := gjson.GetBytes(body, "@pretty").Raw
	tmp, err := os.CreateTemp(filepath.Dir(c.snapshotPath), ".raw-*.json")
	if err != nil {
		c.logger.Warn("save raw snapshot failed", "path", c.snapshotPath, "error", err)
		return
	}
	_, werr := tmp.WriteString(pretty)
	cerr := tmp.Close()
	if err := errors.Join(werr, cerr); err != nil {
		_ = os.Remove(tmp.Name())
		c.logger.Warn("save raw snapshot failed", "path", c.snapshotPath, "error", err)
		return
	}
	if err := os.Rename(tmp.Name(), c.snapshotPath); err != nil {
		_ = os.Remove(tmp.Name())
		c.logger.Warn("save raw snapshot failed", "path", c.snapshotPath, "error", err)
		return
	}
	c.logger.Info("saved raw snapshot", "path", c.snapshotPath)
}
