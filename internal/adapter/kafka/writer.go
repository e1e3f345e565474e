package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/weather-feed-etl/internal/config"
	"github.com/couchcryptid/weather-feed-etl/internal/domain"
	"github.com/couchcryptid/weather-feed-etl/internal/pipeline"
	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"
)

// Header values for the stream header.
const (
	StreamObservation   = "observation"
	StreamPrecipitation = "precipitation"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes normalized records as JSON, one topic per stream.
// It implements pipeline.Loader.
type Writer struct {
	writer             messageWriter
	observationTopic   string
	precipitationTopic string
	clock              clockwork.Clock
	logger             *slog.Logger
}

// NewWriter creates a Kafka producer for the configured record topics.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{
		writer:             w,
		observationTopic:   cfg.KafkaObservationTopic,
		precipitationTopic: cfg.KafkaPrecipitationTopic,
		clock:              clockwork.NewRealClock(),
		logger:             logger,
	}
}

// Name identifies the sink in logs and metrics.
func (w *Writer) Name() string { return "kafka" }

// LoadObservations publishes observation records in a single WriteMessages call.
func (w *Writer) LoadObservations(ctx context.Context, records []domain.ObservationRecord) (int, error) {
	return publish(ctx, w, w.observationTopic, StreamObservation, records, func(r domain.ObservationRecord) string { return r.Location })
}

// LoadPrecipitation publishes precipitation records in a single WriteMessages call.
func (w *Writer) LoadPrecipitation(ctx context.Context, records []domain.PrecipitationRecord) (int, error) {
	return publish(ctx, w, w.precipitationTopic, StreamPrecipitation, records, func(r domain.PrecipitationRecord) string { return r.Location })
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

func publish[T any](ctx context.Context, w *Writer, topic, stream string, records []T, key func(T) string) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	meta := messageMeta{
		topic:       topic,
		stream:      stream,
		runID:       pipeline.RunIDFromContext(ctx),
		processedAt: w.clock.Now().UTC(),
	}
	msgs := make([]kafkago.Message, len(records))
	for i := range records {
		msg, err := serializeToMessage(meta, key(records[i]), records[i])
		if err != nil {
			return 0, err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return 0, fmt.Errorf("publish %s records to %s: %w", stream, topic, err)
	}
	w.logger.Debug("records published", "topic", topic, "count", len(msgs))
	return len(msgs), nil
}

type messageMeta struct {
	topic       string
	stream      string
	runID       string
	processedAt time.Time
}

// serializeToMessage marshals one record into a Kafka message keyed by station,
// so a station's records stay on one partition.
func serializeToMessage(meta messageMeta, key string, record any) (kafkago.Message, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize %s record: %w", meta.stream, err)
	}
	headers := []kafkago.Header{
		{Key: "stream", Value: []byte(meta.stream)},
		{Key: "processed_at", Value: []byte(meta.processedAt.Format(time.RFC3339))},
	}
	if meta.runID != "" {
		headers = append(headers, kafkago.Header{Key: "run_id", Value: []byte(meta.runID)})
	}
	return kafkago.Message{
		Topic:   meta.topic,
		Key:     []byte(key),
		Value:   data,
		Headers: headers,
	}, nil
}
