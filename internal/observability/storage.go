package observability

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"voucherwatch/internal/models"
	"voucherwatch/internal/storage"
)

// InstrumentedStorage wraps a storage.Storage implementation with
// OpenTelemetry tracing and metrics instrumentation.
type InstrumentedStorage struct {
	inner    storage.Storage
	tracer   trace.Tracer
	duration metric.Float64Histogram
	errors   metric.Int64Counter
}

// NewInstrumentedStorage creates a storage wrapper that records a span,
// a latency sample and, on failure, an error count for every call.
func NewInstrumentedStorage(inner storage.Storage) (*InstrumentedStorage, error) {
	tracer := otel.Tracer("voucherwatch/storage")
	meter := otel.Meter("voucherwatch/storage")

	duration, err := meter.Float64Histogram(
		"storage.operation.duration",
		metric.WithDescription("Duration of storage operations in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	errCounter, err := meter.Int64Counter(
		"storage.operation.errors",
		metric.WithDescription("Number of storage operation errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	return &InstrumentedStorage{
		inner:    inner,
		tracer:   tracer,
		duration: duration,
		errors:   errCounter,
	}, nil
}

func (s *InstrumentedStorage) startSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "storage."+operation,
		trace.WithAttributes(append([]attribute.KeyValue{
			attribute.String("storage.operation", operation),
		}, attrs...)...),
	)
}

func (s *InstrumentedStorage) record(ctx context.Context, span trace.Span, operation string, start time.Time, err error) {
	attrs := metric.WithAttributes(attribute.String("operation", operation))

	s.duration.Record(ctx, time.Since(start).Seconds(), attrs)

	// A missing link is an expected answer, not a backend failure.
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.errors.Add(ctx, 1, attrs)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	span.End()
}

func (s *InstrumentedStorage) Links(ctx context.Context) ([]*models.VoucherLink, error) {
	ctx, span := s.startSpan(ctx, "Links")
	start := time.Now()
	result, err := s.inner.Links(ctx)
	span.SetAttributes(attribute.Int("link_count", len(result)))
	s.record(ctx, span, "Links", start, err)
	return result, err
}

func (s *InstrumentedStorage) GetLink(ctx context.Context, id string) (*models.VoucherLink, error) {
	ctx, span := s.startSpan(ctx, "GetLink", attribute.String("link_id", id))
	start := time.Now()
	result, err := s.inner.GetLink(ctx, id)
	s.record(ctx, span, "GetLink", start, err)
	return result, err
}

// GetLinkByFingerprint does not put the fingerprint on the span.
func (s *InstrumentedStorage) GetLinkByFingerprint(ctx context.Context, fingerprint string) (*models.VoucherLink, error) {
	ctx, span := s.startSpan(ctx, "GetLinkByFingerprint")
	start := time.Now()
	result, err := s.inner.GetLinkByFingerprint(ctx, fingerprint)
	s.record(ctx, span, "GetLinkByFingerprint", start, err)
	return result, err
}

func (s *InstrumentedStorage) CreateLink(ctx context.Context, link *models.VoucherLink) error {
	ctx, span := s.startSpan(ctx, "CreateLink", attribute.String("link_id", link.ID))
	start := time.Now()
	err := s.inner.CreateLink(ctx, link)
	s.record(ctx, span, "CreateLink", start, err)
	return err
}

func (s *InstrumentedStorage) DeleteLink(ctx context.Context, id string) error {
	ctx, span := s.startSpan(ctx, "DeleteLink", attribute.String("link_id", id))
	start := time.Now()
	err := s.inner.DeleteLink(ctx, id)
	s.record(ctx, span, "DeleteLink", start, err)
	return err
}

func (s *InstrumentedStorage) Ping(ctx context.Context) error {
	ctx, span := s.startSpan(ctx, "Ping")
	start := time.Now()
	err := s.inner.Ping(ctx)
	s.record(ctx, span, "Ping", start, err)
	return err
}

func (s *InstrumentedStorage) Close() error {
	return s.inner.Close()
}

var _ storage.Storage = (*InstrumentedStorage)(nil)
