package observability

import (
	"context"
	"errors"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"voucherwatch/internal/cdc"
	"voucherwatch/internal/models"
)

// InstrumentedFetcher records every upstream voucher API call: a span, a
// call counter labelled with the resulting status and a latency histogram.
type InstrumentedFetcher struct {
	inner    cdc.Fetcher
	tracer   trace.Tracer
	calls    metric.Int64Counter
	duration metric.Float64Histogram
}

// NewInstrumentedFetcher wraps inner with tracing and call metrics.
func NewInstrumentedFetcher(inner cdc.Fetcher) (*InstrumentedFetcher, error) {
	meter := otel.Meter("voucherwatch/cdc")

	calls, err := meter.Int64Counter(
		"upstream.calls",
		metric.WithDescription("Number of voucher API calls by status"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram(
		"upstream.call.duration",
		metric.WithDescription("Duration of voucher API calls in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &InstrumentedFetcher{
		inner:    inner,
		tracer:   otel.Tracer("voucherwatch/cdc"),
		calls:    calls,
		duration: duration,
	}, nil
}

// FetchVoucherGroup delegates to the wrapped fetcher. The voucher ID is kept
// off spans and metrics.
func (f *InstrumentedFetcher) FetchVoucherGroup(ctx context.Context, voucherID string) (*models.VoucherData, error) {
	ctx, span := f.tracer.Start(ctx, "cdc.FetchVoucherGroup")
	defer span.End()

	start := time.Now()
	data, err := f.inner.FetchVoucherGroup(ctx, voucherID)
	status := CallStatus(err)

	attrs := metric.WithAttributes(attribute.String("status", status))
	f.calls.Add(ctx, 1, attrs)
	f.duration.Record(ctx, time.Since(start).Seconds(), attrs)

	span.SetAttributes(attribute.String("upstream.status", status))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, status)
	} else {
		span.SetStatus(codes.Ok, "")
	}

	return data, err
}

// CallStatus classifies an upstream call result: "ok" on success, the HTTP
// status code for API errors, "canceled" when the caller gave up and "error"
// for transport failures.
func CallStatus(err error) string {
	if err == nil {
		return "ok"
	}

	var upstreamErr *cdc.UpstreamError
	if errors.As(err, &upstreamErr) {
		return strconv.Itoa(upstreamErr.StatusCode)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "canceled"
	}
	return "error"
}

var _ cdc.Fetcher = (*InstrumentedFetcher)(nil)
