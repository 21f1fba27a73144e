package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"voucherwatch/internal/ratelimit"
)

// Rate limit decision outcomes.
const (
	OutcomeAllowed = "allowed"
	OutcomeDenied  = "denied"
)

// InstrumentedLimiter counts admission decisions by outcome. Identities are
// never recorded.
type InstrumentedLimiter struct {
	inner     ratelimit.Limiter
	decisions metric.Int64Counter
	allowed   metric.MeasurementOption
	denied    metric.MeasurementOption
}

// NewInstrumentedLimiter wraps inner with a decision counter.
func NewInstrumentedLimiter(inner ratelimit.Limiter) (*InstrumentedLimiter, error) {
	meter := otel.Meter("voucherwatch/ratelimit")

	decisions, err := meter.Int64Counter(
		"ratelimit.decisions",
		metric.WithDescription("Number of rate limit decisions by outcome"),
		metric.WithUnit("{decision}"),
	)
	if err != nil {
		return nil, err
	}

	return &InstrumentedLimiter{
		inner:     inner,
		decisions: decisions,
		allowed:   metric.WithAttributeSet(attribute.NewSet(attribute.String("outcome", OutcomeAllowed))),
		denied:    metric.WithAttributeSet(attribute.NewSet(attribute.String("outcome", OutcomeDenied))),
	}, nil
}

func (l *InstrumentedLimiter) CheckLimit(identity string) ratelimit.Result {
	result := l.inner.CheckLimit(identity)
	if result.Allowed {
		l.decisions.Add(context.Background(), 1, l.allowed)
	} else {
		l.decisions.Add(context.Background(), 1, l.denied)
	}
	return result
}

func (l *InstrumentedLimiter) Capacity() int {
	return l.inner.Capacity()
}

var _ ratelimit.Limiter = (*InstrumentedLimiter)(nil)
