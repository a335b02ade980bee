package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// InstrumentationName is the meter name used for capture metrics.
const InstrumentationName = "github.com/roach88/tead"

// Metrics records capture outcomes as OpenTelemetry instruments:
//
//	tead.capture.recorded        counter   {entry}
//	tead.capture.skipped         counter   {call}   reason
//	tead.capture.encode_failures counter   {error}  error.type
//	tead.capture.persist_failures counter  {error}  error.type
//	tead.capture.overhead        histogram s
//
// Every instrument carries a "tead.target" attribute.
//
// Thread-safety: Metrics is safe for concurrent use.
type Metrics struct {
	recorded        metric.Int64Counter
	skipped         metric.Int64Counter
	encodeFailures  metric.Int64Counter
	persistFailures metric.Int64Counter
	overhead        metric.Float64Histogram
}

// NewMetrics creates the capture instruments on meter. A nil meter uses
// the global meter provider.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		meter = otel.Meter(InstrumentationName)
	}

	m := &Metrics{}
	var err error
	m.recorded, err = meter.Int64Counter("tead.capture.recorded",
		metric.WithDescription("Entries persisted by the capture guard"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create recorded counter: %w", err)
	}

	m.skipped, err = meter.Int64Counter("tead.capture.skipped",
		metric.WithDescription("Calls that produced no entry by design"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create skipped counter: %w", err)
	}

	m.encodeFailures, err = meter.Int64Counter("tead.capture.encode_failures",
		metric.WithDescription("Calls whose inputs or result could not be encoded"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create encode failure counter: %w", err)
	}

	m.persistFailures, err = meter.Int64Counter("tead.capture.persist_failures",
		metric.WithDescription("Entries rejected by the storage backend"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create persist failure counter: %w", err)
	}

	m.overhead, err = meter.Float64Histogram("tead.capture.overhead",
		metric.WithDescription("Time spent encoding and persisting one entry"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0),
	)
	if err != nil {
		return nil, fmt.Errorf("create overhead histogram: %w", err)
	}

	return m, nil
}

func targetAttr(target string) attribute.KeyValue {
	return attribute.String("tead.target", target)
}

func (m *Metrics) Recorded(ctx context.Context, target string, elapsed time.Duration) {
	attrs := metric.WithAttributes(targetAttr(target))
	m.recorded.Add(ctx, 1, attrs)
	m.overhead.Record(ctx, elapsed.Seconds(), attrs)
}

func (m *Metrics) Skipped(ctx context.Context, target string, reason SkipReason) {
	m.skipped.Add(ctx, 1, metric.WithAttributes(targetAttr(target), attribute.String("reason", string(reason))))
}

func (m *Metrics) EncodeFailed(ctx context.Context, target string, err error) {
	m.encodeFailures.Add(ctx, 1, metric.WithAttributes(targetAttr(target), attribute.String("error.type", fmt.Sprintf("%T", err))))
}

func (m *Metrics) PersistFailed(ctx context.Context, target string, err error) {
	m.persistFailures.Add(ctx, 1, metric.WithAttributes(targetAttr(target), attribute.String("error.type", fmt.Sprintf("%T", err))))
}
