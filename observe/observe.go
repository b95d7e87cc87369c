// Package observe holds the OpenTelemetry metric instruments for the
// dictation pipeline, exported through a Prometheus bridge so a plain
// /metrics scrape works. Tests build their own Metrics with an isolated
// MeterProvider; the process uses the global one.
package observe

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const meterName = "murmur"

// latencyBuckets covers dictation latencies: a warm local model lands under
// a second, a cold load or slow API can take tens of seconds.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// Metrics holds every instrument the session layer records into. The OTel
// types are safe for concurrent use.
type Metrics struct {
	// SessionDuration tracks wall time from stop to final outcome.
	SessionDuration metric.Float64Histogram

	// TranscribeDuration tracks engine inference latency.
	TranscribeDuration metric.Float64Histogram

	// Sessions counts completed sessions. Attributes: result, start.
	Sessions metric.Int64Counter

	// PasteOutcomes counts insertion results. Attribute: outcome.
	PasteOutcomes metric.Int64Counter

	// ActiveSessions tracks sessions currently past Idle.
	ActiveSessions metric.Int64UpDownCounter
}

func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.SessionDuration, err = m.Float64Histogram("murmur.session.duration",
		metric.WithDescription("Wall time from stop-listening to final outcome."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TranscribeDuration, err = m.Float64Histogram("murmur.transcribe.duration",
		metric.WithDescription("Transcription engine inference latency."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Sessions, err = m.Int64Counter("murmur.sessions",
		metric.WithDescription("Completed recording sessions by result and warm/cold start."),
	); err != nil {
		return nil, err
	}
	if met.PasteOutcomes, err = m.Int64Counter("murmur.paste.outcomes",
		metric.WithDescription("Insertion results by outcome."),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("murmur.active_sessions",
		metric.WithDescription("Recording sessions currently in progress."),
	); err != nil {
		return nil, err
	}
	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the process-wide Metrics built on the global meter
// provider.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordSession records one completed session with its result ("pasted",
// "copied_fallback", "no_speech", "failed", "too_short") and start kind.
func (m *Metrics) RecordSession(ctx context.Context, result string, warm bool, total time.Duration) {
	start := "cold"
	if warm {
		start = "warm"
	}
	m.Sessions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("result", result),
		attribute.String("start", start),
	))
	m.SessionDuration.Record(ctx, total.Seconds())
}

// RecordPaste records one insertion outcome.
func (m *Metrics) RecordPaste(ctx context.Context, outcome string) {
	m.PasteOutcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// InitProvider wires a Prometheus-backed MeterProvider as the global OTel
// provider and returns its shutdown function.
func InitProvider(ctx context.Context, version string) (shutdown func(context.Context) error, err error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName("murmur"),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return nil, err
	}

	promExp, err := promexporter.New()
	if err != nil {
		return nil, err
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(promExp),
	)
	otel.SetMeterProvider(mp)
	return mp.Shutdown, nil
}

// ServeMetrics exposes /metrics on addr until the context ends.
func ServeMetrics(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
