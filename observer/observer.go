// Package observer provides OTEL-based observability for cache cascade
// traversals.
//
// It implements ragcache.QueryObserver, emitting one span per query plus
// tier-hit counters and per-stage latency histograms. Users export to any
// OTEL-compatible backend by setting standard OTEL env vars.
package observer

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const scopeName = "github.com/fnusatvik07/rag-project2/observer"

// Instruments holds all OTEL instruments used by the query observer.
type Instruments struct {
	Tracer trace.Tracer
	Meter  metric.Meter

	// Counters
	Queries     metric.Int64Counter
	QueryErrors metric.Int64Counter

	// Histograms, one per pipeline stage, all in milliseconds.
	LookupDuration    metric.Float64Histogram
	EmbedDuration     metric.Float64Histogram
	RetrieveDuration  metric.Float64Histogram
	RerankDuration    metric.Float64Histogram
	GenerateDuration  metric.Float64Histogram
	WriteBackDuration metric.Float64Histogram
}

// Init sets up OTEL trace and metric providers with OTLP HTTP exporters.
// Configuration comes from standard OTEL env vars
// (OTEL_EXPORTER_OTLP_ENDPOINT, etc.). Returns a shutdown function that
// must be called on application exit.
func Init(ctx context.Context, serviceName string) (*Instruments, func(context.Context) error, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName(serviceName)),
		resource.WithFromEnv(),
	)
	if err != nil {
		return nil, nil, err
	}

	traceExp, err := otlptracehttp.New(ctx)
	if err != nil {
		return nil, nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	metricExp, err := otlpmetrichttp.New(ctx)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, nil, err
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	inst, err := newInstruments()
	if err != nil {
		_ = tp.Shutdown(ctx)
		_ = mp.Shutdown(ctx)
		return nil, nil, err
	}

	shutdown := func(ctx context.Context) error {
		return errors.Join(
			tp.Shutdown(ctx),
			mp.Shutdown(ctx),
		)
	}
	return inst, shutdown, nil
}

// NewInstruments builds instruments against the globally registered
// providers. Useful in tests or when the host application already owns
// the OTEL setup.
func NewInstruments() (*Instruments, error) {
	return newInstruments()
}

func newInstruments() (*Instruments, error) {
	meter := otel.Meter(scopeName)

	queries, err := meter.Int64Counter("cache.queries",
		metric.WithDescription("Query count by serving tier"),
		metric.WithUnit("{query}"))
	if err != nil {
		return nil, err
	}
	queryErrors, err := meter.Int64Counter("cache.query.errors",
		metric.WithDescription("Failed query count"),
		metric.WithUnit("{query}"))
	if err != nil {
		return nil, err
	}

	hist := func(name, desc string) (metric.Float64Histogram, error) {
		return meter.Float64Histogram(name,
			metric.WithDescription(desc),
			metric.WithUnit("ms"))
	}
	lookup, err := hist("cache.lookup.duration", "Cache tier lookup duration")
	if err != nil {
		return nil, err
	}
	embed, err := hist("cache.embed.duration", "Query embedding duration")
	if err != nil {
		return nil, err
	}
	retrieve, err := hist("cache.retrieve.duration", "Vector search duration")
	if err != nil {
		return nil, err
	}
	rerank, err := hist("cache.rerank.duration", "Rerank duration")
	if err != nil {
		return nil, err
	}
	generate, err := hist("cache.generate.duration", "Generation duration")
	if err != nil {
		return nil, err
	}
	writeBack, err := hist("cache.writeback.duration", "Cache write-back duration")
	if err != nil {
		return nil, err
	}

	return &Instruments{
		Tracer:            otel.Tracer(scopeName),
		Meter:             meter,
		Queries:           queries,
		QueryErrors:       queryErrors,
		LookupDuration:    lookup,
		EmbedDuration:     embed,
		RetrieveDuration:  retrieve,
		RerankDuration:    rerank,
		GenerateDuration:  generate,
		WriteBackDuration: writeBack,
	}, nil
}
