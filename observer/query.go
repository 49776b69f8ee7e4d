package observer

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	ragcache "github.com/fnusatvik07/rag-project2"
)

// QueryObserver records one span and a set of metrics for every cascade
// traversal.
type QueryObserver struct {
	inst *Instruments
}

var _ ragcache.QueryObserver = (*QueryObserver)(nil)

// NewQueryObserver creates an observer emitting through inst.
func NewQueryObserver(inst *Instruments) *QueryObserver {
	return &QueryObserver{inst: inst}
}

// ObserveQuery records the traversal outcome. The span is retroactive:
// started and ended here, carrying the serving tier and stage timings as
// attributes.
func (o *QueryObserver) ObserveQuery(ctx context.Context, res ragcache.QueryResult, err error) {
	tierAttr := attribute.String("cache.tier", res.Tier.String())

	_, span := o.inst.Tracer.Start(ctx, "cache.query",
		trace.WithAttributes(
			tierAttr,
			attribute.String("run.id", res.RunID),
			attribute.Bool("no_context", res.NoContext),
			attribute.Int("context.count", len(res.ContextIDs)),
		))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		o.inst.QueryErrors.Add(ctx, 1, metric.WithAttributes(tierAttr))
	}
	span.End()

	o.inst.Queries.Add(ctx, 1, metric.WithAttributes(tierAttr))
	o.recordStages(ctx, res.Timings, tierAttr)
}

func (o *QueryObserver) recordStages(ctx context.Context, t ragcache.StageTimings, tierAttr attribute.KeyValue) {
	opts := metric.WithAttributes(tierAttr)
	record := func(h metric.Float64Histogram, us int64) {
		if us > 0 {
			h.Record(ctx, float64(us)/float64(time.Millisecond.Microseconds()), opts)
		}
	}
	record(o.inst.LookupDuration, t.Lookup)
	record(o.inst.EmbedDuration, t.Embed)
	record(o.inst.RetrieveDuration, t.Retrieve)
	record(o.inst.RerankDuration, t.Rerank)
	record(o.inst.GenerateDuration, t.Generate)
	record(o.inst.WriteBackDuration, t.WriteBack)
}
