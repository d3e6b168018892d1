package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric names.
const (
	metricFilesCollected = "guidelint.files.collected"
	metricCacheHits      = "guidelint.cache.hits"
	metricFilesAnalyzed  = "guidelint.files.analyzed"
	metricFilesSkipped   = "guidelint.files.skipped"
	metricAPICalls       = "guidelint.api.calls"
	metricAPIRetries     = "guidelint.api.retries"
	metricTokens         = "guidelint.api.tokens"
	metricViolations     = "guidelint.violations"
	metricBatchDuration  = "guidelint.batch.duration"
	metricRunDuration    = "guidelint.run.duration"
)

// Token kinds recorded on the tokens counter.
const (
	TokensInput         = "input"
	TokensOutput        = "output"
	TokensCacheRead     = "cache_read"
	TokensCacheCreation = "cache_creation"
)

const (
	attrTokenKind = "kind"
	attrOutcome   = "outcome"
	attrMode      = "run.mode"
)

// RunInstruments records compliance run metrics.
type RunInstruments struct {
	filesCollected metric.Int64Counter
	cacheHits      metric.Int64Counter
	filesAnalyzed  metric.Int64Counter
	filesSkipped   metric.Int64Counter
	apiCalls       metric.Int64Counter
	apiRetries     metric.Int64Counter
	tokens         metric.Int64Counter
	violations     metric.Int64Counter
	batchDuration  metric.Float64Histogram
	runDuration    metric.Float64Histogram
}

// NewRunInstruments creates the run instruments on meter.
func NewRunInstruments(meter metric.Meter) (*RunInstruments, error) {
	var (
		ri  RunInstruments
		err error
	)

	counters := []struct {
		dst        *metric.Int64Counter
		name, desc string
		unit       string
	}{
		{&ri.filesCollected, metricFilesCollected, "Candidate files collected.", "{file}"},
		{&ri.cacheHits, metricCacheHits, "Files answered from the verdict cache.", "{file}"},
		{&ri.filesAnalyzed, metricFilesAnalyzed, "Files sent for analysis.", "{file}"},
		{&ri.filesSkipped, metricFilesSkipped, "Files skipped by the reader.", "{file}"},
		{&ri.apiCalls, metricAPICalls, "Successful analysis calls.", "{call}"},
		{&ri.apiRetries, metricAPIRetries, "Analysis attempts beyond the first.", "{attempt}"},
		{&ri.tokens, metricTokens, "Tokens consumed by analysis calls.", "{token}"},
		{&ri.violations, metricViolations, "Violations reported.", "{violation}"},
	}

	for _, c := range counters {
		*c.dst, err = meter.Int64Counter(c.name, metric.WithDescription(c.desc), metric.WithUnit(c.unit))
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", c.name, err)
		}
	}

	ri.batchDuration, err = meter.Float64Histogram(metricBatchDuration,
		metric.WithDescription("Wall time of one batch including retries."),
		metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricBatchDuration, err)
	}

	ri.runDuration, err = meter.Float64Histogram(metricRunDuration,
		metric.WithDescription("Wall time of a compliance run."),
		metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricRunDuration, err)
	}

	return &ri, nil
}

// RecordCollected adds collected and cached file counts for a run mode.
func (ri *RunInstruments) RecordCollected(ctx context.Context, mode string, collected, cacheHits int) {
	attrs := metric.WithAttributes(attribute.String(attrMode, mode))

	ri.filesCollected.Add(ctx, int64(collected), attrs)
	ri.cacheHits.Add(ctx, int64(cacheHits), attrs)
}

// RecordBatch records one finished batch.
func (ri *RunInstruments) RecordBatch(ctx context.Context, analyzed, skipped, attempts, violations int, elapsed time.Duration) {
	ri.filesAnalyzed.Add(ctx, int64(analyzed))
	ri.filesSkipped.Add(ctx, int64(skipped))
	ri.violations.Add(ctx, int64(violations))

	if attempts > 0 {
		ri.apiCalls.Add(ctx, 1)
	}

	if attempts > 1 {
		ri.apiRetries.Add(ctx, int64(attempts-1))
	}

	ri.batchDuration.Record(ctx, elapsed.Seconds())
}

// RecordTokens adds n tokens of the given kind.
func (ri *RunInstruments) RecordTokens(ctx context.Context, kind string, n int) {
	if n <= 0 {
		return
	}

	ri.tokens.Add(ctx, int64(n), metric.WithAttributes(attribute.String(attrTokenKind, kind)))
}

// RecordRun records the duration and outcome of a whole run.
func (ri *RunInstruments) RecordRun(ctx context.Context, outcome string, elapsed time.Duration) {
	ri.runDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attribute.String(attrOutcome, outcome)))
}
