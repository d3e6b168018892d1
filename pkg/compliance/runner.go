// Package compliance runs the incremental guideline check: collect candidate
// files, reuse cached verdicts, analyze the rest in resumable batches and
// persist what was learned.
package compliance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/Sumatoshi-tech/guidelint/pkg/analyzer"
	"github.com/Sumatoshi-tech/guidelint/pkg/batch"
	"github.com/Sumatoshi-tech/guidelint/pkg/checkpoint"
	"github.com/Sumatoshi-tech/guidelint/pkg/collector"
	"github.com/Sumatoshi-tech/guidelint/pkg/filereader"
	"github.com/Sumatoshi-tech/guidelint/pkg/fingerprint"
	"github.com/Sumatoshi-tech/guidelint/pkg/gitlib"
	"github.com/Sumatoshi-tech/guidelint/pkg/lintcache"
	"github.com/Sumatoshi-tech/guidelint/pkg/model"
	"github.com/Sumatoshi-tech/guidelint/pkg/observability"
	"github.com/Sumatoshi-tech/guidelint/pkg/retry"
)

const (
	spanRun   = "guidelint.run"
	spanBatch = "guidelint.batch"

	percentScale = 100.0

	instrumentationName = "github.com/Sumatoshi-tech/guidelint/pkg/compliance"
)

// Run outcomes recorded on the run duration histogram.
const (
	outcomeClean      = "clean"
	outcomeViolations = "violations"
)

// Collector lists candidate files for a run.
type Collector interface {
	Collect(ctx context.Context, req collector.Request) ([]string, error)
}

// AnalyzerFactory builds the analysis client. It is called at most once per
// run and only when some file needs analysis.
type AnalyzerFactory func(cfg analyzer.Config) (analyzer.Analyzer, error)

// Runner executes compliance runs. A Runner may be reused for several runs
// but not concurrently on the same project root.
type Runner struct {
	settings    Settings
	collector   Collector
	newAnalyzer AnalyzerFactory
	executor    *retry.Executor
	sink        BatchSink
	logger      *slog.Logger
	tracer      trace.Tracer
	instruments *observability.RunInstruments
	now         func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithCollector replaces the glob collector built from the settings.
func WithCollector(c Collector) Option {
	return func(r *Runner) { r.collector = c }
}

// WithAnalyzerFactory replaces analyzer.New.
func WithAnalyzerFactory(f AnalyzerFactory) Option {
	return func(r *Runner) { r.newAnalyzer = f }
}

// WithExecutor replaces the retry executor built from the settings' policy.
func WithExecutor(e *retry.Executor) Option {
	return func(r *Runner) { r.executor = e }
}

// WithSink sets the batch sink.
func WithSink(s BatchSink) Option {
	return func(r *Runner) { r.sink = s }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithTracer sets the tracer for run and batch spans.
func WithTracer(t trace.Tracer) Option {
	return func(r *Runner) { r.tracer = t }
}

// WithInstruments sets the metric instruments.
func WithInstruments(ri *observability.RunInstruments) Option {
	return func(r *Runner) { r.instruments = ri }
}

// WithClock sets the time source used for cache timestamps and durations.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// NewRunner builds a runner. Bad glob patterns or an invalid retry policy
// are KindConfig errors.
func NewRunner(settings Settings, opts ...Option) (*Runner, error) {
	r := &Runner{
		settings:    settings,
		newAnalyzer: analyzer.New,
		sink:        nopSink{},
		logger:      observability.Discard(),
		tracer:      tracenoop.NewTracerProvider().Tracer(instrumentationName),
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.collector == nil {
		c, err := collector.New(settings.Include, settings.Exclude, collector.WithSkipVendored(settings.SkipVendored))
		if err != nil {
			return nil, newError(KindConfig, "collector", err)
		}

		r.collector = c
	}

	if r.executor == nil {
		e, err := retry.NewExecutor(settings.Retry, retry.WithLogger(r.logger))
		if err != nil {
			return nil, newError(KindConfig, "retry", err)
		}

		r.executor = e
	}

	if r.instruments == nil {
		ri, err := observability.NewRunInstruments(metricnoop.NewMeterProvider().Meter(instrumentationName))
		if err != nil {
			return nil, newError(KindInternal, "instruments", err)
		}

		r.instruments = ri
	}

	return r, nil
}

// Settings returns the runner's settings.
func (r *Runner) Settings() Settings {
	return r.settings
}

// run carries the state of one Run call.
type run struct {
	*Runner

	id             string
	root           string
	logger         *slog.Logger
	guidelines     string
	guidelinesHash string
	metrics        RunMetrics
}

// Run checks the files selected by mode under root. It returns every result
// for the candidates, cached or fresh, ordered by candidate path. Metrics are
// returned even when err is non-nil and describe the work done so far.
func (r *Runner) Run(ctx context.Context, root string, mode collector.Mode, baseBranch string) ([]model.FileResult, RunMetrics, error) {
	rn := &run{
		Runner: r,
		id:     uuid.NewString(),
		root:   root,
	}
	rn.logger = r.logger.With("run_id", rn.id)

	start := r.now()

	ctx, span := r.tracer.Start(ctx, spanRun, trace.WithAttributes(
		attribute.String("guidelint.run_id", rn.id),
		attribute.String("guidelint.mode", string(mode)),
	))
	defer span.End()

	results, err := rn.execute(ctx, mode, baseBranch)

	outcome := outcomeClean

	switch {
	case err != nil:
		outcome = KindOf(err).String()

		span.RecordError(err)
	case model.CountViolations(results) > 0:
		outcome = outcomeViolations
	}

	r.instruments.RecordRun(ctx, outcome, r.now().Sub(start))

	return results, rn.metrics, err
}

func (rn *run) execute(ctx context.Context, mode collector.Mode, baseBranch string) ([]model.FileResult, error) {
	err := Validate(rn.root, rn.settings, mode, baseBranch)
	if err != nil {
		return nil, err
	}

	rn.guidelines, err = readGuidelines(rn.root, rn.settings)
	if err != nil {
		return nil, newError(KindConfig, "guidelines", err)
	}

	candidates, err := rn.collector.Collect(ctx, collector.Request{Root: rn.root, Mode: mode, BaseBranch: baseBranch})
	if err != nil {
		return nil, classifyCollect(ctx, err)
	}

	rn.metrics.TotalFilesCollected = len(candidates)
	rn.logger.InfoContext(ctx, "collected files", "mode", mode, "count", len(candidates))

	if len(candidates) == 0 {
		rn.instruments.RecordCollected(ctx, string(mode), 0, 0)

		return []model.FileResult{}, nil
	}

	store, err := rn.settings.CacheStore(rn.root)
	if err != nil {
		return nil, newError(KindConfig, "cache", err)
	}

	cache, err := store.Load()
	if err != nil {
		return nil, classifyState("load cache", err, lintcache.ErrCorrupt)
	}

	rn.guidelinesHash = fingerprint.String(rn.guidelines)

	part, err := lintcache.PartitionFiles(ctx, rn.root, candidates, cache, rn.guidelinesHash)
	if err != nil {
		return nil, classifyLocal(ctx, "partition", err)
	}

	rn.metrics.FilesFromCache = len(part.Valid)
	rn.metrics.CacheHits = len(part.Valid)
	rn.instruments.RecordCollected(ctx, string(mode), len(candidates), len(part.Valid))

	rn.logger.InfoContext(ctx, "cache partitioned",
		"cached", len(part.Valid),
		"new", part.Count(lintcache.ChangeNew),
		"modified", part.Count(lintcache.ChangeModified),
		"guidelines_changed", part.Count(lintcache.ChangeGuidelines),
		"unreadable", part.Count(lintcache.ChangeUnreadable))

	if len(part.Stale) == 0 {
		return lintcache.MaterializeCached(candidates, cache), nil
	}

	ledger, err := rn.settings.Ledger(rn.root, rn.logger)
	if err != nil {
		return nil, newError(KindConfig, "progress", err)
	}

	fresh, analyzedAt, err := rn.analyzeStale(ctx, ledger, part)
	if err != nil {
		return nil, err
	}

	cached := lintcache.MaterializeCached(part.Valid, cache)
	merged := model.SortByOrder(append(cached, fresh...), candidates)

	err = ledger.Cleanup()
	if err != nil {
		return nil, newError(KindInternal, "progress cleanup", err)
	}

	rn.updateCache(&cache, part, fresh, analyzedAt)

	err = store.Save(cache)
	if err != nil {
		return nil, newError(KindInternal, "save cache", err)
	}

	return merged, nil
}

// analyzeStale runs every unfinished batch of stale files and returns the
// ledger's results, which include batches finished by earlier runs, with the
// fingerprint each result's file was analyzed at. A restored verdict whose
// file changed since its batch was recorded is dropped and the file analyzed
// again.
func (rn *run) analyzeStale(
	ctx context.Context,
	ledger *checkpoint.Ledger,
	part lintcache.Partition,
) ([]model.FileResult, map[string]string, error) {
	batches, err := batch.Split(part.Stale, rn.settings.BatchSize)
	if err != nil {
		return nil, nil, newError(KindConfig, "batch", err)
	}

	state, resumed, err := ledger.InitOrLoad(len(batches))
	if err != nil {
		return nil, nil, classifyState("load progress", err, checkpoint.ErrCorrupt)
	}

	drifted := state.Drifted(part.Hashes)

	if resumed {
		rn.metrics.BatchesResumed = len(state.CompletedBatchIndices)
		rn.logger.InfoContext(ctx, "resuming run",
			"completed", len(state.CompletedBatchIndices), "total", state.TotalBatches,
			"changed_since", len(drifted))

		err = rn.emitRestored(ctx, state, drifted)
		if err != nil {
			return nil, nil, err
		}
	}

	remaining := state.Remaining()
	if len(remaining) == 0 && len(drifted) == 0 {
		return state.Results, state.Fingerprints, nil
	}

	client, err := rn.newAnalyzer(rn.settings.Analyzer)
	if err != nil {
		return nil, nil, classifyAnalyzerSetup(err)
	}

	reader, err := filereader.New(rn.root, rn.settings.MaxFileSize, rn.logger)
	if err != nil {
		return nil, nil, newError(KindConfig, "reader", err)
	}

	for _, idx := range remaining {
		if ctx.Err() != nil {
			return nil, nil, newError(KindCancelled, "run", ctx.Err())
		}

		state, err = rn.runBatch(ctx, ledger, state, client, reader, idx, batches[idx], part.Hashes)
		if err != nil {
			return nil, nil, err
		}
	}

	results := state.Results
	fingerprints := maps.Clone(state.Fingerprints)

	drifted = state.Drifted(part.Hashes)
	if len(drifted) == 0 {
		return results, fingerprints, nil
	}

	rechecked, err := rn.recheck(ctx, client, reader, drifted)
	if err != nil {
		return nil, nil, err
	}

	for _, f := range drifted {
		fingerprints[f] = part.Hashes[f]
	}

	return append(withoutFiles(results, drifted), rechecked...), fingerprints, nil
}

// emitRestored hands the verdicts recorded by earlier runs to the sink once,
// leaving out files that changed since.
func (rn *run) emitRestored(ctx context.Context, state checkpoint.State, drifted []string) error {
	restored := withoutFiles(state.Results, drifted)
	if len(restored) == 0 {
		return nil
	}

	files := make([]string, 0, len(restored))
	for _, r := range restored {
		files = append(files, r.File)
	}

	err := rn.sink.OnBatchComplete(ctx, BatchEvent{
		Kind:      EventRestored,
		RunID:     rn.id,
		Index:     -1,
		Total:     state.TotalBatches,
		Files:     files,
		Results:   model.CloneResults(restored),
		Completed: len(state.CompletedBatchIndices),
		Percent:   state.Percentage(),
	})
	if err != nil {
		return newError(KindInternal, "restore sink", err)
	}

	return nil
}

func (rn *run) runBatch(
	ctx context.Context,
	ledger *checkpoint.Ledger,
	state checkpoint.State,
	client analyzer.Analyzer,
	reader *filereader.Reader,
	idx int,
	files []string,
	hashes map[string]string,
) (checkpoint.State, error) {
	op := fmt.Sprintf("batch %d", idx)

	out, err := rn.analyzeBatch(ctx, client, reader, op, files,
		attribute.Int("guidelint.batch.index", idx))
	if err != nil {
		return state, err
	}

	fingerprints := make(map[string]string, len(files))
	for _, f := range files {
		if h, ok := hashes[f]; ok {
			fingerprints[f] = h
		}
	}

	next, err := ledger.Record(state, idx, out.results, fingerprints)
	if err != nil {
		return state, newError(KindInternal, op, err)
	}

	rn.logger.InfoContext(ctx, "batch complete",
		"batch", idx+1, "total", next.TotalBatches,
		"files", len(files), "violations", model.CountViolations(out.results), "attempts", out.tries,
		"progress", fmt.Sprintf("%.0f%%", next.Percentage()))

	err = rn.sink.OnBatchComplete(ctx, BatchEvent{
		RunID:     rn.id,
		Index:     idx,
		Total:     next.TotalBatches,
		Files:     files,
		Skipped:   out.skipped,
		Results:   model.CloneResults(out.results),
		Attempts:  out.tries,
		Usage:     out.usage,
		Completed: len(next.CompletedBatchIndices),
		Percent:   next.Percentage(),
	})
	if err != nil {
		return next, newError(KindInternal, op+" sink", err)
	}

	return next, nil
}

// recheck analyzes files whose saved verdicts no longer match their content.
// Its batches sit outside the plan and are not recorded in the ledger, so an
// interrupted recheck is repeated on the next resume.
func (rn *run) recheck(
	ctx context.Context,
	client analyzer.Analyzer,
	reader *filereader.Reader,
	files []string,
) ([]model.FileResult, error) {
	groups, err := batch.Split(files, rn.settings.BatchSize)
	if err != nil {
		return nil, newError(KindConfig, "batch", err)
	}

	rn.logger.InfoContext(ctx, "re-analyzing files changed since their batch was recorded",
		"files", len(files), "batches", len(groups))

	var results []model.FileResult

	for i, group := range groups {
		if ctx.Err() != nil {
			return nil, newError(KindCancelled, "run", ctx.Err())
		}

		op := fmt.Sprintf("recheck %d", i)

		out, err := rn.analyzeBatch(ctx, client, reader, op, group,
			attribute.Int("guidelint.batch.index", i),
			attribute.Bool("guidelint.batch.recheck", true))
		if err != nil {
			return nil, err
		}

		err = rn.sink.OnBatchComplete(ctx, BatchEvent{
			Kind:      EventRecheck,
			RunID:     rn.id,
			Index:     i,
			Total:     len(groups),
			Files:     group,
			Skipped:   out.skipped,
			Results:   model.CloneResults(out.results),
			Attempts:  out.tries,
			Usage:     out.usage,
			Completed: i + 1,
			Percent:   float64(i+1) / float64(len(groups)) * percentScale,
		})
		if err != nil {
			return nil, newError(KindInternal, op+" sink", err)
		}

		results = append(results, out.results...)
	}

	return results, nil
}

// batchOutput is what one analyzed group of files produced.
type batchOutput struct {
	results []model.FileResult
	skipped []filereader.Skipped
	usage   analyzer.Usage
	tries   int
}

// analyzeBatch reads files, sends the readable ones in one retried call and
// parses the verdicts. An unparseable response yields no results.
func (rn *run) analyzeBatch(
	ctx context.Context,
	client analyzer.Analyzer,
	reader *filereader.Reader,
	op string,
	files []string,
	attrs ...attribute.KeyValue,
) (batchOutput, error) {
	start := rn.now()

	ctx, span := rn.tracer.Start(ctx, spanBatch, trace.WithAttributes(
		append(attrs, attribute.Int("guidelint.batch.size", len(files)))...,
	))
	defer span.End()

	var out batchOutput

	docs, skipped := reader.ReadAll(files)
	out.skipped = skipped
	rn.metrics.FilesSkipped += len(skipped)

	if len(docs) > 0 {
		req := analyzer.Request{Guidelines: rn.guidelines, Files: docs}

		resp, outcome, err := retry.Do(ctx, rn.executor, func(ctx context.Context, _ int) (analyzer.Response, error) {
			return client.Analyze(ctx, req)
		})

		out.tries = outcome.Attempts
		span.SetAttributes(attribute.Int("guidelint.batch.attempts", out.tries))

		if err != nil {
			span.RecordError(err)

			return out, classifyCall(ctx, op, err)
		}

		rn.metrics.APICallsMade++
		out.usage = resp.Usage
		rn.metrics.addUsage(out.usage)
		rn.recordTokens(ctx, out.usage)

		out.results, err = analyzer.ParseResponse(resp.Text)
		if err != nil {
			rn.logger.WarnContext(ctx, "analysis response had unusable records",
				"op", op, "kept", len(out.results), "error", err)
		}

		rn.logUnknownTypes(ctx, out.results)
	}

	rn.metrics.FilesAnalyzed += len(files)
	rn.instruments.RecordBatch(ctx, len(files), len(skipped), out.tries,
		model.CountViolations(out.results), rn.now().Sub(start))

	return out, nil
}

// withoutFiles returns the results whose file is not in files.
func withoutFiles(results []model.FileResult, files []string) []model.FileResult {
	if len(files) == 0 {
		return results
	}

	drop := make(map[string]struct{}, len(files))
	for _, f := range files {
		drop[f] = struct{}{}
	}

	kept := make([]model.FileResult, 0, len(results))

	for _, r := range results {
		if _, ok := drop[r.File]; !ok {
			kept = append(kept, r)
		}
	}

	return kept
}

// updateCache stores a fresh entry for every result whose file was a stale
// candidate analyzed at its current fingerprint. Verdicts for content that has
// changed since are left uncached.
func (rn *run) updateCache(
	cache *lintcache.Cache,
	part lintcache.Partition,
	fresh []model.FileResult,
	analyzedAt map[string]string,
) {
	now := rn.now()

	for _, res := range fresh {
		hash, hashed := part.Hashes[res.File]
		_, stale := part.Changes[res.File]

		if !hashed || !stale || analyzedAt[res.File] != hash {
			continue
		}

		cache.Put(res.File, lintcache.NewEntry(hash, rn.guidelinesHash, res.Violations, now))
	}

	cache.GuidelinesHash = rn.guidelinesHash
}

func (rn *run) recordTokens(ctx context.Context, u analyzer.Usage) {
	rn.instruments.RecordTokens(ctx, observability.TokensInput, u.InputTokens)
	rn.instruments.RecordTokens(ctx, observability.TokensOutput, u.OutputTokens)
	rn.instruments.RecordTokens(ctx, observability.TokensCacheRead, u.CacheReadTokens)
	rn.instruments.RecordTokens(ctx, observability.TokensCacheCreation, u.CacheCreationTokens)
}

func (rn *run) logUnknownTypes(ctx context.Context, results []model.FileResult) {
	for _, res := range results {
		for _, v := range res.Violations {
			if !model.KnownType(v.Type) {
				rn.logger.DebugContext(ctx, "unknown violation type", "file", res.File, "type", v.Type)
			}
		}
	}
}

func classifyCollect(ctx context.Context, err error) error {
	switch {
	case ctx.Err() != nil || errors.Is(err, context.Canceled):
		return newError(KindCancelled, "collect", err)
	case errors.Is(err, collector.ErrNotGitRepository),
		errors.Is(err, collector.ErrBaseBranchRequired),
		errors.Is(err, collector.ErrUnknownMode),
		errors.Is(err, gitlib.ErrUnknownRevision):
		return newError(KindConfig, "collect", err)
	default:
		return newError(KindInternal, "collect", err)
	}
}

func classifyLocal(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return newError(KindCancelled, op, err)
	}

	return newError(KindInternal, op, err)
}

func classifyState(op string, err, corrupt error) error {
	if errors.Is(err, corrupt) {
		return newError(KindDataFormat, op, err)
	}

	return newError(KindInternal, op, err)
}

// classifyCall maps a failed analysis call. Rejected credentials are
// configuration errors; everything else that is not cancellation is transient.
func classifyCall(ctx context.Context, op string, err error) error {
	if retry.KindOf(ctx, err) == retry.KindCancelled {
		return newError(KindCancelled, op, err)
	}

	var apiErr *analyzer.APIError
	if errors.As(err, &apiErr) && (apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden) {
		return newError(KindConfig, op, err)
	}

	return newError(KindTransient, op, err)
}

// classifyAnalyzerSetup treats a credential that disappeared after
// validation as an internal failure.
func classifyAnalyzerSetup(err error) error {
	if errors.Is(err, analyzer.ErrMissingCredential) {
		return newError(KindInternal, "analyzer", err)
	}

	return newError(KindConfig, "analyzer", err)
}
