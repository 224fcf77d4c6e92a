package orchestrator

// #region imports
import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/danielpatrickdp/case-knowledge/internal/compose"
	"github.com/danielpatrickdp/case-knowledge/internal/corpus"
	"github.com/danielpatrickdp/case-knowledge/internal/extract"
	"github.com/danielpatrickdp/case-knowledge/internal/logging"
	"github.com/danielpatrickdp/case-knowledge/internal/retrieval"
	"github.com/danielpatrickdp/case-knowledge/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// #endregion

// #region orchestrator-struct

// Orchestrator runs the extract → retrieve → generate pipeline each time its inputs change
// and owns the single displayed result. Every trigger bumps a generation counter; only the
// newest generation may publish stage events or write the displayed slot, and starting a new
// run cancels the previous one.
type Orchestrator struct {
	retriever  *retrieval.Retriever
	generator  compose.Generator
	limit      int
	stageDelay time.Duration
	recorder   Recorder
	observers  []Observer
	log        *zap.Logger

	// emitMu orders delivery: a stale run can never deliver after a newer run's first event.
	emitMu sync.Mutex

	mu         sync.Mutex
	generation uint64
	cancel     context.CancelFunc
	latest     Snapshot
}

// #endregion

// #region options

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLimit sets how many articles retrieval may return.
func WithLimit(n int) Option {
	return func(o *Orchestrator) { o.limit = n }
}

// WithStageDelay sets the simulated latency after extraction and after retrieval.
func WithStageDelay(d time.Duration) Option {
	return func(o *Orchestrator) { o.stageDelay = d }
}

// WithRecorder persists displayed runs and their stage transitions.
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

// WithObserver registers a stage event observer.
func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) { o.observers = append(o.observers, obs) }
}

// WithLogger sets the structured logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) { o.log = l }
}

// #endregion

// #region constructor

// New creates an orchestrator over retriever and generator. Defaults: retrieval.DefaultLimit,
// no stage delay, no recorder, no-op logger.
func New(r *retrieval.Retriever, g compose.Generator, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		retriever: r,
		generator: g,
		limit:     retrieval.DefaultLimit,
		log:       zap.NewNop(),
		latest:    Snapshot{Stage: StageIdle},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// #endregion

// #region run-handle

// Run is a handle on one pipeline execution.
type Run struct {
	ID         string
	Generation uint64

	cancel context.CancelFunc
	done   chan struct{}
	result Snapshot
}

// Done is closed when the run has finished, superseded or not.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Result returns the run's result once it has finished; ok is false while it is in flight.
func (r *Run) Result() (snap Snapshot, ok bool) {
	select {
	case <-r.done:
		return r.result, true
	default:
		return Snapshot{}, false
	}
}

// Wait blocks until the run finishes and returns its result.
func (r *Run) Wait() Snapshot {
	<-r.done
	return r.result
}

// #endregion

// #region trigger

// Trigger starts a run for (query, c) in the background and supersedes any run in flight.
func (o *Orchestrator) Trigger(query string, c corpus.CaseRecord) *Run {
	ctx, run := o.begin(context.Background())
	go func() {
		defer close(run.done)
		run.result = o.execute(ctx, run, query, c)
	}()
	return run
}

// Run executes a pipeline run synchronously. It still supersedes any run in flight, and
// may itself be superseded by a concurrent Trigger.
func (o *Orchestrator) Run(ctx context.Context, query string, c corpus.CaseRecord) Snapshot {
	runCtx, run := o.begin(ctx)
	defer close(run.done)
	run.result = o.execute(runCtx, run, query, c)
	return run.result
}

func (o *Orchestrator) begin(parent context.Context) (context.Context, *Run) {
	ctx, cancel := context.WithCancel(parent)

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cancel != nil {
		o.cancel()
	}
	o.generation++
	o.cancel = cancel

	return ctx, &Run{
		ID:         uuid.New().String(),
		Generation: o.generation,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// #endregion

// #region accessors

// Latest returns the displayed state: the newest run's most recent stage.
func (o *Orchestrator) Latest() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.latest
}

// Close cancels the run in flight, if any, and retires its generation: the run is dropped
// as superseded, so shutdown never displays or records a half-finished run.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
	o.generation++
}

func (o *Orchestrator) currentGeneration() uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.generation
}

func (o *Orchestrator) isCurrent(run *Run) bool {
	return run.Generation == o.currentGeneration()
}

// #endregion

// #region execute

func (o *Orchestrator) execute(ctx context.Context, run *Run, query string, c corpus.CaseRecord) (snap Snapshot) {
	defer run.cancel()

	snap = Snapshot{
		RunID:      run.ID,
		Generation: run.Generation,
		CaseID:     c.ID,
		Query:      query,
		Stage:      StageExtracting,
		StartedAt:  time.Now().UTC(),
	}
	var q retrieval.Query

	defer func() {
		if r := recover(); r != nil {
			snap = o.fail(run, snap, q, c, fmt.Errorf("panic: %v", r))
		}
	}()

	// 1. Extract
	if !o.publish(run, snap, StageEvent{}) {
		return o.supersede(snap)
	}
	extracted := extract.Extract(c)
	if err := o.pause(ctx); err != nil {
		return o.fail(run, snap, q, c, err)
	}

	// 2. Retrieve: explicit query text wins, the case context is the fallback
	snap.Stage = StageRetrieving
	trimmed := strings.TrimSpace(query)
	genQuery := trimmed
	if trimmed != "" {
		q = retrieval.RawQuery(trimmed)
	} else {
		q = retrieval.ExtractedQuery(extracted)
		genQuery = extracted.RawText
	}
	if !o.publish(run, snap, StageEvent{Query: q}) {
		return o.supersede(snap)
	}
	ranked := o.retriever.Rank(q, o.limit)
	snap.Retrieved = make([]corpus.KnowledgeArticle, len(ranked))
	for i, sa := range ranked {
		snap.Retrieved[i] = sa.Article
	}
	if err := o.pause(ctx); err != nil {
		return o.fail(run, snap, q, c, err)
	}

	// 3. Generate
	snap.Stage = StageGenerating
	if !o.publish(run, snap, StageEvent{Query: q, Retrieved: ranked}) {
		return o.supersede(snap)
	}
	resp, err := o.generator.Generate(ctx, genQuery, snap.Retrieved)
	if err != nil {
		return o.fail(run, snap, q, c, err)
	}
	if err := compose.VerifyProvenance(resp, snap.Retrieved); err != nil {
		return o.fail(run, snap, q, c, err)
	}

	// 4. Ready
	snap.Stage = StageReady
	snap.Response = &resp
	snap.FinishedAt = time.Now().UTC()
	if !o.publish(run, snap, StageEvent{Query: q, Retrieved: ranked, Response: &resp}) {
		return o.supersede(snap)
	}

	o.log.Info("run ready",
		zap.String("run_id", run.ID),
		zap.Uint64("generation", run.Generation),
		zap.String("query_kind", string(q.Kind)),
		zap.Int("articles", len(snap.Retrieved)),
		zap.Int("citations", len(resp.Citations)),
		zap.Float64("confidence", resp.Confidence),
	)
	o.record(snap, q, c)
	return snap
}

// pause stands in for the I/O latency of a real stage.
func (o *Orchestrator) pause(ctx context.Context) error {
	if o.stageDelay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(o.stageDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// #endregion

// #region terminal-states

// fail ends the run in ERROR unless it was superseded, in which case the error is
// just the symptom of cancellation and the run is dropped.
func (o *Orchestrator) fail(run *Run, snap Snapshot, q retrieval.Query, c corpus.CaseRecord, err error) Snapshot {
	if !o.isCurrent(run) {
		return o.supersede(snap)
	}

	failure := &PipelineFailure{Stage: snap.Stage, Err: err}
	snap.Stage = StageError
	snap.Err = failure
	snap.Response = nil
	snap.FinishedAt = time.Now().UTC()
	if !o.publish(run, snap, StageEvent{Query: q, Err: failure}) {
		return o.supersede(snap)
	}

	o.log.Warn("run failed",
		zap.String("run_id", run.ID),
		zap.Uint64("generation", run.Generation),
		zap.String("failed_stage", string(failure.Stage)),
		zap.Error(err),
	)
	o.record(snap, q, c)
	return snap
}

func (o *Orchestrator) supersede(snap Snapshot) Snapshot {
	o.log.Debug("run superseded",
		zap.String("run_id", snap.RunID),
		zap.Uint64("generation", snap.Generation),
		zap.String("stage", string(snap.Stage)),
	)
	snap.Err = ErrSuperseded
	snap.FinishedAt = time.Now().UTC()
	return snap
}

// #endregion

// #region publish

// publish writes snap to the displayed slot and notifies observers, but only while run is
// the newest generation. It reports whether the run is still current.
func (o *Orchestrator) publish(run *Run, snap Snapshot, ev StageEvent) bool {
	o.emitMu.Lock()
	defer o.emitMu.Unlock()

	o.mu.Lock()
	if run.Generation != o.generation {
		o.mu.Unlock()
		return false
	}
	o.latest = snap
	o.mu.Unlock()

	ev.RunID = run.ID
	ev.Generation = run.Generation
	ev.Stage = snap.Stage
	ev.At = time.Now().UTC()

	o.log.Debug("stage",
		zap.String("run_id", run.ID),
		zap.Uint64("generation", run.Generation),
		zap.String("stage", string(ev.Stage)),
	)
	for _, obs := range o.observers {
		o.notify(obs, ev)
	}
	o.logStage(ev)
	return true
}

// notify delivers ev to one observer. A panicking observer is logged and skipped; it
// never changes the outcome of the run.
func (o *Orchestrator) notify(obs Observer, ev StageEvent) {
	defer func() {
		if r := recover(); r != nil {
			o.log.Error("observer panic",
				zap.String("run_id", ev.RunID),
				zap.String("stage", string(ev.Stage)),
				zap.Any("panic", r),
			)
		}
	}()
	obs(ev)
}

// #endregion

// #region persistence

func (o *Orchestrator) logStage(ev StageEvent) {
	if o.recorder == nil {
		return
	}
	entry := logging.StageEntry{
		RunID:      ev.RunID,
		Generation: ev.Generation,
		Stage:      string(ev.Stage),
		CreatedAt:  ev.At,
	}
	switch ev.Stage {
	case StageRetrieving:
		entry.Detail = logging.Detail(logging.RetrievalDetail{
			QueryKind: string(ev.Query.Kind),
			Keywords:  ev.Query.Keywords(),
		})
	case StageGenerating:
		d := logging.RetrievalDetail{QueryKind: string(ev.Query.Kind), Keywords: ev.Query.Keywords()}
		for _, sa := range ev.Retrieved {
			d.ArticleIDs = append(d.ArticleIDs, sa.Article.ID)
			d.Scores = append(d.Scores, sa.Score)
		}
		entry.Detail = logging.Detail(d)
	case StageReady:
		entry.Detail = logging.Detail(logging.ReadyDetail{
			CitationIDs: ev.Response.CitationIDs(),
			Confidence:  ev.Response.Confidence,
		})
	case StageError:
		var pf *PipelineFailure
		d := logging.ErrorDetail{Error: ev.Err.Error()}
		if errors.As(ev.Err, &pf) {
			d.FailedStage = string(pf.Stage)
		}
		entry.Detail = logging.Detail(d)
	}
	if err := o.recorder.LogStage(entry); err != nil {
		o.log.Error("log stage", zap.String("run_id", ev.RunID), zap.Error(err))
	}
}

func (o *Orchestrator) record(snap Snapshot, q retrieval.Query, c corpus.CaseRecord) {
	if o.recorder == nil {
		return
	}
	caseJSON, _ := json.Marshal(c)
	rec := store.RunRecord{
		RunID:      snap.RunID,
		Generation: snap.Generation,
		CaseID:     c.ID,
		CaseJSON:   string(caseJSON),
		Query:      snap.Query,
		QueryKind:  string(q.Kind),
		FinalStage: string(snap.Stage),
		StartedAt:  snap.StartedAt,
		FinishedAt: snap.FinishedAt,
	}
	for _, a := range snap.Retrieved {
		rec.ArticleIDs = append(rec.ArticleIDs, a.ID)
	}
	if snap.Response != nil {
		rec.Answer = snap.Response.Answer
		rec.Confidence = snap.Response.Confidence
		rec.CitationIDs = snap.Response.CitationIDs()
	}
	if snap.Err != nil {
		rec.Error = snap.Err.Error()
	}
	if _, err := o.recorder.RecordRun(rec); err != nil {
		o.log.Error("record run", zap.String("run_id", snap.RunID), zap.Error(err))
	}
}

// #endregion
