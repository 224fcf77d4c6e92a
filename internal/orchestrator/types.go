package orchestrator

// #region imports
import (
	"errors"
	"fmt"
	"time"

	"github.com/danielpatrickdp/case-knowledge/internal/compose"
	"github.com/danielpatrickdp/case-knowledge/internal/corpus"
	"github.com/danielpatrickdp/case-knowledge/internal/logging"
	"github.com/danielpatrickdp/case-knowledge/internal/retrieval"
	"github.com/danielpatrickdp/case-knowledge/internal/store"
)

// #endregion

// #region stage

// Stage is a state of the pipeline as seen by the display consumer.
type Stage string

const (
	StageIdle       Stage = "IDLE"
	StageExtracting Stage = "EXTRACTING"
	StageRetrieving Stage = "RETRIEVING"
	StageGenerating Stage = "GENERATING"
	StageReady      Stage = "READY"
	StageError      Stage = "ERROR"
)

// Terminal reports whether s ends a run.
func (s Stage) Terminal() bool {
	return s == StageReady || s == StageError
}

// #endregion

// #region errors

// ErrSuperseded marks a run that was invalidated by a newer trigger before it finished.
var ErrSuperseded = errors.New("run superseded by newer input")

// PipelineFailure is the only failure a run can end with: some stage returned an error
// or panicked, and the remaining stages were skipped.
type PipelineFailure struct {
	Stage Stage
	Err   error
}

func (e *PipelineFailure) Error() string {
	return fmt.Sprintf("pipeline failed while %s: %v", e.Stage, e.Err)
}

func (e *PipelineFailure) Unwrap() error {
	return e.Err
}

// #endregion

// #region stage-event

// StageEvent is emitted to observers on every transition of the displayed run.
type StageEvent struct {
	RunID      string
	Generation uint64
	Stage      Stage
	At         time.Time

	Query     retrieval.Query           // set from RETRIEVING on
	Retrieved []retrieval.ScoredArticle // set from GENERATING on
	Response  *compose.ComposedResponse // set on READY
	Err       error                     // set on ERROR
}

// Observer receives stage events. Observers run on the pipeline goroutine and must not block.
type Observer func(StageEvent)

// #endregion

// #region snapshot

// Snapshot is the state of one run: either the displayed slot or a finished run's result.
type Snapshot struct {
	RunID      string
	Generation uint64
	CaseID     string
	Query      string
	Stage      Stage
	Retrieved  []corpus.KnowledgeArticle
	Response   *compose.ComposedResponse
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// #endregion

// #region interfaces

// Recorder persists finished runs and their stage transitions. *store.Store implements it.
type Recorder interface {
	RecordRun(rec store.RunRecord) (string, error)
	LogStage(entry logging.StageEntry) error
}

// #endregion
