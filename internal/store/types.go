package store

import "time"

// #region run-record
// RunRecord is a terminal pipeline run as persisted in the runs table.
type RunRecord struct {
	RunID       string
	Generation  uint64
	CaseID      string
	CaseJSON    string // full case record, kept so runs can be replayed
	Query       string
	QueryKind   string // "raw" | "extracted"
	ArticleIDs  []string
	CitationIDs []string
	Answer      string
	Confidence  float64
	FinalStage  string // "READY" | "ERROR"
	Error       string
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Duration is the wall time between start and finish.
func (r RunRecord) Duration() time.Duration {
	if r.FinishedAt.IsZero() || r.StartedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
// #endregion run-record
