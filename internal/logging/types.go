package logging

import "time"

// #region stage-entry
// StageEntry is a single row in the stage_log table: one pipeline stage transition
// of a displayed run.
type StageEntry struct {
	RunID      string
	Generation uint64
	Stage      string // "EXTRACTING" | "RETRIEVING" | "GENERATING" | "READY" | "ERROR"
	Detail     string // JSON payload describing the stage output, optional
	CreatedAt  time.Time
}
// #endregion stage-entry

// #region stage-detail
// RetrievalDetail is serialized into stage_log.detail for RETRIEVING transitions.
type RetrievalDetail struct {
	QueryKind  string   `json:"query_kind"`
	Keywords   []string `json:"keywords"`
	ArticleIDs []string `json:"article_ids,omitempty"`
	Scores     []int    `json:"scores,omitempty"`
}

// ReadyDetail is serialized into stage_log.detail for READY transitions.
type ReadyDetail struct {
	CitationIDs []string `json:"citation_ids"`
	Confidence  float64  `json:"confidence"`
}

// ErrorDetail is serialized into stage_log.detail for ERROR transitions.
type ErrorDetail struct {
	FailedStage string `json:"failed_stage"`
	Error       string `json:"error"`
}
// #endregion stage-detail
