package replay

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/danielpatrickdp/case-knowledge/internal/compose"
	"github.com/danielpatrickdp/case-knowledge/internal/corpus"
	"github.com/danielpatrickdp/case-knowledge/internal/orchestrator"
	"github.com/danielpatrickdp/case-knowledge/internal/retrieval"
)

// #region types
// Interaction is a single recorded (case, query) input for replay.
type Interaction struct {
	TurnID string
	Case   corpus.CaseRecord
	Query  string
}

// ReplayConfig bundles the pipeline settings for a replay run.
type ReplayConfig struct {
	RetrievalLimit int
}

// DefaultReplayConfig returns the interactive assistant's settings, minus the stage delays.
func DefaultReplayConfig() ReplayConfig {
	return ReplayConfig{RetrievalLimit: retrieval.DefaultLimit}
}

// ReplayResult captures the outcome of replaying one interaction through the pipeline.
type ReplayResult struct {
	TurnID      string
	Stage       string // "READY" | "ERROR"
	ArticleIDs  []string
	CitationIDs []string
	Answer      string
	Confidence  float64
	Err         error
}

// ReplaySummary provides aggregate stats from a replay run.
type ReplaySummary struct {
	TotalTurns    int
	Ready         int
	Errors        int
	NoInformation int // READY with nothing retrieved
}

// Mismatch is one difference between a replayed turn and its expectation.
type Mismatch struct {
	TurnID   string
	Field    string
	Expected string
	Actual   string
}

func (m Mismatch) String() string {
	return fmt.Sprintf("%s: %s expected %s, got %s", m.TurnID, m.Field, m.Expected, m.Actual)
}

// #endregion types

// #region replay
// Replay runs each interaction through a fresh orchestrator over c and g, one at a time and
// without stage delays. Operates entirely in-memory.
func Replay(ctx context.Context, c *corpus.Corpus, g compose.Generator, interactions []Interaction, config ReplayConfig) []ReplayResult {
	o := orchestrator.New(retrieval.NewRetriever(c), g, orchestrator.WithLimit(config.RetrievalLimit))
	results := make([]ReplayResult, 0, len(interactions))

	for _, inter := range interactions {
		snap := o.Run(ctx, inter.Query, inter.Case)

		r := ReplayResult{
			TurnID:     inter.TurnID,
			Stage:      string(snap.Stage),
			ArticleIDs: make([]string, 0, len(snap.Retrieved)),
			Err:        snap.Err,
		}
		for _, a := range snap.Retrieved {
			r.ArticleIDs = append(r.ArticleIDs, a.ID)
		}
		if snap.Response != nil {
			r.Answer = snap.Response.Answer
			r.Confidence = snap.Response.Confidence
			r.CitationIDs = snap.Response.CitationIDs()
		}
		results = append(results, r)
	}

	return results
}

// Summarize computes aggregate stats from replay results.
func Summarize(results []ReplayResult) ReplaySummary {
	s := ReplaySummary{TotalTurns: len(results)}
	for _, r := range results {
		switch r.Stage {
		case string(orchestrator.StageReady):
			s.Ready++
			if len(r.ArticleIDs) == 0 {
				s.NoInformation++
			}
		case string(orchestrator.StageError):
			s.Errors++
		}
	}
	return s
}

// Compare checks results against expectations turn by turn.
func Compare(results []ReplayResult, expected []FixtureExpectedResult) []Mismatch {
	var out []Mismatch
	if len(results) != len(expected) {
		out = append(out, Mismatch{
			Field:    "turns",
			Expected: fmt.Sprint(len(expected)),
			Actual:   fmt.Sprint(len(results)),
		})
	}
	n := min(len(results), len(expected))
	for i := 0; i < n; i++ {
		exp, got := expected[i], results[i]
		if got.TurnID != exp.TurnID {
			out = append(out, Mismatch{TurnID: exp.TurnID, Field: "turn_id", Expected: exp.TurnID, Actual: got.TurnID})
		}
		if got.Stage != exp.Stage {
			out = append(out, Mismatch{TurnID: exp.TurnID, Field: "stage", Expected: exp.Stage, Actual: got.Stage})
		}
		if !slices.Equal(got.ArticleIDs, exp.ArticleIDs) {
			out = append(out, Mismatch{
				TurnID:   exp.TurnID,
				Field:    "article_ids",
				Expected: "[" + strings.Join(exp.ArticleIDs, ",") + "]",
				Actual:   "[" + strings.Join(got.ArticleIDs, ",") + "]",
			})
		}
		if math.Abs(got.Confidence-exp.Confidence) > 1e-9 {
			out = append(out, Mismatch{
				TurnID:   exp.TurnID,
				Field:    "confidence",
				Expected: fmt.Sprintf("%.2f", exp.Confidence),
				Actual:   fmt.Sprintf("%.2f", got.Confidence),
			})
		}
	}
	return out
}

// #endregion replay
