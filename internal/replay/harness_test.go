package replay

import (
	"context"
	"errors"
	"testing"

	"github.com/danielpatrickdp/case-knowledge/internal/compose"
	"github.com/danielpatrickdp/case-knowledge/internal/corpus"
)

// helper: the built-in flood case as an interaction.
func floodInteraction(turnID, query string) Interaction {
	return Interaction{TurnID: turnID, Case: corpus.DefaultCases()[0], Query: query}
}

type failingGenerator struct{}

func (failingGenerator) Generate(context.Context, string, []corpus.KnowledgeArticle) (compose.ComposedResponse, error) {
	return compose.ComposedResponse{}, errors.New("model offline")
}

// 1. Raw query path: explicit query text drives retrieval.
func TestReplay_RawQuery(t *testing.T) {
	results := Replay(context.Background(), corpus.Default(), compose.NewTemplateGenerator(),
		[]Interaction{floodInteraction("t1", "Flood")}, DefaultReplayConfig())

	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	r := results[0]
	if r.Stage != "READY" {
		t.Errorf("expected stage=READY, got %s", r.Stage)
	}
	if len(r.ArticleIDs) != 1 || r.ArticleIDs[0] != "POL-FL-2024" {
		t.Errorf("expected [POL-FL-2024], got %v", r.ArticleIDs)
	}
	if len(r.CitationIDs) != 2 {
		t.Errorf("expected 2 citations, got %v", r.CitationIDs)
	}
	if r.Confidence != compose.ConfidenceGrounded {
		t.Errorf("expected confidence %.2f, got %.2f", compose.ConfidenceGrounded, r.Confidence)
	}
}

// 2. Limit from config is honoured.
func TestReplay_Limit(t *testing.T) {
	results := Replay(context.Background(), corpus.Default(), compose.NewTemplateGenerator(),
		[]Interaction{floodInteraction("t1", "")}, ReplayConfig{RetrievalLimit: 1})

	if got := results[0].ArticleIDs; len(got) != 1 {
		t.Errorf("expected 1 article, got %v", got)
	}
}

// 3. Generator failure: turn ends in ERROR and is counted.
func TestReplay_GeneratorFailure(t *testing.T) {
	results := Replay(context.Background(), corpus.Default(), failingGenerator{},
		[]Interaction{floodInteraction("t1", "Flood"), floodInteraction("t2", "")}, DefaultReplayConfig())

	for _, r := range results {
		if r.Stage != "ERROR" {
			t.Errorf("%s: expected stage=ERROR, got %s", r.TurnID, r.Stage)
		}
		if r.Err == nil {
			t.Errorf("%s: expected error", r.TurnID)
		}
	}
	s := Summarize(results)
	if s.TotalTurns != 2 || s.Errors != 2 || s.Ready != 0 {
		t.Errorf("unexpected summary %+v", s)
	}
}

// 4. Each turn is independent: an earlier turn never leaks into a later one.
func TestReplay_TurnsIndependent(t *testing.T) {
	hipaa := Interaction{TurnID: "t2", Case: corpus.DefaultCases()[1]}
	results := Replay(context.Background(), corpus.Default(), compose.NewTemplateGenerator(),
		[]Interaction{floodInteraction("t1", ""), hipaa}, DefaultReplayConfig())

	if results[1].ArticleIDs[0] != "KB-HIPAA-2023" {
		t.Errorf("expected KB-HIPAA-2023 first, got %v", results[1].ArticleIDs)
	}
}

// 5. Compare reports every differing field.
func TestCompare_Mismatches(t *testing.T) {
	results := []ReplayResult{{TurnID: "t1", Stage: "READY", ArticleIDs: []string{"A"}, Confidence: 0.95}}
	expected := []FixtureExpectedResult{{TurnID: "t1", Stage: "ERROR", ArticleIDs: []string{"B"}, Confidence: 0.1}}

	got := Compare(results, expected)
	if len(got) != 3 {
		t.Fatalf("expected 3 mismatches, got %v", got)
	}
	fields := map[string]bool{}
	for _, m := range got {
		fields[m.Field] = true
	}
	for _, f := range []string{"stage", "article_ids", "confidence"} {
		if !fields[f] {
			t.Errorf("expected mismatch on %s", f)
		}
	}
}

// 6. Compare treats nil and empty article lists alike.
func TestCompare_EmptyArticleLists(t *testing.T) {
	results := []ReplayResult{{TurnID: "t1", Stage: "READY", ArticleIDs: []string{}, Confidence: 0.1}}
	expected := []FixtureExpectedResult{{TurnID: "t1", Stage: "READY", Confidence: 0.1}}

	if got := Compare(results, expected); len(got) != 0 {
		t.Errorf("expected no mismatches, got %v", got)
	}
}

// 7. Compare flags a turn count difference.
func TestCompare_TurnCount(t *testing.T) {
	got := Compare(nil, []FixtureExpectedResult{{TurnID: "t1"}})
	if len(got) != 1 || got[0].Field != "turns" {
		t.Errorf("expected a single turns mismatch, got %v", got)
	}
}

// 8. Empty input.
func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil)
	if s.TotalTurns != 0 || s.Ready != 0 || s.Errors != 0 || s.NoInformation != 0 {
		t.Errorf("expected zero summary, got %+v", s)
	}
}
