package replay

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/danielpatrickdp/case-knowledge/internal/corpus"
	"github.com/danielpatrickdp/case-knowledge/internal/store"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture.
type Fixture struct {
	Description     string                  `json:"description"`
	Config          FixtureConfig           `json:"config"`
	Cases           []corpus.CaseRecord     `json:"cases"`
	Interactions    []FixtureInteraction    `json:"interactions"`
	ExpectedResults []FixtureExpectedResult `json:"expected_results"`
}

// FixtureConfig holds the pipeline settings a fixture was recorded with.
type FixtureConfig struct {
	RetrievalLimit int `json:"retrieval_limit"`
}

// FixtureInteraction is one (case, query) input. An empty query means the case context drives retrieval.
type FixtureInteraction struct {
	TurnID string `json:"turn_id"`
	CaseID string `json:"case_id"`
	Query  string `json:"query"`
}

// FixtureExpectedResult captures the expected outcome per turn.
type FixtureExpectedResult struct {
	TurnID     string   `json:"turn_id"`
	Stage      string   `json:"stage"`
	ArticleIDs []string `json:"article_ids"`
	Confidence float64  `json:"confidence"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// SaveFixture writes f as indented JSON.
func SaveFixture(path string, f *Fixture) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal fixture: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write fixture %s: %w", path, err)
	}
	return nil
}

// ToInteractions resolves each interaction's case ID against the fixture's cases.
func (f *Fixture) ToInteractions() ([]Interaction, error) {
	cases := make(map[string]corpus.CaseRecord, len(f.Cases))
	for _, c := range f.Cases {
		cases[c.ID] = c
	}
	out := make([]Interaction, len(f.Interactions))
	for i, fi := range f.Interactions {
		c, ok := cases[fi.CaseID]
		if !ok {
			return nil, fmt.Errorf("interaction %s: unknown case %q", fi.TurnID, fi.CaseID)
		}
		out[i] = Interaction{TurnID: fi.TurnID, Case: c, Query: fi.Query}
	}
	return out, nil
}

// ToReplayConfig converts a FixtureConfig to a domain ReplayConfig, keeping defaults for unset fields.
func (fc FixtureConfig) ToReplayConfig() ReplayConfig {
	cfg := DefaultReplayConfig()
	if fc.RetrievalLimit > 0 {
		cfg.RetrievalLimit = fc.RetrievalLimit
	}
	return cfg
}

// #endregion fixture-loader

// #region fixture-export

// FromRuns builds a fixture from recorded runs, oldest first. Each run's stored case becomes a
// fixture case and its outcome the expectation.
func FromRuns(description string, limit int, runs []store.RunRecord) (*Fixture, error) {
	f := &Fixture{
		Description: description,
		Config:      FixtureConfig{RetrievalLimit: limit},
	}
	seen := make(map[string]bool)
	for i := len(runs) - 1; i >= 0; i-- {
		r := runs[i]
		var c corpus.CaseRecord
		if err := json.Unmarshal([]byte(r.CaseJSON), &c); err != nil {
			return nil, fmt.Errorf("run %s: decode case: %w", r.RunID, err)
		}
		if !seen[c.ID] {
			seen[c.ID] = true
			f.Cases = append(f.Cases, c)
		}
		ids := r.ArticleIDs
		if ids == nil {
			ids = []string{}
		}
		f.Interactions = append(f.Interactions, FixtureInteraction{TurnID: r.RunID, CaseID: c.ID, Query: r.Query})
		f.ExpectedResults = append(f.ExpectedResults, FixtureExpectedResult{
			TurnID:     r.RunID,
			Stage:      r.FinalStage,
			ArticleIDs: ids,
			Confidence: r.Confidence,
		})
	}
	return f, nil
}

// #endregion fixture-export
