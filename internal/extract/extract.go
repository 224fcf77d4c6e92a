package extract

import (
	"fmt"
	"sort"
	"strings"

	"github.com/danielpatrickdp/case-knowledge/internal/corpus"
)

// #region types

// Entities holds structured fields lifted from a case without transformation.
// Empty strings mean the field was absent.
type Entities struct {
	Location  string `json:"location,omitempty"`
	Amount    string `json:"amount,omitempty"`
	ClaimType string `json:"claim_type,omitempty"`
}

// ExtractedContext is the per-run keyword set and entity bag derived from a case.
type ExtractedContext struct {
	Keywords []string `json:"keywords"` // deduplicated; sorted only for stable output
	Entities Entities `json:"entities"`
	RawText  string   `json:"raw_text"`
}

// #endregion types

// #region extract

// Extract derives keywords and entities from a case record. It never fails.
func Extract(c corpus.CaseRecord) ExtractedContext {
	set := make(map[string]struct{})
	add := func(k string) {
		if k != "" {
			set[k] = struct{}{}
		}
	}

	add(c.ClaimType)
	if !isSentinelAmount(c.Amount) {
		add(strings.TrimSpace(c.Amount))
	}
	if c.Location != "" {
		for _, part := range strings.Split(c.Location, ",") {
			add(strings.TrimSpace(part))
		}
	}
	for _, tok := range tokenize(c.Description) {
		add(tok)
	}

	keywords := make([]string, 0, len(set))
	for k := range set {
		keywords = append(keywords, k)
	}
	sort.Strings(keywords)

	return ExtractedContext{
		Keywords: keywords,
		Entities: Entities{
			Location:  c.Location,
			Amount:    c.Amount,
			ClaimType: c.ClaimType,
		},
		RawText: fmt.Sprintf("%s in %s. %s", c.ClaimType, c.Location, c.Description),
	}
}

// #endregion extract
