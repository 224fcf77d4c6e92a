package retrieval

import (
	"strings"
	"unicode/utf8"

	"github.com/danielpatrickdp/case-knowledge/internal/corpus"
	"github.com/danielpatrickdp/case-knowledge/internal/extract"
)

// DefaultLimit is the number of articles returned when the caller has no preference.
const DefaultLimit = 3

// #region query

// QueryKind tags which variant a Query carries.
type QueryKind string

const (
	QueryRaw       QueryKind = "raw"
	QueryExtracted QueryKind = "extracted"
)

// Query is either free text typed by the agent or a context extracted from a case.
// The two sources are never combined.
type Query struct {
	Kind    QueryKind
	Text    string
	Context extract.ExtractedContext
}

// RawQuery wraps free-text input.
func RawQuery(text string) Query {
	return Query{Kind: QueryRaw, Text: text}
}

// ExtractedQuery wraps a case-derived context.
func ExtractedQuery(ctx extract.ExtractedContext) Query {
	return Query{Kind: QueryExtracted, Context: ctx}
}

// minRawKeywordLen is exclusive: raw tokens must be longer than this.
const minRawKeywordLen = 2

// Keywords normalizes the query into the lower-cased keyword list used for scoring.
// Empty keywords are dropped in both variants.
func (q Query) Keywords() []string {
	var out []string
	switch q.Kind {
	case QueryRaw:
		for _, w := range strings.Fields(strings.ToLower(q.Text)) {
			if utf8.RuneCountInString(w) > minRawKeywordLen {
				out = append(out, w)
			}
		}
	case QueryExtracted:
		for _, k := range q.Context.Keywords {
			if k = strings.ToLower(k); k != "" {
				out = append(out, k)
			}
		}
	}
	return out
}

// #endregion query

// #region scored-article

// ScoredArticle pairs an article with its keyword score and corpus position.
type ScoredArticle struct {
	Article corpus.KnowledgeArticle
	Score   int
	Index   int
}

// #endregion scored-article
