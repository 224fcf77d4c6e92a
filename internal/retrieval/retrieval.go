package retrieval

import (
	"sort"
	"strings"

	"github.com/danielpatrickdp/case-knowledge/internal/corpus"
)

// #region weights
const (
	substringWeight = 1 // keyword appears anywhere in the article text
	triggerWeight   = 2 // keyword equals one of the article's triggers
)

// #endregion weights

// #region retriever

// Retriever scores a fixed corpus against query keywords.
type Retriever struct {
	articles []indexedArticle
}

type indexedArticle struct {
	article  corpus.KnowledgeArticle
	blob     string
	triggers []string
}

// NewRetriever precomputes the lower-cased search text of every article in c.
func NewRetriever(c *corpus.Corpus) *Retriever {
	arts := c.Articles()
	r := &Retriever{articles: make([]indexedArticle, len(arts))}
	for i, a := range arts {
		triggers := make([]string, len(a.Triggers))
		for j, t := range a.Triggers {
			triggers[j] = strings.ToLower(t)
		}
		blob := strings.ToLower(strings.Join([]string{
			a.Title, a.Summary, string(a.Category), strings.Join(a.Triggers, " "),
		}, " "))
		r.articles[i] = indexedArticle{article: a, blob: blob, triggers: triggers}
	}
	return r
}

// #endregion retriever

// #region score

// Score returns every article with its score, in corpus order.
func (r *Retriever) Score(q Query) []ScoredArticle {
	keywords := q.Keywords()
	out := make([]ScoredArticle, len(r.articles))
	for i, ia := range r.articles {
		out[i] = ScoredArticle{Article: ia.article, Score: ia.score(keywords), Index: i}
	}
	return out
}

func (ia indexedArticle) score(keywords []string) int {
	score := 0
	for _, k := range keywords {
		if strings.Contains(ia.blob, k) {
			score += substringWeight
		}
		for _, t := range ia.triggers {
			if t == k {
				score += triggerWeight
				break
			}
		}
	}
	return score
}

// #endregion score

// #region retrieve

// Retrieve returns up to limit articles with a positive score, highest first.
// Equal scores keep corpus order.
func (r *Retriever) Retrieve(q Query, limit int) []corpus.KnowledgeArticle {
	ranked := r.Rank(q, limit)
	out := make([]corpus.KnowledgeArticle, len(ranked))
	for i, sa := range ranked {
		out[i] = sa.Article
	}
	return out
}

// Rank is Retrieve with scores attached.
func (r *Retriever) Rank(q Query, limit int) []ScoredArticle {
	if limit <= 0 {
		return nil
	}

	var hits []ScoredArticle
	for _, sa := range r.Score(q) {
		if sa.Score > 0 {
			hits = append(hits, sa)
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})

	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}

// #endregion retrieve
