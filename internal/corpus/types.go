package corpus

import "errors"

// ErrNotFound is returned by lookups for unknown article or citation IDs.
var ErrNotFound = errors.New("not found")

// #region category

// Category classifies the kind of source a knowledge article was drawn from.
type Category string

const (
	CategoryRegulation    Category = "Regulation"
	CategoryPolicy        Category = "Policy"
	CategorySOP           Category = "SOP"
	CategoryKnowledgeBase Category = "Knowledge Base"
)

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryRegulation, CategoryPolicy, CategorySOP, CategoryKnowledgeBase:
		return true
	}
	return false
}

// #endregion category

// #region citation

// Citation is a quoted excerpt plus the metadata needed to locate it in its source document.
type Citation struct {
	ID          string `json:"id"`
	Source      string `json:"source"`
	Page        int    `json:"page"`
	Paragraph   string `json:"paragraph"`
	Content     string `json:"content"`
	FullContent string `json:"full_content,omitempty"`
}

// HasFullContent reports whether the full source text is available for detail display.
func (c Citation) HasFullContent() bool {
	return c.FullContent != ""
}

// #endregion citation

// #region article

// KnowledgeArticle is a single immutable corpus entry.
type KnowledgeArticle struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Category  Category   `json:"category"`
	Summary   string     `json:"summary"`
	Citations []Citation `json:"citations"`
	Triggers  []string   `json:"relevance_trigger"` // keywords that weight matches for this article
}

// #endregion article

// #region case-record

// CaseRecord is the externally supplied case the assistant works against.
type CaseRecord struct {
	ID          string `json:"id"`
	Agent       string `json:"agent"`
	Status      string `json:"status"`
	Type        string `json:"type"`
	ClaimType   string `json:"claim_type"`
	Location    string `json:"location"`
	Amount      string `json:"amount"`
	Description string `json:"description"`
}

// #endregion case-record
