package compose

import (
	"context"
	"fmt"

	"github.com/danielpatrickdp/case-knowledge/internal/corpus"
)

// #region constants
const (
	// NoInformationAnswer is returned when retrieval produced nothing.
	NoInformationAnswer = "I couldn't find any specific regulatory or policy information related to your query in the current knowledge base. Please try broader terms or contact the compliance department."

	// ClosingSentence ends every grounded answer.
	ClosingSentence = " Please review the source documents for specific procedural steps."

	// ConfidenceGrounded is reported whenever at least one article was retrieved.
	// It does not vary with retrieval score.
	ConfidenceGrounded = 0.95

	// ConfidenceEmpty is reported with NoInformationAnswer.
	ConfidenceEmpty = 0.1
)

// #endregion constants

// #region response

// ComposedResponse is the answer shown to the agent together with its supporting citations.
type ComposedResponse struct {
	Answer     string            `json:"answer"`
	Citations  []corpus.Citation `json:"citations"`
	Confidence float64           `json:"confidence"`
}

// CitationIDs returns the IDs of the response's citations in order.
func (r ComposedResponse) CitationIDs() []string {
	out := make([]string, len(r.Citations))
	for i, c := range r.Citations {
		out[i] = c.ID
	}
	return out
}

// #endregion response

// #region generator

// Generator turns retrieved articles into an answer for query.
type Generator interface {
	Generate(ctx context.Context, query string, retrieved []corpus.KnowledgeArticle) (ComposedResponse, error)
}

// #endregion generator

// #region provenance

// VerifyProvenance checks that every citation in resp belongs to one of the retrieved articles.
func VerifyProvenance(resp ComposedResponse, retrieved []corpus.KnowledgeArticle) error {
	owned := make(map[string]bool)
	for _, a := range retrieved {
		for _, c := range a.Citations {
			owned[c.ID] = true
		}
	}
	for _, c := range resp.Citations {
		if !owned[c.ID] {
			return fmt.Errorf("citation %s does not belong to any retrieved article", c.ID)
		}
	}
	return nil
}

// FlattenCitations concatenates the citations of articles in order, keeping duplicates.
func FlattenCitations(articles []corpus.KnowledgeArticle) []corpus.Citation {
	var out []corpus.Citation
	for _, a := range articles {
		out = append(out, a.Citations...)
	}
	return out
}

// #endregion provenance
