package compose

import (
	"context"
	"fmt"
	"time"

	"github.com/danielpatrickdp/case-knowledge/internal/corpus"
)

// #region answer-table

// DefaultAnswers maps article IDs to bespoke explanations. Articles not listed fall back to
// their summary followed by fallbackSuffix.
var DefaultAnswers = map[string]string{
	"POL-FL-2024":   "residential claims in Florida high-risk coastal zones require specialized reports if damage exceeds $50,000. Additionally, electrical system remediation is restricted if saltwater intrusion is detected.",
	"SOP-CLAIM-01":  "all claims valued above $100,000 must undergo a secondary compliance check by a Senior Claims Officer before an offer is generated.",
	"KB-HIPAA-2023": "encryption for patient data-at-rest must strictly follow AES-256 standards in cloud-hosted environments, as per federal telehealth privacy standards.",
}

const fallbackSuffix = " This guideline should be followed for all applicable cases."

// #endregion answer-table

// #region template-generator

// TemplateGenerator renders answers from a fixed table. It stands in for a model call and
// only ever fails when ctx is done during its simulated latency.
type TemplateGenerator struct {
	answers map[string]string
	delay   time.Duration
}

// Option configures a TemplateGenerator.
type Option func(*TemplateGenerator)

// WithDelay sets the simulated generation latency.
func WithDelay(d time.Duration) Option {
	return func(g *TemplateGenerator) { g.delay = d }
}

// WithAnswers replaces the answer table.
func WithAnswers(answers map[string]string) Option {
	return func(g *TemplateGenerator) { g.answers = answers }
}

// NewTemplateGenerator returns a generator using DefaultAnswers and no delay.
func NewTemplateGenerator(opts ...Option) *TemplateGenerator {
	g := &TemplateGenerator{answers: DefaultAnswers}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate implements Generator.
func (g *TemplateGenerator) Generate(ctx context.Context, query string, retrieved []corpus.KnowledgeArticle) (ComposedResponse, error) {
	if err := sleep(ctx, g.delay); err != nil {
		return ComposedResponse{}, fmt.Errorf("generate: %w", err)
	}
	return g.Compose(retrieved), nil
}

// Compose is the synchronous body of Generate.
func (g *TemplateGenerator) Compose(retrieved []corpus.KnowledgeArticle) ComposedResponse {
	if len(retrieved) == 0 {
		return ComposedResponse{
			Answer:     NoInformationAnswer,
			Citations:  []corpus.Citation{},
			Confidence: ConfidenceEmpty,
		}
	}

	primary := retrieved[0]
	return ComposedResponse{
		Answer:     fmt.Sprintf("According to **%s**, %s%s", primary.Title, g.explain(primary), ClosingSentence),
		Citations:  FlattenCitations(retrieved),
		Confidence: ConfidenceGrounded,
	}
}

func (g *TemplateGenerator) explain(a corpus.KnowledgeArticle) string {
	if text, ok := g.answers[a.ID]; ok {
		return text
	}
	return a.Summary + fallbackSuffix
}

// #endregion template-generator

// #region sleep
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// #endregion sleep
