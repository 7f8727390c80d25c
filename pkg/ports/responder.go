package ports

import (
	"context"

	"github.com/aretw0/parley/pkg/domain"
)

// Responder is one agent node's unit of work. Implementations may call
// LLMs, databases, vector search, or messaging APIs; all of that is
// opaque to the engine. The returned update is applied atomically.
type Responder interface {
	Execute(ctx context.Context, state *domain.ConversationState, vars map[string]any) (*domain.PartialUpdate, error)
}

// ResponderFunc adapts a plain function to the Responder interface.
type ResponderFunc func(ctx context.Context, state *domain.ConversationState, vars map[string]any) (*domain.PartialUpdate, error)

// Execute implements Responder.
func (f ResponderFunc) Execute(ctx context.Context, state *domain.ConversationState, vars map[string]any) (*domain.PartialUpdate, error) {
	return f(ctx, state, vars)
}

// ModelClassification is the raw answer of the classification model.
type ModelClassification struct {
	Domain     string  `json:"domain"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning,omitempty"`
}

// ModelClassifier is the optional LLM collaborator of the domain
// classifier. A failure here degrades classification to the keyword
// result instead of failing the turn.
type ModelClassifier interface {
	ClassifyText(ctx context.Context, prompt string) (ModelClassification, error)
}

// ScoreResult is the outcome of scoring a response against criteria.
type ScoreResult struct {
	Score    float64 `json:"score"`
	Feedback string  `json:"feedback,omitempty"`
}

// Scorer is the external quality-scoring collaborator of the supervisor.
type Scorer interface {
	Score(ctx context.Context, response string, criteria []string) (ScoreResult, error)
}
