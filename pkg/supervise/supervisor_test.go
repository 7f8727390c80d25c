package supervise_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
	"github.com/aretw0/parley/pkg/supervise"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubScorer struct {
	result ports.ScoreResult
	err    error
	calls  int
}

func (s *stubScorer) Score(ctx context.Context, response string, criteria []string) (ports.ScoreResult, error) {
	s.calls++
	return s.result, s.err
}

func stateWith(messages ...domain.Message) *domain.ConversationState {
	state := domain.NewConversationState("conv")
	state.Messages = messages
	return state
}

func TestEvaluate_LowScoreWithRetriesContinues(t *testing.T) {
	scorer := &stubScorer{result: ports.ScoreResult{Score: 0.4, Feedback: "missed the billing question"}}
	sup := supervise.New(scorer)

	state := stateWith(
		domain.Message{Role: domain.RoleUser, Content: "why was I charged twice"},
		domain.Message{Role: domain.RoleAssistant, Content: "our store hours are 9 to 5"},
	)

	decision, err := sup.Evaluate(context.Background(), state, 0)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeContinue, decision.Outcome)
	assert.Equal(t, "missed the billing question", decision.Feedback)
	assert.InDelta(t, 0.4, decision.Score, 1e-9)
}

func TestEvaluate_ZeroRetriesTerminatesRegardlessOfScore(t *testing.T) {
	scorer := &stubScorer{result: ports.ScoreResult{Score: 0.1}}
	sup := supervise.New(scorer, supervise.WithConfig(supervise.Config{
		Threshold:  0.9,
		MaxRetries: 0,
		Criteria:   []string{"relevance"},
	}))

	state := stateWith(
		domain.Message{Role: domain.RoleUser, Content: "hello"},
		domain.Message{Role: domain.RoleAssistant, Content: "hi"},
	)

	decision, err := sup.Evaluate(context.Background(), state, 0)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeTerminate, decision.Outcome)
}

func TestEvaluate_ExhaustedBudgetTerminates(t *testing.T) {
	scorer := &stubScorer{result: ports.ScoreResult{Score: 0.2}}
	sup := supervise.New(scorer)

	state := stateWith(
		domain.Message{Role: domain.RoleUser, Content: "hello"},
		domain.Message{Role: domain.RoleAssistant, Content: "hi"},
	)

	decision, err := sup.Evaluate(context.Background(), state, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeTerminate, decision.Outcome)
}

func TestEvaluate_GoodScoreTerminates(t *testing.T) {
	scorer := &stubScorer{result: ports.ScoreResult{Score: 0.95}}
	sup := supervise.New(scorer)

	state := stateWith(
		domain.Message{Role: domain.RoleUser, Content: "what laptops do you sell"},
		domain.Message{Role: domain.RoleAssistant, Content: "we carry three laptop lines"},
	)

	decision, err := sup.Evaluate(context.Background(), state, 0)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeTerminate, decision.Outcome)
	assert.InDelta(t, 0.95, decision.Score, 1e-9)
}

func TestEvaluate_ExplicitHandoffEscalates(t *testing.T) {
	scorer := &stubScorer{result: ports.ScoreResult{Score: 1.0}}
	sup := supervise.New(scorer)

	state := stateWith(
		domain.Message{Role: domain.RoleUser, Content: "I want to speak to a human agent"},
		domain.Message{Role: domain.RoleAssistant, Content: "I can help with that"},
	)

	decision, err := sup.Evaluate(context.Background(), state, 0)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeEscalate, decision.Outcome)
	assert.Zero(t, scorer.calls, "escalation must not depend on scoring")
}

func TestEvaluate_SustainedNegativeSentimentEscalates(t *testing.T) {
	scorer := &stubScorer{result: ports.ScoreResult{Score: 1.0}}
	sup := supervise.New(scorer)

	state := stateWith(
		domain.Message{Role: domain.RoleUser, Content: "this is useless"},
		domain.Message{Role: domain.RoleAssistant, Content: "sorry to hear that"},
		domain.Message{Role: domain.RoleUser, Content: "still useless, I am frustrated"},
		domain.Message{Role: domain.RoleAssistant, Content: "let me try again"},
		domain.Message{Role: domain.RoleUser, Content: "worst support I have ever had"},
		domain.Message{Role: domain.RoleAssistant, Content: "apologies"},
	)

	decision, err := sup.Evaluate(context.Background(), state, 0)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeEscalate, decision.Outcome)
}

func TestEvaluate_PositiveMessageResetsSentimentStreak(t *testing.T) {
	scorer := &stubScorer{result: ports.ScoreResult{Score: 1.0}}
	sup := supervise.New(scorer)

	state := stateWith(
		domain.Message{Role: domain.RoleUser, Content: "this is useless"},
		domain.Message{Role: domain.RoleUser, Content: "still frustrated"},
		domain.Message{Role: domain.RoleUser, Content: "ok that actually helped, thanks"},
		domain.Message{Role: domain.RoleAssistant, Content: "glad to help"},
	)

	decision, err := sup.Evaluate(context.Background(), state, 0)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeTerminate, decision.Outcome)
}

func TestEvaluate_ScorerFailureAcceptsResponse(t *testing.T) {
	scorer := &stubScorer{err: errors.New("scoring backend down")}
	sup := supervise.New(scorer)

	state := stateWith(
		domain.Message{Role: domain.RoleUser, Content: "hello"},
		domain.Message{Role: domain.RoleAssistant, Content: "hi"},
	)

	decision, err := sup.Evaluate(context.Background(), state, 0)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeTerminate, decision.Outcome)
}

func TestEvaluate_NoScorerTerminates(t *testing.T) {
	sup := supervise.New(nil)

	state := stateWith(
		domain.Message{Role: domain.RoleUser, Content: "hello"},
		domain.Message{Role: domain.RoleAssistant, Content: "hi"},
	)

	decision, err := sup.Evaluate(context.Background(), state, 0)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeTerminate, decision.Outcome)
}
