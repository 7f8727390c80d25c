package parley_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/parley"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/patterns"
	"github.com/aretw0/parley/pkg/ports"
	"github.com/aretw0/parley/pkg/registry"
	"github.com/aretw0/parley/pkg/supervise"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedScorer struct {
	scores []ports.ScoreResult
	calls  int
}

func (s *scriptedScorer) Score(ctx context.Context, response string, criteria []string) (ports.ScoreResult, error) {
	if s.calls >= len(s.scores) {
		return ports.ScoreResult{Score: 1}, nil
	}
	res := s.scores[s.calls]
	s.calls++
	return res, nil
}

func reply(text string) ports.ResponderFunc {
	return func(ctx context.Context, state *domain.ConversationState, vars map[string]any) (*domain.PartialUpdate, error) {
		return &domain.PartialUpdate{
			Messages: []domain.Message{{Role: domain.RoleAssistant, Content: text}},
		}, nil
	}
}

func commerceRepo(t *testing.T) *patterns.Repository {
	t.Helper()
	repo := patterns.NewRepository()
	require.NoError(t, repo.Add(patterns.DomainPattern{
		Domain:   "commerce",
		Keywords: []string{"laptop", "order", "price"},
	}))
	require.NoError(t, repo.Add(patterns.DomainPattern{
		Domain:   "credit",
		Keywords: []string{"balance", "account"},
	}))
	return repo
}

func singleNodeWorkflow(key, domainKey, responder string) *domain.Workflow {
	return &domain.Workflow{
		Key:    key,
		Domain: domainKey,
		Entry:  "start",
		Nodes: map[string]*domain.Node{
			"start": {Responder: responder, End: true},
		},
	}
}

func TestHandleTurn_RoutesByDomain(t *testing.T) {
	reg := registry.New()
	reg.RegisterFunc("commerce-agent", reply("we have three laptop lines"))
	reg.RegisterFunc("credit-agent", reply("your balance is 10"))

	o, err := parley.New(reg, commerceRepo(t))
	require.NoError(t, err)
	require.NoError(t, o.AddWorkflows(
		singleNodeWorkflow("commerce-flow", "commerce", "commerce-agent"),
		singleNodeWorkflow("credit-flow", "credit", "credit-agent"),
	))
	require.NoError(t, o.Validate())

	resp, err := o.HandleTurn(context.Background(), parley.TurnRequest{
		ConversationID: "c1",
		Message:        "what laptop models do you have",
	})
	require.NoError(t, err)
	assert.Equal(t, "commerce", resp.Domain)
	assert.Equal(t, "we have three laptop lines", resp.Reply)
	assert.Equal(t, domain.OutcomeTerminate, resp.Outcome)
	assert.NotEmpty(t, resp.TurnID)

	resp, err = o.HandleTurn(context.Background(), parley.TurnRequest{
		ConversationID: "c1",
		Message:        "what is my account balance",
	})
	require.NoError(t, err)
	assert.Equal(t, "credit", resp.Domain)
	assert.Equal(t, "your balance is 10", resp.Reply)
}

func TestHandleTurn_PersistsHistoryAcrossTurns(t *testing.T) {
	reg := registry.New()
	reg.RegisterFunc("commerce-agent", func(ctx context.Context, state *domain.ConversationState, vars map[string]any) (*domain.PartialUpdate, error) {
		return &domain.PartialUpdate{
			Messages: []domain.Message{{Role: domain.RoleAssistant, Content: "noted"}},
		}, nil
	})

	o, err := parley.New(reg, commerceRepo(t))
	require.NoError(t, err)
	require.NoError(t, o.AddWorkflow(singleNodeWorkflow("commerce-flow", "commerce", "commerce-agent")))
	require.NoError(t, o.Validate())

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, err := o.HandleTurn(ctx, parley.TurnRequest{ConversationID: "c1", Message: "laptop price"})
		require.NoError(t, err)
	}

	state, err := o.Sessions().Load(ctx, "c1")
	require.NoError(t, err)
	// Two user messages and two replies.
	assert.Len(t, state.Messages, 4)
	assert.Equal(t, "commerce", state.ActiveDomain)
}

func TestHandleTurn_UnclassifiedAsksForClarification(t *testing.T) {
	o, err := parley.New(registry.New(), commerceRepo(t))
	require.NoError(t, err)
	require.NoError(t, o.Validate())

	resp, err := o.HandleTurn(context.Background(), parley.TurnRequest{
		ConversationID: "c1",
		Message:        "zzz qqq",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.DomainUnclassified, resp.Domain)
	assert.Equal(t, parley.DefaultClarification, resp.Reply)
}

func TestHandleTurn_UnclassifiedFallsBackToDefaultWorkflow(t *testing.T) {
	reg := registry.New()
	reg.RegisterFunc("catch-all", reply("let me route you to the right team"))

	o, err := parley.New(reg, commerceRepo(t), parley.WithDefaultWorkflow("fallback"))
	require.NoError(t, err)
	require.NoError(t, o.AddWorkflow(singleNodeWorkflow("fallback", "", "catch-all")))
	require.NoError(t, o.Validate())

	resp, err := o.HandleTurn(context.Background(), parley.TurnRequest{
		ConversationID: "c1",
		Message:        "zzz qqq",
	})
	require.NoError(t, err)
	assert.Equal(t, "let me route you to the right team", resp.Reply)
}

func TestHandleTurn_SupervisionRetryFeedsFeedback(t *testing.T) {
	reg := registry.New()
	var sawFeedback string
	pass := 0
	reg.RegisterFunc("commerce-agent", func(ctx context.Context, state *domain.ConversationState, flat map[string]any) (*domain.PartialUpdate, error) {
		pass++
		if fb, ok := flat["supervisor_feedback"].(string); ok {
			sawFeedback = fb
		}
		return &domain.PartialUpdate{
			Messages: []domain.Message{{Role: domain.RoleAssistant, Content: "attempt"}},
		}, nil
	})

	scorer := &scriptedScorer{scores: []ports.ScoreResult{
		{Score: 0.2, Feedback: "answer the pricing question"},
		{Score: 0.9},
	}}

	o, err := parley.New(reg, commerceRepo(t), parley.WithScorer(scorer))
	require.NoError(t, err)
	require.NoError(t, o.AddWorkflow(singleNodeWorkflow("commerce-flow", "commerce", "commerce-agent")))
	require.NoError(t, o.Validate())

	resp, err := o.HandleTurn(context.Background(), parley.TurnRequest{
		ConversationID: "c1",
		Message:        "laptop price",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, pass, "low score with retries remaining triggers a second pass")
	assert.Equal(t, "answer the pricing question", sawFeedback)
	assert.Equal(t, domain.OutcomeTerminate, resp.Outcome)
}

func TestHandleTurn_ZeroRetriesAcceptsFirstPass(t *testing.T) {
	reg := registry.New()
	pass := 0
	reg.RegisterFunc("commerce-agent", func(ctx context.Context, state *domain.ConversationState, flat map[string]any) (*domain.PartialUpdate, error) {
		pass++
		return &domain.PartialUpdate{
			Messages: []domain.Message{{Role: domain.RoleAssistant, Content: "attempt"}},
		}, nil
	})
	scorer := &scriptedScorer{scores: []ports.ScoreResult{{Score: 0.1}}}

	cfg := supervise.DefaultConfig()
	cfg.MaxRetries = 0
	o, err := parley.New(reg, commerceRepo(t),
		parley.WithScorer(scorer),
		parley.WithSupervisorConfig(cfg),
	)
	require.NoError(t, err)
	require.NoError(t, o.AddWorkflow(singleNodeWorkflow("commerce-flow", "commerce", "commerce-agent")))
	require.NoError(t, o.Validate())

	_, err = o.HandleTurn(context.Background(), parley.TurnRequest{ConversationID: "c1", Message: "laptop price"})
	require.NoError(t, err)
	assert.Equal(t, 1, pass)
}

func TestHandleTurn_ExplicitHandoffEscalates(t *testing.T) {
	reg := registry.New()
	reg.RegisterFunc("commerce-agent", reply("I can check that order"))

	o, err := parley.New(reg, commerceRepo(t), parley.WithScorer(&scriptedScorer{}))
	require.NoError(t, err)
	require.NoError(t, o.AddWorkflow(singleNodeWorkflow("commerce-flow", "commerce", "commerce-agent")))
	require.NoError(t, o.Validate())

	resp, err := o.HandleTurn(context.Background(), parley.TurnRequest{
		ConversationID: "c1",
		Message:        "my order is wrong, I want to speak to a human agent",
	})
	require.NoError(t, err)
	assert.True(t, resp.Escalated)
	assert.Equal(t, domain.OutcomeEscalate, resp.Outcome)
}

func TestHandleTurn_ResponderFailureFallsBack(t *testing.T) {
	reg := registry.New()
	reg.RegisterFunc("commerce-agent", func(ctx context.Context, state *domain.ConversationState, vars map[string]any) (*domain.PartialUpdate, error) {
		return nil, errors.New("upstream down")
	})

	o, err := parley.New(reg, commerceRepo(t))
	require.NoError(t, err)
	require.NoError(t, o.AddWorkflow(singleNodeWorkflow("commerce-flow", "commerce", "commerce-agent")))
	require.NoError(t, o.Validate())

	resp, err := o.HandleTurn(context.Background(), parley.TurnRequest{
		ConversationID: "c1",
		Message:        "laptop price",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ErrorFlagResponder, resp.ErrorFlag)
	assert.Equal(t, parley.DefaultFallbackMessage, resp.Reply)
}

type scriptedModel struct {
	answers []ports.ModelClassification
	calls   int
}

func (m *scriptedModel) ClassifyText(ctx context.Context, prompt string) (ports.ModelClassification, error) {
	res := m.answers[m.calls%len(m.answers)]
	m.calls++
	return res, nil
}

func TestHandleTurn_RerouteReclassifies(t *testing.T) {
	reg := registry.New()
	reg.RegisterFunc("commerce-agent", func(ctx context.Context, state *domain.ConversationState, vars map[string]any) (*domain.PartialUpdate, error) {
		// Hand off: this actually concerns the credit domain.
		return &domain.PartialUpdate{
			Flags: domain.ControlFlags{Reroute: true},
		}, nil
	})
	reg.RegisterFunc("credit-agent", reply("your balance is 10"))

	// No keyword overlap with the message: classification is decided
	// by the model, which changes its mind once the first workflow has
	// seen the turn.
	model := &scriptedModel{answers: []ports.ModelClassification{
		{Domain: "commerce", Confidence: 0.9},
		{Domain: "credit", Confidence: 0.9},
	}}

	o, err := parley.New(reg, commerceRepo(t), parley.WithModel(model))
	require.NoError(t, err)
	require.NoError(t, o.AddWorkflows(
		singleNodeWorkflow("commerce-flow", "commerce", "commerce-agent"),
		singleNodeWorkflow("credit-flow", "credit", "credit-agent"),
	))
	require.NoError(t, o.Validate())

	resp, err := o.HandleTurn(context.Background(), parley.TurnRequest{
		ConversationID: "c1",
		Message:        "something about a refund on my card",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, model.calls)
	assert.Equal(t, "credit", resp.Domain)
	assert.Equal(t, "your balance is 10", resp.Reply)
}

func TestHandleTurn_RequestValidation(t *testing.T) {
	o, err := parley.New(registry.New(), commerceRepo(t))
	require.NoError(t, err)

	_, err = o.HandleTurn(context.Background(), parley.TurnRequest{Message: "hi"})
	assert.Error(t, err)

	_, err = o.HandleTurn(context.Background(), parley.TurnRequest{ConversationID: "c1"})
	assert.Error(t, err)
}

func TestValidate_UnknownDefaultWorkflow(t *testing.T) {
	o, err := parley.New(registry.New(), commerceRepo(t), parley.WithDefaultWorkflow("ghost"))
	require.NoError(t, err)
	assert.ErrorIs(t, o.Validate(), domain.ErrWorkflowNotFound)
}
