// Package supervise scores executor output and decides whether a turn
// is done, needs another pass, or must be handed to a human.
package supervise

import (
	"context"
	"log/slog"
	"strings"

	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
)

// Config tunes the supervision verdict.
type Config struct {
	// Threshold is the minimum acceptable quality score. Responses
	// scoring below it are retried while the budget lasts.
	Threshold float64

	// MaxRetries is the number of extra executor passes a turn may
	// consume. Zero means every response is accepted as-is.
	MaxRetries int

	// Criteria are passed verbatim to the scoring responder.
	Criteria []string

	// HandoffPhrases trigger escalation when present in the latest
	// user message.
	HandoffPhrases []string

	// SentimentStreak is how many consecutive negative user messages
	// count as sustained low sentiment.
	SentimentStreak int
}

// DefaultConfig returns the supervision defaults.
func DefaultConfig() Config {
	return Config{
		Threshold:  0.7,
		MaxRetries: 1,
		Criteria:   []string{"relevance", "completeness", "policy compliance"},
		HandoffPhrases: []string{
			"speak to a human",
			"talk to a human",
			"real person",
			"human agent",
			"customer representative",
		},
		SentimentStreak: 3,
	}
}

var negativeMarkers = []string{
	"terrible", "awful", "useless", "frustrated", "frustrating",
	"angry", "ridiculous", "worst", "not helping", "waste of time",
}

// Supervisor evaluates one executor pass at a time. It is stateless
// across turns; retry bookkeeping belongs to the caller.
type Supervisor struct {
	scorer ports.Scorer
	cfg    Config
	logger *slog.Logger
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithConfig overrides the default thresholds and criteria.
func WithConfig(cfg Config) Option {
	return func(s *Supervisor) { s.cfg = cfg }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Supervisor) { s.logger = logger }
}

// New builds a Supervisor. The scorer may be nil, in which case every
// non-escalating turn terminates immediately.
func New(scorer ports.Scorer, opts ...Option) *Supervisor {
	s := &Supervisor{
		scorer: scorer,
		cfg:    DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Evaluate scores the last assistant response and returns the verdict
// for this pass. attempt counts completed executor passes for the turn,
// starting at zero.
//
// Escalation conditions are checked before scoring since they do not
// depend on response quality. A scoring failure degrades to terminate:
// an unscorable response is still better than no response.
func (s *Supervisor) Evaluate(ctx context.Context, state *domain.ConversationState, attempt int) (domain.SupervisionDecision, error) {
	if s.needsHandoff(state) {
		return domain.SupervisionDecision{
			Outcome:  domain.OutcomeEscalate,
			Feedback: "conversation requires human follow-up",
		}, nil
	}

	response := state.LastAssistantMessage()
	if s.scorer == nil || response == "" {
		return domain.SupervisionDecision{Outcome: domain.OutcomeTerminate}, nil
	}

	result, err := s.scorer.Score(ctx, response, s.cfg.Criteria)
	if err != nil {
		s.logger.Warn("scoring failed, accepting response", "err", err)
		return domain.SupervisionDecision{Outcome: domain.OutcomeTerminate}, nil
	}

	if result.Score < s.cfg.Threshold && attempt < s.cfg.MaxRetries {
		feedback := result.Feedback
		if feedback == "" {
			feedback = "previous response scored below the quality threshold"
		}
		return domain.SupervisionDecision{
			Outcome:  domain.OutcomeContinue,
			Feedback: feedback,
			Score:    result.Score,
		}, nil
	}

	return domain.SupervisionDecision{
		Outcome: domain.OutcomeTerminate,
		Score:   result.Score,
	}, nil
}

// needsHandoff detects an explicit request for a human or a run of
// negative user messages.
func (s *Supervisor) needsHandoff(state *domain.ConversationState) bool {
	var lastUser string
	streak := 0
	for _, msg := range state.Messages {
		if msg.Role != domain.RoleUser {
			continue
		}
		lastUser = strings.ToLower(msg.Content)
		if soundsNegative(lastUser) {
			streak++
		} else {
			streak = 0
		}
	}
	if lastUser == "" {
		return false
	}
	for _, phrase := range s.cfg.HandoffPhrases {
		if strings.Contains(lastUser, phrase) {
			return true
		}
	}
	return s.cfg.SentimentStreak > 0 && streak >= s.cfg.SentimentStreak
}

func soundsNegative(text string) bool {
	for _, marker := range negativeMarkers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}
