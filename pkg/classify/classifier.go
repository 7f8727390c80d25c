// Package classify decides which business vertical owns a conversation
// turn. The primary strategy is keyword/phrase scoring against the
// pattern repository; an optional model collaborator refines low
// confidence outcomes, degrading gracefully back to the keyword result
// when the model call fails.
package classify

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/aretw0/parley/internal/logging"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/patterns"
	"github.com/aretw0/parley/pkg/ports"
	"github.com/aretw0/parley/pkg/stats"
)

// Config tunes the scoring strategy.
type Config struct {
	// HighConfidence short-circuits to the keyword result without
	// consulting the model.
	HighConfidence float64

	// Floor is the minimum confidence for a definitive domain; below it
	// the sentinel "unclassified" domain is returned.
	Floor float64

	// Raw hit weights, normalized afterwards to [0,1].
	KeywordWeight   float64
	PhraseWeight    float64
	IndicatorWeight float64

	// BlendWeight is the model's share when both keyword and model
	// signals fire (0.5 = arithmetic mean). This is a tunable policy,
	// not an invariant.
	BlendWeight float64
}

// DefaultConfig returns the default thresholds.
func DefaultConfig() Config {
	return Config{
		HighConfidence:  0.6,
		Floor:           0.2,
		KeywordWeight:   1.0,
		PhraseWeight:    1.2,
		IndicatorWeight: 0.5,
		BlendWeight:     0.5,
	}
}

// Classifier produces (domain, confidence, method) decisions.
type Classifier struct {
	patterns *patterns.Repository
	model    ports.ModelClassifier
	tracker  *stats.Tracker
	logger   *slog.Logger
	cfg      Config
}

// Option configures the Classifier.
type Option func(*Classifier)

// WithModel enables the model fallback strategy.
func WithModel(model ports.ModelClassifier) Option {
	return func(c *Classifier) {
		c.model = model
	}
}

// WithTracker records every classification attempt.
func WithTracker(tracker *stats.Tracker) Option {
	return func(c *Classifier) {
		c.tracker = tracker
	}
}

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Classifier) {
		c.logger = logger
	}
}

// WithConfig overrides the default thresholds.
func WithConfig(cfg Config) Option {
	return func(c *Classifier) {
		c.cfg = cfg
	}
}

// New creates a Classifier over a pattern repository.
func New(repo *patterns.Repository, opts ...Option) *Classifier {
	c := &Classifier{
		patterns: repo,
		logger:   logging.NewNop(),
		cfg:      DefaultConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify scores message against every known domain. It never fails:
// a model error degrades to the keyword result, and an inconclusive
// score yields the "unclassified" sentinel.
func (c *Classifier) Classify(ctx context.Context, message string, state *domain.ConversationState) domain.ClassificationResult {
	start := time.Now()

	keyword := c.keywordPass(message)

	// High-confidence keyword match wins outright.
	if keyword.Confidence >= c.cfg.HighConfidence {
		return c.finish(keyword, start, false)
	}

	if c.model == nil {
		return c.finish(c.applyFloor(keyword), start, false)
	}

	model, err := c.model.ClassifyText(ctx, c.buildPrompt(message, state))
	if err != nil {
		// ClassificationDegraded: recorded, non-fatal.
		c.logger.Warn("model classification failed, degrading to keyword result", "err", err)
		return c.finish(c.applyFloor(keyword), start, true)
	}
	if !c.knownDomain(model.Domain) {
		c.logger.Warn("model returned unknown domain, degrading to keyword result", "domain", model.Domain)
		return c.finish(c.applyFloor(keyword), start, true)
	}

	result := domain.ClassificationResult{
		Domain:     model.Domain,
		Confidence: clamp01(model.Confidence),
		Method:     domain.MethodModel,
		Reasoning:  model.Reasoning,
	}

	// Both signals present: keep the model outcome, blend confidences.
	if !keyword.Unclassified() && keyword.Confidence > 0 {
		result.Method = domain.MethodHybrid
		result.Confidence = clamp01(c.cfg.BlendWeight*model.Confidence + (1-c.cfg.BlendWeight)*keyword.Confidence)
	}

	return c.finish(c.applyFloor(result), start, false)
}

// keywordPass scores every known domain and returns the best candidate.
// Domains are visited in sorted order and ties keep the first winner, so
// scoring is deterministic for a fixed pattern set.
func (c *Classifier) keywordPass(message string) domain.ClassificationResult {
	words := tokenize(message)
	lowered := strings.ToLower(message)

	best := domain.ClassificationResult{
		Domain: domain.DomainUnclassified,
		Method: domain.MethodKeyword,
	}

	for _, key := range c.patterns.ListDomains() {
		p, ok := c.patterns.Get(key)
		if !ok {
			continue
		}

		var raw float64
		for _, kw := range p.Keywords {
			if words[strings.ToLower(kw)] {
				raw += c.cfg.KeywordWeight
			}
		}
		for _, ph := range p.Phrases {
			if ph != "" && strings.Contains(lowered, strings.ToLower(ph)) {
				raw += c.cfg.PhraseWeight
			}
		}
		for _, ind := range p.Indicators {
			if words[strings.ToLower(ind)] {
				raw += c.cfg.IndicatorWeight
			}
		}

		score := normalize(raw)
		if score > best.Confidence {
			best.Domain = key
			best.Confidence = score
		}
	}

	return best
}

// applyFloor maps inconclusive results to the sentinel domain.
func (c *Classifier) applyFloor(res domain.ClassificationResult) domain.ClassificationResult {
	if res.Confidence < c.cfg.Floor {
		res.Domain = domain.DomainUnclassified
	}
	return res
}

func (c *Classifier) finish(res domain.ClassificationResult, start time.Time, degraded bool) domain.ClassificationResult {
	if c.tracker != nil {
		c.tracker.RecordClassification(res, time.Since(start), degraded)
	}
	c.logger.Debug("classified message",
		"domain", res.Domain,
		"confidence", res.Confidence,
		"method", res.Method,
		"degraded", degraded,
	)
	return res
}

func (c *Classifier) knownDomain(key string) bool {
	_, ok := c.patterns.Get(key)
	return ok
}

// buildPrompt constrains the model to the known domain set.
func (c *Classifier) buildPrompt(message string, state *domain.ConversationState) string {
	var sb strings.Builder
	sb.WriteString("Classify the user message into exactly one of these domains:\n")
	for _, key := range c.patterns.ListDomains() {
		p, _ := c.patterns.Get(key)
		sb.WriteString("- ")
		sb.WriteString(key)
		if p.Description != "" {
			sb.WriteString(": ")
			sb.WriteString(p.Description)
		}
		sb.WriteString("\n")
	}
	if state != nil && len(state.Messages) > 0 {
		sb.WriteString("\nRecent conversation:\n")
		msgs := state.Messages
		if len(msgs) > 6 {
			msgs = msgs[len(msgs)-6:]
		}
		for _, m := range msgs {
			sb.WriteString(m.Role)
			sb.WriteString(": ")
			sb.WriteString(m.Content)
			sb.WriteString("\n")
		}
	}
	sb.WriteString("\nUser message: ")
	sb.WriteString(message)
	sb.WriteString("\nAnswer with the domain key and a confidence between 0 and 1.")
	return sb.String()
}

// normalize maps a raw weighted hit count to [0,1): 0 hits -> 0, one
// keyword hit -> ~0.67, saturating towards 1.
func normalize(raw float64) float64 {
	if raw <= 0 {
		return 0
	}
	return raw / (raw + 0.5)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// tokenize lowercases and splits on non-alphanumerics, returning a set.
func tokenize(message string) map[string]bool {
	fields := strings.FieldsFunc(strings.ToLower(message), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	set := make(map[string]bool, len(fields))
	for _, f := range fields {
		set[f] = true
	}
	return set
}
