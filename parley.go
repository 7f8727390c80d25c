package parley

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/aretw0/parley/internal/runtime"
	"github.com/aretw0/parley/pkg/adapters/memory"
	"github.com/aretw0/parley/pkg/classify"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/patterns"
	"github.com/aretw0/parley/pkg/ports"
	"github.com/aretw0/parley/pkg/registry"
	"github.com/aretw0/parley/pkg/session"
	"github.com/aretw0/parley/pkg/stats"
	"github.com/aretw0/parley/pkg/supervise"
	"github.com/aretw0/parley/pkg/vars"
)

// DefaultFallbackMessage is sent when a turn produced no usable response.
const DefaultFallbackMessage = "Sorry, I ran into a problem handling that. Could you rephrase?"

// DefaultClarification is sent when no domain could be determined and no
// default workflow is configured.
const DefaultClarification = "I'm not sure what you need yet. Could you tell me a bit more?"

// feedbackVar is the conversation-scoped key supervision feedback is
// written to between executor passes.
const feedbackVar = "supervisor_feedback"

// maxReroutes bounds how often a single turn may be re-classified when
// responders raise the reroute flag.
const maxReroutes = 3

// TurnRequest is one inbound user message.
type TurnRequest struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id,omitempty"`
	Message        string `json:"message"`
}

// TurnResponse is the orchestrated outcome of one turn.
type TurnResponse struct {
	TurnID         string                      `json:"turn_id"`
	ConversationID string                      `json:"conversation_id"`
	Reply          string                      `json:"reply"`
	Domain         string                      `json:"domain"`
	Classification domain.ClassificationResult `json:"classification"`
	Outcome        domain.SupervisionOutcome   `json:"outcome"`
	Escalated      bool                        `json:"escalated,omitempty"`
	ErrorFlag      string                      `json:"error_flag,omitempty"`
}

// Orchestrator is the single entry point external callers see. It
// composes the classifier, the workflow engine, and the supervisor
// into one HandleTurn call, and serializes turns per conversation.
type Orchestrator struct {
	registry   *registry.Registry
	repo       *patterns.Repository
	classifier *classify.Classifier
	engine     *runtime.Engine
	supervisor *supervise.Supervisor
	sessions   *session.Manager
	store      *vars.Store
	tracker    *stats.Tracker
	logger     *slog.Logger

	kv         ports.KV
	stateStore ports.StateStore
	locker     ports.DistributedLocker
	model      ports.ModelClassifier
	scorer     ports.Scorer

	classifierCfg *classify.Config
	supervisorCfg *supervise.Config
	engineOpts    []runtime.EngineOption

	botID           string
	defaultWorkflow string
	fallbackMessage string
	clarification   string
	turnTimeout     time.Duration
}

// Option configures the Orchestrator.
type Option func(*Orchestrator)

// WithKV sets the variable store backend. Defaults to in-memory.
func WithKV(kv ports.KV) Option {
	return func(o *Orchestrator) { o.kv = kv }
}

// WithStateStore sets the conversation persistence backend. Defaults to
// in-memory.
func WithStateStore(store ports.StateStore) Option {
	return func(o *Orchestrator) { o.stateStore = store }
}

// WithLocker enables distributed per-conversation locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(o *Orchestrator) { o.locker = locker }
}

// WithModel enables hybrid classification through an LLM collaborator.
func WithModel(model ports.ModelClassifier) Option {
	return func(o *Orchestrator) { o.model = model }
}

// WithScorer enables supervision through an external quality scorer.
// Without one, every executor pass is accepted as-is.
func WithScorer(scorer ports.Scorer) Option {
	return func(o *Orchestrator) { o.scorer = scorer }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// WithTracker sets the statistics tracker shared across components.
func WithTracker(tracker *stats.Tracker) Option {
	return func(o *Orchestrator) { o.tracker = tracker }
}

// WithClassifierConfig overrides the classification thresholds.
func WithClassifierConfig(cfg classify.Config) Option {
	return func(o *Orchestrator) { o.classifierCfg = &cfg }
}

// WithSupervisorConfig overrides the supervision thresholds.
func WithSupervisorConfig(cfg supervise.Config) Option {
	return func(o *Orchestrator) { o.supervisorCfg = &cfg }
}

// WithEngineOptions forwards options to the workflow engine.
func WithEngineOptions(opts ...runtime.EngineOption) Option {
	return func(o *Orchestrator) { o.engineOpts = append(o.engineOpts, opts...) }
}

// WithBotID namespaces bot-scoped variables when several assistants
// share one backend.
func WithBotID(id string) Option {
	return func(o *Orchestrator) { o.botID = id }
}

// WithDefaultWorkflow names the workflow run when classification comes
// back unclassified or no workflow owns the classified domain.
func WithDefaultWorkflow(key string) Option {
	return func(o *Orchestrator) { o.defaultWorkflow = key }
}

// WithFallbackMessage overrides the reply used when a turn fails.
func WithFallbackMessage(msg string) Option {
	return func(o *Orchestrator) { o.fallbackMessage = msg }
}

// WithClarificationMessage overrides the reply for unclassified turns
// with no default workflow.
func WithClarificationMessage(msg string) Option {
	return func(o *Orchestrator) { o.clarification = msg }
}

// WithTurnTimeout caps the wall-clock time of one HandleTurn call.
func WithTurnTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.turnTimeout = d }
}

// New assembles an Orchestrator around a responder registry and a
// pattern repository. Workflows are added afterwards with AddWorkflow;
// call Validate once they are all registered.
func New(reg *registry.Registry, repo *patterns.Repository, opts ...Option) (*Orchestrator, error) {
	if reg == nil {
		return nil, fmt.Errorf("responder registry is required")
	}
	if repo == nil {
		return nil, fmt.Errorf("pattern repository is required")
	}

	o := &Orchestrator{
		registry:        reg,
		repo:            repo,
		fallbackMessage: DefaultFallbackMessage,
		clarification:   DefaultClarification,
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.logger == nil {
		o.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if o.kv == nil {
		o.kv = memory.NewKV()
	}
	if o.stateStore == nil {
		o.stateStore = memory.NewStore()
	}
	if o.tracker == nil {
		// A private registry so two orchestrators in one process never
		// collide on metric registration. Pass WithTracker to export
		// metrics on a shared registry.
		o.tracker = stats.NewTracker(prometheus.NewRegistry())
	}

	storeOpts := []vars.Option{}
	if o.botID != "" {
		storeOpts = append(storeOpts, vars.WithBotID(o.botID))
	}
	o.store = vars.NewStore(o.kv, storeOpts...)

	classifierOpts := []classify.Option{
		classify.WithTracker(o.tracker),
		classify.WithLogger(o.logger),
	}
	if o.model != nil {
		classifierOpts = append(classifierOpts, classify.WithModel(o.model))
	}
	if o.classifierCfg != nil {
		classifierOpts = append(classifierOpts, classify.WithConfig(*o.classifierCfg))
	}
	o.classifier = classify.New(repo, classifierOpts...)

	supervisorOpts := []supervise.Option{supervise.WithLogger(o.logger)}
	if o.supervisorCfg != nil {
		supervisorOpts = append(supervisorOpts, supervise.WithConfig(*o.supervisorCfg))
	}
	o.supervisor = supervise.New(o.scorer, supervisorOpts...)

	engineOpts := append([]runtime.EngineOption{runtime.WithLogger(o.logger)}, o.engineOpts...)
	o.engine = runtime.NewEngine(reg, o.store, engineOpts...)

	sessionOpts := []session.Option{session.WithLogger(o.logger)}
	if o.locker != nil {
		sessionOpts = append(sessionOpts, session.WithLocker(o.locker))
	}
	o.sessions = session.NewManager(o.stateStore, sessionOpts...)

	return o, nil
}

// AddWorkflow registers one workflow with the engine.
func (o *Orchestrator) AddWorkflow(w *domain.Workflow) error {
	return o.engine.AddWorkflow(w)
}

// AddWorkflows registers several workflows, stopping at the first error.
func (o *Orchestrator) AddWorkflows(workflows ...*domain.Workflow) error {
	for _, w := range workflows {
		if err := o.engine.AddWorkflow(w); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks cross-workflow references and the default workflow.
// Call it after the last AddWorkflow and before serving traffic.
func (o *Orchestrator) Validate() error {
	if err := o.engine.ValidateReferences(); err != nil {
		return err
	}
	if o.defaultWorkflow != "" && !o.engine.HasWorkflow(o.defaultWorkflow) {
		return fmt.Errorf("default workflow: %w: %q", domain.ErrWorkflowNotFound, o.defaultWorkflow)
	}
	return nil
}

// Sessions exposes the conversation manager for inspection tooling.
func (o *Orchestrator) Sessions() *session.Manager {
	return o.sessions
}

// Tracker exposes the shared statistics tracker.
func (o *Orchestrator) Tracker() *stats.Tracker {
	return o.tracker
}

// Classify runs domain classification only, without executing a turn.
func (o *Orchestrator) Classify(ctx context.Context, message string, state *domain.ConversationState) domain.ClassificationResult {
	return o.classifier.Classify(ctx, message, state)
}

// HandleTurn processes one inbound message end to end: classify the
// domain, run the owning workflow, supervise the result, and persist
// the state. The caller must not issue concurrent turns for the same
// conversation id; the session manager serializes them regardless.
//
// Errors are returned only for invalid requests or persistence
// failures. Everything that goes wrong mid-turn (responder failures,
// step budget, timeout) still yields a response, falling back to a
// canned message when no usable reply was produced.
func (o *Orchestrator) HandleTurn(ctx context.Context, req TurnRequest) (*TurnResponse, error) {
	if req.ConversationID == "" {
		return nil, fmt.Errorf("conversation_id is required")
	}
	if req.Message == "" {
		return nil, fmt.Errorf("message is required")
	}

	if o.turnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.turnTimeout)
		defer cancel()
	}

	resp := &TurnResponse{
		TurnID:         uuid.NewString(),
		ConversationID: req.ConversationID,
	}

	routingSteps := 0
	err := o.sessions.WithLock(ctx, req.ConversationID, func(ctx context.Context) error {
		state, err := o.loadOrStart(ctx, req.ConversationID)
		if err != nil {
			return err
		}
		state.Append(domain.RoleUser, req.Message)
		visited := len(state.RoutingHistory)

		o.runTurn(ctx, state, req, resp)
		routingSteps = len(state.RoutingHistory) - visited

		if err := o.sessions.Store().Save(ctx, req.ConversationID, state); err != nil {
			return fmt.Errorf("failed to persist conversation: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	o.tracker.RecordTurn(turnOutcome(resp), routingSteps)
	return resp, nil
}

// runTurn drives classification, execution, and supervision for one
// turn, mutating state and resp in place. It never fails; degraded
// outcomes are expressed through resp.
func (o *Orchestrator) runTurn(ctx context.Context, state *domain.ConversationState, req TurnRequest, resp *TurnResponse) {
	result := o.classifier.Classify(ctx, req.Message, state)
	resp.Classification = result
	resp.Domain = result.Domain

	workflowKey, ok := o.workflowFor(result)
	if !ok {
		resp.Reply = o.clarification
		resp.Outcome = domain.OutcomeTerminate
		state.Append(domain.RoleAssistant, resp.Reply)
		return
	}
	if !result.Unclassified() {
		state.ActiveDomain = result.Domain
	}

	run := o.store.NewRun(req.ConversationID, req.UserID)
	reroutes := 0
	baseline := len(state.Messages)

loop:
	for attempt := 0; ; attempt++ {
		state.Flags = domain.ControlFlags{}

		next, err := o.engine.Run(ctx, state, workflowKey, req.UserID)
		*state = *next
		if err != nil {
			// Step budget or recursion depth: fatal for the turn, the
			// partial state is still the response we have.
			o.logger.Error("turn aborted", "conversation_id", req.ConversationID, "err", err)
			break
		}

		if state.Flags.Reroute && reroutes < maxReroutes {
			reroutes++
			result = o.classifier.Classify(ctx, req.Message, state)
			resp.Classification = result
			resp.Domain = result.Domain
			if next, ok := o.workflowFor(result); ok {
				workflowKey = next
				if !result.Unclassified() {
					state.ActiveDomain = result.Domain
				}
				continue
			}
			break
		}
		if state.Flags.Error != "" || state.Flags.Terminate {
			break
		}

		decision, err := o.supervisor.Evaluate(ctx, state, attempt)
		if err != nil {
			break
		}
		resp.Outcome = decision.Outcome
		switch decision.Outcome {
		case domain.OutcomeContinue:
			if err := run.Set(ctx, domain.ScopeConversation, feedbackVar, decision.Feedback, 0); err != nil {
				o.logger.Warn("failed to store supervision feedback", "err", err)
				break loop
			}
		case domain.OutcomeEscalate:
			resp.Escalated = true
			break loop
		default:
			break loop
		}
	}

	// Consumed by intermediate passes; do not leak into the next turn.
	if err := run.Delete(ctx, domain.ScopeConversation, feedbackVar); err != nil {
		o.logger.Warn("failed to clear supervision feedback", "err", err)
	}

	resp.ErrorFlag = state.Flags.Error
	if resp.Outcome == "" {
		resp.Outcome = domain.OutcomeTerminate
	}
	// Only messages produced by this turn count as the reply; an
	// earlier turn's response must not be replayed.
	for i := len(state.Messages) - 1; i >= baseline; i-- {
		if state.Messages[i].Role == domain.RoleAssistant {
			resp.Reply = state.Messages[i].Content
			break
		}
	}
	if resp.Reply == "" {
		resp.Reply = o.fallbackMessage
		state.Append(domain.RoleAssistant, resp.Reply)
	}
}

// loadOrStart fetches the conversation without taking the session lock
// again; HandleTurn already holds it.
func (o *Orchestrator) loadOrStart(ctx context.Context, conversationID string) (*domain.ConversationState, error) {
	state, err := o.sessions.Store().Load(ctx, conversationID)
	if err == nil {
		return state, nil
	}
	if !errors.Is(err, domain.ErrConversationNotFound) {
		return nil, err
	}
	return domain.NewConversationState(conversationID), nil
}

// workflowFor maps a classification outcome to a workflow key.
func (o *Orchestrator) workflowFor(result domain.ClassificationResult) (string, bool) {
	if !result.Unclassified() {
		if key, ok := o.engine.WorkflowForDomain(result.Domain); ok {
			return key, true
		}
	}
	if o.defaultWorkflow != "" && o.engine.HasWorkflow(o.defaultWorkflow) {
		return o.defaultWorkflow, true
	}
	return "", false
}

func turnOutcome(resp *TurnResponse) string {
	if resp.ErrorFlag != "" {
		return "error"
	}
	return string(resp.Outcome)
}
