// Package runtime implements the workflow executor: a state-graph engine
// that runs one conversation turn through a sequence of responder nodes,
// evaluating transition conditions with the restricted expression
// language and supporting nested sub-workflows.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/parley/internal/logging"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/registry"
	"github.com/aretw0/parley/pkg/vars"
)

const (
	// DefaultStepBudget bounds the node loop of one turn.
	DefaultStepBudget = 50
	// DefaultMaxDepth bounds sub-workflow nesting.
	DefaultMaxDepth = 5
)

// Engine is the core state machine runner. It is stateless across turns;
// all per-turn state lives in the ConversationState and the vars.Run.
type Engine struct {
	workflows  map[string]*domain.Workflow
	byDomain   map[string]string
	responders *registry.Registry
	store      *vars.Store
	logger     *slog.Logger

	stepBudget int
	maxDepth   int
}

// EngineOption configures the Engine.
type EngineOption func(*Engine)

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithStepBudget overrides the per-turn step limit.
func WithStepBudget(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.stepBudget = n
		}
	}
}

// WithMaxDepth overrides the sub-workflow nesting limit.
func WithMaxDepth(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.maxDepth = n
		}
	}
}

// NewEngine creates an executor over a responder registry and a variable
// store. Workflows are added with AddWorkflow before the first Run.
func NewEngine(responders *registry.Registry, store *vars.Store, opts ...EngineOption) *Engine {
	e := &Engine{
		workflows:  make(map[string]*domain.Workflow),
		byDomain:   make(map[string]string),
		responders: responders,
		store:      store,
		logger:     logging.NewNop(),
		stepBudget: DefaultStepBudget,
		maxDepth:   DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// AddWorkflow registers a workflow. Referential integrity (transition
// targets, responder keys, sub-workflow keys) is checked here so broken
// configuration surfaces at setup time, not mid-turn.
func (e *Engine) AddWorkflow(w *domain.Workflow) error {
	if w == nil || w.Key == "" {
		return fmt.Errorf("workflow key is required")
	}
	if w.Node(w.Entry) == nil {
		return fmt.Errorf("workflow %q: entry node %q does not exist", w.Key, w.Entry)
	}

	for key, node := range w.Nodes {
		if node.Key == "" {
			node.Key = key
		}
		if node.Responder == "" && node.SubWorkflow == "" && !node.Terminal() {
			return fmt.Errorf("workflow %q: node %q has neither responder nor sub-workflow", w.Key, key)
		}
		if node.Responder != "" && !e.responders.Has(node.Responder) {
			return fmt.Errorf("workflow %q node %q: %w: %q", w.Key, key, domain.ErrResponderNotFound, node.Responder)
		}
		for _, t := range node.Transitions {
			if w.Node(t.Target) == nil {
				return fmt.Errorf("workflow %q node %q: transition target %q does not exist", w.Key, key, t.Target)
			}
		}
		if node.Default != "" && w.Node(node.Default) == nil {
			return fmt.Errorf("workflow %q node %q: default target %q does not exist", w.Key, key, node.Default)
		}
	}

	e.workflows[w.Key] = w
	if w.Domain != "" {
		e.byDomain[w.Domain] = w.Key
	}
	return nil
}

// ValidateReferences verifies every sub-workflow reference resolves to a
// registered workflow. Called once after all AddWorkflow calls.
func (e *Engine) ValidateReferences() error {
	for key, w := range e.workflows {
		for nodeKey, node := range w.Nodes {
			if node.SubWorkflow == "" {
				continue
			}
			if _, ok := e.workflows[node.SubWorkflow]; !ok {
				return fmt.Errorf("workflow %q node %q: %w: %q", key, nodeKey, domain.ErrWorkflowNotFound, node.SubWorkflow)
			}
		}
	}
	return nil
}

// WorkflowForDomain returns the workflow key owning a business domain.
func (e *Engine) WorkflowForDomain(d string) (string, bool) {
	key, ok := e.byDomain[d]
	return key, ok
}

// HasWorkflow reports whether a workflow key is registered.
func (e *Engine) HasWorkflow(key string) bool {
	_, ok := e.workflows[key]
	return ok
}

// Run executes one turn through the named workflow. The returned state
// is always usable, even alongside a non-nil error: fatal conditions
// (step budget, recursion depth) surface with whatever partial response
// was produced. Node-level responder failures never propagate; they end
// the turn with an error flag on the state.
func (e *Engine) Run(ctx context.Context, state *domain.ConversationState, workflowKey, userID string) (*domain.ConversationState, error) {
	if _, ok := e.workflows[workflowKey]; !ok {
		return state, fmt.Errorf("%w: %q", domain.ErrWorkflowNotFound, workflowKey)
	}

	run := e.store.NewRun(state.ConversationID, userID)
	steps := 0
	return e.execute(ctx, state, workflowKey, run, 0, &steps)
}

// Steps returns the step budget currently in force.
func (e *Engine) Steps() int {
	return e.stepBudget
}

func (e *Engine) execute(ctx context.Context, state *domain.ConversationState, workflowKey string, run *vars.Run, depth int, steps *int) (*domain.ConversationState, error) {
	if depth >= e.maxDepth {
		state.Flags.Error = domain.ErrorFlagRecursion
		return state, &RecursionError{Workflow: workflowKey, Depth: e.maxDepth}
	}

	wf := e.workflows[workflowKey]
	if wf == nil {
		return state, fmt.Errorf("%w: %q", domain.ErrWorkflowNotFound, workflowKey)
	}

	nodeKey := wf.Entry
	for {
		if err := ctx.Err(); err != nil {
			// Deadline elapsed between nodes: abort remaining
			// transitions, keep what was already produced.
			state.Flags.Error = domain.ErrorFlagTimeout
			return state, nil
		}

		*steps++
		if *steps > e.stepBudget {
			state.Flags.Error = domain.ErrorFlagStepBudget
			return state, &StepBudgetError{Limit: e.stepBudget}
		}

		node := wf.Node(nodeKey)
		if node == nil {
			// Unreachable after AddWorkflow validation; fail safe anyway.
			state.Flags.Error = domain.ErrorFlagResponder
			return state, fmt.Errorf("workflow %q: node %q vanished", workflowKey, nodeKey)
		}

		var err error
		switch {
		case node.SubWorkflow != "":
			// Nested run: isolated workflow scope, shared durable scopes.
			state, err = e.execute(ctx, state, node.SubWorkflow, run.Fork(), depth+1, steps)
			if err != nil {
				return state, err
			}
		case node.Responder != "":
			state, err = e.invokeNode(ctx, state, wf, node, run)
			if err != nil {
				return state, err
			}
		}

		if state.Flags.Error != "" || state.Flags.Terminate || state.Flags.Reroute {
			return state, nil
		}
		if node.Terminal() {
			return state, nil
		}

		next, err := e.nextNode(ctx, node, state, run)
		if err != nil {
			state.Flags.Error = domain.ErrorFlagResponder
			return state, nil
		}
		if next == "" {
			return state, nil
		}
		nodeKey = next
	}
}

// invokeNode runs one responder and merges its output. Effects are
// atomic per node: the update is applied to a clone and committed only
// after every part of it succeeded.
func (e *Engine) invokeNode(ctx context.Context, state *domain.ConversationState, wf *domain.Workflow, node *domain.Node, run *vars.Run) (*domain.ConversationState, error) {
	responder, ok := e.responders.Get(node.Responder)
	if !ok {
		// Validated at setup; a miss here means the registry mutated.
		state.Flags.Error = domain.ErrorFlagResponder
		return state, nil
	}

	flat, err := e.conditionVars(ctx, state, run)
	if err != nil {
		state.Flags.Error = domain.ErrorFlagResponder
		return state, nil
	}

	update, err := responder.Execute(ctx, state, flat)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || ctx.Err() != nil {
			e.logger.Warn("responder timed out", "node", node.Key, "responder", node.Responder)
			state.Flags.Error = domain.ErrorFlagTimeout
			return state, nil
		}
		// Node-level failure: caught at the loop boundary, converted
		// into a terminal state instead of propagating.
		e.logger.Error("responder failed", "node", node.Key, "responder", node.Responder, "err", err)
		state.Flags.Error = domain.ErrorFlagResponder
		return state, nil
	}
	if update == nil {
		update = &domain.PartialUpdate{}
	}

	// Validate scope names before writing anything.
	for scope := range update.Variables {
		if !domain.Scope(scope).Valid() {
			e.logger.Error("responder wrote unknown scope", "node", node.Key, "scope", scope)
			state.Flags.Error = domain.ErrorFlagResponder
			return state, nil
		}
	}

	// Durable writes flush before the in-memory commit below, which
	// cannot fail. A mid-flush error rolls the written keys back, so
	// the node's output lands completely or not at all: no variables
	// persisted across turns while the messages were discarded.
	var written []stagedVar
	for scope, kv := range update.Variables {
		for key, value := range kv {
			if err := run.Set(ctx, domain.Scope(scope), key, value, 0); err != nil {
				e.rollbackVars(run, written)
				if ctx.Err() != nil {
					e.logger.Warn("variable write hit the turn deadline", "node", node.Key, "key", key)
					state.Flags.Error = domain.ErrorFlagTimeout
				} else {
					e.logger.Error("variable write failed", "node", node.Key, "key", key, "err", err)
					state.Flags.Error = domain.ErrorFlagResponder
				}
				return state, nil
			}
			written = append(written, stagedVar{scope: domain.Scope(scope), key: key})
		}
	}

	next := state.Clone()
	next.Messages = append(next.Messages, update.Messages...)
	for k, v := range update.Retrieved {
		next.Retrieved[k] = v
	}
	next.Flags.Terminate = next.Flags.Terminate || update.Flags.Terminate
	next.Flags.Reroute = next.Flags.Reroute || update.Flags.Reroute
	if next.Flags.Error == "" {
		next.Flags.Error = update.Flags.Error
	}
	next.RoutingHistory = append(next.RoutingHistory, domain.RoutingRecord{
		Domain:    next.ActiveDomain,
		Agent:     node.Responder,
		Timestamp: time.Now().UTC(),
	})

	e.logger.Debug("node executed",
		"workflow", wf.Key,
		"node", node.Key,
		"responder", node.Responder,
		"messages", len(update.Messages),
	)
	return next, nil
}

// stagedVar identifies one durable write made while flushing a node's
// variable output.
type stagedVar struct {
	scope domain.Scope
	key   string
}

// rollbackVars undoes staged writes after a mid-flush failure. It runs
// on a fresh context so an expired turn deadline cannot strand half the
// keys. Rollback removes the keys; a value the node overwrote is not
// restored.
func (e *Engine) rollbackVars(run *vars.Run, written []stagedVar) {
	ctx := context.Background()
	for _, w := range written {
		if err := run.Delete(ctx, w.scope, w.key); err != nil {
			e.logger.Warn("variable rollback failed", "scope", string(w.scope), "key", w.key, "err", err)
		}
	}
}

// conditionVars builds the flat namespace transitions are evaluated
// against: the scope cascade overlaid with retrieved data.
func (e *Engine) conditionVars(ctx context.Context, state *domain.ConversationState, run *vars.Run) (map[string]any, error) {
	flat, err := run.Flatten(ctx)
	if err != nil {
		return nil, err
	}
	for k, v := range state.Retrieved {
		flat[k] = v
	}
	return flat, nil
}

// nextNode resolves the outgoing transition per the priority rule.
func (e *Engine) nextNode(ctx context.Context, node *domain.Node, state *domain.ConversationState, run *vars.Run) (string, error) {
	flat, err := e.conditionVars(ctx, state, run)
	if err != nil {
		return "", err
	}
	return resolveTransition(node, flat, e.logger), nil
}
