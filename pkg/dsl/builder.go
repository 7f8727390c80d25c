package dsl

import (
	"fmt"

	"github.com/aretw0/parley/internal/expr"
	"github.com/aretw0/parley/pkg/domain"
)

// Builder accumulates nodes for one workflow.
type Builder struct {
	workflow *domain.Workflow
	order    []string
}

// Option configures the workflow being built.
type Option func(*domain.Workflow)

// ForDomain binds the workflow to a business domain, making it the
// routing target when the classifier picks that domain.
func ForDomain(domainName string) Option {
	return func(w *domain.Workflow) {
		w.Domain = domainName
	}
}

// New starts a builder for the workflow with the given key.
func New(key string, opts ...Option) *Builder {
	w := &domain.Workflow{
		Key:   key,
		Nodes: make(map[string]*domain.Node),
	}
	for _, opt := range opts {
		opt(w)
	}
	return &Builder{workflow: w}
}

// Entry designates the node execution starts at.
func (b *Builder) Entry(key string) *Builder {
	b.workflow.Entry = key
	return b
}

// Define runs fn against the builder. It exists purely so a whole graph
// can be declared in one fluent chain.
func (b *Builder) Define(fn func(*Builder)) *Builder {
	fn(b)
	return b
}

// Node creates a node in the workflow, or returns the existing builder
// when the key was already added.
func (b *Builder) Node(key string) *NodeBuilder {
	if n, ok := b.workflow.Nodes[key]; ok {
		return &NodeBuilder{node: n, builder: b}
	}
	n := &domain.Node{Key: key}
	b.workflow.Nodes[key] = n
	b.order = append(b.order, key)
	return &NodeBuilder{node: n, builder: b}
}

// Build validates the graph and returns the workflow. The first node
// added becomes the entry when Entry was never called.
func (b *Builder) Build() (*domain.Workflow, error) {
	w := b.workflow
	if w.Entry == "" && len(b.order) > 0 {
		w.Entry = b.order[0]
	}
	if err := b.validate(); err != nil {
		return nil, fmt.Errorf("workflow %q: %w", w.Key, err)
	}
	return w, nil
}

func (b *Builder) validate() error {
	w := b.workflow
	if len(w.Nodes) == 0 {
		return fmt.Errorf("has no nodes")
	}
	if w.Node(w.Entry) == nil {
		return fmt.Errorf("entry node %q does not exist", w.Entry)
	}
	for _, key := range b.order {
		n := w.Nodes[key]
		if n.Responder != "" && n.SubWorkflow != "" {
			return fmt.Errorf("node %q: responder and sub-workflow are mutually exclusive", key)
		}
		if n.Responder == "" && n.SubWorkflow == "" && !n.End {
			return fmt.Errorf("node %q: needs a responder, a sub-workflow, or an end marker", key)
		}
		for _, tr := range n.Transitions {
			if w.Node(tr.Target) == nil {
				return fmt.Errorf("node %q: transition target %q does not exist", key, tr.Target)
			}
			if err := expr.Check(tr.Condition); err != nil {
				return fmt.Errorf("node %q: bad condition %q: %w", key, tr.Condition, err)
			}
		}
		if n.Default != "" && w.Node(n.Default) == nil {
			return fmt.Errorf("node %q: default target %q does not exist", key, n.Default)
		}
	}
	return nil
}
