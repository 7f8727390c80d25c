package dsl

import "github.com/aretw0/parley/pkg/domain"

// NodeBuilder provides a fluent API for configuring a node.
type NodeBuilder struct {
	node    *domain.Node
	builder *Builder
}

// Responder binds the node to a registered agent.
func (n *NodeBuilder) Responder(key string) *NodeBuilder {
	n.node.Responder = key
	return n
}

// SubWorkflow makes entering this node push a nested run of the named
// workflow, with its own isolated workflow scope.
func (n *NodeBuilder) SubWorkflow(key string) *NodeBuilder {
	n.node.SubWorkflow = key
	return n
}

// Param sets one responder configuration value.
func (n *NodeBuilder) Param(key string, value any) *NodeBuilder {
	if n.node.Params == nil {
		n.node.Params = make(map[string]any)
	}
	n.node.Params[key] = value
	return n
}

// Go adds an unconditional transition to the target node.
func (n *NodeBuilder) Go(target string) *NodeBuilder {
	n.node.Transitions = append(n.node.Transitions, domain.Transition{
		Target: target,
	})
	return n
}

// Branch adds a conditional transition. Branches added first win ties;
// use Weighted for an explicit priority.
func (n *NodeBuilder) Branch(condition string, target string) *NodeBuilder {
	n.node.Transitions = append(n.node.Transitions, domain.Transition{
		Condition: condition,
		Target:    target,
	})
	return n
}

// Weighted adds a conditional transition with an explicit priority.
// Higher priorities are evaluated first.
func (n *NodeBuilder) Weighted(priority int, condition string, target string) *NodeBuilder {
	n.node.Transitions = append(n.node.Transitions, domain.Transition{
		Condition: condition,
		Target:    target,
		Priority:  priority,
	})
	return n
}

// Default sets the node taken when no branch condition matches.
func (n *NodeBuilder) Default(target string) *NodeBuilder {
	n.node.Default = target
	return n
}

// End marks the node as terminal. The turn stops here even if
// transitions were added.
func (n *NodeBuilder) End() *NodeBuilder {
	n.node.End = true
	return n
}

// Node hops back to the workflow builder to declare another node. It
// lets a whole graph be written as one chain.
func (n *NodeBuilder) Node(key string) *NodeBuilder {
	return n.builder.Node(key)
}

// Build returns the underlying node. This is primarily used by the
// Builder, but exposed for advanced usage.
func (n *NodeBuilder) Build() *domain.Node {
	return n.node
}
