package domain

// Transition defines a rule to move from one node to another.
// Transitions are evaluated in descending Priority order; the first whose
// Condition evaluates true (or is empty) is taken.
type Transition struct {
	// Target is the key of the destination node.
	Target string `json:"target" yaml:"target"`

	// Condition is a restricted expression string that must evaluate to
	// true for this transition to fire. e.g. "intent == 'billing'".
	// If empty, it's considered an "always" transition.
	Condition string `json:"condition,omitempty" yaml:"condition,omitempty"`

	// Priority orders evaluation; higher runs first.
	Priority int `json:"priority,omitempty" yaml:"priority,omitempty"`
}

// Node represents one state in the routing graph. It binds a responder
// (or a nested sub-workflow) to a set of outgoing transitions.
type Node struct {
	Key string `json:"key" yaml:"key"`

	// Responder is the registry key of the agent bound to this node.
	// Empty if SubWorkflow is set.
	Responder string `json:"responder,omitempty" yaml:"responder,omitempty"`

	// SubWorkflow references another workflow by key. Entering this node
	// pushes a nested run with an isolated workflow variable scope.
	SubWorkflow string `json:"sub_workflow,omitempty" yaml:"sub_workflow,omitempty"`

	// Params holds responder-specific configuration decoded by the
	// compiler (opaque to the engine).
	Params map[string]any `json:"params,omitempty" yaml:"params,omitempty"`

	Transitions []Transition `json:"transitions,omitempty" yaml:"transitions,omitempty"`

	// Default is taken when no transition matches. If empty too, the
	// turn terminates at this node.
	Default string `json:"default,omitempty" yaml:"default,omitempty"`

	// End marks an explicit terminal node regardless of transitions.
	End bool `json:"end,omitempty" yaml:"end,omitempty"`
}

// Terminal reports whether the node ends the turn: either marked as an
// explicit end state or a sink with no outgoing paths.
func (n *Node) Terminal() bool {
	return n.End || (len(n.Transitions) == 0 && n.Default == "")
}

// Workflow is a named routing graph with a designated entry node.
type Workflow struct {
	Key string `json:"key" yaml:"key"`

	// Domain is the business vertical this workflow serves. A domain's
	// workflow is selected by the classifier outcome.
	Domain string `json:"domain,omitempty" yaml:"domain,omitempty"`

	Entry string `json:"entry" yaml:"entry"`

	Nodes map[string]*Node `json:"nodes" yaml:"nodes"`
}

// Node returns a node by key, or nil when absent.
func (w *Workflow) Node(key string) *Node {
	if w == nil {
		return nil
	}
	return w.Nodes[key]
}
