package runtime

import "fmt"

// StepBudgetError is fatal to the current turn: the routing graph kept
// cycling past the configured step limit. The partial state produced so
// far is still returned alongside it.
type StepBudgetError struct {
	Limit int
}

func (e *StepBudgetError) Error() string {
	return fmt.Sprintf("step budget of %d exceeded for this turn", e.Limit)
}

// RecursionError is fatal to the current turn: sub-workflow nesting went
// past the configured depth limit.
type RecursionError struct {
	Workflow string
	Depth    int
}

func (e *RecursionError) Error() string {
	return fmt.Sprintf("workflow %q exceeded max nesting depth %d", e.Workflow, e.Depth)
}
