package runtime

import (
	"log/slog"
	"sort"

	"github.com/aretw0/parley/internal/expr"
	"github.com/aretw0/parley/pkg/domain"
)

// resolveTransition evaluates a node's outgoing transitions in
// descending priority order and returns the target of the first whose
// condition holds (an empty condition always holds). A malformed
// condition fails only its own transition check; evaluation falls
// through to the next one. When nothing matches, the node's default
// target is taken; an empty result terminates the turn.
func resolveTransition(node *domain.Node, variables map[string]any, logger *slog.Logger) string {
	ordered := make([]domain.Transition, len(node.Transitions))
	copy(ordered, node.Transitions)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority > ordered[j].Priority
	})

	for _, t := range ordered {
		ok, err := expr.Evaluate(t.Condition, variables)
		if err != nil {
			logger.Warn("transition condition failed to evaluate",
				"node", node.Key,
				"target", t.Target,
				"err", err,
			)
			continue
		}
		if ok {
			return t.Target
		}
	}

	return node.Default
}
