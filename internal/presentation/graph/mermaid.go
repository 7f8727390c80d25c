package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/parley/pkg/domain"
)

// GenerateMermaid produces a Mermaid flowchart syntax string from a
// workflow. It applies semantic styling:
// - Entry: ((Circle))
// - Sub-workflow: [[Subroutine]]
// - Terminal: ([Stadium])
// - Default: [Rectangle]
// Conditional transitions carry their condition as the edge label;
// default transitions are drawn dotted.
func GenerateMermaid(w *domain.Workflow) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	keys := make([]string, 0, len(w.Nodes))
	for key := range w.Nodes {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		node := w.Nodes[key]
		safeID := sanitizeMermaidID(key)

		opener, closer := "[", "]"
		switch {
		case key == w.Entry:
			opener, closer = "((", "))" // Circle
		case node.SubWorkflow != "":
			opener, closer = "[[", "]]" // Subroutine
		case node.Terminal():
			opener, closer = "([", "])" // Stadium
		}

		label := key
		if node.SubWorkflow != "" {
			label = fmt.Sprintf("%s: %s", key, node.SubWorkflow)
		} else if node.Responder != "" && node.Responder != key {
			label = fmt.Sprintf("%s <br/> %s", key, node.Responder)
		}
		sb.WriteString(fmt.Sprintf("    %s%s\"%s\"%s\n", safeID, opener, label, closer))

		for _, t := range node.Transitions {
			safeTo := sanitizeMermaidID(t.Target)
			arrow := "-->"
			if t.Condition != "" {
				// Escape double quotes in condition for Mermaid label
				safeCondition := strings.ReplaceAll(t.Condition, "\"", "'")
				arrow = fmt.Sprintf("-- \"%s\" -->", safeCondition)
			}
			sb.WriteString(fmt.Sprintf("    %s %s %s\n", safeID, arrow, safeTo))
		}
		if node.Default != "" {
			sb.WriteString(fmt.Sprintf("    %s -.-> %s\n", safeID, sanitizeMermaidID(node.Default)))
		}
	}

	return sb.String()
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	return s
}
