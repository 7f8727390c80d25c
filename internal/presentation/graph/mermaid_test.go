package graph_test

import (
	"strings"
	"testing"

	"github.com/aretw0/parley/internal/presentation/graph"
	"github.com/aretw0/parley/pkg/domain"
)

func TestGenerateMermaid(t *testing.T) {
	w := &domain.Workflow{
		Key:   "support",
		Entry: "triage",
		Nodes: map[string]*domain.Node{
			"triage": {
				Responder: "triage-agent",
				Transitions: []domain.Transition{
					{Target: "billing", Condition: "intent == 'billing'"},
				},
				Default: "general",
			},
			"billing": {SubWorkflow: "billing-flow", End: true},
			"general": {Responder: "general", End: true},
		},
	}

	out := graph.GenerateMermaid(w)

	for _, want := range []string{
		"graph TD",
		`triage(("triage <br/> triage-agent"))`,
		`billing[["billing: billing-flow"]]`,
		`general(["general"])`,
		`triage -- "intent == 'billing'" --> billing`,
		"triage -.-> general",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

func TestGenerateMermaid_SanitizesIDs(t *testing.T) {
	w := &domain.Workflow{
		Key:   "x",
		Entry: "check-intent",
		Nodes: map[string]*domain.Node{
			"check-intent": {Responder: "r", End: true},
		},
	}

	out := graph.GenerateMermaid(w)
	if !strings.Contains(out, "check_intent") {
		t.Errorf("expected sanitized id in:\n%s", out)
	}
}
