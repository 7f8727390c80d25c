package parley_test

import (
	"context"
	"fmt"
	"log"

	"github.com/aretw0/parley"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/dsl"
	"github.com/aretw0/parley/pkg/patterns"
	"github.com/aretw0/parley/pkg/registry"
)

// ExampleNew demonstrates the smallest useful orchestrator: one domain,
// one workflow, one responder, everything in memory.
func ExampleNew() {
	reg := registry.New()
	reg.RegisterFunc("order-agent", func(ctx context.Context, state *domain.ConversationState, vars map[string]any) (*domain.PartialUpdate, error) {
		return &domain.PartialUpdate{
			Messages: []domain.Message{{Role: domain.RoleAssistant, Content: "Your order ships Friday."}},
		}, nil
	})

	repo := patterns.NewRepository()
	if err := repo.Add(patterns.DomainPattern{Domain: "commerce", Keywords: []string{"order", "shipping"}}); err != nil {
		log.Fatal(err)
	}

	wf, err := dsl.New("commerce-flow", dsl.ForDomain("commerce")).
		Define(func(b *dsl.Builder) {
			b.Node("answer").Responder("order-agent").End()
		}).Build()
	if err != nil {
		log.Fatal(err)
	}

	o, err := parley.New(reg, repo)
	if err != nil {
		log.Fatal(err)
	}
	if err := o.AddWorkflow(wf); err != nil {
		log.Fatal(err)
	}
	if err := o.Validate(); err != nil {
		log.Fatal(err)
	}

	resp, err := o.HandleTurn(context.Background(), parley.TurnRequest{
		ConversationID: "conv-1",
		Message:        "where is my order?",
	})
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(resp.Domain)
	fmt.Println(resp.Reply)
	// Output:
	// commerce
	// Your order ships Friday.
}
