/*
Package parley is a conversation orchestration engine for multi-domain
assistants. It routes each inbound message to the right business domain,
drives a workflow state graph of agent responders, and supervises the
produced response before returning it.

# Concept

A turn flows through three stages. The Classifier scores the message
against per-domain keyword patterns (optionally blended with an LLM
verdict) and picks the owning domain. The workflow Engine walks that
domain's routing graph: each node invokes a responder, and outgoing
transitions are chosen by evaluating restricted condition expressions
against the scoped variable store. The Supervisor scores the final
response and either accepts it, sends the turn back for another pass
with feedback, or escalates to a human.

Responders are opaque to the engine (Hexagonal Architecture): anything
implementing ports.Responder can sit on a node, whether it calls an
LLM, a database, or a plain function. State persistence and the
variable store are pluggable the same way, with in-memory and Redis
adapters provided.

# Usage

	package main

	import (
		"context"
		"log"

		"github.com/aretw0/parley"
		"github.com/aretw0/parley/pkg/domain"
		"github.com/aretw0/parley/pkg/patterns"
		"github.com/aretw0/parley/pkg/registry"
	)

	func main() {
		reg := registry.New()
		reg.RegisterFunc("greeter", func(ctx context.Context, state *domain.ConversationState, vars map[string]any) (*domain.PartialUpdate, error) {
			return &domain.PartialUpdate{
				Messages: []domain.Message{{Role: domain.RoleAssistant, Content: "Hello! How can I help?"}},
			}, nil
		})

		repo := patterns.NewRepository()
		_ = repo.Add(patterns.DomainPattern{Domain: "smalltalk", Keywords: []string{"hello", "hi"}})

		o, err := parley.New(reg, repo, parley.WithDefaultWorkflow("smalltalk"))
		if err != nil {
			log.Fatal(err)
		}
		_ = o.AddWorkflow(&domain.Workflow{
			Key:    "smalltalk",
			Domain: "smalltalk",
			Entry:  "greet",
			Nodes:  map[string]*domain.Node{"greet": {Responder: "greeter", End: true}},
		})
		if err := o.Validate(); err != nil {
			log.Fatal(err)
		}

		resp, err := o.HandleTurn(context.Background(), parley.TurnRequest{
			ConversationID: "conv-1",
			Message:        "hello there",
		})
		if err != nil {
			log.Fatal(err)
		}
		log.Println(resp.Reply)
	}
*/
package parley
