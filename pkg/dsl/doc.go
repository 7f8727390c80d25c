/*
Package dsl provides a fluent builder for constructing workflows in Go
instead of YAML.

It is useful for dynamically generated flows, unit tests, and anywhere
IDE type-checking beats an external file. The resulting workflow is
validated at Build time, so a dangling branch target or a node with both
a responder and a sub-workflow fails fast.

Example usage:

	wf, err := dsl.New("support", dsl.ForDomain("commerce")).
		Entry("triage").
		Define(func(b *dsl.Builder) {
			b.Node("triage").Responder("intent-agent").
				Branch("intent == 'billing'", "billing").
				Default("smalltalk")

			b.Node("billing").SubWorkflow("billing-flow").Go("wrap_up")
			b.Node("smalltalk").Responder("chitchat-agent").Go("wrap_up")
			b.Node("wrap_up").Responder("closer-agent").End()
		}).
		Build()
*/
package dsl
