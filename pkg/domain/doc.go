/*
Package domain contains the core domain models for the Parley engine.

It defines the fundamental entities of the orchestration loop, such as
Workflows, Nodes, Transitions, the per-turn ConversationState, and the
value objects exchanged with external responders. This package is kept
pure and free of external dependencies like I/O or persistence, following
Hexagonal Architecture principles.

# Key Entities

  - Workflow / Node / Transition: The routing graph a turn travels through.
  - ConversationState: The runtime snapshot of one conversation turn.
  - ClassificationResult: The outcome of domain classification.
  - PartialUpdate: The output a responder merges back into the state.
  - SupervisionDecision: The supervisor's continue/terminate/escalate verdict.
*/
package domain
