package domain

// SupervisionOutcome is the control-flow verdict after scoring a response.
type SupervisionOutcome string

const (
	// OutcomeContinue sends the turn back to the executor with feedback.
	OutcomeContinue SupervisionOutcome = "continue"
	// OutcomeTerminate accepts the response and ends the turn.
	OutcomeTerminate SupervisionOutcome = "terminate"
	// OutcomeEscalate hands the conversation off to a human.
	OutcomeEscalate SupervisionOutcome = "escalate"
)

// SupervisionDecision is the supervisor's verdict for one executor pass.
type SupervisionDecision struct {
	Outcome SupervisionOutcome `json:"outcome"`

	// Feedback is advisory text fed back into the next executor pass
	// (as a conversation-scoped variable) when Outcome is continue.
	Feedback string `json:"feedback,omitempty"`

	// Score is the raw quality score that produced the verdict.
	Score float64 `json:"score"`
}
