package domain

// Classification methods.
const (
	MethodKeyword = "keyword"
	MethodModel   = "model"
	MethodHybrid  = "hybrid"
)

// DomainUnclassified is the sentinel domain returned when no candidate
// clears the floor confidence. It is a routing outcome, not an error:
// the orchestrator maps it to a default/clarification workflow.
const DomainUnclassified = "unclassified"

// ClassificationResult is the immutable outcome of one classification
// attempt.
type ClassificationResult struct {
	Domain     string  `json:"domain"`
	Confidence float64 `json:"confidence"`
	Method     string  `json:"method"`
	Reasoning  string  `json:"reasoning,omitempty"`
}

// Unclassified reports whether the result is the sentinel outcome.
func (r ClassificationResult) Unclassified() bool {
	return r.Domain == DomainUnclassified || r.Domain == ""
}
