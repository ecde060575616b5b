package harness

import (
	"github.com/roach88/contactgraph/internal/contact"
)

// StepResult records what one step actually produced.
type StepResult struct {
	// Observe is the observation after whitespace cleaning.
	Observe contact.Observation `json:"observe"`

	// Contact is the returned summary when Identify succeeded.
	Contact *contact.Summary `json:"contact,omitempty"`

	// Error is the error code when Identify failed.
	Error string `json:"error,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every step expectation and assertion matched.
	Pass bool `json:"pass"`

	// Steps holds one entry per scenario step, in order.
	Steps []StepResult `json:"steps"`

	// Contacts is the final live contact table in (created_at, id) order.
	Contacts []contact.Contact `json:"contacts"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:     true,
		Steps:    []StepResult{},
		Contacts: []contact.Contact{},
		Errors:   []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddStep appends a step outcome.
func (r *Result) AddStep(step StepResult) {
	r.Steps = append(r.Steps, step)
}
