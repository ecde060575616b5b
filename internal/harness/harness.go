package harness

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/roach88/contactgraph/internal/contact"
	"github.com/roach88/contactgraph/internal/reconcile"
	"github.com/roach88/contactgraph/internal/store"
	"github.com/roach88/contactgraph/internal/testutil"
)

// Harness is the test execution engine.
// It owns one in-memory store and the engine running over it.
type Harness struct {
	store  *store.Store
	engine *reconcile.Engine
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Create fresh in-memory database with a deterministic clock
// 2. Reconcile each step's observation and check its expectation
// 3. Read the final contact table
// 4. Evaluate assertions
//
// A returned error means the scenario could not be executed; expectation
// mismatches are reported in Result.Errors.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	clock := testutil.NewDeterministicClock()
	st, err := store.Open(":memory:", store.WithClock(clock.Now))
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		store:  st,
		engine: reconcile.New(st),
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		if err := h.executeStep(ctx, i, step, result); err != nil {
			return nil, fmt.Errorf("failed to execute step %d: %w", i, err)
		}
	}

	contacts, err := st.ReadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read final state: %w", err)
	}
	result.Contacts = contacts

	for _, msg := range h.evaluateAssertions(ctx, scenario.Assertions, result) {
		result.AddError(msg)
	}

	return result, nil
}

// executeStep reconciles one observation and records the outcome.
//
// Only errors outside the reconcile taxonomy abort the run; coded errors
// are outcomes like any other.
func (h *Harness) executeStep(ctx context.Context, index int, step Step, result *Result) error {
	outcome := StepResult{Observe: step.Observe.Clean()}

	summary, err := h.engine.Identify(ctx, step.Observe)
	if err != nil {
		var rerr *reconcile.Error
		if !errors.As(err, &rerr) {
			return err
		}
		outcome.Error = string(rerr.Code)
	} else {
		outcome.Contact = &summary
	}
	result.AddStep(outcome)

	if msg := checkStep(index, step, outcome); msg != "" {
		result.AddError(msg)
	}
	return nil
}

// checkStep compares a step outcome with the step's expectation.
// Returns an empty string on match.
func checkStep(index int, step Step, outcome StepResult) string {
	switch {
	case step.Error != "":
		if outcome.Error != string(step.Error) {
			return fmt.Sprintf("steps[%d]: expected error %s, got %s", index, step.Error, describe(outcome))
		}
	case outcome.Error != "":
		return fmt.Sprintf("steps[%d]: unexpected error %s", index, outcome.Error)
	case step.Expect != nil:
		if !equalSummary(*step.Expect, *outcome.Contact) {
			return fmt.Sprintf("steps[%d]: expected %+v, got %+v", index, *step.Expect, *outcome.Contact)
		}
	}
	return ""
}

func describe(outcome StepResult) string {
	if outcome.Error != "" {
		return outcome.Error
	}
	return fmt.Sprintf("%+v", *outcome.Contact)
}

// equalSummary compares summaries treating nil and empty slices alike.
func equalSummary(a, b contact.Summary) bool {
	return a.PrimaryContactID == b.PrimaryContactID &&
		slices.Equal(a.Emails, b.Emails) &&
		slices.Equal(a.PhoneNumbers, b.PhoneNumbers) &&
		slices.Equal(a.SecondaryContactIDs, b.SecondaryContactIDs)
}
