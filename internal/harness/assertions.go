package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/contactgraph/internal/contact"
	"github.com/roach88/contactgraph/internal/reconcile"
)

// AssertionError is returned when an assertion fails.
// It includes the final contact table to help debug the failure.
type AssertionError struct {
	Type     string            // Assertion type for categorization
	Expected string            // Human-readable expected outcome
	Actual   string            // Human-readable actual outcome
	Contacts []contact.Contact // Final contact table for context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nContacts:\n")
	for _, c := range e.Contacts {
		fmt.Fprintf(&buf, "  [%d] %s email=%q phone=%q linked=%d\n",
			c.ID, c.LinkPrecedence, c.Email, c.PhoneNumber, c.LinkedID)
	}

	return buf.String()
}

// evaluateAssertions runs every assertion and returns the failure messages.
// All assertions run; a failure does not stop evaluation.
func (h *Harness) evaluateAssertions(ctx context.Context, assertions []Assertion, result *Result) []string {
	var errs []string
	for i, a := range assertions {
		if err := h.evaluate(ctx, a, result.Contacts); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

func (h *Harness) evaluate(ctx context.Context, a Assertion, contacts []contact.Contact) error {
	switch a.Type {
	case AssertContactCount:
		return assertCount(a, contacts, func(contact.Contact) bool { return true })
	case AssertPrimaryCount:
		return assertCount(a, contacts, contact.Contact.IsPrimary)
	case AssertSecondaryCount:
		return assertCount(a, contacts, func(c contact.Contact) bool { return !c.IsPrimary() })
	case AssertAuditClean:
		return assertAuditClean(contacts)
	case AssertIdentity:
		return h.assertIdentity(ctx, a, contacts)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// assertCount checks how many contacts satisfy match.
func assertCount(a Assertion, contacts []contact.Contact, match func(contact.Contact) bool) error {
	count := 0
	for _, c := range contacts {
		if match(c) {
			count++
		}
	}
	if count == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("%d", a.Count),
		Actual:   fmt.Sprintf("%d", count),
		Contacts: contacts,
	}
}

// assertAuditClean checks that the final table satisfies every component
// invariant.
func assertAuditClean(contacts []contact.Contact) error {
	violations := reconcile.Audit(contacts)
	if len(violations) == 0 {
		return nil
	}

	details := make([]string, len(violations))
	for i, v := range violations {
		details[i] = fmt.Sprintf("%s on %d", v.Kind, v.ContactID)
	}
	return &AssertionError{
		Type:     AssertAuditClean,
		Expected: "no violations",
		Actual:   strings.Join(details, ", "),
		Contacts: contacts,
	}
}

// assertIdentity summarizes the identity containing a.Contact.
func (h *Harness) assertIdentity(ctx context.Context, a Assertion, contacts []contact.Contact) error {
	summary, err := h.engine.Summarize(ctx, a.Contact)
	if err != nil {
		return &AssertionError{
			Type:     AssertIdentity,
			Expected: fmt.Sprintf("%+v", *a.Expect),
			Actual:   err.Error(),
			Contacts: contacts,
		}
	}
	if !equalSummary(*a.Expect, summary) {
		return &AssertionError{
			Type:     AssertIdentity,
			Expected: fmt.Sprintf("%+v", *a.Expect),
			Actual:   fmt.Sprintf("%+v", summary),
			Contacts: contacts,
		}
	}
	return nil
}
