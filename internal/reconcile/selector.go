package reconcile

import (
	"context"

	"github.com/roach88/contactgraph/internal/contact"
)

// SelectPrimary picks the oldest member of component and reports whether
// the component must be rewritten around it.
//
// A rewrite is needed when the oldest member is not primary, when any other
// member is primary, or when a secondary links anywhere but the oldest
// member. The second case is the merge of two identities: the younger
// primary must be demoted even though the oldest is already primary.
func SelectPrimary(component []contact.Contact) (contact.Contact, bool, error) {
	if len(component) == 0 {
		return contact.Contact{}, false, invariantError("select primary", "empty component")
	}

	oldest := component[0]
	for _, c := range component[1:] {
		if contact.Older(c, oldest) {
			oldest = c
		}
	}

	if !oldest.IsPrimary() {
		return oldest, true, nil
	}
	for _, c := range component {
		if c.ID == oldest.ID {
			continue
		}
		if c.IsPrimary() || c.LinkedID != oldest.ID {
			return oldest, true, nil
		}
	}
	return oldest, false, nil
}

// Promote makes primary the sole primary of component and links every other
// member to it. Members already in that state are not saved again.
//
// The returned component keeps the input order with updated members.
// Promote must run inside the caller's unit of work; a failure part way
// leaves earlier saves to be rolled back by the transaction.
func Promote(ctx context.Context, s contact.Store, primary contact.Contact, component []contact.Contact) ([]contact.Contact, error) {
	out := make([]contact.Contact, 0, len(component))
	for _, c := range component {
		target := c
		if c.ID == primary.ID {
			target.LinkPrecedence = contact.Primary
			target.LinkedID = 0
		} else {
			target.LinkPrecedence = contact.Secondary
			target.LinkedID = primary.ID
		}

		if target.LinkPrecedence == c.LinkPrecedence && target.LinkedID == c.LinkedID {
			out = append(out, c)
			continue
		}

		saved, err := s.Save(ctx, target)
		if err != nil {
			return nil, storeError("promote", err)
		}
		out = append(out, saved)
	}
	return out, nil
}
