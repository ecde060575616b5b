package reconcile

import (
	"context"

	"github.com/roach88/contactgraph/internal/contact"
)

// WriteSecondary records o as a new secondary of primary unless some member
// of component already holds o's exact (email, phone) pair.
//
// It reports whether a row was created. After a write the caller must
// re-expand the component before projecting it.
func WriteSecondary(ctx context.Context, s contact.Store, o contact.Observation, primary contact.Contact, component []contact.Contact) (contact.Contact, bool, error) {
	for _, c := range component {
		if c.HasPair(o) {
			return c, false, nil
		}
	}

	saved, err := s.Save(ctx, contact.NewSecondary(o, primary.ID))
	if err != nil {
		return contact.Contact{}, false, storeError("write secondary", err)
	}
	return saved, true, nil
}
