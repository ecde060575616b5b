package reconcile

import (
	"sort"

	"github.com/roach88/contactgraph/internal/contact"
)

// Project builds the summary of a component ordered oldest first.
//
// Emails and phone numbers keep the position of their first occurrence and
// skip absent values. Secondary ids are sorted ascending regardless of
// creation order.
func Project(primary contact.Contact, component []contact.Contact) contact.Summary {
	summary := contact.Summary{
		PrimaryContactID:    primary.ID,
		Emails:              []string{},
		PhoneNumbers:        []string{},
		SecondaryContactIDs: []int64{},
	}

	seenEmail := make(map[string]bool)
	seenPhone := make(map[string]bool)
	for _, c := range component {
		if c.Email != "" && !seenEmail[c.Email] {
			seenEmail[c.Email] = true
			summary.Emails = append(summary.Emails, c.Email)
		}
		if c.PhoneNumber != "" && !seenPhone[c.PhoneNumber] {
			seenPhone[c.PhoneNumber] = true
			summary.PhoneNumbers = append(summary.PhoneNumbers, c.PhoneNumber)
		}
		if c.LinkPrecedence == contact.Secondary {
			summary.SecondaryContactIDs = append(summary.SecondaryContactIDs, c.ID)
		}
	}

	sort.Slice(summary.SecondaryContactIDs, func(i, j int) bool {
		return summary.SecondaryContactIDs[i] < summary.SecondaryContactIDs[j]
	})
	return summary
}
