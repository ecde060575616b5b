package reconcile

import (
	"fmt"
	"sort"

	"github.com/roach88/contactgraph/internal/contact"
)

// ViolationKind names one way the stored graph can break the component invariants.
type ViolationKind string

const (
	// SecondaryWithoutLink is a secondary with no linked id.
	SecondaryWithoutLink ViolationKind = "secondary_without_link"

	// PrimaryWithLink is a primary that still carries a linked id.
	PrimaryWithLink ViolationKind = "primary_with_link"

	// SelfLink is a contact whose linked id is its own id.
	SelfLink ViolationKind = "self_link"

	// DanglingLink is a linked id that names no live contact.
	DanglingLink ViolationKind = "dangling_link"

	// LinkToSecondary is a linked id that names a secondary instead of a primary.
	LinkToSecondary ViolationKind = "link_to_secondary"

	// PrimaryNotOldest is a primary younger than one of its secondaries.
	PrimaryNotOldest ViolationKind = "primary_not_oldest"

	// SplitIdentity is two primaries whose groups share an email or phone
	// number, the footprint of a lost merge.
	SplitIdentity ViolationKind = "split_identity"

	// DuplicatePair is two members of one group holding the same exact
	// (email, phone) pair.
	DuplicatePair ViolationKind = "duplicate_pair"
)

// Violation is one invariant breach found by Audit.
type Violation struct {
	Kind      ViolationKind `json:"kind" yaml:"kind"`
	ContactID int64         `json:"contactId" yaml:"contactId"`
	Detail    string        `json:"detail" yaml:"detail"`
}

// Audit checks every live contact against the component invariants and
// returns the breaches ordered by contact id, then kind. A healthy graph
// yields an empty slice.
func Audit(contacts []contact.Contact) []Violation {
	byID := make(map[int64]contact.Contact, len(contacts))
	for _, c := range contacts {
		byID[c.ID] = c
	}

	violations := []Violation{}
	add := func(kind ViolationKind, id int64, format string, args ...any) {
		violations = append(violations, Violation{Kind: kind, ContactID: id, Detail: fmt.Sprintf(format, args...)})
	}

	// group maps each contact to the primary it claims, when that claim is usable.
	group := make(map[int64]int64, len(contacts))
	for _, c := range contacts {
		switch {
		case c.IsPrimary():
			if c.LinkedID != 0 {
				add(PrimaryWithLink, c.ID, "primary links to %d", c.LinkedID)
			}
			group[c.ID] = c.ID
		case c.LinkedID == 0:
			add(SecondaryWithoutLink, c.ID, "secondary has no linked contact")
		case c.LinkedID == c.ID:
			add(SelfLink, c.ID, "contact links to itself")
		default:
			target, ok := byID[c.LinkedID]
			if !ok {
				add(DanglingLink, c.ID, "linked contact %d does not exist", c.LinkedID)
				continue
			}
			if !target.IsPrimary() {
				add(LinkToSecondary, c.ID, "linked contact %d is not primary", c.LinkedID)
				continue
			}
			group[c.ID] = target.ID
			if contact.Older(c, target) {
				add(PrimaryNotOldest, target.ID, "secondary %d is older than its primary", c.ID)
			}
		}
	}

	// Identities that share a value must share a primary.
	emailOwner := make(map[string]int64)
	phoneOwner := make(map[string]int64)
	reported := make(map[[2]int64]bool)
	pairs := make(map[int64]map[contact.Observation]int64)
	for _, c := range orderedByAge(contacts) {
		root, ok := group[c.ID]
		if !ok {
			continue
		}
		checkShared := func(owners map[string]int64, value, field string) {
			if value == "" {
				return
			}
			owner, seen := owners[value]
			if !seen {
				owners[value] = root
				return
			}
			key := [2]int64{owner, root}
			if owner != root && !reported[key] {
				reported[key] = true
				add(SplitIdentity, root, "shares %s with identity %d", field, owner)
			}
		}
		checkShared(emailOwner, c.Email, "email")
		checkShared(phoneOwner, c.PhoneNumber, "phone number")

		pair := contact.Observation{Email: c.Email, PhoneNumber: c.PhoneNumber}
		if pairs[root] == nil {
			pairs[root] = make(map[contact.Observation]int64)
		}
		if first, dup := pairs[root][pair]; dup {
			add(DuplicatePair, c.ID, "same email and phone number as contact %d", first)
		} else {
			pairs[root][pair] = c.ID
		}
	}

	sort.SliceStable(violations, func(i, j int) bool {
		if violations[i].ContactID != violations[j].ContactID {
			return violations[i].ContactID < violations[j].ContactID
		}
		return violations[i].Kind < violations[j].Kind
	})
	return violations
}

func orderedByAge(contacts []contact.Contact) []contact.Contact {
	out := make([]contact.Contact, len(contacts))
	copy(out, contacts)
	sort.SliceStable(out, func(i, j int) bool {
		return contact.Older(out[i], out[j])
	})
	return out
}
