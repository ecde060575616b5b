// Package contact defines the records that make up an identity graph.
//
// A Contact is one observed (email, phone number) pair. Contacts that share an
// email or a phone number belong to the same identity component; exactly one
// of them is PRIMARY and every other member is SECONDARY with LinkedID set to
// the primary's ID.
//
// Email and PhoneNumber use the empty string for "absent". Stores persist an
// absent value as NULL, so an absent field never matches another contact.
package contact

import (
	"fmt"
	"time"
)

// LinkPrecedence is the role a contact plays inside its component.
type LinkPrecedence string

const (
	// Primary anchors a component. It is always the oldest member.
	Primary LinkPrecedence = "primary"

	// Secondary carries additional information linked to a primary.
	Secondary LinkPrecedence = "secondary"
)

// Valid reports whether p is one of the known precedences.
func (p LinkPrecedence) Valid() bool {
	return p == Primary || p == Secondary
}

// ParseLinkPrecedence converts a stored value back into a LinkPrecedence.
func ParseLinkPrecedence(s string) (LinkPrecedence, error) {
	p := LinkPrecedence(s)
	if !p.Valid() {
		return "", fmt.Errorf("unknown link precedence %q", s)
	}
	return p, nil
}

// Contact is a single persisted observation.
//
// ID and CreatedAt are assigned by the store on first save and never change.
// LinkedID is zero for primaries.
type Contact struct {
	ID             int64
	Email          string
	PhoneNumber    string
	LinkedID       int64
	LinkPrecedence LinkPrecedence
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DeletedAt      *time.Time
}

// IsPrimary reports whether c anchors its component.
func (c Contact) IsPrimary() bool {
	return c.LinkPrecedence == Primary
}

// HasPair reports whether c holds exactly the email and phone number of o,
// field by field, with absent matching absent.
func (c Contact) HasPair(o Observation) bool {
	return c.Email == o.Email && c.PhoneNumber == o.PhoneNumber
}

// Older reports whether a sorts before b in component order.
// Creation time decides; the store-assigned ID breaks ties.
func Older(a, b Contact) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

// NewPrimary builds an unsaved primary contact for o.
func NewPrimary(o Observation) Contact {
	return Contact{
		Email:          o.Email,
		PhoneNumber:    o.PhoneNumber,
		LinkPrecedence: Primary,
	}
}

// NewSecondary builds an unsaved secondary contact for o linked to primaryID.
func NewSecondary(o Observation, primaryID int64) Contact {
	return Contact{
		Email:          o.Email,
		PhoneNumber:    o.PhoneNumber,
		LinkedID:       primaryID,
		LinkPrecedence: Secondary,
	}
}
