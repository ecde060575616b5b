package contact

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a contact id does not name a live contact.
var ErrNotFound = errors.New("contact not found")

// Store is the persistence contract consumed by reconciliation.
//
// Every read excludes soft-deleted contacts. Results are ordered by
// (CreatedAt, ID) ascending and are empty slices, never nil, when nothing
// matches.
type Store interface {
	// LookupByEmailOrPhone returns contacts whose email equals email or whose
	// phone number equals phone. An empty argument matches nothing.
	LookupByEmailOrPhone(ctx context.Context, email, phone string) ([]Contact, error)

	// LookupComponent returns the contact with id anchorID together with every
	// contact linked to it.
	LookupComponent(ctx context.Context, anchorID int64) ([]Contact, error)

	// FindByID returns one live contact or ErrNotFound.
	FindByID(ctx context.Context, id int64) (Contact, error)

	// Save inserts c when c.ID is zero and updates it otherwise.
	// It returns the persisted form with ID and timestamps filled in.
	Save(ctx context.Context, c Contact) (Contact, error)

	// LockIdentities holds, until the unit of work ends, an exclusive lock on
	// each identity named by a primary contact id. A unit of work that links
	// to, demotes or re-links the members of an identity must hold its lock.
	LockIdentities(ctx context.Context, primaryIDs []int64) error
}

// Transactor runs a unit of work atomically.
//
// lockKeys are the values the unit of work reconciles (see
// Observation.LockKeys). Implementations must guarantee that two units of
// work sharing a key never interleave. Identities the unit of work touches
// are locked separately through Store.LockIdentities.
type Transactor interface {
	InTx(ctx context.Context, lockKeys []string, fn func(Store) error) error
}
