package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/contactgraph/internal/contact"
	"github.com/roach88/contactgraph/internal/testutil"
)

// createTestStore creates a new file-backed store with a deterministic clock.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, WithClock(testutil.NewDeterministicClock().Now))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// saveTestContact persists c in its own transaction and returns the saved form.
func saveTestContact(t *testing.T, s *Store, c contact.Contact) contact.Contact {
	t.Helper()
	var saved contact.Contact
	err := s.InTx(context.Background(), nil, func(cs contact.Store) error {
		var err error
		saved, err = cs.Save(context.Background(), c)
		return err
	})
	if err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	return saved
}

// createTestPrimary saves a primary contact for email/phone.
func createTestPrimary(t *testing.T, s *Store, email, phone string) contact.Contact {
	t.Helper()
	return saveTestContact(t, s, contact.NewPrimary(contact.Observation{Email: email, PhoneNumber: phone}))
}

// createTestSecondary saves a secondary contact linked to primaryID.
func createTestSecondary(t *testing.T, s *Store, email, phone string, primaryID int64) contact.Contact {
	t.Helper()
	return saveTestContact(t, s, contact.NewSecondary(contact.Observation{Email: email, PhoneNumber: phone}, primaryID))
}

// reader returns a contact.Store that queries outside any transaction.
func (s *Store) reader() *contacts {
	return &contacts{q: s.db, now: s.now}
}

func ids(contacts []contact.Contact) []int64 {
	out := make([]int64, len(contacts))
	for i, c := range contacts {
		out[i] = c.ID
	}
	return out
}

// fixedClock returns the same instant on every call.
func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}
