package reconcile_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/contactgraph/internal/contact"
	"github.com/roach88/contactgraph/internal/reconcile"
	"github.com/roach88/contactgraph/internal/store"
	"github.com/roach88/contactgraph/internal/testutil"
)

var errInjected = errors.New("injected store failure")

// newTestEngine returns an engine over a fresh SQLite file.
func newTestEngine(t *testing.T) (*reconcile.Engine, *store.Store) {
	t.Helper()
	s := newTestStore(t)
	return reconcile.New(s), s
}

func newTestStore(t *testing.T, opts ...store.Option) *store.Store {
	t.Helper()
	opts = append([]store.Option{store.WithClock(testutil.NewDeterministicClock().Now)}, opts...)
	s, err := store.Open(filepath.Join(t.TempDir(), "contacts.db"), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func identify(t *testing.T, e *reconcile.Engine, email, phone string) contact.Summary {
	t.Helper()
	summary, err := e.Identify(context.Background(), contact.Observation{Email: email, PhoneNumber: phone})
	require.NoError(t, err)
	return summary
}

func findContact(t *testing.T, s *store.Store, id int64) contact.Contact {
	t.Helper()
	var c contact.Contact
	err := s.InTx(context.Background(), nil, func(cs contact.Store) error {
		var err error
		c, err = cs.FindByID(context.Background(), id)
		return err
	})
	require.NoError(t, err)
	return c
}

func countContacts(t *testing.T, s *store.Store) int {
	t.Helper()
	all, err := s.ReadAll(context.Background())
	require.NoError(t, err)
	return len(all)
}

// faultyTransactor runs units of work on a real store but fails the Nth
// Save (1-based) inside each unit of work.
type faultyTransactor struct {
	inner      *store.Store
	failSaveAt int
	failLookup bool
}

func (f *faultyTransactor) InTx(ctx context.Context, lockKeys []string, fn func(contact.Store) error) error {
	return f.inner.InTx(ctx, lockKeys, func(s contact.Store) error {
		return fn(&faultyStore{Store: s, failSaveAt: f.failSaveAt, failLookup: f.failLookup})
	})
}

type faultyStore struct {
	contact.Store
	failSaveAt int
	failLookup bool
	saves      int
}

func (f *faultyStore) LookupByEmailOrPhone(ctx context.Context, email, phone string) ([]contact.Contact, error) {
	if f.failLookup {
		return nil, errInjected
	}
	return f.Store.LookupByEmailOrPhone(ctx, email, phone)
}

func (f *faultyStore) Save(ctx context.Context, c contact.Contact) (contact.Contact, error) {
	f.saves++
	if f.saves == f.failSaveAt {
		return contact.Contact{}, errInjected
	}
	return f.Store.Save(ctx, c)
}

// brokenTransactor serves a store whose component expansion loses contacts.
type brokenTransactor struct {
	inner *store.Store
}

func (b *brokenTransactor) InTx(ctx context.Context, lockKeys []string, fn func(contact.Store) error) error {
	return b.inner.InTx(ctx, lockKeys, func(s contact.Store) error {
		return fn(&emptyComponentStore{Store: s})
	})
}

type emptyComponentStore struct {
	contact.Store
}

func (emptyComponentStore) LookupComponent(context.Context, int64) ([]contact.Contact, error) {
	return []contact.Contact{}, nil
}

// lockingTransactor records every LockIdentities call made inside its units
// of work. onLock, when set, runs after each call with the unit of work's
// store, standing in for writes other units of work committed while this
// one waited for the lock. A non-nil lockErr fails every call.
type lockingTransactor struct {
	inner   *store.Store
	onLock  func(s contact.Store, ids []int64) error
	lockErr error
	calls   [][]int64
}

func (l *lockingTransactor) InTx(ctx context.Context, lockKeys []string, fn func(contact.Store) error) error {
	return l.inner.InTx(ctx, lockKeys, func(s contact.Store) error {
		return fn(&lockingStore{Store: s, tx: l})
	})
}

type lockingStore struct {
	contact.Store
	tx *lockingTransactor
}

func (l *lockingStore) LockIdentities(ctx context.Context, ids []int64) error {
	l.tx.calls = append(l.tx.calls, append([]int64(nil), ids...))
	if l.tx.lockErr != nil {
		return l.tx.lockErr
	}
	if err := l.Store.LockIdentities(ctx, ids); err != nil {
		return err
	}
	if l.tx.onLock != nil {
		return l.tx.onLock(l.Store, ids)
	}
	return nil
}
