//go:build integration

package pgstore_test

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/contactgraph/internal/contact"
	"github.com/roach88/contactgraph/internal/pgstore"
	"github.com/roach88/contactgraph/internal/reconcile"
	"github.com/roach88/contactgraph/internal/testutil"
)

// openTestStore connects to CONTACTGRAPH_TEST_POSTGRES_DSN and empties the
// contacts table. Tests in this file share one database and must not run
// in parallel.
func openTestStore(t *testing.T) *pgstore.Store {
	t.Helper()
	dsn := os.Getenv("CONTACTGRAPH_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("CONTACTGRAPH_TEST_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	s, err := pgstore.Open(ctx, dsn, pgstore.WithClock(testutil.NewDeterministicClock().Now))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	require.NoError(t, s.Truncate(ctx))
	return s
}

func save(t *testing.T, s *pgstore.Store, c contact.Contact) contact.Contact {
	t.Helper()
	var saved contact.Contact
	err := s.InTx(context.Background(), nil, func(cs contact.Store) error {
		var err error
		saved, err = cs.Save(context.Background(), c)
		return err
	})
	require.NoError(t, err)
	return saved
}

func find(s *pgstore.Store, id int64) (contact.Contact, error) {
	var found contact.Contact
	err := s.InTx(context.Background(), nil, func(cs contact.Store) error {
		var err error
		found, err = cs.FindByID(context.Background(), id)
		return err
	})
	return found, err
}

func TestSaveAndLookup(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p := save(t, s, contact.NewPrimary(contact.Observation{Email: "a@x.com", PhoneNumber: "111"}))
	sec := save(t, s, contact.NewSecondary(contact.Observation{PhoneNumber: "222"}, p.ID))
	other := save(t, s, contact.NewPrimary(contact.Observation{Email: "z@x.com"}))

	assert.NotZero(t, p.ID)
	assert.True(t, p.CreatedAt.Before(sec.CreatedAt))
	assert.Equal(t, "", sec.Email)

	err := s.InTx(ctx, nil, func(cs contact.Store) error {
		got, err := cs.LookupByEmailOrPhone(ctx, "a@x.com", "222")
		require.NoError(t, err)
		assert.Len(t, got, 2)

		// Absent values never match NULL columns.
		got, err = cs.LookupByEmailOrPhone(ctx, "", "111")
		require.NoError(t, err)
		assert.Len(t, got, 1)

		got, err = cs.LookupComponent(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, []int64{p.ID, sec.ID}, []int64{got[0].ID, got[1].ID})
		return nil
	})
	require.NoError(t, err)

	found, err := find(s, other.ID)
	require.NoError(t, err)
	assert.Equal(t, other, found)

	require.NoError(t, s.SoftDelete(ctx, other.ID))
	_, err = find(s, other.ID)
	assert.ErrorIs(t, err, contact.ErrNotFound)
}

func TestSave_UpdateMissingContact(t *testing.T) {
	s := openTestStore(t)

	err := s.InTx(context.Background(), nil, func(cs contact.Store) error {
		_, err := cs.Save(context.Background(), contact.Contact{ID: 999, Email: "a@x.com", LinkPrecedence: contact.Primary})
		return err
	})
	assert.ErrorIs(t, err, contact.ErrNotFound)
}

func TestIdentify_MergeOnPostgres(t *testing.T) {
	s := openTestStore(t)
	e := reconcile.New(s)
	ctx := context.Background()

	p1, err := e.Identify(ctx, contact.Observation{Email: "a@x.com", PhoneNumber: "111"})
	require.NoError(t, err)
	p2, err := e.Identify(ctx, contact.Observation{Email: "b@y.com", PhoneNumber: "222"})
	require.NoError(t, err)

	got, err := e.Identify(ctx, contact.Observation{Email: "a@x.com", PhoneNumber: "222"})
	require.NoError(t, err)
	assert.Equal(t, p1.PrimaryContactID, got.PrimaryContactID)
	assert.Contains(t, got.SecondaryContactIDs, p2.PrimaryContactID)

	all, err := s.ReadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, reconcile.Audit(all))
}

func TestIdentify_ConcurrentSameEmailCreatesOnePrimary(t *testing.T) {
	s := openTestStore(t)
	e := reconcile.New(s)
	const n = 16

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.Identify(context.Background(), contact.Observation{
				Email:       "race@x.com",
				PhoneNumber: fmt.Sprintf("555-%02d", i),
			})
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	all, err := s.ReadAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, n)
	assert.Empty(t, reconcile.Audit(all))
}

func TestLockIdentities_SerializesUnitsOfWork(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	p := save(t, s, contact.NewPrimary(contact.Observation{Email: "a@x.com"}))

	locked := make(chan struct{})
	release := make(chan struct{})
	holderDone := make(chan error, 1)
	go func() {
		holderDone <- s.InTx(ctx, nil, func(cs contact.Store) error {
			if err := cs.LockIdentities(ctx, []int64{p.ID}); err != nil {
				return err
			}
			close(locked)
			<-release
			return nil
		})
	}()
	<-locked

	var acquired atomic.Bool
	waiterDone := make(chan error, 1)
	go func() {
		// Disjoint observation keys: only the identity lock can block this.
		waiterDone <- s.InTx(ctx, []string{"email:other@x.com"}, func(cs contact.Store) error {
			if err := cs.LockIdentities(ctx, []int64{p.ID}); err != nil {
				return err
			}
			acquired.Store(true)
			return nil
		})
	}()

	assert.Never(t, acquired.Load, 200*time.Millisecond, 20*time.Millisecond)
	close(release)
	require.NoError(t, <-holderDone)
	require.NoError(t, <-waiterDone)
	assert.True(t, acquired.Load())
}

// A merge of two identities racing a secondary write into the younger one
// shares no observation lock keys. The identity locks must still keep every
// secondary linked to the surviving primary.
func TestIdentify_ConcurrentMergeAndSecondaryWrite(t *testing.T) {
	s := openTestStore(t)
	e := reconcile.New(s)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		require.NoError(t, s.Truncate(ctx))

		emailA := fmt.Sprintf("a%d@x.com", i)
		emailB := fmt.Sprintf("b%d@y.com", i)
		p1, err := e.Identify(ctx, contact.Observation{Email: emailA, PhoneNumber: fmt.Sprintf("111-%d", i)})
		require.NoError(t, err)
		_, err = e.Identify(ctx, contact.Observation{Email: emailB, PhoneNumber: fmt.Sprintf("222-%d", i)})
		require.NoError(t, err)

		var wg sync.WaitGroup
		var merged, written contact.Summary
		var mergeErr, writeErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			merged, mergeErr = e.Identify(ctx, contact.Observation{Email: emailA, PhoneNumber: fmt.Sprintf("222-%d", i)})
		}()
		go func() {
			defer wg.Done()
			written, writeErr = e.Identify(ctx, contact.Observation{Email: emailB, PhoneNumber: fmt.Sprintf("333-%d", i)})
		}()
		wg.Wait()
		require.NoError(t, mergeErr)
		require.NoError(t, writeErr)

		all, err := s.ReadAll(ctx)
		require.NoError(t, err)
		require.Len(t, all, 4)
		assert.Empty(t, reconcile.Audit(all), "iteration %d", i)
		assert.Equal(t, p1.PrimaryContactID, merged.PrimaryContactID)

		final, err := e.Summarize(ctx, p1.PrimaryContactID)
		require.NoError(t, err)
		assert.Len(t, final.SecondaryContactIDs, 3)
		if written.PrimaryContactID != p1.PrimaryContactID {
			// The write committed before the merge; the merge re-linked it.
			assert.Len(t, written.SecondaryContactIDs, 1)
		}
	}
}
