package pgstore

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/roach88/contactgraph/internal/contact"
)

// querier is the subset of *pgxpool.Pool and pgx.Tx used by contact queries.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// contacts implements contact.Store over a querier.
type contacts struct {
	q   querier
	now func() time.Time
}

const contactColumns = `id, email, phone_number, linked_id, link_precedence, created_at, updated_at, deleted_at`

// LookupByEmailOrPhone returns live contacts matching email OR phone exactly.
func (c *contacts) LookupByEmailOrPhone(ctx context.Context, email, phone string) ([]contact.Contact, error) {
	if email == "" && phone == "" {
		return []contact.Contact{}, nil
	}

	rows, err := c.q.Query(ctx, `
		SELECT `+contactColumns+`
		FROM contacts
		WHERE deleted_at IS NULL
		  AND (email = NULLIF($1::text, '') OR phone_number = NULLIF($2::text, ''))
		ORDER BY created_at ASC, id ASC
	`, email, phone)
	if err != nil {
		return nil, fmt.Errorf("lookup by email or phone: %w", err)
	}
	return collectContacts(rows)
}

// LookupComponent returns the live contact anchorID plus everything linked to it.
func (c *contacts) LookupComponent(ctx context.Context, anchorID int64) ([]contact.Contact, error) {
	rows, err := c.q.Query(ctx, `
		SELECT `+contactColumns+`
		FROM contacts
		WHERE deleted_at IS NULL
		  AND (id = $1 OR linked_id = $1)
		ORDER BY created_at ASC, id ASC
	`, anchorID)
	if err != nil {
		return nil, fmt.Errorf("lookup component %d: %w", anchorID, err)
	}
	return collectContacts(rows)
}

// FindByID retrieves a single live contact.
func (c *contacts) FindByID(ctx context.Context, id int64) (contact.Contact, error) {
	row := c.q.QueryRow(ctx, `
		SELECT `+contactColumns+`
		FROM contacts
		WHERE id = $1 AND deleted_at IS NULL
	`, id)

	ct, err := scanContact(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return contact.Contact{}, contact.ErrNotFound
	}
	if err != nil {
		return contact.Contact{}, fmt.Errorf("find contact %d: %w", id, err)
	}
	return ct, nil
}

// Save inserts c when c.ID is zero, otherwise updates the mutable columns.
func (c *contacts) Save(ctx context.Context, ct contact.Contact) (contact.Contact, error) {
	if !ct.LinkPrecedence.Valid() {
		return contact.Contact{}, fmt.Errorf("save contact: invalid link precedence %q", ct.LinkPrecedence)
	}
	if ct.ID != 0 && ct.LinkedID == ct.ID {
		return contact.Contact{}, fmt.Errorf("save contact %d: contact cannot link to itself", ct.ID)
	}

	// timestamptz keeps microseconds.
	now := c.now().UTC().Truncate(time.Microsecond)

	if ct.ID == 0 {
		row := c.q.QueryRow(ctx, `
			INSERT INTO contacts
			(email, phone_number, linked_id, link_precedence, created_at, updated_at)
			VALUES (NULLIF($1::text, ''), NULLIF($2::text, ''), NULLIF($3::bigint, 0), $4, $5, $5)
			RETURNING `+contactColumns,
			ct.Email, ct.PhoneNumber, ct.LinkedID, string(ct.LinkPrecedence), now,
		)
		saved, err := scanContact(row)
		if err != nil {
			return contact.Contact{}, fmt.Errorf("insert contact: %w", err)
		}
		return saved, nil
	}

	row := c.q.QueryRow(ctx, `
		UPDATE contacts
		SET email = NULLIF($1::text, ''),
		    phone_number = NULLIF($2::text, ''),
		    linked_id = NULLIF($3::bigint, 0),
		    link_precedence = $4,
		    updated_at = $5
		WHERE id = $6 AND deleted_at IS NULL
		RETURNING `+contactColumns,
		ct.Email, ct.PhoneNumber, ct.LinkedID, string(ct.LinkPrecedence), now, ct.ID,
	)
	saved, err := scanContact(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return contact.Contact{}, fmt.Errorf("update contact %d: %w", ct.ID, contact.ErrNotFound)
	}
	if err != nil {
		return contact.Contact{}, fmt.Errorf("update contact %d: %w", ct.ID, err)
	}
	return saved, nil
}

// LockIdentities takes a transaction-scoped advisory lock on each identity,
// in ascending id order.
func (c *contacts) LockIdentities(ctx context.Context, primaryIDs []int64) error {
	ids := append([]int64(nil), primaryIDs...)
	slices.Sort(ids)
	for _, id := range slices.Compact(ids) {
		if err := advisoryLock(ctx, c.q, contact.IdentityLockKey(id)); err != nil {
			return err
		}
	}
	return nil
}

// ReadAll returns every live contact ordered by (created_at, id).
func (s *Store) ReadAll(ctx context.Context) ([]contact.Contact, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+contactColumns+`
		FROM contacts
		WHERE deleted_at IS NULL
		ORDER BY created_at ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("read all contacts: %w", err)
	}
	return collectContacts(rows)
}

// SoftDelete marks a contact deleted.
func (s *Store) SoftDelete(ctx context.Context, id int64) error {
	now := s.now().UTC().Truncate(time.Microsecond)
	tag, err := s.pool.Exec(ctx, `
		UPDATE contacts SET deleted_at = $1, updated_at = $1
		WHERE id = $2 AND deleted_at IS NULL
	`, now, id)
	if err != nil {
		return fmt.Errorf("soft delete contact %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("soft delete contact %d: %w", id, contact.ErrNotFound)
	}
	return nil
}

// collectContacts drains rows. Returns an empty slice instead of nil.
func collectContacts(rows pgx.Rows) ([]contact.Contact, error) {
	defer rows.Close()

	out := []contact.Contact{}
	for rows.Next() {
		ct, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		out = append(out, ct)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contacts: %w", err)
	}
	return out, nil
}

func scanContact(row pgx.Row) (contact.Contact, error) {
	var (
		ct         contact.Contact
		email      *string
		phone      *string
		linkedID   *int64
		precedence string
		deletedAt  *time.Time
	)
	if err := row.Scan(&ct.ID, &email, &phone, &linkedID, &precedence, &ct.CreatedAt, &ct.UpdatedAt, &deletedAt); err != nil {
		return contact.Contact{}, err
	}

	p, err := contact.ParseLinkPrecedence(precedence)
	if err != nil {
		return contact.Contact{}, err
	}
	ct.LinkPrecedence = p
	if email != nil {
		ct.Email = *email
	}
	if phone != nil {
		ct.PhoneNumber = *phone
	}
	if linkedID != nil {
		ct.LinkedID = *linkedID
	}
	ct.CreatedAt = ct.CreatedAt.UTC()
	ct.UpdatedAt = ct.UpdatedAt.UTC()
	if deletedAt != nil {
		d := deletedAt.UTC()
		ct.DeletedAt = &d
	}
	return ct, nil
}
