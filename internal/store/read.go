package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/contactgraph/internal/contact"
)

// querier is the subset of *sql.DB and *sql.Tx used by contact queries.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// contacts implements contact.Store over a querier.
// Inside InTx the querier is the open transaction.
type contacts struct {
	q   querier
	now func() time.Time
}

const contactColumns = `id, email, phone_number, linked_id, link_precedence, created_at, updated_at, deleted_at`

// LookupByEmailOrPhone returns live contacts matching email OR phone exactly.
// Empty arguments are bound as NULL, and NULL never compares equal.
func (c *contacts) LookupByEmailOrPhone(ctx context.Context, email, phone string) ([]contact.Contact, error) {
	if email == "" && phone == "" {
		return []contact.Contact{}, nil
	}

	rows, err := c.q.QueryContext(ctx, `
		SELECT `+contactColumns+`
		FROM contacts
		WHERE deleted_at IS NULL
		  AND (email = ? OR phone_number = ?)
		ORDER BY created_at ASC, id ASC
	`, nullString(email), nullString(phone))
	if err != nil {
		return nil, fmt.Errorf("lookup by email or phone: %w", err)
	}
	return scanContacts(rows)
}

// LookupComponent returns the live contact anchorID plus everything linked to it.
func (c *contacts) LookupComponent(ctx context.Context, anchorID int64) ([]contact.Contact, error) {
	rows, err := c.q.QueryContext(ctx, `
		SELECT `+contactColumns+`
		FROM contacts
		WHERE deleted_at IS NULL
		  AND (id = ? OR linked_id = ?)
		ORDER BY created_at ASC, id ASC
	`, anchorID, anchorID)
	if err != nil {
		return nil, fmt.Errorf("lookup component %d: %w", anchorID, err)
	}
	return scanContacts(rows)
}

// FindByID retrieves a single live contact.
// Returns contact.ErrNotFound if absent or soft-deleted.
func (c *contacts) FindByID(ctx context.Context, id int64) (contact.Contact, error) {
	row := c.q.QueryRowContext(ctx, `
		SELECT `+contactColumns+`
		FROM contacts
		WHERE id = ? AND deleted_at IS NULL
	`, id)

	ct, err := scanContact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return contact.Contact{}, contact.ErrNotFound
	}
	if err != nil {
		return contact.Contact{}, fmt.Errorf("find contact %d: %w", id, err)
	}
	return ct, nil
}

// ReadAll returns every live contact ordered by (created_at, id).
// Used by audit.
func (s *Store) ReadAll(ctx context.Context) ([]contact.Contact, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+contactColumns+`
		FROM contacts
		WHERE deleted_at IS NULL
		ORDER BY created_at ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("read all contacts: %w", err)
	}
	return scanContacts(rows)
}

// LockIdentities is a no-op: InTx runs under BEGIN IMMEDIATE, so the unit
// of work already holds the database-wide write lock.
func (c *contacts) LockIdentities(context.Context, []int64) error {
	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanContacts(rows *sql.Rows) ([]contact.Contact, error) {
	defer rows.Close()

	var out []contact.Contact
	for rows.Next() {
		ct, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ct)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contacts: %w", err)
	}

	// Return empty slice instead of nil
	if out == nil {
		out = []contact.Contact{}
	}
	return out, nil
}

func scanContact(r rowScanner) (contact.Contact, error) {
	var (
		ct                   contact.Contact
		email, phone         sql.NullString
		linkedID, deletedAt  sql.NullInt64
		precedence           string
		createdAt, updatedAt int64
	)
	if err := r.Scan(&ct.ID, &email, &phone, &linkedID, &precedence, &createdAt, &updatedAt, &deletedAt); err != nil {
		return contact.Contact{}, err
	}

	p, err := contact.ParseLinkPrecedence(precedence)
	if err != nil {
		return contact.Contact{}, fmt.Errorf("contact %d: %w", ct.ID, err)
	}

	ct.Email = email.String
	ct.PhoneNumber = phone.String
	ct.LinkedID = linkedID.Int64
	ct.LinkPrecedence = p
	ct.CreatedAt = fromMillis(createdAt)
	ct.UpdatedAt = fromMillis(updatedAt)
	if deletedAt.Valid {
		t := fromMillis(deletedAt.Int64)
		ct.DeletedAt = &t
	}
	return ct, nil
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id != 0}
}
