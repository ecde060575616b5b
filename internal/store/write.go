package store

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/contactgraph/internal/contact"
)

// Save inserts c when c.ID is zero, otherwise updates the mutable columns.
// Returns the persisted form.
//
// created_at is assigned once on insert and never rewritten.
// Updating a missing or soft-deleted contact returns contact.ErrNotFound.
func (c *contacts) Save(ctx context.Context, ct contact.Contact) (contact.Contact, error) {
	if !ct.LinkPrecedence.Valid() {
		return contact.Contact{}, fmt.Errorf("save contact: invalid link precedence %q", ct.LinkPrecedence)
	}
	if ct.ID != 0 && ct.LinkedID == ct.ID {
		return contact.Contact{}, fmt.Errorf("save contact %d: contact cannot link to itself", ct.ID)
	}

	now := c.now().UTC()
	if ct.ID == 0 {
		return c.insert(ctx, ct, now)
	}
	return c.update(ctx, ct, now)
}

func (c *contacts) insert(ctx context.Context, ct contact.Contact, now time.Time) (contact.Contact, error) {
	result, err := c.q.ExecContext(ctx, `
		INSERT INTO contacts
		(email, phone_number, linked_id, link_precedence, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		nullString(ct.Email),
		nullString(ct.PhoneNumber),
		nullID(ct.LinkedID),
		string(ct.LinkPrecedence),
		toMillis(now),
		toMillis(now),
	)
	if err != nil {
		return contact.Contact{}, fmt.Errorf("insert contact: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return contact.Contact{}, fmt.Errorf("insert contact: last insert id: %w", err)
	}

	ct.ID = id
	ct.CreatedAt = fromMillis(toMillis(now))
	ct.UpdatedAt = ct.CreatedAt
	ct.DeletedAt = nil
	return ct, nil
}

func (c *contacts) update(ctx context.Context, ct contact.Contact, now time.Time) (contact.Contact, error) {
	result, err := c.q.ExecContext(ctx, `
		UPDATE contacts
		SET email = ?, phone_number = ?, linked_id = ?, link_precedence = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`,
		nullString(ct.Email),
		nullString(ct.PhoneNumber),
		nullID(ct.LinkedID),
		string(ct.LinkPrecedence),
		toMillis(now),
		ct.ID,
	)
	if err != nil {
		return contact.Contact{}, fmt.Errorf("update contact %d: %w", ct.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return contact.Contact{}, fmt.Errorf("update contact %d: rows affected: %w", ct.ID, err)
	}
	if rowsAffected == 0 {
		return contact.Contact{}, fmt.Errorf("update contact %d: %w", ct.ID, contact.ErrNotFound)
	}

	// Re-read so CreatedAt reflects the stored value, not the caller's copy.
	return c.FindByID(ctx, ct.ID)
}

// SoftDelete marks a contact deleted. Deleted contacts disappear from every
// lookup; nothing in reconciliation calls this.
func (s *Store) SoftDelete(ctx context.Context, id int64) error {
	now := toMillis(s.now())
	result, err := s.db.ExecContext(ctx, `
		UPDATE contacts SET deleted_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`, now, now, id)
	if err != nil {
		return fmt.Errorf("soft delete contact %d: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("soft delete contact %d: rows affected: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("soft delete contact %d: %w", id, contact.ErrNotFound)
	}
	return nil
}
