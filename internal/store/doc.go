// Package store provides SQLite-backed durable storage for contacts.
//
// The store implements contact.Store and contact.Transactor:
//   - Contacts: one row per observed (email, phone number) pair
//   - Links: linked_id points a secondary at its component's primary
//   - Soft delete: rows with deleted_at set are invisible to every lookup
//
// # Ordering
//
// Every multi-row read is ORDER BY created_at ASC, id ASC. Timestamps are
// stored as unix milliseconds, so ties are common; the AUTOINCREMENT id
// resolves them in insertion order.
//
// # Atomicity
//
// InTx opens the transaction with BEGIN IMMEDIATE. The write lock is held from
// the seed lookup to commit, so two reconciliations never both conclude "no
// match" for the same email or phone.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: linked_id must reference an existing contact
package store
