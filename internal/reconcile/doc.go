// Package reconcile links contact observations into identity components.
//
// A component is every contact reachable through a shared email or phone
// number. Each component has exactly one primary, the oldest member by
// (CreatedAt, ID), and every other member links directly to it.
//
// Identify runs one observation through the pipeline:
//
//	Resolve -> SelectPrimary (-> Promote) -> WriteSecondary -> Project
//
// The whole pipeline runs inside a single contact.Transactor unit of work,
// so a reader never sees a half-promoted component. The lock keys passed to
// InTx are the observation's normalized email and phone; stores use them to
// serialize reconciliations that could otherwise both decide "no match" and
// create two primaries for one identity.
//
// Matching is exact string equality. Only whitespace-only values are
// treated as absent.
package reconcile
