// Package harness runs reconciliation scenarios as executable contract tests.
//
// A scenario is a sequence of observations fed through reconcile.Engine
// against a fresh in-memory SQLite store. Each step may state the summary (or
// error code) it expects, and assertions check the final contact table.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: merge_primaries
//	description: "Two primaries merge through a shared observation"
//	steps:
//	  - observe: { email: a@x.com, phoneNumber: "111" }
//	    expect:
//	      primaryContactId: 1
//	      emails: [a@x.com]
//	      phoneNumbers: ["111"]
//	      secondaryContactIds: []
//	  - observe: { email: "   " }
//	    error: INVALID_OBSERVATION
//	assertions:
//	  - type: primary_count
//	    count: 1
//	  - type: audit_clean
//	  - type: identity
//	    contact: 2
//	    expect: { ... }
//
// Documents are checked against an embedded CUE schema (schema.cue) before
// they are decoded, so typos and wrong types are reported with their path.
//
// # Assertion Types
//
//   - contact_count: number of live contacts
//   - primary_count: number of primary contacts
//   - secondary_count: number of secondary contacts
//   - audit_clean: reconcile.Audit reports no violations
//   - identity: Summarize(contact) equals expect
//
// # Deterministic Testing
//
// The store clock is a testutil.DeterministicClock, so ids and creation
// order are identical across runs and a Snapshot of the result can be
// compared byte for byte with a golden file.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/merge_primaries.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(ctx, scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, msg := range result.Errors {
//	    log.Println(msg)
//	}
package harness
