// Package ballotengine implements anonymous preference-ranked ballots inside
// the assembly-governance context.
//
// The module owns the ballot lifecycle: secret-token issuance decoupling
// voter identity from vote content, ranked vote collection inside time-boxed
// windows, the attendance-based quorum/extension state machine, pairwise
// (Schulze) tallying, and write-once publication of a canonical, auditable
// result artifact. Business rules live in application/domain layers behind
// ports; storage, the roster collaborator, and the event bus are adapters.
package ballotengine
