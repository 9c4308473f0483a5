// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package live keeps a client's view of a session consistent with the server.

Derive is a pure function from (session status, sync state) to what the
client renders. Session status is authoritative for the phase: in phase 2
the view is always the role selector, whatever the sync state says, and a
phase 1 candidate is never shown there.

A Reconciler subscribes to the session's sync_state and deliberation_session
change streams, then pulls both rows, so nothing committed between the
subscription and the pull is lost. Pushed sync states older than or equal
in view to the one already applied are discarded. A pushed change that
leaves status and view state disagreeing triggers one more pull. Resync
notices and undecodable rows also trigger a pull.

Every subscribe asks the CredentialSource for a fresh credential. Resume
replaces both subscriptions and pulls; call it when the client comes back
from suspension. Refresh pulls and re-applies unconditionally.

Snapshots are delivered on Updates with latest-wins semantics.
*/
package live
