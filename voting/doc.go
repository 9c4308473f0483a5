// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package voting implements participant writes for both phases and the
facilitator's aggregate view of them.

# Phase 1

CastVote stores one value (strong_yes, yes, no) per session, candidate and
user. A later call replaces the earlier value. Preconditions are checked in
order: user present, value valid, session exists, phase1_open, candidate in
session.

# Phase 2

Ballots are keyed by session, role and user and created lazily by the first
ToggleSelection or ToggleSubmit. ToggleSelection removes a selected candidate
or adds one while the ballot holds fewer than the role's quota; adding to a
full ballot is a silent no-op reported as ToggleResult.Applied == false.
Only candidates of the role with advanced_to_phase2 set are eligible.

Submission is a flag. A submitted ballot can still be edited while the
session is phase2_open.

# Results

Tally is a pure aggregation of votes, ballots and selections into
per-candidate and per-role counts. Engine.Results loads the records and
calls it.
*/
package voting
