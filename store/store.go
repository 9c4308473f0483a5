// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/danielhkuo/deliberation/logging"
	"github.com/danielhkuo/deliberation/models"
	"github.com/danielhkuo/deliberation/notify"
)

// Dialect selects the SQL flavour of the underlying driver.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

var numbered = regexp.MustCompile(`\$(\d+)`)

// Store is the persistence gateway. Every method is a suspension point and
// either fully applies or leaves stored state untouched.
type Store struct {
	db      *sql.DB
	dialect Dialect
	pub     notify.Publisher
	now     func() time.Time
	logger  zerolog.Logger
}

// New creates a store. pub receives session and sync_state changes after
// commit; it may be nil.
func New(db *sql.DB, dialect Dialect, pub notify.Publisher) *Store {
	return &Store{
		db:      db,
		dialect: dialect,
		pub:     pub,
		now:     func() time.Time { return time.Now().UTC() },
		logger:  logging.WithComponent("store"),
	}
}

// q rewrites $N placeholders for SQLite, which spells them ?N.
func (s *Store) q(query string) string {
	if s.dialect == SQLite {
		return numbered.ReplaceAllString(query, "?$1")
	}
	return query
}

// ioErr marks a driver failure as transient so callers can retry.
func ioErr(op string, err error) error {
	return fmt.Errorf("%s: %w", op, errors.Join(models.ErrTransientIO, err))
}

// rowErr passes malformed row errors through and marks the rest transient.
func rowErr(op string, err error) error {
	if errors.Is(err, models.ErrMalformedRow) {
		return err
	}
	return ioErr(op, err)
}

func (s *Store) publish(ctx context.Context, table notify.Table, op notify.Op, sessionID string, row any) {
	if s.pub == nil {
		return
	}
	raw, err := json.Marshal(row)
	if err != nil {
		s.logger.Error().Err(err).Str("table", string(table)).Msg("failed to encode row image")
		return
	}
	c := notify.Change{Table: table, Op: op, SessionID: sessionID, Row: raw, At: s.now()}
	if err := s.pub.Publish(ctx, c); err != nil {
		// The write is committed; live views converge on their next pull.
		s.logger.Warn().Err(err).Str("table", string(table)).Str("session_id", sessionID).Msg("failed to publish change")
	}
}

// Sessions

// CreateSession inserts a session in setup status together with its sync
// state row.
func (s *Store) CreateSession(ctx context.Context, name, createdBy string) (models.Session, error) {
	now := s.now()
	sess := models.Session{
		ID:        uuid.NewString(),
		Name:      name,
		Status:    models.StatusSetup,
		CreatedAt: now,
		UpdatedAt: now,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Session{}, ioErr("begin create session", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, s.q(`
		INSERT INTO deliberation_session (id, name, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`), sess.ID, sess.Name, string(sess.Status), now, now)
	if err != nil {
		return models.Session{}, ioErr("insert session", err)
	}

	var updatedBy *string
	if createdBy != "" {
		updatedBy = &createdBy
	}
	_, err = tx.ExecContext(ctx, s.q(`
		INSERT INTO sync_state (session_id, view_mode, updated_by, updated_at)
		VALUES ($1, $2, $3, $4)
	`), sess.ID, string(models.ViewRoleList), updatedBy, now)
	if err != nil {
		return models.Session{}, ioErr("insert sync state", err)
	}

	if err := tx.Commit(); err != nil {
		return models.Session{}, ioErr("commit create session", err)
	}

	s.publish(ctx, notify.TableSession, notify.OpInsert, sess.ID, sess)
	return sess, nil
}

func (s *Store) GetSession(ctx context.Context, id string) (models.Session, error) {
	sess, err := scanSession(s.db.QueryRowContext(ctx, s.q(`
		SELECT `+sessionColumns+` FROM deliberation_session WHERE id = $1
	`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Session{}, fmt.Errorf("session %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return models.Session{}, rowErr("get session", err)
	}
	return sess, nil
}

// UpdateSessionStatus writes the new status and returns the updated row.
func (s *Store) UpdateSessionStatus(ctx context.Context, id string, status models.SessionStatus) (models.Session, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Session{}, ioErr("begin update status", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, s.q(`
		UPDATE deliberation_session SET status = $1, updated_at = $2 WHERE id = $3
	`), string(status), s.now(), id)
	if err != nil {
		return models.Session{}, ioErr("update status", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.Session{}, fmt.Errorf("session %s: %w", id, models.ErrNotFound)
	}

	sess, err := scanSession(tx.QueryRowContext(ctx, s.q(`
		SELECT `+sessionColumns+` FROM deliberation_session WHERE id = $1
	`), id))
	if err != nil {
		return models.Session{}, rowErr("reload session", err)
	}
	if err := tx.Commit(); err != nil {
		return models.Session{}, ioErr("commit update status", err)
	}

	s.publish(ctx, notify.TableSession, notify.OpUpdate, sess.ID, sess)
	return sess, nil
}

// Roles

func (s *Store) CreateRole(ctx context.Context, r models.Role) (models.Role, error) {
	r.ID = uuid.NewString()
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO session_role (id, session_id, name, quota, sort_order)
		VALUES ($1, $2, $3, $4, $5)
	`), r.ID, r.SessionID, r.Name, r.Quota, r.SortOrder)
	if err != nil {
		return models.Role{}, ioErr("insert role", err)
	}
	return r, nil
}

func (s *Store) GetRole(ctx context.Context, id string) (models.Role, error) {
	r, err := scanRole(s.db.QueryRowContext(ctx, s.q(`
		SELECT `+roleColumns+` FROM session_role WHERE id = $1
	`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Role{}, fmt.Errorf("role %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return models.Role{}, rowErr("get role", err)
	}
	return r, nil
}

// ListRoles returns the session's roles in facilitator-defined order.
func (s *Store) ListRoles(ctx context.Context, sessionID string) ([]models.Role, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT `+roleColumns+` FROM session_role
		WHERE session_id = $1
		ORDER BY sort_order, name, id
	`), sessionID)
	if err != nil {
		return nil, ioErr("list roles", err)
	}
	defer rows.Close()

	roles := []models.Role{}
	for rows.Next() {
		r, err := scanRole(rows)
		if err != nil {
			return nil, rowErr("list roles", err)
		}
		roles = append(roles, r)
	}
	if err := rows.Err(); err != nil {
		return nil, ioErr("list roles", err)
	}
	return roles, nil
}

// Candidates

func (s *Store) CreateCandidate(ctx context.Context, c models.Candidate) (models.Candidate, error) {
	c.ID = uuid.NewString()
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO candidate (id, session_id, role_id, name, slide_order, advanced_to_phase2, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`), c.ID, c.SessionID, c.RoleID, c.Name, c.SlideOrder, c.AdvancedToPhase2, c.Notes)
	if err != nil {
		return models.Candidate{}, ioErr("insert candidate", err)
	}
	return c, nil
}

func (s *Store) GetCandidate(ctx context.Context, id string) (models.Candidate, error) {
	c, err := scanCandidate(s.db.QueryRowContext(ctx, s.q(`
		SELECT `+candidateColumns+` FROM candidate WHERE id = $1
	`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Candidate{}, fmt.Errorf("candidate %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return models.Candidate{}, ioErr("get candidate", err)
	}
	return c, nil
}

func (s *Store) listCandidates(ctx context.Context, op, where, order string, arg any) ([]models.Candidate, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT `+candidateColumns+` FROM candidate WHERE `+where+` ORDER BY `+order,
	), arg)
	if err != nil {
		return nil, ioErr(op, err)
	}
	defer rows.Close()

	candidates := []models.Candidate{}
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, ioErr(op, err)
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, ioErr(op, err)
	}
	return candidates, nil
}

// ListCandidates returns every candidate of the session by slide order.
func (s *Store) ListCandidates(ctx context.Context, sessionID string) ([]models.Candidate, error) {
	return s.listCandidates(ctx, "list candidates", "session_id = $1", "role_id, slide_order, id", sessionID)
}

// ListRoleCandidates returns a role's candidates in navigation order.
func (s *Store) ListRoleCandidates(ctx context.Context, roleID string) ([]models.Candidate, error) {
	return s.listCandidates(ctx, "list role candidates", "role_id = $1", "slide_order, id", roleID)
}

// ListEligibleCandidates returns a role's phase 2 candidates by name.
func (s *Store) ListEligibleCandidates(ctx context.Context, roleID string) ([]models.Candidate, error) {
	return s.listCandidates(ctx, "list eligible candidates",
		"role_id = $1 AND advanced_to_phase2 = TRUE", "name, id", roleID)
}

func (s *Store) SetAdvancedToPhase2(ctx context.Context, id string, advanced bool) (models.Candidate, error) {
	res, err := s.db.ExecContext(ctx, s.q(`
		UPDATE candidate SET advanced_to_phase2 = $1 WHERE id = $2
	`), advanced, id)
	if err != nil {
		return models.Candidate{}, ioErr("update candidate", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.Candidate{}, fmt.Errorf("candidate %s: %w", id, models.ErrNotFound)
	}
	return s.GetCandidate(ctx, id)
}

// Sync state

func (s *Store) GetSyncState(ctx context.Context, sessionID string) (models.SyncState, error) {
	st, err := scanSyncState(s.db.QueryRowContext(ctx, s.q(`
		SELECT `+syncColumns+` FROM sync_state WHERE session_id = $1
	`), sessionID))
	if errors.Is(err, sql.ErrNoRows) {
		return models.SyncState{}, fmt.Errorf("sync state %s: %w", sessionID, models.ErrNotFound)
	}
	if err != nil {
		return models.SyncState{}, rowErr("get sync state", err)
	}
	return st, nil
}

// UpsertSyncState replaces the session's sync state row and stamps UpdatedAt.
func (s *Store) UpsertSyncState(ctx context.Context, st models.SyncState) (models.SyncState, error) {
	st.UpdatedAt = s.now()
	if err := validateSyncState(st); err != nil {
		return models.SyncState{}, err
	}

	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO sync_state (session_id, current_role_id, current_candidate_id, view_mode, updated_by, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (session_id) DO UPDATE SET
			current_role_id = excluded.current_role_id,
			current_candidate_id = excluded.current_candidate_id,
			view_mode = excluded.view_mode,
			updated_by = excluded.updated_by,
			updated_at = excluded.updated_at
	`), st.SessionID, st.CurrentRoleID, st.CurrentCandidateID, string(st.ViewMode), st.UpdatedBy, st.UpdatedAt)
	if err != nil {
		return models.SyncState{}, ioErr("upsert sync state", err)
	}

	s.publish(ctx, notify.TableSyncState, notify.OpUpdate, st.SessionID, st)
	return st, nil
}

// Phase 1 votes

// holdSession locks the session row inside tx and fails with ErrPhaseClosed
// unless the session is in status. A status change that commits first makes
// the guarded write fail; one that commits later waits for tx.
func (s *Store) holdSession(ctx context.Context, tx *sql.Tx, sessionID string, status models.SessionStatus) error {
	res, err := tx.ExecContext(ctx, s.q(`
		UPDATE deliberation_session SET updated_at = updated_at WHERE id = $1 AND status = $2
	`), sessionID, string(status))
	if err != nil {
		return ioErr("lock session", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("session %s not %s: %w", sessionID, status, models.ErrPhaseClosed)
	}
	return nil
}

// holdBallotSession is holdSession for the session owning ballotID.
func (s *Store) holdBallotSession(ctx context.Context, tx *sql.Tx, ballotID string, status models.SessionStatus) error {
	res, err := tx.ExecContext(ctx, s.q(`
		UPDATE deliberation_session SET updated_at = updated_at
		WHERE status = $1 AND id = (SELECT session_id FROM phase2_ballot WHERE id = $2)
	`), string(status), ballotID)
	if err != nil {
		return ioErr("lock session", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("ballot %s outside %s: %w", ballotID, status, models.ErrPhaseClosed)
	}
	return nil
}

// UpsertVote stores the value for (session, candidate, user), replacing any
// earlier value. The write only lands while the session is phase1_open.
func (s *Store) UpsertVote(ctx context.Context, v models.Phase1Vote) (models.Phase1Vote, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Phase1Vote{}, ioErr("begin upsert vote", err)
	}
	defer tx.Rollback()

	if err := s.holdSession(ctx, tx, v.SessionID, models.StatusPhase1Open); err != nil {
		return models.Phase1Vote{}, err
	}

	v.UpdatedAt = s.now()
	_, err = tx.ExecContext(ctx, s.q(`
		INSERT INTO phase1_vote (session_id, candidate_id, user_id, vote, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (session_id, candidate_id, user_id) DO UPDATE SET
			vote = excluded.vote,
			updated_at = excluded.updated_at
	`), v.SessionID, v.CandidateID, v.UserID, string(v.Value), v.UpdatedAt)
	if err != nil {
		return models.Phase1Vote{}, ioErr("upsert vote", err)
	}
	if err := tx.Commit(); err != nil {
		return models.Phase1Vote{}, ioErr("commit vote", err)
	}
	return v, nil
}

func (s *Store) GetVote(ctx context.Context, sessionID, candidateID, userID string) (models.Phase1Vote, error) {
	v, err := scanVote(s.db.QueryRowContext(ctx, s.q(`
		SELECT `+voteColumns+` FROM phase1_vote
		WHERE session_id = $1 AND candidate_id = $2 AND user_id = $3
	`), sessionID, candidateID, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Phase1Vote{}, fmt.Errorf("vote: %w", models.ErrNotFound)
	}
	if err != nil {
		return models.Phase1Vote{}, rowErr("get vote", err)
	}
	return v, nil
}

// ListVotes returns every vote of the session. Used for reporting only.
func (s *Store) ListVotes(ctx context.Context, sessionID string) ([]models.Phase1Vote, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT `+voteColumns+` FROM phase1_vote WHERE session_id = $1
	`), sessionID)
	if err != nil {
		return nil, ioErr("list votes", err)
	}
	defer rows.Close()

	votes := []models.Phase1Vote{}
	for rows.Next() {
		v, err := scanVote(rows)
		if err != nil {
			return nil, rowErr("list votes", err)
		}
		votes = append(votes, v)
	}
	if err := rows.Err(); err != nil {
		return nil, ioErr("list votes", err)
	}
	return votes, nil
}

// Phase 2 ballots

// EnsureBallot returns the ballot for (session, role, user), creating it
// unsubmitted if absent. Concurrent calls for the same identity resolve to
// one row through the unique constraint.
func (s *Store) EnsureBallot(ctx context.Context, sessionID, roleID, userID string) (models.Phase2Ballot, error) {
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO phase2_ballot (id, session_id, role_id, user_id, submitted, updated_at)
		VALUES ($1, $2, $3, $4, FALSE, $5)
		ON CONFLICT (session_id, role_id, user_id) DO NOTHING
	`), uuid.NewString(), sessionID, roleID, userID, s.now())
	if err != nil {
		return models.Phase2Ballot{}, ioErr("ensure ballot", err)
	}
	return s.GetBallot(ctx, sessionID, roleID, userID)
}

func (s *Store) GetBallot(ctx context.Context, sessionID, roleID, userID string) (models.Phase2Ballot, error) {
	b, err := scanBallot(s.db.QueryRowContext(ctx, s.q(`
		SELECT `+ballotColumns+` FROM phase2_ballot
		WHERE session_id = $1 AND role_id = $2 AND user_id = $3
	`), sessionID, roleID, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Phase2Ballot{}, fmt.Errorf("ballot: %w", models.ErrNotFound)
	}
	if err != nil {
		return models.Phase2Ballot{}, ioErr("get ballot", err)
	}
	return b, nil
}

func (s *Store) listBallots(ctx context.Context, op, where string, args ...any) ([]models.Phase2Ballot, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT `+ballotColumns+` FROM phase2_ballot WHERE `+where+` ORDER BY role_id, id
	`), args...)
	if err != nil {
		return nil, ioErr(op, err)
	}
	defer rows.Close()

	ballots := []models.Phase2Ballot{}
	for rows.Next() {
		b, err := scanBallot(rows)
		if err != nil {
			return nil, ioErr(op, err)
		}
		ballots = append(ballots, b)
	}
	if err := rows.Err(); err != nil {
		return nil, ioErr(op, err)
	}
	return ballots, nil
}

// ListUserBallots returns the user's ballots across all roles of the session.
func (s *Store) ListUserBallots(ctx context.Context, sessionID, userID string) ([]models.Phase2Ballot, error) {
	return s.listBallots(ctx, "list user ballots", "session_id = $1 AND user_id = $2", sessionID, userID)
}

// ListBallots returns every ballot of the session. Used for reporting only.
func (s *Store) ListBallots(ctx context.Context, sessionID string) ([]models.Phase2Ballot, error) {
	return s.listBallots(ctx, "list ballots", "session_id = $1", sessionID)
}

// ListSelections returns the selections whose ballot id is in ballotIDs.
func (s *Store) ListSelections(ctx context.Context, ballotIDs ...string) ([]models.Phase2Selection, error) {
	selections := []models.Phase2Selection{}
	if len(ballotIDs) == 0 {
		return selections, nil
	}

	args := make([]any, len(ballotIDs))
	for i, id := range ballotIDs {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT ballot_id, candidate_id FROM phase2_selection
		WHERE ballot_id IN (`+placeholders(1, len(args))+`)
		ORDER BY ballot_id, candidate_id
	`), args...)
	if err != nil {
		return nil, ioErr("list selections", err)
	}
	defer rows.Close()

	for rows.Next() {
		var sel models.Phase2Selection
		if err := rows.Scan(&sel.BallotID, &sel.CandidateID); err != nil {
			return nil, ioErr("list selections", err)
		}
		selections = append(selections, sel)
	}
	if err := rows.Err(); err != nil {
		return nil, ioErr("list selections", err)
	}
	return selections, nil
}

// ToggleSelection removes the edge if present, otherwise adds it when the
// ballot holds fewer than quota selections. Only lands while phase2_open. The ballot row is written first
// so concurrent toggles on the same ballot serialize before the count is read.
func (s *Store) ToggleSelection(ctx context.Context, ballotID, candidateID string, quota int) (models.ToggleResult, error) {
	result := models.ToggleResult{BallotID: ballotID, CandidateID: candidateID, Quota: quota}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return result, ioErr("begin toggle", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, s.q(`
		UPDATE phase2_ballot SET updated_at = $1 WHERE id = $2
	`), s.now(), ballotID)
	if err != nil {
		return result, ioErr("lock ballot", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return result, fmt.Errorf("ballot %s: %w", ballotID, models.ErrNotFound)
	}
	if err := s.holdBallotSession(ctx, tx, ballotID, models.StatusPhase2Open); err != nil {
		return result, err
	}

	var selected, count int
	err = tx.QueryRowContext(ctx, s.q(`
		SELECT
			COALESCE(SUM(CASE WHEN candidate_id = $1 THEN 1 ELSE 0 END), 0),
			COUNT(*)
		FROM phase2_selection WHERE ballot_id = $2
	`), candidateID, ballotID).Scan(&selected, &count)
	if err != nil {
		return result, ioErr("count selections", err)
	}

	switch {
	case selected > 0:
		_, err = tx.ExecContext(ctx, s.q(`
			DELETE FROM phase2_selection WHERE ballot_id = $1 AND candidate_id = $2
		`), ballotID, candidateID)
		if err != nil {
			return result, ioErr("delete selection", err)
		}
		result.Applied = true
		result.Selected = false
		result.Count = count - 1
	case count >= quota:
		result.Applied = false
		result.Selected = false
		result.Count = count
		// Nothing written besides the lock; rollback leaves the row as it was.
		return result, nil
	default:
		_, err = tx.ExecContext(ctx, s.q(`
			INSERT INTO phase2_selection (ballot_id, candidate_id) VALUES ($1, $2)
		`), ballotID, candidateID)
		if err != nil {
			return result, ioErr("insert selection", err)
		}
		result.Applied = true
		result.Selected = true
		result.Count = count + 1
	}

	if err := tx.Commit(); err != nil {
		return models.ToggleResult{BallotID: ballotID, CandidateID: candidateID, Quota: quota}, ioErr("commit toggle", err)
	}
	return result, nil
}

// ToggleSubmitted flips the ballot's submitted flag.
func (s *Store) ToggleSubmitted(ctx context.Context, ballotID string) (models.Phase2Ballot, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Phase2Ballot{}, ioErr("begin submit", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, s.q(`
		UPDATE phase2_ballot SET submitted = NOT submitted, updated_at = $1 WHERE id = $2
	`), s.now(), ballotID)
	if err != nil {
		return models.Phase2Ballot{}, ioErr("toggle submitted", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.Phase2Ballot{}, fmt.Errorf("ballot %s: %w", ballotID, models.ErrNotFound)
	}
	if err := s.holdBallotSession(ctx, tx, ballotID, models.StatusPhase2Open); err != nil {
		return models.Phase2Ballot{}, err
	}

	b, err := scanBallot(tx.QueryRowContext(ctx, s.q(`
		SELECT `+ballotColumns+` FROM phase2_ballot WHERE id = $1
	`), ballotID))
	if err != nil {
		return models.Phase2Ballot{}, ioErr("reload ballot", err)
	}
	if err := tx.Commit(); err != nil {
		return models.Phase2Ballot{}, ioErr("commit submit", err)
	}
	return b, nil
}
