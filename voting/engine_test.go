// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package voting_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielhkuo/deliberation/models"
	"github.com/danielhkuo/deliberation/store"
	"github.com/danielhkuo/deliberation/testutil"
	"github.com/danielhkuo/deliberation/voting"
)

func TestCastVotePreconditions(t *testing.T) {
	st, _ := testutil.NewTestStore(t)
	engine := voting.NewEngine(st)
	ctx := context.Background()

	open := testutil.CreateTestSession(t, st, models.StatusPhase1Open)
	role := testutil.AddTestRole(t, st, open.ID, "Chair", 1)
	cand := testutil.AddTestCandidate(t, st, role, "Ada", 1, false)

	setup := testutil.CreateTestSession(t, st, models.StatusSetup)
	otherRole := testutil.AddTestRole(t, st, setup.ID, "Chair", 1)
	foreign := testutil.AddTestCandidate(t, st, otherRole, "Bea", 1, false)

	testCases := []struct {
		name        string
		sessionID   string
		candidateID string
		userID      string
		value       models.VoteValue
		wantErr     error
	}{
		{"anonymous", open.ID, cand.ID, "", models.VoteYes, models.ErrUnauthenticated},
		{"anonymous wins over bad value", open.ID, cand.ID, "", "maybe", models.ErrUnauthenticated},
		{"bad value", open.ID, cand.ID, "u1", "maybe", models.ErrInvalidVote},
		{"unknown session", "missing", cand.ID, "u1", models.VoteYes, models.ErrNotFound},
		{"phase not open", setup.ID, foreign.ID, "u1", models.VoteYes, models.ErrPhaseClosed},
		{"unknown candidate", open.ID, "missing", "u1", models.VoteYes, models.ErrNotFound},
		{"candidate of another session", open.ID, foreign.ID, "u1", models.VoteYes, models.ErrNotFound},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := engine.CastVote(ctx, tc.sessionID, tc.candidateID, tc.userID, tc.value)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}

	votes, err := st.ListVotes(ctx, open.ID)
	require.NoError(t, err)
	assert.Empty(t, votes, "rejected calls must not write")
}

func TestCastVoteLastWriteWinsThenFreezes(t *testing.T) {
	st, _ := testutil.NewTestStore(t)
	engine := voting.NewEngine(st)
	ctx := context.Background()

	sess := testutil.CreateTestSession(t, st, models.StatusPhase1Open)
	role := testutil.AddTestRole(t, st, sess.ID, "Chair", 1)
	cand := testutil.AddTestCandidate(t, st, role, "Ada", 1, false)

	_, err := engine.CastVote(ctx, sess.ID, cand.ID, "u1", models.VoteNo)
	require.NoError(t, err)
	_, err = engine.CastVote(ctx, sess.ID, cand.ID, "u1", models.VoteStrongYes)
	require.NoError(t, err)

	mine, err := engine.MyVote(ctx, sess.ID, cand.ID, "u1")
	require.NoError(t, err)
	require.NotNil(t, mine.Vote)
	assert.Equal(t, models.VoteStrongYes, *mine.Vote)

	votes, err := st.ListVotes(ctx, sess.ID)
	require.NoError(t, err)
	assert.Len(t, votes, 1)

	_, err = st.UpdateSessionStatus(ctx, sess.ID, models.StatusPhase1Closed)
	require.NoError(t, err)

	_, err = engine.CastVote(ctx, sess.ID, cand.ID, "u1", models.VoteNo)
	assert.ErrorIs(t, err, models.ErrPhaseClosed)

	mine, err = engine.MyVote(ctx, sess.ID, cand.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.VoteStrongYes, *mine.Vote, "closed votes stay readable and unchanged")

	other, err := engine.MyVote(ctx, sess.ID, cand.ID, "u2")
	require.NoError(t, err)
	assert.Nil(t, other.Vote)

	_, err = engine.MyVote(ctx, sess.ID, cand.ID, "")
	assert.ErrorIs(t, err, models.ErrUnauthenticated)
}

// laggingStore reports a session as still open after it has moved on, the
// way a status change committing between the engine's read and its write does.
type laggingStore struct {
	*store.Store
	reported models.SessionStatus
}

func (l laggingStore) GetSession(ctx context.Context, id string) (models.Session, error) {
	sess, err := l.Store.GetSession(ctx, id)
	sess.Status = l.reported
	return sess, err
}

func TestCastVoteLosesRaceWithClose(t *testing.T) {
	st, _ := testutil.NewTestStore(t)
	ctx := context.Background()

	sess := testutil.CreateTestSession(t, st, models.StatusPhase1Closed)
	role := testutil.AddTestRole(t, st, sess.ID, "Chair", 1)
	ada := testutil.AddTestCandidate(t, st, role, "Ada", 1, true)

	engine := voting.NewEngine(laggingStore{Store: st, reported: models.StatusPhase1Open})
	_, err := engine.CastVote(ctx, sess.ID, ada.ID, "u1", models.VoteYes)
	assert.ErrorIs(t, err, models.ErrPhaseClosed)

	votes, err := st.ListVotes(ctx, sess.ID)
	require.NoError(t, err)
	assert.Empty(t, votes)

	_, err = st.UpdateSessionStatus(ctx, sess.ID, models.StatusPhase2Closed)
	require.NoError(t, err)
	engine = voting.NewEngine(laggingStore{Store: st, reported: models.StatusPhase2Open})
	_, err = engine.ToggleSelection(ctx, sess.ID, role.ID, "u1", ada.ID)
	assert.ErrorIs(t, err, models.ErrPhaseClosed)
}

func TestToggleSelectionPreconditions(t *testing.T) {
	st, _ := testutil.NewTestStore(t)
	engine := voting.NewEngine(st)
	ctx := context.Background()

	sess := testutil.CreateTestSession(t, st, models.StatusPhase2Open)
	chair := testutil.AddTestRole(t, st, sess.ID, "Chair", 1)
	treasurer := testutil.AddTestRole(t, st, sess.ID, "Treasurer", 1)
	advanced := testutil.AddTestCandidate(t, st, chair, "Ada", 1, true)
	held := testutil.AddTestCandidate(t, st, chair, "Bea", 2, false)

	closed := testutil.CreateTestSession(t, st, models.StatusPhase2Closed)
	closedRole := testutil.AddTestRole(t, st, closed.ID, "Chair", 1)

	testCases := []struct {
		name        string
		sessionID   string
		roleID      string
		userID      string
		candidateID string
		wantErr     error
	}{
		{"anonymous", sess.ID, chair.ID, "", advanced.ID, models.ErrUnauthenticated},
		{"phase closed", closed.ID, closedRole.ID, "u1", advanced.ID, models.ErrPhaseClosed},
		{"role of another session", sess.ID, closedRole.ID, "u1", advanced.ID, models.ErrNotFound},
		{"not advanced", sess.ID, chair.ID, "u1", held.ID, models.ErrIneligible},
		{"wrong role", sess.ID, treasurer.ID, "u1", advanced.ID, models.ErrIneligible},
		{"unknown candidate", sess.ID, chair.ID, "u1", "missing", models.ErrNotFound},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := engine.ToggleSelection(ctx, tc.sessionID, tc.roleID, tc.userID, tc.candidateID)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}

	ballots, err := st.ListBallots(ctx, sess.ID)
	require.NoError(t, err)
	assert.Empty(t, ballots, "rejected toggles must not create ballots")
}

func TestToggleSelectionQuotaScenarios(t *testing.T) {
	st, _ := testutil.NewTestStore(t)
	engine := voting.NewEngine(st)
	ctx := context.Background()

	sess := testutil.CreateTestSession(t, st, models.StatusPhase2Open)
	role := testutil.AddTestRole(t, st, sess.ID, "Chair", 2)
	c1 := testutil.AddTestCandidate(t, st, role, "One", 1, true)
	c2 := testutil.AddTestCandidate(t, st, role, "Two", 2, true)
	c3 := testutil.AddTestCandidate(t, st, role, "Three", 3, true)

	selectedIDs := func() []string {
		ballots, err := engine.MyBallots(ctx, sess.ID, "u1")
		require.NoError(t, err)
		require.Len(t, ballots, 1)
		return ballots[0].SelectedIDs
	}

	for _, c := range []models.Candidate{c1, c2} {
		res, err := engine.ToggleSelection(ctx, sess.ID, role.ID, "u1", c.ID)
		require.NoError(t, err)
		assert.True(t, res.Selected)
	}

	// Full ballot: adding is a silent no-op.
	res, err := engine.ToggleSelection(ctx, sess.ID, role.ID, "u1", c3.ID)
	require.NoError(t, err)
	assert.False(t, res.Applied)
	assert.ElementsMatch(t, []string{c1.ID, c2.ID}, selectedIDs())

	// Removing and re-adding restores the set.
	res, err = engine.ToggleSelection(ctx, sess.ID, role.ID, "u1", c1.ID)
	require.NoError(t, err)
	assert.False(t, res.Selected)
	assert.ElementsMatch(t, []string{c2.ID}, selectedIDs())

	res, err = engine.ToggleSelection(ctx, sess.ID, role.ID, "u1", c1.ID)
	require.NoError(t, err)
	assert.True(t, res.Selected)
	assert.ElementsMatch(t, []string{c1.ID, c2.ID}, selectedIDs())
}

func TestToggleSelectionConcurrentUsersAndQuota(t *testing.T) {
	st, _ := testutil.NewTestStore(t)
	engine := voting.NewEngine(st)
	ctx := context.Background()

	sess := testutil.CreateTestSession(t, st, models.StatusPhase2Open)
	role := testutil.AddTestRole(t, st, sess.ID, "Chair", 2)
	var candidates []models.Candidate
	for i := 0; i < 5; i++ {
		candidates = append(candidates, testutil.AddTestCandidate(t, st, role, string(rune('A'+i)), i, true))
	}

	users := []string{"u1", "u2", "u3"}
	var wg sync.WaitGroup
	for _, u := range users {
		for _, c := range candidates {
			wg.Add(1)
			go func(userID, candidateID string) {
				defer wg.Done()
				_, err := engine.ToggleSelection(ctx, sess.ID, role.ID, userID, candidateID)
				assert.NoError(t, err)
			}(u, c.ID)
		}
	}
	wg.Wait()

	ballots, err := st.ListBallots(ctx, sess.ID)
	require.NoError(t, err)
	assert.Len(t, ballots, len(users), "one ballot per user and role")

	for _, u := range users {
		mine, err := engine.MyBallots(ctx, sess.ID, u)
		require.NoError(t, err)
		require.Len(t, mine, 1)
		assert.Len(t, mine[0].SelectedIDs, role.Quota)
		assert.True(t, mine[0].QuotaReached)
	}
}

func TestToggleSubmit(t *testing.T) {
	st, _ := testutil.NewTestStore(t)
	engine := voting.NewEngine(st)
	ctx := context.Background()

	sess := testutil.CreateTestSession(t, st, models.StatusPhase2Open)
	role := testutil.AddTestRole(t, st, sess.ID, "Chair", 2)
	c1 := testutil.AddTestCandidate(t, st, role, "One", 1, true)
	c2 := testutil.AddTestCandidate(t, st, role, "Two", 2, true)

	// Submitting an empty ballot creates it.
	res, err := engine.ToggleSubmit(ctx, sess.ID, role.ID, "u1")
	require.NoError(t, err)
	assert.True(t, res.Submitted)
	assert.NotEmpty(t, res.BallotID)

	// Submission is only a flag; selections stay editable.
	sel, err := engine.ToggleSelection(ctx, sess.ID, role.ID, "u1", c1.ID)
	require.NoError(t, err)
	assert.True(t, sel.Selected)
	assert.Equal(t, res.BallotID, sel.BallotID)

	res, err = engine.ToggleSubmit(ctx, sess.ID, role.ID, "u1")
	require.NoError(t, err)
	assert.False(t, res.Submitted)

	_, err = st.UpdateSessionStatus(ctx, sess.ID, models.StatusPhase2Closed)
	require.NoError(t, err)

	_, err = engine.ToggleSubmit(ctx, sess.ID, role.ID, "u1")
	assert.ErrorIs(t, err, models.ErrPhaseClosed)
	_, err = engine.ToggleSelection(ctx, sess.ID, role.ID, "u1", c2.ID)
	assert.ErrorIs(t, err, models.ErrPhaseClosed)
}

func TestMyBallotsListsEveryRole(t *testing.T) {
	st, _ := testutil.NewTestStore(t)
	engine := voting.NewEngine(st)
	ctx := context.Background()

	sess := testutil.CreateTestSession(t, st, models.StatusPhase2Open)
	chair := testutil.AddTestRole(t, st, sess.ID, "Chair", 1)
	treasurer := testutil.AddTestRole(t, st, sess.ID, "Treasurer", 2)
	ada := testutil.AddTestCandidate(t, st, chair, "Ada", 1, true)
	testutil.AddTestCandidate(t, st, chair, "Bea", 2, false)
	testutil.AddTestCandidate(t, st, treasurer, "Cy", 1, true)

	_, err := engine.ToggleSelection(ctx, sess.ID, chair.ID, "u1", ada.ID)
	require.NoError(t, err)

	ballots, err := engine.MyBallots(ctx, sess.ID, "u1")
	require.NoError(t, err)
	require.Len(t, ballots, 2)

	byRole := map[string]models.RoleBallot{}
	for _, b := range ballots {
		byRole[b.Role.ID] = b
	}

	c := byRole[chair.ID]
	require.NotNil(t, c.BallotID)
	assert.Equal(t, []string{ada.ID}, c.SelectedIDs)
	assert.Len(t, c.Eligible, 1, "only advanced candidates are eligible")
	assert.True(t, c.QuotaReached)

	tr := byRole[treasurer.ID]
	assert.Nil(t, tr.BallotID)
	assert.Empty(t, tr.SelectedIDs)
	assert.Len(t, tr.Eligible, 1)
	assert.False(t, tr.QuotaReached)

	_, err = engine.MyBallots(ctx, sess.ID, "")
	assert.ErrorIs(t, err, models.ErrUnauthenticated)
	_, err = engine.MyBallots(ctx, "missing", "u1")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestResults(t *testing.T) {
	st, _ := testutil.NewTestStore(t)
	engine := voting.NewEngine(st)
	ctx := context.Background()

	sess := testutil.CreateTestSession(t, st, models.StatusPhase1Open)
	role := testutil.AddTestRole(t, st, sess.ID, "Chair", 1)
	ada := testutil.AddTestCandidate(t, st, role, "Ada", 1, true)

	for user, v := range map[string]models.VoteValue{"u1": models.VoteStrongYes, "u2": models.VoteYes, "u3": models.VoteNo, "u4": models.VoteYes} {
		_, err := engine.CastVote(ctx, sess.ID, ada.ID, user, v)
		require.NoError(t, err)
	}

	_, err := st.UpdateSessionStatus(ctx, sess.ID, models.StatusPhase2Open)
	require.NoError(t, err)
	_, err = engine.ToggleSelection(ctx, sess.ID, role.ID, "u1", ada.ID)
	require.NoError(t, err)
	_, err = engine.ToggleSubmit(ctx, sess.ID, role.ID, "u1")
	require.NoError(t, err)
	_, err = engine.ToggleSubmit(ctx, sess.ID, role.ID, "u2")
	require.NoError(t, err)
	_, err = engine.ToggleSubmit(ctx, sess.ID, role.ID, "u2")
	require.NoError(t, err)

	res, err := engine.Results(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPhase2Open, res.Status)

	require.Len(t, res.Phase1, 1)
	assert.Equal(t, 1, res.Phase1[0].StrongYes)
	assert.Equal(t, 2, res.Phase1[0].Yes)
	assert.Equal(t, 1, res.Phase1[0].No)
	assert.InDelta(t, 75.0, res.Phase1[0].PercentYes, 0.001)
	assert.InDelta(t, 25.0, res.Phase1[0].PercentStrongYes, 0.001)
	assert.InDelta(t, 50.0, res.Phase1[0].PercentPlainYes, 0.001)
	assert.InDelta(t, 25.0, res.Phase1[0].PercentNo, 0.001)

	require.Len(t, res.Phase2, 1)
	assert.Equal(t, 1, res.Phase2[0].InclusionVotes)

	require.Len(t, res.Submissions, 1)
	assert.Equal(t, 1, res.Submissions[0].SubmittedCount)
	assert.Equal(t, 2, res.Submissions[0].TotalCount)
}
