// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package session_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielhkuo/deliberation/models"
	"github.com/danielhkuo/deliberation/session"
	"github.com/danielhkuo/deliberation/testutil"
)

func TestSetStatusWritesViewState(t *testing.T) {
	st, _ := testutil.NewTestStore(t)
	ctrl := session.NewController(st)
	ctx := context.Background()

	sess := testutil.CreateTestSession(t, st, models.StatusPhase1Open)
	role := testutil.AddTestRole(t, st, sess.ID, "Chair", 2)
	c1 := testutil.AddTestCandidate(t, st, role, "Ada", 1, true)

	view, err := ctrl.SetFocusedCandidate(ctx, sess.ID, role.ID, &c1.ID, "fac")
	require.NoError(t, err)
	assert.Equal(t, models.ViewCandidateFocus, view.ViewMode)

	// Closing phase 1 keeps the focus so voters see their locked vote.
	res, err := ctrl.SetStatus(ctx, sess.ID, models.StatusPhase1Closed, "fac")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPhase1Closed, res.Session.Status)
	assert.Equal(t, models.ViewCandidateFocus, res.Sync.ViewMode)
	require.NotNil(t, res.Sync.CurrentCandidateID)
	assert.Equal(t, c1.ID, *res.Sync.CurrentCandidateID)

	// Entering phase 2 drops the stale candidate focus for everyone.
	res, err = ctrl.SetStatus(ctx, sess.ID, models.StatusPhase2Open, "fac")
	require.NoError(t, err)
	assert.Equal(t, models.ViewPhase2RoleSelect, res.Sync.ViewMode)
	assert.Nil(t, res.Sync.CurrentCandidateID)
	require.NotNil(t, res.Sync.CurrentRoleID)
	assert.Equal(t, role.ID, *res.Sync.CurrentRoleID)

	stored, err := st.GetSyncState(ctx, sess.ID)
	require.NoError(t, err)
	assert.True(t, stored.SameView(res.Sync))
	require.NotNil(t, stored.UpdatedBy)
	assert.Equal(t, "fac", *stored.UpdatedBy)
}

func TestSetStatusRejectsInvalidTransitions(t *testing.T) {
	st, _ := testutil.NewTestStore(t)
	ctrl := session.NewController(st)
	ctx := context.Background()

	sess := testutil.CreateTestSession(t, st, models.StatusSetup)

	_, err := ctrl.SetStatus(ctx, sess.ID, models.StatusPhase2Open, "fac")
	assert.ErrorIs(t, err, models.ErrInvalidTransition)

	_, err = ctrl.SetStatus(ctx, sess.ID, "paused", "fac")
	assert.ErrorIs(t, err, models.ErrInvalidTransition)

	_, err = ctrl.SetStatus(ctx, "missing", models.StatusPhase1Open, "fac")
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = ctrl.SetStatus(ctx, sess.ID, models.StatusArchived, "fac")
	require.NoError(t, err)

	_, err = ctrl.SetStatus(ctx, sess.ID, models.StatusPhase1Open, "fac")
	assert.ErrorIs(t, err, models.ErrInvalidTransition)

	before, err := st.GetSyncState(ctx, sess.ID)
	require.NoError(t, err)
	_, err = ctrl.SetStatus(ctx, sess.ID, models.StatusArchived, "someone-else")
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
	after, err := st.GetSyncState(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, before.UpdatedBy, after.UpdatedBy)
	assert.True(t, before.UpdatedAt.Equal(after.UpdatedAt))

	got, err := st.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusArchived, got.Status)
}

func TestSetStatusReissueRepairsViewState(t *testing.T) {
	st, _ := testutil.NewTestStore(t)
	ctrl := session.NewController(st)
	ctx := context.Background()

	// Status landed in phase 2 but the view state write never did.
	sess := testutil.CreateTestSession(t, st, models.StatusPhase2Open)
	role := testutil.AddTestRole(t, st, sess.ID, "Chair", 1)
	c := testutil.AddTestCandidate(t, st, role, "Ada", 1, true)
	_, err := st.UpsertSyncState(ctx, models.SyncState{
		SessionID:          sess.ID,
		CurrentRoleID:      &role.ID,
		CurrentCandidateID: &c.ID,
		ViewMode:           models.ViewCandidateFocus,
	})
	require.NoError(t, err)

	res, err := ctrl.SetStatus(ctx, sess.ID, models.StatusPhase2Open, "fac")
	require.NoError(t, err)
	assert.Equal(t, models.ViewPhase2RoleSelect, res.Sync.ViewMode)
	assert.Nil(t, res.Sync.CurrentCandidateID)
}

func TestSetFocusedCandidate(t *testing.T) {
	st, _ := testutil.NewTestStore(t)
	ctrl := session.NewController(st)
	ctx := context.Background()

	sess := testutil.CreateTestSession(t, st, models.StatusPhase1Open)
	chair := testutil.AddTestRole(t, st, sess.ID, "Chair", 1)
	treasurer := testutil.AddTestRole(t, st, sess.ID, "Treasurer", 1)
	ada := testutil.AddTestCandidate(t, st, chair, "Ada", 1, false)

	other := testutil.CreateTestSession(t, st, models.StatusPhase1Open)
	foreignRole := testutil.AddTestRole(t, st, other.ID, "Chair", 1)

	t.Run("candidate of another role", func(t *testing.T) {
		_, err := ctrl.SetFocusedCandidate(ctx, sess.ID, treasurer.ID, &ada.ID, "fac")
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("role of another session", func(t *testing.T) {
		_, err := ctrl.SetFocusedCandidate(ctx, sess.ID, foreignRole.ID, nil, "fac")
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("selecting a role clears the candidate", func(t *testing.T) {
		_, err := ctrl.SetFocusedCandidate(ctx, sess.ID, chair.ID, &ada.ID, "fac")
		require.NoError(t, err)

		view, err := ctrl.SetFocusedCandidate(ctx, sess.ID, treasurer.ID, nil, "fac")
		require.NoError(t, err)
		assert.Equal(t, models.ViewRoleList, view.ViewMode)
		assert.Nil(t, view.CurrentCandidateID)
		assert.Equal(t, treasurer.ID, *view.CurrentRoleID)
	})

	t.Run("no candidate focus in phase 2", func(t *testing.T) {
		_, err := st.UpdateSessionStatus(ctx, sess.ID, models.StatusPhase2Open)
		require.NoError(t, err)

		_, err = ctrl.SetFocusedCandidate(ctx, sess.ID, chair.ID, &ada.ID, "fac")
		assert.ErrorIs(t, err, models.ErrPhaseClosed)

		view, err := ctrl.SetFocusedCandidate(ctx, sess.ID, chair.ID, nil, "fac")
		require.NoError(t, err)
		assert.Equal(t, models.ViewPhase2RoleSelect, view.ViewMode)
		assert.Equal(t, chair.ID, *view.CurrentRoleID)
	})

	t.Run("archived rejects everything", func(t *testing.T) {
		_, err := st.UpdateSessionStatus(ctx, sess.ID, models.StatusArchived)
		require.NoError(t, err)

		_, err = ctrl.SetFocusedCandidate(ctx, sess.ID, chair.ID, nil, "fac")
		assert.ErrorIs(t, err, models.ErrPhaseClosed)
	})
}

func TestStepCandidate(t *testing.T) {
	st, _ := testutil.NewTestStore(t)
	ctrl := session.NewController(st)
	ctx := context.Background()

	sess := testutil.CreateTestSession(t, st, models.StatusPhase1Open)
	role := testutil.AddTestRole(t, st, sess.ID, "Chair", 1)
	second := testutil.AddTestCandidate(t, st, role, "Bea", 2, false)
	first := testutil.AddTestCandidate(t, st, role, "Ada", 1, false)

	_, err := ctrl.StepCandidate(ctx, sess.ID, 1, "fac")
	assert.ErrorIs(t, err, models.ErrInvalidInput, "no role selected yet")

	_, err = ctrl.SetFocusedCandidate(ctx, sess.ID, role.ID, nil, "fac")
	require.NoError(t, err)

	// Previous from the role list stays put.
	view, err := ctrl.StepCandidate(ctx, sess.ID, -1, "fac")
	require.NoError(t, err)
	assert.Equal(t, models.ViewRoleList, view.ViewMode)

	view, err = ctrl.StepCandidate(ctx, sess.ID, 1, "fac")
	require.NoError(t, err)
	assert.Equal(t, models.ViewCandidateFocus, view.ViewMode)
	assert.Equal(t, first.ID, *view.CurrentCandidateID)

	view, err = ctrl.StepCandidate(ctx, sess.ID, 1, "fac")
	require.NoError(t, err)
	assert.Equal(t, second.ID, *view.CurrentCandidateID)

	// Past the end is a no-op.
	view, err = ctrl.StepCandidate(ctx, sess.ID, 1, "fac")
	require.NoError(t, err)
	assert.Equal(t, second.ID, *view.CurrentCandidateID)

	view, err = ctrl.StepCandidate(ctx, sess.ID, -1, "fac")
	require.NoError(t, err)
	assert.Equal(t, first.ID, *view.CurrentCandidateID)

	_, err = ctrl.StepCandidate(ctx, sess.ID, 0, "fac")
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = st.UpdateSessionStatus(ctx, sess.ID, models.StatusPhase2Open)
	require.NoError(t, err)
	_, err = ctrl.StepCandidate(ctx, sess.ID, 1, "fac")
	assert.ErrorIs(t, err, models.ErrPhaseClosed)
}

func TestSetAdvancedToPhase2(t *testing.T) {
	st, _ := testutil.NewTestStore(t)
	ctrl := session.NewController(st)
	ctx := context.Background()

	sess := testutil.CreateTestSession(t, st, models.StatusPhase1Closed)
	role := testutil.AddTestRole(t, st, sess.ID, "Chair", 1)
	c := testutil.AddTestCandidate(t, st, role, "Ada", 1, false)

	got, err := ctrl.SetAdvancedToPhase2(ctx, c.ID, true)
	require.NoError(t, err)
	assert.True(t, got.AdvancedToPhase2)

	_, err = ctrl.SetAdvancedToPhase2(ctx, "missing", true)
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = st.UpdateSessionStatus(ctx, sess.ID, models.StatusArchived)
	require.NoError(t, err)
	_, err = ctrl.SetAdvancedToPhase2(ctx, c.ID, false)
	assert.ErrorIs(t, err, models.ErrPhaseClosed)
}

func TestSetupOperations(t *testing.T) {
	st, _ := testutil.NewTestStore(t)
	ctrl := session.NewController(st)
	ctx := context.Background()

	_, err := ctrl.CreateSession(ctx, "   ", "fac")
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	sess, err := ctrl.CreateSession(ctx, "Board 2026", "fac")
	require.NoError(t, err)

	_, err = ctrl.AddRole(ctx, sess.ID, models.AddRoleRequest{Name: "Chair", Quota: 0})
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	role, err := ctrl.AddRole(ctx, sess.ID, models.AddRoleRequest{Name: "Chair", Quota: 2})
	require.NoError(t, err)

	_, err = ctrl.AddCandidate(ctx, sess.ID, models.AddCandidateRequest{RoleID: "missing", Name: "Ada"})
	assert.ErrorIs(t, err, models.ErrNotFound)

	notes := "Ran the treasury"
	cand, err := ctrl.AddCandidate(ctx, sess.ID, models.AddCandidateRequest{RoleID: role.ID, Name: "Ada", SlideOrder: 1, Notes: &notes})
	require.NoError(t, err)
	assert.False(t, cand.AdvancedToPhase2)

	detail, err := ctrl.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Len(t, detail.Roles, 1)
	assert.Len(t, detail.Candidates, 1)
	require.NotNil(t, detail.Sync)
	assert.Equal(t, models.ViewRoleList, detail.Sync.ViewMode)
	require.NotNil(t, detail.Candidates[0].Notes)
	assert.Equal(t, notes, *detail.Candidates[0].Notes)
}
