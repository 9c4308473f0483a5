// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package live

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/danielhkuo/deliberation/logging"
	"github.com/danielhkuo/deliberation/metrics"
	"github.com/danielhkuo/deliberation/models"
	"github.com/danielhkuo/deliberation/notify"
	"github.com/danielhkuo/deliberation/store"
)

// NoticeNewCandidate is raised once each time a pushed change focuses a
// candidate the view has not shown yet.
const NoticeNewCandidate = "Now viewing a new candidate."

// Refresh triggers, used as metric labels.
const (
	TriggerStart     = "start"
	TriggerResume    = "resume"
	TriggerManual    = "manual"
	TriggerResync    = "resync"
	TriggerUnsettled = "unsettled"
)

var ErrClosed = errors.New("reconciler closed")

// Reader is the read side of the persistence gateway.
type Reader interface {
	GetSession(ctx context.Context, id string) (models.Session, error)
	GetSyncState(ctx context.Context, sessionID string) (models.SyncState, error)
	GetCandidate(ctx context.Context, id string) (models.Candidate, error)
	GetRole(ctx context.Context, id string) (models.Role, error)
}

// Ballots loads the caller's own votes and ballots.
type Ballots interface {
	MyVote(ctx context.Context, sessionID, candidateID, userID string) (models.MyVoteResponse, error)
	MyBallots(ctx context.Context, sessionID, userID string) ([]models.RoleBallot, error)
}

// CredentialSource returns a currently valid credential. It is asked again
// before every subscribe so a resumed view never presents an expired one.
type CredentialSource interface {
	Token(ctx context.Context) (string, error)
}

// Snapshot is one reconciled, client-visible state.
type Snapshot struct {
	Seq       uint64               `json:"seq"`
	SessionID string               `json:"session_id"`
	Status    models.SessionStatus `json:"status"`
	Sync      *models.SyncState    `json:"sync"`
	View      DerivedView          `json:"view"`
	Candidate *models.Candidate    `json:"candidate,omitempty"`
	RoleName  string               `json:"role_name,omitempty"`
	MyVote    *models.VoteValue    `json:"my_vote,omitempty"`
	Ballots   []models.RoleBallot  `json:"ballots,omitempty"`
	Notice    string               `json:"notice,omitempty"`
	At        time.Time            `json:"at"`
}

type Config struct {
	SessionID   string
	UserID      string
	Reader      Reader
	Ballots     Ballots
	Subscriber  notify.Subscriber
	Credentials CredentialSource
}

// Reconciler keeps one client view of one session consistent with the
// server. It owns its subscriptions and the last applied state; create one
// per view and Close it when the view goes away.
type Reconciler struct {
	cfg    Config
	logger zerolog.Logger

	mu            sync.Mutex
	closed        bool
	gen           uint64
	cancel        context.CancelFunc
	subs          []*notify.Subscription
	status        models.SessionStatus
	sync          *models.SyncState
	lastCandidate string
	seq           uint64
	current       Snapshot

	updates chan Snapshot
	wg      sync.WaitGroup
}

func New(cfg Config) *Reconciler {
	return &Reconciler{
		cfg:     cfg,
		logger:  logging.WithSessionID(cfg.SessionID).With().Str("component", "live").Logger(),
		updates: make(chan Snapshot, 1),
	}
}

// Updates delivers snapshots. Only the latest undelivered snapshot is kept,
// so a slow reader skips intermediate states but never blocks the
// reconciler. The channel is closed by Close.
func (r *Reconciler) Updates() <-chan Snapshot {
	return r.updates
}

// Current returns the last applied snapshot.
func (r *Reconciler) Current() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Start subscribes to both row scopes and then pulls the authoritative
// state, so nothing committed before the subscription is missed.
func (r *Reconciler) Start(ctx context.Context) error {
	return r.connect(ctx, TriggerStart)
}

// Resume drops the current subscriptions, subscribes again with a fresh
// credential and pulls. Used after the client was suspended or lost its
// connection.
func (r *Reconciler) Resume(ctx context.Context) error {
	return r.connect(ctx, TriggerResume)
}

// Refresh pulls the authoritative state and re-applies it unconditionally.
func (r *Reconciler) Refresh(ctx context.Context) (Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return Snapshot{}, ErrClosed
	}
	return r.pullLocked(ctx, TriggerManual)
}

// Close releases the subscriptions and closes Updates. Safe to call more
// than once.
func (r *Reconciler) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.disconnectLocked()
	close(r.updates)
	r.mu.Unlock()

	r.wg.Wait()
}

func (r *Reconciler) connect(ctx context.Context, trigger string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}
	r.disconnectLocked()

	pumpCtx, cancel := context.WithCancel(ctx)
	filters := []notify.Filter{
		{Table: notify.TableSyncState, SessionID: r.cfg.SessionID},
		{Table: notify.TableSession, SessionID: r.cfg.SessionID},
	}
	subs := make([]*notify.Subscription, 0, len(filters))
	for _, f := range filters {
		token, err := r.cfg.Credentials.Token(ctx)
		if err != nil {
			cancel()
			closeAll(subs)
			return fmt.Errorf("credential for %s: %w", f.Table, err)
		}
		sub, err := r.cfg.Subscriber.Subscribe(pumpCtx, token, f)
		if err != nil {
			cancel()
			closeAll(subs)
			return fmt.Errorf("subscribe %s: %w", f.Table, err)
		}
		subs = append(subs, sub)
	}

	r.gen++
	r.cancel = cancel
	r.subs = subs
	r.wg.Add(1)
	go r.pump(pumpCtx, r.gen, subs[0], subs[1])

	r.logger.Debug().Str("trigger", trigger).Uint64("generation", r.gen).Msg("subscribed")

	if _, err := r.pullLocked(ctx, trigger); err != nil {
		return err
	}
	return nil
}

func (r *Reconciler) disconnectLocked() {
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	closeAll(r.subs)
	r.subs = nil
	r.gen++
}

func closeAll(subs []*notify.Subscription) {
	for _, s := range subs {
		s.Close()
	}
}

func (r *Reconciler) pump(ctx context.Context, gen uint64, syncSub, sessSub *notify.Subscription) {
	defer r.wg.Done()

	syncEvents, sessEvents := syncSub.Events(), sessSub.Events()
	for syncEvents != nil || sessEvents != nil {
		select {
		case <-ctx.Done():
			return
		case c, ok := <-syncEvents:
			if !ok {
				syncEvents = nil
				continue
			}
			r.handle(ctx, gen, c)
		case c, ok := <-sessEvents:
			if !ok {
				sessEvents = nil
				continue
			}
			r.handle(ctx, gen, c)
		}
	}
}

// handle applies one pushed change. Changes from a previous generation of
// subscriptions are ignored.
func (r *Reconciler) handle(ctx context.Context, gen uint64, c notify.Change) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || gen != r.gen {
		return
	}

	var err error
	switch {
	case c.Op == notify.OpResync:
		_, err = r.pullLocked(ctx, TriggerResync)
	case c.Table == notify.TableSyncState:
		err = r.onSyncChange(ctx, c)
	case c.Table == notify.TableSession:
		err = r.onSessionChange(ctx, c)
	}
	if err != nil && ctx.Err() == nil {
		r.logger.Warn().Err(err).Str("table", string(c.Table)).Str("op", string(c.Op)).Msg("failed to apply change")
	}
}

func (r *Reconciler) onSyncChange(ctx context.Context, c notify.Change) error {
	next, err := store.DecodeSyncState(c.Row)
	if err != nil {
		// A row we cannot trust is replaced by one we can.
		_, perr := r.pullLocked(ctx, TriggerResync)
		return errors.Join(err, perr)
	}

	if applied := r.sync; applied != nil {
		if next.UpdatedAt.Before(applied.UpdatedAt) || next.SameView(*applied) {
			r.logger.Debug().Time("updated_at", next.UpdatedAt).Msg("stale or duplicate sync state discarded")
			return nil
		}
	}

	snap, err := r.applyLocked(ctx, r.status, &next, true)
	if err != nil {
		return err
	}
	return r.settleLocked(ctx, snap)
}

func (r *Reconciler) onSessionChange(ctx context.Context, c notify.Change) error {
	sess, err := store.DecodeSession(c.Row)
	if err != nil {
		_, perr := r.pullLocked(ctx, TriggerResync)
		return errors.Join(err, perr)
	}
	if sess.Status == r.status {
		return nil
	}

	snap, err := r.applyLocked(ctx, sess.Status, r.sync, true)
	if err != nil {
		return err
	}
	return r.settleLocked(ctx, snap)
}

// settleLocked pulls once more when a pushed change left status and view
// state disagreeing, in case the matching change was dropped.
func (r *Reconciler) settleLocked(ctx context.Context, snap Snapshot) error {
	if snap.View.Settled {
		return nil
	}
	_, err := r.pullLocked(ctx, TriggerUnsettled)
	return err
}

// pullLocked reads status and view state from the store and applies them.
func (r *Reconciler) pullLocked(ctx context.Context, trigger string) (Snapshot, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.ReconcileDuration)
	metrics.ReconcileRefreshes.WithLabelValues(trigger).Inc()

	var (
		sess  models.Session
		state *models.SyncState
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		sess, err = r.cfg.Reader.GetSession(gctx, r.cfg.SessionID)
		return err
	})
	g.Go(func() error {
		st, err := r.cfg.Reader.GetSyncState(gctx, r.cfg.SessionID)
		if errors.Is(err, models.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		state = &st
		return nil
	})
	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}

	return r.applyLocked(ctx, sess.Status, state, false)
}

// applyLocked runs the reducer, loads the detail the derived view needs and
// publishes the result. Pushed changes may raise the new-candidate notice;
// pulls only record the candidate.
func (r *Reconciler) applyLocked(ctx context.Context, status models.SessionStatus, state *models.SyncState, pushed bool) (Snapshot, error) {
	view := Derive(status, state)
	snap := Snapshot{
		SessionID: r.cfg.SessionID,
		Status:    status,
		Sync:      state,
		View:      view,
		At:        time.Now().UTC(),
	}

	switch view.Phase {
	case PhaseOne:
		if view.CandidateID != nil {
			if err := r.loadFocus(ctx, *view.CandidateID, &snap); err != nil {
				return Snapshot{}, err
			}
		}
	case PhaseTwo:
		ballots, err := r.cfg.Ballots.MyBallots(ctx, r.cfg.SessionID, r.cfg.UserID)
		if err != nil {
			return Snapshot{}, err
		}
		snap.Ballots = ballots
	}

	switch id := view.CandidateID; {
	case id == nil:
		r.lastCandidate = ""
	case *id != r.lastCandidate:
		if pushed {
			snap.Notice = NoticeNewCandidate
		}
		r.lastCandidate = *id
	}

	r.seq++
	snap.Seq = r.seq
	r.status = status
	r.sync = state
	r.current = snap
	r.emitLocked(snap)

	r.logger.Debug().
		Uint64("seq", snap.Seq).
		Str("status", string(status)).
		Str("phase", string(view.Phase)).
		Str("view_mode", string(view.ViewMode)).
		Bool("settled", view.Settled).
		Msg("view reconciled")
	return snap, nil
}

// loadFocus fills in the focused candidate, its role name and the caller's
// own vote.
func (r *Reconciler) loadFocus(ctx context.Context, candidateID string, snap *Snapshot) error {
	cand, err := r.cfg.Reader.GetCandidate(ctx, candidateID)
	if errors.Is(err, models.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	snap.Candidate = &cand

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		role, err := r.cfg.Reader.GetRole(gctx, cand.RoleID)
		if err != nil {
			return err
		}
		snap.RoleName = role.Name
		return nil
	})
	if r.cfg.UserID != "" {
		g.Go(func() error {
			mine, err := r.cfg.Ballots.MyVote(gctx, r.cfg.SessionID, candidateID, r.cfg.UserID)
			if err != nil {
				return err
			}
			snap.MyVote = mine.Vote
			return nil
		})
	}
	return g.Wait()
}

func (r *Reconciler) emitLocked(snap Snapshot) {
	select {
	case <-r.updates:
	default:
	}
	r.updates <- snap
}
