// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/danielhkuo/deliberation/logging"
	"github.com/danielhkuo/deliberation/metrics"
)

// Table names a row scope that produces change notifications.
type Table string

const (
	TableSyncState Table = "sync_state"
	TableSession   Table = "deliberation_session"
)

// Op is the kind of row change.
type Op string

const (
	OpInsert Op = "INSERT"
	OpUpdate Op = "UPDATE"
	OpDelete Op = "DELETE"

	// OpResync tells subscribers that changes may have been lost and an
	// authoritative pull is required. It matches every filter.
	OpResync Op = "RESYNC"
)

// subscriberBuffer is the per-subscription queue depth. A full queue drops
// the change; subscribers recover through resync.
const subscriberBuffer = 32

var (
	ErrUnauthorized = errors.New("subscription credential rejected")
	ErrClosed       = errors.New("broker closed")
)

// Change is one row change notification carrying the new row image.
type Change struct {
	Table     Table           `json:"table"`
	Op        Op              `json:"op"`
	SessionID string          `json:"session_id"`
	Row       json.RawMessage `json:"row,omitempty"`
	At        time.Time       `json:"at"`
}

// Filter selects changes for one table of one session.
type Filter struct {
	Table     Table
	SessionID string
}

// Match reports whether the change belongs to the filter's scope.
func (f Filter) Match(c Change) bool {
	if c.Op == OpResync {
		return c.SessionID == "" || c.SessionID == f.SessionID
	}
	return c.Table == f.Table && c.SessionID == f.SessionID
}

// Publisher is implemented by anything that can announce a committed change.
type Publisher interface {
	Publish(ctx context.Context, c Change) error
}

// Subscriber hands out filtered change streams.
type Subscriber interface {
	Subscribe(ctx context.Context, credential string, f Filter) (*Subscription, error)
}

// Authorizer validates a subscription credential.
type Authorizer func(credential string) error

// Subscription is a single filtered change stream. Close releases it; it is
// also released when the context passed to Subscribe is done.
type Subscription struct {
	id     string
	filter Filter
	ch     chan Change
	broker *Broker
	once   sync.Once
	stop   func() bool
}

// ID returns the subscription handle id.
func (s *Subscription) ID() string { return s.id }

// Filter returns the subscription scope.
func (s *Subscription) Filter() Filter { return s.filter }

// Events returns the change channel. It is closed after Close.
func (s *Subscription) Events() <-chan Change { return s.ch }

// Close unsubscribes. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		if s.stop != nil {
			s.stop()
		}
		s.broker.remove(s)
	})
}

// Broker fans committed changes out to in-process subscriptions.
type Broker struct {
	mu        sync.RWMutex
	subs      map[*Subscription]struct{}
	authorize Authorizer
	closed    bool
	logger    zerolog.Logger
}

// NewBroker creates a broker. A nil authorizer accepts any non-empty credential.
func NewBroker(authorize Authorizer) *Broker {
	return &Broker{
		subs:      make(map[*Subscription]struct{}),
		authorize: authorize,
		logger:    logging.WithComponent("notify"),
	}
}

// Subscribe registers a filtered subscription after checking the credential.
func (b *Broker) Subscribe(ctx context.Context, credential string, f Filter) (*Subscription, error) {
	if credential == "" {
		return nil, ErrUnauthorized
	}
	if b.authorize != nil {
		if err := b.authorize(credential); err != nil {
			return nil, errors.Join(ErrUnauthorized, err)
		}
	}

	sub := &Subscription{
		id:     uuid.NewString(),
		filter: f,
		ch:     make(chan Change, subscriberBuffer),
		broker: b,
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrClosed
	}
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	sub.stop = context.AfterFunc(ctx, sub.Close)
	metrics.LiveSubscribers.Inc()

	b.logger.Debug().
		Str("subscription_id", sub.id).
		Str("table", string(f.Table)).
		Str("session_id", f.SessionID).
		Msg("subscribed")
	return sub, nil
}

// Publish delivers the change to matching subscribers.
func (b *Broker) Publish(_ context.Context, c Change) error {
	b.Dispatch(c)
	return nil
}

// Dispatch fans a change out without blocking on slow subscribers.
func (b *Broker) Dispatch(c Change) {
	if c.At.IsZero() {
		c.At = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subs {
		if !sub.filter.Match(c) {
			continue
		}
		select {
		case sub.ch <- c:
		default:
			metrics.NotificationsDropped.Inc()
			b.logger.Warn().
				Str("subscription_id", sub.id).
				Str("table", string(c.Table)).
				Msg("subscriber buffer full, change dropped")
		}
	}
}

// SubscriberCount returns the number of active subscriptions
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close releases every subscription and rejects new ones.
func (b *Broker) Close() {
	b.mu.Lock()
	b.closed = true
	subs := make([]*Subscription, 0, len(b.subs))
	for sub := range b.subs {
		subs = append(subs, sub)
	}
	b.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
}

func (b *Broker) remove(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[sub]; !ok {
		return
	}
	delete(b.subs, sub)
	close(sub.ch)
	metrics.LiveSubscribers.Dec()
}
