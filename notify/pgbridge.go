// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package notify

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/danielhkuo/deliberation/logging"
)

const (
	// DefaultChannel is the LISTEN/NOTIFY channel used for row changes.
	DefaultChannel = "deliberation_changes"

	minReconnect = 10 * time.Second
	maxReconnect = time.Minute
	pingInterval = 90 * time.Second
)

// PGBridge publishes changes through PostgreSQL NOTIFY so every server
// instance sees them, and feeds what it LISTENs to into a local Broker.
type PGBridge struct {
	db      *sql.DB
	connStr string
	channel string
	broker  *Broker
	logger  zerolog.Logger
}

// NewPGBridge creates a bridge. Call Run to start listening.
func NewPGBridge(db *sql.DB, connStr, channel string, broker *Broker) *PGBridge {
	if channel == "" {
		channel = DefaultChannel
	}
	return &PGBridge{
		db:      db,
		connStr: connStr,
		channel: channel,
		broker:  broker,
		logger:  logging.WithComponent("pgbridge"),
	}
}

// Publish sends the change with pg_notify. Delivery to local subscribers
// happens when the notification comes back through LISTEN.
func (p *PGBridge) Publish(ctx context.Context, c Change) error {
	if c.At.IsZero() {
		c.At = time.Now()
	}
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode change: %w", err)
	}
	if _, err := p.db.ExecContext(ctx, `SELECT pg_notify($1, $2)`, p.channel, string(payload)); err != nil {
		return fmt.Errorf("failed to notify: %w", err)
	}
	return nil
}

// Run listens until ctx is done. After a dropped connection is restored a
// resync change is dispatched, since notifications sent meanwhile are lost.
func (p *PGBridge) Run(ctx context.Context) error {
	listener := pq.NewListener(p.connStr, minReconnect, maxReconnect, func(ev pq.ListenerEventType, err error) {
		switch ev {
		case pq.ListenerEventDisconnected:
			p.logger.Warn().Err(err).Msg("listener disconnected")
		case pq.ListenerEventReconnected:
			p.logger.Info().Msg("listener reconnected")
		case pq.ListenerEventConnectionAttemptFailed:
			p.logger.Warn().Err(err).Msg("listener connection attempt failed")
		}
	})
	defer listener.Close()

	if err := listener.Listen(p.channel); err != nil {
		return fmt.Errorf("failed to listen on %s: %w", p.channel, err)
	}
	p.logger.Info().Str("channel", p.channel).Msg("listening for changes")

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case n, ok := <-listener.Notify:
			if !ok {
				return nil
			}
			if n == nil {
				// Reconnected
				p.broker.Dispatch(Change{Op: OpResync})
				continue
			}
			var c Change
			if err := json.Unmarshal([]byte(n.Extra), &c); err != nil {
				p.logger.Error().Err(err).Msg("failed to decode notification")
				continue
			}
			p.broker.Dispatch(c)
		case <-ticker.C:
			go func() {
				if err := listener.Ping(); err != nil {
					p.logger.Warn().Err(err).Msg("listener ping failed")
				}
			}()
		}
	}
}
