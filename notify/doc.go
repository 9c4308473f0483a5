// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package notify delivers row change notifications for the shared view state
and session rows.

# Broker

Broker is the in-process fan-out. The store publishes a Change after each
committed write to sync_state or deliberation_session; live views subscribe
with a credential and a Filter:

	sub, err := broker.Subscribe(ctx, token, notify.Filter{
		Table:     notify.TableSyncState,
		SessionID: sessionID,
	})
	defer sub.Close()
	for c := range sub.Events() { ... }

Delivery is best effort. A full subscriber queue drops the change; there is
no ordering guarantee between tables. Consumers are expected to pull the
authoritative rows when they (re)subscribe and on OpResync.

# PostgreSQL

PGBridge publishes through pg_notify and LISTENs on the same channel with a
pq.Listener, so changes made on one server instance reach subscribers on all
of them. After the listener reconnects it dispatches OpResync.
*/
package notify
