// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/danielhkuo/deliberation/auth"
	"github.com/danielhkuo/deliberation/cliparse"
	"github.com/danielhkuo/deliberation/live"
	"github.com/danielhkuo/deliberation/logging"
	"github.com/danielhkuo/deliberation/middleware"
	"github.com/danielhkuo/deliberation/notify"
)

// heartbeatInterval keeps idle streams open through proxies.
const heartbeatInterval = 15 * time.Second

// LiveHandler streams reconciled session state to one client per request.
type LiveHandler struct {
	reader  live.Reader
	ballots live.Ballots
	sub     notify.Subscriber
	cfg     cliparse.Config
}

func NewLiveHandler(reader live.Reader, ballots live.Ballots, sub notify.Subscriber, cfg cliparse.Config) *LiveHandler {
	return &LiveHandler{reader: reader, ballots: ballots, sub: sub, cfg: cfg}
}

func (h *LiveHandler) reconciler(r *http.Request) *live.Reconciler {
	id := middleware.Identity(r)
	return live.New(live.Config{
		SessionID:  r.PathValue("id"),
		UserID:     id.UserID,
		Reader:     h.reader,
		Ballots:    h.ballots,
		Subscriber: h.sub,
		Credentials: auth.TokenSource{
			Identity: id,
			Secret:   h.cfg.TokenSecret,
			TTL:      h.cfg.TokenTTL,
		},
	})
}

// Stream handles GET /sessions/{id}/live
// Server-sent events: one "snapshot" event per reconciled state. A client
// that reconnects gets a fresh subscription and an authoritative pull.
func (h *LiveHandler) Stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rc := h.reconciler(r)
	defer rc.Close()

	if err := rc.Start(ctx); err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	flusher := http.NewResponseController(w)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	logger := logging.WithSessionID(r.PathValue("id"))
	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
		case snap, ok := <-rc.Updates():
			if !ok {
				return
			}
			data, err := json.Marshal(snap)
			if err != nil {
				logger.Error().Err(err).Msg("failed to encode snapshot")
				return
			}
			if _, err := fmt.Fprintf(w, "id: %d\nevent: snapshot\ndata: %s\n\n", snap.Seq, data); err != nil {
				return
			}
		}
		if err := flusher.Flush(); err != nil {
			logger.Warn().Err(err).Msg("stream flush failed")
			return
		}
	}
}

// State handles GET /sessions/{id}/live/state
// One authoritative pull, for clients that cannot hold a stream open.
func (h *LiveHandler) State(w http.ResponseWriter, r *http.Request) {
	rc := h.reconciler(r)
	defer rc.Close()

	snap, err := rc.Refresh(r.Context())
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, snap)
}
