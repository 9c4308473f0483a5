// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"net/http"

	"github.com/danielhkuo/deliberation/cliparse"
	"github.com/danielhkuo/deliberation/handlers"
	"github.com/danielhkuo/deliberation/metrics"
	"github.com/danielhkuo/deliberation/middleware"
	"github.com/danielhkuo/deliberation/notify"
	"github.com/danielhkuo/deliberation/session"
	"github.com/danielhkuo/deliberation/store"
	"github.com/danielhkuo/deliberation/voting"
)

func NewRouter(st *store.Store, sub notify.Subscriber, cfg cliparse.Config) *http.ServeMux {
	mux := http.NewServeMux()

	ctrl := session.NewController(st)
	engine := voting.NewEngine(st)

	sessionHandler := handlers.NewSessionHandler(ctrl)
	votingHandler := handlers.NewVotingHandler(engine)
	resultsHandler := handlers.NewResultsHandler(engine)
	liveHandler := handlers.NewLiveHandler(st, engine, sub, cfg)

	authn := middleware.Authenticate(cfg.TokenSecret)
	limiter := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP)

	// participant wraps an operation with logging, metrics, auth and rate limiting
	participant := func(op string, h http.HandlerFunc) http.HandlerFunc {
		return middleware.WithLogging(middleware.Instrument(op, authn(limiter.Limit(h))))
	}
	facilitator := func(op string, h http.HandlerFunc) http.HandlerFunc {
		return participant(op, middleware.RequireFacilitator(h))
	}

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	mux.Handle("GET /metrics", metrics.Handler())

	// Session setup and navigation (facilitator)
	mux.HandleFunc("POST /sessions", facilitator("create_session", sessionHandler.CreateSession))
	mux.HandleFunc("POST /sessions/{id}/roles", facilitator("add_role", sessionHandler.AddRole))
	mux.HandleFunc("POST /sessions/{id}/candidates", facilitator("add_candidate", sessionHandler.AddCandidate))
	mux.HandleFunc("POST /sessions/{id}/status", facilitator("set_status", sessionHandler.SetStatus))
	mux.HandleFunc("POST /sessions/{id}/focus", facilitator("set_focus", sessionHandler.SetFocus))
	mux.HandleFunc("POST /sessions/{id}/step", facilitator("step_candidate", sessionHandler.Step))
	mux.HandleFunc("POST /candidates/{id}/advance", facilitator("set_advanced", sessionHandler.SetAdvanced))
	mux.HandleFunc("GET /sessions/{id}/results", facilitator("results", resultsHandler.GetResults))

	// Session reads and participant writes
	mux.HandleFunc("GET /sessions/{id}", participant("get_session", sessionHandler.GetSession))
	mux.HandleFunc("POST /sessions/{id}/votes", participant("cast_vote", votingHandler.CastVote))
	mux.HandleFunc("GET /sessions/{id}/votes/{candidateId}", participant("my_vote", votingHandler.MyVote))
	mux.HandleFunc("POST /sessions/{id}/roles/{roleId}/selections", participant("toggle_selection", votingHandler.ToggleSelection))
	mux.HandleFunc("POST /sessions/{id}/roles/{roleId}/submit", participant("toggle_submit", votingHandler.ToggleSubmit))
	mux.HandleFunc("GET /sessions/{id}/ballots", participant("my_ballots", votingHandler.MyBallots))

	// Live view
	mux.HandleFunc("GET /sessions/{id}/live", middleware.WithLogging(authn(liveHandler.Stream)))
	mux.HandleFunc("GET /sessions/{id}/live/state", participant("live_state", liveHandler.State))

	// Root endpoint
	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("deliberation API v1"))
	})

	return mux
}
