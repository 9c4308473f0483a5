// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"

	"github.com/danielhkuo/deliberation/middleware"
	"github.com/danielhkuo/deliberation/models"
	"github.com/danielhkuo/deliberation/voting"
)

// VotingHandler serves participant writes and reads of their own votes.
// The user id always comes from the authenticated identity, never the body.
type VotingHandler struct {
	engine *voting.Engine
}

func NewVotingHandler(engine *voting.Engine) *VotingHandler {
	return &VotingHandler{engine: engine}
}

// CastVote handles POST /sessions/{id}/votes
func (h *VotingHandler) CastVote(w http.ResponseWriter, r *http.Request) {
	var req models.CastVoteRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	vote, err := h.engine.CastVote(r.Context(), r.PathValue("id"), req.CandidateID, middleware.Identity(r).UserID, req.Vote)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, vote)
}

// MyVote handles GET /sessions/{id}/votes/{candidateId}
func (h *VotingHandler) MyVote(w http.ResponseWriter, r *http.Request) {
	res, err := h.engine.MyVote(r.Context(), r.PathValue("id"), r.PathValue("candidateId"), middleware.Identity(r).UserID)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, res)
}

// ToggleSelection handles POST /sessions/{id}/roles/{roleId}/selections
// A toggle refused because the ballot is full answers 200 with applied=false.
func (h *VotingHandler) ToggleSelection(w http.ResponseWriter, r *http.Request) {
	var req models.ToggleSelectionRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	res, err := h.engine.ToggleSelection(r.Context(), r.PathValue("id"), r.PathValue("roleId"), middleware.Identity(r).UserID, req.CandidateID)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, res)
}

// ToggleSubmit handles POST /sessions/{id}/roles/{roleId}/submit
func (h *VotingHandler) ToggleSubmit(w http.ResponseWriter, r *http.Request) {
	res, err := h.engine.ToggleSubmit(r.Context(), r.PathValue("id"), r.PathValue("roleId"), middleware.Identity(r).UserID)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, res)
}

// MyBallots handles GET /sessions/{id}/ballots
func (h *VotingHandler) MyBallots(w http.ResponseWriter, r *http.Request) {
	ballots, err := h.engine.MyBallots(r.Context(), r.PathValue("id"), middleware.Identity(r).UserID)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, ballots)
}
