// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"

	"github.com/danielhkuo/deliberation/middleware"
	"github.com/danielhkuo/deliberation/models"
	"github.com/danielhkuo/deliberation/session"
)

// SessionHandler serves session setup and facilitator navigation.
type SessionHandler struct {
	ctrl *session.Controller
}

func NewSessionHandler(ctrl *session.Controller) *SessionHandler {
	return &SessionHandler{ctrl: ctrl}
}

// CreateSession handles POST /sessions
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req models.CreateSessionRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	sess, err := h.ctrl.CreateSession(r.Context(), req.Name, middleware.Identity(r).UserID)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	middleware.JSONResponse(w, http.StatusCreated, sess)
}

// GetSession handles GET /sessions/{id}
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	detail, err := h.ctrl.GetSession(r.Context(), r.PathValue("id"))
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, detail)
}

// AddRole handles POST /sessions/{id}/roles
func (h *SessionHandler) AddRole(w http.ResponseWriter, r *http.Request) {
	var req models.AddRoleRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	role, err := h.ctrl.AddRole(r.Context(), r.PathValue("id"), req)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	middleware.JSONResponse(w, http.StatusCreated, role)
}

// AddCandidate handles POST /sessions/{id}/candidates
func (h *SessionHandler) AddCandidate(w http.ResponseWriter, r *http.Request) {
	var req models.AddCandidateRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	cand, err := h.ctrl.AddCandidate(r.Context(), r.PathValue("id"), req)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	middleware.JSONResponse(w, http.StatusCreated, cand)
}

// SetStatus handles POST /sessions/{id}/status
func (h *SessionHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	var req models.SetStatusRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	res, err := h.ctrl.SetStatus(r.Context(), r.PathValue("id"), req.Status, middleware.Identity(r).UserID)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, res)
}

// SetFocus handles POST /sessions/{id}/focus
// A null candidate_id returns everyone to the role list.
func (h *SessionHandler) SetFocus(w http.ResponseWriter, r *http.Request) {
	var req models.SetFocusRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.RoleID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "role_id is required")
		return
	}

	view, err := h.ctrl.SetFocusedCandidate(r.Context(), r.PathValue("id"), req.RoleID, req.CandidateID, middleware.Identity(r).UserID)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, view)
}

// Step handles POST /sessions/{id}/step
func (h *SessionHandler) Step(w http.ResponseWriter, r *http.Request) {
	var req models.StepRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	view, err := h.ctrl.StepCandidate(r.Context(), r.PathValue("id"), req.Direction, middleware.Identity(r).UserID)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, view)
}

// SetAdvanced handles POST /candidates/{id}/advance
func (h *SessionHandler) SetAdvanced(w http.ResponseWriter, r *http.Request) {
	var req models.SetAdvancedRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	cand, err := h.ctrl.SetAdvancedToPhase2(r.Context(), r.PathValue("id"), req.Advanced)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, cand)
}
