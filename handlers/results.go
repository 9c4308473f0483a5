// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"

	"github.com/danielhkuo/deliberation/middleware"
	"github.com/danielhkuo/deliberation/voting"
)

type ResultsHandler struct {
	engine *voting.Engine
}

func NewResultsHandler(engine *voting.Engine) *ResultsHandler {
	return &ResultsHandler{engine: engine}
}

// GetResults handles GET /sessions/{id}/results
// Facilitator only. Counts are live; nothing is sealed.
func (h *ResultsHandler) GetResults(w http.ResponseWriter, r *http.Request) {
	res, err := h.engine.Results(r.Context(), r.PathValue("id"))
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, res)
}
