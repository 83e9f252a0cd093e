package api

import "net/http"

// RecomputeHandler triggers a batch pass.
type RecomputeHandler struct {
	deps RecomputeDependencies
}

// NewRecomputeHandler creates a new recompute handler.
func NewRecomputeHandler(deps RecomputeDependencies) *RecomputeHandler {
	return &RecomputeHandler{deps: deps}
}

// HandleRecompute handles POST /recompute. The pass runs under the request
// context so a dropped client stops it early; undone drivers are reported as
// skipped.
func (h *RecomputeHandler) HandleRecompute(w http.ResponseWriter, r *http.Request) {
	summary, err := h.deps.RecomputeAll(r.Context())
	if err != nil {
		writeError(w, r, "recompute", err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
