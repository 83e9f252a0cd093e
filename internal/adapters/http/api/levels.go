package api

import (
	"net/http"

	"github.com/okian/tierd/internal/domain/model"
)

// levelsRequest mirrors the OpenAPI schema for PUT /levels. Field checks run
// here; ladder-wide rules are enforced by the registry.
type levelsRequest struct {
	Levels []model.Level `json:"levels" validate:"required,min=1,dive"`
}

type levelsResponse struct {
	Levels []model.Level `json:"levels"`
}

// LevelsHandler serves the ladder routes.
type LevelsHandler struct {
	deps LadderDependencies
}

// NewLevelsHandler creates a new levels handler.
func NewLevelsHandler(deps LadderDependencies) *LevelsHandler {
	return &LevelsHandler{deps: deps}
}

// HandleGetLevels handles GET /levels.
func (h *LevelsHandler) HandleGetLevels(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, levelsResponse{Levels: h.deps.Levels()})
}

// HandleReplaceLevels handles PUT /levels.
func (h *LevelsHandler) HandleReplaceLevels(w http.ResponseWriter, r *http.Request) {
	var req levelsRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, "levels", err)
		return
	}
	levels, err := h.deps.ReplaceLadder(r.Context(), req.Levels)
	if err != nil {
		writeError(w, r, "levels", err)
		return
	}
	writeJSON(w, http.StatusOK, levelsResponse{Levels: levels})
}
