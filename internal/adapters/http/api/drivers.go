package api

import (
	"net/http"
	"strings"
	"time"
)

// enrollRequest mirrors the OpenAPI schema for POST /drivers.
type enrollRequest struct {
	DriverID         string     `json:"driver_id" validate:"required,max=128"`
	EnrolledAt       *time.Time `json:"enrolled_at"`
	OtherSignalScore int        `json:"other_signal_score" validate:"gte=0,lte=100"`
}

// evaluationRequest mirrors the OpenAPI schema for POST /drivers/{id}/evaluation.
type evaluationRequest struct {
	Evaluation   *int   `json:"evaluation" validate:"required,gte=0,lte=100"`
	SubmissionID string `json:"submission_id" validate:"max=128"`
}

// signalRequest mirrors the OpenAPI schema for PUT /drivers/{id}/signal.
type signalRequest struct {
	Score *int `json:"score" validate:"required,gte=0,lte=100"`
}

// DriversHandler serves the per-driver routes.
type DriversHandler struct {
	deps DriverDependencies
}

// NewDriversHandler creates a new drivers handler.
func NewDriversHandler(deps DriverDependencies) *DriversHandler {
	return &DriversHandler{deps: deps}
}

// HandleEnroll handles POST /drivers.
func (h *DriversHandler) HandleEnroll(w http.ResponseWriter, r *http.Request) {
	var req enrollRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, "drivers", err)
		return
	}
	var enrolledAt time.Time
	if req.EnrolledAt != nil {
		enrolledAt = *req.EnrolledAt
	}
	p, err := h.deps.Enroll(r.Context(), req.DriverID, enrolledAt, req.OtherSignalScore)
	if err != nil {
		writeError(w, r, "drivers", err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// HandleGetDriver handles GET /drivers/{id}.
func (h *DriversHandler) HandleGetDriver(w http.ResponseWriter, r *http.Request) {
	id, ok := driverID(w, r, "driver")
	if !ok {
		return
	}
	p, err := h.deps.Driver(r.Context(), id)
	if err != nil {
		writeError(w, r, "driver", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleDeactivate handles DELETE /drivers/{id}.
func (h *DriversHandler) HandleDeactivate(w http.ResponseWriter, r *http.Request) {
	id, ok := driverID(w, r, "driver")
	if !ok {
		return
	}
	if err := h.deps.Deactivate(r.Context(), id); err != nil {
		writeError(w, r, "driver", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleGetProgression handles GET /drivers/{id}/progression.
func (h *DriversHandler) HandleGetProgression(w http.ResponseWriter, r *http.Request) {
	id, ok := driverID(w, r, "progression")
	if !ok {
		return
	}
	report, err := h.deps.GetProgression(r.Context(), id)
	if err != nil {
		writeError(w, r, "progression", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// HandleSubmitEvaluation handles POST /drivers/{id}/evaluation.
func (h *DriversHandler) HandleSubmitEvaluation(w http.ResponseWriter, r *http.Request) {
	id, ok := driverID(w, r, "evaluation")
	if !ok {
		return
	}
	var req evaluationRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, "evaluation", err)
		return
	}
	res, err := h.deps.SubmitEvaluation(r.Context(), id, *req.Evaluation, req.SubmissionID)
	if err != nil {
		writeError(w, r, "evaluation", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleUpdateSignal handles PUT /drivers/{id}/signal.
func (h *DriversHandler) HandleUpdateSignal(w http.ResponseWriter, r *http.Request) {
	id, ok := driverID(w, r, "signal")
	if !ok {
		return
	}
	var req signalRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, "signal", err)
		return
	}
	res, err := h.deps.UpdateSignal(r.Context(), id, *req.Score)
	if err != nil {
		writeError(w, r, "signal", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandlePromote handles POST /drivers/{id}/promote.
func (h *DriversHandler) HandlePromote(w http.ResponseWriter, r *http.Request) {
	id, ok := driverID(w, r, "promote")
	if !ok {
		return
	}
	res, err := h.deps.Promote(r.Context(), id)
	if err != nil {
		writeError(w, r, "promote", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func driverID(w http.ResponseWriter, r *http.Request, endpoint string) (string, bool) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeError(w, r, endpoint, ErrBadPath)
		return "", false
	}
	return id, true
}
