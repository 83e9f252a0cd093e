package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/okian/tierd/internal/domain/model"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest = errors.New("bad request")
	ErrBadPath    = fmt.Errorf("%w: missing driver id", ErrBadRequest)
)

// Error codes returned in the error body.
const (
	codeBadRequest         = "bad_request"
	codeValidation         = "validation_error"
	codeConfiguration      = "invalid_ladder"
	codeNotFound           = "not_found"
	codeAlreadyExists      = "already_exists"
	codeInactive           = "inactive"
	codeNotEligible        = "not_eligible"
	codeAlreadyMaxLevel    = "already_max_level"
	codeConcurrentModified = "concurrent_modification"
	codeInternal           = "internal_error"
)

type errorResponse struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Reasons []string `json:"reasons,omitempty"`
}

// classify maps a domain error to its HTTP status and error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, codeBadRequest
	case errors.Is(err, model.ErrValidation):
		return http.StatusBadRequest, codeValidation
	case errors.Is(err, model.ErrConfiguration):
		return http.StatusUnprocessableEntity, codeConfiguration
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound, codeNotFound
	case errors.Is(err, model.ErrAlreadyExists):
		return http.StatusConflict, codeAlreadyExists
	case errors.Is(err, model.ErrInactive):
		return http.StatusConflict, codeInactive
	case errors.Is(err, model.ErrNotEligible):
		return http.StatusConflict, codeNotEligible
	case errors.Is(err, model.ErrAlreadyMaxLevel):
		return http.StatusConflict, codeAlreadyMaxLevel
	case errors.Is(err, model.ErrConcurrentModification):
		return http.StatusConflict, codeConcurrentModified
	default:
		return http.StatusInternalServerError, codeInternal
	}
}
