package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/okian/tierd/internal/domain/model"
	"github.com/okian/tierd/pkg/logger"
	"github.com/okian/tierd/pkg/metrics"
)

const maxBodyBytes = 1 << 20

var validate = validator.New(validator.WithRequiredStructEnabled())

// decode reads a JSON body into v and validates its tags.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %s", ErrBadRequest, err.Error())
	}
	if err := validate.Struct(v); err != nil {
		return fieldError(err)
	}
	return nil
}

func fieldError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("%w: %s", ErrBadRequest, err.Error())
	}
	fe := verrs[0]
	reason := "failed " + fe.Tag()
	if fe.Param() != "" {
		reason += "=" + fe.Param()
	}
	return model.NewValidationError(strings.ToLower(fe.Field()), reason)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError renders err with the status its kind maps to. Ineligible
// promotions carry every unmet reason.
func writeError(w http.ResponseWriter, r *http.Request, endpoint string, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		metrics.RecordErrorByComponent("api", endpoint)
		logger.Named("api").Error(r.Context(), "request failed",
			logger.String("endpoint", endpoint),
			logger.String("method", r.Method),
			logger.Error(err),
		)
	}
	writeJSON(w, status, errorResponse{
		Code:    code,
		Message: err.Error(),
		Reasons: model.UnmetReasons(err),
	})
}
