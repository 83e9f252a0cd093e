package promotion

import (
	"errors"

	"github.com/okian/tierd/internal/domain/model"
)

// maxAttempts is the initial attempt plus one optimistic retry.
const maxAttempts = 2

// Metric source labels.
const (
	SourceSingle = "single"
	SourceBatch  = "batch"
)

// Rejection reasons used as metric labels.
const (
	reasonNotEligible = "not_eligible"
	reasonMaxLevel    = "max_level"
	reasonConflict    = "conflict"
	reasonInactive    = "inactive"
	reasonOther       = "error"
)

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, model.ErrNotEligible):
		return reasonNotEligible
	case errors.Is(err, model.ErrAlreadyMaxLevel):
		return reasonMaxLevel
	case errors.Is(err, model.ErrConcurrentModification):
		return reasonConflict
	case errors.Is(err, model.ErrInactive):
		return reasonInactive
	default:
		return reasonOther
	}
}
