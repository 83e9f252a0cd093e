package repository

import (
	"errors"

	"github.com/okian/tierd/internal/domain/model"
)

// Sentinel kinds for store errors. The first three are the domain kinds so
// callers can match either.
var (
	ErrNotFound        = model.ErrNotFound
	ErrAlreadyExists   = model.ErrAlreadyExists
	ErrVersionConflict = model.ErrVersionConflict
	ErrClosed          = errors.New("store closed")
	ErrUnknownDriver   = errors.New("unknown store driver")
)
