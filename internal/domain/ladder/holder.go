package ladder

import (
	"sync/atomic"

	"github.com/okian/tierd/internal/domain/model"
)

// Holder publishes the current Registry. Readers capture it once per pass.
type Holder struct {
	current atomic.Pointer[Registry]
}

// NewHolder returns a Holder serving r.
func NewHolder(r *Registry) *Holder {
	h := &Holder{}
	h.current.Store(r)
	return h
}

// Current returns the Registry in effect now.
func (h *Holder) Current() *Registry {
	return h.current.Load()
}

// Replace validates levels and swaps them in. The old Registry stays valid for
// whoever already holds it.
func (h *Holder) Replace(levels []model.Level) (*Registry, error) {
	r, err := New(levels)
	if err != nil {
		return nil, err
	}
	h.current.Store(r)
	return r, nil
}

// Swap installs an already validated Registry.
func (h *Holder) Swap(r *Registry) {
	h.current.Store(r)
}
