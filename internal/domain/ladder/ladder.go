// Package ladder holds the ordered set of tiers and guards its invariants.
//
// A Registry is immutable once built. Callers that need to swap the ladder at
// runtime go through a Holder, which publishes a new Registry atomically so an
// in-flight pass keeps the one it captured.
package ladder

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/okian/tierd/internal/domain/model"
)

var validate = validator.New()

// Registry is a validated, rank-ordered ladder.
type Registry struct {
	levels []model.Level
	byRank map[int]int
}

// New validates levels and returns a Registry ordered by rank.
// Any violation yields an error matching model.ErrConfiguration.
func New(levels []model.Level) (*Registry, error) {
	if len(levels) == 0 {
		return nil, model.NewConfigurationError("ladder has no levels")
	}

	sorted := make([]model.Level, len(levels))
	copy(sorted, levels)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Rank < sorted[j].Rank })

	names := make(map[string]struct{}, len(sorted))
	byRank := make(map[int]int, len(sorted))
	for i, lvl := range sorted {
		if err := validate.Struct(lvl); err != nil {
			return nil, model.NewConfigurationError("level %q: %s", lvl.Name, describe(err))
		}
		key := strings.ToLower(strings.TrimSpace(lvl.Name))
		if key == "" {
			return nil, model.NewConfigurationError("level at rank %d has a blank name", lvl.Rank)
		}
		if _, dup := names[key]; dup {
			return nil, model.NewConfigurationError("duplicate level name %q", lvl.Name)
		}
		names[key] = struct{}{}
		if _, dup := byRank[lvl.Rank]; dup {
			return nil, model.NewConfigurationError("duplicate rank %d", lvl.Rank)
		}
		byRank[lvl.Rank] = i

		if i == 0 {
			continue
		}
		prev := sorted[i-1]
		if lvl.MinMonthsService < prev.MinMonthsService {
			return nil, model.NewConfigurationError(
				"level %q requires %d months, fewer than %q (%d)",
				lvl.Name, lvl.MinMonthsService, prev.Name, prev.MinMonthsService)
		}
		if lvl.MinCareScore < prev.MinCareScore {
			return nil, model.NewConfigurationError(
				"level %q requires care score %d, lower than %q (%d)",
				lvl.Name, lvl.MinCareScore, prev.Name, prev.MinCareScore)
		}
	}

	return &Registry{levels: sorted, byRank: byRank}, nil
}

// MustNew is New for static ladders known to be valid.
func MustNew(levels []model.Level) *Registry {
	r, err := New(levels)
	if err != nil {
		panic(err)
	}
	return r
}

// Default returns a Registry over model.DefaultLadder.
func Default() *Registry {
	return MustNew(model.DefaultLadder())
}

// Levels returns the ladder ascending by rank.
func (r *Registry) Levels() []model.Level {
	out := make([]model.Level, len(r.levels))
	copy(out, r.levels)
	return out
}

// Next returns the level with the smallest rank strictly greater than rank.
func (r *Registry) Next(rank int) (model.Level, bool) {
	i := sort.Search(len(r.levels), func(i int) bool { return r.levels[i].Rank > rank })
	if i == len(r.levels) {
		return model.Level{}, false
	}
	return r.levels[i], true
}

// Lookup returns the level with exactly the given rank.
func (r *Registry) Lookup(rank int) (model.Level, bool) {
	i, ok := r.byRank[rank]
	if !ok {
		return model.Level{}, false
	}
	return r.levels[i], true
}

// Lowest is the rank new drivers start at.
func (r *Registry) Lowest() model.Level { return r.levels[0] }

// Highest is the terminal rung.
func (r *Registry) Highest() model.Level { return r.levels[len(r.levels)-1] }

// Len returns the number of levels.
func (r *Registry) Len() int { return len(r.levels) }

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param()))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s is %s", fe.Field(), fe.Tag()))
	}
	return strings.Join(parts, ", ")
}
