// Package scoring combines a partner evaluation with the external signal into
// a single 0-100 care score.
package scoring

import (
	"github.com/okian/tierd/internal/domain/model"
)

// Default weights, in percent.
const (
	defaultPartnerWeight = 15
	defaultSignalWeight  = 85
	totalWeight          = 100
)

// Option applies a configuration option to the WeightedScorer.
type Option func(*WeightedScorer)

// WithWeights sets the partner and signal weights. Pairs that do not sum to
// 100 or contain a negative weight are ignored.
func WithWeights(partner, signal int) Option {
	return func(s *WeightedScorer) {
		if partner >= 0 && signal >= 0 && partner+signal == totalWeight {
			s.partnerWeight = partner
			s.signalWeight = signal
		}
	}
}

// Scorer computes a care score.
type Scorer interface {
	// CareScore returns the care score for the inputs. A nil partner
	// evaluation means the driver has not been evaluated yet.
	CareScore(partner *int, other int) (int, error)
}

// WeightedScorer implements Scorer as a rounded weighted sum.
type WeightedScorer struct {
	partnerWeight int
	signalWeight  int
}

// NewWeightedScorer creates a scorer with 15/85 weights unless overridden.
func NewWeightedScorer(opts ...Option) *WeightedScorer {
	s := &WeightedScorer{
		partnerWeight: defaultPartnerWeight,
		signalWeight:  defaultSignalWeight,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CareScore computes round(wp*partner + ws*other) clamped to [0,100].
// Halves round up. Integer arithmetic keeps the result exact at the boundaries.
func (s *WeightedScorer) CareScore(partner *int, other int) (int, error) {
	if err := ValidateScore("other_signal_score", other); err != nil {
		return 0, err
	}
	pe := 0
	if partner != nil {
		if err := ValidateScore("partner_evaluation", *partner); err != nil {
			return 0, err
		}
		pe = *partner
	}

	score := (s.partnerWeight*pe + s.signalWeight*other + totalWeight/2) / totalWeight
	return clamp(score), nil
}

// Weights returns the partner and signal weights in percent.
func (s *WeightedScorer) Weights() (partner, signal int) {
	return s.partnerWeight, s.signalWeight
}

var defaultScorer = NewWeightedScorer()

// CareScore computes the care score with the default weights.
func CareScore(partner *int, other int) (int, error) {
	return defaultScorer.CareScore(partner, other)
}

// ValidateScore rejects values outside [0,100].
func ValidateScore(field string, v int) error {
	if v < model.MinScore || v > model.MaxScore {
		return model.NewValidationError(field, "must be within [0,100]")
	}
	return nil
}

func clamp(v int) int {
	if v < model.MinScore {
		return model.MinScore
	}
	if v > model.MaxScore {
		return model.MaxScore
	}
	return v
}
