package identity

import (
	"fmt"

	"github.com/kozaktomas/face-sentry/internal/config"
	"github.com/kozaktomas/face-sentry/internal/store"
)

// Match is a matcher verdict for one query embedding.
type Match struct {
	PersonID   int64
	Name       string
	Similarity float64
	BankSize   int

	// MeetsFloor reports whether the similarity clears the global
	// recognition floor used for high-confidence decisions such as
	// bank reinforcement.
	MeetsFloor bool

	// HighConfidence distinguishes a confident match from a tentative
	// one for display purposes.
	HighConfidence bool
}

// Matcher scores a query embedding against every person's bank and applies
// the adaptive acceptance threshold: the more embeddings a candidate has,
// the tighter the bar.
type Matcher struct {
	gallery *Gallery
	dim     int
	cfg     config.RecognitionConfig
}

// NewMatcher creates a matcher over the given gallery for vectors of
// dimension dim.
func NewMatcher(gallery *Gallery, dim int, cfg config.RecognitionConfig) *Matcher {
	return &Matcher{gallery: gallery, dim: dim, cfg: cfg}
}

// Threshold returns the adaptive acceptance threshold for a bank of n
// embeddings.
func (m *Matcher) Threshold(n int) float64 {
	return m.cfg.Adaptive.Threshold(n)
}

// Match returns the best-matching person for the query, or nil when no
// person exists or the best similarity falls below the candidate's
// adaptive threshold.
func (m *Matcher) Match(query []float32) (*Match, error) {
	if len(query) != m.dim {
		return nil, fmt.Errorf("%w: got %d, want %d", store.ErrDimensionMismatch, len(query), m.dim)
	}

	b, ok := m.gallery.bestMatch(query)
	if !ok {
		return nil, nil
	}
	if b.similarity < m.Threshold(b.bankSize) {
		return nil, nil
	}

	return &Match{
		PersonID:       b.personID,
		Name:           b.name,
		Similarity:     b.similarity,
		BankSize:       b.bankSize,
		MeetsFloor:     b.similarity >= m.cfg.RecognitionThreshold,
		HighConfidence: b.similarity >= m.cfg.HighConfidenceThreshold,
	}, nil
}
