package identity

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrRegistrationTooSoon is returned when a registration attempt for the
// same resolved identity arrives within the cooldown window. Callers should
// retry later or silently drop the attempt.
var ErrRegistrationTooSoon = errors.New("registration cooldown active")

// DuplicateIdentityError reports that a registration attempt closely
// matches an existing person. The caller decides whether to merge into the
// existing identity or abort.
type DuplicateIdentityError struct {
	PersonID   int64
	Name       string
	Similarity float64
}

func (e *DuplicateIdentityError) Error() string {
	return fmt.Sprintf("duplicate identity: matches person %d (%q) with similarity %.3f",
		e.PersonID, e.Name, e.Similarity)
}

// Guard prevents accidental duplicate registrations. Unlike the matcher it
// applies a fixed similarity threshold, independent of how few embeddings
// an existing person has, and enforces a per-person cooldown so a burst of
// near-identical frames cannot flood a bank.
type Guard struct {
	gallery   *Gallery
	threshold float64
	cooldown  time.Duration

	mu          sync.Mutex
	lastAttempt map[int64]time.Time

	now func() time.Time // injectable for tests
}

// NewGuard creates a registration guard over the gallery.
func NewGuard(gallery *Gallery, threshold float64, cooldown time.Duration) *Guard {
	return &Guard{
		gallery:     gallery,
		threshold:   threshold,
		cooldown:    cooldown,
		lastAttempt: make(map[int64]time.Time),
		now:         time.Now,
	}
}

// CheckDuplicate scans the gallery with the fixed registration threshold.
// Returns nil when the query does not resemble any known person.
func (g *Guard) CheckDuplicate(query []float32) *DuplicateIdentityError {
	b, ok := g.gallery.bestMatch(query)
	if !ok || b.similarity < g.threshold {
		return nil
	}
	return &DuplicateIdentityError{
		PersonID:   b.personID,
		Name:       b.name,
		Similarity: b.similarity,
	}
}

// CheckCooldown returns ErrRegistrationTooSoon when a registration for
// personID was recorded within the cooldown window.
func (g *Guard) CheckCooldown(personID int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if last, ok := g.lastAttempt[personID]; ok {
		if g.now().Sub(last) < g.cooldown {
			return fmt.Errorf("%w: person %d", ErrRegistrationTooSoon, personID)
		}
	}
	return nil
}

// MarkRegistration records a successful registration for personID,
// starting its cooldown window.
func (g *Guard) MarkRegistration(personID int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastAttempt[personID] = g.now()
}

// Forget drops the cooldown state for a removed person.
func (g *Guard) Forget(personID int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.lastAttempt, personID)
}
