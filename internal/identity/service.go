package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/face-sentry/internal/config"
	"github.com/kozaktomas/face-sentry/internal/store"
)

// Observation is one face sample offered for enrollment: the embedding and
// the external quality score for the frame it came from.
type Observation struct {
	Vector  []float32
	Quality float64
}

// PersonSummary combines a person with the current size of its bank.
type PersonSummary struct {
	Person   store.Person
	BankSize int
}

// Service orchestrates the identity core. It owns the single write path:
// every mutation goes through the store's serialized transactions and is
// followed by a gallery reload, so matcher reads always see a committed
// snapshot.
type Service struct {
	cfg        config.RecognitionConfig
	store      *store.Store
	persons    *store.PersonRepository
	embeddings *store.EmbeddingRepository
	session    *store.SessionRepository

	gallery *Gallery
	matcher *Matcher
	guard   *Guard
	tracker *Tracker
}

// NewService wires the identity core over an opened store and loads the
// initial gallery snapshot.
func NewService(ctx context.Context, st *store.Store, dim int, cfg config.RecognitionConfig) (*Service, error) {
	gallery := NewGallery()
	matcher := NewMatcher(gallery, dim, cfg)
	guard := NewGuard(gallery, cfg.RegistrationSimilarityThreshold,
		time.Duration(cfg.RegistrationCooldownSeconds*float64(time.Second)))

	s := &Service{
		cfg:        cfg,
		store:      st,
		persons:    store.NewPersonRepository(st),
		embeddings: store.NewEmbeddingRepository(st, dim, cfg.MaxEmbeddingsPerPerson),
		session:    store.NewSessionRepository(st),
		gallery:    gallery,
		matcher:    matcher,
		guard:      guard,
	}
	s.tracker = NewTracker(matcher, gallery, cfg.EvaluationFrames)

	if err := s.reload(ctx); err != nil {
		return nil, fmt.Errorf("loading gallery: %w", err)
	}
	return s, nil
}

// reload refreshes the in-memory gallery from committed store state.
func (s *Service) reload(ctx context.Context) error {
	persons, err := s.persons.All(ctx)
	if err != nil {
		return err
	}
	banks, err := s.embeddings.AllBanks(ctx)
	if err != nil {
		return err
	}
	s.gallery.Reload(persons, banks)
	return nil
}

// Identify returns the matcher verdict for a single embedding, independent
// of any temporal consensus. Used for live "who is this" feedback.
func (s *Service) Identify(query []float32) (*Match, error) {
	return s.matcher.Match(query)
}

// DisplayConfidence is the confidence reported for a nil match.
func (s *Service) DisplayConfidence(m *Match) float64 {
	if m == nil {
		return s.cfg.DefaultDisplayConfidence
	}
	return m.Similarity
}

// Register enrolls observations under the given name. A name that
// normalizes to an existing person's name reinforces that person instead
// of creating a duplicate. The duplicate guard runs against the first
// observation; a close match to a different person aborts with
// DuplicateIdentityError so the caller can decide to merge or drop.
// All observations that survive the guard are inserted in one pass and a
// single cooldown window is started for the resolved person.
func (s *Service) Register(ctx context.Context, name string, obs []Observation) (*store.Person, []store.InsertOutcome, error) {
	if len(obs) == 0 {
		return nil, nil, errors.New("no observations to register")
	}

	target, err := s.findPersonByName(ctx, name)
	if err != nil {
		return nil, nil, err
	}

	if dup := s.guard.CheckDuplicate(obs[0].Vector); dup != nil {
		if target == nil || dup.PersonID != target.ID {
			return nil, nil, dup
		}
	}

	if target != nil {
		if err := s.guard.CheckCooldown(target.ID); err != nil {
			return nil, nil, err
		}
	}

	created := false
	if target == nil {
		target, err = s.persons.Create(ctx, name)
		if err != nil {
			return nil, nil, fmt.Errorf("creating person: %w", err)
		}
		created = true
	}

	outcomes := make([]store.InsertOutcome, 0, len(obs))
	for _, o := range obs {
		outcome, err := s.embeddings.Insert(ctx, target.ID, o.Vector, o.Quality)
		if err != nil {
			if created && len(outcomes) == 0 {
				// First insert failed for a person created in this call;
				// leave no orphan identity behind.
				s.persons.Remove(ctx, target.ID)
			}
			return nil, outcomes, err
		}
		outcomes = append(outcomes, outcome)
	}

	s.guard.MarkRegistration(target.ID)
	if err := s.reload(ctx); err != nil {
		return target, outcomes, err
	}
	return target, outcomes, nil
}

// Reinforce adds an embedding to a known person's bank, subject to the
// registration cooldown.
func (s *Service) Reinforce(ctx context.Context, personID int64, vec []float32, quality float64) (store.InsertOutcome, error) {
	if err := s.guard.CheckCooldown(personID); err != nil {
		return store.InsertOutcome{}, err
	}
	outcome, err := s.embeddings.Insert(ctx, personID, vec, quality)
	if err != nil {
		return store.InsertOutcome{}, err
	}
	s.guard.MarkRegistration(personID)
	if outcome.Status != store.Rejected {
		if err := s.reload(ctx); err != nil {
			return outcome, err
		}
	}
	return outcome, nil
}

// StartTrack opens a new evaluation window for an external face track.
func (s *Service) StartTrack() uuid.UUID {
	return s.tracker.StartTrack()
}

// FeedTrack feeds one frame into a track's window. When the window
// completes with a confirmed identity, the active session is updated and,
// if the consensus clears the recognition floor, the winner's bank is
// reinforced with the best-quality matching frame.
func (s *Service) FeedTrack(ctx context.Context, trackID uuid.UUID, vec []float32, quality float64) (*Decision, error) {
	decision, err := s.tracker.Feed(trackID, vec, quality)
	if err != nil {
		return nil, err
	}
	if decision == nil || decision.PersonID == nil {
		return decision, nil
	}

	if err := s.session.Update(ctx, decision.PersonID); err != nil {
		return decision, fmt.Errorf("updating active session: %w", err)
	}

	if decision.MeanSimilarity >= s.cfg.RecognitionThreshold && decision.BestVector != nil {
		outcome, err := s.embeddings.Insert(ctx, *decision.PersonID, decision.BestVector, decision.BestQuality)
		if err != nil {
			return decision, fmt.Errorf("reinforcing bank: %w", err)
		}
		if outcome.Status != store.Rejected {
			if err := s.reload(ctx); err != nil {
				return decision, err
			}
		}
	}
	return decision, nil
}

// LoseTrack discards an in-progress window with no persisted side effects.
func (s *Service) LoseTrack(trackID uuid.UUID) {
	s.tracker.LoseTrack(trackID)
}

// ActivePerson returns the current active-person session state.
func (s *Service) ActivePerson(ctx context.Context) (store.ActivePerson, error) {
	return s.session.Current(ctx)
}

// Persons returns every known person with its bank size.
func (s *Service) Persons(ctx context.Context) ([]PersonSummary, error) {
	persons, err := s.persons.All(ctx)
	if err != nil {
		return nil, err
	}
	summaries := make([]PersonSummary, 0, len(persons))
	for _, p := range persons {
		summaries = append(summaries, PersonSummary{
			Person:   p,
			BankSize: s.gallery.BankSize(p.ID),
		})
	}
	return summaries, nil
}

// RenamePerson changes a person's display name.
func (s *Service) RenamePerson(ctx context.Context, id int64, name string) error {
	if err := s.persons.Rename(ctx, id, name); err != nil {
		return err
	}
	return s.reload(ctx)
}

// RemovePerson deletes a person, cascading its bank and clearing the
// session pointer if needed.
func (s *Service) RemovePerson(ctx context.Context, id int64) error {
	if err := s.persons.Remove(ctx, id); err != nil {
		return err
	}
	s.guard.Forget(id)
	return s.reload(ctx)
}

// Clear removes all persons and banks and resets the session.
func (s *Service) Clear(ctx context.Context) error {
	if err := s.persons.Clear(ctx); err != nil {
		return err
	}
	return s.reload(ctx)
}

// findPersonByName resolves a name to an existing person by normalized
// comparison, nil when no person matches.
func (s *Service) findPersonByName(ctx context.Context, name string) (*store.Person, error) {
	persons, err := s.persons.All(ctx)
	if err != nil {
		return nil, err
	}
	want := NormalizePersonName(name)
	for i := range persons {
		if NormalizePersonName(persons[i].Name) == want {
			return &persons[i], nil
		}
	}
	return nil, nil
}
