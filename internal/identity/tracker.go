package identity

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// ErrUnknownTrack is returned when feeding a track that was never started
// or has already reached a terminal state.
var ErrUnknownTrack = errors.New("unknown track")

// Tracker maps external track lifecycle signals to evaluation windows.
// Windows are independent; multiple tracks may be Collecting concurrently,
// each feeding the shared matcher.
type Tracker struct {
	matcher *Matcher
	gallery *Gallery
	frames  int

	mu     sync.Mutex
	tracks map[uuid.UUID]*Evaluator
}

// NewTracker creates a tracker producing windows of the given frame count.
func NewTracker(matcher *Matcher, gallery *Gallery, frames int) *Tracker {
	return &Tracker{
		matcher: matcher,
		gallery: gallery,
		frames:  frames,
		tracks:  make(map[uuid.UUID]*Evaluator),
	}
}

// StartTrack creates a new evaluation window and returns its handle.
func (t *Tracker) StartTrack() uuid.UUID {
	id := uuid.New()
	ev := newEvaluator(t.frames, t.matcher.Threshold, t.gallery.BankSize, t.gallery.PersonName)
	t.mu.Lock()
	t.tracks[id] = ev
	t.mu.Unlock()
	return id
}

// Feed runs one matcher verdict for the frame and appends it to the
// track's window. Returns a non-nil decision exactly once, on the frame
// that completes the window; the track is removed at that point.
func (t *Tracker) Feed(trackID uuid.UUID, vec []float32, quality float64) (*Decision, error) {
	t.mu.Lock()
	ev, ok := t.tracks[trackID]
	t.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTrack, trackID)
	}

	match, err := t.matcher.Match(vec)
	if err != nil {
		return nil, err
	}

	obs := observation{similarity: 0, quality: quality, vec: vec}
	if match != nil {
		obs.personID = &match.PersonID
		obs.similarity = match.Similarity
	}

	decision := ev.feed(obs)
	if decision != nil {
		t.mu.Lock()
		delete(t.tracks, trackID)
		t.mu.Unlock()
	}
	return decision, nil
}

// LoseTrack discards an in-progress window. Synchronous and immediate;
// losing an unknown or already-terminal track is a no-op.
func (t *Tracker) LoseTrack(trackID uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if ev, ok := t.tracks[trackID]; ok {
		ev.lose()
		delete(t.tracks, trackID)
	}
}

// ActiveTracks returns the number of windows currently collecting.
func (t *Tracker) ActiveTracks() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.tracks)
}
