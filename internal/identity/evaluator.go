package identity

import "fmt"

// TrackState is the lifecycle state of one evaluation window.
type TrackState int

const (
	// Collecting means the window is still filling up.
	Collecting TrackState = iota

	// Decided is terminal: a consensus decision was emitted.
	Decided

	// Lost is terminal: the track disappeared before the window filled.
	Lost
)

func (s TrackState) String() string {
	switch s {
	case Collecting:
		return "collecting"
	case Decided:
		return "decided"
	case Lost:
		return "lost"
	default:
		return fmt.Sprintf("TrackState(%d)", int(s))
	}
}

// observation is one per-frame matcher verdict inside the window.
type observation struct {
	personID   *int64 // nil when the frame matched nobody
	similarity float64
	quality    float64
	vec        []float32
}

// Decision is the consensus emitted when a window completes. PersonID is
// nil for an inconclusive window; that is still a terminal decision, not a
// retry, so latency stays bounded.
type Decision struct {
	PersonID       *int64
	Name           string
	MeanSimilarity float64
	MeanQuality    float64
	Frames         int

	// BestVector and BestQuality identify the highest-quality frame
	// among those that matched the winner, used to reinforce the bank.
	BestVector  []float32
	BestQuality float64
}

// Evaluator accumulates matcher verdicts for one face track and emits one
// consensus decision when the window fills. Per-frame matches are noisy;
// majority consensus over a short window trades a fixed latency for far
// less identity flicker than trusting any single frame.
type Evaluator struct {
	frames    int
	state     TrackState
	window    []observation
	threshold func(bankSize int) float64
	bankSize  func(personID int64) int
	name      func(personID int64) (string, bool)
}

// newEvaluator creates a Collecting evaluator for a window of the given
// length. The callbacks resolve the winner's current bank size, adaptive
// threshold and display name at decision time.
func newEvaluator(
	frames int,
	threshold func(bankSize int) float64,
	bankSize func(personID int64) int,
	name func(personID int64) (string, bool),
) *Evaluator {
	return &Evaluator{
		frames:    frames,
		state:     Collecting,
		window:    make([]observation, 0, frames),
		threshold: threshold,
		bankSize:  bankSize,
		name:      name,
	}
}

// State returns the current lifecycle state.
func (e *Evaluator) State() TrackState {
	return e.state
}

// Observations returns how many frames the window holds.
func (e *Evaluator) Observations() int {
	return len(e.window)
}

// feed appends one verdict. While the window is not full it returns nil and
// the evaluator stays Collecting. On the frame that fills the window it
// computes the consensus, transitions to Decided and returns the decision.
// Feeding a terminal evaluator returns nil.
func (e *Evaluator) feed(obs observation) *Decision {
	if e.state != Collecting {
		return nil
	}
	e.window = append(e.window, obs)
	if len(e.window) < e.frames {
		return nil
	}
	e.state = Decided
	return e.decide()
}

// lose forces the terminal Lost state. No decision is emitted and the
// window is discarded with no persisted side effects.
func (e *Evaluator) lose() {
	if e.state == Collecting {
		e.state = Lost
		e.window = nil
	}
}

// decide computes the consensus: the most frequent non-nil candidate must
// hold a strict majority of the window AND its mean similarity must clear
// its adaptive threshold. Anything else is an inconclusive (nil) decision.
func (e *Evaluator) decide() *Decision {
	counts := make(map[int64]int)
	for _, obs := range e.window {
		if obs.personID != nil {
			counts[*obs.personID]++
		}
	}

	var meanQualityAll float64
	for _, obs := range e.window {
		meanQualityAll += obs.quality
	}
	meanQualityAll /= float64(len(e.window))

	inconclusive := &Decision{
		MeanQuality: meanQualityAll,
		Frames:      len(e.window),
	}

	if len(counts) == 0 {
		return inconclusive
	}

	// Most frequent candidate; ties prefer the lower id for determinism.
	var winner int64
	winnerCount := -1
	for id, count := range counts {
		if count > winnerCount || (count == winnerCount && id < winner) {
			winner = id
			winnerCount = count
		}
	}

	if winnerCount*2 <= len(e.window) {
		return inconclusive
	}

	var meanSim, meanQuality float64
	var bestVec []float32
	bestQuality := -1.0
	for _, obs := range e.window {
		if obs.personID == nil || *obs.personID != winner {
			continue
		}
		meanSim += obs.similarity
		meanQuality += obs.quality
		if obs.quality > bestQuality {
			bestQuality = obs.quality
			bestVec = obs.vec
		}
	}
	meanSim /= float64(winnerCount)
	meanQuality /= float64(winnerCount)

	if meanSim < e.threshold(e.bankSize(winner)) {
		return inconclusive
	}

	name, _ := e.name(winner)
	return &Decision{
		PersonID:       &winner,
		Name:           name,
		MeanSimilarity: meanSim,
		MeanQuality:    meanQuality,
		Frames:         len(e.window),
		BestVector:     bestVec,
		BestQuality:    bestQuality,
	}
}
