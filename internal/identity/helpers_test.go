package identity

import (
	"fmt"
	"math"

	"github.com/kozaktomas/face-sentry/internal/config"
	"github.com/kozaktomas/face-sentry/internal/store"
)

const testDim = 4

// queryVec is the reference direction used by the test gallery helpers.
var queryVec = []float32{1, 0, 0, 0}

// vecAt returns a unit vector whose cosine similarity to queryVec is cos.
func vecAt(cos float64) []float32 {
	sin := math.Sqrt(1 - cos*cos)
	return []float32{float32(cos), float32(sin), 0, 0}
}

func testRecognitionConfig() config.RecognitionConfig {
	return config.RecognitionConfig{
		RecognitionThreshold:            0.85,
		HighConfidenceThreshold:         0.90,
		RegistrationSimilarityThreshold: 0.70,
		RegistrationCooldownSeconds:     2.0,
		EvaluationFrames:                10,
		MaxEmbeddingsPerPerson:          30,
		DefaultDisplayConfidence:        0.01,
		Adaptive: config.AdaptiveConfig{
			FewThreshold:     0.35,
			MediumThreshold:  0.20,
			ManyThreshold:    0.15,
			DefaultThreshold: 0.20,
			FewLimit:         5,
			ManyLimit:        15,
		},
	}
}

// galleryOf builds a gallery snapshot from person id -> bank cosines
// (each cosine is one record's similarity to queryVec).
func galleryOf(banks map[int64][]float64) *Gallery {
	g := NewGallery()
	var persons []store.Person
	records := make(map[int64][]store.EmbeddingRecord)
	var nextID int64 = 1
	for personID, cosines := range banks {
		persons = append(persons, store.Person{
			ID:   personID,
			Name: fmt.Sprintf("person-%d", personID),
		})
		for _, c := range cosines {
			records[personID] = append(records[personID], store.EmbeddingRecord{
				ID:       nextID,
				PersonID: personID,
				Vector:   vecAt(c),
				Quality:  0.5,
			})
			nextID++
		}
	}
	g.Reload(persons, records)
	return g
}
