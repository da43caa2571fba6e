// Package identity implements the identity-decision core: the in-memory
// gallery of embedding banks, the adaptive-threshold matcher, the
// duplicate-registration guard, the per-track temporal consensus evaluator
// and the orchestrating service.
package identity

import (
	"sync"

	"github.com/coder/hnsw"
	"github.com/kozaktomas/face-sentry/internal/store"
	"github.com/kozaktomas/face-sentry/internal/vector"
)

// HNSW index parameters, tuned for 512-dim face embeddings.
const (
	hnswMaxNeighbors = 16

	// hnswShortlist is how many nearest embeddings the index returns;
	// their owning persons are then re-scored exactly.
	hnswShortlist = 64

	// indexThreshold is the total embedding count below which a brute
	// force scan is cheaper than maintaining the graph.
	indexThreshold = 512
)

type bankRecord struct {
	embeddingID int64
	vec         []float32
	quality     float64
}

type personEntry struct {
	id      int64
	name    string
	records []bankRecord
}

// Gallery is an in-memory snapshot of every person's embedding bank,
// reloaded from the store after each committed mutation. Reads are
// concurrent; Reload swaps the snapshot atomically.
type Gallery struct {
	mu      sync.RWMutex
	persons map[int64]*personEntry
	total   int

	// graph shortlists candidate embeddings for large galleries; nil
	// while total < indexThreshold.
	graph *hnsw.Graph[int64]
	owner map[int64]int64 // embedding id -> person id
}

// NewGallery creates an empty gallery.
func NewGallery() *Gallery {
	return &Gallery{persons: make(map[int64]*personEntry)}
}

// Reload replaces the snapshot with the given persons and banks. Banks are
// expected in descending quality order (store.AllBanks provides that).
func (g *Gallery) Reload(persons []store.Person, banks map[int64][]store.EmbeddingRecord) {
	entries := make(map[int64]*personEntry, len(persons))
	total := 0
	for _, p := range persons {
		entry := &personEntry{id: p.ID, name: p.Name}
		for _, rec := range banks[p.ID] {
			entry.records = append(entry.records, bankRecord{
				embeddingID: rec.ID,
				vec:         rec.Vector,
				quality:     rec.Quality,
			})
		}
		total += len(entry.records)
		entries[p.ID] = entry
	}

	var graph *hnsw.Graph[int64]
	var owner map[int64]int64
	if total >= indexThreshold {
		graph = hnsw.NewGraph[int64]()
		graph.M = hnswMaxNeighbors
		graph.Ml = 1.0 / float64(hnswMaxNeighbors)
		graph.Distance = hnsw.CosineDistance
		owner = make(map[int64]int64, total)
		for _, entry := range entries {
			for _, rec := range entry.records {
				graph.Add(hnsw.MakeNode(rec.embeddingID, rec.vec))
				owner[rec.embeddingID] = entry.id
			}
		}
	}

	g.mu.Lock()
	g.persons = entries
	g.total = total
	g.graph = graph
	g.owner = owner
	g.mu.Unlock()
}

// PersonCount returns the number of persons in the snapshot.
func (g *Gallery) PersonCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.persons)
}

// EmbeddingCount returns the total number of embeddings in the snapshot.
func (g *Gallery) EmbeddingCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.total
}

// BankSize returns the bank size for a person, 0 if unknown.
func (g *Gallery) BankSize(personID int64) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if entry, ok := g.persons[personID]; ok {
		return len(entry.records)
	}
	return 0
}

// PersonName returns the person's name and whether the person exists.
func (g *Gallery) PersonName(personID int64) (string, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if entry, ok := g.persons[personID]; ok {
		return entry.name, true
	}
	return "", false
}

// best holds the winning candidate of a gallery scan.
type best struct {
	personID   int64
	name       string
	similarity float64
	bankSize   int
}

// bestMatch scans candidate persons and returns the one whose bank holds
// the embedding most similar to query. Ties on similarity prefer the bank
// with more evidence, then the lowest person id for determinism.
func (g *Gallery) bestMatch(query []float32) (best, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	candidates := g.candidatePersons(query)
	if len(candidates) == 0 {
		return best{}, false
	}

	var b best
	found := false
	for _, entry := range candidates {
		if len(entry.records) == 0 {
			continue
		}
		sim := maxSimilarity(query, entry.records)
		better := false
		switch {
		case !found:
			better = true
		case sim > b.similarity:
			better = true
		case sim == b.similarity && len(entry.records) > b.bankSize:
			better = true
		case sim == b.similarity && len(entry.records) == b.bankSize && entry.id < b.personID:
			better = true
		}
		if better {
			b = best{personID: entry.id, name: entry.name, similarity: sim, bankSize: len(entry.records)}
			found = true
		}
	}
	return b, found
}

// candidatePersons returns the persons worth scoring exactly. With a small
// gallery that is everyone; with the graph built it is the owners of the
// shortlisted nearest embeddings. Callers hold the read lock.
func (g *Gallery) candidatePersons(query []float32) []*personEntry {
	if g.graph == nil {
		out := make([]*personEntry, 0, len(g.persons))
		for _, entry := range g.persons {
			out = append(out, entry)
		}
		return out
	}

	neighbors := g.graph.Search(query, hnswShortlist)
	seen := make(map[int64]struct{}, len(neighbors))
	var out []*personEntry
	for _, n := range neighbors {
		personID, ok := g.owner[n.Key]
		if !ok {
			continue
		}
		if _, dup := seen[personID]; dup {
			continue
		}
		seen[personID] = struct{}{}
		if entry, ok := g.persons[personID]; ok {
			out = append(out, entry)
		}
	}
	return out
}

// maxSimilarity is the bank score: the maximum cosine similarity between
// the query and any record in the bank.
func maxSimilarity(query []float32, records []bankRecord) float64 {
	maxSim := -1.0
	for _, rec := range records {
		if sim := vector.CosineSimilarity(query, rec.vec); sim > maxSim {
			maxSim = sim
		}
	}
	return maxSim
}
