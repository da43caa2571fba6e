package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/kozaktomas/face-sentry/internal/vector"
)

// EmbeddingRecord is one stored embedding. Immutable once created;
// replacement is delete + insert inside a single transaction.
type EmbeddingRecord struct {
	ID        int64
	PersonID  int64
	Vector    []float32
	Quality   float64
	CreatedAt time.Time
}

// InsertStatus reports what an insert did to the bank.
type InsertStatus int

const (
	// Inserted means the bank had room and the record was added.
	Inserted InsertStatus = iota

	// Replaced means the bank was full and the lowest-quality record
	// was evicted in favor of the new one.
	Replaced

	// Rejected means the bank was full and the new record's quality did
	// not exceed the current minimum. Normal control flow, not an error.
	Rejected
)

func (s InsertStatus) String() string {
	switch s {
	case Inserted:
		return "inserted"
	case Replaced:
		return "replaced"
	case Rejected:
		return "rejected"
	default:
		return fmt.Sprintf("InsertStatus(%d)", int(s))
	}
}

// InsertOutcome is the result of an embedding insert attempt.
type InsertOutcome struct {
	Status InsertStatus

	// EvictedQuality is the quality of the removed record when Status
	// is Replaced.
	EvictedQuality float64
}

// EmbeddingRepository handles database operations for embedding banks.
// Each person's bank holds at most capacity records, ranked by quality.
type EmbeddingRepository struct {
	store    *Store
	dim      int
	capacity int
}

// NewEmbeddingRepository creates an embedding repository for vectors of the
// given dimension with the given per-person bank capacity.
func NewEmbeddingRepository(s *Store, dim, capacity int) *EmbeddingRepository {
	return &EmbeddingRepository{store: s, dim: dim, capacity: capacity}
}

// Dim returns the configured embedding dimension.
func (r *EmbeddingRepository) Dim() int {
	return r.dim
}

// Capacity returns the per-person bank capacity.
func (r *EmbeddingRepository) Capacity() int {
	return r.capacity
}

// Insert stores an embedding for a person, enforcing the bank capacity.
// A full bank only accepts a record whose quality strictly exceeds the
// current minimum; that minimum record is then evicted in the same
// transaction. Returns ErrDimensionMismatch for wrong-size vectors and
// ErrUnknownPerson when the person does not exist.
func (r *EmbeddingRepository) Insert(ctx context.Context, personID int64, vec []float32, quality float64) (InsertOutcome, error) {
	if len(vec) != r.dim {
		return InsertOutcome{}, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vec), r.dim)
	}

	var outcome InsertOutcome
	err := r.store.withTx(ctx, func(tx *sql.Tx) error {
		var exists bool
		if err := tx.QueryRowContext(ctx,
			"SELECT EXISTS(SELECT 1 FROM persons WHERE id = ?)", personID).Scan(&exists); err != nil {
			return fmt.Errorf("check person exists: %w", err)
		}
		if !exists {
			return fmt.Errorf("%w: id %d", ErrUnknownPerson, personID)
		}

		var count int
		if err := tx.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM embeddings WHERE person_id = ?", personID).Scan(&count); err != nil {
			return fmt.Errorf("count bank: %w", err)
		}

		if count >= r.capacity {
			var minID int64
			var minQuality float64
			err := tx.QueryRowContext(ctx, `
				SELECT id, quality_score FROM embeddings
				WHERE person_id = ?
				ORDER BY quality_score ASC, id ASC
				LIMIT 1
			`, personID).Scan(&minID, &minQuality)
			if err != nil {
				return fmt.Errorf("find bank minimum: %w", err)
			}
			if quality <= minQuality {
				outcome = InsertOutcome{Status: Rejected}
				return nil
			}
			if _, err := tx.ExecContext(ctx, "DELETE FROM embeddings WHERE id = ?", minID); err != nil {
				return fmt.Errorf("evict bank minimum: %w", err)
			}
			outcome = InsertOutcome{Status: Replaced, EvictedQuality: minQuality}
		} else {
			outcome = InsertOutcome{Status: Inserted}
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO embeddings (person_id, vector, quality_score, created_at)
			VALUES (?, ?, ?, ?)
		`, personID, vector.Encode(vec), quality, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("insert embedding: %w", err)
		}
		return nil
	})
	if err != nil {
		return InsertOutcome{}, err
	}
	return outcome, nil
}

// Bank returns a person's embedding records ordered by descending quality.
// The ordering is a matcher optimization; correctness does not depend on it.
func (r *EmbeddingRepository) Bank(ctx context.Context, personID int64) ([]EmbeddingRecord, error) {
	rows, err := r.store.db.QueryContext(ctx, `
		SELECT id, person_id, vector, quality_score, created_at
		FROM embeddings
		WHERE person_id = ?
		ORDER BY quality_score DESC, id ASC
	`, personID)
	if err != nil {
		return nil, fmt.Errorf("query bank: %w", err)
	}
	defer rows.Close()

	return r.scanRecords(rows)
}

// AllBanks loads every embedding grouped by person. The load is two-phase:
// first group all committed records, then truncate each bank to capacity as
// a separate step, so an over-full bank left by an older version of the
// schema can never leak extra records into matching.
func (r *EmbeddingRepository) AllBanks(ctx context.Context) (map[int64][]EmbeddingRecord, error) {
	rows, err := r.store.db.QueryContext(ctx, `
		SELECT id, person_id, vector, quality_score, created_at
		FROM embeddings
		ORDER BY person_id, quality_score DESC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query embeddings: %w", err)
	}
	defer rows.Close()

	records, err := r.scanRecords(rows)
	if err != nil {
		return nil, err
	}

	// Phase one: group by person.
	banks := make(map[int64][]EmbeddingRecord)
	for _, rec := range records {
		banks[rec.PersonID] = append(banks[rec.PersonID], rec)
	}

	// Phase two: enforce the capacity invariant per bank.
	for personID, bank := range banks {
		sort.SliceStable(bank, func(i, j int) bool {
			return bank[i].Quality > bank[j].Quality
		})
		if len(bank) > r.capacity {
			bank = bank[:r.capacity]
		}
		banks[personID] = bank
	}
	return banks, nil
}

// Count returns the total number of stored embeddings.
func (r *EmbeddingRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM embeddings").Scan(&count); err != nil {
		return 0, fmt.Errorf("count embeddings: %w", err)
	}
	return count, nil
}

func (r *EmbeddingRepository) scanRecords(rows *sql.Rows) ([]EmbeddingRecord, error) {
	var records []EmbeddingRecord
	for rows.Next() {
		var rec EmbeddingRecord
		var blob []byte
		if err := rows.Scan(&rec.ID, &rec.PersonID, &blob, &rec.Quality, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan embedding: %w", err)
		}
		vec, err := vector.Decode(blob, r.dim)
		if err != nil {
			return nil, fmt.Errorf("decode embedding %d: %w", rec.ID, errors.Join(ErrDimensionMismatch, err))
		}
		rec.Vector = vec
		records = append(records, rec)
	}
	return records, rows.Err()
}
