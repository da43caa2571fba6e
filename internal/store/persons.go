package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Person is a stable identity. Created on first successful registration,
// mutated only by rename, removed only explicitly.
type Person struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}

// PersonRepository handles database operations for persons.
type PersonRepository struct {
	store *Store
}

// NewPersonRepository creates a new person repository.
func NewPersonRepository(s *Store) *PersonRepository {
	return &PersonRepository{store: s}
}

// Create inserts a new person and returns it.
func (r *PersonRepository) Create(ctx context.Context, name string) (*Person, error) {
	p := &Person{Name: name, CreatedAt: time.Now().UTC()}
	err := r.store.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			"INSERT INTO persons (name, created_at) VALUES (?, ?)", p.Name, p.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert person: %w", err)
		}
		p.ID, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("person id: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Get retrieves a person by id, returns nil if not found.
func (r *PersonRepository) Get(ctx context.Context, id int64) (*Person, error) {
	var p Person
	err := r.store.db.QueryRowContext(ctx,
		"SELECT id, name, created_at FROM persons WHERE id = ?", id).
		Scan(&p.ID, &p.Name, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query person: %w", err)
	}
	return &p, nil
}

// All returns every known person ordered by id.
func (r *PersonRepository) All(ctx context.Context) ([]Person, error) {
	rows, err := r.store.db.QueryContext(ctx,
		"SELECT id, name, created_at FROM persons ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("query persons: %w", err)
	}
	defer rows.Close()

	var persons []Person
	for rows.Next() {
		var p Person
		if err := rows.Scan(&p.ID, &p.Name, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		persons = append(persons, p)
	}
	return persons, rows.Err()
}

// Count returns the number of known persons.
func (r *PersonRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM persons").Scan(&count); err != nil {
		return 0, fmt.Errorf("count persons: %w", err)
	}
	return count, nil
}

// Rename updates a person's name. Renaming an unknown person is a no-op.
func (r *PersonRepository) Rename(ctx context.Context, id int64, name string) error {
	return r.store.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			"UPDATE persons SET name = ? WHERE id = ?", name, id); err != nil {
			return fmt.Errorf("rename person: %w", err)
		}
		return nil
	})
}

// Remove deletes a person together with its embedding bank and clears the
// active-session pointer if it references the person. Removing an unknown
// person is a no-op.
func (r *PersonRepository) Remove(ctx context.Context, id int64) error {
	return r.store.withTx(ctx, func(tx *sql.Tx) error {
		// Explicit cascade order: embeddings, session pointer, person.
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM embeddings WHERE person_id = ?", id); err != nil {
			return fmt.Errorf("delete embeddings: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE active_session SET person_id = NULL WHERE person_id = ?", id); err != nil {
			return fmt.Errorf("clear session pointer: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM persons WHERE id = ?", id); err != nil {
			return fmt.Errorf("delete person: %w", err)
		}
		return nil
	})
}

// Clear removes all persons and their embedding banks and resets the
// active session. Used for a full reset.
func (r *PersonRepository) Clear(ctx context.Context) error {
	return r.store.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM embeddings"); err != nil {
			return fmt.Errorf("clear embeddings: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE active_session SET person_id = NULL, last_seen = NULL"); err != nil {
			return fmt.Errorf("reset session: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM persons"); err != nil {
			return fmt.Errorf("clear persons: %w", err)
		}
		return nil
	})
}
