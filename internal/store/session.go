package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ActivePerson is the current "who is present" state consumed by display
// logic. Known is false when no person has been confirmed yet or the
// confirmed person has since been removed.
type ActivePerson struct {
	PersonID int64
	Name     string
	LastSeen time.Time
	Known    bool
}

// SessionRepository manages the singleton active-session row. Exactly one
// row exists for the process lifetime; only its fields are overwritten.
type SessionRepository struct {
	store *Store
}

// NewSessionRepository creates a new session repository.
func NewSessionRepository(s *Store) *SessionRepository {
	return &SessionRepository{store: s}
}

// Update records personID as the active person. A nil personID is a no-op:
// a failed or inconclusive decision never clears the session.
func (r *SessionRepository) Update(ctx context.Context, personID *int64) error {
	if personID == nil {
		return nil
	}
	return r.store.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			"UPDATE active_session SET person_id = ?, last_seen = ? WHERE id = 1",
			*personID, time.Now().UTC()); err != nil {
			return fmt.Errorf("update active session: %w", err)
		}
		return nil
	})
}

// Current returns the active person. The name is resolved against the
// persons table at read time, so a rename or removal is reflected
// immediately; a dangling person reference reports Unknown rather than
// failing.
func (r *SessionRepository) Current(ctx context.Context) (ActivePerson, error) {
	var personID sql.NullInt64
	var name sql.NullString
	var lastSeen sql.NullTime

	err := r.store.db.QueryRowContext(ctx, `
		SELECT a.person_id, p.name, a.last_seen
		FROM active_session a
		LEFT JOIN persons p ON a.person_id = p.id
		WHERE a.id = 1
	`).Scan(&personID, &name, &lastSeen)
	if errors.Is(err, sql.ErrNoRows) {
		return ActivePerson{Name: "Unknown"}, nil
	}
	if err != nil {
		return ActivePerson{}, fmt.Errorf("query active session: %w", err)
	}

	if !personID.Valid || !name.Valid {
		return ActivePerson{Name: "Unknown"}, nil
	}

	ap := ActivePerson{
		PersonID: personID.Int64,
		Name:     name.String,
		Known:    true,
	}
	if lastSeen.Valid {
		ap.LastSeen = lastSeen.Time
	}
	return ap, nil
}
