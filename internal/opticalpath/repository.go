package opticalpath

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Repository defines transition persistence.
type Repository interface {
	TransitionStore

	GetTransition(ctx context.Context, id string) (*Transition, error)
	ListTransitions(ctx context.Context, limit int) ([]Transition, error)
	LatestTransition(ctx context.Context) (*Transition, error)
}

// List limits for ListTransitions.
const (
	defaultListLimit = 20
	maxListLimit     = 500
)

// timeLayout has a fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const transitionColumns = `id, from_mode, to_mode, triggered_at, completed_at, status,
			moves_total, moves_failed, moves, restored, failures, duration_ms`

// SQLiteRepository stores transitions in the path_transitions table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// CreateTransition inserts a finished transition.
func (r *SQLiteRepository) CreateTransition(ctx context.Context, t *Transition) error {
	moves, err := marshalJSON(t.Moves)
	if err != nil {
		return fmt.Errorf("marshalling moves: %w", err)
	}
	restored, err := marshalJSON(t.Restored)
	if err != nil {
		return fmt.Errorf("marshalling restored axes: %w", err)
	}
	failures, err := marshalJSON(t.Failures)
	if err != nil {
		return fmt.Errorf("marshalling failures: %w", err)
	}

	query := `
		INSERT INTO path_transitions (` + transitionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query,
		t.ID,
		nullableString(t.FromMode),
		t.ToMode,
		t.TriggeredAt.UTC().Format(timeLayout),
		nullableTime(t.CompletedAt),
		string(t.Status),
		t.MovesTotal(),
		t.MovesFailed,
		moves,
		restored,
		failures,
		t.DurationMS,
	)
	if err != nil {
		return fmt.Errorf("inserting transition: %w", err)
	}
	return nil
}

// GetTransition retrieves a transition by ID.
func (r *SQLiteRepository) GetTransition(ctx context.Context, id string) (*Transition, error) {
	query := `SELECT ` + transitionColumns + ` FROM path_transitions WHERE id = ?`

	t, err := scanTransition(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTransitionNotFound
		}
		return nil, fmt.Errorf("querying transition: %w", err)
	}
	return t, nil
}

// ListTransitions returns the most recent transitions, newest first.
// limit is clamped to [1, 500]; zero or negative selects 20.
func (r *SQLiteRepository) ListTransitions(ctx context.Context, limit int) ([]Transition, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	query := `SELECT ` + transitionColumns + `
		FROM path_transitions
		ORDER BY triggered_at DESC, rowid DESC
		LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("querying transitions: %w", err)
	}
	defer rows.Close()

	transitions := []Transition{}
	for rows.Next() {
		t, scanErr := scanTransition(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scanning transition: %w", scanErr)
		}
		transitions = append(transitions, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating transitions: %w", err)
	}
	return transitions, nil
}

// LatestTransition returns the most recent transition, used at start-up
// to recover the mode the path was left in.
func (r *SQLiteRepository) LatestTransition(ctx context.Context) (*Transition, error) {
	list, err := r.ListTransitions(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, ErrTransitionNotFound
	}
	return &list[0], nil
}

// ─── Row Scanning Helpers ───────────────────────────────────────────────────

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransition(scanner rowScanner) (*Transition, error) {
	var t Transition
	var fromMode, completedAt, moves, restored, failures sql.NullString
	var triggeredAt, status string
	var movesTotal int

	err := scanner.Scan(
		&t.ID,
		&fromMode,
		&t.ToMode,
		&triggeredAt,
		&completedAt,
		&status,
		&movesTotal,
		&t.MovesFailed,
		&moves,
		&restored,
		&failures,
		&t.DurationMS,
	)
	if err != nil {
		return nil, err
	}

	t.FromMode = fromMode.String
	t.Status = TransitionStatus(status)
	if ts, parseErr := time.Parse(timeLayout, triggeredAt); parseErr == nil {
		t.TriggeredAt = ts
	}
	if completedAt.Valid {
		if ts, parseErr := time.Parse(timeLayout, completedAt.String); parseErr == nil {
			t.CompletedAt = ts
		}
	}

	if err := unmarshalJSON(moves, &t.Moves); err != nil {
		return nil, fmt.Errorf("unmarshalling moves: %w", err)
	}
	if err := unmarshalJSON(restored, &t.Restored); err != nil {
		return nil, fmt.Errorf("unmarshalling restored axes: %w", err)
	}
	if err := unmarshalJSON(failures, &t.Failures); err != nil {
		return nil, fmt.Errorf("unmarshalling failures: %w", err)
	}
	if t.Moves == nil {
		t.Moves = []MoveRecord{}
	}
	return &t, nil
}

// marshalJSON encodes v, storing NULL for empty slices.
func marshalJSON[T any](v []T) (sql.NullString, error) {
	if len(v) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func unmarshalJSON[T any](s sql.NullString, dst *[]T) error {
	if !s.Valid || s.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(s.String), dst)
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullableTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(timeLayout), Valid: true}
}
