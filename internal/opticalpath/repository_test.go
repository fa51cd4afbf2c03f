package opticalpath

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// setupTestDB creates an in-memory SQLite database with the transitions schema.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	db.SetMaxOpenConns(1)

	// Matches the path_transitions migration.
	schema := `
		CREATE TABLE path_transitions (
			id TEXT PRIMARY KEY,
			from_mode TEXT,
			to_mode TEXT NOT NULL,
			triggered_at TEXT NOT NULL,
			completed_at TEXT,
			status TEXT NOT NULL CHECK (status IN ('completed', 'partial', 'abandoned')),
			moves_total INTEGER NOT NULL DEFAULT 0,
			moves_failed INTEGER NOT NULL DEFAULT 0,
			moves TEXT,
			restored TEXT,
			failures TEXT,
			duration_ms INTEGER NOT NULL DEFAULT 0
		) STRICT;`

	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("creating schema: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

func testTransition(id, from, to string, at time.Time) *Transition {
	return &Transition{
		ID:          id,
		FromMode:    from,
		ToMode:      to,
		TriggeredAt: at,
		CompletedAt: at.Add(120 * time.Millisecond),
		Status:      StatusCompleted,
		Moves: []MoveRecord{
			{Role: "lens-switch", Axes: map[string]any{"x": 0.001}},
			{Role: "spectrograph", Axes: map[string]any{"grating": 3.0}},
		},
		DurationMS: 120,
	}
}

func TestSQLiteRepository_CreateAndGet(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	at := time.Date(2026, 10, 18, 9, 30, 0, 123456789, time.UTC)
	tr := testTransition("t-1", ModeFiberAlign, ModeSpectral, at)
	tr.Restored = []string{"band", "slit-in"}
	tr.Status = StatusPartial
	tr.MovesFailed = 1
	tr.Failures = []MoveFailure{{Role: "filter", ErrorMsg: "filter: stalled"}}

	if err := repo.CreateTransition(ctx, tr); err != nil {
		t.Fatalf("CreateTransition() error = %v", err)
	}

	got, err := repo.GetTransition(ctx, "t-1")
	if err != nil {
		t.Fatalf("GetTransition() error = %v", err)
	}

	if got.FromMode != ModeFiberAlign || got.ToMode != ModeSpectral {
		t.Errorf("modes = %q -> %q", got.FromMode, got.ToMode)
	}
	if !got.TriggeredAt.Equal(at) {
		t.Errorf("TriggeredAt = %v, want %v", got.TriggeredAt, at)
	}
	if !got.CompletedAt.Equal(tr.CompletedAt) {
		t.Errorf("CompletedAt = %v, want %v", got.CompletedAt, tr.CompletedAt)
	}
	if got.Status != StatusPartial || got.MovesFailed != 1 || got.DurationMS != 120 {
		t.Errorf("got %+v", got)
	}
	if got.MovesTotal() != 2 || got.Moves[0].Role != "lens-switch" {
		t.Errorf("Moves = %+v", got.Moves)
	}
	if !slices.Equal(got.Restored, []string{"band", "slit-in"}) {
		t.Errorf("Restored = %v", got.Restored)
	}
	if len(got.Failures) != 1 || got.Failures[0].ErrorMsg != "filter: stalled" {
		t.Errorf("Failures = %+v", got.Failures)
	}
}

func TestSQLiteRepository_InitialTransitionHasNoSource(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	tr := testTransition("t-1", "", ModeAR, time.Now().UTC())
	tr.Moves = nil
	if err := repo.CreateTransition(ctx, tr); err != nil {
		t.Fatalf("CreateTransition() error = %v", err)
	}

	got, err := repo.GetTransition(ctx, "t-1")
	if err != nil {
		t.Fatalf("GetTransition() error = %v", err)
	}
	if got.FromMode != "" {
		t.Errorf("FromMode = %q, want empty", got.FromMode)
	}
	if got.Moves == nil || len(got.Moves) != 0 {
		t.Errorf("Moves = %#v, want empty slice", got.Moves)
	}
}

func TestSQLiteRepository_GetNotFound(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))

	_, err := repo.GetTransition(context.Background(), "missing")
	if !errors.Is(err, ErrTransitionNotFound) {
		t.Errorf("GetTransition() error = %v, want ErrTransitionNotFound", err)
	}
}

func TestSQLiteRepository_DuplicateID(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	tr := testTransition("t-1", "", ModeAR, time.Now().UTC())
	if err := repo.CreateTransition(ctx, tr); err != nil {
		t.Fatalf("CreateTransition() error = %v", err)
	}
	if err := repo.CreateTransition(ctx, tr); err == nil {
		t.Error("second CreateTransition() with the same ID should fail")
	}
}

func TestSQLiteRepository_ListTransitions(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	base := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	modes := []string{ModeAR, ModeSpectral, ModeMirrorAlign, ModeAR, ModeSpectral}
	for i, mode := range modes {
		// Sub-second offsets check that ordering does not depend on
		// the textual width of the fraction.
		at := base.Add(time.Duration(i) * 100 * time.Millisecond)
		if err := repo.CreateTransition(ctx, testTransition(fmt.Sprintf("t-%d", i), "", mode, at)); err != nil {
			t.Fatalf("CreateTransition(%d) error = %v", i, err)
		}
	}

	tests := []struct {
		name    string
		limit   int
		wantIDs []string
	}{
		{"limited", 2, []string{"t-4", "t-3"}},
		{"default", 0, []string{"t-4", "t-3", "t-2", "t-1", "t-0"}},
		{"above maximum", 10_000, []string{"t-4", "t-3", "t-2", "t-1", "t-0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, err := repo.ListTransitions(ctx, tt.limit)
			if err != nil {
				t.Fatalf("ListTransitions() error = %v", err)
			}
			ids := make([]string, len(list))
			for i, tr := range list {
				ids[i] = tr.ID
			}
			if !slices.Equal(ids, tt.wantIDs) {
				t.Errorf("IDs = %v, want %v", ids, tt.wantIDs)
			}
		})
	}
}

func TestSQLiteRepository_LatestTransition(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	if _, err := repo.LatestTransition(ctx); !errors.Is(err, ErrTransitionNotFound) {
		t.Errorf("LatestTransition() on empty table error = %v, want ErrTransitionNotFound", err)
	}

	base := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	_ = repo.CreateTransition(ctx, testTransition("old", "", ModeAR, base))
	_ = repo.CreateTransition(ctx, testTransition("new", ModeAR, ModeChamberView, base.Add(time.Minute)))

	latest, err := repo.LatestTransition(ctx)
	if err != nil {
		t.Fatalf("LatestTransition() error = %v", err)
	}
	if latest.ID != "new" || latest.ToMode != ModeChamberView {
		t.Errorf("LatestTransition() = %s (%s), want new (chamber-view)", latest.ID, latest.ToMode)
	}
}

func TestSQLiteRepository_StoresManagerTransitions(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	h := newSPARC(t)
	m := newTestManager(t, h.inv, func(o *Options) { o.Store = repo })

	mustSetPath(t, m, ModeSpectral)
	mustSetPath(t, m, ModeFiberAlign)
	last := mustSetPath(t, m, ModeSpectral)

	list, err := repo.ListTransitions(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListTransitions() error = %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("stored %d transitions, want 3", len(list))
	}
	if list[0].ID != last.ID || !slices.Equal(list[0].Restored, []string{"band", "slit-in"}) {
		t.Errorf("latest = %+v", list[0])
	}
}
