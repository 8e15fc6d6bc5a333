package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"squad-tracker/internal/domain"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

func newTestStore(t *testing.T) *StateStore {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`CREATE TABLE session_state (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		payload TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		t.Fatalf("create table: %v", err)
	}
	return NewStateStore(db, zerolog.Nop())
}

func TestLoadMissingState(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Load(context.Background()); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load on empty store = %v, want ErrNotFound", err)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	state := &domain.SessionState{
		BattleStats: domain.BattleStats{
			"A1": {
				StartTime: 1700000000000,
				Duration:  600,
				Win:       domain.WinVictory,
				MapName:   "Prokhorovka",
				Players: map[domain.PlayerID]*domain.PlayerStat{
					7: {Name: "alice", Vehicle: "IS-7", Damage: 1200, Kills: 3, Points: 1500},
				},
			},
		},
		PlayersInfo:     domain.PlayersInfo{7: "alice"},
		CurrentPlayerID: 7,
		CurrentArenaID:  "A1",
		CurrentVehicle:  "IS-7",
		IsInPlatoon:     true,
	}

	if err := s.Save(ctx, state); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.CurrentPlayerID != 7 || got.CurrentArenaID != "A1" || !got.IsInPlatoon {
		t.Errorf("session fields lost: %+v", got)
	}
	stat := got.BattleStats["A1"].Players[7]
	if stat == nil || stat.Damage != 1200 || stat.Points != 1500 {
		t.Errorf("battle stats lost: %+v", stat)
	}

	// A second save must overwrite, not duplicate.
	state.CurrentArenaID = "A2"
	if err := s.Save(ctx, state); err != nil {
		t.Fatalf("second Save: %v", err)
	}
	got, err = s.Load(ctx)
	if err != nil {
		t.Fatalf("Load after overwrite: %v", err)
	}
	if got.CurrentArenaID != "A2" {
		t.Errorf("overwrite lost: arena = %q, want A2", got.CurrentArenaID)
	}
}

func TestClear(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Save(ctx, &domain.SessionState{}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, err := s.Load(ctx); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load after Clear = %v, want ErrNotFound", err)
	}
}

func TestCorruptPayloadTreatedAsMissing(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.db.Exec(`INSERT INTO session_state (id, payload) VALUES (1, 'not json')`); err != nil {
		t.Fatalf("insert corrupt payload: %v", err)
	}
	if _, err := s.Load(ctx); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load of corrupt payload = %v, want ErrNotFound", err)
	}
}
