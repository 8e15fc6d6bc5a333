package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"squad-tracker/internal/constants"
	"squad-tracker/internal/domain"

	"github.com/rs/zerolog"
)

// ErrNotFound means no session state has been persisted yet.
var ErrNotFound = errors.New("no saved session state")

// StateStore persists the session state blob between runs. A single row
// holds the whole serialized aggregate; the aggregate root is the unit of
// persistence.
type StateStore struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewStateStore(db *sql.DB, logger zerolog.Logger) *StateStore {
	return &StateStore{db: db, logger: logger}
}

// Load reads the persisted session state, or ErrNotFound on first run.
func (s *StateStore) Load(ctx context.Context) (*domain.SessionState, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM session_state WHERE id = 1`).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session state: %w", err)
	}

	var state domain.SessionState
	if err := json.Unmarshal([]byte(payload), &state); err != nil {
		// A corrupt blob is treated like a missing one so the session can
		// still start from the remote baseline.
		s.logger.Warn().Err(err).Msg("persisted session state is corrupt, ignoring")
		return nil, ErrNotFound
	}
	return &state, nil
}

// Save writes the session state, replacing any previous blob.
func (s *StateStore) Save(ctx context.Context, state *domain.SessionState) error {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode session state: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO session_state (id, payload, updated_at)
		VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		string(payload), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save session state: %w", err)
	}
	return nil
}

// Clear removes the persisted state.
func (s *StateStore) Clear(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM session_state WHERE id = 1`); err != nil {
		return fmt.Errorf("clear session state: %w", err)
	}
	return nil
}
