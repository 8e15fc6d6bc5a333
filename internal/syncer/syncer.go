package syncer

import (
	"context"
	"fmt"
	"time"

	"squad-tracker/internal/api"
	"squad-tracker/internal/constants"
	"squad-tracker/internal/domain"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
)

// RemoteStore is the slice of the remote client the syncer needs.
type RemoteStore interface {
	SaveSnapshot(ctx context.Context, playerID domain.PlayerID, snap domain.Snapshot) error
	LoadPeerDelta(ctx context.Context, playerID domain.PlayerID) (*api.PeerDeltaResponse, error)
}

// Syncer runs the network half of synchronization: a push of the local
// aggregate and a pull of peer contributions, each with bounded
// linear-backoff retries on transient failure. Exhausted retries surface the
// error; the next mutation's debounce cycle naturally re-triggers a push.
type Syncer struct {
	remote  RemoteStore
	logger  zerolog.Logger
	backoff time.Duration
}

func NewSyncer(remote RemoteStore, logger zerolog.Logger) *Syncer {
	return &Syncer{
		remote:  remote,
		logger:  logger,
		backoff: constants.RetryBackoff,
	}
}

// Push uploads the snapshot under the given player id.
func (s *Syncer) Push(ctx context.Context, playerID domain.PlayerID, snap domain.Snapshot) error {
	opID, _ := gonanoid.New(8)
	s.logger.Debug().Str("op", opID).Int64("player_id", int64(playerID)).Msg("pushing snapshot")

	err := retry.Do(ctx, s.retryPolicy(), func(ctx context.Context) error {
		return classify(s.remote.SaveSnapshot(ctx, playerID, snap))
	})
	if err != nil {
		s.logger.Error().Err(err).Str("op", opID).Msg("push failed")
		return fmt.Errorf("push snapshot: %w", err)
	}

	s.logger.Debug().Str("op", opID).Msg("push completed")
	return nil
}

// PullPeers fetches the battles contributed by other squad members. A
// failure here is tolerable; the caller keeps its last-known-good state.
func (s *Syncer) PullPeers(ctx context.Context, playerID domain.PlayerID) (domain.BattleStats, error) {
	opID, _ := gonanoid.New(8)
	s.logger.Debug().Str("op", opID).Int64("player_id", int64(playerID)).Msg("pulling peer delta")

	var delta *api.PeerDeltaResponse
	err := retry.Do(ctx, s.retryPolicy(), func(ctx context.Context) error {
		resp, err := s.remote.LoadPeerDelta(ctx, playerID)
		if err != nil {
			return classify(err)
		}
		delta = resp
		return nil
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("op", opID).Msg("peer pull failed")
		return nil, fmt.Errorf("pull peer delta: %w", err)
	}

	s.logger.Debug().Str("op", opID).Int("battles", len(delta.BattleStats)).Msg("peer pull completed")
	return delta.BattleStats, nil
}

func (s *Syncer) retryPolicy() retry.Backoff {
	return retry.WithMaxRetries(constants.RetryAttempts, linearBackoff(s.backoff))
}

// linearBackoff waits step, 2*step, 3*step between attempts.
func linearBackoff(step time.Duration) retry.Backoff {
	attempt := 0
	return retry.BackoffFunc(func() (time.Duration, bool) {
		attempt++
		return time.Duration(attempt) * step, false
	})
}

// classify marks only transient failures as retryable; 4xx and config errors
// surface immediately.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if api.IsTransient(err) {
		return retry.RetryableError(err)
	}
	return err
}
