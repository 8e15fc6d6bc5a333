package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"squad-tracker/internal/api"
	"squad-tracker/internal/constants"
	"squad-tracker/internal/domain"
	"squad-tracker/internal/feed"
	"squad-tracker/internal/stats"
	"squad-tracker/internal/store"
	"squad-tracker/internal/syncer"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// RemoteStore is the slice of the remote client the session drives directly:
// the full-load baseline, the wipe, and per-battle deletes. Pushes and peer
// pulls go through the syncer.
type RemoteStore interface {
	LoadSnapshot(ctx context.Context) (*api.SnapshotResponse, error)
	Clear(ctx context.Context) error
	DeleteBattle(ctx context.Context, arenaID string) error
}

// Session owns the aggregate and runs the cooperative task loop. Every
// mutation and every read executes as a task on one goroutine, so the
// aggregate never needs a lock: feed events, debounce firings and network
// completions interleave but never preempt each other. External readers only
// ever receive copies.
type Session struct {
	agg      *stats.Aggregate
	cache    *stats.Cache
	state    *feed.State
	ingestor *feed.Ingestor
	store    *store.StateStore
	remote   RemoteStore
	syncer   *syncer.Syncer
	logger   zerolog.Logger

	pushDebounce *syncer.Debouncer
	pullDebounce *syncer.Debouncer

	tasks   chan func()
	quit    chan struct{}
	stopped chan struct{}

	subsMu sync.Mutex
	subs   map[chan struct{}]struct{}

	refreshGroup singleflight.Group

	lastSyncErr error
}

func New(stateStore *store.StateStore, remote RemoteStore, sync *syncer.Syncer, logger zerolog.Logger) *Session {
	agg := stats.NewAggregate(func() int64 { return time.Now().UnixMilli() })
	state := &feed.State{}

	s := &Session{
		agg:          agg,
		cache:        stats.NewCache(agg),
		state:        state,
		store:        stateStore,
		remote:       remote,
		syncer:       sync,
		logger:       logger,
		pushDebounce: syncer.NewDebouncer(constants.PushDebounce),
		pullDebounce: syncer.NewDebouncer(constants.PullDebounce),
		tasks:        make(chan func(), constants.TaskQueueSize),
		quit:         make(chan struct{}),
		stopped:      make(chan struct{}),
		subs:         make(map[chan struct{}]struct{}),
	}
	s.ingestor = feed.NewIngestor(agg, state, logger, s.scheduleSyncCycle, s.schedulePeerPull)
	return s
}

// Start launches the task loop, restores persisted state and kicks off the
// initial full load from the remote store.
func (s *Session) Start(ctx context.Context) error {
	go s.run()

	saved, err := s.store.Load(ctx)
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.logger.Info().Msg("no persisted session state, starting empty")
	case err != nil:
		return fmt.Errorf("restore session state: %w", err)
	default:
		s.post(func() {
			s.agg.Restore(saved.BattleStats, saved.PlayersInfo)
			s.state.CurrentPlayerID = saved.CurrentPlayerID
			s.state.CurrentArenaID = saved.CurrentArenaID
			s.state.CurrentVehicle = saved.CurrentVehicle
			s.state.IsInPlatoon = saved.IsInPlatoon
		})
		s.logger.Info().Msg("session state restored")
	}

	// The remote snapshot is the authoritative baseline; fetch it in the
	// background so startup never blocks on the network.
	go func() {
		if err := s.RefreshFromRemote(context.Background()); err != nil {
			s.logger.Warn().Err(err).Msg("initial remote load failed, keeping local state")
		}
	}()

	return nil
}

// Stop cancels pending debounced work and drains the loop.
func (s *Session) Stop(ctx context.Context) error {
	s.pushDebounce.Stop()
	s.pullDebounce.Stop()
	close(s.quit)
	select {
	case <-s.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) run() {
	defer close(s.stopped)
	for {
		select {
		case task := <-s.tasks:
			task()
		case <-s.quit:
			return
		}
	}
}

// post queues a task for the loop. Safe from any goroutine.
func (s *Session) post(task func()) {
	select {
	case s.tasks <- task:
	case <-s.quit:
	}
}

// call runs fn on the loop and waits for it, giving callers a consistent
// read of loop-owned state.
func (s *Session) call(fn func()) {
	done := make(chan struct{})
	s.post(func() {
		fn()
		close(done)
	})
	select {
	case <-done:
	case <-s.stopped:
	}
}

// Subscribe registers a change-notification channel. Each subscriber gets
// its own signal, so concurrent consumers never steal from each other;
// bursts coalesce into one pending signal per subscriber. Consumers re-read
// current state on each signal and must call cancel when done.
func (s *Session) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	s.subsMu.Lock()
	s.subs[ch] = struct{}{}
	s.subsMu.Unlock()

	cancel := func() {
		s.subsMu.Lock()
		delete(s.subs, ch)
		s.subsMu.Unlock()
	}
	return ch, cancel
}

func (s *Session) notify() {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// afterChange persists the session and wakes the presentation layer. Runs on
// the loop.
func (s *Session) afterChange() {
	if err := s.store.Save(context.Background(), s.persistedState()); err != nil {
		s.logger.Error().Err(err).Msg("failed to persist session state")
	}
	s.notify()
}

func (s *Session) persistedState() *domain.SessionState {
	snap := s.agg.Snapshot()
	return &domain.SessionState{
		BattleStats:     snap.BattleStats,
		PlayersInfo:     snap.PlayersInfo,
		CurrentPlayerID: s.state.CurrentPlayerID,
		CurrentArenaID:  s.state.CurrentArenaID,
		CurrentVehicle:  s.state.CurrentVehicle,
		IsInPlatoon:     s.state.IsInPlatoon,
	}
}

// HandleEvent feeds one game-client signal into the session. Malformed
// payloads are logged and dropped; the aggregate stays unchanged.
func (s *Session) HandleEvent(ev feed.Event) {
	s.post(func() {
		changed, err := s.ingestor.Handle(ev)
		if err != nil {
			s.logger.Error().Err(err).Str("kind", ev.Kind()).Msg("feed event rejected")
			return
		}
		if changed {
			s.afterChange()
		}
	})
}

// scheduleSyncCycle debounces the push-then-pull round trip. A new mutation
// before the quiet period elapses supersedes the pending cycle.
func (s *Session) scheduleSyncCycle() {
	s.pushDebounce.Schedule(func() {
		s.post(func() {
			snap := s.agg.Snapshot()
			playerID := s.state.CurrentPlayerID
			go s.runSyncCycle(playerID, snap)
		})
	})
}

// schedulePeerPull debounces a pull-only refresh of teammates' progress.
func (s *Session) schedulePeerPull() {
	s.pullDebounce.Schedule(func() {
		s.post(func() {
			playerID := s.state.CurrentPlayerID
			go s.runPeerPull(playerID)
		})
	})
}

// runSyncCycle runs off the loop: push the snapshot, then pull peers, then
// post the merge back. A push failure is recorded but never blocks local
// accumulation; the next mutation's debounce re-triggers it.
func (s *Session) runSyncCycle(playerID domain.PlayerID, snap domain.Snapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), constants.RequestTimeout)
	defer cancel()

	pushErr := s.syncer.Push(ctx, playerID, snap)
	s.post(func() { s.lastSyncErr = pushErr })
	if pushErr == nil {
		time.Sleep(constants.PostPushDelay)
	}

	delta, err := s.syncer.PullPeers(ctx, playerID)
	if err != nil {
		// Tolerable: the aggregate keeps its last-known-good state.
		s.post(s.afterChange)
		return
	}

	s.post(func() {
		s.agg.MergePeerDelta(delta)
		s.afterChange()
	})
}

func (s *Session) runPeerPull(playerID domain.PlayerID) {
	ctx, cancel := context.WithTimeout(context.Background(), constants.RequestTimeout)
	defer cancel()

	delta, err := s.syncer.PullPeers(ctx, playerID)
	if err != nil {
		return
	}
	s.post(func() {
		s.agg.MergePeerDelta(delta)
		s.afterChange()
	})
}

// RefreshFromRemote replaces the local aggregate with the full remote
// snapshot. Concurrent callers share one in-flight load.
func (s *Session) RefreshFromRemote(ctx context.Context) error {
	_, err, _ := s.refreshGroup.Do("refresh", func() (any, error) {
		resp, err := s.remote.LoadSnapshot(ctx)
		if err != nil {
			return nil, fmt.Errorf("load remote snapshot: %w", err)
		}
		if !resp.Success {
			return nil, fmt.Errorf("remote load rejected: %s", resp.Message)
		}

		s.call(func() {
			s.agg.ReplaceFromRemote(resp.BattleStats, resp.PlayerInfo)
			s.afterChange()
		})
		return nil, nil
	})
	return err
}

// ClearAll wipes the remote store and then the local aggregate. The local
// wipe only happens once the remote confirmed, so a failed clear leaves
// everything intact.
func (s *Session) ClearAll(ctx context.Context) error {
	if err := s.remote.Clear(ctx); err != nil {
		return fmt.Errorf("clear remote state: %w", err)
	}

	s.call(func() {
		s.agg.Reset()
		s.state.CurrentArenaID = ""
		if err := s.store.Clear(context.Background()); err != nil {
			s.logger.Error().Err(err).Msg("failed to clear persisted state")
		}
		s.notify()
	})
	return nil
}

// DeleteBattle removes one battle remotely, then refreshes the local
// aggregate from the remote baseline so both sides agree.
func (s *Session) DeleteBattle(ctx context.Context, arenaID string) error {
	if err := s.remote.DeleteBattle(ctx, arenaID); err != nil {
		return fmt.Errorf("delete battle %s: %w", arenaID, err)
	}
	return s.RefreshFromRemote(ctx)
}

// Snapshot returns a copy of the aggregate root.
func (s *Session) Snapshot() domain.Snapshot {
	var snap domain.Snapshot
	s.call(func() { snap = s.agg.Snapshot() })
	return snap
}

// Battle returns a copy of one battle record, or nil.
func (s *Session) Battle(arenaID string) *domain.BattleRecord {
	var battle *domain.BattleRecord
	s.call(func() { battle = s.agg.Battle(arenaID) })
	return battle
}

// BattleTotals returns the cached per-battle rollup.
func (s *Session) BattleTotals(arenaID string) domain.BattleTotals {
	var totals domain.BattleTotals
	s.call(func() { totals = s.cache.BattleTotals(arenaID) })
	return totals
}

// PlayerTotals returns the cached lifetime rollup for one player.
func (s *Session) PlayerTotals(playerID domain.PlayerID) domain.PlayerTotals {
	var totals domain.PlayerTotals
	s.call(func() { totals = s.cache.PlayerTotals(playerID) })
	return totals
}

// TeamTotals returns the cached squad-wide rollup.
func (s *Session) TeamTotals() domain.TeamTotals {
	var totals domain.TeamTotals
	s.call(func() { totals = s.cache.TeamTotals() })
	return totals
}

// LastSyncError reports the outcome of the most recent push, nil when it
// succeeded. Local accumulation continues regardless.
func (s *Session) LastSyncError() error {
	var err error
	s.call(func() { err = s.lastSyncErr })
	return err
}

// CurrentPlayerID returns the player the session is tracking.
func (s *Session) CurrentPlayerID() domain.PlayerID {
	var id domain.PlayerID
	s.call(func() { id = s.state.CurrentPlayerID })
	return id
}
