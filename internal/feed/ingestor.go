package feed

import (
	"fmt"

	"squad-tracker/internal/constants"
	"squad-tracker/internal/domain"
	"squad-tracker/internal/stats"

	"github.com/rs/zerolog"
)

// State is the ingestor's session-scoped context: where the player currently
// is, not what they have scored. It is persisted alongside the aggregate.
type State struct {
	CurrentPlayerID domain.PlayerID
	CurrentArenaID  string
	CurrentVehicle  string
	IsInPlatoon     bool
}

// Ingestor translates feed events into aggregate mutations. It applies the
// guard conditions that keep a continuously firing feed from corrupting the
// aggregate: no arena, no tracked player, no mutation. It always runs on the
// session loop, so the aggregate sees a single writer.
type Ingestor struct {
	agg    *stats.Aggregate
	state  *State
	logger zerolog.Logger

	schedulePush func()
	schedulePull func()
}

func NewIngestor(agg *stats.Aggregate, state *State, logger zerolog.Logger, schedulePush, schedulePull func()) *Ingestor {
	return &Ingestor{
		agg:          agg,
		state:        state,
		logger:       logger,
		schedulePush: schedulePush,
		schedulePull: schedulePull,
	}
}

// Handle applies one feed event. It reports whether externally visible state
// changed (so the caller can persist and notify) and returns an error only
// for malformed payloads; guard-condition misses are silent no-ops.
func (in *Ingestor) Handle(ev Event) (bool, error) {
	if err := ev.Validate(); err != nil {
		return false, fmt.Errorf("%s event rejected: %w", ev.Kind(), err)
	}

	switch e := ev.(type) {
	case HangarStatusEvent:
		return in.handleHangarStatus(e), nil
	case HangarVehicleEvent:
		in.handleHangarVehicle(e)
		return false, nil
	case PlatoonStatusEvent:
		in.state.IsInPlatoon = e.IsInPlatoon
		return true, nil
	case ArenaEvent:
		return in.handleArena(e), nil
	case AnyDamageEvent:
		in.handleAnyDamage(e)
		return false, nil
	case PlayerFeedbackEvent:
		return in.handleFeedback(e), nil
	case BattleResultEvent:
		return in.handleBattleResult(e), nil
	default:
		in.logger.Debug().Str("kind", ev.Kind()).Msg("unhandled feed event")
		return false, nil
	}
}

// handleHangarStatus re-reads the player identity, leaves any active arena
// and upserts the player into the roster, subject to the squad size gate:
// renames of tracked members always pass, new members are dropped once the
// roster is at capacity (solo 1, platoon 3).
func (in *Ingestor) handleHangarStatus(e HangarStatusEvent) bool {
	if !e.IsInHangar {
		return false
	}

	in.state.CurrentArenaID = ""
	in.state.CurrentPlayerID = e.PlayerID
	if e.PlayerID == 0 {
		return false
	}

	if !in.agg.InRoster(e.PlayerID) {
		limit := constants.SoloRosterLimit
		if in.state.IsInPlatoon {
			limit = constants.PlatoonRosterLimit
		}
		if in.agg.RosterSize() >= limit {
			in.logger.Debug().
				Int64("player_id", int64(e.PlayerID)).
				Int("roster_size", in.agg.RosterSize()).
				Bool("platoon", in.state.IsInPlatoon).
				Msg("roster at capacity, dropping upsert")
			return false
		}
	}

	in.agg.UpsertRosterPlayer(e.PlayerID, e.PlayerName)
	in.schedulePush()
	return true
}

func (in *Ingestor) handleHangarVehicle(e HangarVehicleEvent) {
	if e.LocalizedShortName != "" {
		in.state.CurrentVehicle = e.LocalizedShortName
	} else {
		in.state.CurrentVehicle = domain.UnknownVehicle
	}
}

// handleArena opens the battle record for the entered arena and stamps the
// freshest map/name/vehicle context onto the local player's stat.
func (in *Ingestor) handleArena(e ArenaEvent) bool {
	if e.ArenaID == "" {
		return false
	}
	in.state.CurrentArenaID = e.ArenaID

	playerID := in.state.CurrentPlayerID
	if playerID == 0 || !in.agg.InRoster(playerID) {
		return false
	}

	in.agg.EnsureBattle(e.ArenaID)
	in.agg.EnsurePlayer(e.ArenaID, playerID, in.state.CurrentVehicle)
	in.agg.SetMapName(e.ArenaID, e.LocalizedName)
	in.agg.SetPlayerContext(e.ArenaID, playerID, e.PlayerName, in.state.CurrentVehicle)
	in.schedulePush()
	return true
}

// handleAnyDamage watches for teammates dealing damage; their progress lives
// on the remote store, so a peer pull is scheduled.
func (in *Ingestor) handleAnyDamage(e AnyDamageEvent) {
	if e.AttackerID == 0 || in.state.CurrentArenaID == "" || in.state.CurrentPlayerID == 0 {
		return
	}
	if e.AttackerID != in.state.CurrentPlayerID && in.agg.InRoster(e.AttackerID) {
		in.schedulePull()
	}
}

func (in *Ingestor) handleFeedback(e PlayerFeedbackEvent) bool {
	switch e.Type {
	case FeedbackDamage:
		if !in.inBattle() {
			return false
		}
		in.agg.RecordDamage(in.state.CurrentArenaID, in.state.CurrentPlayerID, e.Damage)
		in.schedulePush()
		return true
	case FeedbackKill:
		if !in.inBattle() {
			return false
		}
		in.agg.RecordKill(in.state.CurrentArenaID, in.state.CurrentPlayerID)
		in.schedulePush()
		return true
	case FeedbackRadioAssist, FeedbackTrackAssist, FeedbackTanking, FeedbackReceivedDamage,
		FeedbackTargetVisibility, FeedbackDetected, FeedbackSpotted:
		// These mean teammates are active; their stats arrive via peers.
		if in.state.CurrentArenaID != "" && in.state.CurrentPlayerID != 0 {
			in.schedulePull()
		}
		return false
	default:
		return false
	}
}

// handleBattleResult applies the authoritative end-of-battle overwrite and
// implicitly ends the in-battle phase; the next arena event starts a new one.
func (in *Ingestor) handleBattleResult(e BattleResultEvent) bool {
	in.state.CurrentPlayerID = e.AccountID

	if !in.agg.HasBattle(e.ArenaID) {
		in.logger.Warn().Str("arena_id", e.ArenaID).Msg("battle result for untracked arena, ignoring")
		return false
	}

	win := resolveOutcome(e.PlayerTeams[e.AccountID], e.WinnerTeam)

	finals := make(map[domain.PlayerID]stats.FinalStat)
	for _, entries := range e.Vehicles {
		for _, v := range entries {
			if v.AccountID == e.AccountID {
				finals[e.AccountID] = stats.FinalStat{DamageDealt: v.DamageDealt, Kills: v.Kills}
			}
		}
	}

	in.agg.ApplyBattleResult(e.ArenaID, win, e.Duration, finals)

	if in.agg.InRoster(e.AccountID) {
		in.schedulePush()
	}
	return true
}

func (in *Ingestor) inBattle() bool {
	return in.state.CurrentArenaID != "" &&
		in.state.CurrentPlayerID != 0 &&
		in.agg.InRoster(in.state.CurrentPlayerID)
}

// resolveOutcome maps team numbers to the tri-state outcome: winnerTeam 0 is
// a draw, an unknown player team leaves the battle in progress.
func resolveOutcome(playerTeam, winnerTeam int) int {
	if playerTeam == 0 {
		return domain.WinInProgress
	}
	switch winnerTeam {
	case 0:
		return domain.WinDraw
	case playerTeam:
		return domain.WinVictory
	default:
		return domain.WinDefeat
	}
}
