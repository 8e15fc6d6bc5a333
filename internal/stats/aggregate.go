package stats

import (
	"squad-tracker/internal/constants"
	"squad-tracker/internal/domain"
)

// Aggregate holds the canonical in-memory battle stats. It is owned by a
// single writer (the session loop); no locking happens here. Every mutation
// bumps the generation counter, which the derived-stats cache keys on.
type Aggregate struct {
	battles domain.BattleStats
	roster  domain.PlayersInfo
	gen     uint64

	now func() int64 // unix millis, swappable in tests
}

func NewAggregate(now func() int64) *Aggregate {
	return &Aggregate{
		battles: make(domain.BattleStats),
		roster:  make(domain.PlayersInfo),
		now:     now,
	}
}

// Generation changes on every mutation of externally visible state.
func (a *Aggregate) Generation() uint64 { return a.gen }

func (a *Aggregate) touch() { a.gen++ }

// EnsureBattle creates the battle record for arenaID if absent. Re-entering
// an arena never resets its start time.
func (a *Aggregate) EnsureBattle(arenaID string) {
	if arenaID == "" {
		return
	}
	if _, ok := a.battles[arenaID]; ok {
		return
	}
	a.battles[arenaID] = &domain.BattleRecord{
		StartTime: a.now(),
		Duration:  0,
		Win:       domain.WinInProgress,
		MapName:   domain.UnknownMap,
		Players:   make(map[domain.PlayerID]*domain.PlayerStat),
	}
	a.touch()
}

// EnsurePlayer creates the per-battle stat for playerID if absent, seeded
// from the roster name and the given vehicle context.
func (a *Aggregate) EnsurePlayer(arenaID string, playerID domain.PlayerID, vehicle string) {
	battle, ok := a.battles[arenaID]
	if !ok {
		return
	}
	if _, ok := battle.Players[playerID]; ok {
		return
	}
	name := a.roster[playerID]
	if name == "" {
		name = domain.UnknownPlayer
	}
	if vehicle == "" {
		vehicle = domain.UnknownVehicle
	}
	battle.Players[playerID] = &domain.PlayerStat{
		Name:    name,
		Vehicle: vehicle,
	}
	a.touch()
}

// SetMapName overwrites the battle's map label as better data arrives.
func (a *Aggregate) SetMapName(arenaID, mapName string) {
	battle, ok := a.battles[arenaID]
	if !ok || mapName == "" {
		return
	}
	battle.MapName = mapName
	a.touch()
}

// SetPlayerContext refreshes the display name and vehicle labels on an
// existing per-battle stat.
func (a *Aggregate) SetPlayerContext(arenaID string, playerID domain.PlayerID, name, vehicle string) {
	battle, ok := a.battles[arenaID]
	if !ok {
		return
	}
	stat, ok := battle.Players[playerID]
	if !ok {
		return
	}
	if name != "" {
		stat.Name = name
	}
	if vehicle != "" {
		stat.Vehicle = vehicle
	}
	a.touch()
}

// RecordDamage adds damage and the corresponding provisional points. A
// missing battle or player context makes this a no-op.
func (a *Aggregate) RecordDamage(arenaID string, playerID domain.PlayerID, damage int) {
	stat := a.playerStat(arenaID, playerID)
	if stat == nil || damage <= 0 {
		return
	}
	stat.Damage += damage
	stat.Points += damage * constants.PointsPerDamage
	a.touch()
}

// RecordKill adds one kill and the flat frag bonus.
func (a *Aggregate) RecordKill(arenaID string, playerID domain.PlayerID) {
	stat := a.playerStat(arenaID, playerID)
	if stat == nil {
		return
	}
	stat.Kills++
	stat.Points += constants.PointsPerFrag
	a.touch()
}

// FinalStat is the server-confirmed end-of-battle tally for one player.
type FinalStat struct {
	DamageDealt int
	Kills       int
}

// ApplyBattleResult is the authoritative overwrite: it resolves the outcome,
// stamps the duration and replaces each listed player's stats with the final
// values. Points become damageDealt + kills*PointsPerFrag, superseding
// whatever the incremental tracking accumulated. An unresolved outcome never
// replaces one already set, so a result lacking the player's team cannot
// regress an outcome a peer merge delivered first.
func (a *Aggregate) ApplyBattleResult(arenaID string, win, durationSeconds int, finals map[domain.PlayerID]FinalStat) {
	battle, ok := a.battles[arenaID]
	if !ok {
		return
	}
	if win != domain.WinInProgress {
		battle.Win = win
	}
	battle.Duration = durationSeconds
	for playerID, final := range finals {
		stat, ok := battle.Players[playerID]
		if !ok {
			continue
		}
		stat.Damage = final.DamageDealt
		stat.Kills = final.Kills
		stat.Points = final.DamageDealt + final.Kills*constants.PointsPerFrag
	}
	a.touch()
}

// UpsertRosterPlayer records or renames a squad member.
func (a *Aggregate) UpsertRosterPlayer(playerID domain.PlayerID, name string) {
	a.roster[playerID] = name
	a.touch()
}

// RosterSize reports the number of tracked squad members.
func (a *Aggregate) RosterSize() int { return len(a.roster) }

// InRoster reports whether playerID is a tracked squad member.
func (a *Aggregate) InRoster(playerID domain.PlayerID) bool {
	_, ok := a.roster[playerID]
	return ok
}

// Roster returns a copy of the squad roster.
func (a *Aggregate) Roster() domain.PlayersInfo {
	return a.roster.Clone()
}

// Battle returns a deep copy of one battle record, or nil if absent.
func (a *Aggregate) Battle(arenaID string) *domain.BattleRecord {
	return a.battles[arenaID].Clone()
}

// HasBattle reports whether a record exists for arenaID.
func (a *Aggregate) HasBattle(arenaID string) bool {
	_, ok := a.battles[arenaID]
	return ok
}

// Battles returns a deep copy of all battle records.
func (a *Aggregate) Battles() domain.BattleStats {
	return a.battles.Clone()
}

// Snapshot returns a deep copy of the aggregate root, the unit pushed to the
// remote store and handed to external readers.
func (a *Aggregate) Snapshot() domain.Snapshot {
	return domain.Snapshot{
		BattleStats: a.battles.Clone(),
		PlayersInfo: a.roster.Clone(),
	}
}

// DeleteBattle removes one battle record.
func (a *Aggregate) DeleteBattle(arenaID string) {
	if _, ok := a.battles[arenaID]; !ok {
		return
	}
	delete(a.battles, arenaID)
	a.touch()
}

// Reset drops all battles and the roster. Only an explicit user-initiated
// wipe reaches this.
func (a *Aggregate) Reset() {
	a.battles = make(domain.BattleStats)
	a.roster = make(domain.PlayersInfo)
	a.touch()
}

// Restore replaces the aggregate contents from a persisted or remote
// snapshot. Nil maps are normalized to empty ones.
func (a *Aggregate) Restore(battles domain.BattleStats, roster domain.PlayersInfo) {
	if roster == nil {
		roster = make(domain.PlayersInfo)
	}
	a.battles = normalizeBattles(battles)
	a.roster = roster
	a.touch()
}

// normalizeBattles deep-copies a decoded battle map so that later mutations
// never hit a nil map: nil records are dropped and absent player maps are
// materialized. Decoded payloads are not trusted to carry every field.
func normalizeBattles(battles domain.BattleStats) domain.BattleStats {
	out := make(domain.BattleStats, len(battles))
	for arenaID, battle := range battles {
		if battle == nil {
			continue
		}
		out[arenaID] = battle.Clone()
	}
	return out
}

func (a *Aggregate) playerStat(arenaID string, playerID domain.PlayerID) *domain.PlayerStat {
	battle, ok := a.battles[arenaID]
	if !ok {
		return nil
	}
	return battle.Players[playerID]
}
