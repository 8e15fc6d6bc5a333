package stats

import "squad-tracker/internal/domain"

// MergePeerDelta folds a peer-contributed partial snapshot into the
// aggregate. Battle-level scalars come from the peer (assumed fresher), the
// local player map stays the base, and overlapping players resolve by
// field-wise maximum of damage/kills/points. Counters only ever grow, so the
// merge is commutative, associative and idempotent and converges regardless
// of delivery order or duplication.
func (a *Aggregate) MergePeerDelta(incoming domain.BattleStats) {
	if len(incoming) == 0 {
		return
	}
	for arenaID, peer := range incoming {
		if peer == nil {
			continue
		}
		local, ok := a.battles[arenaID]
		if !ok {
			a.battles[arenaID] = peer.Clone()
			continue
		}
		local.StartTime = peer.StartTime
		local.Duration = peer.Duration
		local.Win = peer.Win
		local.MapName = peer.MapName
		for playerID, peerStat := range peer.Players {
			if peerStat == nil {
				continue
			}
			localStat, ok := local.Players[playerID]
			if !ok {
				cp := *peerStat
				local.Players[playerID] = &cp
				continue
			}
			localStat.Name = peerStat.Name
			localStat.Vehicle = peerStat.Vehicle
			localStat.Damage = max(localStat.Damage, peerStat.Damage)
			localStat.Kills = max(localStat.Kills, peerStat.Kills)
			localStat.Points = max(localStat.Points, peerStat.Points)
		}
	}
	a.touch()
}

// ReplaceFromRemote installs a full remote snapshot as the authoritative
// baseline, used at session start and on explicit refresh. Missing parts of
// the payload leave the corresponding local side untouched.
func (a *Aggregate) ReplaceFromRemote(battles domain.BattleStats, roster domain.PlayersInfo) {
	changed := false
	if battles != nil {
		a.battles = normalizeBattles(battles)
		changed = true
	}
	if roster != nil {
		a.roster = roster
		changed = true
	}
	if changed {
		a.touch()
	}
}
