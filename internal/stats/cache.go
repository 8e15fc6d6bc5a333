package stats

import (
	"squad-tracker/internal/constants"
	"squad-tracker/internal/domain"
)

// Cache memoizes rollups over the aggregate within one generation. Any
// mutation bumps the aggregate generation, which drops every memoized entry,
// so a cached value always equals a from-scratch recomputation.
type Cache struct {
	agg *Aggregate

	gen     uint64
	battles map[string]domain.BattleTotals
	players map[domain.PlayerID]domain.PlayerTotals
	team    *domain.TeamTotals
}

func NewCache(agg *Aggregate) *Cache {
	c := &Cache{agg: agg}
	c.resetFor(agg.Generation())
	return c
}

func (c *Cache) resetFor(gen uint64) {
	c.gen = gen
	c.battles = make(map[string]domain.BattleTotals)
	c.players = make(map[domain.PlayerID]domain.PlayerTotals)
	c.team = nil
}

func (c *Cache) ensureFresh() {
	if gen := c.agg.Generation(); gen != c.gen {
		c.resetFor(gen)
	}
}

// BattleTotals sums one battle's players plus the team-win bonus.
func (c *Cache) BattleTotals(arenaID string) domain.BattleTotals {
	c.ensureFresh()
	if totals, ok := c.battles[arenaID]; ok {
		return totals
	}
	totals := computeBattleTotals(c.agg.battles[arenaID])
	c.battles[arenaID] = totals
	return totals
}

// PlayerTotals sums one player's stats across all battles.
func (c *Cache) PlayerTotals(playerID domain.PlayerID) domain.PlayerTotals {
	c.ensureFresh()
	if totals, ok := c.players[playerID]; ok {
		return totals
	}
	var totals domain.PlayerTotals
	for _, battle := range c.agg.battles {
		if stat, ok := battle.Players[playerID]; ok {
			totals.Points += stat.Points
			totals.Damage += stat.Damage
			totals.Kills += stat.Kills
		}
	}
	c.players[playerID] = totals
	return totals
}

// TeamTotals sums every battle, counting wins and the win bonus per victory.
func (c *Cache) TeamTotals() domain.TeamTotals {
	c.ensureFresh()
	if c.team != nil {
		return *c.team
	}
	var totals domain.TeamTotals
	for _, battle := range c.agg.battles {
		totals.BattleCount++
		if battle.Win == domain.WinVictory {
			totals.Points += constants.PointsPerTeamWin
			totals.Wins++
		}
		for _, stat := range battle.Players {
			totals.Points += stat.Points
			totals.Damage += stat.Damage
			totals.Kills += stat.Kills
		}
	}
	c.team = &totals
	return totals
}

func computeBattleTotals(battle *domain.BattleRecord) domain.BattleTotals {
	var totals domain.BattleTotals
	if battle == nil {
		return totals
	}
	if battle.Win == domain.WinVictory {
		totals.Points = constants.PointsPerTeamWin
	}
	for _, stat := range battle.Players {
		totals.Points += stat.Points
		totals.Damage += stat.Damage
		totals.Kills += stat.Kills
	}
	return totals
}
