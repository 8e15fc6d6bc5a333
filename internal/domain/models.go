package domain

// PlayerID identifies one game account.
type PlayerID int64

// Battle outcome states. A battle starts in progress and is resolved exactly
// once by the battle-result event.
const (
	WinInProgress = -1
	WinDefeat     = 0
	WinVictory    = 1
	WinDraw       = 2
)

const (
	UnknownMap     = "Unknown Map"
	UnknownVehicle = "Unknown Vehicle"
	UnknownPlayer  = "Unknown Player"
)

// PlayerStat holds one player's accumulated stats within a single battle.
type PlayerStat struct {
	Name    string `json:"name"`
	Vehicle string `json:"vehicle"`
	Damage  int    `json:"damage"`
	Kills   int    `json:"kills"`
	Points  int    `json:"points"`
}

// BattleRecord is one played arena, keyed externally by its ArenaID.
type BattleRecord struct {
	StartTime int64                    `json:"startTime"` // unix millis, immutable after creation
	Duration  int                      `json:"duration"`  // seconds, set once at battle end
	Win       int                      `json:"win"`
	MapName   string                   `json:"mapName"`
	Players   map[PlayerID]*PlayerStat `json:"players"`
}

// Clone returns a deep copy of the record.
func (b *BattleRecord) Clone() *BattleRecord {
	if b == nil {
		return nil
	}
	out := &BattleRecord{
		StartTime: b.StartTime,
		Duration:  b.Duration,
		Win:       b.Win,
		MapName:   b.MapName,
		Players:   make(map[PlayerID]*PlayerStat, len(b.Players)),
	}
	for id, p := range b.Players {
		if p == nil {
			continue
		}
		cp := *p
		out.Players[id] = &cp
	}
	return out
}

// BattleStats maps ArenaID to its battle record.
type BattleStats map[string]*BattleRecord

// Clone returns a deep copy of the whole mapping.
func (s BattleStats) Clone() BattleStats {
	out := make(BattleStats, len(s))
	for id, b := range s {
		out[id] = b.Clone()
	}
	return out
}

// PlayersInfo is the squad roster: player id to display name. Entries are
// added when a player is first observed and removed only by a full reset.
type PlayersInfo map[PlayerID]string

// Clone returns a copy of the roster.
func (p PlayersInfo) Clone() PlayersInfo {
	out := make(PlayersInfo, len(p))
	for id, name := range p {
		out[id] = name
	}
	return out
}

// Snapshot is the aggregate root: the unit of persistence and of server
// synchronization.
type Snapshot struct {
	BattleStats BattleStats `json:"BattleStats"`
	PlayersInfo PlayersInfo `json:"PlayerInfo"`
}

// SessionState is the blob persisted by the local state store between runs.
type SessionState struct {
	BattleStats     BattleStats `json:"BattleStats"`
	PlayersInfo     PlayersInfo `json:"PlayersInfo"`
	CurrentPlayerID PlayerID    `json:"curentPlayerId"`
	CurrentArenaID  string      `json:"curentArenaId"`
	CurrentVehicle  string      `json:"curentVehicle"`
	IsInPlatoon     bool        `json:"isInPlatoon"`
}

// BattleTotals is the per-battle rollup across all players plus win bonus.
type BattleTotals struct {
	Points int `json:"points"`
	Damage int `json:"damage"`
	Kills  int `json:"kills"`
}

// PlayerTotals is one player's lifetime rollup across all battles.
type PlayerTotals struct {
	Points int `json:"points"`
	Damage int `json:"damage"`
	Kills  int `json:"kills"`
}

// TeamTotals is the squad-wide rollup across all battles.
type TeamTotals struct {
	Points      int `json:"points"`
	Damage      int `json:"damage"`
	Kills       int `json:"kills"`
	Wins        int `json:"wins"`
	BattleCount int `json:"battles"`
}
