package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"squad-tracker/internal/constants"
	"squad-tracker/internal/domain"

	"github.com/rs/zerolog"
)

// ErrInvalidImport means the import payload failed validation and nothing
// was applied.
var ErrInvalidImport = errors.New("invalid import payload")

// Importer is the slice of the remote client used for merging externally
// provided battle records.
type Importer interface {
	Import(ctx context.Context, battles domain.BattleStats) error
}

// Source provides the battle data under review and the refresh path back to
// the authoritative baseline.
type Source interface {
	Snapshot() domain.Snapshot
	DeleteBattle(ctx context.Context, arenaID string) error
	RefreshFromRemote(ctx context.Context) error
}

// Manager drives the battle-history review screen: listing, filtering,
// export/import and per-battle deletion. It never mutates the aggregate
// directly; deletes and imports round-trip through the remote store and come
// back via a refresh.
type Manager struct {
	source   Source
	importer Importer
	logger   zerolog.Logger
}

func NewManager(source Source, importer Importer, logger zerolog.Logger) *Manager {
	return &Manager{source: source, importer: importer, logger: logger}
}

// Entry is one battle plus its arena id, in list form for the UI.
type Entry struct {
	ID string `json:"id"`
	*domain.BattleRecord
}

// Result names for the outcome filter.
const (
	ResultVictory  = "victory"
	ResultDefeat   = "defeat"
	ResultDraw     = "draw"
	ResultInBattle = "inBattle"
)

var resultValues = map[string]int{
	ResultVictory:  domain.WinVictory,
	ResultDefeat:   domain.WinDefeat,
	ResultDraw:     domain.WinDraw,
	ResultInBattle: domain.WinInProgress,
}

// Filters narrows the battle list; zero values mean "no constraint".
type Filters struct {
	Map     string
	Vehicle string
	Result  string
	Date    string // YYYY-MM-DD, matches the battle's start day
	Player  string
}

// Battles lists every battle as an entry slice.
func (m *Manager) Battles() []Entry {
	snap := m.source.Snapshot()
	entries := make([]Entry, 0, len(snap.BattleStats))
	for arenaID, battle := range snap.BattleStats {
		entries = append(entries, Entry{ID: arenaID, BattleRecord: battle})
	}
	return entries
}

// Filter applies the given filters to the current battle list.
func (m *Manager) Filter(filters Filters) []Entry {
	entries := m.Battles()
	if filters.Map != "" {
		entries = filterMap(entries, filters.Map)
	}
	if filters.Vehicle != "" {
		entries = filterVehicle(entries, filters.Vehicle)
	}
	if filters.Result != "" {
		entries = filterResult(entries, filters.Result)
	}
	if filters.Date != "" {
		entries = filterDate(entries, filters.Date)
	}
	if filters.Player != "" {
		entries = filterPlayer(entries, filters.Player)
	}
	return entries
}

func filterMap(entries []Entry, mapName string) []Entry {
	var out []Entry
	for _, e := range entries {
		if e.MapName == mapName {
			out = append(out, e)
		}
	}
	return out
}

func filterVehicle(entries []Entry, vehicle string) []Entry {
	var out []Entry
	for _, e := range entries {
		for _, p := range e.Players {
			if p.Vehicle == vehicle {
				out = append(out, e)
				break
			}
		}
	}
	return out
}

func filterResult(entries []Entry, result string) []Entry {
	win, ok := resultValues[result]
	if !ok {
		return nil
	}
	var out []Entry
	for _, e := range entries {
		if e.Win == win {
			out = append(out, e)
		}
	}
	return out
}

func filterDate(entries []Entry, date string) []Entry {
	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return nil
	}
	var out []Entry
	for _, e := range entries {
		if e.StartTime == 0 {
			continue
		}
		started := time.UnixMilli(e.StartTime).UTC()
		if started.Year() == day.Year() && started.YearDay() == day.YearDay() {
			out = append(out, e)
		}
	}
	return out
}

func filterPlayer(entries []Entry, player string) []Entry {
	var out []Entry
	for _, e := range entries {
		for _, p := range e.Players {
			if p.Name == player {
				out = append(out, e)
				break
			}
		}
	}
	return out
}

// RatedBattle is a battle together with its total points.
type RatedBattle struct {
	Entry
	Points int `json:"points"`
}

// BestAndWorst finds the completed battles with the highest and lowest total
// points. Both are nil when no battle has finished yet.
func (m *Manager) BestAndWorst() (best, worst *RatedBattle) {
	for _, e := range m.Battles() {
		if e.Win == domain.WinInProgress {
			continue
		}
		points := battlePoints(e.BattleRecord)
		if best == nil || points > best.Points {
			best = &RatedBattle{Entry: e, Points: points}
		}
		if worst == nil || points < worst.Points {
			worst = &RatedBattle{Entry: e, Points: points}
		}
	}
	return best, worst
}

func battlePoints(battle *domain.BattleRecord) int {
	points := 0
	if battle.Win == domain.WinVictory {
		points = constants.PointsPerTeamWin
	}
	for _, p := range battle.Players {
		points += p.Points
	}
	return points
}

// Export serializes all battle records for download.
func (m *Manager) Export() ([]byte, error) {
	data, err := json.MarshalIndent(m.source.Snapshot().BattleStats, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("export battles: %w", err)
	}
	return data, nil
}

// Import validates an exported payload and merges it through the remote
// store, then refreshes the local aggregate from the merged baseline.
// Validation fails closed: a bad payload changes nothing anywhere.
func (m *Manager) Import(ctx context.Context, payload []byte) error {
	var battles domain.BattleStats
	if err := json.Unmarshal(payload, &battles); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidImport, err)
	}
	if len(battles) == 0 {
		return fmt.Errorf("%w: no battles", ErrInvalidImport)
	}
	for arenaID, battle := range battles {
		if err := validateBattle(battle); err != nil {
			return fmt.Errorf("%w: battle %s: %v", ErrInvalidImport, arenaID, err)
		}
	}

	if err := m.importer.Import(ctx, battles); err != nil {
		return fmt.Errorf("import battles: %w", err)
	}
	if err := m.source.RefreshFromRemote(ctx); err != nil {
		return fmt.Errorf("refresh after import: %w", err)
	}

	m.logger.Info().Int("battles", len(battles)).Msg("battle import applied")
	return nil
}

func validateBattle(battle *domain.BattleRecord) error {
	if battle == nil {
		return errors.New("missing battle record")
	}
	if battle.StartTime <= 0 {
		return errors.New("missing start time")
	}
	if battle.Win < domain.WinInProgress || battle.Win > domain.WinDraw {
		return fmt.Errorf("invalid outcome %d", battle.Win)
	}
	if battle.MapName == "" {
		return errors.New("missing map name")
	}
	if battle.Players == nil {
		return errors.New("missing players")
	}
	for playerID, stat := range battle.Players {
		if err := validatePlayerStat(stat); err != nil {
			return fmt.Errorf("player %d: %w", playerID, err)
		}
	}
	return nil
}

func validatePlayerStat(stat *domain.PlayerStat) error {
	if stat == nil {
		return errors.New("missing stat")
	}
	if stat.Name == "" {
		return errors.New("missing name")
	}
	if stat.Vehicle == "" {
		return errors.New("missing vehicle")
	}
	if stat.Damage < 0 || stat.Kills < 0 || stat.Points < 0 {
		return errors.New("negative counter")
	}
	return nil
}

// Delete removes one battle remotely and refreshes the local view.
func (m *Manager) Delete(ctx context.Context, arenaID string) error {
	if err := m.source.DeleteBattle(ctx, arenaID); err != nil {
		return err
	}
	m.logger.Info().Str("arena_id", arenaID).Msg("battle deleted")
	return nil
}
