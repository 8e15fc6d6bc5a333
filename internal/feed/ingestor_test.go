package feed

import (
	"errors"
	"reflect"
	"testing"

	"squad-tracker/internal/constants"
	"squad-tracker/internal/domain"
	"squad-tracker/internal/stats"

	"github.com/rs/zerolog"
)

type scheduled struct {
	pushes int
	pulls  int
}

func newTestIngestor(t *testing.T) (*Ingestor, *stats.Aggregate, *State, *scheduled) {
	t.Helper()
	agg := stats.NewAggregate(func() int64 { return 1700000000000 })
	state := &State{}
	sched := &scheduled{}
	in := NewIngestor(agg, state, zerolog.Nop(),
		func() { sched.pushes++ },
		func() { sched.pulls++ },
	)
	return in, agg, state, sched
}

func mustHandle(t *testing.T, in *Ingestor, ev Event) bool {
	t.Helper()
	changed, err := in.Handle(ev)
	if err != nil {
		t.Fatalf("Handle(%s) = %v", ev.Kind(), err)
	}
	return changed
}

func enterBattle(t *testing.T, in *Ingestor) {
	t.Helper()
	mustHandle(t, in, HangarStatusEvent{IsInHangar: true, PlayerID: 7, PlayerName: "alice"})
	mustHandle(t, in, HangarVehicleEvent{LocalizedShortName: "IS-7"})
	mustHandle(t, in, ArenaEvent{ArenaID: "A1", LocalizedName: "Prokhorovka", PlayerName: "alice"})
}

func TestHangarStatusRegistersPlayer(t *testing.T) {
	in, agg, state, sched := newTestIngestor(t)

	changed := mustHandle(t, in, HangarStatusEvent{IsInHangar: true, PlayerID: 7, PlayerName: "alice"})
	if !changed {
		t.Error("roster upsert should report a change")
	}
	if agg.Roster()[7] != "alice" {
		t.Errorf("roster = %v, want alice at 7", agg.Roster())
	}
	if state.CurrentPlayerID != 7 {
		t.Errorf("current player = %d, want 7", state.CurrentPlayerID)
	}
	if sched.pushes != 1 {
		t.Errorf("pushes scheduled = %d, want 1", sched.pushes)
	}
}

func TestHangarStatusLeavingHangarIgnored(t *testing.T) {
	in, agg, _, _ := newTestIngestor(t)
	if changed := mustHandle(t, in, HangarStatusEvent{IsInHangar: false, PlayerID: 7}); changed {
		t.Error("leaving hangar should not change state")
	}
	if agg.RosterSize() != 0 {
		t.Error("leaving hangar must not touch the roster")
	}
}

func TestSoloRosterGate(t *testing.T) {
	in, agg, _, _ := newTestIngestor(t)

	mustHandle(t, in, HangarStatusEvent{IsInHangar: true, PlayerID: 7, PlayerName: "alice"})
	// Second account on a solo session is a stale/oversized signal.
	if changed := mustHandle(t, in, HangarStatusEvent{IsInHangar: true, PlayerID: 8, PlayerName: "bob"}); changed {
		t.Error("solo roster gate should drop a second member")
	}
	if agg.RosterSize() != 1 {
		t.Errorf("roster size = %d, want 1", agg.RosterSize())
	}
}

func TestPlatoonRosterGate(t *testing.T) {
	in, agg, _, _ := newTestIngestor(t)
	mustHandle(t, in, PlatoonStatusEvent{IsInPlatoon: true})

	for i, id := range []domain.PlayerID{7, 8, 9} {
		mustHandle(t, in, HangarStatusEvent{IsInHangar: true, PlayerID: id, PlayerName: "p"})
		if agg.RosterSize() != i+1 {
			t.Fatalf("roster size = %d after %d upserts", agg.RosterSize(), i+1)
		}
	}
	if agg.RosterSize() != constants.PlatoonRosterLimit {
		t.Fatalf("roster size = %d, want %d", agg.RosterSize(), constants.PlatoonRosterLimit)
	}

	before := agg.Roster()
	if changed := mustHandle(t, in, HangarStatusEvent{IsInHangar: true, PlayerID: 10, PlayerName: "dave"}); changed {
		t.Error("4th member should be rejected at platoon capacity")
	}
	if !reflect.DeepEqual(agg.Roster(), before) {
		t.Errorf("roster changed: %v -> %v", before, agg.Roster())
	}
}

func TestRosterGateAllowsRename(t *testing.T) {
	in, agg, _, _ := newTestIngestor(t)
	mustHandle(t, in, HangarStatusEvent{IsInHangar: true, PlayerID: 7, PlayerName: "alice"})
	mustHandle(t, in, HangarStatusEvent{IsInHangar: true, PlayerID: 7, PlayerName: "alice_new"})
	if agg.Roster()[7] != "alice_new" {
		t.Errorf("rename dropped: roster = %v", agg.Roster())
	}
}

func TestArenaEntryCreatesBattle(t *testing.T) {
	in, agg, state, _ := newTestIngestor(t)
	enterBattle(t, in)

	if state.CurrentArenaID != "A1" {
		t.Errorf("current arena = %q, want A1", state.CurrentArenaID)
	}
	battle := agg.Battle("A1")
	if battle == nil {
		t.Fatal("battle not created on arena entry")
	}
	if battle.MapName != "Prokhorovka" {
		t.Errorf("map = %q, want Prokhorovka", battle.MapName)
	}
	stat := battle.Players[7]
	if stat == nil || stat.Vehicle != "IS-7" || stat.Name != "alice" {
		t.Errorf("player stat = %+v, want alice in IS-7", stat)
	}
}

func TestArenaEntryWithoutRosterIgnored(t *testing.T) {
	in, agg, _, _ := newTestIngestor(t)
	// No hangar event ever upserted the player.
	if changed := mustHandle(t, in, ArenaEvent{ArenaID: "A1", LocalizedName: "Prokhorovka"}); changed {
		t.Error("arena entry without a tracked player should be ignored")
	}
	if agg.HasBattle("A1") {
		t.Error("battle created for untracked player")
	}
}

func TestArenaReentryKeepsStartTime(t *testing.T) {
	in, agg, _, _ := newTestIngestor(t)
	enterBattle(t, in)
	first := agg.Battle("A1").StartTime

	mustHandle(t, in, ArenaEvent{ArenaID: "A1", LocalizedName: "Prokhorovka", PlayerName: "alice"})
	if got := agg.Battle("A1").StartTime; got != first {
		t.Errorf("re-entry reset start time: %d -> %d", first, got)
	}
}

func TestDamageFeedback(t *testing.T) {
	in, agg, _, sched := newTestIngestor(t)
	enterBattle(t, in)
	pushesBefore := sched.pushes

	mustHandle(t, in, PlayerFeedbackEvent{Type: FeedbackDamage, Damage: 150})
	mustHandle(t, in, PlayerFeedbackEvent{Type: FeedbackKill})

	stat := agg.Battle("A1").Players[7]
	if stat.Damage != 150 || stat.Kills != 1 {
		t.Errorf("stat = %+v, want 150 dmg / 1 kill", stat)
	}
	if sched.pushes != pushesBefore+2 {
		t.Errorf("pushes = %d, want %d", sched.pushes, pushesBefore+2)
	}
}

func TestFeedbackOutsideBattleIgnored(t *testing.T) {
	in, agg, _, _ := newTestIngestor(t)
	mustHandle(t, in, HangarStatusEvent{IsInHangar: true, PlayerID: 7, PlayerName: "alice"})
	// Back in the hangar: no active arena.
	if changed := mustHandle(t, in, PlayerFeedbackEvent{Type: FeedbackDamage, Damage: 150}); changed {
		t.Error("damage without an active arena should be ignored")
	}
	if agg.HasBattle("A1") {
		t.Error("stray feedback created a battle")
	}
}

func TestAssistFeedbackSchedulesPull(t *testing.T) {
	in, _, _, sched := newTestIngestor(t)
	enterBattle(t, in)

	for _, typ := range []FeedbackType{
		FeedbackRadioAssist, FeedbackTrackAssist, FeedbackTanking,
		FeedbackReceivedDamage, FeedbackTargetVisibility, FeedbackDetected, FeedbackSpotted,
	} {
		mustHandle(t, in, PlayerFeedbackEvent{Type: typ})
	}
	if sched.pulls != 7 {
		t.Errorf("pulls scheduled = %d, want 7", sched.pulls)
	}
}

func TestTeammateDamageSchedulesPull(t *testing.T) {
	in, agg, _, sched := newTestIngestor(t)
	mustHandle(t, in, PlatoonStatusEvent{IsInPlatoon: true})
	mustHandle(t, in, HangarStatusEvent{IsInHangar: true, PlayerID: 7, PlayerName: "alice"})
	agg.UpsertRosterPlayer(9, "bob")
	mustHandle(t, in, ArenaEvent{ArenaID: "A1", LocalizedName: "Prokhorovka", PlayerName: "alice"})
	pullsBefore := sched.pulls

	mustHandle(t, in, AnyDamageEvent{AttackerID: 9}) // tracked teammate
	mustHandle(t, in, AnyDamageEvent{AttackerID: 7}) // self
	mustHandle(t, in, AnyDamageEvent{AttackerID: 99}) // enemy

	if sched.pulls != pullsBefore+1 {
		t.Errorf("pulls = %d, want exactly one for the teammate", sched.pulls-pullsBefore)
	}
}

func TestBattleResultAuthoritativeOverwrite(t *testing.T) {
	in, agg, _, _ := newTestIngestor(t)
	enterBattle(t, in)
	mustHandle(t, in, PlayerFeedbackEvent{Type: FeedbackDamage, Damage: 999})

	mustHandle(t, in, BattleResultEvent{
		ArenaID:     "A1",
		AccountID:   7,
		Duration:    600,
		WinnerTeam:  1,
		PlayerTeams: map[domain.PlayerID]int{7: 1},
		Vehicles: map[string][]VehicleResult{
			"v1": {{AccountID: 7, DamageDealt: 1200, Kills: 3}},
		},
	})

	battle := agg.Battle("A1")
	if battle.Win != domain.WinVictory || battle.Duration != 600 {
		t.Errorf("battle = win %d dur %d, want victory/600", battle.Win, battle.Duration)
	}
	stat := battle.Players[7]
	want := 1200 + 3*constants.PointsPerFrag
	if stat.Damage != 1200 || stat.Kills != 3 || stat.Points != want {
		t.Errorf("stat = %+v, want 1200/3/%d", stat, want)
	}
}

func TestBattleResultOutcomes(t *testing.T) {
	tests := []struct {
		name       string
		playerTeam int
		winnerTeam int
		want       int
	}{
		{"victory", 1, 1, domain.WinVictory},
		{"defeat", 1, 2, domain.WinDefeat},
		{"draw", 1, 0, domain.WinDraw},
		{"unknown player team", 0, 1, domain.WinInProgress},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := resolveOutcome(tt.playerTeam, tt.winnerTeam); got != tt.want {
				t.Errorf("resolveOutcome(%d, %d) = %d, want %d", tt.playerTeam, tt.winnerTeam, got, tt.want)
			}
		})
	}
}

func TestMalformedBattleResultRejected(t *testing.T) {
	in, agg, _, _ := newTestIngestor(t)
	enterBattle(t, in)
	mustHandle(t, in, PlayerFeedbackEvent{Type: FeedbackDamage, Damage: 150})
	before := agg.Battles()

	// Missing vehicles: reject, leave the aggregate untouched.
	changed, err := in.Handle(BattleResultEvent{
		ArenaID:     "A1",
		AccountID:   7,
		PlayerTeams: map[domain.PlayerID]int{7: 1},
	})
	if !errors.Is(err, ErrMissingVehicles) {
		t.Fatalf("Handle = %v, want ErrMissingVehicles", err)
	}
	if changed {
		t.Error("malformed result reported a change")
	}
	if !reflect.DeepEqual(agg.Battles(), before) {
		t.Error("malformed result mutated the aggregate")
	}
}

func TestBattleResultUnknownTeamKeepsMergedOutcome(t *testing.T) {
	in, agg, _, _ := newTestIngestor(t)
	enterBattle(t, in)

	// A peer already resolved this battle.
	agg.MergePeerDelta(domain.BattleStats{
		"A1": {StartTime: 1, Win: domain.WinVictory, MapName: "Prokhorovka",
			Players: map[domain.PlayerID]*domain.PlayerStat{}},
	})

	// The local result lists teams but not the local player's.
	mustHandle(t, in, BattleResultEvent{
		ArenaID:     "A1",
		AccountID:   7,
		Duration:    600,
		WinnerTeam:  1,
		PlayerTeams: map[domain.PlayerID]int{9: 2},
		Vehicles:    map[string][]VehicleResult{},
	})

	if got := agg.Battle("A1").Win; got != domain.WinVictory {
		t.Errorf("win = %d, want merged victory preserved", got)
	}
}

func TestBattleResultForUntrackedArenaIgnored(t *testing.T) {
	in, agg, _, _ := newTestIngestor(t)
	enterBattle(t, in)

	changed := mustHandle(t, in, BattleResultEvent{
		ArenaID:     "never-seen",
		AccountID:   7,
		PlayerTeams: map[domain.PlayerID]int{7: 1},
		Vehicles:    map[string][]VehicleResult{},
	})
	if changed {
		t.Error("result for unknown arena should be a no-op")
	}
	if agg.HasBattle("never-seen") {
		t.Error("result created a battle record")
	}
}
