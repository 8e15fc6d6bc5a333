package feed

import (
	"errors"

	"squad-tracker/internal/domain"
)

// Feed event validation errors. The feed fires continuously and payload
// shapes are not trusted; malformed events are rejected at this boundary and
// never reach the aggregate.
var (
	ErrMissingVehicles = errors.New("battle result missing vehicles")
	ErrMissingPlayers  = errors.New("battle result missing players")
	ErrMissingArena    = errors.New("battle result missing arena id")
	ErrMissingAccount  = errors.New("battle result missing account id")
)

// Event is one signal from the game-client feed.
type Event interface {
	Kind() string
	Validate() error
}

// HangarStatusEvent fires when the client enters or leaves the hangar. It
// carries the current player identity observed at that moment.
type HangarStatusEvent struct {
	IsInHangar bool
	PlayerID   domain.PlayerID
	PlayerName string
}

func (HangarStatusEvent) Kind() string    { return "hangarStatus" }
func (HangarStatusEvent) Validate() error { return nil }

// HangarVehicleEvent reports the vehicle selected in the hangar.
type HangarVehicleEvent struct {
	LocalizedShortName string
}

func (HangarVehicleEvent) Kind() string    { return "hangarVehicle" }
func (HangarVehicleEvent) Validate() error { return nil }

// PlatoonStatusEvent reports whether the player is in a platoon.
type PlatoonStatusEvent struct {
	IsInPlatoon bool
}

func (PlatoonStatusEvent) Kind() string    { return "platoonStatus" }
func (PlatoonStatusEvent) Validate() error { return nil }

// ArenaEvent fires when a battle arena is entered.
type ArenaEvent struct {
	ArenaID       string
	LocalizedName string
	PlayerName    string
}

func (ArenaEvent) Kind() string    { return "arena" }
func (ArenaEvent) Validate() error { return nil }

// AnyDamageEvent fires for every damage occurrence in the battle, including
// ones dealt by teammates.
type AnyDamageEvent struct {
	AttackerID domain.PlayerID
}

func (AnyDamageEvent) Kind() string    { return "anyDamage" }
func (AnyDamageEvent) Validate() error { return nil }

// FeedbackType tags the player-feedback sub-events.
type FeedbackType string

const (
	FeedbackDamage           FeedbackType = "damage"
	FeedbackKill             FeedbackType = "kill"
	FeedbackRadioAssist      FeedbackType = "radioAssist"
	FeedbackTrackAssist      FeedbackType = "trackAssist"
	FeedbackTanking          FeedbackType = "tanking"
	FeedbackReceivedDamage   FeedbackType = "receivedDamage"
	FeedbackTargetVisibility FeedbackType = "targetVisibility"
	FeedbackDetected         FeedbackType = "detected"
	FeedbackSpotted          FeedbackType = "spotted"
)

// PlayerFeedbackEvent is an action by the current player during a battle.
type PlayerFeedbackEvent struct {
	Type   FeedbackType
	Damage int // set for FeedbackDamage
}

func (PlayerFeedbackEvent) Kind() string { return "playerFeedback" }

func (e PlayerFeedbackEvent) Validate() error {
	if e.Type == "" {
		return errors.New("player feedback missing type")
	}
	return nil
}

// VehicleResult is one per-vehicle entry of the end-of-battle tally.
type VehicleResult struct {
	AccountID   domain.PlayerID
	DamageDealt int
	Kills       int
}

// BattleResultEvent is the authoritative end-of-battle report.
type BattleResultEvent struct {
	ArenaID     string
	AccountID   domain.PlayerID
	Duration    int
	WinnerTeam  int
	PlayerTeams map[domain.PlayerID]int
	Vehicles    map[string][]VehicleResult
}

func (BattleResultEvent) Kind() string { return "battleResult" }

func (e BattleResultEvent) Validate() error {
	if e.Vehicles == nil {
		return ErrMissingVehicles
	}
	if e.PlayerTeams == nil {
		return ErrMissingPlayers
	}
	if e.ArenaID == "" {
		return ErrMissingArena
	}
	if e.AccountID == 0 {
		return ErrMissingAccount
	}
	return nil
}
