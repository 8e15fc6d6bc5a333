package feed

import (
	"encoding/json"
	"fmt"
	"strconv"

	"squad-tracker/internal/domain"
)

// Envelope is the wire form of one feed signal: a type tag plus a payload
// whose shape depends on the tag.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// flexID accepts arena ids sent either as JSON strings or bare numbers.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

type hangarStatusWire struct {
	IsInHangar bool `json:"isInHangar"`
	Player     struct {
		ID   domain.PlayerID `json:"id"`
		Name string          `json:"name"`
	} `json:"player"`
}

type hangarVehicleWire struct {
	LocalizedShortName string `json:"localizedShortName"`
}

type platoonStatusWire struct {
	IsInPlatoon bool `json:"isInPlatoon"`
}

type arenaWire struct {
	ArenaID       flexID `json:"arenaId"`
	LocalizedName string `json:"localizedName"`
	PlayerName    string `json:"playerName"`
}

type anyDamageWire struct {
	Attacker struct {
		PlayerID domain.PlayerID `json:"playerId"`
	} `json:"attacker"`
}

type playerFeedbackWire struct {
	Type string `json:"type"`
	Data struct {
		Damage int `json:"damage"`
	} `json:"data"`
}

type battleResultWire struct {
	ArenaUniqueID flexID `json:"arenaUniqueID"`
	Common        struct {
		Duration   int `json:"duration"`
		WinnerTeam int `json:"winnerTeam"`
	} `json:"common"`
	Personal struct {
		Avatar struct {
			AccountDBID domain.PlayerID `json:"accountDBID"`
		} `json:"avatar"`
	} `json:"personal"`
	Players map[string]struct {
		Team int `json:"team"`
	} `json:"players"`
	Vehicles map[string][]struct {
		AccountDBID domain.PlayerID `json:"accountDBID"`
		DamageDealt int             `json:"damageDealt"`
		Kills       int             `json:"kills"`
	} `json:"vehicles"`
}

// Decode turns a wire envelope into a typed event. Unknown tags and
// undecodable payloads are errors; field-level validation happens in the
// event's Validate, so a structurally sound but incomplete payload decodes
// fine and is rejected by the ingestor.
func Decode(env Envelope) (Event, error) {
	switch env.Type {
	case "hangarStatus":
		var w hangarStatusWire
		if err := json.Unmarshal(env.Data, &w); err != nil {
			return nil, fmt.Errorf("decode hangarStatus: %w", err)
		}
		return HangarStatusEvent{IsInHangar: w.IsInHangar, PlayerID: w.Player.ID, PlayerName: w.Player.Name}, nil

	case "hangarVehicle":
		var w hangarVehicleWire
		if err := json.Unmarshal(env.Data, &w); err != nil {
			return nil, fmt.Errorf("decode hangarVehicle: %w", err)
		}
		return HangarVehicleEvent{LocalizedShortName: w.LocalizedShortName}, nil

	case "platoonStatus":
		var w platoonStatusWire
		if err := json.Unmarshal(env.Data, &w); err != nil {
			return nil, fmt.Errorf("decode platoonStatus: %w", err)
		}
		return PlatoonStatusEvent{IsInPlatoon: w.IsInPlatoon}, nil

	case "arena":
		var w arenaWire
		if err := json.Unmarshal(env.Data, &w); err != nil {
			return nil, fmt.Errorf("decode arena: %w", err)
		}
		return ArenaEvent{ArenaID: string(w.ArenaID), LocalizedName: w.LocalizedName, PlayerName: w.PlayerName}, nil

	case "onDamage":
		var w anyDamageWire
		if err := json.Unmarshal(env.Data, &w); err != nil {
			return nil, fmt.Errorf("decode onDamage: %w", err)
		}
		return AnyDamageEvent{AttackerID: w.Attacker.PlayerID}, nil

	case "playerFeedback":
		var w playerFeedbackWire
		if err := json.Unmarshal(env.Data, &w); err != nil {
			return nil, fmt.Errorf("decode playerFeedback: %w", err)
		}
		return PlayerFeedbackEvent{Type: FeedbackType(w.Type), Damage: w.Data.Damage}, nil

	case "battleResult":
		var w battleResultWire
		if err := json.Unmarshal(env.Data, &w); err != nil {
			return nil, fmt.Errorf("decode battleResult: %w", err)
		}
		return decodeBattleResult(w)

	default:
		return nil, fmt.Errorf("unknown feed event type %q", env.Type)
	}
}

func decodeBattleResult(w battleResultWire) (Event, error) {
	ev := BattleResultEvent{
		ArenaID:    string(w.ArenaUniqueID),
		AccountID:  w.Personal.Avatar.AccountDBID,
		Duration:   w.Common.Duration,
		WinnerTeam: w.Common.WinnerTeam,
	}
	if w.Players != nil {
		ev.PlayerTeams = make(map[domain.PlayerID]int, len(w.Players))
		for raw, p := range w.Players {
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				continue
			}
			ev.PlayerTeams[domain.PlayerID(id)] = p.Team
		}
	}
	if w.Vehicles != nil {
		ev.Vehicles = make(map[string][]VehicleResult, len(w.Vehicles))
		for vehicleID, entries := range w.Vehicles {
			out := make([]VehicleResult, 0, len(entries))
			for _, e := range entries {
				out = append(out, VehicleResult{AccountID: e.AccountDBID, DamageDealt: e.DamageDealt, Kills: e.Kills})
			}
			ev.Vehicles[vehicleID] = out
		}
	}
	return ev, nil
}
