package feed

import (
	"encoding/json"
	"errors"
	"testing"

	"squad-tracker/internal/domain"
)

func decodeRaw(t *testing.T, typ, data string) (Event, error) {
	t.Helper()
	return Decode(Envelope{Type: typ, Data: json.RawMessage(data)})
}

func TestDecodeHangarStatus(t *testing.T) {
	ev, err := decodeRaw(t, "hangarStatus", `{"isInHangar":true,"player":{"id":7,"name":"alice"}}`)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	got, ok := ev.(HangarStatusEvent)
	if !ok {
		t.Fatalf("decoded %T, want HangarStatusEvent", ev)
	}
	if !got.IsInHangar || got.PlayerID != 7 || got.PlayerName != "alice" {
		t.Errorf("event = %+v", got)
	}
}

func TestDecodeArenaNumericID(t *testing.T) {
	ev, err := decodeRaw(t, "arena", `{"arenaId":123456789,"localizedName":"Prokhorovka"}`)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	got := ev.(ArenaEvent)
	if got.ArenaID != "123456789" {
		t.Errorf("arena id = %q, want numeric token as string", got.ArenaID)
	}
}

func TestDecodePlayerFeedback(t *testing.T) {
	ev, err := decodeRaw(t, "playerFeedback", `{"type":"damage","data":{"damage":250}}`)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	got := ev.(PlayerFeedbackEvent)
	if got.Type != FeedbackDamage || got.Damage != 250 {
		t.Errorf("event = %+v", got)
	}
}

func TestDecodeBattleResult(t *testing.T) {
	payload := `{
		"arenaUniqueID": "A1",
		"common": {"duration": 600, "winnerTeam": 1},
		"personal": {"avatar": {"accountDBID": 7}},
		"players": {"7": {"team": 1}, "9": {"team": 2}},
		"vehicles": {"v1": [{"accountDBID": 7, "damageDealt": 1200, "kills": 3}]}
	}`
	ev, err := decodeRaw(t, "battleResult", payload)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	got := ev.(BattleResultEvent)
	if got.ArenaID != "A1" || got.AccountID != 7 || got.Duration != 600 {
		t.Errorf("event = %+v", got)
	}
	if got.PlayerTeams[7] != 1 || got.PlayerTeams[9] != 2 {
		t.Errorf("player teams = %v", got.PlayerTeams)
	}
	if v := got.Vehicles["v1"][0]; v.DamageDealt != 1200 || v.Kills != 3 {
		t.Errorf("vehicle entry = %+v", v)
	}
	if err := got.Validate(); err != nil {
		t.Errorf("complete result failed validation: %v", err)
	}
}

func TestDecodeBattleResultMissingVehicles(t *testing.T) {
	payload := `{
		"arenaUniqueID": "A1",
		"common": {"duration": 600, "winnerTeam": 1},
		"personal": {"avatar": {"accountDBID": 7}},
		"players": {"7": {"team": 1}}
	}`
	ev, err := decodeRaw(t, "battleResult", payload)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	// Structurally fine, semantically incomplete: Validate must reject it.
	if err := ev.Validate(); !errors.Is(err, ErrMissingVehicles) {
		t.Errorf("Validate = %v, want ErrMissingVehicles", err)
	}
}

func TestDecodeUnknownType(t *testing.T) {
	if _, err := decodeRaw(t, "telemetry", `{}`); err == nil {
		t.Error("unknown event type should be rejected")
	}
}

func TestDecodeMalformedPayload(t *testing.T) {
	if _, err := decodeRaw(t, "arena", `{"arenaId":`); err == nil {
		t.Error("truncated payload should be rejected")
	}
}

func TestDecodeFeedbackRoundTripThroughIngestor(t *testing.T) {
	in, agg, _, _ := newTestIngestor(t)
	enterBattle(t, in)

	env := Envelope{Type: "playerFeedback", Data: json.RawMessage(`{"type":"damage","data":{"damage":150}}`)}
	ev, err := Decode(env)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	mustHandle(t, in, ev)

	if got := agg.Battle("A1").Players[domain.PlayerID(7)].Damage; got != 150 {
		t.Errorf("damage = %d, want 150", got)
	}
}
