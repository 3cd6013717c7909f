package services

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	types "github.com/yungbote/rewardcore-backend/internal/domain"
)

func TestEventValidate(t *testing.T) {
	s := &eventService{allowedFuture: 5 * time.Minute}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	base := EventInput{
		ClientEventID: "evt-1",
		OccurredAt:    now.Add(-time.Minute),
		ActionType:    types.EventActivityCompleted,
	}

	cases := []struct {
		name   string
		mutate func(in *EventInput)
		// Substring of the rejection reason; empty means accepted.
		want string
	}{
		{name: "well_formed", mutate: func(in *EventInput) {}, want: ""},
		{name: "blank_client_event_id", mutate: func(in *EventInput) { in.ClientEventID = "   " }, want: "client_event_id"},
		{name: "oversized_client_event_id", mutate: func(in *EventInput) { in.ClientEventID = strings.Repeat("x", maxClientEventIDLen+1) }, want: "longer than"},
		{name: "missing_occurred_at", mutate: func(in *EventInput) { in.OccurredAt = time.Time{} }, want: "occurred_at"},
		{name: "future_beyond_skew", mutate: func(in *EventInput) { in.OccurredAt = now.Add(10 * time.Minute) }, want: "in the future"},
		{name: "future_within_skew", mutate: func(in *EventInput) { in.OccurredAt = now.Add(2 * time.Minute) }, want: ""},
		{name: "unknown_action_type", mutate: func(in *EventInput) { in.ActionType = "levitated" }, want: "unknown action type"},
		{name: "unknown_source", mutate: func(in *EventInput) { in.Source = "carrier_pigeon" }, want: "unknown source"},
		{name: "empty_source_defaults", mutate: func(in *EventInput) { in.Source = "" }, want: ""},
		{name: "unknown_domain", mutate: func(in *EventInput) { in.Domain = "astral_projection" }, want: "unknown domain"},
		{name: "known_domain", mutate: func(in *EventInput) { in.Domain = types.DomainSkillGames }, want: ""},
		{name: "payload_not_json", mutate: func(in *EventInput) { in.Payload = json.RawMessage(`{broken`) }, want: "not valid json"},
		{name: "payload_too_large", mutate: func(in *EventInput) {
			in.Payload = json.RawMessage(`"` + strings.Repeat("a", maxEventPayloadLen) + `"`)
		}, want: "larger than"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := base
			tc.mutate(&in)
			got := s.validate(in, now)
			if tc.want == "" {
				if got != "" {
					t.Fatalf("expected accept, got rejection %q", got)
				}
				return
			}
			if got == "" {
				t.Fatalf("expected rejection mentioning %q, event was accepted", tc.want)
			}
			if !strings.Contains(got, tc.want) {
				t.Fatalf("rejection %q does not mention %q", got, tc.want)
			}
		})
	}
}

func TestEventToRowDefaults(t *testing.T) {
	s := &eventService{}
	now := time.Now().UTC()
	userID := uuid.MustParse("a2f1b6c0-0000-4000-8000-000000000001")

	row := s.toRow(userID, EventInput{
		ClientEventID: "evt-defaults",
		OccurredAt:    now.Add(-time.Second),
		ActionType:    types.EventSessionStarted,
	}, now)

	if row.Source != types.SourceApp {
		t.Fatalf("empty source should default to %q, got %q", types.SourceApp, row.Source)
	}
	if string(row.Payload) != `{}` {
		t.Fatalf("empty payload should persist as {}, got %s", row.Payload)
	}
	if row.UserID != userID {
		t.Fatalf("row user mismatch: got %s", row.UserID)
	}
}

func TestSourceOrDefault(t *testing.T) {
	if got := sourceOrDefault(""); got != types.SourceApp {
		t.Fatalf("empty source: got %q, want %q", got, types.SourceApp)
	}
	if got := sourceOrDefault(types.SourceWeb); got != types.SourceWeb {
		t.Fatalf("explicit source: got %q, want %q", got, types.SourceWeb)
	}
}
