package main

import (
	"testing"

	types "github.com/yungbote/rewardcore-backend/internal/domain"
)

func TestParseEmbeddedCatalog(t *testing.T) {
	rows, err := parseCatalog(defaultCatalogYAML)
	if err != nil {
		t.Fatalf("parseCatalog: %v", err)
	}
	if len(rows) == 0 {
		t.Fatalf("embedded catalog is empty")
	}

	byType := map[string]int{}
	for _, row := range rows {
		if row.Status != types.ActionStatusActive {
			t.Fatalf("%s: seeded status=%q, want active", row.Key, row.Status)
		}
		if row.StatusActor != "seed" {
			t.Fatalf("%s: status_actor=%q, want seed", row.Key, row.StatusActor)
		}
		if row.Synthesized {
			t.Fatalf("%s: seeded spec marked synthesized", row.Key)
		}
		if row.RuleText == "" {
			t.Fatalf("%s: empty rule text", row.Key)
		}
		byType[row.RewardType]++
	}

	for _, rt := range []string{
		types.RewardTypePoints,
		types.RewardTypeStreakBonus,
		types.RewardTypeSkillBadge,
		types.RewardTypeChoiceOpportunity,
		types.RewardTypeSocialRecognition,
		types.RewardTypeOpportunityUnlock,
	} {
		if byType[rt] == 0 {
			t.Fatalf("embedded catalog covers no %s action", rt)
		}
	}
}

func TestBuildSpecRejectsUnknownFeature(t *testing.T) {
	_, err := buildSpec(seedAction{
		Key:        "bad_feature",
		Title:      "Bad Feature",
		RewardType: types.RewardTypePoints,
		Rule: &seedRule{
			All: []seedTerm{{Feature: "cap_mean:telepathy", Op: "gte", Value: 0.5}},
		},
	})
	if err == nil {
		t.Fatalf("buildSpec: expected unknown-feature error, got nil")
	}
}

func TestBuildSpecRejectsUnknownOp(t *testing.T) {
	_, err := buildSpec(seedAction{
		Key:        "bad_op",
		Title:      "Bad Op",
		RewardType: types.RewardTypePoints,
		Rule: &seedRule{
			All: []seedTerm{{Feature: "avg_capability", Op: "eq", Value: 0.5}},
		},
	})
	if err == nil {
		t.Fatalf("buildSpec: expected unknown-op error, got nil")
	}
}

func TestBuildSpecRejectsOversizedRule(t *testing.T) {
	terms := []seedTerm{
		{Feature: "avg_capability", Op: "gte", Value: 0.1},
		{Feature: "engagement:completed", Op: "gte", Value: 0.2},
		{Feature: "engagement:abandoned", Op: "lte", Value: 0.9},
		{Feature: "cap_mean:creativity", Op: "gte", Value: 0.3},
		{Feature: "cap_mean:persistence", Op: "gte", Value: 0.3},
	}
	_, err := buildSpec(seedAction{
		Key:        "too_many_terms",
		Title:      "Too Many Terms",
		RewardType: types.RewardTypePoints,
		Rule:       &seedRule{All: terms},
	})
	if err == nil {
		t.Fatalf("buildSpec: expected oversized-rule error, got nil")
	}
}

func TestBuildSpecRejectsUnknownRewardType(t *testing.T) {
	_, err := buildSpec(seedAction{
		Key:        "bad_type",
		Title:      "Bad Type",
		RewardType: "confetti",
	})
	if err == nil {
		t.Fatalf("buildSpec: expected unknown-reward-type error, got nil")
	}
}

func TestBuildSpecDefaults(t *testing.T) {
	row, err := buildSpec(seedAction{
		Key:        "minimal",
		Title:      "Minimal",
		RewardType: types.RewardTypePoints,
	})
	if err != nil {
		t.Fatalf("buildSpec: %v", err)
	}
	if row.Intensity != types.IntensityLow {
		t.Fatalf("intensity: want=%q got=%q", types.IntensityLow, row.Intensity)
	}
	if row.RuleText != "always eligible" {
		t.Fatalf("rule text: want=%q got=%q", "always eligible", row.RuleText)
	}
	if string(row.Presentations) != `["card"]` {
		t.Fatalf("presentations: want=%q got=%q", `["card"]`, string(row.Presentations))
	}
}
