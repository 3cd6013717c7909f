package policy

import (
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/rewardcore-backend/internal/domain/catalog"
	"github.com/yungbote/rewardcore-backend/internal/domain/decisions"
)

func candidate(key, rewardType string, count int, mean, penalty float64) Candidate {
	spec := &catalog.ActionSpec{
		ID:         uuid.New(),
		Key:        key,
		RewardType: rewardType,
		Intensity:  catalog.IntensityLow,
		Status:     catalog.ActionStatusActive,
	}
	c := Candidate{Spec: spec, Penalty: penalty}
	if count > 0 {
		c.Estimate = &decisions.ArmEstimate{ArmKey: "k", ActionID: spec.ID, Count: count, ValueMean: mean}
	}
	return c
}

func TestEpsilon_MonotoneDecay(t *testing.T) {
	s := NewEpsilonSchedule()
	prev := s.At(0, 0)
	for n := 1; n <= 300; n++ {
		cur := s.At(n, 0)
		if cur > prev {
			t.Fatalf("epsilon rose from %v to %v at n=%d", prev, cur, n)
		}
		prev = cur
	}
	if prev < s.Min {
		t.Fatalf("epsilon fell below the floor: %v", prev)
	}
	if mature := s.At(10, 1); mature > s.At(10, 0) {
		t.Fatalf("maturity must not increase exploration")
	}
}

func TestContextBucketAndArmKey(t *testing.T) {
	sat := time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC) // Saturday evening
	if got := ContextBucket(sat); got != "evening_weekend" {
		t.Fatalf("bucket: got %q", got)
	}
	mon := time.Date(2026, 3, 16, 8, 0, 0, 0, time.UTC)
	if got := ContextBucket(mon); got != "morning_weekday" {
		t.Fatalf("bucket: got %q", got)
	}

	id := uuid.New()
	if got := ArmKey("explorer", "morning_weekday", id); got != "explorer|morning_weekday|"+id.String() {
		t.Fatalf("arm key: got %q", got)
	}
	if got := ArmKey("", "x", id); got != NeutralBucket+"|x|"+id.String() {
		t.Fatalf("empty bucket must fall back to neutral, got %q", got)
	}
}

func TestSelect_EmptyAndWhetherGate(t *testing.T) {
	b := NewBandit()

	sel := b.Select(SelectInput{ContextBucket: "morning_weekday"})
	if sel.Spec != nil || sel.Probability != 1 {
		t.Fatalf("empty candidates must yield the no-reward selection, got %+v", sel)
	}

	// Every candidate is measured below the value of granting nothing.
	weak := []Candidate{
		candidate("a", catalog.RewardTypePoints, 20, 0.1, 0),
		candidate("b", catalog.RewardTypeSkillBadge, 20, 0.15, 0),
	}
	sel = b.Select(SelectInput{Candidates: weak, Rand: rand.New(rand.NewSource(1))})
	if sel.Spec != nil {
		t.Fatalf("whether-gate should withhold the grant, got %s", sel.Spec.Key)
	}
}

func TestSelect_ExploitsValueMinusPenalty(t *testing.T) {
	b := NewBandit()
	strong := candidate("strong", catalog.RewardTypePoints, 50, 0.9, 0)
	penalized := candidate("penalized", catalog.RewardTypeSkillBadge, 50, 0.95, 0.4)

	sel := b.Select(SelectInput{
		ArchetypeBucket: "explorer",
		ContextBucket:   "evening_weekday",
		Candidates:      []Candidate{penalized, strong},
	})
	if sel.Spec == nil || sel.Spec.Key != "strong" {
		t.Fatalf("penalty should flip the choice, got %+v", sel.Spec)
	}
	if sel.Explored {
		t.Fatalf("nil rand must never explore")
	}
	if sel.ArmKey != ArmKey("explorer", "evening_weekday", strong.Spec.ID) {
		t.Fatalf("arm key mismatch: %s", sel.ArmKey)
	}
	if sel.Confidence <= 0 || sel.Confidence >= 1 {
		t.Fatalf("confidence out of range: %v", sel.Confidence)
	}
}

func TestSelect_TieBreakFewestSelections(t *testing.T) {
	b := NewBandit()
	worn := candidate("worn", catalog.RewardTypePoints, 30, 0.8, 0)
	worn.Stat = &catalog.UserActionStat{ActionID: worn.Spec.ID, Selections: 9}
	fresh := candidate("fresh", catalog.RewardTypePoints, 30, 0.8, 0)
	fresh.Stat = &catalog.UserActionStat{ActionID: fresh.Spec.ID, Selections: 2}

	sel := b.Select(SelectInput{Candidates: []Candidate{worn, fresh}})
	if sel.Spec == nil || sel.Spec.Key != "fresh" {
		t.Fatalf("tie must prefer fewest prior selections, got %+v", sel.Spec)
	}
}

func TestSelect_ExplorePrefersUnderExplored(t *testing.T) {
	b := NewBandit()
	// Force exploration on every draw.
	b.Epsilon = EpsilonSchedule{Base: 1, Min: 1, Decay: 0, MaturityWeight: 0}

	proven := candidate("proven", catalog.RewardTypePoints, 100, 0.9, 0)
	unexplored := candidate("unexplored", catalog.RewardTypeSkillBadge, 0, 0, 0)

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		sel := b.Select(SelectInput{Candidates: []Candidate{proven, unexplored}, Rand: rng})
		if sel.Spec == nil || sel.Spec.Key != "unexplored" {
			t.Fatalf("exploration must draw from under-explored arms, got %+v", sel.Spec)
		}
		if !sel.Explored {
			t.Fatalf("selection should be marked explored")
		}
	}
}

func TestSelect_PresentationHintStable(t *testing.T) {
	b := NewBandit()
	c := candidate("with-variants", catalog.RewardTypePoints, 50, 0.9, 0)
	c.Spec.Presentations = datatypes.JSON([]byte(`["plain","celebratory","quiet"]`))

	first := b.Select(SelectInput{ContextBucket: "morning_weekday", Candidates: []Candidate{c}})
	if first.PresentationHint == "" {
		t.Fatalf("expected a presentation hint")
	}
	for i := 0; i < 5; i++ {
		again := b.Select(SelectInput{ContextBucket: "morning_weekday", Candidates: []Candidate{c}})
		if again.PresentationHint != first.PresentationHint {
			t.Fatalf("hint must be stable per context, got %q then %q", first.PresentationHint, again.PresentationHint)
		}
	}
}
