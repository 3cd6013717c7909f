package synthesis

import (
	"math"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/rewardcore-backend/internal/sequence"
)

func TestStabilityScore_TracksCentroidDrift(t *testing.T) {
	a := []float64{0.8, 0.2, 0.5}
	if s := stabilityScore(a, a); math.Abs(s-1) > 1e-9 {
		t.Fatalf("identical centroids must score 1, got %v", s)
	}
	if s := stabilityScore(a, []float64{0.8, 0.2}); s != 0 {
		t.Fatalf("width mismatch must score 0, got %v", s)
	}
	// Opposed directions clamp at zero rather than going negative.
	if s := stabilityScore([]float64{1, 0}, []float64{-1, 0}); s != 0 {
		t.Fatalf("opposed centroids must clamp to 0, got %v", s)
	}
}

func TestDistinctivenessScore_SeparationInZSpace(t *testing.T) {
	clusters := []kCluster{
		{Centroid: []float64{1, 0}},
		{Centroid: []float64{-1, 0}},
	}
	if d := distinctivenessScore(0, clusters); d != 1 {
		t.Fatalf("opposed clusters are fully distinct, got %v", d)
	}

	clusters = []kCluster{
		{Centroid: []float64{1, 0}},
		{Centroid: []float64{1, 0.1}},
	}
	if d := distinctivenessScore(0, clusters); d > 0.2 {
		t.Fatalf("near-parallel clusters are not distinct, got %v", d)
	}

	lone := []kCluster{{Centroid: []float64{1, 0}}}
	if d := distinctivenessScore(0, lone); d != 1 {
		t.Fatalf("a lone cluster is fully distinct, got %v", d)
	}
}

func TestPredictiveScore_NeedsOutcomeEvidence(t *testing.T) {
	win := func(values ...float64) []sequence.OutcomeEntry {
		out := make([]sequence.OutcomeEntry, 0, len(values))
		for _, v := range values {
			out = append(out, sequence.OutcomeEntry{
				DecisionID: uuid.New(),
				Value:      v,
				At:         time.Now().UTC(),
			})
		}
		return out
	}
	samples := []Sample{
		{Window: win(1, 1, -1, 1)}, // 0.75 positive
		{Window: win(1, -1)},       // 0.5
		{Window: nil},              // no evidence, excluded
	}
	members := []int{0, 1, 2}

	if got := predictiveScore(samples, members, 2); math.Abs(got-0.625) > 1e-9 {
		t.Fatalf("expected mean positive rate 0.625, got %v", got)
	}
	// Too few observed members means no demonstrated value.
	if got := predictiveScore(samples, members, 3); got != 0 {
		t.Fatalf("expected 0 below the observed-member floor, got %v", got)
	}
}

func TestValidateCluster_AllGatesRequired(t *testing.T) {
	g := validationGates{
		MinStability:       0.70,
		MinDistinctiveness: 0.80,
		MinPredictive:      0.60,
		MinSample:          30,
		MinOutcomeMembers:  10,
	}
	feats := []definingFeature{{Name: "cap_mean:creativity", Z: 1.2}}

	if !validateCluster(50, 0.9, 0.95, 0.7, feats, g) {
		t.Fatalf("cluster above every gate must validate")
	}
	if validateCluster(29, 0.9, 0.95, 0.7, feats, g) {
		t.Fatalf("sample below 30 must fail")
	}
	if validateCluster(50, 0.70, 0.95, 0.7, feats, g) {
		t.Fatalf("stability exactly at the gate must fail the strict test")
	}
	if validateCluster(50, 0.9, 0.80, 0.7, feats, g) {
		t.Fatalf("distinctiveness exactly at the gate must fail")
	}
	if validateCluster(50, 0.9, 0.95, 0.60, feats, g) {
		t.Fatalf("predictive value exactly at the gate must fail")
	}
	if validateCluster(50, 0.9, 0.95, 0.7, nil, g) {
		t.Fatalf("no defining features means no interpretable rule")
	}
}
