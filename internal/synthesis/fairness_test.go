package synthesis

import (
	"math"
	"testing"

	"github.com/yungbote/rewardcore-backend/internal/constraint"
	"github.com/yungbote/rewardcore-backend/internal/sequence"
)

func cohortSample(bucket string, capability, skillAffinity float64) Sample {
	st := sequence.NewState()
	for i := range st.CapMean {
		st.CapMean[i] = capability
	}
	st.DomainAffinity[0] = skillAffinity
	return Sample{Bucket: bucket, State: st}
}

func affinityRule() *constraint.Rule {
	return &constraint.Rule{All: []constraint.Term{
		{Feature: "domain_affinity:skill_games", Op: constraint.OpGTE, Value: 0.5},
	}}
}

func TestAuditRule_EqualOpportunityAmongQualified(t *testing.T) {
	cfg := fairnessConfig{MaxDisparity: 0.15, QualifiedCapability: 0.70, MinQualified: 2}
	samples := []Sample{
		cohortSample("builders", 0.8, 0.9),
		cohortSample("builders", 0.8, 0.9),
		cohortSample("builders", 0.8, 0.1),
		// Unqualified member is invisible to the equal-opportunity rate.
		cohortSample("builders", 0.3, 0.9),
		cohortSample("social", 0.8, 0.9),
		cohortSample("social", 0.8, 0.1),
	}

	report := auditRule(affinityRule(), samples, cfg)
	if report.Metric != MetricEqualOpportunity {
		t.Fatalf("expected equal_opportunity metric, got %q", report.Metric)
	}
	if math.Abs(report.CohortRates["builders"]-2.0/3.0) > 1e-9 {
		t.Fatalf("expected builders rate 2/3, got %v", report.CohortRates["builders"])
	}
	if math.Abs(report.CohortRates["social"]-0.5) > 1e-9 {
		t.Fatalf("expected social rate 0.5, got %v", report.CohortRates["social"])
	}
	wantDisparity := 2.0/3.0 - 0.5
	if math.Abs(report.Disparity-wantDisparity) > 1e-9 {
		t.Fatalf("expected disparity %v, got %v", wantDisparity, report.Disparity)
	}
	if report.Passed {
		t.Fatalf("disparity %v exceeds 0.15 and must fail", report.Disparity)
	}
}

func TestAuditRule_FallsBackToStatisticalParity(t *testing.T) {
	cfg := fairnessConfig{MaxDisparity: 0.15, QualifiedCapability: 0.70, MinQualified: 2}
	samples := []Sample{
		cohortSample("builders", 0.8, 0.9),
		cohortSample("builders", 0.8, 0.9),
		// Only one qualified member here: the whole audit degrades to parity.
		cohortSample("social", 0.8, 0.9),
		cohortSample("social", 0.3, 0.9),
	}

	report := auditRule(affinityRule(), samples, cfg)
	if report.Metric != MetricStatisticalParity {
		t.Fatalf("expected statistical_parity fallback, got %q", report.Metric)
	}
	// Under parity every member counts, qualified or not.
	if report.CohortRates["social"] != 1.0 {
		t.Fatalf("expected social parity rate 1.0, got %v", report.CohortRates["social"])
	}
	if report.Disparity != 0 || !report.Passed {
		t.Fatalf("identical rates must pass, got disparity=%v passed=%v", report.Disparity, report.Passed)
	}
}

func TestAuditRule_BoundaryAndSingleCohort(t *testing.T) {
	cfg := fairnessConfig{MaxDisparity: 0.15, QualifiedCapability: 0.70, MinQualified: 1}

	single := []Sample{
		cohortSample("builders", 0.8, 0.9),
		cohortSample("builders", 0.8, 0.1),
	}
	report := auditRule(affinityRule(), single, cfg)
	if report.Disparity != 0 || !report.Passed {
		t.Fatalf("a single cohort has no pairwise disparity, got %v", report.Disparity)
	}

	// Disparity exactly at the cap still passes; only an excess fails.
	cfg.MaxDisparity = 0.5
	pair := []Sample{
		cohortSample("builders", 0.8, 0.9),
		cohortSample("builders", 0.8, 0.9),
		cohortSample("social", 0.8, 0.9),
		cohortSample("social", 0.8, 0.1),
	}
	report = auditRule(affinityRule(), pair, cfg)
	if report.Disparity != 0.5 {
		t.Fatalf("expected disparity 0.5, got %v", report.Disparity)
	}
	if !report.Passed {
		t.Fatalf("disparity equal to the cap must pass")
	}
}
