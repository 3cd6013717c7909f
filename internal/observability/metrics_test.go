package observability

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func newTestMetrics() *Metrics {
	return &Metrics{
		apiRequests:      NewCounterVec("rc_api_requests_total", "t", []string{"method", "route", "status"}),
		apiLatency:       NewHistogramVec("rc_api_request_duration_seconds", "t", []string{"method", "route", "status"}, nil),
		apiInflight:      NewGauge("rc_api_inflight_requests", "t"),
		apiReqTotal:      NewCounter("rc_api_requests_total_all", "t"),
		apiReqError:      NewCounter("rc_api_requests_error_total", "t"),
		apiReqGood:       NewCounter("rc_api_requests_good_latency_total", "t"),
		eventsIngested:   NewCounterVec("rc_events_ingested_total", "t", []string{"type", "source"}),
		eventsRejected:   NewCounterVec("rc_events_rejected_total", "t", []string{"reason"}),
		eventsDeduped:    NewCounter("rc_events_deduplicated_total", "t"),
		decisions:        NewCounterVec("rc_decisions_total", "t", []string{"kind"}),
		decisionLatency:  NewHistogramVec("rc_decision_duration_seconds", "t", []string{"kind"}, nil),
		decisionExplore:  NewCounterVec("rc_decision_exploration_total", "t", []string{"mode"}),
		decisionEpsilon:  NewGaugeVec("rc_decision_epsilon", "t", []string{"maturity"}),
		decisionTotal:    NewCounter("rc_decisions_total_all", "t"),
		decisionFallback: NewCounter("rc_decisions_budget_fallback_total", "t"),
		exclusions:       NewCounterVec("rc_constraint_exclusions_total", "t", []string{"predicate"}),
		outcomes:         NewCounterVec("rc_outcomes_total", "t", []string{"kind", "status"}),
		estimateUpdates:  NewCounter("rc_arm_estimate_updates_total", "t"),
		outcomeTotal:     NewCounter("rc_outcomes_total_all", "t"),
		outcomeStale:     NewCounter("rc_outcomes_stale_total", "t"),
		synthesisRuns:    NewCounterVec("rc_synthesis_runs_total", "t", []string{"status"}),
		synthesisStage:   NewHistogramVec("rc_synthesis_stage_duration_seconds", "t", []string{"stage", "status"}, nil),
		conceptsEmitted:  NewCounter("rc_synthesis_concepts_emitted_total", "t"),
		synthesisTotal:   NewCounter("rc_synthesis_runs_total_all", "t"),
		synthesisError:   NewCounter("rc_synthesis_runs_error_total", "t"),
		profileRefresh:   NewCounterVec("rc_profile_refresh_total", "t", []string{"status"}),
		badgesAwarded:    NewCounterVec("rc_profile_badges_awarded_total", "t", []string{"badge"}),
		jobRuns:          NewCounterVec("rc_job_runs_total", "t", []string{"job_type", "status"}),
		jobTime:          NewHistogramVec("rc_job_duration_seconds", "t", []string{"job_type", "status"}, nil),
		workerTotal:      NewCounter("rc_job_runs_total_all", "t"),
		workerError:      NewCounter("rc_job_runs_error_total", "t"),
		queueDepth:       NewGaugeVec("rc_job_queue_depth", "t", []string{"status"}),
		catalogSize:      NewGaugeVec("rc_action_catalog_size", "t", []string{"status"}),
		warmUsers:        NewGauge("rc_warm_users", "t"),
		pgStats:          NewGaugeVec("rc_postgres_stats", "t", []string{"metric"}),
		redisUp:          NewGauge("rc_redis_up", "t"),
		redisPing:        NewGauge("rc_redis_ping_seconds", "t"),
		sloCompliance:    NewGaugeVec("rc_slo_compliance", "t", []string{"slo", "window"}),
		sloBudget:        NewGaugeVec("rc_slo_error_budget_remaining", "t", []string{"slo", "window"}),
		sloBurn:          NewGaugeVec("rc_slo_burn_rate", "t", []string{"slo", "window"}),

		sloLatencyThreshold:   0.5,
		decisionBudgetSeconds: 0.15,
	}
}

func TestObserveDecisionCountsFallback(t *testing.T) {
	m := newTestMetrics()
	m.ObserveDecision("policy", false, 0.1, "mature", 20*time.Millisecond)
	m.ObserveDecision("budget_fallback", false, 0.1, "mature", 200*time.Millisecond)
	m.ObserveDecision("no_reward", true, 0.3, "growing", 5*time.Millisecond)

	if got := m.decisionTotal.Value(); got != 3 {
		t.Fatalf("decisionTotal = %v, want 3", got)
	}
	if got := m.decisionFallback.Value(); got != 1 {
		t.Fatalf("decisionFallback = %v, want 1", got)
	}

	var buf bytes.Buffer
	if err := m.WritePrometheus(&buf); err != nil {
		t.Fatalf("WritePrometheus: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		`rc_decisions_total{kind="policy"} 1`,
		`rc_decisions_total{kind="budget_fallback"} 1`,
		`rc_decision_exploration_total{mode="explore"} 1`,
		`rc_decision_epsilon{maturity="growing"} 0.3`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("exposition missing %q\n%s", want, out)
		}
	}
}

func TestObserveAPITracksSLOCounters(t *testing.T) {
	m := newTestMetrics()
	m.ObserveAPI("POST", "/api/decisions", "200", 30*time.Millisecond)
	m.ObserveAPI("POST", "/api/decisions", "500", 2*time.Second)

	if got := m.apiReqTotal.Value(); got != 2 {
		t.Fatalf("apiReqTotal = %v, want 2", got)
	}
	if got := m.apiReqError.Value(); got != 1 {
		t.Fatalf("apiReqError = %v, want 1", got)
	}
	if got := m.apiReqGood.Value(); got != 1 {
		t.Fatalf("apiReqGood = %v, want 1", got)
	}
}

func TestIncOutcomeStale(t *testing.T) {
	m := newTestMetrics()
	m.IncOutcome("re_engaged", "applied")
	m.IncOutcome("re_engaged", "stale")
	m.IncOutcome("satisfaction", "duplicate")

	if got := m.outcomeTotal.Value(); got != 3 {
		t.Fatalf("outcomeTotal = %v, want 3", got)
	}
	if got := m.outcomeStale.Value(); got != 1 {
		t.Fatalf("outcomeStale = %v, want 1", got)
	}
}

func TestHistogramExposition(t *testing.T) {
	h := NewHistogramVec("rc_test_seconds", "t", []string{"kind"}, []float64{0.1, 1})
	h.Observe(0.05, "a")
	h.Observe(0.5, "a")
	h.Observe(5, "a")

	var buf bytes.Buffer
	if err := h.WritePrometheus(&buf); err != nil {
		t.Fatalf("WritePrometheus: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		`rc_test_seconds_bucket{kind="a",le="0.1"} 1`,
		`rc_test_seconds_bucket{kind="a",le="1"} 2`,
		`rc_test_seconds_bucket{kind="a",le="+Inf"} 3`,
		`rc_test_seconds_count{kind="a"} 3`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("exposition missing %q\n%s", want, out)
		}
	}
}

func TestClassifyIssue(t *testing.T) {
	cases := map[string]string{
		`unknown domain "gaming"`:           "unknown_domain",
		`unknown action type "warp"`:        "unknown_action_type",
		"occurred_at is required":           "missing_timestamp",
		"payload must be a JSON object":     "invalid_payload",
		"client_event_id is required":       "missing_client_event_id",
		"occurred_at too far in the future": "clock_skew",
		"something else entirely":           "validation_error",
	}
	for in, want := range cases {
		if got := classifyIssue(strings.ToLower(in)); got != want {
			t.Fatalf("classifyIssue(%q) = %q, want %q", in, got, want)
		}
	}
}
