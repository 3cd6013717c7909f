package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/yungbote/rewardcore-backend/internal/platform/envutil"
	"github.com/yungbote/rewardcore-backend/internal/platform/logger"
)

type rollingSum struct {
	values []float64
	idx    int
	total  float64
}

func newRollingSum(size int) *rollingSum {
	if size < 1 {
		size = 1
	}
	return &rollingSum{values: make([]float64, size)}
}

func (r *rollingSum) add(v float64) {
	r.total += v - r.values[r.idx]
	r.values[r.idx] = v
	r.idx++
	if r.idx >= len(r.values) {
		r.idx = 0
	}
}

type SLOEvaluator struct {
	metrics *Metrics
	log     *logger.Logger

	interval    time.Duration
	window      time.Duration
	windowLabel string

	apiAvailTarget        float64
	apiLatencyTarget      float64
	workerSuccessTarget   float64
	decisionBudgetTarget  float64
	synthesisSuccessTarget float64

	apiTotal       *rollingSum
	apiError       *rollingSum
	apiGood        *rollingSum
	workerTotal    *rollingSum
	workerError    *rollingSum
	decisionTotal  *rollingSum
	decisionFB     *rollingSum
	synthesisTotal *rollingSum
	synthesisError *rollingSum

	prevApiTotal       float64
	prevApiError       float64
	prevApiGood        float64
	prevWorkerTotal    float64
	prevWorkerError    float64
	prevDecisionTotal  float64
	prevDecisionFB     float64
	prevSynthesisTotal float64
	prevSynthesisError float64

	alertWebhook     string
	alertOwner       string
	alertRunbook     string
	alertMinInterval time.Duration
	alertBurnWarn    float64
	alertBurnCrit    float64

	alertMu    sync.Mutex
	lastAlerts map[string]time.Time
}

func (m *Metrics) StartSLOEvaluator(ctx context.Context, log *logger.Logger) {
	if m == nil || !sloEnabled() {
		return
	}
	eval := newSLOEvaluator(m, log)
	if eval == nil {
		return
	}
	go eval.run(ctx)
	if log != nil {
		log.Info("SLO evaluator started", "window", eval.windowLabel, "interval", eval.interval.String())
	}
}

func newSLOEvaluator(m *Metrics, log *logger.Logger) *SLOEvaluator {
	interval := time.Duration(envutil.IntRange("SLO_EVAL_INTERVAL_SECONDS", 60, 1, 3600)) * time.Second
	windowHours := envutil.Float("SLO_WINDOW_HOURS", 720, 1, 24*365)
	window := time.Duration(windowHours * float64(time.Hour))
	windowLabel := formatWindowLabel(window)
	size := int(window / interval)
	if size < 1 {
		size = 1
	}
	return &SLOEvaluator{
		metrics:                m,
		log:                    log,
		interval:               interval,
		window:                 window,
		windowLabel:            windowLabel,
		apiAvailTarget:         envutil.Float("SLO_API_AVAIL_TARGET", 0.995, 0, 1),
		apiLatencyTarget:       envutil.Float("SLO_API_LATENCY_TARGET", 0.95, 0, 1),
		workerSuccessTarget:    envutil.Float("SLO_WORKER_SUCCESS_TARGET", 0.98, 0, 1),
		decisionBudgetTarget:   envutil.Float("SLO_DECISION_BUDGET_TARGET", 0.99, 0, 1),
		synthesisSuccessTarget: envutil.Float("SLO_SYNTHESIS_SUCCESS_TARGET", 0.95, 0, 1),
		apiTotal:               newRollingSum(size),
		apiError:               newRollingSum(size),
		apiGood:                newRollingSum(size),
		workerTotal:            newRollingSum(size),
		workerError:            newRollingSum(size),
		decisionTotal:          newRollingSum(size),
		decisionFB:             newRollingSum(size),
		synthesisTotal:         newRollingSum(size),
		synthesisError:         newRollingSum(size),
		alertWebhook:           envutil.String("SLO_ALERT_WEBHOOK_URL", ""),
		alertOwner:             envutil.String("SLO_ALERT_OWNER", ""),
		alertRunbook:           envutil.String("SLO_ALERT_RUNBOOK_URL", ""),
		alertMinInterval:       time.Duration(envutil.IntRange("SLO_ALERT_MIN_INTERVAL_SECONDS", 900, 0, 86400)) * time.Second,
		alertBurnWarn:          envutil.Float("SLO_ALERT_BURN_RATE_WARN", 2, 0, 1000),
		alertBurnCrit:          envutil.Float("SLO_ALERT_BURN_RATE_CRIT", 10, 0, 1000),
		lastAlerts:             map[string]time.Time{},
	}
}

func (e *SLOEvaluator) run(ctx context.Context) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.evaluate()
		}
	}
}

func (e *SLOEvaluator) evaluate() {
	if e.metrics == nil {
		return
	}
	apiTotal := e.metrics.apiReqTotal.Value()
	apiError := e.metrics.apiReqError.Value()
	apiGood := e.metrics.apiReqGood.Value()
	workerTotal := e.metrics.workerTotal.Value()
	workerError := e.metrics.workerError.Value()
	decisionTotal := e.metrics.decisionTotal.Value()
	decisionFB := e.metrics.decisionFallback.Value()
	synthesisTotal := e.metrics.synthesisTotal.Value()
	synthesisError := e.metrics.synthesisError.Value()

	apiDeltaTotal := delta(apiTotal, e.prevApiTotal)
	apiDeltaError := delta(apiError, e.prevApiError)
	apiDeltaGood := delta(apiGood, e.prevApiGood)
	workerDeltaTotal := delta(workerTotal, e.prevWorkerTotal)
	workerDeltaError := delta(workerError, e.prevWorkerError)
	decisionDeltaTotal := delta(decisionTotal, e.prevDecisionTotal)
	decisionDeltaFB := delta(decisionFB, e.prevDecisionFB)
	synthesisDeltaTotal := delta(synthesisTotal, e.prevSynthesisTotal)
	synthesisDeltaError := delta(synthesisError, e.prevSynthesisError)

	e.prevApiTotal = apiTotal
	e.prevApiError = apiError
	e.prevApiGood = apiGood
	e.prevWorkerTotal = workerTotal
	e.prevWorkerError = workerError
	e.prevDecisionTotal = decisionTotal
	e.prevDecisionFB = decisionFB
	e.prevSynthesisTotal = synthesisTotal
	e.prevSynthesisError = synthesisError

	e.apiTotal.add(apiDeltaTotal)
	e.apiError.add(apiDeltaError)
	e.apiGood.add(apiDeltaGood)
	e.workerTotal.add(workerDeltaTotal)
	e.workerError.add(workerDeltaError)
	e.decisionTotal.add(decisionDeltaTotal)
	e.decisionFB.add(decisionDeltaFB)
	e.synthesisTotal.add(synthesisDeltaTotal)
	e.synthesisError.add(synthesisDeltaError)

	e.evalSLO("api_availability", e.apiTotal.total, e.apiError.total, e.apiAvailTarget)
	e.evalSLO("api_latency", e.apiTotal.total, e.apiTotal.total-e.apiGood.total, e.apiLatencyTarget)
	e.evalSLO("worker_success", e.workerTotal.total, e.workerError.total, e.workerSuccessTarget)
	e.evalSLO("decision_in_budget", e.decisionTotal.total, e.decisionFB.total, e.decisionBudgetTarget)
	e.evalSLO("synthesis_success", e.synthesisTotal.total, e.synthesisError.total, e.synthesisSuccessTarget)
}

func (e *SLOEvaluator) evalSLO(name string, total float64, bad float64, target float64) {
	if total <= 0 {
		e.metrics.sloCompliance.Set(1, name, e.windowLabel)
		e.metrics.sloBudget.Set(1, name, e.windowLabel)
		e.metrics.sloBurn.Set(0, name, e.windowLabel)
		return
	}
	sli := clamp01(1 - bad/total)
	burn := 0.0
	if target < 1 {
		burn = (1 - sli) / (1 - target)
	}
	budget := clamp01(1 - burn)
	e.metrics.sloCompliance.Set(sli, name, e.windowLabel)
	e.metrics.sloBudget.Set(budget, name, e.windowLabel)
	e.metrics.sloBurn.Set(burn, name, e.windowLabel)

	if e.alertWebhook == "" || e.alertOwner == "" {
		return
	}
	severity := ""
	if burn >= e.alertBurnCrit {
		severity = "critical"
	} else if burn >= e.alertBurnWarn {
		severity = "warning"
	}
	if severity == "" {
		return
	}
	key := name + ":" + severity
	e.alertMu.Lock()
	last := e.lastAlerts[key]
	if !last.IsZero() && time.Since(last) < e.alertMinInterval {
		e.alertMu.Unlock()
		return
	}
	e.lastAlerts[key] = time.Now()
	e.alertMu.Unlock()
	e.sendAlert(name, severity, sli, target, burn, budget)
}

func (e *SLOEvaluator) sendAlert(name, severity string, sli, target, burn, budget float64) {
	payload := map[string]any{
		"title":                  "SLO burn rate alert",
		"severity":               severity,
		"owner":                  e.alertOwner,
		"slo":                    name,
		"window":                 e.windowLabel,
		"sli":                    sli,
		"target":                 target,
		"burn_rate":              burn,
		"error_budget_remaining": budget,
		"runbook":                e.alertRunbook,
		"timestamp":              time.Now().UTC().Format(time.RFC3339),
	}
	body, _ := json.Marshal(payload)
	req, err := http.NewRequest(http.MethodPost, e.alertWebhook, bytes.NewReader(body))
	if err != nil {
		if e.log != nil {
			e.log.Warn("slo alert request build failed", "error", err, "slo", name)
		}
		return
	}
	req.Header.Set("Content-Type", "application/json")
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		if e.log != nil {
			e.log.Warn("slo alert post failed", "error", err, "slo", name)
		}
		return
	}
	_ = resp.Body.Close()
	if e.log != nil {
		e.log.Info("slo alert sent", "slo", name, "severity", severity, "status", resp.StatusCode)
	}
}

func delta(current, prev float64) float64 {
	if current < prev {
		return current
	}
	return current - prev
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func formatWindowLabel(window time.Duration) string {
	hours := window.Hours()
	if hours >= 24 && mathMod(hours, 24) == 0 {
		return strconv.Itoa(int(hours/24)) + "d"
	}
	if hours >= 1 {
		return strconv.Itoa(int(hours)) + "h"
	}
	return strconv.Itoa(int(window.Minutes())) + "m"
}

func mathMod(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a - float64(int(a/b))*b
}

func sloEnabled() bool {
	return envutil.Bool("SLO_ENABLED", false)
}
