package observability

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	types "github.com/yungbote/rewardcore-backend/internal/domain"
	"github.com/yungbote/rewardcore-backend/internal/platform/logger"
)

type Metrics struct {
	apiRequests *CounterVec
	apiLatency  *HistogramVec
	apiInflight *Gauge
	apiReqTotal *Counter
	apiReqError *Counter
	apiReqGood  *Counter

	eventsIngested *CounterVec
	eventsRejected *CounterVec
	eventsDeduped  *Counter

	decisions        *CounterVec
	decisionLatency  *HistogramVec
	decisionExplore  *CounterVec
	decisionEpsilon  *GaugeVec
	decisionTotal    *Counter
	decisionFallback *Counter

	exclusions *CounterVec

	outcomes        *CounterVec
	estimateUpdates *Counter
	outcomeTotal    *Counter
	outcomeStale    *Counter

	synthesisRuns   *CounterVec
	synthesisStage  *HistogramVec
	conceptsEmitted *Counter
	synthesisTotal  *Counter
	synthesisError  *Counter

	profileRefresh *CounterVec
	badgesAwarded  *CounterVec

	jobRuns     *CounterVec
	jobTime     *HistogramVec
	workerTotal *Counter
	workerError *Counter

	queueDepth  *GaugeVec
	catalogSize *GaugeVec
	warmUsers   *Gauge

	pgStats   *GaugeVec
	redisUp   *Gauge
	redisPing *Gauge

	sloCompliance *GaugeVec
	sloBudget     *GaugeVec
	sloBurn       *GaugeVec

	sloLatencyThreshold   float64
	decisionBudgetSeconds float64
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Enabled() bool {
	v := strings.TrimSpace(os.Getenv("METRICS_ENABLED"))
	if v == "" {
		return false
	}
	return strings.EqualFold(v, "true") || v == "1" || strings.EqualFold(v, "yes")
}

func Current() *Metrics {
	return instance
}

func scrapeInterval() time.Duration {
	v := strings.TrimSpace(os.Getenv("METRICS_SCRAPE_INTERVAL_SECONDS"))
	if v == "" {
		return 10 * time.Second
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 10 * time.Second
	}
	return time.Duration(n) * time.Second
}

func Init(log *logger.Logger) *Metrics {
	if !Enabled() {
		return nil
	}
	initOnce.Do(func() {
		latencyThreshold := 0.5
		if v := strings.TrimSpace(os.Getenv("SLO_API_LATENCY_THRESHOLD_SECONDS")); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
				latencyThreshold = f
			}
		}
		budgetSeconds := 0.15
		if v := strings.TrimSpace(os.Getenv("DECISION_BUDGET_MS")); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				budgetSeconds = float64(n) / 1000
			}
		}
		instance = &Metrics{
			apiRequests: NewCounterVec("rc_api_requests_total", "Total API requests by method/route/status.", []string{"method", "route", "status"}),
			apiLatency: NewHistogramVec(
				"rc_api_request_duration_seconds",
				"API request latency in seconds by method/route/status.",
				[]string{"method", "route", "status"},
				[]float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			),
			apiInflight: NewGauge("rc_api_inflight_requests", "In-flight API requests."),
			apiReqTotal: NewCounter("rc_api_requests_total_all", "Total API requests (all)."),
			apiReqError: NewCounter("rc_api_requests_error_total", "Total API requests with 5xx status."),
			apiReqGood:  NewCounter("rc_api_requests_good_latency_total", "Total API requests under SLO latency threshold."),

			eventsIngested: NewCounterVec("rc_events_ingested_total", "Behavior events accepted by type/source.", []string{"type", "source"}),
			eventsRejected: NewCounterVec("rc_events_rejected_total", "Behavior events rejected by reason.", []string{"reason"}),
			eventsDeduped:  NewCounter("rc_events_deduplicated_total", "Behavior events dropped as duplicates."),

			decisions: NewCounterVec("rc_decisions_total", "Reward decisions by kind.", []string{"kind"}),
			decisionLatency: NewHistogramVec(
				"rc_decision_duration_seconds",
				"Decision pipeline latency in seconds by kind.",
				[]string{"kind"},
				[]float64{0.005, 0.01, 0.025, 0.05, 0.075, 0.1, 0.15, 0.25, 0.5, 1},
			),
			decisionExplore:  NewCounterVec("rc_decision_exploration_total", "Decisions by explore/exploit branch.", []string{"mode"}),
			decisionEpsilon:  NewGaugeVec("rc_decision_epsilon", "Current exploration rate by maturity band.", []string{"maturity"}),
			decisionTotal:    NewCounter("rc_decisions_total_all", "Total reward decisions (all kinds)."),
			decisionFallback: NewCounter("rc_decisions_budget_fallback_total", "Decisions that hit the latency budget fallback."),

			exclusions: NewCounterVec("rc_constraint_exclusions_total", "Hard constraint exclusions by predicate.", []string{"predicate"}),

			outcomes:        NewCounterVec("rc_outcomes_total", "Recorded outcomes by kind/status.", []string{"kind", "status"}),
			estimateUpdates: NewCounter("rc_arm_estimate_updates_total", "Bandit arm estimate updates applied."),
			outcomeTotal:    NewCounter("rc_outcomes_total_all", "Total outcome submissions."),
			outcomeStale:    NewCounter("rc_outcomes_stale_total", "Outcome submissions outside the observation window."),

			synthesisRuns: NewCounterVec("rc_synthesis_runs_total", "Synthesis runs by final status.", []string{"status"}),
			synthesisStage: NewHistogramVec(
				"rc_synthesis_stage_duration_seconds",
				"Synthesis stage duration in seconds.",
				[]string{"stage", "status"},
				[]float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
			),
			conceptsEmitted: NewCounter("rc_synthesis_concepts_emitted_total", "Beta action specs emitted by synthesis."),
			synthesisTotal:  NewCounter("rc_synthesis_runs_total_all", "Total synthesis runs."),
			synthesisError:  NewCounter("rc_synthesis_runs_error_total", "Synthesis runs ending failed or aborted."),

			profileRefresh: NewCounterVec("rc_profile_refresh_total", "Public profile refreshes by status.", []string{"status"}),
			badgesAwarded:  NewCounterVec("rc_profile_badges_awarded_total", "Badges awarded by badge key.", []string{"badge"}),

			jobRuns: NewCounterVec("rc_job_runs_total", "Background job runs by type/status.", []string{"job_type", "status"}),
			jobTime: NewHistogramVec(
				"rc_job_duration_seconds",
				"Background job duration in seconds by type/status.",
				[]string{"job_type", "status"},
				[]float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
			),
			workerTotal: NewCounter("rc_job_runs_total_all", "Total background job runs."),
			workerError: NewCounter("rc_job_runs_error_total", "Total background job runs with failure status."),

			queueDepth:  NewGaugeVec("rc_job_queue_depth", "Job queue depth by status.", []string{"status"}),
			catalogSize: NewGaugeVec("rc_action_catalog_size", "Action specs by lifecycle status.", []string{"status"}),
			warmUsers:   NewGauge("rc_warm_users", "Users past the cold-start threshold."),

			pgStats:   NewGaugeVec("rc_postgres_stats", "Postgres connection stats.", []string{"metric"}),
			redisUp:   NewGauge("rc_redis_up", "Redis connectivity (1=up, 0=down)."),
			redisPing: NewGauge("rc_redis_ping_seconds", "Redis ping latency in seconds."),

			sloCompliance: NewGaugeVec("rc_slo_compliance", "SLO compliance (SLI) over window.", []string{"slo", "window"}),
			sloBudget:     NewGaugeVec("rc_slo_error_budget_remaining", "Error budget remaining (0-1).", []string{"slo", "window"}),
			sloBurn:       NewGaugeVec("rc_slo_burn_rate", "Error budget burn rate.", []string{"slo", "window"}),

			sloLatencyThreshold:   latencyThreshold,
			decisionBudgetSeconds: budgetSeconds,
		}
		if log != nil {
			log.Info("Observability metrics enabled")
		}
	})
	return instance
}

func (m *Metrics) StartServer(ctx context.Context, log *logger.Logger, addr string) {
	if m == nil {
		return
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           http.HandlerFunc(m.WriteHTTP),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		cancel()
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if log != nil {
				log.Error("metrics server failed", "error", err, "addr", addr)
			}
		}
	}()
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, r *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	writers := []interface{ WritePrometheus(io.Writer) error }{
		m.apiRequests, m.apiLatency, m.apiInflight, m.apiReqTotal, m.apiReqError, m.apiReqGood,
		m.eventsIngested, m.eventsRejected, m.eventsDeduped,
		m.decisions, m.decisionLatency, m.decisionExplore, m.decisionEpsilon, m.decisionTotal, m.decisionFallback,
		m.exclusions,
		m.outcomes, m.estimateUpdates, m.outcomeTotal, m.outcomeStale,
		m.synthesisRuns, m.synthesisStage, m.conceptsEmitted, m.synthesisTotal, m.synthesisError,
		m.profileRefresh, m.badgesAwarded,
		m.jobRuns, m.jobTime, m.workerTotal, m.workerError,
		m.queueDepth, m.catalogSize, m.warmUsers,
		m.pgStats, m.redisUp, m.redisPing,
		m.sloCompliance, m.sloBudget, m.sloBurn,
	}
	for _, wr := range writers {
		if err := wr.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "unknown"
	}
	if route == "" {
		route = "unknown"
	}
	if status == "" {
		status = "unknown"
	}
	m.apiRequests.Inc(method, route, status)
	m.apiLatency.Observe(dur.Seconds(), method, route, status)
	m.apiReqTotal.Inc()
	if isServerErrorStatus(status) {
		m.apiReqError.Inc()
	}
	if dur.Seconds() <= m.sloLatencyThreshold {
		m.apiReqGood.Inc()
	}
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

func (m *Metrics) IncEventIngested(eventType, source string) {
	if m == nil {
		return
	}
	if eventType == "" {
		eventType = "unknown"
	}
	if source == "" {
		source = "unknown"
	}
	m.eventsIngested.Inc(eventType, source)
}

func (m *Metrics) IncEventRejected(reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "unknown"
	}
	m.eventsRejected.Inc(reason)
}

func (m *Metrics) AddEventsDeduped(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.eventsDeduped.Add(float64(n))
}

// ObserveDecision records one decision end to end. The kind label follows
// the decision taxonomy (policy, cold_start, budget_fallback, no_reward).
func (m *Metrics) ObserveDecision(kind string, explored bool, epsilon float64, maturity string, dur time.Duration) {
	if m == nil {
		return
	}
	if kind == "" {
		kind = "unknown"
	}
	m.decisions.Inc(kind)
	m.decisionLatency.Observe(dur.Seconds(), kind)
	m.decisionTotal.Inc()
	if kind == "budget_fallback" {
		m.decisionFallback.Inc()
	}
	mode := "exploit"
	if explored {
		mode = "explore"
	}
	m.decisionExplore.Inc(mode)
	if maturity != "" {
		m.decisionEpsilon.Set(epsilon, maturity)
	}
}

func (m *Metrics) IncExclusion(predicate string) {
	if m == nil {
		return
	}
	if predicate == "" {
		predicate = "unknown"
	}
	m.exclusions.Inc(predicate)
}

// IncOutcome records a submitted outcome. Status is one of applied,
// duplicate, or stale.
func (m *Metrics) IncOutcome(kind, status string) {
	if m == nil {
		return
	}
	if kind == "" {
		kind = "unknown"
	}
	if status == "" {
		status = "unknown"
	}
	m.outcomes.Inc(kind, status)
	m.outcomeTotal.Inc()
	if status == "stale" {
		m.outcomeStale.Inc()
	}
}

func (m *Metrics) IncEstimateUpdate() {
	if m == nil {
		return
	}
	m.estimateUpdates.Inc()
}

func (m *Metrics) ObserveSynthesisRun(status string, dur time.Duration) {
	if m == nil {
		return
	}
	if status == "" {
		status = "unknown"
	}
	m.synthesisRuns.Inc(status)
	m.synthesisTotal.Inc()
	if isFailureStatus(status) || status == "aborted" {
		m.synthesisError.Inc()
	}
	m.synthesisStage.Observe(dur.Seconds(), "run", status)
}

func (m *Metrics) ObserveSynthesisStage(stage, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if stage == "" {
		stage = "unknown"
	}
	if status == "" {
		status = "unknown"
	}
	m.synthesisStage.Observe(dur.Seconds(), stage, status)
}

func (m *Metrics) AddConceptsEmitted(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.conceptsEmitted.Add(float64(n))
}

func (m *Metrics) IncProfileRefresh(status string) {
	if m == nil {
		return
	}
	if status == "" {
		status = "unknown"
	}
	m.profileRefresh.Inc(status)
}

func (m *Metrics) IncBadgeAwarded(badgeKey string) {
	if m == nil {
		return
	}
	if badgeKey == "" {
		badgeKey = "unknown"
	}
	m.badgesAwarded.Inc(badgeKey)
}

func (m *Metrics) ObserveJob(jobType, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if jobType == "" {
		jobType = "unknown"
	}
	if status == "" {
		status = "unknown"
	}
	m.jobRuns.Inc(jobType, status)
	m.jobTime.Observe(dur.Seconds(), jobType, status)
	m.workerTotal.Inc()
	if isFailureStatus(status) {
		m.workerError.Inc()
	}
}

func (m *Metrics) StartPostgresCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	interval := scrapeInterval()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sqlDB, err := db.DB()
				if err != nil {
					if log != nil {
						log.Warn("metrics: postgres stats unavailable", "error", err)
					}
					continue
				}
				stats := sqlDB.Stats()
				m.pgStats.Set(float64(stats.OpenConnections), "open_connections")
				m.pgStats.Set(float64(stats.InUse), "in_use")
				m.pgStats.Set(float64(stats.Idle), "idle")
				m.pgStats.Set(float64(stats.WaitCount), "wait_count")
				m.pgStats.Set(stats.WaitDuration.Seconds(), "wait_duration_seconds")
				m.pgStats.Set(float64(stats.MaxOpenConnections), "max_open_connections")
				m.pgStats.Set(float64(stats.MaxIdleClosed), "max_idle_closed")
				m.pgStats.Set(float64(stats.MaxIdleTimeClosed), "max_idle_time_closed")
				m.pgStats.Set(float64(stats.MaxLifetimeClosed), "max_lifetime_closed")
			}
		}
	}()
}

func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, addr string) {
	if m == nil {
		return
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return
	}
	interval := scrapeInterval()
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				_ = rdb.Close()
				return
			case <-ticker.C:
				start := time.Now()
				if err := rdb.Ping(ctx).Err(); err != nil {
					m.redisUp.Set(0)
					if log != nil {
						log.Warn("metrics: redis ping failed", "error", err)
					}
					continue
				}
				m.redisUp.Set(1)
				m.redisPing.Set(time.Since(start).Seconds())
			}
		}
	}()
}

func (m *Metrics) StartJobQueueCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	interval := scrapeInterval()
	statuses := []string{types.JobStatusPending, types.JobStatusRunning, types.JobStatusCompleted, types.JobStatusFailed}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for _, s := range statuses {
					m.queueDepth.Set(0, s)
				}
				var rows []struct {
					Status string
					Count  int64
				}
				if err := db.WithContext(ctx).
					Model(&types.JobRun{}).
					Select("status, count(*) as count").
					Group("status").
					Scan(&rows).Error; err != nil {
					if log != nil {
						log.Warn("metrics: job queue depth query failed", "error", err)
					}
					continue
				}
				for _, row := range rows {
					status := strings.TrimSpace(row.Status)
					if status == "" {
						status = "unknown"
					}
					m.queueDepth.Set(float64(row.Count), status)
				}
			}
		}
	}()
}

// StartCatalogCollector gauges the action catalog by lifecycle status and
// the warm-user population.
func (m *Metrics) StartCatalogCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	interval := scrapeInterval()
	statuses := []string{types.ActionStatusBeta, types.ActionStatusActive, types.ActionStatusRetired}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for _, s := range statuses {
					m.catalogSize.Set(0, s)
				}
				var rows []struct {
					Status string
					Count  int64
				}
				if err := db.WithContext(ctx).
					Model(&types.ActionSpec{}).
					Select("status, count(*) as count").
					Group("status").
					Scan(&rows).Error; err != nil {
					if log != nil {
						log.Warn("metrics: catalog size query failed", "error", err)
					}
					continue
				}
				for _, row := range rows {
					status := strings.TrimSpace(row.Status)
					if status == "" {
						status = "unknown"
					}
					m.catalogSize.Set(float64(row.Count), status)
				}

				var warm int64
				if err := db.WithContext(ctx).
					Model(&types.UserState{}).
					Where("cold = FALSE").
					Count(&warm).Error; err == nil {
					m.warmUsers.Set(float64(warm))
				}
			}
		}
	}()
}

// ---- lightweight metric primitives (Prometheus exposition) ----

type CounterVec struct {
	name       string
	help       string
	labelNames []string
	mu         sync.RWMutex
	values     map[string]float64
}

func NewCounterVec(name, help string, labels []string) *CounterVec {
	return &CounterVec{name: name, help: help, labelNames: labels, values: map[string]float64{}}
}

func (c *CounterVec) Inc(values ...string) {
	if c == nil {
		return
	}
	lbl := labelString(c.labelNames, values)
	c.mu.Lock()
	c.values[lbl]++
	c.mu.Unlock()
}

func (c *CounterVec) Add(v float64, values ...string) {
	if c == nil {
		return
	}
	lbl := labelString(c.labelNames, values)
	c.mu.Lock()
	c.values[lbl] += v
	c.mu.Unlock()
}

func (c *CounterVec) WritePrometheus(w io.Writer) error {
	if c == nil {
		return nil
	}
	if _, err := fmt.Fprintf(w, "# HELP %s %s\n", c.name, c.help); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "# TYPE %s counter\n", c.name); err != nil {
		return err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	for k, v := range c.values {
		if _, err := fmt.Fprintf(w, "%s%s %f\n", c.name, k, v); err != nil {
			return err
		}
	}
	return nil
}

type Counter struct {
	name string
	help string
	mu   sync.RWMutex
	val  float64
}

func NewCounter(name, help string) *Counter {
	return &Counter{name: name, help: help}
}

func (c *Counter) Inc() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.val++
	c.mu.Unlock()
}

func (c *Counter) Add(v float64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.val += v
	c.mu.Unlock()
}

func (c *Counter) Value() float64 {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.val
}

func (c *Counter) WritePrometheus(w io.Writer) error {
	if c == nil {
		return nil
	}
	if _, err := fmt.Fprintf(w, "# HELP %s %s\n", c.name, c.help); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "# TYPE %s counter\n", c.name); err != nil {
		return err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, err := fmt.Fprintf(w, "%s %f\n", c.name, c.val)
	return err
}

type Gauge struct {
	name string
	help string
	mu   sync.RWMutex
	val  float64
}

func NewGauge(name, help string) *Gauge {
	return &Gauge{name: name, help: help}
}

func (g *Gauge) Set(v float64) {
	if g == nil {
		return
	}
	g.mu.Lock()
	g.val = v
	g.mu.Unlock()
}

func (g *Gauge) Inc() {
	if g == nil {
		return
	}
	g.mu.Lock()
	g.val++
	g.mu.Unlock()
}

func (g *Gauge) Dec() {
	if g == nil {
		return
	}
	g.mu.Lock()
	g.val--
	g.mu.Unlock()
}

func (g *Gauge) WritePrometheus(w io.Writer) error {
	if g == nil {
		return nil
	}
	if _, err := fmt.Fprintf(w, "# HELP %s %s\n", g.name, g.help); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "# TYPE %s gauge\n", g.name); err != nil {
		return err
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, err := fmt.Fprintf(w, "%s %f\n", g.name, g.val)
	return err
}

type GaugeVec struct {
	name       string
	help       string
	labelNames []string
	mu         sync.RWMutex
	values     map[string]float64
}

func NewGaugeVec(name, help string, labels []string) *GaugeVec {
	return &GaugeVec{name: name, help: help, labelNames: labels, values: map[string]float64{}}
}

func (g *GaugeVec) Set(v float64, values ...string) {
	if g == nil {
		return
	}
	lbl := labelString(g.labelNames, values)
	g.mu.Lock()
	g.values[lbl] = v
	g.mu.Unlock()
}

func (g *GaugeVec) WritePrometheus(w io.Writer) error {
	if g == nil {
		return nil
	}
	if _, err := fmt.Fprintf(w, "# HELP %s %s\n", g.name, g.help); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "# TYPE %s gauge\n", g.name); err != nil {
		return err
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	for k, v := range g.values {
		if _, err := fmt.Fprintf(w, "%s%s %f\n", g.name, k, v); err != nil {
			return err
		}
	}
	return nil
}

type HistogramVec struct {
	name       string
	help       string
	labelNames []string
	buckets    []float64
	mu         sync.RWMutex
	values     map[string]*histogram
}

type histogram struct {
	buckets []float64
	counts  []uint64
	sum     float64
	total   uint64
}

func NewHistogramVec(name, help string, labels []string, buckets []float64) *HistogramVec {
	if len(buckets) == 0 {
		buckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5}
	}
	return &HistogramVec{name: name, help: help, labelNames: labels, buckets: buckets, values: map[string]*histogram{}}
}

func (h *HistogramVec) Observe(v float64, values ...string) {
	if h == nil {
		return
	}
	lbl := labelString(h.labelNames, values)
	h.mu.Lock()
	defer h.mu.Unlock()
	hist, ok := h.values[lbl]
	if !ok {
		hist = &histogram{
			buckets: h.buckets,
			counts:  make([]uint64, len(h.buckets)+1),
		}
		h.values[lbl] = hist
	}
	hist.sum += v
	hist.total++
	for i, b := range hist.buckets {
		if v <= b {
			hist.counts[i]++
		}
	}
	hist.counts[len(hist.counts)-1]++
}

func (h *HistogramVec) WritePrometheus(w io.Writer) error {
	if h == nil {
		return nil
	}
	if _, err := fmt.Fprintf(w, "# HELP %s %s\n", h.name, h.help); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "# TYPE %s histogram\n", h.name); err != nil {
		return err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for k, v := range h.values {
		for i, b := range v.buckets {
			if _, err := fmt.Fprintf(w, "%s_bucket%s %d\n", h.name, withLe(k, fmt.Sprintf("%g", b)), v.counts[i]); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, "%s_bucket%s %d\n", h.name, withLe(k, "+Inf"), v.counts[len(v.counts)-1]); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "%s_sum%s %f\n", h.name, k, v.sum); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "%s_count%s %d\n", h.name, k, v.total); err != nil {
			return err
		}
	}
	return nil
}

func labelString(names []string, values []string) string {
	if len(names) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("{")
	for i, name := range names {
		if i > 0 {
			b.WriteString(",")
		}
		val := "unknown"
		if i < len(values) {
			val = values[i]
		}
		b.WriteString(name)
		b.WriteString("=\"")
		b.WriteString(escapeLabel(val))
		b.WriteString("\"")
	}
	b.WriteString("}")
	return b.String()
}

func escapeLabel(v string) string {
	if v == "" {
		return ""
	}
	v = strings.ReplaceAll(v, "\\", "\\\\")
	v = strings.ReplaceAll(v, "\"", "\\\"")
	v = strings.ReplaceAll(v, "\n", "\\n")
	return v
}

func withLe(labels string, le string) string {
	le = escapeLabel(le)
	if labels == "" || labels == "{}" {
		return "{le=\"" + le + "\"}"
	}
	if strings.HasSuffix(labels, "}") {
		return strings.TrimSuffix(labels, "}") + ",le=\"" + le + "\"}"
	}
	return "{le=\"" + le + "\"}"
}

func isServerErrorStatus(status string) bool {
	status = strings.TrimSpace(status)
	if len(status) < 3 {
		return false
	}
	return status[0] == '5'
}

func isFailureStatus(status string) bool {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "failed", "error", "timeout", "panic":
		return true
	default:
		return false
	}
}
