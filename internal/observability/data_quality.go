package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/yungbote/rewardcore-backend/internal/platform/ctxutil"
	"github.com/yungbote/rewardcore-backend/internal/platform/logger"
)

var (
	unknownFieldRe = regexp.MustCompile(`unknown (domain|action type|source|event type) "([^"]+)"`)
)

type dqAlertState struct {
	mu   sync.Mutex
	last map[string]time.Time
}

var dqAlerts dqAlertState

// ReportDataQualityErrors classifies ingest validation failures, bumps the
// rejection counters, and fans a throttled alert to the webhook when enabled.
func ReportDataQualityErrors(ctx context.Context, log *logger.Logger, stage string, errs []string, meta map[string]any) {
	if len(errs) == 0 {
		return
	}
	stage = strings.TrimSpace(stage)
	if stage == "" {
		stage = "unknown"
	}
	if meta == nil {
		meta = map[string]any{}
	}
	if td := ctxutil.GetTraceData(ctx); td != nil {
		if td.TraceID != "" {
			meta["trace_id"] = td.TraceID
		}
		if td.RequestID != "" {
			meta["request_id"] = td.RequestID
		}
	}

	issueCounts := map[string]int{}
	sampleErrors := make([]string, 0, 3)
	for _, errStr := range errs {
		errStr = strings.TrimSpace(errStr)
		if errStr == "" {
			continue
		}
		if len(sampleErrors) < 3 {
			sampleErrors = append(sampleErrors, errStr)
		}
		lower := strings.ToLower(errStr)
		issue := classifyIssue(lower)
		incEventRejected(issue)
		issueCounts[issue]++
	}

	if log != nil {
		log.Warn("data quality issue detected",
			"stage", stage,
			"issues", issueCounts,
			"sample_errors", sampleErrors,
			"meta", meta,
		)
	}
	sendDataQualityAlert(stage, issueCounts, sampleErrors, meta, log)
}

func classifyIssue(lower string) string {
	if m := unknownFieldRe.FindStringSubmatch(lower); len(m) == 3 {
		return "unknown_" + strings.ReplaceAll(m[1], " ", "_")
	}
	switch {
	case strings.Contains(lower, "clock skew") || strings.Contains(lower, "in the future"):
		return "clock_skew"
	case strings.Contains(lower, "occurred_at"):
		return "missing_timestamp"
	case strings.Contains(lower, "payload"):
		return "invalid_payload"
	case strings.Contains(lower, "client_event_id"):
		return "missing_client_event_id"
	case strings.Contains(lower, "is required") || strings.Contains(lower, "missing"):
		return "missing_required"
	default:
		return "validation_error"
	}
}

func incEventRejected(reason string) {
	metrics := Current()
	if metrics == nil {
		return
	}
	metrics.IncEventRejected(reason)
}

func dataQualityAlertsEnabled() bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv("DATA_QUALITY_ALERTS_ENABLED")))
	if v == "" {
		return false
	}
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

func dataQualityAlertWebhook() string {
	val := strings.TrimSpace(os.Getenv("DATA_QUALITY_ALERT_WEBHOOK_URL"))
	if val != "" {
		return val
	}
	return strings.TrimSpace(os.Getenv("SLO_ALERT_WEBHOOK_URL"))
}

func dataQualityAlertMinInterval() time.Duration {
	raw := strings.TrimSpace(os.Getenv("DATA_QUALITY_ALERT_MIN_INTERVAL_SECONDS"))
	if raw == "" {
		return 5 * time.Minute
	}
	seconds, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || seconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(seconds) * time.Second
}

func sendDataQualityAlert(stage string, issueCounts map[string]int, sampleErrors []string, meta map[string]any, log *logger.Logger) {
	if !dataQualityAlertsEnabled() {
		return
	}
	webhook := dataQualityAlertWebhook()
	if webhook == "" || len(issueCounts) == 0 {
		return
	}
	key := stage
	dqAlerts.mu.Lock()
	if dqAlerts.last == nil {
		dqAlerts.last = map[string]time.Time{}
	}
	last := dqAlerts.last[key]
	minInterval := dataQualityAlertMinInterval()
	if !last.IsZero() && time.Since(last) < minInterval {
		dqAlerts.mu.Unlock()
		return
	}
	dqAlerts.last[key] = time.Now()
	dqAlerts.mu.Unlock()

	payload := map[string]any{
		"title":         "Data quality issue",
		"stage":         stage,
		"issues":        issueCounts,
		"sample_errors": sampleErrors,
		"meta":          meta,
		"timestamp":     time.Now().UTC().Format(time.RFC3339),
	}
	body, _ := json.Marshal(payload)
	req, err := http.NewRequest(http.MethodPost, webhook, bytes.NewReader(body))
	if err != nil {
		if log != nil {
			log.Warn("data quality alert request build failed", "error", err, "stage", stage)
		}
		return
	}
	req.Header.Set("Content-Type", "application/json")
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		if log != nil {
			log.Warn("data quality alert post failed", "error", err, "stage", stage)
		}
		return
	}
	_ = resp.Body.Close()
	if log != nil {
		log.Info("data quality alert sent", "stage", stage, "status", resp.StatusCode)
	}
}
