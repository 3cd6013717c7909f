package services

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/rewardcore-backend/internal/data/repos"
	types "github.com/yungbote/rewardcore-backend/internal/domain"
	"github.com/yungbote/rewardcore-backend/internal/observability"
	"github.com/yungbote/rewardcore-backend/internal/platform/apierr"
	"github.com/yungbote/rewardcore-backend/internal/platform/dbctx"
	"github.com/yungbote/rewardcore-backend/internal/platform/envutil"
	"github.com/yungbote/rewardcore-backend/internal/platform/logger"
	"github.com/yungbote/rewardcore-backend/internal/realtime/bus"
)

const (
	maxIngestBatch      = 500
	maxClientEventIDLen = 128
	maxEventPayloadLen  = 16 * 1024
)

// EventInput is one event as submitted by a caller. ClientEventID is the
// idempotency key; resubmitting the same (user, client_event_id) is a
// counted no-op, not an error.
type EventInput struct {
	ClientEventID     string          `json:"client_event_id"`
	OccurredAt        time.Time       `json:"occurred_at"`
	SessionID         uuid.UUID       `json:"session_id,omitempty"`
	ActionType        string          `json:"action_type"`
	Domain            string          `json:"domain,omitempty"`
	Source            string          `json:"source,omitempty"`
	DeviceFingerprint string          `json:"device_fingerprint,omitempty"`
	Payload           json.RawMessage `json:"payload,omitempty"`
}

// RejectedEvent reports one validation failure by batch position. Rejects
// never abort the rest of the batch.
type RejectedEvent struct {
	Index         int    `json:"index"`
	ClientEventID string `json:"client_event_id,omitempty"`
	Reason        string `json:"reason"`
}

type IngestResult struct {
	Accepted int             `json:"accepted"`
	Deduped  int             `json:"deduped"`
	Rejected []RejectedEvent `json:"rejected,omitempty"`
	// ID of the state-update job this batch debounced into, if one was
	// enqueued.
	JobID *uuid.UUID `json:"job_id,omitempty"`
}

// EventService ingests behavior events. Writes are append-only; state
// application happens asynchronously through the per-user state_update job,
// which is what keeps ingestion concurrent across users but serialized
// within one.
type EventService interface {
	Ingest(dbc dbctx.Context, userID uuid.UUID, batch []EventInput) (*IngestResult, error)
}

type eventService struct {
	db     *gorm.DB
	log    *logger.Logger
	events repos.BehaviorEventRepo
	dedupe bus.Deduper
	jobSvc JobService

	dedupeTTL     time.Duration
	allowedFuture time.Duration
}

func NewEventService(
	db *gorm.DB,
	baseLog *logger.Logger,
	events repos.BehaviorEventRepo,
	dedupe bus.Deduper,
	jobSvc JobService,
) EventService {
	return &eventService{
		db:            db,
		log:           baseLog.With("service", "EventService"),
		events:        events,
		dedupe:        dedupe,
		jobSvc:        jobSvc,
		dedupeTTL:     envutil.Duration("INGEST_DEDUPE_TTL", 48*time.Hour),
		allowedFuture: envutil.Duration("INGEST_MAX_CLOCK_SKEW", 5*time.Minute),
	}
}

func (s *eventService) Ingest(dbc dbctx.Context, userID uuid.UUID, batch []EventInput) (*IngestResult, error) {
	if userID == uuid.Nil {
		return nil, apierr.Validation("missing user_id")
	}
	if len(batch) == 0 {
		return nil, apierr.Validation("empty event batch")
	}
	if len(batch) > maxIngestBatch {
		return nil, apierr.Validationf("batch of %d exceeds limit %d", len(batch), maxIngestBatch)
	}

	res := &IngestResult{}
	now := time.Now().UTC()

	rows := make([]*types.BehaviorEvent, 0, len(batch))
	accepted := make([]EventInput, 0, len(batch))
	var rejectReasons []string
	seenInBatch := map[string]bool{}

	for i, in := range batch {
		if reason := s.validate(in, now); reason != "" {
			res.Rejected = append(res.Rejected, RejectedEvent{Index: i, ClientEventID: in.ClientEventID, Reason: reason})
			rejectReasons = append(rejectReasons, reason)
			continue
		}
		// Duplicates inside one request dedupe here; the redis key and the
		// table constraint only ever see the first occurrence.
		if seenInBatch[in.ClientEventID] {
			res.Deduped++
			continue
		}
		seenInBatch[in.ClientEventID] = true

		if s.dedupe != nil {
			seen, err := s.dedupe.Seen(dbc.Ctx, "event:"+userID.String()+":"+in.ClientEventID, s.dedupeTTL)
			if err == nil && seen {
				res.Deduped++
				continue
			}
			// On redis failure the unique constraint below stays authoritative.
		}

		rows = append(rows, s.toRow(userID, in, now))
		accepted = append(accepted, in)
	}

	if len(rejectReasons) > 0 {
		observability.ReportDataQualityErrors(dbc.Ctx, s.log, "ingest", rejectReasons, map[string]any{
			"user_id":    userID.String(),
			"batch_size": len(batch),
		})
	}

	if len(rows) > 0 {
		inserted, err := s.events.CreateIgnoreDuplicates(dbc, rows)
		if err != nil {
			return nil, apierr.MapDBError("ingest events", err)
		}
		res.Accepted = inserted
		res.Deduped += len(rows) - inserted
		if m := observability.Current(); m != nil {
			for _, in := range accepted {
				m.IncEventIngested(in.ActionType, sourceOrDefault(in.Source))
			}
		}
	}
	if m := observability.Current(); m != nil {
		m.AddEventsDeduped(res.Deduped)
	}

	if res.Accepted > 0 && s.jobSvc != nil {
		job, _, err := s.jobSvc.EnqueueStateUpdateIfNeeded(dbc, userID, "event_ingest")
		if err != nil {
			if s.log != nil {
				s.log.Warn("ingest: state update enqueue failed", "user_id", userID.String(), "error", err)
			}
		} else if job != nil {
			id := job.ID
			res.JobID = &id
		}
	}

	return res, nil
}

// validate returns the rejection reason, empty for a well-formed event.
func (s *eventService) validate(in EventInput, now time.Time) string {
	if strings.TrimSpace(in.ClientEventID) == "" {
		return "missing client_event_id"
	}
	if len(in.ClientEventID) > maxClientEventIDLen {
		return fmt.Sprintf("client_event_id longer than %d", maxClientEventIDLen)
	}
	if in.OccurredAt.IsZero() {
		return "missing occurred_at"
	}
	if in.OccurredAt.After(now.Add(s.allowedFuture)) {
		return fmt.Sprintf("occurred_at %s in the future", in.OccurredAt.UTC().Format(time.RFC3339))
	}
	if !knownEventTypes[in.ActionType] {
		return fmt.Sprintf("unknown action type %q", in.ActionType)
	}
	if src := sourceOrDefault(in.Source); !knownSources[src] {
		return fmt.Sprintf("unknown source %q", in.Source)
	}
	if in.Domain != "" && !knownDomains[in.Domain] {
		return fmt.Sprintf("unknown domain %q", in.Domain)
	}
	if len(in.Payload) > maxEventPayloadLen {
		return fmt.Sprintf("payload larger than %d bytes", maxEventPayloadLen)
	}
	if len(in.Payload) > 0 && !json.Valid(in.Payload) {
		return "payload is not valid json"
	}
	return ""
}

func (s *eventService) toRow(userID uuid.UUID, in EventInput, now time.Time) *types.BehaviorEvent {
	payload := datatypes.JSON(in.Payload)
	if len(payload) == 0 {
		payload = datatypes.JSON([]byte(`{}`))
	}
	return &types.BehaviorEvent{
		ID:                uuid.New(),
		UserID:            userID,
		ClientEventID:     in.ClientEventID,
		OccurredAt:        in.OccurredAt.UTC(),
		SessionID:         in.SessionID,
		ActionType:        in.ActionType,
		Domain:            in.Domain,
		Source:            sourceOrDefault(in.Source),
		DeviceFingerprint: in.DeviceFingerprint,
		Payload:           payload,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

func sourceOrDefault(source string) string {
	if source == "" {
		return types.SourceApp
	}
	return source
}

var knownEventTypes = map[string]bool{
	types.EventSessionStarted:      true,
	types.EventSessionEnded:        true,
	types.EventActivityStarted:     true,
	types.EventActivityCompleted:   true,
	types.EventActivityAbandoned:   true,
	types.EventChallengeSubmitted:  true,
	types.EventContentPublished:    true,
	types.EventSkillAssessment:     true,
	types.EventPeerReviewGiven:     true,
	types.EventPeerReviewReceived:  true,
	types.EventCollaborationJoined: true,
	types.EventFeedbackGiven:       true,
	types.EventRewardViewed:        true,
	types.EventRewardRedeemed:      true,
	types.EventEnrichmentCalendar:  true,
	types.EventEnrichmentFitness:   true,
	types.EventEnrichmentPortfolio: true,
}

var knownSources = map[string]bool{
	types.SourceApp:        true,
	types.SourceWeb:        true,
	types.SourcePartner:    true,
	types.SourceEnrichment: true,
}

var knownDomains = map[string]bool{
	types.DomainSkillGames:            true,
	types.DomainCreativeChallenges:    true,
	types.DomainCommunityEngagement:   true,
	types.DomainFreelanceProjects:     true,
	types.DomainLearningModules:       true,
	types.DomainContentCreation:       true,
	types.DomainWellnessActivities:    true,
	types.DomainCollaborativeProjects: true,
}
