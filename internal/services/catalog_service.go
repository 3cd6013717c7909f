package services

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/rewardcore-backend/internal/data/repos"
	types "github.com/yungbote/rewardcore-backend/internal/domain"
	"github.com/yungbote/rewardcore-backend/internal/platform/apierr"
	"github.com/yungbote/rewardcore-backend/internal/platform/dbctx"
	"github.com/yungbote/rewardcore-backend/internal/platform/envutil"
	"github.com/yungbote/rewardcore-backend/internal/platform/logger"
	"github.com/yungbote/rewardcore-backend/internal/realtime/bus"
)

// CatalogSnapshot is an immutable view of the selectable catalog plus the
// fairness pressure the latest audits put on each action. Decision readers
// hold one snapshot for the whole request; a swap mid-request is invisible.
type CatalogSnapshot struct {
	Specs            []*types.ActionSpec
	ByID             map[uuid.UUID]*types.ActionSpec
	FairnessPressure map[uuid.UUID]float64
	LoadedAt         time.Time
}

// CatalogService is the single writer for ActionSpec lifecycle transitions
// and the shared snapshot reader. Status changes are the only mutation;
// specs are never deleted.
type CatalogService interface {
	Snapshot(dbc dbctx.Context) (*CatalogSnapshot, error)
	// Invalidate drops the cached snapshot; the next reader reloads. Driven
	// by catalog_changed bus events and by local transitions.
	Invalidate()

	List(dbc dbctx.Context, status string, limit int) ([]*types.ActionSpec, error)
	Get(dbc dbctx.Context, id uuid.UUID) (*types.ActionSpec, error)
	Promote(dbc dbctx.Context, id uuid.UUID) (*types.ActionSpec, error)
	Retire(dbc dbctx.Context, id uuid.UUID) (*types.ActionSpec, error)
}

type catalogService struct {
	db      *gorm.DB
	log     *logger.Logger
	actions repos.ActionSpecRepo
	audits  repos.FairnessAuditRepo
	bus     bus.Bus

	ttl  time.Duration
	mu   sync.Mutex
	snap atomic.Pointer[CatalogSnapshot]
}

func NewCatalogService(
	db *gorm.DB,
	baseLog *logger.Logger,
	actions repos.ActionSpecRepo,
	audits repos.FairnessAuditRepo,
	b bus.Bus,
) CatalogService {
	return &catalogService{
		db:      db,
		log:     baseLog.With("service", "CatalogService"),
		actions: actions,
		audits:  audits,
		bus:     b,
		ttl:     envutil.Duration("CATALOG_SNAPSHOT_TTL", 30*time.Second),
	}
}

func (s *catalogService) Snapshot(dbc dbctx.Context) (*CatalogSnapshot, error) {
	if snap := s.snap.Load(); snap != nil && time.Since(snap.LoadedAt) < s.ttl {
		return snap, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Another reader may have reloaded while this one waited for the lock.
	if snap := s.snap.Load(); snap != nil && time.Since(snap.LoadedAt) < s.ttl {
		return snap, nil
	}

	snap, err := s.load(dbc)
	if err != nil {
		// Serve the stale snapshot over failing the decision path.
		if stale := s.snap.Load(); stale != nil {
			s.log.Warn("catalog reload failed; serving stale snapshot", "error", err, "age", time.Since(stale.LoadedAt).String())
			return stale, nil
		}
		return nil, err
	}
	s.snap.Store(snap)
	return snap, nil
}

func (s *catalogService) load(dbc dbctx.Context) (*CatalogSnapshot, error) {
	specs, err := s.actions.ListSelectable(dbc)
	if err != nil {
		return nil, apierr.MapDBError("load catalog", err)
	}

	snap := &CatalogSnapshot{
		Specs:            specs,
		ByID:             make(map[uuid.UUID]*types.ActionSpec, len(specs)),
		FairnessPressure: map[uuid.UUID]float64{},
		LoadedAt:         time.Now(),
	}
	ids := make([]uuid.UUID, 0, len(specs))
	for _, spec := range specs {
		if spec == nil {
			continue
		}
		snap.ByID[spec.ID] = spec
		ids = append(ids, spec.ID)
	}

	audits, err := s.audits.LatestPerAction(dbc, ids)
	if err != nil {
		// Pressure is a soft term; a failed audit read degrades to none.
		s.log.Warn("fairness audit load failed", "error", err)
		return snap, nil
	}
	for id, audit := range audits {
		if audit != nil && !audit.Passed {
			snap.FairnessPressure[id] = audit.Disparity
		}
	}
	return snap, nil
}

func (s *catalogService) Invalidate() {
	s.snap.Store(nil)
}

func (s *catalogService) List(dbc dbctx.Context, status string, limit int) ([]*types.ActionSpec, error) {
	if status == "" {
		snap, err := s.Snapshot(dbc)
		if err != nil {
			return nil, err
		}
		return snap.Specs, nil
	}
	switch status {
	case types.ActionStatusActive, types.ActionStatusBeta, types.ActionStatusRetired:
	default:
		return nil, apierr.Validationf("unknown status %q", status)
	}
	out, err := s.actions.ListByStatus(dbc, status, limit)
	if err != nil {
		return nil, apierr.MapDBError("list actions", err)
	}
	return out, nil
}

func (s *catalogService) Get(dbc dbctx.Context, id uuid.UUID) (*types.ActionSpec, error) {
	if id == uuid.Nil {
		return nil, apierr.Validation("missing action id")
	}
	spec, err := s.actions.GetByID(dbc, id)
	if err != nil {
		return nil, apierr.MapDBError("get action", err)
	}
	if spec == nil {
		return nil, apierr.ErrNotFound
	}
	return spec, nil
}

// Promote moves a beta spec to active. Operator promotions go through the
// same transition the lifecycle review performs; promoting an already-active
// spec is a no-op, promoting a retired one is rejected.
func (s *catalogService) Promote(dbc dbctx.Context, id uuid.UUID) (*types.ActionSpec, error) {
	return s.transition(dbc, id, types.ActionStatusActive)
}

// Retire moves an active or beta spec to retired. Terminal: retired specs
// stay for audit and never return to the selectable set.
func (s *catalogService) Retire(dbc dbctx.Context, id uuid.UUID) (*types.ActionSpec, error) {
	return s.transition(dbc, id, types.ActionStatusRetired)
}

func (s *catalogService) transition(dbc dbctx.Context, id uuid.UUID, target string) (*types.ActionSpec, error) {
	spec, err := s.Get(dbc, id)
	if err != nil {
		return nil, err
	}
	if spec.Status == target {
		return spec, nil
	}
	if target == types.ActionStatusActive && spec.Status == types.ActionStatusRetired {
		return nil, apierr.Validationf("retired spec %s cannot be promoted", spec.Key)
	}

	changed, err := s.actions.SetStatus(dbc, id, target, "operator")
	if err != nil {
		return nil, apierr.MapDBError("set action status", err)
	}
	if changed {
		s.Invalidate()
		s.publishChanged(dbc.Ctx, spec, target)
	}
	return s.Get(dbc, id)
}

func (s *catalogService) publishChanged(ctx context.Context, spec *types.ActionSpec, target string) {
	if s.bus == nil {
		return
	}
	specID := spec.ID
	err := s.bus.Publish(ctx, bus.Event{
		Kind:     bus.EventCatalogChanged,
		EntityID: &specID,
		At:       time.Now().UTC(),
		Data: map[string]any{
			"action_key": spec.Key,
			"from":       spec.Status,
			"to":         target,
			"actor":      "operator",
		},
	})
	if err != nil {
		s.log.Warn("catalog change publish failed", "action_id", specID.String(), "error", err)
	}
}
