package services

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/rewardcore-backend/internal/constraint"
	"github.com/yungbote/rewardcore-backend/internal/data/repos"
	types "github.com/yungbote/rewardcore-backend/internal/domain"
	"github.com/yungbote/rewardcore-backend/internal/encoding"
	"github.com/yungbote/rewardcore-backend/internal/observability"
	"github.com/yungbote/rewardcore-backend/internal/platform/apierr"
	"github.com/yungbote/rewardcore-backend/internal/platform/dbctx"
	"github.com/yungbote/rewardcore-backend/internal/platform/envutil"
	"github.com/yungbote/rewardcore-backend/internal/platform/logger"
	"github.com/yungbote/rewardcore-backend/internal/policy"
	"github.com/yungbote/rewardcore-backend/internal/realtime/bus"
	"github.com/yungbote/rewardcore-backend/internal/sequence"
)

// How many recent grants feed the reward-type diversity penalty.
const recentTypeWindow = 8

// DecideInput is one decision request. Signup only matters for users with no
// state row yet; the cold-start prior conditions on it and nothing else.
type DecideInput struct {
	UserID uuid.UUID
	Signup *policy.SignupContext
}

// Decided pairs the persisted decision with the chosen spec. Action is nil
// for no-reward and budget-fallback decisions.
type Decided struct {
	Decision *types.Decision
	Action   *types.ActionSpec
}

// DecisionService runs the decision path: catalog snapshot → constraint
// filter → bandit selection → fresh-signal veto → persisted decision. The
// whole path runs under a latency budget; exhausting it degrades to a
// persisted no-reward fallback, never an error and never an unchecked grant.
type DecisionService interface {
	Decide(dbc dbctx.Context, in DecideInput) (*Decided, error)
	Get(dbc dbctx.Context, id uuid.UUID) (*types.Decision, error)
	ListByUser(dbc dbctx.Context, userID uuid.UUID, limit int) ([]*types.Decision, error)
}

type decisionService struct {
	db         *gorm.DB
	log        *logger.Logger
	states     repos.UserStateRepo
	decisions  repos.DecisionRepo
	exclusions repos.ConstraintExclusionRepo
	stats      repos.UserActionStatRepo
	arms       repos.ArmEstimateRepo
	actions    repos.ActionSpecRepo
	fraud      repos.FraudAssessmentRepo
	wellbeing  repos.WellbeingAssessmentRepo
	catalog    CatalogService
	filter     *constraint.Filter
	bandit     *policy.Bandit
	prior      *policy.Prior
	bus        bus.Bus

	budget          time.Duration
	outcomeWindow   time.Duration
	maturityHorizon time.Duration

	rngMu sync.Mutex
	rng   *rand.Rand

	firstDecision atomic.Pointer[time.Time]
}

func NewDecisionService(
	db *gorm.DB,
	baseLog *logger.Logger,
	states repos.UserStateRepo,
	decisions repos.DecisionRepo,
	exclusions repos.ConstraintExclusionRepo,
	stats repos.UserActionStatRepo,
	arms repos.ArmEstimateRepo,
	actions repos.ActionSpecRepo,
	fraud repos.FraudAssessmentRepo,
	wellbeing repos.WellbeingAssessmentRepo,
	catalog CatalogService,
	filter *constraint.Filter,
	bandit *policy.Bandit,
	prior *policy.Prior,
	b bus.Bus,
) DecisionService {
	return &decisionService{
		db:              db,
		log:             baseLog.With("service", "DecisionService"),
		states:          states,
		decisions:       decisions,
		exclusions:      exclusions,
		stats:           stats,
		arms:            arms,
		actions:         actions,
		fraud:           fraud,
		wellbeing:       wellbeing,
		catalog:         catalog,
		filter:          filter,
		bandit:          bandit,
		prior:           prior,
		bus:             b,
		budget:          envutil.Duration("DECISION_BUDGET", 150*time.Millisecond),
		outcomeWindow:   envutil.Duration("DECISION_OUTCOME_WINDOW", 72*time.Hour),
		maturityHorizon: envutil.Duration("POLICY_MATURITY_HORIZON", 90*24*time.Hour),
		rng:             rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (s *decisionService) Decide(dbc dbctx.Context, in DecideInput) (*Decided, error) {
	if in.UserID == uuid.Nil {
		return nil, apierr.Validation("missing user_id")
	}
	started := time.Now()
	parent := dbc.Ctx
	if parent == nil {
		parent = context.Background()
	}

	bctx, cancel := context.WithTimeout(parent, s.budget)
	defer cancel()
	bctx, span := otel.Tracer("rewardcore/decision").Start(bctx, "decision.decide")
	defer span.End()

	out, err := s.decide(dbctx.Context{Ctx: bctx}, in, started)
	if err != nil {
		if parent.Err() != nil {
			// The caller is gone; a fallback answer has no reader.
			return nil, err
		}
		if !errors.Is(err, apierr.ErrBudgetExceeded) && bctx.Err() == nil {
			return nil, err
		}
		s.log.Warn("decision budget exhausted; degrading to fallback",
			"user_id", in.UserID.String(),
			"elapsed_ms", time.Since(started).Milliseconds(),
			"error", err,
		)
		out, err = s.fallback(parent, in.UserID)
		if err != nil {
			return nil, err
		}
	}

	span.SetAttributes(
		attribute.String("decision.kind", out.Decision.Kind),
		attribute.Bool("decision.explored", out.Decision.Explored),
		attribute.Float64("decision.epsilon", out.Decision.Epsilon),
	)
	if m := observability.Current(); m != nil {
		m.ObserveDecision(out.Decision.Kind, out.Decision.Explored, out.Decision.Epsilon, s.maturityBand(dbc, started), time.Since(started))
	}
	s.publish(parent, out)
	return out, nil
}

func (s *decisionService) decide(dbc dbctx.Context, in DecideInput, started time.Time) (*Decided, error) {
	userID := in.UserID
	decidedAt := time.Now().UTC()

	snap, err := s.catalog.Snapshot(dbc)
	if err != nil {
		return nil, err
	}

	row, err := s.states.Get(dbc, userID)
	if err != nil {
		return nil, apierr.MapDBError("load state", err)
	}

	var (
		st        *sequence.State
		bucket    string
		seed      *policy.Seed
		stateCold bool
	)
	if row == nil {
		// First contact with this user: interpolate from the live archetype
		// snapshot and persist the seed with the decision below.
		sc := policy.SignupContext{}
		if in.Signup != nil {
			sc = *in.Signup
		}
		sd := s.prior.SeedFor(sc)
		seed = &sd
		st = sd.State
		bucket = sd.Bucket
		stateCold = true
	} else {
		st, err = sequence.Unmarshal(row.Vector)
		if err != nil {
			// A corrupt vector must not block the decision; the neutral
			// prior keeps the path total.
			s.log.Warn("state vector unreadable; using neutral prior", "user_id", userID.String(), "error", err)
			st = sequence.NewState()
		}
		bucket = row.ArchetypeBucket
		stateCold = row.Cold
	}

	fraudRow, err := s.fraud.Get(dbc, userID)
	if err != nil {
		return nil, apierr.MapDBError("load fraud assessment", err)
	}
	today := decidedAt.Truncate(24 * time.Hour)
	wellbeingRow, err := s.wellbeing.GetForDay(dbc, userID, today)
	if err != nil {
		return nil, apierr.MapDBError("load wellbeing", err)
	}
	statRows, err := s.stats.ListByUser(dbc, userID)
	if err != nil {
		return nil, apierr.MapDBError("load action stats", err)
	}
	statsByAction := make(map[uuid.UUID]*types.UserActionStat, len(statRows))
	for _, stat := range statRows {
		if stat != nil {
			statsByAction[stat.ActionID] = stat
		}
	}
	recentTypes, err := s.recentTypes(dbc, userID, snap)
	if err != nil {
		return nil, err
	}
	count, err := s.decisions.CountByUser(dbc, userID)
	if err != nil {
		return nil, apierr.MapDBError("count decisions", err)
	}
	userDecisions := int(count)
	maturity := s.maturity(dbc, started)

	if err := overBudget(dbc.Ctx); err != nil {
		return nil, err
	}

	filterRes := s.filter.Eligible(constraint.Input{
		State:            st,
		Fraud:            fraudRow,
		Wellbeing:        wellbeingRow,
		Stats:            statsByAction,
		Catalog:          snap.Specs,
		FairnessPressure: snap.FairnessPressure,
		RecentTypes:      recentTypes,
		Now:              decidedAt,
	})

	ctxBucket := policy.ContextBucket(decidedAt)
	candidates, err := s.candidates(dbc, bucket, ctxBucket, filterRes, statsByAction)
	if err != nil {
		return nil, err
	}

	sel := s.selectArm(policy.SelectInput{
		ArchetypeBucket: bucket,
		ContextBucket:   ctxBucket,
		Candidates:      candidates,
		UserDecisions:   userDecisions,
		Maturity:        maturity,
	})

	// Post-selection veto against fresh signals; one re-invoke, then
	// no-reward.
	var vetoes []constraint.Exclusion
	if sel.Spec != nil {
		if ve := s.veto(dbc, userID, sel.Spec); ve != nil {
			vetoes = append(vetoes, *ve)
			s.log.Warn("selection vetoed",
				"user_id", userID.String(),
				"action_key", sel.Spec.Key,
				"error", apierr.Constraint(ve.Predicate),
			)
			sel = s.selectArm(policy.SelectInput{
				ArchetypeBucket: bucket,
				ContextBucket:   ctxBucket,
				Candidates:      dropCandidate(candidates, sel.Spec.ID),
				UserDecisions:   userDecisions,
				Maturity:        maturity,
			})
			if sel.Spec != nil {
				if ve := s.veto(dbc, userID, sel.Spec); ve != nil {
					vetoes = append(vetoes, *ve)
					sel = policy.Selection{Epsilon: sel.Epsilon, Probability: 1}
				}
			}
		}
	}

	if err := overBudget(dbc.Ctx); err != nil {
		return nil, err
	}

	decision := s.buildDecision(userID, sel, decidedAt, ctxBucket, bucket, stateCold, userDecisions, maturity, len(filterRes.Eligible), len(filterRes.Exclusions))
	exRows := s.exclusionRows(userID, decision.ID, filterRes.Exclusions, vetoes)

	if err := s.db.WithContext(dbc.Ctx).Transaction(func(tx *gorm.DB) error {
		tdbc := dbctx.Context{Ctx: dbc.Ctx, Tx: tx}
		if _, err := s.decisions.Create(tdbc, []*types.Decision{decision}); err != nil {
			return err
		}
		if len(exRows) > 0 {
			if _, err := s.exclusions.Create(tdbc, exRows); err != nil {
				return err
			}
		}
		if sel.Spec != nil {
			if err := s.stats.RecordSelection(tdbc, userID, sel.Spec.ID, decidedAt); err != nil {
				return err
			}
		}
		if seed != nil {
			if err := s.persistSeed(tdbc, userID, seed, snap); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return nil, apierr.MapDBError("persist decision", err)
	}

	if m := observability.Current(); m != nil {
		for _, ex := range exRows {
			m.IncExclusion(ex.Predicate)
		}
	}

	return &Decided{Decision: decision, Action: sel.Spec}, nil
}

// candidates joins the eligible set with its arm estimates and per-user
// stats.
func (s *decisionService) candidates(dbc dbctx.Context, bucket, ctxBucket string, filterRes *constraint.Result, statsByAction map[uuid.UUID]*types.UserActionStat) ([]policy.Candidate, error) {
	if len(filterRes.Eligible) == 0 {
		return nil, nil
	}
	keys := make([]string, 0, len(filterRes.Eligible))
	for _, spec := range filterRes.Eligible {
		keys = append(keys, policy.ArmKey(bucket, ctxBucket, spec.ID))
	}
	estimates, err := s.arms.GetByKeys(dbc, keys)
	if err != nil {
		return nil, apierr.MapDBError("load arm estimates", err)
	}
	byKey := make(map[string]*types.ArmEstimate, len(estimates))
	for _, est := range estimates {
		if est != nil {
			byKey[est.ArmKey] = est
		}
	}

	out := make([]policy.Candidate, 0, len(filterRes.Eligible))
	for i, spec := range filterRes.Eligible {
		out = append(out, policy.Candidate{
			Spec:     spec,
			Estimate: byKey[keys[i]],
			Stat:     statsByAction[spec.ID],
			Penalty:  filterRes.Penalties[spec.ID],
		})
	}
	return out, nil
}

// veto re-reads the signal-driven inputs for an already-chosen spec. Read
// failures keep the selection: the pre-selection filter already passed on
// data at most milliseconds old.
func (s *decisionService) veto(dbc dbctx.Context, userID uuid.UUID, chosen *types.ActionSpec) *constraint.Exclusion {
	spec := chosen
	if fresh, err := s.actions.GetByID(dbc, chosen.ID); err == nil && fresh != nil {
		spec = fresh
	}
	var fraudRow *types.FraudAssessment
	if fa, err := s.fraud.Get(dbc, userID); err == nil {
		fraudRow = fa
	}
	var wellbeingRow *types.WellbeingAssessment
	if wa, err := s.wellbeing.GetForDay(dbc, userID, time.Now().UTC().Truncate(24*time.Hour)); err == nil {
		wellbeingRow = wa
	}

	predicate, detail := s.filter.Veto(spec, constraint.Input{Fraud: fraudRow, Wellbeing: wellbeingRow})
	if predicate == "" {
		return nil
	}
	return &constraint.Exclusion{Action: chosen, Predicate: predicate, Detail: detail}
}

func dropCandidate(candidates []policy.Candidate, actionID uuid.UUID) []policy.Candidate {
	out := make([]policy.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Spec != nil && c.Spec.ID == actionID {
			continue
		}
		out = append(out, c)
	}
	return out
}

func (s *decisionService) buildDecision(userID uuid.UUID, sel policy.Selection, decidedAt time.Time, ctxBucket, bucket string, stateCold bool, userDecisions int, maturity float64, eligible, excluded int) *types.Decision {
	kind := types.DecisionKindPolicy
	switch {
	case sel.Spec == nil:
		kind = types.DecisionKindNoReward
	case stateCold:
		kind = types.DecisionKindColdStart
	}

	ctxPayload, _ := json.Marshal(map[string]any{
		"context_bucket":   ctxBucket,
		"archetype_bucket": bucketOrNeutral(bucket),
		"eligible":         eligible,
		"excluded":         excluded,
		"maturity":         math.Round(maturity*100) / 100,
	})

	d := &types.Decision{
		ID:                uuid.New(),
		UserID:            userID,
		Context:           datatypes.JSON(ctxPayload),
		Epsilon:           sel.Epsilon,
		Explored:          sel.Explored,
		Confidence:        sel.Confidence,
		Probability:       sel.Probability,
		PresentationHint:  sel.PresentationHint,
		Kind:              kind,
		StateCold:         stateCold,
		UserDecisionIndex: userDecisions,
		WindowExpiresAt:   decidedAt.Add(s.outcomeWindow),
		CreatedAt:         decidedAt,
		UpdatedAt:         decidedAt,
	}
	if sel.Spec != nil {
		actionID := sel.Spec.ID
		d.ActionID = &actionID
		d.ActionKey = sel.Spec.Key
		d.ArmKey = sel.ArmKey
	}
	return d
}

func (s *decisionService) exclusionRows(userID, decisionID uuid.UUID, pre []constraint.Exclusion, vetoes []constraint.Exclusion) []*types.ConstraintExclusion {
	out := make([]*types.ConstraintExclusion, 0, len(pre)+len(vetoes))
	add := func(ex constraint.Exclusion, veto bool) {
		if ex.Action == nil {
			return
		}
		id := decisionID
		out = append(out, &types.ConstraintExclusion{
			ID:         uuid.New(),
			UserID:     userID,
			DecisionID: &id,
			ActionID:   ex.Action.ID,
			Predicate:  ex.Predicate,
			Detail:     ex.Detail,
			Veto:       veto,
			CreatedAt:  time.Now().UTC(),
		})
	}
	for _, ex := range pre {
		add(ex, false)
	}
	for _, ex := range vetoes {
		add(ex, true)
	}
	return out
}

// persistSeed materializes the cold-start prior: the seeded state row
// (create-only, losing the race to a concurrent state writer is fine) and
// the archetype's arm value seeds across every context bucket. Seed rows
// never overwrite arms holding real observations.
func (s *decisionService) persistSeed(dbc dbctx.Context, userID uuid.UUID, seed *policy.Seed, snap *CatalogSnapshot) error {
	vec, err := sequence.Marshal(seed.State)
	if err != nil {
		return err
	}
	row := &types.UserState{
		UserID:             userID,
		Vector:             vec,
		EncoderVersion:     encoding.Current().Version(),
		VersionCounts:      datatypes.JSON([]byte(`{}`)),
		Cold:               true,
		OutcomeWindow:      datatypes.JSON([]byte(`[]`)),
		ArchetypeBucket:    seed.Bucket,
		SeededFromSnapshot: seed.Version,
	}
	if _, err := s.states.CreateIfAbsent(dbc, row); err != nil {
		return err
	}
	if len(seed.Values) == 0 {
		return nil
	}

	byKey := make(map[string]*types.ActionSpec, len(snap.Specs))
	for _, spec := range snap.Specs {
		if spec != nil {
			byKey[spec.Key] = spec
		}
	}
	actionKeys := make([]string, 0, len(seed.Values))
	for key := range seed.Values {
		actionKeys = append(actionKeys, key)
	}
	sort.Strings(actionKeys)

	now := time.Now().UTC()
	var rows []*types.ArmEstimate
	for _, cb := range policy.ContextBuckets() {
		for _, key := range actionKeys {
			spec := byKey[key]
			if spec == nil {
				continue
			}
			rows = append(rows, &types.ArmEstimate{
				ID:              uuid.New(),
				ArmKey:          policy.ArmKey(seed.Bucket, cb, spec.ID),
				ActionID:        spec.ID,
				ArchetypeBucket: bucketOrNeutral(seed.Bucket),
				ContextBucket:   cb,
				Count:           seed.Count,
				ValueMean:       seed.Values[key],
				UpdatedAt:       now,
			})
		}
	}
	if len(rows) == 0 {
		return nil
	}
	_, err = s.arms.Seed(dbc, rows)
	return err
}

func (s *decisionService) fallback(parent context.Context, userID uuid.UUID) (*Decided, error) {
	ctx := context.WithoutCancel(parent)
	now := time.Now().UTC()
	ctxPayload, _ := json.Marshal(map[string]any{
		"context_bucket": policy.ContextBucket(now),
		"degraded":       true,
	})
	decision := &types.Decision{
		ID:              uuid.New(),
		UserID:          userID,
		Context:         datatypes.JSON(ctxPayload),
		Probability:     1,
		Kind:            types.DecisionKindBudgetFallback,
		WindowExpiresAt: now.Add(s.outcomeWindow),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if _, err := s.decisions.Create(dbctx.Context{Ctx: ctx}, []*types.Decision{decision}); err != nil {
		return nil, apierr.MapDBError("persist fallback decision", err)
	}
	return &Decided{Decision: decision}, nil
}

func (s *decisionService) selectArm(in policy.SelectInput) policy.Selection {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	in.Rand = s.rng
	return s.bandit.Select(in)
}

// recentTypes maps the user's latest granted decisions to reward types for
// the diversity penalty, newest first. Actions no longer in the selectable
// snapshot drop out of the window.
func (s *decisionService) recentTypes(dbc dbctx.Context, userID uuid.UUID, snap *CatalogSnapshot) ([]string, error) {
	recent, err := s.decisions.ListByUser(dbc, userID, recentTypeWindow)
	if err != nil {
		return nil, apierr.MapDBError("list recent decisions", err)
	}
	var out []string
	for _, d := range recent {
		if d == nil || d.ActionID == nil {
			continue
		}
		if spec := snap.ByID[*d.ActionID]; spec != nil {
			out = append(out, spec.RewardType)
		}
	}
	return out, nil
}

// maturity is global rollout age over the configured horizon, 0 before the
// first decision ever. The first-decision timestamp is immutable once set,
// so it caches forever.
func (s *decisionService) maturity(dbc dbctx.Context, now time.Time) float64 {
	first := s.firstDecision.Load()
	if first == nil {
		t, err := s.decisions.FirstCreatedAt(dbc)
		if err != nil || t == nil {
			return 0
		}
		s.firstDecision.Store(t)
		first = t
	}
	elapsed := now.Sub(*first)
	if elapsed <= 0 || s.maturityHorizon <= 0 {
		return 0
	}
	m := float64(elapsed) / float64(s.maturityHorizon)
	if m > 1 {
		m = 1
	}
	return m
}

func (s *decisionService) maturityBand(dbc dbctx.Context, now time.Time) string {
	switch m := s.maturity(dbc, now); {
	case m < 0.33:
		return "early"
	case m < 0.66:
		return "mid"
	default:
		return "mature"
	}
}

func (s *decisionService) publish(ctx context.Context, out *Decided) {
	if s.bus == nil || out == nil || out.Decision == nil {
		return
	}
	d := out.Decision
	userID := d.UserID
	decisionID := d.ID
	err := s.bus.Publish(context.WithoutCancel(ctx), bus.Event{
		Kind:     bus.EventDecisionMade,
		UserID:   &userID,
		EntityID: &decisionID,
		At:       time.Now().UTC(),
		Data: map[string]any{
			"kind":       d.Kind,
			"action_key": d.ActionKey,
			"explored":   d.Explored,
		},
	})
	if err != nil {
		s.log.Warn("decision publish failed", "decision_id", decisionID.String(), "error", err)
	}
}

func (s *decisionService) Get(dbc dbctx.Context, id uuid.UUID) (*types.Decision, error) {
	if id == uuid.Nil {
		return nil, apierr.Validation("missing decision id")
	}
	d, err := s.decisions.GetByID(dbc, id)
	if err != nil {
		return nil, apierr.MapDBError("get decision", err)
	}
	if d == nil {
		return nil, apierr.ErrNotFound
	}
	return d, nil
}

func (s *decisionService) ListByUser(dbc dbctx.Context, userID uuid.UUID, limit int) ([]*types.Decision, error) {
	if userID == uuid.Nil {
		return nil, apierr.Validation("missing user_id")
	}
	out, err := s.decisions.ListByUser(dbc, userID, limit)
	if err != nil {
		return nil, apierr.MapDBError("list decisions", err)
	}
	return out, nil
}

// overBudget converts budget-context expiry into the taxonomy error the
// degrade path branches on.
func overBudget(ctx context.Context) error {
	if ctx == nil || ctx.Err() == nil {
		return nil
	}
	return errors.Join(apierr.ErrBudgetExceeded, ctx.Err())
}

func bucketOrNeutral(bucket string) string {
	if bucket == "" {
		return policy.NeutralBucket
	}
	return bucket
}
