package synthesis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/rewardcore-backend/internal/constraint"
	"github.com/yungbote/rewardcore-backend/internal/data/repos"
	types "github.com/yungbote/rewardcore-backend/internal/domain"
	"github.com/yungbote/rewardcore-backend/internal/observability"
	"github.com/yungbote/rewardcore-backend/internal/platform/apierr"
	"github.com/yungbote/rewardcore-backend/internal/platform/dbctx"
	"github.com/yungbote/rewardcore-backend/internal/platform/logger"
)

// synthesisLockID keys the advisory lock serializing runs globally.
var synthesisLockID = uuid.NewSHA1(uuid.NameSpaceOID, []byte("synthesis_run"))

// A run flipped to running longer ago than this is treated as crashed and
// no longer blocks admission.
const staleRunningAfter = 30 * time.Minute

type Deps struct {
	DB  *gorm.DB
	Log *logger.Logger

	Runs         repos.SynthesisRunRepo
	Observations repos.ClusterObservationRepo
	Cooldowns    repos.ConceptCooldownRepo
	Fairness     repos.FairnessAuditRepo
	Actions      repos.ActionSpecRepo
	States       repos.UserStateRepo
	Outcomes     repos.OutcomeRepo
	Decisions    repos.DecisionRepo
}

// Runner executes one synthesis pass end to end. All catalog mutation lands
// in a single advisory-locked transaction at the end of the pass, so an
// aborted or failed run leaves the catalog byte-identical and readers never
// observe a half-published concept.
type Runner struct {
	deps Deps
	log  *logger.Logger
}

func NewRunner(deps Deps) *Runner {
	return &Runner{deps: deps, log: deps.Log.With("component", "synthesis")}
}

// clusterReport accumulates everything the pipeline learns about one
// cluster. Nothing here touches the database until the commit phase.
type clusterReport struct {
	Signature       string
	Size            int
	RawCentroid     []float64
	Feats           []definingFeature
	Coverage        float64
	Novel           bool
	Recurred        bool
	Stability       float64
	Distinctiveness float64
	Predictive      float64
	Validated       bool
	SkipReason      string

	Rule     *constraint.Rule
	Fairness *fairnessReport
	Spec     *types.ActionSpec
}

type lifecycleDecision struct {
	Spec    *types.ActionSpec
	Verdict string
	Reason  string
}

// Run executes the pass for an existing pending run row.
func (r *Runner) Run(ctx context.Context, runID uuid.UUID) error {
	dbc := dbctx.Context{Ctx: ctx}

	run, err := r.deps.Runs.GetByID(dbc, runID)
	if err != nil {
		return err
	}
	if run == nil {
		return errors.Join(apierr.ErrNotFound, fmt.Errorf("synthesis run %s", runID))
	}
	if run.Status != types.RunStatusPending {
		return errors.Join(apierr.ErrConflict, fmt.Errorf("synthesis run %s is %s", runID, run.Status))
	}

	if err := r.admit(ctx, runID); err != nil {
		return err
	}

	stage, err := r.execute(ctx, runID)
	if err == nil {
		return nil
	}

	status := types.RunStatusFailed
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		status = types.RunStatusAborted
	}
	finDbc := dbctx.Context{Ctx: context.WithoutCancel(ctx)}
	if markErr := r.deps.Runs.MarkFinished(finDbc, runID, status, err.Error()); markErr != nil {
		r.log.Error("synthesis: mark finished failed", "run_id", runID.String(), "status", status, "error", markErr)
	}
	if status == types.RunStatusAborted {
		r.log.Info("synthesis: run aborted at cluster boundary", "run_id", runID.String(), "stage", stage)
		return err
	}
	return apierr.Synthesis(stage, err)
}

// admit flips the run to running inside one advisory-locked transaction so
// two workers can never both start a pass.
func (r *Runner) admit(ctx context.Context, runID uuid.UUID) error {
	return r.deps.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := advisoryXactLock(tx, "synthesis_run", synthesisLockID); err != nil {
			return err
		}
		var live int64
		staleBefore := time.Now().UTC().Add(-staleRunningAfter)
		if err := tx.Model(&types.SynthesisRun{}).
			Where("status = ? AND started_at > ?", types.RunStatusRunning, staleBefore).
			Count(&live).Error; err != nil {
			return err
		}
		if live > 0 {
			return errors.Join(apierr.ErrConflict, errors.New("another synthesis run is live"))
		}
		return r.deps.Runs.MarkRunning(dbctx.Context{Ctx: ctx, Tx: tx}, runID)
	})
}

func (r *Runner) execute(ctx context.Context, runID uuid.UUID) (stage string, err error) {
	dbc := dbctx.Context{Ctx: ctx}
	log := r.log.With("run_id", runID.String())
	now := time.Now().UTC()

	stage = "population_sample"
	stageStarted := time.Now()
	r.setStage(dbc, runID, stage)
	defer func() {
		status := "ok"
		if err != nil {
			status = "failed"
		}
		observability.Current().ObserveSynthesisStage(stage, status, time.Since(stageStarted))
	}()
	advance := func(next string) {
		observability.Current().ObserveSynthesisStage(stage, "ok", time.Since(stageStarted))
		stage = next
		stageStarted = time.Now()
		r.setStage(dbc, runID, stage)
	}
	sampleLimit := stageInt(log, stage, "sample_limit", 5000)
	windowDays := stageInt(log, stage, "sample_window_days", 90)
	minPopulation := stageInt(log, stage, "min_population", 100)

	rows, err := r.deps.States.ListWarmSince(dbc, now.AddDate(0, 0, -windowDays), sampleLimit)
	if err != nil {
		return stage, err
	}
	samples := decodeSamples(rows, log)
	if len(samples) < minPopulation {
		log.Info("synthesis: population below minimum, completing empty",
			"population", len(samples), "min_population", minPopulation)
		return stage, r.finishEmpty(dbc, runID, len(samples))
	}

	advance("zscore_project")
	raw := make([][]float64, len(samples))
	for i := range samples {
		raw[i] = featureVector(samples[i].State)
	}
	projected, _, _ := standardize(raw)

	advance("kmeans_cluster")
	maxClusters := stageInt(log, stage, "max_clusters", 8)
	minClusterSize := stageInt(log, stage, "min_cluster_size", 50)
	clusters := kmeans(projected, chooseK(len(projected), maxClusters))
	log.Info("synthesis: clustered population", "population", len(samples), "clusters", len(clusters))

	selectable, err := r.deps.Actions.ListSelectable(dbc)
	if err != nil {
		return stage, err
	}
	rules := coverageRules(selectable, log)

	var prevRunID uuid.UUID
	prevRuns, err := r.deps.Runs.ListCompletedDesc(dbc, 1)
	if err != nil {
		return stage, err
	}
	if len(prevRuns) > 0 {
		prevRunID = prevRuns[0].ID
	}

	cooldowns, err := r.deps.Cooldowns.ActiveSignatures(dbc, now)
	if err != nil {
		return stage, err
	}

	minDefiningZ := stageFloat(log, "pattern_validate", "min_defining_z", 0.8)
	maxCoverage := stageFloat(log, "coverage_audit", "max_coverage", 0.35)
	gates := validationGates{
		MinStability:       stageFloat(log, "pattern_validate", "min_stability", 0.70),
		MinDistinctiveness: stageFloat(log, "pattern_validate", "min_distinctiveness", 0.80),
		MinPredictive:      stageFloat(log, "pattern_validate", "min_predictive", 0.60),
		MinSample:          stageInt(log, "pattern_validate", "min_validation_sample", 30),
		MinOutcomeMembers:  stageInt(log, "pattern_validate", "min_outcome_members", 10),
	}
	fairCfg := fairnessConfig{
		MaxDisparity:        stageFloat(log, "fairness_audit", "max_disparity", 0.15),
		QualifiedCapability: stageFloat(log, "fairness_audit", "qualified_capability", 0.70),
		MinQualified:        stageInt(log, "fairness_audit", "min_qualified", 5),
	}
	cooldownSeconds := stageInt(log, "concept_emit", "concept_cooldown_seconds", 86400)
	lcCfg := lifecycleConfig{
		TrialWindow:       time.Duration(stageInt(log, "lifecycle_review", "trial_window_days", 14)) * 24 * time.Hour,
		MinTrialDecisions: stageInt(log, "lifecycle_review", "min_trial_decisions", 20),
		RetireCooldown:    time.Duration(stageInt(log, "lifecycle_review", "retire_cooldown_days", 30)) * 24 * time.Hour,
	}

	advance("coverage_audit")
	reports := make([]*clusterReport, len(clusters))
	for i := range clusters {
		if err := ctx.Err(); err != nil {
			return stage, err
		}
		rep := &clusterReport{
			Size:        len(clusters[i].Members),
			RawCentroid: rawCentroid(raw, clusters[i].Members),
		}
		rep.Feats = definingFeatures(clusters[i].Centroid, raw, clusters[i].Members, minDefiningZ)
		rep.Signature = signatureOf(rep.Feats)
		rep.Coverage = clusterCoverage(samples, clusters[i].Members, rules)
		rep.Novel = rep.Size >= minClusterSize && rep.Coverage <= maxCoverage
		reports[i] = rep
	}

	advance("stability_check")
	for _, rep := range reports {
		if err := ctx.Err(); err != nil {
			return stage, err
		}
		if rep.Signature == "" || prevRunID == uuid.Nil {
			continue
		}
		prior, err := r.deps.Observations.ListRecentBySignature(dbc, rep.Signature, 5)
		if err != nil {
			return stage, err
		}
		for _, obs := range prior {
			if obs.RunID != prevRunID {
				continue
			}
			rep.Recurred = true
			var prevCentroid []float64
			if err := json.Unmarshal(obs.Centroid, &prevCentroid); err == nil {
				rep.Stability = stabilityScore(rep.RawCentroid, prevCentroid)
			}
			break
		}
	}

	advance("pattern_validate")
	for i, rep := range reports {
		if err := ctx.Err(); err != nil {
			return stage, err
		}
		rep.Distinctiveness = distinctivenessScore(i, clusters)
		rep.Predictive = predictiveScore(samples, clusters[i].Members, gates.MinOutcomeMembers)
		rep.Validated = validateCluster(rep.Size, rep.Stability, rep.Distinctiveness, rep.Predictive, rep.Feats, gates)
		if rep.Novel && !rep.Recurred {
			rep.SkipReason = "awaiting_recurrence"
		}
	}

	advance("fairness_audit")
	liveAudits := make([]*types.FairnessAudit, 0)
	fairnessByAction := map[uuid.UUID]bool{}
	for _, rep := range reports {
		if err := ctx.Err(); err != nil {
			return stage, err
		}
		if !rep.Novel || !rep.Validated {
			continue
		}
		rep.Rule = deriveRule(rep.Feats)
		report := auditRule(rep.Rule, samples, fairCfg)
		rep.Fairness = &report
		if !report.Passed {
			rep.SkipReason = "fairness_disparity"
		}
	}
	// Re-audit live synthesized concepts so lifecycle review sees
	// current-population disparity, not emission-time disparity.
	for _, spec := range selectable {
		if spec == nil || !spec.Synthesized {
			continue
		}
		rule, err := constraint.ParseRule(spec.Rule)
		if err != nil {
			continue
		}
		report := auditRule(rule, samples, fairCfg)
		fairnessByAction[spec.ID] = report.Passed
		liveAudits = append(liveAudits, &types.FairnessAudit{
			RunID:       &runID,
			ActionID:    spec.ID,
			Metric:      report.Metric,
			Disparity:   report.Disparity,
			CohortRates: report.ratesJSON(),
			Passed:      report.Passed,
		})
	}

	advance("concept_emit")
	for _, rep := range reports {
		if err := ctx.Err(); err != nil {
			return stage, err
		}
		if !rep.Novel || !rep.Validated || rep.Fairness == nil || !rep.Fairness.Passed {
			continue
		}
		if cooldowns[rep.Signature] {
			rep.SkipReason = "signature_cooldown"
			continue
		}
		existing, err := r.deps.Actions.ListBySignature(dbc, rep.Signature)
		if err != nil {
			return stage, err
		}
		if hasLiveSpec(existing) {
			rep.SkipReason = "already_emitted"
			continue
		}
		kind, label, ok := classifyConcept(rep.Feats)
		if !ok {
			rep.SkipReason = "no_concept_template"
			continue
		}
		spec, err := buildConceptSpec(rep.Signature, kind, label, rep.Rule, cooldownSeconds, now)
		if err != nil {
			return stage, err
		}
		rep.Spec = spec
		log.Info("synthesis: emitting beta concept",
			"signature", rep.Signature, "kind", kind, "label", label, "rule", spec.RuleText)
	}

	advance("lifecycle_review")
	var lifecycle []lifecycleDecision
	if pipelineStageEnabled(log, stage) {
		lifecycle, err = r.reviewBetas(dbc, now, lcCfg, fairnessByAction)
		if err != nil {
			return stage, err
		}
	}

	advance("commit")
	err = r.deps.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txc := dbctx.Context{Ctx: ctx, Tx: tx}
		if err := advisoryXactLock(tx, "synthesis_commit", synthesisLockID); err != nil {
			return err
		}

		emitted := 0
		for _, rep := range reports {
			if rep.Spec == nil {
				continue
			}
			if err := r.deps.Actions.UpsertByKey(txc, rep.Spec); err != nil {
				return err
			}
			stored, err := r.deps.Actions.GetByKey(txc, rep.Spec.Key)
			if err != nil {
				return err
			}
			if stored != nil {
				rep.Spec = stored
			}
			emitted++
		}

		obsRows := make([]*types.ClusterObservation, 0, len(reports))
		novel := 0
		for _, rep := range reports {
			if rep.Novel {
				novel++
			}
			row := &types.ClusterObservation{
				RunID:           runID,
				Signature:       rep.Signature,
				Size:            rep.Size,
				Centroid:        centroidJSON(rep.RawCentroid),
				Coverage:        rep.Coverage,
				Novel:           rep.Novel,
				Stability:       rep.Stability,
				Distinctiveness: rep.Distinctiveness,
				Predictive:      rep.Predictive,
				Validated:       rep.Validated,
			}
			if rep.Spec != nil {
				row.EmittedActionID = &rep.Spec.ID
			}
			obsRows = append(obsRows, row)
		}
		if _, err := r.deps.Observations.Create(txc, obsRows); err != nil {
			return err
		}

		audits := make([]*types.FairnessAudit, 0, len(liveAudits)+emitted)
		audits = append(audits, liveAudits...)
		for _, rep := range reports {
			if rep.Spec == nil || rep.Fairness == nil {
				continue
			}
			audits = append(audits, &types.FairnessAudit{
				RunID:       &runID,
				ActionID:    rep.Spec.ID,
				Metric:      rep.Fairness.Metric,
				Disparity:   rep.Fairness.Disparity,
				CohortRates: rep.Fairness.ratesJSON(),
				Passed:      rep.Fairness.Passed,
			})
		}
		if _, err := r.deps.Fairness.Create(txc, audits); err != nil {
			return err
		}

		promoted, retired := 0, 0
		for _, d := range lifecycle {
			switch d.Verdict {
			case verdictPromote:
				changed, err := r.deps.Actions.SetStatus(txc, d.Spec.ID, types.ActionStatusActive, "lifecycle_review")
				if err != nil {
					return err
				}
				if changed {
					promoted++
				}
			case verdictRetire:
				changed, err := r.deps.Actions.SetStatus(txc, d.Spec.ID, types.ActionStatusRetired, "lifecycle_review")
				if err != nil {
					return err
				}
				if !changed {
					continue
				}
				retired++
				if cd := retirementCooldown(d.Spec, now, lcCfg); cd != nil {
					if err := r.deps.Cooldowns.Upsert(txc, cd); err != nil {
						return err
					}
				}
			}
		}

		if err := r.deps.Runs.UpdateFields(txc, runID, map[string]interface{}{
			"sample_size":       len(samples),
			"clusters_found":    len(clusters),
			"clusters_novel":    novel,
			"concepts_emitted":  emitted,
			"concepts_promoted": promoted,
			"concepts_retired":  retired,
			"stats":             statsJSON(reports, lifecycle),
		}); err != nil {
			return err
		}
		return r.deps.Runs.MarkFinished(txc, runID, types.RunStatusCompleted, "")
	})
	if err != nil {
		return stage, err
	}

	log.Info("synthesis: run completed",
		"sample_size", len(samples), "clusters", len(clusters))
	return stage, nil
}

// reviewBetas gathers trial evidence for synthesized beta concepts past
// their window. Reads only; verdicts apply in the commit transaction.
func (r *Runner) reviewBetas(dbc dbctx.Context, now time.Time, cfg lifecycleConfig, fairnessByAction map[uuid.UUID]bool) ([]lifecycleDecision, error) {
	betas, err := r.deps.Actions.ListBetaOlderThan(dbc, now.Add(-cfg.TrialWindow))
	if err != nil {
		return nil, err
	}
	out := make([]lifecycleDecision, 0, len(betas))
	for _, spec := range betas {
		if spec == nil || !spec.Synthesized {
			continue
		}
		since := spec.CreatedAt
		if spec.BetaSince != nil {
			since = *spec.BetaSince
		}
		trials, err := r.deps.Decisions.CountByActionSince(dbc, spec.ID, since)
		if err != nil {
			return nil, err
		}
		outcomes, err := r.deps.Outcomes.ListAppliedByActionSince(dbc, spec.ID, since, 500)
		if err != nil {
			return nil, err
		}
		values := make([]float64, 0, len(outcomes))
		for _, o := range outcomes {
			values = append(values, o.Value)
		}

		fairnessPassed := true
		if passed, ok := fairnessByAction[spec.ID]; ok {
			fairnessPassed = passed
		} else {
			latest, err := r.deps.Fairness.GetLatestByAction(dbc, spec.ID)
			if err != nil {
				return nil, err
			}
			if latest != nil {
				fairnessPassed = latest.Passed
			}
		}

		verdict, reason := reviewVerdict(trials, values, fairnessPassed, cfg)
		r.log.Info("synthesis: beta review",
			"action_key", spec.Key, "verdict", verdict, "reason", reason, "trials", trials)
		out = append(out, lifecycleDecision{Spec: spec, Verdict: verdict, Reason: reason})
	}
	return out, nil
}

func (r *Runner) finishEmpty(dbc dbctx.Context, runID uuid.UUID, population int) error {
	if err := r.deps.Runs.UpdateFields(dbc, runID, map[string]interface{}{
		"sample_size": population,
	}); err != nil {
		return err
	}
	return r.deps.Runs.MarkFinished(dbc, runID, types.RunStatusCompleted, "")
}

func (r *Runner) setStage(dbc dbctx.Context, runID uuid.UUID, stage string) {
	if err := r.deps.Runs.UpdateFields(dbc, runID, map[string]interface{}{"stage": stage}); err != nil {
		r.log.Warn("synthesis: stage update failed", "stage", stage, "error", err)
	}
}

func hasLiveSpec(specs []*types.ActionSpec) bool {
	for _, s := range specs {
		if s != nil && s.Selectable() {
			return true
		}
	}
	return false
}

func centroidJSON(centroid []float64) datatypes.JSON {
	raw, err := json.Marshal(centroid)
	if err != nil {
		return datatypes.JSON([]byte("[]"))
	}
	return datatypes.JSON(raw)
}

type clusterStat struct {
	Signature       string  `json:"signature,omitempty"`
	Size            int     `json:"size"`
	Coverage        float64 `json:"coverage"`
	Novel           bool    `json:"novel"`
	Stability       float64 `json:"stability"`
	Distinctiveness float64 `json:"distinctiveness"`
	Predictive      float64 `json:"predictive"`
	Validated       bool    `json:"validated"`
	Emitted         bool    `json:"emitted"`
	Skip            string  `json:"skip,omitempty"`
}

func statsJSON(reports []*clusterReport, lifecycle []lifecycleDecision) datatypes.JSON {
	doc := struct {
		Clusters  []clusterStat     `json:"clusters"`
		Lifecycle map[string]string `json:"lifecycle,omitempty"`
	}{}
	for _, rep := range reports {
		doc.Clusters = append(doc.Clusters, clusterStat{
			Signature:       rep.Signature,
			Size:            rep.Size,
			Coverage:        rep.Coverage,
			Novel:           rep.Novel,
			Stability:       rep.Stability,
			Distinctiveness: rep.Distinctiveness,
			Predictive:      rep.Predictive,
			Validated:       rep.Validated,
			Emitted:         rep.Spec != nil,
			Skip:            rep.SkipReason,
		})
	}
	if len(lifecycle) > 0 {
		doc.Lifecycle = make(map[string]string, len(lifecycle))
		for _, d := range lifecycle {
			doc.Lifecycle[d.Spec.Key] = d.Verdict + ":" + d.Reason
		}
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return datatypes.JSON([]byte("{}"))
	}
	return datatypes.JSON(raw)
}

func advisoryXactLock(tx *gorm.DB, namespace string, id uuid.UUID) error {
	if tx == nil || namespace == "" || id == uuid.Nil {
		return nil
	}
	key := advisoryKey64(namespace, id)
	return tx.Exec("SELECT pg_advisory_xact_lock(?)", key).Error
}

func advisoryKey64(namespace string, id uuid.UUID) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(namespace))
	_, _ = h.Write([]byte{':'})
	_, _ = h.Write([]byte(id.String()))
	return int64(h.Sum64())
}
