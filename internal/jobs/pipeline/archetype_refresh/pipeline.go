package archetype_refresh

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	types "github.com/yungbote/rewardcore-backend/internal/domain"
	jobrt "github.com/yungbote/rewardcore-backend/internal/jobs/runtime"
	"github.com/yungbote/rewardcore-backend/internal/observability"
	"github.com/yungbote/rewardcore-backend/internal/platform/dbctx"
	"github.com/yungbote/rewardcore-backend/internal/platform/envutil"
	"github.com/yungbote/rewardcore-backend/internal/policy"
	"github.com/yungbote/rewardcore-backend/internal/sequence"
)

const (
	// Arms need this many observations before their mean is worth seeding.
	seedMinObservations = 3
	// Cap on seeded action keys per archetype.
	seedMaxActions = 24

	reassignChunk      = 500
	maxMalformedSample = 100
)

func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	if p.db == nil || p.states == nil || p.snapshots == nil || p.arms == nil || p.actions == nil || p.prior == nil {
		jc.Fail("validate", fmt.Errorf("archetype_refresh: missing deps"))
		return nil
	}

	dbc := dbctx.Context{Ctx: jc.Ctx}
	trigger := jc.PayloadString("trigger")
	now := time.Now().UTC()
	started := time.Now()

	jc.Progress("sample", 5)

	prevRow, err := p.snapshots.GetLatest(dbc)
	if err != nil {
		jc.Fail("sample", err)
		return nil
	}
	version := 1
	var prevSnap *policy.Snapshot
	if prevRow != nil {
		version = prevRow.Version + 1
		if prevSnap, err = policy.ParseSnapshot(prevRow.Version, prevRow.Payload); err != nil {
			p.log.Warn("archetype_refresh: previous snapshot unreadable",
				"version", prevRow.Version, "error", err)
			prevSnap = nil
		}
	}

	windowDays := envutil.Int("ARCHETYPE_SAMPLE_WINDOW_DAYS", 90)
	sampleLimit := envutil.Int("ARCHETYPE_SAMPLE_LIMIT", 10000)
	rows, err := p.states.ListWarmSince(dbc, now.AddDate(0, 0, -windowDays), sampleLimit)
	if err != nil {
		jc.Fail("sample", err)
		return nil
	}

	samples, userIDs, malformed := buildSamples(rows)
	observability.ReportDataQualityErrors(jc.Ctx, p.log, "archetype_refresh", malformed, map[string]any{
		"trigger":    trigger,
		"population": len(rows),
	})

	jc.Progress("train", 25)
	res, err := policy.Train(version, samples, p.cfg, now)
	if err != nil {
		if errors.Is(err, policy.ErrSampleTooSmall) {
			p.log.Info("archetype_refresh: population below training minimum",
				"population", len(samples), "min_sample", p.cfg.MinSample)
			jc.Complete("done", map[string]any{
				"status":     "skipped",
				"reason":     "sample_too_small",
				"population": len(samples),
			})
			return nil
		}
		jc.Fail("train", err)
		return nil
	}

	jc.Progress("seed", 45)
	if err := p.seedFromInherited(dbc, res); err != nil {
		jc.Fail("seed", err)
		return nil
	}

	jc.Progress("publish", 65)
	payload, err := res.Snapshot.Marshal()
	if err != nil {
		jc.Fail("publish", err)
		return nil
	}
	if _, err := p.snapshots.Create(dbc, &types.ArchetypeSnapshot{
		Version:     version,
		Payload:     payload,
		SampleSize:  res.Snapshot.SampleSize,
		PublishedAt: now,
	}); err != nil {
		jc.Fail("publish", err)
		return nil
	}
	p.prior.Swap(res.Snapshot)

	jc.Progress("reassign", 75)
	reassigned, err := p.reassign(dbc, samples, userIDs)
	if err != nil {
		// The snapshot is live; stragglers pick up their bucket on the
		// next refresh.
		p.log.Error("archetype_refresh: bucket reassignment incomplete",
			"version", version, "reassigned", reassigned, "error", err)
	}

	observability.ReportPolicyDrift(jc.Ctx, p.log, driftMetrics(prevSnap, res.Snapshot), map[string]any{
		"snapshot_version": version,
		"trigger":          trigger,
		"sample_size":      res.Snapshot.SampleSize,
	})

	p.log.Info("archetype_refresh: snapshot published",
		"version", version,
		"archetypes", len(res.Snapshot.Archetypes),
		"sample_size", res.Snapshot.SampleSize,
		"reassigned", reassigned)
	jc.Complete("done", map[string]any{
		"status":      "published",
		"version":     version,
		"archetypes":  len(res.Snapshot.Archetypes),
		"sample_size": res.Snapshot.SampleSize,
		"reassigned":  reassigned,
		"duration_ms": time.Since(started).Milliseconds(),
	})
	return nil
}

// buildSamples decodes warm state rows into training samples, keeping user
// ids aligned with kept samples for the reassignment pass.
func buildSamples(rows []*types.UserState) ([]policy.TrainSample, []uuid.UUID, []string) {
	samples := make([]policy.TrainSample, 0, len(rows))
	userIDs := make([]uuid.UUID, 0, len(rows))
	var malformed []string
	for _, row := range rows {
		if row == nil {
			continue
		}
		st, err := sequence.Unmarshal(row.Vector)
		if err != nil {
			if len(malformed) < maxMalformedSample {
				malformed = append(malformed, fmt.Sprintf("user %s: %v", row.UserID, err))
			}
			continue
		}
		samples = append(samples, policy.TrainSample{State: st, Bucket: row.ArchetypeBucket})
		userIDs = append(userIDs, row.UserID)
	}
	return samples, userIDs, malformed
}

// seedFromInherited fills each new archetype's arm value seeds from the
// estimates accumulated under the previous bucket its members came from.
func (p *Pipeline) seedFromInherited(dbc dbctx.Context, res *policy.TrainResult) error {
	specs, err := p.actions.ListSelectable(dbc)
	if err != nil {
		return err
	}
	keyByID := make(map[uuid.UUID]string, len(specs))
	for _, s := range specs {
		if s != nil {
			keyByID[s.ID] = s.Key
		}
	}

	for i := range res.Snapshot.Archetypes {
		a := &res.Snapshot.Archetypes[i]
		inherited := res.InheritFrom[a.Bucket]
		if inherited == "" || inherited == a.Bucket {
			continue
		}
		estimates, err := p.arms.ListByArchetypeBucket(dbc, inherited, 2000)
		if err != nil {
			return err
		}
		a.SeedValues = seedValues(estimates, keyByID)
	}
	return nil
}

// seedValues collapses per-context arm estimates into one count-weighted
// mean per action key, dropping arms still too thin to trust.
func seedValues(estimates []*types.ArmEstimate, keyByID map[uuid.UUID]string) map[string]float64 {
	type agg struct {
		weighted float64
		count    int
	}
	byKey := map[string]*agg{}
	for _, e := range estimates {
		if e == nil || e.Count < seedMinObservations {
			continue
		}
		key, ok := keyByID[e.ActionID]
		if !ok {
			continue
		}
		v := byKey[key]
		if v == nil {
			if len(byKey) >= seedMaxActions {
				continue
			}
			v = &agg{}
			byKey[key] = v
		}
		v.weighted += e.ValueMean * float64(e.Count)
		v.count += e.Count
	}
	if len(byKey) == 0 {
		return nil
	}
	out := make(map[string]float64, len(byKey))
	for k, v := range byKey {
		out[k] = v.weighted / float64(v.count)
	}
	return out
}

// reassign moves the sampled users onto their nearest new archetype in
// batched single-column updates.
func (p *Pipeline) reassign(dbc dbctx.Context, samples []policy.TrainSample, userIDs []uuid.UUID) (int64, error) {
	byBucket := map[string][]uuid.UUID{}
	for i := range samples {
		if i >= len(userIDs) {
			break
		}
		bucket, _ := p.prior.BucketFor(samples[i].State)
		byBucket[bucket] = append(byBucket[bucket], userIDs[i])
	}

	var moved int64
	for bucket, ids := range byBucket {
		for start := 0; start < len(ids); start += reassignChunk {
			end := start + reassignChunk
			if end > len(ids) {
				end = len(ids)
			}
			n, err := p.states.AssignArchetypeBucket(dbc, ids[start:end], bucket)
			moved += n
			if err != nil {
				return moved, err
			}
		}
	}
	return moved, nil
}

// driftMetrics compares consecutive snapshots and returns only breaches.
// Buckets are renamed every version, so archetypes match by nearest seed
// centroid rather than by name.
func driftMetrics(prev, next *policy.Snapshot) []observability.PolicyDriftMetric {
	if prev == nil || next == nil {
		return nil
	}
	var out []observability.PolicyDriftMetric

	countDelta := float64(len(next.Archetypes) - len(prev.Archetypes))
	if countDelta < 0 {
		countDelta = -countDelta
	}
	if countDelta > 2 {
		out = append(out, observability.PolicyDriftMetric{
			Name:      "archetype_count_shift",
			Status:    "breach",
			Value:     countDelta,
			Threshold: 2,
		})
	}

	if len(prev.Archetypes) > 0 && len(next.Archetypes) > 0 {
		var total float64
		for _, a := range next.Archetypes {
			best := -1.0
			for _, b := range prev.Archetypes {
				if d := archetypeDistance(a, b); best < 0 || d < best {
					best = d
				}
			}
			total += best
		}
		if shift := total / float64(len(next.Archetypes)); shift > 0.5 {
			out = append(out, observability.PolicyDriftMetric{
				Name:      "centroid_shift",
				Status:    "breach",
				Value:     shift,
				Threshold: 0.5,
			})
		}
	}

	for _, a := range next.Archetypes {
		if a.Weight > 0.6 {
			out = append(out, observability.PolicyDriftMetric{
				Name:      "archetype_concentration",
				Status:    "breach",
				Value:     a.Weight,
				Threshold: 0.6,
				Meta:      map[string]any{"bucket": a.Bucket, "label": a.Label},
			})
		}
	}

	if prev.SampleSize > 0 && next.SampleSize*2 < prev.SampleSize {
		out = append(out, observability.PolicyDriftMetric{
			Name:      "sample_shrink",
			Status:    "breach",
			Value:     float64(next.SampleSize),
			Threshold: float64(prev.SampleSize) / 2,
		})
	}
	return out
}

func archetypeDistance(a, b policy.Archetype) float64 {
	var d float64
	n := len(a.SeedMeans)
	if len(b.SeedMeans) < n {
		n = len(b.SeedMeans)
	}
	for i := 0; i < n; i++ {
		diff := a.SeedMeans[i] - b.SeedMeans[i]
		d += diff * diff
	}
	n = len(a.SeedAffinity)
	if len(b.SeedAffinity) < n {
		n = len(b.SeedAffinity)
	}
	for i := 0; i < n; i++ {
		diff := a.SeedAffinity[i] - b.SeedAffinity[i]
		d += diff * diff
	}
	return d
}
