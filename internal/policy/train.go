package policy

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/yungbote/rewardcore-backend/internal/encoding"
	"github.com/yungbote/rewardcore-backend/internal/platform/envutil"
	"github.com/yungbote/rewardcore-backend/internal/sequence"
)

// ErrSampleTooSmall aborts training when the warm population cannot support
// stable clusters. Callers keep the previous snapshot in that case.
var ErrSampleTooSmall = errors.New("policy: training sample below minimum")

const trainKMeansIters = 10

// TrainSample is one anonymized warm state. Bucket is its assignment under
// the previous snapshot, carried along only so new clusters can inherit arm
// seeds; it never enters the snapshot payload.
type TrainSample struct {
	State  *sequence.State
	Bucket string
}

type TrainConfig struct {
	// Upper bound on archetypes per snapshot.
	MaxArchetypes int
	// Minimum warm states required to train at all.
	MinSample int
}

func NewTrainConfig() TrainConfig {
	return TrainConfig{
		MaxArchetypes: envutil.Int("ARCHETYPE_MAX_CLUSTERS", 8),
		MinSample:     envutil.Int("ARCHETYPE_MIN_SAMPLE", 50),
	}
}

// TrainResult couples the snapshot with per-cluster inheritance hints.
type TrainResult struct {
	Snapshot *Snapshot
	// InheritFrom maps each new bucket to the previous bucket most common
	// among its members, so arm value seeds can be pulled from estimates
	// aggregated under that bucket.
	InheritFrom map[string]string
}

// Train clusters warm states into a fresh archetype snapshot. The feature
// space is capability means plus domain affinity; columns are z-scored so
// clustering weighs them equally, and centroids map back to raw space for
// the seed lanes. SeedValues stay empty here: they come from stored arm
// estimates, which the caller joins in via InheritFrom.
func Train(version int, samples []TrainSample, cfg TrainConfig, now time.Time) (*TrainResult, error) {
	if cfg.MinSample < 2 {
		cfg.MinSample = 2
	}
	rows := make([][]float64, 0, len(samples))
	kept := make([]TrainSample, 0, len(samples))
	for _, s := range samples {
		if s.State == nil {
			continue
		}
		rows = append(rows, trainFeatures(s.State))
		kept = append(kept, s)
	}
	if len(rows) < cfg.MinSample {
		return nil, fmt.Errorf("%w: have %d, need %d", ErrSampleTooSmall, len(rows), cfg.MinSample)
	}

	projected, means, stds := trainStandardize(rows)
	k := trainChooseK(len(projected), cfg.MaxArchetypes)
	clusters := trainKMeans(projected, k)

	snap := &Snapshot{
		Version:    version,
		TrainedAt:  now.UTC(),
		SampleSize: len(rows),
	}
	inherit := make(map[string]string, len(clusters))

	for i, c := range clusters {
		raw := trainUnproject(c.Centroid, means, stds)
		bucket := fmt.Sprintf("arch_%d_%d", version, i)
		a := Archetype{
			Bucket:       bucket,
			Weight:       float64(len(c.Members)) / float64(len(rows)),
			SeedMeans:    clampLanes(raw[:encoding.NumDimensions]),
			SeedAffinity: clampLanes(raw[encoding.NumDimensions:]),
		}
		a.Label = trainLabel(a.SeedAffinity)
		snap.Archetypes = append(snap.Archetypes, a)
		inherit[bucket] = dominantBucket(kept, c.Members)
	}

	return &TrainResult{Snapshot: snap, InheritFrom: inherit}, nil
}

func trainFeatures(st *sequence.State) []float64 {
	out := make([]float64, 0, encoding.NumDimensions+encoding.NumDomains)
	out = append(out, st.CapMean...)
	out = append(out, st.DomainAffinity...)
	return out
}

// trainLabel names an archetype after its strongest domain pull, or
// "generalist" when affinity is flat.
func trainLabel(affinity []float64) string {
	best, bestV := -1, 0.15
	for i, v := range affinity {
		if v > bestV {
			best, bestV = i, v
		}
	}
	if best < 0 {
		return "generalist"
	}
	return encoding.DomainName(best)
}

// dominantBucket is the most common previous bucket among cluster members,
// neutral when members carry no assignment.
func dominantBucket(samples []TrainSample, members []int) string {
	counts := map[string]int{}
	for _, m := range members {
		if m < 0 || m >= len(samples) {
			continue
		}
		b := samples[m].Bucket
		if b == "" {
			b = NeutralBucket
		}
		counts[b]++
	}
	best, bestN := NeutralBucket, 0
	for b, n := range counts {
		if n > bestN {
			best, bestN = b, n
		}
	}
	return best
}

func clampLanes(v []float64) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		if x < 0 {
			x = 0
		}
		if x > 1 {
			x = 1
		}
		out[i] = x
	}
	return out
}

// ---- clustering over z-scored features ----

const trainZEpsilon = 1e-6

func trainStandardize(rows [][]float64) (projected [][]float64, means, stds []float64) {
	width := len(rows[0])
	means = make([]float64, width)
	stds = make([]float64, width)

	for _, row := range rows {
		for j := 0; j < width; j++ {
			means[j] += row[j]
		}
	}
	n := float64(len(rows))
	for j := range means {
		means[j] /= n
	}
	for _, row := range rows {
		for j := 0; j < width; j++ {
			d := row[j] - means[j]
			stds[j] += d * d
		}
	}
	for j := range stds {
		stds[j] = math.Sqrt(stds[j]/n) + trainZEpsilon
	}

	projected = make([][]float64, len(rows))
	for i, row := range rows {
		z := make([]float64, width)
		for j := 0; j < width; j++ {
			z[j] = (row[j] - means[j]) / stds[j]
		}
		projected[i] = z
	}
	return projected, means, stds
}

func trainUnproject(z, means, stds []float64) []float64 {
	out := make([]float64, len(z))
	for j := range z {
		out[j] = z[j]*stds[j] + means[j]
	}
	return out
}

func trainChooseK(n, maxClusters int) int {
	if n <= 1 {
		return 1
	}
	k := int(math.Round(math.Sqrt(float64(n))))
	if k < 2 {
		k = 2
	}
	if maxClusters > 0 && k > maxClusters {
		k = maxClusters
	}
	if k > n {
		k = n
	}
	return k
}

type trainCluster struct {
	Centroid []float64
	Members  []int
}

// trainKMeans is a deterministic pass: seed with the first vector, extend
// with the farthest point each time, iterate to a bounded depth, drop empty
// clusters. Determinism keeps snapshot contents reproducible over the same
// population.
func trainKMeans(vecs [][]float64, k int) []trainCluster {
	if len(vecs) == 0 {
		return nil
	}
	if k < 1 {
		k = 1
	}
	if k > len(vecs) {
		k = len(vecs)
	}

	centroids := make([][]float64, 0, k)
	centroids = append(centroids, append([]float64(nil), vecs[0]...))
	for len(centroids) < k {
		bestIdx := 0
		bestDist := -1.0
		for i := range vecs {
			d := math.MaxFloat64
			for _, c := range centroids {
				if dist := trainSqDistance(vecs[i], c); dist < d {
					d = dist
				}
			}
			if d > bestDist {
				bestDist = d
				bestIdx = i
			}
		}
		centroids = append(centroids, append([]float64(nil), vecs[bestIdx]...))
	}

	assign := make([]int, len(vecs))
	for i := range assign {
		assign[i] = -1
	}

	width := len(vecs[0])
	for iter := 0; iter < trainKMeansIters; iter++ {
		changed := false
		counts := make([]int, k)
		sums := make([][]float64, k)
		for i := range sums {
			sums[i] = make([]float64, width)
		}

		for i, v := range vecs {
			best := 0
			bestDist := math.MaxFloat64
			for c := 0; c < k; c++ {
				if d := trainSqDistance(v, centroids[c]); d < bestDist {
					bestDist = d
					best = c
				}
			}
			if assign[i] != best {
				assign[i] = best
				changed = true
			}
			counts[best]++
			for j := 0; j < width; j++ {
				sums[best][j] += v[j]
			}
		}

		for c := 0; c < k; c++ {
			if counts[c] == 0 {
				continue
			}
			for j := 0; j < width; j++ {
				centroids[c][j] = sums[c][j] / float64(counts[c])
			}
		}

		if !changed {
			break
		}
	}

	final := make([]trainCluster, k)
	for i := range final {
		final[i].Centroid = centroids[i]
	}
	for i := range vecs {
		if assign[i] < 0 || assign[i] >= k {
			assign[i] = 0
		}
		final[assign[i]].Members = append(final[assign[i]].Members, i)
	}

	out := make([]trainCluster, 0, len(final))
	for _, c := range final {
		if len(c.Members) == 0 {
			continue
		}
		out = append(out, c)
	}
	return out
}

func trainSqDistance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
