package synthesis

import (
	"github.com/yungbote/rewardcore-backend/internal/sequence"
)

// validationGates holds the pattern-validation thresholds for one run,
// resolved from the pipeline spec at stage entry.
type validationGates struct {
	MinStability       float64
	MinDistinctiveness float64
	MinPredictive      float64
	MinSample          int
	MinOutcomeMembers  int
}

// stabilityScore compares this run's raw centroid against the same
// signature's centroid from the previous run. Recurrence alone is not
// enough; the cluster must also sit in the same place.
func stabilityScore(current, previous []float64) float64 {
	if len(current) == 0 || len(current) != len(previous) {
		return 0
	}
	s := cosineSimilarity(current, previous)
	if s < 0 {
		return 0
	}
	return s
}

// distinctivenessScore measures how far a cluster's z-space direction sits
// from every other cluster in the run. A lone cluster is fully distinct.
func distinctivenessScore(self int, clusters []kCluster) float64 {
	maxSim := -1.0
	for i, other := range clusters {
		if i == self {
			continue
		}
		if s := cosineSimilarity(clusters[self].Centroid, other.Centroid); s > maxSim {
			maxSim = s
		}
	}
	if maxSim < 0 {
		return 1
	}
	d := 1 - maxSim
	if d < 0 {
		return 0
	}
	if d > 1 {
		return 1
	}
	return d
}

// predictiveScore is the mean positive-outcome rate across members that
// carry outcome evidence. Clusters without enough observed members score
// zero: a pattern with no outcome signal has no demonstrated value yet.
func predictiveScore(samples []Sample, members []int, minOutcomeMembers int) float64 {
	var sum float64
	observed := 0
	for _, m := range members {
		if len(samples[m].Window) == 0 {
			continue
		}
		sum += sequence.PositiveRate(samples[m].Window)
		observed++
	}
	if observed < minOutcomeMembers {
		return 0
	}
	return sum / float64(observed)
}

// validateCluster applies the pattern gates. Interpretability is structural:
// at least one defining feature, already capped at the rule term limit.
func validateCluster(size int, stability, distinctiveness, predictive float64, feats []definingFeature, g validationGates) bool {
	if size < g.MinSample {
		return false
	}
	if len(feats) == 0 {
		return false
	}
	if stability <= g.MinStability {
		return false
	}
	if distinctiveness <= g.MinDistinctiveness {
		return false
	}
	if predictive <= g.MinPredictive {
		return false
	}
	return true
}
