package synthesis

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"sort"
	"strings"

	"github.com/yungbote/rewardcore-backend/internal/constraint"
)

// definingFeature is one feature that sets a cluster apart from the
// population: a large standardized deviation in either direction.
type definingFeature struct {
	Index  int
	Name   string
	Z      float64
	Raw    float64
	Spread float64
}

// definingFeatures picks the cluster's defining features from its z-space
// centroid, strongest deviation first, capped so the derived rule stays
// explainable. Raw and Spread come from the members' unstandardized values
// and feed threshold derivation.
func definingFeatures(zCentroid []float64, raw [][]float64, members []int, minZ float64) []definingFeature {
	feats := make([]definingFeature, 0, len(zCentroid))
	for i, z := range zCentroid {
		if math.Abs(z) < minZ {
			continue
		}
		name := featureName(i)
		if name == "" {
			continue
		}
		feats = append(feats, definingFeature{
			Index:  i,
			Name:   name,
			Z:      z,
			Raw:    memberMean(raw, members, i),
			Spread: memberStd(raw, members, i),
		})
	}
	sort.Slice(feats, func(a, b int) bool {
		za, zb := math.Abs(feats[a].Z), math.Abs(feats[b].Z)
		if za != zb {
			return za > zb
		}
		return feats[a].Name < feats[b].Name
	})
	if len(feats) > constraint.MaxRuleTerms {
		feats = feats[:constraint.MaxRuleTerms]
	}
	return feats
}

// signatureOf digests the defining feature set with directions. The digest
// ignores centroid magnitudes and member counts so the same behavioral
// shape recurs under the same signature across runs.
func signatureOf(feats []definingFeature) string {
	if len(feats) == 0 {
		return ""
	}
	parts := make([]string, 0, len(feats))
	for _, f := range feats {
		dir := "+"
		if f.Z < 0 {
			dir = "-"
		}
		parts = append(parts, f.Name+dir)
	}
	sort.Strings(parts)
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])[:16]
}

func memberMean(raw [][]float64, members []int, col int) float64 {
	if len(members) == 0 {
		return 0
	}
	var sum float64
	for _, m := range members {
		sum += raw[m][col]
	}
	return sum / float64(len(members))
}

func memberStd(raw [][]float64, members []int, col int) float64 {
	if len(members) == 0 {
		return 0
	}
	mean := memberMean(raw, members, col)
	var sum float64
	for _, m := range members {
		d := raw[m][col] - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(members)))
}
