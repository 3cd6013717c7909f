package synthesis

import (
	"testing"

	"github.com/yungbote/rewardcore-backend/internal/constraint"
)

func TestDefiningFeatures_PicksSplitColumns(t *testing.T) {
	raw := twoGroupMatrix()
	projected, _, _ := standardize(raw)
	clusters := kmeans(projected, 2)

	var high, low *kCluster
	for i := range clusters {
		if clusters[i].Members[0] >= 20 {
			high = &clusters[i]
		} else {
			low = &clusters[i]
		}
	}
	if high == nil || low == nil {
		t.Fatalf("expected one cluster per group")
	}

	feats := definingFeatures(high.Centroid, raw, high.Members, 0.8)
	if len(feats) != 2 {
		t.Fatalf("expected 2 defining features, got %d: %+v", len(feats), feats)
	}
	names := map[string]bool{}
	for _, f := range feats {
		names[f.Name] = true
		if f.Z <= 0 {
			t.Fatalf("high cluster should deviate upward on %s, z=%v", f.Name, f.Z)
		}
	}
	if !names["cap_mean:creativity"] || !names["domain_affinity:creative_challenges"] {
		t.Fatalf("unexpected defining set: %+v", feats)
	}

	lowFeats := definingFeatures(low.Centroid, raw, low.Members, 0.8)
	for _, f := range lowFeats {
		if f.Z >= 0 {
			t.Fatalf("baseline cluster should deviate downward on %s, z=%v", f.Name, f.Z)
		}
	}
}

func TestDefiningFeatures_CappedAtRuleTermLimit(t *testing.T) {
	z := make([]float64, featureCount)
	for i := 0; i < 7; i++ {
		z[i] = 2.0 + float64(i)*0.1
	}
	raw := [][]float64{make([]float64, featureCount)}
	feats := definingFeatures(z, raw, []int{0}, 0.8)
	if len(feats) != constraint.MaxRuleTerms {
		t.Fatalf("expected cap at %d terms, got %d", constraint.MaxRuleTerms, len(feats))
	}
	// Strongest deviation first.
	if feats[0].Index != 6 {
		t.Fatalf("expected strongest feature first, got index %d", feats[0].Index)
	}
}

func TestSignatureOf_StableAcrossOrderAndMagnitude(t *testing.T) {
	a := []definingFeature{
		{Name: "cap_mean:creativity", Z: 1.4},
		{Name: "domain_affinity:creative_challenges", Z: 1.1},
	}
	b := []definingFeature{
		{Name: "domain_affinity:creative_challenges", Z: 2.3},
		{Name: "cap_mean:creativity", Z: 0.9},
	}
	if signatureOf(a) != signatureOf(b) {
		t.Fatalf("signature must ignore order and magnitude")
	}

	flipped := []definingFeature{
		{Name: "cap_mean:creativity", Z: -1.4},
		{Name: "domain_affinity:creative_challenges", Z: 1.1},
	}
	if signatureOf(a) == signatureOf(flipped) {
		t.Fatalf("signature must track deviation direction")
	}

	other := []definingFeature{
		{Name: "cap_mean:persistence", Z: 1.4},
		{Name: "domain_affinity:creative_challenges", Z: 1.1},
	}
	if signatureOf(a) == signatureOf(other) {
		t.Fatalf("signature must track the feature set")
	}

	if signatureOf(nil) != "" {
		t.Fatalf("empty feature set has no signature")
	}
	if got := len(signatureOf(a)); got != 16 {
		t.Fatalf("expected 16-char digest, got %d", got)
	}
}
