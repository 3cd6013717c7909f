package synthesis

import (
	"math"
	"reflect"
	"testing"
)

func TestChooseK_Bounds(t *testing.T) {
	if k := chooseK(1, 8); k != 1 {
		t.Fatalf("expected k=1 for a single vector, got %d", k)
	}
	if k := chooseK(100, 8); k != 8 {
		t.Fatalf("expected max_clusters cap 8, got %d", k)
	}
	if k := chooseK(9, 8); k != 3 {
		t.Fatalf("expected sqrt(9)=3, got %d", k)
	}
	if k := chooseK(2, 8); k != 2 {
		t.Fatalf("expected floor of 2, got %d", k)
	}
}

func TestStandardize_MeanAndSpread(t *testing.T) {
	rows := [][]float64{
		{0.2, 0.5},
		{0.4, 0.5},
		{0.6, 0.5},
	}
	projected, means, stds := standardize(rows)

	if math.Abs(means[0]-0.4) > 1e-9 {
		t.Fatalf("expected column mean 0.4, got %v", means[0])
	}
	// Constant column: epsilon keeps the divide finite and z at zero.
	for i := range projected {
		if projected[i][1] != 0 {
			t.Fatalf("expected z=0 for constant column, got %v", projected[i][1])
		}
	}
	if stds[1] != zEpsilon {
		t.Fatalf("expected epsilon deviation for constant column, got %v", stds[1])
	}
	// Column mean of z-scores is zero.
	var sum float64
	for i := range projected {
		sum += projected[i][0]
	}
	if math.Abs(sum) > 1e-9 {
		t.Fatalf("expected zero-mean z column, got sum %v", sum)
	}
}

func twoGroupMatrix() [][]float64 {
	rows := make([][]float64, 40)
	for i := range rows {
		v := make([]float64, featureCount)
		for j := range v {
			v[j] = 0.3
		}
		if i >= 20 {
			// high creativity plus creative_challenges affinity
			v[3] = 0.9
			v[featDomainOff+1] = 0.8
		}
		rows[i] = v
	}
	return rows
}

func TestKmeans_SeparatesGroupsDeterministically(t *testing.T) {
	raw := twoGroupMatrix()
	projected, _, _ := standardize(raw)

	clusters := kmeans(projected, 2)
	if len(clusters) != 2 {
		t.Fatalf("expected 2 clusters, got %d", len(clusters))
	}
	for _, c := range clusters {
		if len(c.Members) != 20 {
			t.Fatalf("expected an even 20/20 split, got cluster of %d", len(c.Members))
		}
		low := c.Members[0] < 20
		for _, m := range c.Members {
			if (m < 20) != low {
				t.Fatalf("groups mixed inside one cluster: member %d", m)
			}
		}
	}

	again := kmeans(projected, 2)
	if !reflect.DeepEqual(clusters, again) {
		t.Fatalf("kmeans is not deterministic on identical input")
	}
}

func TestRawCentroid_AveragesMembers(t *testing.T) {
	raw := [][]float64{
		{0.2, 0.8},
		{0.4, 0.6},
		{0.9, 0.9},
	}
	c := rawCentroid(raw, []int{0, 1})
	if math.Abs(c[0]-0.3) > 1e-9 || math.Abs(c[1]-0.7) > 1e-9 {
		t.Fatalf("expected centroid [0.3 0.7], got %v", c)
	}
}
