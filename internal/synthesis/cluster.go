package synthesis

import "math"

const kmeansMaxIters = 10

// kCluster is one cluster in z-space. Members index into the projected
// sample slice so raw vectors and outcome windows stay reachable.
type kCluster struct {
	Centroid []float64
	Members  []int
}

func chooseK(n, maxClusters int) int {
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

func sqDistance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// kmeans runs a deterministic pass over z-scored rows: seed with the first
// vector, extend with the farthest point each time, then iterate to a
// bounded depth. Empty clusters are dropped. Determinism keeps signatures
// reproducible across runs on the same population.
func kmeans(vecs [][]float64, k int) []kCluster {
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
				if dist := sqDistance(vecs[i], c); dist < d {
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
	for iter := 0; iter < kmeansMaxIters; iter++ {
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
				if d := sqDistance(v, centroids[c]); d < bestDist {
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

	final := make([]kCluster, k)
	for i := range final {
		final[i].Centroid = centroids[i]
	}
	for i := range vecs {
		if assign[i] < 0 || assign[i] >= k {
			assign[i] = 0
		}
		final[assign[i]].Members = append(final[assign[i]].Members, i)
	}

	out := make([]kCluster, 0, len(final))
	for _, c := range final {
		if len(c.Members) == 0 {
			continue
		}
		out = append(out, c)
	}
	return out
}

// rawCentroid averages the raw (unstandardized) member vectors.
func rawCentroid(raw [][]float64, members []int) []float64 {
	if len(members) == 0 || len(raw) == 0 {
		return nil
	}
	width := len(raw[0])
	out := make([]float64, width)
	for _, m := range members {
		for j := 0; j < width; j++ {
			out[j] += raw[m][j]
		}
	}
	for j := range out {
		out[j] /= float64(len(members))
	}
	return out
}

func cosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na <= 0 || nb <= 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
