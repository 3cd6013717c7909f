package synthesis

import "math"

// zEpsilon keeps constant features from dividing by zero during
// standardization.
const zEpsilon = 1e-6

// standardize z-scores each column of the sample matrix so clustering
// distances weigh every feature equally regardless of its native scale.
// Returns the projected rows plus the per-column mean and deviation used,
// so cluster centroids can be mapped back into raw feature space.
func standardize(rows [][]float64) (projected [][]float64, means, stds []float64) {
	if len(rows) == 0 {
		return nil, nil, nil
	}
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
		stds[j] = math.Sqrt(stds[j]/n) + zEpsilon
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
