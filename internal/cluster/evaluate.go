package cluster

// Candidate is the K-Means evaluation of one cluster count.
type Candidate struct {
	K          int     `yaml:"k" json:"k"`
	Silhouette float64 `yaml:"silhouette" json:"silhouette"`
	Inertia    float64 `yaml:"inertia" json:"inertia"`
}

// silhouette is the mean silhouette coefficient of labels over the points
// behind dist. Points in singleton clusters score 0, as does a labeling with
// fewer than two clusters.
func silhouette(dist *condensed, labels []int, k int) float64 {
	n := dist.n
	counts := make([]int, k)
	for _, l := range labels {
		counts[l]++
	}

	nonEmpty := 0
	for _, c := range counts {
		if c > 0 {
			nonEmpty++
		}
	}

	if nonEmpty < 2 {
		return 0
	}

	sums := make([]float64, k)

	var total float64
	for i := range n {
		clear(sums)
		for j := range n {
			if j != i {
				sums[labels[j]] += dist.at(i, j)
			}
		}

		own := labels[i]
		if counts[own] == 1 {
			continue
		}

		a := sums[own] / float64(counts[own]-1)

		b := -1.0
		for c := range k {
			if c == own || counts[c] == 0 {
				continue
			}

			if m := sums[c] / float64(counts[c]); b < 0 || m < b {
				b = m
			}
		}

		if denom := max(a, b); denom > 0 {
			total += (b - a) / denom
		}
	}

	return total / float64(n)
}

// inertia is the within-cluster sum of squared distances to each cluster's
// mean.
func inertia(x [][]float64, labels []int, k int) float64 {
	dim := len(x[0])
	centroids := make([][]float64, k)
	counts := make([]int, k)

	for c := range centroids {
		centroids[c] = make([]float64, dim)
	}

	for i, p := range x {
		counts[labels[i]]++
		for j, v := range p {
			centroids[labels[i]][j] += v
		}
	}

	for c := range centroids {
		if counts[c] == 0 {
			continue
		}

		for j := range centroids[c] {
			centroids[c][j] /= float64(counts[c])
		}
	}

	var total float64
	for i, p := range x {
		total += sqDist(p, centroids[labels[i]])
	}

	return total
}

// selectK returns the smallest k whose silhouette is within tolerance of the
// best one. Candidates must be ordered by k.
func selectK(candidates []Candidate, tolerance float64) int {
	best := candidates[0].Silhouette
	for _, c := range candidates[1:] {
		best = max(best, c.Silhouette)
	}

	for _, c := range candidates {
		if c.Silhouette >= best-tolerance {
			return c.K
		}
	}

	return candidates[0].K
}
