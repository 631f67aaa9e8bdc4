package cluster

import (
	"context"
	"math"
	"math/rand/v2"
)

type kmeansFit struct {
	labels    []int
	centroids [][]float64
	inertia   float64
}

// candidateRand seeds one generator per candidate k so results do not depend
// on which goroutine evaluates which candidate.
func candidateRand(seed uint64, k int) *rand.Rand {
	return rand.New(rand.NewPCG(seed, uint64(k)))
}

// kmeans runs Lloyd's algorithm from restarts k-means++ seedings and keeps
// the run with the lowest inertia.
func kmeans(ctx context.Context, x [][]float64, k, restarts, maxIter int, rng *rand.Rand) (kmeansFit, error) {
	best := kmeansFit{inertia: math.Inf(1)}

	for range restarts {
		fit, err := lloyd(ctx, x, seedPlusPlus(x, k, rng), maxIter)
		if err != nil {
			return kmeansFit{}, err
		}

		if fit.inertia < best.inertia {
			best = fit
		}
	}

	return best, nil
}

func seedPlusPlus(x [][]float64, k int, rng *rand.Rand) [][]float64 {
	n := len(x)
	centroids := make([][]float64, 0, k)
	centroids = append(centroids, clonePoint(x[rng.IntN(n)]))

	closest := make([]float64, n)
	for i := range x {
		closest[i] = sqDist(x[i], centroids[0])
	}

	for len(centroids) < k {
		var total float64
		for _, d := range closest {
			total += d
		}

		next := rng.IntN(n)
		if total > 0 {
			target := rng.Float64() * total
			for i, d := range closest {
				target -= d
				if target < 0 {
					next = i
					break
				}
			}
		}

		c := clonePoint(x[next])
		centroids = append(centroids, c)

		for i := range x {
			closest[i] = math.Min(closest[i], sqDist(x[i], c))
		}
	}

	return centroids
}

func lloyd(ctx context.Context, x [][]float64, centroids [][]float64, maxIter int) (kmeansFit, error) {
	k, dim := len(centroids), len(x[0])
	labels := make([]int, len(x))
	for i := range labels {
		labels[i] = -1
	}

	for range maxIter {
		if err := ctx.Err(); err != nil {
			return kmeansFit{}, err
		}

		changed := false
		for i, p := range x {
			if l := nearest(p, centroids); l != labels[i] {
				labels[i] = l
				changed = true
			}
		}

		if !changed {
			break
		}

		sums := make([][]float64, k)
		counts := make([]int, k)
		for c := range sums {
			sums[c] = make([]float64, dim)
		}

		for i, p := range x {
			counts[labels[i]]++
			for j, v := range p {
				sums[labels[i]][j] += v
			}
		}

		for c := range centroids {
			if counts[c] == 0 {
				// Empty cluster: move it onto the point worst served by its centroid.
				far := farthest(x, labels, centroids)
				centroids[c] = clonePoint(x[far])
				labels[far] = c
				continue
			}

			for j := range centroids[c] {
				centroids[c][j] = sums[c][j] / float64(counts[c])
			}
		}
	}

	fit := kmeansFit{labels: labels, centroids: centroids}
	for i, p := range x {
		fit.inertia += sqDist(p, centroids[labels[i]])
	}

	return fit, nil
}

func nearest(p []float64, centroids [][]float64) int {
	best, bestD := 0, math.Inf(1)
	for c, centroid := range centroids {
		if d := sqDist(p, centroid); d < bestD {
			best, bestD = c, d
		}
	}

	return best
}

func farthest(x [][]float64, labels []int, centroids [][]float64) int {
	far, farD := 0, -1.0
	for i, p := range x {
		if d := sqDist(p, centroids[labels[i]]); d > farD {
			far, farD = i, d
		}
	}

	return far
}

func clonePoint(p []float64) []float64 {
	return append([]float64(nil), p...)
}
