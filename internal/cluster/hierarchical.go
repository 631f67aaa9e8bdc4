package cluster

import (
	"context"
	"math"
	"slices"
)

type merge struct {
	a, b   int
	height float64
}

// agglomerate builds the full merge tree with the nearest-neighbor chain
// algorithm and Lance-Williams distance updates. dist is consumed. For Ward
// the matrix must hold squared distances.
func agglomerate(ctx context.Context, dist *condensed, linkage Linkage) ([]merge, error) {
	n := dist.n
	size := make([]int, n)
	active := make([]bool, n)
	for i := range n {
		size[i] = 1
		active[i] = true
	}

	merges := make([]merge, 0, n-1)
	chain := make([]int, 0, n)

	for len(merges) < n-1 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if len(chain) == 0 {
			chain = append(chain, slices.Index(active, true))
		}

		var x, y int
		var d float64

		for {
			x = chain[len(chain)-1]
			y, d = -1, math.Inf(1)
			if len(chain) > 1 {
				y = chain[len(chain)-2]
				d = dist.at(x, y)
			}

			for i := range n {
				if !active[i] || i == x {
					continue
				}

				if di := dist.at(x, i); di < d {
					y, d = i, di
				}
			}

			if len(chain) > 1 && y == chain[len(chain)-2] {
				break
			}

			chain = append(chain, y)
		}

		chain = chain[:len(chain)-2]
		if x > y {
			x, y = y, x
		}

		merges = append(merges, merge{a: x, b: y, height: d})

		// The merged cluster lives on in slot y.
		for i := range n {
			if !active[i] || i == x || i == y {
				continue
			}

			dist.set(i, y, lanceWilliams(linkage, dist.at(i, x), dist.at(i, y), d, size[x], size[y], size[i]))
		}

		active[x] = false
		size[y] += size[x]
	}

	return merges, nil
}

func lanceWilliams(linkage Linkage, dix, diy, dxy float64, sx, sy, si int) float64 {
	switch linkage {
	case LinkageSingle:
		return math.Min(dix, diy)
	case LinkageComplete:
		return math.Max(dix, diy)
	case LinkageAverage:
		return (float64(sx)*dix + float64(sy)*diy) / float64(sx+sy)
	default:
		t := float64(sx + sy + si)
		return (float64(sx+si)*dix + float64(sy+si)*diy - float64(si)*dxy) / t
	}
}

// cutTree applies the n-k lowest merges and labels the resulting clusters in
// order of their first member.
func cutTree(n int, merges []merge, k int) []int {
	ordered := slices.Clone(merges)
	slices.SortStableFunc(ordered, func(a, b merge) int {
		switch {
		case a.height < b.height:
			return -1
		case a.height > b.height:
			return 1
		}

		return 0
	})

	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}

	find := func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}

		return i
	}

	for _, m := range ordered[:n-k] {
		parent[find(m.a)] = find(m.b)
	}

	labels := make([]int, n)
	ids := make(map[int]int, k)
	for i := range n {
		root := find(i)
		id, ok := ids[root]
		if !ok {
			id = len(ids)
			ids[root] = id
		}

		labels[i] = id
	}

	return labels
}

// hierarchical clusters the points behind dist into k groups.
func hierarchical(ctx context.Context, dist *condensed, k int, linkage Linkage) ([]int, error) {
	if dist.n == 1 {
		return []int{0}, nil
	}

	work := dist.clone()
	if linkage == LinkageWard {
		for i, v := range work.d {
			work.d[i] = v * v
		}
	}

	merges, err := agglomerate(ctx, work, linkage)
	if err != nil {
		return nil, err
	}

	return cutTree(dist.n, merges, k), nil
}
