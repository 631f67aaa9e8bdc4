package cluster

import "gonum.org/v1/gonum/floats"

// condensed stores the upper triangle of a symmetric n×n distance matrix
// without the diagonal.
type condensed struct {
	n int
	d []float64
}

func newCondensed(n int) *condensed {
	return &condensed{n: n, d: make([]float64, n*(n-1)/2)}
}

// pairwise returns Euclidean distances between all rows of x.
func pairwise(x [][]float64) *condensed {
	c := newCondensed(len(x))
	for i := range x {
		for j := i + 1; j < len(x); j++ {
			c.d[c.index(i, j)] = floats.Distance(x[i], x[j], 2)
		}
	}

	return c
}

func (c *condensed) index(i, j int) int {
	if i > j {
		i, j = j, i
	}

	return c.n*i - i*(i+1)/2 + j - i - 1
}

func (c *condensed) at(i, j int) float64 {
	if i == j {
		return 0
	}

	return c.d[c.index(i, j)]
}

func (c *condensed) set(i, j int, v float64) {
	c.d[c.index(i, j)] = v
}

func (c *condensed) clone() *condensed {
	return &condensed{n: c.n, d: append([]float64(nil), c.d...)}
}

func sqDist(a, b []float64) float64 {
	var s float64
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}

	return s
}
