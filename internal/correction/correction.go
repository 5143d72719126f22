// Package correction adjusts families of p-values for multiple comparisons.
package correction

import (
	"math"
	"sort"
)

// Holm applies the Holm step-down adjustment. The i-th smallest p-value
// (1-indexed rank r) is multiplied by m−r+1, the running maximum is carried
// forward in sorted order, and results are clamped to 1. Adjusted values are
// returned in input order and do not depend on it.
func Holm(p []float64) []float64 {
	m := len(p)
	adjusted := make([]float64, m)
	if m == 0 {
		return adjusted
	}

	order := make([]int, m)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return p[order[a]] < p[order[b]]
	})

	running := 0.0
	for rank, idx := range order {
		adj := p[idx] * float64(m-rank)
		adj = math.Max(adj, running)
		adj = math.Min(1, adj)
		running = adj
		adjusted[idx] = adj
	}
	return adjusted
}

// Bonferroni multiplies every p-value by m and clamps at 1. m is the number of
// comparisons actually performed, which may differ from len(p) when the
// caller adjusts a subset.
func Bonferroni(p []float64, m int) []float64 {
	adjusted := make([]float64, len(p))
	for i, v := range p {
		adjusted[i] = math.Min(1, v*float64(m))
	}
	return adjusted
}
