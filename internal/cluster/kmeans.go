package cluster

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
)

// KMeans is a seeded k-means: k-means++ initialisation, Lloyd iterations and
// best-of-Restarts selection by inertia. Identical input and seed give
// identical labels.
type KMeans struct {
	K        int
	Seed     uint64
	Restarts int
	MaxIter  int
}

// Fit partitions the rows of x. Labels are renumbered in order of first
// appearance so cluster ids do not depend on centroid order.
func (km KMeans) Fit(x [][]float64) (labels []int, inertia float64, iters int) {
	n := len(x)
	if n == 0 {
		return nil, 0, 0
	}
	k := km.K
	if k < 1 {
		k = 1
	}
	if k > n {
		k = n
	}
	restarts := km.Restarts
	if restarts < 1 {
		restarts = 1
	}
	maxIter := km.MaxIter
	if maxIter < 1 {
		maxIter = 300
	}

	rng := rand.New(rand.NewPCG(km.Seed, km.Seed^0x9e3779b97f4a7c15))
	inertia = math.Inf(1)
	for range restarts {
		l, in, it := lloyd(x, seedCenters(x, k, rng), maxIter)
		if in < inertia {
			labels, inertia, iters = l, in, it
		}
	}
	return relabel(labels), inertia, iters
}

// seedCenters picks k initial centroids with k-means++.
func seedCenters(x [][]float64, k int, rng *rand.Rand) [][]float64 {
	n := len(x)
	centers := make([][]float64, 0, k)
	centers = append(centers, clone(x[rng.IntN(n)]))

	d2 := make([]float64, n)
	for i := range x {
		d2[i] = sqDist(x[i], centers[0])
	}
	for len(centers) < k {
		total := floats.Sum(d2)
		var next int
		if total == 0 {
			next = rng.IntN(n)
		} else {
			target := rng.Float64() * total
			next = n - 1
			var acc float64
			for i, d := range d2 {
				acc += d
				if acc >= target && d > 0 {
					next = i
					break
				}
			}
		}
		c := clone(x[next])
		centers = append(centers, c)
		for i := range x {
			if d := sqDist(x[i], c); d < d2[i] {
				d2[i] = d
			}
		}
	}
	return centers
}

func lloyd(x [][]float64, centers [][]float64, maxIter int) ([]int, float64, int) {
	n, k := len(x), len(centers)
	dim := len(x[0])
	labels := make([]int, n)
	for i := range labels {
		labels[i] = -1
	}

	iter := 0
	for iter < maxIter {
		iter++
		changed := false
		for i, row := range x {
			best := nearest(row, centers)
			if best != labels[i] {
				labels[i] = best
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
		for i, row := range x {
			floats.Add(sums[labels[i]], row)
			counts[labels[i]]++
		}
		for c := range centers {
			// An empty cluster keeps its previous centroid.
			if counts[c] == 0 {
				continue
			}
			floats.Scale(1/float64(counts[c]), sums[c])
			centers[c] = sums[c]
		}
	}

	var inertia float64
	for i, row := range x {
		inertia += sqDist(row, centers[labels[i]])
	}
	return labels, inertia, iter
}

func nearest(row []float64, centers [][]float64) int {
	best, bestD := 0, math.Inf(1)
	for c, center := range centers {
		if d := sqDist(row, center); d < bestD {
			best, bestD = c, d
		}
	}
	return best
}

func relabel(labels []int) []int {
	mapping := make(map[int]int)
	out := make([]int, len(labels))
	for i, l := range labels {
		id, ok := mapping[l]
		if !ok {
			id = len(mapping)
			mapping[l] = id
		}
		out[i] = id
	}
	return out
}

func sqDist(a, b []float64) float64 {
	if len(a) == 0 {
		return 0
	}
	d := floats.Distance(a, b, 2)
	return d * d
}

func clone(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	return out
}
