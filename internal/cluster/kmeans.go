// Package cluster groups 3D points by spatial proximity. The segmentation
// backend answers faster when each request's coordinates are co-located, so
// lookups are partitioned with a small k-means before chunking.
package cluster

// DefaultMaxIterations bounds the Lloyd refinement loop.
const DefaultMaxIterations = 25

// Assign partitions points into at most k groups and returns one group
// label per point, in input order. Labels are in [0, k); a group may end up
// empty. The initialization is deterministic (evenly spaced input points),
// so repeated calls on the same input agree.
func Assign(points [][3]float64, k, maxIter int) []int {
	labels := make([]int, len(points))
	if k <= 1 || len(points) <= 1 {
		return labels
	}
	if k >= len(points) {
		for i := range labels {
			labels[i] = i
		}
		return labels
	}
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}

	centroids := make([][3]float64, k)
	for c := range centroids {
		centroids[c] = points[c*len(points)/k]
	}

	sums := make([][3]float64, k)
	counts := make([]int, k)
	for iter := 0; iter < maxIter; iter++ {
		changed := false
		for i, p := range points {
			best := nearest(centroids, p)
			if best != labels[i] {
				labels[i] = best
				changed = true
			}
		}
		if !changed && iter > 0 {
			break
		}

		for c := range sums {
			sums[c] = [3]float64{}
			counts[c] = 0
		}
		for i, p := range points {
			c := labels[i]
			sums[c][0] += p[0]
			sums[c][1] += p[1]
			sums[c][2] += p[2]
			counts[c]++
		}
		for c := range centroids {
			// An empty cluster keeps its previous centroid and simply
			// stays empty; the caller skips empty groups.
			if counts[c] == 0 {
				continue
			}
			n := float64(counts[c])
			centroids[c] = [3]float64{sums[c][0] / n, sums[c][1] / n, sums[c][2] / n}
		}
	}
	return labels
}

func nearest(centroids [][3]float64, p [3]float64) int {
	best := 0
	bestDist := sqDist(centroids[0], p)
	for c := 1; c < len(centroids); c++ {
		if d := sqDist(centroids[c], p); d < bestDist {
			best = c
			bestDist = d
		}
	}
	return best
}

func sqDist(a, b [3]float64) float64 {
	dx := a[0] - b[0]
	dy := a[1] - b[1]
	dz := a[2] - b[2]
	return dx*dx + dy*dy + dz*dz
}
