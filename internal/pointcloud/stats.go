package pointcloud

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"
)

// DefaultZScore is the distance-filter cutoff used when callers do not supply one.
const DefaultZScore = 1.5

// Filtering policy. These are fixed for compatibility with existing
// recordings and are not configurable.
const (
	// MinFilterSamples is the history length below which no filtering is attempted.
	MinFilterSamples = 5
	// MinFilterSurvivors is the number of points that must pass the filter
	// for the filtered mean to be used.
	MinFilterSurvivors = 3
)

func normalizeZScore(z float64) float64 {
	if math.IsNaN(z) || z <= 0 {
		return DefaultZScore
	}
	return z
}

// mean returns the componentwise average of a non-empty history.
func mean(pts []r3.Vec) r3.Vec {
	var sum r3.Vec
	for _, p := range pts {
		sum = r3.Add(sum, p)
	}
	return r3.Scale(1/float64(len(pts)), sum)
}

// distanceFilterMean rejects observations whose distance from the history
// mean deviates from the average distance by more than zscore standard
// deviations, then averages the rest. Distances are treated as a scalar
// population, so the filter is independent of axis scale and orientation.
func distanceFilterMean(pts []r3.Vec, zscore float64) r3.Vec {
	m := mean(pts)
	if len(pts) < MinFilterSamples {
		return m
	}

	dists := make([]float64, len(pts))
	for i, p := range pts {
		dists[i] = r3.Norm(r3.Sub(p, m))
	}
	distAvg, distVar := stat.PopMeanVariance(dists, nil)
	cutoff := zscore * math.Sqrt(math.Max(distVar, 0))

	var (
		sum  r3.Vec
		kept int
	)
	for i, p := range pts {
		if math.Abs(dists[i]-distAvg) > cutoff {
			continue
		}
		sum = r3.Add(sum, p)
		kept++
	}
	if kept < MinFilterSurvivors {
		return m
	}
	return r3.Scale(1/float64(kept), sum)
}
