package pointcloud

import (
	"maps"
	"slices"
	"sync"

	"gonum.org/v1/gonum/spatial/r3"
)

// machineEpsilon is the spacing between 1.0 and the next float64.
const machineEpsilon = 0x1p-52

// SamePointEpsilonSq is the squared distance below which a new observation is
// treated as a repeat of the previous one for the same identifier.
const SamePointEpsilonSq = machineEpsilon * machineEpsilon

// Feature is a single observation of a tracked feature point in one frame.
type Feature struct {
	ID       uint64
	Position r3.Vec
}

// Aggregator accumulates per-identifier observation histories.
// All methods are safe for concurrent use; a single mutex guards the store
// so queries never observe a half-applied append.
type Aggregator struct {
	mu        sync.Mutex
	histories map[uint64][]r3.Vec
	points    int
}

// NewAggregator creates an empty Aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{
		histories: make(map[uint64][]r3.Vec),
	}
}

// Reset discards every history.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.histories = make(map[uint64][]r3.Vec)
	a.points = 0
}

// Append records a batch of observations in order. A candidate that sits
// within SamePointEpsilonSq of the newest observation for its identifier is
// dropped; only the immediately preceding observation is compared.
func (a *Aggregator) Append(batch []Feature) {
	if len(batch) == 0 {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	for _, f := range batch {
		h, ok := a.histories[f.ID]
		if !ok {
			// New identifiers are created together with their first point,
			// so no history is ever empty.
			a.histories[f.ID] = []r3.Vec{f.Position}
			a.points++
			continue
		}
		if samePoint(h[len(h)-1], f.Position) {
			continue
		}
		a.histories[f.ID] = append(h, f.Position)
		a.points++
	}
}

func samePoint(a, b r3.Vec) bool {
	return r3.Norm2(r3.Sub(a, b)) < SamePointEpsilonSq
}

// Len returns the number of distinct identifiers in the store.
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.histories)
}

// PointCount returns the number of retained observations across all identifiers.
func (a *Aggregator) PointCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.points
}

// IsEmpty reports whether nothing has been recorded since the last Reset.
func (a *Aggregator) IsEmpty() bool {
	return a.Len() == 0
}

// History returns a copy of the observations recorded for id.
func (a *Aggregator) History(id uint64) ([]r3.Vec, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	h, ok := a.histories[id]
	if !ok {
		return nil, false
	}
	return slices.Clone(h), true
}

// sortedIDs must be called with a.mu held. Identifiers are visited in
// ascending order so repeated queries return identical collections.
func (a *Aggregator) sortedIDs() []uint64 {
	return slices.Sorted(maps.Keys(a.histories))
}

// FullList returns every retained observation. Each identifier contributes its
// history in arrival order; identifiers appear in ascending order.
func (a *Aggregator) FullList() []r3.Vec {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]r3.Vec, 0, a.points)
	for _, id := range a.sortedIDs() {
		out = append(out, a.histories[id]...)
	}
	return out
}

// AverageList returns the mean position of each identifier.
func (a *Aggregator) AverageList() []r3.Vec {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]r3.Vec, 0, len(a.histories))
	for _, id := range a.sortedIDs() {
		out = append(out, mean(a.histories[id]))
	}
	return out
}

// DistanceFilterList returns, for each identifier, the mean of the
// observations whose distance from the history mean lies within zscore
// standard deviations of the average distance. Histories too short to
// filter, or filters that keep too few points, fall back to the plain mean.
// A non-positive or NaN zscore is replaced by DefaultZScore.
func (a *Aggregator) DistanceFilterList(zscore float64) []r3.Vec {
	zscore = normalizeZScore(zscore)

	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]r3.Vec, 0, len(a.histories))
	for _, id := range a.sortedIDs() {
		out = append(out, distanceFilterMean(a.histories[id], zscore))
	}
	return out
}

// Aggregate produces the collection for the given mode. zscore is only used
// by ModeDistanceFilter.
func (a *Aggregator) Aggregate(mode Mode, zscore float64) []r3.Vec {
	switch mode {
	case ModeFull:
		return a.FullList()
	case ModeAverage:
		return a.AverageList()
	default:
		return a.DistanceFilterList(zscore)
	}
}
