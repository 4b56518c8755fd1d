// Package facematch matches detected face encodings against the known roster.
package facematch

import (
	"math"

	"github.com/kozaktomas/face-attendance/internal/roster"
)

// Result is the outcome of matching one detected encoding.
// Matched is false for no_match; Index is -1 in that case.
type Result struct {
	ID       string
	Index    int
	Distance float64
	Matched  bool
}

// NoMatch is the zero outcome.
var NoMatch = Result{Index: -1, Distance: math.Inf(1)}

// EuclideanDistance returns the L2 distance between two encodings.
// Encodings of different length are infinitely far apart.
func EuclideanDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Matcher finds the closest roster entry and applies the acceptance threshold.
// It is safe for concurrent use because the roster is immutable.
type Matcher struct {
	known     *roster.KnownFaceSet
	threshold float64
}

// NewMatcher creates a matcher. A match is accepted only if its distance is strictly below threshold.
func NewMatcher(known *roster.KnownFaceSet, threshold float64) *Matcher {
	if known == nil {
		known = roster.Empty()
	}
	return &Matcher{known: known, threshold: threshold}
}

// Threshold returns the acceptance threshold.
func (m *Matcher) Threshold() float64 {
	return m.threshold
}

// Nearest returns the roster position with the globally minimum distance.
// Ties keep the earliest position. Returns -1 for an empty roster.
func (m *Matcher) Nearest(encoding []float32) (int, float64) {
	best, bestDist := -1, math.Inf(1)
	for i := 0; i < m.known.Len(); i++ {
		d := EuclideanDistance(encoding, m.known.Encoding(i))
		if d < bestDist {
			best, bestDist = i, d
		}
	}
	return best, bestDist
}

// Match matches a single encoding.
func (m *Matcher) Match(encoding []float32) Result {
	idx, dist := m.Nearest(encoding)
	if idx < 0 || dist >= m.threshold {
		return NoMatch
	}
	return Result{
		ID:       m.known.ID(idx),
		Index:    idx,
		Distance: dist,
		Matched:  true,
	}
}

// MatchAll matches every encoding of a frame independently, preserving order.
func (m *Matcher) MatchAll(encodings [][]float32) []Result {
	results := make([]Result, len(encodings))
	for i, enc := range encodings {
		results[i] = m.Match(enc)
	}
	return results
}
