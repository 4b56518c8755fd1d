package roster

import (
	"sort"

	"github.com/coder/hnsw"
)

// auditNeighbors is how many nearest entries are inspected per encoding.
const auditNeighbors = 8

// Conflict is a pair of encodings from different identities that sit closer
// than the acceptance threshold, so a face near either could match the wrong person.
type Conflict struct {
	A, B     int // roster positions, A < B
	IDA, IDB string
	Distance float64
}

// Audit reports identity pairs whose encodings are closer than threshold.
// Results are sorted by ascending distance.
func Audit(s *KnownFaceSet, threshold float64) []Conflict {
	if s.Len() < 2 {
		return nil
	}

	g := hnsw.NewGraph[int]()
	g.M = 16
	g.Ml = 1.0 / 16
	g.Distance = hnsw.EuclideanDistance
	for i := 0; i < s.Len(); i++ {
		g.Add(hnsw.MakeNode(i, s.Encoding(i)))
	}

	k := min(auditNeighbors, s.Len())
	seen := make(map[[2]int]struct{})
	var conflicts []Conflict

	for i := 0; i < s.Len(); i++ {
		for _, n := range g.Search(s.Encoding(i), k) {
			j := n.Key
			if j == i || s.ID(j) == s.ID(i) {
				continue
			}
			a, b := min(i, j), max(i, j)
			if _, ok := seen[[2]int{a, b}]; ok {
				continue
			}
			d := float64(hnsw.EuclideanDistance(s.Encoding(a), s.Encoding(b)))
			if d >= threshold {
				continue
			}
			seen[[2]int{a, b}] = struct{}{}
			conflicts = append(conflicts, Conflict{A: a, B: b, IDA: s.ID(a), IDB: s.ID(b), Distance: d})
		}
	}

	sort.Slice(conflicts, func(x, y int) bool {
		if conflicts[x].Distance != conflicts[y].Distance {
			return conflicts[x].Distance < conflicts[y].Distance
		}
		return conflicts[x].A < conflicts[y].A
	})
	return conflicts
}
