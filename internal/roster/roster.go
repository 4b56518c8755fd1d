// Package roster holds the known-identity encodings the checkpoint recognizes.
package roster

import (
	"errors"
	"fmt"
)

// KnownFaceSet is an ordered, immutable list of (identity key, encoding) pairs.
// Order matters: matching ties are resolved in favor of the earlier entry.
type KnownFaceSet struct {
	ids       []string
	encodings [][]float32
	dim       int
}

// New builds a set from positionally aligned ids and encodings.
// Keys are not checked for uniqueness; every encoding must share one dimension.
func New(ids []string, encodings [][]float32) (*KnownFaceSet, error) {
	if len(ids) != len(encodings) {
		return nil, fmt.Errorf("roster has %d ids but %d encodings", len(ids), len(encodings))
	}

	s := &KnownFaceSet{
		ids:       make([]string, len(ids)),
		encodings: make([][]float32, len(encodings)),
	}
	copy(s.ids, ids)

	for i, enc := range encodings {
		if len(enc) == 0 {
			return nil, fmt.Errorf("encoding %d (%s) is empty", i, ids[i])
		}
		if s.dim == 0 {
			s.dim = len(enc)
		} else if len(enc) != s.dim {
			return nil, fmt.Errorf("encoding %d (%s) has dimension %d, expected %d", i, ids[i], len(enc), s.dim)
		}
		if ids[i] == "" {
			return nil, fmt.Errorf("encoding %d has an empty identity key", i)
		}
		s.encodings[i] = append([]float32(nil), enc...)
	}

	return s, nil
}

// Empty returns a set with no entries. Matching against it never succeeds.
func Empty() *KnownFaceSet {
	return &KnownFaceSet{}
}

// Len returns the number of entries.
func (s *KnownFaceSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.ids)
}

// Dim returns the encoding dimension, or 0 for an empty set.
func (s *KnownFaceSet) Dim() int {
	if s == nil {
		return 0
	}
	return s.dim
}

// ID returns the identity key at position i.
func (s *KnownFaceSet) ID(i int) string {
	return s.ids[i]
}

// Encoding returns the encoding at position i. Callers must not modify it.
func (s *KnownFaceSet) Encoding(i int) []float32 {
	return s.encodings[i]
}

// IDs returns a copy of the identity keys in roster order.
func (s *KnownFaceSet) IDs() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.ids))
	copy(out, s.ids)
	return out
}

// Distinct returns the number of distinct identity keys.
func (s *KnownFaceSet) Distinct() int {
	seen := make(map[string]struct{}, s.Len())
	for _, id := range s.IDs() {
		seen[id] = struct{}{}
	}
	return len(seen)
}

// ErrEmptyRoster is returned by loaders when an artifact holds no encodings.
var ErrEmptyRoster = errors.New("roster contains no encodings")
