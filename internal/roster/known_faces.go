package roster

import (
	"context"
	"fmt"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// FromKnownFaces builds a set from stored encodings, keeping their order.
func FromKnownFaces(faces []database.KnownFace) (*KnownFaceSet, error) {
	if len(faces) == 0 {
		return nil, ErrEmptyRoster
	}
	ids := make([]string, len(faces))
	encodings := make([][]float32, len(faces))
	for i, f := range faces {
		ids[i] = f.StudentID
		encodings[i] = f.Encoding
	}
	return New(ids, encodings)
}

// LoadFromStore reads every enrolled encoding from a known face store.
func LoadFromStore(ctx context.Context, store database.KnownFaceReader) (*KnownFaceSet, error) {
	faces, err := store.ListKnownFaces(ctx)
	if err != nil {
		return nil, fmt.Errorf("list known faces: %w", err)
	}
	return FromKnownFaces(faces)
}
