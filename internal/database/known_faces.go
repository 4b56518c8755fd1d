package database

import (
	"context"
	"time"
)

// KnownFace is one enrolled encoding for an identity key.
// An identity may own several encodings.
type KnownFace struct {
	ID        int64
	StudentID string
	Encoding  []float32
	Source    string // blob name of the image the encoding was computed from
	CreatedAt time.Time
}

// KnownFaceReader provides read-only access to enrolled encodings.
type KnownFaceReader interface {
	// ListKnownFaces returns all encodings in enrollment order.
	ListKnownFaces(ctx context.Context) ([]KnownFace, error)
	// CountKnownFaces returns the number of stored encodings.
	CountKnownFaces(ctx context.Context) (int, error)
}

// KnownFaceWriter provides write access to enrolled encodings.
type KnownFaceWriter interface {
	KnownFaceReader

	// SaveKnownFaces replaces every encoding stored for studentID.
	SaveKnownFaces(ctx context.Context, studentID string, faces []KnownFace) error
	// DeleteKnownFaces removes all encodings for studentID.
	DeleteKnownFaces(ctx context.Context, studentID string) error
}
