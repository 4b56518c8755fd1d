package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// KnownFaceRepository stores enrolled encodings as pgvector columns.
type KnownFaceRepository struct {
	pool *Pool
}

// NewKnownFaceRepository creates a new PostgreSQL known face repository.
func NewKnownFaceRepository(pool *Pool) *KnownFaceRepository {
	return &KnownFaceRepository{pool: pool}
}

// ListKnownFaces returns all encodings in enrollment order.
func (r *KnownFaceRepository) ListKnownFaces(ctx context.Context) ([]database.KnownFace, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, student_id, encoding, source, created_at
		FROM known_faces
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("query known faces: %w", err)
	}
	defer rows.Close()

	return scanKnownFaces(rows)
}

// CountKnownFaces returns the number of stored encodings.
func (r *KnownFaceRepository) CountKnownFaces(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM known_faces").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count known faces: %w", err)
	}
	return count, nil
}

// SaveKnownFaces replaces every encoding stored for studentID in one transaction.
func (r *KnownFaceRepository) SaveKnownFaces(ctx context.Context, studentID string, faces []database.KnownFace) error {
	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, "DELETE FROM known_faces WHERE student_id = $1", studentID); err != nil {
		return fmt.Errorf("delete old known faces for %s: %w", studentID, err)
	}

	for _, f := range faces {
		if len(f.Encoding) == 0 {
			return fmt.Errorf("known face for %s has an empty encoding", studentID)
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO known_faces (student_id, encoding, dim, source)
			VALUES ($1, $2, $3, $4)
		`, studentID, pgvector.NewVector(f.Encoding), len(f.Encoding), f.Source)
		if err != nil {
			return fmt.Errorf("insert known face for %s: %w", studentID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit known faces for %s: %w", studentID, err)
	}
	return nil
}

// DeleteKnownFaces removes all encodings for studentID.
func (r *KnownFaceRepository) DeleteKnownFaces(ctx context.Context, studentID string) error {
	if _, err := r.pool.Exec(ctx, "DELETE FROM known_faces WHERE student_id = $1", studentID); err != nil {
		return fmt.Errorf("delete known faces for %s: %w", studentID, err)
	}
	return nil
}

func scanKnownFaces(rows *sql.Rows) ([]database.KnownFace, error) {
	var faces []database.KnownFace
	for rows.Next() {
		var f database.KnownFace
		var vec pgvector.Vector
		if err := rows.Scan(&f.ID, &f.StudentID, &vec, &f.Source, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan known face: %w", err)
		}
		f.Encoding = vec.Slice()
		faces = append(faces, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate known faces: %w", err)
	}
	return faces, nil
}

var _ database.KnownFaceWriter = (*KnownFaceRepository)(nil)
