//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/logging"
)

func setupTestContainer(t *testing.T) (*Pool, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "pgvector/pgvector:pg16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Docker not available or container failed to start, skipping integration test: %v", err)
		return nil, func() {}
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	cfg := config.StoreConfig{
		DatabaseURL:  fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port()),
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	}

	pool, err := Open(ctx, cfg, logging.Discard())
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to open pool: %v", err)
	}

	cleanup := func() {
		pool.Close()
		container.Terminate(ctx)
	}

	return pool, cleanup
}

func TestMigrations(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()

	// Applying again is a no-op.
	if err := pool.Migrate(ctx); err != nil {
		t.Fatalf("Second migrate failed: %v", err)
	}

	versions, err := pool.MigrationsApplied(ctx)
	if err != nil {
		t.Fatalf("Failed to list migrations: %v", err)
	}
	if len(versions) != 2 || versions[0] != "001_students.sql" {
		t.Errorf("Unexpected migrations: %v", versions)
	}

	// Concurrent runs wait on the advisory lock instead of failing.
	errs := make(chan error, 2)
	for range 2 {
		go func() { errs <- pool.Migrate(ctx) }()
	}
	for range 2 {
		if err := <-errs; err != nil {
			t.Errorf("Concurrent migrate failed: %v", err)
		}
	}
}

func TestStudentRepository(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	repo := NewStudentRepository(pool)

	t.Run("Missing", func(t *testing.T) {
		rec, err := repo.GetStudent(ctx, "nobody")
		if err != nil {
			t.Fatalf("GetStudent failed: %v", err)
		}
		if rec != nil {
			t.Errorf("Expected nil, got %+v", rec)
		}
	})

	last := time.Date(2022, 12, 11, 0, 54, 34, 0, time.Local)

	t.Run("PutAndGet", func(t *testing.T) {
		err := repo.PutStudent(ctx, "852741", database.StudentRecord{
			Name:               "Emly Blunt",
			Major:              "Economics",
			StartingYear:       2021,
			TotalAttendance:    12,
			Standing:           "B",
			Year:               1,
			LastAttendanceTime: database.NewTimestamp(last),
		})
		if err != nil {
			t.Fatalf("PutStudent failed: %v", err)
		}

		rec, err := repo.GetStudent(ctx, "852741")
		if err != nil || rec == nil {
			t.Fatalf("GetStudent = %v, %v", rec, err)
		}
		if rec.Name != "Emly Blunt" || rec.TotalAttendance != 12 || rec.Year != 1 {
			t.Errorf("Unexpected record: %+v", rec)
		}
		if !rec.LastAttendanceTime.Equal(last) {
			t.Errorf("Expected time %v, got %v", last, rec.LastAttendanceTime)
		}
	})

	t.Run("UpdateAttendance", func(t *testing.T) {
		now := time.Date(2024, 3, 1, 8, 0, 0, 0, time.Local)
		if err := repo.UpdateAttendance(ctx, "852741", 13, now); err != nil {
			t.Fatalf("UpdateAttendance failed: %v", err)
		}

		rec, _ := repo.GetStudent(ctx, "852741")
		if rec.TotalAttendance != 13 || !rec.LastAttendanceTime.Equal(now) {
			t.Errorf("Unexpected record after update: %+v", rec)
		}
		if rec.Major != "Economics" {
			t.Error("Update must keep other fields")
		}
	})

	t.Run("UpdateMissing", func(t *testing.T) {
		if err := repo.UpdateAttendance(ctx, "nobody", 1, time.Now()); err == nil {
			t.Error("Expected error for missing student")
		}
	})
}

func TestKnownFaceRepository(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	repo := NewKnownFaceRepository(pool)

	encoding := func(seed float32) []float32 {
		enc := make([]float32, 128)
		for i := range enc {
			enc[i] = seed + float32(i)/128
		}
		return enc
	}

	if err := repo.SaveKnownFaces(ctx, "321654", []database.KnownFace{
		{Encoding: encoding(0), Source: "images/321654.png"},
		{Encoding: encoding(1), Source: "images/321654_2.png"},
	}); err != nil {
		t.Fatalf("SaveKnownFaces failed: %v", err)
	}
	if err := repo.SaveKnownFaces(ctx, "963852", []database.KnownFace{{Encoding: encoding(2)}}); err != nil {
		t.Fatalf("SaveKnownFaces failed: %v", err)
	}

	count, err := repo.CountKnownFaces(ctx)
	if err != nil || count != 3 {
		t.Fatalf("CountKnownFaces = %d, %v; want 3", count, err)
	}

	// Saving again replaces the identity's encodings.
	if err := repo.SaveKnownFaces(ctx, "321654", []database.KnownFace{{Encoding: encoding(3)}}); err != nil {
		t.Fatalf("SaveKnownFaces failed: %v", err)
	}

	faces, err := repo.ListKnownFaces(ctx)
	if err != nil {
		t.Fatalf("ListKnownFaces failed: %v", err)
	}
	if len(faces) != 2 {
		t.Fatalf("Expected 2 faces, got %d", len(faces))
	}
	if faces[0].StudentID != "963852" || faces[1].StudentID != "321654" {
		t.Errorf("Unexpected order: %s, %s", faces[0].StudentID, faces[1].StudentID)
	}
	if len(faces[1].Encoding) != 128 || faces[1].Encoding[0] != 3 {
		t.Errorf("Encoding not round-tripped: %v", faces[1].Encoding[:2])
	}

	if err := repo.DeleteKnownFaces(ctx, "963852"); err != nil {
		t.Fatalf("DeleteKnownFaces failed: %v", err)
	}
	if count, _ := repo.CountKnownFaces(ctx); count != 1 {
		t.Errorf("Expected 1 face after delete, got %d", count)
	}
}
