package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// StudentRepository stores student records in the students table.
type StudentRepository struct {
	pool *Pool
}

// NewStudentRepository creates a new PostgreSQL student repository.
func NewStudentRepository(pool *Pool) *StudentRepository {
	return &StudentRepository{pool: pool}
}

// GetStudent retrieves a student record, returns nil if not found.
func (r *StudentRepository) GetStudent(ctx context.Context, id string) (*database.StudentRecord, error) {
	query := `
		SELECT name, major, starting_year, total_attendance, standing, year, last_attendance_time
		FROM students
		WHERE id = $1
	`

	var rec database.StudentRecord
	var last sql.NullTime
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&rec.Name, &rec.Major, &rec.StartingYear, &rec.TotalAttendance,
		&rec.Standing, &rec.Year, &last,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get student %s: %w", id, err)
	}

	if last.Valid {
		rec.LastAttendanceTime = database.NewTimestamp(asLocal(last.Time))
	}
	return &rec, nil
}

// UpdateAttendance sets the attendance count and time of an existing student.
func (r *StudentRepository) UpdateAttendance(ctx context.Context, id string, total int, at time.Time) error {
	res, err := r.pool.Exec(ctx, `
		UPDATE students
		SET total_attendance = $2, last_attendance_time = $3, updated_at = NOW()
		WHERE id = $1
	`, id, total, wallClock(database.NewTimestamp(at).Time))
	if err != nil {
		return fmt.Errorf("update attendance for %s: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update attendance for %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("update attendance for %s: student does not exist", id)
	}
	return nil
}

// PutStudent inserts or replaces a whole student record.
func (r *StudentRepository) PutStudent(ctx context.Context, id string, rec database.StudentRecord) error {
	var last any
	if !rec.LastAttendanceTime.IsZero() {
		last = wallClock(rec.LastAttendanceTime.Time)
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO students (id, name, major, starting_year, total_attendance, standing, year, last_attendance_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			major = EXCLUDED.major,
			starting_year = EXCLUDED.starting_year,
			total_attendance = EXCLUDED.total_attendance,
			standing = EXCLUDED.standing,
			year = EXCLUDED.year,
			last_attendance_time = EXCLUDED.last_attendance_time,
			updated_at = NOW()
	`, id, rec.Name, rec.Major, rec.StartingYear, rec.TotalAttendance, rec.Standing, rec.Year, last)
	if err != nil {
		return fmt.Errorf("put student %s: %w", id, err)
	}
	return nil
}

// The column is a TIMESTAMP without zone holding local wall-clock time,
// like the string form kept by the other stores.
func wallClock(t time.Time) time.Time {
	t = t.In(time.Local)
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
}

func asLocal(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.Local)
}

var _ database.StudentWriter = (*StudentRepository)(nil)
