package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// TimestampLayout is how attendance times are stored in the record store (local time).
const TimestampLayout = "2006-01-02 15:04:05"

// Field names of a student record in the remote store.
const (
	FieldName               = "name"
	FieldMajor              = "major"
	FieldStartingYear       = "Starting_year"
	FieldTotalAttendance    = "total_attendance"
	FieldStanding           = "standing"
	FieldYear               = "year"
	FieldLastAttendanceTime = "Last_attendance_time"
)

// Timestamp is a time.Time that (un)marshals using TimestampLayout.
// An empty string decodes to the zero time.
type Timestamp struct {
	time.Time
}

// NewTimestamp truncates t to whole seconds, the precision the store keeps.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t.Truncate(time.Second)}
}

// String formats the timestamp for the store, or "" for the zero time.
func (t Timestamp) String() string {
	if t.IsZero() {
		return ""
	}
	return t.Format(TimestampLayout)
}

// ParseTimestamp parses a store timestamp in the local time zone.
func ParseTimestamp(s string) (Timestamp, error) {
	if s == "" {
		return Timestamp{}, nil
	}
	tt, err := time.ParseInLocation(TimestampLayout, s, time.Local)
	if err != nil {
		return Timestamp{}, fmt.Errorf("parse attendance time %q: %w", s, err)
	}
	return Timestamp{Time: tt}, nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("attendance time must be a string: %w", err)
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func (t Timestamp) MarshalYAML() (any, error) {
	return t.String(), nil
}

func (t *Timestamp) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := ParseTimestamp(value.Value)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// StudentRecord is the profile the record store keeps per identity key.
type StudentRecord struct {
	Name               string    `json:"name" yaml:"name"`
	Major              string    `json:"major" yaml:"major"`
	StartingYear       int       `json:"Starting_year" yaml:"Starting_year"`
	TotalAttendance    int       `json:"total_attendance" yaml:"total_attendance"`
	Standing           string    `json:"standing" yaml:"standing"`
	Year               int       `json:"year" yaml:"year"`
	LastAttendanceTime Timestamp `json:"Last_attendance_time" yaml:"Last_attendance_time"`
}

// StudentReader provides read access to student records.
type StudentReader interface {
	// GetStudent returns the record for id, or nil if the store has none.
	GetStudent(ctx context.Context, id string) (*StudentRecord, error)
}

// StudentWriter provides write access to student records.
type StudentWriter interface {
	StudentReader

	// UpdateAttendance sets only the attendance count and time fields.
	UpdateAttendance(ctx context.Context, id string, total int, at time.Time) error

	// PutStudent replaces the whole record.
	PutStudent(ctx context.Context, id string, rec StudentRecord) error
}

// BlobReader provides read access to the blob store.
type BlobReader interface {
	// Get returns the object stored under name, or nil if it does not exist.
	Get(ctx context.Context, name string) ([]byte, error)
}

// BlobWriter provides write access to the blob store.
type BlobWriter interface {
	BlobReader

	Put(ctx context.Context, name string, data []byte, contentType string) error
}
