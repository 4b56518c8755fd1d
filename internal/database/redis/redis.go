// Package redis stores student records as Redis hashes keyed "{namespace}:{id}".
package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
)

// Store is a record store backed by one Redis hash per student.
type Store struct {
	client    *redis.Client
	namespace string
	log       logrus.FieldLogger
}

// New connects to Redis and verifies the connection with a ping.
func New(ctx context.Context, cfg config.StoreConfig, log logrus.FieldLogger) (*Store, error) {
	log.WithField("address", cfg.RedisAddress).Info("Connecting to Redis")

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddress,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", cfg.RedisAddress, err)
	}

	return &Store{client: client, namespace: cfg.Namespace, log: log}, nil
}

func (s *Store) key(id string) string {
	return s.namespace + ":" + id
}

// GetStudent retrieves a student record, returns nil if not found.
func (s *Store) GetStudent(ctx context.Context, id string) (*database.StudentRecord, error) {
	fields, err := s.client.HGetAll(ctx, s.key(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("get student %s: %w", id, err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	rec, err := fromFields(fields)
	if err != nil {
		return nil, fmt.Errorf("decode student %s: %w", id, err)
	}
	return rec, nil
}

// UpdateAttendance sets the attendance count and time of an existing student.
// Both fields are written in one HSET so readers never see half an update.
func (s *Store) UpdateAttendance(ctx context.Context, id string, total int, at time.Time) error {
	n, err := s.client.Exists(ctx, s.key(id)).Result()
	if err != nil {
		return fmt.Errorf("update attendance for %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("update attendance for %s: student does not exist", id)
	}

	err = s.client.HSet(ctx, s.key(id),
		database.FieldTotalAttendance, strconv.Itoa(total),
		database.FieldLastAttendanceTime, database.NewTimestamp(at).String(),
	).Err()
	if err != nil {
		return fmt.Errorf("update attendance for %s: %w", id, err)
	}
	return nil
}

// PutStudent replaces a whole student record.
func (s *Store) PutStudent(ctx context.Context, id string, rec database.StudentRecord) error {
	key := s.key(id)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, toFields(rec))
		return nil
	})
	if err != nil {
		return fmt.Errorf("put student %s: %w", id, err)
	}
	s.log.WithField("student_id", id).Debug("Stored student record")
	return nil
}

// Close closes the client.
func (s *Store) Close() error {
	return s.client.Close()
}

func toFields(rec database.StudentRecord) map[string]any {
	return map[string]any{
		database.FieldName:               rec.Name,
		database.FieldMajor:              rec.Major,
		database.FieldStartingYear:       strconv.Itoa(rec.StartingYear),
		database.FieldTotalAttendance:    strconv.Itoa(rec.TotalAttendance),
		database.FieldStanding:           rec.Standing,
		database.FieldYear:               strconv.Itoa(rec.Year),
		database.FieldLastAttendanceTime: rec.LastAttendanceTime.String(),
	}
}

func fromFields(fields map[string]string) (*database.StudentRecord, error) {
	rec := &database.StudentRecord{
		Name:     fields[database.FieldName],
		Major:    fields[database.FieldMajor],
		Standing: fields[database.FieldStanding],
	}

	for _, f := range []struct {
		name string
		dst  *int
	}{
		{database.FieldStartingYear, &rec.StartingYear},
		{database.FieldTotalAttendance, &rec.TotalAttendance},
		{database.FieldYear, &rec.Year},
	} {
		v, ok := fields[f.name]
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.name, err)
		}
		*f.dst = n
	}

	ts, err := database.ParseTimestamp(fields[database.FieldLastAttendanceTime])
	if err != nil {
		return nil, fmt.Errorf("field %s: %w", database.FieldLastAttendanceTime, err)
	}
	rec.LastAttendanceTime = ts
	return rec, nil
}

var _ database.StudentWriter = (*Store)(nil)
