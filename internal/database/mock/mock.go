// Package mock provides in-memory implementations of database interfaces for testing.
package mock

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// Update records one UpdateAttendance call.
type Update struct {
	ID    string
	Total int
	At    time.Time
}

// MockStudentStore is a mock implementation of database.StudentWriter
type MockStudentStore struct {
	mu       sync.RWMutex
	students map[string]database.StudentRecord
	updates  []Update
	gets     int

	// Error injection
	GetError    error
	UpdateError error
	PutError    error
}

// NewMockStudentStore creates a new mock student store
func NewMockStudentStore() *MockStudentStore {
	return &MockStudentStore{
		students: make(map[string]database.StudentRecord),
	}
}

// AddStudent seeds a record without counting it as a write
func (m *MockStudentStore) AddStudent(id string, rec database.StudentRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.students[id] = rec
}

// GetStudent returns a copy of the stored record, or nil
func (m *MockStudentStore) GetStudent(ctx context.Context, id string) (*database.StudentRecord, error) {
	m.mu.Lock()
	m.gets++
	m.mu.Unlock()

	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.students[id]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// UpdateAttendance updates the attendance fields of an existing or new record
func (m *MockStudentStore) UpdateAttendance(ctx context.Context, id string, total int, at time.Time) error {
	if m.UpdateError != nil {
		return m.UpdateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.students[id]
	rec.TotalAttendance = total
	rec.LastAttendanceTime = database.NewTimestamp(at)
	m.students[id] = rec
	m.updates = append(m.updates, Update{ID: id, Total: total, At: at})
	return nil
}

// PutStudent replaces the stored record
func (m *MockStudentStore) PutStudent(ctx context.Context, id string, rec database.StudentRecord) error {
	if m.PutError != nil {
		return m.PutError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.students[id] = rec
	return nil
}

// Updates returns the UpdateAttendance calls seen so far
func (m *MockStudentStore) Updates() []Update {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.updates)
}

// Gets returns how many times GetStudent was called
func (m *MockStudentStore) Gets() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.gets
}

// IDs returns the stored keys in sorted order
func (m *MockStudentStore) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Sorted(maps.Keys(m.students))
}

// MockBlobStore is a mock implementation of database.BlobWriter
type MockBlobStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
	gets    []string

	// Error injection
	GetError error
	PutError error
}

// NewMockBlobStore creates a new mock blob store
func NewMockBlobStore() *MockBlobStore {
	return &MockBlobStore{
		objects: make(map[string][]byte),
	}
}

// AddObject seeds an object
func (m *MockBlobStore) AddObject(name string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[name] = slices.Clone(data)
}

// Get returns the object or nil if absent
func (m *MockBlobStore) Get(ctx context.Context, name string) ([]byte, error) {
	m.mu.Lock()
	m.gets = append(m.gets, name)
	m.mu.Unlock()

	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[name]
	if !ok {
		return nil, nil
	}
	return slices.Clone(data), nil
}

// Put stores an object
func (m *MockBlobStore) Put(ctx context.Context, name string, data []byte, contentType string) error {
	if m.PutError != nil {
		return m.PutError
	}
	m.AddObject(name, data)
	return nil
}

// Requested returns the names passed to Get, in call order
func (m *MockBlobStore) Requested() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.gets)
}

// MockKnownFaceStore is a mock implementation of database.KnownFaceWriter
type MockKnownFaceStore struct {
	mu     sync.RWMutex
	faces  []database.KnownFace
	nextID int64

	// Error injection
	ListError   error
	CountError  error
	SaveError   error
	DeleteError error
}

// NewMockKnownFaceStore creates a new mock known face store
func NewMockKnownFaceStore() *MockKnownFaceStore {
	return &MockKnownFaceStore{nextID: 1}
}

// ListKnownFaces returns all faces in insertion order
func (m *MockKnownFaceStore) ListKnownFaces(ctx context.Context) ([]database.KnownFace, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.faces), nil
}

// CountKnownFaces returns the number of faces
func (m *MockKnownFaceStore) CountKnownFaces(ctx context.Context) (int, error) {
	if m.CountError != nil {
		return 0, m.CountError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.faces), nil
}

// SaveKnownFaces replaces faces for studentID
func (m *MockKnownFaceStore) SaveKnownFaces(ctx context.Context, studentID string, faces []database.KnownFace) error {
	if m.SaveError != nil {
		return m.SaveError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteLocked(studentID)
	for _, f := range faces {
		f.ID = m.nextID
		f.StudentID = studentID
		m.nextID++
		m.faces = append(m.faces, f)
	}
	return nil
}

// DeleteKnownFaces removes faces for studentID
func (m *MockKnownFaceStore) DeleteKnownFaces(ctx context.Context, studentID string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteLocked(studentID)
	return nil
}

func (m *MockKnownFaceStore) deleteLocked(studentID string) {
	m.faces = slices.DeleteFunc(m.faces, func(f database.KnownFace) bool {
		return f.StudentID == studentID
	})
}

var (
	_ database.StudentWriter   = (*MockStudentStore)(nil)
	_ database.BlobWriter      = (*MockBlobStore)(nil)
	_ database.KnownFaceWriter = (*MockKnownFaceStore)(nil)
)
