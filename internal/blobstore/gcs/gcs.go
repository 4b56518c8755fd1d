// Package gcs reads and writes blobs in a Google Cloud Storage bucket,
// which is also where Firebase Storage keeps its objects.
package gcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	storage "google.golang.org/api/storage/v1"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// Store is a bucket-scoped blob store.
type Store struct {
	svc    *storage.Service
	bucket string
}

// New authenticates with a service account key and returns a store for bucket.
func New(ctx context.Context, bucket string, credentialsJSON []byte) (*Store, error) {
	return NewWithOptions(ctx, bucket, option.WithCredentialsJSON(credentialsJSON))
}

// NewWithOptions creates a store with explicit client options (endpoint, HTTP client).
func NewWithOptions(ctx context.Context, bucket string, opts ...option.ClientOption) (*Store, error) {
	if bucket == "" {
		return nil, errors.New("storage bucket is required")
	}
	svc, err := storage.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &Store{svc: svc, bucket: bucket}, nil
}

// Get downloads an object, returns nil if it does not exist.
func (s *Store) Get(ctx context.Context, name string) ([]byte, error) {
	resp, err := s.svc.Objects.Get(s.bucket, name).Context(ctx).Download()
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", name, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return data, nil
}

// Put uploads an object, replacing any existing one.
func (s *Store) Put(ctx context.Context, name string, data []byte, contentType string) error {
	obj := &storage.Object{Name: name, ContentType: contentType}
	_, err := s.svc.Objects.Insert(s.bucket, obj).
		Media(bytes.NewReader(data), googleapi.ContentType(contentType)).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("upload %s: %w", name, err)
	}
	return nil
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}

var _ database.BlobWriter = (*Store)(nil)
