// Package firebase stores student records in a Firebase Realtime Database
// through its REST API.
package firebase

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/kozaktomas/face-attendance/internal/database"
)

var scopes = []string{
	"https://www.googleapis.com/auth/firebase.database",
	"https://www.googleapis.com/auth/userinfo.email",
}

// Client is a Realtime Database client scoped to one namespace (e.g. "Students").
type Client struct {
	baseURL   string
	namespace string
	http      *http.Client
}

// New authenticates with a service account key and returns a client for databaseURL.
func New(ctx context.Context, databaseURL, namespace string, credentialsJSON []byte) (*Client, error) {
	creds, err := google.CredentialsFromJSON(ctx, credentialsJSON, scopes...)
	if err != nil {
		return nil, fmt.Errorf("parse service account key: %w", err)
	}
	if _, err := creds.TokenSource.Token(); err != nil {
		return nil, fmt.Errorf("obtain access token: %w", err)
	}
	return NewWithHTTPClient(databaseURL, namespace, oauth2.NewClient(ctx, creds.TokenSource))
}

// NewWithHTTPClient creates a client that sends requests through hc as-is.
// Used with the emulator and in tests.
func NewWithHTTPClient(databaseURL, namespace string, hc *http.Client) (*Client, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database URL is required")
	}
	if _, err := url.Parse(databaseURL); err != nil {
		return nil, fmt.Errorf("invalid database URL: %w", err)
	}
	return &Client{
		baseURL:   strings.TrimSuffix(databaseURL, "/"),
		namespace: strings.Trim(namespace, "/"),
		http:      hc,
	}, nil
}

func (c *Client) resolveURL(path string) string {
	return c.baseURL + "/" + path + ".json"
}

// studentPath returns the REST path of a student record.
func (c *Client) studentPath(id string) (string, error) {
	if id == "" || strings.ContainsAny(id, ".$#[]/") {
		return "", fmt.Errorf("invalid student id %q", id)
	}
	return c.namespace + "/" + url.PathEscape(id), nil
}

// GetStudent retrieves a student record, returns nil if not found.
func (c *Client) GetStudent(ctx context.Context, id string) (*database.StudentRecord, error) {
	path, err := c.studentPath(id)
	if err != nil {
		return nil, err
	}
	rec, err := doGetJSON[database.StudentRecord](ctx, c, path)
	if err != nil {
		return nil, fmt.Errorf("get student %s: %w", id, err)
	}
	return rec, nil
}

// UpdateAttendance sets the attendance count and time with a single PATCH.
func (c *Client) UpdateAttendance(ctx context.Context, id string, total int, at time.Time) error {
	path, err := c.studentPath(id)
	if err != nil {
		return err
	}
	fields := map[string]any{
		database.FieldTotalAttendance:    total,
		database.FieldLastAttendanceTime: database.NewTimestamp(at).String(),
	}
	if err := doPatchJSON(ctx, c, path, fields); err != nil {
		return fmt.Errorf("update attendance for %s: %w", id, err)
	}
	return nil
}

// PutStudent replaces a whole student record.
func (c *Client) PutStudent(ctx context.Context, id string, rec database.StudentRecord) error {
	path, err := c.studentPath(id)
	if err != nil {
		return err
	}
	if err := doPutJSON(ctx, c, path, rec); err != nil {
		return fmt.Errorf("put student %s: %w", id, err)
	}
	return nil
}

// Close is a no-op.
func (c *Client) Close() error {
	return nil
}

var _ database.StudentWriter = (*Client)(nil)
