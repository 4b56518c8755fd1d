// Package blobstore holds helpers shared by the blob store backends.
package blobstore

import (
	"mime"
	"path"
)

// ContentType guesses a blob's MIME type from its name, defaulting to octet-stream.
func ContentType(name string) string {
	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
