// Package archive stores uploaded statement PDFs in Google Cloud Storage so
// the original document survives after extraction. Objects are addressed by
// gs:// URIs.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

const uploadTimeout = 2 * time.Minute

// Service is the storage boundary for statement documents.
type Service interface {
	// Store uploads the document under statements/<name> and returns its
	// gs:// URI.
	Store(ctx context.Context, name string, data []byte) (string, error)

	// Fetch downloads the document bytes at the given gs:// URI.
	Fetch(ctx context.Context, uri string) ([]byte, error)
}

// GCSArchive is the Cloud Storage implementation of Service. It assumes
// application default credentials are configured.
type GCSArchive struct {
	bucket string
}

func NewGCSArchive(bucket string) *GCSArchive {
	return &GCSArchive{bucket: bucket}
}

func (a *GCSArchive) Store(ctx context.Context, name string, data []byte) (string, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return "", fmt.Errorf("Store: create storage client: %w", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	objectName := "statements/" + path.Base(name)
	w := client.Bucket(a.bucket).Object(objectName).NewWriter(ctx)
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("Store: copy to GCS writer: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("Store: finalize upload: %w", err)
	}
	return fmt.Sprintf("gs://%s/%s", a.bucket, objectName), nil
}

func (a *GCSArchive) Fetch(ctx context.Context, uri string) ([]byte, error) {
	bucket, objectPath, err := SplitURI(uri)
	if err != nil {
		return nil, fmt.Errorf("Fetch: %w", err)
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("Fetch: create storage client: %w", err)
	}
	defer client.Close()

	rc, err := client.Bucket(bucket).Object(objectPath).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("Fetch: reading object %s/%s: %w", bucket, objectPath, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("Fetch: reading bytes: %w", err)
	}
	return data, nil
}

// SplitURI splits a gs:// URI into bucket and object path.
func SplitURI(uri string) (bucket, object string, err error) {
	if !strings.HasPrefix(uri, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", uri)
	}
	parts := strings.SplitN(strings.TrimPrefix(uri, "gs://"), "/", 2)
	if len(parts) != 2 || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", uri)
	}
	return parts[0], parts[1], nil
}

// Filename extracts the document filename from a gs:// URI,
// e.g. "gs://bucket/statements/file.pdf" becomes "file.pdf".
func Filename(uri string) string {
	trimmed := strings.TrimPrefix(uri, "gs://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) < 2 {
		return trimmed
	}
	return path.Base(parts[1])
}

var _ Service = (*GCSArchive)(nil)
