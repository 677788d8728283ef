// Package gcsarchive stores the original bytes of uploaded CSV statements in
// Cloud Storage so an import can always be traced back to its source file.
package gcsarchive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
)

const uploadTimeout = 2 * time.Minute

// Archiver writes uploaded statements to one GCS bucket. It assumes
// Application Default Credentials are configured.
type Archiver struct {
	client *storage.Client
	bucket string
}

func New(ctx context.Context, bucket string) (*Archiver, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("New: creating storage client: %w", err)
	}
	return &Archiver{client: client, bucket: bucket}, nil
}

func NewWithClient(client *storage.Client, bucket string) *Archiver {
	return &Archiver{client: client, bucket: bucket}
}

func (a *Archiver) Close() error {
	return a.client.Close()
}

// Archive writes the CSV bytes under csv/<accountID>/<uuid>/<fileName> and
// returns the resulting gs:// URI.
func (a *Archiver) Archive(ctx context.Context, accountID, fileName string, data []byte) (string, error) {
	objectName := path.Join("csv", accountID, uuid.NewString(), path.Base(fileName))

	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	w := a.client.Bucket(a.bucket).Object(objectName).NewWriter(ctx)
	w.ContentType = "text/csv"
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("Archive: writing object %s: %w", objectName, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("Archive: finalizing upload %s: %w", objectName, err)
	}

	return fmt.Sprintf("gs://%s/%s", a.bucket, objectName), nil
}

// Fetch downloads an archived statement by its gs:// URI.
func (a *Archiver) Fetch(ctx context.Context, gcsURI string) ([]byte, error) {
	bucket, object, err := splitURI(gcsURI)
	if err != nil {
		return nil, err
	}

	rc, err := a.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("Fetch: reading object %s/%s: %w", bucket, object, err)
	}
	defer rc.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, rc); err != nil {
		return nil, fmt.Errorf("Fetch: reading bytes: %w", err)
	}
	return buf.Bytes(), nil
}

func splitURI(gcsURI string) (bucket, object string, err error) {
	if !strings.HasPrefix(gcsURI, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", gcsURI)
	}
	parts := strings.SplitN(strings.TrimPrefix(gcsURI, "gs://"), "/", 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", gcsURI)
	}
	return parts[0], parts[1], nil
}
