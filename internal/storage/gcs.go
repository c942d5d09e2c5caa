package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"
)

type GCSArchiver struct {
	client *gcs.Client
	bucket string
}

func NewGCSArchiver(ctx context.Context, bucket string) (*GCSArchiver, error) {
	c, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return &GCSArchiver{client: c, bucket: bucket}, nil
}

func (a *GCSArchiver) Close() error { return a.client.Close() }

// ObjectName lays archived audio out by upload day.
func ObjectName(prefix, sessionID, filename string, at time.Time) string {
	ext := strings.ToLower(path.Ext(filename))
	return path.Join(prefix, at.UTC().Format("2006/01/02"), sessionID+ext)
}

func (a *GCSArchiver) Archive(ctx context.Context, objectName, contentType string, r io.Reader) (string, error) {
	obj := a.client.Bucket(a.bucket).Object(objectName)

	w := obj.NewWriter(ctx)
	w.ContentType = contentType

	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}
	return fmt.Sprintf("gs://%s/%s", a.bucket, objectName), nil
}
