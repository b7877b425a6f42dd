package storage

import (
	"context"
	"io"
	"time"
)

// ObjectStore holds the images referenced by tasks and the archived run
// artifacts.
type ObjectStore interface {
	CreateBucket(ctx context.Context, bucket string) error

	PutObject(ctx context.Context, bucket, key string, data io.Reader) error

	GetObject(ctx context.Context, bucket, key string) ([]byte, error)

	// PresignGet returns a url that grants read access to the object for ttl.
	PresignGet(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)
}

// UploadFile copies a local file into the store under key.
func UploadFile(ctx context.Context, store ObjectStore, bucket, key, path string) error {
	f, err := openLocal(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return store.PutObject(ctx, bucket, key, f)
}
