package tasks

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"eval-batcher/internal/storage"
)

// MediaResolver turns a local image into the url placed in the request's
// image_url part.
type MediaResolver interface {
	Resolve(ctx context.Context, path string) (string, error)
}

// InlineMedia embeds the image bytes into the request as a base64 data url.
type InlineMedia struct{}

var _ MediaResolver = InlineMedia{}

func (InlineMedia) Resolve(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("error reading image %s: %w", path, err)
	}
	return MakeDataURL(SniffImageMime(data), base64.StdEncoding.EncodeToString(data)), nil
}

// ObjectStoreMedia uploads each image to a bucket and references it through a
// presigned url, which keeps the submission artifact small.
type ObjectStoreMedia struct {
	store  storage.ObjectStore
	bucket string
	prefix string
	ttl    time.Duration
}

var _ MediaResolver = (*ObjectStoreMedia)(nil)

func NewObjectStoreMedia(store storage.ObjectStore, bucket, prefix string, ttl time.Duration) *ObjectStoreMedia {
	return &ObjectStoreMedia{store: store, bucket: bucket, prefix: prefix, ttl: ttl}
}

func (m *ObjectStoreMedia) Resolve(ctx context.Context, path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("error opening image %s: %w", path, err)
	}
	defer file.Close()

	key := m.prefix + "/" + filepath.Base(path)
	if err := m.store.PutObject(ctx, m.bucket, key, file); err != nil {
		return "", fmt.Errorf("error uploading image %s: %w", path, err)
	}

	url, err := m.store.PresignGet(ctx, m.bucket, key, m.ttl)
	if err != nil {
		return "", fmt.Errorf("error presigning image %s: %w", key, err)
	}
	return url, nil
}

// SniffImageMime detects jpeg and png from magic bytes. Anything else is sent
// as jpeg, which is what the provider assumes for unlabeled images.
func SniffImageMime(b []byte) string {
	if len(b) >= 2 && b[0] == 0xFF && b[1] == 0xD8 {
		return "image/jpeg"
	}
	if len(b) >= 8 &&
		b[0] == 0x89 && b[1] == 0x50 && b[2] == 0x4E && b[3] == 0x47 &&
		b[4] == 0x0D && b[5] == 0x0A && b[6] == 0x1A && b[7] == 0x0A {
		return "image/png"
	}
	return "image/jpeg"
}

func MakeDataURL(mime, b64 string) string {
	return "data:" + mime + ";base64," + b64
}

var ErrNotDataURL = errors.New("not a base64 data url")

// DecodeDataURL returns the payload and mime type of a data:<mime>;base64,<payload> url.
func DecodeDataURL(s string) ([]byte, string, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(s), "data:")
	if !ok {
		return nil, "", ErrNotDataURL
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, "", fmt.Errorf("%w: missing payload", ErrNotDataURL)
	}
	mime, ok := strings.CutSuffix(header, ";base64")
	if !ok {
		return nil, "", fmt.Errorf("%w: payload is not base64", ErrNotDataURL)
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("error decoding data url: %w", err)
	}
	if mime == "" {
		mime = SniffImageMime(data)
	}
	return data, mime, nil
}
