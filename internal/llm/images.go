package llm

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"eval-batcher/internal/core/tasks"

	"github.com/go-resty/resty/v2"
)

// ImageLoader resolves an image_url value back into bytes for providers that
// need the image inline.
type ImageLoader struct {
	client *resty.Client
}

func NewImageLoader() *ImageLoader {
	return &ImageLoader{client: resty.New().SetTimeout(time.Minute)}
}

func (l *ImageLoader) Load(ctx context.Context, ref string) ([]byte, string, error) {
	if strings.HasPrefix(ref, "data:") {
		return tasks.DecodeDataURL(ref)
	}

	u, err := url.Parse(ref)
	if err != nil {
		return nil, "", fmt.Errorf("invalid image url: %w", err)
	}

	switch u.Scheme {
	case "file":
		data, err := os.ReadFile(u.Path)
		if err != nil {
			return nil, "", fmt.Errorf("error reading image %s: %w", u.Path, err)
		}
		return data, tasks.SniffImageMime(data), nil
	case "http", "https":
		res, err := l.client.R().SetContext(ctx).Get(ref)
		if err != nil {
			return nil, "", fmt.Errorf("error downloading image: %w", err)
		}
		if !res.IsSuccess() {
			return nil, "", fmt.Errorf("error downloading image: status %d", res.StatusCode())
		}
		data := res.Body()
		return data, tasks.SniffImageMime(data), nil
	default:
		return nil, "", fmt.Errorf("unsupported image url scheme %q", u.Scheme)
	}
}
