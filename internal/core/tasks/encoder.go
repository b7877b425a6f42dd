package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"eval-batcher/internal/core/rubric"
)

var imageExtensions = []string{".png", ".jpg", ".jpeg"}

// ListImages returns the png and jpeg files directly inside dir, sorted by name.
func ListImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("error listing image folder %s: %w", dir, err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		for _, allowed := range imageExtensions {
			if ext == allowed {
				paths = append(paths, filepath.Join(dir, entry.Name()))
				break
			}
		}
	}
	sort.Strings(paths)

	return paths, nil
}

func TaskID(index int) string {
	return fmt.Sprintf("task-%d", index)
}

type Encoder struct {
	rubric      *rubric.Rubric
	media       MediaResolver
	model       string
	temperature float64
}

func NewEncoder(r *rubric.Rubric, media MediaResolver, model string, temperature float64) *Encoder {
	return &Encoder{
		rubric:      r,
		media:       media,
		model:       model,
		temperature: temperature,
	}
}

// Encode builds exactly one task per path. Task ids follow input order.
func (e *Encoder) Encode(ctx context.Context, paths []string) ([]Task, error) {
	out := make([]Task, 0, len(paths))

	for i, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		url, err := e.media.Resolve(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("error encoding task %d: %w", i, err)
		}

		out = append(out, e.newTask(TaskID(i), url))
	}

	slog.Info("encoded tasks", "count", len(out), "rubric", e.rubric.Version, "model", e.model)

	return out, nil
}

func (e *Encoder) newTask(id, imageURL string) Task {
	return Task{
		CustomID: id,
		Method:   "POST",
		URL:      ChatCompletionsURL,
		Body: Request{
			Model:          e.model,
			Temperature:    e.temperature,
			ResponseFormat: ResponseFormat{Type: jsonObjectFormat},
			Messages: []Message{
				{Role: "system", Text: e.rubric.SystemPrompt},
				{
					Role: "user",
					Parts: []ContentPart{
						{Type: "image_url", ImageURL: &ImageURL{URL: imageURL}},
						{Type: "text", Text: e.rubric.Instruction},
					},
				},
			},
		},
	}
}
