package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"eval-batcher/internal/core/tasks"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiEvaluator runs a task through the Gemini api. The task's model field
// names an OpenAI model, so the Gemini model is configured separately.
type GeminiEvaluator struct {
	client *genai.Client
	model  string
	images *ImageLoader
}

func NewGeminiEvaluator(ctx context.Context, apiKey, model string, opts ...option.ClientOption) (*GeminiEvaluator, error) {
	if apiKey == "" {
		return nil, errors.New("gemini api key is empty")
	}
	cl, err := genai.NewClient(ctx, append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("error creating gemini client: %w", err)
	}

	return &GeminiEvaluator{
		client: cl,
		model:  strings.TrimSpace(model),
		images: NewImageLoader(),
	}, nil
}

func (e *GeminiEvaluator) Name() string { return "gemini" }

func (e *GeminiEvaluator) Close() error {
	return e.client.Close()
}

func (e *GeminiEvaluator) Evaluate(ctx context.Context, task tasks.Task) (string, error) {
	text, imageURL := task.UserContent()

	m := e.client.GenerativeModel(e.model)
	m.GenerationConfig = genai.GenerationConfig{
		Temperature:      ptrFloat32(float32(task.Body.Temperature)),
		ResponseMIMEType: "application/json",
	}
	m.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(task.SystemPrompt())},
	}

	var parts []genai.Part
	if imageURL != "" {
		data, mime, err := e.images.Load(ctx, imageURL)
		if err != nil {
			return "", fmt.Errorf("error loading image for %s: %w", task.CustomID, err)
		}
		parts = append(parts, &genai.Blob{MIMEType: mime, Data: data})
	}
	parts = append(parts, genai.Text(text))

	resp, err := m.GenerateContent(ctx, parts...)
	if err != nil {
		slog.Error("gemini error: generate content failed", "custom_id", task.CustomID, "error", err)
		return "", err
	}

	txt := firstText(resp)
	if txt == "" {
		return "", fmt.Errorf("empty gemini response for %s", task.CustomID)
	}
	return stripCodeFences(strings.TrimSpace(txt)), nil
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	for _, c := range resp.Candidates {
		if c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				return string(t)
			}
		}
	}
	return ""
}

// stripCodeFences removes a ```json ... ``` wrapper that models sometimes add
// despite the json response type.
func stripCodeFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func ptrFloat32(v float32) *float32 { return &v }
