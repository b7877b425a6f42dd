package llm

import (
	"context"
	"fmt"
	"log/slog"

	"eval-batcher/internal/core/tasks"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// LangchainEvaluator runs a task as a single chat completion through
// langchaingo's openai client.
type LangchainEvaluator struct {
	llm *openai.LLM
}

func NewLangchainEvaluator(apiKey, baseURL, model string, opts ...openai.Option) (*LangchainEvaluator, error) {
	all := []openai.Option{openai.WithToken(apiKey), openai.WithModel(model)}
	if baseURL != "" {
		all = append(all, openai.WithBaseURL(baseURL))
	}
	all = append(all, opts...)

	client, err := openai.New(all...)
	if err != nil {
		return nil, fmt.Errorf("error creating openai client: %w", err)
	}
	return &LangchainEvaluator{llm: client}, nil
}

func (e *LangchainEvaluator) Name() string { return "langchain" }

func (e *LangchainEvaluator) Evaluate(ctx context.Context, task tasks.Task) (string, error) {
	text, imageURL := task.UserContent()

	user := llms.MessageContent{Role: llms.ChatMessageTypeHuman}
	if imageURL != "" {
		user.Parts = append(user.Parts, llms.ImageURLPart(imageURL))
	}
	user.Parts = append(user.Parts, llms.TextPart(text))

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, task.SystemPrompt()),
		user,
	}

	opts := []llms.CallOption{llms.WithTemperature(task.Body.Temperature)}
	if task.Body.Model != "" {
		opts = append(opts, llms.WithModel(task.Body.Model))
	}
	if task.Body.ResponseFormat.Type == "json_object" {
		opts = append(opts, llms.WithJSONMode())
	}

	resp, err := e.llm.GenerateContent(ctx, messages, opts...)
	if err != nil {
		slog.Error("openai error: chat completions failed", "custom_id", task.CustomID, "error", err)
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty response for %s", task.CustomID)
	}

	return resp.Choices[0].Content, nil
}
