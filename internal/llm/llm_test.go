package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"eval-batcher/internal/core/tasks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngBytes = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x01}

func testTask(imageURL string) tasks.Task {
	return tasks.Task{
		CustomID: "task-0",
		Method:   "POST",
		URL:      tasks.ChatCompletionsURL,
		Body: tasks.Request{
			Model:          "gpt-4o",
			Temperature:    0.1,
			ResponseFormat: tasks.ResponseFormat{Type: "json_object"},
			Messages: []tasks.Message{
				{Role: "system", Text: "You are an evaluator."},
				{Role: "user", Parts: []tasks.ContentPart{
					{Type: "image_url", ImageURL: &tasks.ImageURL{URL: imageURL}},
					{Type: "text", Text: "Score the author."},
				}},
			},
		},
	}
}

func TestLangchainEvaluator(t *testing.T) {
	const answer = `{"Name":"Alice","Strengths_and_Weaknesses":3,"Emotions_Recognition":2,"Identity_Value":1}`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-4o", body["model"])
		assert.Equal(t, map[string]any{"type": "json_object"}, body["response_format"])

		messages, _ := body["messages"].([]any)
		if assert.Len(t, messages, 2) {
			user := messages[1].(map[string]any)
			assert.Equal(t, "user", user["role"])
			parts, _ := user["content"].([]any)
			if assert.Len(t, parts, 2) {
				assert.Equal(t, "image_url", parts[0].(map[string]any)["type"])
				assert.Equal(t, "text", parts[1].(map[string]any)["type"])
			}
		}

		w.Header().Set("Content-Type", "application/json")
		resp := map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "gpt-4o",
			"choices": []any{map[string]any{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": answer},
			}},
			"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 10, "total_tokens": 20},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	eval, err := NewLangchainEvaluator("sk-test", server.URL, "gpt-4o")
	require.NoError(t, err)

	got, err := eval.Evaluate(context.Background(), testTask("data:image/png;base64,AAAA"))
	require.NoError(t, err)
	assert.Equal(t, answer, got)
}

func TestLangchainEvaluatorServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"message":"bad image","type":"invalid_request_error"}}`)
	}))
	defer server.Close()

	eval, err := NewLangchainEvaluator("sk-test", server.URL, "gpt-4o")
	require.NoError(t, err)

	_, err = eval.Evaluate(context.Background(), testTask("data:image/png;base64,AAAA"))
	require.Error(t, err)
}

func TestImageLoader(t *testing.T) {
	loader := NewImageLoader()
	ctx := context.Background()

	data, mime, err := loader.Load(ctx, tasks.MakeDataURL("image/png", base64.StdEncoding.EncodeToString(pngBytes)))
	require.NoError(t, err)
	assert.Equal(t, "image/png", mime)
	assert.Equal(t, pngBytes, data)

	path := filepath.Join(t.TempDir(), "a.png")
	require.NoError(t, os.WriteFile(path, pngBytes, 0644))
	data, mime, err = loader.Load(ctx, (&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String())
	require.NoError(t, err)
	assert.Equal(t, "image/png", mime)
	assert.Equal(t, pngBytes, data)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/a.png" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(pngBytes)
	}))
	defer server.Close()

	data, _, err = loader.Load(ctx, server.URL+"/a.png")
	require.NoError(t, err)
	assert.Equal(t, pngBytes, data)

	_, _, err = loader.Load(ctx, server.URL+"/missing.png")
	require.Error(t, err)

	_, _, err = loader.Load(ctx, "ftp://example.com/a.png")
	require.Error(t, err)
}

func TestStripCodeFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripCodeFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFences(`{"a":1}`))
}
