package rest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"eval-batcher/internal/batch"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeBatchAPI(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/files", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error","code":"invalid_api_key"}}`)
			return
		}
		assert.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "batch", r.FormValue("purpose"))
		_, header, err := r.FormFile("file")
		if assert.NoError(t, err) {
			assert.Equal(t, "tasks.jsonl", header.Filename)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"file-in","filename":"tasks.jsonl","purpose":"batch"}`)
	})
	mux.HandleFunc("POST /v1/batches", func(w http.ResponseWriter, r *http.Request) {
		var body createBatchRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "file-in", body.InputFileID)
		assert.Equal(t, "/v1/chat/completions", body.Endpoint)
		assert.Equal(t, "24h", body.CompletionWindow)

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"batch_1","status":"validating"}`)
	})
	mux.HandleFunc("GET /v1/batches/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.PathValue("id") {
		case "batch_1":
			_, _ = io.WriteString(w, `{"id":"batch_1","status":"finalizing","request_counts":{"total":2,"completed":1,"failed":0}}`)
		case "batch_2":
			_, _ = io.WriteString(w, `{"id":"batch_2","status":"completed","output_file_id":"file-out"}`)
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"error":{"message":"No batch found"}}`)
		}
	})
	mux.HandleFunc("GET /v1/files/file-out/content", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "{\"custom_id\":\"task-0\"}\n")
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func writeArtifact(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tasks.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("{\"custom_id\":\"task-0\"}\n"), 0644))
	return path
}

func TestServiceSubmitAndFetch(t *testing.T) {
	server := fakeBatchAPI(t)
	svc := New("sk-test", server.URL+"/v1/")
	ctx := context.Background()

	job, err := batch.Submit(ctx, svc, writeArtifact(t))
	require.NoError(t, err)
	assert.Equal(t, "file-in", job.UploadID)
	assert.Equal(t, "batch_1", job.BatchID)

	report, err := svc.GetStatus(ctx, "batch_1")
	require.NoError(t, err)
	assert.Equal(t, batch.StatusInProgress, report.Status)
	assert.Equal(t, int64(1), report.Completed)

	report, err = svc.GetStatus(ctx, "batch_2")
	require.NoError(t, err)
	assert.Equal(t, batch.StatusComplete, report.Status)
	assert.Equal(t, "file-out", report.OutputFileID)

	data, err := svc.FetchContent(ctx, "file-out")
	require.NoError(t, err)
	assert.Equal(t, "{\"custom_id\":\"task-0\"}\n", string(data))
}

func TestServiceErrors(t *testing.T) {
	server := fakeBatchAPI(t)
	ctx := context.Background()

	_, err := batch.Submit(ctx, New("wrong", server.URL+"/v1"), writeArtifact(t))
	require.ErrorIs(t, err, batch.ErrSubmission)
	assert.Contains(t, err.Error(), "Incorrect API key provided")

	svc := New("sk-test", server.URL+"/v1")
	_, err = svc.GetStatus(ctx, "batch_404")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No batch found")

	_, err = svc.FetchContent(ctx, "file-missing")
	require.Error(t, err)
}
