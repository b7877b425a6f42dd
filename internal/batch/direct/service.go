// Package direct runs a batch synchronously, one chat completion per task,
// for providers or accounts without access to the asynchronous batch api.
// Its output has the same line format as a provider batch output file.
package direct

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"eval-batcher/internal/batch"
	"eval-batcher/internal/core/tasks"

	"github.com/google/uuid"
)

// Evaluator executes a single task and returns the assistant's message content.
type Evaluator interface {
	Name() string
	Evaluate(ctx context.Context, task tasks.Task) (string, error)
}

type outputLine struct {
	ID       string       `json:"id"`
	CustomID string       `json:"custom_id"`
	Response *responseDoc `json:"response"`
	Error    *errorDoc    `json:"error"`
}

type responseDoc struct {
	StatusCode int            `json:"status_code"`
	RequestID  string         `json:"request_id"`
	Body       completionBody `json:"body"`
}

type completionBody struct {
	Model   string   `json:"model"`
	Choices []choice `json:"choices"`
}

type choice struct {
	Index   int           `json:"index"`
	Message assistantText `json:"message"`
}

type assistantText struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type errorDoc struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type job struct {
	status       batch.Status
	outputFileID string
	total        int64
	failed       int64
}

type Service struct {
	evaluator Evaluator
	pause     time.Duration
	sleep     func(ctx context.Context, d time.Duration) error

	mu    sync.Mutex
	files map[string][]byte
	jobs  map[string]*job
}

var _ batch.Service = (*Service)(nil)

// New returns a Service that waits pause between consecutive tasks.
func New(evaluator Evaluator, pause time.Duration) *Service {
	return &Service{
		evaluator: evaluator,
		pause:     pause,
		sleep:     sleepContext,
		files:     make(map[string][]byte),
		jobs:      make(map[string]*job),
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (s *Service) Name() string { return "direct-" + s.evaluator.Name() }

func (s *Service) UploadFile(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("error reading %s: %w", path, err)
	}

	id := "file-" + uuid.NewString()
	s.mu.Lock()
	s.files[id] = data
	s.mu.Unlock()

	return id, nil
}

// CreateBatch executes every task before returning, so the job is already
// terminal on its first status query. Individual task failures are recorded
// as error lines in the output and do not fail the batch.
func (s *Service) CreateBatch(ctx context.Context, fileID string) (string, error) {
	s.mu.Lock()
	data, ok := s.files[fileID]
	s.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("unknown file %s", fileID)
	}

	taskList, err := tasks.DecodeJSONL(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("error parsing task file %s: %w", fileID, err)
	}

	batchID := "batch-" + uuid.NewString()
	j := &job{status: batch.StatusInProgress, total: int64(len(taskList))}
	s.mu.Lock()
	s.jobs[batchID] = j
	s.mu.Unlock()

	var out bytes.Buffer
	enc := json.NewEncoder(&out)
	enc.SetEscapeHTML(false)

	for i, task := range taskList {
		if i > 0 {
			if err := s.sleep(ctx, s.pause); err != nil {
				return "", err
			}
		}

		line := outputLine{ID: "req-" + uuid.NewString(), CustomID: task.CustomID}

		content, err := s.evaluator.Evaluate(ctx, task)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			slog.Error("error evaluating task", "custom_id", task.CustomID, "evaluator", s.evaluator.Name(), "error", err)
			line.Error = &errorDoc{Code: "evaluation_failed", Message: err.Error()}
			j.failed++
		} else {
			line.Response = &responseDoc{
				StatusCode: http.StatusOK,
				RequestID:  line.ID,
				Body: completionBody{
					Model:   task.Body.Model,
					Choices: []choice{{Message: assistantText{Role: "assistant", Content: content}}},
				},
			}
		}

		if err := enc.Encode(line); err != nil {
			return "", fmt.Errorf("error encoding output for %s: %w", task.CustomID, err)
		}
		slog.Info("evaluated task", "custom_id", task.CustomID, "index", i+1, "total", len(taskList))
	}

	outputID := "file-" + uuid.NewString()
	s.mu.Lock()
	s.files[outputID] = out.Bytes()
	j.status = batch.StatusComplete
	j.outputFileID = outputID
	s.mu.Unlock()

	return batchID, nil
}

func (s *Service) GetStatus(ctx context.Context, batchID string) (*batch.StatusReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[batchID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", batch.ErrUnknownBatch, batchID)
	}

	return &batch.StatusReport{
		Status:       j.status,
		RemoteStatus: string(j.status),
		OutputFileID: j.outputFileID,
		Total:        j.total,
		Completed:    j.total - j.failed,
		Failed:       j.failed,
	}, nil
}

func (s *Service) FetchContent(ctx context.Context, fileID string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.files[fileID]
	if !ok {
		return nil, fmt.Errorf("unknown file %s", fileID)
	}
	return data, nil
}
