package rest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"eval-batcher/internal/batch"

	"github.com/go-resty/resty/v2"
)

// Service binds the batch api over plain HTTP.
type Service struct {
	client *resty.Client
}

var _ batch.Service = (*Service)(nil)

type fileObject struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Purpose  string `json:"purpose"`
}

type batchObject struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	OutputFileID  string `json:"output_file_id"`
	ErrorFileID   string `json:"error_file_id"`
	RequestCounts struct {
		Total     int64 `json:"total"`
		Completed int64 `json:"completed"`
		Failed    int64 `json:"failed"`
	} `json:"request_counts"`
}

type createBatchRequest struct {
	InputFileID      string `json:"input_file_id"`
	Endpoint         string `json:"endpoint"`
	CompletionWindow string `json:"completion_window"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

func New(apiKey, baseURL string) *Service {
	client := resty.New().
		SetBaseURL(strings.TrimSuffix(baseURL, "/")).
		SetAuthToken(apiKey).
		SetTimeout(5 * time.Minute)

	return &Service{client: client}
}

func (s *Service) Name() string { return "openai-http" }

func checkResponse(op string, res *resty.Response, apiErr *apiError) error {
	if res.IsSuccess() {
		return nil
	}
	slog.Error("batch api returned error", "op", op, "status_code", res.StatusCode(), "body", res.String())
	if apiErr != nil && apiErr.Error.Message != "" {
		return fmt.Errorf("%s failed with status %d: %s", op, res.StatusCode(), apiErr.Error.Message)
	}
	return fmt.Errorf("%s failed with status %d", op, res.StatusCode())
}

func (s *Service) UploadFile(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("error opening %s: %w", path, err)
	}
	defer f.Close()

	var obj fileObject
	var apiErr apiError
	res, err := s.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{"purpose": "batch"}).
		SetFileReader("file", filepath.Base(path), f).
		SetResult(&obj).
		SetError(&apiErr).
		Post("/files")
	if err != nil {
		return "", fmt.Errorf("error uploading %s: %w", path, err)
	}
	if err := checkResponse("file upload", res, &apiErr); err != nil {
		return "", err
	}

	return obj.ID, nil
}

func (s *Service) CreateBatch(ctx context.Context, fileID string) (string, error) {
	var obj batchObject
	var apiErr apiError
	res, err := s.client.R().
		SetContext(ctx).
		SetBody(createBatchRequest{
			InputFileID:      fileID,
			Endpoint:         "/v1/chat/completions",
			CompletionWindow: "24h",
		}).
		SetResult(&obj).
		SetError(&apiErr).
		Post("/batches")
	if err != nil {
		return "", fmt.Errorf("error creating batch: %w", err)
	}
	if err := checkResponse("batch creation", res, &apiErr); err != nil {
		return "", err
	}

	return obj.ID, nil
}

func (s *Service) GetStatus(ctx context.Context, batchID string) (*batch.StatusReport, error) {
	var obj batchObject
	var apiErr apiError
	res, err := s.client.R().
		SetContext(ctx).
		SetPathParam("batchID", batchID).
		SetResult(&obj).
		SetError(&apiErr).
		Get("/batches/{batchID}")
	if err != nil {
		return nil, fmt.Errorf("error retrieving batch %s: %w", batchID, err)
	}
	if err := checkResponse("batch retrieval", res, &apiErr); err != nil {
		return nil, err
	}

	return &batch.StatusReport{
		Status:       batch.FromOpenAIStatus(obj.Status),
		RemoteStatus: obj.Status,
		OutputFileID: obj.OutputFileID,
		ErrorFileID:  obj.ErrorFileID,
		Total:        obj.RequestCounts.Total,
		Completed:    obj.RequestCounts.Completed,
		Failed:       obj.RequestCounts.Failed,
	}, nil
}

func (s *Service) FetchContent(ctx context.Context, fileID string) ([]byte, error) {
	res, err := s.client.R().
		SetContext(ctx).
		SetPathParam("fileID", fileID).
		Get("/files/{fileID}/content")
	if err != nil {
		return nil, fmt.Errorf("error downloading file %s: %w", fileID, err)
	}
	if err := checkResponse("file download", res, nil); err != nil {
		return nil, err
	}

	return res.Body(), nil
}
