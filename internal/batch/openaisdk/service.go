package openaisdk

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"eval-batcher/internal/batch"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Service binds the batch api through the official openai-go client.
type Service struct {
	client openai.Client
}

var _ batch.Service = (*Service)(nil)

func New(apiKey, baseURL string, opts ...option.RequestOption) *Service {
	all := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithRequestTimeout(5 * time.Minute),
	}
	if baseURL != "" {
		all = append(all, option.WithBaseURL(baseURL))
	}
	all = append(all, opts...)

	return &Service{client: openai.NewClient(all...)}
}

func (s *Service) Name() string { return "openai-sdk" }

func (s *Service) UploadFile(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("error opening %s: %w", path, err)
	}
	defer f.Close()

	obj, err := s.client.Files.New(ctx, openai.FileNewParams{
		File:    openai.File(f, filepath.Base(path), "application/jsonl"),
		Purpose: openai.FilePurposeBatch,
	})
	if err != nil {
		slog.Error("openai error: file upload failed", "error", err)
		return "", err
	}

	return obj.ID, nil
}

func (s *Service) CreateBatch(ctx context.Context, fileID string) (string, error) {
	b, err := s.client.Batches.New(ctx, openai.BatchNewParams{
		InputFileID:      fileID,
		Endpoint:         openai.BatchNewParamsEndpointV1ChatCompletions,
		CompletionWindow: openai.BatchNewParamsCompletionWindow24h,
	})
	if err != nil {
		slog.Error("openai error: batch creation failed", "error", err)
		return "", err
	}

	return b.ID, nil
}

func (s *Service) GetStatus(ctx context.Context, batchID string) (*batch.StatusReport, error) {
	b, err := s.client.Batches.Get(ctx, batchID)
	if err != nil {
		return nil, err
	}

	return &batch.StatusReport{
		Status:       batch.FromOpenAIStatus(string(b.Status)),
		RemoteStatus: string(b.Status),
		OutputFileID: b.OutputFileID,
		ErrorFileID:  b.ErrorFileID,
		Total:        b.RequestCounts.Total,
		Completed:    b.RequestCounts.Completed,
		Failed:       b.RequestCounts.Failed,
	}, nil
}

func (s *Service) FetchContent(ctx context.Context, fileID string) ([]byte, error) {
	res, err := s.client.Files.Content(ctx, fileID)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading file %s: %w", fileID, err)
	}
	return data, nil
}
