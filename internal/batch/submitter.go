package batch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
)

// Submit uploads the task artifact and creates a batch job over it. Any failure
// is wrapped in ErrSubmission; nothing is retried.
func Submit(ctx context.Context, svc Service, artifactPath string) (*JobHandle, error) {
	if _, err := os.Stat(artifactPath); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSubmission, err)
	}

	fileID, err := svc.UploadFile(ctx, artifactPath)
	if err != nil {
		return nil, fmt.Errorf("%w: error uploading %s via %s: %w", ErrSubmission, artifactPath, svc.Name(), err)
	}
	slog.Info("uploaded task file", "transport", svc.Name(), "file_id", fileID)

	batchID, err := svc.CreateBatch(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("%w: error creating batch for file %s via %s: %w", ErrSubmission, fileID, svc.Name(), err)
	}
	slog.Info("created batch", "transport", svc.Name(), "batch_id", batchID)

	return &JobHandle{
		UploadID: fileID,
		BatchID:  batchID,
		Status:   StatusPending,
	}, nil
}

// Resume returns a handle for a batch that was submitted by an earlier run.
func Resume(batchID string) *JobHandle {
	return &JobHandle{BatchID: batchID, Status: StatusPending}
}

// FetchOutput downloads the output of a completed job.
func FetchOutput(ctx context.Context, svc Service, job *JobHandle) ([]byte, error) {
	if job.Status != StatusComplete {
		return nil, fmt.Errorf("batch %s is %s, not complete", job.BatchID, job.Status)
	}
	if job.OutputFileID == "" {
		return nil, fmt.Errorf("%w: batch %s", ErrNoOutput, job.BatchID)
	}

	data, err := svc.FetchContent(ctx, job.OutputFileID)
	if err != nil {
		return nil, fmt.Errorf("error fetching output %s of batch %s: %w", job.OutputFileID, job.BatchID, err)
	}
	slog.Info("fetched batch output", "batch_id", job.BatchID, "file_id", job.OutputFileID, "bytes", len(data))

	return data, nil
}
