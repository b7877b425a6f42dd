// Package batchtest provides a scripted batch.Service for tests.
package batchtest

import (
	"context"
	"fmt"
	"os"
	"sync"

	"eval-batcher/internal/batch"
)

const (
	FileID       = "file-in"
	BatchID      = "batch-1"
	OutputFileID = "file-out"
)

// FakeService answers status queries from Statuses in order, repeating the
// last entry once the script runs out. QueryErrors injects an error for the
// query with the given index; an injected error does not use up a status.
type FakeService struct {
	Statuses    []batch.Status
	QueryErrors map[int]error
	Output      []byte

	UploadErr error
	CreateErr error

	mu       sync.Mutex
	queries  int
	answered int
	uploaded []byte
}

var _ batch.Service = (*FakeService)(nil)

func (f *FakeService) Name() string { return "fake" }

func (f *FakeService) UploadFile(ctx context.Context, path string) (string, error) {
	if f.UploadErr != nil {
		return "", f.UploadErr
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	f.mu.Lock()
	f.uploaded = data
	f.mu.Unlock()

	return FileID, nil
}

func (f *FakeService) CreateBatch(ctx context.Context, fileID string) (string, error) {
	if f.CreateErr != nil {
		return "", f.CreateErr
	}
	if fileID != FileID {
		return "", fmt.Errorf("unknown file %s", fileID)
	}
	return BatchID, nil
}

func (f *FakeService) GetStatus(ctx context.Context, batchID string) (*batch.StatusReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	i := f.queries
	f.queries++

	if err, ok := f.QueryErrors[i]; ok {
		return nil, err
	}
	if len(f.Statuses) == 0 {
		return nil, fmt.Errorf("no scripted status")
	}

	status := f.Statuses[min(f.answered, len(f.Statuses)-1)]
	f.answered++
	report := &batch.StatusReport{Status: status, RemoteStatus: string(status)}
	if status == batch.StatusComplete {
		report.OutputFileID = OutputFileID
	}
	return report, nil
}

func (f *FakeService) FetchContent(ctx context.Context, fileID string) ([]byte, error) {
	if fileID != OutputFileID {
		return nil, fmt.Errorf("unknown file %s", fileID)
	}
	return f.Output, nil
}

func (f *FakeService) Queries() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queries
}

func (f *FakeService) Uploaded() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.uploaded
}
