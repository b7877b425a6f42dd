package batch

import (
	"context"
	"errors"
)

var (
	ErrSubmission = errors.New("batch submission failed")
	ErrJobFailed  = errors.New("batch job failed")
	ErrNoOutput   = errors.New("batch job has no output file")

	// ErrUnknownBatch is returned by GetStatus when the transport has no
	// record of the batch and never will, so polling again cannot help.
	ErrUnknownBatch = errors.New("batch not known to transport")
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusComplete   Status = "complete"
	StatusFailed     Status = "failed"
)

func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusFailed
}

// JobHandle identifies a submitted batch. Status is only updated by the Poller
// from remote status queries.
type JobHandle struct {
	UploadID     string
	BatchID      string
	Status       Status
	OutputFileID string
}

type StatusReport struct {
	Status Status
	// RemoteStatus is the provider's own status string, kept for logging.
	RemoteStatus string

	OutputFileID string
	ErrorFileID  string

	Total     int64
	Completed int64
	Failed    int64
}

// Service is one transport binding of the provider's batch api.
type Service interface {
	Name() string

	// UploadFile uploads the task artifact and returns the remote file id.
	UploadFile(ctx context.Context, path string) (string, error)

	// CreateBatch starts a batch job over an uploaded file and returns its id.
	CreateBatch(ctx context.Context, fileID string) (string, error)

	GetStatus(ctx context.Context, batchID string) (*StatusReport, error)

	// FetchContent downloads a remote file, typically the job's output.
	FetchContent(ctx context.Context, fileID string) ([]byte, error)
}
