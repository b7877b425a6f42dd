package sink

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"eval-batcher/internal/core/results"
	"eval-batcher/internal/storage"
)

// ObjectArchive copies a run's artifacts into <bucket>/runs/<run id>/.
type ObjectArchive struct {
	store  storage.ObjectStore
	bucket string
}

var _ Archive = (*ObjectArchive)(nil)

func NewObjectArchive(store storage.ObjectStore, bucket string) *ObjectArchive {
	return &ObjectArchive{store: store, bucket: bucket}
}

func (a *ObjectArchive) Name() string { return "object-store" }

func (a *ObjectArchive) Record(ctx context.Context, run RunRecord, evals []results.Evaluation) error {
	prefix := "runs/" + run.ID.String()

	var errs []error
	for _, path := range []string{run.TasksFile, run.ResultsFile, run.CSVFile} {
		if path == "" {
			continue
		}
		key := prefix + "/" + filepath.Base(path)
		if err := storage.UploadFile(ctx, a.store, a.bucket, key, path); err != nil {
			errs = append(errs, fmt.Errorf("error archiving %s: %w", path, err))
		}
	}
	return errors.Join(errs...)
}
