package batch_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"eval-batcher/internal/batch"
	"eval-batcher/internal/batch/batchtest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sleepRecorder struct {
	calls []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.calls = append(s.calls, d)
	return ctx.Err()
}

func newTestPoller(svc batch.Service, rec *sleepRecorder) *batch.Poller {
	return batch.NewPoller(svc, 10*time.Second, batch.WithSleep(rec.sleep), batch.WithProgressWriter(nil))
}

func TestPollerCompletesAfterPending(t *testing.T) {
	svc := &batchtest.FakeService{
		Statuses: []batch.Status{batch.StatusPending, batch.StatusPending, batch.StatusComplete},
	}
	rec := &sleepRecorder{}
	job := batch.Resume(batchtest.BatchID)

	require.NoError(t, newTestPoller(svc, rec).Wait(context.Background(), job))

	assert.Equal(t, 3, svc.Queries())
	assert.Equal(t, []time.Duration{10 * time.Second, 10 * time.Second}, rec.calls)
	assert.Equal(t, batch.StatusComplete, job.Status)
	assert.Equal(t, batchtest.OutputFileID, job.OutputFileID)
}

func TestPollerStopsOnFailure(t *testing.T) {
	svc := &batchtest.FakeService{
		Statuses: []batch.Status{batch.StatusInProgress, batch.StatusFailed, batch.StatusComplete},
	}
	rec := &sleepRecorder{}
	job := batch.Resume(batchtest.BatchID)

	err := newTestPoller(svc, rec).Wait(context.Background(), job)
	require.ErrorIs(t, err, batch.ErrJobFailed)

	assert.Equal(t, 2, svc.Queries())
	assert.Len(t, rec.calls, 1)
	assert.Equal(t, batch.StatusFailed, job.Status)
}

func TestPollerToleratesTransientErrors(t *testing.T) {
	svc := &batchtest.FakeService{
		Statuses: []batch.Status{batch.StatusInProgress, batch.StatusInProgress, batch.StatusComplete},
		QueryErrors: map[int]error{
			1: errors.New("connection reset by peer"),
		},
	}
	rec := &sleepRecorder{}
	job := batch.Resume(batchtest.BatchID)

	require.NoError(t, newTestPoller(svc, rec).Wait(context.Background(), job))

	// in_progress, error, in_progress, complete
	assert.Equal(t, 4, svc.Queries())
	assert.Len(t, rec.calls, 3)
	assert.Equal(t, batch.StatusComplete, job.Status)
}

func TestPollerErrorDoesNotSkipStatus(t *testing.T) {
	svc := &batchtest.FakeService{
		Statuses: []batch.Status{batch.StatusFailed, batch.StatusComplete},
		QueryErrors: map[int]error{
			0: errors.New("i/o timeout"),
		},
	}
	rec := &sleepRecorder{}

	err := newTestPoller(svc, rec).Wait(context.Background(), batch.Resume(batchtest.BatchID))
	require.ErrorIs(t, err, batch.ErrJobFailed)
	assert.Equal(t, 2, svc.Queries())
	assert.Len(t, rec.calls, 1)
}

func TestPollerStopsOnUnknownBatch(t *testing.T) {
	svc := &batchtest.FakeService{
		Statuses: []batch.Status{batch.StatusComplete},
		QueryErrors: map[int]error{
			0: fmt.Errorf("%w: batch-x", batch.ErrUnknownBatch),
		},
	}
	rec := &sleepRecorder{}

	err := newTestPoller(svc, rec).Wait(context.Background(), batch.Resume("batch-x"))
	require.ErrorIs(t, err, batch.ErrUnknownBatch)
	assert.Equal(t, 1, svc.Queries())
	assert.Empty(t, rec.calls)
}

func TestPollerCancelled(t *testing.T) {
	svc := &batchtest.FakeService{Statuses: []batch.Status{batch.StatusPending}}
	ctx, cancel := context.WithCancel(context.Background())

	sleeps := 0
	poller := batch.NewPoller(svc, time.Second, batch.WithProgressWriter(nil), batch.WithSleep(func(ctx context.Context, d time.Duration) error {
		sleeps++
		if sleeps == 3 {
			cancel()
		}
		return ctx.Err()
	}))

	err := poller.Wait(ctx, batch.Resume(batchtest.BatchID))
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 3, svc.Queries())
}

func TestPollerDrawsProgress(t *testing.T) {
	svc := &batchtest.FakeService{
		Statuses: []batch.Status{batch.StatusPending, batch.StatusComplete},
	}
	rec := &sleepRecorder{}
	var buf bytes.Buffer

	poller := batch.NewPoller(svc, time.Second, batch.WithSleep(rec.sleep), batch.WithProgressWriter(&buf))
	require.NoError(t, poller.Wait(context.Background(), batch.Resume(batchtest.BatchID)))

	assert.Contains(t, buf.String(), "Waiting for batch completion")
	assert.Contains(t, buf.String(), "100%")
}

func TestSubmit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("{\"custom_id\":\"task-0\"}\n"), 0644))

	svc := &batchtest.FakeService{}
	job, err := batch.Submit(context.Background(), svc, path)
	require.NoError(t, err)

	assert.Equal(t, batchtest.FileID, job.UploadID)
	assert.Equal(t, batchtest.BatchID, job.BatchID)
	assert.Equal(t, batch.StatusPending, job.Status)
	assert.Equal(t, "{\"custom_id\":\"task-0\"}\n", string(svc.Uploaded()))
}

func TestSubmitFailures(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("{}\n"), 0644))

	_, err := batch.Submit(context.Background(), &batchtest.FakeService{UploadErr: errors.New("401 unauthorized")}, path)
	require.ErrorIs(t, err, batch.ErrSubmission)
	assert.Contains(t, err.Error(), "401 unauthorized")

	_, err = batch.Submit(context.Background(), &batchtest.FakeService{CreateErr: errors.New("quota")}, path)
	require.ErrorIs(t, err, batch.ErrSubmission)

	_, err = batch.Submit(context.Background(), &batchtest.FakeService{}, filepath.Join(t.TempDir(), "missing.jsonl"))
	require.ErrorIs(t, err, batch.ErrSubmission)
}

func TestFetchOutput(t *testing.T) {
	svc := &batchtest.FakeService{Output: []byte("line\n")}

	job := &batch.JobHandle{BatchID: batchtest.BatchID, Status: batch.StatusInProgress}
	_, err := batch.FetchOutput(context.Background(), svc, job)
	require.Error(t, err)

	job.Status = batch.StatusComplete
	_, err = batch.FetchOutput(context.Background(), svc, job)
	require.ErrorIs(t, err, batch.ErrNoOutput)

	job.OutputFileID = batchtest.OutputFileID
	data, err := batch.FetchOutput(context.Background(), svc, job)
	require.NoError(t, err)
	assert.Equal(t, "line\n", string(data))
}
