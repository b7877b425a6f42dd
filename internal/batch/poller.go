package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
)

const (
	DefaultPollInterval = 10 * time.Second

	progressTotal = 100
	progressStep  = 10
)

type PollerOption func(*Poller)

// WithSleep replaces the wait between polls.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) PollerOption {
	return func(p *Poller) {
		p.sleep = sleep
	}
}

// WithProgressWriter sets where the progress bar is drawn. nil disables it.
func WithProgressWriter(w io.Writer) PollerOption {
	return func(p *Poller) {
		p.progress = w
	}
}

// Poller queries a job's status at a fixed interval until it is complete or
// failed. There is no retry limit; a job that never finishes is polled until
// the context is cancelled.
type Poller struct {
	svc      Service
	interval time.Duration
	sleep    func(ctx context.Context, d time.Duration) error
	progress io.Writer
}

func NewPoller(svc Service, interval time.Duration, opts ...PollerOption) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	p := &Poller{
		svc:      svc,
		interval: interval,
		sleep:    sleepContext,
		progress: os.Stderr,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (p *Poller) newBar() *progressbar.ProgressBar {
	w := p.progress
	if w == nil {
		w = io.Discard
	}
	return progressbar.NewOptions(progressTotal,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("Waiting for batch completion"),
		progressbar.OptionSetWidth(30),
		progressbar.OptionShowElapsedTimeOnFinish(),
	)
}

// Wait blocks until the job reaches a terminal state. It returns nil when the
// job completed, ErrJobFailed when it failed and the context error when
// cancelled. ErrUnknownBatch from a status query ends the wait; other query
// errors are logged and the query is repeated on the next tick.
func (p *Poller) Wait(ctx context.Context, job *JobHandle) error {
	bar := p.newBar()
	shown := 0

	for {
		report, err := p.svc.GetStatus(ctx, job.BatchID)
		if err != nil {
			if ctx.Err() != nil {
				_ = bar.Exit()
				return ctx.Err()
			}
			if errors.Is(err, ErrUnknownBatch) {
				_ = bar.Exit()
				return fmt.Errorf("error polling batch %s: %w", job.BatchID, err)
			}
			slog.Warn("error querying batch status", "batch_id", job.BatchID, "transport", p.svc.Name(), "error", err)
		} else {
			job.Status = report.Status
			slog.Info("batch status", "batch_id", job.BatchID, "status", report.Status, "remote_status", report.RemoteStatus,
				"completed", report.Completed, "failed", report.Failed, "total", report.Total)

			switch report.Status {
			case StatusComplete:
				job.OutputFileID = report.OutputFileID
				_ = bar.Set(progressTotal)
				_ = bar.Finish()
				return nil
			case StatusFailed:
				_ = bar.Exit()
				return fmt.Errorf("%w: batch %s ended as %s", ErrJobFailed, job.BatchID, report.RemoteStatus)
			}
		}

		if err := p.sleep(ctx, p.interval); err != nil {
			_ = bar.Exit()
			return err
		}
		if shown+progressStep < progressTotal {
			shown += progressStep
			_ = bar.Add(progressStep)
		}
	}
}
