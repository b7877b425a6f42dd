package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"eval-batcher/internal/batch"
	"eval-batcher/internal/core/results"
	"eval-batcher/internal/core/tasks"
	"eval-batcher/internal/sink"

	"github.com/google/uuid"
)

var ErrNoImages = errors.New("no images found")

// Files are the on-disk artifacts of a run.
type Files struct {
	ImageDir    string
	TasksFile   string
	ResultsFile string
}

type Pipeline struct {
	Service   batch.Service
	Encoder   *tasks.Encoder
	Poller    *batch.Poller
	Validator *results.Validator
	Publisher *sink.Publisher

	Model  string
	Rubric string
	Files  Files
}

// Options change where a run starts. With BatchID set the run resumes polling
// an already submitted batch; with ReuseTasks set the existing tasks file is
// submitted as is instead of encoding the image folder again.
type Options struct {
	BatchID    string
	ReuseTasks bool
}

type Summary struct {
	RunID    uuid.UUID
	BatchID  string
	Tasks    int
	Accepted int
	Rejected []results.RecordError
	Report   *sink.Report
}

// Run executes one evaluation run: encode, submit, poll, fetch, validate and
// publish. Submission and job failures abort the run. Invalid records are
// dropped and reported in the summary. A spreadsheet failure is returned
// together with a summary describing the CSV that was written.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Summary, error) {
	run := sink.RunRecord{
		ID:          uuid.New(),
		Transport:   p.Service.Name(),
		Model:       p.Model,
		Rubric:      p.Rubric,
		StartedAt:   time.Now(),
		TasksFile:   p.Files.TasksFile,
		ResultsFile: p.Files.ResultsFile,
	}
	slog.Info("starting run", "run_id", run.ID, "transport", run.Transport, "model", run.Model)

	var job *batch.JobHandle
	if opts.BatchID != "" {
		job = batch.Resume(opts.BatchID)
		run.TaskCount = p.countExistingTasks()
		slog.Info("resuming batch", "batch_id", opts.BatchID)
	} else {
		count, err := p.prepareTasks(ctx, opts.ReuseTasks)
		if err != nil {
			return nil, err
		}
		run.TaskCount = count

		job, err = batch.Submit(ctx, p.Service, p.Files.TasksFile)
		if err != nil {
			return nil, err
		}
	}
	run.BatchID = job.BatchID

	if err := p.Poller.Wait(ctx, job); err != nil {
		return nil, fmt.Errorf("error waiting for batch %s: %w", job.BatchID, err)
	}

	output, err := batch.FetchOutput(ctx, p.Service, job)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(p.Files.ResultsFile, output, 0644); err != nil {
		return nil, fmt.Errorf("error saving batch output to %s: %w", p.Files.ResultsFile, err)
	}
	slog.Info("saved batch output", "path", p.Files.ResultsFile)

	accepted, rejected := p.Validator.Validate(output)
	slog.Info("validated batch output", "accepted", len(accepted), "rejected", len(rejected))

	run.Rejected = rejected
	run.FinishedAt = time.Now()

	summary := &Summary{
		RunID:    run.ID,
		BatchID:  job.BatchID,
		Tasks:    run.TaskCount,
		Accepted: len(accepted),
		Rejected: rejected,
	}

	report, err := p.Publisher.Publish(ctx, run, accepted)
	summary.Report = report
	if err != nil {
		if report == nil {
			return nil, err
		}
		return summary, err
	}

	return summary, nil
}

func (p *Pipeline) prepareTasks(ctx context.Context, reuse bool) (int, error) {
	if reuse {
		existing, err := tasks.ReadJSONL(p.Files.TasksFile)
		if err != nil {
			return 0, fmt.Errorf("error reading existing tasks: %w", err)
		}
		slog.Info("reusing task file", "path", p.Files.TasksFile, "tasks", len(existing))
		return len(existing), nil
	}

	images, err := tasks.ListImages(p.Files.ImageDir)
	if err != nil {
		return 0, err
	}
	if len(images) == 0 {
		return 0, fmt.Errorf("%w in %s", ErrNoImages, p.Files.ImageDir)
	}

	encoded, err := p.Encoder.Encode(ctx, images)
	if err != nil {
		return 0, err
	}
	if err := tasks.WriteJSONL(p.Files.TasksFile, encoded); err != nil {
		return 0, err
	}
	slog.Info("wrote task file", "path", p.Files.TasksFile, "tasks", len(encoded))

	return len(encoded), nil
}

func (p *Pipeline) countExistingTasks() int {
	existing, err := tasks.ReadJSONL(p.Files.TasksFile)
	if err != nil {
		slog.Warn("task file of resumed batch not readable, task count unknown", "path", p.Files.TasksFile, "error", err)
		return 0
	}
	return len(existing)
}
