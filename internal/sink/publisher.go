package sink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"eval-batcher/internal/core/results"

	"github.com/google/uuid"
)

var ErrSheetPublish = errors.New("spreadsheet publish failed")

// RunRecord describes one completed run for archiving.
type RunRecord struct {
	ID         uuid.UUID
	BatchID    string
	Transport  string
	Model      string
	Rubric     string
	TaskCount  int
	Rejected   []results.RecordError
	StartedAt  time.Time
	FinishedAt time.Time

	TasksFile   string
	ResultsFile string
	CSVFile     string
}

// Archive stores a run after the CSV has been written. Archive failures are
// logged and never fail the run.
type Archive interface {
	Name() string
	Record(ctx context.Context, run RunRecord, evals []results.Evaluation) error
}

type Report struct {
	CSVPath  string
	Rows     int
	SheetURL string
}

type Publisher struct {
	headers   []string
	csvPath   string
	sheetName string
	sheet     SheetPublisher
	archives  []Archive
}

// NewPublisher returns a Publisher writing csvPath. sheet may be nil, in which
// case only the CSV snapshot is produced.
func NewPublisher(headers []string, csvPath, sheetName string, sheet SheetPublisher, archives ...Archive) *Publisher {
	return &Publisher{
		headers:   headers,
		csvPath:   csvPath,
		sheetName: sheetName,
		sheet:     sheet,
		archives:  archives,
	}
}

// Publish writes the CSV snapshot, imports it into the spreadsheet and
// records the run in every archive. The CSV is always written first; if the
// spreadsheet import fails the returned error wraps ErrSheetPublish and the
// report still describes the CSV.
func (p *Publisher) Publish(ctx context.Context, run RunRecord, evals []results.Evaluation) (*Report, error) {
	if err := WriteCSV(p.csvPath, p.headers, evals); err != nil {
		return nil, err
	}
	slog.Info("wrote csv", "path", p.csvPath, "rows", len(evals))

	report := &Report{CSVPath: p.csvPath, Rows: len(evals)}
	run.CSVFile = p.csvPath

	var sheetErr error
	if p.sheet != nil {
		url, err := p.sheet.Import(ctx, p.sheetName, p.csvPath)
		if err != nil {
			slog.Error("error publishing to spreadsheet, csv kept", "sheet", p.sheetName, "csv", p.csvPath, "error", err)
			sheetErr = fmt.Errorf("%w: %w", ErrSheetPublish, err)
		} else {
			report.SheetURL = url
			slog.Info("results uploaded to spreadsheet", "url", url)
		}
	}

	for _, a := range p.archives {
		if err := a.Record(ctx, run, evals); err != nil {
			slog.Error("error archiving run", "archive", a.Name(), "run_id", run.ID, "error", err)
		}
	}

	return report, sheetErr
}
