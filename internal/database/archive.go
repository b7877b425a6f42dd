package database

import (
	"context"
	"fmt"

	"eval-batcher/internal/core/results"
	"eval-batcher/internal/sink"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RunArchive records runs and their accepted and rejected records.
type RunArchive struct {
	db *gorm.DB
}

var _ sink.Archive = (*RunArchive)(nil)

func NewRunArchive(db *gorm.DB) *RunArchive {
	return &RunArchive{db: db}
}

func (a *RunArchive) Name() string { return "database" }

func (a *RunArchive) Record(ctx context.Context, run sink.RunRecord, evals []results.Evaluation) error {
	status := RunCompleted
	if len(run.Rejected) > 0 {
		status = RunPartial
	}

	row := Run{
		Id:            run.ID,
		BatchId:       run.BatchID,
		Transport:     run.Transport,
		Model:         run.Model,
		Rubric:        run.Rubric,
		Status:        status,
		TaskCount:     run.TaskCount,
		AcceptedCount: len(evals),
		RejectedCount: len(run.Rejected),
		StartedAt:     run.StartedAt.UTC(),
		FinishedAt:    run.FinishedAt.UTC(),
		CsvPath:       run.CSVFile,
	}

	for i, e := range evals {
		row.Evaluations = append(row.Evaluations, Evaluation{
			RunId:                  run.ID,
			Position:               i,
			CustomId:               e.CustomID,
			Name:                   e.Name,
			StrengthsAndWeaknesses: e.StrengthsAndWeaknesses,
			EmotionsRecognition:    e.EmotionsRecognition,
			IdentityValue:          e.IdentityValue,
		})
	}
	for _, r := range run.Rejected {
		row.Rejections = append(row.Rejections, Rejection{
			RunId:       run.ID,
			RecordIndex: r.Index,
			CustomId:    r.CustomID,
			Error:       r.Err.Error(),
		})
	}

	if err := a.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("error saving run %s: %w", run.ID, err)
	}
	return nil
}

// GetRun loads a run with its evaluations in their original order.
func GetRun(ctx context.Context, db *gorm.DB, id uuid.UUID) (*Run, error) {
	var run Run
	err := db.WithContext(ctx).
		Preload("Evaluations", func(txn *gorm.DB) *gorm.DB { return txn.Order("position") }).
		Preload("Rejections", func(txn *gorm.DB) *gorm.DB { return txn.Order("record_index") }).
		First(&run, "id = ?", id).Error
	if err != nil {
		return nil, fmt.Errorf("error loading run %s: %w", id, err)
	}
	return &run, nil
}
