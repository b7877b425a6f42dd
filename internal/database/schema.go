package database

import (
	"time"

	"github.com/google/uuid"
)

const (
	RunCompleted string = "COMPLETED"
	// RunPartial marks a run where some result records were rejected.
	RunPartial string = "PARTIAL"
)

type Run struct {
	Id      uuid.UUID `gorm:"type:uuid;primaryKey"`
	BatchId string    `gorm:"index"`

	Transport string `gorm:"size:32;not null"`
	Model     string
	Rubric    string
	Status    string `gorm:"size:20;not null"`

	TaskCount     int `gorm:"default:0"`
	AcceptedCount int `gorm:"default:0"`
	RejectedCount int `gorm:"default:0"`

	StartedAt  time.Time
	FinishedAt time.Time

	CsvPath string

	Evaluations []Evaluation `gorm:"foreignKey:RunId;constraint:OnDelete:CASCADE"`
	Rejections  []Rejection  `gorm:"foreignKey:RunId;constraint:OnDelete:CASCADE"`
}

type Evaluation struct {
	RunId    uuid.UUID `gorm:"type:uuid;primaryKey"`
	Position int       `gorm:"primaryKey"`
	CustomId string

	Name                   string `gorm:"not null"`
	StrengthsAndWeaknesses int
	EmotionsRecognition    int
	IdentityValue          int
}

type Rejection struct {
	RunId       uuid.UUID `gorm:"type:uuid;primaryKey"`
	RecordIndex int       `gorm:"primaryKey"`
	CustomId    string
	Error       string
}
