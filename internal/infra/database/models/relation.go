package models

import (
	"time"

	"github.com/google/uuid"
)

type DuplicateRelation struct {
	LowerID   uuid.UUID `json:"lowerId" gorm:"type:uuid;primaryKey;check:chk_duplicate_relation_order,lower_id < higher_id"`
	HigherID  uuid.UUID `json:"higherId" gorm:"type:uuid;primaryKey;index"`
	Status    string    `json:"status" gorm:"type:text;not null;index"`
	Reasons   string    `json:"reasons" gorm:"type:text;not null;default:''"`
	CreatedAt time.Time `json:"createdAt" gorm:"->;<-:create;type:timestamp with time zone;not null;default:clock_timestamp()"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"type:timestamp with time zone;not null;default:clock_timestamp()"`
}

func (DuplicateRelation) TableName() string {
	return "duplicate_relations"
}

type DuplicateCheckRun struct {
	ID         uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	Scope      string     `json:"scope" gorm:"type:text;not null"`
	Trigger    string     `json:"trigger" gorm:"type:text;not null"`
	Result     string     `json:"result" gorm:"type:text;not null;index"`
	QueuedAt   time.Time  `json:"queuedAt" gorm:"type:timestamp with time zone;not null;index"`
	StartedAt  *time.Time `json:"startedAt" gorm:"type:timestamp with time zone"`
	FinishedAt *time.Time `json:"finishedAt" gorm:"type:timestamp with time zone"`
	Candidates int        `json:"candidates" gorm:"not null;default:0"`
	Inserted   int        `json:"inserted" gorm:"not null;default:0"`
	Deleted    int        `json:"deleted" gorm:"not null;default:0"`
	Downgraded int        `json:"downgraded" gorm:"not null;default:0"`
	Dropped    int        `json:"dropped" gorm:"not null;default:0"`
	Digest     string     `json:"digest" gorm:"type:text"`
	Error      string     `json:"error" gorm:"type:text"`
}

func (DuplicateCheckRun) TableName() string {
	return "duplicate_check_runs"
}

// SuppressedFileNumber records a folded file number that was above the
// frequency threshold when the relation table was last reconciled for it.
type SuppressedFileNumber struct {
	Value string `json:"value" gorm:"type:text;primaryKey"`
}

func (SuppressedFileNumber) TableName() string {
	return "duplicate_check_suppressed_file_numbers"
}
