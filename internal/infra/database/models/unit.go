package models

import (
	"time"

	"github.com/google/uuid"
)

// The attribute store tables are owned by the documentation store and only
// read here.

type DocumentType struct {
	ID           uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	Abbreviation string    `json:"abbreviation" gorm:"type:text"`
	Category     string    `json:"category" gorm:"type:text;not null;index"`
}

type DocumentationUnit struct {
	ID                    uuid.UUID            `json:"id" gorm:"type:uuid;primaryKey"`
	DocumentNumber        string               `json:"documentNumber" gorm:"type:text;index"`
	CourtID               *uuid.UUID           `json:"courtId" gorm:"type:uuid"`
	DocumentTypeID        *uuid.UUID           `json:"documentTypeId" gorm:"type:uuid;index"`
	PublicationStatus     string               `json:"publicationStatus" gorm:"type:text"`
	DuplicateCheckEnabled bool                 `json:"duplicateCheckEnabled" gorm:"type:boolean;not null;default:true;index"`
	UpdatedAt             time.Time            `json:"updatedAt" gorm:"type:timestamp with time zone;not null;default:clock_timestamp();index"`
	FileNumbers           []UnitFileNumber     `json:"fileNumbers" gorm:"foreignKey:UnitID;constraint:OnDelete:CASCADE;"`
	DecisionDates         []UnitDecisionDate   `json:"decisionDates" gorm:"foreignKey:UnitID;constraint:OnDelete:CASCADE;"`
	DeviatingCourts       []UnitDeviatingCourt `json:"deviatingCourts" gorm:"foreignKey:UnitID;constraint:OnDelete:CASCADE;"`
	ECLIs                 []UnitECLI           `json:"eclis" gorm:"foreignKey:UnitID;constraint:OnDelete:CASCADE;"`
}

type UnitFileNumber struct {
	ID        int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	UnitID    uuid.UUID `json:"unitId" gorm:"type:uuid;not null;index"`
	Value     string    `json:"value" gorm:"type:text;not null"`
	Deviating bool      `json:"deviating" gorm:"type:boolean;not null;default:false"`
}

type UnitDecisionDate struct {
	ID        int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	UnitID    uuid.UUID `json:"unitId" gorm:"type:uuid;not null;index"`
	Value     time.Time `json:"value" gorm:"type:date;not null"`
	Deviating bool      `json:"deviating" gorm:"type:boolean;not null;default:false"`
}

type UnitDeviatingCourt struct {
	ID     int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	UnitID uuid.UUID `json:"unitId" gorm:"type:uuid;not null;index"`
	Value  string    `json:"value" gorm:"type:text;not null"`
}

type UnitECLI struct {
	ID        int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	UnitID    uuid.UUID `json:"unitId" gorm:"type:uuid;not null;index"`
	Value     string    `json:"value" gorm:"type:text;not null"`
	Deviating bool      `json:"deviating" gorm:"type:boolean;not null;default:false"`
}

func (UnitECLI) TableName() string {
	return "unit_eclis"
}
