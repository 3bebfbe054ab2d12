package domain

import (
	"time"

	"github.com/google/uuid"
)

// UnitID identifies a documentation unit.
type UnitID = uuid.UUID

// UnitAttributes is a read-only snapshot of the attributes a unit is matched on.
// FileNumbers, DecisionDates and ECLIs hold both the own and the deviating values.
type UnitAttributes struct {
	ID                    UnitID
	DocumentNumber        string
	FileNumbers           []string
	DecisionDates         []time.Time
	CourtID               *uuid.UUID
	DeviatingCourts       []string
	ECLIs                 []string
	DocumentTypeID        *uuid.UUID
	DocumentCategory      string
	PublicationStatus     string
	DuplicateCheckEnabled bool
}

// HasDocumentType reports whether the unit can take part in the file number rules.
func (u UnitAttributes) HasDocumentType() bool {
	return u.DocumentTypeID != nil && *u.DocumentTypeID != uuid.Nil
}
