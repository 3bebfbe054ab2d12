package dupcheck

import (
	"time"
)

type RelationStatus string

const (
	RelationStatusPending RelationStatus = "PENDING"
	RelationStatusIgnored RelationStatus = "IGNORED"
)

const (
	ScopeFull    string = "full"
	ScopeChanged string = "changed"
	ScopeUnits   string = "units"
)

const (
	EventCycleCompleted string = "cycle.completed"
	EventCycleFailed    string = "cycle.failed"
)

// Relation is the wire form of a duplicate relation.
// LowerID always sorts before HigherID.
type Relation struct {
	LowerID   string         `json:"lowerId"`
	HigherID  string         `json:"higherId"`
	Status    RelationStatus `json:"status"`
	Reasons   []string       `json:"reasons,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

type TriggerRequest struct {
	Scope   string   `json:"scope"`
	UnitIDs []string `json:"unitIds,omitempty"`
}

type RunReport struct {
	ID         string     `json:"id"`
	Scope      string     `json:"scope"`
	Trigger    string     `json:"trigger"`
	Result     string     `json:"result"`
	QueuedAt   time.Time  `json:"queuedAt"`
	StartedAt  *time.Time `json:"startedAt,omitempty"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
	Candidates int        `json:"candidates"`
	Inserted   int        `json:"inserted"`
	Deleted    int        `json:"deleted"`
	Downgraded int        `json:"downgraded"`
	Dropped    int        `json:"dropped"`
	Digest     string     `json:"digest,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// Event is published after every reconciliation cycle.
type Event struct {
	Type string    `json:"type"`
	Run  RunReport `json:"run"`
}

type WellKnownDupcheck struct {
	Version             string            `json:"version"`
	FileNumberThreshold int               `json:"fileNumberThreshold"`
	Rules               []string          `json:"rules"`
	EligibleCategories  []string          `json:"eligibleCategories"`
	Endpoints           map[string]string `json:"endpoints"`
}
