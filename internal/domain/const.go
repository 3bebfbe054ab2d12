package domain

// Reason names the matching rule that produced a candidate pair.
type Reason string

const (
	ReasonFileNumberDate           Reason = "fileNumberDate"
	ReasonFileNumberCourt          Reason = "fileNumberCourt"
	ReasonFileNumberDeviatingCourt Reason = "fileNumberDeviatingCourt"
	ReasonECLI                     Reason = "ecli"
)

var AllReasons = []Reason{
	ReasonFileNumberDate,
	ReasonFileNumberCourt,
	ReasonFileNumberDeviatingCourt,
	ReasonECLI,
}

func (r Reason) Valid() bool {
	switch r {
	case ReasonFileNumberDate, ReasonFileNumberCourt, ReasonFileNumberDeviatingCourt, ReasonECLI:
		return true
	default:
		return false
	}
}

type RelationStatus string

const (
	RelationStatusPending RelationStatus = "PENDING"
	RelationStatusIgnored RelationStatus = "IGNORED"
)

func (s RelationStatus) Valid() bool {
	return s == RelationStatusPending || s == RelationStatusIgnored
}

type RunResult string

const (
	RunResultQueued    RunResult = "queued"
	RunResultRunning   RunResult = "running"
	RunResultSucceeded RunResult = "succeeded"
	RunResultFailed    RunResult = "failed"
)

const (
	TriggerSchedule = "schedule"
	TriggerAPI      = "api"
	TriggerCLI      = "cli"
)

const CycleLockKey = "dupcheck:reconcile"
