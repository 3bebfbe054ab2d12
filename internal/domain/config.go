package domain

import "time"

// Config carries the engine settings the usecases read. It mirrors the
// dupcheck section of the yaml configuration.
type Config struct {
	FileNumberThreshold int
	EligibleCategories  []string
	Rules               []Reason
	CycleTimeout        time.Duration
	LockTTL             time.Duration
	PendingCacheTTL     time.Duration
}

const DefaultFileNumberThreshold = 50
