package db

import "time"

// Connection setup.
const (
	connectionRetrySleep  = 2 * time.Second
	maxConnectionAttempts = 10
	migrationLockID       = 2000
)

// Pool defaults.
const (
	defaultMaxConns   int32 = 10
	defaultMinConns   int32 = 2
	maxConnIdleTime         = 30 * time.Minute
	maxConnLifetime         = time.Hour
	healthCheckPeriod       = time.Minute
)

// Snapshot history limits.
const (
	DefaultSnapshotLimit = 20
	MaxSnapshotLimit     = 500
)
