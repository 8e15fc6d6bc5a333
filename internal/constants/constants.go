package constants

import "time"

// Scoring rules for the squad scoreboard. The live feed accumulates points at
// PointsPerDamage/PointsPerFrag; the battle result recomputes them as
// damageDealt + kills*PointsPerFrag and overwrites the accumulated value.
const (
	PointsPerDamage  = 1
	PointsPerFrag    = 100
	PointsPerTeamWin = 500
)

const (
	SoloRosterLimit    = 1
	PlatoonRosterLimit = 3
)

const (
	RemoteTimeout = 5 * time.Second
	RetryAttempts = 2
	RetryBackoff  = 750 * time.Millisecond
	PushDebounce  = 1 * time.Second
	PullDebounce  = 1 * time.Second
	PostPushDelay = 250 * time.Millisecond
)

const (
	DatabaseTimeout = 5 * time.Second
	RequestTimeout  = 30 * time.Second
)

const (
	DBMaxOpenConns    = 10
	DBMaxIdleConns    = 2
	DBConnMaxLifetime = 1 * time.Hour
	DBMaxIdleTime     = 10 * time.Minute
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	TaskQueueSize = 256
)
