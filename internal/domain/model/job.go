package model

import "time"

// Stage names a pipeline stage; each stage owns one job table.
type Stage string

const (
	StageMarket   Stage = "market"
	StageSecurity Stage = "security"
	StageQuality  Stage = "quality"
)

func (s Stage) String() string {
	return string(s)
}

// Stages lists every queue-backed stage.
var Stages = []Stage{StageMarket, StageSecurity, StageQuality}

type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Job is one queue row for (stage, chain, address).
type Job struct {
	Stage         Stage      `db:"-"`
	ChainID       ChainID    `db:"chain_id"`
	TokenAddress  string     `db:"token_address"`
	Status        JobStatus  `db:"status"`
	Attempts      uint       `db:"attempts"`
	LockedAt      *time.Time `db:"locked_at"`
	LastError     *string    `db:"last_error"`
	NextRunAt     time.Time  `db:"next_run_at"`
	LastScannedAt *time.Time `db:"last_scanned_at"`
	CreatedAt     time.Time  `db:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at"`
}

func (j Job) Key() TokenKey {
	return TokenKey{ChainID: j.ChainID, TokenAddress: j.TokenAddress}
}

// Completion describes how a worker finishes a leased job.
type Completion struct {
	Status    JobStatus
	Attempts  uint
	NextRunAt time.Time
	LastError *string
	// Scanned marks a completion that produced fresh provider data.
	Scanned bool
}
