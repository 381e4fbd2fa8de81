package model

import (
	"time"

	"github.com/google/uuid"
)

type IngestionStatus string

const (
	IngestionRunning   IngestionStatus = "running"
	IngestionSucceeded IngestionStatus = "succeeded"
	IngestionFailed    IngestionStatus = "failed"
)

// IngestionRun records one discovery invocation.
type IngestionRun struct {
	ID         uuid.UUID       `db:"id"`
	Source     string          `db:"source"`
	Status     IngestionStatus `db:"status"`
	Chains     []ChainID       `db:"chains"`
	Fetched    int             `db:"fetched"`
	Enqueued   int             `db:"enqueued"`
	Error      *string         `db:"error"`
	StartedAt  time.Time       `db:"started_at"`
	FinishedAt *time.Time      `db:"finished_at"`
}
