package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// TokenDenyLog is an audit row written when a token first becomes always-deny.
type TokenDenyLog struct {
	ID           uuid.UUID       `db:"id"`
	ChainID      ChainID         `db:"chain_id"`
	TokenAddress string          `db:"token_address"`
	Reasons      []string        `db:"reasons"`
	Source       string          `db:"source"`
	Metadata     json.RawMessage `db:"metadata"`
	CreatedAt    time.Time       `db:"created_at"`
}
