package store

//go:generate mockgen -source=repository.go -destination=mocks/mock_repository.go -package=mocks

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/apfl99/DexSwipe-Backend/internal/domain/model"
)

var (
	// ErrLeaseLost is returned by Complete when the job is no longer held
	// under the lease the worker claimed it with.
	ErrLeaseLost = errors.New("job lease lost")
	// ErrStoreUnavailable marks failures that should surface as 503.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// TxBeginner abstracts the ability to begin a database transaction.
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// JobQueueRepository is the durable per-stage work queue.
type JobQueueRepository interface {
	// Enqueue inserts pending jobs, ignoring keys that already have a row.
	// It returns the number of rows actually inserted.
	Enqueue(ctx context.Context, stage model.Stage, keys []model.TokenKey, runAt time.Time) (int, error)
	// Claim atomically leases up to limit eligible jobs ordered by next_run_at.
	Claim(ctx context.Context, stage model.Stage, limit int, now time.Time, leaseTimeout time.Duration) ([]model.Job, error)
	// Complete finishes a claimed job. It returns ErrLeaseLost when the row
	// is no longer held under job.LockedAt.
	Complete(ctx context.Context, job model.Job, c model.Completion, now time.Time) error
	GetJobs(ctx context.Context, stage model.Stage, keys []model.TokenKey) (map[model.TokenKey]model.Job, error)
}

// PutOutcome describes what a conditional cache write did.
type PutOutcome int

const (
	// PutWritten means the entry replaced (or created) the stored row.
	PutWritten PutOutcome = iota
	// PutKeptDeny means a stored always-deny verdict was retained and only
	// its scanned_at was extended.
	PutKeptDeny
	// PutStale means the stored row was scanned later and was left untouched.
	PutStale
)

func (o PutOutcome) String() string {
	switch o {
	case PutWritten:
		return "written"
	case PutKeptDeny:
		return "kept_deny"
	case PutStale:
		return "stale"
	default:
		return "unknown"
	}
}

// PutResult is the outcome of a security cache write.
type PutResult struct {
	Outcome PutOutcome
	// NewlyDenied is true when this write turned the key into always-deny.
	NewlyDenied bool
}

// SecurityCacheRepository stores token-security scans with scam permanence.
type SecurityCacheRepository interface {
	GetSecurity(ctx context.Context, keys []model.TokenKey) (map[model.TokenKey]model.SecurityEntry, error)
	PutSecurity(ctx context.Context, entry model.SecurityEntry) (PutResult, error)
}

// RugpullCacheRepository stores rugpull-detection results.
type RugpullCacheRepository interface {
	GetRugpull(ctx context.Context, keys []model.TokenKey) (map[model.TokenKey]model.RugpullEntry, error)
	PutRugpull(ctx context.Context, entry model.RugpullEntry) error
}

// URLRiskCacheRepository stores phishing and dApp checks by URL.
type URLRiskCacheRepository interface {
	GetURLRisk(ctx context.Context, urls []string) (map[string]model.URLRiskEntry, error)
	PutURLRisk(ctx context.Context, entry model.URLRiskEntry) error
}

// TokenRepository stores the latest market snapshot per token.
type TokenRepository interface {
	UpsertSnapshots(ctx context.Context, snaps []model.TokenSnapshot) error
	GetSnapshots(ctx context.Context, keys []model.TokenKey) (map[model.TokenKey]model.TokenSnapshot, error)
}

// FeedQuery selects one page of ranked tokens for a client.
type FeedQuery struct {
	ClientID string
	// Cursor is the updated_at of the last row of the previous page.
	Cursor *time.Time
	Filter model.FeedFilter
	Limit  int
}

// FeedRepository ranks tokens for the feed and tracks what a client has seen.
type FeedRepository interface {
	NextPage(ctx context.Context, q FeedQuery) ([]model.TokenSnapshot, error)
	MarkSeen(ctx context.Context, clientID string, keys []model.TokenKey, at time.Time) error
}

// WishlistRepository is the read side of the client wishlist.
type WishlistRepository interface {
	ListWishlist(ctx context.Context, clientID string, limit int) ([]model.WishlistItem, error)
}

// ChainMappingRepository persists the chain mapping table.
type ChainMappingRepository interface {
	ListChains(ctx context.Context) ([]model.Chain, error)
	UpsertChains(ctx context.Context, chains []model.Chain) error
}

// DailyUsageRepository counts provider scans per UTC day.
type DailyUsageRepository interface {
	// Reserve increments the counter for day when it is below limit and
	// reports whether the increment happened.
	Reserve(ctx context.Context, day time.Time, limit uint) (bool, error)
	Count(ctx context.Context, day time.Time) (uint, error)
}

// IngestionRunRepository records discovery runs.
type IngestionRunRepository interface {
	StartRun(ctx context.Context, run *model.IngestionRun) error
	FinishRun(ctx context.Context, run *model.IngestionRun) error
}

// AccessTokenCache holds a provider-issued bearer token.
type AccessTokenCache interface {
	GetToken(ctx context.Context, key string) (token string, expiresAt time.Time, ok bool, err error)
	SetToken(ctx context.Context, key, token string, expiresAt time.Time) error
}

// DayKey truncates t to its UTC calendar day.
func DayKey(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
