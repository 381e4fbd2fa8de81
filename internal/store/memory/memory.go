// Package memory is a process-local implementation of every store
// repository. Each method runs under one mutex, which gives the same
// atomicity the Postgres implementation gets from row locks.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/apfl99/DexSwipe-Backend/internal/domain/model"
	"github.com/apfl99/DexSwipe-Backend/internal/store"
)

type tokenEntry struct {
	token     string
	expiresAt time.Time
}

type Store struct {
	mu sync.Mutex

	jobs     map[model.Stage]map[model.TokenKey]*model.Job
	security map[model.TokenKey]model.SecurityEntry
	rugpull  map[model.TokenKey]model.RugpullEntry
	urlRisk  map[string]model.URLRiskEntry
	tokens   map[model.TokenKey]model.TokenSnapshot
	seen     map[string]map[model.TokenKey]time.Time
	wishlist map[string][]model.WishlistItem
	chains   map[model.ChainID]model.Chain
	daily    map[time.Time]uint
	runs     map[uuid.UUID]model.IngestionRun
	access   map[string]tokenEntry
	denyLog  []model.TokenDenyLog
}

func New() *Store {
	s := &Store{
		jobs:     make(map[model.Stage]map[model.TokenKey]*model.Job),
		security: make(map[model.TokenKey]model.SecurityEntry),
		rugpull:  make(map[model.TokenKey]model.RugpullEntry),
		urlRisk:  make(map[string]model.URLRiskEntry),
		tokens:   make(map[model.TokenKey]model.TokenSnapshot),
		seen:     make(map[string]map[model.TokenKey]time.Time),
		wishlist: make(map[string][]model.WishlistItem),
		chains:   make(map[model.ChainID]model.Chain),
		daily:    make(map[time.Time]uint),
		runs:     make(map[uuid.UUID]model.IngestionRun),
		access:   make(map[string]tokenEntry),
	}
	for _, stage := range model.Stages {
		s.jobs[stage] = make(map[model.TokenKey]*model.Job)
	}
	return s
}

var (
	_ store.JobQueueRepository      = (*Store)(nil)
	_ store.SecurityCacheRepository = (*Store)(nil)
	_ store.RugpullCacheRepository  = (*Store)(nil)
	_ store.URLRiskCacheRepository  = (*Store)(nil)
	_ store.TokenRepository         = (*Store)(nil)
	_ store.FeedRepository          = (*Store)(nil)
	_ store.WishlistRepository      = (*Store)(nil)
	_ store.ChainMappingRepository  = (*Store)(nil)
	_ store.DailyUsageRepository    = (*Store)(nil)
	_ store.IngestionRunRepository  = (*Store)(nil)
	_ store.AccessTokenCache        = (*Store)(nil)
)

// ---- job queue ----

func (s *Store) Enqueue(_ context.Context, stage model.Stage, keys []model.TokenKey, runAt time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := s.stageJobs(stage)
	inserted := 0
	for _, k := range keys {
		if _, ok := rows[k]; ok {
			continue
		}
		rows[k] = &model.Job{
			Stage:        stage,
			ChainID:      k.ChainID,
			TokenAddress: k.TokenAddress,
			Status:       model.JobStatusPending,
			NextRunAt:    runAt,
			CreatedAt:    runAt,
			UpdatedAt:    runAt,
		}
		inserted++
	}
	return inserted, nil
}

func (s *Store) Claim(_ context.Context, stage model.Stage, limit int, now time.Time, leaseTimeout time.Duration) ([]model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	leaseCutoff := now.Add(-leaseTimeout)
	var eligible []*model.Job
	for _, j := range s.stageJobs(stage) {
		if claimable(j, now, leaseCutoff) {
			eligible = append(eligible, j)
		}
	}
	sort.Slice(eligible, func(a, b int) bool {
		if !eligible[a].NextRunAt.Equal(eligible[b].NextRunAt) {
			return eligible[a].NextRunAt.Before(eligible[b].NextRunAt)
		}
		return eligible[a].Key().String() < eligible[b].Key().String()
	})
	if len(eligible) > limit {
		eligible = eligible[:limit]
	}

	out := make([]model.Job, 0, len(eligible))
	for _, j := range eligible {
		lockedAt := now
		j.Status = model.JobStatusProcessing
		j.LockedAt = &lockedAt
		j.UpdatedAt = now
		out = append(out, cloneJob(*j))
	}
	return out, nil
}

func claimable(j *model.Job, now, leaseCutoff time.Time) bool {
	switch j.Status {
	case model.JobStatusProcessing:
		return j.LockedAt != nil && !j.LockedAt.After(leaseCutoff)
	default:
		return !j.NextRunAt.After(now)
	}
}

func (s *Store) Complete(_ context.Context, job model.Job, c model.Completion, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.stageJobs(job.Stage)[job.Key()]
	if !ok || j.Status != model.JobStatusProcessing || j.LockedAt == nil || job.LockedAt == nil || !j.LockedAt.Equal(*job.LockedAt) {
		return store.ErrLeaseLost
	}
	j.Status = c.Status
	j.Attempts = c.Attempts
	j.LockedAt = nil
	j.NextRunAt = c.NextRunAt
	j.UpdatedAt = now
	if c.LastError != nil {
		msg := *c.LastError
		j.LastError = &msg
	} else {
		j.LastError = nil
	}
	if c.Scanned {
		scanned := now
		j.LastScannedAt = &scanned
	}
	return nil
}

func (s *Store) GetJobs(_ context.Context, stage model.Stage, keys []model.TokenKey) (map[model.TokenKey]model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := s.stageJobs(stage)
	out := make(map[model.TokenKey]model.Job, len(keys))
	for _, k := range keys {
		if j, ok := rows[k]; ok {
			out[k] = cloneJob(*j)
		}
	}
	return out, nil
}

func (s *Store) stageJobs(stage model.Stage) map[model.TokenKey]*model.Job {
	rows, ok := s.jobs[stage]
	if !ok {
		rows = make(map[model.TokenKey]*model.Job)
		s.jobs[stage] = rows
	}
	return rows
}

func cloneJob(j model.Job) model.Job {
	if j.LockedAt != nil {
		t := *j.LockedAt
		j.LockedAt = &t
	}
	if j.LastError != nil {
		e := *j.LastError
		j.LastError = &e
	}
	if j.LastScannedAt != nil {
		t := *j.LastScannedAt
		j.LastScannedAt = &t
	}
	return j
}

// ---- caches ----

func (s *Store) GetSecurity(_ context.Context, keys []model.TokenKey) (map[model.TokenKey]model.SecurityEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[model.TokenKey]model.SecurityEntry, len(keys))
	for _, k := range keys {
		if e, ok := s.security[k]; ok {
			out[k] = e
		}
	}
	return out, nil
}

// PutSecurity applies the scam-permanence rule: a stored always-deny entry
// is never replaced by a non-deny verdict, only its scanned_at moves forward.
func (s *Store) PutSecurity(_ context.Context, entry model.SecurityEntry) (store.PutResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := entry.Key()
	existing, ok := s.security[key]
	res, stored := store.MergeSecurity(existing, ok, entry)
	if res.Outcome != store.PutStale {
		s.security[key] = stored
	}
	if res.NewlyDenied {
		s.denyLog = append(s.denyLog, model.TokenDenyLog{
			ID:           uuid.New(),
			ChainID:      entry.ChainID,
			TokenAddress: entry.TokenAddress,
			Reasons:      append([]string(nil), entry.DenyReasons...),
			Source:       store.DenySourceTokenSecurity,
			CreatedAt:    entry.ScannedAt,
		})
	}
	return res, nil
}

// DenyLog returns the audit rows written so far.
func (s *Store) DenyLog() []model.TokenDenyLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.TokenDenyLog(nil), s.denyLog...)
}

func (s *Store) GetRugpull(_ context.Context, keys []model.TokenKey) (map[model.TokenKey]model.RugpullEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[model.TokenKey]model.RugpullEntry, len(keys))
	for _, k := range keys {
		if e, ok := s.rugpull[k]; ok {
			out[k] = e
		}
	}
	return out, nil
}

func (s *Store) PutRugpull(_ context.Context, entry model.RugpullEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := entry.Key()
	if existing, ok := s.rugpull[key]; ok && existing.ScannedAt.After(entry.ScannedAt) {
		return nil
	}
	s.rugpull[key] = entry
	return nil
}

func (s *Store) GetURLRisk(_ context.Context, urls []string) (map[string]model.URLRiskEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]model.URLRiskEntry, len(urls))
	for _, u := range urls {
		if e, ok := s.urlRisk[u]; ok {
			out[u] = e
		}
	}
	return out, nil
}

func (s *Store) PutURLRisk(_ context.Context, entry model.URLRiskEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.urlRisk[entry.URL]; ok && existing.ScannedAt.After(entry.ScannedAt) {
		return nil
	}
	s.urlRisk[entry.URL] = entry
	return nil
}

// ---- tokens & feed ----

func (s *Store) UpsertSnapshots(_ context.Context, snaps []model.TokenSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, snap := range snaps {
		key := snap.Key()
		if existing, ok := s.tokens[key]; ok && snap.LastActivityAt == nil {
			snap.LastActivityAt = existing.LastActivityAt
		}
		s.tokens[key] = snap
	}
	return nil
}

func (s *Store) GetSnapshots(_ context.Context, keys []model.TokenKey) (map[model.TokenKey]model.TokenSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[model.TokenKey]model.TokenSnapshot, len(keys))
	for _, k := range keys {
		if snap, ok := s.tokens[k]; ok {
			out[k] = snap
		}
	}
	return out, nil
}

func (s *Store) NextPage(_ context.Context, q store.FeedQuery) ([]model.TokenSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := s.seen[q.ClientID]

	var rows []model.TokenSnapshot
	for key, snap := range s.tokens {
		if _, ok := seen[key]; ok {
			continue
		}
		if q.Cursor != nil && !snap.UpdatedAt.Before(*q.Cursor) {
			continue
		}
		if !q.Filter.Matches(snap) {
			continue
		}
		rows = append(rows, snap)
	}
	sort.Slice(rows, func(a, b int) bool {
		if !rows[a].UpdatedAt.Equal(rows[b].UpdatedAt) {
			return rows[a].UpdatedAt.After(rows[b].UpdatedAt)
		}
		return rows[a].Key().String() < rows[b].Key().String()
	})
	if q.Limit > 0 && len(rows) > q.Limit {
		rows = rows[:q.Limit]
	}
	return rows, nil
}

func (s *Store) MarkSeen(_ context.Context, clientID string, keys []model.TokenKey, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen, ok := s.seen[clientID]
	if !ok {
		seen = make(map[model.TokenKey]time.Time)
		s.seen[clientID] = seen
	}
	for _, k := range keys {
		if _, exists := seen[k]; !exists {
			seen[k] = at
		}
	}
	return nil
}

// ---- wishlist ----

func (s *Store) ListWishlist(_ context.Context, clientID string, limit int) ([]model.WishlistItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := append([]model.WishlistItem(nil), s.wishlist[clientID]...)
	sort.SliceStable(items, func(a, b int) bool {
		return items[a].CreatedAt.After(items[b].CreatedAt)
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// AddWishlist seeds a wishlist row. Wishlist writes belong to a separate
// service; this exists for local runs and tests.
func (s *Store) AddWishlist(item model.WishlistItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wishlist[item.ClientID] = append(s.wishlist[item.ClientID], item)
}

// ---- chain mappings ----

func (s *Store) ListChains(_ context.Context) ([]model.Chain, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Chain, 0, len(s.chains))
	for _, c := range s.chains {
		out = append(out, c)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out, nil
}

func (s *Store) UpsertChains(_ context.Context, chains []model.Chain) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range chains {
		s.chains[c.ID] = c
	}
	return nil
}

// ---- daily usage ----

func (s *Store) Reserve(_ context.Context, day time.Time, limit uint) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := store.DayKey(day)
	if s.daily[d] >= limit {
		return false, nil
	}
	s.daily[d]++
	return true, nil
}

func (s *Store) Count(_ context.Context, day time.Time) (uint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.daily[store.DayKey(day)], nil
}

// ---- ingestion runs ----

func (s *Store) StartRun(_ context.Context, run *model.IngestionRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	s.runs[run.ID] = *run
	return nil
}

func (s *Store) FinishRun(_ context.Context, run *model.IngestionRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = *run
	return nil
}

// Runs returns every recorded ingestion run, oldest first.
func (s *Store) Runs() []model.IngestionRun {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.IngestionRun, 0, len(s.runs))
	for _, r := range s.runs {
		out = append(out, r)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].StartedAt.Before(out[b].StartedAt) })
	return out
}

// ---- access tokens ----

func (s *Store) GetToken(_ context.Context, key string) (string, time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.access[key]
	if !ok {
		return "", time.Time{}, false, nil
	}
	return e.token, e.expiresAt, true, nil
}

func (s *Store) SetToken(_ context.Context, key, token string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.access[key] = tokenEntry{token: token, expiresAt: expiresAt}
	return nil
}
