package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/apfl99/DexSwipe-Backend/internal/domain/model"
)

// WishlistRow is one saved token joined with its current market view.
type WishlistRow struct {
	Item     model.WishlistItem
	Snapshot *model.TokenSnapshot
	Score    model.ScoreResult
	Surging  bool
	ROI      *float64
}

type WishlistView struct {
	Rows      []WishlistRow
	Limit     int
	Refreshed RefreshStats
}

// Wishlist loads a client's saved tokens. Rows whose snapshot is missing,
// has no price, or is older than the stale window are refreshed live first.
func (a *Aggregator) Wishlist(ctx context.Context, clientID string, limit int) (WishlistView, error) {
	limit = ClampLimit(limit, DefaultWishlistLimit, MaxWishlistLimit)
	items, err := a.deps.Wishlist.ListWishlist(ctx, clientID, limit)
	if err != nil {
		return WishlistView{}, fmt.Errorf("list wishlist: %w", err)
	}
	view := WishlistView{Limit: limit, Rows: []WishlistRow{}}
	if len(items) == 0 {
		return view, nil
	}

	keys := make([]model.TokenKey, len(items))
	for i, it := range items {
		keys[i] = a.deps.Chains.Key(it.ChainID, it.TokenAddress)
	}
	snaps, err := a.deps.Tokens.GetSnapshots(ctx, keys)
	if err != nil {
		return WishlistView{}, fmt.Errorf("load wishlist snapshots: %w", err)
	}

	now := a.nowFn()
	var stale []model.TokenKey
	seen := make(map[model.TokenKey]bool, len(keys))
	for _, k := range keys {
		if seen[k] {
			continue
		}
		seen[k] = true
		s, ok := snaps[k]
		if !ok || s.PriceUSD == nil || a.isStale(s.UpdatedAt, now) {
			stale = append(stale, k)
		}
	}
	fresh, stats := a.refresh(ctx, stale, snaps)
	view.Refreshed = stats
	for k, s := range fresh {
		snaps[k] = s
	}

	known := make([]model.TokenSnapshot, 0, len(snaps))
	for _, s := range snaps {
		known = append(known, s)
	}
	scored, err := a.score(ctx, known)
	if err != nil {
		return WishlistView{}, err
	}
	byKey := make(map[model.TokenKey]Row, len(scored))
	for _, r := range scored {
		byKey[r.Candidate.Snapshot.Key()] = r
	}

	for i, it := range items {
		row := WishlistRow{Item: it}
		if r, ok := byKey[keys[i]]; ok {
			snap := r.Candidate.Snapshot
			row.Snapshot = &snap
			row.Score = r.Score
			row.Surging = r.IsSurging
			row.ROI = ROISinceCaptured(snap.PriceUSD, it.CapturedPrice)
		} else {
			row.Score = a.Score(model.FeedCandidate{Snapshot: model.TokenSnapshot{ChainID: it.ChainID, TokenAddress: keys[i].TokenAddress}})
		}
		view.Rows = append(view.Rows, row)
	}
	return view, nil
}

func (a *Aggregator) isStale(updatedAt, now time.Time) bool {
	return updatedAt.IsZero() || now.Sub(updatedAt) >= a.settings.StaleAfter
}
