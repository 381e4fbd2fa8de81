package store

import "github.com/apfl99/DexSwipe-Backend/internal/domain/model"

// DenySourceTokenSecurity labels deny-log rows written by security scans.
const DenySourceTokenSecurity = "goplus_token_security"

// MergeSecurity decides the outcome of writing next over the stored entry
// and returns the row that should be stored afterwards. A stored
// always-deny entry is never replaced by a non-deny verdict; only its
// scanned_at moves forward.
func MergeSecurity(existing model.SecurityEntry, exists bool, next model.SecurityEntry) (PutResult, model.SecurityEntry) {
	if !exists {
		return PutResult{Outcome: PutWritten, NewlyDenied: next.AlwaysDeny}, next
	}
	if existing.AlwaysDeny && !next.AlwaysDeny {
		if next.ScannedAt.After(existing.ScannedAt) {
			existing.ScannedAt = next.ScannedAt
		}
		return PutResult{Outcome: PutKeptDeny}, existing
	}
	if existing.ScannedAt.After(next.ScannedAt) {
		return PutResult{Outcome: PutStale}, existing
	}
	if existing.AlwaysDeny {
		next.DenyReasons = unionReasons(existing.DenyReasons, next.DenyReasons)
	}
	return PutResult{Outcome: PutWritten, NewlyDenied: next.AlwaysDeny && !existing.AlwaysDeny}, next
}

func unionReasons(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, r := range list {
			if _, ok := seen[r]; ok {
				continue
			}
			seen[r] = struct{}{}
			out = append(out, r)
		}
	}
	return out
}
