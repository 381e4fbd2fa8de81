package budget

import "sync"

// Ledger tracks compute units spent in one run. It is safe for use by the
// per-chain workers of a run.
type Ledger struct {
	mu    sync.Mutex
	limit uint
	used  uint
}

func NewLedger(limit uint) *Ledger {
	return &Ledger{limit: limit}
}

func (l *Ledger) Limit() uint {
	return l.limit
}

func (l *Ledger) Used() uint {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.used
}

func (l *Ledger) Remaining() uint {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.limit - l.used
}

// CanAfford reports whether cost fits in the remaining budget.
func CanAfford(l *Ledger, cost uint) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.used+cost <= l.limit
}

// Charge records cost against the ledger unconditionally.
func Charge(l *Ledger, cost uint) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.used += cost
}

// TryCharge checks and charges in one step.
func (l *Ledger) TryCharge(cost uint) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.used+cost > l.limit {
		return false
	}
	l.used += cost
	return true
}

// Refund returns cost to the ledger, for reservations that did not turn
// into a provider call.
func (l *Ledger) Refund(cost uint) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if cost > l.used {
		l.used = 0
		return
	}
	l.used -= cost
}
