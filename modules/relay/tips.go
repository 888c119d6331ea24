package relay

import (
	"context"
	"sync"
)

// MemoryTipLedger keeps tip totals in process memory. Totals reset on restart.
type MemoryTipLedger struct {
	mu     sync.Mutex
	totals map[string]float64
}

// NewMemoryTipLedger creates an empty in-memory ledger.
func NewMemoryTipLedger() *MemoryTipLedger {
	return &MemoryTipLedger{totals: make(map[string]float64)}
}

// Credit adds amount to the recipient's total and returns the new total.
func (l *MemoryTipLedger) Credit(_ context.Context, recipientUserID string, amount float64) (float64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.totals[recipientUserID] += amount
	return l.totals[recipientUserID], nil
}

// Total returns the recipient's current total.
func (l *MemoryTipLedger) Total(_ context.Context, recipientUserID string) (float64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.totals[recipientUserID], nil
}
