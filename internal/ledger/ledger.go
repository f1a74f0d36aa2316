// Package ledger maintains the open-lot inventory and matches sell
// fills against it FIFO. The backing store is a whole-table read/write
// surface with no partial update and no compare-and-swap, so every
// mutation is a load-modify-rewrite serialized by a single mutex.
package ledger

import (
	"fmt"
	"sync"

	"tradeledgerv1/internal/markettime"
	"tradeledgerv1/internal/model"
)

// LotStore is the durable open-lots table.
type LotStore interface {
	LoadOpenLots() ([]model.Lot, error)
	ReplaceOpenLots([]model.Lot) error
}

// Ledger is the set of open lots across all instruments.
type Ledger struct {
	mu    sync.Mutex
	store LotStore

	// OnOversell is invoked when a sell exceeds the open quantity for
	// its instrument. The excess is dropped, not an error, but it
	// signals inventory drift and callers want to count it.
	OnOversell func(instrument string, droppedQty int64)
}

// New creates a Ledger over the given store.
func New(store LotStore) *Ledger {
	return &Ledger{store: store}
}

// AppendLot records a buy fill as a new lot at the logical end of the
// inventory for its instrument, then rewrites the whole table.
func (l *Ledger) AppendLot(instrument, acquiredAt string, price float64, qty int64, orderID string) error {
	if qty <= 0 {
		return fmt.Errorf("ledger: lot quantity must be positive, got %d", qty)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	lots, err := l.store.LoadOpenLots()
	if err != nil {
		return fmt.Errorf("ledger: load: %w", err)
	}
	lots = append(lots, model.Lot{
		Instrument:   instrument,
		AcquiredAt:   acquiredAt,
		Price:        price,
		RemainingQty: qty,
		OrderIDs:     orderID,
	})
	return l.rewrite(lots)
}

// OpenLots returns a snapshot of all open lots in storage order.
func (l *Ledger) OpenLots() ([]model.Lot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lots, err := l.store.LoadOpenLots()
	if err != nil {
		return nil, fmt.Errorf("ledger: load: %w", err)
	}
	return lots, nil
}

// rewrite persists the surviving set wholesale. Holding days are
// refreshed against now for every lot; the column is display-only.
func (l *Ledger) rewrite(lots []model.Lot) error {
	now := markettime.Now()
	for i := range lots {
		lots[i].HoldingDays = markettime.WholeDaysBetween(lots[i].AcquiredAt, now)
	}
	if err := l.store.ReplaceOpenLots(lots); err != nil {
		return fmt.Errorf("ledger: rewrite: %w", err)
	}
	return nil
}
