// Package journal assigns gap-free ascending serial numbers to
// realized trades and appends them to the durable trade journal.
package journal

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"tradeledgerv1/internal/model"
)

// Store is the append-only journal table.
type Store interface {
	SerialColumn() ([]string, error)
	AppendJournalRows([]model.RealizedTrade) error
}

// Serializer numbers realized trades and writes them in one batch.
type Serializer struct {
	mu    sync.Mutex
	store Store
}

// NewSerializer creates a Serializer over the given store.
func NewSerializer(store Store) *Serializer {
	return &Serializer{store: store}
}

// NextSerial scans the serial column from the end backward for the
// first integer-parseable cell and returns that value plus one, or 1
// when no valid cell exists. Stray non-numeric rows are skipped, never
// fatal: the journal favors availability over strict validation.
func (s *Serializer) NextSerial() (int64, error) {
	serials, err := s.store.SerialColumn()
	if err != nil {
		return 0, fmt.Errorf("journal: read serials: %w", err)
	}
	for i := len(serials) - 1; i >= 0; i-- {
		n, err := strconv.ParseInt(strings.TrimSpace(serials[i]), 10, 64)
		if err == nil {
			return n + 1, nil
		}
	}
	return 1, nil
}

// AppendRealized assigns consecutive serials to the trades in the
// order supplied (FIFO consumption order) and appends them as one
// batch. Must be called with a non-empty slice.
func (s *Serializer) AppendRealized(trades []model.RealizedTrade) error {
	if len(trades) == 0 {
		return fmt.Errorf("journal: empty batch")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	start, err := s.NextSerial()
	if err != nil {
		return err
	}
	for i := range trades {
		trades[i].Serial = start + int64(i)
	}
	if err := s.store.AppendJournalRows(trades); err != nil {
		return fmt.Errorf("journal: append: %w", err)
	}
	return nil
}
