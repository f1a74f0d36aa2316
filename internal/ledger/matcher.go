package ledger

import (
	"fmt"
	"log"
	"sort"

	"tradeledgerv1/internal/markettime"
	"tradeledgerv1/internal/model"
)

// ConsumeSell matches a sell fill against the open lots for its
// instrument, oldest acquisition first. It returns one realized trade
// per consumed lot fragment, in consumption order, and rewrites the
// whole table with the surviving lots. Lots of other instruments and
// lots the sell never reached pass through unchanged.
//
// When the sell quantity exceeds the total open quantity the excess is
// dropped: the feed is the source of truth and apparent oversells are
// reported through OnOversell, not rejected.
func (l *Ledger) ConsumeSell(instrument, sellAt string, sellPrice float64, sellQty int64, sellOrderID string) ([]model.RealizedTrade, error) {
	if sellQty <= 0 {
		return nil, fmt.Errorf("ledger: sell quantity must be positive, got %d", sellQty)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	lots, err := l.store.LoadOpenLots()
	if err != nil {
		return nil, fmt.Errorf("ledger: load: %w", err)
	}

	// Storage order is not contractual. Canonical timestamps sort
	// lexicographically in chronological order, and a stable sort keeps
	// same-second lots in append order.
	sort.SliceStable(lots, func(i, j int) bool {
		return lots[i].AcquiredAt < lots[j].AcquiredAt
	})

	remaining := sellQty
	surviving := make([]model.Lot, 0, len(lots))
	var trades []model.RealizedTrade

	for _, lot := range lots {
		if lot.Instrument != instrument || remaining <= 0 {
			surviving = append(surviving, lot)
			continue
		}

		take := remaining
		if lot.RemainingQty < take {
			take = lot.RemainingQty
		}

		trades = append(trades, model.RealizedTrade{
			Instrument:   lot.Instrument,
			BuyDateTime:  lot.AcquiredAt,
			BuyPrice:     lot.Price,
			BuyQty:       take,
			SellDateTime: sellAt,
			SellPrice:    sellPrice,
			SellQty:      take,
			PnL:          model.Round2((sellPrice - lot.Price) * float64(take)),
			HoldingDays:  markettime.WholeDaysBetween(lot.AcquiredAt, sellAt),
		})

		lot.RemainingQty -= take
		remaining -= take
		if lot.RemainingQty > 0 {
			surviving = append(surviving, lot)
		}
	}

	if remaining > 0 {
		log.Printf("[ledger] oversell on %s: %d of %d sold without open inventory (order %s)",
			instrument, remaining, sellQty, sellOrderID)
		if l.OnOversell != nil {
			l.OnOversell(instrument, remaining)
		}
	}

	if err := l.rewrite(surviving); err != nil {
		return nil, err
	}
	return trades, nil
}
