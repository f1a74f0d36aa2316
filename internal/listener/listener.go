// Package listener turns raw order-status frames into fills the engine
// can consume. Only completed executions with a symbol, a price and a
// quantity pass through; everything else on the stream is noise here.
package listener

import (
	"context"
	"log"

	"tradeledgerv1/internal/markettime"
	"tradeledgerv1/internal/model"
	"tradeledgerv1/pkg/smartconnect"
)

// FillFromUpdate converts an order update into a Fill. The second
// return is false when the update is not a usable completed fill.
func FillFromUpdate(u smartconnect.OrderUpdate) (model.Fill, bool) {
	if u.Status != "COMPLETE" {
		return model.Fill{}, false
	}
	if u.TransactionType != model.SideBuy && u.TransactionType != model.SideSell {
		return model.Fill{}, false
	}
	if u.TradingSymbol == "" || u.AveragePrice == 0 || u.FilledQuantity == 0 {
		return model.Fill{}, false
	}

	ts := u.ExchangeTimestamp
	if ts == nil || ts == "" {
		ts = u.OrderTimestamp
	}

	exchange := u.Exchange
	if exchange == "" {
		exchange = "NSE"
	}

	return model.Fill{
		Instrument:  u.TradingSymbol,
		SymbolToken: u.SymbolToken,
		Exchange:    exchange,
		Side:        u.TransactionType,
		Price:       u.AveragePrice,
		Qty:         u.FilledQuantity,
		FilledAt:    markettime.Normalize(ts),
		OrderID:     u.OrderID,
	}, true
}

// Run filters updates from updateCh onto fillCh. Blocks until ctx is
// cancelled or updateCh is closed.
func Run(ctx context.Context, updateCh <-chan smartconnect.OrderUpdate, fillCh chan<- model.Fill) {
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updateCh:
			if !ok {
				return
			}
			fill, ok := FillFromUpdate(u)
			if !ok {
				continue
			}
			log.Printf("[listener] %s fill: %s %d @ %.2f (%s)",
				fill.Side, fill.Instrument, fill.Qty, fill.Price, fill.FilledAt)
			select {
			case <-ctx.Done():
				return
			case fillCh <- fill:
			}
		}
	}
}
