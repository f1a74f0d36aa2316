// Package execution processes fills end-to-end: a buy fill opens a lot
// and arms a protective exit, a sell fill is matched FIFO against open
// lots and the realized trades are journaled and published. One fill is
// processed to completion before the next is accepted — the ledger's
// load-modify-rewrite persistence has no room for interleaving.
package execution

import (
	"context"
	"fmt"
	"log"

	"tradeledgerv1/internal/journal"
	"tradeledgerv1/internal/ledger"
	"tradeledgerv1/internal/model"
)

// ExitPlacer places a protective sell rule after a buy fill.
type ExitPlacer interface {
	PlaceExitSell(fill model.Fill, triggerPrice, limitPrice float64) (string, error)
}

// RealizedPublisher fans realized trades out to downstream consumers.
type RealizedPublisher interface {
	PublishRealized(ctx context.Context, trade model.RealizedTrade)
}

// Hooks are optional observation points for metrics and health.
type Hooks struct {
	OnFill        func(side string)
	OnRealized    func(count int)
	OnExitFailure func()
}

// Executor consumes fills and applies them to the ledger and journal.
type Executor struct {
	ledger  *ledger.Ledger
	journal *journal.Serializer

	// Optional collaborators; nil disables the feature.
	exits     ExitPlacer
	publisher RealizedPublisher
	hooks     Hooks

	exitStopPct float64
}

// New creates an Executor. exits and publisher may be nil.
func New(ldg *ledger.Ledger, jrn *journal.Serializer, exits ExitPlacer, publisher RealizedPublisher, exitStopPct float64, hooks Hooks) *Executor {
	return &Executor{
		ledger:      ldg,
		journal:     jrn,
		exits:       exits,
		publisher:   publisher,
		hooks:       hooks,
		exitStopPct: exitStopPct,
	}
}

// Run consumes fills one at a time until ctx is cancelled or fillCh is
// closed. A failed fill is logged and the loop moves on; there is no
// retry of the same event.
func (e *Executor) Run(ctx context.Context, fillCh <-chan model.Fill) {
	for {
		select {
		case <-ctx.Done():
			return
		case fill, ok := <-fillCh:
			if !ok {
				return
			}
			if err := e.ProcessFill(ctx, fill); err != nil {
				log.Printf("[executor] fill %s dropped: %v", fill.OrderID, err)
			}
		}
	}
}

// ProcessFill applies one fill to the ledger and, for sells, the
// journal. Store failures propagate to the caller.
func (e *Executor) ProcessFill(ctx context.Context, fill model.Fill) error {
	if e.hooks.OnFill != nil {
		e.hooks.OnFill(fill.Side)
	}

	switch fill.Side {
	case model.SideBuy:
		return e.processBuy(fill)
	case model.SideSell:
		return e.processSell(ctx, fill)
	default:
		return fmt.Errorf("executor: unknown side %q", fill.Side)
	}
}

func (e *Executor) processBuy(fill model.Fill) error {
	if err := e.ledger.AppendLot(fill.Instrument, fill.FilledAt, fill.Price, fill.Qty, fill.OrderID); err != nil {
		return err
	}
	log.Printf("[executor] BUY logged: %s %d @ %.2f (%s)", fill.Instrument, fill.Qty, fill.Price, fill.FilledAt)

	e.placeProtectiveExit(fill)
	return nil
}

// placeProtectiveExit arms a GTT sell below the acquisition price. A
// placement failure never fails the fill — the lot is already durable.
func (e *Executor) placeProtectiveExit(fill model.Fill) {
	if e.exits == nil || e.exitStopPct <= 0 {
		return
	}
	trigger := model.Round2(fill.Price * (1 - e.exitStopPct/100))
	limit := model.Round2(fill.Price * (1 - (e.exitStopPct+0.1)/100))

	ruleID, err := e.exits.PlaceExitSell(fill, trigger, limit)
	if err != nil {
		log.Printf("[executor] WARNING: exit order for %s failed: %v", fill.Instrument, err)
		if e.hooks.OnExitFailure != nil {
			e.hooks.OnExitFailure()
		}
		return
	}
	log.Printf("[executor] exit armed for %s: trigger %.2f, limit %.2f, qty %d (rule %s)",
		fill.Instrument, trigger, limit, fill.Qty, ruleID)
}

func (e *Executor) processSell(ctx context.Context, fill model.Fill) error {
	trades, err := e.ledger.ConsumeSell(fill.Instrument, fill.FilledAt, fill.Price, fill.Qty, fill.OrderID)
	if err != nil {
		return err
	}
	log.Printf("[executor] SELL logged: %s %d @ %.2f -> %d realized", fill.Instrument, fill.Qty, fill.Price, len(trades))

	if len(trades) == 0 {
		return nil
	}
	if err := e.journal.AppendRealized(trades); err != nil {
		return err
	}
	if e.hooks.OnRealized != nil {
		e.hooks.OnRealized(len(trades))
	}
	if e.publisher != nil {
		for _, trade := range trades {
			e.publisher.PublishRealized(ctx, trade)
		}
	}
	return nil
}
