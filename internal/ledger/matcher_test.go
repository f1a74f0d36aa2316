package ledger

import (
	"testing"

	"tradeledgerv1/internal/model"
)

func TestConsumeSell_FIFOAcrossLots(t *testing.T) {
	st := &memStore{lots: []model.Lot{
		{Instrument: "SBIN-EQ", AcquiredAt: "2024-01-15 09:15:00", Price: 100, RemainingQty: 10, OrderIDs: "b1"},
		{Instrument: "SBIN-EQ", AcquiredAt: "2024-01-16 09:15:00", Price: 110, RemainingQty: 10, OrderIDs: "b2"},
	}}
	l := New(st)

	trades, err := l.ConsumeSell("SBIN-EQ", "2024-01-20 09:15:00", 120, 15, "s1")
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if len(trades) != 2 {
		t.Fatalf("expected 2 fragments, got %d", len(trades))
	}

	// Oldest lot consumed fully first.
	if trades[0].BuyPrice != 100 || trades[0].BuyQty != 10 {
		t.Errorf("fragment 0: %+v", trades[0])
	}
	if trades[0].PnL != 200 {
		t.Errorf("fragment 0 pnl: got %v, want 200", trades[0].PnL)
	}
	if trades[0].HoldingDays != 5 {
		t.Errorf("fragment 0 holding days: got %d, want 5", trades[0].HoldingDays)
	}

	// Second lot consumed partially.
	if trades[1].BuyPrice != 110 || trades[1].BuyQty != 5 {
		t.Errorf("fragment 1: %+v", trades[1])
	}
	if trades[1].PnL != 50 {
		t.Errorf("fragment 1 pnl: got %v, want 50", trades[1].PnL)
	}
	if trades[1].HoldingDays != 4 {
		t.Errorf("fragment 1 holding days: got %d, want 4", trades[1].HoldingDays)
	}

	// B2 survives with the reduced quantity.
	if len(st.lots) != 1 {
		t.Fatalf("expected 1 surviving lot, got %d", len(st.lots))
	}
	if st.lots[0].OrderIDs != "b2" || st.lots[0].RemainingQty != 5 {
		t.Errorf("surviving lot: %+v", st.lots[0])
	}
}

func TestConsumeSell_Conservation(t *testing.T) {
	st := &memStore{lots: []model.Lot{
		{Instrument: "SBIN-EQ", AcquiredAt: "2024-01-15 09:15:00", Price: 100, RemainingQty: 7},
		{Instrument: "SBIN-EQ", AcquiredAt: "2024-01-16 09:15:00", Price: 101, RemainingQty: 8},
		{Instrument: "SBIN-EQ", AcquiredAt: "2024-01-17 09:15:00", Price: 102, RemainingQty: 9},
	}}
	l := New(st)
	totalBought := int64(7 + 8 + 9)
	sellQty := int64(12)

	trades, err := l.ConsumeSell("SBIN-EQ", "2024-01-20 09:15:00", 105, sellQty, "s1")
	if err != nil {
		t.Fatalf("consume: %v", err)
	}

	var matched int64
	for _, tr := range trades {
		if tr.BuyQty <= 0 {
			t.Errorf("fragment with non-positive quantity: %+v", tr)
		}
		if tr.BuyQty != tr.SellQty {
			t.Errorf("buy/sell quantity mismatch: %+v", tr)
		}
		matched += tr.BuyQty
	}
	if matched != sellQty {
		t.Errorf("matched %d, want %d", matched, sellQty)
	}

	var open int64
	for _, lot := range st.lots {
		if lot.RemainingQty <= 0 {
			t.Errorf("zero-quantity lot persisted: %+v", lot)
		}
		open += lot.RemainingQty
	}
	if open != totalBought-sellQty {
		t.Errorf("open quantity %d, want %d", open, totalBought-sellQty)
	}
}

func TestConsumeSell_OversellClamped(t *testing.T) {
	st := &memStore{lots: []model.Lot{
		{Instrument: "SBIN-EQ", AcquiredAt: "2024-01-15 09:15:00", Price: 100, RemainingQty: 12},
		{Instrument: "SBIN-EQ", AcquiredAt: "2024-01-16 09:15:00", Price: 110, RemainingQty: 8},
	}}
	l := New(st)

	var droppedInstrument string
	var droppedQty int64
	l.OnOversell = func(instrument string, qty int64) {
		droppedInstrument = instrument
		droppedQty = qty
	}

	trades, err := l.ConsumeSell("SBIN-EQ", "2024-01-20 09:15:00", 120, 25, "s1")
	if err != nil {
		t.Fatalf("oversell must not error: %v", err)
	}

	var matched int64
	for _, tr := range trades {
		matched += tr.SellQty
	}
	if matched != 20 {
		t.Errorf("matched %d, want 20 (only open quantity)", matched)
	}
	if len(st.lots) != 0 {
		t.Errorf("expected empty ledger, got %d lots", len(st.lots))
	}
	if droppedInstrument != "SBIN-EQ" || droppedQty != 5 {
		t.Errorf("oversell hook: got (%q, %d), want (SBIN-EQ, 5)", droppedInstrument, droppedQty)
	}
}

func TestConsumeSell_OtherInstrumentsPassThrough(t *testing.T) {
	st := &memStore{lots: []model.Lot{
		{Instrument: "INFY-EQ", AcquiredAt: "2024-01-14 09:15:00", Price: 1500, RemainingQty: 5, OrderIDs: "i1"},
		{Instrument: "SBIN-EQ", AcquiredAt: "2024-01-15 09:15:00", Price: 100, RemainingQty: 10, OrderIDs: "b1"},
		{Instrument: "TCS-EQ", AcquiredAt: "2024-01-16 09:15:00", Price: 3800, RemainingQty: 2, OrderIDs: "t1"},
	}}
	l := New(st)

	if _, err := l.ConsumeSell("SBIN-EQ", "2024-01-20 09:15:00", 120, 10, "s1"); err != nil {
		t.Fatalf("consume: %v", err)
	}

	if len(st.lots) != 2 {
		t.Fatalf("expected 2 surviving lots, got %d", len(st.lots))
	}
	for _, lot := range st.lots {
		if lot.Instrument == "SBIN-EQ" {
			t.Errorf("SBIN-EQ lot should be fully consumed: %+v", lot)
		}
		if lot.Instrument == "INFY-EQ" && lot.RemainingQty != 5 {
			t.Errorf("INFY-EQ mutated: %+v", lot)
		}
		if lot.Instrument == "TCS-EQ" && lot.RemainingQty != 2 {
			t.Errorf("TCS-EQ mutated: %+v", lot)
		}
	}
}

func TestConsumeSell_UnreachedLotsUntouched(t *testing.T) {
	st := &memStore{lots: []model.Lot{
		{Instrument: "SBIN-EQ", AcquiredAt: "2024-01-15 09:15:00", Price: 100, RemainingQty: 10, OrderIDs: "b1"},
		{Instrument: "SBIN-EQ", AcquiredAt: "2024-01-16 09:15:00", Price: 110, RemainingQty: 10, OrderIDs: "b2"},
	}}
	l := New(st)

	trades, err := l.ConsumeSell("SBIN-EQ", "2024-01-20 09:15:00", 120, 10, "s1")
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if len(trades) != 1 {
		t.Fatalf("expected 1 fragment, got %d", len(trades))
	}
	if len(st.lots) != 1 || st.lots[0].OrderIDs != "b2" || st.lots[0].RemainingQty != 10 {
		t.Errorf("newer lot should be untouched: %+v", st.lots)
	}
}

func TestConsumeSell_SortsUnorderedStorage(t *testing.T) {
	// The store does not guarantee acquisition order; the matcher must
	// still consume oldest-first.
	st := &memStore{lots: []model.Lot{
		{Instrument: "SBIN-EQ", AcquiredAt: "2024-01-16 09:15:00", Price: 110, RemainingQty: 10, OrderIDs: "b2"},
		{Instrument: "SBIN-EQ", AcquiredAt: "2024-01-15 09:15:00", Price: 100, RemainingQty: 10, OrderIDs: "b1"},
	}}
	l := New(st)

	trades, err := l.ConsumeSell("SBIN-EQ", "2024-01-20 09:15:00", 120, 5, "s1")
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if len(trades) != 1 || trades[0].BuyPrice != 100 {
		t.Errorf("expected oldest lot (price 100) consumed first, got %+v", trades)
	}
}

func TestConsumeSell_HoldingDaysClampedToZero(t *testing.T) {
	// Feed jitter: sell timestamp earlier than the matched buy.
	st := &memStore{lots: []model.Lot{
		{Instrument: "SBIN-EQ", AcquiredAt: "2024-01-15 09:15:00", Price: 100, RemainingQty: 10},
	}}
	l := New(st)

	trades, err := l.ConsumeSell("SBIN-EQ", "2024-01-14 09:15:00", 120, 10, "s1")
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if trades[0].HoldingDays != 0 {
		t.Errorf("holding days: got %d, want 0", trades[0].HoldingDays)
	}
}

func TestConsumeSell_PnLRounded(t *testing.T) {
	st := &memStore{lots: []model.Lot{
		{Instrument: "SBIN-EQ", AcquiredAt: "2024-01-15 09:15:00", Price: 100.10, RemainingQty: 3},
	}}
	l := New(st)

	trades, err := l.ConsumeSell("SBIN-EQ", "2024-01-16 09:15:00", 100.21, 3, "s1")
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	// (100.21 - 100.10) * 3 carries float noise; the journal stores
	// paise precision.
	if trades[0].PnL != 0.33 {
		t.Errorf("pnl: got %v, want 0.33", trades[0].PnL)
	}
}

func TestConsumeSell_RejectsNonPositiveQty(t *testing.T) {
	l := New(&memStore{})
	if _, err := l.ConsumeSell("SBIN-EQ", "2024-01-15 09:15:00", 100, 0, "s1"); err == nil {
		t.Error("expected error for zero quantity")
	}
}
