package sqlite

import (
	"path/filepath"
	"testing"

	"tradeledgerv1/internal/model"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(Config{DBPath: filepath.Join(t.TempDir(), "journal.db")})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestReplaceOpenLots_FullReplace(t *testing.T) {
	s := testStore(t)

	first := []model.Lot{
		{Instrument: "SBIN-EQ", AcquiredAt: "2024-01-15 09:15:00", Price: 600, RemainingQty: 10, OrderIDs: "o1"},
		{Instrument: "INFY-EQ", AcquiredAt: "2024-01-15 10:00:00", Price: 1500, RemainingQty: 5, OrderIDs: "o2"},
	}
	if err := s.ReplaceOpenLots(first); err != nil {
		t.Fatalf("first replace: %v", err)
	}

	// A rewrite replaces everything, not just changed rows.
	second := []model.Lot{
		{Instrument: "INFY-EQ", AcquiredAt: "2024-01-15 10:00:00", Price: 1500, RemainingQty: 3, OrderIDs: "o2"},
	}
	if err := s.ReplaceOpenLots(second); err != nil {
		t.Fatalf("second replace: %v", err)
	}

	got, err := s.LoadOpenLots()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 lot after replace, got %d", len(got))
	}
	if got[0].Instrument != "INFY-EQ" || got[0].RemainingQty != 3 {
		t.Errorf("unexpected surviving lot: %+v", got[0])
	}
}

func TestLoadOpenLots_PreservesAppendOrder(t *testing.T) {
	s := testStore(t)

	lots := []model.Lot{
		{Instrument: "SBIN-EQ", AcquiredAt: "2024-01-15 09:15:00", Price: 600, RemainingQty: 10},
		{Instrument: "SBIN-EQ", AcquiredAt: "2024-01-16 09:15:00", Price: 610, RemainingQty: 10},
		{Instrument: "SBIN-EQ", AcquiredAt: "2024-01-17 09:15:00", Price: 620, RemainingQty: 10},
	}
	if err := s.ReplaceOpenLots(lots); err != nil {
		t.Fatalf("replace: %v", err)
	}

	got, err := s.LoadOpenLots()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	for i := range lots {
		if got[i].AcquiredAt != lots[i].AcquiredAt {
			t.Errorf("row %d: got %q, want %q", i, got[i].AcquiredAt, lots[i].AcquiredAt)
		}
	}
}

func TestJournal_AppendOnly(t *testing.T) {
	s := testStore(t)

	batch1 := []model.RealizedTrade{
		{Serial: 1, Instrument: "SBIN-EQ", BuyDateTime: "2024-01-15 09:15:00", BuyPrice: 600, BuyQty: 10,
			SellDateTime: "2024-01-20 09:15:00", SellPrice: 620, SellQty: 10, PnL: 200, HoldingDays: 5},
	}
	if err := s.AppendJournalRows(batch1); err != nil {
		t.Fatalf("append 1: %v", err)
	}
	batch2 := []model.RealizedTrade{
		{Serial: 2, Instrument: "INFY-EQ", BuyDateTime: "2024-01-15 10:00:00", BuyPrice: 1500, BuyQty: 5,
			SellDateTime: "2024-01-16 10:00:00", SellPrice: 1490, SellQty: 5, PnL: -50, HoldingDays: 1},
	}
	if err := s.AppendJournalRows(batch2); err != nil {
		t.Fatalf("append 2: %v", err)
	}

	serials, err := s.SerialColumn()
	if err != nil {
		t.Fatalf("serials: %v", err)
	}
	if len(serials) != 2 || serials[0] != "1" || serials[1] != "2" {
		t.Errorf("serial column: got %v, want [1 2]", serials)
	}

	rows, err := s.JournalRows(10)
	if err != nil {
		t.Fatalf("journal rows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	// Newest first.
	if rows[0].Serial != 2 || rows[1].Serial != 1 {
		t.Errorf("expected newest-first ordering, got serials %d, %d", rows[0].Serial, rows[1].Serial)
	}
}

func TestConfig_RoundTrip(t *testing.T) {
	s := testStore(t)

	got, err := s.GetConfig("ACCESS_TOKEN")
	if err != nil {
		t.Fatalf("get empty: %v", err)
	}
	if got != "" {
		t.Errorf("expected empty value for unset key, got %q", got)
	}

	if err := s.SetConfig("ACCESS_TOKEN", "tok-1"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.SetConfig("ACCESS_TOKEN", "tok-2"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	got, err = s.GetConfig("ACCESS_TOKEN")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "tok-2" {
		t.Errorf("expected tok-2, got %q", got)
	}
}
