package journal

import (
	"errors"
	"fmt"
	"testing"

	"tradeledgerv1/internal/model"
)

type memJournal struct {
	serials []string
	rows    []model.RealizedTrade
	failing bool
}

func (m *memJournal) SerialColumn() ([]string, error) {
	if m.failing {
		return nil, errors.New("store down")
	}
	return m.serials, nil
}

func (m *memJournal) AppendJournalRows(trades []model.RealizedTrade) error {
	if m.failing {
		return errors.New("store down")
	}
	for _, t := range trades {
		m.serials = append(m.serials, fmt.Sprintf("%d", t.Serial))
	}
	m.rows = append(m.rows, trades...)
	return nil
}

func frags(n int) []model.RealizedTrade {
	out := make([]model.RealizedTrade, n)
	for i := range out {
		out[i] = model.RealizedTrade{
			Instrument:   "SBIN-EQ",
			BuyDateTime:  "2024-01-15 09:15:00",
			BuyPrice:     100,
			BuyQty:       1,
			SellDateTime: "2024-01-20 09:15:00",
			SellPrice:    110,
			SellQty:      1,
			PnL:          10,
		}
	}
	return out
}

func TestAppendRealized_EmptyJournalStartsAtOne(t *testing.T) {
	st := &memJournal{}
	s := NewSerializer(st)

	if err := s.AppendRealized(frags(3)); err != nil {
		t.Fatalf("append: %v", err)
	}
	for i, r := range st.rows {
		if r.Serial != int64(i+1) {
			t.Errorf("row %d: serial %d, want %d", i, r.Serial, i+1)
		}
	}
}

func TestAppendRealized_ContinuesFromLast(t *testing.T) {
	st := &memJournal{}
	s := NewSerializer(st)

	if err := s.AppendRealized(frags(2)); err != nil {
		t.Fatalf("first batch: %v", err)
	}
	if err := s.AppendRealized(frags(2)); err != nil {
		t.Fatalf("second batch: %v", err)
	}

	want := []int64{1, 2, 3, 4}
	for i, r := range st.rows {
		if r.Serial != want[i] {
			t.Errorf("row %d: serial %d, want %d", i, r.Serial, want[i])
		}
	}
}

func TestNextSerial_SkipsNonNumericRows(t *testing.T) {
	s := NewSerializer(&memJournal{serials: []string{"1", "2", "summary", "7", "-", ""}})
	got, err := s.NextSerial()
	if err != nil {
		t.Fatalf("next serial: %v", err)
	}
	if got != 8 {
		t.Errorf("next serial: got %d, want 8 (last valid is 7)", got)
	}
}

func TestNextSerial_AllInvalidDefaultsToOne(t *testing.T) {
	s := NewSerializer(&memJournal{serials: []string{"header", "-", "x"}})
	got, err := s.NextSerial()
	if err != nil {
		t.Fatalf("next serial: %v", err)
	}
	if got != 1 {
		t.Errorf("next serial: got %d, want 1", got)
	}
}

func TestNextSerial_TrimsWhitespace(t *testing.T) {
	s := NewSerializer(&memJournal{serials: []string{" 41 "}})
	got, err := s.NextSerial()
	if err != nil {
		t.Fatalf("next serial: %v", err)
	}
	if got != 42 {
		t.Errorf("next serial: got %d, want 42", got)
	}
}

func TestAppendRealized_RejectsEmptyBatch(t *testing.T) {
	s := NewSerializer(&memJournal{})
	if err := s.AppendRealized(nil); err == nil {
		t.Error("expected error for empty batch")
	}
}

func TestAppendRealized_StoreFailurePropagates(t *testing.T) {
	s := NewSerializer(&memJournal{failing: true})
	if err := s.AppendRealized(frags(1)); err == nil {
		t.Error("expected store failure to propagate")
	}
}
