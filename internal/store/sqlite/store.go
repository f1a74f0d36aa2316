// Package sqlite is the durable tabular store behind the ledger and the
// journal. It keeps the sheet-style semantics the engine is written
// against: open_lots is read and rewritten wholesale (no partial
// update), journal is append-only, config is a flat key/value table.
package sqlite

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"tradeledgerv1/internal/model"
)

// Config configures the SQLite store.
type Config struct {
	DBPath string // path to SQLite database file, e.g. "data/journal.db"
}

// Store provides access to the open_lots, journal and config tables.
type Store struct {
	db *sql.DB
}

// DB returns the underlying sql.DB for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// New opens the database, enables WAL mode and creates the schema.
func New(cfg Config) (*Store, error) {
	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Set connection pool for single-writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite] opened database at %s", cfg.DBPath)
	return &Store{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS open_lots (
			instrument    TEXT    NOT NULL,
			acquired_at   TEXT    NOT NULL,
			price         REAL    NOT NULL,
			remaining_qty INTEGER NOT NULL,
			order_ids     TEXT,
			holding_days  INTEGER
		);

		CREATE TABLE IF NOT EXISTS journal (
			serial        TEXT,
			instrument    TEXT    NOT NULL,
			buy_datetime  TEXT    NOT NULL,
			buy_price     REAL    NOT NULL,
			buy_qty       INTEGER NOT NULL,
			sell_datetime TEXT    NOT NULL,
			sell_price    REAL    NOT NULL,
			sell_qty      INTEGER NOT NULL,
			pnl           REAL    NOT NULL,
			setup         TEXT,
			remarks       TEXT,
			holding_days  INTEGER
		);
		CREATE INDEX IF NOT EXISTS idx_journal_instrument ON journal(instrument);

		CREATE TABLE IF NOT EXISTS config (
			key   TEXT PRIMARY KEY,
			value TEXT
		);
	`)
	return err
}

// LoadOpenLots returns every open lot in storage order.
func (s *Store) LoadOpenLots() ([]model.Lot, error) {
	rows, err := s.db.Query(`
		SELECT instrument, acquired_at, price, remaining_qty, order_ids, holding_days
		FROM open_lots
		ORDER BY rowid ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("sqlite query open_lots: %w", err)
	}
	defer rows.Close()

	var lots []model.Lot
	for rows.Next() {
		var l model.Lot
		var orderIDs sql.NullString
		var holdingDays sql.NullInt64
		if err := rows.Scan(&l.Instrument, &l.AcquiredAt, &l.Price, &l.RemainingQty, &orderIDs, &holdingDays); err != nil {
			return nil, fmt.Errorf("sqlite scan open_lots: %w", err)
		}
		l.OrderIDs = orderIDs.String
		l.HoldingDays = int(holdingDays.Int64)
		lots = append(lots, l)
	}
	return lots, rows.Err()
}

// ReplaceOpenLots rewrites the whole open_lots table in one transaction.
// The backing model is a sheet with no partial-update primitive, so
// every ledger mutation is a full clear-and-append.
func (s *Store) ReplaceOpenLots(lots []model.Lot) error {
	start := time.Now()
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("sqlite begin: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM open_lots`); err != nil {
		tx.Rollback()
		return fmt.Errorf("sqlite clear open_lots: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO open_lots (instrument, acquired_at, price, remaining_qty, order_ids, holding_days)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("sqlite prepare open_lots: %w", err)
	}
	defer stmt.Close()

	for _, l := range lots {
		if _, err := stmt.Exec(l.Instrument, l.AcquiredAt, l.Price, l.RemainingQty, l.OrderIDs, l.HoldingDays); err != nil {
			tx.Rollback()
			return fmt.Errorf("sqlite insert open_lots: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite commit open_lots: %w", err)
	}
	log.Printf("[sqlite] rewrote %d open lots in %v", len(lots), time.Since(start))
	return nil
}

// SerialColumn returns the journal serial column top to bottom. Cells
// are raw text: stray non-numeric values are returned as-is and left
// for the serializer's backward scan to skip.
func (s *Store) SerialColumn() ([]string, error) {
	rows, err := s.db.Query(`SELECT COALESCE(serial, '') FROM journal ORDER BY rowid ASC`)
	if err != nil {
		return nil, fmt.Errorf("sqlite query journal serials: %w", err)
	}
	defer rows.Close()

	var serials []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("sqlite scan journal serial: %w", err)
		}
		serials = append(serials, v)
	}
	return serials, rows.Err()
}

// AppendJournalRows appends realized trades as new rows in one batch
// transaction. Existing rows are never touched.
func (s *Store) AppendJournalRows(trades []model.RealizedTrade) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("sqlite begin: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO journal (serial, instrument, buy_datetime, buy_price, buy_qty,
		                     sell_datetime, sell_price, sell_qty, pnl, setup, remarks, holding_days)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("sqlite prepare journal: %w", err)
	}
	defer stmt.Close()

	for _, t := range trades {
		if _, err := stmt.Exec(
			fmt.Sprintf("%d", t.Serial), t.Instrument,
			t.BuyDateTime, t.BuyPrice, t.BuyQty,
			t.SellDateTime, t.SellPrice, t.SellQty,
			t.PnL, t.Setup, t.Remarks, t.HoldingDays,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("sqlite insert journal: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite commit journal: %w", err)
	}
	return nil
}

// JournalRows returns the last N journal rows, newest first.
func (s *Store) JournalRows(limit int) ([]model.RealizedTrade, error) {
	rows, err := s.db.Query(`
		SELECT COALESCE(serial, ''), instrument, buy_datetime, buy_price, buy_qty,
		       sell_datetime, sell_price, sell_qty, pnl,
		       COALESCE(setup, ''), COALESCE(remarks, ''), COALESCE(holding_days, 0)
		FROM journal ORDER BY rowid DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite query journal: %w", err)
	}
	defer rows.Close()

	var trades []model.RealizedTrade
	for rows.Next() {
		var t model.RealizedTrade
		var serial string
		if err := rows.Scan(&serial, &t.Instrument, &t.BuyDateTime, &t.BuyPrice, &t.BuyQty,
			&t.SellDateTime, &t.SellPrice, &t.SellQty, &t.PnL, &t.Setup, &t.Remarks, &t.HoldingDays); err != nil {
			return nil, fmt.Errorf("sqlite scan journal: %w", err)
		}
		// Stray non-numeric serials read back as zero.
		fmt.Sscanf(serial, "%d", &t.Serial)
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// GetConfig returns the value for a config key, or "" when unset.
func (s *Store) GetConfig(key string) (string, error) {
	var v string
	err := s.db.QueryRow(`SELECT value FROM config WHERE key = ?`, key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("sqlite get config %s: %w", key, err)
	}
	return v, nil
}

// SetConfig upserts a config key.
func (s *Store) SetConfig(key, value string) error {
	if _, err := s.db.Exec(`INSERT OR REPLACE INTO config (key, value) VALUES (?, ?)`, key, value); err != nil {
		return fmt.Errorf("sqlite set config %s: %w", key, err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
