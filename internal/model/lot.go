package model

import "math"

// Lot is an open (unconsumed or partially consumed) buy position.
// A lot exists only while RemainingQty > 0; fully consumed lots are
// dropped from the ledger, never persisted with zero quantity.
type Lot struct {
	Instrument   string  `json:"instrument"`
	AcquiredAt   string  `json:"acquired_at"` // canonical IST "YYYY-MM-DD HH:MM:SS"
	Price        float64 `json:"price"`       // acquisition price per unit in rupees
	RemainingQty int64   `json:"remaining_qty"`
	OrderIDs     string  `json:"order_ids"` // traceability only, unused by matching

	// HoldingDays is recomputed against now on every ledger rewrite.
	// Display only — the matcher never reads it.
	HoldingDays int `json:"holding_days"`
}

// RealizedTrade is one journal row: a sell fill consuming part or all
// of one lot. Buy and sell quantities are equal by construction.
type RealizedTrade struct {
	Serial       int64   `json:"serial"`
	Instrument   string  `json:"instrument"`
	BuyDateTime  string  `json:"buy_datetime"`
	BuyPrice     float64 `json:"buy_price"`
	BuyQty       int64   `json:"buy_qty"`
	SellDateTime string  `json:"sell_datetime"`
	SellPrice    float64 `json:"sell_price"`
	SellQty      int64   `json:"sell_qty"`
	PnL          float64 `json:"pnl"`
	Setup        string  `json:"setup"`
	Remarks      string  `json:"remarks"`
	HoldingDays  int     `json:"holding_days"`
}

// Round2 rounds to two decimal places (journal prices and PnL are rupee
// amounts with paise precision).
func Round2(x float64) float64 {
	return math.Round(x*100) / 100
}
