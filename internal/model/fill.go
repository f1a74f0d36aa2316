package model

// Fill side values as delivered by the broker feed.
const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// Fill is a completed order execution, already filtered and normalized
// by the listener: Qty and Price are non-zero and FilledAt is a
// canonical IST timestamp.
type Fill struct {
	Instrument  string  `json:"instrument"`   // trading symbol, e.g. "SBIN-EQ"
	SymbolToken string  `json:"symbol_token"` // venue instrument token, needed for exit orders
	Exchange    string  `json:"exchange"`     // NSE, BSE
	Side        string  `json:"side"`         // BUY or SELL
	Price       float64 `json:"price"`        // fill average price in rupees
	Qty         int64   `json:"qty"`
	FilledAt    string  `json:"filled_at"` // canonical IST "YYYY-MM-DD HH:MM:SS"
	OrderID     string  `json:"order_id"`
}
