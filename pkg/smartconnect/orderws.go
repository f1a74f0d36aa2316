package smartconnect

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	orderStreamURI    = "wss://tns.angelone.in/smart-order-update"
	heartBeatMessage  = "ping"
	heartBeatInterval = 10 * time.Second
)

// OrderUpdate is one order-status frame from the stream. Timestamps
// arrive either as epoch milliseconds or as formatted strings depending
// on the venue, so they are kept untyped until normalization.
type OrderUpdate struct {
	Status          string  `json:"status"`
	TransactionType string  `json:"transaction_type"` // BUY or SELL
	TradingSymbol   string  `json:"tradingsymbol"`
	SymbolToken     string  `json:"symboltoken"`
	AveragePrice    float64 `json:"average_price"`
	FilledQuantity  int64   `json:"filled_quantity"`
	OrderID         string  `json:"order_id"`
	Exchange        string  `json:"exchange"`

	ExchangeTimestamp any `json:"exchange_timestamp"`
	OrderTimestamp    any `json:"order_timestamp"`
}

// OrderWS consumes the SmartAPI order-status WebSocket with heartbeat
// and bounded reconnection.
type OrderWS struct {
	authToken  string
	apiKey     string
	clientCode string
	feedToken  string

	dialer *websocket.Dialer

	maxRetryAttempt int
	retryDelay      time.Duration

	// Callbacks
	OnUpdate    func(OrderUpdate)
	OnOpen      func()
	OnClose     func()
	OnError     func(err error)
	OnReconnect func(attempt int)
}

// NewOrderWS creates an order-status stream client.
func NewOrderWS(authToken, apiKey, clientCode, feedToken string) *OrderWS {
	return &OrderWS{
		authToken:       authToken,
		apiKey:          apiKey,
		clientCode:      clientCode,
		feedToken:       feedToken,
		dialer:          &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		maxRetryAttempt: 100,
		retryDelay:      5 * time.Second,
	}
}

// Run connects and reads order updates until ctx is cancelled. On read
// or dial failure it reconnects after retryDelay, up to maxRetryAttempt
// consecutive failures; the attempt counter resets after a successful
// connection.
func (w *OrderWS) Run(ctx context.Context) error {
	attempt := 0
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		connected, err := w.connectAndRead(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if connected {
			attempt = 0
		}
		attempt++
		if attempt > w.maxRetryAttempt {
			return fmt.Errorf("orderws: giving up after %d attempts: %w", w.maxRetryAttempt, err)
		}

		if w.OnError != nil && err != nil {
			w.OnError(err)
		}
		if w.OnReconnect != nil {
			w.OnReconnect(attempt)
		}
		log.Printf("[orderws] reconnecting in %v (attempt %d): %v", w.retryDelay, attempt, err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(w.retryDelay):
		}
	}
}

// connectAndRead dials the stream, pumps the heartbeat and reads frames
// until the connection drops. Returns whether the dial succeeded.
func (w *OrderWS) connectAndRead(ctx context.Context) (bool, error) {
	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+w.authToken)
	headers.Set("x-api-key", w.apiKey)
	headers.Set("x-client-code", w.clientCode)
	headers.Set("x-feed-token", w.feedToken)

	conn, _, err := w.dialer.DialContext(ctx, orderStreamURI, headers)
	if err != nil {
		return false, fmt.Errorf("orderws: dial: %w", err)
	}
	defer conn.Close()

	log.Printf("[orderws] connected, waiting for order updates")
	if w.OnOpen != nil {
		w.OnOpen()
	}
	defer func() {
		if w.OnClose != nil {
			w.OnClose()
		}
	}()

	// Close the socket when ctx is cancelled so ReadMessage unblocks.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	go w.heartbeat(ctx, conn)

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return true, fmt.Errorf("orderws: read: %w", err)
		}
		if string(msg) == "pong" {
			continue
		}

		var update OrderUpdate
		if err := json.Unmarshal(msg, &update); err != nil {
			log.Printf("[orderws] skipping unparseable frame: %v", err)
			continue
		}
		if w.OnUpdate != nil {
			w.OnUpdate(update)
		}
	}
}

func (w *OrderWS) heartbeat(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(heartBeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.TextMessage, []byte(heartBeatMessage)); err != nil {
				return
			}
		}
	}
}
