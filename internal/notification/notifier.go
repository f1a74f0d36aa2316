// Package notification delivers ledger alerts (inventory drift,
// oversell clamps) to external channels.
package notification

import (
	"context"
	"fmt"
	"log"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert represents a notification to be sent.
type Alert struct {
	Level   AlertLevel `json:"level"`
	Title   string     `json:"title"`
	Message string     `json:"message"`
}

// OversellAlert describes a sell that exceeded open inventory. The
// excess was dropped from matching, which usually means the lot table
// drifted from the broker's books.
func OversellAlert(instrument string, droppedQty int64) Alert {
	return Alert{
		Level:   AlertWarning,
		Title:   "Oversell clamped",
		Message: fmt.Sprintf("%s: %d sold without open inventory, check the lot table against broker holdings", instrument, droppedQty),
	}
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// LogNotifier logs alerts instead of delivering them (default backend).
type LogNotifier struct{}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Send(ctx context.Context, alert Alert) error {
	log.Printf("[notify] [%s] %s: %s", alert.Level, alert.Title, alert.Message)
	return nil
}
