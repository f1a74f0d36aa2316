// Package api provides the HTTP inspection surface for the journal
// service: health, listener status, open lots and recent journal rows.
package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"tradeledgerv1/internal/ledger"
	"tradeledgerv1/internal/metrics"
	"tradeledgerv1/internal/model"
)

// JournalReader reads back recent journal rows.
type JournalReader interface {
	JournalRows(limit int) ([]model.RealizedTrade, error)
}

// NewRouter sets up HTTP routes for the API server.
func NewRouter(health *metrics.HealthStatus, ldg *ledger.Ledger, journal JournalReader) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	mux.HandleFunc("/api/v1/status", func(w http.ResponseWriter, r *http.Request) {
		snap := health.Snapshot()
		writeJSON(w, map[string]any{
			"token_loaded":    snap.TokenLoaded,
			"listener_active": snap.ListenerActive,
			"ws_connected":    snap.WSConnected,
			"last_fill_time":  snap.LastFillTime.Format(time.RFC3339),
			"uptime":          time.Since(snap.StartedAt).Round(time.Second).String(),
		})
	})

	mux.HandleFunc("/api/v1/lots", func(w http.ResponseWriter, r *http.Request) {
		lots, err := ldg.OpenLots()
		if err != nil {
			httpError(w, "load open lots", err)
			return
		}
		if lots == nil {
			lots = []model.Lot{}
		}
		writeJSON(w, lots)
	})

	mux.HandleFunc("/api/v1/journal", func(w http.ResponseWriter, r *http.Request) {
		limit := 50
		if v := r.URL.Query().Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
				limit = n
			}
		}
		rows, err := journal.JournalRows(limit)
		if err != nil {
			httpError(w, "load journal", err)
			return
		}
		if rows == nil {
			rows = []model.RealizedTrade{}
		}
		writeJSON(w, rows)
	})

	return mux
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, what string, err error) {
	log.Printf("[api] %s: %v", what, err)
	http.Error(w, `{"error":"`+what+` failed"}`, http.StatusInternalServerError)
}
