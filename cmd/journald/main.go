package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tradeledgerv1/config"
	"tradeledgerv1/internal/api"
	"tradeledgerv1/internal/execution"
	"tradeledgerv1/internal/journal"
	"tradeledgerv1/internal/ledger"
	"tradeledgerv1/internal/listener"
	"tradeledgerv1/internal/metrics"
	"tradeledgerv1/internal/model"
	"tradeledgerv1/internal/notification"
	redisstore "tradeledgerv1/internal/store/redis"
	sqlitestore "tradeledgerv1/internal/store/sqlite"
	smartconnect "tradeledgerv1/pkg/smartconnect"
)

const accessTokenKey = "ACCESS_TOKEN"

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Println("[journald] starting...")

	cfg := config.Load()

	// ---- Setup metrics & health ----
	prom := metrics.NewMetrics()
	health := metrics.NewHealthStatus()
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health)
	metricsSrv.Start()

	// ---- Setup context for graceful shutdown ----
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// ---- Open the tabular store ----
	os.MkdirAll("data", 0o755)
	store, err := sqlitestore.New(sqlitestore.Config{DBPath: cfg.SQLitePath})
	if err != nil {
		log.Fatalf("[journald] sqlite init failed: %v", err)
	}
	defer store.Close()
	health.SetSQLiteOK(true)
	log.Println("[journald] sqlite store ready")

	// ---- Redis publisher (optional) ----
	var publisher *redisstore.Publisher
	publisher, err = redisstore.New(redisstore.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		log.Printf("[journald] WARNING: redis init failed: %v (continuing without redis)", err)
		publisher = nil
		health.SetRedisConnected(false)
	} else {
		health.SetRedisConnected(true)
		log.Println("[journald] redis publisher ready")
	}

	// ---- Periodic liveness checks ----
	if publisher != nil {
		health.StartLivenessChecker(ctx, publisher.Client(), store.DB(), 10*time.Second)
	} else {
		health.StartLivenessChecker(ctx, nil, store.DB(), 10*time.Second)
	}

	// ---- Alerting ----
	var notifier notification.Notifier = notification.NewLogNotifier()
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		notifier = notification.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID)
		log.Println("[journald] telegram alerts enabled")
	}

	// ---- Ledger, journal, executor ----
	ldg := ledger.New(&timedLotStore{store: store, prom: prom})
	ldg.OnOversell = func(instrument string, droppedQty int64) {
		prom.OversellQtyTotal.Add(float64(droppedQty))
		alertCtx, alertCancel := context.WithTimeout(ctx, 10*time.Second)
		defer alertCancel()
		notifier.Send(alertCtx, notification.OversellAlert(instrument, droppedQty))
	}
	serializer := journal.NewSerializer(store)

	sc := smartconnect.New(smartconnect.Config{
		APIKey:     cfg.AngelAPIKey,
		ClientCode: cfg.AngelClientCode,
		Password:   cfg.AngelPassword,
		TOTPSecret: cfg.AngelTOTPSecret,
	})
	session := establishSession(ctx, sc, store, publisher)
	health.SetTokenLoaded(true)

	var pub execution.RealizedPublisher
	if publisher != nil {
		pub = publisher
	}
	executor := execution.New(ldg, serializer, &gttExits{sc: sc}, pub, cfg.ExitStopPct, execution.Hooks{
		OnFill: func(side string) {
			prom.FillsTotal.WithLabelValues(side).Inc()
			health.SetLastFillTime(time.Now())
		},
		OnRealized:    func(n int) { prom.RealizedTradesTotal.Add(float64(n)) },
		OnExitFailure: func() { prom.ExitOrderFailures.Inc() },
	})

	// ---- Order-update stream ----
	updateCh := make(chan smartconnect.OrderUpdate, 100)
	fillCh := make(chan model.Fill, 100)

	ws := smartconnect.NewOrderWS(session.AccessToken, cfg.AngelAPIKey, cfg.AngelClientCode, session.FeedToken)
	ws.OnUpdate = func(u smartconnect.OrderUpdate) {
		select {
		case updateCh <- u:
		default:
			log.Printf("[journald] WARNING: update channel full, dropping frame for %s", u.TradingSymbol)
		}
	}
	ws.OnOpen = func() { health.SetWSConnected(true) }
	ws.OnClose = func() { health.SetWSConnected(false) }
	ws.OnReconnect = func(attempt int) { prom.WSReconnects.Inc() }

	go listener.Run(ctx, updateCh, fillCh)
	go executor.Run(ctx, fillCh)
	go func() {
		health.SetListenerActive(true)
		defer health.SetListenerActive(false)
		if err := ws.Run(ctx); err != nil && ctx.Err() == nil {
			log.Printf("[journald] order stream stopped: %v", err)
		}
	}()

	// ---- Inspection API ----
	apiSrv := &http.Server{
		Addr:    cfg.APIAddr,
		Handler: api.NewRouter(health, ldg, store),
	}
	go func() {
		log.Printf("[api] server listening on %s", cfg.APIAddr)
		if err := apiSrv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[api] server error: %v", err)
		}
	}()

	// ---- Wait for shutdown ----
	<-sigCh
	log.Println("[journald] shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	apiSrv.Shutdown(shutdownCtx)
	metricsSrv.Stop(shutdownCtx)
	log.Println("[journald] bye")
}

// establishSession reuses a persisted access token when one exists,
// otherwise logs in with TOTP and persists the new token.
func establishSession(ctx context.Context, sc *smartconnect.SmartConnect, store *sqlitestore.Store, publisher *redisstore.Publisher) smartconnect.Session {
	if token, err := store.GetConfig(accessTokenKey); err != nil {
		log.Printf("[journald] WARNING: read stored token: %v", err)
	} else if token != "" {
		log.Println("[journald] reusing stored access token")
		sc.SetAccessToken(token)
		return smartconnect.Session{AccessToken: token}
	}

	session, err := sc.GenerateSessionTOTP()
	if err != nil {
		log.Fatalf("[journald] login failed: %v", err)
	}
	log.Println("[journald] session established")

	if err := store.SetConfig(accessTokenKey, session.AccessToken); err != nil {
		log.Printf("[journald] WARNING: persist token: %v", err)
	}
	if publisher != nil {
		publisher.MirrorAccessToken(ctx, session.AccessToken)
	}
	return session
}

// gttExits adapts the broker client to the executor's exit interface.
type gttExits struct {
	sc *smartconnect.SmartConnect
}

func (g *gttExits) PlaceExitSell(fill model.Fill, triggerPrice, limitPrice float64) (string, error) {
	return g.sc.CreateGTTSell(smartconnect.GTTSellParams{
		TradingSymbol: fill.Instrument,
		SymbolToken:   fill.SymbolToken,
		Exchange:      fill.Exchange,
		Qty:           fill.Qty,
		LastPrice:     fill.Price,
		TriggerPrice:  triggerPrice,
		LimitPrice:    limitPrice,
	})
}

// timedLotStore wraps the sqlite store to observe rewrite latency and
// the surviving lot count.
type timedLotStore struct {
	store *sqlitestore.Store
	prom  *metrics.Metrics
}

func (t *timedLotStore) LoadOpenLots() ([]model.Lot, error) {
	return t.store.LoadOpenLots()
}

func (t *timedLotStore) ReplaceOpenLots(lots []model.Lot) error {
	start := time.Now()
	err := t.store.ReplaceOpenLots(lots)
	t.prom.StoreWriteDur.Observe(time.Since(start).Seconds())
	if err == nil {
		t.prom.OpenLots.Set(float64(len(lots)))
	}
	return err
}
