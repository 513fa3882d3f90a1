package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"NFTSentinel/internal/api"
	"NFTSentinel/internal/config"
	"NFTSentinel/internal/logger"
	"NFTSentinel/internal/matcher"
	"NFTSentinel/internal/model"
	"NFTSentinel/internal/monitor"
	"NFTSentinel/internal/notifier"
	"NFTSentinel/internal/quote"
	"NFTSentinel/internal/service"
	"NFTSentinel/internal/store"
	"NFTSentinel/internal/wallet"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		os.Exit(1)
	}

	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config validation: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("nft sentinel exited", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.NewSQLiteStore(cfg.Database.SQLitePath, log.Named("store"))
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer st.Close()

	ledger, err := wallet.NewLedger(cfg.Wallet.StateFile, log.Named("wallet"))
	if err != nil {
		return fmt.Errorf("init wallet ledger: %w", err)
	}

	quoter, rates := buildQuotes(cfg, log)
	log.Info("price source", zap.String("quoter", quoter.Name()))

	checks := map[string]api.Pinger{"sqlite": st}
	var recent notifier.RecentStore = notifier.NewMemoryRecent(notifier.DefaultRecentLimit)
	if cfg.Redis.Addr != "" {
		rr := notifier.NewRedisRecent(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, notifier.DefaultRecentLimit)
		defer rr.Close()
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		if err := rr.Ping(pingCtx); err != nil {
			log.Warn("redis unreachable, recent notifications stay in memory", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		} else {
			recent = rr
			checks["redis"] = rr
			log.Info("recent notifications in redis", zap.String("addr", cfg.Redis.Addr))
		}
		cancel()
	}

	ws := notifier.NewBroadcaster(log.Named("ws"))
	defer ws.Close()
	pushers := []notifier.Pusher{ws}

	var tg *notifier.TelegramNotifier
	if cfg.Telegram.BotToken != "" {
		tg = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy, log.Named("telegram"))
		pushers = append(pushers, tg)
	}

	sink := notifier.NewSink(st, recent, ledger, log.Named("sink"), pushers...)
	mon := monitor.New(ctx, st, quoter, rates, sink, log.Named("monitor"), monitor.Options{
		GroupDelay:  cfg.Monitor.GroupDelay,
		CallTimeout: cfg.Monitor.CallTimeout,
	})
	svc := service.New(st, mon, recent, ledger, cfg.Monitor.Interval, log.Named("service"))

	if cfg.Monitor.Enabled {
		if err := svc.StartMonitoring(); err != nil {
			return fmt.Errorf("start monitor: %w", err)
		}
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := svc.StopMonitoring(stopCtx); err != nil {
			log.Warn("monitor did not stop cleanly", zap.Error(err))
		}
	}()

	if tg != nil && cfg.Telegram.UserID != "" {
		go tg.StartPolling(ctx, svc.CommandHandler(cfg.Telegram.UserID))
		log.Info("telegram polling started", zap.String("user_id", cfg.Telegram.UserID))
	}

	if cfg.Log.Development {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := api.NewRouter(svc, api.RouterOptions{
		CORSOrigins: cfg.Server.CORSOrigins,
		WebSocket:   ws.Handler(),
		Checks:      checks,
		Log:         log.Named("http"),
	})
	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("shutdown requested")
	case runErr = <-errCh:
		log.Error("server error", zap.Error(runErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	return runErr
}

func buildQuotes(cfg *config.Config, log *zap.Logger) (quote.Quoter, matcher.RateLookup) {
	q := cfg.Quotes
	rates := quote.NewCoinGeckoRates(q.CoinGeckoBaseURL, q.CoinGeckoAPIKey, cfg.Proxy, q.RateCacheTTL, q.Timeout)

	if q.Provider == "mock" {
		m := quote.NewMockQuoter(model.CurrencyETH)
		m.Script("Bored Ape Yacht Club", decimal.RequireFromString("15.2"))
		m.Script("Cool Cats",
			decimal.RequireFromString("0.9"),
			decimal.RequireFromString("0.65"),
			decimal.RequireFromString("0.25"),
			decimal.RequireFromString("0.18"))
		return m, rates
	}

	var chain []quote.Quoter
	if q.OpenSeaAPIKey != "" {
		chain = append(chain, quote.NewOpenSeaQuoter(q.OpenSeaBaseURL, q.OpenSeaAPIKey, cfg.Proxy, q.Timeout))
	}
	chain = append(chain, quote.NewCoinGeckoQuoter(q.CoinGeckoBaseURL, q.CoinGeckoAPIKey, cfg.Proxy, q.Timeout))
	return quote.NewFallback(log.Named("quote"), chain...), rates
}
