// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"okpay-settlement/internal/config"
	"okpay-settlement/internal/domain/model"
	"okpay-settlement/internal/domain/ports/adapter"
	"okpay-settlement/internal/domain/ports/repository"
	"okpay-settlement/internal/infra/adapters/events"
	payAdapters "okpay-settlement/internal/infra/adapters/payment"
	tele "okpay-settlement/internal/infra/adapters/telegram"
	"okpay-settlement/internal/infra/api"
	pg "okpay-settlement/internal/infra/db/postgres"
	"okpay-settlement/internal/infra/logging"
	"okpay-settlement/internal/infra/metrics"
	red "okpay-settlement/internal/infra/redis"
	"okpay-settlement/internal/infra/sched"
	"okpay-settlement/internal/infra/worker"
	"okpay-settlement/internal/usecase"
)

// Set through -ldflags at build time.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, secrets shown)")
	mintFor := flag.String("mint-admin-token", "", "print an admin API token for the given subject and exit")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)

	var auth *api.AuthManager
	if cfg.Admin.JWTSecret != "" {
		if auth, err = api.NewAuthManager(cfg.Admin.JWTSecret, cfg.Admin.TokenTTL); err != nil {
			logger.Fatal().Err(err).Msg("admin auth")
		}
	}
	if *mintFor != "" {
		if auth == nil {
			logger.Fatal().Msg("admin.jwt_secret is not set")
		}
		tok, err := auth.Mint(*mintFor)
		if err != nil {
			logger.Fatal().Err(err).Msg("mint admin token")
		}
		fmt.Println(tok)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, auth, logger); err != nil {
		logger.Fatal().Err(err).Msg("okpay-settlement stopped")
	}
}

func run(ctx context.Context, cfg *config.Config, auth *api.AuthManager, logger *zerolog.Logger) error {
	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)
	logger.Info().
		Str("version", version).
		Str("wallet_id", logging.Redact(cfg.OkPay.WalletID, cfg.Runtime.Dev)).
		Bool("dev", cfg.Runtime.Dev).
		Msg("starting okpay-settlement")

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	tm := pg.NewTxManager(pool)

	// ---- Repositories ----
	var instructions repository.PaymentInstructionRepository = pg.NewInstructionRepo(pool)
	transactions := pg.NewTransactionRepo(pool)
	notifLogs := pg.NewNotificationLogRepo(pool)

	// ---- Redis (optional: callback lock, checkout limiter, instruction cache) ----
	var locker adapter.Locker
	var limiter api.Limiter
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer redisClient.Close()
		locker = red.NewLocker(redisClient)
		limiter = red.NewRateLimiter(redisClient)
		instructions = pg.NewInstructionRepoCacheDecorator(instructions, redisClient, logger)
	} else {
		logger.Warn().Msg("redis.url not set; callback locking relies on row locks only")
	}

	// ---- OKPAY gateway ----
	creds, err := model.NewGatewayCredentials(cfg.OkPay.WalletID, cfg.OkPay.APIPassword)
	if err != nil {
		return err
	}
	routes, err := payAdapters.NewRouteURLs(cfg.HTTP.PublicBaseURL, cfg.HTTP.CallbackPath)
	if err != nil {
		return fmt.Errorf("http routes: %w", err)
	}
	if cfg.OkPay.InsecureSkipVerify {
		logger.Warn().Msg("okpay.insecure_skip_verify is on; gateway certificates are not checked")
	}
	gateway, err := payAdapters.NewOkPayGateway(creds, routes,
		payAdapters.WithEndpoints(cfg.OkPay.ProcessURL, cfg.OkPay.VerifyURL),
		payAdapters.WithTimeout(cfg.OkPay.VerifyTimeout),
		payAdapters.WithInsecureSkipVerify(cfg.OkPay.InsecureSkipVerify),
		payAdapters.WithBreaker(payAdapters.NewVerifyBreaker("okpay-verify")),
	)
	if err != nil {
		return fmt.Errorf("okpay gateway: %w", err)
	}
	verifier := payAdapters.NewCallbackVerifier(gateway, logger)

	// ---- Event bus ----
	// Best-effort listeners keep running past the signal; Stop drains them.
	workers := worker.NewPool(2, logger)
	workers.Start(context.WithoutCancel(ctx))
	defer workers.Stop()
	bus := events.NewBus(logger)
	bus.RunBestEffortOn(workers)
	if len(cfg.Kafka.Brokers) > 0 {
		publisher := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer publisher.Close()
		bus.Subscribe(model.EventDeposit, publisher)
		logger.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("deposit events published to kafka")
	}
	var bot adapter.TelegramBotAdapter = tele.NewNoopBotAdapter(logger)
	if cfg.Telegram.Token != "" {
		realBot, err := tele.NewRealTelegramBotAdapter(cfg.Telegram.Token, logger)
		if err != nil {
			return fmt.Errorf("telegram: %w", err)
		}
		bot = realBot
	}
	bus.SubscribeBestEffort(model.EventDeposit, tele.NewDepositNotifier(bot, cfg.Telegram.AdminIDs, cfg.Admin.URL, logger))

	// ---- Plugins & use cases ----
	plugins, err := usecase.NewPluginRegistry(usecase.NewOkPayPlugin(gateway, transactions, bus, logger))
	if err != nil {
		return err
	}
	ledgerUC := usecase.NewLedgerUseCase(instructions, transactions, plugins, tm, logger)
	callbackUC := usecase.NewCallbackUseCase(verifier, transactions, notifLogs, plugins, tm, locker, logger).WithLockTTL(cfg.Redis.TTL)

	// ---- Background workers ----
	go func() {
		_ = sched.NewPoolStatsWorker(15*time.Second, func() metrics.PoolStat { return pool.Stat() }).Run(ctx)
	}()
	go func() {
		_ = sched.NewStalePendingWatcher(transactions, cfg.Settlement.ScanInterval, cfg.Settlement.StaleAfter, logger).Run(ctx)
	}()

	// ---- HTTP ----
	srv := api.NewServer(ledgerUC, callbackUC, routes, auth, limiter, api.Options{
		CallbackPath:   routes.Path(),
		RequestTimeout: cfg.HTTP.RequestTimeout,
		CheckoutLimit:  cfg.HTTP.CheckoutRateLimit,
		CheckoutWindow: time.Minute,
	}, logger)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", server.Addr).Str("callback_path", routes.Path()).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	// ---- Graceful shutdown ----
	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown requested")
	case err := <-errc:
		return fmt.Errorf("http server: %w", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	logger.Info().Msg("shutdown complete")
	return nil
}
