package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fullstackragab/wihngo-payments/internal/chain"
	"github.com/fullstackragab/wihngo-payments/internal/config"
	"github.com/fullstackragab/wihngo-payments/internal/domain"
	"github.com/fullstackragab/wihngo-payments/internal/logging"
	"github.com/fullstackragab/wihngo-payments/internal/monitor"
	"github.com/fullstackragab/wihngo-payments/internal/paypal"
	"github.com/fullstackragab/wihngo-payments/internal/provider"
	"github.com/fullstackragab/wihngo-payments/internal/repository"
	"github.com/fullstackragab/wihngo-payments/internal/service/gas"
	"github.com/fullstackragab/wihngo-payments/internal/service/ledger"
	"github.com/fullstackragab/wihngo-payments/internal/service/payment"
	"github.com/fullstackragab/wihngo-payments/internal/wallet"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logging.Init("wihngo-payments-worker", cfg.LogLevel, cfg.AppEnv)

	ctx := context.Background()
	db, err := repository.NewPostgresDB(ctx, cfg.DatabaseURL, repository.PoolConfig{
		MaxOpenConns:     cfg.DBMaxOpenConns,
		MaxIdleConns:     cfg.DBMaxIdleConns,
		ConnMaxLifetimeS: cfg.DBConnMaxLifetimeS,
		ConnMaxIdleTimeS: cfg.DBConnMaxIdleTimeS,
	})
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	solanaClient, err := chain.NewClient(cfg.SolanaRPCURL, cfg.TreasuryAddress)
	if err != nil {
		slog.Error("failed to build solana client", "error", err)
		os.Exit(1)
	}

	deriver, err := wallet.NewDeriver(cfg.MasterSeedHex)
	if err != nil {
		slog.Error("failed to build address deriver", "error", err)
		os.Exit(1)
	}

	paypalClient := paypal.NewClient(cfg.PayPalBaseURL, cfg.PayPalClientID, cfg.PayPalClientSecret)

	factory := provider.NewFactory()
	factory.Register(domain.ProviderSolana, provider.NewSolanaProvider(solanaClient, cfg.TreasuryAddress))
	factory.Register(domain.ProviderManual, provider.NewManualProvider())
	factory.Register(domain.ProviderPayPal, provider.NewPayPalProvider(paypalClient))

	paymentRepo := repository.NewPaymentRepository(db)
	ledgerSvc := ledger.NewService(repository.NewLedgerRepository(db), db)
	gasSvc := gas.NewService(gas.Config{
		Enabled:            cfg.GasSponsorshipEnabled,
		MinBalanceLamports: cfg.GasMinBalanceLamports,
		FlatFeeCents:       cfg.GasFlatFeeCents,
		SponsorWallet:      cfg.GasSponsorWallet,
	}, solanaClient, repository.NewSponsorshipRepository(db))

	paymentSvc := payment.NewService(
		paymentRepo,
		repository.NewSupportRepository(db),
		repository.NewCounterRepository(db),
		factory,
		deriver,
		ledgerSvc,
		gasSvc,
		db,
		time.Duration(cfg.ManualExpiryMinutes)*time.Minute,
	)

	depositMonitor := monitor.NewDepositMonitor(paymentRepo, solanaClient, paymentSvc, cfg.DepositPollBatchSize)

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		slog.Error("failed to create scheduler", "error", err)
		os.Exit(1)
	}

	jobs := []struct {
		name     string
		interval time.Duration
		run      func(context.Context) error
	}{
		{"deposit-poll", time.Duration(cfg.DepositPollIntervalS) * time.Second, depositMonitor.Poll},
		{"expiry-sweep", time.Duration(cfg.ExpirySweepIntervalS) * time.Second, depositMonitor.ExpireStale},
		{"orphan-scan", time.Duration(cfg.OrphanScanIntervalS) * time.Second, func(ctx context.Context) error {
			_, err := paymentSvc.RecoverOrphans(ctx, cfg.OrphanScanBatchSize)
			return err
		}},
	}

	for _, j := range jobs {
		name, run := j.name, j.run
		_, err := scheduler.NewJob(
			gocron.DurationJob(j.interval),
			gocron.NewTask(func() {
				jobCtx := logging.WithJob(ctx, name)
				if err := run(jobCtx); err != nil {
					logging.FromContext(jobCtx).Error("job failed", "error", err)
				}
			}),
			gocron.WithName(name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			slog.Error("failed to register job", "job", name, "error", err)
			os.Exit(1)
		}
	}

	scheduler.Start()
	slog.Info("worker started", "jobs", len(jobs))

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	metricsSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.MetricsPort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		slog.Info("metrics listener started", "addr", metricsSrv.Addr)
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics listener error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down worker")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := scheduler.Shutdown(); err != nil {
		slog.Error("scheduler shutdown error", "error", err)
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		slog.Error("metrics listener shutdown error", "error", err)
	}
	slog.Info("worker stopped")
}
