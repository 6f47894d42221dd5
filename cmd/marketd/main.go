// Package main runs the NFT marketplace daemon: the action dispatcher, its
// settlement retry poller and the HTTP API.
package main

import (
	"context"
	"database/sql"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/apexlabs/nft-market/internal/config"
	"github.com/apexlabs/nft-market/internal/contracts"
	"github.com/apexlabs/nft-market/internal/events"
	"github.com/apexlabs/nft-market/internal/httpapi"
	"github.com/apexlabs/nft-market/internal/metrics"
	marketsvc "github.com/apexlabs/nft-market/internal/services/market"
	"github.com/apexlabs/nft-market/internal/services/registry"
	"github.com/apexlabs/nft-market/internal/services/settlement"
	"github.com/apexlabs/nft-market/internal/storage"
	"github.com/apexlabs/nft-market/internal/storage/memory"
	"github.com/apexlabs/nft-market/internal/storage/postgres"
	"github.com/apexlabs/nft-market/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.NewDefault("marketd").WithError(err).Error("configuration invalid")
		os.Exit(1)
	}

	log := logger.New(logger.LoggingConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}).WithField("module", "marketd")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.WithError(err).Error("marketd exited with error")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	var (
		items storage.ItemStore
		reg   storage.RegistryStore
		txs   storage.TransactionStore
	)
	if cfg.PostgresDSN != "" {
		db, err := sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			return err
		}
		store := postgres.New(db)
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		items, reg, txs = store, store, store
		log.Info("using postgres storage")
	} else {
		store := memory.New()
		items, reg, txs = store, store, store
		log.Warn("no postgres DSN configured, using in-memory storage")
	}

	var publisher events.Publisher
	if cfg.RedisAddr != "" {
		redisPub, err := events.NewRedisPublisher(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisChannel, log.WithField("module", "events"))
		if err != nil {
			return err
		}
		defer redisPub.Close()
		publisher = redisPub
		log.WithField("addr", cfg.RedisAddr).Info("publishing events to redis")
	} else {
		publisher = events.NewMemoryPublisher()
		log.Warn("no redis address configured, events stay in memory")
	}

	bridge, err := contracts.NewBridge(nil, cfg.ContractsEndpoint, log.WithField("module", "contracts"))
	if err != nil {
		return err
	}
	nftClient := contracts.NewHTTPNFTClient(bridge)
	ftClient := contracts.NewHTTPFTClient(bridge)
	valueClient := contracts.NewHTTPValueClient(bridge, cfg.EscrowAddress())

	registrySvc := registry.New(reg, cfg.AdminAddress(), log.WithField("module", "registry"))
	coordinator := settlement.New(nftClient, ftClient, valueClient,
		cfg.EscrowAddress(), cfg.TreasuryAddress(), cfg.TreasuryFee,
		log.WithField("module", "settlement"))
	marketSvc := marketsvc.New(items, reg, txs, nftClient, ftClient, valueClient,
		coordinator, publisher, cfg.EscrowAddress(), log.WithField("module", "market"))

	poller := settlement.NewPoller(items, marketSvc,
		time.Duration(cfg.PollIntervalSeconds)*time.Second,
		log.WithField("module", "settlement-poller"))
	if err := poller.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = poller.Stop(stopCtx)
	}()

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/", metrics.InstrumentHandler("api", httpapi.NewHandler(marketSvc, registrySvc, cfg.JWTSecret)))

	server := &http.Server{
		Addr:         cfg.Listen,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.Listen).Info("http server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
