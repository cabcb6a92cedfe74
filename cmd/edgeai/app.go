package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"edgeai-booster/internal/account"
	"edgeai-booster/internal/boost"
	"edgeai-booster/internal/config"
	"edgeai-booster/internal/logging"
	"edgeai-booster/internal/market"
	"edgeai-booster/internal/pricefeed"
	"edgeai-booster/internal/solana"
	"edgeai-booster/internal/storage"
	chstore "edgeai-booster/internal/storage/clickhouse"
	"edgeai-booster/internal/storage/memory"
	"edgeai-booster/internal/storage/migrations"
	pgstore "edgeai-booster/internal/storage/postgres"
	"edgeai-booster/internal/storage/sqlite"
	"edgeai-booster/internal/subscription"
)

// app holds the components shared by every command.
type app struct {
	cfg      *config.Config
	logger   zerolog.Logger
	rpc      *solana.HTTPClient
	decoder  *account.Decoder
	verifier *subscription.Verifier
	markets  *market.Client
	prices   *pricefeed.Client
	momentum *boost.MomentumCache
	engine   *boost.Engine

	closers []func()
}

func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = config.GetConfigPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	if err != nil {
		return nil, err
	}

	programID, err := solana.ParsePublicKey(cfg.ProgramID)
	if err != nil {
		return nil, fmt.Errorf("program id: %w", err)
	}

	a := &app{cfg: cfg, logger: logger}

	a.rpc = solana.NewHTTPClient(cfg.RPCURL,
		solana.WithTimeout(cfg.RequestTimeout),
		solana.WithRateLimit(cfg.RPCRateLimit, 1),
	)
	a.decoder = account.NewDecoder(a.rpc, programID, logger)
	a.verifier = subscription.NewVerifier(a.decoder, logger)

	marketOpts := []market.Option{market.WithTimeout(cfg.RequestTimeout)}
	if cfg.Market.BaseURL != "" {
		marketOpts = append(marketOpts, market.WithBaseURL(cfg.Market.BaseURL))
	}
	a.markets = market.NewClient(logger, marketOpts...)

	priceOpts := []pricefeed.Option{pricefeed.WithTimeout(cfg.RequestTimeout)}
	if cfg.PriceFeed.BaseURL != "" {
		priceOpts = append(priceOpts, pricefeed.WithBaseURL(cfg.PriceFeed.BaseURL))
	}
	a.prices = pricefeed.NewClient(logger, priceOpts...)

	a.momentum = boost.NewMomentumCache(a.prices, logger)
	a.engine = boost.NewEngine(a.momentum)

	return a, nil
}

// openRegistry opens the configured subscriber registry, applying migrations.
func (a *app) openRegistry(ctx context.Context) (storage.SubscriberRegistry, error) {
	switch a.cfg.Storage.Driver {
	case config.DriverPostgres:
		pool, err := pgstore.NewPool(ctx, a.cfg.Storage.PostgresDSN)
		if err != nil {
			return nil, err
		}
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("postgres migrations: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		a.logger.Info().Msg("subscriber registry: postgres")
		return pgstore.NewSubscriberRegistry(pool), nil

	case config.DriverSQLite:
		db, err := sqlite.Open(ctx, a.cfg.Storage.SQLitePath)
		if err != nil {
			return nil, err
		}
		if err := migrations.RunSQLiteMigrations(ctx, db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite migrations: %w", err)
		}
		a.closers = append(a.closers, func() { _ = db.Close() })
		a.logger.Info().Str("path", a.cfg.Storage.SQLitePath).Msg("subscriber registry: sqlite")
		return sqlite.NewSubscriberRegistry(db), nil

	default:
		a.logger.Warn().Msg("subscriber registry: memory (records are lost on restart)")
		return memory.NewSubscriberRegistry(), nil
	}
}

// openDeliveryLog uses ClickHouse when a DSN is configured, memory otherwise.
func (a *app) openDeliveryLog(ctx context.Context) (storage.DeliveryLog, error) {
	if a.cfg.Storage.ClickhouseDSN == "" {
		return memory.NewDeliveryLog(), nil
	}
	conn, err := migrations.RunClickhouseMigrations(ctx, a.cfg.Storage.ClickhouseDSN)
	if err != nil {
		return nil, fmt.Errorf("clickhouse migrations: %w", err)
	}
	a.closers = append(a.closers, func() { _ = conn.Close() })
	a.logger.Info().Msg("delivery log: clickhouse")
	return chstore.NewDeliveryLog(conn), nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
