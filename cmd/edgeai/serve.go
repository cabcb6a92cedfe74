package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"edgeai-booster/internal/api"
	"edgeai-booster/internal/bot"
	"edgeai-booster/internal/broadcast"
	"edgeai-booster/internal/solana"
	"edgeai-booster/internal/subscription"
)

const shutdownTimeout = 30 * time.Second

var (
	telegramEndpoint string
	noBroadcast      bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bot, the HTTP API and the broadcaster",
	Long: `Run every long-lived component in one process:

  - HTTP API (markets, boost_prob, price, metrics, health)
  - Telegram bot by long polling, or by webhook when webhook_url is set
  - periodic broadcaster of strong signals to premium subscribers

The bot and broadcaster are skipped when no bot token is configured.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&telegramEndpoint, "telegram-endpoint", "", "Bot API endpoint format string (default public API)")
	serveCmd.Flags().BoolVar(&noBroadcast, "no-broadcast", false, "Disable the periodic broadcaster")
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()
	logger := a.logger

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry, err := a.openRegistry(ctx)
	if err != nil {
		return err
	}
	deliveries, err := a.openDeliveryLog(ctx)
	if err != nil {
		return err
	}

	var pollerOpts []subscription.PollerOption
	if a.cfg.WSURL != "" {
		ws, err := solana.NewWSClient(ctx, a.cfg.WSURL, nil, logger)
		if err != nil {
			// Polling still works without notifications.
			logger.Warn().Err(err).Msg("websocket unavailable, poller uses fixed interval only")
		} else {
			a.closers = append(a.closers, func() { _ = ws.Close() })
			pollerOpts = append(pollerOpts, subscription.WithWatcher(subscription.NewWSAccountWatcher(ws, a.decoder.ProgramID(), logger)))
		}
	}
	poller := subscription.NewPoller(a.verifier, subscription.PollerConfig{
		MaxAttempts: a.cfg.Poller.MaxAttempts,
		Interval:    a.cfg.Poller.Interval,
	}, logger, pollerOpts...)

	deps := api.Deps{
		Markets: a.markets,
		Booster: a.engine,
		Prices:  a.prices,
		Runs:    deliveries,
	}

	var (
		telegram  *bot.Telegram
		scheduler *broadcast.Scheduler
	)
	if a.cfg.HasBot() {
		handler := bot.NewHandler(bot.Deps{
			Registry: registry,
			Verifier: a.verifier,
			Markets:  a.markets,
			Booster:  a.engine,
			Config:   a.decoder,
			Poller:   poller,
		}, bot.Options{
			FeeWallet: a.cfg.FeeWallet,
			Category:  a.cfg.Market.Category,
		}, logger)

		telegram, err = bot.NewTelegram(a.cfg.BotToken, telegramEndpoint, a.cfg.WebhookURL, handler, logger)
		if err != nil {
			return err
		}
		if a.cfg.WebhookURL != "" {
			deps.Webhook = telegram.WebhookHandler()
		}

		if !a.cfg.Broadcast.Disabled && !noBroadcast {
			broadcaster := broadcast.New(a.markets, a.engine, registry, a.verifier, telegram, deliveries, broadcast.Config{
				Category:    a.cfg.Market.Category,
				MarketLimit: a.cfg.Broadcast.MarketLimit,
				TopN:        a.cfg.Broadcast.TopN,
				Fanout:      a.cfg.Broadcast.Fanout,
				SendRate:    a.cfg.Broadcast.SendRate,
				SendTimeout: a.cfg.RequestTimeout,
			}, logger)
			scheduler = broadcast.NewScheduler(broadcaster, a.cfg.Broadcast.Interval, a.cfg.Broadcast.InitialDelay, logger)
		}
	} else {
		logger.Warn().Msg("bot_token not set, running API only")
	}

	server := api.New(a.cfg.HTTPAddr, deps, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if telegram != nil {
		g.Go(func() error {
			return telegram.Run(gctx)
		})
	}
	if scheduler != nil {
		if err := scheduler.Start(gctx); err != nil {
			return err
		}
		g.Go(func() error {
			<-gctx.Done()
			scheduler.Stop()
			return nil
		})
	}

	logger.Info().
		Str("http_addr", a.cfg.HTTPAddr).
		Str("rpc", a.rpc.Endpoint()).
		Stringer("program_id", a.decoder.ProgramID()).
		Strs("price_symbols", a.prices.Symbols()).
		Bool("bot", telegram != nil).
		Bool("broadcast", scheduler != nil).
		Msg("edgeai started")

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info().Msg("shutdown complete")
	return nil
}
