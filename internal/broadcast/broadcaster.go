// Package broadcast pushes strong boost signals to opted-in premium subscribers.
package broadcast

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"edgeai-booster/internal/domain"
	"edgeai-booster/internal/observability"
	"edgeai-booster/internal/storage"
	"edgeai-booster/internal/subscription"
)

// Defaults for Config.
const (
	DefaultCategory    = "crypto"
	DefaultMarketLimit = 50
	DefaultTopN        = 3
	DefaultFanout      = 8
	DefaultSendRate    = 20 // messages per second
	DefaultSendTimeout = 10 * time.Second
)

// MarketSource lists candidate markets.
type MarketSource interface {
	ListMarkets(ctx context.Context, category string, limit int) ([]domain.MarketQuote, error)
}

// SignalSource selects strong signals from a market set.
type SignalSource interface {
	StrongSignals(ctx context.Context, markets []domain.MarketQuote) []domain.StrongSignal
}

// RecipientSource lists subscribers eligible for pushes.
type RecipientSource interface {
	ListAlertRecipients(ctx context.Context) ([]*domain.Subscriber, error)
}

// Sender delivers a formatted message to a chat.
type Sender interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// Config controls a broadcaster run.
type Config struct {
	Category    string
	MarketLimit int
	TopN        int
	Fanout      int     // concurrent recipients
	SendRate    float64 // sends per second across the run
	SendTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Category == "" {
		c.Category = DefaultCategory
	}
	if c.MarketLimit <= 0 {
		c.MarketLimit = DefaultMarketLimit
	}
	if c.TopN <= 0 {
		c.TopN = DefaultTopN
	}
	if c.Fanout <= 0 {
		c.Fanout = DefaultFanout
	}
	if c.SendRate <= 0 {
		c.SendRate = DefaultSendRate
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = DefaultSendTimeout
	}
	return c
}

// Broadcaster runs one signal distribution cycle per Run call.
type Broadcaster struct {
	markets    MarketSource
	signals    SignalSource
	recipients RecipientSource
	verifier   subscription.PremiumChecker
	sender     Sender
	deliveries storage.DeliveryLog // optional
	cfg        Config
	logger     zerolog.Logger
	now        func() time.Time
}

// New creates a Broadcaster. deliveries may be nil.
func New(
	markets MarketSource,
	signals SignalSource,
	recipients RecipientSource,
	verifier subscription.PremiumChecker,
	sender Sender,
	deliveries storage.DeliveryLog,
	cfg Config,
	logger zerolog.Logger,
) *Broadcaster {
	return &Broadcaster{
		markets:    markets,
		signals:    signals,
		recipients: recipients,
		verifier:   verifier,
		sender:     sender,
		deliveries: deliveries,
		cfg:        cfg.withDefaults(),
		logger:     logger.With().Str("component", "broadcaster").Logger(),
		now:        time.Now,
	}
}

// Run executes one cycle. Per-recipient failures are recorded in the
// returned run and never abort it. An error is returned only when the
// market or recipient list cannot be loaded.
func (b *Broadcaster) Run(ctx context.Context) (*domain.BroadcastRun, error) {
	run := &domain.BroadcastRun{
		RunID:     uuid.NewString(),
		StartedAt: b.now().UTC(),
	}
	logger := b.logger.With().Str("run_id", run.RunID).Logger()

	status := "ok"
	defer func() {
		observability.RecordBroadcastRun(status, time.Since(run.StartedAt).Seconds(), run.FinishedAt.Unix())
	}()

	markets, err := b.markets.ListMarkets(ctx, b.cfg.Category, b.cfg.MarketLimit)
	if err != nil {
		status = "error"
		run.FinishedAt = b.now().UTC()
		logger.Error().Err(err).Msg("fetch markets failed")
		return run, fmt.Errorf("list markets: %w", err)
	}

	signals := b.signals.StrongSignals(ctx, markets)
	run.SignalCount = len(signals)
	if len(signals) == 0 {
		status = "noop"
		b.finish(ctx, run, logger)
		logger.Info().Int("markets", len(markets)).Msg("no strong signals")
		return run, nil
	}
	if len(signals) > b.cfg.TopN {
		signals = signals[:b.cfg.TopN]
	}

	recipients, err := b.recipients.ListAlertRecipients(ctx)
	if err != nil {
		status = "error"
		run.FinishedAt = b.now().UTC()
		logger.Error().Err(err).Msg("load recipients failed")
		return run, fmt.Errorf("list recipients: %w", err)
	}
	recipients = withWallet(recipients, logger)
	run.Eligible = len(recipients)
	if len(recipients) == 0 {
		status = "noop"
		b.finish(ctx, run, logger)
		logger.Info().Int("signals", run.SignalCount).Msg("no eligible recipients")
		return run, nil
	}

	text := FormatSignals("🔔 New Signals Detected!", signals)
	b.fanOut(ctx, run, recipients, text, len(signals), logger)

	b.finish(ctx, run, logger)
	logger.Info().
		Int("signals", run.SignalCount).
		Int("eligible", run.Eligible).
		Int("premium", run.Premium).
		Int("sent", run.Sent).
		Int("failed", run.Failed).
		Msg("broadcast complete")
	return run, nil
}

// withWallet drops nil subscribers and those without a wallet.
func withWallet(subs []*domain.Subscriber, logger zerolog.Logger) []*domain.Subscriber {
	out := make([]*domain.Subscriber, 0, len(subs))
	for _, sub := range subs {
		if sub == nil || !sub.HasWallet() {
			if sub != nil {
				logger.Warn().Int64("user_id", sub.UserID).Msg("recipient has no wallet, skipped")
			}
			continue
		}
		out = append(out, sub)
	}
	return out
}

func (b *Broadcaster) fanOut(
	ctx context.Context,
	run *domain.BroadcastRun,
	recipients []*domain.Subscriber,
	text string,
	signalCount int,
	logger zerolog.Logger,
) {
	limiter := rate.NewLimiter(rate.Limit(b.cfg.SendRate), 1)

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(b.cfg.Fanout)

	for _, sub := range recipients {
		g.Go(func() error {
			premium, _ := b.verifier.IsPremium(ctx, *sub.WalletAddress)
			if !premium {
				return nil
			}

			d := domain.Delivery{
				RunID:     run.RunID,
				UserID:    sub.UserID,
				ChatID:    sub.ChatID,
				Signals:   signalCount,
				AttemptAt: b.now().UTC(),
			}

			err := limiter.Wait(ctx)
			if err == nil {
				sendCtx, cancel := context.WithTimeout(ctx, b.cfg.SendTimeout)
				err = b.sender.Send(sendCtx, sub.ChatID, text)
				cancel()
			}

			if err != nil {
				d.Status = domain.DeliveryStatusFailed
				d.Error = err.Error()
				logger.Warn().Err(err).
					Int64("user_id", sub.UserID).
					Int64("chat_id", sub.ChatID).
					Msg("send failed")
			} else {
				d.Status = domain.DeliveryStatusSent
			}
			observability.RecordDelivery(d.Status)

			mu.Lock()
			run.Premium++
			if d.Status == domain.DeliveryStatusSent {
				run.Sent++
			} else {
				run.Failed++
			}
			run.Deliveries = append(run.Deliveries, d)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
}

// finish stamps the run and records it. Log failures are not fatal.
func (b *Broadcaster) finish(ctx context.Context, run *domain.BroadcastRun, logger zerolog.Logger) {
	run.FinishedAt = b.now().UTC()
	if b.deliveries == nil {
		return
	}
	if err := b.deliveries.RecordRun(ctx, run); err != nil {
		logger.Warn().Err(err).Msg("record broadcast run failed")
	}
}

// FormatSignals renders signals as a numbered Markdown list.
func FormatSignals(header string, signals []domain.StrongSignal) string {
	var sb strings.Builder
	sb.WriteString(header)
	sb.WriteString("\n\n")
	for i, s := range signals {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, EscapeMarkdown(truncate(s.Market.Question, 50)))
		fmt.Fprintf(&sb, "   Market: %.1f%% → Boosted: %.1f%% (+%.1f%%)\n",
			s.Result.MarketProbability*100, s.Result.BoostedProbability*100, s.Delta()*100)
		fmt.Fprintf(&sb, "   `/boost %s`\n\n", s.Market.Slug)
	}
	return strings.TrimRight(sb.String(), "\n")
}

var markdownEscaper = strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[")

// EscapeMarkdown escapes legacy Markdown control characters.
func EscapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
