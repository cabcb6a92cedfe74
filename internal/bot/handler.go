// Package bot implements the chat commands and their Telegram transport.
package bot

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"edgeai-booster/internal/broadcast"
	"edgeai-booster/internal/domain"
	"edgeai-booster/internal/market"
	"edgeai-booster/internal/observability"
	"edgeai-booster/internal/solana"
	"edgeai-booster/internal/storage"
	"edgeai-booster/internal/subscription"
)

const (
	marketsShown  = 10
	signalsShown  = 5
	signalsSource = 50
	expiryLayout  = "2006-01-02 15:04:05"
)

// Request is one inbound chat message.
type Request struct {
	UserID   int64
	ChatID   int64
	Username string
	Command  string   // without leading slash; empty for plain text
	Args     []string // command arguments
	Text     string   // raw text for non-command messages
}

// Reply is the handler's response. FollowUp, when set, yields at most one
// replacement text for the reply message and is then closed.
type Reply struct {
	Text     string
	Markdown bool
	FollowUp <-chan string
}

// Booster computes boosts and strong signals.
type Booster interface {
	Boost(ctx context.Context, slug, question string, marketProb float64) domain.BoostResult
	StrongSignals(ctx context.Context, markets []domain.MarketQuote) []domain.StrongSignal
}

// ConfigFetcher reads the program config account.
type ConfigFetcher interface {
	FetchConfig(ctx context.Context) (*domain.ConfigRecord, error)
}

// PollStarter starts a detached payment confirmation.
type PollStarter interface {
	Start(ctx context.Context, wallet string, onDone func(subscription.Result)) *subscription.Task
}

// Deps are the handler's collaborators.
type Deps struct {
	Registry storage.SubscriberRegistry
	Verifier subscription.PremiumChecker
	Markets  market.Provider
	Booster  Booster
	Config   ConfigFetcher
	Poller   PollStarter
}

// Options are static handler settings.
type Options struct {
	FeeWallet string // overrides the fee wallet from the config account
	Category  string
}

// Handler turns requests into replies.
type Handler struct {
	deps   Deps
	opts   Options
	logger zerolog.Logger
}

// NewHandler creates a Handler.
func NewHandler(deps Deps, opts Options, logger zerolog.Logger) *Handler {
	if opts.Category == "" {
		opts.Category = market.DefaultCategory
	}
	return &Handler{
		deps:   deps,
		opts:   opts,
		logger: logger.With().Str("component", "bot").Logger(),
	}
}

// Handle dispatches one request. ctx must outlive the request when a
// follow-up is expected: pollers started by /subscribe run under it.
func (h *Handler) Handle(ctx context.Context, req Request) Reply {
	cmd := strings.ToLower(req.Command)
	if cmd == "" {
		cmd = "text"
	}
	observability.RecordBotCommand(cmd)

	switch cmd {
	case "start":
		return h.start(ctx, req)
	case "help":
		return Reply{Text: helpText}
	case "connect":
		if len(req.Args) == 0 {
			return Reply{Text: "Usage: /connect <solana wallet address>"}
		}
		return h.connect(ctx, req, req.Args[0])
	case "status":
		return h.status(ctx, req)
	case "alerts":
		return h.alerts(ctx, req)
	case "markets":
		return h.markets(ctx)
	case "boost":
		return h.boost(ctx, req)
	case "subscribe":
		return h.subscribe(ctx, req)
	case "signals":
		return h.signals(ctx, req)
	case "text":
		text := strings.TrimSpace(req.Text)
		if looksLikeAddress(text) {
			return h.connect(ctx, req, text)
		}
		return Reply{Text: "Send a Solana wallet address to connect it, or use /help."}
	default:
		return Reply{Text: fmt.Sprintf("Unknown command /%s. Use /help.", req.Command)}
	}
}

const helpText = `📋 Commands:
/markets - View top prediction markets
/boost <slug> - Get boosted probability
/signals - View top signals (premium)
/subscribe - Subscribe for premium access
/connect <address> - Connect your Solana wallet
/status - Wallet and premium status
/alerts on|off - Toggle signal alerts`

func (h *Handler) start(ctx context.Context, req Request) Reply {
	sub, err := h.deps.Registry.Upsert(ctx, domain.SubscriberUpdate{UserID: req.UserID, ChatID: req.ChatID})
	if err != nil {
		h.logger.Error().Err(err).Int64("user_id", req.UserID).Msg("register subscriber failed")
		return Reply{Text: "❌ Could not register you right now. Please try again with /start."}
	}

	name := req.Username
	if name == "" {
		name = "there"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "👋 Welcome to $EDGEAI Prediction Booster, @%s!\n\n", broadcast.EscapeMarkdown(name))
	sb.WriteString("🚀 Get AI-powered boosted probabilities for Polymarket predictions.\n\n")

	if sub != nil && sub.HasWallet() {
		fmt.Fprintf(&sb, "✅ Wallet connected: `%s`\n", shortAddress(*sub.WalletAddress))
		if premium, exp := h.deps.Verifier.IsPremium(ctx, *sub.WalletAddress); premium && exp != nil {
			fmt.Fprintf(&sb, "⭐ Premium active until: %s UTC\n", exp.UTC().Format(expiryLayout))
		} else {
			sb.WriteString("🔓 Use /subscribe to unlock premium features\n")
		}
	} else {
		sb.WriteString("🔓 Send your Solana wallet address to connect it\n")
	}

	sb.WriteString("\n")
	sb.WriteString(helpText)
	return Reply{Text: sb.String(), Markdown: true}
}

func (h *Handler) connect(ctx context.Context, req Request, address string) Reply {
	if _, err := solana.ParsePublicKey(address); err != nil {
		return Reply{Text: "❌ Invalid wallet address.\n\nPlease send a valid Solana address (32-44 base58 characters)."}
	}

	_, err := h.deps.Registry.Upsert(ctx, domain.SubscriberUpdate{
		UserID:        req.UserID,
		ChatID:        req.ChatID,
		WalletAddress: &address,
	})
	if err != nil {
		h.logger.Error().Err(err).Int64("user_id", req.UserID).Msg("save wallet failed")
		return Reply{Text: "❌ Could not save your wallet. Please try again with /connect."}
	}

	return Reply{
		Text:     fmt.Sprintf("✅ Wallet connected!\n\nAddress: `%s`\n\nUse /subscribe to check premium status", address),
		Markdown: true,
	}
}

// wallet returns the stored subscriber, or a reply explaining why none is
// usable. retry names the command to repeat after a storage failure.
func (h *Handler) wallet(ctx context.Context, req Request, retry string) (*domain.Subscriber, *Reply) {
	sub, err := h.deps.Registry.Get(ctx, req.UserID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		sub = nil
	case err != nil:
		h.logger.Error().Err(err).Int64("user_id", req.UserID).Msg("load subscriber failed")
		return nil, &Reply{Text: fmt.Sprintf("❌ Could not load your wallet. Please try again with %s.", retry)}
	}
	if sub == nil || !sub.HasWallet() {
		return nil, &Reply{Text: "❌ No wallet connected.\n\nSend your Solana wallet address or use /connect <address>."}
	}
	return sub, nil
}

func (h *Handler) status(ctx context.Context, req Request) Reply {
	sub, reply := h.wallet(ctx, req, "/status")
	if reply != nil {
		return *reply
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "👛 Wallet: `%s`\n", *sub.WalletAddress)
	if premium, exp := h.deps.Verifier.IsPremium(ctx, *sub.WalletAddress); premium && exp != nil {
		fmt.Fprintf(&sb, "⭐ Premium active until %s UTC\n", exp.UTC().Format(expiryLayout))
	} else {
		sb.WriteString("🔓 Free tier (use /subscribe)\n")
	}
	if sub.AlertsOptIn {
		sb.WriteString("🔔 Alerts: on")
	} else {
		sb.WriteString("🔕 Alerts: off")
	}
	return Reply{Text: sb.String(), Markdown: true}
}

func (h *Handler) alerts(ctx context.Context, req Request) Reply {
	if len(req.Args) == 0 {
		return Reply{Text: "Usage: /alerts on|off"}
	}

	var on bool
	switch strings.ToLower(req.Args[0]) {
	case "on":
		on = true
	case "off":
		on = false
	default:
		return Reply{Text: "Usage: /alerts on|off"}
	}

	_, err := h.deps.Registry.Upsert(ctx, domain.SubscriberUpdate{
		UserID:      req.UserID,
		ChatID:      req.ChatID,
		AlertsOptIn: &on,
	})
	if err != nil {
		h.logger.Error().Err(err).Int64("user_id", req.UserID).Msg("save alerts flag failed")
		return Reply{Text: "❌ Could not update alerts. Please try again."}
	}

	if on {
		return Reply{Text: "🔔 Signal alerts enabled. Premium subscribers receive strong signals every 10 minutes."}
	}
	return Reply{Text: "🔕 Signal alerts disabled. Use /alerts on to re-enable."}
}

func (h *Handler) markets(ctx context.Context) Reply {
	markets, err := h.deps.Markets.ListMarkets(ctx, h.opts.Category, marketsShown)
	if err != nil {
		h.logger.Warn().Err(err).Msg("list markets failed")
		return Reply{Text: "❌ Failed to fetch markets. Please try again later with /markets."}
	}
	if len(markets) == 0 {
		return Reply{Text: "📊 No active markets right now. Try /markets again later."}
	}

	var sb strings.Builder
	sb.WriteString("📊 Top Prediction Markets\n\n")
	for i, m := range markets {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, broadcast.EscapeMarkdown(truncate(m.Question, 60)))
		fmt.Fprintf(&sb, "   Yes: %.1f%% | Volume: $%s\n", m.YesProbability*100, decimal.NewFromFloat(m.Volume).Round(0).StringFixed(0))
		fmt.Fprintf(&sb, "   `/boost %s`\n\n", m.Slug)
	}
	sb.WriteString("💡 Use /boost <slug> to get boosted probability")
	return Reply{Text: sb.String(), Markdown: true}
}

func (h *Handler) boost(ctx context.Context, req Request) Reply {
	if len(req.Args) == 0 {
		return Reply{Text: "❌ Please provide a market slug.\n\nExample: /boost will-btc-hit-100k\n\nGet slugs from /markets"}
	}
	slug := req.Args[0]

	m, err := h.deps.Markets.FindBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return Reply{Text: fmt.Sprintf("❌ Market %q not found. Get slugs from /markets.", slug)}
		}
		h.logger.Warn().Err(err).Str("slug", slug).Msg("find market failed")
		return Reply{Text: fmt.Sprintf("❌ Failed to fetch market data. Please try again with /boost %s.", slug)}
	}

	r := h.deps.Booster.Boost(ctx, m.Slug, m.Question, m.YesProbability)
	return Reply{Text: formatBoost(r), Markdown: true}
}

func formatBoost(r domain.BoostResult) string {
	emoji := map[domain.Signal]string{
		domain.SignalBuyYes:  "🟢",
		domain.SignalSellYes: "🔴",
		domain.SignalNeutral: "🟡",
	}[r.Signal]

	var sb strings.Builder
	sb.WriteString("📈 Boosted Probability Analysis\n\n")
	fmt.Fprintf(&sb, "Market: `%s`\n\n", r.MarketSlug)
	fmt.Fprintf(&sb, "📊 Market Probability: %.2f%%\n", r.MarketProbability*100)
	fmt.Fprintf(&sb, "🚀 Boosted Probability: %.2f%%\n", r.BoostedProbability*100)
	fmt.Fprintf(&sb, "📉 Difference: %+.2f%%\n\n", r.Delta()*100)
	fmt.Fprintf(&sb, "%s Signal: *%s*\n\n", emoji, strings.ToUpper(strings.ReplaceAll(r.Signal.String(), "_", " ")))
	fmt.Fprintf(&sb, "📊 Sentiment Score: %+.2f\n", r.SentimentScore)
	fmt.Fprintf(&sb, "📈 Price Momentum: %+.2f\n\n", r.PriceMomentum)

	switch r.Signal {
	case domain.SignalBuyYes:
		sb.WriteString("💡 Signal suggests buying YES shares")
	case domain.SignalSellYes:
		sb.WriteString("💡 Signal suggests selling YES shares")
	default:
		sb.WriteString("💡 Signal is neutral")
	}
	return sb.String()
}

func (h *Handler) subscribe(ctx context.Context, req Request) Reply {
	sub, reply := h.wallet(ctx, req, "/subscribe")
	if reply != nil {
		return *reply
	}
	wallet := *sub.WalletAddress

	if premium, exp := h.deps.Verifier.IsPremium(ctx, wallet); premium && exp != nil {
		return Reply{Text: fmt.Sprintf(
			"✅ Premium Subscription Active\n\nExpires: %s UTC\n\nYou have access to:\n• Real-time signals\n• Premium market analysis\n• Priority notifications",
			exp.UTC().Format(expiryLayout),
		)}
	}

	var sb strings.Builder
	sb.WriteString("🔓 Premium Subscription Required\n\n")
	sb.WriteString("Subscribe to unlock:\n• Real-time boosted signals\n• Premium market analysis\n• Priority notifications\n\n")
	sb.WriteString("💳 Payment Options:\n\n")

	feeWallet := h.opts.FeeWallet
	cfg, err := h.deps.Config.FetchConfig(ctx)
	if err != nil {
		h.logger.Warn().Err(err).Msg("fetch program config failed")
	}
	if feeWallet == "" && cfg != nil {
		feeWallet = cfg.FeeWallet
	}

	if cfg != nil {
		fmt.Fprintf(&sb, "SOL: %s SOL\n", FormatLamports(cfg.SubscriptionPriceLamports))
		fmt.Fprintf(&sb, "USDC: %s USDC\n", FormatUSDCMicros(cfg.SubscriptionPriceUsdcMicros))
		if cfg.SubscriptionDurationSeconds != nil {
			fmt.Fprintf(&sb, "Duration: %d days\n", *cfg.SubscriptionDurationSeconds/86400)
		}
		sb.WriteString("\n")
	}
	if feeWallet != "" {
		fmt.Fprintf(&sb, "Pay to: `%s`\n\n", feeWallet)
	}
	sb.WriteString("⏳ Waiting for payment confirmation. This message updates automatically.")

	return Reply{Text: sb.String(), Markdown: true, FollowUp: h.watchPayment(ctx, wallet)}
}

// watchPayment starts a poller and returns the channel its final text is sent on.
func (h *Handler) watchPayment(ctx context.Context, wallet string) <-chan string {
	out := make(chan string, 1)
	h.deps.Poller.Start(ctx, wallet, func(res subscription.Result) {
		defer close(out)
		switch res.Outcome {
		case subscription.OutcomeConfirmed:
			text := "✅ Payment confirmed! Premium is now active."
			if res.ExpiresAt != nil {
				text = fmt.Sprintf("✅ Payment confirmed! Premium active until %s UTC.", res.ExpiresAt.UTC().Format(expiryLayout))
			}
			out <- text
		case subscription.OutcomeTimedOut:
			out <- fmt.Sprintf("⌛ Payment not detected after %d checks. Run /subscribe again once your transaction is confirmed.", res.Attempts)
		}
	})
	return out
}

func (h *Handler) signals(ctx context.Context, req Request) Reply {
	sub, reply := h.wallet(ctx, req, "/signals")
	if reply != nil {
		return Reply{Text: "❌ Premium feature. Please connect a wallet and /subscribe."}
	}
	if premium, _ := h.deps.Verifier.IsPremium(ctx, *sub.WalletAddress); !premium {
		return Reply{Text: "❌ Premium subscription required.\n\nUse /subscribe to get premium access"}
	}

	markets, err := h.deps.Markets.ListMarkets(ctx, h.opts.Category, signalsSource)
	if err != nil {
		h.logger.Warn().Err(err).Msg("list markets failed")
		return Reply{Text: "❌ Failed to fetch signals. Please try again with /signals."}
	}

	signals := h.deps.Booster.StrongSignals(ctx, markets)
	if len(signals) == 0 {
		return Reply{Text: "📊 No strong signals at the moment.\n\nCheck back later or use /boost <slug> for specific markets."}
	}
	if len(signals) > signalsShown {
		signals = signals[:signalsShown]
	}
	return Reply{
		Text:     broadcast.FormatSignals(fmt.Sprintf("🔔 Top %d Signals", len(signals)), signals),
		Markdown: true,
	}
}

// FormatLamports renders lamports as SOL.
func FormatLamports(lamports uint64) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(lamports), -9).String()
}

// FormatUSDCMicros renders USDC base units as USDC.
func FormatUSDCMicros(micros uint64) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(micros), -6).String()
}

func looksLikeAddress(s string) bool {
	return len(s) >= 32 && len(s) <= 44 && !strings.ContainsAny(s, " \t\n")
}

func shortAddress(a string) string {
	if len(a) <= 16 {
		return a
	}
	return a[:8] + "..." + a[len(a)-8:]
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

var _ PollStarter = (*subscription.Poller)(nil)
