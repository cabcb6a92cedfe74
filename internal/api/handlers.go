package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"edgeai-booster/internal/domain"
)

const (
	defaultCategory    = "crypto"
	defaultMarketLimit = 50
	maxMarketLimit     = 100
	defaultRunsLimit   = 20
)

type healthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
}

type marketResponse struct {
	Slug     string  `json:"slug"`
	Question string  `json:"question"`
	YesProb  float64 `json:"yes_prob"`
	NoProb   float64 `json:"no_prob"`
	Volume   float64 `json:"volume"`
	EndDate  *string `json:"end_date"`
}

type boostResponse struct {
	MarketSlug     string  `json:"market_slug"`
	MarketProb     float64 `json:"market_prob"`
	BoostedProb    float64 `json:"boosted_prob"`
	Signal         string  `json:"signal"`
	SentimentScore float64 `json:"sentiment_score"`
	PriceMomentum  float64 `json:"price_momentum"`
	Timestamp      string  `json:"timestamp"`
}

type priceResponse struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Timestamp string  `json:"timestamp"`
}

type runResponse struct {
	RunID       string    `json:"run_id"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	SignalCount int       `json:"signal_count"`
	Eligible    int       `json:"eligible"`
	Premium     int       `json:"premium"`
	Sent        int       `json:"sent"`
	Failed      int       `json:"failed"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Service: serviceName, Version: serviceVersion})
}

func (s *Server) handleMarkets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	category := q.Get("category")
	if category == "" {
		category = defaultCategory
	}
	limit := defaultMarketLimit
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxMarketLimit {
			writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("limit must be an integer between 1 and %d", maxMarketLimit))
			return
		}
		limit = n
	}

	markets, err := s.deps.Markets.ListMarkets(r.Context(), category, limit)
	if err != nil {
		s.logger.Warn().Err(err).Str("request_id", RequestID(r.Context())).Msg("list markets failed")
		writeError(w, http.StatusServiceUnavailable, "Failed to fetch market data from Polymarket")
		return
	}

	out := make([]marketResponse, 0, len(markets))
	for _, m := range markets {
		out = append(out, marketResponse{
			Slug:     m.Slug,
			Question: m.Question,
			YesProb:  round4(m.YesProbability),
			NoProb:   round4(m.NoProbability),
			Volume:   m.Volume,
			EndDate:  m.EndDate,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleBoost(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	slug := strings.TrimSpace(q.Get("market_slug"))
	if slug == "" {
		writeError(w, http.StatusUnprocessableEntity, "market_slug is required")
		return
	}

	var (
		prob    float64
		hasProb bool
	)
	if raw := q.Get("market_prob"); raw != "" {
		p, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(p) || p < 0 || p > 1 {
			writeError(w, http.StatusUnprocessableEntity, "market_prob must be a number between 0 and 1")
			return
		}
		prob, hasProb = p, true
	}

	var question string
	m, err := s.deps.Markets.FindBySlug(r.Context(), slug)
	switch {
	case err == nil:
		question = m.Question
		if !hasProb {
			prob = m.YesProbability
		}
	case hasProb:
		// Question text is optional when the caller supplies the probability.
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, fmt.Sprintf("Market '%s' not found", slug))
		return
	default:
		s.logger.Warn().Err(err).Str("slug", slug).Msg("find market failed")
		writeError(w, http.StatusServiceUnavailable, "Failed to fetch market data from Polymarket")
		return
	}

	res := s.deps.Booster.Boost(r.Context(), slug, question, prob)
	writeJSON(w, http.StatusOK, boostResponse{
		MarketSlug:     res.MarketSlug,
		MarketProb:     round4(res.MarketProbability),
		BoostedProb:    round4(res.BoostedProbability),
		Signal:         res.Signal.String(),
		SentimentScore: round4(res.SentimentScore),
		PriceMomentum:  round4(res.PriceMomentum),
		Timestamp:      res.Timestamp.UTC().Format(time.RFC3339),
	})
}

func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(mux.Vars(r)["symbol"])

	price, err := s.deps.Prices.SpotPrice(r.Context(), symbol)
	if err != nil {
		s.logger.Debug().Err(err).Str("symbol", symbol).Msg("price unavailable")
		writeError(w, http.StatusNotFound, fmt.Sprintf("Price not found for %s", symbol))
		return
	}

	writeJSON(w, http.StatusOK, priceResponse{
		Symbol:    symbol,
		Price:     price,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleRecentRuns(w http.ResponseWriter, r *http.Request) {
	if s.deps.Runs == nil {
		writeJSON(w, http.StatusOK, []runResponse{})
		return
	}

	limit := defaultRunsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxMarketLimit {
			writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("limit must be an integer between 1 and %d", maxMarketLimit))
			return
		}
		limit = n
	}

	runs, err := s.deps.Runs.RecentRuns(r.Context(), limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("recent runs failed")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	out := make([]runResponse, 0, len(runs))
	for _, run := range runs {
		out = append(out, runResponse{
			RunID:       run.RunID,
			StartedAt:   run.StartedAt,
			FinishedAt:  run.FinishedAt,
			SignalCount: run.SignalCount,
			Eligible:    run.Eligible,
			Premium:     run.Premium,
			Sent:        run.Sent,
			Failed:      run.Failed,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
