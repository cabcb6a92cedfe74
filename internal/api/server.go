// Package api serves the public HTTP API.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"edgeai-booster/internal/domain"
	"edgeai-booster/internal/observability"
)

const (
	serviceName    = "$EDGEAI Prediction Booster API"
	serviceVersion = "1.0.0"
)

// MarketProvider lists and finds markets.
type MarketProvider interface {
	ListMarkets(ctx context.Context, category string, limit int) ([]domain.MarketQuote, error)
	FindBySlug(ctx context.Context, slug string) (*domain.MarketQuote, error)
}

// Booster computes a boost for one market.
type Booster interface {
	Boost(ctx context.Context, slug, question string, marketProb float64) domain.BoostResult
}

// PriceSource returns spot prices.
type PriceSource interface {
	SpotPrice(ctx context.Context, symbol string) (float64, error)
}

// RunLister returns recent broadcaster runs.
type RunLister interface {
	RecentRuns(ctx context.Context, limit int) ([]*domain.BroadcastRun, error)
}

// Deps are the API's collaborators. Runs and Webhook are optional.
type Deps struct {
	Markets MarketProvider
	Booster Booster
	Prices  PriceSource
	Runs    RunLister
	Webhook http.Handler
}

// Server is the HTTP API server.
type Server struct {
	router  *mux.Router
	handler http.Handler
	server  *http.Server
	deps    Deps
	logger  zerolog.Logger
}

// New creates a server listening on addr.
func New(addr string, deps Deps, logger zerolog.Logger) *Server {
	s := &Server{
		router: mux.NewRouter(),
		deps:   deps,
		logger: logger.With().Str("component", "api").Logger(),
	}
	s.setupRoutes()
	// CORS wraps the router so preflight requests reach it before method matching.
	s.handler = corsMiddleware(s.router)

	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.observeMiddleware)

	s.router.HandleFunc("/", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.Handle("/metrics", observability.Handler()).Methods(http.MethodGet)

	s.router.HandleFunc("/markets", s.handleMarkets).Methods(http.MethodGet)
	s.router.HandleFunc("/boost_prob", s.handleBoost).Methods(http.MethodGet)
	s.router.HandleFunc("/price/{symbol}", s.handlePrice).Methods(http.MethodGet)
	s.router.HandleFunc("/broadcasts/recent", s.handleRecentRuns).Methods(http.MethodGet)

	if s.deps.Webhook != nil {
		s.router.Handle("/telegram/webhook", s.deps.Webhook).Methods(http.MethodPost)
	}

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "Not Found")
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("starting HTTP server")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

type requestIDKey struct{}

// RequestID returns the id assigned by the request id middleware.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

func (s *Server) observeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapper := &responseWrapper{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapper, r)

		route := "unmatched"
		if cr := mux.CurrentRoute(r); cr != nil {
			if tpl, err := cr.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		elapsed := time.Since(start)
		observability.RecordHTTPRequest(route, strconv.Itoa(wrapper.statusCode), elapsed.Seconds())

		s.logger.Debug().
			Str("request_id", RequestID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", wrapper.statusCode).
			Dur("duration", elapsed).
			Msg("request")
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type responseWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWrapper) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}
