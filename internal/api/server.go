// Package api serves the scanner, prediction ledger and tier registry over HTTP.
package api

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"math/big"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"scry-scanner/internal/observability"
	"scry-scanner/internal/prediction"
	"scry-scanner/internal/scanner"
	"scry-scanner/internal/tier"
)

// BalanceSource reads a wallet's balance of an ERC-20 token in base units.
type BalanceSource interface {
	TokenBalance(ctx context.Context, token, wallet string) (*big.Int, error)
}

// CreatorCounter counts the tokens a creator has launched.
type CreatorCounter interface {
	GetCreatorTokenCount(ctx context.Context, creator string) (int, error)
}

// Options holds the server's collaborators. Scanner, Ledger and Tiers are required.
type Options struct {
	Addr        string
	CORSOrigins []string

	Scanner    *scanner.Scanner
	Ledger     *prediction.Ledger
	Tiers      *tier.Registry
	Hub        *Hub // built when nil
	Balances   BalanceSource
	Creators   CreatorCounter
	Reputation scanner.ReputationSource

	// TierToken is the token whose balance selects a wallet's tier.
	TierToken    string
	TierDecimals int32

	Logger zerolog.Logger
}

// Server is the HTTP API.
type Server struct {
	opts   Options
	hub    *Hub
	logger zerolog.Logger
	server *http.Server
}

// NewServer creates a server.
func NewServer(opts Options) *Server {
	logger := opts.Logger.With().Str("component", "api").Logger()
	hub := opts.Hub
	if hub == nil {
		hub = NewHub(logger, opts.CORSOrigins...)
	}
	return &Server{opts: opts, hub: hub, logger: logger}
}

// Hub returns the stream hub that refreshes are broadcast on.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler builds the routed, CORS-wrapped handler.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()
	router.Use(s.instrument)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/tokens", s.listTokens).Methods(http.MethodGet)
	api.HandleFunc("/tokens/{address}", s.selectToken).Methods(http.MethodGet)
	api.HandleFunc("/refresh", s.refresh).Methods(http.MethodPost)
	api.HandleFunc("/predictions", s.listPredictions).Methods(http.MethodGet)
	api.HandleFunc("/predictions", s.createPrediction).Methods(http.MethodPost)
	api.HandleFunc("/predictions/{id}/resolve", s.resolvePrediction).Methods(http.MethodPost)
	api.HandleFunc("/tier", s.getTier).Methods(http.MethodGet)
	api.HandleFunc("/creators/{address}", s.getCreator).Methods(http.MethodGet)
	api.HandleFunc("/stream", s.stream).Methods(http.MethodGet)
	api.HandleFunc("/health", s.health).Methods(http.MethodGet)

	router.Handle("/metrics", observability.Handler()).Methods(http.MethodGet)

	c := cors.New(cors.Options{
		AllowedOrigins: s.opts.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		MaxAge:         3600,
	})
	return c.Handler(router)
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	go s.hub.Run(ctx)

	s.server = &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.opts.Addr).Msg("api listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}

// instrument records request latency by route template.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tmpl, err := cur.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}
		observability.RecordHTTPRequest(route, strconv.Itoa(rec.status), time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack lets websocket upgrades pass through the recorder.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}
