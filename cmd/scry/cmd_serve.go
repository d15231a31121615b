package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"scry-scanner/internal/api"
	"scry-scanner/internal/observability"
	"scry-scanner/internal/prediction"
	"scry-scanner/internal/scheduler"
	"scry-scanner/internal/tier"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API with periodic refresh and prediction settlement",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg.Predictions)
	if err != nil {
		return err
	}
	defer closeStore()

	client := newChainClient(cfg.Chain)
	rep := newReputation(cfg.Reputation)
	scan := newScanner(client, rep)
	ledger := newLedger(store)

	opts := api.Options{
		Addr:         cfg.API.Addr,
		CORSOrigins:  cfg.API.CORSOrigins,
		Scanner:      scan,
		Ledger:       ledger,
		Tiers:        tier.DefaultRegistry(),
		Balances:     client,
		Creators:     client,
		TierToken:    cfg.Tier.Token,
		TierDecimals: cfg.Tier.Decimals,
		Logger:       logger,
	}
	if rep != nil {
		opts.Reputation = rep
	}
	srv := api.NewServer(opts)

	runner := scheduler.New(ctx, logger)
	if err := runner.Every("refresh", cfg.Scanner.RefreshInterval, scheduler.RefreshJob(scan, srv.BroadcastTokens)); err != nil {
		return err
	}
	settler := prediction.NewSettler(ledger, scan, logger.With().Str("component", "settler").Logger())
	if err := runner.Every("prediction-sweep", cfg.Predictions.SweepInterval, scheduler.SweepJob(settler, logger)); err != nil {
		return err
	}

	// first load before serving so the set is warm
	res := scan.FastLoad(ctx)
	logger.Info().Str("outcome", string(res.Outcome)).Int("tokens", len(res.Tokens)).Msg("initial load")

	runner.Start()
	defer runner.Stop()

	if cfg.Metrics.Addr != "" && cfg.Metrics.Addr != cfg.API.Addr {
		go serveMetrics(ctx, cfg.Metrics.Addr)
	}

	return srv.Run(ctx)
}

// serveMetrics exposes /metrics on a dedicated listener.
func serveMetrics(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		_ = server.Close()
	}()

	logger.Info().Str("addr", addr).Msg("metrics listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server failed")
	}
}
