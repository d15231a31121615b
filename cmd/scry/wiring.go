package main

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"scry-scanner/internal/chain"
	"scry-scanner/internal/config"
	"scry-scanner/internal/prediction"
	"scry-scanner/internal/reputation"
	"scry-scanner/internal/scanner"
	"scry-scanner/internal/storage"
	"scry-scanner/internal/storage/memory"
	"scry-scanner/internal/storage/migrations"
	"scry-scanner/internal/storage/postgres"
	"scry-scanner/internal/storage/redis"
)

func newChainClient(c config.ChainConfig) *chain.HTTPClient {
	return chain.NewHTTPClient(c.Endpoint,
		chain.WithTimeout(c.Timeout),
		chain.WithMaxRetries(c.MaxRetries),
		chain.WithRateLimit(c.RateLimit, c.Burst),
		chain.WithBreaker(c.BreakerFailures, c.BreakerTimeout),
	)
}

// newReputation returns nil when no API key is configured.
func newReputation(c config.ReputationConfig) *reputation.Client {
	if c.APIKey == "" {
		return nil
	}
	return reputation.NewClient(c.APIKey,
		reputation.WithBaseURL(c.BaseURL),
		reputation.WithTimeout(c.Timeout),
		reputation.WithCacheTTL(c.CacheTTL),
	)
}

func newScanner(client *chain.HTTPClient, rep *reputation.Client) *scanner.Scanner {
	opts := scanner.Options{
		Listing:    client,
		Enrichment: client,
		CacheTTL:   cfg.Scanner.CacheTTL,
		ListCount:  cfg.Scanner.ListCount,
		Logger:     logger,
	}
	// a typed nil must not reach the interface
	if rep != nil {
		opts.Reputation = rep
	}
	return scanner.New(opts)
}

// openStore opens the configured prediction store. The returned func releases it.
func openStore(ctx context.Context, c config.PredictionsConfig) (storage.KVStore, func(), error) {
	switch c.Store {
	case config.StorePostgres:
		pool, err := postgres.NewPool(ctx, c.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return postgres.NewKVStore(pool), pool.Close, nil

	case config.StoreRedis:
		client, err := redis.Dial(ctx, c.RedisAddr, c.RedisPassword, c.RedisDB)
		if err != nil {
			return nil, nil, err
		}
		return redis.NewKVStore(client, "scry:"), func() { _ = client.Close() }, nil

	case config.StoreMemory:
		return memory.NewKVStore(), func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown prediction store %q", c.Store)
	}
}

func newLedger(store storage.KVStore) *prediction.Ledger {
	p := cfg.Predictions
	return prediction.NewLedger(prediction.Options{
		Store: store,
		Key:   cfg.PredictionKey(),
		Config: prediction.Config{
			MinStake:    decimal.NewFromFloat(p.MinStake),
			MaxStake:    decimal.NewFromFloat(p.MaxStake),
			Duration:    p.Duration,
			HouseCutBps: p.HouseCutBps,
		},
		Logger: logger.With().Str("component", "predictions").Logger(),
	})
}
