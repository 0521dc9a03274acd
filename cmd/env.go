package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/campaign-cli/internal/audience"
	"github.com/sells-group/campaign-cli/internal/budget"
	"github.com/sells-group/campaign-cli/internal/cost"
	"github.com/sells-group/campaign-cli/internal/creative"
	"github.com/sells-group/campaign-cli/internal/db"
	"github.com/sells-group/campaign-cli/internal/interest"
	"github.com/sells-group/campaign-cli/internal/jobs"
	"github.com/sells-group/campaign-cli/internal/pipeline"
	"github.com/sells-group/campaign-cli/internal/resilience"
	"github.com/sells-group/campaign-cli/internal/store"
	"github.com/sells-group/campaign-cli/pkg/anthropic"
	"github.com/sells-group/campaign-cli/pkg/meta"
)

// campaignEnv holds the wired components shared by serve, generate and jobs.
type campaignEnv struct {
	Store        store.Store
	Orchestrator *jobs.Orchestrator
}

// Close releases the store.
func (e *campaignEnv) Close() {
	if e.Store != nil {
		if err := e.Store.Close(); err != nil {
			zap.L().Warn("close store", zap.Error(err))
		}
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite", "":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "campaigns.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, db.PoolConfig{MaxConns: cfg.Store.MaxConns})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// openStore connects and migrates the configured store.
func openStore(ctx context.Context) (store.Store, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

func initMetaClient() meta.Client {
	if cfg.Meta.AccessToken == "" {
		zap.L().Info("meta access token not set, interests resolve to placeholders")
		return nil
	}
	return meta.NewClient(cfg.Meta.AccessToken,
		meta.WithBaseURL(cfg.Meta.BaseURL),
		meta.WithAPIVersion(cfg.Meta.APIVersion),
		meta.WithRateLimit(cfg.Meta.RequestsPerSecond),
		meta.WithSearchLimit(cfg.Meta.SearchLimit),
		meta.WithRetryPolicy(resilience.PolicyFromConfig(cfg.Resilience)),
	)
}

func initGenerator() creative.Generator {
	if cfg.Anthropic.Key == "" {
		zap.L().Info("anthropic key not set, creatives use the template fallback")
		return nil
	}
	return creative.NewAnthropicGenerator(
		anthropic.NewClient(cfg.Anthropic.Key),
		resilience.NewBreaker(resilience.BreakerFromConfig("anthropic", cfg.Resilience)),
		cost.NewCalculator(cfg.Pricing.Anthropic),
		cfg.Anthropic.Model,
		cfg.Anthropic.MaxTokens,
	)
}

// initBuilder wires the campaign pipeline from config.
func initBuilder() *pipeline.Builder {
	resolver := interest.NewResolver(initMetaClient(), cfg.Pipeline.MaxConcurrency)
	return pipeline.New(
		audience.NewConstructor(resolver, cfg.Pipeline.DefaultCountries),
		creative.NewEngine(initGenerator()),
		budget.NewOptimizer(cfg.Budget),
		cfg.Pipeline.MaxConcurrency,
	)
}

// initCampaign opens the store and wires the orchestrator around it.
func initCampaign(ctx context.Context) (*campaignEnv, error) {
	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}

	orch := jobs.New(st, initBuilder(), jobs.Options{
		Timeout:      cfg.Pipeline.JobTimeout(),
		TickInterval: cfg.Pipeline.TickInterval(),
	})

	return &campaignEnv{Store: st, Orchestrator: orch}, nil
}
