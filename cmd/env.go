package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/veritas-legal/research-cli/internal/aggregator"
	"github.com/veritas-legal/research-cli/internal/cache"
	"github.com/veritas-legal/research-cli/internal/cost"
	"github.com/veritas-legal/research-cli/internal/fetcher"
	"github.com/veritas-legal/research-cli/internal/model"
	"github.com/veritas-legal/research-cli/internal/ratelimit"
	"github.com/veritas-legal/research-cli/internal/router"
	"github.com/veritas-legal/research-cli/internal/search"
	"github.com/veritas-legal/research-cli/internal/store"
	"github.com/veritas-legal/research-cli/internal/verify"
	"github.com/veritas-legal/research-cli/pkg/courtlistener"
	"github.com/veritas-legal/research-cli/pkg/ecfr"
)

// shellEnv holds the wired pipeline plus the shell state the admin
// commands operate on.
type shellEnv struct {
	Aggregator *aggregator.Aggregator
	Verifier   *verify.Verifier
	Predictor  *cost.Predictor
	Detector   *cost.Detector
	Limiter    *ratelimit.Limiter
	Caches     *cache.Manager
	History    store.Store
}

// Close releases resources held by the environment.
func (e *shellEnv) Close() {
	if e.History != nil {
		_ = e.History.Close()
	}
}

// initShell wires the full pipeline from configuration. Callers should
// defer env.Close().
func initShell(ctx context.Context) (*shellEnv, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	table := router.DefaultTable()
	if cfg.Sources.TablePath != "" {
		t, err := router.LoadTable(cfg.Sources.TablePath)
		if err != nil {
			return nil, eris.Wrapf(err, "load source table %s", cfg.Sources.TablePath)
		}
		table = t
	}
	rt := router.New(table)

	f := fetcher.New(fetcher.Options{
		MinInterval: cfg.Fetch.MinInterval(),
		Timeout:     time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
	})
	engine := search.NewEngine(rt, f, cfg.Pipeline.MaxConcurrentFetches)

	caseLaw := courtlistener.NewClient(cfg.CourtListener.Token,
		courtlistener.WithBaseURL(cfg.CourtListener.BaseURL))
	regs := ecfr.NewClient(ecfr.WithBaseURL(cfg.ECFR.BaseURL))

	rates := cost.DefaultRates()
	predictor := cost.NewPredictor(rates, rt)
	detector := cost.NewDetector(time.Hour, cfg.Pipeline.DuplicateWindow,
		cfg.Pipeline.SimilarityThreshold, rates.SavingsPerHit)

	limiter := ratelimit.New(ratelimit.Limits{
		FastPerWindow: cfg.RateLimit.FastPerHour,
		DeepPerWindow: cfg.RateLimit.DeepPerHour,
		Window:        time.Hour,
	})

	manager := cache.NewManager()
	manager.Register(f.Documents())
	results := cache.New[model.AggregateResult](cache.Config{
		Name:          "results",
		Purpose:       "aggregated query results keyed by query fingerprint",
		TTL:           time.Duration(cfg.Cache.ResultTTLHours) * time.Hour,
		MaxEntries:    cfg.Cache.MaxEntries,
		SavingsPerHit: rates.SavingsPerHit,
	})
	manager.Register(results)

	var history store.Store
	if cfg.Store.Path != "" {
		st, err := store.NewSQLite(cfg.Store.Path)
		if err != nil {
			// Analytics only; the pipeline runs without it.
			zap.L().Warn("query history disabled", zap.Error(err))
		} else if err := st.Migrate(ctx); err != nil {
			zap.L().Warn("query history migration failed", zap.Error(err))
			_ = st.Close()
		} else {
			history = st
		}
	}

	agg := aggregator.New(engine, caseLaw, regs, limiter, predictor, detector, results, aggregator.Options{
		SourceTimeout: cfg.Pipeline.SourceTimeout(),
		CaseLawTTL:    time.Duration(cfg.Cache.CaseLawTTLHours) * time.Hour,
		History:       history,
	})

	return &shellEnv{
		Aggregator: agg,
		Verifier:   verify.New(caseLaw),
		Predictor:  predictor,
		Detector:   detector,
		Limiter:    limiter,
		Caches:     manager,
		History:    history,
	}, nil
}
