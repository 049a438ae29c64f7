// Package analysis runs the full detection pipeline over one dataset: build
// the graph, run the detectors concurrently, then score every account.
package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/darshanreddy186/rift-money-muling-detection/internal/detect"
	"github.com/darshanreddy186/rift-money-muling-detection/internal/domain"
	"github.com/darshanreddy186/rift-money-muling-detection/internal/metrics"
	"github.com/darshanreddy186/rift-money-muling-detection/internal/scoring"
	"github.com/darshanreddy186/rift-money-muling-detection/internal/txgraph"
)

// Options configures an Engine. Zero values fall back to defaults.
type Options struct {
	Detect   *detect.Config
	PageRank *scoring.PageRankOptions
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	// Now overrides the wall clock; tests use it for stable timestamps.
	Now func() time.Time
}

// Engine is safe for concurrent use; every Run works on its own graph.
type Engine struct {
	detectors []detect.Detector
	scorer    *scoring.Scorer
	logger    *slog.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

// NewEngine validates the thresholds and assembles the detectors.
func NewEngine(opts Options) (*Engine, error) {
	cfg := detect.DefaultConfig()
	if opts.Detect != nil {
		cfg = *opts.Detect
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid detection config: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	scorer := scoring.NewScorer(logger)
	if opts.PageRank != nil {
		scorer = scorer.WithPageRankOptions(*opts.PageRank)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Engine{
		detectors: detect.All(cfg, logger),
		scorer:    scorer,
		logger:    logger.With("component", "analysis"),
		metrics:   opts.Metrics,
		now:       now,
	}, nil
}

// Detectors names the detectors every Run executes, in reporting order.
func (e *Engine) Detectors() []string {
	names := make([]string, 0, len(e.detectors))
	for _, d := range e.detectors {
		names = append(names, d.Name())
	}
	return names
}

// Run analyses txs. An empty dataset yields an empty result, not an error.
func Run(ctx context.Context, txs []domain.Transaction, opts Options) (domain.Analysis, error) {
	e, err := NewEngine(opts)
	if err != nil {
		return domain.Analysis{}, err
	}
	return e.Run(ctx, txs)
}

// Run analyses txs and returns the ranked accounts, every ring found and the
// run summary. Rings are reported cycle first, then fan, then shell.
func (e *Engine) Run(ctx context.Context, txs []domain.Transaction) (domain.Analysis, error) {
	started := e.now()
	runID := uuid.New().String()
	logger := e.logger.With("run_id", runID)

	result, err := e.run(ctx, logger, txs)
	elapsed := e.now().Sub(started)
	if err != nil {
		e.metrics.ObserveRun(metrics.StatusError, elapsed, nil, 0)
		logger.Error("analysis failed", "error", err)
		return domain.Analysis{}, err
	}

	result.RunID = runID
	result.StartedAt = started
	result.Summary.ProcessingTimeSeconds = math.Round(elapsed.Seconds()*100) / 100

	byPattern := make(map[string]int)
	for _, r := range result.Rings {
		byPattern[string(r.PatternType)]++
	}
	e.metrics.ObserveRun(metrics.StatusSuccess, elapsed, byPattern, len(result.SuspiciousAccounts))

	logger.Info("analysis complete",
		"transactions", len(txs),
		"accounts", result.Summary.TotalAccountsAnalyzed,
		"flagged", result.Summary.SuspiciousAccountsFlagged,
		"rings", result.Summary.FraudRingsDetected,
		"duration_ms", elapsed.Milliseconds(),
	)
	return result, nil
}

func (e *Engine) run(ctx context.Context, logger *slog.Logger, txs []domain.Transaction) (domain.Analysis, error) {
	g, aggs := txgraph.Build(txs)
	logger.Debug("graph built", "accounts", g.AccountCount(), "edges", g.EdgeCount(), "transactions", g.TransactionCount())

	found := make([][]domain.Ring, len(e.detectors))
	grp, gctx := errgroup.WithContext(ctx)
	for i, d := range e.detectors {
		grp.Go(func() error {
			start := time.Now()
			rings, err := d.Detect(gctx, g, aggs)
			e.metrics.ObserveDetector(d.Name(), time.Since(start))
			if err != nil {
				return fmt.Errorf("%s detector: %w", d.Name(), err)
			}
			found[i] = rings
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return domain.Analysis{}, err
	}
	if err := ctx.Err(); err != nil {
		return domain.Analysis{}, err
	}

	var rings []domain.Ring
	for _, rs := range found {
		rings = append(rings, rs...)
	}

	records := e.scorer.Score(ctx, g, aggs)

	edges := make([]domain.GraphEdge, 0, g.EdgeCount())
	for _, ed := range g.Edges() {
		edges = append(edges, domain.GraphEdge{
			Source:    ed.From,
			Target:    ed.To,
			Amount:    ed.Amount,
			Timestamp: ed.Timestamp,
		})
	}

	return domain.Analysis{
		SuspiciousAccounts: records,
		Rings:              rings,
		Edges:              edges,
		Summary: domain.Summary{
			TotalAccountsAnalyzed:     g.AccountCount(),
			SuspiciousAccountsFlagged: len(records),
			FraudRingsDetected:        len(rings),
		},
	}, nil
}
