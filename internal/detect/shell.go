package detect

import (
	"context"
	"log/slog"
	"time"

	"github.com/darshanreddy186/rift-money-muling-detection/internal/domain"
	"github.com/darshanreddy186/rift-money-muling-detection/internal/txgraph"
)

// ShellDetector finds chains of near-idle accounts that each forward funds
// to exactly one next hop.
type ShellDetector struct {
	cfg    Config
	logger *slog.Logger
}

// NewShellDetector constructs a ShellDetector.
func NewShellDetector(cfg Config, logger *slog.Logger) *ShellDetector {
	return &ShellDetector{cfg: cfg, logger: nopLogger(logger).With("detector", "shell")}
}

func (d *ShellDetector) Name() string { return "shell" }

func (d *ShellDetector) Detect(ctx context.Context, g *txgraph.Store, aggs *txgraph.Aggregates) ([]domain.Ring, error) {
	start := time.Now()
	ids := ringIDs{prefix: "L"}

	var rings []domain.Ring
	var rejected int
	covered := make(map[domain.AccountID]struct{})
	for _, head := range g.Accounts() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !d.isHead(g, aggs, head) {
			continue
		}

		// A chain failing the amount check is retried from its next hop,
		// so a noisy first transfer does not hide the chain behind it.
		chain := d.walk(g, aggs, head)
		for len(chain) >= d.cfg.ShellMinChainLength {
			if _, ok := covered[chain[0]]; ok {
				break
			}
			if d.consistentAmounts(g, chain) {
				ring := domain.Ring{
					ID:          ids.allocate(),
					Members:     chain,
					PatternType: domain.PatternLayeredShell,
					RiskScore:   domain.ClampScore(d.cfg.ShellRiskScore),
				}
				rings = append(rings, ring)
				aggs.Tag(ring.ID, domain.ShellNetworkPattern, chain)
				for _, id := range chain {
					covered[id] = struct{}{}
				}
				break
			}
			rejected++
			chain = d.walk(g, aggs, chain[1])
		}
	}

	d.logger.Info("shell detection complete",
		"rings", len(rings),
		"rejected_amounts", rejected,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return rings, nil
}

func (d *ShellDetector) lowActivity(aggs *txgraph.Aggregates, id domain.AccountID) bool {
	return aggs.TransactionCount(id) <= d.cfg.ShellMaxTransactions
}

func (d *ShellDetector) headCandidate(g *txgraph.Store, aggs *txgraph.Aggregates, id domain.AccountID) bool {
	return d.lowActivity(aggs, id) && g.OutDegree(id) == 1
}

// isHead reports whether a chain starts at id: id forwards to a single
// account and is not itself fed by another head candidate, whose own walk
// would already cover it.
func (d *ShellDetector) isHead(g *txgraph.Store, aggs *txgraph.Aggregates, id domain.AccountID) bool {
	if !d.headCandidate(g, aggs, id) {
		return false
	}
	for _, p := range g.Predecessors(id) {
		if p.From != id && d.headCandidate(g, aggs, p.From) {
			return false
		}
	}
	return true
}

// walk follows the unique successor from head while the next account is
// low-activity. An account with other than one successor ends the chain as
// its terminal.
func (d *ShellDetector) walk(g *txgraph.Store, aggs *txgraph.Aggregates, head domain.AccountID) []domain.AccountID {
	chain := []domain.AccountID{head}
	visited := map[domain.AccountID]struct{}{head: {}}
	cur := head
	for {
		succ := g.Successors(cur)
		if len(succ) != 1 {
			return chain
		}
		next := succ[0].To
		if _, ok := visited[next]; ok {
			return chain
		}
		if !d.lowActivity(aggs, next) {
			return chain
		}
		chain = append(chain, next)
		visited[next] = struct{}{}
		if g.OutDegree(next) != 1 {
			return chain
		}
		cur = next
	}
}

// consistentAmounts checks that the smallest hop moves at least the
// configured share of the largest one.
func (d *ShellDetector) consistentAmounts(g *txgraph.Store, chain []domain.AccountID) bool {
	var lo, hi float64
	for i := 0; i+1 < len(chain); i++ {
		e, ok := g.Edge(chain[i], chain[i+1])
		if !ok {
			return false
		}
		if i == 0 {
			lo, hi = e.Amount, e.Amount
			continue
		}
		lo = min(lo, e.Amount)
		hi = max(hi, e.Amount)
	}
	if hi <= 0 {
		return false
	}
	return lo/hi >= d.cfg.ShellMinAmountRatio
}
