package scoring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/graph/network"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/darshanreddy186/rift-money-muling-detection/internal/domain"
	"github.com/darshanreddy186/rift-money-muling-detection/internal/txgraph"
)

// ErrNotConverged is returned when power iteration exhausts its iteration
// budget before the scores settle.
var ErrNotConverged = errors.New("pagerank did not converge")

// PageRankOptions tunes the power iteration.
type PageRankOptions struct {
	// DampingFactor is the probability of following an edge rather than jumping.
	DampingFactor float64
	MaxIterations int
	// Tolerance is the per-node convergence threshold; the run converges when
	// the summed absolute change drops below N*Tolerance.
	Tolerance float64
}

// DefaultPageRankOptions mirrors the bounded settings used for scoring.
func DefaultPageRankOptions() PageRankOptions {
	return PageRankOptions{DampingFactor: 0.85, MaxIterations: 50, Tolerance: 1e-6}
}

// Centrality holds both structural measures keyed by account.
type Centrality struct {
	PageRank    map[domain.AccountID]float64
	Betweenness map[domain.AccountID]float64
}

func zeroCentrality() Centrality {
	return Centrality{
		PageRank:    map[domain.AccountID]float64{},
		Betweenness: map[domain.AccountID]float64{},
	}
}

// ComputeCentrality runs PageRank and betweenness over the pair view of g.
// If either computation fails or panics both measures fall back to zero for
// every account.
func ComputeCentrality(ctx context.Context, g *txgraph.Store, opts PageRankOptions, logger *slog.Logger) (c Centrality) {
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("centrality computation panicked, using zero scores", "panic", fmt.Sprint(r))
			c = zeroCentrality()
		}
	}()

	pr, err := PageRank(ctx, g, opts)
	if err != nil {
		logger.Warn("pagerank failed, using zero scores", "error", err)
		return zeroCentrality()
	}
	return Centrality{PageRank: pr, Betweenness: Betweenness(g)}
}

// PageRank computes the stationary distribution of a random walk over the
// pair view. Sink accounts spread their mass uniformly.
func PageRank(ctx context.Context, g *txgraph.Store, opts PageRankOptions) (map[domain.AccountID]float64, error) {
	accounts := g.Accounts()
	n := float64(len(accounts))
	if n == 0 {
		return map[domain.AccountID]float64{}, nil
	}
	d := opts.DampingFactor

	scores := make(map[domain.AccountID]float64, len(accounts))
	next := make(map[domain.AccountID]float64, len(accounts))
	for _, id := range accounts {
		scores[id] = 1 / n
	}

	var sinks []domain.AccountID
	for _, id := range accounts {
		if g.OutDegree(id) == 0 {
			sinks = append(sinks, id)
		}
	}

	for iter := 0; iter < opts.MaxIterations; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var sinkMass float64
		for _, id := range sinks {
			sinkMass += scores[id]
		}
		teleport := (1-d)/n + d*sinkMass/n

		var delta float64
		for _, id := range accounts {
			v := teleport
			for _, e := range g.Predecessors(id) {
				v += d * scores[e.From] / float64(g.OutDegree(e.From))
			}
			next[id] = v
			delta += math.Abs(v - scores[id])
		}
		scores, next = next, scores

		if delta < n*opts.Tolerance {
			return scores, nil
		}
	}
	return nil, fmt.Errorf("%w after %d iterations", ErrNotConverged, opts.MaxIterations)
}

// Betweenness returns normalised shortest-path betweenness for every account.
// Self transfers are ignored since they lie on no shortest path.
func Betweenness(g *txgraph.Store) map[domain.AccountID]float64 {
	accounts := g.Accounts()
	index := make(map[domain.AccountID]int64, len(accounts))
	dg := simple.NewDirectedGraph()
	for i, id := range accounts {
		index[id] = int64(i)
		dg.AddNode(simple.Node(int64(i)))
	}
	for _, e := range g.Edges() {
		if e.From == e.To {
			continue
		}
		dg.SetEdge(simple.Edge{F: simple.Node(index[e.From]), T: simple.Node(index[e.To])})
	}

	raw := network.Betweenness(dg)
	scale := 1.0
	if n := float64(len(accounts)); n > 2 {
		scale = 1 / ((n - 1) * (n - 2))
	}

	out := make(map[domain.AccountID]float64, len(accounts))
	for i, id := range accounts {
		out[id] = raw[int64(i)] * scale
	}
	return out
}
