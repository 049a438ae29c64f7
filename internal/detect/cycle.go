package detect

import (
	"context"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/darshanreddy186/rift-money-muling-detection/internal/domain"
	"github.com/darshanreddy186/rift-money-muling-detection/internal/txgraph"
)

const preservationEpsilon = 1e-9

// CycleDetector finds short, temporally tight directed cycles that move an
// unusually large amount relative to the typical transaction.
type CycleDetector struct {
	cfg    Config
	logger *slog.Logger
}

// NewCycleDetector constructs a CycleDetector.
func NewCycleDetector(cfg Config, logger *slog.Logger) *CycleDetector {
	return &CycleDetector{cfg: cfg, logger: nopLogger(logger).With("detector", "cycle")}
}

func (d *CycleDetector) Name() string { return "cycle" }

// Detect searches every unconsumed account with both incoming and outgoing
// edges. Members of an accepted cycle are consumed and seed no new search.
func (d *CycleDetector) Detect(ctx context.Context, g *txgraph.Store, aggs *txgraph.Aggregates) ([]domain.Ring, error) {
	start := time.Now()
	median := g.MedianEdgeAmount()
	consumed := make(map[domain.AccountID]struct{})
	seen := make(map[string]struct{})
	ids := ringIDs{prefix: "C"}

	var rings []domain.Ring
	var candidates, truncated int
	for _, origin := range g.Accounts() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, ok := consumed[origin]; ok {
			continue
		}
		if g.OutDegree(origin) == 0 || g.InDegree(origin) == 0 {
			continue
		}

		found, complete := d.search(g, origin)
		if !complete {
			truncated++
		}
		for _, path := range found {
			cycle := canonicalRotation(path)
			key := strings.Join(cycle, "\x00")
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			candidates++

			relative, ok := d.validate(g, cycle, median)
			if !ok {
				continue
			}

			ring := domain.Ring{
				ID:          ids.allocate(),
				Members:     cycle,
				PatternType: domain.PatternCycle,
				RiskScore:   domain.ClampScore(45 + relative*8),
			}
			rings = append(rings, ring)
			aggs.Tag(ring.ID, domain.CyclePattern(len(cycle)), cycle)
			for _, id := range cycle {
				consumed[id] = struct{}{}
			}
		}
	}

	if truncated > 0 {
		d.logger.Warn("cycle search hit expansion cap", "origins", truncated, "cap", d.cfg.MaxDFSExpansions)
	}
	d.logger.Info("cycle detection complete",
		"rings", len(rings),
		"candidates", candidates,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return rings, nil
}

type dfsFrame struct {
	node domain.AccountID
	next int
}

// search enumerates simple cycles through origin using an explicit stack.
// Paths never exceed MaxRingSize accounts and only follow edges stamped no
// later than the window after origin's earliest outgoing edge. The second
// return value is false when the expansion cap stopped the search early.
func (d *CycleDetector) search(g *txgraph.Store, origin domain.AccountID) ([][]domain.AccountID, bool) {
	succ := g.Successors(origin)
	startTime := succ[0].Timestamp
	for _, e := range succ[1:] {
		if e.Timestamp.Before(startTime) {
			startTime = e.Timestamp
		}
	}

	var found [][]domain.AccountID
	path := []domain.AccountID{origin}
	onPath := map[domain.AccountID]struct{}{origin: {}}
	stack := []dfsFrame{{node: origin}}
	expansions := 0

	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		edges := g.Successors(top.node)
		if top.next >= len(edges) {
			delete(onPath, top.node)
			path = path[:len(path)-1]
			stack = stack[:len(stack)-1]
			continue
		}
		e := edges[top.next]
		top.next++

		expansions++
		if expansions > d.cfg.MaxDFSExpansions {
			return found, false
		}
		if e.Timestamp.Sub(startTime) > d.cfg.CycleWindow {
			continue
		}
		if e.To == origin {
			if len(path) >= d.cfg.MinRingSize {
				found = append(found, append([]domain.AccountID(nil), path...))
			}
			continue
		}
		if _, ok := onPath[e.To]; ok {
			continue
		}
		if len(path) >= d.cfg.MaxRingSize {
			continue
		}
		path = append(path, e.To)
		onPath[e.To] = struct{}{}
		stack = append(stack, dfsFrame{node: e.To})
	}
	return found, true
}

// validate checks the temporal span, relative magnitude and amount
// preservation of a canonical cycle and returns its relative amount.
func (d *CycleDetector) validate(g *txgraph.Store, cycle []domain.AccountID, median float64) (float64, bool) {
	if len(cycle) < d.cfg.MinRingSize || len(cycle) > d.cfg.MaxRingSize || median <= 0 {
		return 0, false
	}

	var outflow, inflow float64
	var earliest, latest time.Time
	for i, from := range cycle {
		to := cycle[(i+1)%len(cycle)]
		e, ok := g.Edge(from, to)
		if !ok {
			return 0, false
		}
		outflow += e.Amount
		if i == 0 || e.Timestamp.Before(earliest) {
			earliest = e.Timestamp
		}
		if i == 0 || e.Timestamp.After(latest) {
			latest = e.Timestamp
		}

		in, ok := g.Edge(cycle[(i+len(cycle)-1)%len(cycle)], from)
		if !ok {
			return 0, false
		}
		inflow += in.Amount
	}

	if latest.Sub(earliest) > d.cfg.CycleWindow || outflow <= 0 {
		return 0, false
	}
	relative := outflow / median
	if relative < d.cfg.MinRelativeAmount {
		return 0, false
	}
	if math.Min(outflow, inflow)/math.Max(outflow, inflow+preservationEpsilon) < d.cfg.AmountPreservationTol {
		return 0, false
	}
	return relative, true
}

// canonicalRotation rotates the cycle so that it starts at its smallest member.
func canonicalRotation(cycle []domain.AccountID) []domain.AccountID {
	minIdx := 0
	for i, id := range cycle {
		if id < cycle[minIdx] {
			minIdx = i
		}
	}
	out := make([]domain.AccountID, 0, len(cycle))
	out = append(out, cycle[minIdx:]...)
	return append(out, cycle[:minIdx]...)
}
