package detect

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/darshanreddy186/rift-money-muling-detection/internal/domain"
	"github.com/darshanreddy186/rift-money-muling-detection/internal/txgraph"
)

// FanDetector flags hubs that aggregate funds from many senders and then
// redistribute them to many receivers shortly afterwards.
type FanDetector struct {
	cfg    Config
	logger *slog.Logger
}

// NewFanDetector constructs a FanDetector.
func NewFanDetector(cfg Config, logger *slog.Logger) *FanDetector {
	return &FanDetector{cfg: cfg, logger: nopLogger(logger).With("detector", "fan")}
}

func (d *FanDetector) Name() string { return "fan" }

// window is the best sliding window found by maxDistinctWindow. left and
// right index into the swept slice and are inclusive.
type window struct {
	distinct    int
	left, right int
}

func (d *FanDetector) Detect(ctx context.Context, g *txgraph.Store, aggs *txgraph.Aggregates) ([]domain.Ring, error) {
	start := time.Now()
	ids := ringIDs{prefix: "S"}
	suppressed := make(map[string]int)

	var rings []domain.Ring
	for _, hub := range g.Accounts() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		incoming := sortedByTime(g.Incoming(hub))
		outgoing := sortedByTime(g.Outgoing(hub))
		if !d.candidate(incoming, outgoing) {
			continue
		}

		in := maxDistinctWindow(incoming, senderKey, d.cfg.FanWindow)
		if in.distinct < d.cfg.MinUniqueFan {
			continue
		}
		inEnd := incoming[in.right].Timestamp

		lagFrom := inEnd.Add(-d.cfg.FanOutLag)
		var lagged []txgraph.Edge
		for _, e := range outgoing {
			if !e.Timestamp.Before(lagFrom) {
				lagged = append(lagged, e)
			}
		}
		out := maxDistinctWindow(lagged, receiverKey, d.cfg.FanWindow)
		if out.distinct < d.cfg.MinUniqueFan {
			continue
		}

		if reason := d.suppress(g, hub, incoming, outgoing); reason != "" {
			suppressed[reason]++
			d.logger.Debug("fan hub suppressed", "hub", hub, "reason", reason)
			continue
		}

		members := map[domain.AccountID]struct{}{hub: {}}
		for _, e := range incoming[in.left : in.right+1] {
			members[e.From] = struct{}{}
		}
		for _, e := range lagged[out.left : out.right+1] {
			members[e.To] = struct{}{}
		}
		ring := domain.Ring{
			ID:          ids.allocate(),
			Members:     sortedMembers(members),
			PatternType: domain.PatternFanInFanOut,
			RiskScore:   domain.ClampScore(55 + 1.1*float64(in.distinct+out.distinct)),
		}
		rings = append(rings, ring)
		aggs.Tag(ring.ID, domain.SmurfingPattern, ring.Members)
	}

	d.logger.Info("fan detection complete",
		"rings", len(rings),
		"suppressed", suppressed,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return rings, nil
}

const (
	reasonHighVolume  = "high_volume"
	reasonLongLived   = "long_lived"
	reasonBatchPayout = "batch_payout"
)

// suppress returns the name of the first benign-activity rule the hub
// matches, or "" when the hub looks like a mule.
// candidate reports whether hub is busy enough on at least one side to be
// worth sweeping. Each side still needs MinUniqueFan transfers to hold that
// many distinct counterparties.
func (d *FanDetector) candidate(incoming, outgoing []txgraph.Edge) bool {
	if len(incoming) < d.cfg.MinTxPerHub && len(outgoing) < d.cfg.MinTxPerHub {
		return false
	}
	return len(incoming) >= d.cfg.MinUniqueFan && len(outgoing) >= d.cfg.MinUniqueFan
}

func (d *FanDetector) suppress(g *txgraph.Store, hub domain.AccountID, incoming, outgoing []txgraph.Edge) string {
	if len(incoming)+len(outgoing) > d.cfg.HighVolumeDegree {
		return reasonHighVolume
	}
	if first, last, ok := g.ActiveSpan(hub); ok && last.Sub(first) > d.cfg.HubLifespan {
		return reasonLongLived
	}
	if len(outgoing) >= d.cfg.BatchMinOutgoing {
		span := outgoing[len(outgoing)-1].Timestamp.Sub(outgoing[0].Timestamp)
		lo, hi := outgoing[0].Amount, outgoing[0].Amount
		for _, e := range outgoing[1:] {
			lo = min(lo, e.Amount)
			hi = max(hi, e.Amount)
		}
		if span < d.cfg.BatchMaxSpan && hi-lo > d.cfg.BatchAmountSpread {
			return reasonBatchPayout
		}
	}
	return ""
}

func senderKey(e txgraph.Edge) domain.AccountID   { return e.From }
func receiverKey(e txgraph.Edge) domain.AccountID { return e.To }

// maxDistinctWindow sweeps timestamp-ordered edges with two pointers and
// returns the window of at most width holding the most distinct
// counterparties. The earliest such window wins ties.
func maxDistinctWindow(edges []txgraph.Edge, key func(txgraph.Edge) domain.AccountID, width time.Duration) window {
	var best window
	counts := make(map[domain.AccountID]int)
	distinct, left := 0, 0
	for right, e := range edges {
		k := key(e)
		if counts[k] == 0 {
			distinct++
		}
		counts[k]++

		for e.Timestamp.Sub(edges[left].Timestamp) > width {
			lk := key(edges[left])
			counts[lk]--
			if counts[lk] == 0 {
				distinct--
			}
			left++
		}
		if distinct > best.distinct {
			best = window{distinct: distinct, left: left, right: right}
		}
	}
	return best
}

// sortedByTime returns a copy of edges ordered by timestamp, then input order.
func sortedByTime(edges []txgraph.Edge) []txgraph.Edge {
	out := append([]txgraph.Edge(nil), edges...)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].Seq < out[j].Seq
	})
	return out
}

func sortedMembers(set map[domain.AccountID]struct{}) []domain.AccountID {
	out := make([]domain.AccountID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
