// Package scoring ranks accounts by combining detector tags with graph
// centrality and volume statistics.
package scoring

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/darshanreddy186/rift-money-muling-detection/internal/domain"
	"github.com/darshanreddy186/rift-money-muling-detection/internal/txgraph"
)

// Weights and thresholds of the suspicion score.
const (
	cycleWeight       = 40
	smurfingWeight    = 30
	shellWeight       = 20
	centralityWeight  = 20
	highVolumeBonus   = 10
	highVolumeTxCount = 20

	regularTxCount    = 100
	regularDispersion = 0.1
	regularDampening  = 0.3
	minVisibleScore   = 5
)

// Scorer produces the ranked suspicion list.
type Scorer struct {
	opts   PageRankOptions
	logger *slog.Logger
}

// NewScorer constructs a Scorer using the default PageRank settings.
func NewScorer(logger *slog.Logger) *Scorer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Scorer{opts: DefaultPageRankOptions(), logger: logger.With("component", "scorer")}
}

// WithPageRankOptions returns a copy of the scorer using opts.
func (s *Scorer) WithPageRankOptions(opts PageRankOptions) *Scorer {
	cp := *s
	cp.opts = opts
	return &cp
}

// Score must only be called once every detector has finished tagging aggs.
// Records are ordered by score descending, then account id.
func (s *Scorer) Score(ctx context.Context, g *txgraph.Store, aggs *txgraph.Aggregates) []domain.SuspicionRecord {
	start := time.Now()
	c := ComputeCentrality(ctx, g, s.opts, s.logger)

	var records []domain.SuspicionRecord
	for _, id := range aggs.IDs() {
		agg, ok := aggs.Get(id)
		if !ok {
			continue
		}
		score, ok := visibleScore(agg, c.PageRank[id], c.Betweenness[id])
		if !ok {
			continue
		}

		var ringID string
		if ids := agg.SortedRingIDs(); len(ids) > 0 {
			ringID = ids[0]
		}
		records = append(records, domain.SuspicionRecord{
			AccountID:        id,
			SuspicionScore:   score,
			DetectedPatterns: agg.Patterns.Strings(),
			RingID:           ringID,
		})
	}

	sort.SliceStable(records, func(i, j int) bool {
		if records[i].SuspicionScore != records[j].SuspicionScore {
			return records[i].SuspicionScore > records[j].SuspicionScore
		}
		return records[i].AccountID < records[j].AccountID
	})

	s.logger.Info("scoring complete",
		"accounts", aggs.Len(),
		"flagged", len(records),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return records
}

// AccountScore combines one account's tags, centrality and volume into a
// score clamped to [0, 100].
func AccountScore(agg txgraph.Aggregate, pagerank, betweenness float64) float64 {
	return domain.ClampScore(rawScore(agg, pagerank, betweenness))
}

// visibleScore returns the reported score and whether the account clears the
// visibility floor. The floor is compared before rounding.
func visibleScore(agg txgraph.Aggregate, pagerank, betweenness float64) (float64, bool) {
	raw := rawScore(agg, pagerank, betweenness)
	if raw <= minVisibleScore {
		return 0, false
	}
	return domain.ClampScore(raw), true
}

func rawScore(agg txgraph.Aggregate, pagerank, betweenness float64) float64 {
	var score float64
	if agg.Patterns.HasKind(domain.KindCycle) {
		score += cycleWeight
	}
	if agg.Patterns.HasKind(domain.KindSmurfing) {
		score += smurfingWeight
	}
	if agg.Patterns.HasKind(domain.KindShellNetwork) {
		score += shellWeight
	}
	score += pagerank * centralityWeight
	score += betweenness * centralityWeight
	if agg.TransactionCount >= highVolumeTxCount {
		score += highVolumeBonus
	}

	if agg.TransactionCount > regularTxCount {
		mean, std := agg.AmountStats()
		if len(agg.Amounts) > 0 && std < regularDispersion*mean {
			score *= regularDampening
		}
	}
	return score
}
