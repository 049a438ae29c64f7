package detect

import (
	"context"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darshanreddy186/rift-money-muling-detection/internal/domain"
	"github.com/darshanreddy186/rift-money-muling-detection/internal/txgraph"
)

var base = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func tx(from, to string, amount float64, offset time.Duration) domain.Transaction {
	return domain.Transaction{SenderID: from, ReceiverID: to, Amount: amount, Timestamp: base.Add(offset)}
}

// background adds n unrelated single transfers of the given amount so the
// median edge amount is predictable.
func background(n int, amount float64) []domain.Transaction {
	out := make([]domain.Transaction, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, tx(fmt.Sprintf("BG_S%02d", i), fmt.Sprintf("BG_R%02d", i), amount, time.Duration(i)*time.Hour))
	}
	return out
}

func run(t *testing.T, d Detector, txs []domain.Transaction) ([]domain.Ring, *txgraph.Store, *txgraph.Aggregates) {
	t.Helper()
	g, aggs := txgraph.Build(txs)
	rings, err := d.Detect(context.Background(), g, aggs)
	require.NoError(t, err)
	return rings, g, aggs
}

func TestCycleDetector_ThreeAccountRing(t *testing.T) {
	txs := append(background(10, 1000),
		tx("A", "B", 10_000, 0),
		tx("B", "C", 10_000, time.Hour),
		tx("C", "A", 10_000, 2*time.Hour),
	)

	rings, _, aggs := run(t, NewCycleDetector(DefaultConfig(), nil), txs)

	require.Len(t, rings, 1)
	ring := rings[0]
	assert.Equal(t, "RING_C_001", ring.ID)
	assert.Equal(t, []domain.AccountID{"A", "B", "C"}, ring.Members)
	assert.Equal(t, domain.PatternCycle, ring.PatternType)
	assert.GreaterOrEqual(t, ring.RiskScore, 45.0)

	for _, id := range ring.Members {
		agg, ok := aggs.Get(id)
		require.True(t, ok)
		assert.Equal(t, []string{"cycle_length_3"}, agg.Patterns.Strings())
		assert.Equal(t, []string{"RING_C_001"}, agg.SortedRingIDs())
	}
}

func TestCycleDetector_Rejections(t *testing.T) {
	tests := []struct {
		name string
		txs  []domain.Transaction
		cfg  func(*Config)
	}{
		{
			name: "amounts too small relative to median",
			txs: append(background(10, 1000),
				tx("A", "B", 100, 0), tx("B", "C", 100, time.Hour), tx("C", "A", 100, 2*time.Hour)),
		},
		{
			name: "closing edge outside window",
			txs: append(background(10, 1000),
				tx("A", "B", 10_000, 0), tx("B", "C", 10_000, 80*time.Hour), tx("C", "A", 10_000, 81*time.Hour)),
		},
		{
			name: "two-account loop is below minimum size",
			txs: append(background(10, 1000),
				tx("A", "B", 10_000, 0), tx("B", "A", 10_000, time.Hour)),
		},
		{
			name: "six-account loop exceeds maximum size",
			txs: append(background(10, 1000),
				tx("A", "B", 10_000, 0), tx("B", "C", 10_000, time.Hour), tx("C", "D", 10_000, 2*time.Hour),
				tx("D", "E", 10_000, 3*time.Hour), tx("E", "F", 10_000, 4*time.Hour), tx("F", "A", 10_000, 5*time.Hour)),
		},
		{
			name: "expansion cap stops the search",
			txs: append(background(10, 1000),
				tx("A", "B", 10_000, 0), tx("B", "C", 10_000, time.Hour), tx("C", "A", 10_000, 2*time.Hour)),
			cfg: func(c *Config) { c.MaxDFSExpansions = 1 },
		},
		{
			name: "empty graph",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			if tc.cfg != nil {
				tc.cfg(&cfg)
			}
			rings, _, _ := run(t, NewCycleDetector(cfg, nil), tc.txs)
			assert.Empty(t, rings)
		})
	}
}

func TestCycleDetector_FourAndFiveAccountRings(t *testing.T) {
	txs := append(background(20, 1000),
		tx("P1", "P2", 5000, 0), tx("P2", "P3", 5000, time.Hour), tx("P3", "P4", 5000, 2*time.Hour), tx("P4", "P1", 5000, 3*time.Hour),
		tx("Q5", "Q1", 4000, 0), tx("Q1", "Q2", 4000, time.Hour), tx("Q2", "Q3", 4000, 2*time.Hour),
		tx("Q3", "Q4", 4000, 3*time.Hour), tx("Q4", "Q5", 4000, 4*time.Hour),
	)

	rings, _, _ := run(t, NewCycleDetector(DefaultConfig(), nil), txs)

	require.Len(t, rings, 2)
	assert.Equal(t, []domain.AccountID{"P1", "P2", "P3", "P4"}, rings[0].Members)
	assert.Equal(t, []domain.AccountID{"Q1", "Q2", "Q3", "Q4", "Q5"}, rings[1].Members)
	assert.Equal(t, "RING_C_002", rings[1].ID)
}

func TestCanonicalRotation(t *testing.T) {
	assert.Equal(t, []domain.AccountID{"A", "B", "C"}, canonicalRotation([]domain.AccountID{"B", "C", "A"}))
	assert.Equal(t, []domain.AccountID{"A", "B", "C"}, canonicalRotation([]domain.AccountID{"C", "A", "B"}))
	assert.Equal(t, []domain.AccountID{"A", "C", "B"}, canonicalRotation([]domain.AccountID{"C", "B", "A"}))
}

// fanHub builds the classic aggregation pattern: nine senders within ten
// hours, then nine receivers within the next four, plus extra history so the
// hub has thirty transactions in total.
func fanHub(hub string) []domain.Transaction {
	var txs []domain.Transaction
	for i := 0; i < 12; i++ {
		txs = append(txs, tx(fmt.Sprintf("%s_OLD%d", hub, i%3), hub, 200, -10*24*time.Hour+time.Duration(i)*time.Hour))
	}
	for i := 0; i < 9; i++ {
		txs = append(txs, tx(fmt.Sprintf("%s_IN%d", hub, i), hub, 950, time.Duration(i)*time.Hour))
	}
	for i := 0; i < 9; i++ {
		txs = append(txs, tx(hub, fmt.Sprintf("%s_OUT%d", hub, i), 900, 10*time.Hour+time.Duration(i)*25*time.Minute))
	}
	return txs
}

func TestFanDetector_HubWithNineSendersAndReceivers(t *testing.T) {
	rings, _, aggs := run(t, NewFanDetector(DefaultConfig(), nil), fanHub("H"))

	require.Len(t, rings, 1)
	ring := rings[0]
	assert.Equal(t, "RING_S_001", ring.ID)
	assert.Equal(t, domain.PatternFanInFanOut, ring.PatternType)
	assert.Len(t, ring.Members, 19)
	assert.True(t, ring.Contains("H"))
	assert.False(t, ring.Contains("H_OLD0"), "senders outside the winning window are not members")
	assert.InDelta(t, 74.8, ring.RiskScore, 1e-9)

	agg, ok := aggs.Get("H_OUT3")
	require.True(t, ok)
	assert.True(t, agg.Patterns.HasKind(domain.KindSmurfing))
}

func TestFanDetector_Suppression(t *testing.T) {
	tests := []struct {
		name  string
		extra func(hub string) []domain.Transaction
	}{
		{
			name: "high volume business",
			extra: func(hub string) []domain.Transaction {
				var txs []domain.Transaction
				for i := 0; i < 130; i++ {
					txs = append(txs, tx(hub, "SUPPLIER", 50, -24*time.Hour-time.Duration(i)*time.Minute))
				}
				return txs
			},
		},
		{
			name: "long lived account",
			extra: func(hub string) []domain.Transaction {
				return []domain.Transaction{tx("LANDLORD", hub, 700, -100*24*time.Hour)}
			},
		},
		{
			name: "batch payroll",
			extra: func(hub string) []domain.Transaction {
				var txs []domain.Transaction
				for i := 0; i < 50; i++ {
					txs = append(txs, tx(hub, fmt.Sprintf("EMP%02d", i), 1000+float64(i)*1000, 11*time.Hour+time.Duration(i)*time.Minute))
				}
				return txs
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			txs := append(fanHub("H"), tc.extra("H")...)
			rings, _, _ := run(t, NewFanDetector(DefaultConfig(), nil), txs)
			assert.Empty(t, rings)
		})
	}
}

func TestFanDetector_OutgoingBeforeLagIgnored(t *testing.T) {
	var txs []domain.Transaction
	for i := 0; i < 9; i++ {
		txs = append(txs, tx("H", fmt.Sprintf("EARLY%d", i), 900, -48*time.Hour+time.Duration(i)*time.Hour))
	}
	for i := 0; i < 12; i++ {
		txs = append(txs, tx(fmt.Sprintf("IN%d", i), "H", 950, time.Duration(i)*time.Hour))
	}

	rings, _, _ := run(t, NewFanDetector(DefaultConfig(), nil), txs)
	assert.Empty(t, rings)
}

func TestFanDetector_HubNeedsOneBusySide(t *testing.T) {
	build := func(senders, receivers int) []domain.Transaction {
		var txs []domain.Transaction
		for i := 0; i < senders; i++ {
			txs = append(txs, tx(fmt.Sprintf("IN%d", i), "H", 950, time.Duration(i)*time.Hour))
		}
		for i := 0; i < receivers; i++ {
			txs = append(txs, tx("H", fmt.Sprintf("OUT%d", i), 900, 14*time.Hour+time.Duration(i)*20*time.Minute))
		}
		return txs
	}

	tests := []struct {
		name               string
		senders, receivers int
		want               int
	}{
		{name: "eight each side", senders: 8, receivers: 8, want: 0},
		{name: "eleven each side", senders: 11, receivers: 11, want: 0},
		{name: "busy incoming side", senders: 12, receivers: 8, want: 1},
		{name: "busy outgoing side", senders: 8, receivers: 12, want: 1},
		{name: "busy side but too few receivers", senders: 12, receivers: 7, want: 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rings, _, aggs := run(t, NewFanDetector(DefaultConfig(), nil), build(tc.senders, tc.receivers))
			assert.Len(t, rings, tc.want)
			if tc.want == 0 {
				agg, ok := aggs.Get("H")
				require.True(t, ok)
				assert.Empty(t, agg.Patterns.Strings())
			}
		})
	}
}

func TestMaxDistinctWindow(t *testing.T) {
	edges := []txgraph.Edge{
		{From: "A", Timestamp: base},
		{From: "B", Timestamp: base.Add(time.Hour)},
		{From: "A", Timestamp: base.Add(2 * time.Hour)},
		{From: "C", Timestamp: base.Add(50 * time.Hour)},
		{From: "D", Timestamp: base.Add(51 * time.Hour)},
		{From: "E", Timestamp: base.Add(52 * time.Hour)},
	}

	got := maxDistinctWindow(edges, senderKey, 3*time.Hour)
	assert.Equal(t, window{distinct: 3, left: 3, right: 5}, got)

	got = maxDistinctWindow(edges, senderKey, 72*time.Hour)
	assert.Equal(t, window{distinct: 5, left: 0, right: 5}, got)

	assert.Equal(t, window{}, maxDistinctWindow(nil, senderKey, time.Hour))
}

func TestShellDetector_LayeredChain(t *testing.T) {
	txs := []domain.Transaction{
		tx("A", "B", 1000, 0),
		tx("B", "C", 950, time.Hour),
		tx("C", "D", 980, 2*time.Hour),
		tx("D", "E", 1010, 3*time.Hour),
	}

	rings, _, aggs := run(t, NewShellDetector(DefaultConfig(), nil), txs)

	require.Len(t, rings, 1)
	assert.Equal(t, []domain.AccountID{"A", "B", "C", "D", "E"}, rings[0].Members)
	assert.Equal(t, domain.PatternLayeredShell, rings[0].PatternType)
	assert.Equal(t, 78.0, rings[0].RiskScore)
	assert.Equal(t, "RING_L_001", rings[0].ID)

	agg, _ := aggs.Get("C")
	assert.Equal(t, []string{"shell_network"}, agg.Patterns.Strings())
}

func TestShellDetector_RetriesPastNoisyFirstHop(t *testing.T) {
	txs := []domain.Transaction{
		tx("P", "A", 100, 0),
		tx("A", "B", 1000, time.Hour),
		tx("B", "C", 1000, 2*time.Hour),
		tx("C", "D", 1000, 3*time.Hour),
		tx("D", "E", 1000, 4*time.Hour),
	}

	rings, _, aggs := run(t, NewShellDetector(DefaultConfig(), nil), txs)

	require.Len(t, rings, 1)
	assert.Equal(t, []domain.AccountID{"A", "B", "C", "D", "E"}, rings[0].Members)
	agg, ok := aggs.Get("P")
	require.True(t, ok)
	assert.Empty(t, agg.Patterns.Strings())
}

func TestShellDetector_MergingNoisyChainsReportSuffixOnce(t *testing.T) {
	txs := []domain.Transaction{
		tx("P1", "A", 100, 0),
		tx("P2", "A", 120, 0),
		tx("A", "B", 1000, time.Hour),
		tx("B", "C", 1000, 2*time.Hour),
		tx("C", "D", 1000, 3*time.Hour),
		tx("D", "E", 1000, 4*time.Hour),
	}

	rings, _, _ := run(t, NewShellDetector(DefaultConfig(), nil), txs)

	require.Len(t, rings, 1)
	assert.Equal(t, []domain.AccountID{"A", "B", "C", "D", "E"}, rings[0].Members)
}

func TestShellDetector_Rejections(t *testing.T) {
	busy := func() []domain.Transaction {
		var txs []domain.Transaction
		for i := 0; i < 6; i++ {
			txs = append(txs, tx(fmt.Sprintf("X%d", i), "C", 10, time.Duration(i)*time.Minute))
		}
		return txs
	}

	tests := []struct {
		name string
		txs  []domain.Transaction
	}{
		{
			name: "amount lost in transit",
			txs: []domain.Transaction{
				tx("A", "B", 1000, 0), tx("B", "C", 500, time.Hour), tx("C", "D", 1000, 2*time.Hour), tx("D", "E", 1000, 3*time.Hour),
			},
		},
		{
			name: "busy account breaks the chain",
			txs: append(busy(),
				tx("A", "B", 1000, 0), tx("B", "C", 1000, time.Hour), tx("C", "D", 1000, 2*time.Hour), tx("D", "E", 1000, 3*time.Hour)),
		},
		{
			name: "chain too short",
			txs:  []domain.Transaction{tx("A", "B", 1000, 0), tx("B", "C", 990, time.Hour)},
		},
		{
			name: "closed loop has no head",
			txs: []domain.Transaction{
				tx("A", "B", 1000, 0), tx("B", "C", 1000, time.Hour), tx("C", "D", 1000, 2*time.Hour), tx("D", "A", 1000, 3*time.Hour),
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rings, _, _ := run(t, NewShellDetector(DefaultConfig(), nil), tc.txs)
			assert.Empty(t, rings)
		})
	}
}

func TestDetectors_HonourCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	g, aggs := txgraph.Build(fanHub("H"))

	for _, d := range All(DefaultConfig(), nil) {
		_, err := d.Detect(ctx, g, aggs)
		assert.ErrorIs(t, err, context.Canceled, d.Name())
	}
}

func randomTransactions(seed int64, accounts, n int) []domain.Transaction {
	rng := rand.New(rand.NewSource(seed))
	txs := make([]domain.Transaction, 0, n)
	for i := 0; i < n; i++ {
		from := fmt.Sprintf("ACC%02d", rng.Intn(accounts))
		to := fmt.Sprintf("ACC%02d", rng.Intn(accounts))
		if from == to {
			continue
		}
		txs = append(txs, tx(from, to, 100+rng.Float64()*9900, time.Duration(rng.Intn(10*24))*time.Hour))
	}
	return txs
}

func TestDetectors_RingProperties(t *testing.T) {
	cfg := DefaultConfig()
	for seed := int64(1); seed <= 5; seed++ {
		txs := randomTransactions(seed, 25, 120)
		g, aggs := txgraph.Build(txs)

		cycles, err := NewCycleDetector(cfg, nil).Detect(context.Background(), g, aggs)
		require.NoError(t, err)
		seen := make(map[string]bool)
		for _, ring := range cycles {
			key := fmt.Sprint(canonicalRotation(ring.Members))
			assert.False(t, seen[key], "duplicate cycle %s", key)
			seen[key] = true
			assert.Equal(t, ring.Members, canonicalRotation(ring.Members))

			var lo, hi time.Time
			for i, from := range ring.Members {
				e, ok := g.Edge(from, ring.Members[(i+1)%len(ring.Members)])
				require.True(t, ok, "missing edge in %s", ring.ID)
				if i == 0 || e.Timestamp.Before(lo) {
					lo = e.Timestamp
				}
				if i == 0 || e.Timestamp.After(hi) {
					hi = e.Timestamp
				}
			}
			assert.LessOrEqual(t, hi.Sub(lo), cfg.CycleWindow)
			assert.GreaterOrEqual(t, ring.RiskScore, 45.0)
		}

		shells, err := NewShellDetector(cfg, nil).Detect(context.Background(), g, aggs)
		require.NoError(t, err)
		for _, ring := range shells {
			require.GreaterOrEqual(t, len(ring.Members), cfg.ShellMinChainLength)
			lo, hi := 0.0, 0.0
			for i := 0; i+1 < len(ring.Members); i++ {
				assert.Equal(t, 1, g.OutDegree(ring.Members[i]))
				e, ok := g.Edge(ring.Members[i], ring.Members[i+1])
				require.True(t, ok)
				if i == 0 {
					lo, hi = e.Amount, e.Amount
				}
				lo, hi = min(lo, e.Amount), max(hi, e.Amount)
			}
			assert.GreaterOrEqual(t, lo/hi, cfg.ShellMinAmountRatio)
		}

		fans, err := NewFanDetector(cfg, nil).Detect(context.Background(), g, aggs)
		require.NoError(t, err)
		for _, ring := range fans {
			assert.GreaterOrEqual(t, len(ring.Members), 1+cfg.MinUniqueFan)
		}
	}
}
