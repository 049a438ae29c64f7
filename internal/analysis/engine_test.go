package analysis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darshanreddy186/rift-money-muling-detection/internal/detect"
	"github.com/darshanreddy186/rift-money-muling-detection/internal/domain"
	"github.com/darshanreddy186/rift-money-muling-detection/internal/metrics"
)

var base = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func tx(from, to string, amount float64, offset time.Duration) domain.Transaction {
	return domain.Transaction{SenderID: from, ReceiverID: to, Amount: amount, Timestamp: base.Add(offset)}
}

func fixedClock() time.Time { return base }

func scenarioA() []domain.Transaction {
	var txs []domain.Transaction
	for i := 0; i < 10; i++ {
		txs = append(txs, tx(fmt.Sprintf("N%02d", i), fmt.Sprintf("M%02d", i), 1000, time.Duration(i)*time.Hour))
	}
	return append(txs,
		tx("A", "B", 10_000, 0),
		tx("B", "C", 10_000, time.Hour),
		tx("C", "A", 10_000, 2*time.Hour),
	)
}

func scenarioB() []domain.Transaction {
	var txs []domain.Transaction
	for i := 0; i < 12; i++ {
		txs = append(txs, tx(fmt.Sprintf("OLD%d", i%3), "H", 200, -10*24*time.Hour+time.Duration(i)*time.Hour))
	}
	for i := 0; i < 9; i++ {
		txs = append(txs, tx(fmt.Sprintf("IN%d", i), "H", 950, time.Duration(i)*time.Hour))
	}
	for i := 0; i < 9; i++ {
		txs = append(txs, tx("H", fmt.Sprintf("OUT%d", i), 900, 10*time.Hour+time.Duration(i)*25*time.Minute))
	}
	return txs
}

func scenarioC() []domain.Transaction {
	return []domain.Transaction{
		tx("S1", "S2", 1000, 0),
		tx("S2", "S3", 950, time.Hour),
		tx("S3", "S4", 980, 2*time.Hour),
		tx("S4", "S5", 1010, 3*time.Hour),
	}
}

func newEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(Options{Now: fixedClock})
	require.NoError(t, err)
	return e
}

func TestRun_ScenarioCycle(t *testing.T) {
	res, err := newEngine(t).Run(context.Background(), scenarioA())
	require.NoError(t, err)

	require.Len(t, res.Rings, 1)
	assert.Equal(t, domain.PatternCycle, res.Rings[0].PatternType)
	assert.Equal(t, []domain.AccountID{"A", "B", "C"}, res.Rings[0].Members)
	assert.GreaterOrEqual(t, res.Rings[0].RiskScore, 45.0)

	flagged := map[string]domain.SuspicionRecord{}
	for _, r := range res.SuspiciousAccounts {
		flagged[r.AccountID] = r
	}
	for _, id := range []string{"A", "B", "C"} {
		require.Contains(t, flagged, id)
		assert.Equal(t, []string{"cycle_length_3"}, flagged[id].DetectedPatterns)
		assert.Equal(t, res.Rings[0].ID, flagged[id].RingID)
	}
	assert.NotContains(t, flagged, "N00")
}

func TestRun_ScenarioFan(t *testing.T) {
	res, err := newEngine(t).Run(context.Background(), scenarioB())
	require.NoError(t, err)

	require.Len(t, res.Rings, 1)
	ring := res.Rings[0]
	assert.Equal(t, domain.PatternFanInFanOut, ring.PatternType)
	assert.Len(t, ring.Members, 19)
	assert.True(t, ring.Contains("H"))
	for i := 0; i < 9; i++ {
		assert.True(t, ring.Contains(fmt.Sprintf("IN%d", i)))
		assert.True(t, ring.Contains(fmt.Sprintf("OUT%d", i)))
	}
}

func TestRun_ScenarioShell(t *testing.T) {
	res, err := newEngine(t).Run(context.Background(), scenarioC())
	require.NoError(t, err)

	require.Len(t, res.Rings, 1)
	assert.Equal(t, domain.PatternLayeredShell, res.Rings[0].PatternType)
	assert.Equal(t, []domain.AccountID{"S1", "S2", "S3", "S4", "S5"}, res.Rings[0].Members)
	assert.Equal(t, 5, res.Summary.SuspiciousAccountsFlagged)
}

// regularSender builds a cycle through X plus a long tail of payments from X
// whose amounts come from amount(i).
func regularSender(amount func(i int) float64) []domain.Transaction {
	txs := []domain.Transaction{
		tx("X", "P", 1000, 0),
		tx("P", "Q", 1000, time.Hour),
		tx("Q", "X", 1000, 2*time.Hour),
	}
	for i := 0; i < 197; i++ {
		txs = append(txs, tx("X", fmt.Sprintf("PAYEE%03d", i), amount(i), 3*time.Hour+time.Duration(i)*time.Minute))
	}
	return txs
}

func scoreOf(t *testing.T, res domain.Analysis, id string) float64 {
	t.Helper()
	for _, r := range res.SuspiciousAccounts {
		if r.AccountID == id {
			return r.SuspicionScore
		}
	}
	t.Fatalf("account %s not flagged", id)
	return 0
}

func TestRun_ScenarioRegularAmountsDampened(t *testing.T) {
	e := newEngine(t)

	regular, err := e.Run(context.Background(), regularSender(func(int) float64 { return 1000 }))
	require.NoError(t, err)
	irregular, err := e.Run(context.Background(), regularSender(func(i int) float64 { return float64(200 + (i*331)%1600) }))
	require.NoError(t, err)

	require.Len(t, regular.Rings, 1)
	require.Len(t, irregular.Rings, 1)

	low, high := scoreOf(t, regular, "X"), scoreOf(t, irregular, "X")
	assert.Less(t, low, 0.5*high)
	assert.InDelta(t, high*0.3, low, 1.0)
}

func TestRun_CombinedOrderAndSummary(t *testing.T) {
	txs := append(append(scenarioA(), scenarioB()...), scenarioC()...)
	res, err := newEngine(t).Run(context.Background(), txs)
	require.NoError(t, err)

	require.Len(t, res.Rings, 3)
	assert.Equal(t, "RING_C_001", res.Rings[0].ID)
	assert.Equal(t, "RING_S_001", res.Rings[1].ID)
	assert.Equal(t, "RING_L_001", res.Rings[2].ID)

	assert.Equal(t, 3, res.Summary.FraudRingsDetected)
	assert.Equal(t, len(res.SuspiciousAccounts), res.Summary.SuspiciousAccountsFlagged)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, base, res.StartedAt)

	for i := 1; i < len(res.SuspiciousAccounts); i++ {
		prev, cur := res.SuspiciousAccounts[i-1], res.SuspiciousAccounts[i]
		assert.True(t, prev.SuspicionScore > cur.SuspicionScore ||
			(prev.SuspicionScore == cur.SuspicionScore && prev.AccountID < cur.AccountID))
	}
}

func TestRun_Idempotent(t *testing.T) {
	txs := append(append(scenarioA(), scenarioB()...), scenarioC()...)
	e := newEngine(t)

	first, err := e.Run(context.Background(), txs)
	require.NoError(t, err)
	second, err := e.Run(context.Background(), txs)
	require.NoError(t, err)

	assert.NotEqual(t, first.RunID, second.RunID)
	if diff := cmp.Diff(first, second, cmpopts.IgnoreFields(domain.Analysis{}, "RunID")); diff != "" {
		t.Errorf("second run differs (-first +second):\n%s", diff)
	}
}

func TestRun_EmptyInput(t *testing.T) {
	res, err := newEngine(t).Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, res.Rings)
	assert.Empty(t, res.SuspiciousAccounts)
	assert.Empty(t, res.Edges)
	assert.Zero(t, res.Summary.TotalAccountsAnalyzed)
}

func TestRun_Cancelled(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	e, err := NewEngine(Options{Metrics: m})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.Run(ctx, scenarioA())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues(metrics.StatusError)))
}

func TestNewEngine_RejectsInvalidConfig(t *testing.T) {
	cfg := detect.DefaultConfig()
	cfg.MaxRingSize = 2
	_, err := NewEngine(Options{Detect: &cfg})
	assert.Error(t, err)
}

func TestRun_EdgeListUsesPairView(t *testing.T) {
	res, err := newEngine(t).Run(context.Background(), []domain.Transaction{
		tx("A", "B", 10, 0),
		tx("A", "B", 20, time.Hour),
		tx("B", "C", 30, 2*time.Hour),
	})
	require.NoError(t, err)

	want := []domain.GraphEdge{
		{Source: "A", Target: "B", Amount: 20, Timestamp: base.Add(time.Hour)},
		{Source: "B", Target: "C", Amount: 30, Timestamp: base.Add(2 * time.Hour)},
	}
	assert.Equal(t, want, res.Edges)
	assert.Equal(t, 3, res.Summary.TotalAccountsAnalyzed)
}

func TestEngine_Detectors(t *testing.T) {
	assert.Equal(t, []string{"cycle", "fan", "shell"}, newEngine(t).Detectors())
}
