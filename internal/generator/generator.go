// Package generator synthesises transaction datasets with planted laundering
// patterns for demos and detector calibration.
package generator

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/darshanreddy186/rift-money-muling-detection/internal/domain"
)

const (
	fanCounterparties = 12
	payrollPayees     = 60
	payrollFunders    = 10
)

// Planted records one injected pattern so detections can be checked
// against ground truth.
type Planted struct {
	Pattern  domain.PatternType `json:"pattern_type"`
	Accounts []domain.AccountID `json:"accounts"`
	// Decoy marks patterns that must not be reported.
	Decoy bool `json:"decoy,omitempty"`
}

// Dataset contains the generated transactions in timestamp order.
type Dataset struct {
	Transactions []domain.Transaction `json:"transactions"`
	Planted      []Planted            `json:"planted"`
}

// Generator produces synthetic transaction graphs.
type Generator struct {
	cfg  Config
	rand *rand.Rand
	txs  []domain.Transaction
}

// New returns a configured Generator instance. Negative counts are treated
// as zero; a zero span or start falls back to the defaults.
func New(cfg Config) *Generator {
	def := DefaultConfig()
	if cfg.NumAccounts < 2 {
		cfg.NumAccounts = def.NumAccounts
	}
	if cfg.NumTransactions < 0 {
		cfg.NumTransactions = 0
	}
	cfg.Cycles = max(cfg.Cycles, 0)
	cfg.FanHubs = max(cfg.FanHubs, 0)
	cfg.ShellChains = max(cfg.ShellChains, 0)
	cfg.PayrollBatches = max(cfg.PayrollBatches, 0)
	if cfg.Start.IsZero() {
		cfg.Start = def.Start
	}
	if cfg.Span < 7*24*time.Hour {
		cfg.Span = def.Span
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}

	return &Generator{
		cfg:  cfg,
		rand: rand.New(rand.NewSource(cfg.Seed)),
	}
}

// Generate synthesises the dataset. It respects context cancellation.
func (g *Generator) Generate(ctx context.Context) (Dataset, error) {
	g.txs = g.txs[:0]
	var planted []Planted

	for i := 0; i < g.cfg.NumTransactions; i++ {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return Dataset{}, err
			}
		}
		g.background()
	}

	for i := 0; i < g.cfg.Cycles; i++ {
		planted = append(planted, g.cycle(i))
	}
	for i := 0; i < g.cfg.FanHubs; i++ {
		planted = append(planted, g.fanHub(i))
	}
	for i := 0; i < g.cfg.ShellChains; i++ {
		planted = append(planted, g.shellChain(i))
	}
	for i := 0; i < g.cfg.PayrollBatches; i++ {
		planted = append(planted, g.payroll(i))
	}
	if err := ctx.Err(); err != nil {
		return Dataset{}, err
	}

	sort.SliceStable(g.txs, func(i, j int) bool {
		return g.txs[i].Timestamp.Before(g.txs[j].Timestamp)
	})
	txs := make([]domain.Transaction, len(g.txs))
	for i, tx := range g.txs {
		tx.ID = fmt.Sprintf("TXN-%07d", i+1)
		txs[i] = tx
	}
	return Dataset{Transactions: txs, Planted: planted}, nil
}

func (g *Generator) background() {
	from := g.rand.Intn(g.cfg.NumAccounts)
	to := g.rand.Intn(g.cfg.NumAccounts - 1)
	if to >= from {
		to++
	}
	// Log-uniform between 20 and 800.
	amount := 20 * math.Exp(g.rand.Float64()*math.Log(40))
	g.emit(accountID(from), accountID(to), amount, g.randomTime(0))
}

// cycle plants a ring of three to five accounts moving a large amount
// around within a couple of days, losing a small fee per hop.
func (g *Generator) cycle(idx int) Planted {
	size := 3 + idx%3
	members := make([]domain.AccountID, size)
	for i := range members {
		members[i] = fmt.Sprintf("CYC%02d-%d", idx, i)
	}
	amount := 3000 + g.rand.Float64()*5000
	ts := g.randomTime(72 * time.Hour)
	for i, from := range members {
		g.emit(from, members[(i+1)%size], amount, ts)
		amount *= 0.99
		ts = ts.Add(time.Duration(1+g.rand.Intn(8)) * time.Hour)
	}
	return Planted{Pattern: domain.PatternCycle, Accounts: members}
}

// fanHub plants a mule collecting from many senders within a day and
// dispersing to many receivers shortly after.
func (g *Generator) fanHub(idx int) Planted {
	hub := fmt.Sprintf("HUB%02d", idx)
	accounts := []domain.AccountID{hub}
	ts := g.randomTime(72 * time.Hour)
	var collected float64
	for i := 0; i < fanCounterparties; i++ {
		src := fmt.Sprintf("SRC%02d-%02d", idx, i)
		amount := 400 + g.rand.Float64()*500
		collected += amount
		g.emit(src, hub, amount, ts)
		accounts = append(accounts, src)
		ts = ts.Add(time.Duration(30+g.rand.Intn(120)) * time.Minute)
	}
	ts = ts.Add(2 * time.Hour)
	share := collected * 0.95 / fanCounterparties
	for i := 0; i < fanCounterparties; i++ {
		dst := fmt.Sprintf("DST%02d-%02d", idx, i)
		g.emit(hub, dst, share, ts)
		accounts = append(accounts, dst)
		ts = ts.Add(20 * time.Minute)
	}
	return Planted{Pattern: domain.PatternFanInFanOut, Accounts: accounts}
}

// shellChain plants a pass-through chain of four or five otherwise dormant
// accounts.
func (g *Generator) shellChain(idx int) Planted {
	size := 4 + idx%2
	members := make([]domain.AccountID, size)
	for i := range members {
		members[i] = fmt.Sprintf("SHL%02d-%d", idx, i)
	}
	amount := 1500 + g.rand.Float64()*1500
	ts := g.randomTime(10 * 24 * time.Hour)
	for i := 0; i < size-1; i++ {
		g.emit(members[i], members[i+1], amount, ts)
		amount *= 0.97
		ts = ts.Add(time.Duration(6+g.rand.Intn(42)) * time.Hour)
	}
	return Planted{Pattern: domain.PatternLayeredShell, Accounts: members}
}

// payroll plants a legitimate employer: funded by a few treasury accounts,
// then paying dozens of salaries of very different sizes in one short run.
func (g *Generator) payroll(idx int) Planted {
	employer := fmt.Sprintf("PAY%02d", idx)
	accounts := []domain.AccountID{employer}
	ts := g.randomTime(72 * time.Hour)
	for i := 0; i < payrollFunders; i++ {
		funder := fmt.Sprintf("TRS%02d-%d", idx, i)
		g.emit(funder, employer, 50000+g.rand.Float64()*50000, ts)
		accounts = append(accounts, funder)
		ts = ts.Add(time.Duration(10+g.rand.Intn(60)) * time.Minute)
	}
	ts = ts.Add(time.Hour)
	for i := 0; i < payrollPayees; i++ {
		payee := fmt.Sprintf("EMP%02d-%03d", idx, i)
		amount := 1500 + float64(i)/float64(payrollPayees-1)*28500
		g.emit(employer, payee, amount, ts)
		accounts = append(accounts, payee)
		ts = ts.Add(2 * time.Minute)
	}
	return Planted{Pattern: domain.PatternFanInFanOut, Accounts: accounts, Decoy: true}
}

func (g *Generator) emit(from, to domain.AccountID, amount float64, ts time.Time) {
	g.txs = append(g.txs, domain.Transaction{
		SenderID:   from,
		ReceiverID: to,
		Amount:     math.Round(amount*100) / 100,
		Timestamp:  ts,
	})
}

// randomTime picks a second-aligned instant leaving reserve before the end
// of the span.
func (g *Generator) randomTime(reserve time.Duration) time.Time {
	window := int64((g.cfg.Span - reserve) / time.Second)
	return g.cfg.Start.Add(time.Duration(g.rand.Int63n(window)) * time.Second)
}

func accountID(i int) domain.AccountID {
	return fmt.Sprintf("ACC-%05d", i+1)
}
