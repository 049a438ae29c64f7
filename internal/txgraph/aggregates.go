package txgraph

import (
	"math"
	"sort"
	"sync"

	"github.com/darshanreddy186/rift-money-muling-detection/internal/domain"
)

// Aggregate holds the running statistics for one account.
type Aggregate struct {
	// TransactionCount counts every transaction the account took part in.
	TransactionCount int
	// SentCount and ReceivedCount split TransactionCount by direction.
	SentCount     int
	ReceivedCount int
	// Amounts lists the amounts sent, in input order.
	Amounts  []float64
	Patterns domain.PatternSet
	RingIDs  map[string]struct{}
}

// AmountStats returns the mean and population standard deviation of the
// amounts sent. Both are zero when nothing was sent.
func (a Aggregate) AmountStats() (mean, std float64) {
	if len(a.Amounts) == 0 {
		return 0, 0
	}
	for _, v := range a.Amounts {
		mean += v
	}
	mean /= float64(len(a.Amounts))
	var sq float64
	for _, v := range a.Amounts {
		d := v - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / float64(len(a.Amounts)))
}

// SortedRingIDs returns the ring ids in ascending order.
func (a Aggregate) SortedRingIDs() []string {
	ids := make([]string, 0, len(a.RingIDs))
	for id := range a.RingIDs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Aggregates is the account aggregate tracker shared by the detectors. Tag
// writes are merged with set-union semantics and are safe for concurrent use.
type Aggregates struct {
	mu   sync.RWMutex
	byID map[domain.AccountID]*Aggregate
}

// NewAggregates creates one aggregate per account referenced by txs.
func NewAggregates(txs []domain.Transaction) *Aggregates {
	a := &Aggregates{byID: make(map[domain.AccountID]*Aggregate)}
	for _, tx := range txs {
		sender := a.ensure(tx.SenderID)
		receiver := a.ensure(tx.ReceiverID)

		sender.TransactionCount++
		sender.SentCount++
		sender.Amounts = append(sender.Amounts, tx.Amount)

		receiver.TransactionCount++
		receiver.ReceivedCount++
	}
	return a
}

func (a *Aggregates) ensure(id domain.AccountID) *Aggregate {
	agg, ok := a.byID[id]
	if !ok {
		agg = &Aggregate{
			Patterns: make(domain.PatternSet),
			RingIDs:  make(map[string]struct{}),
		}
		a.byID[id] = agg
	}
	return agg
}

// Build constructs the graph store and the aggregate tracker for txs.
func Build(txs []domain.Transaction) (*Store, *Aggregates) {
	return NewStore(txs), NewAggregates(txs)
}

// Len returns the number of tracked accounts.
func (a *Aggregates) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.byID)
}

// TransactionCount returns the account's transaction count, or 0 when unknown.
func (a *Aggregates) TransactionCount(id domain.AccountID) int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if agg, ok := a.byID[id]; ok {
		return agg.TransactionCount
	}
	return 0
}

// Tag records the pattern and ring id on every member. Unknown accounts are ignored.
func (a *Aggregates) Tag(ringID string, pattern domain.Pattern, members []domain.AccountID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, id := range members {
		agg, ok := a.byID[id]
		if !ok {
			continue
		}
		agg.Patterns.Add(pattern)
		if ringID != "" {
			agg.RingIDs[ringID] = struct{}{}
		}
	}
}

// Get returns a deep copy of the account's aggregate.
func (a *Aggregates) Get(id domain.AccountID) (Aggregate, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	agg, ok := a.byID[id]
	if !ok {
		return Aggregate{}, false
	}
	cp := Aggregate{
		TransactionCount: agg.TransactionCount,
		SentCount:        agg.SentCount,
		ReceivedCount:    agg.ReceivedCount,
		Amounts:          append([]float64(nil), agg.Amounts...),
		Patterns:         make(domain.PatternSet, len(agg.Patterns)),
		RingIDs:          make(map[string]struct{}, len(agg.RingIDs)),
	}
	for p := range agg.Patterns {
		cp.Patterns.Add(p)
	}
	for r := range agg.RingIDs {
		cp.RingIDs[r] = struct{}{}
	}
	return cp, true
}

// IDs returns every tracked account id in ascending order.
func (a *Aggregates) IDs() []domain.AccountID {
	a.mu.RLock()
	defer a.mu.RUnlock()
	ids := make([]domain.AccountID, 0, len(a.byID))
	for id := range a.byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
