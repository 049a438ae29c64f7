// Package txgraph holds the in-memory transaction graph and the per-account
// aggregates that detectors annotate during an analysis run.
package txgraph

import (
	"sort"
	"time"

	"github.com/darshanreddy186/rift-money-muling-detection/internal/domain"
)

// Edge is a directed money movement. Seq is the position of the underlying
// transaction in the input sequence.
type Edge struct {
	From      domain.AccountID
	To        domain.AccountID
	Amount    float64
	Timestamp time.Time
	Seq       int
}

type pairKey struct {
	from, to domain.AccountID
}

// Store is a directed multigraph over accounts. Every transaction is kept in
// the per-account streams; the pair view keeps one representative edge per
// ordered (sender, receiver) pair: the latest by timestamp, ties resolved to
// the later input row. The store is read-only once built.
type Store struct {
	accounts []domain.AccountID
	out      map[domain.AccountID][]Edge
	in       map[domain.AccountID][]Edge
	pairs    map[pairKey]Edge
	succ     map[domain.AccountID][]Edge
	pred     map[domain.AccountID][]Edge
	txCount  int
}

// NewStore builds the graph in a single pass over txs.
func NewStore(txs []domain.Transaction) *Store {
	s := &Store{
		out:   make(map[domain.AccountID][]Edge),
		in:    make(map[domain.AccountID][]Edge),
		pairs: make(map[pairKey]Edge),
		succ:  make(map[domain.AccountID][]Edge),
		pred:  make(map[domain.AccountID][]Edge),
	}
	seen := make(map[domain.AccountID]struct{})
	for i, tx := range txs {
		e := Edge{From: tx.SenderID, To: tx.ReceiverID, Amount: tx.Amount, Timestamp: tx.Timestamp, Seq: i}
		s.out[e.From] = append(s.out[e.From], e)
		s.in[e.To] = append(s.in[e.To], e)

		key := pairKey{from: e.From, to: e.To}
		if cur, ok := s.pairs[key]; !ok || !e.Timestamp.Before(cur.Timestamp) {
			s.pairs[key] = e
		}

		for _, id := range [2]domain.AccountID{e.From, e.To} {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				s.accounts = append(s.accounts, id)
			}
		}
	}
	s.txCount = len(txs)
	sort.Strings(s.accounts)

	for key, e := range s.pairs {
		s.succ[key.from] = append(s.succ[key.from], e)
		s.pred[key.to] = append(s.pred[key.to], e)
	}
	for id := range s.succ {
		edges := s.succ[id]
		sort.Slice(edges, func(i, j int) bool { return edges[i].To < edges[j].To })
	}
	for id := range s.pred {
		edges := s.pred[id]
		sort.Slice(edges, func(i, j int) bool { return edges[i].From < edges[j].From })
	}
	return s
}

// Accounts returns every account id in ascending order.
func (s *Store) Accounts() []domain.AccountID {
	return s.accounts
}

// AccountCount returns the number of distinct accounts.
func (s *Store) AccountCount() int { return len(s.accounts) }

// TransactionCount returns the number of transactions the store was built from.
func (s *Store) TransactionCount() int { return s.txCount }

// EdgeCount returns the number of distinct ordered account pairs.
func (s *Store) EdgeCount() int { return len(s.pairs) }

// Outgoing returns every transaction sent by the account, in input order.
func (s *Store) Outgoing(id domain.AccountID) []Edge { return s.out[id] }

// Incoming returns every transaction received by the account, in input order.
func (s *Store) Incoming(id domain.AccountID) []Edge { return s.in[id] }

// Successors returns the representative edge to each distinct receiver, sorted by receiver.
func (s *Store) Successors(id domain.AccountID) []Edge { return s.succ[id] }

// Predecessors returns the representative edge from each distinct sender, sorted by sender.
func (s *Store) Predecessors(id domain.AccountID) []Edge { return s.pred[id] }

// Edge returns the representative transaction for the ordered pair.
func (s *Store) Edge(from, to domain.AccountID) (Edge, bool) {
	e, ok := s.pairs[pairKey{from: from, to: to}]
	return e, ok
}

// OutDegree is the number of distinct receivers.
func (s *Store) OutDegree(id domain.AccountID) int { return len(s.succ[id]) }

// InDegree is the number of distinct senders.
func (s *Store) InDegree(id domain.AccountID) int { return len(s.pred[id]) }

// Edges returns the pair view ordered by (from, to).
func (s *Store) Edges() []Edge {
	edges := make([]Edge, 0, len(s.pairs))
	for _, id := range s.accounts {
		edges = append(edges, s.succ[id]...)
	}
	return edges
}

// MedianEdgeAmount returns the median amount over the pair view, or 0 for an
// empty graph.
func (s *Store) MedianEdgeAmount() float64 {
	if len(s.pairs) == 0 {
		return 0
	}
	amounts := make([]float64, 0, len(s.pairs))
	for _, e := range s.pairs {
		amounts = append(amounts, e.Amount)
	}
	sort.Float64s(amounts)
	mid := len(amounts) / 2
	if len(amounts)%2 == 1 {
		return amounts[mid]
	}
	return (amounts[mid-1] + amounts[mid]) / 2
}

// ActiveSpan returns the first and last transaction timestamps touching the account.
func (s *Store) ActiveSpan(id domain.AccountID) (first, last time.Time, ok bool) {
	for _, stream := range [2][]Edge{s.out[id], s.in[id]} {
		for _, e := range stream {
			if !ok || e.Timestamp.Before(first) {
				first = e.Timestamp
			}
			if !ok || e.Timestamp.After(last) {
				last = e.Timestamp
			}
			ok = true
		}
	}
	return first, last, ok
}
