package graphdb

import (
	"context"
	"maps"
	"sync"
)

// MemoryClient is an in-memory Client that records every statement and
// replays canned read results. It backs repository and sink tests.
type MemoryClient struct {
	mu           sync.Mutex
	writes       []Statement
	reads        []Statement
	transactions int
	readResults  []Result
	err          error
	connectivity error
}

// NewMemoryClient returns an empty MemoryClient.
func NewMemoryClient() *MemoryClient {
	return &MemoryClient{}
}

// WithError makes every subsequent query fail with err.
func (m *MemoryClient) WithError(err error) *MemoryClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// WithConnectivityError forces VerifyConnectivity to return err.
func (m *MemoryClient) WithConnectivityError(err error) *MemoryClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectivity = err
	return m
}

// PushReadResult queues a result for the next ExecuteRead call.
func (m *MemoryClient) PushReadResult(res Result) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readResults = append(m.readResults, res)
}

func (m *MemoryClient) ExecuteRead(_ context.Context, cypher string, params map[string]any) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return Result{}, m.err
	}
	m.reads = append(m.reads, Statement{Cypher: cypher, Params: maps.Clone(params)})
	if len(m.readResults) == 0 {
		return Result{}, nil
	}
	res := m.readResults[0]
	m.readResults = m.readResults[1:]
	return res, nil
}

func (m *MemoryClient) ExecuteWrite(_ context.Context, cypher string, params map[string]any) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return Result{}, m.err
	}
	m.writes = append(m.writes, Statement{Cypher: cypher, Params: maps.Clone(params)})
	return Result{}, nil
}

// ExecuteWriteTx records the statements only if the whole batch succeeds.
func (m *MemoryClient) ExecuteWriteTx(_ context.Context, statements []Statement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	for _, st := range statements {
		m.writes = append(m.writes, Statement{Cypher: st.Cypher, Params: maps.Clone(st.Params)})
	}
	m.transactions++
	return nil
}

func (m *MemoryClient) VerifyConnectivity(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connectivity
}

func (m *MemoryClient) Close(context.Context) error { return nil }

// Writes returns a snapshot of executed write statements.
func (m *MemoryClient) Writes() []Statement {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Statement(nil), m.writes...)
}

// Reads returns a snapshot of executed read statements.
func (m *MemoryClient) Reads() []Statement {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Statement(nil), m.reads...)
}

// Transactions reports how many ExecuteWriteTx batches were committed.
func (m *MemoryClient) Transactions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transactions
}
