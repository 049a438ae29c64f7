// Package graphdb abstracts the property-graph database used to load
// transaction history and to export detected cases.
package graphdb

import (
	"context"
	"errors"
)

// Client is the contract the repository needs from a graph database.
// ExecuteWriteTx runs all statements in one transaction and rolls back on
// the first failure.
type Client interface {
	ExecuteRead(ctx context.Context, cypher string, params map[string]any) (Result, error)
	ExecuteWrite(ctx context.Context, cypher string, params map[string]any) (Result, error)
	ExecuteWriteTx(ctx context.Context, statements []Statement) error
	VerifyConnectivity(ctx context.Context) error
	Close(ctx context.Context) error
}

// Statement is one parameterised Cypher statement.
type Statement struct {
	Cypher string
	Params map[string]any
}

// Result is a simplified representation of a query response.
type Result struct {
	Records []Record
}

// Record groups key-value pairs returned from the graph engine.
type Record map[string]any

// Options configures a Bolt client.
type Options struct {
	URI            string
	Database       string
	Username       string
	Password       string
	MaxConnections int
	// FetchSize bounds how many records are pulled per round trip. Zero
	// keeps the driver default.
	FetchSize int
}

// ErrMissingURI indicates the graph URI is not provided.
var ErrMissingURI = errors.New("graph URI is required")
