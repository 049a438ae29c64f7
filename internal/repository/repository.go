// Package repository maps transactions and detected cases onto the graph
// database schema:
//
//	(:Account {accountId})-[:SENT {transactionId, amount, timestamp}]->(:Account)
//	(:Account)-[:MEMBER_OF]->(:Ring {ringId, patternType, riskScore, runId})
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/darshanreddy186/rift-money-muling-detection/internal/domain"
	"github.com/darshanreddy186/rift-money-muling-detection/internal/graphdb"
	"github.com/darshanreddy186/rift-money-muling-detection/internal/report"
)

// DefaultBatchSize is the number of rows sent per UNWIND statement.
const DefaultBatchSize = 500

// LoadOptions restricts which transactions LoadTransactions returns.
type LoadOptions struct {
	Since *time.Time
	Until *time.Time
	// Limit caps the number of rows; zero means no limit.
	Limit int
}

// Repository encapsulates graph persistence operations.
type Repository struct {
	client    graphdb.Client
	batchSize int
}

// New instantiates a Repository backed by the supplied graph client.
func New(client graphdb.Client) *Repository {
	return &Repository{client: client, batchSize: DefaultBatchSize}
}

// WithBatchSize returns a copy of the repository writing n rows per statement.
func (r *Repository) WithBatchSize(n int) *Repository {
	cp := *r
	if n > 0 {
		cp.batchSize = n
	}
	return &cp
}

// UpsertTransactions stores txs as SENT relationships, creating accounts as
// needed. Rows are written in batches, each in its own transaction.
func (r *Repository) UpsertTransactions(ctx context.Context, txs []domain.Transaction) error {
	for start := 0; start < len(txs); start += r.batchSize {
		end := min(start+r.batchSize, len(txs))
		rows := make([]map[string]any, 0, end-start)
		for _, tx := range txs[start:end] {
			if tx.ID == "" {
				return errors.New("transaction id is required")
			}
			if tx.SenderID == "" || tx.ReceiverID == "" {
				return fmt.Errorf("transaction %s: both sender and receiver ids are required", tx.ID)
			}
			rows = append(rows, map[string]any{
				"transactionId": tx.ID,
				"senderId":      tx.SenderID,
				"receiverId":    tx.ReceiverID,
				"amount":        tx.Amount,
				"timestamp":     formatTime(tx.Timestamp),
			})
		}
		if _, err := r.client.ExecuteWrite(ctx, upsertTransactionsCypher, map[string]any{"rows": rows}); err != nil {
			return fmt.Errorf("upsert transactions %d-%d: %w", start, end, err)
		}
	}
	return nil
}

// LoadTransactions reads stored transactions ordered by timestamp.
func (r *Repository) LoadTransactions(ctx context.Context, opts LoadOptions) ([]domain.Transaction, error) {
	params := map[string]any{
		"since": formatTimePtr(opts.Since),
		"until": formatTimePtr(opts.Until),
		"limit": opts.Limit,
	}
	res, err := r.client.ExecuteRead(ctx, loadTransactionsCypher, params)
	if err != nil {
		return nil, fmt.Errorf("load transactions query: %w", err)
	}

	txs := make([]domain.Transaction, 0, len(res.Records))
	for i, record := range res.Records {
		tx := domain.Transaction{
			ID:         toString(record["transactionId"]),
			SenderID:   toString(record["senderId"]),
			ReceiverID: toString(record["receiverId"]),
			Amount:     toFloat64(record["amount"]),
		}
		ts := toTimePtr(record["timestamp"])
		if ts == nil {
			return nil, fmt.Errorf("transaction %q (row %d): missing or invalid timestamp", tx.ID, i+1)
		}
		tx.Timestamp = *ts
		if tx.SenderID == "" || tx.ReceiverID == "" {
			return nil, fmt.Errorf("transaction %q (row %d): missing account id", tx.ID, i+1)
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

// SaveCases exports the rings and flagged accounts of one analysis in a
// single transaction. Accounts keep their latest score and patterns; rings
// are keyed by run and ring id since ring ids restart with every run.
func (r *Repository) SaveCases(ctx context.Context, doc report.Document) error {
	if doc.RunID == "" {
		return errors.New("run id is required")
	}

	accounts := make([]map[string]any, 0, len(doc.SuspiciousAccounts))
	for _, acc := range doc.SuspiciousAccounts {
		accounts = append(accounts, map[string]any{
			"accountId": acc.AccountID,
			"score":     acc.SuspicionScore,
			"patterns":  acc.DetectedPatterns,
			"ringId":    acc.RingID,
		})
	}
	rings := make([]map[string]any, 0, len(doc.FraudRings))
	for _, ring := range doc.FraudRings {
		rings = append(rings, map[string]any{
			"ringId":      ring.RingID,
			"patternType": ring.PatternType,
			"riskScore":   ring.RiskScore,
			"members":     ring.MemberAccounts,
		})
	}

	statements := []graphdb.Statement{
		{Cypher: saveRunCypher, Params: map[string]any{
			"runId":       doc.RunID,
			"generatedAt": formatTime(doc.GeneratedAt),
			"accounts":    doc.Summary.TotalAccountsAnalyzed,
			"flagged":     doc.Summary.SuspiciousAccountsFlagged,
			"rings":       doc.Summary.FraudRingsDetected,
		}},
	}
	if len(accounts) > 0 {
		statements = append(statements, graphdb.Statement{
			Cypher: saveFlaggedAccountsCypher,
			Params: map[string]any{"runId": doc.RunID, "accounts": accounts},
		})
	}
	if len(rings) > 0 {
		statements = append(statements, graphdb.Statement{
			Cypher: saveRingsCypher,
			Params: map[string]any{"runId": doc.RunID, "rings": rings},
		})
	}

	if err := r.client.ExecuteWriteTx(ctx, statements); err != nil {
		return fmt.Errorf("save cases for run %s: %w", doc.RunID, err)
	}
	return nil
}

// Ping checks that the database is reachable.
func (r *Repository) Ping(ctx context.Context) error {
	return r.client.VerifyConnectivity(ctx)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

func toString(val any) string {
	switch v := val.(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	case []byte:
		return string(v)
	default:
		return ""
	}
}

func toFloat64(val any) float64 {
	switch v := val.(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int64:
		return float64(v)
	case int:
		return float64(v)
	default:
		return 0
	}
}

func toTimePtr(val any) *time.Time {
	switch v := val.(type) {
	case time.Time:
		return &v
	case string:
		if v == "" {
			return nil
		}
		if parsed, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return &parsed
		}
	}
	return nil
}

const upsertTransactionsCypher = `
UNWIND $rows AS row
MERGE (s:Account {accountId: row.senderId})
MERGE (r:Account {accountId: row.receiverId})
MERGE (s)-[t:SENT {transactionId: row.transactionId}]->(r)
SET t.amount = row.amount,
	t.timestamp = row.timestamp
`

const loadTransactionsCypher = `
MATCH (s:Account)-[t:SENT]->(r:Account)
WHERE ($since = "" OR datetime(t.timestamp) >= datetime($since))
  AND ($until = "" OR datetime(t.timestamp) <= datetime($until))
RETURN t.transactionId AS transactionId,
       s.accountId AS senderId,
       r.accountId AS receiverId,
       t.amount AS amount,
       t.timestamp AS timestamp
ORDER BY datetime(t.timestamp), t.transactionId
LIMIT CASE WHEN $limit > 0 THEN $limit ELSE 9223372036854775807 END
`

const saveRunCypher = `
MERGE (run:AnalysisRun {runId: $runId})
SET run.generatedAt = $generatedAt,
	run.accountsAnalyzed = $accounts,
	run.accountsFlagged = $flagged,
	run.ringsDetected = $rings
`

const saveFlaggedAccountsCypher = `
UNWIND $accounts AS acc
MERGE (a:Account {accountId: acc.accountId})
SET a.suspicionScore = acc.score,
	a.detectedPatterns = acc.patterns,
	a.primaryRingId = acc.ringId,
	a.lastRunId = $runId
`

const saveRingsCypher = `
MATCH (run:AnalysisRun {runId: $runId})
UNWIND $rings AS ring
MERGE (g:Ring {runId: $runId, ringId: ring.ringId})
SET g.patternType = ring.patternType,
	g.riskScore = ring.riskScore
MERGE (g)-[:DETECTED_IN]->(run)
WITH g, ring
UNWIND ring.members AS member
MERGE (a:Account {accountId: member})
MERGE (a)-[:MEMBER_OF]->(g)
`
