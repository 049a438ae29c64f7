// Package report renders an analysis into the JSON document served to
// clients and published to downstream sinks.
package report

import (
	"fmt"
	"io"
	"math"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/darshanreddy186/rift-money-muling-detection/internal/domain"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Document is the wire form of an analysis.
type Document struct {
	RunID              string              `json:"run_id"`
	GeneratedAt        time.Time           `json:"generated_at"`
	SuspiciousAccounts []SuspiciousAccount `json:"suspicious_accounts"`
	FraudRings         []FraudRing         `json:"fraud_rings"`
	Graph              Graph               `json:"graph"`
	Summary            Summary             `json:"summary"`
}

type SuspiciousAccount struct {
	AccountID        string   `json:"account_id"`
	SuspicionScore   float64  `json:"suspicion_score"`
	DetectedPatterns []string `json:"detected_patterns"`
	RingID           string   `json:"ring_id"`
}

type FraudRing struct {
	RingID         string   `json:"ring_id"`
	MemberAccounts []string `json:"member_accounts"`
	PatternType    string   `json:"pattern_type"`
	RiskScore      float64  `json:"risk_score"`
}

type Graph struct {
	Edges []Edge `json:"edges"`
}

type Edge struct {
	Source    string    `json:"source"`
	Target    string    `json:"target"`
	Amount    float64   `json:"amount"`
	Timestamp time.Time `json:"timestamp"`
}

type Summary struct {
	TotalAccountsAnalyzed     int     `json:"total_accounts_analyzed"`
	SuspiciousAccountsFlagged int     `json:"suspicious_accounts_flagged"`
	FraudRingsDetected        int     `json:"fraud_rings_detected"`
	ProcessingTimeSeconds     float64 `json:"processing_time_seconds"`
}

// FromAnalysis converts an analysis into its wire form. Slices are never
// nil so clients always see arrays. Timestamps are rendered in UTC.
func FromAnalysis(a domain.Analysis) Document {
	doc := Document{
		RunID:              a.RunID,
		GeneratedAt:        a.StartedAt.UTC(),
		SuspiciousAccounts: make([]SuspiciousAccount, 0, len(a.SuspiciousAccounts)),
		FraudRings:         make([]FraudRing, 0, len(a.Rings)),
		Graph:              Graph{Edges: make([]Edge, 0, len(a.Edges))},
		Summary: Summary{
			TotalAccountsAnalyzed:     a.Summary.TotalAccountsAnalyzed,
			SuspiciousAccountsFlagged: a.Summary.SuspiciousAccountsFlagged,
			FraudRingsDetected:        a.Summary.FraudRingsDetected,
			ProcessingTimeSeconds:     round2(a.Summary.ProcessingTimeSeconds),
		},
	}
	for _, r := range a.SuspiciousAccounts {
		patterns := r.DetectedPatterns
		if patterns == nil {
			patterns = []string{}
		}
		doc.SuspiciousAccounts = append(doc.SuspiciousAccounts, SuspiciousAccount{
			AccountID:        r.AccountID,
			SuspicionScore:   round2(r.SuspicionScore),
			DetectedPatterns: patterns,
			RingID:           r.RingID,
		})
	}
	for _, r := range a.Rings {
		doc.FraudRings = append(doc.FraudRings, FraudRing{
			RingID:         r.ID,
			MemberAccounts: append([]string{}, r.Members...),
			PatternType:    string(r.PatternType),
			RiskScore:      round2(r.RiskScore),
		})
	}
	for _, e := range a.Edges {
		doc.Graph.Edges = append(doc.Graph.Edges, Edge{
			Source:    e.Source,
			Target:    e.Target,
			Amount:    e.Amount,
			Timestamp: e.Timestamp.UTC(),
		})
	}
	return doc
}

// Encode writes doc as JSON. indent is applied when non-empty.
func Encode(w io.Writer, doc Document, indent string) error {
	enc := json.NewEncoder(w)
	if indent != "" {
		enc.SetIndent("", indent)
	}
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}

// Marshal returns the compact JSON form of doc.
func Marshal(doc Document) ([]byte, error) {
	return json.Marshal(doc)
}

// Decode reads a document previously written by Encode.
func Decode(r io.Reader) (Document, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return Document{}, fmt.Errorf("decode report: %w", err)
	}
	return doc, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
