package domain

import "time"

// SuspicionRecord is the per-account output of the scorer.
type SuspicionRecord struct {
	AccountID        AccountID
	SuspicionScore   float64
	DetectedPatterns []string
	RingID           string
}

// Summary carries the run counters reported alongside the findings.
type Summary struct {
	TotalAccountsAnalyzed     int
	SuspiciousAccountsFlagged int
	FraudRingsDetected        int
	ProcessingTimeSeconds     float64
}

// Analysis is the complete outcome of one analysis run.
type Analysis struct {
	RunID              string
	StartedAt          time.Time
	SuspiciousAccounts []SuspicionRecord
	Rings              []Ring
	Edges              []GraphEdge
	Summary            Summary
}
