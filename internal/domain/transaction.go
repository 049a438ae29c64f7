package domain

import "time"

// AccountID identifies an account node. Values are opaque to the engine.
type AccountID = string

// Transaction models a single money movement between two accounts.
type Transaction struct {
	ID         string
	SenderID   AccountID
	ReceiverID AccountID
	Amount     float64
	Timestamp  time.Time
}

// GraphEdge is the simplified edge record handed to visualisation clients.
type GraphEdge struct {
	Source    AccountID
	Target    AccountID
	Amount    float64
	Timestamp time.Time
}
