package domain

import "time"

// Transition records one phase change.
type Transition struct {
	OperationID OperationID `json:"operationId"`
	From        Phase       `json:"from"`
	To          Phase       `json:"to"`
	Cause       string      `json:"cause"`
	Error       *ErrorInfo  `json:"error,omitempty"`
	At          time.Time   `json:"at"`
}

// JournalEntry is a transition as stored in the diagnostics journal.
type JournalEntry struct {
	ID         string `json:"id"`
	InstanceID string `json:"instanceId"`
	Transition
}
