package models

import "time"

const (
	OutcomeSynced = "synced"
	OutcomeFailed = "failed"
)

// JournalEntry records one submitted mutation and what the remote store
// made of it. Failed entries are the optimistic changes the store may
// never have seen.
type JournalEntry struct {
	ID        int64     `json:"id"`
	TicketID  string    `json:"ticketId"`
	Action    string    `json:"action"`
	EmailType EmailType `json:"emailType,omitempty"`
	Outcome   string    `json:"outcome"`
	Endpoint  string    `json:"endpoint,omitempty"`
	Error     string    `json:"error,omitempty"`
	Payload   string    `json:"payload,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
