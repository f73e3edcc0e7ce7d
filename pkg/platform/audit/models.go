// Package audit records profile decisions as an append-only event trail.
package audit

import (
	"context"
	"time"
)

// AuditEvent names what happened.
type AuditEvent string

const (
	EventProfileAccepted AuditEvent = "profile_accepted"
	EventProfileRejected AuditEvent = "profile_rejected"
)

// Event is emitted after every reconciliation decision. It is transport
// agnostic so stores can fan out to Kafka, Postgres or memory.
type Event struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	// Subject is the affected profile id; empty for rejected onboardings.
	Subject   string `json:"subject,omitempty"`
	Mode      string `json:"mode"`
	Decision  string `json:"decision"`
	Reason    string `json:"reason,omitempty"`
	Detail    string `json:"detail,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	ClientIP  string `json:"client_ip,omitempty"`
}

// Store persists events.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Lister is implemented by stores that can be queried back.
type Lister interface {
	ListBySubject(ctx context.Context, subject string) ([]Event, error)
}
