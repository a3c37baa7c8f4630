package domain

import "time"

// IdentityConfirmedEvent represents the payload for roster.identity.confirmed messages.
type IdentityConfirmedEvent struct {
	EventID     string
	IdentityID  string
	Email       string
	ConfirmedAt time.Time
	Metadata    map[string]any
}

// CheckoutSessionCreatedEvent represents the payload for roster.checkout.created messages.
type CheckoutSessionCreatedEvent struct {
	EventID     string
	SessionID   string
	RequesterID string
	Mode        IntentMode
	TeamID      string
	Slug        string
	Trial       bool
	CreatedAt   time.Time
	Metadata    map[string]any
}

// TeamProvisionedEvent represents the payload for roster.team.provisioned messages.
// Emitted both when a new team is materialized and when an existing team's
// subscription is renewed; Mode tells them apart.
type TeamProvisionedEvent struct {
	EventID       string
	TeamID        string
	Slug          string
	SessionID     string
	Mode          IntentMode
	ProvisionedAt time.Time
	Metadata      map[string]any
}

// ProvisioningConflictEvent represents the payload for roster.provisioning.conflict
// messages, raised when a checkout loses the slug race at materialization time.
type ProvisioningConflictEvent struct {
	EventID    string
	SessionID  string
	Slug       string
	Reason     string
	OccurredAt time.Time
	Metadata   map[string]any
}
