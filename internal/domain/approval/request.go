// Package approval provides the approval gate domain model. Sensitive
// steps (payment, one-time-code, PIN) block the submitting visitor until
// a human observer approves or rejects them, or a countdown expires.
package approval

import (
	"errors"
	"time"
)

// Kind identifies which checkpoint a request guards.
type Kind string

const (
	KindPayment Kind = "payment"
	KindOTP     Kind = "otp"
	KindPIN     Kind = "pin"
)

// Status is the lifecycle state of an approval request.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	// StatusExpired is terminal; the visitor flow treats it as a rejection
	// and loops back to re-entry of the step.
	StatusExpired Status = "expired"
)

var (
	// ErrUnknownRequest means a decision arrived with no matching pending
	// request (already decided, or identity mismatch). Ignored and logged.
	ErrUnknownRequest = errors.New("no matching pending approval request")
	// ErrInvalidKind marks a checkpoint or decision with an unrecognized kind.
	ErrInvalidKind = errors.New("invalid approval kind")
)

// ParseKind validates a wire-level kind string.
func ParseKind(raw string) (Kind, error) {
	switch Kind(raw) {
	case KindPayment, KindOTP, KindPIN:
		return Kind(raw), nil
	}
	return "", ErrInvalidKind
}

// Data carries the decision-relevant fields an observer sees when
// rendering the approval UI. Fields are populated per kind.
type Data struct {
	MaskedCard string  `json:"maskedCard,omitempty"`
	Phone      string  `json:"phone,omitempty"`
	Amount     float64 `json:"amount,omitempty"`
	Code       string  `json:"code,omitempty"`
}

// Request is one approval gate instance. Requests are never reused; a
// fresh submission of the same checkpoint creates a fresh request.
type Request struct {
	ID        string     `json:"id"`
	Kind      Kind       `json:"kind"`
	Identity  string     `json:"identity"`
	Data      Data       `json:"data"`
	Status    Status     `json:"status"`
	CreatedAt time.Time  `json:"createdAt"`
	DecidedAt *time.Time `json:"decidedAt,omitempty"`
}

// NewRequest creates a pending request for an identity.
func NewRequest(id string, kind Kind, identity string, data Data) *Request {
	return &Request{
		ID:        id,
		Kind:      kind,
		Identity:  identity,
		Data:      data,
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
	}
}

// Pending reports whether the request still awaits a terminal transition.
func (r *Request) Pending() bool {
	return r.Status == StatusPending
}

// Decide applies a terminal transition. It returns false if the request
// has already been decided; at most one terminal transition ever occurs.
func (r *Request) Decide(status Status) bool {
	if !r.Pending() {
		return false
	}
	now := time.Now().UTC()
	r.Status = status
	r.DecidedAt = &now
	return true
}
