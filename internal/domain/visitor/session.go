// Package visitor provides domain entities for visitor session tracking.
// A visitor session correlates one form-filling client with its channel,
// its partition, and its pending approval gates.
package visitor

import "time"

// DefaultPage is the step a freshly created session starts on.
const DefaultPage = "start"

// Session represents one visitor identity observed by the relay.
// Sessions are created on first channel open and are never deleted,
// only marked inactive when the channel closes.
type Session struct {
	Identity     string    `json:"identity"`
	CurrentPage  string    `json:"currentPage"`
	CurrentStep  int       `json:"currentStep"`
	ChannelID    string    `json:"channelId"`
	Active       bool      `json:"active"`
	FirstSeen    time.Time `json:"firstSeen"`
	LastActivity time.Time `json:"lastActivity"`
}

// NewSession creates a session for an identity on its first contact.
func NewSession(identity, channelID string) *Session {
	now := time.Now().UTC()
	return &Session{
		Identity:     identity,
		CurrentPage:  DefaultPage,
		ChannelID:    channelID,
		Active:       true,
		FirstSeen:    now,
		LastActivity: now,
	}
}

// Touch updates the session's last-activity timestamp.
func (s *Session) Touch() {
	s.LastActivity = time.Now().UTC()
}
