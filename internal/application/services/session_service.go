// Package services provides the application services behind the relay:
// session registry, ingestion pipeline, approval gates, bulk export, and
// partition housekeeping.
package services

import (
	"sort"
	"sync"

	"github.com/AtRiskMedia/formrelay-go/internal/domain/events"
	"github.com/AtRiskMedia/formrelay-go/internal/domain/visitor"
	"github.com/AtRiskMedia/formrelay-go/internal/infrastructure/messaging"
	"github.com/AtRiskMedia/formrelay-go/internal/infrastructure/observability/logging"
)

// SessionService is the single source of truth mapping open channels to
// visitor identities. It is an injected, lock-protected instance with an
// explicit lifecycle so tests can run multiple isolated registries.
type SessionService struct {
	mu       sync.RWMutex
	sessions map[string]*visitor.Session // identity -> session
	channels map[string]string           // channelID -> identity

	broadcaster messaging.Broadcaster
	logger      *logging.ChanneledLogger
}

// NewSessionService creates an empty registry.
func NewSessionService(broadcaster messaging.Broadcaster, logger *logging.ChanneledLogger) *SessionService {
	return &SessionService{
		sessions:    make(map[string]*visitor.Session),
		channels:    make(map[string]string),
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// Register binds a channel to an identity, creating the session on first
// contact, and announces the visitor to all observers. Repeated calls for
// the same channel and identity are no-ops.
func (s *SessionService) Register(channelID, identity string) {
	s.mu.Lock()
	if existing, ok := s.channels[channelID]; ok && existing == identity {
		s.mu.Unlock()
		return
	}
	s.channels[channelID] = identity

	session, ok := s.sessions[identity]
	if !ok {
		session = visitor.NewSession(identity, channelID)
		s.sessions[identity] = session
	} else {
		session.ChannelID = channelID
		session.Active = true
		session.Touch()
	}
	s.mu.Unlock()

	s.logger.WithIdentity(logging.ChannelChannelIO, identity).Info("Visitor registered", "channelId", channelID)
	s.broadcaster.BroadcastToObservers(events.EventVisitorConnected, events.VisitorNoticePayload{Identity: identity})
}

// Unregister marks the owning session inactive and removes the channel
// mapping. The session itself is kept so observers can still see the
// visitor's history, and pending approvals stay live. Idempotent.
func (s *SessionService) Unregister(channelID string) {
	s.mu.Lock()
	identity, ok := s.channels[channelID]
	if !ok {
		s.mu.Unlock()
		return
	}
	delete(s.channels, channelID)

	if session, exists := s.sessions[identity]; exists && session.ChannelID == channelID {
		session.Active = false
		session.Touch()
	}
	s.mu.Unlock()

	s.logger.WithIdentity(logging.ChannelChannelIO, identity).Info("Visitor unregistered", "channelId", channelID)
	s.broadcaster.BroadcastToObservers(events.EventVisitorDisconnected, events.VisitorNoticePayload{Identity: identity})
}

// Touch updates the last-activity timestamp for an identity's session.
func (s *SessionService) Touch(identity string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.sessions[identity]; ok {
		session.Touch()
	}
}

// SetLocation records a page change and announces it to observers.
func (s *SessionService) SetLocation(identity, page string, step int) {
	s.mu.Lock()
	session, ok := s.sessions[identity]
	if ok {
		session.CurrentPage = page
		session.CurrentStep = step
		session.Touch()
	}
	s.mu.Unlock()
	if !ok {
		s.logger.Channel().Warn("Page change for unknown session dropped", "page", page)
		return
	}

	s.broadcaster.BroadcastToObservers(events.EventLocationUpdated, events.LocationPayload{
		Identity: identity,
		Page:     page,
		Step:     step,
	})
}

// ChannelFor returns the channel currently bound to an identity.
func (s *SessionService) ChannelFor(identity string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[identity]
	if !ok || !session.Active {
		return "", false
	}
	return session.ChannelID, true
}

// Get returns a copy of the session for an identity.
func (s *SessionService) Get(identity string) (visitor.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[identity]
	if !ok {
		return visitor.Session{}, false
	}
	return *session, true
}

// Snapshot returns copies of all sessions, oldest first, for the observer
// console and the periodic snapshot broadcast.
func (s *SessionService) Snapshot() []visitor.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make([]visitor.Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		sessions = append(sessions, *session)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].FirstSeen.Before(sessions[j].FirstSeen)
	})
	return sessions
}
