package services

import (
	"fmt"
	"sync"
	"time"

	"github.com/AtRiskMedia/formrelay-go/internal/domain/entry"
	"github.com/AtRiskMedia/formrelay-go/internal/domain/events"
	"github.com/AtRiskMedia/formrelay-go/internal/infrastructure/messaging"
	"github.com/AtRiskMedia/formrelay-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/formrelay-go/internal/infrastructure/persistence/partition"
	"github.com/AtRiskMedia/formrelay-go/internal/infrastructure/security"
)

// topicEventNames is the static topic -> event-name table for the known
// journey steps. Topics outside the table still broadcast; their event name
// is derived the same way.
var topicEventNames = map[string]string{
	"landing":            "landing.created",
	"car-details":        "car-details.created",
	"personal-details":   "personal-details.created",
	"contact-details":    "contact-details.created",
	"payment":            "payment.created",
	"checkpoint.payment": "checkpoint.payment.created",
	"checkpoint.otp":     "checkpoint.otp.created",
	"checkpoint.pin":     "checkpoint.pin.created",
	"confirmation":       "confirmation.created",
}

// EventNameForTopic resolves the topic-scoped broadcast name for a topic.
func EventNameForTopic(topic string) string {
	if name, ok := topicEventNames[topic]; ok {
		return name
	}
	return topic + ".created"
}

// EntryService is the single ingestion point of the pipeline: it validates
// a step submission, normalizes it into an Entry, appends it to the shared
// log and the visitor's partition, and fans it out to all observers.
type EntryService struct {
	mu  sync.Mutex
	log []*entry.Entry

	sessions    *SessionService
	store       *partition.Store // nil when the backing store is degraded
	broadcaster messaging.Broadcaster
	logger      *logging.ChanneledLogger
}

// NewEntryService creates the pipeline. store may be nil; partition writes
// are then skipped with a logged warning and the in-memory log still works.
func NewEntryService(sessions *SessionService, store *partition.Store, broadcaster messaging.Broadcaster, logger *logging.ChanneledLogger) *EntryService {
	return &EntryService{
		sessions:    sessions,
		store:       store,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// Submit accepts one step submission. Malformed submissions return
// entry.ErrValidation and are dropped with a logged warning; they never
// crash the pipeline or reach observers.
func (s *EntryService) Submit(identity, topic string, payload map[string]any, page string, step int) (*entry.Entry, error) {
	if topic == "" {
		s.logger.Pipeline().Warn("Submission dropped: empty topic")
		return nil, fmt.Errorf("topic is required: %w", entry.ErrValidation)
	}
	if identity == "" {
		s.logger.Pipeline().Warn("Submission dropped: empty identity", "topic", topic)
		return nil, fmt.Errorf("identity is required: %w", entry.ErrValidation)
	}
	if payload == nil {
		s.logger.Pipeline().Warn("Submission dropped: missing payload", "topic", topic)
		return nil, fmt.Errorf("payload is required: %w", entry.ErrValidation)
	}

	e := &entry.Entry{
		ID:          security.GenerateULID(),
		Identity:    identity,
		Topic:       topic,
		Payload:     payload,
		Page:        page,
		StepNumber:  step,
		SubmittedAt: time.Now().UTC(),
	}

	// Append and broadcast under the ingestion lock so observers see
	// entries in acceptance order.
	s.mu.Lock()
	s.log = append(s.log, e)
	s.broadcaster.BroadcastToObservers(EventNameForTopic(topic), e)
	s.broadcaster.BroadcastToObservers(events.EventEntryCreated, e)
	s.mu.Unlock()

	s.sessions.Touch(identity)
	s.persist(e)

	s.logger.Pipeline().Debug("Entry accepted", "topic", topic, "entryId", e.ID)
	return e, nil
}

// persist appends to the visitor's partition, best-effort. The relational
// log is an optional record; its failures never disturb the live pipeline.
func (s *EntryService) persist(e *entry.Entry) {
	if s.store == nil {
		s.logger.Pipeline().Warn("Partition store unavailable, entry not persisted", "entryId", e.ID)
		return
	}

	rec := &entry.PartitionRecord{
		ID:         e.ID,
		Identity:   e.Identity,
		DataType:   e.Topic,
		Payload:    e.Payload,
		Page:       e.Page,
		StepNumber: e.StepNumber,
		CreatedAt:  e.SubmittedAt,
	}
	if err := s.store.AppendRecord(e.Identity, rec); err != nil {
		s.logger.Pipeline().Error("Partition append failed", "entryId", e.ID, "error", err.Error())
	}
}

// Query returns entries newest-first, filtered by exact topic match and an
// inclusive since timestamp, up to limit. The same log serves the live
// broadcast path, so the two can never drift apart.
func (s *EntryService) Query(topic string, since *time.Time, limit int) []*entry.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	results := make([]*entry.Entry, 0, limit)
	for i := len(s.log) - 1; i >= 0 && len(results) < limit; i-- {
		e := s.log[i]
		if topic != "" && e.Topic != topic {
			continue
		}
		if since != nil && e.SubmittedAt.Before(*since) {
			continue
		}
		results = append(results, e)
	}
	return results
}

// Len reports the current size of the entry log.
func (s *EntryService) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.log)
}
