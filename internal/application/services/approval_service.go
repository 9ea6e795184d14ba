package services

import (
	"fmt"
	"sync"
	"time"

	"github.com/AtRiskMedia/formrelay-go/internal/domain/approval"
	"github.com/AtRiskMedia/formrelay-go/internal/domain/entry"
	"github.com/AtRiskMedia/formrelay-go/internal/domain/events"
	"github.com/AtRiskMedia/formrelay-go/internal/infrastructure/email"
	"github.com/AtRiskMedia/formrelay-go/internal/infrastructure/messaging"
	"github.com/AtRiskMedia/formrelay-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/formrelay-go/internal/infrastructure/security"
)

// ApprovalService manages the pending/approved/rejected/expired lifecycle
// of payment, one-time-code, and PIN checkpoints. Every request owns an
// independent countdown timer; timers are cancelled on early decision and
// a terminal transition happens at most once per request.
type ApprovalService struct {
	mu       sync.Mutex
	requests map[string]*approval.Request
	order    []*approval.Request
	timers   map[string]*time.Timer

	entries       *EntryService
	sessions      *SessionService
	broadcaster   messaging.Broadcaster
	timeout       time.Duration
	notifier      email.Service // nil when notification email is not configured
	notifyTo      string
	observerCount func() int // nil means unknown, treated as zero
	logger        *logging.ChanneledLogger
}

// NewApprovalService creates the gate manager. notifier may be nil.
func NewApprovalService(entries *EntryService, sessions *SessionService, broadcaster messaging.Broadcaster, timeout time.Duration, notifier email.Service, notifyTo string, logger *logging.ChanneledLogger) *ApprovalService {
	return &ApprovalService{
		requests:    make(map[string]*approval.Request),
		timers:      make(map[string]*time.Timer),
		entries:     entries,
		sessions:    sessions,
		broadcaster: broadcaster,
		timeout:     timeout,
		notifier:    notifier,
		notifyTo:    notifyTo,
		logger:      logger,
	}
}

// CreateCheckpoint opens a new pending approval gate for a sensitive step.
// The request is broadcast to observers exactly like a normal entry so
// they can render a decision UI, and its countdown starts immediately.
func (s *ApprovalService) CreateCheckpoint(identity string, kind approval.Kind, data approval.Data, page string, step int) (*approval.Request, error) {
	if identity == "" {
		s.logger.Approval().Warn("Checkpoint dropped: empty identity", "kind", kind)
		return nil, fmt.Errorf("identity is required: %w", entry.ErrValidation)
	}

	req := approval.NewRequest(security.GenerateULID(), kind, identity, data)

	payload := map[string]any{
		"requestId": req.ID,
		"kind":      string(kind),
		"status":    string(approval.StatusPending),
	}
	if data.MaskedCard != "" {
		payload["maskedCard"] = data.MaskedCard
	}
	if data.Phone != "" {
		payload["phone"] = data.Phone
	}
	if data.Amount != 0 {
		payload["amount"] = data.Amount
	}
	if data.Code != "" {
		payload["code"] = data.Code
	}

	// Persist and broadcast through the same pipeline as plain submissions.
	if _, err := s.entries.Submit(identity, "checkpoint."+string(kind), payload, page, step); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.requests[req.ID] = req
	s.order = append(s.order, req)
	s.timers[req.ID] = time.AfterFunc(s.timeout, func() { s.expire(req.ID) })
	s.mu.Unlock()

	s.logger.Approval().Info("Approval request created", "requestId", req.ID, "kind", kind, "timeout", s.timeout)

	// The email is a fallback for an unattended console; a connected
	// observer already sees the broadcast.
	if s.notifier != nil && s.notifyTo != "" && s.connectedObservers() == 0 {
		go func() {
			if err := s.notifier.SendApprovalPendingEmail(s.notifyTo, string(kind), req.ID); err != nil {
				s.logger.Mail().Error("Approval notification email failed", "requestId", req.ID, "error", err.Error())
			}
		}()
	}

	return req, nil
}

// SetObserverCounter installs the live observer count used to decide
// whether a notification email is worth sending.
func (s *ApprovalService) SetObserverCounter(fn func() int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observerCount = fn
}

func (s *ApprovalService) connectedObservers() int {
	s.mu.Lock()
	fn := s.observerCount
	s.mu.Unlock()
	if fn == nil {
		return 0
	}
	return fn()
}

// Decide applies an observer's verdict to the newest pending request for
// (identity, kind). A decision with no matching pending request is ignored
// and logged as a conflict, returning approval.ErrUnknownRequest.
func (s *ApprovalService) Decide(identity string, kind approval.Kind, decision string) error {
	var status approval.Status
	switch decision {
	case "approve":
		status = approval.StatusApproved
	case "reject":
		status = approval.StatusRejected
	default:
		s.logger.Approval().Warn("Decision dropped: unknown verdict", "decision", decision, "kind", kind)
		return fmt.Errorf("decision must be approve or reject: %w", entry.ErrValidation)
	}

	s.mu.Lock()
	req := s.newestPendingLocked(identity, kind)
	if req == nil {
		s.mu.Unlock()
		s.logger.Approval().Warn("Decision conflict: no matching pending request", "kind", kind)
		return approval.ErrUnknownRequest
	}
	req.Decide(status)
	s.stopTimerLocked(req.ID)
	s.mu.Unlock()

	s.logger.Approval().Info("Approval request decided", "requestId", req.ID, "kind", kind, "status", status)
	s.deliverResult(req, "")
	return nil
}

// expire fires when a request's countdown elapses without a decision. An
// expiry after resolution is a no-op.
func (s *ApprovalService) expire(requestID string) {
	s.mu.Lock()
	req, ok := s.requests[requestID]
	if !ok || !req.Decide(approval.StatusExpired) {
		s.mu.Unlock()
		return
	}
	delete(s.timers, requestID)
	s.mu.Unlock()

	s.logger.Approval().Info("Approval request expired", "requestId", requestID, "kind", req.Kind)
	s.deliverResult(req, "approval timed out")
}

// deliverResult sends the decision back to the originating visitor channel
// only. Decisions are never broadcast to all; every recipient check is an
// identity-equality check.
func (s *ApprovalService) deliverResult(req *approval.Request, message string) {
	channelID, ok := s.sessions.ChannelFor(req.Identity)
	if !ok {
		// Channel already closed; the decision still stands and the
		// request data stays queryable.
		s.logger.Approval().Debug("Visitor channel gone, decision result undelivered", "requestId", req.ID)
		return
	}
	s.broadcaster.SendToChannel(channelID, events.EventDecisionResult, events.DecisionResultPayload{
		Kind:    string(req.Kind),
		Status:  string(req.Status),
		Message: message,
	})
}

// Get returns a copy of a request by id.
func (s *ApprovalService) Get(requestID string) (approval.Request, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[requestID]
	if !ok {
		return approval.Request{}, false
	}
	return *req, true
}

// PendingFor reports whether an identity has a pending request of a kind.
func (s *ApprovalService) PendingFor(identity string, kind approval.Kind) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.newestPendingLocked(identity, kind) != nil
}

func (s *ApprovalService) newestPendingLocked(identity string, kind approval.Kind) *approval.Request {
	for i := len(s.order) - 1; i >= 0; i-- {
		req := s.order[i]
		if req.Identity == identity && req.Kind == kind && req.Pending() {
			return req
		}
	}
	return nil
}

func (s *ApprovalService) stopTimerLocked(requestID string) {
	if timer, ok := s.timers[requestID]; ok {
		timer.Stop()
		delete(s.timers, requestID)
	}
}

// Shutdown stops all outstanding timers.
func (s *ApprovalService) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
}
