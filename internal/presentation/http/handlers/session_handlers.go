package handlers

import (
	"net/http"

	"github.com/AtRiskMedia/formrelay-go/internal/application/services"
	"github.com/AtRiskMedia/formrelay-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/formrelay-go/internal/infrastructure/persistence/partition"
	"github.com/gin-gonic/gin"
)

// SessionHandlers serves the observer console's session and partition views.
type SessionHandlers struct {
	sessionService *services.SessionService
	store          *partition.Store
	logger         *logging.ChanneledLogger
}

// NewSessionHandlers creates new session handlers. store may be nil when
// the backing store is degraded.
func NewSessionHandlers(sessionService *services.SessionService, store *partition.Store, logger *logging.ChanneledLogger) *SessionHandlers {
	return &SessionHandlers{
		sessionService: sessionService,
		store:          store,
		logger:         logger,
	}
}

// GetSessions handles GET /api/v1/sessions - a snapshot of all visitor
// sessions for a freshly connected or reconnecting console.
func (h *SessionHandlers) GetSessions(c *gin.Context) {
	sessions := h.sessionService.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

// GetRecords handles GET /api/v1/records/:identity - all partition records
// for one visitor, payloads deserialized.
func (h *SessionHandlers) GetRecords(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "backing store unavailable"})
		return
	}

	identity := c.Param("identity")
	records, err := h.store.ListRecords(identity)
	if err != nil {
		h.logger.Database().Error("Partition record listing failed", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list records"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"identity": identity,
		"records":  records,
		"count":    len(records),
	})
}
