package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/AtRiskMedia/formrelay-go/internal/application/services"
	"github.com/AtRiskMedia/formrelay-go/internal/domain/entry"
	"github.com/AtRiskMedia/formrelay-go/internal/infrastructure/observability/logging"
	"github.com/gin-gonic/gin"
)

// EntryHandlers serves the bulk export and server-to-server submit surface.
type EntryHandlers struct {
	entryService  *services.EntryService
	exportService *services.ExportService
	logger        *logging.ChanneledLogger
}

// NewEntryHandlers creates new entry handlers
func NewEntryHandlers(entryService *services.EntryService, exportService *services.ExportService, logger *logging.ChanneledLogger) *EntryHandlers {
	return &EntryHandlers{
		entryService:  entryService,
		exportService: exportService,
		logger:        logger,
	}
}

// SubmitRequest is the POST /submit body, the HTTP equivalent of a visitor
// submit event for server-to-server integration.
type SubmitRequest struct {
	Identity string         `json:"identity" binding:"required"`
	Topic    string         `json:"topic" binding:"required"`
	Payload  map[string]any `json:"payload" binding:"required"`
	Page     string         `json:"page,omitempty"`
	Step     int            `json:"step,omitempty"`
}

// GetEntries handles GET /api/v1/entries?topic=&since=&limit= - filtered
// bulk export with the same semantics as the channel bulk request.
func (h *EntryHandlers) GetEntries(c *gin.Context) {
	topic := c.Query("topic")

	var since *time.Time
	if raw := c.Query("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "since must be RFC3339"})
			return
		}
		since = &parsed
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer"})
			return
		}
		limit = parsed
	}

	c.JSON(http.StatusOK, h.exportService.Query(topic, since, limit))
}

// PostSubmit handles POST /api/v1/submit.
func (h *EntryHandlers) PostSubmit(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "identity, topic, and payload are required"})
		return
	}

	e, err := h.entryService.Submit(req.Identity, req.Topic, req.Payload, req.Page, req.Step)
	if err != nil {
		if errors.Is(err, entry.ErrValidation) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Pipeline().Error("HTTP submit failed", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "submission failed"})
		return
	}

	c.JSON(http.StatusCreated, e)
}
