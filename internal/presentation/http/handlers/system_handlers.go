// Package handlers provides HTTP handlers for the presentation layer.
package handlers

import (
	"net/http"

	"github.com/AtRiskMedia/formrelay-go/internal/application/container"
	"github.com/AtRiskMedia/formrelay-go/internal/infrastructure/security"
	"github.com/gin-gonic/gin"
)

// SystemHandlers serves health, identity issuance, and network-origin echo.
type SystemHandlers struct {
	container *container.Container
}

// NewSystemHandlers creates new system handlers
func NewSystemHandlers(container *container.Container) *SystemHandlers {
	return &SystemHandlers{container: container}
}

// GetHealth handles GET /api/v1/health. Backing-store unavailability at
// startup degrades the surface rather than crash-looping.
func (h *SystemHandlers) GetHealth(c *gin.Context) {
	status := "ok"
	httpStatus := http.StatusOK
	response := gin.H{
		"observers": h.container.Hub.ObserverCount(),
		"entries":   h.container.EntryService.Len(),
	}

	if h.container.StoreDegraded {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
		response["detail"] = "backing store unavailable; entries are in-memory only"
	} else if h.container.DB != nil {
		response["database"] = h.container.DB.ConnectionInfo()
	}

	response["status"] = status
	c.JSON(httpStatus, response)
}

// GetClientIP handles GET /api/v1/client-ip. The observed network origin is
// auxiliary metadata only; identity comes from a client-held session token.
func (h *SystemHandlers) GetClientIP(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ip": c.ClientIP()})
}

// GetSessionToken handles GET /api/v1/session-token - issues a fresh
// visitor identity token for the client to hold across reconnects.
func (h *SystemHandlers) GetSessionToken(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"identity": security.GenerateIdentityToken()})
}
