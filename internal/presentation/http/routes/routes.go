// Package routes provides HTTP route configuration for the presentation layer.
package routes

import (
	"github.com/AtRiskMedia/formrelay-go/internal/application/container"
	"github.com/AtRiskMedia/formrelay-go/internal/presentation/http/handlers"
	"github.com/AtRiskMedia/formrelay-go/internal/presentation/http/middleware"
	"github.com/gin-gonic/gin"
)

// SetupRoutes configures all HTTP routes and middleware with dependency injection.
func SetupRoutes(container *container.Container) *gin.Engine {
	r := gin.Default()

	r.Use(middleware.CORSMiddleware())

	// Initialize handlers
	systemHandlers := handlers.NewSystemHandlers(container)
	entryHandlers := handlers.NewEntryHandlers(container.EntryService, container.ExportService, container.Logger)
	sessionHandlers := handlers.NewSessionHandlers(container.SessionService, container.Store, container.Logger)
	authHandlers := handlers.NewAuthHandlers(container.Logger)
	channelHandlers := handlers.NewChannelHandlers(container)

	api := r.Group("/api/v1")
	{
		api.GET("/health", systemHandlers.GetHealth)
		api.GET("/client-ip", systemHandlers.GetClientIP)
		api.GET("/session-token", systemHandlers.GetSessionToken)

		api.POST("/auth/login", authHandlers.PostLogin)

		api.GET("/entries", entryHandlers.GetEntries)
		api.POST("/submit", entryHandlers.PostSubmit)

		// Observer console endpoints
		observerAPI := api.Group("")
		observerAPI.Use(authHandlers.ObserverAuthMiddleware())
		{
			observerAPI.GET("/sessions", sessionHandlers.GetSessions)
			observerAPI.GET("/records/:identity", sessionHandlers.GetRecords)
		}
	}

	// Channel upgrade endpoints. The observer channel carries its token
	// as a query parameter because browsers cannot set headers on
	// websocket upgrades.
	r.GET("/ws/visitor", channelHandlers.VisitorChannel)
	r.GET("/ws/observer", authHandlers.ObserverAuthMiddleware(), channelHandlers.ObserverChannel)

	return r
}
