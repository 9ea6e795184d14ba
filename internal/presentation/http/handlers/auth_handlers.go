package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/AtRiskMedia/formrelay-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/formrelay-go/internal/infrastructure/security"
	"github.com/AtRiskMedia/formrelay-go/pkg/config"
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

// AuthHandlers handles observer console authentication.
type AuthHandlers struct {
	logger *logging.ChanneledLogger
}

// NewAuthHandlers creates new auth handlers
func NewAuthHandlers(logger *logging.ChanneledLogger) *AuthHandlers {
	return &AuthHandlers{logger: logger}
}

// passwordRequired reports whether an observer password is configured.
func passwordRequired() bool {
	return config.ObserverPassword != "" || config.ObserverPasswordHash != ""
}

func checkPassword(password string) bool {
	if config.ObserverPasswordHash != "" {
		return bcrypt.CompareHashAndPassword([]byte(config.ObserverPasswordHash), []byte(password)) == nil
	}
	return password == config.ObserverPassword
}

// PostLogin handles POST /api/v1/auth/login for observer consoles.
func (h *AuthHandlers) PostLogin(c *gin.Context) {
	var request struct {
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	if !passwordRequired() {
		c.JSON(http.StatusOK, gin.H{"success": true, "token": "no-auth-required"})
		return
	}

	if !checkPassword(request.Password) {
		h.logger.Auth().Warn("Observer login rejected")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid password"})
		return
	}

	token, err := security.GenerateObserverToken(config.JWTSecret, time.Duration(config.ObserverTokenHours)*time.Hour)
	if err != nil {
		h.logger.Auth().Error("Observer token generation failed", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token generation failed"})
		return
	}

	h.logger.Auth().Info("Observer login accepted")
	c.JSON(http.StatusOK, gin.H{"success": true, "token": token})
}

// ObserverAuthMiddleware guards observer-facing endpoints. When no password
// is configured the relay runs open, matching local development use.
func (h *AuthHandlers) ObserverAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !passwordRequired() {
			c.Next()
			return
		}

		token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if token == "" {
			token = c.Query("token") // fallback for websocket upgrades
		}

		claims, err := security.ValidateJWT(token, config.JWTSecret)
		if err != nil || !security.IsObserverToken(claims) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "observer authentication required"})
			c.Abort()
			return
		}

		c.Next()
	}
}
