package middleware

import (
	"net/http"
	"strings"

	"chatforms-backend/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	// UserIDKey holds the identity provider's id for the authenticated creator.
	UserIDKey = "user_id"
	// ResponseKey holds the *models.Response a session token unlocked.
	ResponseKey = "response"

	SessionTokenHeader = "X-Session-Token"
)

// JWTAuth verifies the identity provider's Bearer token and makes sure a user
// row exists for it.
func JWTAuth(authService *services.AuthService, users *services.UserService, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization header required"})
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header format"})
			return
		}

		identity, err := authService.ValidateToken(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		if _, _, err := users.CreateUserIfNotExists(c.Request.Context(), identity.ID, identity.Email, identity.Name); err != nil {
			log.Error("failed to ensure user", zap.String("identity_id", identity.ID), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to load user"})
			return
		}

		c.Set(UserIDKey, identity.ID)
		c.Next()
	}
}

// SessionAuth checks the respondent's session token against the response in
// the :id path parameter.
func SessionAuth(responses *services.ResponseService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader(SessionTokenHeader)
		if token == "" {
			token = c.Query("session_token")
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session token required"})
			return
		}

		response, err := responses.AuthenticateSession(c.Request.Context(), c.Param("id"), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid session token"})
			return
		}

		c.Set(ResponseKey, response)
		c.Next()
	}
}
