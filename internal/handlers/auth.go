package handlers

import (
	"net/http"

	"chatforms-backend/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AuthHandler struct {
	userService *services.UserService
	log         *zap.Logger
}

func NewAuthHandler(userService *services.UserService, log *zap.Logger) *AuthHandler {
	return &AuthHandler{userService: userService, log: log}
}

// Me godoc
// @Summary      Current user
// @Description  Returns the user row for the identity in the Bearer token
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} models.User
// @Failure      401 {object} ErrorResponse
// @Router       /api/v1/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.userService.GetByIdentityID(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, user)
}
