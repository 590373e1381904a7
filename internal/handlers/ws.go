package handlers

import (
	"net/http"
	"strings"

	"chatforms-backend/internal/services"
	"chatforms-backend/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type WSHandler struct {
	hub         *ws.Hub
	authService *services.AuthService
	formService *services.FormService
	log         *zap.Logger
}

func NewWSHandler(hub *ws.Hub, authService *services.AuthService, formService *services.FormService, log *zap.Logger) *WSHandler {
	return &WSHandler{hub: hub, authService: authService, formService: formService, log: log}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// HandleWebSocket godoc
// @Summary      Live response events for a form
// @Description  Owner-only websocket that receives response_started and response_submitted events. Browsers cannot set headers on the upgrade, so the token may be passed as a query parameter.
// @Tags         websocket
// @Param        id path string true "Form ID"
// @Param        token query string false "Bearer token"
// @Router       /ws/forms/{id} [get]
func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	}
	identity, err := h.authService.ValidateToken(token)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	formID := c.Param("id")
	if _, err := h.formService.GetFormByID(c.Request.Context(), identity.ID, formID); err != nil {
		respondError(c, h.log, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	h.hub.AddConnection(formID, conn)
	defer h.hub.RemoveConnection(formID, conn)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}
