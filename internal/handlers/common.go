package handlers

import (
	"errors"
	"net/http"

	"chatforms-backend/internal/ai"
	"chatforms-backend/internal/builder"
	"chatforms-backend/internal/conversation"
	"chatforms-backend/internal/middleware"
	"chatforms-backend/internal/models"
	"chatforms-backend/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ErrorResponse struct {
	Error string `json:"error" example:"something went wrong"`
}

type MessageResponse struct {
	Message string `json:"message" example:"operation successful"`
}

// Type aliases so swag can resolve models in annotations.
type Form = models.Form
type Question = models.Question
type Response = models.Response
type Draft = builder.Draft

// respondError maps an error to its status. Anything not recognised is logged
// and reported as a generic 500.
func respondError(c *gin.Context, log *zap.Logger, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, services.ErrNotFound),
		errors.Is(err, builder.ErrDraftNotFound),
		errors.Is(err, builder.ErrQuestionNotFound),
		errors.Is(err, builder.ErrOptionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrValidation),
		errors.Is(err, builder.ErrEmptyTitle),
		errors.Is(err, builder.ErrIndexOutOfRange),
		errors.Is(err, builder.ErrInvalidType),
		errors.Is(err, builder.ErrNotChoice),
		errors.Is(err, builder.ErrUnknownDragType),
		errors.Is(err, conversation.ErrRequired),
		errors.Is(err, conversation.ErrInvalidOption):
		status = http.StatusBadRequest
	case errors.Is(err, conversation.ErrFinished),
		errors.Is(err, conversation.ErrNotAQuestion),
		errors.Is(err, conversation.ErrAwaitingAnswer):
		status = http.StatusConflict
	case errors.Is(err, ai.ErrNotConfigured):
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError {
		log.Error("request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
		c.JSON(status, ErrorResponse{Error: "internal server error"})
		return
	}
	c.JSON(status, ErrorResponse{Error: err.Error()})
}

func currentUser(c *gin.Context) string {
	return c.GetString(middleware.UserIDKey)
}

func currentResponse(c *gin.Context) *models.Response {
	return c.MustGet(middleware.ResponseKey).(*models.Response)
}
