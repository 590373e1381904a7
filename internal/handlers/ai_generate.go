package handlers

import (
	"net/http"

	"chatforms-backend/internal/builder"
	"chatforms-backend/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AIGenerateHandler struct {
	aiService *services.AIService
	drafts    *builder.DraftStore
	log       *zap.Logger
}

func NewAIGenerateHandler(aiService *services.AIService, drafts *builder.DraftStore, log *zap.Logger) *AIGenerateHandler {
	return &AIGenerateHandler{aiService: aiService, drafts: drafts, log: log}
}

type GenerateRequest struct {
	Prompt string `json:"prompt" binding:"required" example:"A short survey about remote work habits for a 20 person team"`
}

// CheckAI godoc
// @Summary      Check if AI generation is available
// @Tags         ai
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} map[string]interface{}
// @Router       /api/v1/forms/ai-status [get]
func (h *AIGenerateHandler) CheckAI(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"available": h.aiService.IsAvailable()})
}

// Generate godoc
// @Summary      Generate a form with AI
// @Description  Generates a form from a description of at least 20 characters and opens it as a new draft
// @Tags         ai
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body GenerateRequest true "Form description"
// @Success      201 {object} Draft
// @Failure      400 {object} ErrorResponse
// @Failure      429 {object} ErrorResponse
// @Failure      503 {object} ErrorResponse
// @Router       /api/v1/forms/generate [post]
func (h *AIGenerateHandler) Generate(c *gin.Context) {
	var req GenerateRequest
	if !bind(c, &req) {
		return
	}

	form, err := h.aiService.GenerateForm(c.Request.Context(), req.Prompt)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	draft := builder.FromGenerated(currentUser(c), form)
	c.JSON(http.StatusCreated, h.drafts.Put(draft))
}
