package handlers

import (
	"net/http"

	"chatforms-backend/internal/conversation"
	"chatforms-backend/internal/metrics"
	"chatforms-backend/internal/models"
	"chatforms-backend/internal/services"
	"chatforms-backend/internal/ws"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ResponseHandler serves respondents filling in a published form.
type ResponseHandler struct {
	formService     *services.FormService
	responseService *services.ResponseService
	flows           *conversation.Registry
	hub             *ws.Hub
	metrics         *metrics.Metrics
	log             *zap.Logger
}

func NewResponseHandler(
	formService *services.FormService,
	responseService *services.ResponseService,
	flows *conversation.Registry,
	hub *ws.Hub,
	m *metrics.Metrics,
	log *zap.Logger,
) *ResponseHandler {
	return &ResponseHandler{
		formService:     formService,
		responseService: responseService,
		flows:           flows,
		hub:             hub,
		metrics:         m,
		log:             log,
	}
}

type AnswerRequest struct {
	QuestionID     string  `json:"question_id" binding:"required"`
	AnswerText     *string `json:"answer_text"`
	AnswerOptionID *string `json:"answer_option_id"`
}

type SubmitRequest struct {
	Answers []AnswerRequest `json:"answers" binding:"dive"`
}

type InteractionRequest struct {
	QuestionID string `json:"question_id" binding:"required"`
	TimeSpent  int    `json:"time_spent" example:"12"`
}

func (r AnswerRequest) toAnswer() models.Answer {
	return models.Answer{QuestionID: r.QuestionID, AnswerText: r.AnswerText, AnswerOptionID: r.AnswerOptionID}
}

// GetPublicForm godoc
// @Summary      Get a published form
// @Description  Public view of a form without its owner
// @Tags         public
// @Produce      json
// @Param        id path string true "Form ID"
// @Success      200 {object} Form
// @Failure      404 {object} ErrorResponse
// @Router       /api/v1/public/forms/{id} [get]
func (h *ResponseHandler) GetPublicForm(c *gin.Context) {
	form, err := h.formService.GetPublicFormByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, form)
}

// StartResponse godoc
// @Summary      Start a response
// @Description  Opens a respondent session for a published form. The returned session token goes in the X-Session-Token header of later calls.
// @Tags         public
// @Produce      json
// @Param        id path string true "Form ID"
// @Success      201 {object} services.StartedResponse
// @Failure      404 {object} ErrorResponse
// @Router       /api/v1/public/forms/{id}/responses [post]
func (h *ResponseHandler) StartResponse(c *gin.Context) {
	started, err := h.responseService.InitializeResponse(c.Request.Context(), c.Param("id"), c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	h.hub.Broadcast(started.FormID, ws.Message{
		Type: ws.EventResponseStarted,
		Data: gin.H{"response_id": started.ResponseID},
	})
	c.JSON(http.StatusCreated, started)
}

// SaveAnswer godoc
// @Summary      Save one answer
// @Tags         responses
// @Accept       json
// @Produce      json
// @Param        id path string true "Response ID"
// @Param        X-Session-Token header string true "Session token"
// @Param        request body AnswerRequest true "Answer"
// @Success      201 {object} models.Answer
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Router       /api/v1/responses/{id}/answers [post]
func (h *ResponseHandler) SaveAnswer(c *gin.Context) {
	var req AnswerRequest
	if !bind(c, &req) {
		return
	}

	answer, err := h.responseService.SaveAnswer(c.Request.Context(), currentResponse(c).ID, req.toAnswer())
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, answer)
}

// Submit godoc
// @Summary      Submit a response
// @Description  Marks the response complete and stores its answers in one transaction
// @Tags         responses
// @Accept       json
// @Produce      json
// @Param        id path string true "Response ID"
// @Param        X-Session-Token header string true "Session token"
// @Param        request body SubmitRequest true "Answers"
// @Success      200 {object} Response
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Router       /api/v1/responses/{id}/submit [post]
func (h *ResponseHandler) Submit(c *gin.Context) {
	var req SubmitRequest
	if !bind(c, &req) {
		return
	}

	answers := make([]models.Answer, 0, len(req.Answers))
	for _, a := range req.Answers {
		answers = append(answers, a.toAnswer())
	}
	h.submit(c, currentResponse(c), answers)
}

// RecordInteraction godoc
// @Summary      Record time spent on a question
// @Tags         responses
// @Accept       json
// @Produce      json
// @Param        id path string true "Response ID"
// @Param        X-Session-Token header string true "Session token"
// @Param        request body InteractionRequest true "Interaction"
// @Success      201 {object} MessageResponse
// @Failure      400 {object} ErrorResponse
// @Router       /api/v1/responses/{id}/interactions [post]
func (h *ResponseHandler) RecordInteraction(c *gin.Context) {
	var req InteractionRequest
	if !bind(c, &req) {
		return
	}

	if err := h.responseService.RecordInteraction(c.Request.Context(), currentResponse(c).ID, req.QuestionID, req.TimeSpent); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, MessageResponse{Message: "interaction recorded"})
}

// submit is shared with the conversation flow, which submits once its last
// step is done.
func (h *ResponseHandler) submit(c *gin.Context, response *models.Response, answers []models.Answer) {
	submitted, err := h.responseService.SubmitResponses(c.Request.Context(), response.ID, answers)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	h.flows.Remove(response.ID)
	h.metrics.ResponseSubmitted()
	h.hub.Broadcast(response.FormID, ws.Message{
		Type: ws.EventResponseSubmitted,
		Data: gin.H{"response_id": response.ID, "answers": len(submitted.Answers)},
	})
	c.JSON(http.StatusOK, submitted)
}
