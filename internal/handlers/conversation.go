package handlers

import (
	"context"
	"errors"
	"net/http"

	"chatforms-backend/internal/ai"
	"chatforms-backend/internal/conversation"
	"chatforms-backend/internal/metrics"
	"chatforms-backend/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ConversationHandler walks a respondent through a form as a chat. Every
// route runs behind SessionAuth.
type ConversationHandler struct {
	formService *services.FormService
	flows       *conversation.Registry
	prompter    conversation.Prompter
	responses   *ResponseHandler
	metrics     *metrics.Metrics
	log         *zap.Logger
}

func NewConversationHandler(
	formService *services.FormService,
	flows *conversation.Registry,
	prompter conversation.Prompter,
	responses *ResponseHandler,
	m *metrics.Metrics,
	log *zap.Logger,
) *ConversationHandler {
	return &ConversationHandler{
		formService: formService,
		flows:       flows,
		prompter:    prompter,
		responses:   responses,
		metrics:     m,
		log:         log,
	}
}

// State godoc
// @Summary      Conversation state
// @Description  Current step, the text shown for it so far and the answered exchanges
// @Tags         conversation
// @Produce      json
// @Param        id path string true "Response ID"
// @Param        X-Session-Token header string true "Session token"
// @Success      200 {object} conversation.State
// @Failure      401 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Router       /api/v1/responses/{id}/conversation [get]
func (h *ConversationHandler) State(c *gin.Context) {
	flow, ok := h.flow(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, flow.State())
}

// Stream godoc
// @Summary      Stream the current step
// @Description  Server-sent events with the generated text of the current step. Emits "delta" events, then one "done" event with the state, or an "error" event. Opening a new stream cancels the previous one.
// @Tags         conversation
// @Produce      text/event-stream
// @Param        id path string true "Response ID"
// @Param        session_token query string true "Session token"
// @Success      200 {string} string "event stream"
// @Failure      409 {object} ErrorResponse
// @Failure      429 {object} ErrorResponse
// @Router       /api/v1/responses/{id}/conversation/stream [get]
func (h *ConversationHandler) Stream(c *gin.Context) {
	flow, ok := h.flow(c)
	if !ok {
		return
	}
	if flow.Done() {
		respondError(c, h.log, conversation.ErrFinished)
		return
	}

	finished := h.metrics.StreamStarted()
	defer finished()

	deltas, errs := flow.Prompt(c.Request.Context(), h.prompter)
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	// The stream ends on its own when the client goes away: the request
	// context is the parent of the generation context.
	for delta := range deltas {
		c.SSEvent("delta", delta)
		c.Writer.Flush()
	}
	if err := <-errs; err != nil {
		c.SSEvent("error", ErrorResponse{Error: h.streamError(err)})
	} else {
		c.SSEvent("done", flow.State())
	}
	c.Writer.Flush()
}

// Next godoc
// @Summary      Leave the intro or outro
// @Description  Moves past the intro to the first question. Leaving the outro submits the collected answers.
// @Tags         conversation
// @Produce      json
// @Param        id path string true "Response ID"
// @Param        X-Session-Token header string true "Session token"
// @Success      200 {object} conversation.Step
// @Failure      409 {object} ErrorResponse
// @Router       /api/v1/responses/{id}/conversation/next [post]
func (h *ConversationHandler) Next(c *gin.Context) {
	flow, ok := h.flow(c)
	if !ok {
		return
	}

	step, err := flow.Advance()
	// A done flow still in the registry means an earlier submit failed.
	if err != nil && !errors.Is(err, conversation.ErrFinished) {
		respondError(c, h.log, err)
		return
	}
	if step.Kind == conversation.StepDone {
		h.responses.submit(c, currentResponse(c), flow.Answers())
		return
	}
	c.JSON(http.StatusOK, step)
}

// Answer godoc
// @Summary      Answer the current question
// @Tags         conversation
// @Accept       json
// @Produce      json
// @Param        id path string true "Response ID"
// @Param        X-Session-Token header string true "Session token"
// @Param        request body conversation.AnswerInput true "Answer"
// @Success      200 {object} conversation.Step
// @Failure      400 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Router       /api/v1/responses/{id}/conversation/answer [post]
func (h *ConversationHandler) Answer(c *gin.Context) {
	var in conversation.AnswerInput
	if !bind(c, &in) {
		return
	}

	flow, ok := h.flow(c)
	if !ok {
		return
	}

	step, err := flow.Answer(in)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, step)
}

// flow returns the live flow of the authenticated response, starting one from
// the published form on first use.
func (h *ConversationHandler) flow(c *gin.Context) (*conversation.Flow, bool) {
	response := currentResponse(c)
	if response.IsComplete {
		respondError(c, h.log, conversation.ErrFinished)
		return nil, false
	}
	if f, ok := h.flows.Get(response.ID); ok {
		return f, true
	}

	form, err := h.formService.GetPublicFormByID(c.Request.Context(), response.FormID)
	if err != nil {
		respondError(c, h.log, err)
		return nil, false
	}
	return h.flows.GetOrStart(response.ID, form), true
}

func (h *ConversationHandler) streamError(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return "stream cancelled"
	case errors.Is(err, ai.ErrNotConfigured), errors.Is(err, conversation.ErrFinished):
		return err.Error()
	}
	h.log.Warn("conversation stream failed", zap.Error(err))
	return "generation failed"
}
