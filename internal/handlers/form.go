package handlers

import (
	"net/http"

	"chatforms-backend/internal/metrics"
	"chatforms-backend/internal/models"
	"chatforms-backend/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

type FormHandler struct {
	formService     *services.FormService
	responseService *services.ResponseService
	metrics         *metrics.Metrics
	log             *zap.Logger
}

func NewFormHandler(formService *services.FormService, responseService *services.ResponseService, m *metrics.Metrics, log *zap.Logger) *FormHandler {
	return &FormHandler{formService: formService, responseService: responseService, metrics: m, log: log}
}

type QuestionInput struct {
	QuestionText string              `json:"question_text" binding:"required" example:"What is your name?"`
	QuestionType models.QuestionType `json:"question_type" binding:"required" example:"text"`
	Required     bool                `json:"required"`
	Options      []models.Option     `json:"options"`
}

type CreateFormRequest struct {
	Title           string          `json:"title" binding:"required,min=1,max=255" example:"Customer feedback"`
	Description     string          `json:"description"`
	IsPublished     bool            `json:"is_published"`
	Font            string          `json:"font" example:"Arial"`
	BackgroundColor string          `json:"background_color" example:"#FFFFFF"`
	Questions       []QuestionInput `json:"questions"`
}

func (r CreateFormRequest) toForm() *models.Form {
	form := &models.Form{
		Title:           r.Title,
		Description:     r.Description,
		IsPublished:     r.IsPublished,
		Font:            r.Font,
		BackgroundColor: r.BackgroundColor,
	}
	for _, q := range r.Questions {
		form.Questions = append(form.Questions, models.Question{
			QuestionText: q.QuestionText,
			QuestionType: q.QuestionType,
			Required:     q.Required,
			Options:      datatypes.JSONSlice[models.Option](q.Options),
		})
	}
	return form
}

// ListForms godoc
// @Summary      List forms
// @Description  All forms of the authenticated user, most recently updated first
// @Tags         forms
// @Produce      json
// @Security     BearerAuth
// @Success      200 {array} Form
// @Failure      401 {object} ErrorResponse
// @Router       /api/v1/forms [get]
func (h *FormHandler) ListForms(c *gin.Context) {
	forms, err := h.formService.GetForms(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, forms)
}

// CreateForm godoc
// @Summary      Create a form
// @Description  Create a form with its questions in one request
// @Tags         forms
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body CreateFormRequest true "Form data"
// @Success      201 {object} Form
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Router       /api/v1/forms [post]
func (h *FormHandler) CreateForm(c *gin.Context) {
	var req CreateFormRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	form, err := h.formService.CreateForm(c.Request.Context(), currentUser(c), req.toForm())
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	h.metrics.FormSaved("create")
	c.JSON(http.StatusCreated, form)
}

// GetForm godoc
// @Summary      Get a form
// @Description  Form with its questions in order
// @Tags         forms
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Form ID"
// @Success      200 {object} Form
// @Failure      404 {object} ErrorResponse
// @Router       /api/v1/forms/{id} [get]
func (h *FormHandler) GetForm(c *gin.Context) {
	form, err := h.formService.GetFormByID(c.Request.Context(), currentUser(c), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, form)
}

// UpdateForm godoc
// @Summary      Update form settings
// @Description  Partial update of title, description, styling and publication
// @Tags         forms
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Form ID"
// @Param        request body services.FormPatch true "Fields to change"
// @Success      200 {object} Form
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Router       /api/v1/forms/{id} [put]
func (h *FormHandler) UpdateForm(c *gin.Context) {
	var patch services.FormPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	form, err := h.formService.UpdateForm(c.Request.Context(), currentUser(c), c.Param("id"), patch)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	h.metrics.FormSaved("patch")
	c.JSON(http.StatusOK, form)
}

// DeleteForm godoc
// @Summary      Delete a form
// @Description  Deletes the form with its questions and collected responses
// @Tags         forms
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Form ID"
// @Success      200 {object} MessageResponse
// @Failure      404 {object} ErrorResponse
// @Router       /api/v1/forms/{id} [delete]
func (h *FormHandler) DeleteForm(c *gin.Context) {
	if err := h.formService.DeleteForm(c.Request.Context(), currentUser(c), c.Param("id")); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "form deleted"})
}

// ListResponses godoc
// @Summary      Form responses
// @Description  Responses collected for the form with their answers
// @Tags         forms
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Form ID"
// @Success      200 {array} Response
// @Failure      404 {object} ErrorResponse
// @Router       /api/v1/forms/{id}/responses [get]
func (h *FormHandler) ListResponses(c *gin.Context) {
	responses, err := h.responseService.GetResponses(c.Request.Context(), currentUser(c), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, responses)
}

// GetStats godoc
// @Summary      Form statistics
// @Description  Daily views, responses and completion for the form
// @Tags         forms
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Form ID"
// @Success      200 {object} services.FormStats
// @Failure      404 {object} ErrorResponse
// @Router       /api/v1/forms/{id}/stats [get]
func (h *FormHandler) GetStats(c *gin.Context) {
	stats, err := h.responseService.GetStats(c.Request.Context(), currentUser(c), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
