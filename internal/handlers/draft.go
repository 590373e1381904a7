package handlers

import (
	"net/http"

	"chatforms-backend/internal/builder"
	"chatforms-backend/internal/metrics"
	"chatforms-backend/internal/models"
	"chatforms-backend/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// DraftHandler drives the form builder over HTTP. Each route applies one
// editor mutation to the stored draft and returns the whole draft.
type DraftHandler struct {
	drafts      *builder.DraftStore
	formService *services.FormService
	metrics     *metrics.Metrics
	log         *zap.Logger
}

func NewDraftHandler(drafts *builder.DraftStore, formService *services.FormService, m *metrics.Metrics, log *zap.Logger) *DraftHandler {
	return &DraftHandler{drafts: drafts, formService: formService, metrics: m, log: log}
}

type CreateDraftRequest struct {
	FormID string `json:"form_id" example:"4b1e0a6e-0c1f-4c1a-9d7e-2f1d7f0b9a11"`
}

type UpdateDraftRequest struct {
	Title           *string `json:"title" example:"Customer feedback"`
	Description     *string `json:"description"`
	Font            *string `json:"font" example:"Georgia"`
	BackgroundColor *string `json:"background_color" example:"#FAFAFA"`
}

type AddQuestionRequest struct {
	QuestionText string `json:"question_text" example:"How did you hear about us?"`
}

type UpdateQuestionRequest struct {
	QuestionText *string              `json:"question_text"`
	QuestionType *models.QuestionType `json:"question_type" example:"radio"`
	Required     *bool                `json:"required"`
}

type OptionRequest struct {
	Text string `json:"text" example:"A friend"`
}

type SaveDraftResponse struct {
	Form  *Form  `json:"form"`
	Draft *Draft `json:"draft"`
}

// CreateDraft godoc
// @Summary      Open a draft
// @Description  Start an empty draft, or open an existing form for editing when form_id is given
// @Tags         drafts
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body CreateDraftRequest false "Form to edit"
// @Success      201 {object} Draft
// @Failure      404 {object} ErrorResponse
// @Router       /api/v1/drafts [post]
func (h *DraftHandler) CreateDraft(c *gin.Context) {
	var req CreateDraftRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}
	}

	userID := currentUser(c)
	draft := builder.New(userID)
	if req.FormID != "" {
		form, err := h.formService.GetFormByID(c.Request.Context(), userID, req.FormID)
		if err != nil {
			respondError(c, h.log, err)
			return
		}
		draft = builder.FromForm(userID, form)
	}

	c.JSON(http.StatusCreated, h.drafts.Put(draft))
}

// GetDraft godoc
// @Summary      Get a draft
// @Tags         drafts
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Draft ID"
// @Success      200 {object} Draft
// @Failure      404 {object} ErrorResponse
// @Router       /api/v1/drafts/{id} [get]
func (h *DraftHandler) GetDraft(c *gin.Context) {
	draft, err := h.drafts.Get(c.Param("id"), currentUser(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, draft)
}

// UpdateDraft godoc
// @Summary      Update draft settings
// @Description  Change the title, description, font or background colour
// @Tags         drafts
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Draft ID"
// @Param        request body UpdateDraftRequest true "Fields to change"
// @Success      200 {object} Draft
// @Failure      404 {object} ErrorResponse
// @Router       /api/v1/drafts/{id} [put]
func (h *DraftHandler) UpdateDraft(c *gin.Context) {
	var req UpdateDraftRequest
	if !bind(c, &req) {
		return
	}
	h.mutate(c, func(d *builder.Draft) error {
		if req.Title != nil {
			d.SetName(*req.Title)
		}
		if req.Description != nil {
			d.SetDescription(*req.Description)
		}
		if req.Font != nil {
			d.SetFont(*req.Font)
		}
		if req.BackgroundColor != nil {
			d.SetBackgroundColor(*req.BackgroundColor)
		}
		return nil
	})
}

// DeleteDraft godoc
// @Summary      Discard a draft
// @Tags         drafts
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Draft ID"
// @Success      200 {object} MessageResponse
// @Failure      404 {object} ErrorResponse
// @Router       /api/v1/drafts/{id} [delete]
func (h *DraftHandler) DeleteDraft(c *gin.Context) {
	if err := h.drafts.Delete(c.Param("id"), currentUser(c)); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "draft discarded"})
}

// AddQuestion godoc
// @Summary      Add a question
// @Description  Appends a text question that is not required
// @Tags         drafts
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Draft ID"
// @Param        request body AddQuestionRequest false "Question text"
// @Success      201 {object} Draft
// @Failure      404 {object} ErrorResponse
// @Router       /api/v1/drafts/{id}/questions [post]
func (h *DraftHandler) AddQuestion(c *gin.Context) {
	var req AddQuestionRequest
	if c.Request.ContentLength != 0 && !bind(c, &req) {
		return
	}
	draft, err := h.drafts.Update(c.Param("id"), currentUser(c), func(d *builder.Draft) error {
		d.AddQuestion(req.QuestionText)
		return nil
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, draft)
}

// UpdateQuestion godoc
// @Summary      Edit a question
// @Description  Change text, type or required flag. Changing the type clears the options.
// @Tags         drafts
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Draft ID"
// @Param        qid path string true "Question ID"
// @Param        request body UpdateQuestionRequest true "Fields to change"
// @Success      200 {object} Draft
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Router       /api/v1/drafts/{id}/questions/{qid} [put]
func (h *DraftHandler) UpdateQuestion(c *gin.Context) {
	var req UpdateQuestionRequest
	if !bind(c, &req) {
		return
	}
	qid := c.Param("qid")
	h.mutate(c, func(d *builder.Draft) error {
		if req.QuestionText != nil {
			if err := d.UpdateQuestionText(qid, *req.QuestionText); err != nil {
				return err
			}
		}
		if req.QuestionType != nil {
			if err := d.UpdateQuestionType(qid, *req.QuestionType); err != nil {
				return err
			}
		}
		if req.Required != nil && questionRequired(d, qid) != *req.Required {
			return d.ToggleRequired(qid)
		}
		return nil
	})
}

// DeleteQuestion godoc
// @Summary      Delete a question
// @Tags         drafts
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Draft ID"
// @Param        qid path string true "Question ID"
// @Success      200 {object} Draft
// @Failure      404 {object} ErrorResponse
// @Router       /api/v1/drafts/{id}/questions/{qid} [delete]
func (h *DraftHandler) DeleteQuestion(c *gin.Context) {
	qid := c.Param("qid")
	h.mutate(c, func(d *builder.Draft) error {
		return d.DeleteQuestion(qid)
	})
}

// AddOption godoc
// @Summary      Add an option
// @Description  Only radio, checkbox and select questions take options
// @Tags         drafts
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Draft ID"
// @Param        qid path string true "Question ID"
// @Param        request body OptionRequest true "Option text"
// @Success      201 {object} Draft
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Router       /api/v1/drafts/{id}/questions/{qid}/options [post]
func (h *DraftHandler) AddOption(c *gin.Context) {
	var req OptionRequest
	if !bind(c, &req) {
		return
	}
	qid := c.Param("qid")
	draft, err := h.drafts.Update(c.Param("id"), currentUser(c), func(d *builder.Draft) error {
		_, err := d.AddOption(qid, req.Text)
		return err
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, draft)
}

// UpdateOption godoc
// @Summary      Edit an option
// @Tags         drafts
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Draft ID"
// @Param        qid path string true "Question ID"
// @Param        oid path string true "Option ID"
// @Param        request body OptionRequest true "Option text"
// @Success      200 {object} Draft
// @Failure      404 {object} ErrorResponse
// @Router       /api/v1/drafts/{id}/questions/{qid}/options/{oid} [put]
func (h *DraftHandler) UpdateOption(c *gin.Context) {
	var req OptionRequest
	if !bind(c, &req) {
		return
	}
	qid, oid := c.Param("qid"), c.Param("oid")
	h.mutate(c, func(d *builder.Draft) error {
		return d.UpdateOptionText(qid, oid, req.Text)
	})
}

// DeleteOption godoc
// @Summary      Remove an option
// @Tags         drafts
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Draft ID"
// @Param        qid path string true "Question ID"
// @Param        oid path string true "Option ID"
// @Success      200 {object} Draft
// @Failure      404 {object} ErrorResponse
// @Router       /api/v1/drafts/{id}/questions/{qid}/options/{oid} [delete]
func (h *DraftHandler) DeleteOption(c *gin.Context) {
	qid, oid := c.Param("qid"), c.Param("oid")
	h.mutate(c, func(d *builder.Draft) error {
		return d.RemoveOption(qid, oid)
	})
}

// DragEnd godoc
// @Summary      Apply a finished drag
// @Description  Reorders questions (type "question") or the options of one question (type "option", droppable id "<questionID>-options")
// @Tags         drafts
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Draft ID"
// @Param        request body builder.DropResult true "Drop result"
// @Success      200 {object} Draft
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Router       /api/v1/drafts/{id}/drag-end [post]
func (h *DraftHandler) DragEnd(c *gin.Context) {
	var req builder.DropResult
	if !bind(c, &req) {
		return
	}
	h.mutate(c, func(d *builder.Draft) error {
		return d.OnDragEnd(req)
	})
}

// SaveDraft godoc
// @Summary      Save a draft
// @Description  Creates the form on first save and replaces it on later saves. An empty title is rejected.
// @Tags         drafts
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Draft ID"
// @Success      200 {object} SaveDraftResponse
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Router       /api/v1/drafts/{id}/save [post]
func (h *DraftHandler) SaveDraft(c *gin.Context) {
	ctx := c.Request.Context()
	var (
		saved *models.Form
		op    string
	)
	draft, err := h.drafts.Save(c.Param("id"), currentUser(c), func(d *builder.Draft) error {
		op = "create"
		if d.FormID != "" {
			op = "update"
		}
		var err error
		saved, err = d.Save(ctx, h.formService)
		return err
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	h.metrics.FormSaved(op)
	c.JSON(http.StatusOK, SaveDraftResponse{Form: saved, Draft: draft})
}

func (h *DraftHandler) mutate(c *gin.Context, fn func(*builder.Draft) error) {
	draft, err := h.drafts.Update(c.Param("id"), currentUser(c), fn)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, draft)
}

func questionRequired(d *builder.Draft, id string) bool {
	for _, q := range d.Questions {
		if q.ID == id {
			return q.Required
		}
	}
	return false
}

func bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return false
	}
	return true
}
