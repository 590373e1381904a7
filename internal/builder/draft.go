// Package builder holds the in-progress form tree a creator edits before
// saving it, and the mutations the editor applies to it.
package builder

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"chatforms-backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

var (
	ErrQuestionNotFound = errors.New("question not found")
	ErrOptionNotFound   = errors.New("option not found")
	ErrIndexOutOfRange  = errors.New("index out of range")
	ErrInvalidType      = errors.New("invalid question type")
	ErrNotChoice        = errors.New("question type does not take options")
	ErrEmptyTitle       = errors.New("form title is required")
	ErrUnknownDragType  = errors.New("unknown drag type")
)

type Question struct {
	ID       string              `json:"id"`
	Text     string              `json:"question_text"`
	Type     models.QuestionType `json:"question_type"`
	Order    int                 `json:"order"`
	Required bool                `json:"required"`
	Options  []models.Option     `json:"options"`
}

// Draft is not safe for concurrent use; DraftStore serializes access.
type Draft struct {
	ID              string     `json:"id"`
	FormID          string     `json:"form_id,omitempty"`
	OwnerID         string     `json:"-"`
	Name            string     `json:"title"`
	Description     string     `json:"description"`
	Font            string     `json:"font"`
	BackgroundColor string     `json:"background_color"`
	Questions       []Question `json:"questions"`
}

func New(ownerID string) *Draft {
	return &Draft{
		ID:              uuid.NewString(),
		OwnerID:         ownerID,
		Font:            models.DefaultFont,
		BackgroundColor: models.DefaultBackgroundColor,
		Questions:       []Question{},
	}
}

// FromForm opens a persisted form for editing; saving updates that form.
func FromForm(ownerID string, form *models.Form) *Draft {
	d := FromGenerated(ownerID, form)
	d.FormID = form.ID
	return d
}

// FromGenerated loads a form that has never been saved, such as one produced
// by AI generation. Saving it creates a new form.
func FromGenerated(ownerID string, form *models.Form) *Draft {
	d := New(ownerID)
	d.Name = form.Title
	d.Description = form.Description
	if form.Font != "" {
		d.Font = form.Font
	}
	if form.BackgroundColor != "" {
		d.BackgroundColor = form.BackgroundColor
	}
	for _, q := range form.Questions {
		id := q.ID
		if id == "" {
			id = uuid.NewString()
		}
		qType := q.QuestionType
		if !qType.Valid() {
			qType = models.QuestionTypeText
		}
		dq := Question{
			ID:       id,
			Text:     q.QuestionText,
			Type:     qType,
			Required: q.Required,
			Options:  []models.Option{},
		}
		if qType.IsChoice() {
			for _, o := range q.Options {
				if o.ID == "" {
					o.ID = uuid.NewString()
				}
				dq.Options = append(dq.Options, o)
			}
			resequenceOptions(dq.Options)
		}
		d.Questions = append(d.Questions, dq)
	}
	d.resequence()
	return d
}

func (d *Draft) SetName(name string) { d.Name = name }
func (d *Draft) SetDescription(description string) { d.Description = description }
func (d *Draft) SetFont(font string) { d.Font = font }
func (d *Draft) SetBackgroundColor(color string) { d.BackgroundColor = color }

// AddQuestion appends a free-text, optional question and returns its id.
func (d *Draft) AddQuestion(text string) string {
	q := Question{
		ID:      uuid.NewString(),
		Text:    text,
		Type:    models.QuestionTypeText,
		Order:   len(d.Questions),
		Options: []models.Option{},
	}
	d.Questions = append(d.Questions, q)
	return q.ID
}

func (d *Draft) UpdateQuestionText(id, text string) error {
	q, err := d.question(id)
	if err != nil {
		return err
	}
	q.Text = text
	return nil
}

func (d *Draft) ToggleRequired(id string) error {
	q, err := d.question(id)
	if err != nil {
		return err
	}
	q.Required = !q.Required
	return nil
}

// UpdateQuestionType always clears the options, also when switching between
// two choice types.
func (d *Draft) UpdateQuestionType(id string, t models.QuestionType) error {
	if !t.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidType, t)
	}
	q, err := d.question(id)
	if err != nil {
		return err
	}
	q.Type = t
	q.Options = []models.Option{}
	return nil
}

func (d *Draft) DeleteQuestion(id string) error {
	i := d.questionIndex(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrQuestionNotFound, id)
	}
	d.Questions = append(d.Questions[:i], d.Questions[i+1:]...)
	d.resequence()
	return nil
}

func (d *Draft) AddOption(questionID, text string) (string, error) {
	q, err := d.question(questionID)
	if err != nil {
		return "", err
	}
	if !q.Type.IsChoice() {
		return "", fmt.Errorf("%w: %s", ErrNotChoice, q.Type)
	}
	o := models.Option{ID: uuid.NewString(), Text: text, Order: len(q.Options)}
	q.Options = append(q.Options, o)
	return o.ID, nil
}

func (d *Draft) RemoveOption(questionID, optionID string) error {
	q, err := d.question(questionID)
	if err != nil {
		return err
	}
	i := optionIndex(q.Options, optionID)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrOptionNotFound, optionID)
	}
	q.Options = append(q.Options[:i], q.Options[i+1:]...)
	resequenceOptions(q.Options)
	return nil
}

func (d *Draft) UpdateOptionText(questionID, optionID, text string) error {
	q, err := d.question(questionID)
	if err != nil {
		return err
	}
	i := optionIndex(q.Options, optionID)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrOptionNotFound, optionID)
	}
	q.Options[i].Text = text
	return nil
}

func (d *Draft) ReorderQuestions(from, to int) error {
	moved, err := move(d.Questions, from, to)
	if err != nil {
		return err
	}
	d.Questions = moved
	d.resequence()
	return nil
}

func (d *Draft) ReorderOptions(questionID string, from, to int) error {
	q, err := d.question(questionID)
	if err != nil {
		return err
	}
	moved, err := move(q.Options, from, to)
	if err != nil {
		return err
	}
	q.Options = moved
	resequenceOptions(q.Options)
	return nil
}

// Validate runs before any persistence call.
func (d *Draft) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return ErrEmptyTitle
	}
	return nil
}

// Saver persists a form tree. CreateForm is used for drafts that have never
// been saved, UpdateExistingForm for drafts opened from a stored form.
type Saver interface {
	CreateForm(ctx context.Context, userID string, form *models.Form) (*models.Form, error)
	UpdateExistingForm(ctx context.Context, userID string, form *models.Form) (*models.Form, error)
}

// Save validates the draft and hands it to saver. On success the draft
// remembers the form id so later saves update the same form.
func (d *Draft) Save(ctx context.Context, saver Saver) (*models.Form, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	var (
		saved *models.Form
		err   error
	)
	if d.FormID == "" {
		saved, err = saver.CreateForm(ctx, d.OwnerID, d.ToForm())
	} else {
		saved, err = saver.UpdateExistingForm(ctx, d.OwnerID, d.ToForm())
	}
	if err != nil {
		return nil, err
	}
	d.FormID = saved.ID
	return saved, nil
}

// ToForm converts the draft into the persistence model. Question order is
// the position in the list.
func (d *Draft) ToForm() *models.Form {
	form := &models.Form{
		ID:              d.FormID,
		UserID:          d.OwnerID,
		Title:           d.Name,
		Description:     d.Description,
		Font:            d.Font,
		BackgroundColor: d.BackgroundColor,
	}
	for i, q := range d.Questions {
		opts := datatypes.JSONSlice[models.Option]{}
		if q.Type.IsChoice() {
			opts = append(opts, q.Options...)
		}
		form.Questions = append(form.Questions, models.Question{
			FormID:       d.FormID,
			QuestionText: q.Text,
			QuestionType: q.Type,
			OrderNum:     i,
			Required:     q.Required,
			Options:      opts,
		})
	}
	return form
}

// Clone returns a deep copy.
func (d *Draft) Clone() *Draft {
	c := *d
	c.Questions = make([]Question, len(d.Questions))
	for i, q := range d.Questions {
		q.Options = append([]models.Option{}, q.Options...)
		c.Questions[i] = q
	}
	return &c
}

func (d *Draft) question(id string) (*Question, error) {
	i := d.questionIndex(id)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrQuestionNotFound, id)
	}
	return &d.Questions[i], nil
}

func (d *Draft) questionIndex(id string) int {
	for i := range d.Questions {
		if d.Questions[i].ID == id {
			return i
		}
	}
	return -1
}

func (d *Draft) resequence() {
	for i := range d.Questions {
		d.Questions[i].Order = i
	}
}

func optionIndex(opts []models.Option, id string) int {
	for i := range opts {
		if opts[i].ID == id {
			return i
		}
	}
	return -1
}

func resequenceOptions(opts []models.Option) {
	for i := range opts {
		opts[i].Order = i
	}
}

// move removes the element at from and reinserts it at to.
func move[T any](s []T, from, to int) ([]T, error) {
	if from < 0 || from >= len(s) || to < 0 || to >= len(s) {
		return nil, fmt.Errorf("%w: move %d -> %d of %d", ErrIndexOutOfRange, from, to, len(s))
	}
	out := make([]T, 0, len(s))
	out = append(out, s[:from]...)
	out = append(out, s[from+1:]...)
	item := s[from]
	out = append(out[:to], append([]T{item}, out[to:]...)...)
	return out, nil
}
