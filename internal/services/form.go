package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"chatforms-backend/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type FormService struct {
	db  *gorm.DB
	log *zap.Logger
	now func() time.Time
}

func NewFormService(db *gorm.DB, log *zap.Logger) *FormService {
	return &FormService{db: db, log: log, now: time.Now}
}

// FormPatch carries the fields UpdateForm may change. Nil fields are left
// alone.
type FormPatch struct {
	Title           *string `json:"title"`
	Description     *string `json:"description"`
	IsPublished     *bool   `json:"is_published"`
	Font            *string `json:"font"`
	BackgroundColor *string `json:"background_color"`
}

func orderedQuestions(db *gorm.DB) *gorm.DB {
	return db.Order("order_num ASC")
}

// CreateForm stores a new form and its questions in one transaction. Question
// order is taken from list position.
func (s *FormService) CreateForm(ctx context.Context, userID string, form *models.Form) (*models.Form, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}
	if strings.TrimSpace(form.Title) == "" {
		return nil, invalid("title is required")
	}

	created := models.Form{
		UserID:          userID,
		Title:           strings.TrimSpace(form.Title),
		Description:     form.Description,
		IsPublished:     form.IsPublished,
		Font:            form.Font,
		BackgroundColor: form.BackgroundColor,
	}
	if created.IsPublished {
		now := s.now()
		created.PublishedAt = &now
	}

	tx := s.db.WithContext(ctx).Begin()
	if err := tx.Omit("Questions").Create(&created).Error; err != nil {
		tx.Rollback()
		s.log.Error("failed to create form", zap.String("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("create form: %w", err)
	}

	questions, err := prepareQuestions(created.ID, form.Questions)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if len(questions) > 0 {
		if err := tx.Create(&questions).Error; err != nil {
			tx.Rollback()
			s.log.Error("failed to create questions", zap.String("form_id", created.ID), zap.Error(err))
			return nil, fmt.Errorf("create questions: %w", err)
		}
	}

	if err := tx.Commit().Error; err != nil {
		s.log.Error("failed to commit form", zap.String("form_id", created.ID), zap.Error(err))
		return nil, fmt.Errorf("commit form: %w", err)
	}

	created.Questions = questions
	s.log.Info("form created", zap.String("form_id", created.ID), zap.Int("questions", len(questions)))
	return &created, nil
}

// UpdateExistingForm replaces the form's fields and its whole question list.
// Existing questions are deleted and the new list inserted with order equal
// to position. Publication state is left as stored; UpdateForm changes it.
func (s *FormService) UpdateExistingForm(ctx context.Context, userID string, form *models.Form) (*models.Form, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}
	if strings.TrimSpace(form.Title) == "" {
		return nil, invalid("title is required")
	}

	questions, err := prepareQuestions(form.ID, form.Questions)
	if err != nil {
		return nil, err
	}

	tx := s.db.WithContext(ctx).Begin()

	existing, err := ownedForm(tx, userID, form.ID)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	updates := map[string]any{
		"title":            strings.TrimSpace(form.Title),
		"description":      form.Description,
		"font":             defaultString(form.Font, models.DefaultFont),
		"background_color": defaultString(form.BackgroundColor, models.DefaultBackgroundColor),
		"updated_at":       s.now(),
	}
	if err := tx.Model(existing).Updates(updates).Error; err != nil {
		tx.Rollback()
		s.log.Error("failed to update form", zap.String("form_id", form.ID), zap.Error(err))
		return nil, fmt.Errorf("update form: %w", err)
	}

	if err := tx.Where("form_id = ?", form.ID).Delete(&models.Question{}).Error; err != nil {
		tx.Rollback()
		s.log.Error("failed to clear questions", zap.String("form_id", form.ID), zap.Error(err))
		return nil, fmt.Errorf("delete questions: %w", err)
	}
	if len(questions) > 0 {
		if err := tx.Create(&questions).Error; err != nil {
			tx.Rollback()
			s.log.Error("failed to insert questions", zap.String("form_id", form.ID), zap.Error(err))
			return nil, fmt.Errorf("insert questions: %w", err)
		}
	}

	if err := tx.Commit().Error; err != nil {
		s.log.Error("failed to commit form update", zap.String("form_id", form.ID), zap.Error(err))
		return nil, fmt.Errorf("commit form: %w", err)
	}

	s.log.Info("form updated", zap.String("form_id", form.ID), zap.Int("questions", len(questions)))
	return s.GetFormByID(ctx, userID, form.ID)
}

// UpdateForm applies a partial change. Publishing stamps published_at;
// unpublishing clears it.
func (s *FormService) UpdateForm(ctx context.Context, userID, formID string, patch FormPatch) (*models.Form, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}

	form, err := ownedForm(s.db.WithContext(ctx), userID, formID)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{"updated_at": s.now()}
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return nil, invalid("title is required")
		}
		updates["title"] = title
	}
	if patch.Description != nil {
		updates["description"] = *patch.Description
	}
	if patch.Font != nil {
		updates["font"] = *patch.Font
	}
	if patch.BackgroundColor != nil {
		updates["background_color"] = *patch.BackgroundColor
	}
	if patch.IsPublished != nil && *patch.IsPublished != form.IsPublished {
		updates["is_published"] = *patch.IsPublished
		if *patch.IsPublished {
			updates["published_at"] = s.now()
		} else {
			updates["published_at"] = nil
		}
	}

	if err := s.db.WithContext(ctx).Model(form).Updates(updates).Error; err != nil {
		s.log.Error("failed to patch form", zap.String("form_id", formID), zap.Error(err))
		return nil, fmt.Errorf("update form: %w", err)
	}
	return s.GetFormByID(ctx, userID, formID)
}

// GetForms lists the user's forms, most recently updated first.
func (s *FormService) GetForms(ctx context.Context, userID string) ([]models.Form, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}

	var forms []models.Form
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).
		Preload("Questions", orderedQuestions).
		Order("updated_at DESC").
		Find(&forms).Error
	if err != nil {
		s.log.Error("failed to list forms", zap.String("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("list forms: %w", err)
	}
	return forms, nil
}

func (s *FormService) GetFormByID(ctx context.Context, userID, formID string) (*models.Form, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}

	var form models.Form
	err := s.db.WithContext(ctx).Where("id = ?", formID).
		Preload("Questions", orderedQuestions).
		First(&form).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("form")
		}
		s.log.Error("failed to load form", zap.String("form_id", formID), zap.Error(err))
		return nil, fmt.Errorf("load form: %w", err)
	}
	if form.UserID != userID {
		return nil, ErrUnauthorized
	}
	return &form, nil
}

// GetPublicFormByID returns a published form with the owner stripped.
func (s *FormService) GetPublicFormByID(ctx context.Context, formID string) (*models.Form, error) {
	var form models.Form
	err := s.db.WithContext(ctx).Where("id = ? AND is_published = ?", formID, true).
		Preload("Questions", orderedQuestions).
		First(&form).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("form")
		}
		s.log.Error("failed to load public form", zap.String("form_id", formID), zap.Error(err))
		return nil, fmt.Errorf("load public form: %w", err)
	}
	form.UserID = ""
	return &form, nil
}

// DeleteForm removes the form with its questions, responses, answers and
// analytics rows.
func (s *FormService) DeleteForm(ctx context.Context, userID, formID string) error {
	if userID == "" {
		return ErrUnauthorized
	}

	tx := s.db.WithContext(ctx).Begin()

	form, err := ownedForm(tx, userID, formID)
	if err != nil {
		tx.Rollback()
		return err
	}

	responseIDs := tx.Model(&models.Response{}).Select("id").Where("form_id = ?", formID)
	sessionIDs := tx.Model(&models.Session{}).Select("id").Where("form_id = ?", formID)
	steps := []struct {
		name string
		run  func() error
	}{
		{"answers", func() error { return tx.Where("response_id IN (?)", responseIDs).Delete(&models.Answer{}).Error }},
		{"interactions", func() error {
			return tx.Where("session_id IN (?)", sessionIDs).Delete(&models.QuestionInteraction{}).Error
		}},
		{"responses", func() error { return tx.Where("form_id = ?", formID).Delete(&models.Response{}).Error }},
		{"views", func() error { return tx.Where("form_id = ?", formID).Delete(&models.FormView{}).Error }},
		{"daily stats", func() error { return tx.Where("form_id = ?", formID).Delete(&models.DailyStat{}).Error }},
		{"sessions", func() error { return tx.Where("form_id = ?", formID).Delete(&models.Session{}).Error }},
		{"questions", func() error { return tx.Where("form_id = ?", formID).Delete(&models.Question{}).Error }},
		{"form", func() error { return tx.Delete(form).Error }},
	}
	for _, step := range steps {
		if err := step.run(); err != nil {
			tx.Rollback()
			s.log.Error("failed to delete form", zap.String("form_id", formID), zap.String("step", step.name), zap.Error(err))
			return fmt.Errorf("delete %s: %w", step.name, err)
		}
	}

	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("commit delete: %w", err)
	}
	s.log.Info("form deleted", zap.String("form_id", formID))
	return nil
}

// prepareQuestions checks types and renumbers the list for insertion under
// formID. Options are dropped from non-choice questions.
func prepareQuestions(formID string, in []models.Question) ([]models.Question, error) {
	out := make([]models.Question, 0, len(in))
	for i, q := range in {
		if strings.TrimSpace(q.QuestionText) == "" {
			return nil, invalid(fmt.Sprintf("question %d has no text", i+1))
		}
		if !q.QuestionType.Valid() {
			return nil, invalid(fmt.Sprintf("question %d has unknown type %q", i+1, q.QuestionType))
		}
		opts := datatypes.JSONSlice[models.Option]{}
		if q.QuestionType.IsChoice() {
			for j, o := range q.Options {
				if o.ID == "" {
					o.ID = uuid.NewString()
				}
				o.Order = j
				opts = append(opts, o)
			}
		}
		out = append(out, models.Question{
			FormID:       formID,
			QuestionText: q.QuestionText,
			QuestionType: q.QuestionType,
			OrderNum:     i,
			Required:     q.Required,
			Options:      opts,
		})
	}
	return out, nil
}

func defaultString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
