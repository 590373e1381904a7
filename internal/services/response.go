package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chatforms-backend/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ResponseService struct {
	db  *gorm.DB
	log *zap.Logger
	now func() time.Time
}

func NewResponseService(db *gorm.DB, log *zap.Logger) *ResponseService {
	return &ResponseService{db: db, log: log, now: time.Now}
}

// StartedResponse is handed to the respondent. SessionToken authenticates
// every later call for this response.
type StartedResponse struct {
	ResponseID   string `json:"response_id"`
	SessionID    string `json:"session_id"`
	SessionToken string `json:"session_token"`
	FormID       string `json:"form_id"`
}

type FormStats struct {
	FormID             string             `json:"form_id"`
	TotalViews         int                `json:"total_views"`
	TotalResponses     int                `json:"total_responses"`
	CompletedResponses int                `json:"completed_responses"`
	Daily              []models.DailyStat `json:"daily"`
}

// InitializeResponse opens a session, a form view and an empty response for
// a published form.
func (s *ResponseService) InitializeResponse(ctx context.Context, formID, ip, userAgent string) (*StartedResponse, error) {
	var form models.Form
	if err := s.db.WithContext(ctx).Where("id = ? AND is_published = ?", formID, true).First(&form).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("form")
		}
		return nil, fmt.Errorf("load form: %w", err)
	}

	now := s.now()
	session := models.Session{
		SessionToken: uuid.NewString(),
		FormID:       formID,
		IPAddress:    ip,
		UserAgent:    userAgent,
		StartedAt:    now,
	}

	tx := s.db.WithContext(ctx).Begin()
	if err := tx.Create(&session).Error; err != nil {
		tx.Rollback()
		s.log.Error("failed to create session", zap.String("form_id", formID), zap.Error(err))
		return nil, fmt.Errorf("create session: %w", err)
	}

	view := models.FormView{FormID: formID, SessionID: session.ID, ViewedAt: now}
	if err := tx.Create(&view).Error; err != nil {
		tx.Rollback()
		s.log.Error("failed to record view", zap.String("form_id", formID), zap.Error(err))
		return nil, fmt.Errorf("create form view: %w", err)
	}

	response := models.Response{FormID: formID, SessionID: session.ID, StartedAt: now}
	if err := tx.Create(&response).Error; err != nil {
		tx.Rollback()
		s.log.Error("failed to create response", zap.String("form_id", formID), zap.Error(err))
		return nil, fmt.Errorf("create response: %w", err)
	}

	err := bumpDailyStat(tx, formID, now, models.DailyStat{UniqueVisitors: 1, TotalViews: 1, TotalResponses: 1},
		map[string]any{
			"unique_visitors": gorm.Expr("daily_stats.unique_visitors + 1"),
			"total_views":     gorm.Expr("daily_stats.total_views + 1"),
			"total_responses": gorm.Expr("daily_stats.total_responses + 1"),
		})
	if err != nil {
		tx.Rollback()
		s.log.Error("failed to update daily stats", zap.String("form_id", formID), zap.Error(err))
		return nil, fmt.Errorf("update daily stats: %w", err)
	}

	if err := tx.Commit().Error; err != nil {
		return nil, fmt.Errorf("commit response: %w", err)
	}

	s.log.Info("response started", zap.String("form_id", formID), zap.String("response_id", response.ID))
	return &StartedResponse{
		ResponseID:   response.ID,
		SessionID:    session.ID,
		SessionToken: session.SessionToken,
		FormID:       formID,
	}, nil
}

// AuthenticateSession returns the response when token belongs to the session
// it was started under.
func (s *ResponseService) AuthenticateSession(ctx context.Context, responseID, token string) (*models.Response, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}

	var response models.Response
	err := s.db.WithContext(ctx).
		Joins("JOIN sessions ON sessions.id = responses.session_id").
		Where("responses.id = ? AND sessions.session_token = ?", responseID, token).
		First(&response).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("authenticate session: %w", err)
	}
	return &response, nil
}

// SaveAnswer stores a single answer while the response is still open.
func (s *ResponseService) SaveAnswer(ctx context.Context, responseID string, answer models.Answer) (*models.Answer, error) {
	tx := s.db.WithContext(ctx).Begin()

	response, err := openResponse(tx, responseID)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	known, err := formQuestionIDs(tx, response.FormID)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if _, ok := known[answer.QuestionID]; !ok {
		tx.Rollback()
		return nil, invalid("question does not belong to this form")
	}

	answer.ID = ""
	answer.ResponseID = responseID
	if err := tx.Create(&answer).Error; err != nil {
		tx.Rollback()
		s.log.Error("failed to save answer", zap.String("response_id", responseID), zap.Error(err))
		return nil, fmt.Errorf("save answer: %w", err)
	}
	if err := tx.Commit().Error; err != nil {
		return nil, fmt.Errorf("commit answer: %w", err)
	}
	return &answer, nil
}

// SubmitResponses completes the response and stores its answers in one
// transaction. An answer replaces any answer saved earlier for the same
// question.
func (s *ResponseService) SubmitResponses(ctx context.Context, responseID string, answers []models.Answer) (*models.Response, error) {
	tx := s.db.WithContext(ctx).Begin()

	response, err := openResponse(tx, responseID)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	known, err := formQuestionIDs(tx, response.FormID)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	questionIDs := make([]string, 0, len(answers))
	rows := make([]models.Answer, 0, len(answers))
	for _, a := range answers {
		if _, ok := known[a.QuestionID]; !ok {
			tx.Rollback()
			return nil, invalid(fmt.Sprintf("question %s does not belong to this form", a.QuestionID))
		}
		questionIDs = append(questionIDs, a.QuestionID)
		rows = append(rows, models.Answer{
			ResponseID:     responseID,
			QuestionID:     a.QuestionID,
			AnswerText:     a.AnswerText,
			AnswerOptionID: a.AnswerOptionID,
		})
	}

	now := s.now()
	spent := int(now.Sub(response.StartedAt).Seconds())
	if spent < 0 {
		spent = 0
	}

	err = tx.Model(response).Updates(map[string]any{
		"is_complete":      true,
		"completed_at":     now,
		"total_time_spent": spent,
	}).Error
	if err != nil {
		tx.Rollback()
		s.log.Error("failed to complete response", zap.String("response_id", responseID), zap.Error(err))
		return nil, fmt.Errorf("complete response: %w", err)
	}
	err = tx.Model(&models.Session{}).Where("id = ?", response.SessionID).Updates(map[string]any{
		"completed_at":     now,
		"total_time_spent": spent,
	}).Error
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("complete session: %w", err)
	}

	if len(rows) > 0 {
		if err := tx.Where("response_id = ? AND question_id IN ?", responseID, questionIDs).Delete(&models.Answer{}).Error; err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("replace answers: %w", err)
		}
		if err := tx.Create(&rows).Error; err != nil {
			tx.Rollback()
			s.log.Error("failed to insert answers", zap.String("response_id", responseID), zap.Error(err))
			return nil, fmt.Errorf("insert answers: %w", err)
		}
	}

	err = bumpDailyStat(tx, response.FormID, now, models.DailyStat{CompletedResponses: 1, AvgTimeSpent: spent},
		map[string]any{
			"avg_time_spent": gorm.Expr(
				"(daily_stats.avg_time_spent * daily_stats.completed_responses + ?) / (daily_stats.completed_responses + 1)", spent),
			"completed_responses": gorm.Expr("daily_stats.completed_responses + 1"),
		})
	if err != nil {
		tx.Rollback()
		s.log.Error("failed to update daily stats", zap.String("form_id", response.FormID), zap.Error(err))
		return nil, fmt.Errorf("update daily stats: %w", err)
	}

	if err := tx.Commit().Error; err != nil {
		s.log.Error("failed to commit submission", zap.String("response_id", responseID), zap.Error(err))
		return nil, fmt.Errorf("commit submission: %w", err)
	}

	response.IsComplete = true
	response.CompletedAt = &now
	response.TotalTimeSpent = spent
	response.Answers = rows
	s.log.Info("response submitted", zap.String("response_id", responseID), zap.Int("answers", len(rows)))
	return response, nil
}

// GetResponses lists the responses of an owned form, newest first.
func (s *ResponseService) GetResponses(ctx context.Context, userID, formID string) ([]models.Response, error) {
	if _, err := ownedForm(s.db.WithContext(ctx), userID, formID); err != nil {
		return nil, err
	}

	var responses []models.Response
	err := s.db.WithContext(ctx).Where("form_id = ?", formID).
		Preload("Answers").
		Order("started_at DESC").
		Find(&responses).Error
	if err != nil {
		s.log.Error("failed to list responses", zap.String("form_id", formID), zap.Error(err))
		return nil, fmt.Errorf("list responses: %w", err)
	}
	return responses, nil
}

func (s *ResponseService) GetStats(ctx context.Context, userID, formID string) (*FormStats, error) {
	if _, err := ownedForm(s.db.WithContext(ctx), userID, formID); err != nil {
		return nil, err
	}

	stats := &FormStats{FormID: formID}
	if err := s.db.WithContext(ctx).Where("form_id = ?", formID).Order("date ASC").Find(&stats.Daily).Error; err != nil {
		s.log.Error("failed to load stats", zap.String("form_id", formID), zap.Error(err))
		return nil, fmt.Errorf("load stats: %w", err)
	}
	for _, d := range stats.Daily {
		stats.TotalViews += d.TotalViews
		stats.TotalResponses += d.TotalResponses
		stats.CompletedResponses += d.CompletedResponses
	}
	return stats, nil
}

// RecordInteraction logs how long the respondent spent on one question.
func (s *ResponseService) RecordInteraction(ctx context.Context, responseID, questionID string, timeSpent int) error {
	var response models.Response
	if err := s.db.WithContext(ctx).Where("id = ?", responseID).First(&response).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound("response")
		}
		return fmt.Errorf("load response: %w", err)
	}
	if timeSpent < 0 {
		return invalid("time spent must not be negative")
	}
	known, err := formQuestionIDs(s.db.WithContext(ctx), response.FormID)
	if err != nil {
		return err
	}
	if _, ok := known[questionID]; !ok {
		return invalid("question does not belong to this form")
	}

	now := s.now()
	interaction := models.QuestionInteraction{
		SessionID:   response.SessionID,
		QuestionID:  questionID,
		TimeSpent:   timeSpent,
		StartedAt:   now.Add(-time.Duration(timeSpent) * time.Second),
		CompletedAt: &now,
	}
	if err := s.db.WithContext(ctx).Create(&interaction).Error; err != nil {
		s.log.Error("failed to record interaction", zap.String("response_id", responseID), zap.Error(err))
		return fmt.Errorf("record interaction: %w", err)
	}
	return nil
}

// bumpDailyStat inserts the day's row for formID with initial, or applies
// updates to the existing one.
func bumpDailyStat(tx *gorm.DB, formID string, at time.Time, initial models.DailyStat, updates map[string]any) error {
	y, m, d := at.UTC().Date()
	initial.FormID = formID
	initial.Date = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "form_id"}, {Name: "date"}},
		DoUpdates: clause.Assignments(updates),
	}).Create(&initial).Error
}

func openResponse(tx *gorm.DB, responseID string) (*models.Response, error) {
	var response models.Response
	if err := tx.Where("id = ?", responseID).First(&response).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("response")
		}
		return nil, fmt.Errorf("load response: %w", err)
	}
	if response.IsComplete {
		return nil, invalid("response has already been submitted")
	}
	return &response, nil
}

func formQuestionIDs(tx *gorm.DB, formID string) (map[string]struct{}, error) {
	var ids []string
	if err := tx.Model(&models.Question{}).Where("form_id = ?", formID).Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	known := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		known[id] = struct{}{}
	}
	return known, nil
}

func ownedForm(db *gorm.DB, userID, formID string) (*models.Form, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}
	var form models.Form
	if err := db.Where("id = ?", formID).First(&form).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("form")
		}
		return nil, fmt.Errorf("load form: %w", err)
	}
	if form.UserID != userID {
		return nil, ErrUnauthorized
	}
	return &form, nil
}
