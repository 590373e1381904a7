package services

import (
	"context"
	"testing"
	"time"

	"chatforms-backend/internal/database/dbtest"
	"chatforms-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newServices(t *testing.T) (*FormService, *ResponseService, *gorm.DB) {
	db := dbtest.Open(t)
	return NewFormService(db, zap.NewNop()), NewResponseService(db, zap.NewNop()), db
}

func TestPublishAndSubmitEndToEnd(t *testing.T) {
	forms, responses, db := newServices(t)
	ctx := context.Background()

	form := publishedForm(t, forms, "What is your name?", "What brings you here?")
	require.Len(t, form.Questions, 2)

	started, err := responses.InitializeResponse(ctx, form.ID, "10.0.0.1", "agent")
	require.NoError(t, err)
	assert.NotEmpty(t, started.SessionToken)

	submitted, err := responses.SubmitResponses(ctx, started.ResponseID, []models.Answer{
		{QuestionID: form.Questions[0].ID, AnswerText: strPtr("Ada")},
		{QuestionID: form.Questions[1].ID, AnswerText: strPtr("Curiosity")},
	})
	require.NoError(t, err)
	assert.True(t, submitted.IsComplete)

	var stored []models.Response
	require.NoError(t, db.Preload("Answers").Find(&stored).Error)
	require.Len(t, stored, 1)
	assert.True(t, stored[0].IsComplete)
	assert.NotNil(t, stored[0].CompletedAt)
	require.Len(t, stored[0].Answers, 2)

	byQuestion := map[string]string{}
	for _, a := range stored[0].Answers {
		assert.Equal(t, stored[0].ID, a.ResponseID)
		byQuestion[a.QuestionID] = *a.AnswerText
	}
	assert.Equal(t, map[string]string{
		form.Questions[0].ID: "Ada",
		form.Questions[1].ID: "Curiosity",
	}, byQuestion)
}

func TestInitializeResponseNeedsPublishedForm(t *testing.T) {
	forms, responses, _ := newServices(t)
	ctx := context.Background()

	draft, err := forms.CreateForm(ctx, owner, &models.Form{Title: "hidden"})
	require.NoError(t, err)

	_, err = responses.InitializeResponse(ctx, draft.ID, "", "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSubmitRejectsForeignQuestionAndResubmission(t *testing.T) {
	forms, responses, db := newServices(t)
	ctx := context.Background()

	form := publishedForm(t, forms, "q1")
	other := publishedForm(t, forms, "elsewhere")
	started, err := responses.InitializeResponse(ctx, form.ID, "", "")
	require.NoError(t, err)

	_, err = responses.SubmitResponses(ctx, started.ResponseID, []models.Answer{
		{QuestionID: other.Questions[0].ID, AnswerText: strPtr("no")},
	})
	assert.ErrorIs(t, err, ErrValidation)

	var count int64
	require.NoError(t, db.Model(&models.Answer{}).Count(&count).Error)
	assert.Zero(t, count)

	_, err = responses.SubmitResponses(ctx, started.ResponseID, []models.Answer{
		{QuestionID: form.Questions[0].ID, AnswerText: strPtr("yes")},
	})
	require.NoError(t, err)

	_, err = responses.SubmitResponses(ctx, started.ResponseID, nil)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = responses.SubmitResponses(ctx, "missing", nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveAnswerThenSubmitReplaces(t *testing.T) {
	forms, responses, db := newServices(t)
	ctx := context.Background()

	form := publishedForm(t, forms, "q1", "q2")
	started, err := responses.InitializeResponse(ctx, form.ID, "", "")
	require.NoError(t, err)

	_, err = responses.SaveAnswer(ctx, started.ResponseID, models.Answer{QuestionID: form.Questions[0].ID, AnswerText: strPtr("draft")})
	require.NoError(t, err)
	_, err = responses.SaveAnswer(ctx, started.ResponseID, models.Answer{QuestionID: "nope", AnswerText: strPtr("x")})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = responses.SubmitResponses(ctx, started.ResponseID, []models.Answer{
		{QuestionID: form.Questions[0].ID, AnswerText: strPtr("final")},
	})
	require.NoError(t, err)

	var answers []models.Answer
	require.NoError(t, db.Where("response_id = ?", started.ResponseID).Find(&answers).Error)
	require.Len(t, answers, 1)
	assert.Equal(t, "final", *answers[0].AnswerText)
}

func TestAuthenticateSession(t *testing.T) {
	forms, responses, _ := newServices(t)
	ctx := context.Background()

	form := publishedForm(t, forms, "q1")
	a, err := responses.InitializeResponse(ctx, form.ID, "", "")
	require.NoError(t, err)
	b, err := responses.InitializeResponse(ctx, form.ID, "", "")
	require.NoError(t, err)

	got, err := responses.AuthenticateSession(ctx, a.ResponseID, a.SessionToken)
	require.NoError(t, err)
	assert.Equal(t, a.ResponseID, got.ID)

	_, err = responses.AuthenticateSession(ctx, a.ResponseID, b.SessionToken)
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = responses.AuthenticateSession(ctx, a.ResponseID, "")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestStatsAccumulatePerDay(t *testing.T) {
	forms, responses, _ := newServices(t)
	ctx := context.Background()

	day := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	responses.now = func() time.Time { return day }

	form := publishedForm(t, forms, "q1")
	first, err := responses.InitializeResponse(ctx, form.ID, "", "")
	require.NoError(t, err)
	_, err = responses.InitializeResponse(ctx, form.ID, "", "")
	require.NoError(t, err)

	responses.now = func() time.Time { return day.Add(30 * time.Second) }
	_, err = responses.SubmitResponses(ctx, first.ResponseID, nil)
	require.NoError(t, err)

	responses.now = func() time.Time { return day.Add(24 * time.Hour) }
	_, err = responses.InitializeResponse(ctx, form.ID, "", "")
	require.NoError(t, err)

	stats, err := responses.GetStats(ctx, owner, form.ID)
	require.NoError(t, err)
	require.Len(t, stats.Daily, 2)
	assert.Equal(t, 2, stats.Daily[0].TotalViews)
	assert.Equal(t, 2, stats.Daily[0].TotalResponses)
	assert.Equal(t, 1, stats.Daily[0].CompletedResponses)
	assert.Equal(t, 30, stats.Daily[0].AvgTimeSpent)
	assert.Equal(t, 1, stats.Daily[1].TotalViews)
	assert.Equal(t, 3, stats.TotalViews)
	assert.Equal(t, 1, stats.CompletedResponses)

	_, err = responses.GetStats(ctx, "other", form.ID)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestGetResponsesAndInteractions(t *testing.T) {
	forms, responses, db := newServices(t)
	ctx := context.Background()

	form := publishedForm(t, forms, "q1")
	started, err := responses.InitializeResponse(ctx, form.ID, "", "")
	require.NoError(t, err)

	require.NoError(t, responses.RecordInteraction(ctx, started.ResponseID, form.Questions[0].ID, 12))
	assert.ErrorIs(t, responses.RecordInteraction(ctx, started.ResponseID, form.Questions[0].ID, -1), ErrValidation)
	assert.ErrorIs(t, responses.RecordInteraction(ctx, "missing", form.Questions[0].ID, 1), ErrNotFound)

	other := publishedForm(t, forms, "elsewhere")
	assert.ErrorIs(t, responses.RecordInteraction(ctx, started.ResponseID, other.Questions[0].ID, 3), ErrValidation)
	assert.ErrorIs(t, responses.RecordInteraction(ctx, started.ResponseID, "not-a-question", 3), ErrValidation)

	var interaction models.QuestionInteraction
	require.NoError(t, db.First(&interaction).Error)
	assert.Equal(t, started.SessionID, interaction.SessionID)
	assert.Equal(t, 12, interaction.TimeSpent)

	list, err := responses.GetResponses(ctx, owner, form.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, started.ResponseID, list[0].ID)

	_, err = responses.GetResponses(ctx, "", form.ID)
	assert.ErrorIs(t, err, ErrUnauthorized)
}
