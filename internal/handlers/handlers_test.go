package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"chatforms-backend/internal/ai/aitest"
	"chatforms-backend/internal/builder"
	"chatforms-backend/internal/conversation"
	"chatforms-backend/internal/database/dbtest"
	"chatforms-backend/internal/metrics"
	"chatforms-backend/internal/models"
	"chatforms-backend/internal/ratelimiter"
	"chatforms-backend/internal/services"
	"chatforms-backend/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	router *gin.Engine
	auth   *services.AuthService
	gen    *aitest.Fake
	flows  *conversation.Registry
	hub    *ws.Hub
}

func newTestServer(t *testing.T, limiter *ratelimiter.Limiter) *testServer {
	t.Helper()
	db := dbtest.Open(t)
	log := zap.NewNop()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	gen := &aitest.Fake{}
	s := &testServer{
		auth:  services.NewAuthService("handler-secret"),
		gen:   gen,
		flows: conversation.NewRegistry(),
		hub:   ws.NewHub(log),
	}
	s.router = NewRouter(Deps{
		Log:       log,
		Auth:      s.auth,
		Users:     services.NewUserService(db, log),
		Forms:     services.NewFormService(db, log),
		Responses: services.NewResponseService(db, log),
		AI:        services.NewAIService(gen, log, m),
		Drafts:    builder.NewDraftStore(time.Hour),
		Flows:     s.flows,
		Hub:       s.hub,
		Metrics:   m,
		Gatherer:  reg,
		AILimiter: limiter,
	})
	return s
}

func (s *testServer) token(t *testing.T, userID string) string {
	t.Helper()
	tok, err := s.auth.IssueToken(services.Identity{ID: userID, Email: userID + "@example.com", Name: userID}, time.Hour)
	require.NoError(t, err)
	return tok
}

// do sends body as JSON. Headers come in key, value pairs.
func (s *testServer) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) as(t *testing.T, userID, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return s.do(t, method, path, body, "Authorization", "Bearer "+s.token(t, userID))
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func draftTexts(d builder.Draft) []string {
	out := make([]string, 0, len(d.Questions))
	for _, q := range d.Questions {
		out = append(out, q.Text)
	}
	return out
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "chatforms_http_requests_total")
}

func TestAuthoringRequiresToken(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(t, http.MethodGet, "/api/v1/forms", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/forms", nil, "Authorization", "Bearer nope")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.as(t, "creator", http.MethodGet, "/api/v1/me", nil)
	require.Equal(t, http.StatusOK, w.Code)
	me := decode[models.User](t, w)
	assert.Equal(t, "creator@example.com", me.Email)
}

func TestDraftBuildReorderAndSave(t *testing.T) {
	s := newTestServer(t, nil)
	const user = "creator"

	w := s.as(t, user, http.MethodPost, "/api/v1/drafts", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	draft := decode[builder.Draft](t, w)
	base := "/api/v1/drafts/" + draft.ID

	w = s.as(t, user, http.MethodPut, base, UpdateDraftRequest{Title: strPtr("Team lunch")})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	for _, text := range []string{"Name?", "Diet?", "Day?"} {
		w = s.as(t, user, http.MethodPost, base+"/questions", AddQuestionRequest{QuestionText: text})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}
	draft = decode[builder.Draft](t, w)
	require.Len(t, draft.Questions, 3)

	w = s.as(t, user, http.MethodPost, base+"/drag-end", builder.DropResult{
		Type:        builder.DragTypeQuestion,
		Source:      builder.DragLocation{DroppableID: "questions", Index: 0},
		Destination: &builder.DragLocation{DroppableID: "questions", Index: 2},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	draft = decode[builder.Draft](t, w)
	assert.Equal(t, []string{"Diet?", "Day?", "Name?"}, draftTexts(draft))
	for i, q := range draft.Questions {
		assert.Equal(t, i, q.Order)
	}

	diet := draft.Questions[0].ID
	radio := models.QuestionTypeRadio
	w = s.as(t, user, http.MethodPut, base+"/questions/"+diet, UpdateQuestionRequest{QuestionType: &radio, Required: boolPtr(true)})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	for _, opt := range []string{"Vegan", "Anything"} {
		w = s.as(t, user, http.MethodPost, base+"/questions/"+diet+"/options", OptionRequest{Text: opt})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	w = s.as(t, user, http.MethodPost, base+"/save", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	saved := decode[SaveDraftResponse](t, w)
	require.NotNil(t, saved.Form)
	assert.Equal(t, saved.Form.ID, saved.Draft.FormID)

	w = s.as(t, user, http.MethodGet, "/api/v1/forms/"+saved.Form.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	form := decode[models.Form](t, w)
	assert.Equal(t, "Team lunch", form.Title)
	require.Len(t, form.Questions, 3)
	assert.Equal(t, "Diet?", form.Questions[0].QuestionText)
	assert.True(t, form.Questions[0].Required)
	require.Len(t, form.Questions[0].Options, 2)
	assert.Equal(t, "Vegan", form.Questions[0].Options[0].Text)

	// A second save updates the same form instead of creating another.
	w = s.as(t, user, http.MethodDelete, base+"/questions/"+draft.Questions[2].ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = s.as(t, user, http.MethodPost, base+"/save", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.as(t, user, http.MethodGet, "/api/v1/forms", nil)
	forms := decode[[]models.Form](t, w)
	require.Len(t, forms, 1)
	assert.Len(t, forms[0].Questions, 2)
}

func TestSaveDraftWithoutTitle(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.as(t, "creator", http.MethodPost, "/api/v1/drafts", nil)
	draft := decode[builder.Draft](t, w)

	w = s.as(t, "creator", http.MethodPost, "/api/v1/drafts/"+draft.ID+"/save", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), builder.ErrEmptyTitle.Error())

	w = s.as(t, "creator", http.MethodGet, "/api/v1/forms", nil)
	assert.Empty(t, decode[[]models.Form](t, w))
}

func TestDraftErrors(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.as(t, "creator", http.MethodPost, "/api/v1/drafts", nil)
	draft := decode[builder.Draft](t, w)
	base := "/api/v1/drafts/" + draft.ID

	w = s.as(t, "someone-else", http.MethodGet, base, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.as(t, "creator", http.MethodPut, base+"/questions/missing", UpdateQuestionRequest{QuestionText: strPtr("x")})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.as(t, "creator", http.MethodPost, base+"/questions", AddQuestionRequest{QuestionText: "Free text"})
	draft = decode[builder.Draft](t, w)
	w = s.as(t, "creator", http.MethodPost, base+"/questions/"+draft.Questions[0].ID+"/options", OptionRequest{Text: "A"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.as(t, "creator", http.MethodPost, base+"/drag-end", builder.DropResult{
		Type:        "column",
		Source:      builder.DragLocation{DroppableID: "questions", Index: 0},
		Destination: &builder.DragLocation{DroppableID: "questions", Index: 1},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.as(t, "creator", http.MethodDelete, base, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = s.as(t, "creator", http.MethodGet, base, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestOpenDraftFromForm(t *testing.T) {
	s := newTestServer(t, nil)
	form := createForm(t, s, "creator", false, "First?")

	w := s.as(t, "creator", http.MethodPost, "/api/v1/drafts", CreateDraftRequest{FormID: form.ID})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	draft := decode[builder.Draft](t, w)
	assert.Equal(t, form.ID, draft.FormID)
	assert.Equal(t, []string{"First?"}, draftTexts(draft))

	w = s.as(t, "intruder", http.MethodPost, "/api/v1/drafts", CreateDraftRequest{FormID: form.ID})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestFormSettingsAndDelete(t *testing.T) {
	s := newTestServer(t, nil)
	form := createForm(t, s, "creator", false, "Q1")

	w := s.do(t, http.MethodGet, "/api/v1/public/forms/"+form.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.as(t, "creator", http.MethodPut, "/api/v1/forms/"+form.ID, services.FormPatch{IsPublished: boolPtr(true)})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode[models.Form](t, w)
	assert.True(t, updated.IsPublished)
	assert.NotNil(t, updated.PublishedAt)

	w = s.do(t, http.MethodGet, "/api/v1/public/forms/"+form.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[models.Form](t, w).UserID)

	w = s.as(t, "intruder", http.MethodPut, "/api/v1/forms/"+form.ID, services.FormPatch{IsPublished: boolPtr(false)})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.as(t, "intruder", http.MethodDelete, "/api/v1/forms/"+form.ID, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.as(t, "creator", http.MethodDelete, "/api/v1/forms/"+form.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = s.as(t, "creator", http.MethodGet, "/api/v1/forms/"+form.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

const generatedForm = "```json\n" + `{
  "title": "Remote work",
  "description": "How the team works from home",
  "questions": [
    {"questionText": "Where do you work from?", "questionType": "radio", "order": 0, "required": true,
     "options": [{"id": "", "text": "Home", "order": 0}, {"id": "", "text": "Cafe", "order": 1}]},
    {"questionText": "Anything to add?", "questionType": "text", "order": 1, "required": false, "options": []}
  ]
}` + "\n```"

func TestGenerateOpensDraft(t *testing.T) {
	s := newTestServer(t, ratelimiter.PerMinute(1, 1, time.Minute))
	s.gen.Text = generatedForm

	w := s.as(t, "creator", http.MethodGet, "/api/v1/forms/ai-status", nil)
	assert.JSONEq(t, `{"available": true}`, w.Body.String())

	w = s.as(t, "creator", http.MethodPost, "/api/v1/forms/generate", GenerateRequest{Prompt: "a survey about remote work habits"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	draft := decode[builder.Draft](t, w)
	assert.Equal(t, "Remote work", draft.Name)
	assert.Empty(t, draft.FormID)
	assert.Equal(t, []string{"Where do you work from?", "Anything to add?"}, draftTexts(draft))

	w = s.as(t, "creator", http.MethodGet, "/api/v1/drafts/"+draft.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.as(t, "creator", http.MethodPost, "/api/v1/forms/generate", GenerateRequest{Prompt: "a survey about remote work habits"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
}

func TestGenerateRejectsShortPrompt(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.as(t, "creator", http.MethodPost, "/api/v1/forms/generate", GenerateRequest{Prompt: "too short"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, s.gen.Prompts)
}

// createForm creates a form of text questions through the API.
func createForm(t *testing.T, s *testServer, user string, published bool, questions ...string) models.Form {
	t.Helper()
	req := CreateFormRequest{Title: "Survey", IsPublished: published}
	for _, q := range questions {
		req.Questions = append(req.Questions, QuestionInput{QuestionText: q, QuestionType: models.QuestionTypeText})
	}
	w := s.as(t, user, http.MethodPost, "/api/v1/forms", req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[models.Form](t, w)
}

func sseEvents(body string) []string {
	var events []string
	for _, line := range strings.Split(body, "\n") {
		if name, ok := strings.CutPrefix(line, "event:"); ok {
			events = append(events, name)
		}
	}
	return events
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }
