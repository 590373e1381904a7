package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"chatforms-backend/internal/ai"
	"chatforms-backend/internal/metrics"
	"chatforms-backend/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// MinPromptLength is the shortest description GenerateForm accepts.
const MinPromptLength = 20

type AIService struct {
	gen     ai.Generator
	log     *zap.Logger
	metrics *metrics.Metrics
}

func NewAIService(gen ai.Generator, log *zap.Logger, m *metrics.Metrics) *AIService {
	return &AIService{gen: gen, log: log, metrics: m}
}

func (s *AIService) IsAvailable() bool {
	return s.gen.Available()
}

type aiForm struct {
	Title           string       `json:"title"`
	Description     string       `json:"description"`
	IsPublished     bool         `json:"isPublished"`
	Font            string       `json:"font"`
	BackgroundColor string       `json:"backgroundColor"`
	Questions       []aiQuestion `json:"questions"`
}

type aiQuestion struct {
	QuestionText string     `json:"questionText"`
	QuestionType string     `json:"questionType"`
	Order        int        `json:"order"`
	Required     bool       `json:"required"`
	Options      []aiOption `json:"options"`
}

type aiOption struct {
	ID    string `json:"id"`
	Text  string `json:"text"`
	Order int    `json:"order"`
}

const generateFormPrompt = `Generate a form object that strictly adheres to the following schema:
  {
    "title": "string",
    "description": "string",
    "isPublished": "boolean",
    "font": "string",
    "backgroundColor": "string",
    "questions": [
      {
        "questionText": "string",
        "questionType": "text | radio | checkbox | select | date | time",
        "order": "number",
        "required": "boolean",
        "options": [
          {
            "id": "string",
            "text": "string",
            "order": "number"
          }
        ] | []
      }
    ]
  }

The rules for generating the options array:
  - If the questionType is "radio", "checkbox", or "select", generate an array of option objects with "id", "text", and "order" as shown in the schema.
  - If the questionType is "text", "date", or "time", the options array must be an empty array [].

Use this input for context: "%s".
The generated form should follow this schema precisely, including the presence of the options array for each question, even if it is empty.

**Important**: Return only the plain JSON object. Do not include any markdown formatting, such as ` + "```json" + `, or any other text.`

const rephrasePrompt = `You are building a smart, interactive form that asks questions in a natural, conversational manner. The form evolves dynamically as it progresses, taking into account the previous questions and answers. You are provided with a list of previously asked questions and the user's answers. Your goal is to rephrase the next question in a way that feels engaging and interactive, maintaining a friendly tone.

Each question should be framed in such a way that it acknowledges the user's prior answers and leads smoothly into the next inquiry. The questions should be longer, conversational, and make the user feel like they are part of a friendly dialogue rather than a rigid survey.

Previous questions and answers:
%s

Next question to be rephrased:
%s

Guidelines for rephrasing:

Acknowledge the user's previous answer.
Maintain a conversational, friendly tone.
Make the question feel natural and engaging, not just a short, rigid line.
Use open-ended phrases to keep the interaction flowing smoothly.

Please provide only the rephrased question in your response.`

const introPrompt = `You are the friendly host of a conversational form titled %q.
Form description: %s

Write a short, warm welcome (two or three sentences) that tells the respondent what the form is about and invites them to begin. Do not ask any of the form's questions yet.

Please provide only the welcome message in your response.`

const outroPrompt = `You are the friendly host of a conversational form titled %q. The respondent has just answered every question.

Their questions and answers:
%s

Write a short, warm closing message (two or three sentences) that thanks them, briefly acknowledges what they shared, and tells them they can now submit.

Please provide only the closing message in your response.`

// GenerateForm asks the model for a whole form matching description. The
// result has no ids and is meant to be loaded into a draft.
func (s *AIService) GenerateForm(ctx context.Context, description string) (*models.Form, error) {
	description = strings.TrimSpace(description)
	if len(description) < MinPromptLength {
		return nil, invalid(fmt.Sprintf("describe the form in at least %d characters", MinPromptLength))
	}
	if !s.gen.Available() {
		return nil, ai.ErrNotConfigured
	}

	content, err := s.gen.Generate(ctx, "", fmt.Sprintf(generateFormPrompt, description))
	s.metrics.AIRequest("generate", err)
	if err != nil {
		s.log.Error("form generation failed", zap.Error(err))
		return nil, fmt.Errorf("generate form: %w", err)
	}

	var data aiForm
	if err := json.Unmarshal([]byte(cleanJSONContent(content)), &data); err != nil {
		s.log.Warn("AI returned invalid JSON", zap.Error(err), zap.Int("length", len(content)))
		return nil, invalidCause("AI returned invalid JSON", err)
	}
	return convertGeneratedForm(data), nil
}

// RephraseQuestion streams a conversational version of question. history
// holds the prior exchanges, one per line.
func (s *AIService) RephraseQuestion(ctx context.Context, question, history string) (<-chan string, <-chan error) {
	return s.stream(ctx, "rephrase", fmt.Sprintf(rephrasePrompt, history, question))
}

func (s *AIService) IntroMessage(ctx context.Context, form *models.Form) (<-chan string, <-chan error) {
	description := form.Description
	if strings.TrimSpace(description) == "" {
		description = "(none)"
	}
	return s.stream(ctx, "intro", fmt.Sprintf(introPrompt, form.Title, description))
}

func (s *AIService) OutroMessage(ctx context.Context, form *models.Form, history string) (<-chan string, <-chan error) {
	return s.stream(ctx, "outro", fmt.Sprintf(outroPrompt, form.Title, history))
}

// stream forwards the generator's stream and records its outcome once it
// ends.
func (s *AIService) stream(ctx context.Context, kind, prompt string) (<-chan string, <-chan error) {
	deltas, errs := s.gen.Stream(ctx, "", prompt)

	out := make(chan string)
	outErrs := make(chan error, 1)
	go func() {
		defer close(outErrs)
		defer close(out)
		for d := range deltas {
			select {
			case out <- d:
			case <-ctx.Done():
			}
		}
		err := <-errs
		s.metrics.AIRequest(kind, err)
		if err != nil {
			if ctx.Err() == nil {
				s.log.Warn("AI stream failed", zap.String("kind", kind), zap.Error(err))
			}
			outErrs <- err
		}
	}()
	return out, outErrs
}

func cleanJSONContent(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}

func convertGeneratedForm(data aiForm) *models.Form {
	form := &models.Form{
		Title:           strings.TrimSpace(data.Title),
		Description:     data.Description,
		IsPublished:     data.IsPublished,
		Font:            data.Font,
		BackgroundColor: data.BackgroundColor,
	}
	for i, q := range data.Questions {
		qt := models.QuestionType(strings.ToLower(strings.TrimSpace(q.QuestionType)))
		if !qt.Valid() {
			qt = models.QuestionTypeText
		}
		opts := datatypes.JSONSlice[models.Option]{}
		if qt.IsChoice() {
			for j, o := range q.Options {
				id := o.ID
				if id == "" {
					id = uuid.NewString()
				}
				opts = append(opts, models.Option{ID: id, Text: o.Text, Order: j})
			}
		}
		form.Questions = append(form.Questions, models.Question{
			QuestionText: q.QuestionText,
			QuestionType: qt,
			OrderNum:     i,
			Required:     q.Required,
			Options:      opts,
		})
	}
	return form
}
