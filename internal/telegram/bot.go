package telegram

import (
	"context"
	"errors"
	"strings"

	"chatforms-backend/internal/ai"
	"chatforms-backend/internal/conversation"
	"chatforms-backend/internal/metrics"
	"chatforms-backend/internal/services"
	"chatforms-backend/internal/ws"

	"go.uber.org/zap"
)

// UserAgent is recorded on form views and sessions started from Telegram.
const UserAgent = "telegram-bot"

const (
	msgUsage     = "Open a form link, or send /start followed by the form id."
	msgNotFound  = "That form does not exist or is not accepting responses."
	msgRequired  = "This question needs an answer."
	msgBadOption = "Please pick one of the offered options."
	msgExpired   = "This conversation has expired. Send /start with the form id to begin again."
	msgCancelled = "Your answers were discarded."
	msgFailed    = "Something went wrong, please try again later."
	msgThanks    = "Thank you, your answers have been recorded."
)

// Bot walks a chat through a published form with the same conversation flow
// the web client uses.
type Bot struct {
	client    *Client
	state     *StateManager
	forms     *services.FormService
	responses *services.ResponseService
	flows     *conversation.Registry
	prompter  conversation.Prompter
	hub       *ws.Hub
	metrics   *metrics.Metrics
	log       *zap.Logger
}

func NewBot(
	client *Client,
	forms *services.FormService,
	responses *services.ResponseService,
	flows *conversation.Registry,
	prompter conversation.Prompter,
	hub *ws.Hub,
	m *metrics.Metrics,
	log *zap.Logger,
) *Bot {
	return &Bot{
		client:    client,
		state:     NewStateManager(),
		forms:     forms,
		responses: responses,
		flows:     flows,
		prompter:  prompter,
		hub:       hub,
		metrics:   m,
		log:       log,
	}
}

// Handle processes one update. Updates of the same chat are handled one at a
// time.
func (b *Bot) Handle(ctx context.Context, upd Update) {
	switch {
	case upd.CallbackQuery != nil:
		q := upd.CallbackQuery
		if q.Message == nil {
			return
		}
		unlock := b.state.Lock(q.Message.Chat.ID)
		defer unlock()
		if err := b.client.AnswerCallbackQuery(ctx, q.ID, ""); err != nil {
			b.log.Warn("answer callback failed", zap.Error(err))
		}
		optionID, skip := parseCallback(q.Data)
		b.answer(ctx, q.Message.Chat.ID, conversation.AnswerInput{OptionID: optionID, Skip: skip})
	case upd.Message != nil:
		unlock := b.state.Lock(upd.Message.Chat.ID)
		defer unlock()
		b.handleMessage(ctx, upd.Message)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *Message) {
	chatID := msg.Chat.ID
	text := strings.TrimSpace(msg.Text)

	switch {
	case isCommand(msg, "start"):
		formID := strings.TrimSpace(extractStartArgs(text))
		if formID == "" {
			b.send(ctx, chatID, msgUsage, nil)
			return
		}
		b.start(ctx, chatID, formID)
	case isCommand(msg, "cancel"):
		if st, ok := b.state.Get(chatID); ok {
			b.flows.Remove(st.ResponseID)
			b.state.Clear(chatID)
		}
		b.send(ctx, chatID, msgCancelled, nil)
	default:
		if _, ok := b.state.Get(chatID); !ok {
			b.send(ctx, chatID, msgUsage, nil)
			return
		}
		b.answer(ctx, chatID, conversation.AnswerInput{Text: text})
	}
}

// start opens a response and shows the intro and the first question.
func (b *Bot) start(ctx context.Context, chatID int64, formID string) {
	if st, ok := b.state.Get(chatID); ok {
		b.flows.Remove(st.ResponseID)
		b.state.Clear(chatID)
	}

	form, err := b.forms.GetPublicFormByID(ctx, formID)
	if err != nil {
		if !errors.Is(err, services.ErrNotFound) {
			b.log.Error("load form for chat failed", zap.String("form_id", formID), zap.Error(err))
		}
		b.send(ctx, chatID, msgNotFound, nil)
		return
	}

	started, err := b.responses.InitializeResponse(ctx, formID, "", UserAgent)
	if err != nil {
		b.log.Error("start chat response failed", zap.String("form_id", formID), zap.Error(err))
		b.send(ctx, chatID, msgFailed, nil)
		return
	}
	b.state.Set(chatID, ChatState{ResponseID: started.ResponseID, FormID: formID})
	b.hub.Broadcast(formID, ws.Message{
		Type: ws.EventResponseStarted,
		Data: map[string]string{"response_id": started.ResponseID},
	})

	flow := b.flows.GetOrStart(started.ResponseID, form)
	b.speak(ctx, chatID, flow, form.Title)
	if _, err := flow.Advance(); err != nil {
		b.log.Error("leave intro failed", zap.Error(err))
		return
	}
	b.continueFlow(ctx, chatID, flow)
}

func (b *Bot) answer(ctx context.Context, chatID int64, in conversation.AnswerInput) {
	st, ok := b.state.Get(chatID)
	if !ok {
		b.send(ctx, chatID, msgUsage, nil)
		return
	}
	flow, ok := b.flows.Get(st.ResponseID)
	if !ok {
		b.state.Clear(chatID)
		b.send(ctx, chatID, msgExpired, nil)
		return
	}

	if _, err := flow.Answer(in); err != nil {
		switch {
		case errors.Is(err, conversation.ErrRequired):
			b.send(ctx, chatID, msgRequired, nil)
		case errors.Is(err, conversation.ErrInvalidOption):
			b.send(ctx, chatID, msgBadOption, nil)
		default:
			b.log.Warn("chat answer rejected", zap.String("response_id", st.ResponseID), zap.Error(err))
			b.send(ctx, chatID, msgFailed, nil)
		}
		return
	}
	b.continueFlow(ctx, chatID, flow)
}

// continueFlow shows the current question, or finishes the response once the
// questions run out.
func (b *Bot) continueFlow(ctx context.Context, chatID int64, flow *conversation.Flow) {
	step := flow.Step()
	if step.Kind == conversation.StepQuestion {
		b.speak(ctx, chatID, flow, step.Question.QuestionText)
		return
	}

	b.speak(ctx, chatID, flow, msgThanks)
	if _, err := flow.Advance(); err != nil {
		b.log.Error("leave outro failed", zap.Error(err))
		return
	}

	st, _ := b.state.Get(chatID)
	submitted, err := b.responses.SubmitResponses(ctx, st.ResponseID, flow.Answers())
	if err != nil {
		b.log.Error("submit chat response failed", zap.String("response_id", st.ResponseID), zap.Error(err))
		b.send(ctx, chatID, msgFailed, nil)
		return
	}
	b.flows.Remove(st.ResponseID)
	b.state.Clear(chatID)
	b.metrics.ResponseSubmitted()
	b.hub.Broadcast(st.FormID, ws.Message{
		Type: ws.EventResponseSubmitted,
		Data: map[string]interface{}{"response_id": submitted.ID, "answers": len(submitted.Answers)},
	})
}

// speak generates the text of the current step and sends it, falling back to
// fallback when generation fails.
func (b *Bot) speak(ctx context.Context, chatID int64, flow *conversation.Flow, fallback string) {
	text, err := ai.Collect(flow.Prompt(ctx, b.prompter))
	if err != nil || strings.TrimSpace(text) == "" {
		if err != nil && !errors.Is(err, ai.ErrNotConfigured) {
			b.log.Warn("chat prompt failed", zap.Int64("chat_id", chatID), zap.Error(err))
		}
		text = fallback
	}

	var markup *InlineKeyboardMarkup
	if step := flow.Step(); step.Kind == conversation.StepQuestion {
		markup = QuestionKeyboard(step.Question)
	}
	b.send(ctx, chatID, text, markup)
}

func (b *Bot) send(ctx context.Context, chatID int64, text string, markup *InlineKeyboardMarkup) {
	if _, err := b.client.SendMessage(ctx, chatID, text, markup); err != nil {
		b.log.Warn("send message failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func isCommand(msg *Message, cmd string) bool {
	for _, e := range msg.Entities {
		if e.Type == "bot_command" && e.Offset == 0 && e.Length <= len(msg.Text) {
			cmdText := msg.Text[e.Offset : e.Offset+e.Length]
			cmdText = strings.Split(cmdText, "@")[0]
			return cmdText == "/"+cmd
		}
	}
	return false
}

func extractStartArgs(text string) string {
	parts := strings.SplitN(text, " ", 2)
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}
