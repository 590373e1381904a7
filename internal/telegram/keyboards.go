package telegram

import (
	"strings"

	"chatforms-backend/internal/models"
)

const (
	callbackOption = "opt:"
	callbackSkip   = "skip"
)

// QuestionKeyboard offers one button per option and a skip button for
// optional questions. Free-text questions that are required get no keyboard.
func QuestionKeyboard(q *models.Question) *InlineKeyboardMarkup {
	var rows [][]InlineKeyboardButton
	if q.QuestionType.IsChoice() {
		for _, opt := range q.Options {
			rows = append(rows, []InlineKeyboardButton{
				{Text: opt.Text, CallbackData: callbackOption + opt.ID},
			})
		}
	}
	if !q.Required {
		rows = append(rows, []InlineKeyboardButton{{Text: "Skip", CallbackData: callbackSkip}})
	}
	if len(rows) == 0 {
		return nil
	}
	return &InlineKeyboardMarkup{InlineKeyboard: rows}
}

func parseCallback(data string) (optionID string, skip bool) {
	if data == callbackSkip {
		return "", true
	}
	return strings.TrimPrefix(data, callbackOption), false
}
