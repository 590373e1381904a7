// Package telegram lets respondents fill in published forms by chatting with
// a Telegram bot.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const DefaultAPIURL = "https://api.telegram.org"

// Client calls the Bot API methods the form bot needs.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient talks to apiURL, or to the public Bot API when apiURL is empty.
func NewClient(token, apiURL string) *Client {
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    fmt.Sprintf("%s/bot%s", strings.TrimRight(apiURL, "/"), token),
	}
}

func (c *Client) call(ctx context.Context, method string, payload interface{}) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+method, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", method, err)
	}

	var apiResp APIResponse
	if err := json.Unmarshal(data, &apiResp); err != nil {
		return nil, fmt.Errorf("decode %s (status %d): %w", method, resp.StatusCode, err)
	}
	if !apiResp.OK {
		return nil, fmt.Errorf("telegram %s: %s", method, apiResp.Description)
	}
	return apiResp.Result, nil
}

// SendMessage posts text to the chat. markup may be nil.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, markup *InlineKeyboardMarkup) (int64, error) {
	req := SendMessageRequest{ChatID: chatID, Text: text}
	if markup != nil {
		rm, err := json.Marshal(markup)
		if err != nil {
			return 0, err
		}
		req.ReplyMarkup = rm
	}

	result, err := c.call(ctx, "sendMessage", req)
	if err != nil {
		return 0, err
	}

	var msg MessageResult
	if err := json.Unmarshal(result, &msg); err != nil {
		return 0, fmt.Errorf("decode sendMessage result: %w", err)
	}
	return msg.MessageID, nil
}

func (c *Client) AnswerCallbackQuery(ctx context.Context, callbackID, text string) error {
	_, err := c.call(ctx, "answerCallbackQuery", AnswerCallbackQueryRequest{CallbackQueryID: callbackID, Text: text})
	return err
}

func (c *Client) SetWebhook(ctx context.Context, url, secretToken string) error {
	_, err := c.call(ctx, "setWebhook", SetWebhookRequest{URL: url, SecretToken: secretToken})
	return err
}

func (c *Client) DeleteWebhook(ctx context.Context) error {
	_, err := c.call(ctx, "deleteWebhook", struct{}{})
	return err
}
