package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// OpenAI talks to any OpenAI-compatible chat completions endpoint.
type OpenAI struct {
	httpClient *http.Client
	apiKey     string
	apiURL     string
	model      string
}

func NewOpenAI(apiKey, apiURL, model string) *OpenAI {
	return &OpenAI{
		httpClient: &http.Client{Timeout: 120 * time.Second},
		apiKey:     apiKey,
		apiURL:     strings.TrimRight(apiURL, "/"),
		model:      model,
	}
}

func (c *OpenAI) Available() bool {
	return c.apiKey != ""
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *OpenAI) Generate(ctx context.Context, system, prompt string) (string, error) {
	if !c.Available() {
		return "", ErrNotConfigured
	}

	resp, err := c.do(ctx, system, prompt, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", fmt.Errorf("failed to parse API response: %w", err)
	}
	if chatResp.Error != nil {
		return "", fmt.Errorf("API error: %s", chatResp.Error.Message)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("empty response from AI")
	}
	return chatResp.Choices[0].Message.Content, nil
}

// Stream reads the server-sent event stream of a chat completion. Each
// "data:" line carries a JSON chunk; "[DONE]" ends the stream.
func (c *OpenAI) Stream(ctx context.Context, system, prompt string) (<-chan string, <-chan error) {
	if !c.Available() {
		return failedStream(ErrNotConfigured)
	}

	out := make(chan string)
	errs := make(chan error, 1)

	go func() {
		defer close(errs)
		defer close(out)

		resp, err := c.do(ctx, system, prompt, true)
		if err != nil {
			errs <- err
			return
		}
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "[DONE]" {
				return
			}

			var chunk chatResponse
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				errs <- fmt.Errorf("failed to parse stream chunk: %w", err)
				return
			}
			if chunk.Error != nil {
				errs <- fmt.Errorf("API error: %s", chunk.Error.Message)
				return
			}
			if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
				continue
			}

			select {
			case out <- chunk.Choices[0].Delta.Content:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
		if err := scanner.Err(); err != nil {
			if ctx.Err() != nil {
				err = ctx.Err()
			}
			errs <- fmt.Errorf("stream read failed: %w", err)
		}
	}()

	return out, errs
}

func (c *OpenAI) do(ctx context.Context, system, prompt string, stream bool) (*http.Response, error) {
	reqBody := chatRequest{Model: c.model, Stream: stream}
	if system != "" {
		reqBody.Messages = append(reqBody.Messages, chatMessage{Role: "system", Content: system})
	}
	reqBody.Messages = append(reqBody.Messages, chatMessage{Role: "user", Content: prompt})

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if stream {
		req.Header.Set("Accept", "text/event-stream")
	}

	client := c.httpClient
	if stream {
		// The overall client timeout would cut long streams; ctx bounds them instead.
		client = &http.Client{Transport: c.httpClient.Transport}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}
	return resp, nil
}
