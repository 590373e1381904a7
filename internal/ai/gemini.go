package ai

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// Gemini generates text with Google's Gemini API.
type Gemini struct {
	client      *genai.Client
	model       string
	streamModel string
}

// NewGemini returns an unavailable generator when apiKey is empty.
func NewGemini(ctx context.Context, apiKey, model, streamModel string) (*Gemini, error) {
	if model == "" {
		model = "gemini-1.5-pro-002"
	}
	if streamModel == "" {
		streamModel = model
	}
	g := &Gemini{model: model, streamModel: streamModel}
	if apiKey == "" {
		return g, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	g.client = client
	return g, nil
}

func (g *Gemini) Available() bool {
	return g.client != nil
}

func (g *Gemini) Generate(ctx context.Context, system, prompt string) (string, error) {
	if !g.Available() {
		return "", ErrNotConfigured
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), contentConfig(system))
	if err != nil {
		return "", fmt.Errorf("gemini generate failed: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("empty response from AI")
	}
	return text, nil
}

func (g *Gemini) Stream(ctx context.Context, system, prompt string) (<-chan string, <-chan error) {
	if !g.Available() {
		return failedStream(ErrNotConfigured)
	}

	out := make(chan string)
	errs := make(chan error, 1)

	go func() {
		defer close(errs)
		defer close(out)

		stream := g.client.Models.GenerateContentStream(ctx, g.streamModel, genai.Text(prompt), contentConfig(system))
		for resp, err := range stream {
			if err != nil {
				errs <- fmt.Errorf("gemini stream failed: %w", err)
				return
			}
			delta := resp.Text()
			if delta == "" {
				continue
			}
			select {
			case out <- delta:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
	}()

	return out, errs
}

func contentConfig(system string) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	return cfg
}
