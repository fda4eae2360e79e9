// Package llm drafts feedback with a hosted language model.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/me/oblig/pkg/model"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.5-pro"

// Client sends a system and a user prompt and returns the model's answer.
type Client struct {
	client *genai.Client
	model  string
	logger *slog.Logger
}

// New creates a Client. An empty apiKey yields model.ErrMissingCredential.
func New(ctx context.Context, apiKey, modelName string, logger *slog.Logger) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("llm api key: %w", model.ErrMissingCredential)
	}
	if modelName == "" {
		modelName = DefaultModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Client{
		client: client,
		model:  modelName,
		logger: logger.With("component", "llm"),
	}, nil
}

// Complete returns the text of the model's reply to user under the given
// system instruction.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	start := time.Now()
	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(user), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
	})
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", errors.New("model returned an empty response")
	}
	c.logger.Info("completion received",
		"model", c.model,
		"prompt_chars", len(system)+len(user),
		"reply_chars", len(text),
		"duration", time.Since(start),
	)
	return text, nil
}
