// Package google adapts Google's Gemini API to the agent.ChatModel
// interface.
package google

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/dshills/agentwalk/agent"
)

// DefaultModel is used when no model name is given.
const DefaultModel = "gemini-1.5-flash"

// Model is a ChatModel backed by the Gemini API. Close releases the
// underlying client when the model is no longer needed.
type Model struct {
	client *genai.Client
	model  string
}

// New creates a Gemini-backed chat model. An empty model name uses
// DefaultModel.
func New(ctx context.Context, apiKey, model string) (*Model, error) {
	if apiKey == "" {
		return nil, errors.New("google: API key cannot be empty")
	}
	if model == "" {
		model = DefaultModel
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("google: create client: %w", err)
	}
	return &Model{client: client, model: model}, nil
}

// Close releases the underlying client.
func (m *Model) Close() error {
	if m.client != nil {
		return m.client.Close()
	}
	return nil
}

// Chat implements agent.ChatModel.
//
// Gemini takes a single prompt per generation call, so the chat turns
// are rendered as a labeled transcript with the final turn left open
// for the model to continue.
func (m *Model) Chat(ctx context.Context, messages []agent.ChatMessage) (string, error) {
	if len(messages) == 0 {
		return "", errors.New("google: no messages to send")
	}

	model := m.client.GenerativeModel(m.model)
	resp, err := model.GenerateContent(ctx, genai.Text(renderTranscript(messages)))
	if err != nil {
		return "", fmt.Errorf("google: %w", err)
	}

	if len(resp.Candidates) == 0 {
		return "", errors.New("google: empty response")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil {
		return "", errors.New("google: empty response")
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return sb.String(), nil
}

func renderTranscript(messages []agent.ChatMessage) string {
	var sb strings.Builder
	for _, msg := range messages {
		switch msg.Role {
		case agent.RoleSystem:
			sb.WriteString(msg.Content)
			sb.WriteString("\n\n")
		case agent.RoleAssistant:
			sb.WriteString("Assistant: ")
			sb.WriteString(msg.Content)
			sb.WriteString("\n")
		default:
			sb.WriteString("User: ")
			sb.WriteString(msg.Content)
			sb.WriteString("\n")
		}
	}
	sb.WriteString("Assistant:")
	return sb.String()
}
