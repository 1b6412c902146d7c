// Package anthropic adapts Anthropic's Claude API to the agent.ChatModel
// interface.
package anthropic

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/dshills/agentwalk/agent"
)

// DefaultModel is used when no model name is given.
const DefaultModel = "claude-3-5-sonnet-20241022"

const maxTokens = 4096

// Model is a ChatModel backed by the Anthropic Messages API. Safe for
// concurrent use.
type Model struct {
	client *anthropic.Client
	model  string
}

// New creates a Claude-backed chat model. An empty model name uses
// DefaultModel; the API key comes from the caller (typically the
// ANTHROPIC_API_KEY environment variable).
func New(apiKey, model string) *Model {
	if model == "" {
		model = DefaultModel
	}
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &Model{client: &client, model: model}
}

// Chat implements agent.ChatModel.
func (m *Model) Chat(ctx context.Context, messages []agent.ChatMessage) (string, error) {
	params, err := buildParams(m.model, messages)
	if err != nil {
		return "", err
	}

	message, err := m.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic: %w", err)
	}

	var sb strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String(), nil
}

// buildParams maps chat turns onto Messages API params. System turns
// are collected and prepended as an initial user turn.
func buildParams(model string, messages []agent.ChatMessage) (anthropic.MessageNewParams, error) {
	var system strings.Builder
	var turns []anthropic.MessageParam

	for _, msg := range messages {
		switch msg.Role {
		case agent.RoleSystem:
			if system.Len() > 0 {
				system.WriteString("\n\n")
			}
			system.WriteString(msg.Content)
		case agent.RoleAssistant:
			turns = append(turns, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		case agent.RoleUser:
			turns = append(turns, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		default:
			return anthropic.MessageNewParams{}, fmt.Errorf("anthropic: unsupported role %q", msg.Role)
		}
	}

	if len(turns) == 0 && system.Len() == 0 {
		return anthropic.MessageNewParams{}, fmt.Errorf("anthropic: no messages to send")
	}
	if sys := system.String(); sys != "" {
		if len(turns) > 0 {
			// Prepend the system text to the first user turn.
			first := anthropic.NewUserMessage(anthropic.NewTextBlock(sys))
			turns = append([]anthropic.MessageParam{first}, turns...)
		} else {
			turns = []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(sys))}
		}
	}

	return anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: maxTokens,
		Messages:  turns,
	}, nil
}
