// Package openai adapts OpenAI's chat completion API to the
// agent.ChatModel interface.
package openai

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/dshills/agentwalk/agent"
)

// DefaultModel is used when no model name is given.
const DefaultModel = "gpt-4o-mini"

// Model is a ChatModel backed by OpenAI chat completions. Safe for
// concurrent use.
type Model struct {
	client *openai.Client
	model  string
}

// New creates an OpenAI-backed chat model. An empty model name uses
// DefaultModel.
func New(apiKey, model string) (*Model, error) {
	if apiKey == "" {
		return nil, errors.New("openai: API key cannot be empty")
	}
	if model == "" {
		model = DefaultModel
	}
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &Model{client: &client, model: model}, nil
}

// Chat implements agent.ChatModel.
func (m *Model) Chat(ctx context.Context, messages []agent.ChatMessage) (string, error) {
	if len(messages) == 0 {
		return "", errors.New("openai: no messages to send")
	}

	params, err := buildParams(m.model, messages)
	if err != nil {
		return "", err
	}

	completion, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", errors.New("openai: empty completion")
	}
	return completion.Choices[0].Message.Content, nil
}

func buildParams(model string, messages []agent.ChatMessage) (openai.ChatCompletionNewParams, error) {
	turns := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case agent.RoleSystem:
			turns = append(turns, openai.SystemMessage(msg.Content))
		case agent.RoleUser:
			turns = append(turns, openai.UserMessage(msg.Content))
		case agent.RoleAssistant:
			turns = append(turns, openai.AssistantMessage(msg.Content))
		default:
			return openai.ChatCompletionNewParams{}, fmt.Errorf("openai: unsupported role %q", msg.Role)
		}
	}

	return openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(model),
		Messages: turns,
	}, nil
}
