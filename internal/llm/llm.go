// Calls the chat-completion API that answers questions about the cached data
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/schema"
	"github.com/sirupsen/logrus"

	"github.com/iTrooz/ask-relay/internal/config"
)

// ErrInvalidResponse is returned when the API reply has no usable first choice
var ErrInvalidResponse = errors.New("invalid response from chat-completion API")

// Completer answers a single user prompt
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// OpenAI implements Completer against an OpenAI-compatible chat-completion endpoint
type OpenAI struct {
	model        *openai.ChatModel
	systemPrompt string
	modelName    string
}

// NewOpenAI creates the chat-completion client. The API key comes from cfg and is never logged.
func NewOpenAI(ctx context.Context, cfg config.LLMConfig, timeout time.Duration) (*OpenAI, error) {
	maxTokens := cfg.MaxTokens
	temperature := cfg.Temperature

	model, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		Model:       cfg.Model,
		MaxTokens:   &maxTokens,
		Temperature: &temperature,
		Timeout:     timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating chat model: %w", err)
	}

	return &OpenAI{
		model:        model,
		systemPrompt: cfg.SystemPrompt,
		modelName:    cfg.Model,
	}, nil
}

// Complete sends one system and one user message and returns the trimmed content of the first choice
func (o *OpenAI) Complete(ctx context.Context, prompt string) (string, error) {
	messages := []*schema.Message{
		schema.SystemMessage(o.systemPrompt),
		schema.UserMessage(prompt),
	}

	start := time.Now()
	out, err := o.model.Generate(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("error generating answer: %w", err)
	}
	if out == nil {
		return "", fmt.Errorf("%w: no message", ErrInvalidResponse)
	}

	answer := strings.TrimSpace(out.Content)
	if answer == "" {
		return "", fmt.Errorf("%w: empty message content", ErrInvalidResponse)
	}

	logrus.WithFields(logrus.Fields{
		"model":         o.modelName,
		"prompt_length": len(prompt),
		"answer_length": len(answer),
		"duration_ms":   time.Since(start).Milliseconds(),
	}).Debug("Chat completion done")

	return answer, nil
}
