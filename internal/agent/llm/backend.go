package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// ErrEmptyResponse marks a backend call that returned no usable text.
var ErrEmptyResponse = errors.New("backend returned null or empty response")

// Generation is one completed LLM call.
type Generation struct {
	Text         string
	Backend      string
	Model        string
	Usage        *schema.TokenUsage
	UsedFallback bool
}

// Backend is a single LLM endpoint returning fully aggregated text.
type Backend interface {
	Name() string
	Generate(ctx context.Context, prompt string) (*Generation, error)
}

// ChatModelBackend adapts an Eino chat model to Backend.
type ChatModelBackend struct {
	name  string
	model string
	chat  einomodel.BaseChatModel
}

func NewChatModelBackend(name, modelName string, chat einomodel.BaseChatModel) *ChatModelBackend {
	return &ChatModelBackend{name: name, model: modelName, chat: chat}
}

func (b *ChatModelBackend) Name() string {
	return b.name
}

func (b *ChatModelBackend) Generate(ctx context.Context, prompt string) (*Generation, error) {
	msg, err := b.chat.Generate(ctx, []*schema.Message{schema.UserMessage(prompt)})
	if err != nil {
		return nil, fmt.Errorf("%s generate: %w", b.name, err)
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return nil, fmt.Errorf("%s: %w", b.name, ErrEmptyResponse)
	}

	gen := &Generation{
		Text:    msg.Content,
		Backend: b.name,
		Model:   b.model,
	}
	if msg.ResponseMeta != nil {
		gen.Usage = msg.ResponseMeta.Usage
	}
	return gen, nil
}
