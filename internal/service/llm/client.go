package llm

import (
	"context"
	"fmt"
	"strings"

	"medassist/internal/config"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"
)

const systemPrompt = "You are a helpful medical assistant."

// Client wraps a chat model behind a simple prompt-in, text-out call.
type Client struct {
	chatModel model.ToolCallingChatModel
}

// NewClient builds a chat model for the configured provider. The model
// name on ChatConfig overrides the provider default when set.
func NewClient(ctx context.Context, cfg *config.Config) (*Client, error) {
	providerName := strings.ToLower(cfg.Chat.Provider)
	provider, ok := cfg.Providers[providerName]
	if !ok {
		return nil, fmt.Errorf("provider config for %s not found", cfg.Chat.Provider)
	}

	modelName := provider.Model
	if cfg.Chat.Model != "" {
		modelName = cfg.Chat.Model
	}

	var (
		cm  model.ToolCallingChatModel
		err error
	)

	switch providerName {
	case "openai":
		cm, err = openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL: provider.BaseURL,
			Model:   modelName,
			APIKey:  provider.APIKey,
		})
		if err != nil {
			return nil, fmt.Errorf("create openai chat model: %w", err)
		}
	case "gemini":
		client, cerr := genai.NewClient(ctx, &genai.ClientConfig{APIKey: provider.APIKey})
		if cerr != nil {
			return nil, fmt.Errorf("create gemini client: %w", cerr)
		}
		cm, err = gemini.NewChatModel(ctx, &gemini.Config{
			Client: client,
			Model:  modelName,
		})
		if err != nil {
			return nil, fmt.Errorf("create gemini chat model: %w", err)
		}
	case "claude":
		claudeCfg := &claude.Config{
			APIKey:    provider.APIKey,
			Model:     modelName,
			MaxTokens: 2048,
		}
		if provider.BaseURL != "" {
			claudeCfg.BaseURL = &provider.BaseURL
		}
		cm, err = claude.NewChatModel(ctx, claudeCfg)
		if err != nil {
			return nil, fmt.Errorf("create claude chat model: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Chat.Provider)
	}

	return &Client{chatModel: cm}, nil
}

// Complete sends a single prompt and returns the model's reply.
func (c *Client) Complete(ctx context.Context, prompt string, temperature float32) (string, error) {
	messages := []*schema.Message{
		{Role: schema.System, Content: systemPrompt},
		{Role: schema.User, Content: prompt},
	}

	resp, err := c.chatModel.Generate(ctx, messages, model.WithTemperature(temperature))
	if err != nil {
		return "", fmt.Errorf("generate completion: %w", err)
	}
	return resp.Content, nil
}
