package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"cloud.google.com/go/auth/credentials"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"google.golang.org/genai"

	"github.com/hermitai/server/internal/agent/model"
	logx "github.com/hermitai/server/pkg/logger"
)

const (
	BackendVertex = "vertex"
	BackendGemini = "gemini"

	cloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"
)

// ModelOptions are the generation parameters shared by both backends.
type ModelOptions struct {
	Model          string
	Temperature    float32
	MaxTokens      int
	ThinkingBudget int32
}

// NewVertexClient creates a genai client against Vertex AI. Service-account
// credentials are built from the configured email and private key; without
// them application default credentials are used.
func NewVertexClient(ctx context.Context, cfg model.PrimaryLLMConfig) (*genai.Client, error) {
	opts := &credentials.DetectOptions{Scopes: []string{cloudPlatformScope}}
	if cfg.ClientEmail != "" && cfg.PrivateKey != "" {
		b, err := json.Marshal(map[string]string{
			"type":         "service_account",
			"project_id":   cfg.Project,
			"client_email": cfg.ClientEmail,
			"private_key":  strings.ReplaceAll(cfg.PrivateKey, `\n`, "\n"),
			"token_uri":    "https://oauth2.googleapis.com/token",
		})
		if err != nil {
			return nil, fmt.Errorf("encode service account: %w", err)
		}
		opts.CredentialsJSON = b
	}

	creds, err := credentials.DetectDefault(opts)
	if err != nil {
		logx.Error().Err(err).Msg("Error loading Vertex AI credentials")
		return nil, fmt.Errorf("error loading Vertex AI credentials: %w", err)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Backend:     genai.BackendVertexAI,
		Project:     cfg.Project,
		Location:    cfg.Location,
		Credentials: creds,
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Vertex AI client")
		return nil, fmt.Errorf("error creating Vertex AI client: %w", err)
	}
	return client, nil
}

// NewGeminiClient creates a genai client against the Gemini API using an API key.
func NewGeminiClient(ctx context.Context, cfg model.SecondaryLLMConfig) (*genai.Client, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = cfg.BaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini client")
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}
	return client, nil
}

// NewGenAIBackend wraps a genai client in an Eino Gemini chat model.
func NewGenAIBackend(ctx context.Context, name string, client *genai.Client, opts ModelOptions) (*ChatModelBackend, error) {
	temperature := opts.Temperature
	maxTokens := opts.MaxTokens

	cfg := &gemini.Config{
		Client:      client,
		Model:       opts.Model,
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
	}
	if opts.ThinkingBudget > 0 {
		cfg.ThinkingConfig = &genai.ThinkingConfig{
			IncludeThoughts: false,
			ThinkingBudget:  genai.Ptr(opts.ThinkingBudget),
		}
	}

	chat, err := gemini.NewChatModel(ctx, cfg)
	if err != nil {
		logx.Error().Err(err).Str("backend", name).Msg("Error creating chat model")
		return nil, fmt.Errorf("error creating %s chat model: %w", name, err)
	}
	return NewChatModelBackend(name, opts.Model, chat), nil
}

// Clients holds the raw genai clients so other components (embeddings) can share them.
type Clients struct {
	Vertex *genai.Client
	Gemini *genai.Client
}

// NewBackends builds the primary and secondary backends from configuration.
// Either may be skipped when unconfigured, but at least one must exist; a
// lone secondary is promoted to primary.
func NewBackends(ctx context.Context, primary model.PrimaryLLMConfig, secondary model.SecondaryLLMConfig) (*FallbackClient, *Clients, error) {
	var (
		clients Clients
		first   Backend
		second  Backend
	)

	if primary.Enabled() {
		c, err := NewVertexClient(ctx, primary)
		if err != nil {
			return nil, nil, err
		}
		b, err := NewGenAIBackend(ctx, BackendVertex, c, ModelOptions{
			Model:          primary.Model,
			Temperature:    primary.Temperature,
			MaxTokens:      primary.MaxTokens,
			ThinkingBudget: primary.ThinkingBudget,
		})
		if err != nil {
			return nil, nil, err
		}
		clients.Vertex, first = c, b
	}

	if secondary.Enabled() {
		c, err := NewGeminiClient(ctx, secondary)
		if err != nil {
			return nil, nil, err
		}
		b, err := NewGenAIBackend(ctx, BackendGemini, c, ModelOptions{
			Model:          secondary.Model,
			Temperature:    secondary.Temperature,
			MaxTokens:      secondary.MaxTokens,
			ThinkingBudget: secondary.ThinkingBudget,
		})
		if err != nil {
			return nil, nil, err
		}
		clients.Gemini, second = c, b
	}

	if first == nil {
		first, second = second, nil
	}
	if first == nil {
		return nil, nil, fmt.Errorf("no LLM backend configured: set GOOGLE_PROJECT_ID or GEMINI_API_KEY")
	}

	client, err := NewFallbackClient(first, second)
	if err != nil {
		return nil, nil, err
	}
	return client, &clients, nil
}
