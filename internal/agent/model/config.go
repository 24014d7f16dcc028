package model

import "time"

// ================ Config ================

// PrimaryLLMConfig configures the Vertex AI backend. When ClientEmail and
// PrivateKey are empty, application default credentials are used.
type PrimaryLLMConfig struct {
	Project        string  `envconfig:"GOOGLE_PROJECT_ID"`
	ClientEmail    string  `envconfig:"GOOGLE_CLIENT_EMAIL"`
	PrivateKey     string  `envconfig:"GOOGLE_PRIVATE_KEY"`
	Location       string  `envconfig:"GOOGLE_CLOUD_LOCATION" default:"us-central1"`
	Model          string  `envconfig:"VERTEX_MODEL" default:"gemini-2.5-flash"`
	MaxTokens      int     `envconfig:"VERTEX_MAX_TOKENS" default:"8192"`
	Temperature    float32 `envconfig:"VERTEX_TEMPERATURE" default:"0.1"`
	ThinkingBudget int32   `envconfig:"VERTEX_THINKING_BUDGET" default:"0"`
}

// Enabled reports whether enough configuration exists to build the backend.
func (c PrimaryLLMConfig) Enabled() bool {
	return c.Project != ""
}

// SecondaryLLMConfig configures the Gemini API backend.
type SecondaryLLMConfig struct {
	APIKey         string  `envconfig:"GEMINI_API_KEY"`
	BaseURL        string  `envconfig:"GEMINI_BASE_URL"`
	Model          string  `envconfig:"GEMINI_MODEL" default:"gemini-2.5-flash"`
	MaxTokens      int     `envconfig:"GEMINI_MAX_TOKENS" default:"8192"`
	Temperature    float32 `envconfig:"GEMINI_TEMPERATURE" default:"0.1"`
	ThinkingBudget int32   `envconfig:"GEMINI_THINKING_BUDGET" default:"0"`
}

func (c SecondaryLLMConfig) Enabled() bool {
	return c.APIKey != ""
}

type CreditConfig struct {
	CostPerQuery int `envconfig:"COST_PER_QUERY" default:"1"`
}

type SessionConfig struct {
	JWTSecret  string        `envconfig:"JWT_SECRET"`
	TTL        time.Duration `envconfig:"SESSION_TTL" default:"1h"`
	CookieName string        `envconfig:"SESSION_COOKIE_NAME" default:"authToken"`
}

type RetrievalConfig struct {
	Enabled        bool    `envconfig:"RAG_ENABLED" default:"true"`
	Collection     string  `envconfig:"RAG_COLLECTION" default:"knowledge_documents"`
	IndexName      string  `envconfig:"RAG_VECTOR_INDEX" default:"vector_index"`
	EmbeddingModel string  `envconfig:"RAG_EMBEDDING_MODEL" default:"text-embedding-004"`
	Threshold      float64 `envconfig:"RAG_RELEVANCE_THRESHOLD" default:"0.75"`
	Limit          int64   `envconfig:"RAG_LIMIT" default:"3"`
	NumCandidates  int64   `envconfig:"RAG_NUM_CANDIDATES" default:"100"`
}

type ToolConfig struct {
	CacheTTL time.Duration `envconfig:"TOOL_CACHE_TTL" default:"10m"`
	UsageTTL time.Duration `envconfig:"TOOL_USAGE_TTL" default:"720h"`
}
