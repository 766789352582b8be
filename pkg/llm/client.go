package llm

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Config holds configuration for the completion client.
type Config struct {
	// BaseURL is the base URL for the OpenAI-compatible API.
	// For OpenAI: https://api.openai.com/v1
	// For local servers (Ollama, vLLM, TEI): http://localhost:11434/v1
	BaseURL string

	// Model is the chat model to use.
	Model string

	// APIKey is the API key (required for OpenAI, optional for local servers).
	APIKey string

	// RequestsPerSecond limits the client-side request rate.
	// Default: 2
	RequestsPerSecond float64

	// Burst is the rate limiter burst size.
	// Default: 1
	Burst int

	// Timeout bounds a single completion call. Zero means no client-side
	// timeout beyond the caller's context.
	Timeout time.Duration
}

// ConfigFromEnv creates a Config from environment variables.
//
// Environment variables:
//   - STEWARD_LLM_BASE_URL: Base URL (default: https://api.openai.com/v1)
//   - STEWARD_LLM_MODEL: Model name (default: gpt-4o-mini)
//   - STEWARD_LLM_API_KEY: API key (optional for local servers)
//   - STEWARD_LLM_REQUESTS_PER_SECOND: Rate limit (default: 2)
func ConfigFromEnv() Config {
	baseURL := os.Getenv("STEWARD_LLM_BASE_URL")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}

	model := os.Getenv("STEWARD_LLM_MODEL")
	if model == "" {
		model = "gpt-4o-mini"
	}

	rps := 0.0
	if v := os.Getenv("STEWARD_LLM_REQUESTS_PER_SECOND"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			rps = parsed
		}
	}

	return Config{
		BaseURL:           baseURL,
		Model:             model,
		APIKey:            os.Getenv("STEWARD_LLM_API_KEY"),
		RequestsPerSecond: rps,
	}
}

// applyDefaults sets default values for unset fields.
func (c *Config) applyDefaults() {
	if c.RequestsPerSecond == 0 {
		c.RequestsPerSecond = 2
	}
	if c.Burst == 0 {
		c.Burst = 1
	}
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("%w: base URL required", ErrInvalidConfig)
	}
	if c.Model == "" {
		return fmt.Errorf("%w: model required", ErrInvalidConfig)
	}
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("%w: requests per second must be >= 0", ErrInvalidConfig)
	}
	return nil
}

// Client is a Completer backed by an OpenAI-compatible chat API.
type Client struct {
	llm     *openai.LLM
	limiter *rate.Limiter
	config  Config
	logger  *zap.Logger
}

// NewClient creates a completion client with the given configuration.
func NewClient(config Config, logger *zap.Logger) (*Client, error) {
	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	// langchaingo requires a token; use a placeholder for keyless local servers
	apiKey := config.APIKey
	if apiKey == "" {
		apiKey = "placeholder"
	}

	client, err := openai.New(
		openai.WithBaseURL(config.BaseURL),
		openai.WithModel(config.Model),
		openai.WithToken(apiKey),
	)
	if err != nil {
		return nil, fmt.Errorf("creating OpenAI client: %w", err)
	}

	return &Client{
		llm:     client,
		limiter: rate.NewLimiter(rate.Limit(config.RequestsPerSecond), config.Burst),
		config:  config,
		logger:  logger,
	}, nil
}

// Complete generates a chat completion for the request.
//
// The call blocks on the client-side rate limiter first; context cancellation
// during the wait is returned to the caller.
func (c *Client) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("%w: messages cannot be empty", ErrInvalidConfig)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait: %w", err)
	}

	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}

	content := make([]llms.MessageContent, 0, len(req.Messages))
	for _, msg := range req.Messages {
		content = append(content, llms.TextParts(chatMessageType(msg.Role), msg.Content))
	}

	opts := []llms.CallOption{}
	if req.Temperature > 0 {
		opts = append(opts, llms.WithTemperature(req.Temperature))
	}
	if req.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(req.MaxTokens))
	}

	start := time.Now()
	resp, err := c.llm.GenerateContent(ctx, content, opts...)
	if err != nil {
		return nil, fmt.Errorf("generating completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, ErrNoChoices
	}

	choice := resp.Choices[0]
	completion := &Completion{
		Content: choice.Content,
		Model:   c.config.Model,
		Usage: Usage{
			PromptTokens:     genInfoInt(choice.GenerationInfo, "PromptTokens"),
			CompletionTokens: genInfoInt(choice.GenerationInfo, "CompletionTokens"),
		},
	}

	c.logger.Debug("completion generated",
		zap.String("model", completion.Model),
		zap.Int("prompt_tokens", completion.Usage.PromptTokens),
		zap.Int("completion_tokens", completion.Usage.CompletionTokens),
		zap.Duration("elapsed", time.Since(start)),
	)

	return completion, nil
}

// chatMessageType maps a Message role to the langchaingo chat message type.
func chatMessageType(role string) llms.ChatMessageType {
	switch role {
	case RoleSystem:
		return llms.ChatMessageTypeSystem
	case RoleAI:
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}

// genInfoInt extracts an int from generation info, tolerating numeric type
// variance across providers.
func genInfoInt(info map[string]any, key string) int {
	if info == nil {
		return 0
	}
	switch v := info[key].(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
