// Package langchain provides an understand.Model on top of langchaingo, for
// local Ollama servers and OpenAI-compatible endpoints.
package langchain

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/tsawler/intelliparse/understand"
)

// Defaults for the Ollama provider.
const (
	DefaultOllamaModel = "llava"
	DefaultOllamaURL   = "http://localhost:11434"
	DefaultOpenAIModel = "gpt-4o-mini"
)

// Config describes a provider.
type Config struct {
	Model       string
	BaseURL     string
	APIKey      string
	Temperature float64
	MaxTokens   int
}

// Client adapts an llms.Model.
type Client struct {
	llm    llms.Model
	name   string
	config Config
}

// New wraps an existing langchaingo model.
func New(llm llms.Model, name string, cfg Config) *Client {
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 2000
	}
	return &Client{llm: llm, name: name, config: cfg}
}

// NewOllama connects to an Ollama server.
func NewOllama(cfg Config) (*Client, error) {
	if cfg.Model == "" {
		cfg.Model = DefaultOllamaModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOllamaURL
	}
	llm, err := ollama.New(ollama.WithModel(cfg.Model), ollama.WithServerURL(cfg.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM: %w", err)
	}
	return New(llm, "ollama/"+cfg.Model, cfg), nil
}

// NewOpenAI connects to OpenAI or a compatible endpoint.
func NewOpenAI(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not found")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	opts := []openai.Option{openai.WithModel(cfg.Model), openai.WithToken(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM: %w", err)
	}
	return New(llm, "openai/"+cfg.Model, cfg), nil
}

// Name returns the provider and model.
func (c *Client) Name() string {
	return c.name
}

// Generate sends p as a system message plus one human message carrying the
// images and the text.
func (c *Client) Generate(ctx context.Context, p understand.Prompt) (string, error) {
	resp, err := c.llm.GenerateContent(ctx, messages(p),
		llms.WithTemperature(c.config.Temperature),
		llms.WithMaxTokens(c.config.MaxTokens),
	)
	if err != nil {
		if understand.IsTransient(err) {
			return "", understand.Transient(fmt.Errorf("chat error: %w", err))
		}
		return "", fmt.Errorf("chat error: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0].Content == "" {
		return "", understand.ErrEmptyResponse
	}
	return resp.Choices[0].Content, nil
}

func messages(p understand.Prompt) []llms.MessageContent {
	var content []llms.MessageContent
	if p.System != "" {
		content = append(content, llms.TextParts(llms.ChatMessageTypeSystem, p.System))
	}
	human := llms.MessageContent{Role: llms.ChatMessageTypeHuman}
	for _, img := range p.Images {
		mime := img.MIME
		if mime == "" {
			mime = "image/png"
		}
		human.Parts = append(human.Parts, llms.BinaryPart(mime, img.Data))
	}
	if p.Text != "" {
		human.Parts = append(human.Parts, llms.TextContent{Text: p.Text})
	}
	return append(content, human)
}
