// Package gemini provides an understand.Model backed by Google's Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/tsawler/intelliparse/understand"
)

// DefaultModel is used when no model name is given.
const DefaultModel = "gemini-2.0-flash"

// Client talks to Gemini.
type Client struct {
	client      *genai.Client
	model       string
	temperature float32
}

// Option configures a Client.
type Option func(*Client)

// WithModel selects the model name.
func WithModel(name string) Option {
	return func(c *Client) {
		if name != "" {
			c.model = name
		}
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float32) Option {
	return func(c *Client) { c.temperature = t }
}

// New creates a Gemini client. An empty apiKey falls back to
// GEMINI_API_KEY and an empty model name to GEMINI_MODEL.
func New(ctx context.Context, apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY not found")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	c := &Client{client: client, model: os.Getenv("GEMINI_MODEL"), temperature: 0.2}
	if c.model == "" {
		c.model = DefaultModel
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}

// Name returns the model name.
func (c *Client) Name() string {
	return "gemini/" + c.model
}

// Generate sends p as a single-turn request. A GenerativeModel is built per
// call because its system instruction is mutable state.
func (c *Client) Generate(ctx context.Context, p understand.Prompt) (string, error) {
	m := c.client.GenerativeModel(c.model)
	m.SetTemperature(c.temperature)
	if p.System != "" {
		m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(p.System)}}
	}

	resp, err := m.GenerateContent(ctx, parts(p)...)
	if err != nil {
		if transient(err) {
			return "", understand.Transient(fmt.Errorf("gemini request failed: %w", err))
		}
		return "", fmt.Errorf("gemini request failed: %w", err)
	}
	return responseText(resp)
}

// parts lays out the images first and the instruction last.
func parts(p understand.Prompt) []genai.Part {
	out := make([]genai.Part, 0, len(p.Images)+1)
	for _, img := range p.Images {
		out = append(out, genai.ImageData(imageFormat(img.MIME), img.Data))
	}
	if p.Text != "" {
		out = append(out, genai.Text(p.Text))
	}
	return out
}

// imageFormat maps a MIME type to the subtype genai.ImageData expects.
func imageFormat(mime string) string {
	if sub, ok := strings.CutPrefix(mime, "image/"); ok && sub != "" {
		return sub
	}
	return "png"
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", understand.ErrEmptyResponse
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	if sb.Len() == 0 {
		return "", understand.ErrEmptyResponse
	}
	return sb.String(), nil
}

// transient reports rate limiting and server errors.
func transient(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == http.StatusTooManyRequests || gerr.Code >= 500
	}
	return understand.IsTransient(err)
}
