package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

const geminiProvider = "gemini"

// GeminiClient provides chat completions through the Gemini API
type GeminiClient struct {
	client *genai.Client
}

var _ ChatCompleter = (*GeminiClient)(nil)

// GeminiOption adjusts the genai client config
type GeminiOption func(*genai.ClientConfig)

// WithGeminiEndpoint points the client at another base URL with its own HTTP client
func WithGeminiEndpoint(baseURL string, httpClient *http.Client) GeminiOption {
	return func(c *genai.ClientConfig) {
		c.HTTPOptions.BaseURL = baseURL
		c.HTTPClient = httpClient
	}
}

// NewGeminiClient creates a Gemini client for apiKey
func NewGeminiClient(ctx context.Context, apiKey string, opts ...GeminiOption) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	config := &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI}
	for _, opt := range opts {
		opt(config)
	}

	client, err := genai.NewClient(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &GeminiClient{client: client}, nil
}

// Complete sends system messages as the system instruction and the rest as turns
func (c *GeminiClient) Complete(ctx context.Context, req ChatRequest) (string, error) {
	system, contents := geminiContents(req.Messages)

	result, err := c.client.Models.GenerateContent(ctx, req.Model, contents, geminiConfig(req, system))
	if err != nil {
		return "", classifyGeminiError(err)
	}

	text := strings.TrimSpace(result.Text())
	if text == "" {
		return "", &APIError{Provider: geminiProvider, Message: "response carried no text"}
	}
	return text, nil
}

func geminiConfig(req ChatRequest, system *genai.Content) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{
		Temperature:       genai.Ptr(float32(req.Temperature)),
		SystemInstruction: system,
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}
	return config
}

// geminiContents splits system messages out of the conversation. Assistant
// turns become model turns.
func geminiContents(messages []Message) (*genai.Content, []*genai.Content) {
	var instructions []string
	var contents []*genai.Content

	for _, m := range messages {
		switch m.Role {
		case "system":
			instructions = append(instructions, m.Content)
		case "assistant":
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}

	if len(instructions) == 0 {
		return nil, contents
	}
	return genai.NewContentFromText(strings.Join(instructions, "\n\n"), genai.RoleUser), contents
}

// classifyGeminiError maps SDK failures onto the error taxonomy
func classifyGeminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(geminiProvider, apiErr.Code, apiErr.Message)
	}
	return classifyTransport(geminiProvider, err)
}
