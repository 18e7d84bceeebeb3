package ai

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

const openAIProvider = "openai"

// OpenAIClient talks to an OpenAI-compatible API. It provides chat,
// embeddings and speech.
type OpenAIClient struct {
	client *openai.Client
	apiKey string
}

var (
	_ ChatCompleter     = (*OpenAIClient)(nil)
	_ Embedder          = (*OpenAIClient)(nil)
	_ SpeechSynthesizer = (*OpenAIClient)(nil)
)

// OpenAIOption configures the underlying go-openai client
type OpenAIOption func(*openai.ClientConfig)

// WithHTTPClient overrides the HTTP client
func WithHTTPClient(client *http.Client) OpenAIOption {
	return func(c *openai.ClientConfig) { c.HTTPClient = client }
}

// NewOpenAIClient creates a client for baseURL (e.g. https://api.openai.com/v1)
func NewOpenAIClient(baseURL, apiKey string, opts ...OpenAIOption) *OpenAIClient {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = strings.TrimRight(baseURL, "/")
	}
	config.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	for _, opt := range opts {
		opt(&config)
	}

	return &OpenAIClient{
		client: openai.NewClientWithConfig(config),
		apiKey: apiKey,
	}
}

// Complete runs a chat completion and returns the first choice
func (c *OpenAIClient) Complete(ctx context.Context, req ChatRequest) (string, error) {
	if err := c.ready(); err != nil {
		return "", err
	}

	messages := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, m := range req.Messages {
		messages[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: float32(req.Temperature),
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return "", classifyOpenAIError(err)
	}

	if len(resp.Choices) == 0 {
		return "", &APIError{Provider: openAIProvider, Message: "completion returned no choices"}
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Embed returns the embedding of req.Input
func (c *OpenAIClient) Embed(ctx context.Context, req EmbeddingRequest) ([]float32, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}

	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:          []string{req.Input},
		Model:          openai.EmbeddingModel(req.Model),
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
		Dimensions:     req.Dimensions,
	})
	if err != nil {
		return nil, classifyOpenAIError(err)
	}

	if len(resp.Data) == 0 {
		return nil, &APIError{Provider: openAIProvider, Message: "embedding response was empty"}
	}
	return resp.Data[0].Embedding, nil
}

// Synthesize returns MP3 audio for req.Input
func (c *OpenAIClient) Synthesize(ctx context.Context, req SpeechRequest) ([]byte, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}

	resp, err := c.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(req.Model),
		Input:          req.Input,
		Voice:          openai.SpeechVoice(req.Voice),
		ResponseFormat: openai.SpeechResponseFormatMp3,
		Speed:          req.Speed,
	})
	if err != nil {
		return nil, classifyOpenAIError(err)
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, &ConnectionError{Provider: openAIProvider, Err: err}
	}
	if len(audio) == 0 {
		return nil, &APIError{Provider: openAIProvider, Message: "speech response was empty"}
	}
	return audio, nil
}

func (c *OpenAIClient) ready() error {
	if c.apiKey == "" {
		return &APIError{Provider: openAIProvider, Message: "API key is not configured"}
	}
	return nil
}

// classifyOpenAIError maps go-openai failures onto the error taxonomy
func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(openAIProvider, apiErr.HTTPStatusCode, apiErr.Message)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return classifyStatus(openAIProvider, reqErr.HTTPStatusCode, strings.TrimSpace(string(reqErr.Body)))
	}

	return classifyTransport(openAIProvider, err)
}
