// Package ai defines the AI capabilities the pipeline consumes and the
// backends that provide them.
package ai

import (
	"context"
)

// Message is one chat turn
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest asks for a text completion
type ChatRequest struct {
	Model       string
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// EmbeddingRequest asks for the embedding of one input text
type EmbeddingRequest struct {
	Model      string
	Input      string
	Dimensions int
}

// SpeechRequest asks for synthesized audio
type SpeechRequest struct {
	Model string
	Voice string
	Speed float64
	Input string
}

// ChatCompleter produces chat-style text completions
type ChatCompleter interface {
	Complete(ctx context.Context, req ChatRequest) (string, error)
}

// Embedder produces embedding vectors
type Embedder interface {
	Embed(ctx context.Context, req EmbeddingRequest) ([]float32, error)
}

// SpeechSynthesizer turns text into audio bytes
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, req SpeechRequest) ([]byte, error)
}

// System and User build chat messages
func System(content string) Message { return Message{Role: "system", Content: content} }
func User(content string) Message   { return Message{Role: "user", Content: content} }
