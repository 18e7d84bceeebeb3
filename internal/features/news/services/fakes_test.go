package services

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"genienews/internal/core"
	"genienews/internal/features/news/ai"
	"genienews/internal/features/news/migrations"
	"genienews/internal/features/news/models"
)

// fakeAI implements every AI capability and counts calls per kind
type fakeAI struct {
	mu sync.Mutex

	summary   func() (string, error)
	tags      func() (string, error)
	relevance func() (string, error)
	script    func() (string, error)
	embed     func(dims int) ([]float32, error)
	speech    func(voice string) ([]byte, error)

	calls      map[string]int
	voices     []string
	lastPrompt map[string]string
}

func newFakeAI() *fakeAI {
	return &fakeAI{
		summary:   func() (string, error) { return "SHORT: A short summary.\n\nDETAILED: A detailed summary.", nil },
		tags:      func() (string, error) { return "GPT-4, OpenAI, large-language-models", nil },
		relevance: func() (string, error) { return "8", nil },
		script:    func() (string, error) { return "Good morning, here is your AI news.", nil },
		embed: func(dims int) ([]float32, error) {
			v := make([]float32, dims)
			for i := range v {
				v[i] = 0.25
			}
			return v, nil
		},
		speech:     func(string) ([]byte, error) { return []byte("ID3-fake-audio"), nil },
		calls:      make(map[string]int),
		lastPrompt: make(map[string]string),
	}
}

func promptKind(system string) string {
	switch {
	case strings.Contains(system, "summarization"):
		return "summary"
	case strings.Contains(system, "tags"):
		return "tags"
	case strings.Contains(system, "relevance"):
		return "relevance"
	default:
		return "script"
	}
}

func (f *fakeAI) Complete(_ context.Context, req ai.ChatRequest) (string, error) {
	kind := promptKind(req.Messages[0].Content)

	f.mu.Lock()
	f.calls[kind]++
	f.lastPrompt[kind] = req.Messages[1].Content
	handler := map[string]func() (string, error){
		"summary":   f.summary,
		"tags":      f.tags,
		"relevance": f.relevance,
		"script":    f.script,
	}[kind]
	f.mu.Unlock()

	return handler()
}

func (f *fakeAI) Embed(_ context.Context, req ai.EmbeddingRequest) ([]float32, error) {
	f.mu.Lock()
	f.calls["embed"]++
	handler := f.embed
	f.mu.Unlock()
	return handler(req.Dimensions)
}

func (f *fakeAI) Synthesize(_ context.Context, req ai.SpeechRequest) ([]byte, error) {
	f.mu.Lock()
	f.calls["speech"]++
	f.voices = append(f.voices, req.Voice)
	handler := f.speech
	f.mu.Unlock()
	return handler(req.Voice)
}

func (f *fakeAI) count(kind string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[kind]
}

func (f *fakeAI) prompt(kind string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastPrompt[kind]
}

func fastAIRetry(name string, retryable func(error) bool) core.RetryPolicy {
	return core.RetryPolicy{
		Name:      name,
		Attempts:  4,
		MinWait:   time.Millisecond,
		MaxWait:   4 * time.Millisecond,
		Retryable: retryable,
	}
}

func testEnrichmentConfig(dims int) EnrichmentConfig {
	return EnrichmentConfig{
		Model:               "test-model",
		EmbeddingModel:      "test-embedding",
		EmbeddingDimensions: dims,
		Temperature:         0.3,
		MaxTokens:           1000,
		RelevanceKeywords:   []string{"ai", "model", "gpt", "openai", "llm", "robotics", "neural", "agent", "vision", "transformer"},
		TTSModel:            "tts-test",
		TTSVoice:            "nova",
		TTSFallbackVoice:    "alloy",
		TTSSpeed:            1.0,
		RateLimitRetry:      fastAIRetry("ai_rate_limit", ai.IsRateLimit),
		ConnectionRetry:     fastAIRetry("ai_connection", ai.IsConnection),
	}
}

func newTestEnricher(t *testing.T, fake *fakeAI, dims int) *Enricher {
	t.Helper()
	e, err := NewEnricher(fake, fake, fake, testEnrichmentConfig(dims), core.NewNopLogger())
	require.NoError(t, err)
	return e
}

func newTestDB(t *testing.T) *core.Database {
	t.Helper()

	db, err := core.OpenDatabase(":memory:", core.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, migrations.NewManager(db, core.NewNopLogger()).Migrate(context.Background()))
	return db
}

func createTestSource(t *testing.T, sources *SourceService, name, feedURL string) *models.Source {
	t.Helper()

	source, err := sources.Create(context.Background(), models.SourceCreate{Name: name, FeedURL: feedURL})
	require.NoError(t, err)
	return source
}
