package services

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"text/template"
	"time"

	"golang.org/x/time/rate"

	"genienews/internal/core"
	"genienews/internal/features/news/ai"
	"genienews/internal/features/news/models"
)

//go:embed "prompts"
var promptFS embed.FS

// Input budgets in characters, at roughly four characters per token
const (
	summaryInputChars   = 8000 * 4
	embeddingInputChars = 8000 * 4
	tagInputChars       = 4000 * 4
	relevanceInputChars = 2000 * 4

	tagPromptChars       = 1000
	relevancePromptChars = 800

	shortSummaryMax  = 500
	fallbackTitleMax = 200
	fallbackDetail   = 1000

	maxTags         = 8
	maxFallbackTags = 5

	// speechInputMax is the longest text the speech backend accepts
	speechInputMax = 4096
	speechClosing  = " That's all for today. Thanks for listening."
)

var (
	shortSectionRe    = regexp.MustCompile(`(?is)SHORT:\s*(.*?)\s*(?:DETAILED:|\z)`)
	detailedSectionRe = regexp.MustCompile(`(?is)DETAILED:\s*(.*)\z`)
	firstNumberRe     = regexp.MustCompile(`\d+`)
)

// fallbackTagKeywords are matched against the title when tagging fails
var fallbackTagKeywords = []struct {
	keyword string
	tag     string
}{
	{"ai", "artificial-intelligence"},
	{"machine learning", "machine-learning"},
	{"deep learning", "deep-learning"},
	{"neural network", "neural-networks"},
	{"gpt", "gpt"},
	{"openai", "openai"},
	{"google", "google"},
	{"microsoft", "microsoft"},
	{"llm", "large-language-models"},
	{"chatgpt", "chatgpt"},
	{"computer vision", "computer-vision"},
	{"nlp", "natural-language-processing"},
	{"robotics", "robotics"},
	{"autonomous", "autonomous-systems"},
}

var defaultFallbackTags = []string{"technology", "ai"}

// EnrichmentConfig configures the Enricher
type EnrichmentConfig struct {
	Model               string
	EmbeddingModel      string
	EmbeddingDimensions int
	Temperature         float64
	MaxTokens           int
	RelevanceKeywords   []string
	TTSModel            string
	TTSVoice            string
	TTSFallbackVoice    string
	TTSSpeed            float64

	// RequestsPerMinute caps outgoing AI calls; zero leaves them unthrottled
	RequestsPerMinute int

	RateLimitRetry  core.RetryPolicy
	ConnectionRetry core.RetryPolicy
}

// DefaultRateLimitRetry waits 2s, 4s and 8s between attempts
func DefaultRateLimitRetry() core.RetryPolicy {
	return core.RetryPolicy{
		Name:      "ai_rate_limit",
		Attempts:  4,
		MinWait:   2 * time.Second,
		MaxWait:   8 * time.Second,
		Retryable: ai.IsRateLimit,
	}
}

// DefaultConnectionRetry waits 1s, 2s and 4s between attempts
func DefaultConnectionRetry() core.RetryPolicy {
	return core.RetryPolicy{
		Name:      "ai_connection",
		Attempts:  4,
		MinWait:   time.Second,
		MaxWait:   4 * time.Second,
		Retryable: ai.IsConnection,
	}
}

// NewEnrichmentConfig builds the enrichment settings from the AI config
func NewEnrichmentConfig(cfg core.AIConfig) EnrichmentConfig {
	keywords := make([]string, 0, len(cfg.RelevanceKeywords))
	for _, kw := range cfg.RelevanceKeywords {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
			keywords = append(keywords, kw)
		}
	}

	return EnrichmentConfig{
		Model:               cfg.Model,
		EmbeddingModel:      cfg.EmbeddingModel,
		EmbeddingDimensions: cfg.EmbeddingDimensions,
		Temperature:         cfg.Temperature,
		MaxTokens:           cfg.MaxTokens,
		RelevanceKeywords:   keywords,
		TTSModel:            cfg.TTSModel,
		TTSVoice:            cfg.TTSVoice,
		TTSFallbackVoice:    cfg.TTSFallbackVoice,
		TTSSpeed:            cfg.TTSSpeed,
		RequestsPerMinute:   cfg.RequestsPerMinute,
		RateLimitRetry:      DefaultRateLimitRetry(),
		ConnectionRetry:     DefaultConnectionRetry(),
	}
}

// Enricher wraps the AI capabilities. Every method except Speak falls
// back to a deterministic value instead of failing, and no method depends
// on another having succeeded.
type Enricher struct {
	chat     ai.ChatCompleter
	embedder ai.Embedder
	speech   ai.SpeechSynthesizer
	cfg      EnrichmentConfig
	prompts  *template.Template
	throttle *rate.Limiter
	logger   *core.Logger
}

// NewEnricher creates an enricher. The speech synthesizer may be nil when
// no digest is produced.
func NewEnricher(chat ai.ChatCompleter, embedder ai.Embedder, speech ai.SpeechSynthesizer, cfg EnrichmentConfig, logger *core.Logger) (*Enricher, error) {
	prompts, err := template.New("prompts").
		Funcs(template.FuncMap{"inc": func(i int) int { return i + 1 }}).
		ParseFS(promptFS, "prompts/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to parse prompt templates: %w", err)
	}

	if cfg.EmbeddingDimensions <= 0 {
		cfg.EmbeddingDimensions = 1536
	}
	if cfg.RateLimitRetry.Attempts == 0 {
		cfg.RateLimitRetry = DefaultRateLimitRetry()
	}
	if cfg.ConnectionRetry.Attempts == 0 {
		cfg.ConnectionRetry = DefaultConnectionRetry()
	}

	var throttle *rate.Limiter
	if cfg.RequestsPerMinute > 0 {
		throttle = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}

	return &Enricher{
		chat:     chat,
		embedder: embedder,
		speech:   speech,
		cfg:      cfg,
		prompts:  prompts,
		throttle: throttle,
		logger:   logger,
	}, nil
}

// Dimensions returns the declared embedding length
func (e *Enricher) Dimensions() int {
	return e.cfg.EmbeddingDimensions
}

// call retries rate limits on the outer policy and connection failures on
// the inner one. Any other error is returned at once. Every attempt
// waits for the request throttle first.
func (e *Enricher) call(ctx context.Context, op func() error) error {
	attempt := func() error {
		if e.throttle != nil {
			if err := e.throttle.Wait(ctx); err != nil {
				return err
			}
		}
		return op()
	}

	return e.cfg.RateLimitRetry.Do(ctx, e.logger, func() error {
		return e.cfg.ConnectionRetry.Do(ctx, e.logger, attempt)
	})
}

func (e *Enricher) complete(ctx context.Context, prompt string, data any, temperature float64, maxTokens int) (string, error) {
	system, err := e.render(prompt+"_system", data)
	if err != nil {
		return "", err
	}
	user, err := e.render(prompt+"_user", data)
	if err != nil {
		return "", err
	}

	req := ai.ChatRequest{
		Model:       e.cfg.Model,
		Messages:    []ai.Message{ai.System(system), ai.User(user)},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}

	var reply string
	err = e.call(ctx, func() error {
		out, err := e.chat.Complete(ctx, req)
		if err != nil {
			return err
		}
		reply = out
		return nil
	})
	return strings.TrimSpace(reply), err
}

func (e *Enricher) render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := e.prompts.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to render prompt %s: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

type articlePrompt struct {
	Title   string
	Content string
}

// Summarize returns a short and a detailed summary. On failure the short
// summary is the title and the detailed one an excerpt of text.
func (e *Enricher) Summarize(ctx context.Context, text, title string) (string, string) {
	truncated := Truncate(text, summaryInputChars)

	reply, err := e.complete(ctx, "summary", articlePrompt{Title: title, Content: truncated}, e.cfg.Temperature, e.cfg.MaxTokens)
	if err != nil || reply == "" {
		e.logger.Error("Failed to generate summaries, using fallback", "title", Truncate(title, 50), "error", err)
		return fallbackSummaries(truncated, title)
	}

	return parseSummaries(reply)
}

func parseSummaries(reply string) (string, string) {
	var short, detailed string
	if m := shortSectionRe.FindStringSubmatch(reply); m != nil {
		short = strings.TrimSpace(m[1])
	}
	if m := detailedSectionRe.FindStringSubmatch(reply); m != nil {
		detailed = strings.TrimSpace(m[1])
	}

	if short == "" || detailed == "" {
		parts := strings.SplitN(reply, "\n\n", 2)
		short = strings.TrimSpace(parts[0])
		detailed = short
		if len(parts) > 1 {
			detailed = strings.TrimSpace(parts[1])
		}
	}

	if len([]rune(short)) > shortSummaryMax {
		short = Truncate(short, shortSummaryMax-3) + "..."
	}
	return short, detailed
}

func fallbackSummaries(text, title string) (string, string) {
	short := title
	if len([]rune(title)) > fallbackTitleMax {
		short = Truncate(title, fallbackTitleMax) + "..."
	}

	detailed := Truncate(text, fallbackDetail)
	if strings.TrimSpace(detailed) == "" {
		detailed = title
	}
	return short, detailed
}

// Embed returns a vector of exactly Dimensions floats. Any failure yields
// the zero vector.
func (e *Enricher) Embed(ctx context.Context, text string) []float32 {
	req := ai.EmbeddingRequest{
		Model:      e.cfg.EmbeddingModel,
		Input:      Truncate(text, embeddingInputChars),
		Dimensions: e.cfg.EmbeddingDimensions,
	}

	var vector []float32
	err := e.call(ctx, func() error {
		out, err := e.embedder.Embed(ctx, req)
		if err != nil {
			return err
		}
		vector = out
		return nil
	})

	switch {
	case err != nil:
		e.logger.Error("Failed to generate embedding, using zero vector", "error", err)
		return make([]float32, e.cfg.EmbeddingDimensions)
	case len(vector) != e.cfg.EmbeddingDimensions:
		e.logger.Error("Embedding has unexpected length, using zero vector",
			"got", len(vector), "want", e.cfg.EmbeddingDimensions)
		return make([]float32, e.cfg.EmbeddingDimensions)
	}

	e.logger.Debug("Generated embedding", "dimensions", len(vector))
	return vector
}

// Tag returns up to eight lower-cased tags, or keyword tags derived from
// the title when the model gives nothing usable
func (e *Enricher) Tag(ctx context.Context, text, title string) []string {
	content := Truncate(Truncate(text, tagInputChars), tagPromptChars)

	reply, err := e.complete(ctx, "tags", articlePrompt{Title: title, Content: content}, 0.3, 200)
	if err != nil {
		e.logger.Error("Failed to generate tags, using title keywords", "title", Truncate(title, 50), "error", err)
		return fallbackTags(title)
	}

	tags := parseTags(reply)
	if len(tags) == 0 {
		e.logger.Warn("Model returned no usable tags, using title keywords", "reply", Truncate(reply, 100))
		return fallbackTags(title)
	}
	return tags
}

func parseTags(reply string) []string {
	var tags []string
	seen := make(map[string]bool)
	for _, raw := range strings.Split(reply, ",") {
		tag := strings.ToLower(strings.TrimSpace(raw))
		if len(tag) <= 1 || seen[tag] {
			continue
		}
		seen[tag] = true
		tags = append(tags, tag)
		if len(tags) == maxTags {
			break
		}
	}
	return tags
}

func fallbackTags(title string) []string {
	lower := strings.ToLower(title)
	var tags []string
	for _, kw := range fallbackTagKeywords {
		if strings.Contains(lower, kw.keyword) {
			tags = append(tags, kw.tag)
			if len(tags) == maxFallbackTags {
				break
			}
		}
	}
	if len(tags) == 0 {
		return append([]string(nil), defaultFallbackTags...)
	}
	return tags
}

// KeywordScore is the fraction of relevance keywords present in text,
// saturating when a fifth of them match
func (e *Enricher) KeywordScore(text string) float64 {
	total := len(e.cfg.RelevanceKeywords)
	if total == 0 {
		return 0
	}

	lower := strings.ToLower(text)
	matches := 0
	for _, kw := range e.cfg.RelevanceKeywords {
		if strings.Contains(lower, kw) {
			matches++
		}
	}

	return round3(math.Min(1, float64(matches)/(float64(total)*0.2)))
}

// Score blends the keyword score (30%) with the model's 0-10 rating (70%).
// Below a keyword score of 0.1 the model is not asked and the keyword
// score is returned as is, as it is when the model call fails.
func (e *Enricher) Score(ctx context.Context, text, title string) float64 {
	keyword := e.KeywordScore(title + " " + text)
	if keyword < 0.1 {
		e.logger.Debug("Low keyword score, skipping model relevance", "keyword_score", keyword)
		return keyword
	}

	semantic, err := e.semanticScore(ctx, text, title)
	if err != nil {
		e.logger.Error("Failed to rate relevance, using keyword score", "error", err)
		return keyword
	}

	score := round3(0.3*keyword + 0.7*semantic)
	e.logger.Debug("Relevance score", "score", score, "keyword_score", keyword, "model_score", semantic)
	return math.Max(0, math.Min(1, score))
}

func (e *Enricher) semanticScore(ctx context.Context, text, title string) (float64, error) {
	content := Truncate(Truncate(text, relevanceInputChars), relevancePromptChars)

	reply, err := e.complete(ctx, "relevance", articlePrompt{Title: title, Content: content}, 0.1, 10)
	if err != nil {
		return 0, err
	}

	match := firstNumberRe.FindString(reply)
	if match == "" {
		e.logger.Warn("Could not parse relevance rating", "reply", reply)
		return 0.5, nil
	}
	rating, err := strconv.Atoi(match)
	if err != nil {
		return 0.5, nil
	}
	return math.Max(0, math.Min(1, round3(float64(rating)/10))), nil
}

type scriptPrompt struct {
	Date  string
	Items []models.DigestItem
}

// Script writes the spoken digest for items. On failure it returns a
// plain list of titles and sources.
func (e *Enricher) Script(ctx context.Context, date time.Time, items []models.DigestItem) string {
	data := scriptPrompt{Date: date.Format("Monday, January 2, 2006"), Items: items}

	maxTokens := e.cfg.MaxTokens
	if maxTokens < 1500 {
		maxTokens = 1500
	}

	reply, err := e.complete(ctx, "script", data, e.cfg.Temperature, maxTokens)
	if err != nil || reply == "" {
		e.logger.Error("Failed to generate digest script, using headline list", "error", err)
		return fallbackScript(data)
	}
	return reply
}

func fallbackScript(data scriptPrompt) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Here are today's top AI news stories for %s.", data.Date)
	for i, item := range data.Items {
		fmt.Fprintf(&b, " Story %d: %s, from %s.", i+1, item.Title, item.SourceName)
	}
	b.WriteString(" That's all for today.")
	return b.String()
}

// SpeechInput bounds script to what the speech backend accepts
func SpeechInput(script string) string {
	if len([]rune(script)) <= speechInputMax {
		return script
	}
	closing := []rune(speechClosing)
	return strings.TrimSpace(Truncate(script, speechInputMax-len(closing))) + speechClosing
}

// Speak synthesizes script into an audio file at dest. The configured
// voice is tried first, then the fallback voice once.
func (e *Enricher) Speak(ctx context.Context, script, dest string) error {
	if e.speech == nil {
		return fmt.Errorf("no speech backend configured")
	}

	req := ai.SpeechRequest{
		Model: e.cfg.TTSModel,
		Voice: e.cfg.TTSVoice,
		Speed: e.cfg.TTSSpeed,
		Input: SpeechInput(script),
	}

	var audio []byte
	err := e.call(ctx, func() error {
		out, err := e.speech.Synthesize(ctx, req)
		if err != nil {
			return err
		}
		audio = out
		return nil
	})

	if err != nil {
		if e.cfg.TTSFallbackVoice == "" || e.cfg.TTSFallbackVoice == req.Voice {
			return core.NewAIError("speech synthesis failed", err)
		}
		e.logger.Warn("Speech synthesis failed, trying fallback voice",
			"voice", req.Voice, "fallback_voice", e.cfg.TTSFallbackVoice, "error", err)

		req.Voice = e.cfg.TTSFallbackVoice
		audio, err = e.speech.Synthesize(ctx, req)
		if err != nil {
			return core.NewAIError("speech synthesis failed with fallback voice", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("failed to create audio directory: %w", err)
	}
	if err := os.WriteFile(dest, audio, 0o644); err != nil {
		return fmt.Errorf("failed to write audio file: %w", err)
	}

	e.logger.Info("Wrote digest audio", "path", dest, "bytes", len(audio), "voice", req.Voice)
	return nil
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
