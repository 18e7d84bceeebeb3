package services

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"genienews/internal/core"
	"genienews/internal/features/news/models"
)

const pipelineFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Example</title>
    <link>https://ex.com/</link>
    <item>
      <title>New Model Released</title>
      <link>https://ex.com/a</link>
      <description>A lab released new open model weights today.</description>
      <pubDate>%s</pubDate>
      <enclosure url="https://ex.com/a.jpg" type="image/jpeg"/>
    </item>
  </channel>
</rss>`

// recordingPublisher keeps every published event
type recordingPublisher struct {
	mu     sync.Mutex
	events []models.Event
}

func (p *recordingPublisher) Publish(_ context.Context, event models.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) ofType(eventType models.EventType) []models.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []models.Event
	for _, e := range p.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

// failingWriter refuses to store one raw article
type failingWriter struct {
	next      CuratedWriter
	failRawID int
}

func (w *failingWriter) Create(ctx context.Context, c models.CuratedCreate) (*models.CuratedArticle, error) {
	if c.RawArticleID == w.failRawID {
		return nil, core.NewDatabaseError("constraint failed", nil)
	}
	return w.next.Create(ctx, c)
}

type testPipeline struct {
	*testStores
	fake      *fakeAI
	enricher  *Enricher
	publisher *recordingPublisher
	ingestor  *Ingestor
	curator   *Curator
	digest    *DigestGenerator
	audioDir  string
}

func newTestPipeline(t *testing.T) *testPipeline {
	t.Helper()

	st := newTestStores(t)
	fake := newFakeAI()
	enricher := newTestEnricher(t, fake, 8)
	publisher := &recordingPublisher{}
	logger := core.NewNopLogger()
	media := NewMediaResolver(logger)
	audioDir := filepath.Join(t.TempDir(), "audio")

	return &testPipeline{
		testStores: st,
		fake:       fake,
		enricher:   enricher,
		publisher:  publisher,
		ingestor: NewIngestor(st.sources, st.articles, st.logs, testFetcher(t), media, publisher,
			IngestorConfig{UserAgents: []string{"test-agent"}, MaxWorkers: 2}, logger),
		curator: NewCurator(st.articles, st.curated, enricher, nil, media, publisher,
			CuratorConfig{BatchSize: 10, ContentBudget: 4000}, logger),
		digest: NewDigestGenerator(st.curated, st.segments, enricher, publisher,
			DigestConfig{AudioDir: audioDir, Size: 8}, logger),
		audioDir: audioDir,
	}
}

func feedServer(t *testing.T, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestEndToEndWithSummaryFailure(t *testing.T) {
	p := newTestPipeline(t)
	ctx := context.Background()
	srv, _ := feedServer(t, fmt.Sprintf(pipelineFeed, time.Now().UTC().Format(time.RFC1123Z)))
	createTestSource(t, p.sources, "Example", srv.URL+"/feed")

	run, err := p.ingestor.IngestDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, run.Created)
	assert.Zero(t, run.Failed)

	article, err := p.articles.GetByURL(ctx, "https://ex.com/a")
	require.NoError(t, err)
	assert.Equal(t, "New Model Released", article.Title)

	ingested := p.publisher.ofType(models.EventArticlesIngested)
	require.Len(t, ingested, 1)
	assert.Equal(t, 1, ingested[0].Count)
	assert.Equal(t, run.RunID, ingested[0].RunID)

	p.fake.summary = func() (string, error) { return "", apiFailed() }

	result, err := p.curator.CurateBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 1, result.Curated)
	assert.Empty(t, result.Errors)

	list, err := p.curated.List(ctx, models.CuratedListParams{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	curated := list[0]

	assert.Equal(t, "New Model Released", curated.SummaryShort)
	assert.Equal(t, "A lab released new open model weights today.", curated.SummaryDetailed)
	require.NotNil(t, curated.RelevanceScore)
	assert.InDelta(t, 0.71, *curated.RelevanceScore, 1e-9)
	assert.Equal(t, []string{"gpt-4", "openai", "large-language-models"}, curated.Tags)
	assert.Len(t, curated.Embedding, 8)
	require.NotNil(t, curated.Cover)
	assert.Equal(t, "https://ex.com/a.jpg", curated.Cover.SourceURL)

	require.Len(t, p.publisher.ofType(models.EventArticlesCurated), 1)
}

func TestReingestUpdatesInsteadOfDuplicating(t *testing.T) {
	p := newTestPipeline(t)
	ctx := context.Background()
	srv, _ := feedServer(t, fmt.Sprintf(pipelineFeed, time.Now().UTC().Format(time.RFC1123Z)))
	source := createTestSource(t, p.sources, "Example", srv.URL+"/feed")

	first, err := p.ingestor.IngestSource(ctx, source.ID)
	require.NoError(t, err)
	assert.Equal(t, models.IngestionSuccess, first.Status)
	assert.Equal(t, 1, first.Created)

	second, err := p.ingestor.IngestSource(ctx, source.ID)
	require.NoError(t, err)
	assert.Zero(t, second.Created)
	assert.Equal(t, 1, second.Updated)

	count, err := p.articles.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Len(t, p.publisher.ofType(models.EventArticlesIngested), 1)

	due, err := p.sources.ListDue(ctx, time.Now())
	require.NoError(t, err)
	assert.Empty(t, due)

	logs, err := p.logs.List(ctx, IngestionLogFilter{SourceID: source.ID})
	require.NoError(t, err)
	require.Len(t, logs, 2)
	for _, l := range logs {
		assert.Equal(t, models.IngestionSuccess, l.Status)
		assert.NotNil(t, l.CompletedAt)
	}
}

func TestIngestionDeactivatesFailingSource(t *testing.T) {
	p := newTestPipeline(t)
	ctx := context.Background()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()
	source := createTestSource(t, p.sources, "Gone", srv.URL+"/feed")

	for i := 0; i < models.MaxConsecutiveErrors; i++ {
		run, err := p.ingestor.IngestDue(ctx)
		require.NoError(t, err)
		require.Len(t, run.Sources, 1)
		assert.Equal(t, models.IngestionFailed, run.Sources[0].Status)
		assert.Equal(t, 1, run.Failed)
	}

	stored, err := p.sources.Get(ctx, source.ID)
	require.NoError(t, err)
	assert.False(t, stored.Active)
	assert.Equal(t, models.MaxConsecutiveErrors, stored.ErrorCount)
	assert.Contains(t, stored.LastError, "not found")

	run, err := p.ingestor.IngestDue(ctx)
	require.NoError(t, err)
	assert.Empty(t, run.Sources)
	assert.Equal(t, int32(models.MaxConsecutiveErrors), hits.Load())

	_, err = p.ingestor.IngestSource(ctx, source.ID)
	require.Error(t, err)

	failed, err := p.logs.List(ctx, IngestionLogFilter{Status: models.IngestionFailed})
	require.NoError(t, err)
	assert.Len(t, failed, models.MaxConsecutiveErrors)
	assert.Empty(t, p.publisher.ofType(models.EventArticlesIngested))
}

func TestIngestionMarksMalformedFeedPartial(t *testing.T) {
	p := newTestPipeline(t)
	ctx := context.Background()
	srv, _ := feedServer(t, `<rss><channel><title>Broken</title>
<item><title>Complete</title><link>https://x.example.com/1</link></item>
<item><title>Cut off`)
	source := createTestSource(t, p.sources, "Broken", srv.URL+"/feed")

	result, err := p.ingestor.IngestSource(ctx, source.ID)
	require.NoError(t, err)
	assert.Equal(t, models.IngestionPartial, result.Status)
	assert.Equal(t, 1, result.Created)

	stored, err := p.sources.Get(ctx, source.ID)
	require.NoError(t, err)
	assert.Zero(t, stored.ErrorCount)
	assert.NotNil(t, stored.LastFetchedAt)
}

func TestIngestionSkipsLeasedSource(t *testing.T) {
	p := newTestPipeline(t)
	ctx := context.Background()
	srv, hits := feedServer(t, fmt.Sprintf(pipelineFeed, time.Now().UTC().Format(time.RFC1123Z)))
	source := createTestSource(t, p.sources, "Example", srv.URL+"/feed")

	p.ingestor.leases.Store(source.ID, struct{}{})
	result, err := p.ingestor.IngestSource(ctx, source.ID)
	require.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.Zero(t, hits.Load())

	p.ingestor.leases.Delete(source.ID)
	result, err = p.ingestor.IngestSource(ctx, source.ID)
	require.NoError(t, err)
	assert.False(t, result.Skipped)
	assert.Equal(t, int32(1), hits.Load())
}

func seedRawArticles(t *testing.T, p *testPipeline, n int) []int {
	t.Helper()
	ctx := context.Background()
	source := createTestSource(t, p.sources, "Seed", "https://seed.example/feed")

	ids := make([]int, 0, n)
	for i := 0; i < n; i++ {
		entry := testEntry(fmt.Sprintf("https://seed.example/%d", i), fmt.Sprintf("AI model story %d", i),
			time.Now().Add(-time.Duration(i)*time.Minute))
		res, err := p.articles.UpsertFromEntry(ctx, source.ID, entry, nil)
		require.NoError(t, err)
		ids = append(ids, res.ArticleID)
	}
	return ids
}

func TestCurationIsolatesFailingArticle(t *testing.T) {
	p := newTestPipeline(t)
	ctx := context.Background()
	ids := seedRawArticles(t, p, 4)

	p.curator.curated = &failingWriter{next: p.curated, failRawID: ids[2]}

	result, err := p.curator.CurateBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, result.Processed)
	assert.Equal(t, 3, result.Curated)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, ids[2], result.Errors[0].ArticleID)
	assert.Equal(t, "https://seed.example/2", result.Errors[0].URL)

	n, err := p.curated.Count(ctx, models.CuratedListParams{})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	pending, err := p.articles.ListUncurated(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, ids[2], pending[0].ID)

	curatedEvents := p.publisher.ofType(models.EventArticlesCurated)
	require.Len(t, curatedEvents, 1)
	assert.Equal(t, 3, curatedEvents[0].Count)
}

func TestCurationWithNothingPending(t *testing.T) {
	p := newTestPipeline(t)

	result, err := p.curator.CurateBatch(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.Processed)
	assert.Empty(t, p.publisher.ofType(models.EventArticlesCurated))
}

func TestCurationUsesStoredHTML(t *testing.T) {
	p := newTestPipeline(t)
	ctx := context.Background()
	ids := seedRawArticles(t, p, 1)

	page := `<html><head><meta property="og:image" content="https://seed.example/og.jpg"></head>
<body><article><p>` + fmt.Sprintf("%0300d", 0) + `</p></article></body></html>`
	require.NoError(t, p.articles.SetRawHTML(ctx, ids[0], page))

	_, err := p.curator.CurateBatch(ctx)
	require.NoError(t, err)

	prompt := p.fake.prompt("summary")
	assert.Contains(t, prompt, fmt.Sprintf("%0300d", 0))
	assert.Contains(t, prompt, "Summary of AI model story 0")

	list, err := p.curated.List(ctx, models.CuratedListParams{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.NotNil(t, list[0].Cover)
	assert.Equal(t, "https://seed.example/og.jpg", list[0].Cover.SourceURL)
}

func TestPageContentExtraction(t *testing.T) {
	p := newTestPipeline(t)
	ctx := context.Background()
	ids := seedRawArticles(t, p, 1)
	article, err := p.articles.Get(ctx, ids[0])
	require.NoError(t, err)

	newCurator := func(result models.ExtractionResult) *Curator {
		extractor := NewContentExtractor(core.NewNopLogger(), &fakeStrategy{name: "fake", result: result})
		return NewCurator(p.articles, p.curated, p.enricher, extractor, NewMediaResolver(core.NewNopLogger()), p.publisher,
			CuratorConfig{BatchSize: 10, ContentBudget: 4000, ExtractContent: true, UserAgents: []string{"test-agent"}},
			core.NewNopLogger())
	}

	t.Run("paywalled page", func(t *testing.T) {
		content, html, err := newCurator(models.ExtractionResult{IsPaywalled: true, Error: "content is behind a paywall"}).
			pageContent(ctx, article)

		var appErr *core.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, core.ErrCodeExtraction, appErr.Code)
		assert.Contains(t, appErr.Error(), "paywalled")
		assert.Empty(t, content)
		assert.Empty(t, html)
	})

	t.Run("extracted page is stored", func(t *testing.T) {
		content, html, err := newCurator(models.ExtractionResult{Success: true, Content: "Body text", HTML: "<p>Body text</p>"}).
			pageContent(ctx, article)
		require.NoError(t, err)
		assert.Equal(t, "Body text", content)
		assert.Equal(t, "<p>Body text</p>", html)

		stored, err := p.articles.Get(ctx, ids[0])
		require.NoError(t, err)
		assert.True(t, stored.HasHTML())
	})
}

func TestCompositeText(t *testing.T) {
	assert.Equal(t, "summary", CompositeText("", "summary", 10))
	assert.Equal(t, "content", CompositeText("content", "", 10))
	assert.Equal(t, "conte\n\nsummary", CompositeText("content", "summary", 5))
}

func TestDigestIsIdempotentPerDay(t *testing.T) {
	p := newTestPipeline(t)
	ctx := context.Background()
	seedRawArticles(t, p, 3)
	_, err := p.curator.CurateBatch(ctx)
	require.NoError(t, err)

	date := time.Date(2024, 6, 3, 7, 0, 0, 0, time.UTC)
	first := p.digest.Generate(ctx, date)
	require.Equal(t, models.DigestSuccess, first.Status, first.Message)
	assert.Equal(t, "2024-06-03", first.Date)
	assert.Equal(t, "digest_2024-06-03.mp3", first.Filename)
	assert.Equal(t, 3, first.ArticleCount)
	assert.Equal(t, EstimateDuration("Good morning, here is your AI news."), first.DurationSeconds)
	assert.FileExists(t, filepath.Join(p.audioDir, first.Filename))

	scripts, speeches := p.fake.count("script"), p.fake.count("speech")

	second := p.digest.Generate(ctx, date)
	assert.Equal(t, models.DigestSkipped, second.Status)
	assert.Equal(t, scripts, p.fake.count("script"))
	assert.Equal(t, speeches, p.fake.count("speech"))

	seg, err := p.segments.GetByDate(ctx, "2024-06-03")
	require.NoError(t, err)
	assert.Equal(t, first.SegmentID, seg.ID)
	assert.Len(t, seg.ArticleIDs, 3)

	entries, err := os.ReadDir(p.audioDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Len(t, p.publisher.ofType(models.EventDigestGenerated), 1)
}

func TestDigestWithoutArticles(t *testing.T) {
	p := newTestPipeline(t)

	result := p.digest.Generate(context.Background(), time.Now())
	assert.Equal(t, models.DigestFailed, result.Status)
	assert.Equal(t, "no articles", result.Message)
	assert.Zero(t, p.fake.count("script"))
}

func TestDigestSpeechFailure(t *testing.T) {
	p := newTestPipeline(t)
	ctx := context.Background()
	seedRawArticles(t, p, 2)
	_, err := p.curator.CurateBatch(ctx)
	require.NoError(t, err)

	p.fake.speech = func(string) ([]byte, error) { return nil, apiFailed() }

	result := p.digest.Generate(ctx, time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, models.DigestFailed, result.Status)
	assert.Contains(t, result.Message, "speech synthesis failed")

	exists, err := p.segments.Exists(ctx, "2024-06-03")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestDigestPublishFailureLeavesDayOpen(t *testing.T) {
	p := newTestPipeline(t)
	ctx := context.Background()
	seedRawArticles(t, p, 2)
	_, err := p.curator.CurateBatch(ctx)
	require.NoError(t, err)

	// a non-empty directory at the final path makes the rename fail
	blocker := filepath.Join(p.audioDir, DigestFilename("2024-06-03"))
	require.NoError(t, os.MkdirAll(filepath.Join(blocker, "keep"), 0o755))

	date := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	result := p.digest.Generate(ctx, date)
	assert.Equal(t, models.DigestFailed, result.Status)
	assert.Contains(t, result.Message, "failed to publish audio file")

	exists, err := p.segments.Exists(ctx, "2024-06-03")
	require.NoError(t, err)
	assert.False(t, exists)

	entries, err := os.ReadDir(p.audioDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "staging file should be removed")

	require.NoError(t, os.RemoveAll(blocker))
	assert.Equal(t, models.DigestSuccess, p.digest.Generate(ctx, date).Status)
}

func TestEstimateDuration(t *testing.T) {
	assert.Equal(t, 0, EstimateDuration(""))
	// 750 characters, 150 words, one minute
	assert.Equal(t, 60, EstimateDuration(fmt.Sprintf("%0750d", 0)))
}

func TestDispatcherChainsStages(t *testing.T) {
	p := newTestPipeline(t)
	ctx := context.Background()
	srv, _ := feedServer(t, fmt.Sprintf(pipelineFeed, time.Now().UTC().Format(time.RFC1123Z)))
	createTestSource(t, p.sources, "Example", srv.URL+"/feed")

	dispatcher := NewDispatcher(8, core.NewNopLogger())
	p.ingestor.publisher = dispatcher
	p.curator.publisher = dispatcher
	p.digest.publisher = dispatcher

	var digests []models.DigestResult
	dispatcher.Subscribe(models.EventArticlesIngested, func(ctx context.Context, _ models.Event) error {
		_, err := p.curator.CurateBatch(ctx)
		return err
	})
	dispatcher.Subscribe(models.EventArticlesCurated, func(ctx context.Context, _ models.Event) error {
		digests = append(digests, p.digest.GenerateToday(ctx))
		return nil
	})
	dispatcher.Start(ctx)

	_, err := p.ingestor.IngestDue(ctx)
	require.NoError(t, err)
	dispatcher.Stop()

	require.Len(t, digests, 1)
	assert.Equal(t, models.DigestSuccess, digests[0].Status, digests[0].Message)
	exists, err := p.segments.Exists(ctx, time.Now().Format(models.DigestDateLayout))
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestDispatcherDropsAfterStop(t *testing.T) {
	dispatcher := NewDispatcher(1, core.NewNopLogger())
	var calls atomic.Int32
	dispatcher.Subscribe(models.EventDigestGenerated, func(context.Context, models.Event) error {
		calls.Add(1)
		return nil
	})
	dispatcher.Start(context.Background())

	dispatcher.Publish(context.Background(), NewEvent(models.EventDigestGenerated, 1, "run"))
	dispatcher.Stop()
	dispatcher.Publish(context.Background(), NewEvent(models.EventDigestGenerated, 1, "run"))

	assert.Equal(t, int32(1), calls.Load())
}

func TestDispatcherDrainAcceptsHandlerEventsOnly(t *testing.T) {
	dispatcher := NewDispatcher(4, core.NewNopLogger())
	release := make(chan struct{})
	var curated atomic.Int32

	dispatcher.Subscribe(models.EventArticlesIngested, func(ctx context.Context, e models.Event) error {
		<-release
		dispatcher.Publish(ctx, NewEvent(models.EventArticlesCurated, e.Count, e.RunID))
		return nil
	})
	dispatcher.Subscribe(models.EventArticlesCurated, func(context.Context, models.Event) error {
		curated.Add(1)
		return nil
	})
	dispatcher.Start(context.Background())
	dispatcher.Publish(context.Background(), NewEvent(models.EventArticlesIngested, 2, "run"))

	stopped := make(chan struct{})
	go func() {
		dispatcher.Stop()
		close(stopped)
	}()

	// wait until Stop has marked the dispatcher as stopping
	require.Eventually(t, func() bool {
		dispatcher.mu.Lock()
		defer dispatcher.mu.Unlock()
		return dispatcher.stopping
	}, time.Second, time.Millisecond)

	dispatcher.Publish(context.Background(), NewEvent(models.EventArticlesIngested, 1, "late"))
	close(release)

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
	assert.Equal(t, int32(1), curated.Load())
}

func TestDispatcherStopWithConcurrentPublishers(t *testing.T) {
	dispatcher := NewDispatcher(16, core.NewNopLogger())
	var handled atomic.Int32
	dispatcher.Subscribe(models.EventDigestGenerated, func(context.Context, models.Event) error {
		handled.Add(1)
		return nil
	})
	dispatcher.Start(context.Background())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				dispatcher.Publish(context.Background(), NewEvent(models.EventDigestGenerated, 1, "run"))
			}
		}()
	}

	dispatcher.Stop()
	wg.Wait()

	dispatcher.mu.Lock()
	defer dispatcher.mu.Unlock()
	assert.True(t, dispatcher.closed)
	assert.Zero(t, dispatcher.pending)
	assert.LessOrEqual(t, handled.Load(), int32(160))
}
