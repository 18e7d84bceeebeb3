package migrations

import (
	"genienews/internal/core"
)

// Migration001CreateNewsTables creates the pipeline tables
var Migration001CreateNewsTables = core.Migration{
	Version:     1,
	Name:        "create_news_tables",
	Description: "Create sources, articles, media, curation, ingestion log and digest tables",
	UpSQL: `
		CREATE TABLE IF NOT EXISTS news_sources (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			feed_url TEXT NOT NULL UNIQUE,
			site_url TEXT NOT NULL DEFAULT '',
			active BOOLEAN NOT NULL DEFAULT 1,
			fetch_interval_minutes INTEGER NOT NULL DEFAULT 10080,
			max_articles_per_fetch INTEGER NOT NULL DEFAULT 50,
			requires_javascript BOOLEAN NOT NULL DEFAULT 0,
			custom_headers TEXT NOT NULL DEFAULT '{}',
			last_fetched_at DATETIME,
			last_error TEXT NOT NULL DEFAULT '',
			error_count INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS news_media_assets (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			type TEXT NOT NULL CHECK (type IN ('image', 'video')),
			source_url TEXT NOT NULL UNIQUE,
			proxy_url TEXT NOT NULL DEFAULT '',
			width INTEGER,
			height INTEGER,
			mime_type TEXT NOT NULL DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS news_raw_articles (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			source_id INTEGER NOT NULL REFERENCES news_sources(id) ON DELETE CASCADE,
			title TEXT NOT NULL,
			url TEXT NOT NULL UNIQUE,
			author TEXT NOT NULL DEFAULT '',
			published_at DATETIME NOT NULL,
			summary_feed TEXT NOT NULL DEFAULT '',
			raw_html TEXT NOT NULL DEFAULT '',
			tags TEXT NOT NULL DEFAULT '[]',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS news_raw_article_media (
			article_id INTEGER NOT NULL REFERENCES news_raw_articles(id) ON DELETE CASCADE,
			media_id INTEGER NOT NULL REFERENCES news_media_assets(id) ON DELETE CASCADE,
			position INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (article_id, media_id)
		);

		CREATE TABLE IF NOT EXISTS news_curated_articles (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			raw_article_id INTEGER NOT NULL UNIQUE REFERENCES news_raw_articles(id) ON DELETE CASCADE,
			relevance_score REAL,
			summary_short TEXT NOT NULL,
			summary_detailed TEXT NOT NULL,
			ai_tags TEXT NOT NULL DEFAULT '[]',
			cover_media_id INTEGER REFERENCES news_media_assets(id) ON DELETE SET NULL,
			embedding BLOB,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS news_ingestion_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			source_id INTEGER NOT NULL REFERENCES news_sources(id) ON DELETE CASCADE,
			status TEXT NOT NULL CHECK (status IN ('running', 'success', 'partial', 'failed')),
			articles_found INTEGER NOT NULL DEFAULT 0,
			articles_created INTEGER NOT NULL DEFAULT 0,
			articles_updated INTEGER NOT NULL DEFAULT 0,
			error_message TEXT NOT NULL DEFAULT '',
			started_at DATETIME NOT NULL,
			completed_at DATETIME,
			execution_time_seconds REAL
		);

		CREATE TABLE IF NOT EXISTS news_digest_segments (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			date TEXT NOT NULL UNIQUE,
			audio_file TEXT NOT NULL,
			script TEXT NOT NULL,
			article_ids TEXT NOT NULL DEFAULT '[]',
			duration_seconds INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);

		CREATE INDEX IF NOT EXISTS idx_news_sources_active ON news_sources(active);
		CREATE INDEX IF NOT EXISTS idx_news_raw_articles_source ON news_raw_articles(source_id);
		CREATE INDEX IF NOT EXISTS idx_news_raw_articles_published ON news_raw_articles(published_at DESC);
		CREATE INDEX IF NOT EXISTS idx_news_curated_score ON news_curated_articles(relevance_score DESC);
		CREATE INDEX IF NOT EXISTS idx_news_ingestion_logs_source ON news_ingestion_logs(source_id, started_at DESC);
	`,
	DownSQL: `
		DROP INDEX IF EXISTS idx_news_ingestion_logs_source;
		DROP INDEX IF EXISTS idx_news_curated_score;
		DROP INDEX IF EXISTS idx_news_raw_articles_published;
		DROP INDEX IF EXISTS idx_news_raw_articles_source;
		DROP INDEX IF EXISTS idx_news_sources_active;
		DROP TABLE IF EXISTS news_digest_segments;
		DROP TABLE IF EXISTS news_ingestion_logs;
		DROP TABLE IF EXISTS news_curated_articles;
		DROP TABLE IF EXISTS news_raw_article_media;
		DROP TABLE IF EXISTS news_raw_articles;
		DROP TABLE IF EXISTS news_media_assets;
		DROP TABLE IF EXISTS news_sources;
	`,
}
