package models

import (
	"time"
)

// CuratedArticle is the AI-enriched view of exactly one RawArticle
type CuratedArticle struct {
	ID              int         `json:"id"`
	RawArticleID    int         `json:"raw_article_id"`
	RelevanceScore  *float64    `json:"relevance_score"`
	SummaryShort    string      `json:"summary_short"`
	SummaryDetailed string      `json:"summary_detailed"`
	Tags            []string    `json:"ai_tags"`
	CoverMediaID    *int        `json:"cover_media_id,omitempty"`
	Embedding       []float32   `json:"-"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
	Article         *RawArticle `json:"article,omitempty"`
	Cover           *MediaAsset `json:"cover,omitempty"`
}

// CuratedListParams filters and orders the curated article listing
type CuratedListParams struct {
	Ordering string
	Tag      string
	Limit    int
	Offset   int
}

// Orderings accepted by the curated listing, keyed by API name
var CuratedOrderings = map[string]string{
	"published_at":     "r.published_at ASC",
	"-published_at":    "r.published_at DESC",
	"relevance_score":  "c.relevance_score ASC",
	"-relevance_score": "c.relevance_score DESC",
	"created_at":       "c.created_at ASC",
	"-created_at":      "c.created_at DESC",
}

// DefaultCuratedOrdering is used when no ordering is requested
const DefaultCuratedOrdering = "-published_at"

// CuratedCreate carries the resolved enrichment of one raw article. Cover,
// when set, is a newly resolved image stored together with the article.
type CuratedCreate struct {
	RawArticleID    int
	RelevanceScore  float64
	SummaryShort    string
	SummaryDetailed string
	Tags            []string
	CoverMediaID    *int
	Cover           *MediaCandidate
	Embedding       []float32
}
