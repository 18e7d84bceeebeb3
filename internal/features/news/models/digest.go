package models

import (
	"time"
)

// DigestDateLayout is the calendar-day key of a digest
const DigestDateLayout = "2006-01-02"

// DigestSegment is one day's synthesized news audio. Date is unique.
type DigestSegment struct {
	ID              int       `json:"id"`
	Date            string    `json:"date"`
	AudioFile       string    `json:"audio_file"`
	Script          string    `json:"script"`
	ArticleIDs      []int     `json:"article_ids"`
	DurationSeconds int       `json:"duration_seconds"`
	CreatedAt       time.Time `json:"created_at"`
}

// DigestItem is the per-article context handed to script generation
type DigestItem struct {
	CuratedID      int
	Title          string
	SourceName     string
	Summary        string
	RelevanceScore float64
}
