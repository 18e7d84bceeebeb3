package models

import (
	"time"
)

// MediaType distinguishes images from videos
type MediaType string

const (
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
)

// MediaAsset is a stored image or video reference, unique by SourceURL
type MediaAsset struct {
	ID        int       `json:"id"`
	Type      MediaType `json:"type"`
	SourceURL string    `json:"source_url"`
	ProxyURL  string    `json:"proxy_url,omitempty"`
	Width     int       `json:"width,omitempty"`
	Height    int       `json:"height,omitempty"`
	MimeType  string    `json:"mime_type,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// MediaCandidate is an image or video found in a feed entry or a page,
// not yet persisted. Zero width/height means unknown.
type MediaCandidate struct {
	Type     MediaType
	URL      string
	Width    int
	Height   int
	MimeType string
}
