package models

import (
	"time"
)

// ParsedFeed is a fetched feed after dialect normalization
type ParsedFeed struct {
	Title     string     `json:"title"`
	Link      string     `json:"link"`
	Dialect   string     `json:"dialect"`
	Items     []FeedItem `json:"items"`
	Malformed bool       `json:"malformed"`
	Warning   string     `json:"warning,omitempty"`
}

// FeedItem is one entry as the feed provided it. Every field is optional;
// the dialect adapter fills whichever variants the feed used.
type FeedItem struct {
	Title   string
	Link    string
	GUID    string
	Summary string // description or summary, may contain HTML
	Content string // content:encoded or atom content, may contain HTML
	Author  string

	// Date candidates, tried in this order
	Published string
	Updated   string
	Created   string
	PubDate   string

	Categories      []FeedCategory
	Enclosures      []FeedEnclosure
	MediaContent    []FeedMedia
	MediaThumbnails []FeedMedia
}

// FeedCategory is either a structured term or a flat string
type FeedCategory struct {
	Term  string
	Label string
	Text  string
}

// FeedEnclosure is an RSS enclosure or an Atom rel="enclosure" link
type FeedEnclosure struct {
	URL    string
	Type   string
	Length string
}

// FeedMedia is a Media RSS content or thumbnail element
type FeedMedia struct {
	URL    string
	Type   string
	Medium string
	Width  int
	Height int
}

// FeedEntry is a normalized, validated entry ready for upsert
type FeedEntry struct {
	Title       string
	URL         string
	PublishedAt time.Time
	Summary     string
	Author      string
	Tags        []string
	Item        *FeedItem
}
