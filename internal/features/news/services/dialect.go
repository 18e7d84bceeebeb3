package services

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/net/html/charset"

	"genienews/internal/features/news/models"
)

// errUnknownDialect is returned for documents that are neither RSS nor Atom
var errUnknownDialect = errors.New("document is not an RSS or Atom feed")

// rssDocument covers RSS 0.9x/2.0 and RSS 1.0 (RDF), which puts items
// next to the channel instead of inside it.
type rssDocument struct {
	Channel rssChannel `xml:"channel"`
	Items   []rssItem  `xml:"item"`
}

type rssChannel struct {
	Title string    `xml:"title"`
	Links []string  `xml:"link"`
	Items []rssItem `xml:"item"`
}

type rssItem struct {
	Title           string         `xml:"title"`
	Links           []string       `xml:"link"`
	GUID            string         `xml:"guid"`
	Description     string         `xml:"description"`
	ContentEncoded  string         `xml:"http://purl.org/rss/1.0/modules/content/ encoded"`
	Author          string         `xml:"author"`
	Creator         string         `xml:"http://purl.org/dc/elements/1.1/ creator"`
	PubDate         string         `xml:"pubDate"`
	DCDate          string         `xml:"http://purl.org/dc/elements/1.1/ date"`
	Categories      []string       `xml:"category"`
	Subjects        []string       `xml:"http://purl.org/dc/elements/1.1/ subject"`
	Enclosures      []rssEnclosure `xml:"enclosure"`
	MediaContent    []mediaElement `xml:"http://search.yahoo.com/mrss/ content"`
	MediaThumbnails []mediaElement `xml:"http://search.yahoo.com/mrss/ thumbnail"`
	MediaGroups     []mediaGroup   `xml:"http://search.yahoo.com/mrss/ group"`
}

type rssEnclosure struct {
	URL    string `xml:"url,attr"`
	Type   string `xml:"type,attr"`
	Length string `xml:"length,attr"`
}

type mediaElement struct {
	URL    string `xml:"url,attr"`
	Type   string `xml:"type,attr"`
	Medium string `xml:"medium,attr"`
	Width  string `xml:"width,attr"`
	Height string `xml:"height,attr"`
}

type mediaGroup struct {
	Content    []mediaElement `xml:"http://search.yahoo.com/mrss/ content"`
	Thumbnails []mediaElement `xml:"http://search.yahoo.com/mrss/ thumbnail"`
}

type atomDocument struct {
	Title   atomText    `xml:"title"`
	Links   []atomLink  `xml:"link"`
	Entries []atomEntry `xml:"entry"`
}

type atomText struct {
	Type  string `xml:"type,attr"`
	Text  string `xml:",chardata"`
	Inner string `xml:",innerxml"`
}

// Value returns the text, keeping markup for xhtml content
func (t atomText) Value() string {
	if t.Type == "xhtml" {
		return strings.TrimSpace(t.Inner)
	}
	return strings.TrimSpace(t.Text)
}

type atomLink struct {
	Href   string `xml:"href,attr"`
	Rel    string `xml:"rel,attr"`
	Type   string `xml:"type,attr"`
	Length string `xml:"length,attr"`
}

type atomPerson struct {
	Name string `xml:"name"`
}

type atomCategory struct {
	Term  string `xml:"term,attr"`
	Label string `xml:"label,attr"`
}

// atomEntry lists the media elements before Content so that media:content
// is not taken for the unqualified atom content element.
type atomEntry struct {
	Title           atomText       `xml:"title"`
	Links           []atomLink     `xml:"link"`
	ID              string         `xml:"id"`
	Summary         atomText       `xml:"summary"`
	MediaContent    []mediaElement `xml:"http://search.yahoo.com/mrss/ content"`
	MediaThumbnails []mediaElement `xml:"http://search.yahoo.com/mrss/ thumbnail"`
	MediaGroups     []mediaGroup   `xml:"http://search.yahoo.com/mrss/ group"`
	Content         atomText       `xml:"content"`
	Authors         []atomPerson   `xml:"author"`
	Published       string         `xml:"published"`
	Issued          string         `xml:"issued"`
	Updated         string         `xml:"updated"`
	Modified        string         `xml:"modified"`
	Created         string         `xml:"created"`
	Categories      []atomCategory `xml:"category"`
}

// ParseFeedDocument detects the feed dialect and converts the document
// into a ParsedFeed. A document that breaks half way is still returned,
// flagged Malformed, as long as at least one item was read.
func ParseFeedDocument(body []byte) (*models.ParsedFeed, error) {
	decoder := newFeedDecoder(bytes.NewReader(body))

	start, err := firstElement(decoder)
	if err != nil {
		return nil, err
	}

	var feed *models.ParsedFeed
	var decodeErr error

	switch strings.ToLower(start.Name.Local) {
	case "rss", "rdf":
		var doc rssDocument
		decodeErr = decoder.DecodeElement(&doc, &start)
		feed = convertRSS(&doc, start.Name.Local)
	case "feed":
		var doc atomDocument
		decodeErr = decoder.DecodeElement(&doc, &start)
		feed = convertAtom(&doc)
	default:
		return nil, fmt.Errorf("%w: root element <%s>", errUnknownDialect, start.Name.Local)
	}

	if decodeErr != nil && !errors.Is(decodeErr, io.EOF) {
		if len(feed.Items) == 0 {
			return nil, fmt.Errorf("malformed feed: %w", decodeErr)
		}
		feed.Malformed = true
		feed.Warning = decodeErr.Error()
	}

	return feed, nil
}

func newFeedDecoder(r io.Reader) *xml.Decoder {
	decoder := xml.NewDecoder(r)
	decoder.Strict = false
	decoder.AutoClose = xml.HTMLAutoClose
	decoder.Entity = xml.HTMLEntity
	decoder.CharsetReader = charset.NewReaderLabel
	return decoder
}

func firstElement(decoder *xml.Decoder) (xml.StartElement, error) {
	for {
		tok, err := decoder.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return xml.StartElement{}, fmt.Errorf("malformed feed: %w", errUnknownDialect)
			}
			return xml.StartElement{}, fmt.Errorf("malformed feed: %w", err)
		}
		if start, ok := tok.(xml.StartElement); ok {
			return start, nil
		}
	}
}

func convertRSS(doc *rssDocument, root string) *models.ParsedFeed {
	feed := &models.ParsedFeed{
		Title:   strings.TrimSpace(doc.Channel.Title),
		Link:    firstNonEmpty(doc.Channel.Links...),
		Dialect: "rss",
	}
	if strings.EqualFold(root, "rdf") {
		feed.Dialect = "rss1"
	}

	items := append(doc.Channel.Items, doc.Items...)
	feed.Items = make([]models.FeedItem, 0, len(items))

	for _, it := range items {
		item := models.FeedItem{
			Title:   strings.TrimSpace(it.Title),
			Link:    firstNonEmpty(it.Links...),
			GUID:    strings.TrimSpace(it.GUID),
			Summary: strings.TrimSpace(it.Description),
			Content: strings.TrimSpace(it.ContentEncoded),
			Author:  firstNonEmpty(it.Author, it.Creator),
			Updated: strings.TrimSpace(it.DCDate),
			PubDate: strings.TrimSpace(it.PubDate),
		}

		for _, c := range append(it.Categories, it.Subjects...) {
			item.Categories = append(item.Categories, models.FeedCategory{Text: c})
		}
		for _, enc := range it.Enclosures {
			item.Enclosures = append(item.Enclosures, models.FeedEnclosure{URL: enc.URL, Type: enc.Type, Length: enc.Length})
		}
		item.MediaContent, item.MediaThumbnails = collectMedia(it.MediaContent, it.MediaThumbnails, it.MediaGroups)

		feed.Items = append(feed.Items, item)
	}

	return feed
}

func convertAtom(doc *atomDocument) *models.ParsedFeed {
	feed := &models.ParsedFeed{
		Title:   doc.Title.Value(),
		Link:    alternateLink(doc.Links),
		Dialect: "atom",
		Items:   make([]models.FeedItem, 0, len(doc.Entries)),
	}

	for _, e := range doc.Entries {
		item := models.FeedItem{
			Title:     e.Title.Value(),
			Link:      alternateLink(e.Links),
			GUID:      strings.TrimSpace(e.ID),
			Summary:   e.Summary.Value(),
			Content:   e.Content.Value(),
			Published: firstNonEmpty(e.Published, e.Issued),
			Updated:   firstNonEmpty(e.Updated, e.Modified),
			Created:   strings.TrimSpace(e.Created),
		}
		if len(e.Authors) > 0 {
			item.Author = strings.TrimSpace(e.Authors[0].Name)
		}

		for _, c := range e.Categories {
			item.Categories = append(item.Categories, models.FeedCategory{Term: c.Term, Label: c.Label})
		}
		for _, l := range e.Links {
			if l.Rel == "enclosure" {
				item.Enclosures = append(item.Enclosures, models.FeedEnclosure{URL: l.Href, Type: l.Type, Length: l.Length})
			}
		}
		item.MediaContent, item.MediaThumbnails = collectMedia(e.MediaContent, e.MediaThumbnails, e.MediaGroups)

		feed.Items = append(feed.Items, item)
	}

	return feed
}

func collectMedia(content, thumbnails []mediaElement, groups []mediaGroup) ([]models.FeedMedia, []models.FeedMedia) {
	for _, g := range groups {
		content = append(content, g.Content...)
		thumbnails = append(thumbnails, g.Thumbnails...)
	}

	convert := func(elems []mediaElement) []models.FeedMedia {
		var out []models.FeedMedia
		for _, m := range elems {
			out = append(out, models.FeedMedia{
				URL:    strings.TrimSpace(m.URL),
				Type:   m.Type,
				Medium: m.Medium,
				Width:  atoiOrZero(m.Width),
				Height: atoiOrZero(m.Height),
			})
		}
		return out
	}

	return convert(content), convert(thumbnails)
}

func alternateLink(links []atomLink) string {
	for _, l := range links {
		if l.Rel == "" || l.Rel == "alternate" {
			return strings.TrimSpace(l.Href)
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func atoiOrZero(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
