package services

import (
	"html"
	"math/rand/v2"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// paywallPhrases mark pages that hide their content behind a subscription
var paywallPhrases = []string{
	"subscribe to continue",
	"paywall",
	"premium content",
	"subscription required",
	"sign in to read",
	"free articles remaining",
	"you have reached your",
	"unlock this article",
	"become a member",
	"join now to read",
}

// NormalizeURL resolves raw against base and returns it only if the result
// is an absolute http(s) URL with a host.
func NormalizeURL(raw, base string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}

	ref, err := url.Parse(raw)
	if err != nil {
		return "", false
	}

	if !ref.IsAbs() && base != "" {
		baseURL, err := url.Parse(strings.TrimSpace(base))
		if err != nil {
			return "", false
		}
		ref = baseURL.ResolveReference(ref)
	}

	if ref.Scheme != "http" && ref.Scheme != "https" {
		return "", false
	}
	if ref.Host == "" {
		return "", false
	}

	return ref.String(), true
}

// Domain returns the lower-cased host of rawURL, or "" when it has none
func Domain(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}

// SiteURL returns scheme://host of rawURL
func SiteURL(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

// CleanText decodes HTML entities and collapses whitespace
func CleanText(s string) string {
	if s == "" {
		return ""
	}
	s = html.UnescapeString(s)
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// StripHTML returns the visible text of an HTML fragment
func StripHTML(fragment string) string {
	if !strings.Contains(fragment, "<") {
		return CleanText(fragment)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return CleanText(fragment)
	}
	doc.Find("script, style").Remove()
	return CleanText(doc.Text())
}

// IsPaywalled reports whether text contains a known paywall phrase
func IsPaywalled(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range paywallPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// Truncate cuts s to at most n runes
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// DefaultHeaders returns the browser-like header set sent with every
// outbound request, with custom entries overriding the defaults.
// Accept-Encoding is left to the transport so responses are decoded for us.
func DefaultHeaders(userAgents []string, custom map[string]string) http.Header {
	h := http.Header{}
	if len(userAgents) > 0 {
		h.Set("User-Agent", userAgents[rand.IntN(len(userAgents))])
	}
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	h.Set("Accept-Language", "en-US,en;q=0.5")
	h.Set("Connection", "keep-alive")
	h.Set("Upgrade-Insecure-Requests", "1")

	for k, v := range custom {
		h.Set(k, v)
	}
	return h
}
