package classifier

import (
	"net/url"
	"strings"
)

// NormalizeURL strips tracking and positional query parameters that do not change
// page identity. Video URLs collapse to {origin}{path}?v={id} (or {origin}{path}
// without an id); other URLs keep their query but drop the fragment. Unparseable
// input is returned unchanged.
func NormalizeURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if host != "youtube.com" && !strings.HasSuffix(host, ".youtube.com") {
		u.Fragment = ""
		return u.String()
	}

	base := u.Scheme + "://" + u.Host + u.Path
	if v := u.Query().Get("v"); v != "" {
		return base + "?v=" + v
	}
	return base
}

// TopicCacheKey builds the topic-scoped cache key for a page.
func TopicCacheKey(rawURL, topic string) string {
	return "ai_" + NormalizeURL(rawURL) + "_" + topic
}

// MaxDescriptionRunes caps page descriptions sent to the AI classifier.
const MaxDescriptionRunes = 1000

// TruncateDescription trims s and cuts it to MaxDescriptionRunes.
func TruncateDescription(s string) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= MaxDescriptionRunes {
		return s
	}
	return string(r[:MaxDescriptionRunes])
}
