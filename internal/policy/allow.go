package policy

import (
	"net/url"
	"strings"

	"github.com/eliteGoblin/focusd/web_mon/internal/domain"
)

// IsAllowedURL reports whether rawURL is covered by any allow entry.
//
// Full URL entries match by literal prefix, by the same "v" (video id) or "list"
// (playlist id) query parameter on the same host, or by a youtu.be short link id.
// Bare entries match as host suffixes, as bare playlist ids on YouTube, or as
// protocol-less YouTube paths carrying v/list parameters. A broken entry never
// matches; a malformed rawURL is never allowed.
func IsAllowedURL(rawURL string, allow []domain.AllowEntry) bool {
	if len(allow) == 0 {
		return false
	}
	u, ok := parseAbsolute(rawURL)
	if !ok {
		return false
	}

	c := candidate{
		raw:   rawURL,
		host:  bareHost(u.Hostname()),
		query: u.Query(),
	}
	for _, entry := range allow {
		e := strings.TrimSpace(entry.Raw())
		if e == "" {
			continue
		}
		if c.matches(e) {
			return true
		}
	}
	return false
}

type candidate struct {
	raw   string
	host  string
	query url.Values
}

func (c candidate) matches(entry string) bool {
	if hasHTTPScheme(entry) {
		return c.matchesURLEntry(entry)
	}
	return c.matchesBareEntry(entry)
}

func hasHTTPScheme(s string) bool {
	l := strings.ToLower(s)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://")
}

func (c candidate) matchesURLEntry(entry string) bool {
	if strings.HasPrefix(c.raw, entry) {
		return true
	}

	eu, err := url.Parse(entry)
	if err != nil {
		return false
	}
	eq := eu.Query()
	sameHost := c.host == bareHost(eu.Hostname())

	if ev := eq.Get("v"); ev != "" && sameHost && c.query.Get("v") == ev {
		return true
	}
	if elist := eq.Get("list"); elist != "" && sameHost && c.query.Get("list") == elist {
		return true
	}

	if strings.EqualFold(eu.Hostname(), "youtu.be") {
		shortID := strings.TrimPrefix(eu.Path, "/")
		if shortID != "" && c.query.Get("v") == shortID && IsVideoHost(c.host) {
			return true
		}
	}
	return false
}

func (c candidate) matchesBareEntry(entry string) bool {
	eh := strings.TrimPrefix(entry, "www.")
	if hostMatches(c.host, strings.ToLower(eh)) {
		return true
	}

	if playlistIDPattern.MatchString(eh) && IsVideoHost(c.host) {
		if c.query.Get("list") == eh {
			return true
		}
	}

	if strings.Contains(strings.ToLower(entry), "youtube.com") && IsVideoHost(c.host) {
		_, rawQuery, _ := strings.Cut(entry, "?")
		eq, _ := url.ParseQuery(rawQuery)
		if ev := eq.Get("v"); ev != "" && c.query.Get("v") == ev {
			return true
		}
		if elist := eq.Get("list"); elist != "" && c.query.Get("list") == elist {
			return true
		}
	}
	return false
}
