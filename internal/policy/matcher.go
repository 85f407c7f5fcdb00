// Package policy implements the static blocking rules: domain/URL matching,
// block group aggregation and the default block groups shipped with webmon.
package policy

import (
	"net/url"
	"regexp"
	"strings"
)

// playlistIDPattern matches bare YouTube playlist ids (RD..., PL..., LL..., OL...).
var playlistIDPattern = regexp.MustCompile(`^(RD|PL|LL|OL)[A-Za-z0-9_-]+$`)

// parseAbsolute parses rawURL and rejects anything without a scheme and host.
func parseAbsolute(rawURL string) (*url.URL, bool) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Scheme == "" || u.Hostname() == "" {
		return nil, false
	}
	return u, true
}

// bareHost lower-cases a hostname and strips a leading "www.".
func bareHost(host string) string {
	return strings.TrimPrefix(strings.ToLower(host), "www.")
}

// hostMatches reports whether host equals domain or is a dot-bounded subdomain of it.
func hostMatches(host, domain string) bool {
	return host == domain || strings.HasSuffix(host, "."+domain)
}

// IsVideoHost reports whether host belongs to the YouTube host family.
func IsVideoHost(host string) bool {
	return hostMatches(bareHost(host), "youtube.com")
}

// IsBlockedByDomain reports whether the URL's host (www-stripped) equals or is a
// subdomain of any entry in blocked. Malformed URLs are never blocked.
func IsBlockedByDomain(rawURL string, blocked map[string]struct{}) bool {
	u, ok := parseAbsolute(rawURL)
	if !ok || len(blocked) == 0 {
		return false
	}

	host := bareHost(u.Hostname())
	for candidate := host; candidate != ""; {
		if _, hit := blocked[candidate]; hit {
			return true
		}
		i := strings.IndexByte(candidate, '.')
		if i < 0 {
			break
		}
		candidate = candidate[i+1:]
	}
	return false
}
