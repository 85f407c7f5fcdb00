package infra

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/eliteGoblin/focusd/web_mon/internal/classifier"
	"github.com/eliteGoblin/focusd/web_mon/internal/domain"
)

const (
	maxPageBytes = 1 << 20
	userAgent    = "webmon/1.0 (+focus classifier)"
)

// HTMLPageFetcher implements domain.PageFetcher by downloading the page and
// reading its description meta tags.
type HTMLPageFetcher struct {
	client *http.Client
}

// NewHTMLPageFetcher creates a fetcher using client (http.DefaultClient when nil).
func NewHTMLPageFetcher(client *http.Client) *HTMLPageFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTMLPageFetcher{client: client}
}

// Describe returns the page's meta description, "" when it has none.
func (f *HTMLPageFetcher) Describe(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html")

	res, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch page: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to fetch page: HTTP %d", res.StatusCode)
	}
	if ct := res.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "html") {
		return "", nil
	}

	doc, err := html.Parse(io.LimitReader(res.Body, maxPageBytes))
	if err != nil {
		return "", fmt.Errorf("failed to parse page: %w", err)
	}
	return classifier.TruncateDescription(ExtractDescription(doc)), nil
}

// ExtractDescription returns the first non-empty description meta tag.
// name="description" wins over og:description and twitter:description.
func ExtractDescription(doc *html.Node) string {
	found := map[string]string{}

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.Meta {
			key := strings.ToLower(attrVal(n, "name"))
			if key == "" {
				key = strings.ToLower(attrVal(n, "property"))
			}
			if c := strings.TrimSpace(attrVal(n, "content")); c != "" {
				if _, seen := found[key]; !seen {
					found[key] = c
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	for _, key := range []string{"description", "og:description", "twitter:description"} {
		if d := found[key]; d != "" {
			return d
		}
	}
	return ""
}

func attrVal(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

var _ domain.PageFetcher = (*HTMLPageFetcher)(nil)
