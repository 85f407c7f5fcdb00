package infra

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eliteGoblin/focusd/web_mon/internal/classifier"
)

func servePage(t *testing.T, status int, contentType, body string) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestHTMLPageFetcher_Describe(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "meta description",
			body: `<html><head><meta property="og:description" content="og text"><meta name="Description" content=" plain text "></head></html>`,
			want: "plain text",
		},
		{
			name: "open graph fallback",
			body: `<html><head><meta property="og:description" content="og text"></head></html>`,
			want: "og text",
		},
		{
			name: "no description",
			body: `<html><head><title>x</title></head><body>hi</body></html>`,
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url := servePage(t, http.StatusOK, "text/html; charset=utf-8", tt.body)
			got, err := NewHTMLPageFetcher(nil).Describe(context.Background(), url)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHTMLPageFetcher_Errors(t *testing.T) {
	url := servePage(t, http.StatusNotFound, "text/html", "missing")
	_, err := NewHTMLPageFetcher(nil).Describe(context.Background(), url)
	assert.ErrorContains(t, err, "HTTP 404")

	url = servePage(t, http.StatusOK, "application/pdf", "%PDF")
	got, err := NewHTMLPageFetcher(nil).Describe(context.Background(), url)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestHTMLPageFetcher_TruncatesLongDescriptions(t *testing.T) {
	long := strings.Repeat("a", classifier.MaxDescriptionRunes+10)
	url := servePage(t, http.StatusOK, "text/html", `<meta name="description" content="`+long+`">`)

	got, err := NewHTMLPageFetcher(nil).Describe(context.Background(), url)
	require.NoError(t, err)
	assert.Len(t, got, classifier.MaxDescriptionRunes)
}

