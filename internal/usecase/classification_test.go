package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/web_mon/internal/classifier"
	"github.com/eliteGoblin/focusd/web_mon/internal/domain"
)

const testAPIKey = "AIzaSyTestKey0001"

func newTestClassifier(ai *mockTopicClassifier, browser *mockBrowser, fetcher domain.PageFetcher) *Classifier {
	var b domain.TabBrowser
	if browser != nil {
		b = browser
	}
	return NewClassifier(ai, b, fetcher,
		classifier.NewTTLCache[domain.Classification](classifier.TopicCacheTTL), zap.NewNop())
}

func TestGetClassification_EducationalTitleSkipsAI(t *testing.T) {
	ai := &mockTopicClassifier{}
	c := newTestClassifier(ai, nil, nil)

	got := c.GetClassification(context.Background(), domain.ClassifyRequest{
		Page:   domain.PageRequest{URL: "https://www.youtube.com/watch?v=rfscVS0vtbw", Title: "Python Tutorial for Beginners"},
		Topic:  "learning python",
		APIKey: testAPIKey,
	})

	assert.Equal(t, domain.VerdictRelated, got.Verdict)
	assert.Contains(t, strings.ToLower(got.Reason), "educational content")
	assert.Equal(t, 0, ai.callCount())
}

func TestGetClassification_MusicVideoIsUnrelated(t *testing.T) {
	ai := &mockTopicClassifier{}
	c := newTestClassifier(ai, nil, nil)

	got := c.GetClassification(context.Background(), domain.ClassifyRequest{
		Page:   domain.PageRequest{URL: "https://www.youtube.com/watch?v=Llw9Q6akRo4", Title: "Lạc Trôi - Sơn Tùng M-TP (Official MV)"},
		Topic:  "learning python",
		APIKey: testAPIKey,
	})

	assert.Equal(t, domain.VerdictUnrelated, got.Verdict)
	assert.Equal(t, classifier.ReasonEntertainment, got.Reason)
	assert.Equal(t, 0, ai.callCount())
}

func TestGetClassification_ShortKeyNotConfigured(t *testing.T) {
	ai := &mockTopicClassifier{}
	c := newTestClassifier(ai, nil, nil)

	got := c.GetClassification(context.Background(), domain.ClassifyRequest{
		Page:   domain.PageRequest{URL: "https://example.com/post", Title: "Weekend plans"},
		Topic:  "tax law",
		APIKey: "short",
	})

	assert.Equal(t, domain.Related(ReasonNotConfigured), got)
	assert.Equal(t, 0, ai.callCount())
}

func TestGetClassification_LoadingPlaceholder(t *testing.T) {
	ai := &mockTopicClassifier{}
	c := newTestClassifier(ai, nil, nil)

	got := c.GetClassification(context.Background(), domain.ClassifyRequest{
		Page:   domain.PageRequest{URL: "https://www.youtube.com/watch?v=x1", Title: "YouTube"},
		Topic:  "tax law",
		APIKey: testAPIKey,
	})

	assert.Equal(t, domain.Related(ReasonWaitingForData), got)
	assert.Equal(t, 0, ai.callCount())
}

func TestGetClassification_AIErrorFailsOpen(t *testing.T) {
	ai := &mockTopicClassifier{err: errors.New("HTTP 503")}
	c := newTestClassifier(ai, nil, nil)

	req := domain.ClassifyRequest{
		Page:   domain.PageRequest{URL: "https://example.com/post", Title: "Weekend plans"},
		Topic:  "tax law",
		APIKey: testAPIKey,
	}
	got := c.GetClassification(context.Background(), req)

	assert.Equal(t, domain.VerdictRelated, got.Verdict)
	assert.Equal(t, "AI connection failed: HTTP 503", got.Reason)

	// failures are not cached
	c.GetClassification(context.Background(), req)
	assert.Equal(t, 2, ai.callCount())
}

func TestGetClassification_CachesByNormalizedURLAndTopic(t *testing.T) {
	ai := &mockTopicClassifier{result: domain.Unrelated("Gaming stream")}
	c := newTestClassifier(ai, nil, nil)
	ctx := context.Background()

	req := domain.ClassifyRequest{
		Page:   domain.PageRequest{URL: "https://www.youtube.com/watch?v=abc&t=42", Title: "Ranked grind"},
		Topic:  "tax law",
		APIKey: testAPIKey,
	}
	first := c.GetClassification(ctx, req)
	second := c.GetClassification(ctx, req)

	assert.Equal(t, domain.Unrelated("Gaming stream"), first)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, ai.callCount())
	assert.Equal(t, "https://www.youtube.com/watch?v=abc", ai.lastPage.URL)

	req.Topic = "cooking"
	c.GetClassification(ctx, req)
	assert.Equal(t, 2, ai.callCount())

	c.ClearCache()
	c.GetClassification(ctx, req)
	assert.Equal(t, 3, ai.callCount())
}

func TestGetClassification_CacheExpires(t *testing.T) {
	now := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	cache := classifier.NewTTLCacheWithClock[domain.Classification](classifier.TopicCacheTTL, func() time.Time { return now })
	ai := &mockTopicClassifier{result: domain.Related("Tax guide")}
	c := NewClassifier(ai, nil, nil, cache, zap.NewNop())

	req := domain.ClassifyRequest{
		Page:   domain.PageRequest{URL: "https://example.com/returns", Title: "Filing season"},
		Topic:  "tax law",
		APIKey: testAPIKey,
	}
	c.GetClassification(context.Background(), req)
	now = now.Add(299 * time.Second)
	c.GetClassification(context.Background(), req)
	assert.Equal(t, 1, ai.callCount())

	now = now.Add(2 * time.Second)
	c.GetClassification(context.Background(), req)
	assert.Equal(t, 2, ai.callCount())
}

func TestGetClassification_DescriptionSources(t *testing.T) {
	req := domain.ClassifyRequest{
		TabID:  4,
		Page:   domain.PageRequest{URL: "https://example.com/a", Title: "Something", Description: "from request"},
		Topic:  "tax law",
		APIKey: testAPIKey,
	}

	t.Run("content script wins", func(t *testing.T) {
		ai := &mockTopicClassifier{result: domain.Related("ok")}
		browser := newMockBrowser()
		browser.pageInfo = "fresh from page"
		c := newTestClassifier(ai, browser, &mockFetcher{description: "from meta"})

		c.GetClassification(context.Background(), req)
		assert.Equal(t, "fresh from page", ai.lastPage.Description)
	})

	t.Run("request description kept when content script is silent", func(t *testing.T) {
		ai := &mockTopicClassifier{result: domain.Related("ok")}
		fetcher := &mockFetcher{description: "from meta"}
		c := newTestClassifier(ai, newMockBrowser(), fetcher)

		c.GetClassification(context.Background(), req)
		assert.Equal(t, "from request", ai.lastPage.Description)
		assert.Equal(t, 0, fetcher.calls)
	})

	t.Run("fetcher fills an empty description", func(t *testing.T) {
		ai := &mockTopicClassifier{result: domain.Related("ok")}
		fetcher := &mockFetcher{description: "from meta"}
		c := newTestClassifier(ai, newMockBrowser(), fetcher)

		r := req
		r.Page.Description = ""
		c.GetClassification(context.Background(), r)
		assert.Equal(t, "from meta", ai.lastPage.Description)
	})

	t.Run("long descriptions are truncated", func(t *testing.T) {
		ai := &mockTopicClassifier{result: domain.Related("ok")}
		c := newTestClassifier(ai, nil, nil)

		r := req
		r.Page.Description = strings.Repeat("x", 3000)
		c.GetClassification(context.Background(), r)
		assert.Len(t, []rune(ai.lastPage.Description), classifier.MaxDescriptionRunes)
	})
}
