package usecase

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/web_mon/internal/classifier"
	"github.com/eliteGoblin/focusd/web_mon/internal/domain"
)

// Reasons produced by the orchestrator itself.
const (
	ReasonWaitingForData = "Waiting for page data..."
	ReasonNotConfigured  = "API key not configured or invalid."
	ReasonAIFailed       = "AI connection failed: "
)

// minAPIKeyLength is the shortest key worth sending to the API.
const minAPIKeyLength = 11

// Classifier decides whether a page serves the focus topic: rules first,
// then the topic cache, then the remote classifier. It never blocks on error.
type Classifier struct {
	ai      domain.TopicClassifier
	browser domain.TabBrowser
	fetcher domain.PageFetcher
	cache   *classifier.TTLCache[domain.Classification]
	logger  *zap.Logger
}

// NewClassifier creates the orchestrator. browser and fetcher may be nil.
func NewClassifier(
	ai domain.TopicClassifier,
	browser domain.TabBrowser,
	fetcher domain.PageFetcher,
	cache *classifier.TTLCache[domain.Classification],
	logger *zap.Logger,
) *Classifier {
	return &Classifier{
		ai:      ai,
		browser: browser,
		fetcher: fetcher,
		cache:   cache,
		logger:  logger,
	}
}

// GetClassification classifies req.Page against req.Topic.
func (c *Classifier) GetClassification(ctx context.Context, req domain.ClassifyRequest) domain.Classification {
	page := req.Page
	title := strings.TrimSpace(page.Title)

	if verdict, ok := classifier.RuleBasedVerdict(title, page.URL, req.Topic); ok {
		c.logger.Debug("rule verdict",
			zap.String("url", page.URL),
			zap.String("verdict", string(verdict.Verdict)))
		return verdict
	}

	key := classifier.TopicCacheKey(page.URL, req.Topic)
	if hit, ok := c.cache.Get(key); ok {
		c.logger.Debug("classification cache hit", zap.String("key", key))
		return hit
	}

	if isLoadingPlaceholder(title, page.URL) {
		return domain.Related(ReasonWaitingForData)
	}

	apiKey := strings.TrimSpace(req.APIKey)
	if len(apiKey) < minAPIKeyLength {
		return domain.Related(ReasonNotConfigured)
	}

	page.URL = classifier.NormalizeURL(page.URL)
	page.Description = c.describe(ctx, req.TabID, page)

	result, err := c.ai.ClassifyByTopic(ctx, page, req.Topic, apiKey)
	if err != nil {
		c.logger.Warn("AI classification failed", zap.String("url", page.URL), zap.Error(err))
		return resolveOnFailure(err)
	}

	c.logger.Info("AI classification",
		zap.String("url", page.URL),
		zap.String("topic", req.Topic),
		zap.String("verdict", string(result.Verdict)))
	c.cache.Set(key, result)
	return result
}

// ClearCache drops every cached topic verdict.
func (c *Classifier) ClearCache() {
	c.cache.Clear()
}

// describe returns the freshest description available: the content script's
// answer, then the page's own meta tags, then what the request carried.
func (c *Classifier) describe(ctx context.Context, tabID int, page domain.PageRequest) string {
	if c.browser != nil {
		desc, err := c.browser.RequestPageInfo(ctx, tabID)
		if err != nil {
			c.logger.Debug("page info unavailable", zap.Int("tab_id", tabID), zap.Error(err))
		} else if desc != "" {
			return classifier.TruncateDescription(desc)
		}
	}
	if c.fetcher != nil && page.Description == "" {
		desc, err := c.fetcher.Describe(ctx, page.URL)
		if err != nil {
			c.logger.Debug("page fetch failed", zap.String("url", page.URL), zap.Error(err))
		} else if desc != "" {
			return desc
		}
	}
	return classifier.TruncateDescription(page.Description)
}

// resolveOnFailure is the single fail-open policy: any infrastructure error
// yields RELATED with the error surfaced in the reason.
func resolveOnFailure(err error) domain.Classification {
	return domain.Related(ReasonAIFailed + err.Error())
}

// isLoadingPlaceholder catches the generic "YouTube" title a video page shows
// before its metadata arrives.
func isLoadingPlaceholder(title, rawURL string) bool {
	if !strings.EqualFold(title, "youtube") {
		return false
	}
	lower := strings.ToLower(rawURL)
	return strings.Contains(lower, "youtube.com") || strings.Contains(lower, "youtu.be")
}
