package infra

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/web_mon/internal/domain"
)

// fallbackModels follow the resolved model in the endpoint chain.
var fallbackModels = []string{"gemini-1.5-flash", "gemini-1.5-flash-latest", "gemini-pro"}

var fencePattern = regexp.MustCompile("(?i)```json|```")

const topicPrompt = `YOU ARE A PRODUCTIVITY AI SPECIALIST.
USER OBJECTIVE: Learning and focusing on "%[1]s".

YOUR TASK: Evaluate if the current web page is HELPFUL, RELATED, or a NECESSARY STEP for the user's objective.

INPUT DATA:
- Focus Topic: "%[1]s"
- Page Title: "%[2]s"
- Page URL: %[3]s
- Page Description: "%[4]s"

CRITICAL CLASSIFICATION RULES:
1. SEMANTIC BREADTH: If the focus topic is "learning code" or similar, any programming language, framework, library, tool or technical concept is RELATED.
2. RESEARCH & TOOLS: Search results, AI tools and documentation (Wikipedia, MDN) are ALWAYS RELATED.
3. CONTEXTUAL OVERLAP: If the page helps the user reach their goal or provides background knowledge, mark as RELATED.
4. UNRELATED DEFINITION: Only return UNRELATED for content that is PURELY entertainment (gameplay, esports, trailers, music videos) and definitely lacks educational value.
5. NO FALSE POSITIVES: When in doubt, return RELATED.

OUTPUT FORMAT (MINIFIED JSON ONLY, NO OTHER TEXT):
{"verdict":"RELATED|UNRELATED","reason":"<short explanation, at most 15 words>"}
`

const legacyPrompt = "Classify this page as work_or_study or entertainment. Return just one word.\nURL: %s\nTITLE: %s\nDESCRIPTION: %s"

// Reasons produced by the response parser.
const (
	ReasonNoAnswer      = "AI returned no answer (allowed by default)"
	ReasonDefault       = "Content analysis (default)"
	ReasonUnrelatedJSON = "Analysis: not related"
	ReasonUnrelatedText = "AI judged the page unrelated"
	ReasonUnspecified   = "You are drifting off your focus topic"
)

// TopicPrompt renders the classification prompt for a page and topic.
func TopicPrompt(page domain.PageRequest, topic string) string {
	return fmt.Sprintf(topicPrompt, topic, page.Title, page.URL, page.Description)
}

// GeminiClassifier implements domain.TopicClassifier and domain.LegacyClassifier.
type GeminiClassifier struct {
	client   *GeminiClient
	resolver *ModelResolver
	logger   *zap.Logger
}

// NewGeminiClassifier wires a classifier on top of client, resolving models through resolver.
func NewGeminiClassifier(client *GeminiClient, resolver *ModelResolver, logger *zap.Logger) *GeminiClassifier {
	return &GeminiClassifier{client: client, resolver: resolver, logger: logger}
}

// ClassifyByTopic asks Gemini whether page serves topic. Models are tried in
// chain order; a model-unavailable answer or a per-attempt timeout moves on,
// any other error is returned immediately.
func (g *GeminiClassifier) ClassifyByTopic(ctx context.Context, page domain.PageRequest, topic, apiKey string) (domain.Classification, error) {
	key := strings.TrimSpace(apiKey)
	prompt := TopicPrompt(page, topic)
	resolved := g.resolver.Resolve(ctx, key)

	var lastErr error
	for _, model := range EndpointChain(resolved) {
		text, err := g.attempt(ctx, key, model, prompt, ClassificationGeneration)
		if err == nil {
			return ParseVerdict(text), nil
		}
		lastErr = err

		if !g.tryNext(ctx, err) {
			return domain.Classification{}, err
		}
		if model == resolved && modelGone(err) {
			g.resolver.Invalidate(ctx, resolved)
		}
		g.logger.Debug("gemini model unavailable, trying next",
			zap.String("model", model), zap.Error(err))
	}

	if lastErr == nil {
		return domain.Classification{}, domain.ErrNoModelAvailable
	}
	return domain.Classification{}, fmt.Errorf("all models failed: %w", lastErr)
}

// ClassifyWorkOrEntertainment is the coarse two-label classifier kept for the
// manual-mode AI blocking toggle.
func (g *GeminiClassifier) ClassifyWorkOrEntertainment(ctx context.Context, page domain.PageRequest, apiKey string) (string, error) {
	prompt := fmt.Sprintf(legacyPrompt, page.URL, page.Title, page.Description)
	text, err := g.attempt(ctx, strings.TrimSpace(apiKey), FallbackModel, prompt, nil)
	if err != nil {
		return "", fmt.Errorf("failed to classify page: %w", err)
	}
	return LegacyLabel(text), nil
}

func (g *GeminiClassifier) attempt(ctx context.Context, apiKey, model, prompt string, gen *GenerationConfig) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, g.client.Timeout())
	defer cancel()

	text, err := g.client.Generate(attemptCtx, apiKey, model, prompt, gen)
	if err != nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return "", fmt.Errorf("model %s timed out after %s: %w", model, g.client.Timeout(), context.DeadlineExceeded)
	}
	return text, err
}

// modelGone reports whether err says the model itself is unknown to the API,
// as opposed to a slow answer.
func modelGone(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.ModelUnavailable()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return isModelUnavailable(err.Error())
}

func (g *GeminiClassifier) tryNext(ctx context.Context, err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.ModelUnavailable()
	}
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return true
	}
	return isModelUnavailable(err.Error())
}

// EndpointChain returns the models to try, resolved first, without duplicates.
func EndpointChain(resolved string) []string {
	chain := make([]string, 0, len(fallbackModels)+1)
	seen := make(map[string]bool, len(fallbackModels)+1)
	for _, m := range append([]string{resolved}, fallbackModels...) {
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		chain = append(chain, m)
	}
	return chain
}

// ParseVerdict turns model output into a classification. It never fails: the
// verdict is always RELATED or UNRELATED.
func ParseVerdict(text string) domain.Classification {
	if strings.TrimSpace(text) == "" {
		return domain.Related(ReasonNoAnswer)
	}

	type verdictJSON struct {
		Verdict string `json:"verdict"`
		Reason  string `json:"reason"`
	}
	result := verdictJSON{Verdict: string(domain.VerdictRelated), Reason: ReasonDefault}

	clean := strings.TrimSpace(fencePattern.ReplaceAllString(text, ""))
	start := strings.Index(clean, "{")
	end := strings.LastIndex(clean, "}")

	switch {
	case start != -1 && end > start:
		candidate := clean[start : end+1]
		var parsed verdictJSON
		if err := json.Unmarshal([]byte(candidate), &parsed); err == nil {
			result = parsed
		} else if strings.Contains(strings.ToUpper(candidate), `"VERDICT":"UNRELATED"`) {
			result = verdictJSON{Verdict: string(domain.VerdictUnrelated), Reason: ReasonUnrelatedJSON}
		}
	case strings.Contains(strings.ToUpper(text), string(domain.VerdictUnrelated)):
		result = verdictJSON{Verdict: string(domain.VerdictUnrelated), Reason: ReasonUnrelatedText}
	}

	reason := result.Reason
	if reason == "" {
		reason = ReasonUnspecified
	}
	return domain.Classification{Verdict: domain.NormalizeVerdict(result.Verdict), Reason: reason}
}

var workPattern = regexp.MustCompile(`(?i)work|study`)

// LegacyLabel maps free text to the work/entertainment label pair.
func LegacyLabel(text string) string {
	if workPattern.MatchString(text) {
		return domain.LabelWork
	}
	return domain.LabelEntertainment
}

var _ domain.TopicClassifier = (*GeminiClassifier)(nil)
var _ domain.LegacyClassifier = (*GeminiClassifier)(nil)
