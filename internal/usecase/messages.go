package usecase

import (
	"context"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/web_mon/internal/classifier"
	"github.com/eliteGoblin/focusd/web_mon/internal/domain"
)

// Notification shown for an off-topic page.
const (
	UnrelatedTitle    = "Off-topic content detected"
	defaultPageTitle  = "Web page"
	unknownReason     = "Unknown"
	legacyConfidence  = 0.8
	verdictConfidence = 1.0
)

// MessageHandler answers classify messages from content scripts.
type MessageHandler struct {
	settings    *SettingsService
	classifier  *Classifier
	legacy      domain.LegacyClassifier
	legacyCache *classifier.TTLCache[domain.ClassificationPayload]
	browser     domain.TabBrowser
	notifier    domain.Notifier
	machine     *BlockMachine
	logger      *zap.Logger
}

// NewMessageHandler wires the handler. Both classification caches are dropped
// whenever the focus topic or the API key changes.
func NewMessageHandler(
	settings *SettingsService,
	c *Classifier,
	legacy domain.LegacyClassifier,
	legacyCache *classifier.TTLCache[domain.ClassificationPayload],
	browser domain.TabBrowser,
	notifier domain.Notifier,
	machine *BlockMachine,
	logger *zap.Logger,
) *MessageHandler {
	h := &MessageHandler{
		settings:    settings,
		classifier:  c,
		legacy:      legacy,
		legacyCache: legacyCache,
		browser:     browser,
		notifier:    notifier,
		machine:     machine,
		logger:      logger,
	}
	settings.OnChange(func(prev, next *domain.FocusConfiguration) {
		if prev.CurrentFocusTopic != next.CurrentFocusTopic || prev.GeminiAPIKey != next.GeminiAPIKey {
			logger.Info("focus topic or API key changed, clearing classification caches")
			h.ClearCaches()
		}
	})
	return h
}

// ClearCaches drops the topic and legacy caches.
func (h *MessageHandler) ClearCaches() {
	h.classifier.ClearCache()
	h.legacyCache.Clear()
}

// HandleClassifyMessage classifies the page a content script reported and
// delivers the verdict back to that tab. Delivery failures are logged only.
func (h *MessageHandler) HandleClassifyMessage(ctx context.Context, tabID int, page domain.PageRequest) error {
	cfg, err := h.settings.Current(ctx)
	if err != nil {
		return err
	}

	if cfg.FocusMode != domain.ModeAI {
		h.handleLegacy(ctx, cfg, tabID, page)
		return nil
	}

	result := h.classifier.GetClassification(ctx, domain.ClassifyRequest{
		TabID:  tabID,
		Page:   page,
		Topic:  cfg.CurrentFocusTopic,
		APIKey: cfg.GeminiAPIKey,
	})

	if result.Verdict == domain.VerdictUnrelated {
		h.notifyUnrelated(ctx, page.Title, result.Reason)
		if _, err := h.machine.Flag(ctx, tabID, page.URL); err != nil {
			h.logger.Warn("failed to flag page", zap.Error(err))
		}
	}

	h.deliver(ctx, tabID, domain.ClassificationPayload{
		URL:        page.URL,
		Label:      string(result.Verdict),
		Reason:     result.Reason,
		Confidence: verdictConfidence,
	})
	return nil
}

// handleLegacy runs the work/entertainment classifier used by the manual-mode
// AI blocking toggle.
func (h *MessageHandler) handleLegacy(ctx context.Context, cfg *domain.FocusConfiguration, tabID int, page domain.PageRequest) {
	if !cfg.AIBlockingEnabled || cfg.GeminiAPIKey == "" || h.legacy == nil {
		return
	}

	if hit, ok := h.legacyCache.Get(page.URL); ok {
		h.deliver(ctx, tabID, hit)
		return
	}

	label, err := h.legacy.ClassifyWorkOrEntertainment(ctx, page, cfg.GeminiAPIKey)
	if err != nil {
		h.logger.Debug("legacy classification failed", zap.String("url", page.URL), zap.Error(err))
		return
	}
	payload := domain.ClassificationPayload{URL: page.URL, Label: label, Confidence: legacyConfidence}
	h.legacyCache.Set(page.URL, payload)
	h.deliver(ctx, tabID, payload)
}

func (h *MessageHandler) notifyUnrelated(ctx context.Context, title, reason string) {
	if title == "" {
		title = defaultPageTitle
	}
	if reason == "" {
		reason = unknownReason
	}
	if err := h.notifier.Notify(ctx, UnrelatedTitle, title+"\nReason: "+reason); err != nil {
		h.logger.Debug("failed to show notification", zap.Error(err))
	}
}

func (h *MessageHandler) deliver(ctx context.Context, tabID int, payload domain.ClassificationPayload) {
	if err := h.browser.SendMessage(ctx, tabID, domain.ClassificationMessage(payload)); err != nil {
		h.logger.Warn("failed to deliver classification",
			zap.Int("tab_id", tabID),
			zap.Error(err))
	}
}
