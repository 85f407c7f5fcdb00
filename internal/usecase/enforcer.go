// Package usecase contains application business logic.
package usecase

import (
	"context"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/web_mon/internal/domain"
	"github.com/eliteGoblin/focusd/web_mon/internal/policy"
)

// Decision is the outcome of evaluating a navigation.
type Decision string

const (
	DecisionAllow          Decision = "allow"
	DecisionAllowListed    Decision = "allow_listed"
	DecisionBlocked        Decision = "blocked"
	DecisionSessionBlocked Decision = "session_blocked"
	DecisionSkipped        Decision = "skipped"
)

// Redirects reports whether the decision sends the tab to the blocked page.
func (d Decision) Redirects() bool {
	return d == DecisionBlocked || d == DecisionSessionBlocked
}

// TabUpdate is a tab-updated browser event.
type TabUpdate struct {
	TabID  int    `json:"tabId"`
	URL    string `json:"url"`
	Status string `json:"status"`
	Active bool   `json:"active"`
}

// Enforcer applies manual-mode blocking immediately on browser events.
// Each event reads the configuration fresh; nothing is carried between events.
type Enforcer struct {
	settings    *SettingsService
	browser     domain.TabBrowser
	blockedPage string
	logger      *zap.Logger
}

// NewEnforcer creates a manual-mode enforcer redirecting to blockedPage.
func NewEnforcer(settings *SettingsService, browser domain.TabBrowser, blockedPage string, logger *zap.Logger) *Enforcer {
	return &Enforcer{
		settings:    settings,
		browser:     browser,
		blockedPage: blockedPage,
		logger:      logger,
	}
}

// Evaluate decides whether rawURL is blocked under cfg in manual mode.
func Evaluate(cfg *domain.FocusConfiguration, rawURL string) Decision {
	if policy.IsAllowedURL(rawURL, cfg.AllowedDomains) {
		return DecisionAllowListed
	}
	if policy.IsBlockedByDomain(rawURL, policy.MergeBlockedDomains(cfg.BlockedGroups)) {
		return DecisionBlocked
	}
	return DecisionAllow
}

// OnTabUpdated handles a finished load of the active tab. Session-blocked URLs
// are redirected in every mode, before the allow and block lists are consulted.
func (e *Enforcer) OnTabUpdated(ctx context.Context, ev TabUpdate) (Decision, error) {
	if ev.Status != "complete" || !ev.Active {
		return DecisionSkipped, nil
	}
	cfg, err := e.settings.Current(ctx)
	if err != nil {
		return DecisionSkipped, err
	}

	if cfg.IsSessionBlocked(ev.URL) {
		e.redirect(ctx, ev.TabID, ev.URL, DecisionSessionBlocked)
		return DecisionSessionBlocked, nil
	}
	return e.enforceManual(ctx, cfg, ev.TabID, ev.URL), nil
}

// OnNavigationCommitted handles a committed top-frame navigation.
func (e *Enforcer) OnNavigationCommitted(ctx context.Context, tabID, frameID int, url string) (Decision, error) {
	if frameID != 0 {
		return DecisionSkipped, nil
	}
	cfg, err := e.settings.Current(ctx)
	if err != nil {
		return DecisionSkipped, err
	}
	return e.enforceManual(ctx, cfg, tabID, url), nil
}

// OnTabActivated handles a tab becoming active, using its last known URL.
func (e *Enforcer) OnTabActivated(ctx context.Context, tabID int) (Decision, error) {
	tab, err := e.browser.GetTab(ctx, tabID)
	if err != nil {
		e.logger.Debug("activated tab unknown", zap.Int("tab_id", tabID), zap.Error(err))
		return DecisionSkipped, nil
	}
	cfg, err := e.settings.Current(ctx)
	if err != nil {
		return DecisionSkipped, err
	}
	return e.enforceManual(ctx, cfg, tabID, tab.URL), nil
}

func (e *Enforcer) enforceManual(ctx context.Context, cfg *domain.FocusConfiguration, tabID int, url string) Decision {
	if cfg.FocusMode != domain.ModeManual {
		return DecisionSkipped
	}
	d := Evaluate(cfg, url)
	if d.Redirects() {
		e.redirect(ctx, tabID, url, d)
	}
	return d
}

// redirect sends the tab to the blocked page. Failures are logged and swallowed:
// the tab may already be gone.
func (e *Enforcer) redirect(ctx context.Context, tabID int, url string, d Decision) {
	if err := e.browser.Redirect(ctx, tabID, e.blockedPage); err != nil {
		e.logger.Warn("failed to redirect tab",
			zap.Int("tab_id", tabID),
			zap.String("url", url),
			zap.Error(err))
		return
	}
	e.logger.Info("tab redirected to blocked page",
		zap.Int("tab_id", tabID),
		zap.String("url", url),
		zap.String("decision", string(d)))
}
