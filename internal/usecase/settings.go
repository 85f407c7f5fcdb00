package usecase

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/web_mon/internal/domain"
	"github.com/eliteGoblin/focusd/web_mon/internal/policy"
)

// ChangeFunc observes a configuration change. prev and next must not be modified.
type ChangeFunc func(prev, next *domain.FocusConfiguration)

// SettingsService owns reads and writes of the persisted FocusConfiguration.
// Writes are serialised; reads always go to the store.
type SettingsService struct {
	mu        sync.Mutex
	store     domain.ConfigStore
	listeners []ChangeFunc
	logger    *zap.Logger
}

// NewSettingsService creates a settings service on top of store.
func NewSettingsService(store domain.ConfigStore, logger *zap.Logger) *SettingsService {
	return &SettingsService{store: store, logger: logger}
}

// OnChange registers fn to run after every successful update.
func (s *SettingsService) OnChange(fn ChangeFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Bootstrap installs defaults on first run, fills keys missing from an older
// configuration and migrates the legacy blockedDomains list into the Custom group.
func (s *SettingsService) Bootstrap(ctx context.Context) (*domain.FocusConfiguration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, err := s.store.Stored(ctx)
	if err != nil {
		return nil, err
	}

	var cfg *domain.FocusConfiguration
	if !stored {
		cfg = policy.DefaultConfiguration()
		s.logger.Info("installing default configuration")
	} else {
		if cfg, err = s.store.Load(ctx); err != nil {
			return nil, err
		}
	}
	fillDefaults(cfg)

	if policy.MigrateLegacyDomains(cfg) {
		s.logger.Info("migrated legacy blocked domains", zap.String("group", policy.CustomGroup))
	}

	if err := s.store.Save(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to save configuration: %w", err)
	}
	return cfg, nil
}

// Current returns the stored configuration with defaults applied.
func (s *SettingsService) Current(ctx context.Context) (*domain.FocusConfiguration, error) {
	cfg, err := s.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	fillDefaults(cfg)
	return cfg, nil
}

// Update applies fn to the current configuration and persists the result.
// Listeners run after the save, outside the write lock.
func (s *SettingsService) Update(ctx context.Context, fn func(cfg *domain.FocusConfiguration) error) (*domain.FocusConfiguration, error) {
	s.mu.Lock()
	prev, err := s.Current(ctx)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	next := cloneConfig(prev)
	if err := fn(next); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if err := s.store.Save(ctx, next); err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("failed to save configuration: %w", err)
	}
	listeners := append([]ChangeFunc(nil), s.listeners...)
	s.mu.Unlock()

	for _, l := range listeners {
		l(prev, next)
	}
	return next, nil
}

// Patch applies a partial update.
func (s *SettingsService) Patch(ctx context.Context, p SettingsPatch) (*domain.FocusConfiguration, error) {
	return s.Update(ctx, p.Apply)
}

// ResetSession forgets every session-blocked URL.
func (s *SettingsService) ResetSession(ctx context.Context) error {
	_, err := s.Update(ctx, func(cfg *domain.FocusConfiguration) error {
		cfg.SessionBlocked = map[string]bool{}
		return nil
	})
	return err
}

// MarkSessionBlocked records url as blocked until the next session reset.
func (s *SettingsService) MarkSessionBlocked(ctx context.Context, url string) error {
	_, err := s.Update(ctx, func(cfg *domain.FocusConfiguration) error {
		cfg.SessionBlocked[url] = true
		return nil
	})
	return err
}

// SettingsPatch is a partial configuration update. Nil fields are left unchanged.
type SettingsPatch struct {
	FocusMode         *domain.FocusMode            `json:"focusMode,omitempty"`
	CurrentFocusTopic *string                      `json:"currentFocusTopic,omitempty"`
	GeminiAPIKey      *string                      `json:"geminiApiKey,omitempty"`
	AIBlockingEnabled *bool                        `json:"aiBlockingEnabled,omitempty"`
	AllowedDomains    *[]domain.AllowEntry         `json:"allowedDomains,omitempty"`
	BlockedGroups     map[string]domain.BlockGroup `json:"blockedGroups,omitempty"`
	WarnMinutes       *int                         `json:"warnMinutes,omitempty"`
	HardBlockMinutes  *int                         `json:"hardBlockMinutes,omitempty"`
}

// Apply validates the patch and writes it into cfg.
func (p SettingsPatch) Apply(cfg *domain.FocusConfiguration) error {
	if p.FocusMode != nil {
		switch *p.FocusMode {
		case domain.ModeManual, domain.ModeAI:
			cfg.FocusMode = *p.FocusMode
		default:
			return fmt.Errorf("%w: focusMode must be %q or %q", domain.ErrInvalidSetting, domain.ModeManual, domain.ModeAI)
		}
	}
	if p.CurrentFocusTopic != nil {
		cfg.CurrentFocusTopic = strings.TrimSpace(*p.CurrentFocusTopic)
	}
	if p.GeminiAPIKey != nil {
		cfg.GeminiAPIKey = strings.TrimSpace(*p.GeminiAPIKey)
	}
	if p.AIBlockingEnabled != nil {
		cfg.AIBlockingEnabled = *p.AIBlockingEnabled
	}
	if p.AllowedDomains != nil {
		cfg.AllowedDomains = *p.AllowedDomains
	}
	if p.BlockedGroups != nil {
		cfg.BlockedGroups = p.BlockedGroups
	}
	if p.WarnMinutes != nil {
		if *p.WarnMinutes <= 0 {
			return fmt.Errorf("%w: warnMinutes must be positive", domain.ErrInvalidSetting)
		}
		cfg.WarnMinutes = *p.WarnMinutes
	}
	if p.HardBlockMinutes != nil {
		if *p.HardBlockMinutes <= 0 {
			return fmt.Errorf("%w: hardBlockMinutes must be positive", domain.ErrInvalidSetting)
		}
		cfg.HardBlockMinutes = *p.HardBlockMinutes
	}
	return nil
}

// ParseSetting builds a patch from a key/value pair given on the command line.
func ParseSetting(key, value string) (SettingsPatch, error) {
	var p SettingsPatch
	switch key {
	case "focusMode":
		m := domain.FocusMode(value)
		p.FocusMode = &m
	case "currentFocusTopic":
		p.CurrentFocusTopic = &value
	case "geminiApiKey":
		p.GeminiAPIKey = &value
	case "aiBlockingEnabled":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return p, fmt.Errorf("%w: aiBlockingEnabled: %v", domain.ErrInvalidSetting, err)
		}
		p.AIBlockingEnabled = &b
	case "warnMinutes", "hardBlockMinutes":
		n, err := strconv.Atoi(value)
		if err != nil {
			return p, fmt.Errorf("%w: %s: %v", domain.ErrInvalidSetting, key, err)
		}
		if key == "warnMinutes" {
			p.WarnMinutes = &n
		} else {
			p.HardBlockMinutes = &n
		}
	default:
		return p, fmt.Errorf("%w: unknown key %q", domain.ErrInvalidSetting, key)
	}
	return p, nil
}

// Redacted returns a copy of cfg safe to print or serve: the API key is masked.
func Redacted(cfg *domain.FocusConfiguration) *domain.FocusConfiguration {
	out := cloneConfig(cfg)
	if k := out.GeminiAPIKey; k != "" {
		if len(k) > 4 {
			out.GeminiAPIKey = strings.Repeat("*", len(k)-4) + k[len(k)-4:]
		} else {
			out.GeminiAPIKey = "****"
		}
	}
	return out
}

func fillDefaults(cfg *domain.FocusConfiguration) {
	if cfg.FocusMode == "" {
		cfg.FocusMode = domain.ModeManual
	}
	if cfg.AllowedDomains == nil {
		cfg.AllowedDomains = []domain.AllowEntry{}
	}
	if cfg.BlockedGroups == nil {
		cfg.BlockedGroups = policy.DefaultBlockedGroups()
	}
	if cfg.WarnMinutes <= 0 {
		cfg.WarnMinutes = domain.DefaultWarnMinutes
	}
	if cfg.HardBlockMinutes <= 0 {
		cfg.HardBlockMinutes = domain.DefaultHardBlockMinutes
	}
	if cfg.SessionBlocked == nil {
		cfg.SessionBlocked = map[string]bool{}
	}
}

func cloneConfig(cfg *domain.FocusConfiguration) *domain.FocusConfiguration {
	out := *cfg
	if cfg.AllowedDomains != nil {
		out.AllowedDomains = make([]domain.AllowEntry, len(cfg.AllowedDomains))
		copy(out.AllowedDomains, cfg.AllowedDomains)
	}
	if cfg.BlockedDomains != nil {
		out.BlockedDomains = append([]string(nil), cfg.BlockedDomains...)
	}
	if cfg.BlockedGroups != nil {
		out.BlockedGroups = make(map[string]domain.BlockGroup, len(cfg.BlockedGroups))
		for name, g := range cfg.BlockedGroups {
			if g.Items != nil {
				items := make([]domain.BlockItem, len(g.Items))
				copy(items, g.Items)
				g.Items = items
			}
			out.BlockedGroups[name] = g
		}
	}
	out.SessionBlocked = make(map[string]bool, len(cfg.SessionBlocked))
	for k, v := range cfg.SessionBlocked {
		out.SessionBlocked[k] = v
	}
	return &out
}
