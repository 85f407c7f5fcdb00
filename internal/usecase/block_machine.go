package usecase

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/web_mon/internal/domain"
)

// Warning shown when the warn alarm fires.
const (
	WarnTitle   = "Stay on task"
	warnMessage = "This page seems off-topic. You will be blocked in %d minutes if you stay."
)

// BlockMachine is the timed warn -> hard block -> session block progression for
// off-topic pages. State is kept per (tab, url); timers go through the
// scheduler and are validated against the tab's URL when they fire.
type BlockMachine struct {
	mu          sync.Mutex
	states      map[domain.AlarmKey]domain.BlockState
	scheduler   domain.Scheduler
	browser     domain.TabBrowser
	notifier    domain.Notifier
	settings    *SettingsService
	blockedPage string
	logger      *zap.Logger
}

// NewBlockMachine creates the state machine. It forgets every state when the
// session is reset or the focus mode changes.
func NewBlockMachine(
	scheduler domain.Scheduler,
	browser domain.TabBrowser,
	notifier domain.Notifier,
	settings *SettingsService,
	blockedPage string,
	logger *zap.Logger,
) *BlockMachine {
	m := &BlockMachine{
		states:      make(map[domain.AlarmKey]domain.BlockState),
		scheduler:   scheduler,
		browser:     browser,
		notifier:    notifier,
		settings:    settings,
		blockedPage: blockedPage,
		logger:      logger,
	}
	settings.OnChange(func(prev, next *domain.FocusConfiguration) {
		sessionCleared := len(prev.SessionBlocked) > 0 && len(next.SessionBlocked) == 0
		if sessionCleared || prev.FocusMode != next.FocusMode {
			m.Reset()
		}
	})
	return m
}

// State returns the current state of key.
func (m *BlockMachine) State(key domain.AlarmKey) domain.BlockState {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.states[key]; ok {
		return s
	}
	return domain.StateClear
}

// Flag marks a page as a timed-block candidate: Clear -> Warned. Pages already
// in progress are left alone. It returns true when a warn alarm was scheduled.
func (m *BlockMachine) Flag(ctx context.Context, tabID int, url string) (bool, error) {
	cfg, err := m.settings.Current(ctx)
	if err != nil {
		return false, err
	}

	key := domain.AlarmKey{TabID: tabID, URL: url}
	m.mu.Lock()
	if _, busy := m.states[key]; busy {
		m.mu.Unlock()
		return false, nil
	}
	m.states[key] = domain.StateWarned
	m.mu.Unlock()

	m.scheduler.Schedule(domain.AlarmRecord{Stage: domain.StageWarn, Key: key}, cfg.WarnDelay())
	m.logger.Info("page flagged off-topic",
		zap.Int("tab_id", tabID),
		zap.String("url", url),
		zap.Duration("warn_in", cfg.WarnDelay()))
	return true, nil
}

// Fire handles an alarm. Outside AI mode, or when the tab is gone or now shows
// another URL, the alarm is a no-op and the state is cleared.
func (m *BlockMachine) Fire(ctx context.Context, rec domain.AlarmRecord) error {
	cfg, err := m.settings.Current(ctx)
	if err != nil {
		return err
	}
	if cfg.FocusMode != domain.ModeAI {
		m.clear(rec.Key)
		m.logger.Debug("alarm ignored outside AI mode",
			zap.String("stage", string(rec.Stage)),
			zap.Int("tab_id", rec.Key.TabID))
		return nil
	}

	tab, err := m.browser.GetTab(ctx, rec.Key.TabID)
	if err != nil || tab.URL != rec.Key.URL {
		m.clear(rec.Key)
		m.logger.Debug("stale alarm ignored",
			zap.String("stage", string(rec.Stage)),
			zap.Int("tab_id", rec.Key.TabID))
		return nil
	}

	switch rec.Stage {
	case domain.StageWarn:
		return m.fireWarn(ctx, cfg, rec.Key)
	case domain.StageHard:
		return m.fireHard(ctx, rec.Key)
	default:
		return fmt.Errorf("unknown alarm stage %q", rec.Stage)
	}
}

func (m *BlockMachine) fireWarn(ctx context.Context, cfg *domain.FocusConfiguration, key domain.AlarmKey) error {
	if err := m.notifier.Notify(ctx, WarnTitle, fmt.Sprintf(warnMessage, cfg.HardBlockMinutes)); err != nil {
		m.logger.Warn("failed to show warning", zap.Error(err))
	}

	hard := domain.AlarmRecord{Stage: domain.StageHard, Key: key}
	m.scheduler.Cancel(hard)
	m.scheduler.Schedule(hard, cfg.HardBlockDelay())
	m.set(key, domain.StateHardBlocked)

	m.logger.Info("off-topic warning shown",
		zap.Int("tab_id", key.TabID),
		zap.String("url", key.URL),
		zap.Duration("block_in", cfg.HardBlockDelay()))
	return nil
}

func (m *BlockMachine) fireHard(ctx context.Context, key domain.AlarmKey) error {
	if err := m.settings.MarkSessionBlocked(ctx, key.URL); err != nil {
		return fmt.Errorf("failed to persist session block: %w", err)
	}
	m.set(key, domain.StateSessionBlocked)

	if err := m.browser.Redirect(ctx, key.TabID, m.blockedPage); err != nil {
		m.logger.Warn("failed to redirect tab", zap.Int("tab_id", key.TabID), zap.Error(err))
	}
	m.logger.Info("page blocked for the session",
		zap.Int("tab_id", key.TabID),
		zap.String("url", key.URL))
	return nil
}

// Reset forgets every state and cancels pending alarms.
func (m *BlockMachine) Reset() {
	m.mu.Lock()
	keys := make([]domain.AlarmKey, 0, len(m.states))
	for k := range m.states {
		keys = append(keys, k)
	}
	m.states = make(map[domain.AlarmKey]domain.BlockState)
	m.mu.Unlock()

	for _, k := range keys {
		m.scheduler.Cancel(domain.AlarmRecord{Stage: domain.StageWarn, Key: k})
		m.scheduler.Cancel(domain.AlarmRecord{Stage: domain.StageHard, Key: k})
	}
}

func (m *BlockMachine) set(key domain.AlarmKey, s domain.BlockState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[key] = s
}

func (m *BlockMachine) clear(key domain.AlarmKey) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, key)
}
