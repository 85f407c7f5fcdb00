package infra

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/web_mon/internal/domain"
)

// TimerScheduler implements domain.Scheduler with in-process timers.
// Alarms do not survive a daemon restart; sessionBlocked does.
type TimerScheduler struct {
	mu      sync.Mutex
	timers  map[domain.AlarmRecord]*time.Timer
	handler func(domain.AlarmRecord)
	logger  *zap.Logger
}

// NewTimerScheduler creates a scheduler. Fired alarms are dropped until
// SetHandler is called.
func NewTimerScheduler(logger *zap.Logger) *TimerScheduler {
	return &TimerScheduler{
		timers: make(map[domain.AlarmRecord]*time.Timer),
		logger: logger,
	}
}

// SetHandler installs the callback run when an alarm fires.
func (s *TimerScheduler) SetHandler(fn func(domain.AlarmRecord)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = fn
}

// Schedule arms rec to fire after delay, replacing a pending timer for the same record.
func (s *TimerScheduler) Schedule(rec domain.AlarmRecord, delay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.timers[rec]; ok {
		t.Stop()
	}

	var t *time.Timer
	t = time.AfterFunc(delay, func() {
		s.mu.Lock()
		if s.timers[rec] != t {
			// Replaced or cancelled after this timer already fired.
			s.mu.Unlock()
			return
		}
		delete(s.timers, rec)
		handler := s.handler
		s.mu.Unlock()

		if handler == nil {
			s.logger.Warn("alarm fired without handler", zap.String("stage", string(rec.Stage)))
			return
		}
		handler(rec)
	})
	s.timers[rec] = t

	s.logger.Debug("alarm scheduled",
		zap.String("stage", string(rec.Stage)),
		zap.Int("tab_id", rec.Key.TabID),
		zap.String("url", rec.Key.URL),
		zap.Duration("delay", delay))
}

// Cancel stops a pending alarm. Unknown records are ignored.
func (s *TimerScheduler) Cancel(rec domain.AlarmRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[rec]; ok {
		t.Stop()
		delete(s.timers, rec)
	}
}

// Pending reports whether rec is armed.
func (s *TimerScheduler) Pending(rec domain.AlarmRecord) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[rec]
	return ok
}

// Len returns the number of armed alarms.
func (s *TimerScheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop cancels every pending alarm.
func (s *TimerScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for rec, t := range s.timers {
		t.Stop()
		delete(s.timers, rec)
	}
}

var _ domain.Scheduler = (*TimerScheduler)(nil)
