package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/eliteGoblin/focusd/web_mon/internal/domain"
)

// mockStore implements domain.ConfigStore in memory
type mockStore struct {
	mu      sync.Mutex
	cfg     *domain.FocusConfiguration
	meta    map[string]string
	saves   int
	loadErr error
	saveErr error
}

func newMockStore(cfg *domain.FocusConfiguration) *mockStore {
	return &mockStore{cfg: cfg, meta: map[string]string{}}
}

func (m *mockStore) Load(ctx context.Context) (*domain.FocusConfiguration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	if m.cfg == nil {
		return &domain.FocusConfiguration{}, nil
	}
	return cloneConfig(m.cfg), nil
}

func (m *mockStore) Stored(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg != nil, m.loadErr
}

func (m *mockStore) Save(ctx context.Context, cfg *domain.FocusConfiguration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.cfg = cloneConfig(cfg)
	m.saves++
	return nil
}

func (m *mockStore) GetMeta(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.meta[key], nil
}

func (m *mockStore) SetMeta(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.meta[key] = value
	return nil
}

func (m *mockStore) saved() *domain.FocusConfiguration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneConfig(m.cfg)
}

type redirect struct {
	tabID int
	url   string
}

type sentMessage struct {
	tabID int
	msg   domain.TabMessage
}

// mockBrowser implements domain.TabBrowser
type mockBrowser struct {
	mu          sync.Mutex
	tabs        map[int]*domain.Tab
	redirects   []redirect
	messages    []sentMessage
	pageInfo    string
	pageInfoErr error
	redirectErr error
}

func newMockBrowser(tabs ...domain.Tab) *mockBrowser {
	b := &mockBrowser{tabs: map[int]*domain.Tab{}}
	for i := range tabs {
		t := tabs[i]
		b.tabs[t.ID] = &t
	}
	return b
}

func (m *mockBrowser) GetTab(ctx context.Context, tabID int) (*domain.Tab, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tabs[tabID]
	if !ok {
		return nil, domain.ErrTabNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *mockBrowser) Redirect(ctx context.Context, tabID int, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.redirectErr != nil {
		return m.redirectErr
	}
	m.redirects = append(m.redirects, redirect{tabID: tabID, url: url})
	if t, ok := m.tabs[tabID]; ok {
		t.URL = url
	}
	return nil
}

func (m *mockBrowser) SendMessage(ctx context.Context, tabID int, msg domain.TabMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, sentMessage{tabID: tabID, msg: msg})
	return nil
}

func (m *mockBrowser) RequestPageInfo(ctx context.Context, tabID int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pageInfoErr != nil {
		return "", m.pageInfoErr
	}
	if m.pageInfo == "" {
		return "", errors.New("no content script")
	}
	return m.pageInfo, nil
}

func (m *mockBrowser) navigate(tabID int, url string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tabs[tabID].URL = url
}

// mockNotifier records notifications
type mockNotifier struct {
	mu    sync.Mutex
	shown []string
}

func (m *mockNotifier) Notify(ctx context.Context, title, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shown = append(m.shown, title+"|"+message)
	return nil
}

// mockScheduler records scheduled alarms without running them
type mockScheduler struct {
	mu        sync.Mutex
	pending   map[domain.AlarmRecord]time.Duration
	cancelled []domain.AlarmRecord
}

func newMockScheduler() *mockScheduler {
	return &mockScheduler{pending: map[domain.AlarmRecord]time.Duration{}}
}

func (m *mockScheduler) Schedule(rec domain.AlarmRecord, delay time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending[rec] = delay
}

func (m *mockScheduler) Cancel(rec domain.AlarmRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.pending[rec]; ok {
		m.cancelled = append(m.cancelled, rec)
	}
	delete(m.pending, rec)
}

func (m *mockScheduler) Pending(rec domain.AlarmRecord) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.pending[rec]
	return ok
}

func (m *mockScheduler) delay(rec domain.AlarmRecord) (time.Duration, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.pending[rec]
	return d, ok
}

// mockTopicClassifier implements domain.TopicClassifier
type mockTopicClassifier struct {
	mu       sync.Mutex
	result   domain.Classification
	err      error
	calls    int
	lastPage domain.PageRequest
}

func (m *mockTopicClassifier) ClassifyByTopic(ctx context.Context, page domain.PageRequest, topic, apiKey string) (domain.Classification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.lastPage = page
	return m.result, m.err
}

func (m *mockTopicClassifier) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// mockLegacyClassifier implements domain.LegacyClassifier
type mockLegacyClassifier struct {
	label string
	err   error
	calls int
}

func (m *mockLegacyClassifier) ClassifyWorkOrEntertainment(ctx context.Context, page domain.PageRequest, apiKey string) (string, error) {
	m.calls++
	return m.label, m.err
}

// mockFetcher implements domain.PageFetcher
type mockFetcher struct {
	description string
	err         error
	calls       int
}

func (m *mockFetcher) Describe(ctx context.Context, url string) (string, error) {
	m.calls++
	return m.description, m.err
}
