package infra

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/web_mon/internal/domain"
)

// Bridge command types streamed to the extension shim.
const (
	CommandUpdateTab   = "updateTab"
	CommandSendMessage = "sendMessage"
	CommandGetPageInfo = "getPageInfo"
	CommandNotify      = "notify"
)

// DefaultPageInfoTimeout bounds a getPageInfo round trip.
const DefaultPageInfoTimeout = 2 * time.Second

const subscriberBuffer = 64

// ErrUnknownReply is returned for a reply nobody is waiting on.
var ErrUnknownReply = errors.New("no pending command with that id")

// Command is one instruction for the extension shim.
type Command struct {
	ID      string             `json:"id"`
	Type    string             `json:"type"`
	TabID   int                `json:"tabId,omitempty"`
	URL     string             `json:"url,omitempty"`
	Message *domain.TabMessage `json:"message,omitempty"`
	Title   string             `json:"title,omitempty"`
	Body    string             `json:"body,omitempty"`
}

// Bridge is the daemon's side of the extension connection. It tracks tab state
// from inbound events and fans commands out to every connected stream.
// It implements domain.TabBrowser and domain.Notifier.
type Bridge struct {
	mu              sync.Mutex
	subscribers     map[string]chan Command
	tabs            map[int]domain.Tab
	pending         map[string]chan string
	pageInfoTimeout time.Duration
	logger          *zap.Logger
}

// NewBridge creates a bridge with no connected streams.
func NewBridge(pageInfoTimeout time.Duration, logger *zap.Logger) *Bridge {
	if pageInfoTimeout <= 0 {
		pageInfoTimeout = DefaultPageInfoTimeout
	}
	return &Bridge{
		subscribers:     make(map[string]chan Command),
		tabs:            make(map[int]domain.Tab),
		pending:         make(map[string]chan string),
		pageInfoTimeout: pageInfoTimeout,
		logger:          logger,
	}
}

// Subscribe registers a command stream. The returned cancel func must be
// called when the stream goes away.
func (b *Bridge) Subscribe() (<-chan Command, func()) {
	id := uuid.NewString()
	ch := make(chan Command, subscriberBuffer)

	b.mu.Lock()
	b.subscribers[id] = ch
	n := len(b.subscribers)
	b.mu.Unlock()
	b.logger.Info("bridge stream connected", zap.String("stream_id", id), zap.Int("streams", n))

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subscribers, id)
			b.mu.Unlock()
			b.logger.Info("bridge stream disconnected", zap.String("stream_id", id))
		})
	}
}

// Connected reports whether at least one stream is attached.
func (b *Bridge) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers) > 0
}

func (b *Bridge) publish(cmd Command) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.subscribers) == 0 {
		return domain.ErrBridgeUnavailable
	}
	for id, ch := range b.subscribers {
		select {
		case ch <- cmd:
		default:
			b.logger.Warn("bridge stream full, command dropped",
				zap.String("stream_id", id), zap.String("type", cmd.Type))
		}
	}
	return nil
}

// TrackTab records the latest known state of a tab.
func (b *Bridge) TrackTab(tab domain.Tab) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if tab.Active {
		for id, t := range b.tabs {
			t.Active = false
			b.tabs[id] = t
		}
	}
	b.tabs[tab.ID] = tab
}

// TrackURL records a tab's current URL, keeping its active flag.
func (b *Bridge) TrackURL(tabID int, url string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t := b.tabs[tabID]
	t.ID = tabID
	t.URL = url
	b.tabs[tabID] = t
}

// ForgetTab drops a closed tab.
func (b *Bridge) ForgetTab(tabID int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.tabs, tabID)
}

// GetTab returns the last known state of a tab.
func (b *Bridge) GetTab(_ context.Context, tabID int) (*domain.Tab, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.tabs[tabID]
	if !ok {
		return nil, domain.ErrTabNotFound
	}
	return &t, nil
}

// Redirect navigates a tab. The tracked URL is updated optimistically.
func (b *Bridge) Redirect(_ context.Context, tabID int, url string) error {
	if err := b.publish(Command{ID: uuid.NewString(), Type: CommandUpdateTab, TabID: tabID, URL: url}); err != nil {
		return fmt.Errorf("failed to redirect tab %d: %w", tabID, err)
	}
	b.mu.Lock()
	if t, ok := b.tabs[tabID]; ok {
		t.URL = url
		b.tabs[tabID] = t
	}
	b.mu.Unlock()
	return nil
}

// SendMessage delivers msg to the tab's content script.
func (b *Bridge) SendMessage(_ context.Context, tabID int, msg domain.TabMessage) error {
	if err := b.publish(Command{ID: uuid.NewString(), Type: CommandSendMessage, TabID: tabID, Message: &msg}); err != nil {
		return fmt.Errorf("failed to message tab %d: %w", tabID, err)
	}
	return nil
}

// RequestPageInfo asks the tab's content script for a page description and
// waits for the reply posted through Reply.
func (b *Bridge) RequestPageInfo(ctx context.Context, tabID int) (string, error) {
	id := uuid.NewString()
	reply := make(chan string, 1)

	b.mu.Lock()
	b.pending[id] = reply
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		delete(b.pending, id)
		b.mu.Unlock()
	}()

	if err := b.publish(Command{ID: id, Type: CommandGetPageInfo, TabID: tabID}); err != nil {
		return "", fmt.Errorf("failed to request page info: %w", err)
	}

	timer := time.NewTimer(b.pageInfoTimeout)
	defer timer.Stop()

	select {
	case desc := <-reply:
		return desc, nil
	case <-timer.C:
		return "", fmt.Errorf("page info for tab %d timed out after %s", tabID, b.pageInfoTimeout)
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Reply completes a pending getPageInfo command.
func (b *Bridge) Reply(id, description string) error {
	b.mu.Lock()
	ch, ok := b.pending[id]
	if ok {
		delete(b.pending, id)
	}
	b.mu.Unlock()

	if !ok {
		return ErrUnknownReply
	}
	ch <- description
	return nil
}

// Notify shows a desktop notification through the extension.
func (b *Bridge) Notify(_ context.Context, title, message string) error {
	if err := b.publish(Command{ID: uuid.NewString(), Type: CommandNotify, Title: title, Body: message}); err != nil {
		return fmt.Errorf("failed to notify: %w", err)
	}
	return nil
}

var _ domain.TabBrowser = (*Bridge)(nil)
var _ domain.Notifier = (*Bridge)(nil)
