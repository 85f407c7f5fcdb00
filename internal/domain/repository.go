package domain

import (
	"context"
	"time"
)

// ProcessManager handles OS process operations.
// Implementation: uses gopsutil for cross-platform support.
type ProcessManager interface {
	// IsRunning checks if a PID exists and is running.
	IsRunning(pid int) bool

	// GetCurrentPID returns the current process PID.
	GetCurrentPID() int
}

// ConfigStore persists the FocusConfiguration and small metadata values.
// Implementation: SQLCipher encrypted SQLite database.
type ConfigStore interface {
	// Load returns the current configuration (zero value if nothing stored yet).
	Load(ctx context.Context) (*FocusConfiguration, error)

	// Stored reports whether a configuration has ever been saved.
	Stored(ctx context.Context) (bool, error)

	// Save replaces the stored configuration.
	Save(ctx context.Context, cfg *FocusConfiguration) error

	// GetMeta returns a metadata value, "" when absent.
	GetMeta(ctx context.Context, key string) (string, error)

	// SetMeta stores a metadata value.
	SetMeta(ctx context.Context, key, value string) error
}

// DaemonRegistry records the running daemon so the CLI can find it.
type DaemonRegistry interface {
	// Register saves the daemon's PID and listen address.
	Register(ctx context.Context, d Daemon) error

	// Get returns the registered daemon, nil if none.
	Get(ctx context.Context) (*Daemon, error)

	// Clear removes the registration.
	Clear(ctx context.Context) error
}

// KeyProvider abstracts the source of the store encryption key.
type KeyProvider interface {
	// GetKey returns the encryption key bytes.
	GetKey() ([]byte, error)

	// StoreKey persists a new encryption key.
	StoreKey(key []byte) error

	// KeyExists checks if a key has been generated.
	KeyExists() bool
}

// TabBrowser is the daemon's handle on the browser (via the extension shim).
type TabBrowser interface {
	// GetTab returns the last known state of a tab.
	GetTab(ctx context.Context, tabID int) (*Tab, error)

	// Redirect navigates a tab to url.
	Redirect(ctx context.Context, tabID int, url string) error

	// SendMessage delivers a message to the tab's content script.
	SendMessage(ctx context.Context, tabID int, msg TabMessage) error

	// RequestPageInfo asks the content script for a fresh page description.
	RequestPageInfo(ctx context.Context, tabID int) (string, error)
}

// Notifier shows desktop notifications.
type Notifier interface {
	Notify(ctx context.Context, title, message string) error
}

// Scheduler is the scheduled-callback capability behind the block state machine.
// Scheduling a record that is already pending replaces it.
type Scheduler interface {
	Schedule(rec AlarmRecord, delay time.Duration)
	Cancel(rec AlarmRecord)
	Pending(rec AlarmRecord) bool
}

// TopicClassifier is the remote, topic-aware page classifier.
type TopicClassifier interface {
	ClassifyByTopic(ctx context.Context, page PageRequest, topic, apiKey string) (Classification, error)
}

// LegacyClassifier is the remote work/entertainment classifier.
type LegacyClassifier interface {
	ClassifyWorkOrEntertainment(ctx context.Context, page PageRequest, apiKey string) (string, error)
}

// PageFetcher fetches a page and extracts a description from its markup.
type PageFetcher interface {
	Describe(ctx context.Context, url string) (string, error)
}
