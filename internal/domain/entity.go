// Package domain contains core business entities and interfaces.
// This is the innermost layer in Clean Architecture - no external dependencies.
package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// FocusMode selects which enforcement path is active.
type FocusMode string

const (
	ModeManual FocusMode = "manual"
	ModeAI     FocusMode = "ai"
)

// Verdict is the binary page classification.
type Verdict string

const (
	VerdictRelated   Verdict = "RELATED"
	VerdictUnrelated Verdict = "UNRELATED"
)

// NormalizeVerdict forces any remote value into RELATED or UNRELATED.
// Anything that is not exactly UNRELATED (after trimming and upper-casing) is RELATED.
func NormalizeVerdict(v string) Verdict {
	if strings.ToUpper(strings.TrimSpace(v)) == string(VerdictUnrelated) {
		return VerdictUnrelated
	}
	return VerdictRelated
}

// Classification is the result handed back to callers of the classifier.
type Classification struct {
	Verdict Verdict `json:"verdict"`
	Reason  string  `json:"reason"`
}

// Related builds a RELATED classification.
func Related(reason string) Classification {
	return Classification{Verdict: VerdictRelated, Reason: reason}
}

// Unrelated builds an UNRELATED classification.
func Unrelated(reason string) Classification {
	return Classification{Verdict: VerdictUnrelated, Reason: reason}
}

// BlockItem is a single entry of a block group.
// It is either a bare domain string or a structured {host, enabled} record.
type BlockItem struct {
	Name    string `json:"name,omitempty"`
	Host    string `json:"host,omitempty"`
	URL     string `json:"url,omitempty"`
	Enabled *bool  `json:"enabled,omitempty"`
	bare    bool
}

// DomainItem returns a bare domain block item.
func DomainItem(host string) BlockItem {
	return BlockItem{Host: host, bare: true}
}

// Disabled reports whether the item was explicitly switched off.
func (b BlockItem) Disabled() bool {
	return b.Enabled != nil && !*b.Enabled
}

// Target returns the host (or url) the item blocks.
func (b BlockItem) Target() string {
	if b.Host != "" {
		return b.Host
	}
	return b.URL
}

// MarshalJSON keeps bare items as plain strings so stored config round-trips.
func (b BlockItem) MarshalJSON() ([]byte, error) {
	if b.bare {
		return json.Marshal(b.Host)
	}
	type record BlockItem
	return json.Marshal(record(b))
}

// UnmarshalJSON accepts a string or an object.
func (b *BlockItem) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*b = DomainItem(s)
		return nil
	}
	type record BlockItem
	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return fmt.Errorf("block item must be a string or object: %w", err)
	}
	*b = BlockItem(r)
	return nil
}

// BlockGroup is a named, independently switchable set of blocked domains.
type BlockGroup struct {
	Enabled bool        `json:"enabled"`
	Items   []BlockItem `json:"items"`
}

// AllowEntry is a bare host/domain suffix, a full URL, or a {name, url} record.
type AllowEntry struct {
	Name string `json:"name,omitempty"`
	URL  string `json:"url,omitempty"`
	Host string `json:"host,omitempty"`
	bare bool
}

// AllowString builds an allow entry from a bare string (host, URL or playlist id).
func AllowString(s string) AllowEntry {
	return AllowEntry{URL: s, bare: true}
}

// Raw returns the string the entry is matched with.
func (a AllowEntry) Raw() string {
	if a.URL != "" {
		return a.URL
	}
	return a.Host
}

// MarshalJSON keeps bare entries as plain strings.
func (a AllowEntry) MarshalJSON() ([]byte, error) {
	if a.bare {
		return json.Marshal(a.URL)
	}
	type record AllowEntry
	return json.Marshal(record(a))
}

// UnmarshalJSON accepts a string or an object.
func (a *AllowEntry) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*a = AllowString(s)
		return nil
	}
	type record AllowEntry
	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return fmt.Errorf("allow entry must be a string or object: %w", err)
	}
	*a = AllowEntry(r)
	return nil
}

// FocusConfiguration is the persisted, process-wide user configuration.
type FocusConfiguration struct {
	FocusMode         FocusMode             `json:"focusMode"`
	CurrentFocusTopic string                `json:"currentFocusTopic"`
	GeminiAPIKey      string                `json:"geminiApiKey"`
	AIBlockingEnabled bool                  `json:"aiBlockingEnabled"`
	AllowedDomains    []AllowEntry          `json:"allowedDomains"`
	BlockedGroups     map[string]BlockGroup `json:"blockedGroups"`
	BlockedDomains    []string              `json:"blockedDomains,omitempty"` // legacy, migrated into Custom
	WarnMinutes       int                   `json:"warnMinutes"`
	HardBlockMinutes  int                   `json:"hardBlockMinutes"`
	SessionBlocked    map[string]bool       `json:"sessionBlocked"`
}

// Default timer values, in minutes.
const (
	DefaultWarnMinutes      = 5
	DefaultHardBlockMinutes = 5
)

// WarnDelay returns the warn stage delay, falling back to the default for non-positive values.
func (c *FocusConfiguration) WarnDelay() time.Duration {
	return minutesOr(c.WarnMinutes, DefaultWarnMinutes)
}

// HardBlockDelay returns the hard stage delay, falling back to the default for non-positive values.
func (c *FocusConfiguration) HardBlockDelay() time.Duration {
	return minutesOr(c.HardBlockMinutes, DefaultHardBlockMinutes)
}

// IsSessionBlocked reports whether url was hard-blocked earlier in this session.
func (c *FocusConfiguration) IsSessionBlocked(url string) bool {
	return c.SessionBlocked != nil && c.SessionBlocked[url]
}

func minutesOr(v, def int) time.Duration {
	if v <= 0 {
		v = def
	}
	return time.Duration(v) * time.Minute
}

// PageRequest describes the page being classified.
type PageRequest struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// ClassifyRequest is the input of the classification orchestrator.
type ClassifyRequest struct {
	TabID int
	Page  PageRequest
	Topic string
	// APIKey is the configured Gemini key (may be empty).
	APIKey string
}

// AlarmStage identifies which timer of the block state machine fired.
type AlarmStage string

const (
	StageWarn AlarmStage = "warn"
	StageHard AlarmStage = "hard"
)

// AlarmKey identifies the (tab, url) pair a timer was scheduled against.
type AlarmKey struct {
	TabID int
	URL   string
}

// AlarmRecord is one scheduled timer.
type AlarmRecord struct {
	Stage AlarmStage
	Key   AlarmKey
}

// BlockState is the per (tab, url) enforcement state.
type BlockState string

const (
	StateClear          BlockState = "clear"
	StateWarned         BlockState = "warned"
	StateHardBlocked    BlockState = "hard_blocked"
	StateSessionBlocked BlockState = "session_blocked"
)

// Tab is the daemon's view of a browser tab.
type Tab struct {
	ID     int    `json:"tabId"`
	URL    string `json:"url"`
	Active bool   `json:"active"`
}

// Outbound message labels.
const (
	LabelWork          = "work"
	LabelEntertainment = "entertainment"
)

// ClassificationPayload is delivered to the content script.
type ClassificationPayload struct {
	URL        string  `json:"url"`
	Label      string  `json:"label"`
	Reason     string  `json:"reason,omitempty"`
	Confidence float64 `json:"confidence"`
}

// TabMessage is a background -> content script message.
type TabMessage struct {
	Type    string                `json:"type"`
	Payload ClassificationPayload `json:"payload"`
}

// ClassificationMessage wraps a payload into a "classification" message.
func ClassificationMessage(p ClassificationPayload) TabMessage {
	return TabMessage{Type: "classification", Payload: p}
}

// Daemon represents the running webmon process.
type Daemon struct {
	PID        int
	StartedAt  time.Time
	Addr       string
	AppVersion string
}
