package policy

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/eliteGoblin/focusd/web_mon/internal/domain"
)

//go:embed default_groups.yaml
var defaultGroupsYAML []byte

type groupSchema struct {
	Enabled bool     `yaml:"enabled"`
	Items   []string `yaml:"items"`
}

// ParseGroups decodes a YAML document of named block groups.
func ParseGroups(data []byte) (map[string]domain.BlockGroup, error) {
	var raw map[string]groupSchema
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse block groups: %w", err)
	}
	groups := make(map[string]domain.BlockGroup, len(raw))
	for name, g := range raw {
		items := make([]domain.BlockItem, 0, len(g.Items))
		for _, host := range g.Items {
			items = append(items, domain.DomainItem(host))
		}
		groups[name] = domain.BlockGroup{Enabled: g.Enabled, Items: items}
	}
	return groups, nil
}

// DefaultBlockedGroups returns a fresh copy of the shipped block groups.
func DefaultBlockedGroups() map[string]domain.BlockGroup {
	groups, err := ParseGroups(defaultGroupsYAML)
	if err != nil {
		// The document is embedded at build time; a parse failure is a build defect.
		panic(err)
	}
	return groups
}

// DefaultConfiguration is the configuration written on first run.
func DefaultConfiguration() *domain.FocusConfiguration {
	return &domain.FocusConfiguration{
		FocusMode:         domain.ModeManual,
		CurrentFocusTopic: "Focus",
		AllowedDomains:    []domain.AllowEntry{},
		BlockedGroups:     DefaultBlockedGroups(),
		BlockedDomains:    []string{"facebook.com", "tiktok.com"},
		WarnMinutes:       domain.DefaultWarnMinutes,
		HardBlockMinutes:  domain.DefaultHardBlockMinutes,
		SessionBlocked:    map[string]bool{},
	}
}
