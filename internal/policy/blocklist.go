package policy

import (
	"sort"
	"strings"

	"github.com/eliteGoblin/focusd/web_mon/internal/domain"
)

// MergeBlockedDomains flattens every enabled block group into one set of
// lower-cased domains. Disabled groups and explicitly disabled items are skipped.
func MergeBlockedDomains(groups map[string]domain.BlockGroup) map[string]struct{} {
	set := make(map[string]struct{})
	for _, g := range groups {
		if !g.Enabled || g.Items == nil {
			continue
		}
		for _, item := range g.Items {
			if item.Disabled() {
				continue
			}
			host := strings.ToLower(strings.TrimSpace(item.Target()))
			if host != "" {
				set[host] = struct{}{}
			}
		}
	}
	return set
}

// SortedDomains returns the set as a sorted slice (for display).
func SortedDomains(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for d := range set {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// CustomGroup is the group legacy blockedDomains entries are migrated into.
const CustomGroup = "Custom"

// MigrateLegacyDomains moves legacy single-list entries into the Custom group.
// It returns false when there was nothing to migrate.
func MigrateLegacyDomains(cfg *domain.FocusConfiguration) bool {
	if len(cfg.BlockedDomains) == 0 {
		return false
	}
	if cfg.BlockedGroups == nil {
		cfg.BlockedGroups = DefaultBlockedGroups()
	}
	custom, ok := cfg.BlockedGroups[CustomGroup]
	if !ok {
		custom = domain.BlockGroup{Enabled: true, Items: []domain.BlockItem{}}
	}
	for _, d := range cfg.BlockedDomains {
		if d == "" {
			continue
		}
		custom.Items = append(custom.Items, domain.DomainItem(strings.ToLower(d)))
	}
	cfg.BlockedGroups[CustomGroup] = custom
	cfg.BlockedDomains = []string{}
	return true
}
