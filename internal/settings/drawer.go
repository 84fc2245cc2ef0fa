package settings

import (
	"sort"
	"strings"

	"github.com/kalambet/hearth/internal/apps"
)

// Sort orders of the sortOrder choice.
const (
	SortByName = iota
	SortByInstallTime
)

// AppEntry is one app as the drawer shows it.
type AppEntry struct {
	apps.Info
	DisplayLabel string
	Hidden       bool
}

// Drawer applies the snapshot's custom labels, hidden set and sort order to
// list. Hidden apps are dropped unless includeHidden is set.
func (s Snapshot) Drawer(list []apps.Info, includeHidden bool) []AppEntry {
	out := make([]AppEntry, 0, len(list))
	for _, info := range list {
		key := info.Key()
		e := AppEntry{
			Info:         info,
			DisplayLabel: s.Label(key, info.Label),
			Hidden:       s.IsHidden(key),
		}
		if e.Hidden && !includeHidden {
			continue
		}
		out = append(out, e)
	}

	byLabel := func(i, j int) bool {
		return strings.ToLower(out[i].DisplayLabel) < strings.ToLower(out[j].DisplayLabel)
	}
	if s.SortOrder == SortByInstallTime {
		sort.SliceStable(out, func(i, j int) bool {
			if !out[i].InstalledAt.Equal(out[j].InstalledAt) {
				return out[i].InstalledAt.After(out[j].InstalledAt)
			}
			return byLabel(i, j)
		})
	} else {
		sort.SliceStable(out, byLabel)
	}
	return out
}
