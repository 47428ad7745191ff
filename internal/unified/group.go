package unified

import (
	"sort"
	"strings"
	"time"
)

// GroupMode selects how the sorted collection is bucketed for display.
type GroupMode string

const (
	GroupByDate  GroupMode = "date"
	GroupByGuest GroupMode = "guest"
	GroupNone    GroupMode = "none"
)

// ParseGroupMode maps a request parameter to a group mode, defaulting to
// date grouping.
func ParseGroupMode(raw string) GroupMode {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "guest":
		return GroupByGuest
	case "none", "flat":
		return GroupNone
	default:
		return GroupByDate
	}
}

// Group is one display bucket. Items keep the order the sorter gave them.
type Group struct {
	Key   string   `json:"key"`
	Label string   `json:"label"`
	Items []Backup `json:"items"`
}

const dayLabelLayout = "Mon, Jan 2, 2006"

// GroupBackups buckets an already-sorted collection. Date grouping only
// applies under a time sort; under any other key the date buckets would
// interleave arbitrarily, so the collection collapses into one bucket.
func GroupBackups(backups []Backup, mode GroupMode, sortKey SortKey, now time.Time) []Group {
	switch {
	case mode == GroupByGuest:
		return groupByGuest(backups)
	case mode == GroupByDate && sortKey == SortByTime:
		return groupByDate(backups, now)
	default:
		return singleGroup(backups)
	}
}

func singleGroup(backups []Backup) []Group {
	if len(backups) == 0 {
		return []Group{}
	}
	return []Group{{Key: "all", Items: backups}}
}

// groupByDate buckets by calendar day in the server's zone. Buckets appear
// in first-encounter order, which under a time sort means newest-day-first
// for descending input and oldest-day-first for ascending.
func groupByDate(backups []Backup, now time.Time) []Group {
	today := now.Format("2006-01-02")
	yesterday := now.AddDate(0, 0, -1).Format("2006-01-02")

	groups := make([]Group, 0, 8)
	index := make(map[string]int)

	for _, b := range backups {
		day := time.Unix(b.Time, 0).Format("2006-01-02")
		i, exists := index[day]
		if !exists {
			label := time.Unix(b.Time, 0).Format(dayLabelLayout)
			switch day {
			case today:
				label = "Today"
			case yesterday:
				label = "Yesterday"
			}
			groups = append(groups, Group{Key: day, Label: label})
			i = len(groups) - 1
			index[day] = i
		}
		groups[i].Items = append(groups[i].Items, b)
	}
	return groups
}

// groupByGuest buckets per guest identity and orders buckets by numeric
// guest id ascending, with non-numeric identities (host backups) last,
// alphabetically.
func groupByGuest(backups []Backup) []Group {
	groups := make([]Group, 0, 8)
	index := make(map[string]int)

	for _, b := range backups {
		key := guestGroupKey(b)
		i, exists := index[key]
		if !exists {
			groups = append(groups, Group{Key: key, Label: key})
			i = len(groups) - 1
			index[key] = i
		}
		groups[i].Items = append(groups[i].Items, b)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		a, aok := firstItemVMID(groups[i])
		b, bok := firstItemVMID(groups[j])
		if aok != bok {
			return aok
		}
		if !aok {
			return groups[i].Key < groups[j].Key
		}
		return a < b
	})
	return groups
}

// guestGroupKey renders "Type ID" plus the display name when the registry
// supplied a real one.
func guestGroupKey(b Backup) string {
	key := synthesizedName(b.GuestType, b.GuestID)
	if b.GuestName != "" && b.GuestName != key {
		key += " - " + b.GuestName
	}
	return key
}

func firstItemVMID(g Group) (int64, bool) {
	if len(g.Items) == 0 {
		return 0, false
	}
	return g.Items[0].VMIDNumeric()
}
