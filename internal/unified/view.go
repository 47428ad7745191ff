package unified

import (
	"strings"
	"time"

	"github.com/vaultscope/vaultscope/internal/models"
)

// FilterAll is the sentinel request value meaning "no restriction".
const FilterAll = "all"

// Selection carries every request-side knob of a view computation.
type Selection struct {
	Query     string
	Sort      SortKey
	Order     SortOrder
	Group     GroupMode
	GuestType string // all | vm | lxc | host
	Source    string // all | snapshot | local | remote
	Node      string // all | node-or-instance name
	DateFrom  int64  // Unix seconds, 0 = unbounded
	DateTo    int64
}

func (s Selection) withDefaults() Selection {
	if s.Sort == "" {
		s.Sort = SortByTime
	}
	if s.Order == "" {
		s.Order = SortDesc
	}
	if s.Group == "" {
		s.Group = GroupByDate
	}
	if s.GuestType == "" {
		s.GuestType = FilterAll
	}
	if s.Source == "" {
		s.Source = FilterAll
	}
	if s.Node == "" {
		s.Node = FilterAll
	}
	return s
}

// View is the fully shaped result handed to the serving layer.
type View struct {
	Groups         []Group `json:"groups"`
	Total          int     `json:"total"`
	HasHostBackups bool    `json:"hasHostBackups"`
}

// BuildView runs the full pipeline: collect, filter, sort, group.
func BuildView(snap models.StateSnapshot, sel Selection, now time.Time) View {
	sel = sel.withDefaults()

	all := Collect(snap)
	hasHost := HasHostBackups(all)

	filtered := Filter(all, sel, true)
	Sort(filtered, sel.Sort, sel.Order)
	groups := GroupBackups(filtered, sel.Group, sel.Sort, now)

	return View{
		Groups:         groups,
		Total:          len(filtered),
		HasHostBackups: hasHost,
	}
}

// BuildChart runs collect and filter, then aggregates the trend series.
// The date-range clamp is skipped: the chart's window is its own range.
func BuildChart(snap models.StateSnapshot, sel Selection, days int, now time.Time) Chart {
	sel = sel.withDefaults()
	filtered := Filter(Collect(snap), sel, false)
	return Aggregate(filtered, days, now)
}

// Filter applies the query plan and the discrete selection filters.
func Filter(backups []Backup, sel Selection, clampDates bool) []Backup {
	plan := parseQuery(sel.Query)

	out := make([]Backup, 0, len(backups))
	for _, b := range backups {
		if !plan.Match(b) {
			continue
		}
		if !matchGuestType(b, sel.GuestType) {
			continue
		}
		if !matchSource(b, sel.Source) {
			continue
		}
		if !matchNode(b, sel.Node) {
			continue
		}
		if clampDates && !matchDateRange(b, sel.DateFrom, sel.DateTo) {
			continue
		}
		out = append(out, b)
	}
	return out
}

func matchGuestType(b Backup, want string) bool {
	if want == "" || strings.EqualFold(want, FilterAll) {
		return true
	}
	return strings.EqualFold(string(b.GuestType), want)
}

func matchSource(b Backup, want string) bool {
	if want == "" || strings.EqualFold(want, FilterAll) {
		return true
	}
	return strings.EqualFold(string(b.Provenance), want)
}

// matchNode accepts either the node name or the instance name: operators
// think in both.
func matchNode(b Backup, want string) bool {
	if want == "" || strings.EqualFold(want, FilterAll) {
		return true
	}
	return strings.EqualFold(b.Node, want) || strings.EqualFold(b.Instance, want)
}

func matchDateRange(b Backup, from, to int64) bool {
	if from > 0 && b.Time < from {
		return false
	}
	if to > 0 && b.Time > to {
		return false
	}
	return true
}
