package unified

import (
	"time"

	"github.com/vaultscope/vaultscope/internal/models"
)

// ChartPoint is one day's worth of provenance counts.
type ChartPoint struct {
	Date      string `json:"date"` // 2006-01-02
	Label     string `json:"label"`
	Snapshots int    `json:"snapshots"`
	Local     int    `json:"local"`
	Remote    int    `json:"remote"`
	Total     int    `json:"total"`
}

// Chart is the aggregated trend series for one lookback window.
type Chart struct {
	Points   []ChartPoint `json:"points"`
	MaxTotal int          `json:"maxTotal"`
}

// ChartWindows are the supported lookback windows in days.
var ChartWindows = []int{7, 30, 90, 365}

// normalizeWindow clamps an arbitrary day count to the nearest supported
// window at or above it, capping at the largest.
func normalizeWindow(days int) int {
	for _, w := range ChartWindows {
		if days <= w {
			return w
		}
	}
	return ChartWindows[len(ChartWindows)-1]
}

// Aggregate counts records per day per provenance over the window ending
// today. Every day in the window gets a point even when empty, oldest
// first, so the series always has exactly `days` rows.
func Aggregate(backups []Backup, days int, now time.Time) Chart {
	days = normalizeWindow(days)
	start := now.AddDate(0, 0, -(days - 1))

	points := make([]ChartPoint, days)
	index := make(map[string]int, days)
	for i := 0; i < days; i++ {
		d := start.AddDate(0, 0, i)
		date := d.Format("2006-01-02")
		points[i] = ChartPoint{Date: date, Label: d.Format("Jan 2")}
		index[date] = i
	}

	for _, b := range backups {
		if b.Time == 0 {
			continue
		}
		date := time.Unix(b.Time, 0).Format("2006-01-02")
		i, ok := index[date]
		if !ok {
			continue
		}
		switch b.Provenance {
		case ProvenanceSnapshot:
			points[i].Snapshots++
		case ProvenanceLocal:
			points[i].Local++
		case ProvenanceRemote:
			points[i].Remote++
		}
		points[i].Total++
	}

	maxTotal := 1 // floor keeps chart scaling sane on empty windows
	for _, p := range points {
		if p.Total > maxTotal {
			maxTotal = p.Total
		}
	}
	return Chart{Points: points, MaxTotal: maxTotal}
}

// DedupFactor averages the positive deduplication factors reported across
// all datastores of all backup server instances. Zero means no datastore
// reported one.
func DedupFactor(instances []models.PBSInstance) float64 {
	var sum float64
	var n int
	for _, inst := range instances {
		for _, ds := range inst.Datastores {
			if ds.DeduplicationFactor > 0 {
				sum += ds.DeduplicationFactor
				n++
			}
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
