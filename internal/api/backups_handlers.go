package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog/log"

	"github.com/vaultscope/vaultscope/internal/metrics"
	"github.com/vaultscope/vaultscope/internal/unified"
)

// displayBackup decorates a canonical record with a humanized size for the
// UI.
type displayBackup struct {
	unified.Backup
	SizeFormatted string `json:"sizeFormatted,omitempty"`
}

type displayGroup struct {
	Key   string          `json:"key"`
	Label string          `json:"label"`
	Items []displayBackup `json:"items"`
}

type unifiedResponse struct {
	Groups         []displayGroup `json:"groups"`
	Total          int            `json:"total"`
	HasHostBackups bool           `json:"hasHostBackups"`
}

type chartResponse struct {
	Points      []unified.ChartPoint `json:"points"`
	MaxTotal    int                  `json:"maxTotal"`
	Days        int                  `json:"days"`
	DedupFactor float64              `json:"dedupFactor"`
}

// selectionFromRequest reads the view knobs off the query string. Every
// parameter has a forgiving default; garbage never fails the request.
func selectionFromRequest(req *http.Request) unified.Selection {
	q := req.URL.Query()

	sel := unified.Selection{
		Query:     q.Get("q"),
		Sort:      unified.ParseSortKey(q.Get("sort")),
		Order:     unified.ParseSortOrder(q.Get("order")),
		Group:     unified.ParseGroupMode(q.Get("group")),
		GuestType: q.Get("type"),
		Source:    q.Get("source"),
		Node:      q.Get("node"),
	}
	if v := q.Get("start"); v != "" {
		if ts, err := strconv.ParseInt(v, 10, 64); err == nil {
			sel.DateFrom = ts
		}
	}
	if v := q.Get("end"); v != "" {
		if ts, err := strconv.ParseInt(v, 10, 64); err == nil {
			sel.DateTo = ts
		}
	}
	return sel
}

func (r *Router) handleBackupsUnified(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	metrics.RequestsTotal.WithLabelValues("backups_unified").Inc()

	passID := ulid.Make().String()
	sel := selectionFromRequest(req)

	started := time.Now()
	view := unified.BuildView(r.state.GetSnapshot(), sel, r.now())
	elapsed := time.Since(started)
	metrics.ObserveUnifyPass(elapsed.Seconds(), view.Total)

	log.Debug().
		Str("pass", passID).
		Str("query", sel.Query).
		Int("total", view.Total).
		Dur("elapsed", elapsed).
		Msg("Served unified backup view")

	writeJSON(w, toUnifiedResponse(view))
}

func (r *Router) handleBackupsChart(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	metrics.RequestsTotal.WithLabelValues("backups_chart").Inc()

	days := 7
	if v := req.URL.Query().Get("days"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			days = n
		}
	}

	sel := selectionFromRequest(req)
	snap := r.state.GetSnapshot()
	chart := unified.BuildChart(snap, sel, days, r.now())

	writeJSON(w, chartResponse{
		Points:      chart.Points,
		MaxTotal:    chart.MaxTotal,
		Days:        len(chart.Points),
		DedupFactor: unified.DedupFactor(snap.PBSInstances),
	})
}

func toUnifiedResponse(view unified.View) unifiedResponse {
	groups := make([]displayGroup, len(view.Groups))
	for i, g := range view.Groups {
		items := make([]displayBackup, len(g.Items))
		for j, b := range g.Items {
			d := displayBackup{Backup: b}
			if b.Size != nil {
				d.SizeFormatted = humanize.IBytes(uint64(*b.Size))
			}
			items[j] = d
		}
		groups[i] = displayGroup{Key: g.Key, Label: g.Label, Items: items}
	}
	return unifiedResponse{
		Groups:         groups,
		Total:          view.Total,
		HasHostBackups: view.HasHostBackups,
	}
}
