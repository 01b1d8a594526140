package runner

import (
	"sort"

	"github.com/loadgic/loadgic/internal/languages"
	"github.com/loadgic/loadgic/internal/marker"
)

// Span is the time between two consecutive probe firings.
type Span struct {
	From       int         `json:"from"`
	To         int         `json:"to"`
	FromMarker marker.Kind `json:"from_marker"`
	ToMarker   marker.Kind `json:"to_marker"`
	// Duration is in milliseconds.
	Duration float64 `json:"duration"`
}

// Summary aggregates the metrics of one run.
type Summary struct {
	TotalMetrics int    `json:"total_metrics"`
	Entries      int    `json:"entries"`
	Breaks       int    `json:"breaks"`
	Exits        int    `json:"exits"`
	Durations    []Span `json:"durations"`
}

// Summarize counts metrics by kind and measures each adjacent pair after a
// stable sort by timestamp. Stderr and trace-file metrics arrive out of
// order, so arrival order is not used.
func Summarize(metrics []languages.Metric) Summary {
	sorted := make([]languages.Metric, len(metrics))
	copy(sorted, metrics)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Time < sorted[j].Time
	})

	summary := Summary{TotalMetrics: len(sorted), Durations: make([]Span, 0)}
	for _, m := range sorted {
		switch m.Marker {
		case marker.Entry:
			summary.Entries++
		case marker.Break:
			summary.Breaks++
		case marker.Exit:
			summary.Exits++
		}
	}
	for i := 0; i+1 < len(sorted); i++ {
		curr, next := sorted[i], sorted[i+1]
		summary.Durations = append(summary.Durations, Span{
			From:       curr.Line,
			To:         next.Line,
			FromMarker: curr.Marker,
			ToMarker:   next.Marker,
			Duration:   (next.Time - curr.Time) * 1000,
		})
	}
	return summary
}
