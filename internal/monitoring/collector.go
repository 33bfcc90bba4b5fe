// Package monitoring computes health metrics from the audit store and
// raises webhook alerts when the outreach pipeline degrades.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/store"
)

// MetricsSnapshot holds a point-in-time view of pipeline health within the
// lookback window.
type MetricsSnapshot struct {
	RunsTotal     int     `json:"runs_total"`
	RunsCompleted int     `json:"runs_completed"`
	RunsFailed    int     `json:"runs_failed"`
	RunsRunning   int     `json:"runs_running"`
	RunFailRate   float64 `json:"run_fail_rate"`

	// Aggregated dispatch counters from completed run reports.
	MessagesProcessed int `json:"messages_processed"`
	MessagesSent      int `json:"messages_sent"`
	OptOuts           int `json:"opt_outs"`
	StepFailures      int `json:"step_failures"`

	// Runs per pipeline phase within the window, all statuses.
	RunsByPhase map[string]int `json:"runs_by_phase"`

	// Confirmed sends across all phases, from the sends table.
	SendsInWindow int `json:"sends_in_window"`

	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// Collector gathers metrics from the audit store.
type Collector struct {
	store store.Store
}

// NewCollector creates a metrics collector over the audit store.
func NewCollector(st store.Store) *Collector {
	return &Collector{store: st}
}

// Collect gathers a snapshot of pipeline metrics over the lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	snap := &MetricsSnapshot{
		RunsByPhase:   map[string]int{},
		LookbackHours: lookbackHours,
		CollectedAt:   time.Now().UTC(),
	}
	cutoff := snap.CollectedAt.Add(-time.Duration(lookbackHours) * time.Hour)

	runs, err := c.store.ListRuns(ctx, store.RunFilter{
		StartedAfter: cutoff,
		Limit:        10000,
	})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}

	snap.RunsTotal = len(runs)
	for _, r := range runs {
		snap.RunsByPhase[r.Phase]++
		switch r.Status {
		case model.RunStatusCompleted:
			snap.RunsCompleted++
		case model.RunStatusFailed:
			snap.RunsFailed++
		case model.RunStatusRunning:
			snap.RunsRunning++
		}
		if r.Report != nil {
			snap.MessagesProcessed += r.Report.Processed
			snap.MessagesSent += r.Report.Sent
			snap.OptOuts += r.Report.OptOuts
			snap.StepFailures += r.Report.Failures
		}
	}
	if finished := snap.RunsCompleted + snap.RunsFailed; finished > 0 {
		snap.RunFailRate = float64(snap.RunsFailed) / float64(finished)
	}

	sends, err := c.store.CountSendsSince(ctx, cutoff)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: count sends")
	}
	snap.SendsInWindow = sends

	return snap, nil
}
