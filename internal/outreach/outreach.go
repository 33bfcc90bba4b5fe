// Package outreach runs the scheduled outbound phases: the initial cold
// email on a lead's send date and the follow-up nudge when the initial
// email goes unanswered.
package outreach

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/config"
	"github.com/sells-group/outreach-cli/internal/identity"
	"github.com/sells-group/outreach-cli/internal/ledger"
	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/sender"
	"github.com/sells-group/outreach-cli/internal/store"
	"github.com/sells-group/outreach-cli/pkg/gmail"
)

// Runner executes one outreach or follow-up pass.
type Runner struct {
	Ledger   *ledger.Accessor
	Resolver *identity.Resolver
	Audit    store.Store // optional

	Engine config.EngineConfig
	Cfg    config.OutreachConfig

	Now   func() time.Time
	Sleep func(time.Duration)
}

// Run sends the initial outreach email to every lead whose send date has
// arrived and marks each confirmed send as Sent.
func (r *Runner) Run(ctx context.Context) (*model.RunReport, error) {
	return r.run(ctx, "outreach", r.planInitial)
}

// RunFollowUps sends the follow-up nudge to leads stuck in Sent past the
// follow-up window and marks each confirmed send as Followed Up.
func (r *Runner) RunFollowUps(ctx context.Context) (*model.RunReport, error) {
	return r.run(ctx, "followup", r.planFollowUps)
}

func (r *Runner) run(ctx context.Context, phase string, plan func(*ledger.Snapshot) []sender.Planned) (*model.RunReport, error) {
	if r.Now == nil {
		r.Now = time.Now
	}

	var runID string
	if r.Audit != nil {
		rec, err := r.Audit.CreateRun(ctx, phase)
		if err != nil {
			return nil, eris.Wrap(err, "outreach: create audit run")
		}
		runID = rec.ID
	}
	report := &model.RunReport{}
	complete := func(status model.RunStatus) {
		if r.Audit == nil {
			return
		}
		if err := r.Audit.CompleteRun(ctx, runID, status, report); err != nil {
			zap.L().Warn("audit run completion failed", zap.Error(err))
		}
	}

	snap, err := r.Ledger.Snapshot(ctx)
	if err != nil {
		complete(model.RunStatusFailed)
		return nil, eris.Wrap(err, "outreach: snapshot ledger")
	}

	planned := plan(snap)
	report.Processed = len(planned)
	zap.L().Info("outbound phase planned",
		zap.String("phase", phase),
		zap.Int("planned", len(planned)),
	)

	batch := &sender.Batch{
		Resolver: r.Resolver,
		Audit:    r.Audit,
		RunID:    runID,
		Cfg:      r.Engine,
		Now:      r.Now,
		Sleep:    r.Sleep,
	}
	batch.Send(ctx, planned, report)

	complete(model.RunStatusCompleted)
	zap.L().Info("outbound phase finished",
		zap.String("phase", phase),
		zap.Int("sent", report.Sent),
		zap.Int("skipped", report.Skipped),
		zap.Int("failures", report.Failures),
	)
	return report, nil
}

// planInitial selects uncontacted leads whose send date is today or
// earlier. Leads without a parsable send date are never picked up.
func (r *Runner) planInitial(snap *ledger.Snapshot) []sender.Planned {
	today := dateOnly(r.Now())
	var plan []sender.Planned
	for _, lead := range snap.Leads() {
		if lead.Email == "" || lead.Owner == "" {
			continue
		}
		if lead.Status != "" && lead.Status != model.StatusPending {
			continue
		}
		due, ok := ParseDate(lead.SendDate)
		if !ok || dateOnly(due).After(today) {
			continue
		}

		lead := lead
		plan = append(plan, sender.Planned{
			Identity: lead.Owner,
			Kind:     model.SendKindOutreach,
			Out: gmail.Outgoing{
				To:      lead.Email,
				Subject: InitialSubject(lead),
				Body:    InitialBody(lead, r.Cfg.SenderName),
			},
			OnSent: func(ctx context.Context) error {
				return r.Ledger.UpdateCell(ctx, snap, lead.Row, ledger.ColStatus, string(model.StatusSent))
			},
		})
	}
	return plan
}

// planFollowUps selects leads still in Sent whose send date is at least
// FollowUpDays behind today.
func (r *Runner) planFollowUps(snap *ledger.Snapshot) []sender.Planned {
	days := r.Cfg.FollowUpDays
	if days <= 0 {
		days = 3
	}
	cutoff := dateOnly(r.Now()).AddDate(0, 0, -days)

	var plan []sender.Planned
	for _, lead := range snap.Leads() {
		if lead.Email == "" || lead.Owner == "" || lead.Status != model.StatusSent {
			continue
		}
		sent, ok := ParseDate(lead.SendDate)
		if !ok || dateOnly(sent).After(cutoff) {
			continue
		}

		lead := lead
		plan = append(plan, sender.Planned{
			Identity: lead.Owner,
			Kind:     model.SendKindFollowUp,
			Out: gmail.Outgoing{
				To:      lead.Email,
				Subject: FollowUpSubject(lead),
				Body:    FollowUpBody(lead, r.Cfg.SenderName),
			},
			OnSent: func(ctx context.Context) error {
				return r.Ledger.UpdateCell(ctx, snap, lead.Row, ledger.ColStatus, string(model.StatusFollowedUp))
			},
		})
	}
	return plan
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
