// Package delivery sends the final files to paid-up leads whose work is
// marked Done and records the delivery on the ledger.
package delivery

import (
	"context"
	"fmt"
	"strings"
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

// Runner executes one delivery pass.
type Runner struct {
	Ledger   *ledger.Accessor
	Resolver *identity.Resolver
	Audit    store.Store // optional

	Engine config.EngineConfig
	Cfg    config.OutreachConfig

	Now   func() time.Time
	Sleep func(time.Duration)
}

// Run delivers every lead marked Done with a drive link and no delivery
// yet. Each confirmed send flips Status to Delivered and records the
// delivery status and date.
func (r *Runner) Run(ctx context.Context) (*model.RunReport, error) {
	if r.Now == nil {
		r.Now = time.Now
	}

	var runID string
	if r.Audit != nil {
		rec, err := r.Audit.CreateRun(ctx, "deliver")
		if err != nil {
			return nil, eris.Wrap(err, "delivery: create audit run")
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
		return nil, eris.Wrap(err, "delivery: snapshot ledger")
	}

	plan := r.plan(snap)
	report.Processed = len(plan)
	zap.L().Info("delivery pass planned", zap.Int("planned", len(plan)))

	batch := &sender.Batch{
		Resolver: r.Resolver,
		Audit:    r.Audit,
		RunID:    runID,
		Cfg:      r.Engine,
		Now:      r.Now,
		Sleep:    r.Sleep,
	}
	batch.Send(ctx, plan, report)

	complete(model.RunStatusCompleted)
	zap.L().Info("delivery pass finished",
		zap.Int("sent", report.Sent),
		zap.Int("failures", report.Failures),
	)
	return report, nil
}

func (r *Runner) plan(snap *ledger.Snapshot) []sender.Planned {
	var plan []sender.Planned
	for _, lead := range snap.Leads() {
		if lead.Email == "" || lead.Owner == "" {
			continue
		}
		if lead.Status != model.StatusDone || lead.DeliveryStatus != "" {
			continue
		}
		if strings.TrimSpace(lead.FinalDriveLink) == "" {
			zap.L().Warn("lead is Done but has no drive link, skipping",
				zap.Int("row", lead.Row),
			)
			continue
		}

		lead := lead
		plan = append(plan, sender.Planned{
			Identity: lead.Owner,
			Kind:     model.SendKindDelivery,
			Out: gmail.Outgoing{
				To:      lead.Email,
				Subject: fmt.Sprintf("Your %s order is ready", strings.ToLower(lead.SelectedSkill)),
				Body:    body(lead, r.Cfg.SenderName),
			},
			OnSent: func(ctx context.Context) error {
				return r.markDelivered(ctx, snap, lead)
			},
		})
	}
	return plan
}

// markDelivered records the delivery on the ledger. Cell writes after the
// first can fail independently; each failure is reported but the rest are
// still attempted so the row is as complete as possible.
func (r *Runner) markDelivered(ctx context.Context, snap *ledger.Snapshot, lead model.Lead) error {
	var firstErr error
	writes := []struct{ col, value string }{
		{ledger.ColStatus, string(model.StatusDelivered)},
		{ledger.ColDeliveryStatus, model.DeliveryDelivered},
		{ledger.ColDeliveryDate, r.Now().Format("2006-01-02")},
	}
	for _, w := range writes {
		if err := r.Ledger.UpdateCell(ctx, snap, lead.Row, w.col, w.value); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func body(lead model.Lead, senderName string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", strings.TrimSpace(lead.ClientName))
	fmt.Fprintf(&b, "Your %s order is complete. You can download everything here:\n\n%s\n\n",
		strings.ToLower(lead.SelectedSkill), lead.FinalDriveLink)
	b.WriteString("If anything needs a tweak, just reply to this email.\n\n")
	fmt.Fprintf(&b, "Best,\n%s", senderName)
	return b.String()
}
