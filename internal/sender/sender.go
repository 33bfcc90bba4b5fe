// Package sender executes planned batches of outbound email across sender
// identities: one verified mailbox session per identity, randomized pacing
// between sends, audit recording, and a post-send callback for ledger
// writes. The reply engine has its own loop; this package serves the
// scheduled phases, which plan their sends up front.
package sender

import (
	"context"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/config"
	"github.com/sells-group/outreach-cli/internal/identity"
	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/store"
	"github.com/sells-group/outreach-cli/pkg/gmail"
)

// Planned is one outbound message with the work to do once it is
// confirmed sent. OnSent performs the ledger writes; it runs only after a
// successful send.
type Planned struct {
	Identity string
	Out      gmail.Outgoing
	Kind     string
	OnSent   func(ctx context.Context) error
}

// Batch sends planned messages sequentially with pacing pauses.
type Batch struct {
	Resolver *identity.Resolver
	Audit    store.Store // optional
	RunID    string
	Cfg      config.EngineConfig

	Now   func() time.Time
	Sleep func(time.Duration)
}

// Send works through the plan in order. Messages are grouped by identity
// as planned; an identity that fails to resolve or verify loses all its
// messages for this run. Counters accumulate into report.
func (b *Batch) Send(ctx context.Context, plan []Planned, report *model.RunReport) {
	if b.Now == nil {
		b.Now = time.Now
	}
	if b.Sleep == nil {
		b.Sleep = time.Sleep
	}

	sessions := make(map[string]*identity.Session)
	failed := make(map[string]bool)
	needPause := false

	for _, p := range plan {
		if ctx.Err() != nil {
			return
		}
		addr := model.NormalizeAddress(p.Identity)
		if failed[addr] {
			report.Skipped++
			continue
		}

		sess, ok := sessions[addr]
		if !ok {
			var err error
			sess, err = b.session(ctx, addr)
			if err != nil {
				zap.L().Error("identity unavailable, dropping its planned sends",
					zap.String("identity", addr),
					zap.Error(err),
				)
				failed[addr] = true
				report.Failures++
				report.Skipped++
				continue
			}
			sessions[addr] = sess
		}

		if needPause {
			d := b.pauseDuration()
			zap.L().Debug("pacing pause", zap.Duration("duration", d))
			b.Sleep(d)
		}

		if err := sess.Mail.Send(ctx, p.Out); err != nil {
			zap.L().Error("send failed",
				zap.String("identity", addr),
				zap.String("to", p.Out.To),
				zap.String("kind", p.Kind),
				zap.Error(err),
			)
			report.Failures++
			continue
		}
		report.Sent++
		needPause = true
		b.record(ctx, sess, p)

		if p.OnSent != nil {
			if err := p.OnSent(ctx); err != nil {
				zap.L().Error("post-send update failed",
					zap.String("to", p.Out.To),
					zap.Error(err),
				)
				report.Failures++
			}
		}
	}
}

func (b *Batch) session(ctx context.Context, addr string) (*identity.Session, error) {
	sess, err := b.Resolver.Resolve(ctx, addr)
	if err != nil {
		return nil, err
	}
	if err := identity.Verify(ctx, sess); err != nil {
		return nil, eris.Wrap(err, "sender: verify identity")
	}
	return sess, nil
}

func (b *Batch) record(ctx context.Context, sess *identity.Session, p Planned) {
	if b.Audit == nil {
		return
	}
	rec := model.SendRecord{
		ID:        uuid.NewString(),
		RunID:     b.RunID,
		Identity:  sess.Address,
		Recipient: model.NormalizeAddress(p.Out.To),
		Kind:      p.Kind,
		ThreadID:  p.Out.ThreadID,
		SentAt:    b.Now().UTC(),
	}
	if err := b.Audit.RecordSend(ctx, rec); err != nil {
		zap.L().Warn("audit send record failed", zap.Error(err))
	}
}

func (b *Batch) pauseDuration() time.Duration {
	min, max := b.Cfg.PauseMin, b.Cfg.PauseMax
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int63n(int64(max-min)))
}
