// Package engine runs the reply dispatch loop: one pass over the ledger
// per run, one mailbox session per sender identity, one state machine step
// per whitelisted unread message. Everything is sequential; the pacing
// pauses between sends are the point, not a bottleneck.
package engine

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/classify"
	"github.com/sells-group/outreach-cli/internal/config"
	"github.com/sells-group/outreach-cli/internal/identity"
	"github.com/sells-group/outreach-cli/internal/ledger"
	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/store"
	"github.com/sells-group/outreach-cli/pkg/anthropic"
	"github.com/sells-group/outreach-cli/pkg/gmail"
)

// Engine wires the collaborators of a dispatch run. Audit is optional; a
// nil store disables run recording without changing behavior.
type Engine struct {
	Ledger     *ledger.Accessor
	Resolver   *identity.Resolver
	Classifier classify.Classifier
	Audit      store.Store

	Cfg         config.EngineConfig
	UnreadQuery string

	// Now and Sleep are swapped for fakes in tests. Nil means real time.
	Now   func() time.Time
	Sleep func(time.Duration)
}

// run carries the mutable state of one dispatch pass.
type run struct {
	id     string
	snap   *ledger.Snapshot
	report model.RunReport

	// needPause is armed after every confirmed send so the pacing pause
	// lands between sends, never after the last one.
	needPause bool
}

// Run executes one full dispatch pass: snapshot the ledger, then process
// every sender identity in first-seen row order. Per-identity and per-lead
// failures are absorbed into the report; only run-level failures (snapshot
// unreadable, schema broken) abort.
func (e *Engine) Run(ctx context.Context) (*model.RunReport, error) {
	if e.Now == nil {
		e.Now = time.Now
	}
	if e.Sleep == nil {
		e.Sleep = time.Sleep
	}

	r := &run{}
	if e.Audit != nil {
		rec, err := e.Audit.CreateRun(ctx, "reply")
		if err != nil {
			return nil, eris.Wrap(err, "engine: create audit run")
		}
		r.id = rec.ID
	}

	snap, err := e.Ledger.Snapshot(ctx)
	if err != nil {
		e.completeRun(ctx, r, model.RunStatusFailed)
		return nil, eris.Wrap(err, "engine: snapshot ledger")
	}
	r.snap = snap

	identities := Identities(snap)
	r.report.Identities = len(identities)
	zap.L().Info("dispatch run started",
		zap.Int("identities", len(identities)),
		zap.Int("rows", len(snap.Rows)-1),
	)

	for _, addr := range identities {
		if err := ctx.Err(); err != nil {
			e.completeRun(ctx, r, model.RunStatusFailed)
			return &r.report, eris.Wrap(err, "engine: run canceled")
		}
		e.runIdentity(ctx, r, addr)
	}

	e.completeRun(ctx, r, model.RunStatusCompleted)
	zap.L().Info("dispatch run finished",
		zap.Int("processed", r.report.Processed),
		zap.Int("sent", r.report.Sent),
		zap.Int("skipped", r.report.Skipped),
		zap.Int("opt_outs", r.report.OptOuts),
		zap.Int("failures", r.report.Failures),
	)
	return &r.report, nil
}

// runIdentity processes one sender identity end to end: resolve and verify
// the mailbox, send due payment requests, then work through the unread
// inbox. Any identity-level failure skips the identity, never the run.
func (e *Engine) runIdentity(ctx context.Context, r *run, addr string) {
	log := zap.L().With(zap.String("identity", addr))

	sess, err := e.Resolver.Resolve(ctx, addr)
	if err != nil {
		if eris.Is(err, identity.ErrNoCredential) {
			log.Warn("identity not provisioned, skipping")
		} else {
			log.Error("mailbox resolve failed, skipping identity", zap.Error(err))
			r.report.Failures++
		}
		return
	}
	if err := identity.Verify(ctx, sess); err != nil {
		// Fails closed: a credential acting for the wrong address must
		// never send on this identity's behalf.
		log.Error("identity verification failed, skipping identity", zap.Error(err))
		r.report.Failures++
		return
	}

	wl := BuildWhitelist(r.snap, addr)
	log.Debug("whitelist built", zap.Int("leads", len(wl)))

	e.requestDuePayments(ctx, r, sess, wl)

	ids, err := sess.Mail.ListUnread(ctx, e.UnreadQuery)
	if err != nil {
		log.Error("unread listing failed, skipping inbox", zap.Error(err))
		r.report.Failures++
		return
	}
	for _, msgID := range ids {
		if ctx.Err() != nil {
			return
		}
		e.processMessage(ctx, r, sess, wl, msgID)
	}
}

// requestDuePayments sends the payment request to every whitelisted lead
// whose design is ready but whose payment cycle has not started, and marks
// it Payment Pending once the send is confirmed.
func (e *Engine) requestDuePayments(ctx context.Context, r *run, sess *identity.Session, wl map[string]int) {
	for i := 1; i < len(r.snap.Rows); i++ {
		lead := r.snap.Lead(i)
		if wl[model.NormalizeAddress(lead.Email)] != i {
			continue
		}
		if lead.Status != model.StatusDesignReady || lead.PaymentStatus != model.PaymentNone {
			continue
		}

		out := gmail.Outgoing{
			To:      lead.Email,
			Subject: fmt.Sprintf("Payment for your %s order", lead.SelectedSkill),
			Body:    paymentRequestBody(lead, e.Cfg.PaymentInstructions),
		}
		if !e.send(ctx, r, sess, out, model.SendKindPaymentRequest) {
			continue
		}
		if err := e.Ledger.UpdateCell(ctx, r.snap, lead.Row, ledger.ColPaymentStatus, string(model.PaymentPending)); err != nil {
			zap.L().Error("payment status write failed", zap.Int("row", lead.Row), zap.Error(err))
			r.report.Failures++
		}
	}
}

// processMessage runs one state machine step for one unread message.
func (e *Engine) processMessage(ctx context.Context, r *run, sess *identity.Session, wl map[string]int, msgID string) {
	msg, err := sess.Mail.GetMessage(ctx, msgID)
	if err != nil {
		zap.L().Error("message fetch failed", zap.String("message_id", msgID), zap.Error(err))
		r.report.Failures++
		return
	}

	sender := SenderAddress(msg.From)
	rowIdx, ok := wl[sender]
	if !ok {
		// Not ours to handle. Leave it unread for a human.
		r.report.Skipped++
		return
	}
	lead := r.snap.Lead(rowIdx)
	log := zap.L().With(
		zap.String("identity", sess.Address),
		zap.String("lead", sender),
		zap.Int("row", lead.Row),
	)
	r.report.Processed++

	if WasLastSenderSelf(ctx, sess.Mail, msg.ThreadID, sess.Address) {
		log.Debug("already replied on thread, marking read")
		e.markRead(ctx, r, sess, msg.ID)
		r.report.Skipped++
		return
	}

	body := msg.PlainText()
	if IsOptOut(body, e.Cfg.OptOutKeywords) {
		log.Info("opt-out keyword matched")
		e.recordOptOut(ctx, r, sess, msg, lead)
		return
	}

	var act action
	if lead.PaymentStatus == model.PaymentPending {
		act = e.paymentStep(ctx, r, sess, msg, lead, log)
	} else {
		act = e.replyStep(ctx, r, sess, msg, lead, body, log)
	}
	if act.kind == "" {
		// IntentStop resolved inside replyStep; nothing left to do.
		return
	}

	out := gmail.Outgoing{
		To:       lead.Email,
		Subject:  replySubject(msg.Subject),
		Body:     act.reply,
		ThreadID: msg.ThreadID,
	}
	if !e.send(ctx, r, sess, out, act.kind) {
		// Send unconfirmed: no ledger write, message stays unread so the
		// next run retries it.
		return
	}
	e.applyAction(ctx, r, lead, act)
	e.markRead(ctx, r, sess, msg.ID)
}

// replyStep classifies a text reply. An oracle transport failure degrades
// to the fixed fallback action; an explicit stop intent terminates the
// lead without a reply.
func (e *Engine) replyStep(ctx context.Context, r *run, sess *identity.Session, msg *gmail.Message, lead model.Lead, body string, log *zap.Logger) action {
	cls, err := e.Classifier.ClassifyReply(ctx, lead, body)
	if err != nil {
		log.Warn("classification failed, using fallback reply", zap.Error(err))
		r.report.Failures++
		return fallbackAction()
	}
	if cls.Intent == model.IntentStop {
		log.Info("classifier detected opt-out")
		e.recordOptOut(ctx, r, sess, msg, lead)
		return action{}
	}
	return decideReply(cls)
}

// paymentStep handles a reply from a lead in Payment Pending. A reply with
// a screenshot goes to verification; a reply without one gets a fixed
// reminder and no oracle call.
func (e *Engine) paymentStep(ctx context.Context, r *run, sess *identity.Session, msg *gmail.Message, lead model.Lead, log *zap.Logger) action {
	img, ok, err := e.firstImage(ctx, sess, msg)
	if err != nil {
		log.Error("attachment fetch failed", zap.Error(err))
		r.report.Failures++
		return action{reply: classify.ResendScreenshotReply, kind: model.SendKindReply}
	}
	if !ok {
		return action{
			reply: "We haven't received your payment confirmation yet. " + e.Cfg.PaymentInstructions,
			kind:  model.SendKindReply,
		}
	}

	verdict, err := e.Classifier.VerifyPayment(ctx, lead, img)
	if err != nil {
		log.Warn("payment verification failed, asking for resend", zap.Error(err))
		r.report.Failures++
		return action{reply: classify.ResendScreenshotReply, kind: model.SendKindReply}
	}
	return decidePayment(verdict, lead)
}

// firstImage returns the first image attached to the message, fetching its
// bytes when they are not inline. ok=false means the message carries no image.
func (e *Engine) firstImage(ctx context.Context, sess *identity.Session, msg *gmail.Message) (anthropic.Image, bool, error) {
	parts := msg.ImageParts()
	if len(parts) == 0 {
		return anthropic.Image{}, false, nil
	}
	p := parts[0]
	data := p.Data
	if len(data) == 0 {
		if p.AttachmentID == "" {
			return anthropic.Image{}, false, nil
		}
		fetched, err := sess.Mail.GetAttachment(ctx, msg.ID, p.AttachmentID)
		if err != nil {
			return anthropic.Image{}, false, eris.Wrap(err, "engine: fetch attachment")
		}
		data = fetched
	}
	return anthropic.Image{MediaType: p.MimeType, Data: data}, true, nil
}

// applyAction writes the confirmed action's cells to the live ledger. The
// send already happened; write failures are logged and counted, leaving
// the next run to reconcile.
func (e *Engine) applyAction(ctx context.Context, r *run, lead model.Lead, act action) {
	write := func(col, value string) {
		if value == "" {
			return
		}
		if err := e.Ledger.UpdateCell(ctx, r.snap, lead.Row, col, value); err != nil {
			zap.L().Error("ledger write failed",
				zap.Int("row", lead.Row),
				zap.String("column", col),
				zap.Error(err),
			)
			r.report.Failures++
		}
	}

	write(ledger.ColStatus, string(act.status))
	write(ledger.ColPaymentStatus, string(act.paymentStatus))
	write(ledger.ColOrderReqs, act.requirements)
	if act.delivered {
		write(ledger.ColDeliveryStatus, model.DeliveryDelivered)
		write(ledger.ColDeliveryDate, e.Now().Format("2006-01-02"))
	}
}

// recordOptOut terminates a lead after a keyword opt-out: ledger first,
// then mark read. No reply is ever sent to an opt-out.
func (e *Engine) recordOptOut(ctx context.Context, r *run, sess *identity.Session, msg *gmail.Message, lead model.Lead) {
	if err := e.Ledger.UpdateCell(ctx, r.snap, lead.Row, ledger.ColStatus, string(model.StatusOptOut)); err != nil {
		zap.L().Error("opt-out write failed", zap.Int("row", lead.Row), zap.Error(err))
		r.report.Failures++
		return
	}
	e.markRead(ctx, r, sess, msg.ID)
	r.report.OptOuts++
}

// send pauses (when a previous send happened), dispatches, and records the
// audit row. Returns false when the send was not confirmed; callers must
// not advance any state in that case.
func (e *Engine) send(ctx context.Context, r *run, sess *identity.Session, out gmail.Outgoing, kind string) bool {
	if r.needPause {
		d := e.pauseDuration()
		zap.L().Debug("pacing pause", zap.Duration("duration", d))
		e.Sleep(d)
	}

	if err := sess.Mail.Send(ctx, out); err != nil {
		zap.L().Error("send failed",
			zap.String("identity", sess.Address),
			zap.String("to", out.To),
			zap.String("kind", kind),
			zap.Error(err),
		)
		r.report.Failures++
		return false
	}
	r.report.Sent++
	r.needPause = true

	if e.Audit != nil {
		rec := model.SendRecord{
			ID:        uuid.NewString(),
			RunID:     r.id,
			Identity:  sess.Address,
			Recipient: model.NormalizeAddress(out.To),
			Kind:      kind,
			ThreadID:  out.ThreadID,
			SentAt:    e.Now().UTC(),
		}
		if err := e.Audit.RecordSend(ctx, rec); err != nil {
			zap.L().Warn("audit send record failed", zap.Error(err))
		}
	}
	return true
}

func (e *Engine) markRead(ctx context.Context, r *run, sess *identity.Session, msgID string) {
	if err := sess.Mail.MarkRead(ctx, msgID); err != nil {
		zap.L().Warn("mark read failed", zap.String("message_id", msgID), zap.Error(err))
		r.report.Failures++
	}
}

func (e *Engine) completeRun(ctx context.Context, r *run, status model.RunStatus) {
	if e.Audit == nil {
		return
	}
	if err := e.Audit.CompleteRun(ctx, r.id, status, &r.report); err != nil {
		zap.L().Warn("audit run completion failed", zap.Error(err))
	}
}

// pauseDuration picks a uniform random pause in [PauseMin, PauseMax].
func (e *Engine) pauseDuration() time.Duration {
	min, max := e.Cfg.PauseMin, e.Cfg.PauseMax
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int63n(int64(max-min)))
}

// replySubject threads the outgoing subject under the inbound one.
func replySubject(subject string) string {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(subject)), "re:") {
		return subject
	}
	return "Re: " + subject
}

// paymentRequestBody is the fixed payment request sent when a lead's
// design is ready.
func paymentRequestBody(lead model.Lead, instructions string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", lead.ClientName)
	fmt.Fprintf(&b, "Great news: your %s order is ready. ", lead.SelectedSkill)
	b.WriteString("To receive the final files, please complete the payment.\n\n")
	b.WriteString(instructions)
	b.WriteString("\n\nOnce paid, reply here with the confirmation screenshot and we'll send everything over right away.\n")
	return b.String()
}
