package engine

import (
	"github.com/sells-group/outreach-cli/internal/classify"
	"github.com/sells-group/outreach-cli/internal/model"
)

// action is the outcome of one state machine step: the reply to send (if
// any) and the ledger cells to advance once the send is confirmed.
type action struct {
	reply string

	status        model.Status        // "" = unchanged
	paymentStatus model.PaymentStatus // "" = unchanged
	delivered     bool                // set delivery status + date
	requirements  string              // persist when non-empty

	kind string // audit send kind
}

// decideReply maps a text classification onto the transition table.
// IntentStop is handled by the caller (it terminates without a reply).
func decideReply(cls model.ReplyClassification) action {
	act := action{
		reply: cls.Reply,
		kind:  model.SendKindReply,
	}
	switch cls.Intent {
	case model.IntentOrdered:
		act.status = model.StatusOrdered
		act.requirements = cls.Requirements
	default:
		act.status = model.StatusNegotiating
	}
	return act
}

// decidePayment maps a payment screenshot verdict for a lead already in
// Payment Pending. Verified advances payment and delivery together;
// inconclusive keeps the lead pending and asks for a clearer screenshot.
func decidePayment(v model.PaymentVerdict, lead model.Lead) action {
	act := action{
		reply: v.Reply,
		kind:  model.SendKindReply,
	}
	if v.Verified {
		act.paymentStatus = model.PaymentDone
		act.delivered = true
		if lead.FinalDriveLink != "" {
			act.reply = v.Reply + "\n\nYour deliverable: " + lead.FinalDriveLink
		}
	}
	return act
}

// fallbackAction is applied when the classification oracle fails: a fixed
// generic reply and a safe Negotiating status. One lead's oracle failure
// never aborts the run.
func fallbackAction() action {
	return decideReply(classify.DefaultReplyClassification())
}
