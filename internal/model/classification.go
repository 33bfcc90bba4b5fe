package model

// Intent is the classifier's categorical judgment of an inbound reply.
type Intent string

const (
	IntentNegotiating Intent = "negotiating"
	IntentOrdered     Intent = "ordered"
	IntentStop        Intent = "stop"
)

// ReplyClassification is the structured result of classifying an inbound
// text reply. Produced fresh per message and never persisted except through
// its effect on the lead's ledger row.
type ReplyClassification struct {
	Intent       Intent `json:"intent"`
	Reply        string `json:"reply"`
	Requirements string `json:"requirements,omitempty"`
}

// PaymentVerdict is the result of vision-classifying a payment screenshot.
type PaymentVerdict struct {
	Verified bool   `json:"verified"`
	Reply    string `json:"reply"`
}

// Client types assigned by the lead qualifier.
const (
	ClientTypeVIP         = "VIP"
	ClientTypeNormal      = "Normal"
	ClientTypeCheckManual = "Check Manual"
)
