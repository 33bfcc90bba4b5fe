package model

import "strings"

// Status is the negotiation lifecycle state of a lead. The zero value
// (empty cell) means the lead has not been contacted yet.
type Status string

const (
	StatusPending     Status = "Pending"
	StatusSent        Status = "Sent"
	StatusFollowedUp  Status = "Followed Up"
	StatusNegotiating Status = "Negotiating"
	StatusOrdered     Status = "Ordered"
	StatusOptOut      Status = "Opt-out"
	StatusDesignReady Status = "Design Ready"
	StatusDone        Status = "Done"
	StatusDelivered   Status = "Delivered"
)

// PaymentStatus tracks the orthogonal payment lifecycle once a lead has ordered.
type PaymentStatus string

const (
	PaymentNone    PaymentStatus = ""
	PaymentPending PaymentStatus = "Payment Pending"
	PaymentDone    PaymentStatus = "Payment Done"
)

// DeliveryDelivered is the only non-empty delivery status value.
const DeliveryDelivered = "Delivered"

// Lead is one ledger row. Row is the 1-based sheet row the lead came from,
// so cell writes can address the live ledger directly.
type Lead struct {
	Row int

	Email      string
	ClientName string
	Owner      string // owning sender identity (Gmail Account column)

	Status   Status
	SendDate string

	SelectedSkill string
	FirstPrice    string
	OfferPrice    string
	FinalPrice    string
	FreeGift      string
	PortfolioLink string

	Website    string
	ClientType string

	OrderRequirements string
	PaymentStatus     PaymentStatus
	FinalDriveLink    string
	DeliveryStatus    string
	DeliveryDate      string

	InstagramLink string
}

// Terminal reports whether the automated pipeline is done with this lead.
// Terminal leads never re-enter a run's whitelist.
func (l Lead) Terminal() bool {
	switch l.Status {
	case StatusOrdered, StatusOptOut:
		return true
	}
	return l.PaymentStatus == PaymentDone
}

// OwnedBy reports whether the lead belongs to the given sender identity,
// compared case-insensitively.
func (l Lead) OwnedBy(identity string) bool {
	return strings.EqualFold(strings.TrimSpace(l.Owner), strings.TrimSpace(identity))
}

// NormalizeAddress lowercases and trims an email address for map keys and
// equality checks.
func NormalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}
