package ledger

// Canonical ledger column names. Columns are resolved by name, never by
// position, except for the documented Payment Status fallback below.
const (
	ColEmail          = "Email"
	ColStatus         = "Status"
	ColClientName     = "Client Name"
	ColGmailAccount   = "Gmail Account"
	ColSelectedSkill  = "Selected Skill"
	ColFirstPrice     = "First Price"
	ColOfferPrice     = "Offer Price"
	ColFinalPrice     = "Final Price"
	ColFreeGift       = "Free Gift"
	ColPortfolioLink  = "Portfolio Link"
	ColPaymentStatus  = "Payment Status"
	ColFinalDriveLink = "Final Drive Link"
	ColDeliveryStatus = "Delivery Status"
	ColDeliveryDate   = "Delivery Date"
	ColSendDate       = "Email Sending Date"
	ColOrderReqs      = "Order Requirements"
	ColWebsite        = "Website"
	ColClientType     = "Client Type"
	ColInstagramLink  = "Instagram Link"
)

// RequiredColumns must all be present for a run to proceed. A missing
// required column aborts the whole run; it is not locally recoverable.
var RequiredColumns = []string{
	ColEmail,
	ColStatus,
	ColClientName,
	ColGmailAccount,
	ColSelectedSkill,
	ColOfferPrice,
	ColFinalPrice,
	ColFreeGift,
	ColPortfolioLink,
	ColFinalDriveLink,
	ColDeliveryStatus,
	ColDeliveryDate,
}

// paymentStatusFallback is the 0-based column index assumed for Payment
// Status when the header is absent. Compatibility shim for older ledger
// copies that predate the named column.
const paymentStatusFallback = 13
