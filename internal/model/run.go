package model

import "time"

// RunStatus is the lifecycle state of a recorded phase run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Run is one recorded execution of a phase in the audit store.
type Run struct {
	ID         string     `json:"id"`
	Phase      string     `json:"phase"`
	Status     RunStatus  `json:"status"`
	Report     *RunReport `json:"report,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// RunReport aggregates per-run counters for the audit trail.
type RunReport struct {
	Identities int `json:"identities"`
	Processed  int `json:"processed"`
	Sent       int `json:"sent"`
	Skipped    int `json:"skipped"`
	OptOuts    int `json:"opt_outs"`
	Failures   int `json:"failures"`
}

// Send kinds recorded in the audit store.
const (
	SendKindOutreach       = "outreach"
	SendKindFollowUp       = "followup"
	SendKindReply          = "reply"
	SendKindPaymentRequest = "payment_request"
	SendKindDelivery       = "delivery"
)

// SendRecord is one confirmed outbound message in the audit store.
type SendRecord struct {
	ID        string    `json:"id"`
	RunID     string    `json:"run_id"`
	Identity  string    `json:"identity"`
	Recipient string    `json:"recipient"`
	Kind      string    `json:"kind"`
	ThreadID  string    `json:"thread_id,omitempty"`
	SentAt    time.Time `json:"sent_at"`
}
