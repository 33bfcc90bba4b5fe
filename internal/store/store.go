package store

import (
	"context"
	"time"

	"github.com/sells-group/outreach-cli/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Phase        string          `json:"phase,omitempty"`
	Status       model.RunStatus `json:"status,omitempty"`
	StartedAfter time.Time       `json:"started_after,omitempty"`
	Limit        int             `json:"limit,omitempty"`
	Offset       int             `json:"offset,omitempty"`
}

// Store is the audit trail for phase runs and confirmed sends. The engine
// never reads it to make decisions; idempotence comes from the thread
// guard and the ledger, the store only records what happened.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, phase string) (*model.Run, error)
	CompleteRun(ctx context.Context, runID string, status model.RunStatus, report *model.RunReport) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Sends
	RecordSend(ctx context.Context, rec model.SendRecord) error
	ListSends(ctx context.Context, runID string) ([]model.SendRecord, error)
	CountSendsSince(ctx context.Context, since time.Time) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
