package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach-cli/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := NewSQLite(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestSQLiteRunLifecycle(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "reply")
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusRunning, run.Status)

	report := &model.RunReport{Identities: 2, Processed: 5, Sent: 3, OptOuts: 1}
	require.NoError(t, st.CompleteRun(ctx, run.ID, model.RunStatusCompleted, report))

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusCompleted, got.Status)
	require.NotNil(t, got.Report)
	assert.Equal(t, 3, got.Report.Sent)
	require.NotNil(t, got.FinishedAt)
}

func TestSQLiteCompleteRunUnknownID(t *testing.T) {
	st := newTestStore(t)
	err := st.CompleteRun(context.Background(), "nope", model.RunStatusCompleted, nil)
	assert.Error(t, err)
}

func TestSQLiteGetRunUnknownID(t *testing.T) {
	st := newTestStore(t)
	_, err := st.GetRun(context.Background(), "nope")
	assert.Error(t, err)
}

func TestSQLiteListRunsFilters(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	reply, err := st.CreateRun(ctx, "reply")
	require.NoError(t, err)
	require.NoError(t, st.CompleteRun(ctx, reply.ID, model.RunStatusFailed, nil))
	_, err = st.CreateRun(ctx, "outreach")
	require.NoError(t, err)

	runs, err := st.ListRuns(ctx, RunFilter{Phase: "reply"})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, reply.ID, runs[0].ID)

	runs, err = st.ListRuns(ctx, RunFilter{Status: model.RunStatusRunning})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "outreach", runs[0].Phase)

	runs, err = st.ListRuns(ctx, RunFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, runs, 1)

	runs, err = st.ListRuns(ctx, RunFilter{StartedAfter: time.Now().Add(time.Hour)})
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestSQLiteSends(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "outreach")
	require.NoError(t, err)

	base := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, st.RecordSend(ctx, model.SendRecord{
		RunID:     run.ID,
		Identity:  "sender@studio.com",
		Recipient: "a@shop.com",
		Kind:      model.SendKindOutreach,
		SentAt:    base,
	}))
	require.NoError(t, st.RecordSend(ctx, model.SendRecord{
		ID:        "send-2",
		RunID:     run.ID,
		Identity:  "sender@studio.com",
		Recipient: "b@shop.com",
		Kind:      model.SendKindReply,
		ThreadID:  "t9",
		SentAt:    base.Add(time.Second),
	}))

	sends, err := st.ListSends(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, sends, 2)
	assert.NotEmpty(t, sends[0].ID, "missing ids are assigned")
	assert.Equal(t, "a@shop.com", sends[0].Recipient)
	assert.Equal(t, "t9", sends[1].ThreadID)

	count, err := st.CountSendsSince(ctx, base.Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = st.CountSendsSince(ctx, base.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
