package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach-cli/internal/config"
	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/store"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) CreateRun(ctx context.Context, phase string) (*model.Run, error) {
	args := m.Called(ctx, phase)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Run), args.Error(1)
}

func (m *mockStore) CompleteRun(ctx context.Context, runID string, status model.RunStatus, report *model.RunReport) error {
	args := m.Called(ctx, runID, status, report)
	return args.Error(0)
}

func (m *mockStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Run), args.Error(1)
}

func (m *mockStore) ListRuns(ctx context.Context, filter store.RunFilter) ([]model.Run, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Run), args.Error(1)
}

func (m *mockStore) RecordSend(ctx context.Context, rec model.SendRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *mockStore) ListSends(ctx context.Context, runID string) ([]model.SendRecord, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.SendRecord), args.Error(1)
}

func (m *mockStore) CountSendsSince(ctx context.Context, since time.Time) (int, error) {
	args := m.Called(ctx, since)
	return args.Int(0), args.Error(1)
}

func (m *mockStore) Migrate(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

func TestCollect(t *testing.T) {
	st := &mockStore{}
	st.On("ListRuns", mock.Anything, mock.MatchedBy(func(f store.RunFilter) bool {
		return f.Limit == 10000 && !f.StartedAfter.IsZero()
	})).Return([]model.Run{
		{Phase: "reply", Status: model.RunStatusCompleted, Report: &model.RunReport{Processed: 10, Sent: 4, OptOuts: 1, Failures: 2}},
		{Phase: "reply", Status: model.RunStatusCompleted, Report: &model.RunReport{Processed: 5, Sent: 3}},
		{Phase: "outreach", Status: model.RunStatusFailed},
		{Phase: "qualify", Status: model.RunStatusRunning},
	}, nil)
	st.On("CountSendsSince", mock.Anything, mock.Anything).Return(7, nil)

	snap, err := NewCollector(st).Collect(context.Background(), 24)
	require.NoError(t, err)

	assert.Equal(t, 4, snap.RunsTotal)
	assert.Equal(t, 2, snap.RunsCompleted)
	assert.Equal(t, 1, snap.RunsFailed)
	assert.Equal(t, 1, snap.RunsRunning)
	assert.InDelta(t, 1.0/3.0, snap.RunFailRate, 0.001)
	assert.Equal(t, 15, snap.MessagesProcessed)
	assert.Equal(t, 7, snap.MessagesSent)
	assert.Equal(t, 1, snap.OptOuts)
	assert.Equal(t, 2, snap.StepFailures)
	assert.Equal(t, 7, snap.SendsInWindow)
	assert.Equal(t, 24, snap.LookbackHours)
	assert.Equal(t, map[string]int{"reply": 2, "outreach": 1, "qualify": 1}, snap.RunsByPhase)
}

func TestCheckerAlertsOnStartupCheck(t *testing.T) {
	st := &mockStore{}
	st.On("ListRuns", mock.Anything, mock.Anything).Return([]model.Run{
		{Phase: "reply", Status: model.RunStatusFailed},
		{Phase: "reply", Status: model.RunStatusFailed},
		{Phase: "outreach", Status: model.RunStatusCompleted},
		{Phase: "outreach", Status: model.RunStatusCompleted},
	}, nil)
	st.On("CountSendsSince", mock.Anything, mock.Anything).Return(0, nil)

	hit := make(chan struct{}, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case hit <- struct{}{}:
		default:
		}
	}))
	defer srv.Close()

	cfg := config.MonitoringConfig{
		WebhookURL:           srv.URL,
		FailureRateThreshold: 0.3,
		LookbackWindowHours:  24,
		CheckIntervalSecs:    3600,
	}
	c := NewChecker(NewCollector(st), NewAlerter(cfg), cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	// Half the finished runs failed, so the first check fires the failure
	// rate alert well before any ticker interval elapses.
	select {
	case <-hit:
	case <-time.After(2 * time.Second):
		t.Fatal("startup check delivered no alert")
	}
	cancel()
	<-done
}

func TestEvaluateThresholds(t *testing.T) {
	cfg := config.MonitoringConfig{
		FailureRateThreshold: 0.3,
		SendVolumeThreshold:  400,
	}
	a := NewAlerter(cfg)

	t.Run("healthy snapshot raises nothing", func(t *testing.T) {
		alerts := a.Evaluate(&MetricsSnapshot{
			RunsCompleted: 10, RunsFailed: 1,
			MessagesProcessed: 100, StepFailures: 3,
			SendsInWindow: 50,
		})
		assert.Empty(t, alerts)
	})

	t.Run("failure rate breach", func(t *testing.T) {
		alerts := a.Evaluate(&MetricsSnapshot{
			RunsCompleted: 2, RunsFailed: 2, RunFailRate: 0.5,
		})
		require.Len(t, alerts, 1)
		assert.Equal(t, AlertRunFailureRate, alerts[0].Type)
	})

	t.Run("too few finished runs for a rate signal", func(t *testing.T) {
		alerts := a.Evaluate(&MetricsSnapshot{
			RunsCompleted: 0, RunsFailed: 2, RunFailRate: 1.0,
		})
		assert.Empty(t, alerts)
	})

	t.Run("step failures breach", func(t *testing.T) {
		alerts := a.Evaluate(&MetricsSnapshot{
			MessagesProcessed: 10, StepFailures: 6,
		})
		require.Len(t, alerts, 1)
		assert.Equal(t, AlertStepFailures, alerts[0].Type)
	})

	t.Run("send volume breach", func(t *testing.T) {
		alerts := a.Evaluate(&MetricsSnapshot{SendsInWindow: 401})
		require.Len(t, alerts, 1)
		assert.Equal(t, AlertSendVolume, alerts[0].Type)
	})
}

func TestSendAlertsPostsToWebhook(t *testing.T) {
	var received []Alert
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var a Alert
		require.NoError(t, json.NewDecoder(r.Body).Decode(&a))
		received = append(received, a)
	}))
	defer srv.Close()

	a := NewAlerter(config.MonitoringConfig{WebhookURL: srv.URL})
	sent := a.SendAlerts(context.Background(), []Alert{
		{Type: AlertSendVolume, Severity: "high", Message: "too many sends"},
	})

	assert.Equal(t, 1, sent)
	require.Len(t, received, 1)
	assert.Equal(t, AlertSendVolume, received[0].Type)
}

func TestSendAlertsCountsWebhookFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	a := NewAlerter(config.MonitoringConfig{WebhookURL: srv.URL})
	sent := a.SendAlerts(context.Background(), []Alert{
		{Type: AlertStepFailures}, {Type: AlertSendVolume},
	})

	assert.Equal(t, 0, sent)
}

func TestSendAlertsNoopWithoutWebhook(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{})
	assert.Equal(t, 0, a.SendAlerts(context.Background(), []Alert{{Type: AlertSendVolume}}))
}
