package engine

import (
	"context"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/mock"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/pkg/anthropic"
	"github.com/sells-group/outreach-cli/pkg/gmail"
)

// --- Gmail mock ---

type mockMailbox struct {
	mock.Mock
}

func (m *mockMailbox) Profile(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *mockMailbox) ListUnread(ctx context.Context, query string) ([]string, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockMailbox) GetMessage(ctx context.Context, id string) (*gmail.Message, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gmail.Message), args.Error(1)
}

func (m *mockMailbox) GetAttachment(ctx context.Context, messageID, attachmentID string) ([]byte, error) {
	args := m.Called(ctx, messageID, attachmentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *mockMailbox) Send(ctx context.Context, out gmail.Outgoing) error {
	args := m.Called(ctx, out)
	return args.Error(0)
}

func (m *mockMailbox) GetThread(ctx context.Context, threadID string) ([]gmail.ThreadMessage, error) {
	args := m.Called(ctx, threadID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]gmail.ThreadMessage), args.Error(1)
}

func (m *mockMailbox) MarkRead(ctx context.Context, messageID string) error {
	args := m.Called(ctx, messageID)
	return args.Error(0)
}

// fakeMailbox is a stateful in-memory mailbox: MarkRead removes the
// message from the unread set and Send appends a self-authored message to
// the thread, so a second run sees the inbox run one left behind.
type fakeMailbox struct {
	address  string
	unread   []string
	messages map[string]*gmail.Message
	threads  map[string][]gmail.ThreadMessage
	sent     []gmail.Outgoing
}

func (f *fakeMailbox) Profile(context.Context) (string, error) {
	return f.address, nil
}

func (f *fakeMailbox) ListUnread(context.Context, string) ([]string, error) {
	return append([]string(nil), f.unread...), nil
}

func (f *fakeMailbox) GetMessage(_ context.Context, id string) (*gmail.Message, error) {
	msg, ok := f.messages[id]
	if !ok {
		return nil, eris.Errorf("no message %s", id)
	}
	return msg, nil
}

func (f *fakeMailbox) GetAttachment(_ context.Context, _, attachmentID string) ([]byte, error) {
	return nil, eris.Errorf("no attachment %s", attachmentID)
}

func (f *fakeMailbox) Send(_ context.Context, out gmail.Outgoing) error {
	f.sent = append(f.sent, out)
	if out.ThreadID != "" {
		f.threads[out.ThreadID] = append(f.threads[out.ThreadID],
			gmail.ThreadMessage{ID: "sent", From: f.address})
	}
	return nil
}

func (f *fakeMailbox) GetThread(_ context.Context, threadID string) ([]gmail.ThreadMessage, error) {
	return f.threads[threadID], nil
}

func (f *fakeMailbox) MarkRead(_ context.Context, messageID string) error {
	kept := f.unread[:0]
	for _, id := range f.unread {
		if id != messageID {
			kept = append(kept, id)
		}
	}
	f.unread = kept
	return nil
}

// readFailingMailbox rejects MarkRead so a processed message stays in the
// unread set.
type readFailingMailbox struct {
	*fakeMailbox
}

func (f *readFailingMailbox) MarkRead(context.Context, string) error {
	return eris.New("modify denied")
}

// --- Classifier mock ---

type mockClassifier struct {
	mock.Mock
}

func (m *mockClassifier) ClassifyReply(ctx context.Context, lead model.Lead, body string) (model.ReplyClassification, error) {
	args := m.Called(ctx, lead, body)
	return args.Get(0).(model.ReplyClassification), args.Error(1)
}

func (m *mockClassifier) VerifyPayment(ctx context.Context, lead model.Lead, image anthropic.Image) (model.PaymentVerdict, error) {
	args := m.Called(ctx, lead, image)
	return args.Get(0).(model.PaymentVerdict), args.Error(1)
}

// --- Sheets fake ---

// cellWrite records one live-sheet update.
type cellWrite struct {
	ref   string
	value string
}

// fakeSheets is a stateful in-memory sheets client. Snapshot reads return
// rows; writes are recorded, and additionally applied back to rows when
// apply is set, so later snapshots see them the way a real sheet would.
type fakeSheets struct {
	rows      [][]string
	apply     bool
	valuesErr error
	updateErr error
	writes    []cellWrite
}

func (f *fakeSheets) Values(_ context.Context, _, _ string) ([][]string, error) {
	if f.valuesErr != nil {
		return nil, f.valuesErr
	}
	return f.rows, nil
}

func (f *fakeSheets) Update(_ context.Context, _, cellRef, value string) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.writes = append(f.writes, cellWrite{ref: cellRef, value: value})
	if f.apply {
		col, row := parseCellRef(cellRef)
		f.rows[row-1][col] = value
	}
	return nil
}

// parseCellRef splits a single-letter A1 reference like "Sheet1!N2" into a
// zero-based column and one-based row.
func parseCellRef(ref string) (col, row int) {
	i := strings.Index(ref, "!")
	col = int(ref[i+1] - 'A')
	row, _ = strconv.Atoi(ref[i+2:])
	return col, row
}

// wroteValue reports whether any recorded write set the given value at the
// given A1 reference.
func (f *fakeSheets) wroteValue(ref, value string) bool {
	for _, w := range f.writes {
		if w.ref == ref && w.value == value {
			return true
		}
	}
	return false
}
