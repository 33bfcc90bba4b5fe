package engine

import (
	"context"
	"net/mail"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/pkg/gmail"
)

// WasLastSenderSelf reports whether the most recent message in the thread
// was sent by the identity itself. When true, the inbound message being
// processed is stale (it precedes our own latest reply) and must be marked
// read without generating a new reply.
//
// A thread-fetch error reads as false: silently dropping a genuine new
// message is worse than an occasional duplicate reply.
func WasLastSenderSelf(ctx context.Context, mailbox gmail.Client, threadID, self string) bool {
	msgs, err := mailbox.GetThread(ctx, threadID)
	if err != nil {
		zap.L().Warn("thread guard: fetch failed, assuming reply needed",
			zap.String("thread_id", threadID),
			zap.Error(err),
		)
		return false
	}
	if len(msgs) == 0 {
		return false
	}

	last := SenderAddress(msgs[len(msgs)-1].From)
	return last != "" && last == model.NormalizeAddress(self)
}

// SenderAddress extracts the bare, normalized email address from a From
// header like `Jane Doe <jane@example.com>`.
func SenderAddress(from string) string {
	addr, err := mail.ParseAddress(strings.TrimSpace(from))
	if err != nil {
		return model.NormalizeAddress(from)
	}
	return model.NormalizeAddress(addr.Address)
}
