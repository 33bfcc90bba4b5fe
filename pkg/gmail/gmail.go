// Package gmail wraps the Gmail API behind a narrow interface covering the
// operations the dispatch engine needs: unread listing, full message fetch,
// threaded sends, label changes, thread inspection, and profile lookup.
package gmail

import "context"

// Client performs Gmail operations for one authenticated mailbox.
type Client interface {
	// Profile returns the mailbox's self-reported email address.
	Profile(ctx context.Context) (string, error)

	// ListUnread returns the ids of unread messages matching the query
	// (the query excludes bulk categories; the UNREAD label is implied).
	ListUnread(ctx context.Context, query string) ([]string, error)

	// GetMessage fetches a full message including its part tree.
	GetMessage(ctx context.Context, id string) (*Message, error)

	// GetAttachment fetches a single attachment's decoded bytes.
	GetAttachment(ctx context.Context, messageID, attachmentID string) ([]byte, error)

	// Send dispatches an outgoing message, threaded when ThreadID is set.
	Send(ctx context.Context, out Outgoing) error

	// GetThread returns the thread's messages in order.
	GetThread(ctx context.Context, threadID string) ([]ThreadMessage, error)

	// MarkRead removes the UNREAD label from a message.
	MarkRead(ctx context.Context, messageID string) error
}

// Message is an inbound message with its decoded part tree.
type Message struct {
	ID       string
	ThreadID string
	From     string // raw From header, e.g. `Jane Doe <jane@example.com>`
	Subject  string
	Payload  *Part
}

// Part is one node of a multipart message body. Leaf parts carry either
// decoded Data or an AttachmentID to fetch separately.
type Part struct {
	MimeType     string
	Filename     string
	AttachmentID string
	Data         []byte
	Parts        []*Part
}

// Outgoing is a message to send.
type Outgoing struct {
	To       string
	Subject  string
	Body     string
	ThreadID string
}

// ThreadMessage is the slice of a thread message the idempotency guard
// needs: who sent it.
type ThreadMessage struct {
	ID   string
	From string
}
