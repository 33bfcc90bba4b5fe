package gmail

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/rotisserie/eris"
	"golang.org/x/oauth2"
	gmailv1 "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// apiClient implements Client using google.golang.org/api/gmail/v1.
type apiClient struct {
	svc *gmailv1.Service
}

// NewClient builds a Gmail client for the mailbox behind the token source.
func NewClient(ctx context.Context, ts oauth2.TokenSource) (Client, error) {
	svc, err := gmailv1.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, eris.Wrap(err, "gmail: new service")
	}
	return &apiClient{svc: svc}, nil
}

func (c *apiClient) Profile(ctx context.Context) (string, error) {
	profile, err := c.svc.Users.GetProfile("me").Context(ctx).Do()
	if err != nil {
		return "", eris.Wrap(err, "gmail: get profile")
	}
	return profile.EmailAddress, nil
}

func (c *apiClient) ListUnread(ctx context.Context, query string) ([]string, error) {
	var ids []string
	pageToken := ""
	for {
		resp, err := c.svc.Users.Messages.List("me").
			LabelIds("UNREAD").
			Q(query).
			PageToken(pageToken).
			Context(ctx).
			Do()
		if err != nil {
			return nil, eris.Wrap(err, "gmail: list unread")
		}
		for _, m := range resp.Messages {
			ids = append(ids, m.Id)
		}
		if resp.NextPageToken == "" {
			return ids, nil
		}
		pageToken = resp.NextPageToken
	}
}

func (c *apiClient) GetMessage(ctx context.Context, id string) (*Message, error) {
	raw, err := c.svc.Users.Messages.Get("me", id).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("gmail: get message %s", id))
	}

	msg := &Message{
		ID:       raw.Id,
		ThreadID: raw.ThreadId,
		Payload:  convertPart(raw.Payload),
	}
	if raw.Payload != nil {
		for _, h := range raw.Payload.Headers {
			switch h.Name {
			case "From":
				msg.From = h.Value
			case "Subject":
				msg.Subject = h.Value
			}
		}
	}
	return msg, nil
}

func (c *apiClient) GetAttachment(ctx context.Context, messageID, attachmentID string) ([]byte, error) {
	body, err := c.svc.Users.Messages.Attachments.Get("me", messageID, attachmentID).Context(ctx).Do()
	if err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("gmail: get attachment %s", attachmentID))
	}
	data, err := decodeBase64URL(body.Data)
	if err != nil {
		return nil, eris.Wrap(err, "gmail: decode attachment")
	}
	return data, nil
}

func (c *apiClient) Send(ctx context.Context, out Outgoing) error {
	msg := &gmailv1.Message{
		Raw:      base64.RawURLEncoding.EncodeToString(buildRaw(out)),
		ThreadId: out.ThreadID,
	}
	if _, err := c.svc.Users.Messages.Send("me", msg).Context(ctx).Do(); err != nil {
		return eris.Wrap(err, fmt.Sprintf("gmail: send to %s", out.To))
	}
	return nil
}

func (c *apiClient) GetThread(ctx context.Context, threadID string) ([]ThreadMessage, error) {
	thread, err := c.svc.Users.Threads.Get("me", threadID).
		Format("metadata").
		MetadataHeaders("From").
		Context(ctx).
		Do()
	if err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("gmail: get thread %s", threadID))
	}

	msgs := make([]ThreadMessage, 0, len(thread.Messages))
	for _, m := range thread.Messages {
		tm := ThreadMessage{ID: m.Id}
		if m.Payload != nil {
			for _, h := range m.Payload.Headers {
				if h.Name == "From" {
					tm.From = h.Value
					break
				}
			}
		}
		msgs = append(msgs, tm)
	}
	return msgs, nil
}

func (c *apiClient) MarkRead(ctx context.Context, messageID string) error {
	_, err := c.svc.Users.Messages.Modify("me", messageID, &gmailv1.ModifyMessageRequest{
		RemoveLabelIds: []string{"UNREAD"},
	}).Context(ctx).Do()
	if err != nil {
		return eris.Wrap(err, fmt.Sprintf("gmail: mark read %s", messageID))
	}
	return nil
}

// convertPart maps the API part tree onto our own, decoding inline body data.
func convertPart(p *gmailv1.MessagePart) *Part {
	if p == nil {
		return nil
	}
	part := &Part{
		MimeType: p.MimeType,
		Filename: p.Filename,
	}
	if p.Body != nil {
		part.AttachmentID = p.Body.AttachmentId
		if p.Body.Data != "" {
			if data, err := decodeBase64URL(p.Body.Data); err == nil {
				part.Data = data
			}
		}
	}
	for _, child := range p.Parts {
		part.Parts = append(part.Parts, convertPart(child))
	}
	return part
}

// decodeBase64URL decodes Gmail's body encoding, which is base64url and
// usually unpadded.
func decodeBase64URL(s string) ([]byte, error) {
	if data, err := base64.RawURLEncoding.DecodeString(s); err == nil {
		return data, nil
	}
	return base64.URLEncoding.DecodeString(s)
}

// buildRaw assembles a minimal RFC 2822 text message.
func buildRaw(out Outgoing) []byte {
	raw := "To: " + out.To + "\r\n" +
		"Subject: " + out.Subject + "\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: text/plain; charset=\"UTF-8\"\r\n" +
		"\r\n" +
		out.Body
	return []byte(raw)
}
