package gmail

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlainText(t *testing.T) {
	t.Run("nested multipart", func(t *testing.T) {
		msg := &Message{Payload: &Part{
			MimeType: "multipart/mixed",
			Parts: []*Part{
				{
					MimeType: "multipart/alternative",
					Parts: []*Part{
						{MimeType: "text/plain; charset=UTF-8", Data: []byte("hello there")},
						{MimeType: "text/html", Data: []byte("<p>hello there</p>")},
					},
				},
				{MimeType: "image/png", AttachmentID: "att-1"},
			},
		}}
		assert.Equal(t, "hello there", msg.PlainText())
	})

	t.Run("single part", func(t *testing.T) {
		msg := &Message{Payload: &Part{MimeType: "text/plain", Data: []byte("just text")}}
		assert.Equal(t, "just text", msg.PlainText())
	})

	t.Run("html only", func(t *testing.T) {
		msg := &Message{Payload: &Part{MimeType: "text/html", Data: []byte("<p>hi</p>")}}
		assert.Equal(t, "", msg.PlainText())
	})

	t.Run("nil payload", func(t *testing.T) {
		assert.Equal(t, "", (&Message{}).PlainText())
	})
}

func TestImageParts(t *testing.T) {
	msg := &Message{Payload: &Part{
		MimeType: "multipart/mixed",
		Parts: []*Part{
			{MimeType: "text/plain", Data: []byte("see attached")},
			{MimeType: "image/png", Filename: "payment.png", AttachmentID: "att-1"},
			{
				MimeType: "multipart/related",
				Parts: []*Part{
					{MimeType: "image/jpeg", Data: []byte{0xff, 0xd8}},
				},
			},
		},
	}}

	images := msg.ImageParts()
	require.Len(t, images, 2)
	assert.Equal(t, "payment.png", images[0].Filename)
	assert.Equal(t, "image/jpeg", images[1].MimeType)

	assert.Empty(t, (&Message{}).ImageParts())
}

func TestDecodeBase64URL(t *testing.T) {
	want := []byte("subject?&=body")

	unpadded := base64.RawURLEncoding.EncodeToString(want)
	got, err := decodeBase64URL(unpadded)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	padded := base64.URLEncoding.EncodeToString(want)
	got, err = decodeBase64URL(padded)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = decodeBase64URL("not base64 at all!!!")
	assert.Error(t, err)
}

func TestBuildRaw(t *testing.T) {
	raw := string(buildRaw(Outgoing{
		To:      "alice@shop.com",
		Subject: "Re: Logo design",
		Body:    "Sounds good.",
	}))

	lines := strings.Split(raw, "\r\n")
	assert.Equal(t, "To: alice@shop.com", lines[0])
	assert.Equal(t, "Subject: Re: Logo design", lines[1])
	assert.Contains(t, raw, "Content-Type: text/plain")
	assert.True(t, strings.HasSuffix(raw, "\r\n\r\nSounds good."))
}
