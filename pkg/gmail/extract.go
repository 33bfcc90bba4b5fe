package gmail

import "strings"

// PlainText returns the first text/plain leaf of the message body, walking
// the part tree iteratively with an explicit worklist. Returns "" when the
// message has no decodable text part.
func (m *Message) PlainText() string {
	if m.Payload == nil {
		return ""
	}

	work := []*Part{m.Payload}
	for len(work) > 0 {
		p := work[0]
		work = work[1:]

		if len(p.Parts) == 0 {
			if strings.HasPrefix(p.MimeType, "text/plain") && len(p.Data) > 0 {
				return string(p.Data)
			}
			continue
		}
		work = append(work, p.Parts...)
	}
	return ""
}

// ImageParts returns every image/* leaf in the part tree, in traversal
// order. Leaves may carry inline Data or an AttachmentID to fetch.
func (m *Message) ImageParts() []*Part {
	if m.Payload == nil {
		return nil
	}

	var images []*Part
	work := []*Part{m.Payload}
	for len(work) > 0 {
		p := work[0]
		work = work[1:]

		if len(p.Parts) == 0 {
			if strings.HasPrefix(p.MimeType, "image/") {
				images = append(images, p)
			}
			continue
		}
		work = append(work, p.Parts...)
	}
	return images
}
