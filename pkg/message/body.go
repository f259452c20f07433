package message

import (
	"bytes"
	"fmt"

	"github.com/inbucket/mtahook/pkg/hook"
	"github.com/inbucket/mtahook/pkg/message/sanitize"
	"github.com/jhillyerd/enmime/v2"
)

// Body is the decoded MIME structure of a message.
type Body struct {
	Text        string
	HTML        string
	SafeHTML    string // HTML without scripts, event handlers or layout-breaking styles.
	HTMLText    string // Visible text of HTML.
	Links       []string
	Attachments []Attachment
	Errors      []string // Non-fatal MIME parsing problems.
}

// Attachment describes an attached or inline part.
type Attachment struct {
	FileName    string
	ContentType string
	Size        int
	Inline      bool
}

// ParseBody decodes the MIME parts of msg.
func ParseBody(msg *hook.Message) (*Body, error) {
	if msg == nil {
		return nil, fmt.Errorf("no message")
	}
	raw, err := Bytes(msg)
	if err != nil {
		return nil, err
	}
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parsing message body: %w", err)
	}

	body := &Body{
		Text: env.Text,
		HTML: env.HTML,
	}
	if env.HTML != "" {
		if body.SafeHTML, err = sanitize.HTML(env.HTML); err != nil {
			return nil, err
		}
		if body.HTMLText, err = sanitize.Text(env.HTML); err != nil {
			return nil, err
		}
		if body.Links, err = sanitize.Links(env.HTML); err != nil {
			return nil, err
		}
	}
	for _, p := range env.Attachments {
		body.Attachments = append(body.Attachments, attachment(p, false))
	}
	for _, p := range env.Inlines {
		body.Attachments = append(body.Attachments, attachment(p, true))
	}
	for _, e := range env.Errors {
		body.Errors = append(body.Errors, e.Error())
	}
	return body, nil
}

func attachment(p *enmime.Part, inline bool) Attachment {
	return Attachment{
		FileName:    p.FileName,
		ContentType: p.ContentType,
		Size:        len(p.Content),
		Inline:      inline,
	}
}
