// Package message converts raw RFC 5322 messages to and from hook messages, and decodes
// their MIME bodies for policy scripts.
package message

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-message/textproto"
	"github.com/inbucket/mtahook/pkg/hook"
	"github.com/inbucket/mtahook/pkg/policy"
)

// ErrLineBreak is returned when a header value would span lines on the wire.
var ErrLineBreak = errors.New("line break in header value")

// FromReader reads a raw message. Header order and the original casing of header names are
// preserved, folded values are unfolded, and everything after the blank line becomes the
// contents.
func FromReader(r io.Reader) (*hook.Message, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	br := bufio.NewReader(bytes.NewReader(raw))
	h, err := textproto.ReadHeader(br)
	if err != nil {
		return nil, fmt.Errorf("reading message header: %w", err)
	}
	contents, err := io.ReadAll(br)
	if err != nil {
		return nil, err
	}

	msg := &hook.Message{
		Headers:  make([]hook.Header, 0, h.Len()),
		Contents: string(contents),
		Size:     uint64(len(raw)),
	}
	fields := h.Fields()
	for fields.Next() {
		msg.Headers = append(msg.Headers, hook.Header{
			Name:  fieldName(fields),
			Value: fields.Value(),
		})
	}
	return msg, nil
}

// fieldName recovers the name as written on the wire; Key() is canonicalized.
func fieldName(fields textproto.HeaderFields) string {
	raw, err := fields.Raw()
	if err != nil {
		return fields.Key()
	}
	name, _, ok := bytes.Cut(raw, []byte{':'})
	if !ok {
		return fields.Key()
	}
	return strings.TrimSpace(string(name))
}

// WriteTo renders msg as a raw message: its headers in order and with their names as
// given, a blank line, then the contents.
func WriteTo(w io.Writer, msg *hook.Message) error {
	var h textproto.Header
	// AddRaw prepends, so walk backwards to keep the original order.
	for i := len(msg.Headers) - 1; i >= 0; i-- {
		field := msg.Headers[i]
		if err := policy.ValidateHeaderName(field.Name); err != nil {
			return err
		}
		if strings.ContainsAny(field.Value, "\r\n") {
			return fmt.Errorf("%w: %s", ErrLineBreak, field.Name)
		}
		h.AddRaw([]byte(field.Name + ": " + field.Value + "\r\n"))
	}
	if err := textproto.WriteHeader(w, h); err != nil {
		return err
	}
	_, err := io.WriteString(w, msg.Contents)
	return err
}

// Bytes returns the raw form of msg.
func Bytes(msg *hook.Message) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := WriteTo(buf, msg); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
