// Package policy applies policy decisions to hook requests: it simulates the modifications
// a Response carries, in order, and validates the addresses and header names they use.
package policy

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/inbucket/mtahook/pkg/hook"
)

var (
	ErrNoEnvelope     = errors.New("request has no envelope")
	ErrNoMessage      = errors.New("request has no message")
	ErrNoRecipient    = errors.New("no matching recipient")
	ErrHeaderIndex    = errors.New("header index out of range")
	ErrHeaderMismatch = errors.New("header name mismatch")
)

// ApplyError reports the modification that could not be applied.
type ApplyError struct {
	Index int                   // Position in the modification list.
	Type  hook.ModificationType // Empty for a nil modification.
	Err   error
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("modification %d (%s): %v", e.Index, e.Type, e.Err)
}

func (e *ApplyError) Unwrap() error {
	return e.Err
}

// Apply returns a copy of req with mods applied in order; req itself is not modified.
// Header indices refer to the header list as left by the preceding modifications.
func Apply(req *hook.Request, mods []hook.Modification) (*hook.Request, error) {
	out := req.Clone()
	for i, m := range mods {
		if err := apply(out, m); err != nil {
			ae := &ApplyError{Index: i, Err: err}
			if m != nil {
				ae.Type = m.Type()
			}
			return nil, ae
		}
	}
	return out, nil
}

func apply(req *hook.Request, m hook.Modification) error {
	switch m := m.(type) {
	case hook.ChangeFrom:
		return changeOrigin(req, m)
	case hook.AddRecipient:
		return addRecipient(req, m)
	case hook.DeleteRecipient:
		return deleteRecipient(req, m)
	case hook.ReplaceContents:
		msg, err := message(req)
		if err != nil {
			return err
		}
		msg.Contents = m.Value
		msg.Size = uint64(len(m.Value))
	case hook.AddHeader:
		msg, err := message(req)
		if err != nil {
			return err
		}
		if err := ValidateHeaderName(m.Name); err != nil {
			return err
		}
		msg.Headers = append(msg.Headers, hook.Header{Name: m.Name, Value: m.Value})
	case hook.InsertHeader:
		msg, err := message(req)
		if err != nil {
			return err
		}
		if err := ValidateHeaderName(m.Name); err != nil {
			return err
		}
		i := min(int(m.Index), len(msg.Headers))
		msg.Headers = slices.Insert(msg.Headers, i, hook.Header{Name: m.Name, Value: m.Value})
	case hook.ChangeHeader:
		msg, err := message(req)
		if err != nil {
			return err
		}
		if err := ValidateHeaderName(m.Name); err != nil {
			return err
		}
		if err := checkIndex(msg, m.Index); err != nil {
			return err
		}
		msg.Headers[m.Index] = hook.Header{Name: m.Name, Value: m.Value}
	case hook.DeleteHeader:
		msg, err := message(req)
		if err != nil {
			return err
		}
		if err := checkIndex(msg, m.Index); err != nil {
			return err
		}
		if got := msg.Headers[m.Index].Name; !strings.EqualFold(got, m.Name) {
			return fmt.Errorf("%w: header %d is %q, not %q", ErrHeaderMismatch, m.Index, got, m.Name)
		}
		msg.Headers = slices.Delete(msg.Headers, int(m.Index), int(m.Index)+1)
	case nil:
		return errors.New("nil modification")
	default:
		return fmt.Errorf("unsupported modification %T", m)
	}
	return nil
}

func message(req *hook.Request) (*hook.Message, error) {
	if req.Message == nil {
		return nil, ErrNoMessage
	}
	return req.Message, nil
}

func checkIndex(msg *hook.Message, index uint32) error {
	if int(index) >= len(msg.Headers) {
		return fmt.Errorf("%w: %d, message has %d headers", ErrHeaderIndex, index, len(msg.Headers))
	}
	return nil
}
