package policy

import (
	"fmt"
	"slices"
	"strings"

	"github.com/inbucket/mtahook/pkg/hook"
)

func addRecipient(req *hook.Request, m hook.AddRecipient) error {
	if req.Envelope == nil {
		return ErrNoEnvelope
	}
	if _, err := ParseAddress(m.Value); err != nil {
		return err
	}
	req.Envelope.To = append(req.Envelope.To,
		hook.Address{Address: m.Value, Parameters: envelopeParameters(m.Parameters)})
	return nil
}

// deleteRecipient removes every recipient matching the address case-insensitively.
func deleteRecipient(req *hook.Request, m hook.DeleteRecipient) error {
	if req.Envelope == nil {
		return ErrNoEnvelope
	}
	n := len(req.Envelope.To)
	req.Envelope.To = slices.DeleteFunc(req.Envelope.To, func(a hook.Address) bool {
		return strings.EqualFold(a.Address, m.Value)
	})
	if len(req.Envelope.To) == n {
		return fmt.Errorf("%w: %q", ErrNoRecipient, m.Value)
	}
	return nil
}
