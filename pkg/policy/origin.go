package policy

import (
	"github.com/inbucket/mtahook/pkg/hook"
)

// changeOrigin replaces the envelope sender. An empty value sets the null reverse-path.
func changeOrigin(req *hook.Request, m hook.ChangeFrom) error {
	if req.Envelope == nil {
		return ErrNoEnvelope
	}
	if m.Value != "" {
		if _, err := ParseAddress(m.Value); err != nil {
			return err
		}
	}
	req.Envelope.From = hook.Address{Address: m.Value, Parameters: envelopeParameters(m.Parameters)}
	return nil
}

// envelopeParameters converts modification parameters to the form carried by envelope
// addresses. Null values become empty strings and an empty map becomes nil.
func envelopeParameters(params hook.Parameters) map[string]string {
	if len(params) == 0 {
		return nil
	}
	out := make(map[string]string, len(params))
	for k, v := range params {
		if v != nil {
			out[k] = *v
		} else {
			out[k] = ""
		}
	}
	return out
}
