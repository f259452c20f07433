package hook

import (
	"encoding/json"
	"fmt"
)

// Action tells the MTA what to do with the transaction.
type Action int

const (
	ActionAccept Action = iota
	ActionDiscard
	ActionReject
	ActionQuarantine
)

var actionTokens = []string{"accept", "discard", "reject", "quarantine"}

// ParseAction matches an exact lowercase action token.
func ParseAction(s string) (Action, error) {
	for i, v := range actionTokens {
		if v == s {
			return Action(i), nil
		}
	}
	return 0, &DecodeError{
		Kind:     UnknownVariant,
		Type:     "Action",
		Field:    "action",
		Value:    s,
		Expected: actionTokens,
	}
}

func (a Action) String() string {
	if a < 0 || int(a) >= len(actionTokens) {
		return fmt.Sprintf("Action(%d)", int(a))
	}
	return actionTokens[a]
}

func (a Action) MarshalText() ([]byte, error) {
	if a < 0 || int(a) >= len(actionTokens) {
		return nil, fmt.Errorf("invalid action %d", int(a))
	}
	return []byte(actionTokens[a]), nil
}

func (a *Action) UnmarshalText(text []byte) error {
	action, err := ParseAction(string(text))
	if err != nil {
		return err
	}
	*a = action
	return nil
}

// SMTPResponse is the literal SMTP reply the MTA should emit.
type SMTPResponse struct {
	Status         *uint16 `json:"status,omitempty"`
	EnhancedStatus *string `json:"enhancedStatus,omitempty"`
	Message        *string `json:"message,omitempty"`
	Disconnect     bool    `json:"disconnect"`
}

func (s *SMTPResponse) UnmarshalJSON(data []byte) error {
	type plain SMTPResponse
	return decodeStruct(data, "SMTPResponse", (*plain)(s))
}

// Response is returned to the MTA. Modifications are applied in order.
type Response struct {
	Action        Action
	Response      *SMTPResponse
	Modifications []Modification
}

// Accept returns a response accepting the transaction unchanged.
func Accept() *Response {
	return &Response{Action: ActionAccept}
}

// Reject returns a response rejecting the transaction with the given SMTP reply.
func Reject(status uint16, message string) *Response {
	return &Response{
		Action: ActionReject,
		Response: &SMTPResponse{
			Status:  &status,
			Message: &message,
		},
	}
}

// Discard returns a response that silently drops the message.
func Discard() *Response {
	return &Response{Action: ActionDiscard}
}

// Quarantine returns a response that holds the message for review.
func Quarantine() *Response {
	return &Response{Action: ActionQuarantine}
}

// WithModifications replaces the response's modifications and returns it for chaining.
func (r *Response) WithModifications(mods ...Modification) *Response {
	r.Modifications = mods
	return r
}

// Clone returns a deep copy of the response.
func (r *Response) Clone() *Response {
	c := &Response{Action: r.Action}
	if r.Response != nil {
		c.Response = &SMTPResponse{
			Status:         clonePtr(r.Response.Status),
			EnhancedStatus: clonePtr(r.Response.EnhancedStatus),
			Message:        clonePtr(r.Response.Message),
			Disconnect:     r.Response.Disconnect,
		}
	}
	if r.Modifications != nil {
		c.Modifications = make([]Modification, len(r.Modifications))
		for i, m := range r.Modifications {
			switch m := m.(type) {
			case ChangeFrom:
				m.Parameters = m.Parameters.clone()
				c.Modifications[i] = m
			case AddRecipient:
				m.Parameters = m.Parameters.clone()
				c.Modifications[i] = m
			default:
				c.Modifications[i] = m
			}
		}
	}
	return c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// MarshalJSON always emits modifications as an array.
func (r Response) MarshalJSON() ([]byte, error) {
	mods := r.Modifications
	if mods == nil {
		mods = []Modification{}
	}
	for i, m := range mods {
		if m == nil {
			return nil, fmt.Errorf("modification %d is nil", i)
		}
	}
	return json.Marshal(struct {
		Action        Action         `json:"action"`
		Response      *SMTPResponse  `json:"response,omitempty"`
		Modifications []Modification `json:"modifications"`
	}{r.Action, r.Response, mods})
}

func (r *Response) UnmarshalJSON(data []byte) error {
	var raw struct {
		Action        Action            `json:"action"`
		Response      *SMTPResponse     `json:"response"`
		Modifications []json.RawMessage `json:"modifications"`
	}
	if err := decodeStruct(data, "Response", &raw, "action"); err != nil {
		return err
	}
	mods := make([]Modification, 0, len(raw.Modifications))
	for _, m := range raw.Modifications {
		mod, err := DecodeModification(m)
		if err != nil {
			return err
		}
		mods = append(mods, mod)
	}
	*r = Response{Action: raw.Action, Response: raw.Response, Modifications: mods}
	return nil
}
