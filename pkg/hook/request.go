package hook

import (
	"encoding/json"
	"slices"
	"strings"
)

// Request is sent by the MTA at a transaction stage. Envelope is absent before MAIL and
// Message is absent before DATA.
type Request struct {
	Context  Context   `json:"context"`
	Envelope *Envelope `json:"envelope,omitempty"`
	Message  *Message  `json:"message,omitempty"`
}

// Context describes the SMTP session the request belongs to.
type Context struct {
	Stage    Stage    `json:"stage"`
	Client   Client   `json:"client"`
	SASL     *SASL    `json:"sasl,omitempty"`
	TLS      *TLS     `json:"tls,omitempty"`
	Server   Server   `json:"server"`
	Queue    *Queue   `json:"queue,omitempty"`
	Protocol Protocol `json:"protocol"`
}

// SASL is present once the client has authenticated.
type SASL struct {
	Login  string  `json:"login"`
	Method *string `json:"method,omitempty"`
}

// Client identifies the remote end of the connection.
type Client struct {
	IP                string  `json:"ip"`
	Port              uint16  `json:"port"`
	PTR               *string `json:"ptr"`
	HELO              *string `json:"helo"`
	ActiveConnections uint32  `json:"activeConnections"`
}

// TLS is present once STARTTLS or implicit TLS has been negotiated.
type TLS struct {
	Version string  `json:"version"`
	Cipher  string  `json:"cipher"`
	Bits    *uint16 `json:"cipherBits,omitempty"`
	Issuer  *string `json:"certIssuer,omitempty"`
	Subject *string `json:"certSubject,omitempty"`
}

// Server identifies the listener that accepted the connection.
type Server struct {
	Name *string `json:"name"`
	Port uint16  `json:"port"`
	IP   *string `json:"ip"`
}

// Queue is present once the MTA has assigned a queue ID.
type Queue struct {
	ID string `json:"id"`
}

// Protocol carries the schema revision spoken by the MTA.
type Protocol struct {
	Version uint32 `json:"version"`
}

// Envelope holds the SMTP sender and the recipients in the order they were given.
type Envelope struct {
	From Address   `json:"from"`
	To   []Address `json:"to"`
}

// Address is an envelope address with its ESMTP parameters. Parameters is nil when the
// MTA sent no map or a null map.
type Address struct {
	Address    string
	Parameters map[string]string
}

// Message holds the headers and raw contents received during DATA. Header order is
// significant; header modifications refer to positions in Headers.
type Message struct {
	Headers       []Header `json:"headers"`
	ServerHeaders []Header `json:"serverHeaders,omitempty"`
	Contents      string   `json:"contents"`
	Size          uint64   `json:"size"`
}

// Header is a single name/value pair, encoded as a two element JSON array.
type Header struct {
	Name  string
	Value string
}

func (r *Request) UnmarshalJSON(data []byte) error {
	type plain Request
	return decodeStruct(data, "Request", (*plain)(r), "context")
}

func (c *Context) UnmarshalJSON(data []byte) error {
	type plain Context
	return decodeStruct(data, "Context", (*plain)(c), "stage", "client", "server", "protocol")
}

func (s *SASL) UnmarshalJSON(data []byte) error {
	type plain SASL
	return decodeStruct(data, "SASL", (*plain)(s), "login")
}

func (c *Client) UnmarshalJSON(data []byte) error {
	type plain Client
	return decodeStruct(data, "Client", (*plain)(c), "ip", "port", "activeConnections")
}

func (t *TLS) UnmarshalJSON(data []byte) error {
	type plain TLS
	return decodeStruct(data, "TLS", (*plain)(t), "version", "cipher")
}

func (s *Server) UnmarshalJSON(data []byte) error {
	type plain Server
	return decodeStruct(data, "Server", (*plain)(s), "port")
}

func (q *Queue) UnmarshalJSON(data []byte) error {
	type plain Queue
	return decodeStruct(data, "Queue", (*plain)(q), "id")
}

func (p *Protocol) UnmarshalJSON(data []byte) error {
	type plain Protocol
	return decodeStruct(data, "Protocol", (*plain)(p), "version")
}

func (e *Envelope) UnmarshalJSON(data []byte) error {
	type plain Envelope
	return decodeStruct(data, "Envelope", (*plain)(e), "from", "to")
}

func (m *Message) UnmarshalJSON(data []byte) error {
	type plain Message
	return decodeStruct(data, "Message", (*plain)(m), "headers", "contents", "size")
}

// MarshalJSON always emits the recipient list as an array.
func (e Envelope) MarshalJSON() ([]byte, error) {
	type plain Envelope
	p := plain(e)
	if p.To == nil {
		p.To = []Address{}
	}
	return json.Marshal(p)
}

// MarshalJSON always emits the header list as an array.
func (m Message) MarshalJSON() ([]byte, error) {
	type plain Message
	p := plain(m)
	if p.Headers == nil {
		p.Headers = []Header{}
	}
	return json.Marshal(p)
}

// MarshalJSON omits a nil parameter map, but keeps an empty one.
func (a Address) MarshalJSON() ([]byte, error) {
	if a.Parameters == nil {
		return json.Marshal(struct {
			Address string `json:"address"`
		}{a.Address})
	}
	return json.Marshal(struct {
		Address    string            `json:"address"`
		Parameters map[string]string `json:"parameters"`
	}{a.Address, a.Parameters})
}

// UnmarshalJSON applies the strict address parameter policy.
func (a *Address) UnmarshalJSON(data []byte) error {
	fields, err := decodeObject("Address", data)
	if err != nil {
		return err
	}
	if err := checkRequired("Address", fields, []string{"address"}); err != nil {
		return err
	}
	var addr string
	if err := json.Unmarshal(fields["address"], &addr); err != nil {
		return schemaError("Address", "address", "string", err)
	}
	params, err := decodeAddressParameters("Address", "parameters", fields["parameters"])
	if err != nil {
		return err
	}
	*a = Address{Address: addr, Parameters: params}
	return nil
}

func (h Header) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{h.Name, h.Value})
}

// UnmarshalJSON requires an array of exactly two strings; null is not a string.
func (h *Header) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return schemaError("Header", "", "[name, value]", err)
	}
	if len(pair) != 2 {
		return schemaError("Header", "", "[name, value]", nil)
	}
	var name, value string
	for i, dst := range []*string{&name, &value} {
		if isNull(pair[i]) {
			return schemaError("Header", headerElems[i], "string", errNullValue)
		}
		if err := json.Unmarshal(pair[i], dst); err != nil {
			return schemaError("Header", headerElems[i], "string", err)
		}
	}
	*h = Header{Name: name, Value: value}
	return nil
}

var headerElems = [2]string{"name", "value"}

// Header returns the value of the first header with the given name, compared
// case-insensitively.
func (m *Message) Header(name string) (string, bool) {
	for _, h := range m.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value, true
		}
	}
	return "", false
}

// Clone returns a copy of the request whose envelope and message can be edited without
// affecting the original. Context is shared as it is never modified.
func (r *Request) Clone() *Request {
	c := &Request{Context: r.Context}
	if r.Envelope != nil {
		env := &Envelope{From: r.Envelope.From.clone(), To: slices.Clone(r.Envelope.To)}
		for i, to := range env.To {
			env.To[i] = to.clone()
		}
		c.Envelope = env
	}
	if r.Message != nil {
		msg := *r.Message
		msg.Headers = slices.Clone(r.Message.Headers)
		msg.ServerHeaders = slices.Clone(r.Message.ServerHeaders)
		c.Message = &msg
	}
	return c
}

func (a Address) clone() Address {
	if a.Parameters == nil {
		return a
	}
	params := make(map[string]string, len(a.Parameters))
	for k, v := range a.Parameters {
		params[k] = v
	}
	return Address{Address: a.Address, Parameters: params}
}
