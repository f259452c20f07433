// Package hook implements the data model and JSON encoding of the MTA hook protocol: the
// Request an MTA sends at each SMTP stage, and the Response that tells it to accept,
// reject, discard or quarantine the message, with optional ordered modifications.
//
// All functions are pure and safe for concurrent use.
package hook

import (
	"encoding/json"
)

// DecodeRequest decodes a request received from the MTA. Unknown fields are ignored. The
// returned error is always a *DecodeError.
func DecodeRequest(data []byte) (*Request, error) {
	req := &Request{}
	if err := json.Unmarshal(data, req); err != nil {
		return nil, wrapDecodeError("Request", err)
	}
	return req, nil
}

// EncodeRequest encodes a request, as the MTA would send it.
func EncodeRequest(req *Request) ([]byte, error) {
	return json.Marshal(req)
}

// DecodeResponse decodes a policy response. The returned error is always a *DecodeError.
func DecodeResponse(data []byte) (*Response, error) {
	res := &Response{}
	if err := json.Unmarshal(data, res); err != nil {
		return nil, wrapDecodeError("Response", err)
	}
	return res, nil
}

// EncodeResponse encodes a response for the MTA. It only fails for values that could not
// have been decoded, such as an out of range Action or a nil Modification.
func EncodeResponse(res *Response) ([]byte, error) {
	return json.Marshal(res)
}
