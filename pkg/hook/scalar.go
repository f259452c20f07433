package hook

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
)

// ScalarKind tags the JSON type held by a Scalar.
type ScalarKind int

const (
	ScalarNull ScalarKind = iota
	ScalarString
	ScalarNumber
	ScalarBool
	// ScalarComposite is an array or object found where a scalar was expected.
	ScalarComposite
)

func (k ScalarKind) String() string {
	switch k {
	case ScalarNull:
		return "null"
	case ScalarString:
		return "string"
	case ScalarNumber:
		return "number"
	case ScalarBool:
		return "boolean"
	case ScalarComposite:
		return "composite"
	}
	return "unknown"
}

// Scalar is a single JSON value as it appears in a parameter map. Text holds the decoded
// string for ScalarString, the literal for ScalarNumber and ScalarBool, and compact JSON
// for ScalarComposite.
type Scalar struct {
	Kind ScalarKind
	Text string
}

// ParseScalar classifies a raw JSON value. Absent input is treated as null.
func ParseScalar(raw json.RawMessage) (Scalar, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return Scalar{Kind: ScalarNull}, nil
	}
	switch raw[0] {
	case 'n':
		if !bytes.Equal(raw, jsonNull) {
			break
		}
		return Scalar{Kind: ScalarNull}, nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return Scalar{}, err
		}
		return Scalar{Kind: ScalarBool, Text: strconv.FormatBool(b)}, nil
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return Scalar{}, err
		}
		return Scalar{Kind: ScalarString, Text: s}, nil
	case '[', '{':
		buf := &bytes.Buffer{}
		if err := json.Compact(buf, raw); err != nil {
			return Scalar{}, err
		}
		return Scalar{Kind: ScalarComposite, Text: buf.String()}, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return Scalar{}, err
	}
	return Scalar{Kind: ScalarNumber, Text: canonicalNumber(n)}, nil
}

// canonicalNumber renders integers without a fractional part and other numbers in their
// shortest decimal form.
func canonicalNumber(n json.Number) string {
	lit := n.String()
	if i, err := strconv.ParseInt(lit, 10, 64); err == nil {
		return strconv.FormatInt(i, 10)
	}
	if u, err := strconv.ParseUint(lit, 10, 64); err == nil {
		return strconv.FormatUint(u, 10)
	}
	f, err := strconv.ParseFloat(lit, 64)
	if err != nil || math.IsInf(f, 0) {
		return lit
	}
	if math.Abs(f) >= 1e21 {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Strict coerces the scalar for an Address parameter, where only strings, numbers and
// booleans are accepted.
func (s Scalar) Strict() (string, error) {
	switch s.Kind {
	case ScalarString, ScalarNumber, ScalarBool:
		return s.Text, nil
	}
	return "", errInvalidParameter
}

// Permissive coerces the scalar for a Modification parameter. Null yields nil, never the
// string "null"; composite values are kept as compact JSON text.
func (s Scalar) Permissive() *string {
	if s.Kind == ScalarNull {
		return nil
	}
	text := s.Text
	return &text
}
