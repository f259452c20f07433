package hook

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies a DecodeError.
type ErrorKind int

const (
	// MalformedInput means the input was not valid JSON.
	MalformedInput ErrorKind = iota + 1
	// SchemaViolation means a known field held the wrong JSON type.
	SchemaViolation
	// UnknownVariant means a discriminant or enum token was not recognized.
	UnknownVariant
	// MissingField means a required field was absent.
	MissingField
)

// Sentinels for use with errors.Is, one per ErrorKind.
var (
	ErrMalformedInput  = errors.New("malformed input")
	ErrSchemaViolation = errors.New("schema violation")
	ErrUnknownVariant  = errors.New("unknown variant")
	ErrMissingField    = errors.New("missing field")

	errNullValue        = errors.New("unexpected null")
	errInvalidParameter = errors.New("invalid parameter value type")
)

func (k ErrorKind) String() string {
	switch k {
	case MalformedInput:
		return "malformed input"
	case SchemaViolation:
		return "schema violation"
	case UnknownVariant:
		return "unknown variant"
	case MissingField:
		return "missing field"
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

func (k ErrorKind) sentinel() error {
	switch k {
	case MalformedInput:
		return ErrMalformedInput
	case SchemaViolation:
		return ErrSchemaViolation
	case UnknownVariant:
		return ErrUnknownVariant
	case MissingField:
		return ErrMissingField
	}
	return nil
}

// DecodeError reports why a protocol value could not be decoded.
type DecodeError struct {
	Kind     ErrorKind
	Type     string   // Struct or variant being decoded, e.g. "Client" or "insertHeader".
	Field    string   // JSON field name, when known.
	Value    string   // Offending token for UnknownVariant.
	Expected []string // Accepted tokens, or the expected JSON shape.
	Err      error    // Underlying error, if any.
}

func (e *DecodeError) Error() string {
	var b strings.Builder
	switch e.Kind {
	case MalformedInput:
		b.WriteString("malformed JSON")
	case UnknownVariant:
		fmt.Fprintf(&b, "unknown variant %q", e.Value)
		if e.Type != "" {
			fmt.Fprintf(&b, " for %s", e.Type)
		}
		if len(e.Expected) > 0 {
			fmt.Fprintf(&b, ", expected one of %s", strings.Join(e.Expected, ", "))
		}
		return b.String()
	case MissingField:
		fmt.Fprintf(&b, "missing field %q", e.Field)
		if e.Type != "" {
			fmt.Fprintf(&b, " in %s", e.Type)
		}
		return b.String()
	default:
		b.WriteString("invalid type")
		if e.Field != "" {
			fmt.Fprintf(&b, " for %q", e.Field)
		}
		if e.Type != "" {
			fmt.Fprintf(&b, " in %s", e.Type)
		}
		if len(e.Expected) > 0 {
			fmt.Fprintf(&b, ", expected %s", strings.Join(e.Expected, " or "))
		}
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for this error's kind.
func (e *DecodeError) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}

func missingField(typ, field string) error {
	return &DecodeError{Kind: MissingField, Type: typ, Field: field}
}

func schemaError(typ, field, expected string, err error) error {
	de := &DecodeError{Kind: SchemaViolation, Type: typ, Field: field, Err: err}
	if expected != "" {
		de.Expected = []string{expected}
	}
	return de
}

func unknownVariant(typ, value string, expected []string) error {
	return &DecodeError{Kind: UnknownVariant, Type: typ, Value: value, Expected: expected}
}

// wrapDecodeError classifies errors from encoding/json. A DecodeError raised by a nested
// decoder is returned unchanged so the innermost context is kept.
func wrapDecodeError(typ string, err error) error {
	if err == nil {
		return nil
	}
	var de *DecodeError
	if errors.As(err, &de) {
		return de
	}
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return &DecodeError{Kind: MalformedInput, Type: typ, Err: err}
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return &DecodeError{
			Kind:     SchemaViolation,
			Type:     typ,
			Field:    typeErr.Field,
			Expected: []string{typeErr.Type.String()},
			Err:      err,
		}
	}
	return &DecodeError{Kind: SchemaViolation, Type: typ, Err: err}
}
