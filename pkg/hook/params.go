package hook

import (
	"encoding/json"
	"sort"
)

// Parameters holds ESMTP parameters attached to a changeFrom or addRecipient modification.
// A nil value is an explicit JSON null, which is distinct from the key being absent.
type Parameters map[string]*string

func (p Parameters) clone() Parameters {
	if p == nil {
		return nil
	}
	c := make(Parameters, len(p))
	for k, v := range p {
		c[k] = clonePtr(v)
	}
	return c
}

// StringPtr returns a pointer to s, for building Parameters literals.
func StringPtr(s string) *string {
	return &s
}

// Lookup returns the value for key, and whether the key was present with a non-null value.
func (p Parameters) Lookup(key string) (string, bool) {
	v, ok := p[key]
	if !ok || v == nil {
		return "", false
	}
	return *v, true
}

// Keys returns the parameter names in sorted order.
func (p Parameters) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// MarshalJSON always emits an object, so a nil map encodes as {}.
func (p Parameters) MarshalJSON() ([]byte, error) {
	if p == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]*string(p))
}

// UnmarshalJSON applies the permissive modification parameter policy.
func (p *Parameters) UnmarshalJSON(data []byte) error {
	params, err := decodeModificationParameters("Parameters", "parameters", data)
	if err != nil {
		return err
	}
	*p = params
	return nil
}

// decodeModificationParameters is the permissive decoder: a missing or null map yields an
// empty map, null values become nil entries, and composite values are kept as JSON text.
func decodeModificationParameters(typ, field string, raw json.RawMessage) (Parameters, error) {
	params := Parameters{}
	if isNull(raw) {
		return params, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, schemaError(typ, field, "object", err)
	}
	for key, value := range fields {
		s, err := ParseScalar(value)
		if err != nil {
			return nil, schemaError(typ, field+"."+key, "scalar", err)
		}
		params[key] = s.Permissive()
	}
	return params, nil
}

// decodeAddressParameters is the strict decoder: a missing or null map yields nil, and
// values must be strings, numbers or booleans.
func decodeAddressParameters(typ, field string, raw json.RawMessage) (map[string]string, error) {
	if isNull(raw) {
		return nil, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, schemaError(typ, field, "object", err)
	}
	params := make(map[string]string, len(fields))
	for key, value := range fields {
		s, err := ParseScalar(value)
		if err == nil {
			params[key], err = s.Strict()
		}
		if err != nil {
			return nil, schemaError(typ, field+"."+key, "string, number or boolean", err)
		}
	}
	return params, nil
}
