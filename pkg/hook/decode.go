package hook

import (
	"bytes"
	"encoding/json"
	"reflect"
	"strings"
	"sync"
)

var jsonNull = []byte("null")

// structFields caches the JSON field names of decoded struct types.
var structFields sync.Map // map[reflect.Type]map[string]bool

// isNull reports whether raw is absent or the JSON literal null.
func isNull(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, jsonNull)
}

// decodeObject decodes data as a JSON object into a map of raw field values.
func decodeObject(typ string, data []byte) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, wrapDecodeError(typ, err)
	}
	if fields == nil {
		return nil, schemaError(typ, "", "object", errNullValue)
	}
	return fields, nil
}

// checkRequired confirms every required field is present and not null.
func checkRequired(typ string, fields map[string]json.RawMessage, required []string) error {
	for _, name := range required {
		raw, ok := fields[name]
		if !ok {
			return missingField(typ, name)
		}
		if isNull(raw) {
			return schemaError(typ, name, "", errNullValue)
		}
	}
	return nil
}

// fieldNames returns the JSON names of the fields of struct type t.
func fieldNames(t reflect.Type) map[string]bool {
	if names, ok := structFields.Load(t); ok {
		return names.(map[string]bool)
	}
	names := make(map[string]bool, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		switch name {
		case "-":
			continue
		case "":
			name = f.Name
		}
		names[name] = true
	}
	structFields.Store(t, names)
	return names
}

// decodeStruct enforces required fields, then decodes data into v. Keys are matched
// exactly; keys differing only in case are ignored like any other unknown field. v must not
// have its own UnmarshalJSON method; callers pass a pointer to a method-less alias of their
// type.
func decodeStruct(data []byte, typ string, v any, required ...string) error {
	fields, err := decodeObject(typ, data)
	if err != nil {
		return err
	}
	if err := checkRequired(typ, fields, required); err != nil {
		return err
	}

	names := fieldNames(reflect.TypeOf(v).Elem())
	for name := range fields {
		if !names[name] {
			delete(fields, name)
		}
	}
	known, err := json.Marshal(fields)
	if err != nil {
		return wrapDecodeError(typ, err)
	}
	return wrapDecodeError(typ, json.Unmarshal(known, v))
}
