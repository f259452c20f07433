package hook

import (
	"encoding/json"
	"fmt"
)

// ModificationType is the value of the "type" discriminant. The tokens are part of the wire
// contract.
type ModificationType string

const (
	TypeChangeFrom      ModificationType = "changeFrom"
	TypeAddRecipient    ModificationType = "addRecipient"
	TypeDeleteRecipient ModificationType = "deleteRecipient"
	TypeReplaceContents ModificationType = "replaceContents"
	TypeAddHeader       ModificationType = "addHeader"
	TypeInsertHeader    ModificationType = "insertHeader"
	TypeChangeHeader    ModificationType = "changeHeader"
	TypeDeleteHeader    ModificationType = "deleteHeader"
)

// ModificationTypes lists every variant in declaration order.
var ModificationTypes = []ModificationType{
	TypeChangeFrom,
	TypeAddRecipient,
	TypeDeleteRecipient,
	TypeReplaceContents,
	TypeAddHeader,
	TypeInsertHeader,
	TypeChangeHeader,
	TypeDeleteHeader,
}

func modificationVariants() []string {
	names := make([]string, len(ModificationTypes))
	for i, t := range ModificationTypes {
		names[i] = string(t)
	}
	return names
}

// Modification is one ordered instruction to alter the envelope or message. It is
// implemented only by the eight variant types in this package; use a type switch to
// inspect one.
type Modification interface {
	Type() ModificationType
	isModification()
}

// ChangeFrom replaces the envelope sender.
type ChangeFrom struct {
	Value      string
	Parameters Parameters
}

// AddRecipient appends an envelope recipient.
type AddRecipient struct {
	Value      string
	Parameters Parameters
}

// DeleteRecipient removes an envelope recipient by address.
type DeleteRecipient struct {
	Value string
}

// ReplaceContents replaces the entire message body.
type ReplaceContents struct {
	Value string
}

// AddHeader appends a header after the last one.
type AddHeader struct {
	Name  string
	Value string
}

// InsertHeader inserts a header before position Index.
type InsertHeader struct {
	Index uint32
	Name  string
	Value string
}

// ChangeHeader replaces the header at position Index.
type ChangeHeader struct {
	Index uint32
	Name  string
	Value string
}

// DeleteHeader removes the header at position Index. Name identifies the header expected
// at that position; it is not used to find it.
type DeleteHeader struct {
	Index uint32
	Name  string
}

func (ChangeFrom) Type() ModificationType      { return TypeChangeFrom }
func (AddRecipient) Type() ModificationType    { return TypeAddRecipient }
func (DeleteRecipient) Type() ModificationType { return TypeDeleteRecipient }
func (ReplaceContents) Type() ModificationType { return TypeReplaceContents }
func (AddHeader) Type() ModificationType       { return TypeAddHeader }
func (InsertHeader) Type() ModificationType    { return TypeInsertHeader }
func (ChangeHeader) Type() ModificationType    { return TypeChangeHeader }
func (DeleteHeader) Type() ModificationType    { return TypeDeleteHeader }

func (ChangeFrom) isModification()      {}
func (AddRecipient) isModification()    {}
func (DeleteRecipient) isModification() {}
func (ReplaceContents) isModification() {}
func (AddHeader) isModification()       {}
func (InsertHeader) isModification()    {}
func (ChangeHeader) isModification()    {}
func (DeleteHeader) isModification()    {}

// NewChangeFrom builds a ChangeFrom; nil params become an empty map.
func NewChangeFrom(address string, params Parameters) ChangeFrom {
	return ChangeFrom{Value: address, Parameters: orEmpty(params)}
}

// NewAddRecipient builds an AddRecipient; nil params become an empty map.
func NewAddRecipient(address string, params Parameters) AddRecipient {
	return AddRecipient{Value: address, Parameters: orEmpty(params)}
}

func NewDeleteRecipient(address string) DeleteRecipient {
	return DeleteRecipient{Value: address}
}

func NewReplaceContents(contents string) ReplaceContents {
	return ReplaceContents{Value: contents}
}

func NewAddHeader(name, value string) AddHeader {
	return AddHeader{Name: name, Value: value}
}

func NewInsertHeader(index uint32, name, value string) InsertHeader {
	return InsertHeader{Index: index, Name: name, Value: value}
}

func NewChangeHeader(index uint32, name, value string) ChangeHeader {
	return ChangeHeader{Index: index, Name: name, Value: value}
}

func NewDeleteHeader(index uint32, name string) DeleteHeader {
	return DeleteHeader{Index: index, Name: name}
}

func orEmpty(params Parameters) Parameters {
	if params == nil {
		return Parameters{}
	}
	return params
}

// Each variant encodes with "type" as its first member.

func (m ChangeFrom) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type       ModificationType `json:"type"`
		Value      string           `json:"value"`
		Parameters Parameters       `json:"parameters"`
	}{m.Type(), m.Value, m.Parameters})
}

func (m AddRecipient) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type       ModificationType `json:"type"`
		Value      string           `json:"value"`
		Parameters Parameters       `json:"parameters"`
	}{m.Type(), m.Value, m.Parameters})
}

func (m DeleteRecipient) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type  ModificationType `json:"type"`
		Value string           `json:"value"`
	}{m.Type(), m.Value})
}

func (m ReplaceContents) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type  ModificationType `json:"type"`
		Value string           `json:"value"`
	}{m.Type(), m.Value})
}

func (m AddHeader) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type  ModificationType `json:"type"`
		Name  string           `json:"name"`
		Value string           `json:"value"`
	}{m.Type(), m.Name, m.Value})
}

func (m InsertHeader) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type  ModificationType `json:"type"`
		Index uint32           `json:"index"`
		Name  string           `json:"name"`
		Value string           `json:"value"`
	}{m.Type(), m.Index, m.Name, m.Value})
}

func (m ChangeHeader) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type  ModificationType `json:"type"`
		Index uint32           `json:"index"`
		Name  string           `json:"name"`
		Value string           `json:"value"`
	}{m.Type(), m.Index, m.Name, m.Value})
}

func (m DeleteHeader) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type  ModificationType `json:"type"`
		Index uint32           `json:"index"`
		Name  string           `json:"name"`
	}{m.Type(), m.Index, m.Name})
}

// DecodeModification decodes a single tagged modification object.
func DecodeModification(data []byte) (Modification, error) {
	fields, err := decodeObject("Modification", data)
	if err != nil {
		return nil, err
	}
	rawType, ok := fields["type"]
	if !ok {
		return nil, missingField("Modification", "type")
	}
	var token string
	if err := json.Unmarshal(rawType, &token); err != nil || isNull(rawType) {
		return nil, schemaError("Modification", "type", "string", err)
	}

	r := &variantReader{variant: token, fields: fields}
	var m Modification
	switch ModificationType(token) {
	case TypeChangeFrom:
		m = ChangeFrom{Value: r.str("value"), Parameters: r.parameters()}
	case TypeAddRecipient:
		m = AddRecipient{Value: r.str("value"), Parameters: r.parameters()}
	case TypeDeleteRecipient:
		m = DeleteRecipient{Value: r.str("value")}
	case TypeReplaceContents:
		m = ReplaceContents{Value: r.str("value")}
	case TypeAddHeader:
		m = AddHeader{Name: r.str("name"), Value: r.str("value")}
	case TypeInsertHeader:
		m = InsertHeader{Index: r.index(), Name: r.str("name"), Value: r.str("value")}
	case TypeChangeHeader:
		m = ChangeHeader{Index: r.index(), Name: r.str("name"), Value: r.str("value")}
	case TypeDeleteHeader:
		m = DeleteHeader{Index: r.index(), Name: r.str("name")}
	default:
		return nil, unknownVariant("Modification", token, modificationVariants())
	}
	if r.err != nil {
		return nil, r.err
	}
	return m, nil
}

// variantReader extracts variant fields, keeping the first error encountered.
type variantReader struct {
	variant string
	fields  map[string]json.RawMessage
	err     error
}

func (r *variantReader) required(name string) (json.RawMessage, bool) {
	if r.err != nil {
		return nil, false
	}
	raw, ok := r.fields[name]
	if !ok {
		r.err = missingField(r.variant, name)
		return nil, false
	}
	if isNull(raw) {
		r.err = schemaError(r.variant, name, "", errNullValue)
		return nil, false
	}
	return raw, true
}

func (r *variantReader) str(name string) string {
	raw, ok := r.required(name)
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		r.err = schemaError(r.variant, name, "string", err)
	}
	return s
}

func (r *variantReader) index() uint32 {
	raw, ok := r.required("index")
	if !ok {
		return 0
	}
	var i uint32
	if err := json.Unmarshal(raw, &i); err != nil {
		r.err = schemaError(r.variant, "index", "unsigned 32-bit integer", err)
	}
	return i
}

func (r *variantReader) parameters() Parameters {
	if r.err != nil {
		return nil
	}
	params, err := decodeModificationParameters(r.variant, "parameters", r.fields["parameters"])
	if err != nil {
		r.err = err
	}
	return params
}

// EncodeModification encodes a single modification.
func EncodeModification(m Modification) ([]byte, error) {
	if m == nil {
		return nil, fmt.Errorf("nil modification")
	}
	return json.Marshal(m)
}
