package hook_test

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/inbucket/mtahook/pkg/hook"
	"github.com/inbucket/mtahook/pkg/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRequestDocumented(t *testing.T) {
	got, err := hook.DecodeRequest([]byte(test.RequestJSON))
	require.NoError(t, err)
	assert.Equal(t, test.Request(), got)

	// A null parameter map is absent, not empty.
	require.Len(t, got.Envelope.To, 2)
	assert.Nil(t, got.Envelope.To[1].Parameters)
	assert.NotNil(t, got.Envelope.To[0].Parameters)
}

func TestDecodeRequestReencode(t *testing.T) {
	req, err := hook.DecodeRequest([]byte(test.RequestJSON))
	require.NoError(t, err)
	data, err := hook.EncodeRequest(req)
	require.NoError(t, err)

	// Stages are written in lowercase and null parameter maps are omitted.
	var want map[string]any
	require.NoError(t, json.Unmarshal([]byte(test.RequestJSON), &want))
	want["context"].(map[string]any)["stage"] = "data"
	jane := want["envelope"].(map[string]any)["to"].([]any)[1].(map[string]any)
	delete(jane, "parameters")
	wantJSON, err := json.Marshal(want)
	require.NoError(t, err)
	assert.JSONEq(t, string(wantJSON), string(data))

	again, err := hook.DecodeRequest(data)
	require.NoError(t, err)
	assert.Equal(t, req, again)
}

func TestDecodeRequestIntegerParameters(t *testing.T) {
	input := strings.Replace(test.RequestJSON, `"size": "12345"`, `"size": 12345`, 1)
	got, err := hook.DecodeRequest([]byte(input))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"size": "12345"}, got.Envelope.From.Parameters)
	assert.Equal(t, test.Request(), got)
}

func TestDecodeRequestStageCasing(t *testing.T) {
	for _, token := range []string{"DATA", "data", "DaTa"} {
		t.Run(token, func(t *testing.T) {
			input := strings.Replace(test.RequestJSON, `"stage": "DATA"`, `"stage": "`+token+`"`, 1)
			got, err := hook.DecodeRequest([]byte(input))
			require.NoError(t, err)
			assert.Equal(t, hook.StageData, got.Context.Stage)
		})
	}

	input := strings.Replace(test.RequestJSON, `"stage": "DATA"`, `"stage": "QUIT"`, 1)
	_, err := hook.DecodeRequest([]byte(input))
	require.Error(t, err)
	assert.ErrorIs(t, err, hook.ErrUnknownVariant)
	assert.Contains(t, err.Error(), "CONNECT, EHLO, AUTH, MAIL, RCPT, DATA")
}

func TestParseStage(t *testing.T) {
	for i, token := range []string{"connect", "EHLO", "Auth", "mail", "RCPT", "data"} {
		stage, err := hook.ParseStage(token)
		require.NoError(t, err)
		assert.Equal(t, hook.Stages[i], stage)
		assert.Equal(t, strings.ToLower(token), stage.String())
	}

	_, err := hook.ParseStage("")
	assert.ErrorIs(t, err, hook.ErrUnknownVariant)

	_, err = hook.Stage(42).MarshalText()
	assert.Error(t, err)
}

func TestDecodeRequestMinimal(t *testing.T) {
	input := `{
		"context": {
			"stage": "connect",
			"client": {"ip": "10.0.0.1", "port": 4000, "activeConnections": 3},
			"server": {"port": 25},
			"protocol": {"version": 1}
		}
	}`
	got, err := hook.DecodeRequest([]byte(input))
	require.NoError(t, err)
	assert.Equal(t, hook.StageConnect, got.Context.Stage)
	assert.Nil(t, got.Context.SASL)
	assert.Nil(t, got.Context.TLS)
	assert.Nil(t, got.Context.Queue)
	assert.Nil(t, got.Context.Client.PTR)
	assert.Nil(t, got.Context.Server.Name)
	assert.Nil(t, got.Envelope)
	assert.Nil(t, got.Message)

	data, err := hook.EncodeRequest(got)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"context": {
			"stage": "connect",
			"client": {"ip": "10.0.0.1", "port": 4000, "ptr": null, "helo": null, "activeConnections": 3},
			"server": {"name": null, "port": 25, "ip": null},
			"protocol": {"version": 1}
		}
	}`, string(data))
}

func TestDecodeRequestIgnoresUnknownFields(t *testing.T) {
	input := strings.Replace(test.RequestJSON, `"context": {`, `"extra": [1, 2, 3], "context": {"future": true,`, 1)
	got, err := hook.DecodeRequest([]byte(input))
	require.NoError(t, err)
	assert.Equal(t, test.Request(), got)
}

func TestDecodeRequestFieldCasing(t *testing.T) {
	// Keys differing in case from a field name are unknown fields.
	input := strings.Replace(test.RequestJSON, `"context": {`,
		`"Envelope": "x", "MESSAGE": null, "context": {"Stage": "connect", "CLIENT": 7,`, 1)
	got, err := hook.DecodeRequest([]byte(input))
	require.NoError(t, err)
	assert.Equal(t, test.Request(), got)

	input = `{
		"Context": {"stage": "connect"},
		"context": {
			"stage": "ehlo",
			"client": {"ip": "10.0.0.1", "port": 4000, "activeConnections": 3, "IP": "10.9.9.9"},
			"server": {"port": 25, "Port": 587},
			"protocol": {"version": 1}
		}
	}`
	got, err = hook.DecodeRequest([]byte(input))
	require.NoError(t, err)
	assert.Equal(t, hook.StageEhlo, got.Context.Stage)
	assert.Equal(t, "10.0.0.1", got.Context.Client.IP)
	assert.Equal(t, uint16(25), got.Context.Server.Port)

	// A differently cased key cannot stand in for a required field.
	_, err = hook.DecodeRequest([]byte(`{"Context": {}}`))
	assert.ErrorIs(t, err, hook.ErrMissingField)
}

func TestDecodeRequestErrors(t *testing.T) {
	testCases := []struct {
		name  string
		input string
		kind  error
		typ   string
		field string
	}{
		{
			name:  "missing context",
			input: `{"envelope": null}`,
			kind:  hook.ErrMissingField,
			typ:   "Request",
			field: "context",
		},
		{
			name:  "null context",
			input: `{"context": null}`,
			kind:  hook.ErrSchemaViolation,
			typ:   "Request",
			field: "context",
		},
		{
			name:  "missing stage",
			input: `{"context": {"client": {}, "server": {}, "protocol": {}}}`,
			kind:  hook.ErrMissingField,
			typ:   "Context",
			field: "stage",
		},
		{
			name: "missing client port",
			input: `{"context": {"stage": "ehlo", "client": {"ip": "1.2.3.4", "activeConnections": 0},
				"server": {"port": 25}, "protocol": {"version": 1}}}`,
			kind:  hook.ErrMissingField,
			typ:   "Client",
			field: "port",
		},
		{
			name: "port out of range",
			input: `{"context": {"stage": "ehlo", "client": {"ip": "1.2.3.4", "port": 70000, "activeConnections": 0},
				"server": {"port": 25}, "protocol": {"version": 1}}}`,
			kind: hook.ErrSchemaViolation,
			typ:  "Client",
		},
		{
			name: "missing sasl login",
			input: `{"context": {"stage": "auth", "sasl": {"method": "plain"},
				"client": {"ip": "1.2.3.4", "port": 1, "activeConnections": 0},
				"server": {"port": 25}, "protocol": {"version": 1}}}`,
			kind:  hook.ErrMissingField,
			typ:   "SASL",
			field: "login",
		},
		{
			name:  "not an object",
			input: `[]`,
			kind:  hook.ErrSchemaViolation,
			typ:   "Request",
		},
		{
			name:  "malformed",
			input: `{"context": `,
			kind:  hook.ErrMalformedInput,
		},
		{
			name:  "garbage",
			input: `not json`,
			kind:  hook.ErrMalformedInput,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := hook.DecodeRequest([]byte(tc.input))
			require.Error(t, err)
			assert.Nil(t, got)
			assert.ErrorIs(t, err, tc.kind)

			var de *hook.DecodeError
			require.True(t, errors.As(err, &de), "error must be a *DecodeError")
			if tc.typ != "" {
				assert.Equal(t, tc.typ, de.Type)
			}
			if tc.field != "" {
				assert.Equal(t, tc.field, de.Field)
			}
		})
	}
}

func TestDecodeRequestHeaders(t *testing.T) {
	for name, headers := range map[string]string{
		"one element":   `[["From"]]`,
		"three element": `[["From", "a", "b"]]`,
		"object":        `[{"name": "From", "value": "a"}]`,
		"number value":  `[["Size", 12]]`,
		"null value":    `[["X-A", null]]`,
		"null name":     `[[null, "v"]]`,
	} {
		t.Run(name, func(t *testing.T) {
			input := strings.Replace(test.RequestJSON, `"headers": [`, `"headers": `+headers+`, "unused": [`, 1)
			_, err := hook.DecodeRequest([]byte(input))
			require.Error(t, err)
			assert.ErrorIs(t, err, hook.ErrSchemaViolation)
		})
	}
}

func TestDecodeAddressParameters(t *testing.T) {
	testCases := []struct {
		name   string
		params string
		want   map[string]string
		err    bool
	}{
		{name: "missing", params: ``, want: nil},
		{name: "null", params: `, "parameters": null`, want: nil},
		{name: "empty", params: `, "parameters": {}`, want: map[string]string{}},
		{name: "string", params: `, "parameters": {"size": "10"}`, want: map[string]string{"size": "10"}},
		{name: "number", params: `, "parameters": {"size": 10}`, want: map[string]string{"size": "10"}},
		{name: "bool", params: `, "parameters": {"body": true}`, want: map[string]string{"body": "true"}},
		{name: "null value", params: `, "parameters": {"smtputf8": null}`, err: true},
		{name: "array value", params: `, "parameters": {"notify": ["a"]}`, err: true},
		{name: "object value", params: `, "parameters": {"notify": {}}`, err: true},
		{name: "array map", params: `, "parameters": []`, err: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var addr hook.Address
			err := json.Unmarshal([]byte(`{"address": "a@example.com"`+tc.params+`}`), &addr)
			if tc.err {
				require.Error(t, err)
				assert.ErrorIs(t, err, hook.ErrSchemaViolation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "a@example.com", addr.Address)
			assert.Equal(t, tc.want, addr.Parameters)
		})
	}

	var addr hook.Address
	err := json.Unmarshal([]byte(`{"address": "a@example.com", "parameters": {"orcpt": [1]}}`), &addr)
	assert.EqualError(t, err,
		`invalid type for "parameters.orcpt" in Address, expected string, number or boolean: `+
			`invalid parameter value type`)

	err = json.Unmarshal([]byte(`{"parameters": {}}`), &addr)
	assert.ErrorIs(t, err, hook.ErrMissingField)
}

func TestAddressEncoding(t *testing.T) {
	data, err := json.Marshal(hook.Address{Address: "a@example.com"})
	require.NoError(t, err)
	assert.Equal(t, `{"address":"a@example.com"}`, string(data))

	data, err = json.Marshal(hook.Address{Address: "a@example.com", Parameters: map[string]string{}})
	require.NoError(t, err)
	assert.Equal(t, `{"address":"a@example.com","parameters":{}}`, string(data))
}

func TestMessageHeader(t *testing.T) {
	msg := test.Request().Message
	v, ok := msg.Header("subject")
	assert.True(t, ok)
	assert.Equal(t, "Hello, World!", v)

	_, ok = msg.Header("Received")
	assert.False(t, ok, "server headers are not part of the message headers")
}

func TestRequestClone(t *testing.T) {
	orig := test.Request()
	c := orig.Clone()
	assert.Equal(t, orig, c)

	c.Envelope.From.Parameters["size"] = "1"
	c.Envelope.To = append(c.Envelope.To[:1], hook.Address{Address: "x@example.com"})
	c.Envelope.To[0].Parameters["orcpt"] = "changed"
	c.Message.Headers[0].Value = "changed"
	c.Message.Contents = "changed"

	assert.Equal(t, test.Request(), orig)

	empty := &hook.Request{
		Envelope: &hook.Envelope{To: []hook.Address{}},
		Message:  &hook.Message{Headers: []hook.Header{}},
	}
	c = empty.Clone()
	assert.NotNil(t, c.Envelope.To)
	assert.NotNil(t, c.Message.Headers)
}
