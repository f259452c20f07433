package policy_test

import (
	"strings"
	"testing"

	"github.com/inbucket/mtahook/pkg/policy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAddress(t *testing.T) {
	testCases := []struct {
		input  string
		local  string
		domain string
	}{
		{input: "mailbox@domain.com", local: "mailbox", domain: "domain.com"},
		{input: "First.Last@Domain.COM", local: "First.Last", domain: "Domain.COM"},
		{input: "user+label@domain.com", local: "user+label", domain: "domain.com"},
		{input: `"first last"@domain.com`, local: "first last", domain: "domain.com"},
		{input: `james\@mail@domain.com`, local: "james@mail", domain: "domain.com"},
		{input: "user@[192.168.1.1]", local: "user", domain: "[192.168.1.1]"},
		{input: "user@[IPv6:2001:db8::1]", local: "user", domain: "[IPv6:2001:db8::1]"},
		{input: "Postmaster", local: "Postmaster"},
	}
	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			got, err := policy.ParseAddress(tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.local, got.LocalPart)
			assert.Equal(t, tc.domain, got.Domain)
		})
	}
}

func TestParseAddressInvalid(t *testing.T) {
	testCases := []struct {
		input, msg string
	}{
		{"", "Empty address is not permitted"},
		{"mailbox", "Domain is required"},
		{"user@host@domain.com", "Second @ symbol not permitted in domain"},
		{"first last@domain.com", "Space not permitted"},
		{"first\"last@domain.com", "Double quote not permitted"},
		{"first\nlast@domain.com", "Control chars not permitted"},
		{"user@", "Empty domain not permitted"},
		{"user@[300.1.1.1]", "Address literal must be an IP"},
		{"user@[2001:db8::1]", "IPv6 literal needs its tag"},
		{"user@[IPv6:192.168.1.1]", "IPv6 tag needs an IPv6 address"},
		{strings.Repeat("a", 310) + "@domain.com", "Max address length is 320"},
	}
	for _, tc := range testCases {
		_, err := policy.ParseAddress(tc.input)
		assert.ErrorIs(t, err, policy.ErrInvalidAddress, "%q: %s", tc.input, tc.msg)
	}
}

func TestValidateDomain(t *testing.T) {
	testTable := []struct {
		input  string
		expect bool
		msg    string
	}{
		{"", false, "Empty domain is not valid"},
		{"hostname", true, "Just a hostname is valid"},
		{"github.com", true, "Two labels should be just fine"},
		{"my-domain.com", true, "Hyphen is allowed mid-label"},
		{"_domainkey.foo.com", true, "Underscores are allowed"},
		{"bar.com.", true, "Must be able to end with a dot"},
		{"ABC.6DBS.com", true, "Mixed case is OK"},
		{"mail.123.com", true, "Number only label valid"},
		{"google..com", false, "Double dot not valid"},
		{".foo.com", false, "Cannot start with a dot"},
		{"google\r.com", false, "Special chars not allowed"},
		{"foo.-bar.com", false, "Label cannot start with hyphen"},
		{"foo-.bar.com", false, "Label cannot end with hyphen"},
		{"[10.0.0.1]", true, "IPv4 literal"},
		{"[IPv6:::1]", true, "IPv6 literal"},
		{"[example.com]", false, "Literal must be an address"},
		{strings.Repeat("a", 256), false, "Max domain length is 255"},
		{strings.Repeat("a", 63) + ".com", true, "Should allow 63 char domain label"},
		{strings.Repeat("a", 64) + ".com", false, "Max domain label length is 63"},
	}
	for _, tt := range testTable {
		assert.Equal(t, tt.expect, policy.ValidateDomainPart(tt.input), "%q: %s", tt.input, tt.msg)
	}
}

func TestValidateLocal(t *testing.T) {
	testTable := []struct {
		input  string
		expect bool
		msg    string
	}{
		{"", false, "Empty local is not valid"},
		{"a", true, "Single letter should be fine"},
		{strings.Repeat("a", 128), true, "Valid up to 128 characters"},
		{strings.Repeat("a", 129), false, "Only valid up to 128 characters"},
		{"a!#$%&'*+-/=?^_`{|}~", true, "Any of !#$%&'*+-/=?^_`{|}~ are permitted"},
		{"first.last", true, "Embedded period is permitted"},
		{"first..last", false, "Sequence of periods is not allowed"},
		{".user", false, "Cannot lead with a period"},
		{"user.", false, "Cannot end with a period"},
		{"first last", false, "Unquoted space not permitted"},
		{"no,commas", false, "Unquoted comma not allowed"},
		{"t[es]t", false, "Unquoted square brackets not allowed"},
		{"quoted\\ space", true, "Quoted space permitted"},
		{"t\\[es\\]t", true, "Quoted brackets are OK"},
		{"return\\\r", true, "Should be able to quote ASCII control chars"},
		{"high\\\x80", false, "Should not accept > 7-bit quoted chars"},
		{"\"first last\"", true, "Quoted space is permitted"},
		{"\"qp\\\"quote\"", true, "Quoted quote within quoted string is OK"},
		{"\"unterminated", false, "Quoted string must be terminated"},
		{"\"unterminated\\\"", false, "Quoted string must be terminated"},
		{"embed\"quote\"string", false, "Embedded quoted string is illegal"},
		{"customer/department=shipping", true, "RFC3696 test case should be valid"},
		{"!def!xyz%abc", true, "RFC3696 test case should be valid"},
	}
	for _, tt := range testTable {
		_, err := policy.ParseAddress(tt.input + "@domain.com")
		assert.Equal(t, tt.expect, err == nil, "%q: %s (err: %v)", tt.input, tt.msg, err)
	}
}

func TestValidateHeaderName(t *testing.T) {
	for _, name := range []string{"Subject", "X-Spam-Status", "x_custom.1", "~!#"} {
		assert.NoError(t, policy.ValidateHeaderName(name), name)
	}
	for _, name := range []string{"", "X Spam", "X-Spam:", "Sub\tject", "Sübject"} {
		assert.ErrorIs(t, policy.ValidateHeaderName(name), policy.ErrInvalidHeader, name)
	}
}
