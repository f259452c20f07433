package policy

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"
)

var (
	// ErrInvalidAddress is wrapped by every address validation failure.
	ErrInvalidAddress = errors.New("invalid address")
	// ErrInvalidHeader is wrapped by every header name validation failure.
	ErrInvalidHeader = errors.New("invalid header name")
)

// Address is an envelope address split into its parts.
type Address struct {
	// LocalPart is the unescaped part of the address before @, including +extension.
	LocalPart string
	// Domain is the part of the address after @, empty for the postmaster mailbox.
	Domain string
}

// ParseAddress validates an envelope address following the guidelines in RFC3696 and
// splits it into its parts. A bare "postmaster" is the only address permitted without a
// domain.
func ParseAddress(address string) (Address, error) {
	local, domain, err := splitAddress(address)
	if err != nil {
		return Address{}, fmt.Errorf("%w %q: %v", ErrInvalidAddress, address, err)
	}
	if domain == "" {
		if strings.EqualFold(address, "postmaster") {
			return Address{LocalPart: local}, nil
		}
		return Address{}, fmt.Errorf("%w %q: missing domain part", ErrInvalidAddress, address)
	}
	if !ValidateDomainPart(domain) {
		return Address{}, fmt.Errorf("%w %q: domain part failed validation", ErrInvalidAddress, address)
	}
	return Address{LocalPart: local, Domain: domain}, nil
}

// ValidateDomainPart returns true if the domain part complies to RFC3696, RFC1035, or is
// an RFC5321 address literal such as [192.0.2.1] or [IPv6:2001:db8::1].
func ValidateDomainPart(domain string) bool {
	if strings.HasPrefix(domain, "[") && strings.HasSuffix(domain, "]") {
		return validateAddressLiteral(domain[1 : len(domain)-1])
	}
	if len(domain) == 0 || len(domain) > 255 {
		return false
	}
	if !strings.HasSuffix(domain, ".") {
		domain += "."
	}
	labelLen := 0
	hasAlphaNum := false
	prev := '.'
	for _, c := range domain {
		switch {
		case ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9') || c == '_':
			hasAlphaNum = true
			labelLen++
		case c == '-':
			if prev == '.' {
				return false
			}
			labelLen++
		case c == '.':
			if prev == '-' || labelLen > 63 || !hasAlphaNum {
				// Labels cannot be empty or end with a hyphen.
				return false
			}
			labelLen = 0
			hasAlphaNum = false
		default:
			return false
		}
		prev = c
	}
	return true
}

func validateAddressLiteral(lit string) bool {
	if v6, ok := strings.CutPrefix(lit, "IPv6:"); ok {
		ip, err := netip.ParseAddr(v6)
		return err == nil && ip.Is6() && ip.Zone() == ""
	}
	ip, err := netip.ParseAddr(lit)
	return err == nil && ip.Is4()
}

// ValidateHeaderName checks name is a valid RFC5322 field name: printable US-ASCII other
// than colon.
func ValidateHeaderName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty", ErrInvalidHeader)
	}
	for i := 0; i < len(name); i++ {
		if c := name[i]; c < 33 || c > 126 || c == ':' {
			return fmt.Errorf("%w %q: character %q not permitted", ErrInvalidHeader, name, c)
		}
	}
	return nil
}

// splitAddress unescapes the local part of an address, and splits it from the domain part,
// which is returned unvalidated. Quoted strings may only span the start of the local part.
func splitAddress(address string) (local string, domain string, err error) {
	switch {
	case address == "":
		return "", "", errors.New("empty address")
	case len(address) > 320:
		return "", "", errors.New("address exceeds 320 characters")
	case address[0] == '@':
		return "", "", errors.New("address cannot start with @ symbol")
	case address[0] == '.':
		return "", "", errors.New("address cannot start with a period")
	}
	var b strings.Builder
	prev := byte('.')
	escaped := false
	quoted := false
	for i := 0; i < len(address); i++ {
		c := address[i]
		if c > 127 {
			return "", "", errors.New("characters outside of US-ASCII range not permitted")
		}
		switch {
		case escaped:
			b.WriteByte(c)
			escaped = false
		case c == '\\':
			escaped = true
		case c == '"':
			if quoted {
				quoted = false
			} else if i == 0 {
				quoted = true
			} else {
				return "", "", errors.New("quoted string can only begin at start of address")
			}
		case quoted:
			b.WriteByte(c)
		case c == '@':
			if i > 128 {
				return "", "", errors.New("local part must not exceed 128 characters")
			}
			if prev == '.' {
				return "", "", errors.New("local part cannot end with a period")
			}
			return b.String(), address[i+1:], nil
		case c == '.':
			if prev == '.' {
				return "", "", errors.New("sequence of periods is not permitted")
			}
			b.WriteByte(c)
		case isAtext(c):
			b.WriteByte(c)
		default:
			return "", "", fmt.Errorf("character %q must be quoted", c)
		}
		prev = c
	}
	if escaped {
		return "", "", errors.New("cannot end address with unterminated quoted-pair")
	}
	if quoted {
		return "", "", errors.New("cannot end address with unterminated string quote")
	}
	return b.String(), "", nil
}

func isAtext(c byte) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9') ||
		strings.IndexByte("!#$%&'*+-/=?^_`{|}~", c) >= 0
}
