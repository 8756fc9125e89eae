// Package macaddr provides the MAC address value type used throughout
// macshift: parsing, formatting, random generation, and vendor-prefix
// composition. All operations are pure; Address and Prefix are
// immutable value types.
package macaddr

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors returned by parsing and generation.
var (
	// ErrInvalidFormat is returned when a textual MAC address or prefix
	// cannot be parsed.
	ErrInvalidFormat = errors.New("macaddr: invalid format")

	// ErrInvalidPrefixLength is returned when a vendor prefix has zero
	// octets or more than six.
	ErrInvalidPrefixLength = errors.New("macaddr: invalid prefix length")
)

// Address is a 48-bit MAC address.
type Address [6]byte

// Format selects the textual rendering of an Address.
type Format int

// Supported textual formats.
const (
	FormatColon  Format = iota // aa:bb:cc:dd:ee:ff
	FormatHyphen               // aa-bb-cc-dd-ee-ff
	FormatDot                  // aa.bb.cc.dd.ee.ff
	FormatRaw                  // aabbccddeeff
)

// Parse parses a textual MAC address. Accepted grammars: colon-,
// hyphen-, or dot-separated octet pairs, or twelve bare hex digits.
func Parse(s string) (Address, error) {
	octets, err := parseHexOctets(s)
	if err != nil {
		return Address{}, err
	}
	if len(octets) != 6 {
		return Address{}, fmt.Errorf("%w: %q: want 6 octets, got %d", ErrInvalidFormat, s, len(octets))
	}
	var a Address
	copy(a[:], octets)
	return a, nil
}

// String returns the canonical lower-case colon-separated form.
func (a Address) String() string {
	return a.Format(FormatColon)
}

// Format renders the address in the requested textual format.
func (a Address) Format(f Format) string {
	var sep string
	switch f {
	case FormatHyphen:
		sep = "-"
	case FormatDot:
		sep = "."
	case FormatRaw:
		sep = ""
	default:
		sep = ":"
	}
	parts := make([]string, 6)
	for i, b := range a {
		parts[i] = fmt.Sprintf("%02x", b)
	}
	return strings.Join(parts, sep)
}

// LocallyAdministered reports whether the locally-administered bit
// (bit 1 of the first octet) is set.
func (a Address) LocallyAdministered() bool {
	return a[0]&0x02 != 0
}

// Multicast reports whether the multicast bit (bit 0 of the first
// octet) is set.
func (a Address) Multicast() bool {
	return a[0]&0x01 != 0
}

// Equal reports whether two addresses are octet-identical.
func (a Address) Equal(b Address) bool {
	return a == b
}

// IsZero reports whether the address is all zeros.
func (a Address) IsZero() bool {
	return a == Address{}
}

// Prefix is the leading 1–6 octets of a MAC address, used for vendor
// identification and filter matching.
type Prefix struct {
	octets [6]byte
	n      int
}

// ParsePrefix parses a textual prefix of 1–6 octets using the same
// grammars as Parse.
func ParsePrefix(s string) (Prefix, error) {
	octets, err := parseHexOctets(s)
	if err != nil {
		return Prefix{}, err
	}
	if len(octets) < 1 || len(octets) > 6 {
		return Prefix{}, fmt.Errorf("%w: %q: want 1-6 octets, got %d", ErrInvalidPrefixLength, s, len(octets))
	}
	var p Prefix
	copy(p.octets[:], octets)
	p.n = len(octets)
	return p, nil
}

// PrefixOf returns the n-octet prefix of an address.
func PrefixOf(a Address, n int) (Prefix, error) {
	if n < 1 || n > 6 {
		return Prefix{}, fmt.Errorf("%w: %d octets", ErrInvalidPrefixLength, n)
	}
	var p Prefix
	copy(p.octets[:], a[:n])
	p.n = n
	return p, nil
}

// Len returns the prefix length in octets.
func (p Prefix) Len() int { return p.n }

// String returns the canonical lower-case colon-separated form.
func (p Prefix) String() string {
	parts := make([]string, p.n)
	for i := 0; i < p.n; i++ {
		parts[i] = fmt.Sprintf("%02x", p.octets[i])
	}
	return strings.Join(parts, ":")
}

// Match reports whether the address starts with this prefix,
// octet-exact over the prefix length.
func (p Prefix) Match(a Address) bool {
	if p.n == 0 {
		return false
	}
	for i := 0; i < p.n; i++ {
		if a[i] != p.octets[i] {
			return false
		}
	}
	return true
}

// Generate returns a cryptographically random unicast address. The
// multicast bit is always cleared; the locally-administered bit is set
// when locallyAdministered is true, cleared otherwise.
func Generate(locallyAdministered bool) (Address, error) {
	var a Address
	if _, err := rand.Read(a[:]); err != nil {
		return Address{}, fmt.Errorf("macaddr: generate: %w", err)
	}
	a[0] &^= 0x01 // unicast
	if locallyAdministered {
		a[0] |= 0x02
	} else {
		a[0] &^= 0x02
	}
	return a, nil
}

// WithVendorPrefix returns an address whose leading octets are the
// given vendor prefix and whose remaining octets are random. Vendor
// prefixes are presumed globally administered, so no address bits are
// forced; a full 6-octet prefix leaves nothing to randomize.
func WithVendorPrefix(p Prefix) (Address, error) {
	if p.n < 1 || p.n > 6 {
		return Address{}, fmt.Errorf("%w: %d octets", ErrInvalidPrefixLength, p.n)
	}
	var a Address
	copy(a[:], p.octets[:p.n])
	if p.n < 6 {
		if _, err := rand.Read(a[p.n:]); err != nil {
			return Address{}, fmt.Errorf("macaddr: generate suffix: %w", err)
		}
	}
	return a, nil
}

// parseHexOctets decodes hex octet pairs written bare or with a single
// consistent separator (colon, hyphen, or dot) between pairs. Mixed or
// misplaced separators are rejected: every separated group must be
// exactly two hex digits.
func parseHexOctets(s string) ([]byte, error) {
	if s == "" {
		return nil, fmt.Errorf("%w: empty string", ErrInvalidFormat)
	}

	var sep byte
	for i := 0; i < len(s); i++ {
		if c := s[i]; c == ':' || c == '-' || c == '.' {
			sep = c
			break
		}
	}

	var groups []string
	if sep == 0 {
		if len(s)%2 != 0 {
			return nil, fmt.Errorf("%w: %q", ErrInvalidFormat, s)
		}
		for i := 0; i < len(s); i += 2 {
			groups = append(groups, s[i:i+2])
		}
	} else {
		groups = strings.Split(s, string(sep))
	}

	out := make([]byte, 0, len(groups))
	for _, g := range groups {
		if len(g) != 2 {
			return nil, fmt.Errorf("%w: %q", ErrInvalidFormat, s)
		}
		hi, ok1 := hexVal(g[0])
		lo, ok2 := hexVal(g[1])
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("%w: %q: non-hex digit", ErrInvalidFormat, s)
		}
		out = append(out, hi<<4|lo)
	}
	return out, nil
}

func hexVal(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}
