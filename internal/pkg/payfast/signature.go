package payfast

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
)

// CanonicalParamString reconstructs the exact string PayFast signs: the
// received fields in their original order, the signature field excluded,
// blank values omitted, values percent-encoded per RFC 1738 (space becomes
// '+', hex digits uppercase). A configured passphrase is appended as a final
// passphrase= parameter.
func CanonicalParamString(fields []Field, passphrase string) string {
	var b strings.Builder
	for _, f := range fields {
		if strings.EqualFold(f.Key, "signature") {
			continue
		}
		if f.Value == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(f.Key)
		b.WriteByte('=')
		b.WriteString(encodeRFC1738(f.Value))
	}
	if passphrase != "" {
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString("passphrase=")
		b.WriteString(encodeRFC1738(passphrase))
	}
	return b.String()
}

// ComputeSignature returns the lowercase hex MD5 of the canonical string.
func ComputeSignature(fields []Field, passphrase string) string {
	sum := md5.Sum([]byte(CanonicalParamString(fields, passphrase)))
	return hex.EncodeToString(sum[:])
}

// VerifySignature checks the supplied signature against the recomputed one,
// case-insensitively. With no passphrase configured, sandbox mode skips
// verification entirely (treated as not configured); production mode still
// verifies against the unsalted canonical string. Never returns an error.
func VerifySignature(fields []Field, signature, passphrase string, mode Mode) bool {
	if passphrase == "" && mode == ModeSandbox {
		return true
	}
	if strings.TrimSpace(signature) == "" {
		return false
	}
	want := ComputeSignature(fields, passphrase)
	return strings.EqualFold(strings.TrimSpace(signature), want)
}

// encodeRFC1738 mirrors the urlencode() variant PayFast signs with: space to
// '+', unreserved [A-Za-z0-9._-] kept, everything else %XX with uppercase
// hex. net/url encodes per RFC 3986 (%20, more unreserved characters), which
// produces a different byte string and therefore a different digest.
func encodeRFC1738(s string) string {
	const upperhex = "0123456789ABCDEF"
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == ' ':
			b.WriteByte('+')
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9',
			c == '-', c == '_', c == '.':
			b.WriteByte(c)
		default:
			b.WriteByte('%')
			b.WriteByte(upperhex[c>>4])
			b.WriteByte(upperhex[c&0xF])
		}
	}
	return b.String()
}
