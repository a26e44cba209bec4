package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
)

// DomainRequest prefixes every request identifier hash.
// The suffix tracks FormatVersion.
const DomainRequest = "intercase/request/v" + FormatVersion

// IDLength is the length of an identifier: hex encoded SHA-256.
const IDLength = 64

var idPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte (0x00) separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// RequestID computes the content-addressed identifier of a request.
// The selection picks the identifying fields; the zero Selection uses the
// full request. The result is stable across processes and key order.
func RequestID(request IRObject, sel Selection) (string, error) {
	canonical, err := MarshalCanonical(sel.Apply(request))
	if err != nil {
		return "", fmt.Errorf("RequestID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainRequest, canonical), nil
}

// MustRequestID is like RequestID but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustRequestID(request IRObject, sel Selection) string {
	id, err := RequestID(request, sel)
	if err != nil {
		panic(err)
	}
	return id
}

// IsID reports whether s has the shape of an identifier.
func IsID(s string) bool {
	return idPattern.MatchString(s)
}
