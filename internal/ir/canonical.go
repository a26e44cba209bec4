package ir

import (
	"bytes"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical produces the canonical encoding used for identity.
// CRITICAL: This is the ONLY serialization that should be used for
// content-addressed identity computation.
//
// The encoding is RFC 8785 style JSON with two extensions:
//  1. Object keys sorted by UTF-16 code units (not UTF-8 bytes)
//  2. No HTML escaping; only quote, backslash and C0 controls are escaped
//  3. Strings and keys are NFC normalized, except keys that only differ
//     from a sibling key by normalization, which are kept as written
//  4. Floats always carry a decimal point or exponent, so 1 and 1.0 differ
//  5. Non-finite floats are an error
//
// Scalars are type-tagged by their spelling: 1, 1.0, "1", true and null
// all encode differently.
func MarshalCanonical(v IRValue) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeCanonical(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeCanonical(buf *bytes.Buffer, v IRValue) error {
	switch val := v.(type) {
	case nil, IRNull:
		buf.WriteString("null")
	case IRBool:
		buf.WriteString(strconv.FormatBool(bool(val)))
	case IRInt:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
	case IRFloat:
		b, err := formatFloat(float64(val))
		if err != nil {
			return err
		}
		buf.Write(b)
	case IRString:
		writeCanonicalString(buf, string(val))
	case IRArray:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, elem); err != nil {
				return fmt.Errorf("array[%d]: %w", i, err)
			}
		}
		buf.WriteByte(']')
	case IRObject:
		return writeCanonicalObject(buf, val)
	default:
		return fmt.Errorf("unsupported type for canonical encoding: %T", v)
	}
	return nil
}

func writeCanonicalObject(buf *bytes.Buffer, obj IRObject) error {
	type key struct{ raw, nfc string }

	// Keys sort by their NFC form. Keys that are distinct but NFC-equivalent
	// are written unnormalized and ordered by raw bytes, so the encoding
	// stays injective.
	keys := make([]key, 0, len(obj))
	forms := make(map[string]int, len(obj))
	for k := range obj {
		nk := norm.NFC.String(k)
		keys = append(keys, key{raw: k, nfc: nk})
		forms[nk]++
	}
	slices.SortFunc(keys, func(a, b key) int {
		if c := compareKeysRFC8785(a.nfc, b.nfc); c != 0 {
			return c
		}
		return strings.Compare(a.raw, b.raw)
	})

	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if forms[k.nfc] > 1 {
			writeJSONString(buf, k.raw)
		} else {
			writeJSONString(buf, k.nfc)
		}
		buf.WriteByte(':')
		if err := writeCanonical(buf, obj[k.raw]); err != nil {
			return fmt.Errorf("value for key %q: %w", k.raw, err)
		}
	}
	buf.WriteByte('}')
	return nil
}

const hexDigits = "0123456789abcdef"

// writeCanonicalString writes s as an NFC normalized JSON string.
// Only quote, backslash and U+0000-U+001F are escaped; U+2028/U+2029 and
// HTML characters are written literally.
func writeCanonicalString(buf *bytes.Buffer, s string) {
	writeJSONString(buf, norm.NFC.String(s))
}

func writeJSONString(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		i += size
		switch {
		case r == '"':
			buf.WriteString(`\"`)
		case r == '\\':
			buf.WriteString(`\\`)
		case r == '\b':
			buf.WriteString(`\b`)
		case r == '\f':
			buf.WriteString(`\f`)
		case r == '\n':
			buf.WriteString(`\n`)
		case r == '\r':
			buf.WriteString(`\r`)
		case r == '\t':
			buf.WriteString(`\t`)
		case r < 0x20:
			buf.WriteString(`\u00`)
			buf.WriteByte(hexDigits[r>>4])
			buf.WriteByte(hexDigits[r&0xF])
		default:
			// Invalid UTF-8 decodes to utf8.RuneError and is written as U+FFFD.
			buf.WriteRune(r)
		}
	}
	buf.WriteByte('"')
}
