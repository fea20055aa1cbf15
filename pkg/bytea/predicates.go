package bytea

import (
	"bytes"
	"encoding/base64"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

const (
	// HexPrefix marks a bytea column rendered as text.
	HexPrefix = `\x`

	// Base64PDFPrefix is stripped before the base64 round-trip check.
	Base64PDFPrefix = "data:application/pdf;base64,"

	// BinaryLengthThreshold is the length above which a string payload is
	// assumed to be binary even when every character is printable.
	BinaryLengthThreshold = 1000
)

// HasHexPrefix reports whether s uses the `\x` hex convention.
func HasHexPrefix(s string) bool {
	return strings.HasPrefix(s, HexPrefix)
}

// LooksLikeJSON reports whether s opens a JSON array or object.
func LooksLikeJSON(s string) bool {
	return strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[")
}

// IsBase64 reports whether s, without an optional data URL prefix, survives a
// strict base64 decode/encode round trip unchanged.
func IsBase64(s string) bool {
	clean := strings.TrimPrefix(s, Base64PDFPrefix)
	decoded, err := base64.StdEncoding.DecodeString(clean)
	if err != nil {
		return false
	}
	return base64.StdEncoding.EncodeToString(decoded) == clean
}

// LooksBinary reports whether s contains a character outside printable ASCII
// or is longer than BinaryLengthThreshold characters.
func LooksBinary(s string) bool {
	units := codeUnits(s)
	if len(units) > BinaryLengthThreshold {
		return true
	}
	for _, u := range units {
		if u < 32 || u > 126 {
			return true
		}
	}
	return false
}

// HasPDFSignature reports whether data starts with PDFSignature.
func HasPDFSignature(data []byte) bool {
	return len(data) >= len(PDFSignature) && bytes.Equal(data[:len(PDFSignature)], PDFSignature[:])
}

// codeUnits splits s into character codes. Valid UTF-8 is read as UTF-16 code
// units; anything else is already a byte string and is read byte by byte.
func codeUnits(s string) []uint16 {
	if !utf8.ValidString(s) {
		units := make([]uint16, len(s))
		for i := 0; i < len(s); i++ {
			units[i] = uint16(s[i])
		}
		return units
	}
	return utf16.Encode([]rune(s))
}
