package bytea

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasHexPrefix(t *testing.T) {
	assert.True(t, HasHexPrefix(`\x2550`))
	assert.True(t, HasHexPrefix(`\x`))
	assert.False(t, HasHexPrefix("x2550"))
	assert.False(t, HasHexPrefix("0x2550"))
	assert.False(t, HasHexPrefix(""))
}

func TestLooksLikeJSON(t *testing.T) {
	assert.True(t, LooksLikeJSON("[1,2]"))
	assert.True(t, LooksLikeJSON("{}"))
	assert.False(t, LooksLikeJSON(" [1,2]"))
	assert.False(t, LooksLikeJSON("1,2"))
}

func TestIsBase64(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"padded", "aGVsbG8=", true},
		{"data url", Base64PDFPrefix + "JVBERg==", true},
		{"empty", "", true},
		{"missing padding", "aGVsbG8", false},
		{"spaces", "hello world", false},
		{"non canonical tail bits", "aGVsbG9=", false},
		{"embedded newline", "aGVs\nbG8=", false},
		{"url alphabet", "a-_b", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsBase64(tt.input))
		})
	}
}

func TestLooksBinary(t *testing.T) {
	assert.False(t, LooksBinary("plain printable text"))
	assert.True(t, LooksBinary("tab\there"))
	assert.True(t, LooksBinary("café"))
	assert.True(t, LooksBinary(string([]byte{0x25, 0xff})))
	assert.False(t, LooksBinary(strings.Repeat("a", BinaryLengthThreshold)))
	assert.True(t, LooksBinary(strings.Repeat("a", BinaryLengthThreshold+1)))
}

func TestHasPDFSignature(t *testing.T) {
	assert.True(t, HasPDFSignature([]byte("%PDF-1.7")))
	assert.True(t, HasPDFSignature([]byte("%PDF")))
	assert.False(t, HasPDFSignature([]byte("%PD")))
	assert.False(t, HasPDFSignature([]byte("\x89PNG")))
	assert.False(t, HasPDFSignature(nil))
}
