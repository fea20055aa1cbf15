package bytea

import "github.com/pkg/errors"

// Format records which detection rule produced the decoded bytes.
type Format string

const (
	FormatUint8Array Format = "uint8array"
	FormatHex        Format = "hex"
	FormatBase64     Format = "base64"
	FormatBinary     Format = "binary"
	FormatJSONArray  Format = "json-array"
	FormatJSONObject Format = "json-object"
	FormatUnknown    Format = "unknown"
)

// PDFSignature is the 4-byte magic ("%PDF") a decoded payload must start with
// to be considered valid.
var PDFSignature = [4]byte{0x25, 0x50, 0x44, 0x46}

// Result is the canonical byte form of a certificate payload.
type Result struct {
	Data    []byte `json:"-"`
	Format  Format `json:"format"`
	IsValid bool   `json:"is_valid"`
}

// Len returns the number of decoded bytes.
func (r *Result) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Data)
}

func emptyResult() *Result {
	return &Result{Data: []byte{}, Format: FormatUnknown}
}

var (
	ErrNilPayload          = errors.New("certificate data is null or undefined")
	ErrInvalidHexLength    = errors.New("invalid hex string length")
	ErrInvalidHexCharacter = errors.New("invalid hex character")
	ErrInvalidJSON         = errors.New("invalid JSON format")
	ErrInvalidBase64       = errors.New("invalid base64 format")
	ErrUnsupportedObject   = errors.New("unsupported object format")
	ErrUnsupportedType     = errors.New("unsupported data type")
	ErrEmptyResult         = errors.New("converted certificate data is empty")
)
