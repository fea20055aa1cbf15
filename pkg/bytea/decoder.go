// Package bytea recovers the original bytes of a certificate payload read
// from a database column whose text encoding is not known in advance.
package bytea

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const previewBytes = 10

// utf8BOM is dropped before hex-decoded text is checked for JSON.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Decoder detects the encoding of a payload and converts it to bytes.
// It holds no per-call state and is safe for concurrent use.
type Decoder struct {
	logger *zap.Logger
}

// NewDecoder creates a decoder that reports every branch it takes to logger.
// A nil logger disables diagnostics.
func NewDecoder(logger *zap.Logger) *Decoder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Decoder{logger: logger.Named("bytea")}
}

var defaultDecoder = NewDecoder(nil)

// Decode converts payload with a silent decoder.
func Decode(payload any) (*Result, error) {
	return defaultDecoder.Decode(payload)
}

// DecodeNonEmpty converts payload with a silent decoder and rejects empty output.
func DecodeNonEmpty(payload any) (*Result, error) {
	return defaultDecoder.DecodeNonEmpty(payload)
}

// candidate is the tagged outcome of the first rule that matched.
type candidate struct {
	data   []byte
	format Format
}

// rule returns (nil, nil) when it does not apply to the payload.
type rule struct {
	name  string
	apply func(d *Decoder, payload any) (*candidate, error)
}

// chain is evaluated in order; later rules only see payloads the earlier,
// more specific rules passed on.
var chain = []rule{
	{name: "canonical", apply: (*Decoder).fromCanonical},
	{name: "hex string", apply: (*Decoder).fromHexString},
	{name: "json string", apply: (*Decoder).fromJSONString},
	{name: "base64 string", apply: (*Decoder).fromBase64String},
	{name: "binary string", apply: (*Decoder).fromBinaryString},
	{name: "object wrapper", apply: (*Decoder).fromWrapper},
}

// Decode converts payload to its canonical bytes.
//
// The returned Result is never nil: on error it is the zero-length result
// tagged FormatUnknown. The empty string counts as a missing payload. A
// zero-length result without an error is still possible (an empty byte slice
// or a bare hex prefix), so callers that go on to build a document must use
// DecodeNonEmpty or check Len themselves.
func (d *Decoder) Decode(payload any) (*Result, error) {
	d.logger.Debug("Starting certificate conversion", d.describe(payload)...)

	if raw, ok := payload.(json.RawMessage); ok {
		payload = unwrapRaw(raw)
	}

	if isNil(payload) {
		d.logger.Error("Certificate is null or undefined")
		return emptyResult(), ErrNilPayload
	}

	for _, r := range chain {
		c, err := r.apply(d, payload)
		if err != nil {
			d.logger.Error("Error converting certificate data",
				zap.String("rule", r.name),
				zap.Error(err))
			return emptyResult(), err
		}
		if c == nil {
			continue
		}
		return d.finish(payload, r.name, c), nil
	}

	err := errors.Wrapf(ErrUnsupportedType, "%T", payload)
	d.logger.Error("Error converting certificate data", zap.Error(err))
	return emptyResult(), err
}

// DecodeNonEmpty is the caller-facing form of Decode: an empty result is an
// error here because nothing downstream can be built from zero bytes.
func (d *Decoder) DecodeNonEmpty(payload any) (*Result, error) {
	result, err := d.Decode(payload)
	if err != nil {
		return result, err
	}
	if result.Len() == 0 {
		d.logger.Error("Converted certificate data is empty", zap.String("format", string(result.Format)))
		return result, ErrEmptyResult
	}
	return result, nil
}

func (d *Decoder) finish(payload any, ruleName string, c *candidate) *Result {
	result := &Result{
		Data:    c.data,
		Format:  c.format,
		IsValid: HasPDFSignature(c.data),
	}

	d.logger.Info("Converted certificate payload",
		zap.String("rule", ruleName),
		zap.String("format", string(result.Format)),
		zap.Int("original_length", payloadLength(payload)),
		zap.Int("converted_length", len(result.Data)),
		zap.Uint8s("first_bytes", head(result.Data, previewBytes)),
		zap.Bool("valid_header", result.IsValid))

	if !result.IsValid {
		d.logger.Warn("PDF header validation failed",
			zap.Uint8s("actual", head(result.Data, previewBytes)),
			zap.Uint8s("expected", PDFSignature[:]))
	}

	return result
}

func (d *Decoder) fromCanonical(payload any) (*candidate, error) {
	data, ok := canonicalBytes(payload)
	if !ok {
		return nil, nil
	}
	d.logger.Debug("Certificate is already a byte sequence", zap.Int("length", len(data)))
	return &candidate{data: data, format: FormatUint8Array}, nil
}

func (d *Decoder) fromHexString(payload any) (*candidate, error) {
	s, ok := payload.(string)
	if !ok || !HasHexPrefix(s) {
		return nil, nil
	}

	digits := s[len(HexPrefix):]
	d.logger.Debug("Processing hex-encoded certificate data", zap.Int("hex_length", len(digits)))
	if len(digits)%2 != 0 {
		return nil, errors.Wrapf(ErrInvalidHexLength, "%d hex digits", len(digits))
	}

	raw, err := hex.DecodeString(digits)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidHexCharacter, err.Error())
	}

	text := bytes.TrimPrefix(raw, utf8BOM)
	if !LooksLikeJSON(string(text)) {
		d.logger.Debug("Treating as raw hex-decoded data", zap.Int("length", len(raw)))
		return &candidate{data: raw, format: FormatHex}, nil
	}

	d.logger.Debug("Detected JSON inside hex payload", zap.String("preview", truncate(string(text), 100)))
	data, format, err := bytesFromJSON(text)
	if err != nil {
		d.logger.Warn("Failed to parse as JSON, treating as raw hex data", zap.Error(err))
		return &candidate{data: raw, format: FormatHex}, nil
	}
	return &candidate{data: data, format: format}, nil
}

func (d *Decoder) fromJSONString(payload any) (*candidate, error) {
	s, ok := payload.(string)
	if !ok || !LooksLikeJSON(s) {
		return nil, nil
	}

	data, format, err := bytesFromJSON([]byte(s))
	if err != nil {
		return nil, errors.Wrap(ErrInvalidJSON, err.Error())
	}
	d.logger.Debug("Found direct JSON data", zap.String("format", string(format)))
	return &candidate{data: data, format: format}, nil
}

func (d *Decoder) fromBase64String(payload any) (*candidate, error) {
	s, ok := payload.(string)
	if !ok || !IsBase64(s) {
		return nil, nil
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(s, Base64PDFPrefix))
	if err != nil {
		return nil, errors.Wrap(ErrInvalidBase64, err.Error())
	}
	return &candidate{data: data, format: FormatBase64}, nil
}

// fromBinaryString is the final fallback for strings. Whether or not the
// string looks binary, every character becomes one byte.
func (d *Decoder) fromBinaryString(payload any) (*candidate, error) {
	s, ok := payload.(string)
	if !ok {
		return nil, nil
	}

	units := codeUnits(s)
	data := make([]byte, len(units))
	for i, u := range units {
		data[i] = byte(u & 0xFF)
	}

	d.logger.Debug("Treating certificate as binary string",
		zap.Bool("looks_binary", LooksBinary(s)),
		zap.Int("characters", len(units)))
	return &candidate{data: data, format: FormatBinary}, nil
}

func (d *Decoder) fromWrapper(payload any) (*candidate, error) {
	obj, ok := payload.(map[string]any)
	if !ok {
		return nil, nil
	}

	nested, ok := obj["data"]
	if !ok || isNil(nested) {
		return nil, errors.Wrap(ErrUnsupportedObject, "no data field")
	}
	data, ok := canonicalBytes(nested)
	if !ok {
		return nil, errors.Wrapf(ErrUnsupportedObject, "data field is %T", nested)
	}
	return &candidate{data: data, format: FormatUint8Array}, nil
}

// canonicalBytes converts payloads that are already byte-like without
// interpreting their content.
func canonicalBytes(payload any) ([]byte, bool) {
	switch v := payload.(type) {
	case []byte:
		return v, true
	case []int:
		return intsToBytes(v), true
	case []float64:
		return floatsToBytes(v), true
	case []any:
		return anysToBytes(v), true
	case interface{ Bytes() []byte }:
		return v.Bytes(), true
	default:
		return nil, false
	}
}

// unwrapRaw parses a raw JSON value so a quoted string, an array and an
// object reach the same rules as their native forms.
func unwrapRaw(raw json.RawMessage) any {
	if raw == nil {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	return v
}

func isNil(payload any) bool {
	if payload == nil {
		return true
	}
	if s, ok := payload.(string); ok {
		return s == ""
	}
	v := reflect.ValueOf(payload)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return v.IsNil()
	}
	return false
}

func (d *Decoder) describe(payload any) []zap.Field {
	fields := []zap.Field{
		zap.String("type", fmt.Sprintf("%T", payload)),
		zap.Int("length", payloadLength(payload)),
	}
	if s, ok := payload.(string); ok {
		fields = append(fields,
			zap.String("first_chars", truncate(s, 20)),
			zap.Bool("hex_prefix", HasHexPrefix(s)))
	}
	return fields
}

func payloadLength(payload any) int {
	if isNil(payload) {
		return 0
	}
	switch v := payload.(type) {
	case string:
		return len(v)
	case interface{ Len() int }:
		return v.Len()
	}
	rv := reflect.ValueOf(payload)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len()
	}
	return 0
}

func head(data []byte, n int) []byte {
	if len(data) < n {
		return data
	}
	return data[:n]
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
