// Package diagnostics reports on stored certificate payloads: what shape
// they have, what the decoder makes of them and whether the result is a
// usable PDF.
package diagnostics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/balu-16/certificate-place-final/pkg/bytea"
	"github.com/balu-16/certificate-place-final/pkg/pdf"
)

const (
	previewChars = 100
	headBytes    = 10
)

// Report describes a payload before and after decoding.
type Report struct {
	Label             string       `json:"label,omitempty"`
	Type              string       `json:"type"`
	Length            int          `json:"length"`
	IsArray           bool         `json:"is_array"`
	IsBytes           bool         `json:"is_bytes"`
	Preview           string       `json:"preview,omitempty"`
	HexPrefix         bool         `json:"hex_prefix"`
	JSONValid         bool         `json:"json_valid"`
	JSONKind          string       `json:"json_kind,omitempty"`
	ContainsPDFMarker bool         `json:"contains_pdf_marker"`
	Format            bytea.Format `json:"format"`
	DecodedLength     int          `json:"decoded_length"`
	FirstBytes        []int        `json:"first_bytes"`
	HeaderValid       bool         `json:"header_valid"`
	ContentType       string       `json:"content_type,omitempty"`
	DataURL           bool         `json:"data_url"`
	ImageError        string       `json:"image_error,omitempty"`
	Error             string       `json:"error,omitempty"`
}

// OK reports whether the payload decoded to a PDF.
func (r *Report) OK() bool {
	return r.Error == "" && r.HeaderValid
}

// Step is one stage of a Probe.
type Step struct {
	Name   string `json:"name"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
}

// ProbeResult is the outcome of running a payload through the full
// decode, validate and assemble path.
type ProbeResult struct {
	Success    bool       `json:"success"`
	Size       int        `json:"size"`
	Steps      []Step     `json:"steps"`
	Validation Validation `json:"validation"`
	Error      string     `json:"error,omitempty"`
	Document   []byte     `json:"-"`
}

func (p *ProbeResult) step(name string, ok bool, format string, args ...any) {
	p.Steps = append(p.Steps, Step{Name: name, OK: ok, Detail: fmt.Sprintf(format, args...)})
}

// Inspector runs diagnostics with a shared decoder and assembler.
type Inspector struct {
	decoder   *bytea.Decoder
	assembler pdf.Builder
	logger    *zap.Logger
}

// NewInspector creates an inspector. A nil assembler limits Probe to
// payloads that already decode to a PDF.
func NewInspector(decoder *bytea.Decoder, assembler pdf.Builder, logger *zap.Logger) *Inspector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if decoder == nil {
		decoder = bytea.NewDecoder(nil)
	}
	return &Inspector{decoder: decoder, assembler: assembler, logger: logger.Named("diagnostics")}
}

// Inspect describes payload and what it decodes to. It never fails; decode
// errors are recorded in the report.
func (i *Inspector) Inspect(payload any, label string) *Report {
	r := &Report{Label: label, Format: bytea.FormatUnknown, FirstBytes: []int{}}
	describeInput(r, payload)

	if s, ok := payload.(string); ok && pdf.IsImageDataURL(s) {
		r.Format = bytea.FormatBase64
		inspectDataURL(r, s, true)
	} else if result, err := i.decoder.Decode(payload); err != nil {
		r.Error = err.Error()
	} else {
		r.Format = result.Format
		r.DecodedLength = result.Len()
		r.HeaderValid = result.IsValid
		r.FirstBytes = toInts(result.Data, headBytes)
		if result.Len() > 0 {
			r.ContentType = mimetype.Detect(result.Data).String()
		}
		if text, ok := pdf.ImageDataURLText(result.Data); ok && !result.IsValid {
			inspectDataURL(r, text, false)
		} else if strings.HasPrefix(r.ContentType, "image/") {
			if _, err := pdf.CheckImage(result.Data); err != nil {
				r.ImageError = err.Error()
			}
		}
	}

	i.logger.Debug("Certificate inspected",
		zap.String("label", label),
		zap.String("type", r.Type),
		zap.Int("length", r.Length),
		zap.String("format", string(r.Format)),
		zap.Bool("header_valid", r.HeaderValid),
		zap.String("error", r.Error))
	return r
}

// inspectDataURL fills the image fields from a base64 image data URL. When
// direct is set the URL is the payload itself and its image bytes replace
// the decoded length and head.
func inspectDataURL(r *Report, text string, direct bool) {
	r.DataURL = true
	mimeType, data, err := pdf.ParseImageDataURL(text)
	if err != nil {
		r.ImageError = err.Error()
		return
	}
	r.ContentType = mimeType
	if direct {
		r.DecodedLength = len(data)
		r.FirstBytes = toInts(data, headBytes)
	}
	if _, err := pdf.CheckImage(data); err != nil {
		r.ImageError = err.Error()
	}
}

// Probe decodes payload and, when the bytes are an image rather than a PDF,
// assembles them into one. Every stage is recorded.
func (i *Inspector) Probe(ctx context.Context, payload any) *ProbeResult {
	res := &ProbeResult{}
	defer func() {
		i.logger.Info("Certificate probe finished",
			zap.Bool("success", res.Success),
			zap.Int("size", res.Size),
			zap.Int("steps", len(res.Steps)))
	}()

	if s, ok := payload.(string); ok && pdf.IsImageDataURL(s) {
		res.step("decode", true, "image data URL")
		return i.assemble(ctx, res, func() (*pdf.Document, error) {
			return i.assembler.BuildFromDataURL(ctx, s)
		})
	}

	result, err := i.decoder.DecodeNonEmpty(payload)
	if err != nil {
		res.step("decode", false, "%v", err)
		res.Error = err.Error()
		return res
	}
	res.step("decode", true, "%s, %d bytes", result.Format, result.Len())

	if result.IsValid {
		return i.finish(res, result.Data)
	}

	if text, ok := pdf.ImageDataURLText(result.Data); ok {
		res.step("detect", true, "image data URL in decoded bytes")
		return i.assemble(ctx, res, func() (*pdf.Document, error) {
			return i.assembler.BuildFromDataURL(ctx, text)
		})
	}

	contentType := mimetype.Detect(result.Data)
	if !strings.HasPrefix(contentType.String(), "image/") {
		res.step("detect", false, "content type %s", contentType.String())
		res.Error = fmt.Sprintf("decoded data is neither a PDF nor an image (%s)", contentType.String())
		return res
	}
	res.step("detect", true, "content type %s", contentType.String())

	return i.assemble(ctx, res, func() (*pdf.Document, error) {
		return i.assembler.Build(ctx, result.Data, contentType.String())
	})
}

func (i *Inspector) assemble(ctx context.Context, res *ProbeResult, build func() (*pdf.Document, error)) *ProbeResult {
	if i.assembler == nil {
		res.step("assemble", false, "no assembler configured")
		res.Error = "image payload requires an assembler"
		return res
	}
	doc, err := build()
	if err != nil {
		res.step("assemble", false, "%v", err)
		res.Error = err.Error()
		return res
	}
	res.step("assemble", true, "%d bytes from %s", doc.Size(), doc.SourceMIME)
	return i.finish(res, doc.Data)
}

func (i *Inspector) finish(res *ProbeResult, data []byte) *ProbeResult {
	res.Validation = ValidatePDF(data)
	res.step("validate", res.Validation.Valid, "%s", strings.Join(slices.Concat(res.Validation.Errors, res.Validation.Warnings), "; "))
	if !res.Validation.Valid {
		res.Error = strings.Join(res.Validation.Errors, "; ")
		return res
	}
	res.Success = true
	res.Size = len(data)
	res.Document = data
	return res
}

func describeInput(r *Report, payload any) {
	if payload == nil {
		r.Type = "null"
		return
	}
	r.Type = fmt.Sprintf("%T", payload)

	switch v := payload.(type) {
	case string:
		r.Length = len(v)
		r.Preview = preview(v)
		r.HexPrefix = bytea.HasHexPrefix(v)
		r.ContainsPDFMarker = strings.Contains(v, "%PDF")
		var parsed any
		if err := json.Unmarshal([]byte(v), &parsed); err == nil {
			r.JSONValid = true
			r.JSONKind = jsonKind(parsed)
		}
	case []byte:
		r.IsBytes = true
		r.Length = len(v)
		r.Preview = preview(string(v))
		r.ContainsPDFMarker = bytes.Contains(v[:min(len(v), previewChars)], []byte("%PDF"))
	default:
		rv := reflect.ValueOf(payload)
		switch rv.Kind() {
		case reflect.Slice, reflect.Array:
			r.IsArray = true
			r.Length = rv.Len()
		case reflect.Map:
			r.Length = rv.Len()
		}
	}
}

func preview(s string) string {
	if len(s) > previewChars {
		s = s[:previewChars]
	}
	return strings.ToValidUTF8(s, string(utf8.RuneError))
}

func jsonKind(v any) string {
	switch v.(type) {
	case []any:
		return "array"
	case map[string]any:
		return "object"
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	default:
		return "null"
	}
}

func toInts(data []byte, n int) []int {
	out := make([]int, 0, min(len(data), n))
	for _, b := range data[:min(len(data), n)] {
		out = append(out, int(b))
	}
	return out
}
