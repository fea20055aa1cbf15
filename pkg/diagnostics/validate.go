package diagnostics

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"

	"github.com/balu-16/certificate-place-final/pkg/bytea"
)

// TrailerWindow is how far from the end of a document the %%EOF marker is
// searched for.
const TrailerWindow = 1024

var eofMarker = []byte("%%EOF")

// Validation is the outcome of a structural check on PDF bytes.
type Validation struct {
	Valid        bool     `json:"valid"`
	Size         int      `json:"size"`
	Header       string   `json:"header"`
	HeaderValid  bool     `json:"header_valid"`
	TrailerFound bool     `json:"trailer_found"`
	Errors       []string `json:"errors,omitempty"`
	Warnings     []string `json:"warnings,omitempty"`
}

// ValidatePDF checks the %PDF header and looks for the %%EOF trailer in the
// last TrailerWindow bytes. A missing trailer is only a warning.
func ValidatePDF(data []byte) Validation {
	v := Validation{Size: len(data)}
	if len(data) == 0 {
		v.Errors = append(v.Errors, "PDF data is empty or null")
		return v
	}

	v.Header = string(data[:min(len(data), len(bytea.PDFSignature))])
	v.HeaderValid = bytea.HasPDFSignature(data)
	if !v.HeaderValid {
		v.Errors = append(v.Errors, fmt.Sprintf("invalid PDF header: expected %%PDF, got %q", v.Header))
		return v
	}

	tail := data[max(0, len(data)-TrailerWindow):]
	v.TrailerFound = bytes.Contains(tail, eofMarker)
	if !v.TrailerFound {
		v.Warnings = append(v.Warnings, "PDF trailer (%%EOF) not found in last 1KB")
	}

	v.Valid = true
	return v
}

// SamplePDF returns a minimal one-page letter-size document reading
// "Test PDF", used to exercise a delivery path without real certificate data.
func SamplePDF() ([]byte, error) {
	doc := gofpdf.New("P", "pt", "Letter", "")
	doc.SetTitle("Test PDF", false)
	doc.AddPage()
	doc.SetFont("Helvetica", "", 12)
	doc.Text(100, 92, "Test PDF")

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to create test PDF: %w", err)
	}
	return buf.Bytes(), nil
}
