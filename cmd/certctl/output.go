package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"

	"github.com/balu-16/certificate-place-final/internal/integrity"
	"github.com/balu-16/certificate-place-final/pkg/diagnostics"
)

var (
	headerColor  = color.New(color.FgCyan, color.Bold)
	labelColor   = color.New(color.FgYellow)
	valueColor   = color.New(color.FgWhite)
	dimColor     = color.New(color.Faint)
	successColor = color.New(color.FgGreen)
	errorColor   = color.New(color.FgRed)
	warnColor    = color.New(color.FgYellow)
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func printSection(w io.Writer, title string) {
	fmt.Fprintln(w)
	headerColor.Fprintf(w, "┌ %s\n", title)
}

func printKV(w io.Writer, key, value string, indent int) {
	prefix := strings.Repeat("  ", indent)
	labelColor.Fprintf(w, "%s%s: ", prefix, key)
	valueColor.Fprintln(w, value)
}

func printCheck(w io.Writer, ok bool, msg string) {
	if ok {
		successColor.Fprintf(w, "  ✓ %s\n", msg)
	} else {
		errorColor.Fprintf(w, "  ✗ %s\n", msg)
	}
}

func printReport(w io.Writer, r *diagnostics.Report) {
	printSection(w, "Input")
	printKV(w, "Type", r.Type, 1)
	printKV(w, "Length", strconv.Itoa(r.Length), 1)
	if r.HexPrefix {
		printKV(w, "Hex prefix", "yes", 1)
	}
	if r.JSONValid {
		printKV(w, "JSON", r.JSONKind, 1)
	}
	if r.ContainsPDFMarker {
		printKV(w, "PDF marker", "present", 1)
	}
	if verbose && r.Preview != "" {
		printKV(w, "Preview", r.Preview, 1)
	}

	printSection(w, "Decoded")
	if r.Error != "" {
		printCheck(w, false, r.Error)
		return
	}
	printKV(w, "Format", string(r.Format), 1)
	printKV(w, "Bytes", strconv.Itoa(r.DecodedLength), 1)
	if r.ContentType != "" {
		printKV(w, "Content type", r.ContentType, 1)
	}
	printKV(w, "First bytes", formatBytes(r.FirstBytes), 1)
	if r.ImageError != "" {
		printCheck(w, false, r.ImageError)
		return
	}
	printCheck(w, r.HeaderValid, headerMessage(r))
}

func headerMessage(r *diagnostics.Report) string {
	switch {
	case r.HeaderValid:
		return "PDF header valid"
	case r.DataURL:
		return "image data URL, will be assembled into a PDF"
	case strings.HasPrefix(r.ContentType, "image/"):
		return "not a PDF, image will be assembled into one"
	default:
		return "PDF header missing"
	}
}

func printProbe(w io.Writer, p *diagnostics.ProbeResult) {
	printSection(w, "Pipeline")
	for _, step := range p.Steps {
		msg := step.Name
		if step.Detail != "" {
			msg += dimColor.Sprintf(" (%s)", step.Detail)
		}
		printCheck(w, step.OK, msg)
	}

	printSection(w, "Validation")
	if p.Validation.Size > 0 {
		printKV(w, "Size", strconv.Itoa(p.Validation.Size), 1)
		printKV(w, "Header", p.Validation.Header, 1)
		printCheck(w, p.Validation.TrailerFound, "%EOF trailer")
	}
	for _, warning := range p.Validation.Warnings {
		warnColor.Fprintf(w, "  ! %s\n", warning)
	}
	if p.Error != "" {
		printCheck(w, false, p.Error)
	} else {
		printCheck(w, true, fmt.Sprintf("renders to a %d byte PDF", p.Size))
	}
}

func printScan(w io.Writer, s *integrity.Summary, reportPath string) {
	printSection(w, "Integrity scan")
	printKV(w, "Total", strconv.Itoa(s.Total), 1)
	printKV(w, "Valid PDF", strconv.Itoa(s.ValidPDF), 1)
	printKV(w, "Images", strconv.Itoa(s.Images), 1)
	printKV(w, "Unreadable", strconv.Itoa(s.Unreadable), 1)
	printKV(w, "Failed", strconv.Itoa(s.Failed), 1)
	printKV(w, "Duration", s.Duration().String(), 1)
	if reportPath != "" {
		printKV(w, "Report", reportPath, 1)
	}

	for _, row := range s.Rows {
		if row.Healthy() && !verbose {
			continue
		}
		detail := row.Error
		if detail == "" {
			detail = fmt.Sprintf("%s, %s", row.Format, row.ContentType)
		}
		printCheck(w, row.Healthy(), fmt.Sprintf("student %d %s: %s", row.StudentID, row.Name, detail))
	}
}

func formatBytes(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%02x", v)
	}
	return strings.Join(parts, " ")
}
