// Package export renders the screener table as CSV, PDF or PNG.
package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"fx-screener/internal/domain"
)

type Format string

const (
	FormatCSV Format = "csv"
	FormatPDF Format = "pdf"
	FormatPNG Format = "png"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "."))); f {
	case FormatCSV, FormatPDF, FormatPNG:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", s)
	}
}

func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatPDF:
		return "application/pdf"
	case FormatPNG:
		return "image/png"
	}
	return "application/octet-stream"
}

// Filename builds a timestamped download name.
func (f Format) Filename(at time.Time) string {
	return fmt.Sprintf("fx-screener-%s.%s", at.Format("20060102-1504"), f)
}

// Row is one rendered line; Direction drives the text colour in images.
type Row struct {
	Cells     []string
	Direction domain.Direction
}

// Table is the format-independent view handed to every writer.
type Table struct {
	Title       string
	Subtitle    string
	GeneratedAt time.Time
	Columns     []string
	Rows        []Row
}

// Write dispatches to the writer for f.
func Write(w io.Writer, f Format, t Table) error {
	switch f {
	case FormatCSV:
		return WriteCSV(w, t)
	case FormatPDF:
		return WritePDF(w, t)
	case FormatPNG:
		return WritePNG(w, t)
	}
	return fmt.Errorf("unsupported export format %q", f)
}
