package export

import (
	"fmt"
	"io"

	"github.com/go-pdf/fpdf"

	"fx-screener/internal/domain"
)

// WritePDF renders a landscape A4 table.
func WritePDF(w io.Writer, t Table) error {
	pdf := fpdf.New("L", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetMargins(10, 12, 10)
	pdf.SetAutoPageBreak(true, 12)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 9, tr(t.Title), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(90, 90, 90)
	pdf.CellFormat(0, 5, tr("Generated "+t.GeneratedAt.Format("2006-01-02 15:04 MST")), "", 1, "L", false, 0, "")
	if t.Subtitle != "" {
		pdf.CellFormat(0, 5, tr(t.Subtitle), "", 1, "L", false, 0, "")
	}
	pdf.Ln(3)

	pageW, _ := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()
	colW := (pageW - left - right) / float64(max(len(t.Columns), 1))

	header := func() {
		pdf.SetFont("Helvetica", "B", 8)
		pdf.SetFillColor(33, 37, 41)
		pdf.SetTextColor(255, 255, 255)
		for _, c := range t.Columns {
			pdf.CellFormat(colW, 7, tr(c), "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
	}
	header()

	pdf.SetFont("Helvetica", "", 8)
	_, pageH := pdf.GetPageSize()
	for i, r := range t.Rows {
		if pdf.GetY()+6 > pageH-12 {
			pdf.AddPage()
			header()
			pdf.SetFont("Helvetica", "", 8)
		}
		if i%2 == 0 {
			pdf.SetFillColor(245, 245, 245)
		} else {
			pdf.SetFillColor(255, 255, 255)
		}
		for j, cell := range r.Cells {
			setPDFTextColor(pdf, r.Direction, j)
			align := "R"
			if j < 3 {
				align = "L"
			}
			pdf.CellFormat(colW, 6, tr(cell), "1", 0, align, true, 0, "")
		}
		pdf.Ln(-1)
	}

	if len(t.Rows) == 0 {
		pdf.SetTextColor(90, 90, 90)
		pdf.CellFormat(0, 8, "No opportunity matches the current thresholds.", "", 1, "L", false, 0, "")
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

// Only the direction column is coloured.
func setPDFTextColor(pdf *fpdf.Fpdf, dir domain.Direction, col int) {
	switch {
	case col == 1 && dir == domain.DirectionBuy:
		pdf.SetTextColor(25, 135, 84)
	case col == 1 && dir == domain.DirectionSell:
		pdf.SetTextColor(220, 53, 69)
	default:
		pdf.SetTextColor(33, 37, 41)
	}
}
