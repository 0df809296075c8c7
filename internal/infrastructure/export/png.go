package export

import (
	"fmt"
	"io"

	"github.com/fogleman/gg"

	"fx-screener/internal/domain"
)

const (
	pngPadding = 16.0
	pngCellPad = 10.0
	pngRowH    = 22.0
)

// WritePNG draws the table with alternating row shading. BUY rows use green
// text and SELL rows red.
func WritePNG(w io.Writer, t Table) error {
	measure := gg.NewContext(1, 1)
	widths := make([]float64, len(t.Columns))
	for i, c := range t.Columns {
		cw, _ := measure.MeasureString(c)
		widths[i] = cw
	}
	for _, r := range t.Rows {
		for i, cell := range r.Cells {
			if i >= len(widths) {
				break
			}
			if cw, _ := measure.MeasureString(cell); cw > widths[i] {
				widths[i] = cw
			}
		}
	}

	tableW := 0.0
	for i := range widths {
		widths[i] += 2 * pngCellPad
		tableW += widths[i]
	}
	titleW, _ := measure.MeasureString(t.Subtitle)
	width := max(tableW, titleW) + 2*pngPadding
	height := 2*pngPadding + 3*pngRowH + float64(len(t.Rows))*pngRowH

	dc := gg.NewContext(int(width), int(height))
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	dc.SetRGB255(33, 37, 41)
	dc.DrawString(t.Title, pngPadding, pngPadding+12)
	dc.SetRGB255(108, 117, 125)
	dc.DrawString(t.Subtitle+"  |  "+t.GeneratedAt.Format("2006-01-02 15:04 MST"), pngPadding, pngPadding+pngRowH+8)

	y := pngPadding + 2*pngRowH
	dc.SetRGB255(33, 37, 41)
	dc.DrawRectangle(pngPadding, y, tableW, pngRowH)
	dc.Fill()
	dc.SetRGB(1, 1, 1)
	x := pngPadding
	for i, c := range t.Columns {
		dc.DrawStringAnchored(c, x+widths[i]/2, y+pngRowH/2, 0.5, 0.35)
		x += widths[i]
	}

	for n, r := range t.Rows {
		y += pngRowH
		if n%2 == 0 {
			dc.SetRGB255(245, 245, 245)
		} else {
			dc.SetRGB(1, 1, 1)
		}
		dc.DrawRectangle(pngPadding, y, tableW, pngRowH)
		dc.Fill()

		setPNGTextColor(dc, r.Direction)
		x = pngPadding
		for i, cell := range r.Cells {
			if i >= len(widths) {
				break
			}
			dc.DrawStringAnchored(cell, x+pngCellPad, y+pngRowH/2, 0, 0.35)
			x += widths[i]
		}
	}

	if err := dc.EncodePNG(w); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

func setPNGTextColor(dc *gg.Context, dir domain.Direction) {
	switch dir {
	case domain.DirectionBuy:
		dc.SetRGB255(25, 135, 84)
	case domain.DirectionSell:
		dc.SetRGB255(220, 53, 69)
	default:
		dc.SetRGB255(33, 37, 41)
	}
}
