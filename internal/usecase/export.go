package usecase

import (
	"fmt"
	"io"
	"time"

	"fx-screener/internal/domain"
	"fx-screener/internal/infrastructure/export"
)

// ThresholdsLine summarizes the active filters for export headers.
func ThresholdsLine(t domain.Thresholds) string {
	line := fmt.Sprintf("ATR%% >= %.2f | ADX >= %.0f | HTF ADX >= %.0f | RSI %.0f-%.0f | min score %d/%d",
		t.MinATRPercent, t.MinADX, t.MinADXHigherTF, t.RSIOversold, t.RSIOverbought, t.MinScore, MaxScore)
	if t.RequireEMATrend {
		line += " | EMA trend required"
	}
	return line
}

// BuildTable turns rows into the view shared by every export format.
func BuildTable(rows []domain.Opportunity, t domain.Thresholds, at time.Time) export.Table {
	table := export.Table{
		Title:       "FX Screener - Opportunities",
		Subtitle:    ThresholdsLine(t),
		GeneratedAt: at,
		Columns:     Columns,
		Rows:        make([]export.Row, len(rows)),
	}
	for i, r := range rows {
		table.Rows[i] = export.Row{Cells: Cells(r), Direction: r.Direction}
	}
	return table
}

// Export writes the current rows, sorted by column, in format f.
func (uc *ScreenerUsecase) Export(w io.Writer, f export.Format, column string, desc, all bool) error {
	rows, err := uc.Opportunities(column, desc, all)
	if err != nil {
		return err
	}
	return export.Write(w, f, BuildTable(rows, uc.Thresholds(), uc.now()))
}
