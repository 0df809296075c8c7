package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/schollz/progressbar/v3"

	"fx-screener/internal/domain"
	"fx-screener/internal/usecase"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	buyStyle    = cellStyle.Foreground(lipgloss.Color("2"))
	sellStyle   = cellStyle.Foreground(lipgloss.Color("1"))
	mutedStyle  = cellStyle.Foreground(lipgloss.Color("240"))
)

func renderOpportunities(rows []domain.Opportunity) string {
	cells := make([][]string, len(rows))
	for i, r := range rows {
		cells[i] = usecase.Cells(r)
	}

	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("240"))).
		Headers(usecase.Columns...).
		Rows(cells...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col != 1 || row < 0 || row >= len(rows) {
				return cellStyle
			}
			switch rows[row].Direction {
			case domain.DirectionBuy:
				return buyStyle
			case domain.DirectionSell:
				return sellStyle
			default:
				return cellStyle
			}
		}).
		String()
}

func renderAutopsy(rows []domain.AutopsyRow) string {
	cells := make([][]string, len(rows))
	for i, r := range rows {
		if r.Row == nil {
			cells[i] = []string{r.Instrument, string(r.Status), "", "", "", "", "", "", r.Error}
			continue
		}
		cells[i] = []string{
			r.Instrument,
			string(r.Status),
			r.Row.Time.Format("2006-01-02 15:04"),
			usecase.FormatPrice(r.Row.Close),
			fmt.Sprintf("%.5f", r.Row.ATR),
			fmt.Sprintf("%.1f", r.Row.ADX),
			fmt.Sprintf("%.1f", r.Row.DMIPlus),
			fmt.Sprintf("%.1f", r.Row.DMIMinus),
			"",
		}
	}

	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers("Instrument", "Status", "Time", "Close", "ATR", "ADX", "DMI+", "DMI-", "Error").
		Rows(cells...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case row >= 0 && row < len(rows) && rows[row].Status != domain.AutopsyOK:
				return mutedStyle
			default:
				return cellStyle
			}
		}).
		String()
}

// progressReporter drives a terminal progress bar from scan progress events.
type progressReporter struct {
	out io.Writer
	bar *progressbar.ProgressBar
}

func newProgressReporter(out io.Writer) *progressReporter {
	return &progressReporter{out: out}
}

func (p *progressReporter) Update(sp domain.ScanProgress) {
	if p.bar == nil {
		p.bar = progressbar.NewOptions(sp.Total,
			progressbar.OptionSetWriter(p.out),
			progressbar.OptionSetDescription("Scanning"),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}
	if sp.Instrument != "" {
		p.bar.Describe(fmt.Sprintf("Scanning %s", domain.DisplayName(sp.Instrument)))
	}
	_ = p.bar.Set(sp.Done)
}

func (p *progressReporter) Finish() {
	if p.bar != nil {
		_ = p.bar.Finish()
	}
}
