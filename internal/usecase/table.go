package usecase

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"fx-screener/internal/domain"
)

// Sortable columns.
const (
	ColumnScore      = "score"
	ColumnInstrument = "instrument"
	ColumnATRPercent = "atr_pct"
	ColumnADX        = "adx"
	ColumnRSI        = "rsi"
	ColumnPrice      = "price"
	ColumnDirection  = "direction"
	ColumnStatus     = "status"
)

// Columns is the header shared by the dashboard and every export.
var Columns = []string{
	"Instrument", "Direction", "Status", "Score", "Price", "ATR %",
	"ADX", "DMI+", "DMI-", "RSI", "EMA", "Align", "Candle",
}

var statusRank = map[domain.Status]int{
	domain.StatusStrong: 3,
	domain.StatusSetup:  2,
	domain.StatusWatch:  1,
	domain.StatusAvoid:  0,
}

type lessFunc func(a, b domain.Opportunity) bool

var sorters = map[string]lessFunc{
	ColumnScore: func(a, b domain.Opportunity) bool {
		if a.Score != b.Score {
			return a.Score < b.Score
		}
		return a.ADX < b.ADX
	},
	ColumnInstrument: func(a, b domain.Opportunity) bool { return a.Instrument < b.Instrument },
	ColumnATRPercent: func(a, b domain.Opportunity) bool { return a.ATRPercent < b.ATRPercent },
	ColumnADX:        func(a, b domain.Opportunity) bool { return a.ADX < b.ADX },
	ColumnRSI:        func(a, b domain.Opportunity) bool { return a.RSI < b.RSI },
	ColumnPrice:      func(a, b domain.Opportunity) bool { return a.Price < b.Price },
	ColumnDirection:  func(a, b domain.Opportunity) bool { return a.Direction < b.Direction },
	ColumnStatus:     func(a, b domain.Opportunity) bool { return statusRank[a.Status] < statusRank[b.Status] },
}

// Filter keeps the qualified rows, preserving order.
func Filter(rows []domain.Opportunity) []domain.Opportunity {
	out := make([]domain.Opportunity, 0, len(rows))
	for _, r := range rows {
		if r.Qualified {
			out = append(out, r)
		}
	}
	return out
}

// Sort returns a sorted copy of rows. An empty column means score.
func Sort(rows []domain.Opportunity, column string, desc bool) ([]domain.Opportunity, error) {
	if column == "" {
		column = ColumnScore
	}
	less, ok := sorters[strings.ToLower(column)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, column)
	}

	out := make([]domain.Opportunity, len(rows))
	copy(out, rows)
	sort.SliceStable(out, func(i, j int) bool {
		if desc {
			return less(out[j], out[i])
		}
		return less(out[i], out[j])
	})
	return out, nil
}

// Rank orders rows by score then ADX, highest first.
func Rank(rows []domain.Opportunity) []domain.Opportunity {
	out, _ := Sort(rows, ColumnScore, true)
	return out
}

// Cells renders a row in Columns order.
func Cells(o domain.Opportunity) []string {
	return []string{
		o.DisplayName,
		string(o.Direction),
		string(o.Status),
		fmt.Sprintf("%d/%d", o.Score, o.MaxScore),
		FormatPrice(o.Price),
		strconv.FormatFloat(o.ATRPercent, 'f', 3, 64),
		strconv.FormatFloat(o.ADX, 'f', 1, 64),
		strconv.FormatFloat(o.DMIPlus, 'f', 1, 64),
		strconv.FormatFloat(o.DMIMinus, 'f', 1, 64),
		strconv.FormatFloat(o.RSI, 'f', 1, 64),
		FormatPrice(o.EMA),
		strconv.Itoa(o.Alignment),
		o.CandleTime.Format("2006-01-02 15:04"),
	}
}

// FormatPrice picks a precision suited to the quote size (5 digits for
// majors, 3 for JPY crosses, 2 for indices).
func FormatPrice(p float64) string {
	switch {
	case p >= 1000:
		return strconv.FormatFloat(p, 'f', 2, 64)
	case p >= 20:
		return strconv.FormatFloat(p, 'f', 3, 64)
	default:
		return strconv.FormatFloat(p, 'f', 5, 64)
	}
}
