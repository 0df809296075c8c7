package usecase

import (
	"fmt"

	"fx-screener/internal/domain"
)

// Rule names reported in Opportunity.Rules.
const (
	RuleATRPercent = "atr_pct"
	RuleADX        = "adx"
	RuleADXHTF     = "adx_htf"
	RuleRSI        = "rsi"
	RuleEMA        = "ema"
	RuleAlignH4    = "align_h4"
	RuleAlignD     = "align_d"
)

// MaxScore is one point per rule.
const MaxScore = 7

// CalculateScore builds the table row for one instrument from the last
// indicator row of each timeframe. H1 carries the primary values.
func CalculateScore(instrument string, last map[domain.Granularity]domain.IndicatorRow, order []domain.Granularity, t domain.Thresholds) (domain.Opportunity, error) {
	h1, ok := last[domain.GranularityH1]
	if !ok {
		return domain.Opportunity{}, fmt.Errorf("%s: missing H1 row: %w", instrument, domain.ErrInsufficientData)
	}

	opp := domain.Opportunity{
		Instrument:  instrument,
		DisplayName: domain.DisplayName(instrument),
		Direction:   domain.DirectionFromDMI(h1.DMIPlus, h1.DMIMinus),
		MaxScore:    MaxScore,
		Price:       h1.Close,
		ATR:         h1.ATR,
		ATRPercent:  h1.ATRPercent,
		ADX:         h1.ADX,
		DMIPlus:     h1.DMIPlus,
		DMIMinus:    h1.DMIMinus,
		RSI:         h1.RSI,
		EMA:         h1.EMA,
		CandleTime:  h1.Time,
	}

	for _, tf := range order {
		row, ok := last[tf]
		if !ok {
			continue
		}
		opp.Timeframes = append(opp.Timeframes, domain.TimeframeView{
			TF:        tf,
			ADX:       row.ADX,
			RSI:       row.RSI,
			ATRPct:    row.ATRPercent,
			Direction: domain.DirectionFromDMI(row.DMIPlus, row.DMIMinus),
		})
	}

	return Rescore(opp, t), nil
}

// Rescore re-evaluates the rules of an already built row against new
// thresholds. No candles are needed.
func Rescore(opp domain.Opportunity, t domain.Thresholds) domain.Opportunity {
	dir := opp.Direction
	h4, hasH4 := timeframe(opp, domain.GranularityH4)
	d, hasD := timeframe(opp, domain.GranularityD)

	rules := make([]string, 0, MaxScore)
	pass := func(name string, ok bool) {
		if ok {
			rules = append(rules, name)
		}
	}

	pass(RuleATRPercent, opp.ATRPercent >= t.MinATRPercent)
	pass(RuleADX, opp.ADX >= t.MinADX)
	pass(RuleADXHTF, hasH4 && h4.ADX >= t.MinADXHigherTF)

	switch dir {
	case domain.DirectionBuy:
		pass(RuleRSI, opp.RSI > 50 && opp.RSI < t.RSIOverbought)
	case domain.DirectionSell:
		pass(RuleRSI, opp.RSI < 50 && opp.RSI > t.RSIOversold)
	}

	emaOK := emaTrend(dir, opp.Price, opp.EMA)
	pass(RuleEMA, emaOK)

	alignment := 0
	if hasH4 && dir != domain.DirectionNeutral && h4.Direction == dir {
		alignment++
		pass(RuleAlignH4, true)
	}
	if hasD && dir != domain.DirectionNeutral && d.Direction == dir {
		alignment++
		pass(RuleAlignD, true)
	}

	opp.Rules = rules
	opp.Score = len(rules)
	opp.MaxScore = MaxScore
	opp.Alignment = alignment
	opp.Status = StatusFor(opp.Score, opp.MaxScore)
	opp.Qualified = opp.Score >= t.MinScore && (!t.RequireEMATrend || emaOK)
	return opp
}

// StatusFor buckets a score: 6/7 STRONG, 4/7 SETUP, 2/7 WATCH.
func StatusFor(score, maxScore int) domain.Status {
	if maxScore <= 0 {
		return domain.StatusAvoid
	}
	switch {
	case score*7 >= 6*maxScore:
		return domain.StatusStrong
	case score*7 >= 4*maxScore:
		return domain.StatusSetup
	case score*7 >= 2*maxScore:
		return domain.StatusWatch
	default:
		return domain.StatusAvoid
	}
}

func emaTrend(dir domain.Direction, price, ema float64) bool {
	switch dir {
	case domain.DirectionBuy:
		return price > ema
	case domain.DirectionSell:
		return price < ema
	default:
		return false
	}
}

func timeframe(opp domain.Opportunity, tf domain.Granularity) (domain.TimeframeView, bool) {
	for _, v := range opp.Timeframes {
		if v.TF == tf {
			return v, true
		}
	}
	return domain.TimeframeView{}, false
}
