package chart

import (
	"math"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/spektr-org/chartdeck/visual"
)

// ============================================================================
// LABEL FORMATTING
// ============================================================================

// FormatLabel renders v with exactly precision decimals, rounding half away
// from zero. Infinities and NaN are written as "+Inf", "-Inf" and "NaN".
func FormatLabel(v float64, precision int) string {
	if precision < 0 {
		precision = 0
	}
	if nonFinite(v) {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return decimal.NewFromFloat(v).StringFixed(int32(precision))
}

// FormatPercent renders part/total as a percentage.
func FormatPercent(part, total float64, precision int) string {
	if total == 0 || nonFinite(total) || nonFinite(part) {
		return FormatLabel(0, precision) + "%"
	}
	pct := decimal.NewFromFloat(part).Div(decimal.NewFromFloat(total)).Mul(decimal.NewFromInt(100))
	return pct.StringFixed(int32(max(precision, 0))) + "%"
}

func nonFinite(x float64) bool { return math.IsInf(x, 0) || math.IsNaN(x) }

// sliceLabel composes a pie or donut slice label.
func sliceLabel(mode visual.LabelMode, category string, value, total float64, precision int) string {
	switch mode {
	case visual.LabelValue:
		return FormatLabel(value, precision)
	case visual.LabelName:
		return category
	case visual.LabelNamePercent:
		return category + ": " + FormatPercent(value, total, precision)
	case visual.LabelNameValue:
		return category + ": " + FormatLabel(value, precision)
	default:
		return FormatPercent(value, total, precision)
	}
}
