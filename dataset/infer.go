package dataset

import (
	"strconv"
	"strings"
	"time"
)

// ============================================================================
// TYPE INFERENCE — Heuristic column classification
// ============================================================================
// A column is numeric when enough of its non-missing cells parse as numbers.
// Temporal detection is opt-in: year-like integers ("2024") and codes would
// otherwise be read as dates. Everything else is categorical.
// ============================================================================

// InferOptions controls type inference.
type InferOptions struct {
	NumericThreshold float64 // Share of non-missing cells that must parse. Default: 0.8
	DetectTemporal   bool    // Classify date-like columns as temporal
}

// DefaultInferOptions returns sensible defaults.
func DefaultInferOptions() InferOptions {
	return InferOptions{NumericThreshold: 0.8}
}

// inferType inspects trimmed cells to determine the column type.
func inferType(values []string, opt InferOptions) ColumnType {
	threshold := opt.NumericThreshold
	if threshold <= 0 || threshold > 1 {
		threshold = 0.8
	}

	present, numCount, dateCount := 0, 0, 0
	for _, v := range values {
		if IsMissing(v) {
			continue
		}
		present++
		if _, ok := ParseNumber(v); ok {
			numCount++
		}
		if opt.DetectTemporal {
			if _, ok := ParseTime(v); ok {
				dateCount++
			}
		}
	}
	if present == 0 {
		return Categorical
	}

	need := float64(present) * threshold
	// A bare year parses both ways; it stays numeric.
	if opt.DetectTemporal && float64(dateCount) >= need && numCount < dateCount {
		return Temporal
	}
	if float64(numCount) >= need {
		return Numeric
	}
	return Categorical
}

var missingTokens = map[string]bool{
	"": true, "null": true, "NULL": true, "N/A": true, "n/a": true, "NaN": true, "nan": true,
}

// IsMissing reports whether a trimmed cell holds no value.
func IsMissing(s string) bool {
	return missingTokens[strings.TrimSpace(s)]
}

func normalizeCell(s string) string {
	s = strings.TrimSpace(s)
	if missingTokens[s] {
		return ""
	}
	return s
}

// ParseNumber parses a cell as a number, accepting thousands separators,
// a leading currency symbol and a trailing percent sign.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if IsMissing(s) {
		return 0, false
	}
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	s = strings.ReplaceAll(s, ",", "") // handle "1,234.56"
	s = strings.TrimPrefix(s, "$")
	s = strings.TrimPrefix(s, "€")
	s = strings.TrimPrefix(s, "£")
	s = strings.TrimSuffix(s, "%")
	if s == "" || strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	// ParseFloat accepts "Inf" and "NaN"; neither is a usable measurement.
	if v != v || v > 1e308 || v < -1e308 {
		return 0, false
	}
	if neg {
		v = -v
	}
	return v, true
}

var dateFormats = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"01/02/2006",
	"02/01/2006",
	"Jan-2006",
	"January 2006",
	"2006",
	"Jan 2, 2006",
	"2 Jan 2006",
}

// ParseTime parses a cell using the supported date layouts.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if IsMissing(s) {
		return time.Time{}, false
	}
	for _, layout := range dateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
