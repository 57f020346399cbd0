package etl

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// ── Transformer ────────────────────────────────────────────
// Converts GDP from grouped millions ("21,427,700") to billions rounded to
// two decimals (21427.70). The conversion runs on integers: n millions is
// n/10 hundredths of a billion, so only the last digit decides rounding.

// RoundingMode selects how exact half-hundredth values are rounded.
type RoundingMode string

const (
	// RoundHalfEven rounds ties to the even hundredth (banker's rounding).
	RoundHalfEven RoundingMode = "half_even"
	// RoundHalfAway rounds ties away from zero.
	RoundHalfAway RoundingMode = "half_away"
)

// ParseRoundingMode validates a configured rounding mode. Empty selects
// RoundHalfEven.
func ParseRoundingMode(s string) (RoundingMode, error) {
	switch RoundingMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", RoundHalfEven:
		return RoundHalfEven, nil
	case RoundHalfAway:
		return RoundHalfAway, nil
	default:
		return "", fmt.Errorf("unknown rounding mode %q (want %q or %q)", s, RoundHalfEven, RoundHalfAway)
	}
}

var separatorStripper = strings.NewReplacer(",", "", " ", "", "\u00a0", "")

// ParseGDP strips grouping separators from text and parses the remaining
// digits as a non-negative base-10 integer.
func ParseGDP(text string) (uint64, error) {
	digits := separatorStripper.Replace(strings.TrimSpace(text))
	if digits == "" {
		return 0, fmt.Errorf("empty value")
	}
	return strconv.ParseUint(digits, 10, 64)
}

// MillionsToBillions converts millions to billions rounded to 2 decimals.
func MillionsToBillions(millions uint64, mode RoundingMode) float64 {
	hundredths, rem := millions/10, millions%10
	switch {
	case rem > 5:
		hundredths++
	case rem == 5:
		if mode == RoundHalfAway || hundredths%2 == 1 {
			hundredths++
		}
	}
	return float64(hundredths) / 100
}

// RecordTransformer turns a RawTable into a RecordSet.
type RecordTransformer struct {
	Columns []string // output column names: country, gdp in billions
	Mode    RoundingMode
}

// NewRecordTransformer returns a transformer writing the given output columns.
func NewRecordTransformer(columns []string, mode RoundingMode) *RecordTransformer {
	return &RecordTransformer{Columns: columns, Mode: mode}
}

// Transform converts every raw record. The first unparsable GDP value aborts
// the whole transformation with a *FormatError; no partial set is returned.
func (t *RecordTransformer) Transform(raw RawTable) (RecordSet, error) {
	cols := append([]string(nil), t.Columns...)
	if len(cols) == 0 && len(raw.Columns) > 0 {
		cols = []string{raw.Columns[0], "GDP_USD_billions"}
	}

	out := make([]Record, 0, len(raw.Records))
	seen := make(map[string]bool, len(raw.Records))
	for i, rr := range raw.Records {
		n, err := ParseGDP(rr.GDPText)
		if err != nil {
			return RecordSet{}, &FormatError{Row: i, Country: rr.Country, Text: rr.GDPText, Err: err}
		}
		if seen[rr.Country] {
			slog.Warn("duplicate country in source table, keeping both rows", "country", rr.Country, "row", i)
		}
		seen[rr.Country] = true
		out = append(out, Record{Country: rr.Country, GDPBillions: MillionsToBillions(n, t.Mode)})
	}
	return RecordSet{Columns: cols, Records: out}, nil
}
