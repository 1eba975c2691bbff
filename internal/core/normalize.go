package core

// normalize.go holds the pure field normalizers. Every function is total
// over its input: it returns a typed value plus an ok flag (or a canonical
// fallback) and never guesses. A row whose required field does not match a
// supported pattern is skipped by the classifier, not repaired.

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Canonical formatting of normalized instants, re-parseable by ParseDateTime.
const (
	DateTimeLayout = "2006-01-02 15:04:05"
	DateLayout     = "2006-01-02"
)

var (
	dottedDateRe = regexp.MustCompile(`^(\d{2})\.(\d{2})\.(\d{4})$`)
	clockRe      = regexp.MustCompile(`^(\d{2}):(\d{2})(?::(\d{2}))?$`)

	// Space-stripped before parsing, so "1 234,56" survives.
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// slashDateLayouts cover the locale-alternate M/D/YY and M/D/YYYY forms.
var slashDateLayouts = []string{
	"1/2/2006", "1/2/2006 15:04:05", "1/2/2006 15:04",
	"1/2/06", "1/2/06 15:04:05", "1/2/06 15:04",
}

// TwoDigitYearPivot defines how 2-digit years are interpreted. Years that
// would land more than this many years in the future are shifted back a
// century.
var TwoDigitYearPivot = 20

// serialEpoch is the spreadsheet date-serial epoch (day 1 = 1900-01-01,
// with the historical off-by-two for the phantom 1900 leap day).
var serialEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// ParseDateTime normalizes a date field (optionally split from a separate
// time field) into a single UTC instant. Accepted forms, in priority order:
//
//  1. combined "DD.MM.YYYY HH:MM[:SS]"
//  2. separate "DD.MM.YYYY" date plus "HH:MM[:SS]" time
//  3. a numeric spreadsheet date serial, fractional part as time of day
//  4. locale-alternate "M/D/YY" or "M/D/YYYY", optional time suffix
//  5. the canonical "YYYY-MM-DD[ HH:MM:SS]" form (round-trip stability)
//
// Time defaults to 00:00:00 when absent; "HH:MM" widens to "HH:MM:00".
// Anything else reports ok=false.
func ParseDateTime(dateRaw, timeRaw string) (time.Time, bool) {
	dateRaw = strings.TrimSpace(dateRaw)
	timeRaw = strings.TrimSpace(timeRaw)

	if dateRaw == "" {
		return time.Time{}, false
	}

	// Combined "DD.MM.YYYY HH:MM[:SS]" in one field.
	if d, t, found := strings.Cut(dateRaw, " "); found && timeRaw == "" {
		if m := dottedDateRe.FindStringSubmatch(d); m != nil {
			if clock, ok := parseClock(t); ok {
				return dottedToTime(m, clock), true
			}
			return time.Time{}, false
		}
	}

	// Separate dotted date, optional separate time.
	if m := dottedDateRe.FindStringSubmatch(dateRaw); m != nil {
		clock := clockParts{}
		if timeRaw != "" {
			var ok bool
			clock, ok = parseClock(timeRaw)
			if !ok {
				return time.Time{}, false
			}
		}
		return dottedToTime(m, clock), true
	}

	// Spreadsheet serial: days since the 1900 epoch, optionally fractional.
	if serial, err := strconv.ParseFloat(dateRaw, 64); err == nil {
		return serialToTime(serial)
	}

	// Canonical ISO-style forms, so formatted output re-parses stably.
	for _, layout := range []string{DateTimeLayout, DateLayout, time.RFC3339} {
		if t, err := time.Parse(layout, dateRaw); err == nil {
			return t.UTC(), true
		}
	}

	// Locale-alternate slash forms with 2-digit year pivot.
	for _, layout := range slashDateLayouts {
		t, err := time.Parse(layout, dateRaw)
		if err != nil {
			continue
		}
		if t.Year() > time.Now().Year()+TwoDigitYearPivot {
			t = t.AddDate(-100, 0, 0)
		}
		if timeRaw != "" {
			clock, ok := parseClock(timeRaw)
			if !ok {
				return time.Time{}, false
			}
			t = t.Add(time.Duration(clock.h)*time.Hour +
				time.Duration(clock.m)*time.Minute +
				time.Duration(clock.s)*time.Second)
		}
		return t, true
	}

	return time.Time{}, false
}

type clockParts struct{ h, m, s int }

// parseClock accepts HH:MM and HH:MM:SS, widening the former to :00.
func parseClock(raw string) (clockParts, bool) {
	m := clockRe.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return clockParts{}, false
	}
	h, _ := strconv.Atoi(m[1])
	min, _ := strconv.Atoi(m[2])
	sec := 0
	if m[3] != "" {
		sec, _ = strconv.Atoi(m[3])
	}
	if h > 23 || min > 59 || sec > 59 {
		return clockParts{}, false
	}
	return clockParts{h, min, sec}, true
}

func dottedToTime(m []string, clock clockParts) time.Time {
	dd, _ := strconv.Atoi(m[1])
	mm, _ := strconv.Atoi(m[2])
	yyyy, _ := strconv.Atoi(m[3])
	return time.Date(yyyy, time.Month(mm), dd, clock.h, clock.m, clock.s, 0, time.UTC)
}

// serialToTime converts a spreadsheet date serial. Serials below 1 or
// absurdly far in the future are rejected rather than guessed.
func serialToTime(serial float64) (time.Time, bool) {
	if serial < 1 || serial >= 200000 {
		return time.Time{}, false
	}
	days := int(serial)
	frac := serial - float64(days)
	secs := int(frac*86400 + 0.5)
	t := serialEpoch.AddDate(0, 0, days).Add(time.Duration(secs) * time.Second)
	return t, true
}

// ParseAmount normalizes a numeric or textual amount. Textual input has
// interior whitespace stripped and a decimal comma converted to a point.
// Non-numeric residue reports ok=false.
func ParseAmount(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case nil:
		return decimal.Decimal{}, false
	case float64:
		return decimal.NewFromFloat(n), true
	case int:
		return decimal.NewFromInt(int64(n)), true
	case int64:
		return decimal.NewFromInt(n), true
	}

	s := toText(v)
	if s == "" {
		return decimal.Decimal{}, false
	}
	s = whitespaceRe.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, ",", ".")

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

// toText renders a scalar as its source text.
func toText(v any) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case interface{ String() string }:
		return strings.TrimSpace(s.String())
	default:
		return ""
	}
}

// currencyAliases maps localized substrings to ISO-style codes.
var currencyAliases = []struct {
	substr string
	code   string
}{
	{"UAH", "UAH"}, {"ГРН", "UAH"},
	{"USD", "USD"}, {"ДОЛ", "USD"},
	{"EUR", "EUR"}, {"ЄВРО", "EUR"},
	{"PLN", "PLN"}, {"ЗЛОТ", "PLN"},
}

// LocalCurrency is the fund's accounting currency.
const LocalCurrency = "UAH"

// NormalizeCurrency maps a free-text currency label to a 3-letter code.
// Unrecognized text passes through uppercased as a best-effort code; an
// empty label defaults to the local currency.
func NormalizeCurrency(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" {
		return LocalCurrency
	}
	for _, alias := range currencyAliases {
		if strings.Contains(s, alias.substr) {
			return alias.code
		}
	}
	return s
}

// internalTransferPrefix marks statement rows that are transfers between
// the fund's own accounts, not external donations.
const internalTransferPrefix = "перерахування"

// IsInternalTransfer reports whether a purpose text matches the internal
// transfer exclusion pattern.
func IsInternalTransfer(purpose string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(purpose)), internalTransferPrefix)
}

// Round2 rounds a monetary value to two decimal places.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
