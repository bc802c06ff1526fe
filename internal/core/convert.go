package core

// convert.go provides the coercion functions used by the normalizer and the store.
//
// These functions handle the messy reality of exported banking data:
//   - Multiple date and timestamp formats (US, ISO, RFC 3339, spelled months)
//   - Currency symbols, thousands separators and accounting negatives in numbers
//   - Null tokens written by spreadsheet tools and dataframe exports
//   - Excel formula prefixes (="value") in header cells
//
// All ToPg* functions return pgtype values with Valid=false for empty/invalid input,
// allowing the database to handle NULLs appropriately.

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/jackc/pgx/v5/pgtype"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// numericRegex validates that a string is a valid numeric format after cleanup.
// Matches integers, decimals, and scientific notation.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// TwoDigitYearPivot defines how 2-digit years are interpreted.
// Years that would result in dates more than this many years in the future
// are assumed to be in the previous century.
var TwoDigitYearPivot = 20

const (
	DateLayout      = "2006-01-02"
	TimestampLayout = "2006-01-02 15:04:05"
)

// Layouts split by year format for proper 2-digit year handling.
// Timestamp layouts are tried first so a time of day is never mistaken for garbage.
var (
	timestampLayouts = []string{
		"2006-01-02 15:04:05", "2006-01-02T15:04:05", time.RFC3339,
		"2006-01-02 15:04:05Z07:00", "2006-01-02 15:04", "2006-01-02T15:04",
		"2006/01/02 15:04:05", "1/2/2006 15:04:05", "01/02/2006 15:04:05",
		"1/2/2006 15:04", "01/02/2006 15:04", "1-2-2006 15:04", "01-02-2006 15:04:05",
	}
	twoDigitYearLayouts = []string{
		"1/2/06", "01/02/06", "1-2-06", "01-02-06", "1.2.06", "01.02.06",
	}
	fourDigitYearLayouts = []string{
		"2006-01-02", "2006/01/02", "2006.01.02",
		"1/2/2006", "01/02/2006", "1-2-2006", "01-02-2006", "1.2.2006", "01.02.2006",
		"Jan 2, 2006", "January 2, 2006", "2 Jan 2006", "02-Jan-2006", "2-Jan-2006",
		"20060102",
	}
)

// nullTokens are the cell spellings treated as missing values.
var nullTokens = map[string]bool{
	"":     true,
	"na":   true,
	"n/a":  true,
	"nan":  true,
	"-nan": true,
	"null": true,
	"none": true,
	"#n/a": true,
	"<na>": true,
	"nat":  true,
}

// IsNullToken reports whether a raw cell spells a missing value.
func IsNullToken(s string) bool {
	return nullTokens[strings.ToLower(strings.TrimSpace(s))]
}

// ToPgText converts a string to pgtype.Text.
// Returns invalid if the string is empty or only whitespace.
func ToPgText(s string) pgtype.Text {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: s, Valid: true}
}

// cleanNumeric strips currency symbols, thousands separators and accounting
// parentheses. Returns false when the result is not a plain number.
func cleanNumeric(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}

	// Detect negative accounting format "(123.45)"
	isNegative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		isNegative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, "€", "") // Euro
	s = strings.ReplaceAll(s, "£", "") // Pound
	s = strings.ReplaceAll(s, "₹", "") // Rupee
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	if isNegative {
		s = "-" + s
	}

	if !numericRegex.MatchString(s) {
		return "", false
	}
	return s, true
}

// ParseNumeric converts a string to pgtype.Float8.
// Handles currency symbols, thousands separators, and accounting format (parentheses for negative).
func ParseNumeric(s string) pgtype.Float8 {
	cleaned, ok := cleanNumeric(s)
	if !ok {
		return pgtype.Float8{Valid: false}
	}
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return pgtype.Float8{Valid: false}
	}
	return pgtype.Float8{Float64: f, Valid: true}
}

// ToPgNumeric converts a string to pgtype.Numeric with the same tolerance as ParseNumeric.
func ToPgNumeric(s string) pgtype.Numeric {
	cleaned, ok := cleanNumeric(s)
	if !ok {
		return pgtype.Numeric{Valid: false}
	}

	var n pgtype.Numeric
	if err := n.Scan(cleaned); err != nil {
		return pgtype.Numeric{Valid: false}
	}
	return n
}

// ToPgInt4 converts a string to pgtype.Int4, rounding fractional values.
func ToPgInt4(s string) pgtype.Int4 {
	return Float8ToInt4(ParseNumeric(s))
}

// Float8ToInt4 rounds a float to the nearest integer.
// Returns invalid for nulls and values outside the int32 range.
func Float8ToInt4(f pgtype.Float8) pgtype.Int4 {
	if !f.Valid {
		return pgtype.Int4{Valid: false}
	}
	r := math.Round(f.Float64)
	if r > math.MaxInt32 || r < math.MinInt32 {
		return pgtype.Int4{Valid: false}
	}
	return pgtype.Int4{Int32: int32(r), Valid: true}
}

// ParseTime parses a date or timestamp in any supported layout.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	// Try 4-digit year layouts first (unambiguous)
	for _, layout := range fourDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	// Try 2-digit year layouts with pivot year adjustment
	pivotYear := time.Now().Year() + TwoDigitYearPivot
	for _, layout := range twoDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if t.Year() > pivotYear {
				t = t.AddDate(-100, 0, 0)
			}
			return t, true
		}
	}

	return time.Time{}, false
}

// NormalizeDate rewrites a parseable date as YYYY-MM-DD.
func NormalizeDate(s string) pgtype.Text {
	t, ok := ParseTime(s)
	if !ok {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: t.Format(DateLayout), Valid: true}
}

// NormalizeTimestamp rewrites a parseable timestamp as YYYY-MM-DD HH:MM:SS.
func NormalizeTimestamp(s string) pgtype.Text {
	t, ok := ParseTime(s)
	if !ok {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: t.Format(TimestampLayout), Valid: true}
}

// DaysBetween returns whole days from start to end, floored.
// Both values must already be normalized dates.
func DaysBetween(start, end string) (int, bool) {
	s, err := time.Parse(DateLayout, start)
	if err != nil {
		return 0, false
	}
	e, err := time.Parse(DateLayout, end)
	if err != nil {
		return 0, false
	}
	return int(math.Floor(e.Sub(s).Hours() / 24)), true
}

// TitleCase upper-cases the first letter of each word and lower-cases the rest.
// Words break on Unicode word boundaries, so an apostrophe inside a word does
// not start a new one: "o'neil" becomes "O'neil".
func TitleCase(s string) string {
	return cases.Title(language.Und).String(s)
}

// MaskCardNumber keeps the last four digits of a card number.
// Fewer than four digits yields "****".
func MaskCardNumber(s string) string {
	digits := make([]rune, 0, len(s))
	for _, r := range s {
		if unicode.IsDigit(r) {
			digits = append(digits, r)
		}
	}
	if len(digits) < 4 {
		return "****"
	}
	return "**** **** **** " + string(digits[len(digits)-4:])
}

// CanonicalName converts a raw header to a canonical field name:
// trimmed, lowercased, spaces replaced with underscores.
func CanonicalName(s string) string {
	return strings.ReplaceAll(strings.ToLower(CleanCell(s)), " ", "_")
}

// CleanCell removes common artifacts from a header cell:
// - Trims whitespace
// - Removes Excel formula prefix (="...")
// - Removes surrounding quotes
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	s = strings.Trim(s, `"'`)
	return strings.TrimSpace(s)
}

// FormatFloat renders a number for CSV output: two decimals for money,
// shortest representation otherwise. Nulls render empty.
func FormatFloat(f pgtype.Float8, money bool) string {
	if !f.Valid {
		return ""
	}
	if money {
		return strconv.FormatFloat(f.Float64, 'f', 2, 64)
	}
	return strconv.FormatFloat(f.Float64, 'f', -1, 64)
}

// FormatInt renders an integer for CSV output. Nulls render empty.
func FormatInt(i pgtype.Int4) string {
	if !i.Valid {
		return ""
	}
	return strconv.FormatInt(int64(i.Int32), 10)
}
