package dataset

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Inference classifies each non-empty value against an ordered list of
// pattern families and keeps the majority family. The order matters: more
// specific families (uuid, email) are tried before broader ones (number),
// and every value lands in exactly one family.

// InferenceResult is the output of InferColumn.
type InferenceResult struct {
	Type       ColumnType
	Confidence float64
	Stats      map[ColumnType]int
	Patterns   []string
}

var (
	uuidRe  = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)
	emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	phoneRe = regexp.MustCompile(`^\+?[0-9(][0-9 ().\-]{5,}$`)

	// currency accepts a leading or trailing symbol with optional sign and
	// thousands separators: "$1,234.56", "-€12", "12.50 USD".
	currencyRe = regexp.MustCompile(`^-?[$€£¥]\s?-?[0-9][0-9,]*(\.[0-9]+)?$|^-?[0-9][0-9,]*(\.[0-9]+)?\s?(USD|EUR|GBP|CZK|usd|eur|gbp|czk|[$€£¥])$`)

	// grouped numbers like "1,234,567.89"; plain numbers go through
	// strconv.ParseFloat.
	groupedNumberRe = regexp.MustCompile(`^-?[0-9]{1,3}(,[0-9]{3})+(\.[0-9]+)?$`)
)

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"02.01.2006",
	"02/01/2006",
	"01/02/2006",
	"Jan 2, 2006",
	"2 Jan 2006",
}

var dateTimeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05.000Z07:00",
	"02.01.2006 15:04:05",
	"01/02/2006 15:04",
}

// classifyValue assigns a single trimmed, non-empty value to its pattern
// family and reports the matched layout for date-like values (empty
// otherwise).
func classifyValue(v string) (ColumnType, string) {
	if uuidRe.MatchString(v) {
		return TypeUUID, ""
	}
	if emailRe.MatchString(v) {
		return TypeEmail, ""
	}
	if isPhone(v) {
		return TypePhone, ""
	}
	if currencyRe.MatchString(v) {
		return TypeCurrency, ""
	}
	if lay, ok := parseLayout(v, dateTimeLayouts); ok {
		return TypeDateTime, lay
	}
	if lay, ok := parseLayout(v, dateLayouts); ok {
		return TypeDate, lay
	}
	if _, ok := parseBoolLoose(v); ok {
		return TypeBoolean, ""
	}
	if isNumber(v) {
		return TypeNumber, ""
	}
	return TypeString, ""
}

// InferColumn infers a semantic type for a column from its raw values.
//
// Behavior:
//   - Empty / whitespace-only values are ignored.
//   - Each remaining value is classified into exactly one pattern family.
//   - The majority family becomes the inferred type with
//     confidence = matches / nonEmptyCount.
//   - A column with no non-empty values infers TypeUnknown with confidence 0.
//
// This function is pure: same input, same output, no schema knowledge.
func InferColumn(values []string) InferenceResult {
	stats := make(map[ColumnType]int)
	layouts := make(map[string]int)

	nonEmpty := 0
	for _, raw := range values {
		v := strings.TrimSpace(raw)
		if v == "" {
			continue
		}
		nonEmpty++

		family, layout := classifyValue(v)
		stats[family]++
		if layout != "" {
			layouts[layout]++
		}
	}

	if nonEmpty == 0 {
		return InferenceResult{Type: TypeUnknown, Confidence: 0, Stats: stats}
	}

	best := TypeString
	bestN := 0
	for _, t := range []ColumnType{
		TypeUUID, TypeEmail, TypePhone, TypeCurrency,
		TypeDateTime, TypeDate, TypeBoolean, TypeNumber, TypeString,
	} {
		if n := stats[t]; n > bestN {
			best = t
			bestN = n
		}
	}

	return InferenceResult{
		Type:       best,
		Confidence: Clamp(SafeRatio(bestN, nonEmpty), 0, 1),
		Stats:      stats,
		Patterns:   describePatterns(stats, layouts),
	}
}

// describePatterns renders the observed families (and, for date-like columns,
// the dominant layouts) as stable human-readable labels, most frequent first.
func describePatterns(stats map[ColumnType]int, layouts map[string]int) []string {
	type fam struct {
		label string
		n     int
	}

	fams := make([]fam, 0, len(stats)+len(layouts))
	for t, n := range stats {
		if n <= 0 || t == TypeString {
			continue
		}
		fams = append(fams, fam{label: string(t), n: n})
	}
	for lay, n := range layouts {
		fams = append(fams, fam{label: "layout:" + lay, n: n})
	}

	sort.SliceStable(fams, func(i, j int) bool {
		if fams[i].n == fams[j].n {
			return fams[i].label < fams[j].label
		}
		return fams[i].n > fams[j].n
	})

	const maxPatterns = 4
	out := make([]string, 0, maxPatterns)
	for _, f := range fams {
		out = append(out, f.label)
		if len(out) >= maxPatterns {
			break
		}
	}
	return out
}

func parseLayout(v string, layouts []string) (string, bool) {
	for _, lay := range layouts {
		if _, err := time.Parse(lay, v); err == nil {
			return lay, true
		}
	}
	return "", false
}

func isNumber(v string) bool {
	if groupedNumberRe.MatchString(v) {
		return true
	}
	_, err := strconv.ParseFloat(v, 64)
	return err == nil
}

// isPhone requires the loose phone shape, at least 7 digits, and at least
// one separator or plus sign. Bare digit runs stay numbers, so numeric IDs
// are not misread as phone numbers.
func isPhone(v string) bool {
	if !phoneRe.MatchString(v) {
		return false
	}
	digits, seps, dots := 0, 0, 0
	for _, r := range v {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '.':
			dots++
		case r == '+' || r == '-' || r == ' ' || r == '(' || r == ')':
			seps++
		}
	}
	// A single dot is a decimal point ("1234.5678"), not phone punctuation;
	// dotted phone formats use at least two ("555.123.4567").
	if dots >= 2 {
		seps += dots
	}
	return digits >= 7 && digits <= 15 && seps > 0
}

func parseBoolLoose(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "t", "true", "yes", "y":
		return true, true
	case "0", "f", "false", "no", "n":
		return false, true
	default:
		return false, false
	}
}
