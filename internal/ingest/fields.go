package ingest

// fields.go turns raw cell text into typed values.
//
// These functions handle the messy reality of user-provided files:
//   - Multiple date formats (US, EU, ISO, etc.)
//   - Currency symbols and thousand separators in numbers
//   - Excel formula prefixes (="value")
//
// All To* functions return pgtype values with Valid=false for empty or
// invalid input.

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/catalog/internal/catalog"
	"github.com/jackc/pgx/v5/pgtype"
)

var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// TwoDigitYearPivot defines how 2-digit years are interpreted. Years that
// would land more than this many years in the future go to the previous
// century.
var TwoDigitYearPivot = 20

var (
	twoDigitYearLayouts = []string{
		"1/2/06", "01/02/06", "1-2-06", "1.2.06", "01.02.06",
	}
	fourDigitYearLayouts = []string{
		"2006-01-02", "2006/01/02", "2006.01.02",
		"1/2/2006", "01/02/2006", "1-2-2006", "01-02-2006", "1.2.2006", "01.02.2006",
		"Jan 2, 2006", "2 Jan 2006",
		"20060102",
		time.RFC3339,
		"2006-01-02 15:04:05",
	}
)

// ToDate parses s into a date, trying unambiguous layouts first.
func ToDate(s string) pgtype.Date {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Date{}
	}

	for _, layout := range fourDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			y, m, d := t.Date()
			return pgtype.Date{Time: time.Date(y, m, d, 0, 0, 0, 0, time.UTC), Valid: true}
		}
	}

	pivotYear := time.Now().Year() + TwoDigitYearPivot
	for _, layout := range twoDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if t.Year() > pivotYear {
				t = t.AddDate(-100, 0, 0)
			}
			return pgtype.Date{Time: t, Valid: true}
		}
	}

	return pgtype.Date{}
}

// ToNumeric parses s into a decimal. Handles currency symbols, thousands
// separators, and accounting format (parentheses for negative).
func ToNumeric(s string) pgtype.Numeric {
	s = cleanNumber(s)
	if s == "" || !numericRegex.MatchString(s) {
		return pgtype.Numeric{}
	}

	var n pgtype.Numeric
	if err := n.Scan(s); err != nil {
		return pgtype.Numeric{}
	}
	return n
}

// ToInt parses a whole number, tolerating thousands separators.
func ToInt(s string) (int64, bool) {
	s = cleanNumber(s)
	if s == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		// Spreadsheets often hand back "12.0" for integer cells.
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil || f != float64(int64(f)) {
			return 0, false
		}
		n = int64(f)
	}
	return n, true
}

func cleanNumber(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	isNegative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		isNegative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, "\u20ac", "") // Euro
	s = strings.ReplaceAll(s, "\u00a3", "") // Pound
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	if isNegative {
		s = "-" + s
	}
	return s
}

// CleanCell trims a CSV or spreadsheet cell and unwraps the ="..." text
// form spreadsheets export to keep leading zeros. Other quotes and a bare
// leading = are part of the value.
func CleanCell(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 3 && strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = strings.TrimSpace(s[2 : len(s)-1])
	}
	return s
}

// FieldType is the expected data type of a column.
type FieldType int

const (
	FieldText FieldType = iota
	FieldEnum
	FieldDate
	FieldNumeric
	FieldInt
)

// FieldSpec defines the parsing rules for one column. Columns appear in
// files in FieldSpec order; JSON objects use Name as the key.
type FieldSpec struct {
	Name       string
	Type       FieldType
	Required   bool
	EnumValues []string
	// Default is applied, with a warning, when an optional value is absent.
	Default    string
	Normalizer func(string) string
}

// Values holds one row's cleaned, checked cell text keyed by column name.
// Typed getters never fail because readFields already checked each value.
type Values map[string]string

func (v Values) Text(name string) string { return v[name] }

func (v Values) Date(name string) pgtype.Date { return ToDate(v[name]) }

func (v Values) Numeric(name string) pgtype.Numeric { return ToNumeric(v[name]) }

func (v Values) Int(name string) int64 {
	n, _ := ToInt(v[name])
	return n
}

// Parse failures. Errors wrap these so their table entry does not depend
// on the quoted value.
var (
	errMissingField  = errors.New("missing required field(s)")
	errInvalidEnum   = errors.New("invalid enum")
	errInvalidDate   = errors.New("invalid date")
	errInvalidNumber = errors.New("invalid number")
)

// FieldError is a row-scoped parse failure.
type FieldError struct {
	Row   int
	Field string
	Value string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("Row %d: %v", e.Row, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

// readFields extracts specs from row. Missing required fields fail the row
// before any value is converted. Defaults produce warnings.
func readFields(row Row, specs []FieldSpec) (Values, []Diagnostic, error) {
	if br, ok := row.(badRow); ok {
		return nil, nil, &FieldError{Row: br.num, Err: br.err}
	}

	raw := make([]string, len(specs))
	present := make([]bool, len(specs))
	var missing []string
	for i, spec := range specs {
		raw[i], present[i] = lookup(row, i, spec.Name)
		if !present[i] && spec.Required {
			missing = append(missing, spec.Name)
		}
	}
	if len(missing) > 0 {
		return nil, nil, &FieldError{
			Row:   row.Number(),
			Field: strings.Join(missing, ", "),
			Err:   fmt.Errorf("%w: %s", errMissingField, strings.Join(missing, ", ")),
		}
	}

	vals := make(Values, len(specs))
	var warnings []Diagnostic
	for i, spec := range specs {
		if !present[i] {
			if spec.Default != "" {
				vals[spec.Name] = spec.Default
				d := newDiagnostic(ClassValidation, row.Number(), reasonDefaulted,
					fmt.Sprintf("Row %d: %s not set, defaulted to %s", row.Number(), spec.Name, spec.Default))
				d.Field = spec.Name
				d.Value = spec.Default
				warnings = append(warnings, d)
			}
			continue
		}

		v, err := checkValue(spec, raw[i])
		if err != nil {
			return nil, nil, &FieldError{Row: row.Number(), Field: spec.Name, Value: raw[i], Err: err}
		}
		vals[spec.Name] = v
	}
	return vals, warnings, nil
}

func checkValue(spec FieldSpec, raw string) (string, error) {
	v := raw
	if spec.Normalizer != nil {
		v = spec.Normalizer(v)
	}

	switch spec.Type {
	case FieldEnum:
		v = catalog.NormalizeEnum(v)
		for _, allowed := range spec.EnumValues {
			if v == allowed {
				return v, nil
			}
		}
		return "", fmt.Errorf("%w for %q: %q (allowed: %s)", errInvalidEnum, spec.Name, raw, strings.Join(spec.EnumValues, ", "))
	case FieldDate:
		if !ToDate(v).Valid {
			return "", fmt.Errorf("%w for %q: %q", errInvalidDate, spec.Name, raw)
		}
	case FieldNumeric:
		if !ToNumeric(v).Valid {
			return "", fmt.Errorf("%w for %q: %q", errInvalidNumber, spec.Name, raw)
		}
	case FieldInt:
		if _, ok := ToInt(v); !ok {
			return "", fmt.Errorf("%w for %q: %q (expected a whole number)", errInvalidNumber, spec.Name, raw)
		}
	}
	return v, nil
}

// fieldErrorDiagnostic converts a readFields error into a diagnostic.
func fieldErrorDiagnostic(row Row, err error) Diagnostic {
	var fe *FieldError
	if !errors.As(err, &fe) {
		d := newErrorDiagnostic(ClassParse, row.Number(), err, fmt.Sprintf("Row %d: %v", row.Number(), err))
		d.raw = []string{row.Raw()}
		return d
	}
	reason, ok := sentinelReason(fe.Err)
	if !ok {
		reason = reasonInvalidValue
	}
	d := newDiagnostic(ClassParse, fe.Row, reason, fe.Error())
	d.Field = fe.Field
	d.Value = fe.Value
	d.raw = []string{row.Raw()}
	return d
}
