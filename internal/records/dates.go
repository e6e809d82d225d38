package records

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel date strings the source uses for "unknown".
const (
	SentinelUnknownStart = "1000-01-01"
	SentinelUnknownEnd   = "9999-12-31"
)

// ErrDateParse is matched by every *DateParseError.
var ErrDateParse = errors.New("invalid date value")

var dateLayouts = []string{
	DateLayout,
	time.RFC3339,
	"2006-01-02 15:04:05",
}

// DateParseError reports a non-sentinel value that is not a date.
type DateParseError struct {
	Column string
	Key    string
	Value  string
}

func (e *DateParseError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("invalid date value %q", e.Value)
	}

	return fmt.Sprintf("invalid date value %q in column %s at %s", e.Value, e.Column, e.Key)
}

// Is makes errors.Is(err, ErrDateParse) hold.
func (e *DateParseError) Is(target error) bool {
	return target == ErrDateParse
}

// IsSentinelDate reports whether s is one of the source's "unknown" dates.
func IsSentinelDate(s string) bool {
	return s == SentinelUnknownStart || s == SentinelUnknownEnd
}

// ParseDate converts one cell. Null and sentinel dates become null; strings are
// parsed as UTC dates; timestamps pass through.
func ParseDate(v Value) (Value, error) {
	switch v.Kind() {
	case KindNull, KindTime:
		return v, nil
	}

	s, _ := v.Str()
	if IsSentinelDate(s) {
		return Null, nil
	}

	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return Time(t), nil
		}
	}

	return Null, &DateParseError{Value: s}
}

// NormalizeDates rewrites a column in place as nullable timestamps. A missing
// column is added as all-null.
func NormalizeDates(t *Table, column string) error {
	vals, ok := t.Column(column)
	if !ok {
		return t.SetColumn(column, make([]Value, t.Len()))
	}

	keys := t.keys

	for i, v := range vals {
		parsed, err := ParseDate(v)
		if err != nil {
			var dpe *DateParseError
			if errors.As(err, &dpe) {
				dpe.Column = column
				dpe.Key = keys[i]
			}

			return err
		}

		vals[i] = parsed
	}

	return t.SetColumn(column, vals)
}
