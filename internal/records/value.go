// Package records provides the in-memory record sets produced from the members
// documents, along with the date normalization and merge primitives applied to them.
package records

import "time"

// DateLayout is the layout used when a timestamp is rendered as text.
const DateLayout = "2006-01-02"

// Kind identifies what a Value holds.
type Kind int

// Value kinds.
const (
	KindNull Kind = iota
	KindString
	KindTime
)

// Value is a single cell: null, a string, or a timestamp.
type Value struct {
	t    time.Time
	s    string
	kind Kind
}

// Null is the null value.
var Null = Value{}

// String returns a string value.
func String(s string) Value {
	return Value{kind: KindString, s: s}
}

// Time returns a timestamp value.
func Time(t time.Time) Value {
	return Value{kind: KindTime, t: t}
}

// Kind reports what the value holds.
func (v Value) Kind() Kind {
	return v.kind
}

// IsNull reports whether the value is null.
func (v Value) IsNull() bool {
	return v.kind == KindNull
}

// Str returns the string held by v and whether v is a string.
func (v Value) Str() (string, bool) {
	return v.s, v.kind == KindString
}

// Timestamp returns the time held by v and whether v is a timestamp.
func (v Value) Timestamp() (time.Time, bool) {
	return v.t, v.kind == KindTime
}

// Text renders the value for display or storage. Null renders as "".
func (v Value) Text() string {
	switch v.kind {
	case KindString:
		return v.s
	case KindTime:
		return v.t.Format(DateLayout)
	default:
		return ""
	}
}

// Equal reports whether two values hold the same kind and content.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}

	switch v.kind {
	case KindString:
		return v.s == o.s
	case KindTime:
		return v.t.Equal(o.t)
	default:
		return true
	}
}

// String implements fmt.Stringer.
func (v Value) String() string {
	if v.kind == KindNull {
		return "<null>"
	}

	return v.Text()
}
