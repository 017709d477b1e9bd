// Package ippattr converts IPP attribute values between their wire-tagged
// goipp representation and dynamic Go values, and regroups flat attribute
// streams into per-object records.
package ippattr

import (
	"fmt"
	"strings"
	"time"

	goipp "github.com/OpenPrinting/goipp"
)

// Value is the sealed set of decoded attribute values. Consumers switch over
// the concrete types: Integer, Boolean, Text, LangText, Range, Resolution,
// Date, NoValue, Unknown and List.
type Value interface {
	fmt.Stringer
	// Interface returns the plain Go value (int, bool, string, [2]int,
	// [3]int, time.Time, nil or []any).
	Interface() any
	isValue()
}

type Integer int

type Boolean bool

type Text string

// LangText is textWithLanguage or nameWithLanguage. It reads as its text.
type LangText struct {
	Text string
	Lang string
}

type Range struct {
	Lower int
	Upper int
}

type Units int

const (
	UnitsDPI  Units = Units(goipp.UnitsDpi)
	UnitsDPCM Units = Units(goipp.UnitsDpcm)
)

type Resolution struct {
	X     int
	Y     int
	Units Units
}

type Date struct {
	time.Time
}

// NoValue is the explicit absent-value marker produced for out-of-band tags.
type NoValue struct {
	Tag goipp.Tag
}

// Unknown stands in for values whose tag this package does not model.
type Unknown struct {
	Tag         goipp.Tag
	Placeholder string
}

type List []Value

func (Integer) isValue()    {}
func (Boolean) isValue()    {}
func (Text) isValue()       {}
func (LangText) isValue()   {}
func (Range) isValue()      {}
func (Resolution) isValue() {}
func (Date) isValue()       {}
func (NoValue) isValue()    {}
func (Unknown) isValue()    {}
func (List) isValue()       {}

func (v Integer) Interface() any  { return int(v) }
func (v Boolean) Interface() any  { return bool(v) }
func (v Text) Interface() any     { return string(v) }
func (v LangText) Interface() any { return v.Text }
func (v Range) Interface() any    { return [2]int{v.Lower, v.Upper} }
func (v Resolution) Interface() any {
	return [3]int{v.X, v.Y, int(v.Units)}
}
func (v Date) Interface() any    { return v.Time }
func (v NoValue) Interface() any { return nil }
func (v Unknown) Interface() any { return v.Placeholder }
func (v List) Interface() any {
	out := make([]any, len(v))
	for i, item := range v {
		out[i] = item.Interface()
	}
	return out
}

func (v Integer) String() string  { return fmt.Sprintf("%d", int(v)) }
func (v Boolean) String() string  { return fmt.Sprintf("%t", bool(v)) }
func (v Text) String() string     { return string(v) }
func (v LangText) String() string { return v.Text }
func (v Range) String() string    { return fmt.Sprintf("%d-%d", v.Lower, v.Upper) }
func (v Resolution) String() string {
	unit := "dpi"
	if v.Units == UnitsDPCM {
		unit = "dpcm"
	}
	if v.X == v.Y {
		return fmt.Sprintf("%d%s", v.X, unit)
	}
	return fmt.Sprintf("%dx%d%s", v.X, v.Y, unit)
}
func (v Date) String() string    { return v.Time.Format(time.RFC3339) }
func (v NoValue) String() string { return "" }
func (v Unknown) String() string { return v.Placeholder }
func (v List) String() string {
	parts := make([]string, len(v))
	for i, item := range v {
		parts[i] = item.String()
	}
	return strings.Join(parts, ",")
}

// Equal compares two values structurally. Dates compare by instant.
func Equal(a, b Value) bool {
	switch av := a.(type) {
	case Date:
		bv, ok := b.(Date)
		return ok && av.Time.Equal(bv.Time)
	case List:
		bv, ok := b.(List)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case nil:
		return b == nil
	default:
		return a == b
	}
}

// Strings flattens a scalar or list value into its string forms.
func Strings(v Value) []string {
	switch tv := v.(type) {
	case nil, NoValue:
		return nil
	case List:
		out := make([]string, 0, len(tv))
		for _, item := range tv {
			out = append(out, item.String())
		}
		return out
	default:
		return []string{v.String()}
	}
}
