package ippattr

import (
	"fmt"
	"math"
	"reflect"
	"time"

	goipp "github.com/OpenPrinting/goipp"

	"cupsbridge/internal/ipperr"
)

// FromHost converts a dynamic Go value into a Value legal for tag.
// Integer-family tags accept only integral Go types; floats are rejected even
// when whole. Values that already implement Value are validated as-is.
func FromHost(tag goipp.Tag, x any) (Value, error) {
	if v, ok := x.(Value); ok {
		if _, err := Encode(tag, v); err != nil {
			return nil, err
		}
		return v, nil
	}
	if IsOutOfBandTag(tag) {
		if x == nil {
			return NoValue{Tag: tag}, nil
		}
		return nil, hostMismatch(tag, x, "no value")
	}
	if IsTextTag(tag) {
		switch s := x.(type) {
		case string:
			return Text(s), nil
		case []byte:
			return Text(s), nil
		case fmt.Stringer:
			return Text(s.String()), nil
		}
		return nil, hostMismatch(tag, x, "text")
	}
	switch tag {
	case goipp.TagInteger, goipp.TagEnum:
		n, ok := integral(x)
		if !ok {
			return nil, hostMismatch(tag, x, "integer")
		}
		return Integer(n), nil
	case goipp.TagBoolean:
		b, ok := x.(bool)
		if !ok {
			return nil, hostMismatch(tag, x, "boolean")
		}
		return Boolean(b), nil
	case goipp.TagRange:
		if pair, ok := x.([2]int); ok {
			return Range{Lower: pair[0], Upper: pair[1]}, nil
		}
		n, ok := integral(x)
		if !ok {
			return nil, hostMismatch(tag, x, "integer")
		}
		return Range{Lower: n, Upper: n}, nil
	case goipp.TagResolution:
		if triple, ok := x.([3]int); ok {
			return Resolution{X: triple[0], Y: triple[1], Units: Units(triple[2])}, nil
		}
		return nil, hostMismatch(tag, x, "resolution")
	case goipp.TagDateTime:
		if t, ok := x.(time.Time); ok {
			return Date{Time: t}, nil
		}
		return nil, hostMismatch(tag, x, "date")
	}
	return nil, ipperr.Invalid("convert", tag.String(), "unsupported value tag 0x%02x", int(tag))
}

// FromHostList converts every element of a host list. The list must be
// homogeneous in Go type.
func FromHostList(tag goipp.Tag, xs []any) ([]Value, error) {
	if err := CheckHomogeneous(tag.String(), xs); err != nil {
		return nil, err
	}
	out := make([]Value, 0, len(xs))
	for _, x := range xs {
		v, err := FromHost(tag, x)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// CheckHomogeneous fails when xs mixes Go types.
func CheckHomogeneous(param string, xs []any) error {
	if len(xs) < 2 {
		return nil
	}
	first := reflect.TypeOf(xs[0])
	for i, x := range xs[1:] {
		if t := reflect.TypeOf(x); t != first {
			return ipperr.Invalid("", param, "list must be homogeneous: element %d is %v, element 0 is %v", i+1, t, first)
		}
	}
	return nil
}

func integral(x any) (int, bool) {
	switch n := x.(type) {
	case int:
		return n, true
	case int8:
		return int(n), true
	case int16:
		return int(n), true
	case int32:
		return int(n), true
	case int64:
		if n < math.MinInt32 || n > math.MaxInt32 {
			return 0, false
		}
		return int(n), true
	case uint8:
		return int(n), true
	case uint16:
		return int(n), true
	case uint32:
		if n > math.MaxInt32 {
			return 0, false
		}
		return int(n), true
	case uint:
		if n > math.MaxInt32 {
			return 0, false
		}
		return int(n), true
	case uint64:
		if n > math.MaxInt32 {
			return 0, false
		}
		return int(n), true
	default:
		return 0, false
	}
}

func hostMismatch(tag goipp.Tag, x any, want string) error {
	return ipperr.Invalid("convert", tag.String(), "%s value required, got %T", want, x)
}
