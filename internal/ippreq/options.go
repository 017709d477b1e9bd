package ippreq

import (
	"math"
	"sort"
	"strconv"
	"strings"

	goipp "github.com/OpenPrinting/goipp"

	"cupsbridge/internal/ippattr"
	"cupsbridge/internal/ipperr"
)

type optionKind int

const (
	optKeyword optionKind = iota
	optInteger
	optEnum
	optBoolean
	optRange
	optResolution
	optName
	optText
	optMime
	optURI
)

var optionKinds = map[string]optionKind{
	"copies":                       optInteger,
	"job-priority":                 optInteger,
	"number-up":                    optInteger,
	"job-cancel-after":             optInteger,
	"number-of-retries":            optInteger,
	"retry-interval":               optInteger,
	"retry-time-out":               optInteger,
	"job-k-limit":                  optInteger,
	"job-page-limit":               optInteger,
	"job-quota-period":             optInteger,
	"port-monitor-timeout":         optInteger,
	"print-quality":                optEnum,
	"finishings":                   optEnum,
	"orientation-requested":        optEnum,
	"page-ranges":                  optRange,
	"printer-resolution":           optResolution,
	"collate":                      optBoolean,
	"fit-to-page":                  optBoolean,
	"printer-is-shared":            optBoolean,
	"printer-is-accepting-jobs":    optBoolean,
	"job-sheets":                   optName,
	"job-name":                     optName,
	"requesting-user-name-allowed": optName,
	"requesting-user-name-denied":  optName,
	"printer-info":                 optText,
	"printer-location":             optText,
	"document-format":              optMime,
	"device-uri":                   optURI,
	"printer-more-info":            optURI,
}

// Options encodes free-form name=value options into group, typing each
// value by the option name. Comma-separated values become multi-valued
// attributes. Names are emitted in sorted order.
func (b *Builder) Options(group goipp.Tag, opts map[string]string) *Builder {
	if b.err != nil {
		return b
	}
	names := make([]string, 0, len(opts))
	for name := range opts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		a, err := EncodeOption(group, name, opts[name])
		if err != nil {
			b.err = withOp(b.name, name, err)
			return b
		}
		b.AddAttr(a)
	}
	return b
}

// OptionDefault sets the printer-side default of an option through its
// "-default" attribute.
func (b *Builder) OptionDefault(name, value string) *Builder {
	if strings.TrimSpace(name) == "" {
		return b.fail("name", "option name is required")
	}
	if b.err != nil {
		return b
	}
	a, err := EncodeOption(goipp.TagPrinterGroup, name, value)
	if err != nil {
		b.err = withOp(b.name, name, err)
		return b
	}
	a.Name = name + "-default"
	return b.AddAttr(a)
}

// DeleteOptionDefault removes a printer-side option default.
func (b *Builder) DeleteOptionDefault(name string) *Builder {
	if strings.TrimSpace(name) == "" {
		return b.fail("name", "option name is required")
	}
	return b.Printer(name+"-default", goipp.TagDeleteAttr)
}

// EncodeOption types one option value.
func EncodeOption(group goipp.Tag, name, value string) (ippattr.Attribute, error) {
	kind, ok := optionKinds[name]
	if !ok {
		kind = guessKind(value)
	}
	parts := splitValues(value)
	tag := goipp.TagKeyword
	vals := make([]any, 0, len(parts))
	for _, part := range parts {
		switch kind {
		case optInteger, optEnum:
			tag = goipp.TagInteger
			if kind == optEnum {
				tag = goipp.TagEnum
			}
			n, err := strconv.Atoi(part)
			if err != nil {
				return ippattr.Attribute{}, invalidOption(name, "integer value required, got %q", part)
			}
			vals = append(vals, n)
		case optBoolean:
			tag = goipp.TagBoolean
			v, ok := parseBool(part)
			if !ok {
				return ippattr.Attribute{}, invalidOption(name, "boolean value required, got %q", part)
			}
			vals = append(vals, v)
		case optRange:
			tag = goipp.TagRange
			r, err := parseRange(part)
			if err != nil {
				return ippattr.Attribute{}, invalidOption(name, "%v", err)
			}
			vals = append(vals, r)
		case optResolution:
			tag = goipp.TagResolution
			r, err := parseResolution(part)
			if err != nil {
				return ippattr.Attribute{}, invalidOption(name, "%v", err)
			}
			vals = append(vals, r)
		case optName:
			tag = goipp.TagName
			vals = append(vals, part)
		case optText:
			tag = goipp.TagText
			vals = append(vals, part)
		case optMime:
			tag = goipp.TagMimeType
			vals = append(vals, part)
		case optURI:
			tag = goipp.TagURI
			vals = append(vals, part)
		default:
			vals = append(vals, part)
		}
	}
	if kind == optText || kind == optURI || kind == optMime {
		vals = []any{value}
	}
	return ippattr.New(group, tag, name, vals...)
}

func guessKind(value string) optionKind {
	if value == "" {
		return optKeyword
	}
	if value == "true" || value == "false" {
		return optBoolean
	}
	if _, err := strconv.Atoi(value); err == nil {
		return optInteger
	}
	return optKeyword
}

// splitValues splits on commas outside quotes; quotes are stripped.
func splitValues(value string) []string {
	var out []string
	var cur strings.Builder
	quote := byte(0)
	for i := 0; i < len(value); i++ {
		ch := value[i]
		switch {
		case quote != 0 && ch == quote:
			quote = 0
		case quote == 0 && (ch == '"' || ch == '\''):
			quote = ch
		case quote == 0 && ch == ',':
			out = append(out, cur.String())
			cur.Reset()
		case ch == '\\' && i+1 < len(value):
			i++
			cur.WriteByte(value[i])
		default:
			cur.WriteByte(ch)
		}
	}
	out = append(out, cur.String())
	return out
}

func parseBool(v string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "yes", "on", "1":
		return true, true
	case "false", "no", "off", "0":
		return false, true
	}
	return false, false
}

func parseRange(v string) ([2]int, error) {
	lo, hi, found := strings.Cut(strings.TrimSpace(v), "-")
	l, err := strconv.Atoi(lo)
	if err != nil {
		return [2]int{}, invalidOption("", "range value required, got %q", v)
	}
	if !found {
		return [2]int{l, l}, nil
	}
	u := math.MaxInt32
	if hi != "" {
		if u, err = strconv.Atoi(hi); err != nil {
			return [2]int{}, invalidOption("", "range value required, got %q", v)
		}
	}
	return [2]int{l, u}, nil
}

func parseResolution(v string) ([3]int, error) {
	v = strings.ToLower(strings.TrimSpace(v))
	units := int(ippattr.UnitsDPI)
	switch {
	case strings.HasSuffix(v, "dpi"):
		v = strings.TrimSuffix(v, "dpi")
	case strings.HasSuffix(v, "dpc"), strings.HasSuffix(v, "dpcm"):
		v = strings.TrimSuffix(strings.TrimSuffix(v, "m"), "dpc")
		units = int(ippattr.UnitsDPCM)
	default:
		return [3]int{}, invalidOption("", "resolution value required, got %q", v)
	}
	xs, ys, found := strings.Cut(v, "x")
	x, err := strconv.Atoi(xs)
	if err != nil {
		return [3]int{}, invalidOption("", "resolution value required, got %q", v)
	}
	y := x
	if found {
		if y, err = strconv.Atoi(ys); err != nil {
			return [3]int{}, invalidOption("", "resolution value required, got %q", v)
		}
	}
	return [3]int{x, y, units}, nil
}

func invalidOption(name, format string, args ...any) error {
	return ipperr.Invalid("option", name, format, args...)
}
