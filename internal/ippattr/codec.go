package ippattr

import (
	"fmt"
	"math"
	"unicode/utf8"

	goipp "github.com/OpenPrinting/goipp"

	"cupsbridge/internal/ipperr"
)

// IsTextTag reports whether tag belongs to the string family.
func IsTextTag(tag goipp.Tag) bool {
	switch tag {
	case goipp.TagText, goipp.TagName, goipp.TagReservedString, goipp.TagKeyword,
		goipp.TagURI, goipp.TagURIScheme, goipp.TagCharset, goipp.TagLanguage,
		goipp.TagMimeType, goipp.TagString, goipp.TagTextLang, goipp.TagNameLang:
		return true
	default:
		return false
	}
}

// IsOutOfBandTag reports whether tag carries no value of its own.
func IsOutOfBandTag(tag goipp.Tag) bool {
	switch tag {
	case goipp.TagUnsupportedValue, goipp.TagDefault, goipp.TagUnknown,
		goipp.TagNoValue, goipp.TagNotSettable, goipp.TagDeleteAttr,
		goipp.TagAdminDefine:
		return true
	default:
		return false
	}
}

func unknownValue(tag goipp.Tag) Unknown {
	return Unknown{Tag: tag, Placeholder: fmt.Sprintf("(unknown IPP value tag 0x%02x)", int(tag))}
}

// asciiSafe returns s unchanged when it is valid UTF-8. Otherwise every byte
// is masked into 7-bit ASCII; servers older than UTF-8-only IPP pass PPD
// strings through untranscoded.
func asciiSafe(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	b := []byte(s)
	for i := range b {
		b[i] &= 0x7f
	}
	return string(b)
}

// Decode converts one wire value into a Value. It never fails: unsupported
// tags degrade to an Unknown placeholder.
func Decode(tag goipp.Tag, raw goipp.Value) Value {
	if IsOutOfBandTag(tag) {
		return NoValue{Tag: tag}
	}
	if IsTextTag(tag) {
		switch v := raw.(type) {
		case goipp.String:
			return Text(asciiSafe(string(v)))
		case goipp.Binary:
			return Text(asciiSafe(string(v)))
		case goipp.TextWithLang:
			return LangText{Text: asciiSafe(v.Text), Lang: v.Lang}
		}
		return unknownValue(tag)
	}
	switch tag {
	case goipp.TagInteger, goipp.TagEnum:
		if v, ok := raw.(goipp.Integer); ok {
			return Integer(int(v))
		}
	case goipp.TagBoolean:
		if v, ok := raw.(goipp.Boolean); ok {
			return Boolean(bool(v))
		}
	case goipp.TagRange:
		if v, ok := raw.(goipp.Range); ok {
			return Range{Lower: v.Lower, Upper: v.Upper}
		}
	case goipp.TagResolution:
		if v, ok := raw.(goipp.Resolution); ok {
			return Resolution{X: v.Xres, Y: v.Yres, Units: Units(v.Units)}
		}
	case goipp.TagDateTime:
		if v, ok := raw.(goipp.Time); ok {
			return Date{Time: v.Time}
		}
	}
	return unknownValue(tag)
}

// Encode converts v into the wire value for tag, validating that the value
// shape is legal for the tag.
func Encode(tag goipp.Tag, v Value) (goipp.Value, error) {
	if IsOutOfBandTag(tag) {
		if _, ok := v.(NoValue); ok || v == nil {
			return goipp.Void{}, nil
		}
		return nil, mismatch(tag, v, "no value")
	}
	if IsTextTag(tag) {
		var text, lang string
		switch t := v.(type) {
		case Text:
			text = string(t)
		case LangText:
			text, lang = t.Text, t.Lang
		default:
			return nil, mismatch(tag, v, "text")
		}
		switch tag {
		case goipp.TagString:
			return goipp.Binary(text), nil
		case goipp.TagTextLang, goipp.TagNameLang:
			return goipp.TextWithLang{Lang: lang, Text: text}, nil
		default:
			return goipp.String(text), nil
		}
	}
	switch tag {
	case goipp.TagInteger, goipp.TagEnum:
		n, ok := v.(Integer)
		if !ok {
			return nil, mismatch(tag, v, "integer")
		}
		if int(n) < math.MinInt32 || int(n) > math.MaxInt32 {
			return nil, ipperr.Invalid("encode", tag.String(), "integer %d out of range", int(n))
		}
		return goipp.Integer(int32(n)), nil
	case goipp.TagBoolean:
		b, ok := v.(Boolean)
		if !ok {
			return nil, mismatch(tag, v, "boolean")
		}
		return goipp.Boolean(bool(b)), nil
	case goipp.TagRange:
		switch r := v.(type) {
		case Range:
			if r.Lower > r.Upper {
				return nil, ipperr.Invalid("encode", tag.String(), "range lower %d above upper %d", r.Lower, r.Upper)
			}
			return goipp.Range{Lower: r.Lower, Upper: r.Upper}, nil
		case Integer:
			return goipp.Range{Lower: int(r), Upper: int(r)}, nil
		}
		return nil, mismatch(tag, v, "integer range")
	case goipp.TagResolution:
		r, ok := v.(Resolution)
		if !ok {
			return nil, mismatch(tag, v, "resolution")
		}
		return goipp.Resolution{Xres: r.X, Yres: r.Y, Units: goipp.Units(r.Units)}, nil
	case goipp.TagDateTime:
		d, ok := v.(Date)
		if !ok {
			return nil, mismatch(tag, v, "date")
		}
		return goipp.Time{Time: d.Time}, nil
	}
	return nil, ipperr.Invalid("encode", tag.String(), "unsupported value tag 0x%02x", int(tag))
}

func mismatch(tag goipp.Tag, v Value, want string) error {
	return ipperr.Invalid("encode", tag.String(), "%s value required, got %T", want, v)
}
