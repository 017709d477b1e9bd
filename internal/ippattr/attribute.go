package ippattr

import (
	"fmt"
	"strings"

	goipp "github.com/OpenPrinting/goipp"

	"cupsbridge/internal/ipperr"
)

// Attribute is one entry of a flat attribute stream. A separator has both
// tags set to goipp.TagZero and no name.
type Attribute struct {
	Group  goipp.Tag
	Tag    goipp.Tag
	Name   string
	Values []Value
}

func Separator() Attribute {
	return Attribute{Group: goipp.TagZero, Tag: goipp.TagZero}
}

func (a Attribute) IsSeparator() bool {
	return a.Group == goipp.TagZero
}

func (a Attribute) String() string {
	if a.IsSeparator() {
		return "<separator>"
	}
	parts := make([]string, len(a.Values))
	for i, v := range a.Values {
		parts[i] = v.String()
	}
	return fmt.Sprintf("%s (%s:%s): %s", a.Name, a.Group, a.Tag, strings.Join(parts, ","))
}

// New builds an attribute from dynamic host values, validating them against
// the value tag.
func New(group, tag goipp.Tag, name string, values ...any) (Attribute, error) {
	attr := Attribute{Group: group, Tag: tag, Name: name}
	if len(values) == 0 {
		if !IsOutOfBandTag(tag) {
			return attr, ipperr.Invalid("", name, "missing value list")
		}
		attr.Values = []Value{NoValue{Tag: tag}}
		return attr, nil
	}
	vals, err := FromHostList(tag, values)
	if err != nil {
		return attr, err
	}
	attr.Values = vals
	return attr, nil
}

// FromGoipp decodes a wire attribute. The value tag of the first value is
// taken as the attribute's tag; each value is decoded with its own tag.
func FromGoipp(group goipp.Tag, a goipp.Attribute) Attribute {
	attr := Attribute{Group: group, Name: a.Name, Tag: goipp.TagNoValue}
	if len(a.Values) > 0 {
		attr.Tag = a.Values[0].T
	}
	attr.Values = make([]Value, 0, len(a.Values))
	for _, v := range a.Values {
		attr.Values = append(attr.Values, Decode(v.T, v.V))
	}
	return attr
}

// Goipp encodes the attribute for the wire. Every value is encoded with the
// attribute's value tag, so a mixed list fails validation.
func (a Attribute) Goipp() (goipp.Attribute, error) {
	out := goipp.Attribute{Name: a.Name}
	if len(a.Values) == 0 {
		if !IsOutOfBandTag(a.Tag) {
			return out, ipperr.Invalid("encode", a.Name, "missing value list")
		}
		out.Values.Add(a.Tag, goipp.Void{})
		return out, nil
	}
	for _, v := range a.Values {
		raw, err := Encode(a.Tag, v)
		if err != nil {
			return out, fmt.Errorf("%s: %w", a.Name, err)
		}
		out.Values.Add(a.Tag, raw)
	}
	return out, nil
}

// Flatten walks the message groups in wire order and returns one attribute
// stream. Consecutive groups carrying the same group tag are delimited by a
// separator, the same way libcups presents repeated groups.
func Flatten(msg *goipp.Message) []Attribute {
	if msg == nil {
		return nil
	}
	var out []Attribute
	prev := goipp.TagZero
	for _, g := range msg.AttrGroups() {
		if len(g.Attrs) == 0 {
			continue
		}
		if prev != goipp.TagZero && g.Tag == prev {
			out = append(out, Separator())
		}
		for _, a := range g.Attrs {
			out = append(out, FromGoipp(g.Tag, a))
		}
		prev = g.Tag
	}
	return out
}

// Find returns the first attribute with the given name in group. Pass
// goipp.TagZero to search every group.
func Find(attrs []Attribute, group goipp.Tag, name string) (Attribute, bool) {
	for _, a := range attrs {
		if a.IsSeparator() {
			continue
		}
		if group != goipp.TagZero && a.Group != group {
			continue
		}
		if a.Name == name {
			return a, true
		}
	}
	return Attribute{}, false
}
