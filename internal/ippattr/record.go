package ippattr

import (
	"sort"

	"github.com/mitchellh/mapstructure"
)

// Record is one printer, job, subscription or event: attribute name to
// decoded value.
type Record map[string]Value

// Plain converts the record into plain Go values.
func (r Record) Plain() map[string]any {
	out := make(map[string]any, len(r))
	for k, v := range r {
		out[k] = v.Interface()
	}
	return out
}

// Decode fills out (a pointer to a struct) from the record. Fields are
// matched by their `ipp` struct tag.
func (r Record) Decode(out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "ipp",
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(r.Plain())
}

func (r Record) Names() []string {
	names := make([]string, 0, len(r))
	for k := range r {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func (r Record) Text(name string) string {
	v, ok := r[name]
	if !ok {
		return ""
	}
	if l, isList := v.(List); isList {
		if len(l) == 0 {
			return ""
		}
		return l[0].String()
	}
	return v.String()
}

func (r Record) Int(name string) (int, bool) {
	v, ok := r[name]
	if !ok {
		return 0, false
	}
	if l, isList := v.(List); isList && len(l) > 0 {
		v = l[0]
	}
	n, ok := v.(Integer)
	return int(n), ok
}

func (r Record) Strings(name string) []string {
	return Strings(r[name])
}

// Clone returns a shallow copy; values are immutable.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
