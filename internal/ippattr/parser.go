package ippattr

import (
	goipp "github.com/OpenPrinting/goipp"
	"github.com/rs/zerolog"
)

// BannerAttribute is always decoded as a (start, end) pair.
const BannerAttribute = "job-sheets-default"

// KeySpec names the attribute that identifies a record in a catalog. When
// Keep is false the key attribute is dropped from the record map.
type KeySpec struct {
	Name string
	Keep bool
}

// Keyed is a record together with its catalog key.
type Keyed struct {
	Key    Value
	Record Record
}

type Parser struct {
	Cardinality *Cardinality
	Log         zerolog.Logger
}

func NewParser(c *Cardinality) *Parser {
	if c == nil {
		c = DefaultCardinality
	}
	return &Parser{Cardinality: c, Log: zerolog.Nop()}
}

// Value folds an attribute's raw values into its record value: a bare scalar,
// a List, or the fixed banner pair.
func (p *Parser) Value(a Attribute) Value {
	if a.Name == BannerAttribute {
		pair := List{Text(""), Text("")}
		for i := 0; i < len(a.Values) && i < 2; i++ {
			pair[i] = a.Values[i]
		}
		return pair
	}
	if len(a.Values) > 1 || p.cardinality().IsMulti(a.Name) {
		return List(append([]Value(nil), a.Values...))
	}
	if len(a.Values) == 0 {
		return NoValue{Tag: a.Tag}
	}
	return a.Values[0]
}

func (p *Parser) cardinality() *Cardinality {
	if p == nil || p.Cardinality == nil {
		return DefaultCardinality
	}
	return p.Cardinality
}

func (p *Parser) logger() *zerolog.Logger {
	if p == nil {
		l := zerolog.Nop()
		return &l
	}
	return &p.Log
}

// Record converts one run of attributes into a record. Names are unique
// within a record: later duplicates are dropped.
func (p *Parser) Record(run []Attribute) Record {
	rec := make(Record, len(run))
	for _, a := range run {
		if a.IsSeparator() || a.Name == "" {
			continue
		}
		if _, dup := rec[a.Name]; dup {
			p.logger().Debug().Str("attr", a.Name).Msg("duplicate attribute in record ignored")
			continue
		}
		rec[a.Name] = p.Value(a)
	}
	return rec
}

// RecordsByGroup splits the stream into records made of maximal contiguous
// runs of attributes carrying group. Any other tag, separators included,
// ends the current run. With a key spec, records lacking the key are dropped.
func (p *Parser) RecordsByGroup(attrs []Attribute, group goipp.Tag, key KeySpec) []Keyed {
	var out []Keyed
	i := 0
	for i < len(attrs) {
		for i < len(attrs) && (attrs[i].IsSeparator() || attrs[i].Group != group) {
			i++
		}
		if i >= len(attrs) {
			break
		}
		start := i
		for i < len(attrs) && !attrs[i].IsSeparator() && attrs[i].Group == group {
			i++
		}
		rec := p.Record(attrs[start:i])
		if key.Name == "" {
			out = append(out, Keyed{Record: rec})
			continue
		}
		k, ok := rec[key.Name]
		if !ok {
			p.logger().Debug().Str("key", key.Name).Msg("record without key dropped")
			continue
		}
		if l, isList := k.(List); isList && len(l) > 0 {
			k = l[0]
		}
		if !key.Keep {
			delete(rec, key.Name)
		}
		out = append(out, Keyed{Key: k, Record: rec})
	}
	return out
}

// RecordsBySeparator collects the attributes of group into records, starting
// a new record at every separator. Attributes of other groups close the
// current record. Empty records are dropped.
func (p *Parser) RecordsBySeparator(attrs []Attribute, group goipp.Tag) []Record {
	var out []Record
	var run []Attribute
	flush := func() {
		if len(run) > 0 {
			out = append(out, p.Record(run))
		}
		run = nil
	}
	inside := false
	for _, a := range attrs {
		switch {
		case a.IsSeparator():
			if inside {
				flush()
			}
		case a.Group == group:
			inside = true
			run = append(run, a)
		default:
			if inside {
				flush()
			}
		}
	}
	flush()
	return out
}

// StringKeyed turns keyed records into a catalog keyed by text.
func StringKeyed(items []Keyed) map[string]Record {
	out := make(map[string]Record, len(items))
	for _, item := range items {
		if item.Key == nil {
			continue
		}
		name := item.Key.String()
		if _, dup := out[name]; dup {
			continue
		}
		out[name] = item.Record
	}
	return out
}

// IntKeyed turns keyed records into a catalog keyed by integer id.
func IntKeyed(items []Keyed) map[int]Record {
	out := make(map[int]Record, len(items))
	for _, item := range items {
		n, ok := item.Key.(Integer)
		if !ok {
			continue
		}
		if _, dup := out[int(n)]; dup {
			continue
		}
		out[int(n)] = item.Record
	}
	return out
}
