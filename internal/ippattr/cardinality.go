package ippattr

import "strings"

// Cardinality decides whether an attribute is presented as a list even when
// the server sent a single value. The wire format cannot say "this attribute
// is conceptually a list", so the decision is a lookup table. Unseen names
// may be misclassified; extend the table rather than guessing from the name.
type Cardinality struct {
	Version  string
	suffixes []string
	names    map[string]struct{}
}

// CardinalityVersion identifies the built-in table.
const CardinalityVersion = "1"

var defaultMultiValued = []string{
	"job-printer-state-reasons",
	"job-state-reasons",
	"marker-colors",
	"marker-high-levels",
	"marker-levels",
	"marker-low-levels",
	"marker-names",
	"marker-types",
	"member-names",
	"member-uris",
	"notify-events",
	"notify-events-default",
	"printer-alert",
	"printer-alert-description",
	"printer-icons",
	"printer-state-reasons",
	"printer-supply",
	"printer-supply-description",
	"requesting-user-name-allowed",
	"requesting-user-name-denied",
	"requested-attributes",
}

// DefaultCardinality is the built-in table: every "-supported" attribute plus
// the names known to be multi-valued.
var DefaultCardinality = NewCardinality(CardinalityVersion, []string{"-supported"}, defaultMultiValued...)

func NewCardinality(version string, suffixes []string, names ...string) *Cardinality {
	c := &Cardinality{
		Version:  version,
		suffixes: append([]string(nil), suffixes...),
		names:    make(map[string]struct{}, len(names)),
	}
	for _, n := range names {
		c.names[strings.ToLower(strings.TrimSpace(n))] = struct{}{}
	}
	return c
}

// With returns a copy of the table that also lists names as multi-valued.
func (c *Cardinality) With(names ...string) *Cardinality {
	if c == nil {
		c = DefaultCardinality
	}
	out := NewCardinality(c.Version+"+local", c.suffixes)
	for n := range c.names {
		out.names[n] = struct{}{}
	}
	for _, n := range names {
		out.names[strings.ToLower(strings.TrimSpace(n))] = struct{}{}
	}
	return out
}

// IsMulti reports whether name is listed or carries a listed suffix.
func (c *Cardinality) IsMulti(name string) bool {
	if c == nil {
		return false
	}
	name = strings.ToLower(name)
	if _, ok := c.names[name]; ok {
		return true
	}
	for _, suffix := range c.suffixes {
		if len(name) > len(suffix) && strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}
