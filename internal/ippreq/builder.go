// Package ippreq builds validated IPP request messages from named
// parameters.
package ippreq

import (
	"errors"
	"os"
	"sort"
	"strings"
	"sync/atomic"

	goipp "github.com/OpenPrinting/goipp"
	"golang.org/x/text/language"

	"cupsbridge/internal/ippattr"
	"cupsbridge/internal/ipperr"
)

// MaxAuthInfo is the most auth-info values a server accepts.
const MaxAuthInfo = 3

var requestID atomic.Uint32

func nextRequestID() uint32 {
	id := requestID.Add(1)
	if id == 0 {
		id = requestID.Add(1)
	}
	return id
}

// Builder accumulates the attributes of one request. The first validation
// failure is sticky: later calls are ignored and Build returns it.
type Builder struct {
	op     goipp.Op
	name   string
	groups map[goipp.Tag][]ippattr.Attribute
	err    error
}

func New(op goipp.Op) *Builder {
	b := &Builder{op: op, name: op.String(), groups: map[goipp.Tag][]ippattr.Attribute{}}
	b.Add(goipp.TagOperationGroup, "attributes-charset", goipp.TagCharset, "utf-8")
	b.Add(goipp.TagOperationGroup, "attributes-natural-language", goipp.TagLanguage, NaturalLanguage())
	return b
}

// NaturalLanguage derives the request language from LANG, defaulting to
// en-US.
func NaturalLanguage() string {
	raw := strings.TrimSpace(os.Getenv("LANG"))
	if i := strings.IndexAny(raw, ".@"); i >= 0 {
		raw = raw[:i]
	}
	if raw == "" || raw == "C" || raw == "POSIX" {
		return "en-US"
	}
	tag, err := language.Parse(strings.ReplaceAll(raw, "_", "-"))
	if err != nil {
		return "en-US"
	}
	return tag.String()
}

func (b *Builder) Op() goipp.Op { return b.op }

func (b *Builder) Err() error { return b.err }

func (b *Builder) fail(param, format string, args ...any) *Builder {
	if b.err == nil {
		b.err = ipperr.Invalid(b.name, param, format, args...)
	}
	return b
}

// Add appends an attribute built from dynamic host values. A host list must
// be homogeneous in Go type.
func (b *Builder) Add(group goipp.Tag, name string, tag goipp.Tag, values ...any) *Builder {
	if b.err != nil {
		return b
	}
	a, err := ippattr.New(group, tag, name, values...)
	if err != nil {
		b.err = withOp(b.name, name, err)
		return b
	}
	return b.AddAttr(a)
}

// AddAttr appends a prepared attribute.
func (b *Builder) AddAttr(a ippattr.Attribute) *Builder {
	if b.err != nil {
		return b
	}
	b.groups[a.Group] = append(b.groups[a.Group], a)
	return b
}

func (b *Builder) Operation(name string, tag goipp.Tag, values ...any) *Builder {
	return b.Add(goipp.TagOperationGroup, name, tag, values...)
}

func (b *Builder) Printer(name string, tag goipp.Tag, values ...any) *Builder {
	return b.Add(goipp.TagPrinterGroup, name, tag, values...)
}

func (b *Builder) Job(name string, tag goipp.Tag, values ...any) *Builder {
	return b.Add(goipp.TagJobGroup, name, tag, values...)
}

func (b *Builder) Subscription(name string, tag goipp.Tag, values ...any) *Builder {
	return b.Add(goipp.TagSubscriptionGroup, name, tag, values...)
}

func (b *Builder) PrinterURI(uri string) *Builder {
	return b.Operation("printer-uri", goipp.TagURI, uri)
}

func (b *Builder) JobURI(uri string) *Builder {
	return b.Operation("job-uri", goipp.TagURI, uri)
}

func (b *Builder) JobID(id int) *Builder {
	if id < 0 {
		return b.fail("job-id", "must not be negative")
	}
	return b.Operation("job-id", goipp.TagInteger, id)
}

func (b *Builder) RequestingUser(user string) *Builder {
	if strings.TrimSpace(user) == "" {
		return b
	}
	return b.Operation("requesting-user-name", goipp.TagName, user)
}

// Exclusive fails when more than one of the named parameters is set.
func (b *Builder) Exclusive(params map[string]bool) *Builder {
	var set []string
	for name, ok := range params {
		if ok {
			set = append(set, name)
		}
	}
	if len(set) < 2 {
		return b
	}
	sort.Strings(set)
	return b.fail(strings.Join(set, ","), "only one of these parameters may be given")
}

// Require fails when none of the named parameters is set.
func (b *Builder) Require(params map[string]bool) *Builder {
	names := make([]string, 0, len(params))
	for name, ok := range params {
		if ok {
			return b
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return b.fail(strings.Join(names, ","), "one of these parameters is required")
}

// Schemes encodes a list of URI schemes as one repeated name attribute.
func (b *Builder) Schemes(name string, schemes []string) *Builder {
	if len(schemes) == 0 {
		return b
	}
	return b.Operation(name, goipp.TagName, strings2any(schemes)...)
}

// RequestedAttributes limits the attributes the server returns.
func (b *Builder) RequestedAttributes(names []string) *Builder {
	if len(names) == 0 {
		return b
	}
	return b.Operation("requested-attributes", goipp.TagKeyword, strings2any(names)...)
}

// Users encodes a user list; an empty list means every user.
func (b *Builder) Users(name string, users []string) *Builder {
	if len(users) == 0 {
		return b.Printer(name, goipp.TagName, "all")
	}
	return b.Printer(name, goipp.TagName, strings2any(users)...)
}

// AuthInfo sends at most MaxAuthInfo values; extra values are dropped.
func (b *Builder) AuthInfo(values []string) *Builder {
	if len(values) == 0 {
		return b
	}
	if len(values) > MaxAuthInfo {
		values = values[:MaxAuthInfo]
	}
	return b.Job("auth-info", goipp.TagText, strings2any(values)...)
}

// Build assembles the request. Groups are emitted in operation, job,
// printer, subscription order.
func (b *Builder) Build() (*goipp.Message, error) {
	if b.err != nil {
		return nil, b.err
	}
	msg := goipp.NewRequest(goipp.DefaultVersion, b.op, nextRequestID())
	fill := func(group goipp.Tag, dst *goipp.Attributes) error {
		for _, a := range b.groups[group] {
			raw, err := a.Goipp()
			if err != nil {
				return withOp(b.name, a.Name, err)
			}
			dst.Add(raw)
		}
		return nil
	}
	if err := fill(goipp.TagOperationGroup, &msg.Operation); err != nil {
		return nil, err
	}
	if err := fill(goipp.TagJobGroup, &msg.Job); err != nil {
		return nil, err
	}
	if err := fill(goipp.TagPrinterGroup, &msg.Printer); err != nil {
		return nil, err
	}
	if err := fill(goipp.TagSubscriptionGroup, &msg.Subscription); err != nil {
		return nil, err
	}
	return msg, nil
}

func withOp(op, param string, err error) error {
	var ve *ipperr.ValidationError
	if errors.As(err, &ve) {
		out := *ve
		out.Op = op
		out.Param = param
		return &out
	}
	return err
}

func strings2any(xs []string) []any {
	out := make([]any, len(xs))
	for i, x := range xs {
		out[i] = x
	}
	return out
}
