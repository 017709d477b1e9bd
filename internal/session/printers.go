package session

import (
	"context"

	goipp "github.com/OpenPrinting/goipp"

	"cupsbridge/internal/ippattr"
	"cupsbridge/internal/ippreq"
)

// PrinterAttributes is what GetPrinters asks for.
var PrinterAttributes = []string{
	"printer-name",
	"printer-type",
	"printer-location",
	"printer-info",
	"printer-make-and-model",
	"printer-state",
	"printer-state-message",
	"printer-state-reasons",
	"printer-uri-supported",
	"device-uri",
	"printer-is-accepting-jobs",
	"printer-is-shared",
	"printer-up-time",
	"queued-job-count",
}

var classAttributes = []string{
	"printer-name",
	"printer-type",
	"printer-info",
	"printer-location",
	"printer-state",
	"printer-uri-supported",
	"member-names",
	"member-uris",
}

// catalog sends a catalog request and collects the printer-group records by
// key. A not-found answer is an empty catalog.
func (s *Session) catalog(ctx context.Context, b *ippreq.Builder, group goipp.Tag, key string) ([]ippattr.Keyed, error) {
	resp, err := s.do(ctx, b)
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s.parser.RecordsByGroup(ippattr.Flatten(resp), group, ippattr.KeySpec{Name: key}), nil
}

// GetPrinters lists printers and classes by name.
func (s *Session) GetPrinters(ctx context.Context) (map[string]ippattr.Record, error) {
	b := s.newRequest(goipp.OpCupsGetPrinters).RequestedAttributes(PrinterAttributes)
	items, err := s.catalog(ctx, b, goipp.TagPrinterGroup, "printer-name")
	if err != nil {
		return nil, err
	}
	return ippattr.StringKeyed(items), nil
}

// GetClasses lists classes by name.
func (s *Session) GetClasses(ctx context.Context) (map[string]ippattr.Record, error) {
	b := s.newRequest(goipp.OpCupsGetClasses).RequestedAttributes(classAttributes)
	items, err := s.catalog(ctx, b, goipp.TagPrinterGroup, "printer-name")
	if err != nil {
		return nil, err
	}
	return ippattr.StringKeyed(items), nil
}

// GetPrinterAttributes returns the attributes of one printer or class. An
// empty requested list asks for everything.
func (s *Session) GetPrinterAttributes(ctx context.Context, t Target, requested []string) (ippattr.Record, error) {
	resp, err := s.sendTarget(ctx, goipp.OpGetPrinterAttributes, t, func(uri string, _ bool) *ippreq.Builder {
		return s.newRequest(goipp.OpGetPrinterAttributes).PrinterURI(uri).RequestedAttributes(requested)
	})
	if err != nil {
		return nil, err
	}
	items := s.parser.RecordsByGroup(ippattr.Flatten(resp), goipp.TagPrinterGroup, ippattr.KeySpec{})
	if len(items) == 0 {
		return ippattr.Record{}, nil
	}
	return items[0].Record, nil
}

// GetDefault returns the server default destination, or "" if there is
// none.
func (s *Session) GetDefault(ctx context.Context) (string, error) {
	b := s.newRequest(goipp.OpCupsGetDefault).RequestedAttributes([]string{"printer-name"})
	items, err := s.catalog(ctx, b, goipp.TagPrinterGroup, "printer-name")
	if err != nil || len(items) == 0 {
		return "", err
	}
	return items[0].Key.String(), nil
}

type PPDQuery struct {
	Limit           int
	IncludeSchemes  []string
	ExcludeSchemes  []string
	Make            string
	MakeAndModel    string
	Product         string
	Language        string
	PSVersion       string
	DeviceID        string
	Type            string
	RequestedFields []string
}

// GetPPDs lists the drivers the server knows, keyed by ppd-name.
func (s *Session) GetPPDs(ctx context.Context, q PPDQuery) (map[string]ippattr.Record, error) {
	b := s.newRequest(goipp.OpCupsGetPpds).
		Schemes("include-schemes", q.IncludeSchemes).
		Schemes("exclude-schemes", q.ExcludeSchemes).
		RequestedAttributes(q.RequestedFields)
	if q.Limit > 0 {
		b.Operation("limit", goipp.TagInteger, q.Limit)
	}
	for _, f := range []struct {
		name  string
		tag   goipp.Tag
		value string
	}{
		{"ppd-make", goipp.TagText, q.Make},
		{"ppd-make-and-model", goipp.TagText, q.MakeAndModel},
		{"ppd-product", goipp.TagText, q.Product},
		{"ppd-natural-language", goipp.TagLanguage, q.Language},
		{"ppd-psversion", goipp.TagText, q.PSVersion},
		{"ppd-device-id", goipp.TagText, q.DeviceID},
		{"ppd-type", goipp.TagKeyword, q.Type},
	} {
		if f.value != "" {
			b.Operation(f.name, f.tag, f.value)
		}
	}
	items, err := s.catalog(ctx, b, goipp.TagPrinterGroup, "ppd-name")
	if err != nil {
		return nil, err
	}
	return ippattr.StringKeyed(items), nil
}

type DeviceQuery struct {
	Limit          int
	Timeout        int
	IncludeSchemes []string
	ExcludeSchemes []string
}

// GetDevices lists the devices the server can discover, keyed by
// device-uri.
func (s *Session) GetDevices(ctx context.Context, q DeviceQuery) (map[string]ippattr.Record, error) {
	b := s.newRequest(goipp.OpCupsGetDevices).
		Schemes("include-schemes", q.IncludeSchemes).
		Schemes("exclude-schemes", q.ExcludeSchemes)
	if q.Limit > 0 {
		b.Operation("limit", goipp.TagInteger, q.Limit)
	}
	if q.Timeout > 0 {
		b.Operation("timeout", goipp.TagInteger, q.Timeout)
	}
	items, err := s.catalog(ctx, b, goipp.TagPrinterGroup, "device-uri")
	if err != nil {
		return nil, err
	}
	return ippattr.StringKeyed(items), nil
}
