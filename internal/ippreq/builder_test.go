package ippreq

import (
	"testing"

	goipp "github.com/OpenPrinting/goipp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cupsbridge/internal/ipperr"
)

func findAttr(attrs goipp.Attributes, name string) (goipp.Attribute, bool) {
	for _, a := range attrs {
		if a.Name == name {
			return a, true
		}
	}
	return goipp.Attribute{}, false
}

func TestBuildAddsCharsetAndLanguage(t *testing.T) {
	t.Setenv("LANG", "de_DE.UTF-8")
	msg, err := New(goipp.OpCupsGetPrinters).Build()
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(msg.Operation), 2)
	assert.Equal(t, "attributes-charset", msg.Operation[0].Name)
	assert.Equal(t, "utf-8", msg.Operation[0].Values[0].V.String())
	assert.Equal(t, "attributes-natural-language", msg.Operation[1].Name)
	assert.Equal(t, "de-DE", msg.Operation[1].Values[0].V.String())
	assert.Equal(t, goipp.Code(goipp.OpCupsGetPrinters), msg.Code)
}

func TestNaturalLanguageDefault(t *testing.T) {
	t.Setenv("LANG", "C")
	assert.Equal(t, "en-US", NaturalLanguage())
	t.Setenv("LANG", "")
	assert.Equal(t, "en-US", NaturalLanguage())
}

func TestBuildRejectsHeterogeneousList(t *testing.T) {
	_, err := New(goipp.OpGetJobs).
		Operation("which-jobs", goipp.TagKeyword, "completed", 5).
		Build()
	require.Error(t, err)
	var ve *ipperr.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "which-jobs", ve.Param)
}

func TestValidationErrorIsSticky(t *testing.T) {
	b := New(goipp.OpCupsAddModifyPrinter).
		Printer("printer-is-shared", goipp.TagBoolean, "yes").
		PrinterURI("ipp://localhost/printers/p1")
	_, err := b.Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "printer-is-shared")
}

func TestExclusive(t *testing.T) {
	_, err := New(goipp.OpCupsAddModifyPrinter).
		Exclusive(map[string]bool{"filename": true, "ppdname": true, "ppd": false}).
		Build()
	require.Error(t, err)
	assert.True(t, ipperr.IsValidation(err))
	assert.Contains(t, err.Error(), "filename,ppdname")

	_, err = New(goipp.OpCupsAddModifyPrinter).
		Exclusive(map[string]bool{"filename": false, "ppdname": true}).
		Build()
	assert.NoError(t, err)
}

func TestRequire(t *testing.T) {
	_, err := New(goipp.OpCupsAddModifyPrinter).
		Require(map[string]bool{"name": false, "uri": false}).
		Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name,uri")
}

func TestUsersEmptyMeansAll(t *testing.T) {
	msg, err := New(goipp.OpCupsAddModifyPrinter).
		Users("requesting-user-name-allowed", nil).
		Build()
	require.NoError(t, err)
	a, ok := findAttr(msg.Printer, "requesting-user-name-allowed")
	require.True(t, ok)
	require.Len(t, a.Values, 1)
	assert.Equal(t, goipp.TagName, a.Values[0].T)
	assert.Equal(t, "all", a.Values[0].V.String())
}

func TestAuthInfoTruncated(t *testing.T) {
	msg, err := New(goipp.OpCupsAuthenticateJob).
		AuthInfo([]string{"a", "b", "c", "d"}).
		Build()
	require.NoError(t, err)
	a, ok := findAttr(msg.Job, "auth-info")
	require.True(t, ok)
	assert.Len(t, a.Values, MaxAuthInfo)
}

func TestSchemesSingleRepeatedAttribute(t *testing.T) {
	msg, err := New(goipp.OpCupsGetDevices).
		Schemes("include-schemes", []string{"usb", "socket"}).
		Build()
	require.NoError(t, err)
	a, ok := findAttr(msg.Operation, "include-schemes")
	require.True(t, ok)
	require.Len(t, a.Values, 2)
	assert.Equal(t, goipp.TagName, a.Values[1].T)
}

func TestOptionsTyping(t *testing.T) {
	msg, err := New(goipp.OpPrintJob).Options(goipp.TagJobGroup, map[string]string{
		"copies":             "2",
		"page-ranges":        "1-3,7",
		"printer-resolution": "300x600dpi",
		"sides":              "two-sided-long-edge",
		"collate":            "true",
	}).Build()
	require.NoError(t, err)

	copies, _ := findAttr(msg.Job, "copies")
	assert.Equal(t, goipp.TagInteger, copies.Values[0].T)
	assert.Equal(t, goipp.Integer(2), copies.Values[0].V)

	ranges, _ := findAttr(msg.Job, "page-ranges")
	require.Len(t, ranges.Values, 2)
	assert.Equal(t, goipp.Range{Lower: 1, Upper: 3}, ranges.Values[0].V)
	assert.Equal(t, goipp.Range{Lower: 7, Upper: 7}, ranges.Values[1].V)

	res, _ := findAttr(msg.Job, "printer-resolution")
	assert.Equal(t, goipp.Resolution{Xres: 300, Yres: 600, Units: goipp.UnitsDpi}, res.Values[0].V)

	sides, _ := findAttr(msg.Job, "sides")
	assert.Equal(t, goipp.TagKeyword, sides.Values[0].T)

	collate, _ := findAttr(msg.Job, "collate")
	assert.Equal(t, goipp.Boolean(true), collate.Values[0].V)
}

func TestOptionsRejectBadInteger(t *testing.T) {
	_, err := New(goipp.OpPrintJob).Options(goipp.TagJobGroup, map[string]string{"copies": "two"}).Build()
	require.Error(t, err)
	assert.True(t, ipperr.IsValidation(err))
}

func TestOptionDefault(t *testing.T) {
	msg, err := New(goipp.OpCupsAddModifyPrinter).
		OptionDefault("media", "a4").
		DeleteOptionDefault("sides").
		Build()
	require.NoError(t, err)
	media, ok := findAttr(msg.Printer, "media-default")
	require.True(t, ok)
	assert.Equal(t, "a4", media.Values[0].V.String())
	sides, ok := findAttr(msg.Printer, "sides-default")
	require.True(t, ok)
	assert.Equal(t, goipp.TagDeleteAttr, sides.Values[0].T)
}

func TestResource(t *testing.T) {
	tests := []struct {
		op   goipp.Op
		uri  string
		want string
	}{
		{op: goipp.OpCancelJobs, want: "/admin/"},
		{op: goipp.OpCancelJob, want: "/jobs/"},
		{op: goipp.OpCupsGetPrinters, want: "/"},
		{op: goipp.OpCupsGetPpd, uri: "ipp://localhost/printers/Office", want: "/"},
		{op: goipp.OpCupsAddModifyPrinter, uri: "ipp://localhost/printers/Office", want: "/admin/"},
		{op: goipp.OpPrintJob, uri: "ipp://localhost/printers/Office", want: "/printers/Office"},
		{op: goipp.OpGetPrinterAttributes, uri: "ipp://localhost/classes/Team", want: "/classes/Team"},
	}
	for _, tc := range tests {
		b := New(tc.op)
		if tc.uri != "" {
			b.PrinterURI(tc.uri)
		}
		msg, err := b.Build()
		if err != nil {
			t.Fatalf("build %v: %v", tc.op, err)
		}
		if got := Resource(msg); got != tc.want {
			t.Fatalf("op %v path = %q, want %q", tc.op, got, tc.want)
		}
	}
}

func TestPrinterURIEscapesName(t *testing.T) {
	if got := PrinterURI("Office Laser"); got != "ipp://localhost/printers/Office%20Laser" {
		t.Fatalf("PrinterURI(name) = %q", got)
	}
	if got := ClassURI("team"); got != "ipp://localhost/classes/team" {
		t.Fatalf("ClassURI(name) = %q", got)
	}
}
