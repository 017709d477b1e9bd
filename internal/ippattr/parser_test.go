package ippattr

import (
	"testing"

	goipp "github.com/OpenPrinting/goipp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func attr(group, tag goipp.Tag, name string, vals ...Value) Attribute {
	return Attribute{Group: group, Tag: tag, Name: name, Values: vals}
}

func printerGroup(name string, extra ...goipp.Attribute) goipp.Group {
	attrs := goipp.Attributes{
		goipp.MakeAttribute("printer-name", goipp.TagName, goipp.String(name)),
		goipp.MakeAttribute("printer-state", goipp.TagEnum, goipp.Integer(3)),
	}
	attrs = append(attrs, extra...)
	return goipp.Group{Tag: goipp.TagPrinterGroup, Attrs: attrs}
}

func TestFlattenInsertsSeparatorBetweenRepeatedGroups(t *testing.T) {
	op := goipp.Group{Tag: goipp.TagOperationGroup, Attrs: goipp.Attributes{
		goipp.MakeAttribute("attributes-charset", goipp.TagCharset, goipp.String("utf-8")),
	}}
	job := goipp.Group{Tag: goipp.TagJobGroup, Attrs: goipp.Attributes{
		goipp.MakeAttribute("job-id", goipp.TagInteger, goipp.Integer(7)),
	}}
	msg := goipp.NewMessageWithGroups(goipp.DefaultVersion, goipp.Code(goipp.StatusOk), 1,
		goipp.Groups{op, printerGroup("a"), printerGroup("b"), job})

	attrs := Flatten(msg)
	seps := 0
	for _, a := range attrs {
		if a.IsSeparator() {
			seps++
		}
	}
	require.Equal(t, 1, seps)
	require.Len(t, attrs, 7)
	assert.True(t, attrs[3].IsSeparator())
	assert.Equal(t, "job-id", attrs[6].Name)
	assert.Equal(t, goipp.TagJobGroup, attrs[6].Group)
}

func TestRecordsByGroupSingleRun(t *testing.T) {
	attrs := []Attribute{
		attr(goipp.TagOperationGroup, goipp.TagCharset, "attributes-charset", Text("utf-8")),
		attr(goipp.TagPrinterGroup, goipp.TagName, "printer-name", Text("p1")),
		attr(goipp.TagPrinterGroup, goipp.TagEnum, "printer-state", Integer(3)),
		attr(goipp.TagJobGroup, goipp.TagInteger, "job-id", Integer(1)),
	}
	recs := NewParser(nil).RecordsByGroup(attrs, goipp.TagPrinterGroup, KeySpec{})
	require.Len(t, recs, 1)
	assert.Equal(t, Record{"printer-name": Text("p1"), "printer-state": Integer(3)}, recs[0].Record)
}

func TestRecordsByGroupSplitsOnSeparator(t *testing.T) {
	attrs := []Attribute{
		attr(goipp.TagPrinterGroup, goipp.TagName, "printer-name", Text("p1")),
		Separator(),
		attr(goipp.TagPrinterGroup, goipp.TagName, "printer-name", Text("p2")),
		attr(goipp.TagPrinterGroup, goipp.TagText, "printer-info", Text("second")),
		Separator(),
		attr(goipp.TagPrinterGroup, goipp.TagText, "printer-info", Text("keyless")),
	}
	p := NewParser(nil)
	recs := p.RecordsByGroup(attrs, goipp.TagPrinterGroup, KeySpec{Name: "printer-name"})
	require.Len(t, recs, 2)
	assert.Equal(t, Text("p1"), recs[0].Key)
	assert.NotContains(t, recs[0].Record, "printer-name")
	assert.Equal(t, Text("second"), recs[1].Record["printer-info"])

	kept := p.RecordsByGroup(attrs, goipp.TagPrinterGroup, KeySpec{Name: "printer-name", Keep: true})
	assert.Equal(t, Text("p2"), kept[1].Record["printer-name"])

	catalog := StringKeyed(recs)
	assert.Len(t, catalog, 2)
	assert.Contains(t, catalog, "p2")
}

func TestRecordKeepsFirstDuplicate(t *testing.T) {
	rec := NewParser(nil).Record([]Attribute{
		attr(goipp.TagJobGroup, goipp.TagInteger, "job-id", Integer(1)),
		attr(goipp.TagJobGroup, goipp.TagInteger, "job-id", Integer(2)),
	})
	assert.Equal(t, Integer(1), rec["job-id"])
}

func TestParserCardinality(t *testing.T) {
	p := NewParser(nil)

	single := p.Value(attr(goipp.TagPrinterGroup, goipp.TagKeyword, "printer-state-reasons", Text("none")))
	assert.Equal(t, List{Text("none")}, single)

	supported := p.Value(attr(goipp.TagPrinterGroup, goipp.TagKeyword, "sides-supported", Text("one-sided")))
	assert.Equal(t, List{Text("one-sided")}, supported)

	scalar := p.Value(attr(goipp.TagPrinterGroup, goipp.TagText, "printer-info", Text("lobby")))
	assert.Equal(t, Text("lobby"), scalar)

	many := p.Value(attr(goipp.TagPrinterGroup, goipp.TagText, "printer-info", Text("a"), Text("b")))
	assert.Equal(t, List{Text("a"), Text("b")}, many)

	empty := p.Value(attr(goipp.TagPrinterGroup, goipp.TagNoValue, "printer-info"))
	assert.Equal(t, NoValue{Tag: goipp.TagNoValue}, empty)

	local := NewParser(DefaultCardinality.With("printer-info"))
	assert.Equal(t, List{Text("lobby")}, local.Value(attr(goipp.TagPrinterGroup, goipp.TagText, "printer-info", Text("lobby"))))
	assert.Equal(t, CardinalityVersion+"+local", local.Cardinality.Version)
	assert.False(t, DefaultCardinality.IsMulti("printer-info"))
}

func TestParserBannerPair(t *testing.T) {
	p := NewParser(nil)
	one := p.Value(attr(goipp.TagPrinterGroup, goipp.TagName, "job-sheets-default", Text("standard")))
	assert.Equal(t, List{Text("standard"), Text("")}, one)

	two := p.Value(attr(goipp.TagPrinterGroup, goipp.TagName, "job-sheets-default", Text("standard"), Text("secret")))
	assert.Equal(t, List{Text("standard"), Text("secret")}, two)
}

func TestRecordsBySeparator(t *testing.T) {
	attrs := []Attribute{
		attr(goipp.TagOperationGroup, goipp.TagCharset, "attributes-charset", Text("utf-8")),
		attr(goipp.TagEventNotificationGroup, goipp.TagInteger, "notify-sequence-number", Integer(1)),
		Separator(),
		attr(goipp.TagEventNotificationGroup, goipp.TagInteger, "notify-sequence-number", Integer(2)),
		attr(goipp.TagEventNotificationGroup, goipp.TagKeyword, "notify-subscribed-event", Text("job-completed")),
		Separator(),
	}
	recs := NewParser(nil).RecordsBySeparator(attrs, goipp.TagEventNotificationGroup)
	require.Len(t, recs, 2)
	n, ok := recs[1].Int("notify-sequence-number")
	assert.True(t, ok)
	assert.Equal(t, 2, n)
	assert.Equal(t, "job-completed", recs[1].Text("notify-subscribed-event"))
}

func TestRecordDecode(t *testing.T) {
	var out struct {
		Name    string   `ipp:"printer-name"`
		State   int      `ipp:"printer-state"`
		Reasons []string `ipp:"printer-state-reasons"`
		Shared  bool     `ipp:"printer-is-shared"`
	}
	rec := Record{
		"printer-name":          LangText{Text: "office", Lang: "en"},
		"printer-state":         Integer(4),
		"printer-state-reasons": List{Text("media-low-report"), Text("toner-low-warning")},
		"copies-supported":      Range{Lower: 1, Upper: 99},
		"job-sheets-default":    List{Text("none"), Text("none")},
		"printer-is-shared":     Boolean(true),
	}
	plain := rec.Plain()
	assert.Equal(t, "office", plain["printer-name"])
	assert.Equal(t, [2]int{1, 99}, plain["copies-supported"])
	assert.Equal(t, true, plain["printer-is-shared"])
	assert.Len(t, plain["job-sheets-default"], 2)

	require.NoError(t, rec.Decode(&out))
	assert.Equal(t, "office", out.Name)
	assert.Equal(t, 4, out.State)
	assert.Equal(t, []string{"media-low-report", "toner-low-warning"}, out.Reasons)
	assert.True(t, out.Shared)
}
