// Package ppd reads PostScript Printer Description files far enough to list
// their option groups, mark choices, check UI constraints and write the file
// back out with the marked choices as defaults.
package ppd

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

const generalGroup = "General"

type PPD struct {
	NickName          string
	Model             string
	Make              string
	LanguageEncoding  string
	ColorDevice       bool
	Groups            []*Group
	Constraints       []Constraint
	OrderDependencies []OrderDependency

	options map[string]*Option
	enc     encoding.Encoding
	// raw holds the file exactly as read, one entry per line with its
	// terminator, in the file's own encoding.
	raw []string
}

type Group struct {
	Name    string
	Text    string
	Options []*Option
}

type Option struct {
	Keyword      string
	Text         string
	UI           string
	Group        string
	Choices      []Choice
	Default      string
	Custom       bool
	CustomParams []CustomParam

	marked string
}

type Choice struct {
	Choice string
	Text   string
}

type CustomParam struct {
	Name string
	Text string
	Type string
}

type Constraint struct {
	Option1 string
	Choice1 string
	Option2 string
	Choice2 string
}

type OrderDependency struct {
	Order   float64
	Section string
	Option  string
}

// Load parses the PPD file at path.
func Load(path string) (*PPD, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads a PPD. Text in a legacy LanguageEncoding is converted to UTF-8.
func Parse(r io.Reader) (*PPD, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if !bytes.HasPrefix(bytes.TrimLeft(data, "\ufeff \t\r\n"), []byte("*PPD-Adobe:")) {
		return nil, errors.New("ppd: missing *PPD-Adobe header")
	}

	p := &PPD{options: map[string]*Option{}}
	p.LanguageEncoding = scanLanguageEncoding(data)
	p.enc = encodingFor(p.LanguageEncoding)

	br := bufio.NewReader(bytes.NewReader(data))
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			p.raw = append(p.raw, line)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}

	dec := p.enc.NewDecoder()
	groups := map[string]*Group{}
	var current *Group
	for _, raw := range p.raw {
		line, err := dec.String(raw)
		if err != nil {
			return nil, fmt.Errorf("ppd: decode %s: %w", p.LanguageEncoding, err)
		}
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "*") || strings.HasPrefix(line, "*%") {
			continue
		}
		switch {
		case hasKeyword(line, "*UIConstraints:"), hasKeyword(line, "*NonUIConstraints:"):
			if c, ok := parseConstraint(line); ok {
				p.Constraints = append(p.Constraints, c)
			}
		case hasKeyword(line, "*OrderDependency:"):
			if dep, ok := parseOrderDependency(line); ok {
				p.OrderDependencies = append(p.OrderDependencies, dep)
			}
		case hasKeyword(line, "*NickName:"):
			p.NickName = quotedValue(line, "*NickName:")
		case hasKeyword(line, "*ModelName:"):
			p.Model = quotedValue(line, "*ModelName:")
		case hasKeyword(line, "*Manufacturer:"):
			p.Make = quotedValue(line, "*Manufacturer:")
		case hasKeyword(line, "*ColorDevice:"):
			val := quotedValue(line, "*ColorDevice:")
			p.ColorDevice = strings.EqualFold(val, "true") || val == "1" || strings.EqualFold(val, "yes")
		case hasKeyword(line, "*OpenGroup:"):
			name, text := splitLabel(line[len("*OpenGroup:"):])
			if name == "" {
				name = generalGroup
			}
			current = p.group(groups, name, text)
		case hasKeyword(line, "*CloseGroup:"):
			current = nil
		case strings.HasPrefix(line, "*OpenUI "), strings.HasPrefix(line, "*JCLOpenUI "):
			p.openUI(groups, current, line)
		case strings.HasPrefix(line, "*CloseUI"), strings.HasPrefix(line, "*JCLCloseUI"):
		case strings.HasPrefix(line, "*ParamCustom"):
			if opt, param, ok := parseCustomParam(line); ok {
				if o := p.options[opt]; o != nil {
					o.Custom = true
					o.CustomParams = append(o.CustomParams, param)
				}
			}
		case strings.HasPrefix(line, "*Default"):
			key, val, ok := strings.Cut(line[len("*Default"):], ":")
			if ok {
				if o := p.options[strings.TrimSpace(key)]; o != nil {
					o.Default = strings.Trim(strings.TrimSpace(val), "\"")
				}
			}
		case strings.HasPrefix(line, "*Custom"):
			fields := strings.Fields(strings.TrimPrefix(line, "*Custom"))
			if len(fields) > 0 {
				if o := p.options[fields[0]]; o != nil {
					o.Custom = true
				}
			}
		default:
			key, choice, text, ok := parseChoiceLine(line)
			if !ok {
				continue
			}
			if o := p.options[key]; o != nil && o.Choice(choice) == nil {
				o.Choices = append(o.Choices, Choice{Choice: choice, Text: text})
			}
		}
	}
	return p, nil
}

func (p *PPD) group(groups map[string]*Group, name, text string) *Group {
	if g, ok := groups[name]; ok {
		return g
	}
	if text == "" {
		text = name
	}
	g := &Group{Name: name, Text: text}
	p.Groups = append(p.Groups, g)
	groups[name] = g
	return g
}

func (p *PPD) openUI(groups map[string]*Group, current *Group, line string) {
	left, ui, _ := strings.Cut(line, ":")
	left = strings.TrimSpace(left)
	left = strings.TrimPrefix(left, "*JCLOpenUI")
	left = strings.TrimPrefix(left, "*OpenUI")
	left = strings.TrimPrefix(strings.TrimSpace(left), "*")
	key, text := splitLabel(left)
	if key == "" {
		return
	}
	if text == "" {
		text = key
	}
	g := current
	if g == nil {
		g = p.group(groups, generalGroup, "")
	}
	opt := &Option{Keyword: key, Text: text, UI: normalizeUI(ui), Group: g.Name}
	g.Options = append(g.Options, opt)
	p.options[key] = opt
}

// Option looks up an option by keyword.
func (p *PPD) Option(keyword string) *Option {
	return p.options[keyword]
}

func (o *Option) Choice(name string) *Choice {
	for i := range o.Choices {
		if o.Choices[i].Choice == name {
			return &o.Choices[i]
		}
	}
	return nil
}

// Marked returns the currently marked choice, or "".
func (o *Option) Marked() string {
	return o.marked
}

// MarkDefaults marks the default choice of every option.
func (p *PPD) MarkDefaults() {
	for _, o := range p.options {
		o.marked = ""
		if o.Choice(o.Default) != nil {
			o.marked = o.Default
		}
	}
}

// MarkOption marks a choice and returns the number of conflicts that result.
// PageSize also marks PageRegion. Unknown options and choices are ignored.
func (p *PPD) MarkOption(keyword, choice string) int {
	o := p.options[keyword]
	if o != nil && o.Choice(choice) != nil {
		o.marked = choice
		if keyword == "PageSize" {
			if region := p.options["PageRegion"]; region != nil && region.Choice(choice) != nil {
				region.marked = choice
			}
		}
	}
	return p.Conflicts()
}

// Conflicts counts the constraints violated by the marked choices.
func (p *PPD) Conflicts() int {
	n := 0
	for _, c := range p.Constraints {
		if p.constrained(c.Option1, c.Choice1) && p.constrained(c.Option2, c.Choice2) {
			n++
		}
	}
	return n
}

func (p *PPD) constrained(keyword, choice string) bool {
	o := p.options[keyword]
	if o == nil || o.marked == "" {
		return false
	}
	if choice != "" {
		return o.marked == choice
	}
	switch strings.ToLower(o.marked) {
	case "none", "off", "false":
		return false
	}
	return true
}

// NondefaultsMarked reports whether any option has a marked choice other
// than its default.
func (p *PPD) NondefaultsMarked() bool {
	for _, o := range p.options {
		if o.marked != "" && o.marked != o.Default {
			return true
		}
	}
	return false
}

// WriteTo writes the file as read, with each *Default line rewritten to the
// marked choice. An unmarked PageRegion takes the PageSize choice.
func (p *PPD) WriteTo(w io.Writer) (int64, error) {
	enc := p.enc.NewEncoder()
	var total int64
	for _, line := range p.raw {
		if strings.HasPrefix(line, "*Default") {
			if out, ok := p.defaultLine(line); ok {
				encoded, err := enc.String(out)
				if err != nil {
					return total, err
				}
				line = encoded
			}
		}
		n, err := io.WriteString(w, line)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (p *PPD) defaultLine(line string) (string, bool) {
	rest := line[len("*Default"):]
	end := strings.IndexFunc(rest, func(r rune) bool {
		return r == ':' || r == ' ' || r == '\t' || r == '\r' || r == '\n'
	})
	if end < 0 {
		end = len(rest)
	}
	keyword := rest[:end]
	choice := ""
	if o := p.options[keyword]; o != nil {
		choice = o.marked
	}
	if choice == "" && keyword == "PageRegion" {
		if size := p.options["PageSize"]; size != nil {
			choice = size.marked
		}
	}
	if choice == "" {
		return "", false
	}
	out := "*Default" + keyword + ": " + choice
	if strings.Contains(rest[end:], "\r") {
		out += "\r"
	}
	return out + "\n", true
}

func scanLanguageEncoding(data []byte) string {
	const key = "*LanguageEncoding:"
	idx := bytes.Index(data, []byte(key))
	if idx < 0 {
		return ""
	}
	rest := data[idx+len(key):]
	if nl := bytes.IndexByte(rest, '\n'); nl >= 0 {
		rest = rest[:nl]
	}
	return strings.Trim(strings.TrimSpace(string(rest)), "\"")
}

func encodingFor(name string) encoding.Encoding {
	switch strings.ToLower(name) {
	case "isolatin1":
		return charmap.ISO8859_1
	case "isolatin2":
		return charmap.ISO8859_2
	case "isolatin5":
		return charmap.ISO8859_9
	case "windowsansi":
		return charmap.Windows1252
	case "macstandard":
		return charmap.Macintosh
	default:
		return encoding.Nop
	}
}

func hasKeyword(line, key string) bool {
	return strings.HasPrefix(line, key)
}

func quotedValue(line, key string) string {
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(line[len(key):]), "\""))
}

func splitLabel(value string) (string, string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", ""
	}
	if name, text, ok := strings.Cut(value, "/"); ok {
		return strings.TrimSpace(name), strings.Trim(strings.TrimSpace(text), "\"")
	}
	return value, ""
}

func normalizeUI(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	switch {
	case strings.Contains(value, "boolean"):
		return "boolean"
	case strings.Contains(value, "pickmany"):
		return "pickmany"
	default:
		return "pickone"
	}
}

func parseChoiceLine(line string) (string, string, string, bool) {
	trimmed := strings.TrimPrefix(line, "*")
	left, _, ok := strings.Cut(trimmed, ":")
	if !ok {
		return "", "", "", false
	}
	parts := strings.Fields(strings.TrimSpace(left))
	if len(parts) < 2 {
		return "", "", "", false
	}
	choice, text := splitLabel(strings.Join(parts[1:], " "))
	if choice == "" {
		return "", "", "", false
	}
	if text == "" {
		text = choice
	}
	return parts[0], choice, text, true
}

func parseCustomParam(line string) (string, CustomParam, bool) {
	rest := strings.TrimSpace(strings.TrimPrefix(line, "*ParamCustom"))
	left, right, _ := strings.Cut(rest, ":")
	fields := strings.Fields(left)
	if len(fields) < 2 {
		return "", CustomParam{}, false
	}
	name, text := splitLabel(strings.Join(fields[1:], " "))
	if name == "" {
		return "", CustomParam{}, false
	}
	typ := "text"
	if tokens := strings.Fields(right); len(tokens) > 1 {
		typ = strings.ToLower(tokens[1])
	}
	if strings.EqualFold(name, "Units") {
		typ = "units"
	}
	return fields[0], CustomParam{Name: name, Text: text, Type: typ}, true
}

func parseConstraint(line string) (Constraint, bool) {
	_, raw, ok := strings.Cut(line, ":")
	if !ok {
		return Constraint{}, false
	}
	fields := strings.Fields(strings.Trim(strings.TrimSpace(raw), "\""))
	if len(fields) < 2 {
		return Constraint{}, false
	}
	opt1 := strings.TrimPrefix(fields[0], "*")
	switch len(fields) {
	case 2:
		return Constraint{Option1: opt1, Option2: strings.TrimPrefix(fields[1], "*")}, true
	case 3:
		if strings.HasPrefix(fields[1], "*") {
			return Constraint{Option1: opt1, Option2: strings.TrimPrefix(fields[1], "*"), Choice2: fields[2]}, true
		}
		return Constraint{Option1: opt1, Choice1: fields[1], Option2: strings.TrimPrefix(fields[2], "*")}, true
	default:
		return Constraint{Option1: opt1, Choice1: fields[1], Option2: strings.TrimPrefix(fields[2], "*"), Choice2: fields[3]}, true
	}
}

func parseOrderDependency(line string) (OrderDependency, bool) {
	_, raw, ok := strings.Cut(line, ":")
	if !ok {
		return OrderDependency{}, false
	}
	fields := strings.Fields(raw)
	if len(fields) < 3 {
		return OrderDependency{}, false
	}
	order, _ := strconv.ParseFloat(fields[0], 64)
	return OrderDependency{Order: order, Section: fields[1], Option: strings.TrimPrefix(fields[2], "*")}, true
}
