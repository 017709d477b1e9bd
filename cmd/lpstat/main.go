package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"cupsbridge/internal/cliutil"
	"cupsbridge/internal/ippattr"
	"cupsbridge/internal/model"
	"cupsbridge/internal/session"
)

type options struct {
	conn cliutil.ConnFlags

	showDefault   bool
	showPrinters  bool
	showAccepting bool
	showDevices   bool
	showClasses   bool
	showJobs      bool
	showDests     bool
	showSummary   bool
	showAll       bool
	showPPDs      bool
	long          bool
	yaml          bool
	whichJobs     string
	ppdMake       string
	users         []string
	destFilter    []string
}

func main() {
	if err := newRootCmd(os.Stdin, os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "lpstat:", err)
		os.Exit(1)
	}
}

func newRootCmd(in io.Reader, out io.Writer) *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "lpstat [flags] [destination...]",
		Short:         "Show printer, class, job and driver status",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.destFilter = args
			if err := opts.normalize(); err != nil {
				return err
			}
			opts.conn.Setup()
			defer func() { _ = opts.conn.Finish() }()

			ctx := cmd.Context()
			s, err := opts.conn.Open(ctx, in, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer s.Close()
			rep, err := collect(ctx, s, opts)
			if err != nil {
				return err
			}
			if opts.yaml {
				return cliutil.PrintYAML(out, rep)
			}
			writeText(out, rep, opts)
			return nil
		},
	}
	opts.conn.Register(cmd)
	fl := cmd.Flags()
	fl.BoolVarP(&opts.showDefault, "default", "d", false, "show the default destination")
	fl.BoolVarP(&opts.showPrinters, "printers", "p", false, "show printer state")
	fl.BoolVarP(&opts.showAccepting, "accepting", "a", false, "show whether destinations accept jobs")
	fl.BoolVarP(&opts.showDevices, "devices", "v", false, "show printer devices")
	fl.BoolVarP(&opts.showClasses, "classes", "c", false, "show classes and their members")
	fl.BoolVarP(&opts.showJobs, "jobs", "o", false, "show jobs")
	fl.BoolVarP(&opts.showDests, "dests", "e", false, "show destinations and user instances")
	fl.BoolVarP(&opts.showSummary, "summary", "s", false, "show a status summary")
	fl.BoolVarP(&opts.showAll, "all", "t", false, "show everything")
	fl.BoolVar(&opts.showPPDs, "ppds", false, "list the drivers the server has")
	fl.StringVar(&opts.ppdMake, "make", "", "limit --ppds to one manufacturer")
	fl.BoolVarP(&opts.long, "long", "l", false, "long listing")
	fl.BoolVar(&opts.yaml, "yaml", false, "print YAML instead of text")
	fl.StringVarP(&opts.whichJobs, "which-jobs", "W", "not-completed", "completed, not-completed or all")
	fl.StringSliceVarP(&opts.users, "users", "u", nil, "only jobs of these users")
	return cmd
}

func (o *options) normalize() error {
	switch o.whichJobs {
	case "completed", "not-completed", "all":
	default:
		return fmt.Errorf(`need "completed", "not-completed" or "all" after -W`)
	}
	if o.showAll {
		o.showSummary, o.showJobs, o.showDevices, o.showAccepting = true, true, true, true
	}
	if o.showSummary {
		o.showDefault, o.showPrinters, o.showClasses = true, true, true
	}
	if !o.showDefault && !o.showPrinters && !o.showAccepting && !o.showDevices &&
		!o.showClasses && !o.showJobs && !o.showDests && !o.showPPDs {
		o.showJobs = true
	}
	o.conn.UseStore = o.showDests
	return nil
}

type report struct {
	Default  string          `yaml:"default,omitempty"`
	Printers []model.Printer `yaml:"printers,omitempty"`
	Classes  []model.Printer `yaml:"classes,omitempty"`
	Jobs     []jobView       `yaml:"jobs,omitempty"`
	Dests    []destView      `yaml:"destinations,omitempty"`
	PPDs     []ppdView       `yaml:"ppds,omitempty"`
}

type jobView struct {
	model.Job `yaml:",inline"`
	Dest      string `yaml:"destination"`
}

type destView struct {
	Name      string            `yaml:"name"`
	Instance  string            `yaml:"instance,omitempty"`
	IsDefault bool              `yaml:"default,omitempty"`
	Options   map[string]string `yaml:"options,omitempty"`
}

type ppdView struct {
	Name         string `yaml:"name"`
	MakeAndModel string `yaml:"make_and_model"`
	Language     string `yaml:"language,omitempty"`
}

func collect(ctx context.Context, s *session.Session, o *options) (report, error) {
	var rep report
	if o.showDefault {
		name, err := s.GetDefault(ctx)
		if err != nil {
			return rep, err
		}
		rep.Default = name
	}
	if o.showPrinters || o.showAccepting || o.showDevices {
		recs, err := s.GetPrinters(ctx)
		if err != nil {
			return rep, err
		}
		if rep.Printers, err = decodePrinters(recs, o.destFilter); err != nil {
			return rep, err
		}
	}
	if o.showClasses {
		recs, err := s.GetClasses(ctx)
		if err != nil {
			return rep, err
		}
		if rep.Classes, err = decodePrinters(recs, o.destFilter); err != nil {
			return rep, err
		}
	}
	if o.showJobs {
		jobs, err := collectJobs(ctx, s, o)
		if err != nil {
			return rep, err
		}
		rep.Jobs = jobs
	}
	if o.showDests {
		dests, err := s.GetDests(ctx)
		if err != nil {
			return rep, err
		}
		rep.Dests = destViews(dests)
	}
	if o.showPPDs {
		recs, err := s.GetPPDs(ctx, session.PPDQuery{Make: o.ppdMake})
		if err != nil {
			return rep, err
		}
		rep.PPDs = ppdViews(recs)
	}
	return rep, nil
}

func decodePrinters(recs map[string]ippattr.Record, filter []string) ([]model.Printer, error) {
	out := make([]model.Printer, 0, len(recs))
	for name, rec := range recs {
		if !matches(filter, name) {
			continue
		}
		var p model.Printer
		if err := rec.Decode(&p); err != nil {
			return nil, fmt.Errorf("printer %s: %w", name, err)
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func collectJobs(ctx context.Context, s *session.Session, o *options) ([]jobView, error) {
	q := session.JobQuery{Which: o.whichJobs}
	if len(o.destFilter) == 1 {
		q.Printer = o.destFilter[0]
	}
	recs, err := s.GetJobs(ctx, q)
	if err != nil {
		return nil, err
	}
	ids := make([]int, 0, len(recs))
	for id := range recs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	out := make([]jobView, 0, len(ids))
	for _, id := range ids {
		var j model.Job
		if err := recs[id].Decode(&j); err != nil {
			return nil, fmt.Errorf("job %d: %w", id, err)
		}
		v := jobView{Job: j, Dest: path.Base(j.PrinterURI)}
		if !matches(o.destFilter, v.Dest) || (len(o.users) > 0 && !slices.Contains(o.users, j.User)) {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

func destViews(dests map[model.DestKey]*model.Destination) []destView {
	out := make([]destView, 0, len(dests))
	for key, d := range dests {
		if key.IsDefaultAlias() {
			continue
		}
		out = append(out, destView{Name: d.Name, Instance: d.Instance, IsDefault: d.IsDefault, Options: d.Options})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Instance < out[j].Instance
	})
	return out
}

// ppdViews orders drivers by make and model the way lpinfo does.
func ppdViews(recs map[string]ippattr.Record) []ppdView {
	out := make([]ppdView, 0, len(recs))
	for name, rec := range recs {
		out = append(out, ppdView{
			Name:         name,
			MakeAndModel: rec.Text("ppd-make-and-model"),
			Language:     rec.Text("ppd-natural-language"),
		})
	}
	slices.SortFunc(out, func(a, b ppdView) int {
		if c := ippattr.ModelCompare(a.MakeAndModel, b.MakeAndModel); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})
	return out
}

func writeText(w io.Writer, rep report, o *options) {
	if o.showDefault {
		if rep.Default != "" {
			fmt.Fprintf(w, "system default destination: %s\n", rep.Default)
		} else {
			fmt.Fprintln(w, "no system default destination")
		}
	}
	if o.showPrinters {
		for _, p := range rep.Printers {
			writePrinter(w, p, o.long)
		}
	}
	if o.showClasses {
		for _, c := range rep.Classes {
			fmt.Fprintf(w, "members of class %s:\n", c.Name)
			if len(c.Members) == 0 {
				fmt.Fprintln(w, "\tunknown")
			}
			for _, m := range c.Members {
				fmt.Fprintf(w, "\t%s\n", m)
			}
		}
	}
	if o.showAccepting {
		for _, p := range rep.Printers {
			if p.Accepting {
				fmt.Fprintf(w, "%s accepting requests\n", p.Name)
			} else {
				fmt.Fprintf(w, "%s not accepting requests -\n\t%s\n", p.Name, orDefault(p.StateMessage, "reason unknown"))
			}
		}
	}
	if o.showDevices {
		for _, p := range rep.Printers {
			if p.IsClass() {
				continue
			}
			fmt.Fprintf(w, "device for %s: %s\n", p.Name, p.DeviceURI)
		}
	}
	if o.showDests && len(rep.Dests) > 0 {
		t := cliutil.NewTable("Destination", "Default", "Options")
		for _, d := range rep.Dests {
			name := d.Name
			if d.Instance != "" {
				name += "/" + d.Instance
			}
			def := ""
			if d.IsDefault {
				def = "yes"
			}
			t.AddRow(name, def, strconv.Itoa(len(d.Options)))
		}
		cliutil.PrintTable(w, t)
	}
	if o.showJobs && len(rep.Jobs) > 0 {
		t := cliutil.NewTable("Job", "User", "Size", "Submitted", "State")
		for _, j := range rep.Jobs {
			t.AddRow(fmt.Sprintf("%s-%d", j.Dest, j.ID), j.User, strconv.Itoa(j.Size*1024),
				j.CreatedAt().Format(time.ANSIC), j.StateName())
		}
		cliutil.PrintTable(w, t)
	}
	if o.showPPDs && len(rep.PPDs) > 0 {
		t := cliutil.NewTable("Driver", "Make and model")
		for _, p := range rep.PPDs {
			t.AddRow(p.Name, p.MakeAndModel)
		}
		cliutil.PrintTable(w, t)
	}
}

func writePrinter(w io.Writer, p model.Printer, long bool) {
	switch p.StateName() {
	case "stopped":
		fmt.Fprintf(w, "printer %s disabled -\n\t%s\n", p.Name, orDefault(p.StateMessage, "reason unknown"))
	case "processing":
		fmt.Fprintf(w, "printer %s is printing.  enabled\n", p.Name)
	default:
		fmt.Fprintf(w, "printer %s is idle.  enabled\n", p.Name)
	}
	if !long {
		return
	}
	fmt.Fprintf(w, "\tDescription: %s\n", p.Info)
	if len(p.StateReasons) > 0 {
		fmt.Fprintf(w, "\tAlerts: %s\n", strings.Join(p.StateReasons, " "))
	}
	fmt.Fprintf(w, "\tLocation: %s\n", p.Location)
	if p.Type&model.PrinterTypeRemote != 0 {
		fmt.Fprintln(w, "\tConnection: remote")
	} else {
		fmt.Fprintln(w, "\tConnection: direct")
	}
	if p.MakeModel != "" {
		fmt.Fprintf(w, "\tInterface: %s\n", p.MakeModel)
	}
}

func matches(filter []string, name string) bool {
	if len(filter) == 0 {
		return true
	}
	for _, f := range filter {
		if strings.EqualFold(f, name) {
			return true
		}
	}
	return false
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
