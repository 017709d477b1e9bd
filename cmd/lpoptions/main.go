package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"cupsbridge/internal/cliutil"
	"cupsbridge/internal/model"
	"cupsbridge/internal/ppd"
	"cupsbridge/internal/session"
	"cupsbridge/internal/store"
)

type options struct {
	conn cliutil.ConnFlags

	dest    string
	setDef  string
	remove  string
	listPPD bool
	set     []string
	unset   []string
}

func main() {
	if err := newRootCmd(os.Stdin, os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "lpoptions:", err)
		os.Exit(1)
	}
}

func newRootCmd(in io.Reader, out io.Writer) *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "lpoptions [flags]",
		Short:         "Show and change per-user destination options",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts.conn.UseStore = true
			opts.conn.Setup()
			defer func() { _ = opts.conn.Finish() }()

			ctx := cmd.Context()
			s, err := opts.conn.Open(ctx, in, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer s.Close()
			return run(ctx, s, opts.conn.Store(), opts, out)
		},
	}
	opts.conn.Register(cmd)
	fl := cmd.Flags()
	fl.StringVarP(&opts.dest, "printer", "p", "", "destination `name[/instance]`")
	fl.StringVarP(&opts.setDef, "default", "d", "", "make `name[/instance]` your default")
	fl.StringVarP(&opts.remove, "remove-instance", "x", "", "remove the options of `name[/instance]`")
	fl.BoolVarP(&opts.listPPD, "list", "l", false, "list the PPD options of the destination")
	fl.StringArrayVarP(&opts.set, "option", "o", nil, "set `name=value`")
	fl.StringArrayVarP(&opts.unset, "remove", "r", nil, "remove option `name`")
	return cmd
}

func run(ctx context.Context, s *session.Session, db *store.Store, o *options, out io.Writer) error {
	if o.remove != "" {
		return db.RemoveInstance(ctx, model.ParseKey(o.remove))
	}

	dests, err := s.GetDests(ctx)
	if err != nil {
		return err
	}
	key, err := pickDest(dests, o)
	if err != nil {
		return err
	}
	if o.setDef != "" {
		if err := db.SetDefault(ctx, key); err != nil {
			return err
		}
	}

	for _, raw := range o.set {
		name, value, ok := strings.Cut(raw, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return fmt.Errorf("bad option %q, want name=value", raw)
		}
		if err := db.SetOption(ctx, key, strings.TrimSpace(name), value); err != nil {
			return err
		}
	}
	for _, name := range o.unset {
		if err := db.DeleteOption(ctx, key, name); err != nil {
			return err
		}
	}
	if len(o.set) > 0 || len(o.unset) > 0 || o.setDef != "" {
		return nil
	}

	d := dests[key]
	if d == nil {
		return fmt.Errorf("%s: unknown destination", key)
	}
	if o.listPPD {
		return listPPD(ctx, s, d, out)
	}
	fmt.Fprintln(out, formatOptions(d.Options))
	return nil
}

// pickDest resolves -p or -d, falling back to the default destination. A
// new instance is allowed when its printer exists.
func pickDest(dests map[model.DestKey]*model.Destination, o *options) (model.DestKey, error) {
	name := o.dest
	if name == "" {
		name = o.setDef
	}
	if name == "" {
		d := dests[model.DestKey{}]
		if d == nil {
			return model.DestKey{}, fmt.Errorf("no default destination")
		}
		return d.Key(), nil
	}
	key := model.ParseKey(name)
	if dests[model.Key(key.Name, "")] == nil {
		return model.DestKey{}, fmt.Errorf("%s: unknown destination", key.Name)
	}
	return key, nil
}

func formatOptions(opts map[string]string) string {
	names := make([]string, 0, len(opts))
	for name := range opts {
		names = append(names, name)
	}
	slices.Sort(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		v := opts[name]
		if v == "" || strings.ContainsAny(v, " \t'\"\\") {
			v = "'" + strings.ReplaceAll(v, "'", `\'`) + "'"
		}
		parts = append(parts, name+"="+v)
	}
	return strings.Join(parts, " ")
}

// listPPD prints each PPD option with its choices, starring the one the
// destination's options select.
func listPPD(ctx context.Context, s *session.Session, d *model.Destination, out io.Writer) error {
	path, err := s.GetPPD(ctx, d.Name)
	if err != nil {
		return err
	}
	defer os.Remove(path)
	p, err := ppd.Load(path)
	if err != nil {
		return fmt.Errorf("read PPD: %w", err)
	}
	p.MarkDefaults()
	for name, value := range d.Options {
		if p.Option(name) != nil {
			p.MarkOption(name, value)
		}
	}
	for _, g := range p.Groups {
		for _, opt := range g.Options {
			text := opt.Text
			if text == "" {
				text = opt.Keyword
			}
			fmt.Fprintf(out, "%s/%s:", opt.Keyword, text)
			for _, c := range opt.Choices {
				if c.Choice == opt.Marked() {
					fmt.Fprintf(out, " *%s", c.Choice)
				} else {
					fmt.Fprintf(out, " %s", c.Choice)
				}
			}
			fmt.Fprintln(out)
		}
	}
	return nil
}
