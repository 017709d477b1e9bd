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
	"cupsbridge/internal/ippattr"
	"cupsbridge/internal/session"
)

type options struct {
	conn cliutil.ConnFlags

	devices  bool
	models   bool
	long     bool
	yaml     bool
	include  []string
	exclude  []string
	timeout  int
	makeMod  string
	product  string
	language string
	deviceID string
}

type device struct {
	URI      string `yaml:"uri"`
	Class    string `yaml:"class"`
	Info     string `yaml:"info,omitempty"`
	Model    string `yaml:"make_and_model,omitempty"`
	DeviceID string `yaml:"device_id,omitempty"`
	Location string `yaml:"location,omitempty"`
}

type driver struct {
	Name     string `yaml:"name"`
	Model    string `yaml:"make_and_model"`
	Language string `yaml:"language,omitempty"`
	DeviceID string `yaml:"device_id,omitempty"`
}

func main() {
	if err := newRootCmd(os.Stdin, os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "lpinfo:", err)
		os.Exit(1)
	}
}

func newRootCmd(in io.Reader, out io.Writer) *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "lpinfo [flags]",
		Short:         "List the devices and drivers the server knows",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.devices == opts.models {
				return fmt.Errorf("give exactly one of -v and -m")
			}
			opts.conn.Setup()
			defer func() { _ = opts.conn.Finish() }()

			ctx := cmd.Context()
			s, err := opts.conn.Open(ctx, in, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer s.Close()
			if opts.devices {
				return listDevices(ctx, s, opts, out)
			}
			return listDrivers(ctx, s, opts, out)
		},
	}
	opts.conn.Register(cmd)
	fl := cmd.Flags()
	fl.BoolVarP(&opts.devices, "devices", "v", false, "list devices")
	fl.BoolVarP(&opts.models, "models", "m", false, "list drivers")
	fl.BoolVarP(&opts.long, "long", "l", false, "long listing")
	fl.BoolVar(&opts.yaml, "yaml", false, "print YAML instead of text")
	fl.StringSliceVar(&opts.include, "include-schemes", nil, "only these schemes")
	fl.StringSliceVar(&opts.exclude, "exclude-schemes", nil, "skip these schemes")
	fl.IntVar(&opts.timeout, "timeout", 0, "device discovery timeout in `seconds`")
	fl.StringVar(&opts.makeMod, "make-and-model", "", "drivers matching this make and model")
	fl.StringVar(&opts.product, "product", "", "drivers for this product")
	fl.StringVar(&opts.language, "language", "", "drivers in this language")
	fl.StringVar(&opts.deviceID, "device-id", "", "drivers matching this IEEE 1284 device ID")
	return cmd
}

func listDevices(ctx context.Context, s *session.Session, o *options, out io.Writer) error {
	recs, err := s.GetDevices(ctx, session.DeviceQuery{
		Timeout:        o.timeout,
		IncludeSchemes: o.include,
		ExcludeSchemes: o.exclude,
	})
	if err != nil {
		return err
	}
	list := make([]device, 0, len(recs))
	for uri, rec := range recs {
		list = append(list, device{
			URI:      uri,
			Class:    rec.Text("device-class"),
			Info:     rec.Text("device-info"),
			Model:    rec.Text("device-make-and-model"),
			DeviceID: rec.Text("device-id"),
			Location: rec.Text("device-location"),
		})
	}
	slices.SortFunc(list, func(a, b device) int { return strings.Compare(a.URI, b.URI) })
	if o.yaml {
		return cliutil.PrintYAML(out, list)
	}
	for _, d := range list {
		if !o.long {
			fmt.Fprintf(out, "%s %s\n", d.Class, d.URI)
			continue
		}
		fmt.Fprintf(out, "Device: uri = %s\n        class = %s\n        info = %s\n        make-and-model = %s\n        device-id = %s\n        location = %s\n",
			d.URI, d.Class, d.Info, d.Model, d.DeviceID, d.Location)
	}
	return nil
}

func listDrivers(ctx context.Context, s *session.Session, o *options, out io.Writer) error {
	recs, err := s.GetPPDs(ctx, session.PPDQuery{
		IncludeSchemes: o.include,
		ExcludeSchemes: o.exclude,
		MakeAndModel:   o.makeMod,
		Product:        o.product,
		Language:       o.language,
		DeviceID:       o.deviceID,
	})
	if err != nil {
		return err
	}
	list := make([]driver, 0, len(recs))
	for name, rec := range recs {
		list = append(list, driver{
			Name:     name,
			Model:    rec.Text("ppd-make-and-model"),
			Language: rec.Text("ppd-natural-language"),
			DeviceID: rec.Text("ppd-device-id"),
		})
	}
	slices.SortFunc(list, func(a, b driver) int {
		if c := ippattr.ModelCompare(a.Model, b.Model); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})
	if o.yaml {
		return cliutil.PrintYAML(out, list)
	}
	if !o.long {
		t := cliutil.NewTable()
		for _, d := range list {
			t.AddRow(d.Name, d.Model)
		}
		cliutil.PrintTable(out, t)
		return nil
	}
	for _, d := range list {
		fmt.Fprintf(out, "Model:  name = %s\n        natural_language = %s\n        make-and-model = %s\n        device-id = %s\n",
			d.Name, d.Language, d.Model, d.DeviceID)
	}
	return nil
}
