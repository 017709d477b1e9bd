package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"cupsbridge/internal/cliutil"
	"cupsbridge/internal/ipperr"
	"cupsbridge/internal/ppd"
	"cupsbridge/internal/session"
)

type options struct {
	conn cliutil.ConnFlags

	printer     string
	deleteName  string
	defaultName string
	deviceURI   string
	ppdName     string
	ppdFile     string
	info        string
	location    string
	classAdd    string
	classRemove string
	users       string
	enable      bool
	extra       []string
	remove      []string
}

func main() {
	if err := newRootCmd(os.Stdin, os.Stderr).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "lpadmin:", err)
		os.Exit(1)
	}
}

func newRootCmd(in io.Reader, errOut io.Writer) *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "lpadmin [flags]",
		Short:         "Configure printer and class queues",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts.conn.Setup()
			defer func() { _ = opts.conn.Finish() }()

			ctx := cmd.Context()
			s, err := opts.conn.Open(ctx, in, errOut)
			if err != nil {
				return err
			}
			defer s.Close()
			return run(ctx, s, opts, errOut)
		},
	}
	opts.conn.Register(cmd)
	fl := cmd.Flags()
	fl.StringVarP(&opts.printer, "printer", "p", "", "printer `name` to add or modify")
	fl.StringVarP(&opts.deleteName, "delete", "x", "", "delete the printer or class `name`")
	fl.StringVarP(&opts.defaultName, "default", "d", "", "make `name` the server default")
	fl.StringVarP(&opts.deviceURI, "device", "v", "", "device `uri`")
	fl.StringVarP(&opts.ppdName, "model", "m", "", "server driver `ppd-name`")
	fl.StringVarP(&opts.ppdFile, "ppd", "P", "", "local PPD `file`")
	fl.StringVarP(&opts.info, "description", "D", "", "printer description")
	fl.StringVarP(&opts.location, "location", "L", "", "printer location")
	fl.StringVarP(&opts.classAdd, "add-to-class", "c", "", "add the printer to `class`")
	fl.StringVarP(&opts.classRemove, "remove-from-class", "r", "", "remove the printer from `class`")
	fl.StringVarP(&opts.users, "users", "u", "", "allow:user,... or deny:user,...")
	fl.BoolVarP(&opts.enable, "enable", "E", false, "enable the printer and accept jobs")
	fl.StringArrayVarP(&opts.extra, "option", "o", nil, "set a default `name=value`")
	fl.StringArrayVarP(&opts.remove, "remove-option", "R", nil, "remove the default for `name`")
	return cmd
}

func run(ctx context.Context, s *session.Session, o *options, errOut io.Writer) error {
	if o.deleteName != "" {
		return s.DeletePrinter(ctx, o.deleteName)
	}
	if o.printer == "" {
		if o.defaultName != "" {
			return s.SetDefault(ctx, o.defaultName)
		}
		return fmt.Errorf("no printer given with -p")
	}

	spec := session.PrinterSpec{
		PPDFile:  o.ppdFile,
		PPDName:  o.ppdName,
		Info:     o.info,
		Location: o.location,
		Device:   o.deviceURI,
	}
	defaults, ppdOpts, err := o.splitOptions()
	if err != nil {
		return err
	}
	if len(ppdOpts) > 0 {
		tmp, err := markPPD(ctx, s, o, ppdOpts, errOut)
		if err != nil {
			return err
		}
		if tmp != "" {
			defer os.Remove(tmp)
			spec.PPDFile, spec.PPDName = tmp, ""
		} else {
			defaults = append(defaults, ppdOpts...)
		}
	}
	if spec != (session.PrinterSpec{}) {
		if err := s.AddPrinter(ctx, o.printer, spec); err != nil {
			return err
		}
	}

	if o.classAdd != "" {
		if err := s.AddPrinterToClass(ctx, o.printer, o.classAdd); err != nil {
			return err
		}
	}
	if o.classRemove != "" {
		if err := s.DeletePrinterFromClass(ctx, o.printer, o.classRemove); err != nil {
			return err
		}
	}
	if o.users != "" {
		if err := setUsers(ctx, s, o.printer, o.users); err != nil {
			return err
		}
	}
	for _, kv := range defaults {
		if err := setDefault(ctx, s, o.printer, kv[0], kv[1]); err != nil {
			return err
		}
	}
	for _, name := range o.remove {
		if err := s.DeletePrinterOptionDefault(ctx, o.printer, name); err != nil {
			return err
		}
	}
	if o.enable {
		if err := s.EnablePrinter(ctx, o.printer); err != nil {
			return err
		}
		if err := s.AcceptJobs(ctx, o.printer); err != nil {
			return err
		}
	}
	if o.defaultName != "" {
		return s.SetDefault(ctx, o.defaultName)
	}
	return nil
}

// splitOptions parses the -o values. Names that look like PPD keywords are
// returned separately so they can be applied to the PPD itself.
func (o *options) splitOptions() (defaults, ppdOpts [][2]string, err error) {
	for _, raw := range o.extra {
		name, value, ok := strings.Cut(raw, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, nil, fmt.Errorf("bad option %q, want name=value", raw)
		}
		kv := [2]string{name, value}
		if isPPDKeyword(name) {
			ppdOpts = append(ppdOpts, kv)
		} else {
			defaults = append(defaults, kv)
		}
	}
	return defaults, ppdOpts, nil
}

// isPPDKeyword reports whether name is a PPD main keyword (PageSize,
// InputSlot) rather than an IPP attribute name (media, sides-default).
func isPPDKeyword(name string) bool {
	return name != "" && name[0] >= 'A' && name[0] <= 'Z' && !strings.Contains(name, "-")
}

// markPPD loads the queue's PPD, marks the requested choices and writes the
// result to a temporary file. It returns "" when the queue has no PPD.
func markPPD(ctx context.Context, s *session.Session, o *options, marks [][2]string, errOut io.Writer) (string, error) {
	src := o.ppdFile
	switch {
	case src != "":
	case o.ppdName != "":
		path, err := s.GetServerPPD(ctx, o.ppdName)
		if err != nil {
			return "", err
		}
		defer os.Remove(path)
		src = path
	default:
		path, err := s.GetPPD(ctx, o.printer)
		if ipperr.HTTPStatus(err) == http.StatusNotFound {
			return "", nil
		}
		if err != nil {
			return "", err
		}
		defer os.Remove(path)
		src = path
	}

	p, err := ppd.Load(src)
	if err != nil {
		return "", fmt.Errorf("read PPD: %w", err)
	}
	p.MarkDefaults()
	for _, kv := range marks {
		opt := p.Option(kv[0])
		if opt == nil || opt.Choice(kv[1]) == nil {
			return "", fmt.Errorf("PPD has no choice %s=%s", kv[0], kv[1])
		}
		if n := p.MarkOption(kv[0], kv[1]); n > 0 {
			fmt.Fprintf(errOut, "lpadmin: %s=%s conflicts with %d other setting(s)\n", kv[0], kv[1], n)
		}
	}

	out, err := os.CreateTemp("", "lpadmin-*.ppd")
	if err != nil {
		return "", err
	}
	if _, err := p.WriteTo(out); err != nil {
		out.Close()
		os.Remove(out.Name())
		return "", err
	}
	if err := out.Close(); err != nil {
		os.Remove(out.Name())
		return "", err
	}
	return out.Name(), nil
}

func setUsers(ctx context.Context, s *session.Session, printer, spec string) error {
	mode, list, ok := strings.Cut(spec, ":")
	if !ok {
		return fmt.Errorf("bad -u %q, want allow:users or deny:users", spec)
	}
	var users []string
	for _, u := range strings.Split(list, ",") {
		if u = strings.TrimSpace(u); u != "" {
			users = append(users, u)
		}
	}
	switch strings.ToLower(mode) {
	case "allow":
		return s.SetPrinterUsersAllowed(ctx, printer, users)
	case "deny":
		return s.SetPrinterUsersDenied(ctx, printer, users)
	}
	return fmt.Errorf("bad -u %q, want allow:users or deny:users", spec)
}

// setDefault maps the printer attributes that have their own setters and
// sends everything else as a name-default.
func setDefault(ctx context.Context, s *session.Session, printer, name, value string) error {
	switch name {
	case "printer-is-shared":
		shared, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("printer-is-shared: %w", err)
		}
		return s.SetPrinterShared(ctx, printer, shared)
	case "printer-error-policy":
		return s.SetPrinterErrorPolicy(ctx, printer, value)
	case "printer-op-policy":
		return s.SetPrinterOpPolicy(ctx, printer, value)
	case "job-sheets-default":
		start, end, _ := strings.Cut(value, ",")
		if end == "" {
			end = "none"
		}
		return s.SetPrinterJobSheets(ctx, printer, start, end)
	}
	return s.AddPrinterOptionDefault(ctx, printer, name, value)
}
