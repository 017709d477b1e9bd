package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"cupsbridge/internal/cliutil"
	"cupsbridge/internal/session"
)

type options struct {
	conn cliutil.ConnFlags

	dest     string
	copies   int
	title    string
	hold     string
	jobID    string
	priority int
	silent   bool
	opts     []string
}

func main() {
	if err := newRootCmd(os.Stdin, os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "lp:", err)
		os.Exit(1)
	}
}

func newRootCmd(in io.Reader, out io.Writer) *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "lp [flags] [file ...]",
		Short:         "Print files, or standard input",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.copies < 0 {
				return fmt.Errorf("bad copy count %d", opts.copies)
			}
			if len(args) > 1 && containsStdin(args) {
				return fmt.Errorf("'-' can only be used for a single document")
			}
			opts.conn.Setup()
			defer func() { _ = opts.conn.Finish() }()

			ctx := cmd.Context()
			s, err := opts.conn.Open(ctx, in, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer s.Close()
			if opts.jobID != "" {
				return modifyJob(ctx, s, opts)
			}
			return submit(ctx, s, opts, args, in, out)
		},
	}
	opts.conn.Register(cmd)
	fl := cmd.Flags()
	fl.StringVarP(&opts.dest, "destination", "d", "", "print to `name`")
	fl.IntVarP(&opts.copies, "copies", "n", 0, "number of copies")
	fl.StringVarP(&opts.title, "title", "t", "", "job title")
	fl.StringVarP(&opts.hold, "hold", "H", "", "hold until `when` (indefinite, immediate, resume, restart, hh:mm)")
	fl.StringVarP(&opts.jobID, "job", "i", "", "change existing job `id`")
	fl.IntVarP(&opts.priority, "priority", "q", 0, "job priority, 1 to 100")
	fl.BoolVarP(&opts.silent, "silent", "s", false, "do not print the request id")
	fl.StringArrayVarP(&opts.opts, "option", "o", nil, "job option `name=value`")
	return cmd
}

func containsStdin(args []string) bool {
	for _, a := range args {
		if a == "-" {
			return true
		}
	}
	return false
}

// jobOptions merges -o with the dedicated flags, which win.
func (o *options) jobOptions() (map[string]string, error) {
	opts, err := cliutil.ParseOptions(o.opts)
	if err != nil {
		return nil, err
	}
	if o.copies > 0 {
		opts["copies"] = strconv.Itoa(o.copies)
	}
	if o.priority != 0 {
		if o.priority < 1 || o.priority > 100 {
			return nil, fmt.Errorf("priority must be between 1 and 100")
		}
		opts["job-priority"] = strconv.Itoa(o.priority)
	}
	if o.hold != "" {
		opts["job-hold-until"] = o.hold
	}
	return opts, nil
}

func submit(ctx context.Context, s *session.Session, o *options, files []string, in io.Reader, out io.Writer) error {
	dest, err := destination(ctx, s, o.dest)
	if err != nil {
		return err
	}
	jobOpts, err := o.jobOptions()
	if err != nil {
		return err
	}

	var id int
	switch {
	case len(files) > 1:
		id, err = s.PrintFiles(ctx, dest, files, o.title, jobOpts)
	case len(files) == 1 && files[0] != "-":
		id, err = s.PrintFile(ctx, dest, files[0], o.title, jobOpts)
	default:
		id, err = printStdin(ctx, s, dest, o.title, jobOpts, in)
	}
	if err != nil {
		return err
	}
	if !o.silent {
		n := max(len(files), 1)
		fmt.Fprintf(out, "request id is %s-%d (%d file(s))\n", dest, id, n)
	}
	return nil
}

// destination picks -d, then LPDEST and PRINTER, then the server default.
func destination(ctx context.Context, s *session.Session, dest string) (string, error) {
	if dest != "" {
		return dest, nil
	}
	for _, env := range []string{"LPDEST", "PRINTER"} {
		if v := strings.TrimSpace(os.Getenv(env)); v != "" && !(env == "PRINTER" && v == "lp") {
			name, _, _ := strings.Cut(v, "/")
			return name, nil
		}
	}
	name, err := s.GetDefault(ctx)
	if err != nil {
		return "", err
	}
	if name == "" {
		return "", fmt.Errorf("no default destination")
	}
	return name, nil
}

// printStdin spools standard input to a temporary file, since Print-Job
// needs a seekable document for authentication retries.
func printStdin(ctx context.Context, s *session.Session, dest, title string, opts map[string]string, in io.Reader) (int, error) {
	tmp, err := os.CreateTemp("", "lp-*")
	if err != nil {
		return 0, err
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return 0, err
	}
	if err := tmp.Close(); err != nil {
		return 0, err
	}
	if title == "" {
		title = "(stdin)"
	}
	return s.PrintFile(ctx, dest, tmp.Name(), title, opts)
}

// modifyJob handles -i: only the hold state of an existing job can change.
func modifyJob(ctx context.Context, s *session.Session, o *options) error {
	id, ok := cliutil.ParseJobID(o.jobID)
	if !ok {
		return fmt.Errorf("bad job id %q", o.jobID)
	}
	switch o.hold {
	case "":
		return fmt.Errorf("-i needs -H")
	case "restart":
		return s.RestartJob(ctx, id, "")
	case "resume":
		return s.SetJobHoldUntil(ctx, id, "no-hold")
	default:
		return s.SetJobHoldUntil(ctx, id, o.hold)
	}
}
