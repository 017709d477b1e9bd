package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"cupsbridge/internal/cliutil"
	"cupsbridge/internal/session"
)

type options struct {
	conn  cliutil.ConnFlags
	all   bool
	purge bool
}

func main() {
	if err := newRootCmd(os.Stdin).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "cancel:", err)
		os.Exit(1)
	}
}

func newRootCmd(in io.Reader) *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "cancel [flags] [job-id | destination-job-id | destination]...",
		Short:         "Cancel print jobs",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && !opts.all {
				return fmt.Errorf("no job or destination given")
			}
			opts.conn.Setup()
			defer func() { _ = opts.conn.Finish() }()

			ctx := cmd.Context()
			s, err := opts.conn.Open(ctx, in, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer s.Close()
			return run(ctx, s, opts, args)
		},
	}
	opts.conn.Register(cmd)
	fl := cmd.Flags()
	fl.BoolVarP(&opts.all, "all", "a", false, "cancel every job, not only your own")
	fl.BoolVarP(&opts.purge, "purge", "x", false, "also remove job files and history")
	return cmd
}

func run(ctx context.Context, s *session.Session, o *options, args []string) error {
	if len(args) == 0 {
		return s.CancelAllJobs(ctx, session.Target{URI: "ipp://localhost/printers/"}, false, o.purge)
	}
	for _, arg := range args {
		if id, ok := cliutil.ParseJobID(arg); ok {
			if err := s.CancelJob(ctx, id, o.purge); err != nil {
				return fmt.Errorf("%s: %w", arg, err)
			}
			continue
		}
		if err := s.CancelAllJobs(ctx, session.Named(arg), !o.all, o.purge); err != nil {
			return fmt.Errorf("%s: %w", arg, err)
		}
	}
	return nil
}
