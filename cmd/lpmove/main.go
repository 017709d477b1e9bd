package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"cupsbridge/internal/cliutil"
	"cupsbridge/internal/ippreq"
)

func main() {
	if err := newRootCmd(os.Stdin).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "lpmove:", err)
		os.Exit(1)
	}
}

func newRootCmd(in io.Reader) *cobra.Command {
	var conn cliutil.ConnFlags
	cmd := &cobra.Command{
		Use:           "lpmove [flags] {job-id | source} destination",
		Short:         "Move a job, or every job on a queue, to another destination",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			conn.Setup()
			defer func() { _ = conn.Finish() }()

			ctx := cmd.Context()
			s, err := conn.Open(ctx, in, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer s.Close()

			if id, ok := cliutil.ParseJobID(args[0]); ok {
				return s.MoveJob(ctx, id, "", args[1])
			}
			return s.MoveJob(ctx, 0, ippreq.PrinterURI(args[0]), args[1])
		},
	}
	conn.Register(cmd)
	return cmd
}
