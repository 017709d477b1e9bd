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

func main() {
	if err := newRootCmd(os.Stdin).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "cupsdisable:", err)
		os.Exit(1)
	}
}

func newRootCmd(in io.Reader) *cobra.Command {
	return cliutil.NewQueueCommand(cliutil.QueueCommand{
		Use:    "cupsdisable [flags] destination...",
		Short:  "Stop printer and class queues",
		Reason: true,
		Cancel: true,
		Apply: func(ctx context.Context, s *session.Session, dest string, f cliutil.QueueFlags) error {
			return s.DisablePrinter(ctx, dest, f.Reason)
		},
	}, in)
}
