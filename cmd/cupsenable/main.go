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
		fmt.Fprintln(os.Stderr, "cupsenable:", err)
		os.Exit(1)
	}
}

func newRootCmd(in io.Reader) *cobra.Command {
	return cliutil.NewQueueCommand(cliutil.QueueCommand{
		Use:    "cupsenable [flags] destination...",
		Short:  "Start printer and class queues",
		Cancel: true,
		Apply: func(ctx context.Context, s *session.Session, dest string, _ cliutil.QueueFlags) error {
			return s.EnablePrinter(ctx, dest)
		},
	}, in)
}
