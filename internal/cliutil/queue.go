package cliutil

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"cupsbridge/internal/session"
)

// QueueFlags are the options of the tools that change queue state.
type QueueFlags struct {
	Reason string
	Cancel bool
}

// QueueCommand describes one cupsenable-style tool. Apply runs once per
// destination argument.
type QueueCommand struct {
	Use   string
	Short string
	// Reason adds -r, Cancel adds -c.
	Reason bool
	Cancel bool
	Apply  func(ctx context.Context, s *session.Session, dest string, f QueueFlags) error
}

func NewQueueCommand(qc QueueCommand, in io.Reader) *cobra.Command {
	var (
		conn  ConnFlags
		flags QueueFlags
	)
	cmd := &cobra.Command{
		Use:           qc.Use,
		Short:         qc.Short,
		Args:          cobra.MinimumNArgs(1),
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
			for _, dest := range args {
				if err := qc.Apply(ctx, s, dest, flags); err != nil {
					return fmt.Errorf("%s: %w", dest, err)
				}
				if flags.Cancel {
					if err := s.CancelAllJobs(ctx, session.Named(dest), false, true); err != nil {
						return fmt.Errorf("%s: %w", dest, err)
					}
				}
			}
			return nil
		},
	}
	conn.Register(cmd)
	fl := cmd.Flags()
	if qc.Reason {
		fl.StringVarP(&flags.Reason, "reason", "r", "", "state message to set")
	}
	if qc.Cancel {
		fl.BoolVarP(&flags.Cancel, "cancel", "c", false, "cancel every job on the destination")
	}
	return cmd
}
