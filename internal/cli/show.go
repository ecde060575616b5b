package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/contactgraph/internal/reconcile"
)

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <contact-id>",
		Short: "Show the identity containing a contact",
		Long: `Show the identity containing a contact, primary or secondary.

Read-only: nothing is written. Exits 1 when the id names no live contact.

Examples:
  contactgraph show 7
  contactgraph show 7 --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runShow(opts *RootOptions, arg string, cmd *cobra.Command) error {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid contact id %q", arg))
	}

	ctx := cmd.Context()
	f := opts.formatter(cmd)
	f.TraceID = NewTraceID()
	logger := opts.Logger.With().Str("trace_id", f.TraceID).Logger()

	st, err := openStore(ctx, opts.Config.Store, logger)
	if err != nil {
		return err
	}
	defer closeStore(st, logger)

	summary, err := reconcile.New(st, reconcile.WithLogger(logger)).Summarize(ctx, id)
	if err != nil {
		return engineError(f, err)
	}

	return f.Success(summaryView{Contact: summary})
}
