package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/contactgraph/internal/contact"
	"github.com/roach88/contactgraph/internal/reconcile"
)

// IdentifyOptions holds flags for the identify command.
type IdentifyOptions struct {
	*RootOptions
	Email       string
	PhoneNumber string
}

// NewIdentifyCommand creates the identify command.
func NewIdentifyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &IdentifyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "identify",
		Short: "Reconcile one observation",
		Long: `Reconcile one (email, phone number) observation against the configured
store and print the identity it belongs to.

At least one of --email and --phone is required. Values are matched
exactly; whitespace-only values count as absent.

Examples:
  contactgraph identify --email a@x.com --phone 123
  contactgraph identify --phone 123 --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIdentify(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Email, "email", "", "email address")
	cmd.Flags().StringVar(&opts.PhoneNumber, "phone", "", "phone number")

	return cmd
}

func runIdentify(opts *IdentifyOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	f := opts.formatter(cmd)
	f.TraceID = NewTraceID()
	logger := opts.Logger.With().Str("trace_id", f.TraceID).Logger()

	st, err := openStore(ctx, opts.Config.Store, logger)
	if err != nil {
		return err
	}
	defer closeStore(st, logger)

	eng := reconcile.New(st, reconcile.WithLogger(logger))
	summary, err := eng.Identify(ctx, contact.Observation{
		Email:       opts.Email,
		PhoneNumber: opts.PhoneNumber,
	})
	if err != nil {
		logger.Debug().Err(err).Msg("identify failed")
		return engineError(f, err)
	}

	return f.Success(summaryView{Contact: summary})
}
