package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/contactgraph/internal/reconcile"
)

// AuditResult holds the audit output.
type AuditResult struct {
	Contacts   int                   `json:"contacts"`
	Violations []reconcile.Violation `json:"violations"`
}

// WriteText implements textWriter.
func (r AuditResult) WriteText(w io.Writer) {
	if len(r.Violations) == 0 {
		fmt.Fprintf(w, "✓ %d contacts, no violations\n", r.Contacts)
		return
	}
	for _, v := range r.Violations {
		fmt.Fprintf(w, "✗ contact %d: %s: %s\n", v.ContactID, v.Kind, v.Detail)
	}
	fmt.Fprintf(w, "\n%d violation(s) across %d contacts\n", len(r.Violations), r.Contacts)
}

// NewAuditCommand creates the audit command.
func NewAuditCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Check the stored graph against the identity invariants",
		Long: `Read every live contact and report violations of the identity invariants:
secondaries without a link, links to missing or non-primary contacts,
self links, primaries that are not the oldest member of their component,
components with more than one primary, and duplicate (email, phone) pairs.

Exit codes:
  0 - No violations
  1 - One or more violations
  2 - Command error

Examples:
  contactgraph audit
  contactgraph audit --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAudit(rootOpts, cmd)
		},
	}

	return cmd
}

func runAudit(opts *RootOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	f := opts.formatter(cmd)
	f.TraceID = NewTraceID()

	st, err := openStore(ctx, opts.Config.Store, opts.Logger)
	if err != nil {
		return err
	}
	defer closeStore(st, opts.Logger)

	contacts, err := st.ReadAll(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to read contacts", err)
	}

	result := AuditResult{
		Contacts:   len(contacts),
		Violations: reconcile.Audit(contacts),
	}
	if err := f.Success(result); err != nil {
		return err
	}

	if len(result.Violations) > 0 {
		opts.Logger.Warn().Int("violations", len(result.Violations)).Msg("audit found violations")
		return NewExitError(ExitFailure, fmt.Sprintf("%d violation(s) found", len(result.Violations)))
	}
	return nil
}
