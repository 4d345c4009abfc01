package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/posscan/internal/store"
)

// ScansOptions holds flags for the scans command.
type ScansOptions struct {
	*RootOptions
	Limit int
}

// NewScansCommand creates the scans command.
func NewScansCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ScansOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "scans [session]",
		Short: "Print the scan log",
		Long: `Print the scan log of one station session, or list the most recent
sessions when no session is given.

Every auto or Enter commit attempt is logged with its outcome:
committed, no_match or too_short.

Example:
  posscan scans
  posscan scans 01936b2a-... --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScans(opts, args, cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Limit, "limit", 10, "number of sessions to list")

	return cmd
}

func runScans(opts *ScansOptions, args []string, cmd *cobra.Command) error {
	st, _, err := opts.openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)

	f := opts.formatter(cmd)
	ctx := cmd.Context()

	if len(args) == 0 {
		sessions, err := st.Sessions(ctx, opts.Limit)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list sessions", err)
		}
		return f.Emit(sessions, func(w io.Writer) {
			if len(sessions) == 0 {
				fmt.Fprintln(w, "No scans recorded.")
				return
			}
			for _, s := range sessions {
				fmt.Fprintln(w, s)
			}
		})
	}

	session := args[0]
	records, err := st.ReadScans(ctx, session)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read scan log", err)
	}
	if len(records) == 0 {
		if err := f.Error(CodeNotFound, fmt.Sprintf("no scans for session %s", session), nil); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("no scans for session %s", session))
	}

	return f.Emit(records, func(w io.Writer) { printScans(w, records) })
}

func printScans(w io.Writer, records []store.ScanRecord) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tTIME\tTRIGGER\tOUTCOME\tQUERY\tPRODUCT")
	for _, r := range records {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			r.Seq, r.At.Format("15:04:05.000"), r.Trigger, r.Outcome, r.Query, r.ProductID)
	}
	tw.Flush()
}
