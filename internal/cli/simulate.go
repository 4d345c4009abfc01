package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/posscan/internal/harness"
)

// NewSimulateCommand creates the simulate command.
func NewSimulateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate <scenario.yaml>",
		Short: "Run one scan scenario and print its trace",
		Long: `Run one scan scenario against a virtual clock and print the trace,
the final cart and any failed assertions.

Example:
  posscan simulate ./testdata/scenarios/auto_scan_commits.yaml
  posscan simulate ./scan.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runSimulate(opts *RootOptions, path string, cmd *cobra.Command) error {
	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}

	result, err := harness.Run(scenario)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to run scenario", err)
	}

	f := opts.formatter(cmd)
	if err := f.Emit(result, func(w io.Writer) { printSimulation(w, scenario, result) }); err != nil {
		return err
	}

	if !result.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("%d assertion(s) failed", len(result.Errors)))
	}
	return nil
}

func printSimulation(w io.Writer, scenario *harness.Scenario, result *harness.Result) {
	fmt.Fprintf(w, "Scenario: %s\n", scenario.Name)
	fmt.Fprintf(w, "  %s\n\n", scenario.Description)

	fmt.Fprint(w, result.FormatTrace())
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Mode: %s  Buffer: %q  Timer armed: %t\n", result.Mode, result.Buffer, result.Pending)
	printCart(w, result.Cart, result.Totals)

	if result.Pass {
		fmt.Fprintln(w, "✓ All assertions passed")
		return
	}
	for _, e := range result.Errors {
		fmt.Fprintf(w, "✗ %s\n", e)
	}
}
