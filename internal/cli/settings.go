package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/posscan/internal/scanner"
	"github.com/roach88/posscan/internal/store"
)

// ModeResult is the output of the mode command.
type ModeResult struct {
	Mode    string `json:"mode"`
	Changed bool   `json:"changed"`
}

// NewModeCommand creates the mode command.
func NewModeCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mode [auto|manual]",
		Short: "Show or set the scan mode",
		Long: `Show or set the persisted scan mode.

In auto mode a scanner burst is added to the cart 150ms after its last
key; in manual mode only Enter adds. The run command starts in the
persisted mode.

Example:
  posscan mode
  posscan mode manual`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMode(rootOpts, args, cmd)
		},
	}
	return cmd
}

func runMode(opts *RootOptions, args []string, cmd *cobra.Command) error {
	var want scanner.Mode
	if len(args) == 1 {
		m, err := scanner.ParseMode(args[0])
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid mode", err)
		}
		want = m
	}

	st, _, err := opts.openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)

	ctx := cmd.Context()
	res := ModeResult{}
	if want != 0 {
		if err := st.SetAutoScan(ctx, want == scanner.ModeAuto); err != nil {
			return WrapExitError(ExitCommandError, "failed to save mode", err)
		}
		res.Changed = true
	}

	auto, err := st.AutoScan(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read mode", err)
	}
	res.Mode = modeFromAutoScan(auto).String()

	return opts.formatter(cmd).Emit(res, func(w io.Writer) {
		if res.Changed {
			fmt.Fprintf(w, "Scan mode set to %s\n", res.Mode)
			return
		}
		fmt.Fprintf(w, "Scan mode: %s\n", res.Mode)
	})
}

func modeFromAutoScan(auto bool) scanner.Mode {
	if auto {
		return scanner.ModeAuto
	}
	return scanner.ModeManual
}

// SettingsResult is the output of the settings command.
type SettingsResult struct {
	Mode      string                  `json:"mode"`
	Shop      store.ShopSettings      `json:"shop"`
	Shortcuts []store.ShortcutBinding `json:"shortcuts"`
}

// SettingsOptions holds flags for the settings command.
type SettingsOptions struct {
	*RootOptions
	Bind []string // action=KEY
}

// NewSettingsCommand creates the settings command.
func NewSettingsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SettingsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Print shop settings and keyboard shortcuts",
		Long: `Print the stored scan mode, the receipt header and footer, and the
keyboard shortcut table. Unset values show their defaults.

--bind rebinds a shortcut before printing. Actions: payNow, clearCart,
openRepairs, openSales, focusSearch, printLastReceipt, openSettings, logout.

Example:
  posscan settings
  posscan settings --bind clearCart=F6 --bind logout=F11`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSettings(opts, cmd)
		},
	}

	cmd.Flags().StringArrayVar(&opts.Bind, "bind", nil, "rebind a shortcut, action=KEY (repeatable)")

	return cmd
}

func runSettings(opts *SettingsOptions, cmd *cobra.Command) error {
	st, _, err := opts.openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)

	if len(opts.Bind) > 0 {
		if err := bindShortcuts(cmd.Context(), st, opts.Bind); err != nil {
			return err
		}
	}

	ctx := cmd.Context()
	auto, err := st.AutoScan(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read mode", err)
	}
	shop, err := st.ShopSettings(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read shop settings", err)
	}
	shortcuts, err := st.Shortcuts(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read shortcuts", err)
	}

	res := SettingsResult{
		Mode:      modeFromAutoScan(auto).String(),
		Shop:      shop,
		Shortcuts: shortcuts.Bindings(),
	}
	return opts.formatter(cmd).Emit(res, func(w io.Writer) {
		fmt.Fprintf(w, "Scan mode: %s\n\n", res.Mode)
		fmt.Fprintln(w, "Receipt header:")
		fmt.Fprint(w, shop.ReceiptHeader())
		fmt.Fprintln(w, "Receipt footer:")
		fmt.Fprintln(w, shop.ReceiptFooter())
		fmt.Fprintln(w)

		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "KEY\tACTION")
		for _, b := range res.Shortcuts {
			fmt.Fprintf(tw, "%s\t%s\n", b.Key, b.Label)
		}
		tw.Flush()
	})
}

// bindShortcuts applies action=KEY pairs and saves the result. Nothing is
// saved if any pair is invalid.
func bindShortcuts(ctx context.Context, st *store.Store, pairs []string) error {
	shortcuts, err := st.Shortcuts(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read shortcuts", err)
	}
	for _, pair := range pairs {
		action, key, ok := strings.Cut(pair, "=")
		if !ok {
			return NewExitError(ExitCommandError, fmt.Sprintf("invalid --bind %q: want action=KEY", pair))
		}
		if err := shortcuts.Bind(strings.TrimSpace(action), key); err != nil {
			return WrapExitError(ExitCommandError, "invalid --bind", err)
		}
	}
	if err := st.SaveShortcuts(ctx, shortcuts); err != nil {
		return WrapExitError(ExitCommandError, "failed to save shortcuts", err)
	}
	return nil
}
