package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/roach88/posscan/internal/api"
)

// LoginOptions holds flags for the login command.
type LoginOptions struct {
	*RootOptions
	Username string
}

// NewLoginCommand creates the login command.
func NewLoginCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LoginOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to the backend",
		Long: `Log in to the backend and store the token pair in the local database.

The password is read without echo from the terminal, or as the first
line of stdin when stdin is not a terminal.

Example:
  posscan login --user cashier1`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Username, "user", "u", "", "username (required)")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func runLogin(opts *LoginOptions, cmd *cobra.Command) error {
	logger := opts.setupLogging(cmd.ErrOrStderr())
	st, cfg, err := opts.openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)

	if cfg.APIURL == "" {
		return NewExitError(ExitCommandError, "login needs api_url (or POSSCAN_API_URL)")
	}

	password, err := readPassword(cmd.InOrStdin(), cmd.ErrOrStderr())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read password", err)
	}

	ctx := cmd.Context()
	client := api.New(cfg.APIURL, api.WithTokenStore(st), api.WithLogger(logger))
	user, err := client.Login(ctx, opts.Username, password)
	if err != nil {
		f := opts.formatter(cmd)
		if ferr := f.Error(CodeUnauthorized, "login failed", err.Error()); ferr != nil {
			return ferr
		}
		return WrapExitError(ExitFailure, "login failed", err)
	}

	return opts.formatter(cmd).Emit(user, func(w io.Writer) {
		fmt.Fprintf(w, "Logged in as %s\n", user.Username)
	})
}

// readPassword reads without echo from a terminal, otherwise one line of in.
func readPassword(in io.Reader, prompt io.Writer) (string, error) {
	if f, ok := in.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		fmt.Fprint(prompt, "Password: ")
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("no password on stdin: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// NewLogoutCommand creates the logout command.
func NewLogoutCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Log out and forget the stored tokens",
		Long: `Tell the backend to revoke the refresh token, then delete the stored
token pair. Local tokens are removed even if the backend is unreachable.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogout(rootOpts, cmd)
		},
	}
	return cmd
}

func runLogout(opts *RootOptions, cmd *cobra.Command) error {
	logger := opts.setupLogging(cmd.ErrOrStderr())
	st, cfg, err := opts.openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)

	client := api.New(cfg.APIURL, api.WithTokenStore(st), api.WithLogger(logger))
	if err := client.Logout(cmd.Context()); err != nil {
		return WrapExitError(ExitCommandError, "failed to clear tokens", err)
	}

	return opts.formatter(cmd).Emit(map[string]bool{"logged_out": true}, func(w io.Writer) {
		fmt.Fprintln(w, "Logged out")
	})
}
