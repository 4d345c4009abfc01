package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/roach88/posscan/internal/api"
	"github.com/roach88/posscan/internal/cart"
	"github.com/roach88/posscan/internal/catalog"
	"github.com/roach88/posscan/internal/clock"
	"github.com/roach88/posscan/internal/config"
	"github.com/roach88/posscan/internal/scanner"
	"github.com/roach88/posscan/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Mode string // overrides the persisted mode for this run
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the interactive scan station",
		Long: `Start the scan station on this terminal.

Scan barcodes (or type and press Enter) to add products to the cart.
The catalog is loaded from the local cache and refreshed from the
backend every refresh_interval. Every commit attempt is written to the
scan log.

Keys:
  Enter      commit the search input
  Backspace  edit the search input
  Tab        toggle auto/manual mode (persisted)
  Esc        leave the search input / cancel the serial prompt
  Ctrl-C     quit

Function keys follow the stored shortcuts (see posscan settings):
payNow prints the receipt and starts a new cart, clearCart empties the
cart, focusSearch focuses the search input, printLastReceipt reprints
the last receipt, logout forgets the session and quits.

Example:
  posscan run
  posscan run --config station.yaml --mode manual --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStation(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Mode, "mode", "", "scan mode for this run (auto|manual), default persisted")

	return cmd
}

func runStation(opts *RunOptions, cmd *cobra.Command) error {
	if !isTerminalStdin() {
		return NewExitError(ExitCommandError, "run needs an interactive terminal on stdin")
	}
	fd := int(os.Stdin.Fd())

	logger := opts.setupLogging(cmd.ErrOrStderr())
	st, cfg, err := opts.openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	mode, err := startMode(ctx, opts.Mode, st)
	if err != nil {
		return err
	}

	shortcuts, err := st.Shortcuts(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read shortcuts", err)
	}
	shop, err := st.ShopSettings(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read shop settings", err)
	}

	var source catalog.Source
	logout := st.ClearTokens
	username := ""
	if cfg.APIURL != "" {
		client, err := newClient(ctx, cfg, st, logger)
		if err != nil {
			return err
		}
		source = client
		logout = client.Logout
		username = sessionUser(ctx, client, logger)
	} else {
		logger.Warn("no api_url configured, serving the cached catalog only")
	}

	cat, cache, err := openCatalog(cfg, source, logger)
	if err != nil {
		return err
	}
	defer cache.Close()

	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to put terminal in raw mode", err)
	}
	defer term.Restore(fd, oldState)

	sess := &terminalSession{
		screen:    newScreen(cmd.OutOrStdout()),
		store:     st,
		mode:      mode,
		shortcuts: shortcuts,
		shop:      shop,
		logout:    logout,
		logger:    logger,
	}
	sess.build(cfg, cat)

	sess.screen.Println("posscan session %s, %s mode, %d products", sess.station.Session(), mode, len(cat.Products()))
	if username != "" {
		sess.screen.Println("Logged in as %s", username)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		return ignoreCanceled(sess.station.Run(gctx))
	})
	if source != nil {
		g.Go(func() error {
			return ignoreCanceled(cat.Run(gctx, cfg.RefreshInterval))
		})
	}
	g.Go(func() error {
		// Quitting stops the station and the catalog refresh.
		defer cancel()
		return sess.readKeys(gctx, os.Stdin)
	})

	err = g.Wait()
	fmt.Fprint(cmd.OutOrStdout(), "\r\n")
	if err != nil {
		return WrapExitError(ExitFailure, "station error", err)
	}
	logger.Info("scan station stopped", "session", sess.station.Session())
	return nil
}

// startMode picks the flag mode, else the persisted one.
func startMode(ctx context.Context, flag string, st *store.Store) (scanner.Mode, error) {
	if flag != "" {
		m, err := scanner.ParseMode(flag)
		if err != nil {
			return 0, WrapExitError(ExitCommandError, "invalid --mode", err)
		}
		return m, nil
	}
	auto, err := st.AutoScan(ctx)
	if err != nil {
		return 0, WrapExitError(ExitCommandError, "failed to read mode", err)
	}
	return modeFromAutoScan(auto), nil
}

func isTerminalStdin() bool {
	fd := os.Stdin.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// sessionUser confirms the stored session with the backend and returns the
// user name, or "" when there is no usable session. The station still runs
// offline on the cached catalog.
func sessionUser(ctx context.Context, client *api.Client, logger *slog.Logger) string {
	ok, err := client.LoggedIn(ctx)
	if err != nil {
		logger.Error("failed to read stored session", "error", err)
		return ""
	}
	if !ok {
		logger.Warn("not logged in, catalog refresh needs posscan login")
		return ""
	}
	user, err := client.Me(ctx)
	switch {
	case api.IsSessionExpired(err):
		logger.Warn("session expired, catalog refresh needs posscan login")
		return ""
	case err != nil:
		logger.Warn("could not confirm session", "error", err)
		return ""
	}
	return user.Username
}

// terminalSession wires the terminal, the cart and the scan station together.
type terminalSession struct {
	screen    *screen
	store     *store.Store
	cart      *cart.Controller
	station   *scanner.Station
	shortcuts store.Shortcuts
	shop      store.ShopSettings
	logout    func(context.Context) error
	logger    *slog.Logger

	// Owned by the key reader.
	mode        scanner.Mode
	serial      string // serial being typed
	lastReceipt string
}

// fixedSession hands out one pre-generated session id.
type fixedSession string

func (f fixedSession) Generate() string {
	return string(f)
}

func (s *terminalSession) build(cfg config.Config, cat *catalog.Store) {
	session := scanner.UUIDv7Generator{}.Generate()

	s.cart = cart.New(cart.WithLogger(s.logger))
	s.station = scanner.NewStation(clock.System{}, cat, cartPrinter{cart: s.cart, screen: s.screen},
		scanner.WithSessions(fixedSession(session)),
		scanner.WithStationLogger(s.logger),
		scanner.WithDetectorOptions(
			scanner.WithConfig(cfg.Scanner.ScannerConfig()),
			scanner.WithMode(s.mode),
			scanner.WithSurface(s.screen),
			scanner.WithObserver(store.NewRecorder(s.store, session, s.logger)),
		),
	)
	s.cart.SetModalNotifier(s.station)
}

// readKeys feeds terminal input to the station until Ctrl-C, EOF or ctx
// is cancelled.
func (s *terminalSession) readKeys(ctx context.Context, in io.Reader) error {
	type chunk struct {
		data []byte
		err  error
	}
	chunks := make(chan chunk)
	go func() {
		buf := make([]byte, 256)
		for {
			n, err := in.Read(buf)
			data := append([]byte(nil), buf[:n]...)
			select {
			case chunks <- chunk{data: data, err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case c := <-chunks:
			for _, k := range decodeKeys(c.data) {
				if !s.handleKey(ctx, k) {
					return nil
				}
			}
			if errors.Is(c.err, io.EOF) {
				return nil
			}
			if c.err != nil {
				return fmt.Errorf("read terminal: %w", c.err)
			}
		}
	}
}

// handleKey routes one key. Returns false to quit.
func (s *terminalSession) handleKey(ctx context.Context, k termKey) bool {
	if k.Kind == termInterrupt {
		return false
	}
	if _, open := s.cart.PendingSerial(); open {
		s.handleSerialKey(k)
		return true
	}

	focus := s.screen.CurrentFocus()
	switch k.Kind {
	case termRune:
		s.station.HandleKey(scanner.RuneKey(k.Rune, focus))
		if focus == scanner.FocusNone {
			// The station redirects this key into the search input, so keys
			// already read behind it (a scanner's Enter) belong there too.
			s.screen.Focus()
		}
	case termEnter:
		s.station.HandleKey(scanner.EnterKey(focus))
	case termBackspace:
		s.station.HandleKey(scanner.KeyEvent{Kind: scanner.KeyBackspace, Focus: focus})
	case termEscape:
		s.screen.Blur()
	case termTab:
		s.toggleMode(ctx)
	case termFunction:
		return s.runShortcut(ctx, k.Name)
	}
	return true
}

// runShortcut performs the action bound to function key name. Returns false
// to quit.
func (s *terminalSession) runShortcut(ctx context.Context, name string) bool {
	b, ok := s.shortcuts.Lookup(name)
	if !ok {
		return true
	}
	s.logger.Debug("shortcut", "key", name, "action", b.Action)

	switch b.Action {
	case store.ActionPayNow:
		lines := s.cart.Lines()
		if len(lines) == 0 {
			return true
		}
		var buf bytes.Buffer
		printReceipt(&buf, s.shop, lines, s.cart.Totals())
		s.lastReceipt = buf.String()
		s.cart.Clear()
		s.screen.Print(s.lastReceipt)
	case store.ActionClearCart:
		s.cart.Clear()
		s.screen.Println("Cart cleared")
	case store.ActionFocusSearch:
		s.screen.Focus()
	case store.ActionPrintLastReceipt:
		if s.lastReceipt == "" {
			s.screen.Println("No receipt printed yet")
			return true
		}
		s.screen.Print(s.lastReceipt)
	case store.ActionLogout:
		if err := s.logout(ctx); err != nil {
			s.logger.Error("failed to log out", "error", err)
		}
		s.screen.Println("Logged out")
		return false
	default:
		s.screen.Println("%s is not available on this station", b.Label)
	}
	return true
}

func (s *terminalSession) handleSerialKey(k termKey) {
	switch k.Kind {
	case termRune:
		s.serial += string(k.Rune)
	case termBackspace:
		if s.serial != "" {
			r := []rune(s.serial)
			s.serial = string(r[:len(r)-1])
		}
	case termEscape:
		s.cart.CancelSerial()
		s.serial = ""
		s.screen.SetSerial(nil)
		s.screen.Println("Serial prompt cancelled")
		return
	case termEnter:
		s.submitSerial()
		return
	}
	v := s.serial
	s.screen.SetSerial(&v)
}

func (s *terminalSession) submitSerial() {
	if s.serial == "" {
		out, err := s.cart.SkipSerial()
		if err != nil {
			s.screen.Println("! %v", err)
			return
		}
		if !out.Changed() {
			s.screen.Println("! %s", out)
			return
		}
	} else if err := s.cart.ConfirmSerial(s.serial); err != nil {
		s.screen.Println("! %v", err)
		return
	}
	s.serial = ""
	s.screen.SetSerial(nil)
	cartPrinter{cart: s.cart, screen: s.screen}.printCart()
}

func (s *terminalSession) toggleMode(ctx context.Context) {
	next := scanner.ModeAuto
	if s.mode == scanner.ModeAuto {
		next = scanner.ModeManual
	}
	s.mode = next
	s.station.SetMode(next)
	if err := s.store.SetAutoScan(ctx, next == scanner.ModeAuto); err != nil {
		s.logger.Error("failed to persist scan mode", "error", err)
	}
	s.screen.Println("%s mode", next)
}
