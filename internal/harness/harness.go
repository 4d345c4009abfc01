package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/posscan/internal/cart"
	"github.com/roach88/posscan/internal/catalog"
	"github.com/roach88/posscan/internal/scanner"
	"github.com/roach88/posscan/internal/store"
	"github.com/roach88/posscan/internal/testutil"
)

// Harness executes one scenario. It plays the host UI: it owns keyboard
// focus and the search input, and answers the serial prompt.
type Harness struct {
	clock    *testutil.FakeClock
	catalog  *catalog.Store
	cart     *cart.Controller
	detector *scanner.Detector
	store    *store.Store
	recorder *store.Recorder
	session  string
	logger   *slog.Logger

	focus  scanner.Focus
	input  string
	result *Result
	done   bool
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// Deterministic helpers ensure reproducible results.
//
// Execution flow:
// 1. Create fresh in-memory database, fake clock and catalog
// 2. Execute steps in order
// 3. Capture final state and evaluate assertions
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	session := testutil.NewFixedSessionGenerator(scenario.Session).Generate()

	mode := scanner.ModeAuto
	if scenario.Mode != "" {
		if mode, err = scanner.ParseMode(scenario.Mode); err != nil {
			return nil, err
		}
	}
	focus, err := scanner.ParseFocus(scenario.Focus)
	if err != nil {
		return nil, err
	}

	h := &Harness{
		clock:    testutil.NewFakeClock(),
		catalog:  catalog.NewStaticStore(toProducts(scenario.Products)),
		cart:     cart.New(cart.WithLogger(logger)),
		store:    st,
		recorder: store.NewRecorder(st, session, logger),
		session:  session,
		logger:   logger,
		focus:    focus,
		result:   NewResult(),
	}
	h.detector = scanner.NewDetector(h.clock, h.clock, h.catalog, cartSink{h},
		scanner.WithConfig(scenario.Scanner.ScannerConfig()),
		scanner.WithMode(mode),
		scanner.WithSurface(h),
		scanner.WithObserver(h),
		scanner.WithLogger(logger),
	)
	h.cart.SetModalNotifier(h.detector)

	for i, step := range scenario.Steps {
		if err := h.execute(step); err != nil {
			return nil, fmt.Errorf("steps[%d]: %w", i, err)
		}
	}

	if err := h.capture(context.Background()); err != nil {
		return nil, err
	}
	h.done = true
	h.detector.Close()

	for _, msg := range EvaluateAssertions(h.result, scenario.Assertions) {
		h.result.AddError(msg)
	}
	return h.result, nil
}

func (h *Harness) execute(step Step) error {
	switch {
	case step.Type != "":
		for i, r := range step.Type {
			if i > 0 {
				h.clock.Advance(step.Gap)
			}
			h.detector.HandleKey(scanner.RuneKey(r, h.focus))
		}

	case step.Key == KeyEnter:
		h.detector.HandleKey(scanner.EnterKey(h.focus))

	case step.Key == KeyBackspace:
		h.detector.HandleKey(scanner.KeyEvent{Kind: scanner.KeyBackspace, Focus: h.focus})

	case step.Wait != 0:
		h.clock.Advance(step.Wait)

	case step.Modal != nil:
		h.detector.SetModalActive(*step.Modal)

	case step.Mode != "":
		m, err := scanner.ParseMode(step.Mode)
		if err != nil {
			return err
		}
		h.detector.SetMode(m)

	case step.Focus != "":
		f, err := scanner.ParseFocus(step.Focus)
		if err != nil {
			return err
		}
		h.focus = f

	case step.Buffer != nil:
		h.input = *step.Buffer
		h.detector.SetBuffer(*step.Buffer)

	case step.Serial != nil:
		if err := h.cart.ConfirmSerial(*step.Serial); err != nil {
			h.record(KindSerial, fmt.Sprintf("confirm %q error=%q", *step.Serial, err.Error()))
			return nil
		}
		h.record(KindSerial, fmt.Sprintf("confirm %q", *step.Serial))

	case step.SkipSerial:
		out, err := h.cart.SkipSerial()
		if err != nil {
			h.record(KindSerial, fmt.Sprintf("skip error=%q", err.Error()))
			return nil
		}
		h.record(KindSerial, "skip outcome="+out.String())

	case step.CancelSerial:
		h.cart.CancelSerial()
		h.record(KindSerial, "cancel")

	case step.Catalog != nil:
		h.catalog.Set(catalog.Snapshot{Products: toProducts(step.Catalog), FetchedAt: h.clock.Now()})

	default:
		return fmt.Errorf("empty step")
	}
	return nil
}

func (h *Harness) capture(ctx context.Context) error {
	h.result.Buffer = h.detector.Buffer()
	h.result.Mode = h.detector.Mode().String()
	h.result.Pending = h.detector.Pending()
	h.result.Cart = h.cart.Lines()
	h.result.Totals = h.cart.Totals()

	scans, err := h.store.ReadScans(ctx, h.session)
	if err != nil {
		return fmt.Errorf("read scan log: %w", err)
	}
	h.result.Scans = scans
	return nil
}

// SetValue implements scanner.InputSurface.
func (h *Harness) SetValue(v string) {
	h.input = v
}

// Focus implements scanner.InputSurface.
func (h *Harness) Focus() {
	h.focus = scanner.FocusSearch
}

// Observe implements scanner.Observer.
func (h *Harness) Observe(ev scanner.TraceEvent) {
	if h.done {
		return
	}
	h.recorder.Observe(ev)
	h.result.Trace = append(h.result.Trace, TraceLine{
		AtMS:   h.elapsedMS(ev.At),
		Kind:   string(ev.Kind),
		Detail: FormatDetail(ev),
	})
}

func (h *Harness) record(kind, detail string) {
	h.result.Trace = append(h.result.Trace, TraceLine{
		AtMS:   h.elapsedMS(h.clock.Now()),
		Kind:   kind,
		Detail: detail,
	})
}

func (h *Harness) elapsedMS(t time.Time) int64 {
	return t.Sub(testutil.Epoch).Milliseconds()
}

// cartSink hands scanned products to the cart and traces the outcome.
type cartSink struct {
	h *Harness
}

func (c cartSink) AddScanned(p catalog.Product) {
	out := c.h.cart.Add(p)
	c.h.record(KindCart, fmt.Sprintf("product=%s outcome=%s", p.ID, out))
}

// FormatDetail renders the kind-specific part of a detector trace line.
func FormatDetail(ev scanner.TraceEvent) string {
	switch ev.Kind {
	case scanner.TraceKey:
		return fmt.Sprintf("%q %s", ev.Rune, ev.Class)
	case scanner.TraceArm:
		return ev.Reason
	case scanner.TraceCommit:
		return fmt.Sprintf("trigger=%s query=%q product=%s", ev.Trigger, ev.Query, ev.ProductID)
	case scanner.TraceNoMatch, scanner.TraceTooShort:
		return fmt.Sprintf("trigger=%s query=%q", ev.Trigger, ev.Query)
	case scanner.TraceSuppressed:
		if ev.Rune == 0 {
			return "enter"
		}
		return fmt.Sprintf("%q", ev.Rune)
	case scanner.TraceModal:
		if ev.Modal {
			return "on"
		}
		return "off"
	case scanner.TraceMode:
		return ev.Mode.String()
	default:
		return ""
	}
}
