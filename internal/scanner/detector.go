package scanner

import (
	"io"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/roach88/posscan/internal/catalog"
	"github.com/roach88/posscan/internal/clock"
)

// ProductIndex supplies the latest catalog snapshot. Read-only.
type ProductIndex interface {
	Products() []catalog.Product
}

// CartAdder receives resolved products. It may add, prompt for a serial
// number or refuse; none of that is reported back to the detector.
type CartAdder interface {
	AddScanned(p catalog.Product)
}

// Detector is the scan detection state machine for one POS screen.
//
// Created when the screen mounts, closed when it unmounts. NOT safe for
// concurrent use: see the package documentation.
type Detector struct {
	cfg      Config
	clock    clock.Clock
	sched    clock.Scheduler
	index    ProductIndex
	cart     CartAdder
	surface  InputSurface
	observer Observer
	seq      *clock.Sequence
	logger   *slog.Logger

	lastCharAt time.Time
	mode       Mode
	buffer     string
	pending    clock.Timer
	generation uint64
	modal      bool
	closed     bool
}

// Option configures a Detector.
type Option func(*Detector)

// WithConfig overrides the timing thresholds. Zero fields keep defaults.
func WithConfig(cfg Config) Option {
	return func(d *Detector) {
		d.cfg = cfg.WithDefaults()
	}
}

// WithMode sets the initial mode. Default: ModeAuto.
func WithMode(m Mode) Option {
	return func(d *Detector) {
		d.mode = m
	}
}

// WithSurface attaches the host's search input. Without one, the detector
// still tracks the buffer internally.
func WithSurface(s InputSurface) Option {
	return func(d *Detector) {
		d.surface = s
	}
}

// WithObserver receives trace events.
func WithObserver(o Observer) Option {
	return func(d *Detector) {
		d.observer = o
	}
}

// WithLogger sets the logger. Default: a discarding logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Detector) {
		d.logger = l
	}
}

// NewDetector creates a detector in auto mode with an empty buffer.
func NewDetector(c clock.Clock, sched clock.Scheduler, index ProductIndex, cart CartAdder, opts ...Option) *Detector {
	d := &Detector{
		cfg:    DefaultConfig(),
		clock:  c,
		sched:  sched,
		index:  index,
		cart:   cart,
		seq:    clock.NewSequence(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		mode:   ModeAuto,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Buffer returns the current search buffer.
func (d *Detector) Buffer() string {
	return d.buffer
}

// Mode returns the current mode.
func (d *Detector) Mode() Mode {
	return d.mode
}

// Pending reports whether an auto-commit timer is armed.
func (d *Detector) Pending() bool {
	return d.pending != nil
}

// ModalActive reports whether key handling is suspended.
func (d *Detector) ModalActive() bool {
	return d.modal
}

// HandleKey processes one key press.
func (d *Detector) HandleKey(ev KeyEvent) {
	if d.closed {
		return
	}
	if d.modal {
		if ev.Kind == KeyRune || ev.Kind == KeyEnter {
			d.emit(TraceEvent{Kind: TraceSuppressed, Rune: ev.Rune})
		}
		return
	}

	switch ev.Kind {
	case KeyRune:
		if !ev.Printable() {
			return
		}
		d.handleRune(ev)

	case KeyEnter:
		if ev.Focus != FocusSearch {
			return
		}
		d.cancelPending()
		d.commit(TriggerEnter)

	case KeyBackspace:
		if ev.Focus != FocusSearch || d.buffer == "" {
			return
		}
		_, size := utf8.DecodeLastRuneInString(d.buffer)
		d.setBuffer(d.buffer[:len(d.buffer)-size])
	}
}

func (d *Detector) handleRune(ev KeyEvent) {
	route := RouteKey(ev)
	if route == RoutePassThrough {
		return
	}

	now := d.clock.Now()
	class := Classify(&d.lastCharAt, now, d.cfg)

	d.setBuffer(d.buffer + string(ev.Rune))
	if route == RouteRedirect && d.surface != nil {
		d.surface.Focus()
	}
	d.emit(TraceEvent{Kind: TraceKey, Rune: ev.Rune, Class: class})

	if d.mode == ModeAuto && class == ClassBurst {
		d.arm()
	}
}

// SetBuffer mirrors an edit the host made to the search input outside the
// key stream (paste, clear button, mouse selection).
func (d *Detector) SetBuffer(v string) {
	if d.closed {
		return
	}
	d.buffer = v
}

// SetMode toggles between auto and manual. The new mode applies from the
// next key; an already armed timer is left to fire.
func (d *Detector) SetMode(m Mode) {
	if d.closed || m == d.mode {
		return
	}
	d.mode = m
	d.emit(TraceEvent{Kind: TraceMode, Mode: m})
	d.logger.Debug("scan mode changed", "mode", m.String())
}

// SetModalActive suspends (true) or resumes (false) key handling.
// Opening a modal stops any armed timer.
func (d *Detector) SetModalActive(active bool) {
	if d.closed || active == d.modal {
		return
	}
	if active {
		d.cancelPending()
	}
	d.modal = active
	d.emit(TraceEvent{Kind: TraceModal, Modal: active})
}

// Close stops any armed timer and ignores all further input.
func (d *Detector) Close() {
	if d.closed {
		return
	}
	d.cancelPending()
	d.closed = true
}

// arm replaces the armed timer with a fresh one.
func (d *Detector) arm() {
	reason := ""
	if d.pending != nil {
		d.pending.Stop()
		reason = "rearm"
	}

	d.generation++
	gen := d.generation
	d.pending = d.sched.AfterFunc(d.cfg.AutoCommitDelay, func() {
		d.fire(gen)
	})
	d.emit(TraceEvent{Kind: TraceArm, Reason: reason})
}

// fire runs the auto-commit for timer generation gen. Stale generations
// are dropped.
func (d *Detector) fire(gen uint64) {
	if d.closed || d.pending == nil || gen != d.generation {
		return
	}
	d.pending = nil
	d.emit(TraceEvent{Kind: TraceFire})
	d.commit(TriggerTimer)
}

func (d *Detector) cancelPending() {
	if d.pending == nil {
		return
	}
	d.pending.Stop()
	d.pending = nil
	d.generation++
	d.emit(TraceEvent{Kind: TraceCancel})
}

// commit resolves the live buffer and hands a match to the cart.
func (d *Detector) commit(trigger Trigger) {
	query := strings.TrimSpace(d.buffer)
	if utf8.RuneCountInString(query) < d.cfg.MinQueryLength {
		d.emit(TraceEvent{Kind: TraceTooShort, Trigger: trigger, Query: query})
		return
	}

	product, ok := catalog.Resolve(d.index.Products(), query)
	if !ok {
		d.emit(TraceEvent{Kind: TraceNoMatch, Trigger: trigger, Query: query})
		d.logger.Debug("scan matched no product", "query", query, "trigger", string(trigger))
		return
	}

	// Clear before handing off so a later burst never sees this code.
	d.setBuffer("")
	d.emit(TraceEvent{Kind: TraceCommit, Trigger: trigger, Query: query, ProductID: product.ID})
	d.logger.Info("scan committed", "query", query, "product", product.ID, "trigger", string(trigger))

	d.cart.AddScanned(product)
}

func (d *Detector) setBuffer(v string) {
	d.buffer = v
	if d.surface != nil {
		d.surface.SetValue(v)
	}
}

func (d *Detector) emit(ev TraceEvent) {
	if d.observer == nil {
		return
	}
	ev.Seq = d.seq.Next()
	ev.At = d.clock.Now()
	if ev.Mode == 0 {
		ev.Mode = d.mode
	}
	d.observer.Observe(ev)
}
