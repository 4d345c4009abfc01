package scanner

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/roach88/posscan/internal/catalog"
	"github.com/roach88/posscan/internal/testutil"
)

// recordingCart captures products handed over by the detector.
type recordingCart struct {
	added []catalog.Product
	onAdd func(catalog.Product)
}

func (c *recordingCart) AddScanned(p catalog.Product) {
	c.added = append(c.added, p)
	if c.onAdd != nil {
		c.onAdd(p)
	}
}

// fakeSurface stands in for the host's search input.
type fakeSurface struct {
	value   string
	focus   Focus
	focuses int
}

func (s *fakeSurface) SetValue(v string) { s.value = v }

func (s *fakeSurface) Focus() {
	s.focus = FocusSearch
	s.focuses++
}

type fixture struct {
	clock   *testutil.FakeClock
	cart    *recordingCart
	surface *fakeSurface
	det     *Detector
	trace   []TraceEvent
}

var testProducts = []catalog.Product{
	{ID: "p1", Name: "Phone", SKU: "PH-100", Barcode: "8901030911", Stock: 5},
	{ID: "p2", Name: "Cable", SKU: "ABC123", Stock: 10},
	{ID: "p3", Name: "Case", Barcode: "ABC123X", Stock: 3},
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		clock:   testutil.NewFakeClock(),
		cart:    &recordingCart{},
		surface: &fakeSurface{},
	}
	base := []Option{
		WithSurface(f.surface),
		WithObserver(ObserverFunc(func(ev TraceEvent) { f.trace = append(f.trace, ev) })),
	}
	f.det = NewDetector(f.clock, f.clock, catalog.NewStaticStore(testProducts), f.cart, append(base, opts...)...)
	t.Cleanup(f.det.Close)
	return f
}

// typeText delivers s one rune at a time, gap apart, with focus as the host
// reports it (the surface takes focus after a redirect).
func (f *fixture) typeText(s string, gap time.Duration) {
	for i, r := range s {
		if i > 0 {
			f.clock.Advance(gap)
		}
		f.det.HandleKey(RuneKey(r, f.surface.focus))
	}
}

func (f *fixture) enter() {
	f.det.HandleKey(EnterKey(f.surface.focus))
}

func (f *fixture) count(kind TraceKind) int {
	n := 0
	for _, ev := range f.trace {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

func (f *fixture) kinds() []TraceKind {
	out := make([]TraceKind, 0, len(f.trace))
	for _, ev := range f.trace {
		out = append(out, ev.Kind)
	}
	return out
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
