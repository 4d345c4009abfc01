package scanner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/posscan/internal/catalog"
	"github.com/roach88/posscan/internal/clock"
	"github.com/roach88/posscan/internal/testutil"
)

const barcode = "8901030911"

func TestDetector_AutoScanCommitsOnceAfterQuiet(t *testing.T) {
	f := newFixture(t)

	f.typeText(barcode, 10*time.Millisecond)
	lastKey := f.clock.Elapsed()
	assert.Equal(t, 90*time.Millisecond, lastKey)
	assert.Empty(t, f.cart.added, "nothing commits while the burst is running")
	assert.Equal(t, 1, f.clock.Pending(), "exactly one timer armed")

	f.clock.Advance(149 * time.Millisecond)
	assert.Empty(t, f.cart.added)

	f.clock.Advance(1 * time.Millisecond)
	require.Len(t, f.cart.added, 1)
	assert.Equal(t, "p1", f.cart.added[0].ID)
	assert.Equal(t, "", f.det.Buffer())
	assert.Equal(t, "", f.surface.value)
	assert.False(t, f.det.Pending())

	f.clock.Advance(time.Second)
	assert.Len(t, f.cart.added, 1, "no further commits from the same burst")

	assert.Equal(t, 10, f.count(TraceArm))
	assert.Equal(t, 1, f.count(TraceFire))
	assert.Equal(t, 1, f.count(TraceCommit))
}

func TestDetector_FireHappensDelayAfterLastBurstKey(t *testing.T) {
	f := newFixture(t)
	f.typeText(barcode, 10*time.Millisecond)
	f.clock.Advance(time.Second)

	for _, ev := range f.trace {
		if ev.Kind == TraceFire {
			assert.Equal(t, 240*time.Millisecond, ev.At.Sub(testutil.Epoch))
		}
	}
}

func TestDetector_AtMostOneTimerDuringBurst(t *testing.T) {
	f := newFixture(t)

	for i, r := range barcode {
		if i > 0 {
			f.clock.Advance(5 * time.Millisecond)
		}
		f.det.HandleKey(RuneKey(r, f.surface.focus))
		assert.Equal(t, 1, f.clock.Pending(), "after key %d", i)
	}
}

func TestDetector_EnterPreemptsTimer(t *testing.T) {
	f := newFixture(t)

	f.typeText(barcode, 10*time.Millisecond)
	require.True(t, f.det.Pending())

	f.clock.Advance(20 * time.Millisecond)
	f.enter()

	require.Len(t, f.cart.added, 1)
	assert.False(t, f.det.Pending())
	assert.Equal(t, 0, f.clock.Pending())

	f.clock.Advance(time.Second)
	assert.Len(t, f.cart.added, 1)
	assert.Equal(t, 0, f.count(TraceFire), "the armed timer never fires")

	last := f.trace[len(f.trace)-1]
	assert.Equal(t, TraceCommit, last.Kind)
	assert.Equal(t, TriggerEnter, last.Trigger)
}

func TestDetector_BurstThenEnterCommitsOnceInBothModes(t *testing.T) {
	for _, mode := range []Mode{ModeAuto, ModeManual} {
		t.Run(mode.String(), func(t *testing.T) {
			f := newFixture(t, WithMode(mode))

			f.typeText(barcode, 10*time.Millisecond)
			f.clock.Advance(10 * time.Millisecond)
			f.enter()
			f.clock.Advance(time.Second)

			require.Len(t, f.cart.added, 1)
			assert.Equal(t, "p1", f.cart.added[0].ID)
			assert.Equal(t, "", f.det.Buffer())
		})
	}
}

func TestDetector_ManualModeNeverArms(t *testing.T) {
	f := newFixture(t, WithMode(ModeManual))

	f.typeText(barcode, 10*time.Millisecond)
	assert.Equal(t, 0, f.clock.Pending())
	assert.Equal(t, 0, f.count(TraceArm))

	f.clock.Advance(time.Second)
	assert.Empty(t, f.cart.added)
	assert.Equal(t, barcode, f.det.Buffer())

	f.enter()
	require.Len(t, f.cart.added, 1)
}

func TestDetector_MinimumLengthGuard(t *testing.T) {
	for _, buf := range []string{"", "8", "   ", " 8 "} {
		t.Run("buffer "+buf, func(t *testing.T) {
			f := newFixture(t, WithMode(ModeManual))
			f.det.SetBuffer(buf)

			f.det.HandleKey(EnterKey(FocusSearch))

			assert.Empty(t, f.cart.added)
			assert.Equal(t, 1, f.count(TraceTooShort))
			assert.Equal(t, 0, f.count(TraceNoMatch), "no lookup happens")
		})
	}
}

func TestDetector_SingleBurstKeyTimesOutTooShort(t *testing.T) {
	f := newFixture(t)

	f.typeText("8", 0)
	f.clock.Advance(time.Second)

	assert.Empty(t, f.cart.added)
	assert.Equal(t, 1, f.count(TraceTooShort))
	assert.Equal(t, "8", f.det.Buffer())
}

func TestDetector_NoMatchKeepsBuffer(t *testing.T) {
	f := newFixture(t)

	f.typeText("999999", 10*time.Millisecond)
	f.clock.Advance(time.Second)

	assert.Empty(t, f.cart.added)
	assert.Equal(t, "999999", f.det.Buffer())
	assert.Equal(t, "999999", f.surface.value)
	assert.Equal(t, 1, f.count(TraceNoMatch))
}

func TestDetector_MatchPrecedence(t *testing.T) {
	products := []catalog.Product{
		{ID: "B", SKU: "X-100"},
		{ID: "A", Barcode: "X-100"},
	}
	c := testutil.NewFakeClock()
	cart := &recordingCart{}
	d := NewDetector(c, c, catalog.NewStaticStore(products), cart, WithMode(ModeManual))
	defer d.Close()

	d.SetBuffer("X-100")
	d.HandleKey(EnterKey(FocusSearch))

	require.Len(t, cart.added, 1)
	assert.Equal(t, "A", cart.added[0].ID)
}

func TestDetector_SKUCaseInsensitiveBarcodeExact(t *testing.T) {
	f := newFixture(t, WithMode(ModeManual))

	// Matches p2 by SKU "ABC123".
	f.det.SetBuffer("abc123")
	f.det.HandleKey(EnterKey(FocusSearch))
	require.Len(t, f.cart.added, 1)
	assert.Equal(t, "p2", f.cart.added[0].ID)

	// p3's barcode "ABC123X" does not fold.
	f.det.SetBuffer("abc123x")
	f.det.HandleKey(EnterKey(FocusSearch))
	assert.Len(t, f.cart.added, 1)
	assert.Equal(t, "abc123x", f.det.Buffer())
}

func TestDetector_ModalSuppressesAndCancels(t *testing.T) {
	f := newFixture(t)

	f.typeText(barcode, 10*time.Millisecond)
	require.True(t, f.det.Pending())

	f.det.SetModalActive(true)
	assert.False(t, f.det.Pending())
	assert.Equal(t, 0, f.clock.Pending(), "armed timer is stopped, not just ignored")

	f.det.HandleKey(RuneKey('7', FocusSearch))
	f.det.HandleKey(EnterKey(FocusSearch))
	f.clock.Advance(time.Second)

	assert.Empty(t, f.cart.added)
	assert.Equal(t, barcode, f.det.Buffer(), "buffer untouched while modal is open")
	assert.Equal(t, 2, f.count(TraceSuppressed))

	f.det.SetModalActive(false)
	f.enter()
	require.Len(t, f.cart.added, 1)
}

func TestDetector_OtherInputPassesThrough(t *testing.T) {
	f := newFixture(t)

	for _, r := range "12" {
		f.det.HandleKey(RuneKey(r, FocusOtherInput))
	}
	f.det.HandleKey(EnterKey(FocusOtherInput))
	f.clock.Advance(time.Second)

	assert.Equal(t, "", f.det.Buffer())
	assert.Equal(t, 0, f.surface.focuses, "focus is not stolen")
	assert.Equal(t, 0, f.count(TraceArm))
	assert.Empty(t, f.trace)
}

func TestDetector_RedirectFocusesSearch(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, FocusNone, f.surface.focus)

	f.det.HandleKey(RuneKey('8', FocusNone))

	assert.Equal(t, FocusSearch, f.surface.focus)
	assert.Equal(t, "8", f.surface.value)
	assert.Equal(t, 1, f.surface.focuses)

	f.det.HandleKey(RuneKey('9', FocusSearch))
	assert.Equal(t, "89", f.surface.value)
	assert.Equal(t, 1, f.surface.focuses, "search already focused")
}

func TestDetector_WorksWithoutSurface(t *testing.T) {
	c := testutil.NewFakeClock()
	cart := &recordingCart{}
	d := NewDetector(c, c, catalog.NewStaticStore(testProducts), cart)
	defer d.Close()

	for _, r := range barcode {
		d.HandleKey(RuneKey(r, FocusNone))
	}
	c.Advance(time.Second)

	require.Len(t, cart.added, 1)
	assert.Equal(t, "", d.Buffer())
}

func TestDetector_HumanTypingInAutoMode(t *testing.T) {
	f := newFixture(t)

	f.typeText("ph-100", 200*time.Millisecond)

	// Only the first key (grace) armed; it fired on a one-char buffer.
	assert.Equal(t, 1, f.count(TraceArm))
	assert.Equal(t, 1, f.count(TraceTooShort))
	assert.Empty(t, f.cart.added)
	assert.Equal(t, "ph-100", f.det.Buffer())

	f.enter()
	require.Len(t, f.cart.added, 1)
	assert.Equal(t, "p1", f.cart.added[0].ID)
}

func TestDetector_ModeToggleKeepsArmedTimer(t *testing.T) {
	f := newFixture(t)

	f.typeText(barcode, 10*time.Millisecond)
	f.det.SetMode(ModeManual)
	assert.True(t, f.det.Pending(), "toggle does not cancel")

	f.clock.Advance(time.Second)
	require.Len(t, f.cart.added, 1, "timer armed before the toggle fires once")

	f.typeText(barcode, 10*time.Millisecond)
	f.clock.Advance(time.Second)
	assert.Len(t, f.cart.added, 1, "manual mode applies to the next keys")
	assert.Equal(t, barcode, f.det.Buffer())
}

func TestDetector_ToggleToAutoAppliesToNextKey(t *testing.T) {
	f := newFixture(t, WithMode(ModeManual))

	f.typeText("89010309", 10*time.Millisecond)
	f.det.SetMode(ModeAuto)
	assert.False(t, f.det.Pending())

	f.clock.Advance(10 * time.Millisecond)
	f.typeText("11", 10*time.Millisecond)
	f.clock.Advance(time.Second)

	require.Len(t, f.cart.added, 1)
}

func TestDetector_CloseCancelsAndIgnores(t *testing.T) {
	f := newFixture(t)

	f.typeText(barcode, 10*time.Millisecond)
	f.det.Close()
	assert.Equal(t, 0, f.clock.Pending())

	f.clock.Advance(time.Second)
	f.enter()
	f.det.HandleKey(RuneKey('1', FocusSearch))

	assert.Empty(t, f.cart.added)
}

func TestDetector_PostCommitReset(t *testing.T) {
	f := newFixture(t)

	f.typeText(barcode, 10*time.Millisecond)
	f.clock.Advance(time.Second)
	require.Len(t, f.cart.added, 1)

	// A scanner's trailing Enter after the auto-commit finds an empty buffer.
	f.enter()
	assert.Len(t, f.cart.added, 1)
	assert.Equal(t, 1, f.count(TraceTooShort))
}

func TestDetector_ConsecutiveScans(t *testing.T) {
	f := newFixture(t)

	f.typeText(barcode, 10*time.Millisecond)
	f.clock.Advance(2 * time.Second)
	f.typeText(barcode, 10*time.Millisecond)
	f.clock.Advance(2 * time.Second)

	require.Len(t, f.cart.added, 2)
}

func TestDetector_CartOpeningModalDuringCommit(t *testing.T) {
	f := newFixture(t)
	f.cart.onAdd = func(catalog.Product) { f.det.SetModalActive(true) }

	f.typeText(barcode, 10*time.Millisecond)
	f.clock.Advance(time.Second)
	require.Len(t, f.cart.added, 1)
	assert.True(t, f.det.ModalActive())

	f.typeText(barcode, 10*time.Millisecond)
	f.clock.Advance(time.Second)
	assert.Len(t, f.cart.added, 1)
	assert.Equal(t, "", f.det.Buffer())
}

func TestDetector_Backspace(t *testing.T) {
	f := newFixture(t, WithMode(ModeManual))

	f.typeText("PH-1000", 200*time.Millisecond)
	f.det.HandleKey(KeyEvent{Kind: KeyBackspace, Focus: FocusSearch})
	assert.Equal(t, "PH-100", f.det.Buffer())
	assert.Equal(t, "PH-100", f.surface.value)

	f.enter()
	require.Len(t, f.cart.added, 1)
}

func TestDetector_TraceSeqIncreases(t *testing.T) {
	f := newFixture(t)
	f.typeText(barcode, 10*time.Millisecond)
	f.clock.Advance(time.Second)

	require.NotEmpty(t, f.trace)
	for i := 1; i < len(f.trace); i++ {
		assert.Greater(t, f.trace[i].Seq, f.trace[i-1].Seq)
	}
}

// leakyScheduler never cancels anything, simulating a runtime timer whose
// callback was already in flight when Stop was called.
type leakyScheduler struct {
	callbacks []func()
}

type leakyTimer struct{}

func (leakyTimer) Stop() bool { return true }

func (l *leakyScheduler) AfterFunc(d time.Duration, f func()) clock.Timer {
	l.callbacks = append(l.callbacks, f)
	return leakyTimer{}
}

func TestDetector_SupersededCallbackHasNoEffect(t *testing.T) {
	c := testutil.NewFakeClock()
	sched := &leakyScheduler{}
	cart := &recordingCart{}
	d := NewDetector(c, sched, catalog.NewStaticStore(testProducts), cart)
	defer d.Close()

	for _, r := range barcode {
		d.HandleKey(RuneKey(r, FocusSearch))
	}
	require.Len(t, sched.callbacks, len(barcode))

	// Every superseded callback is a no-op.
	for _, cb := range sched.callbacks[:len(sched.callbacks)-1] {
		cb()
	}
	assert.Empty(t, cart.added)

	// Enter wins; the latest callback then finds nothing to do.
	d.HandleKey(EnterKey(FocusSearch))
	require.Len(t, cart.added, 1)
	sched.callbacks[len(sched.callbacks)-1]()
	assert.Len(t, cart.added, 1)
}

func TestDetector_TraceOrderForShortBurst(t *testing.T) {
	f := newFixture(t)

	f.typeText("AB", 10*time.Millisecond)
	f.clock.Advance(20 * time.Millisecond)
	f.enter()

	assert.Equal(t, []TraceKind{
		TraceKey, TraceArm,
		TraceKey, TraceArm,
		TraceCancel, TraceNoMatch,
	}, f.kinds())
	assert.Equal(t, "rearm", f.trace[3].Reason)
}
