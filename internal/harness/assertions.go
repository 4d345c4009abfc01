package harness

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/posscan/internal/cart"
	"github.com/roach88/posscan/internal/scanner"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string      // Assertion type for categorization
	Expected string      // Human-readable expected outcome
	Actual   string      // Human-readable actual outcome
	Trace    []TraceLine // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, line := range e.Trace {
			fmt.Fprintf(&buf, "  %s\n", line)
		}
	}

	return buf.String()
}

// EvaluateAssertions checks every assertion against r and returns the
// failure messages, in assertion order.
func EvaluateAssertions(r *Result, assertions []Assertion) []string {
	var failures []string
	for i, a := range assertions {
		if err := evaluateAssertion(r, a); err != nil {
			failures = append(failures, fmt.Sprintf("assertions[%d]: %s", i, err.Error()))
		}
	}
	return failures
}

func evaluateAssertion(r *Result, a Assertion) error {
	switch a.Type {
	case AssertCommitCount:
		return assertTraceCount(r.Trace, AssertCommitCount, string(scanner.TraceCommit), a.Count)
	case AssertTraceCount:
		return assertTraceCount(r.Trace, AssertTraceCount, a.Event, a.Count)
	case AssertBuffer:
		if r.Buffer != *a.Value {
			return &AssertionError{
				Type:     AssertBuffer,
				Expected: strconv.Quote(*a.Value),
				Actual:   strconv.Quote(r.Buffer),
				Trace:    r.Trace,
			}
		}
		return nil
	case AssertCartContains:
		return assertCartContains(r, a)
	case AssertTraceOrder:
		return assertTraceOrder(r.Trace, a.Events)
	case AssertScanLog:
		return assertScanLog(r, a)
	case AssertPending:
		want := *a.Value == "true"
		if r.Pending != want {
			return &AssertionError{
				Type:     AssertPending,
				Expected: strconv.FormatBool(want),
				Actual:   strconv.FormatBool(r.Pending),
				Trace:    r.Trace,
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func assertTraceCount(trace []TraceLine, typ, kind string, want int) error {
	got := 0
	for _, l := range trace {
		if l.Kind == kind {
			got++
		}
	}
	if got != want {
		return &AssertionError{
			Type:     typ,
			Expected: fmt.Sprintf("%d %s events", want, kind),
			Actual:   fmt.Sprintf("%d %s events", got, kind),
			Trace:    trace,
		}
	}
	return nil
}

// assertTraceOrder checks that the event kinds appear in the given order.
// Events don't need to be consecutive (intervening events are allowed).
func assertTraceOrder(trace []TraceLine, kinds []string) error {
	next := 0
	for _, l := range trace {
		if next < len(kinds) && l.Kind == kinds[next] {
			next++
		}
	}
	if next == len(kinds) {
		return nil
	}
	return &AssertionError{
		Type:     AssertTraceOrder,
		Expected: strings.Join(kinds, " -> "),
		Actual:   fmt.Sprintf("matched %d of %d, missing %q", next, len(kinds), kinds[next]),
		Trace:    trace,
	}
}

func assertCartContains(r *Result, a Assertion) error {
	for _, l := range r.Cart {
		if l.Product.ID != a.Product || l.Serial != a.Serial {
			continue
		}
		if a.Quantity > 0 && l.Quantity != a.Quantity {
			return &AssertionError{
				Type:     AssertCartContains,
				Expected: fmt.Sprintf("%s x%d", l.Key(), a.Quantity),
				Actual:   fmt.Sprintf("%s x%d", l.Key(), l.Quantity),
				Trace:    r.Trace,
			}
		}
		return nil
	}

	lines := make([]string, len(r.Cart))
	for i, l := range r.Cart {
		lines[i] = fmt.Sprintf("%s x%d", l.Key(), l.Quantity)
	}
	return &AssertionError{
		Type:     AssertCartContains,
		Expected: fmt.Sprintf("line %s", cart.LineKey(a.Product, a.Serial)),
		Actual:   fmt.Sprintf("cart [%s]", strings.Join(lines, ", ")),
		Trace:    r.Trace,
	}
}

func assertScanLog(r *Result, a Assertion) error {
	got := 0
	for _, rec := range r.Scans {
		if rec.Outcome == a.Outcome {
			got++
		}
	}
	if got != a.Count {
		return &AssertionError{
			Type:     AssertScanLog,
			Expected: fmt.Sprintf("%d %s rows", a.Count, a.Outcome),
			Actual:   fmt.Sprintf("%d %s rows of %d", got, a.Outcome, len(r.Scans)),
		}
	}
	return nil
}
