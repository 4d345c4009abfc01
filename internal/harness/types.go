package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/posscan/internal/cart"
	"github.com/roach88/posscan/internal/store"
)

// Trace kinds added by the harness on top of scanner.TraceKind.
const (
	KindCart   = "cart"   // cart outcome of a handed-over product
	KindSerial = "serial" // serial prompt answered
)

// TraceLine is one event of a scenario run.
type TraceLine struct {
	// AtMS is virtual time since the scenario started, in milliseconds.
	AtMS   int64  `json:"at_ms"`
	Kind   string `json:"kind"`
	Detail string `json:"detail,omitempty"`
}

// String renders the line as it appears in golden files.
func (l TraceLine) String() string {
	if l.Detail == "" {
		return fmt.Sprintf("%dms %s", l.AtMS, l.Kind)
	}
	return fmt.Sprintf("%dms %s %s", l.AtMS, l.Kind, l.Detail)
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every assertion held.
	Pass bool `json:"pass"`

	// Trace holds detector and cart events in order.
	Trace []TraceLine `json:"trace"`

	// Errors contains assertion failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Final state.
	Buffer  string             `json:"buffer"`
	Mode    string             `json:"mode"`
	Pending bool               `json:"pending"`
	Cart    []cart.Line        `json:"cart"`
	Totals  cart.Totals        `json:"totals"`
	Scans   []store.ScanRecord `json:"scans"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceLine{},
		Errors: []string{},
		Cart:   []cart.Line{},
		Scans:  []store.ScanRecord{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// FormatTrace renders the trace, one line per event, newline terminated.
func (r *Result) FormatTrace() string {
	var b strings.Builder
	for _, l := range r.Trace {
		b.WriteString(l.String())
		b.WriteByte('\n')
	}
	return b.String()
}
