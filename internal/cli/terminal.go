package cli

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"unicode/utf8"

	"github.com/roach88/posscan/internal/cart"
	"github.com/roach88/posscan/internal/catalog"
	"github.com/roach88/posscan/internal/scanner"
	"github.com/roach88/posscan/internal/store"
)

// termKeyKind identifies a decoded terminal key.
type termKeyKind int

const (
	termRune termKeyKind = iota + 1
	termEnter
	termBackspace
	termTab
	termEscape
	termInterrupt
	termFunction
	termOther
)

type termKey struct {
	Kind termKeyKind
	Rune rune
	Name string // function key name, e.g. "F5"
}

// functionKeys maps xterm, VT220 and rxvt function key sequences to names.
var functionKeys = map[string]string{
	"\x1bOP": "F1", "\x1bOQ": "F2", "\x1bOR": "F3", "\x1bOS": "F4",
	"\x1b[11~": "F1", "\x1b[12~": "F2", "\x1b[13~": "F3", "\x1b[14~": "F4",
	"\x1b[15~": "F5", "\x1b[17~": "F6", "\x1b[18~": "F7", "\x1b[19~": "F8",
	"\x1b[20~": "F9", "\x1b[21~": "F10", "\x1b[23~": "F11", "\x1b[24~": "F12",
}

// decodeKeys splits raw-mode terminal input into keys. Function keys
// decode to termFunction, other escape sequences (arrows) to a single
// termOther; a lone ESC is termEscape.
func decodeKeys(b []byte) []termKey {
	var keys []termKey
	for len(b) > 0 {
		switch c := b[0]; {
		case c == '\r' || c == '\n':
			keys = append(keys, termKey{Kind: termEnter})
			b = b[1:]
			// CRLF is one Enter.
			if c == '\r' && len(b) > 0 && b[0] == '\n' {
				b = b[1:]
			}
		case c == 0x7f || c == 0x08:
			keys = append(keys, termKey{Kind: termBackspace})
			b = b[1:]
		case c == '\t':
			keys = append(keys, termKey{Kind: termTab})
			b = b[1:]
		case c == 0x03 || c == 0x04:
			keys = append(keys, termKey{Kind: termInterrupt})
			b = b[1:]
		case c == 0x1b:
			n := escapeLen(b)
			switch name, ok := functionKeys[string(b[:n])]; {
			case n == 1:
				keys = append(keys, termKey{Kind: termEscape})
			case ok:
				keys = append(keys, termKey{Kind: termFunction, Name: name})
			default:
				keys = append(keys, termKey{Kind: termOther})
			}
			b = b[n:]
		case c < 0x20:
			keys = append(keys, termKey{Kind: termOther})
			b = b[1:]
		default:
			r, size := utf8.DecodeRune(b)
			keys = append(keys, termKey{Kind: termRune, Rune: r})
			b = b[size:]
		}
	}
	return keys
}

// escapeLen returns the length of the escape sequence at the start of b.
func escapeLen(b []byte) int {
	if len(b) < 2 || (b[1] != '[' && b[1] != 'O') {
		return 1
	}
	for i := 2; i < len(b); i++ {
		if b[i] >= 0x40 && b[i] <= 0x7e {
			return i + 1
		}
	}
	return len(b)
}

// screen is the raw-mode terminal. It is the detector's search input and
// draws a one-line prompt below the scrolling output.
type screen struct {
	mu     sync.Mutex
	w      io.Writer
	value  string
	serial *string // non-nil while the serial prompt is open
	focus  atomic.Int32
}

func newScreen(w io.Writer) *screen {
	s := &screen{w: w}
	s.focus.Store(int32(scanner.FocusNone))
	return s
}

// SetValue implements scanner.InputSurface.
func (s *screen) SetValue(v string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = v
	s.drawLocked()
}

// Focus implements scanner.InputSurface.
func (s *screen) Focus() {
	s.focus.Store(int32(scanner.FocusSearch))
}

// Blur drops focus from the search input.
func (s *screen) Blur() {
	s.focus.Store(int32(scanner.FocusNone))
}

// CurrentFocus is the focus reported with the next key.
func (s *screen) CurrentFocus() scanner.Focus {
	return scanner.Focus(s.focus.Load())
}

// SetSerial shows (v non-nil) or hides the serial prompt.
func (s *screen) SetSerial(v *string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.serial = v
	s.drawLocked()
}

// Println prints a message above the prompt.
func (s *screen) Println(format string, args ...any) {
	s.Print(fmt.Sprintf(format, args...) + "\n")
}

// Print prints text above the prompt, translating newlines for raw mode.
func (s *screen) Print(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprint(s.w, "\r\x1b[K"+strings.ReplaceAll(text, "\n", "\r\n"))
	s.drawLocked()
}

func (s *screen) drawLocked() {
	if s.serial != nil {
		fmt.Fprintf(s.w, "\r\x1b[Kserial> %s", *s.serial)
		return
	}
	fmt.Fprintf(s.w, "\r\x1b[Kscan> %s", s.value)
}

// cartPrinter hands scanned products to the cart and shows the result.
// It runs on the station goroutine.
type cartPrinter struct {
	cart   *cart.Controller
	screen *screen
}

func (p cartPrinter) AddScanned(product catalog.Product) {
	out := p.cart.Add(product)
	switch out {
	case cart.NeedsSerial:
		p.screen.Println("%s needs a serial number (Enter with none to skip, Esc to cancel)", product.Name)
		empty := ""
		p.screen.SetSerial(&empty)
		return
	case cart.Added, cart.Incremented:
		p.screen.Println("+ %s", product.Name)
	default:
		p.screen.Println("! %s: %s (stock %d)", product.Name, out, product.Stock)
		return
	}
	p.printCart()
}

func (p cartPrinter) printCart() {
	var buf bytes.Buffer
	printCart(&buf, p.cart.Lines(), p.cart.Totals())
	p.screen.Print(buf.String())
}

// printCart renders cart lines and totals.
func printCart(w io.Writer, lines []cart.Line, totals cart.Totals) {
	if len(lines) == 0 {
		fmt.Fprintln(w, "Cart is empty")
		return
	}
	for _, l := range lines {
		name := l.Product.Name
		if l.Serial != "" {
			name += " [SN " + l.Serial + "]"
		}
		fmt.Fprintf(w, "  %3d x %-32s %10.2f\n", l.Quantity, name, l.Amount())
	}
	fmt.Fprintf(w, "  %d item(s)  subtotal %.2f  tax %.2f  total %.2f\n",
		totals.Items, totals.Subtotal, totals.Tax, totals.Total)
}

// printReceipt renders a plain-text sale receipt.
func printReceipt(w io.Writer, shop store.ShopSettings, lines []cart.Line, totals cart.Totals) {
	const rule = "--------------------------------------------------------------"
	fmt.Fprint(w, shop.ReceiptHeader())
	fmt.Fprintln(w, rule)
	printCart(w, lines, totals)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, shop.ReceiptFooter())
}
