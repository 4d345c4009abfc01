package cart

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/roach88/posscan/internal/catalog"
)

// Line is one cart row. Serialised lines always hold exactly one unit.
type Line struct {
	Product  catalog.Product `json:"product"`
	Quantity int             `json:"quantity"`
	Serial   string          `json:"serialNumber,omitempty"`
}

// Key identifies the line: the product id, suffixed with the serial number
// for serialised lines.
func (l Line) Key() string {
	return LineKey(l.Product.ID, l.Serial)
}

// Amount is price times quantity.
func (l Line) Amount() float64 {
	return l.Product.Price() * float64(l.Quantity)
}

// LineKey builds a line key from its parts.
func LineKey(productID, serial string) string {
	if serial == "" {
		return productID
	}
	return productID + "_" + serial
}

// Totals summarises the cart.
type Totals struct {
	Items    int     `json:"items"`
	Subtotal float64 `json:"subtotal"`
	Tax      float64 `json:"tax"`
	Total    float64 `json:"total"`
}

// ModalNotifier is told when the serial prompt opens and closes.
type ModalNotifier interface {
	SetModalActive(active bool)
}

// Controller is the cart. Safe for concurrent use.
//
// The modal notifier is called with the lock released, so a notifier may
// call back into the controller.
type Controller struct {
	mu      sync.Mutex
	lines   []Line
	pending *catalog.Product
	modal   ModalNotifier
	logger  *slog.Logger
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = l
	}
}

// WithModalNotifier sets the notifier for the serial prompt.
func WithModalNotifier(n ModalNotifier) Option {
	return func(c *Controller) {
		c.modal = n
	}
}

// New returns an empty cart.
func New(opts ...Option) *Controller {
	c := &Controller{logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetModalNotifier replaces the notifier. Used when the notifier is built
// after the cart (the scanner needs the cart, the cart notifies the scanner).
func (c *Controller) SetModalNotifier(n ModalNotifier) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.modal = n
}

// AddScanned adds a product delivered by the scanner. Refusals are logged.
func (c *Controller) AddScanned(p catalog.Product) {
	out := c.Add(p)
	if out.Changed() || out == NeedsSerial {
		return
	}
	c.logger.Warn("scanned product refused", "product", p.ID, "name", p.Name, "outcome", out.String(), "stock", p.Stock)
}

// Add adds one unit of p. Warranty products open the serial prompt instead.
func (c *Controller) Add(p catalog.Product) Outcome {
	c.mu.Lock()
	if c.pending != nil {
		c.mu.Unlock()
		return PromptBusy
	}
	if p.Stock <= 0 {
		c.mu.Unlock()
		return OutOfStock
	}
	if p.HasWarranty() {
		pending := p
		c.pending = &pending
		notifier := c.modal
		c.mu.Unlock()

		c.logger.Debug("serial prompt opened", "product", p.ID)
		if notifier != nil {
			notifier.SetModalActive(true)
		}
		return NeedsSerial
	}
	out := c.incrementLocked(p)
	c.mu.Unlock()
	return out
}

// PendingSerial returns the product awaiting a serial number, if any.
func (c *Controller) PendingSerial() (catalog.Product, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		return catalog.Product{}, false
	}
	return *c.pending, true
}

// ConfirmSerial adds the pending product as its own line with serial sn and
// closes the prompt. On error the prompt stays open.
func (c *Controller) ConfirmSerial(sn string) error {
	sn = strings.TrimSpace(sn)

	c.mu.Lock()
	if c.pending == nil {
		c.mu.Unlock()
		return ErrNoPrompt
	}
	if sn == "" {
		c.mu.Unlock()
		return ErrBlankSerial
	}
	for _, l := range c.lines {
		if l.Serial == sn {
			c.mu.Unlock()
			return fmt.Errorf("%w: %s", ErrDuplicateSerial, sn)
		}
	}
	p := *c.pending
	c.lines = append(c.lines, Line{Product: p, Quantity: 1, Serial: sn})
	c.pending = nil
	notifier := c.modal
	c.mu.Unlock()

	c.logger.Debug("serialised line added", "product", p.ID, "serial", sn)
	if notifier != nil {
		notifier.SetModalActive(false)
	}
	return nil
}

// SkipSerial adds the pending product without a serial number and closes
// the prompt. A stock refusal keeps the prompt open.
func (c *Controller) SkipSerial() (Outcome, error) {
	c.mu.Lock()
	if c.pending == nil {
		c.mu.Unlock()
		return 0, ErrNoPrompt
	}
	p := *c.pending
	out := c.incrementLocked(p)
	if !out.Changed() {
		c.mu.Unlock()
		return out, nil
	}
	c.pending = nil
	notifier := c.modal
	c.mu.Unlock()

	if notifier != nil {
		notifier.SetModalActive(false)
	}
	return out, nil
}

// CancelSerial closes the prompt without adding anything.
func (c *Controller) CancelSerial() {
	c.mu.Lock()
	if c.pending == nil {
		c.mu.Unlock()
		return
	}
	c.pending = nil
	notifier := c.modal
	c.mu.Unlock()

	if notifier != nil {
		notifier.SetModalActive(false)
	}
}

// UpdateQuantity sets a line's quantity. Zero or less removes the line.
func (c *Controller) UpdateQuantity(key string, qty int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexLocked(key)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrLineNotFound, key)
	}
	if qty < 1 {
		c.lines = append(c.lines[:i], c.lines[i+1:]...)
		return nil
	}
	l := &c.lines[i]
	if l.Serial != "" && qty > 1 {
		return ErrSerialQuantity
	}
	if qty > l.Product.Stock {
		return fmt.Errorf("%w: only %d available", ErrStockLimit, l.Product.Stock)
	}
	l.Quantity = qty
	return nil
}

// Remove deletes a line.
func (c *Controller) Remove(key string) error {
	return c.UpdateQuantity(key, 0)
}

// Clear empties the cart. An open prompt is left alone.
func (c *Controller) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = nil
}

// Lines returns a copy of the cart lines in insertion order.
func (c *Controller) Lines() []Line {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Line, len(c.lines))
	copy(out, c.lines)
	return out
}

// Totals sums the cart. Tax is computed per line from the product's
// percentage tax rate.
func (c *Controller) Totals() Totals {
	c.mu.Lock()
	defer c.mu.Unlock()

	var t Totals
	for _, l := range c.lines {
		amount := l.Amount()
		t.Items += l.Quantity
		t.Subtotal += amount
		t.Tax += amount * l.Product.TaxRate / 100
	}
	t.Total = t.Subtotal + t.Tax
	return t
}

// incrementLocked adds one unit to the unserialised line for p.
func (c *Controller) incrementLocked(p catalog.Product) Outcome {
	if p.Stock <= 0 {
		return OutOfStock
	}
	i := c.indexLocked(p.ID)
	if i < 0 {
		c.lines = append(c.lines, Line{Product: p, Quantity: 1})
		return Added
	}
	l := &c.lines[i]
	if l.Quantity >= p.Stock {
		return StockLimit
	}
	l.Quantity++
	// Keep the line's product current with the latest catalog data.
	l.Product = p
	return Incremented
}

func (c *Controller) indexLocked(key string) int {
	for i, l := range c.lines {
		if l.Key() == key {
			return i
		}
	}
	return -1
}
