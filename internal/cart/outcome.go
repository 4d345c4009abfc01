package cart

import (
	"errors"
	"fmt"
)

// Outcome is the result of adding a product.
type Outcome int

const (
	// Added created a new line.
	Added Outcome = iota + 1
	// Incremented raised the quantity of an existing line.
	Incremented
	// OutOfStock refused a product with zero stock.
	OutOfStock
	// StockLimit refused because the line already holds all available stock.
	StockLimit
	// NeedsSerial opened the serial prompt; nothing was added yet.
	NeedsSerial
	// PromptBusy refused because a serial prompt is already open.
	PromptBusy
)

// String returns the outcome name used in logs and traces.
func (o Outcome) String() string {
	switch o {
	case Added:
		return "added"
	case Incremented:
		return "incremented"
	case OutOfStock:
		return "out_of_stock"
	case StockLimit:
		return "stock_limit"
	case NeedsSerial:
		return "needs_serial"
	case PromptBusy:
		return "prompt_busy"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Changed reports whether the outcome modified the cart lines.
func (o Outcome) Changed() bool {
	return o == Added || o == Incremented
}

var (
	// ErrNoPrompt is returned when no serial prompt is open.
	ErrNoPrompt = errors.New("no serial prompt open")
	// ErrBlankSerial is returned for an empty serial number.
	ErrBlankSerial = errors.New("serial number is blank")
	// ErrDuplicateSerial is returned when the serial is already in the cart.
	ErrDuplicateSerial = errors.New("serial number already in cart")
	// ErrLineNotFound is returned for an unknown line key.
	ErrLineNotFound = errors.New("cart line not found")
	// ErrSerialQuantity is returned when a serialised line would exceed one unit.
	ErrSerialQuantity = errors.New("serialised line must have quantity 1")
	// ErrStockLimit is returned when a quantity exceeds available stock.
	ErrStockLimit = errors.New("quantity exceeds stock")
)
