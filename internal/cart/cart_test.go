package cart

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/posscan/internal/catalog"
)

var (
	cable = catalog.Product{ID: "c1", Name: "Cable", SellingPrice: 200, Stock: 2, TaxRate: 10}
	phone = catalog.Product{ID: "ph", Name: "Phone", SellingPrice: 50000, EffectivePrice: 45000, Stock: 3, WarrantyDuration: 12}
	empty = catalog.Product{ID: "e", Name: "Sold out", SellingPrice: 10, Stock: 0}
)

type modalRecorder struct {
	calls []bool
}

func (m *modalRecorder) SetModalActive(active bool) {
	m.calls = append(m.calls, active)
}

func newCart(t *testing.T) (*Controller, *modalRecorder) {
	t.Helper()
	m := &modalRecorder{}
	c := New(WithModalNotifier(m), WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	return c, m
}

func TestAdd_IncrementsUpToStock(t *testing.T) {
	c, _ := newCart(t)

	assert.Equal(t, Added, c.Add(cable))
	assert.Equal(t, Incremented, c.Add(cable))
	assert.Equal(t, StockLimit, c.Add(cable))

	lines := c.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, 2, lines[0].Quantity)
	assert.Equal(t, "c1", lines[0].Key())
}

func TestAdd_OutOfStock(t *testing.T) {
	c, m := newCart(t)

	assert.Equal(t, OutOfStock, c.Add(empty))
	assert.Empty(t, c.Lines())
	assert.Empty(t, m.calls)
}

func TestAdd_WarrantyOpensPrompt(t *testing.T) {
	c, m := newCart(t)

	assert.Equal(t, NeedsSerial, c.Add(phone))
	assert.Empty(t, c.Lines())
	assert.Equal(t, []bool{true}, m.calls)

	p, ok := c.PendingSerial()
	require.True(t, ok)
	assert.Equal(t, "ph", p.ID)

	assert.Equal(t, PromptBusy, c.Add(cable), "no adds while the prompt is open")
}

func TestConfirmSerial(t *testing.T) {
	c, m := newCart(t)

	c.Add(phone)
	assert.ErrorIs(t, c.ConfirmSerial("   "), ErrBlankSerial)
	require.NoError(t, c.ConfirmSerial(" IMEI-1 "))

	_, ok := c.PendingSerial()
	assert.False(t, ok)
	assert.Equal(t, []bool{true, false}, m.calls)

	c.Add(phone)
	assert.ErrorIs(t, c.ConfirmSerial("IMEI-1"), ErrDuplicateSerial)
	_, ok = c.PendingSerial()
	assert.True(t, ok, "prompt stays open after a refusal")
	require.NoError(t, c.ConfirmSerial("IMEI-2"))

	lines := c.Lines()
	require.Len(t, lines, 2)
	assert.Equal(t, "ph_IMEI-1", lines[0].Key())
	assert.Equal(t, "ph_IMEI-2", lines[1].Key())
	assert.Equal(t, 1, lines[1].Quantity)
}

func TestConfirmSerial_NoPrompt(t *testing.T) {
	c, _ := newCart(t)
	assert.ErrorIs(t, c.ConfirmSerial("x"), ErrNoPrompt)
	_, err := c.SkipSerial()
	assert.ErrorIs(t, err, ErrNoPrompt)
}

func TestSkipSerial(t *testing.T) {
	c, m := newCart(t)

	c.Add(phone)
	out, err := c.SkipSerial()
	require.NoError(t, err)
	assert.Equal(t, Added, out)

	c.Add(phone)
	out, err = c.SkipSerial()
	require.NoError(t, err)
	assert.Equal(t, Incremented, out)

	lines := c.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, "ph", lines[0].Key())
	assert.Equal(t, 2, lines[0].Quantity)
	assert.Equal(t, []bool{true, false, true, false}, m.calls)
}

func TestSkipSerial_StockLimitKeepsPrompt(t *testing.T) {
	c, m := newCart(t)
	one := phone
	one.Stock = 1

	c.Add(one)
	_, err := c.SkipSerial()
	require.NoError(t, err)

	c.Add(one)
	out, err := c.SkipSerial()
	require.NoError(t, err)
	assert.Equal(t, StockLimit, out)
	_, ok := c.PendingSerial()
	assert.True(t, ok)

	c.CancelSerial()
	_, ok = c.PendingSerial()
	assert.False(t, ok)
	assert.Equal(t, []bool{true, false, true, false}, m.calls)
}

func TestUpdateQuantity(t *testing.T) {
	c, _ := newCart(t)
	c.Add(cable)
	c.Add(phone)
	require.NoError(t, c.ConfirmSerial("S1"))

	assert.ErrorIs(t, c.UpdateQuantity("c1", 3), ErrStockLimit)
	require.NoError(t, c.UpdateQuantity("c1", 2))
	assert.ErrorIs(t, c.UpdateQuantity("ph_S1", 2), ErrSerialQuantity)
	assert.ErrorIs(t, c.UpdateQuantity("nope", 1), ErrLineNotFound)

	require.NoError(t, c.UpdateQuantity("ph_S1", 0))
	lines := c.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, 2, lines[0].Quantity)

	require.NoError(t, c.Remove("c1"))
	assert.Empty(t, c.Lines())
}

func TestTotals(t *testing.T) {
	c, _ := newCart(t)
	c.Add(cable)
	c.Add(cable)
	c.Add(phone)
	require.NoError(t, c.ConfirmSerial("S1"))

	got := c.Totals()
	assert.Equal(t, 3, got.Items)
	assert.InDelta(t, 45400, got.Subtotal, 0.001, "effective price wins")
	assert.InDelta(t, 40, got.Tax, 0.001)
	assert.InDelta(t, 45440, got.Total, 0.001)

	c.Clear()
	assert.Equal(t, Totals{}, c.Totals())
}

func TestAddScanned_NotifierMayReenter(t *testing.T) {
	c := New(WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	var sawPending bool
	c.SetModalNotifier(notifierFunc(func(active bool) {
		if active {
			_, sawPending = c.PendingSerial()
		}
	}))

	c.AddScanned(phone)
	assert.True(t, sawPending)
}

type notifierFunc func(bool)

func (f notifierFunc) SetModalActive(active bool) { f(active) }

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "stock_limit", StockLimit.String())
	assert.Equal(t, "Outcome(99)", Outcome(99).String())
	assert.True(t, Added.Changed())
	assert.False(t, NeedsSerial.Changed())
}
