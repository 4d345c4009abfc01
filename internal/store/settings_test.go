package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAutoScan_DefaultsOn(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	on, err := s.AutoScan(ctx)
	require.NoError(t, err)
	assert.True(t, on)

	require.NoError(t, s.SetAutoScan(ctx, false))
	on, err = s.AutoScan(ctx)
	require.NoError(t, err)
	assert.False(t, on)

	require.NoError(t, s.SetAutoScan(ctx, true))
	on, err = s.AutoScan(ctx)
	require.NoError(t, err)
	assert.True(t, on)
}

func TestShopSettings_MergedOverDefaults(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	got, err := s.ShopSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, DefaultShopSettings(), got)

	// A partial document written by an older client keeps the defaults
	// for missing fields.
	_, err = s.db.Exec(`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, '')`, KeyShop, `{"phone":"0771234567"}`)
	require.NoError(t, err)

	got, err = s.ShopSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Hotline Mobile Shop", got.ShopName)
	assert.Equal(t, "0771234567", got.Phone)
	assert.Equal(t, DefaultFooter, got.FooterMessage)
}

func TestShopSettings_CorruptValue(t *testing.T) {
	s := createTestStore(t)
	_, err := s.db.Exec(`INSERT INTO settings (key, value, updated_at) VALUES (?, 'not json', '')`, KeyShop)
	require.NoError(t, err)

	got, err := s.ShopSettings(context.Background())
	assert.Error(t, err)
	assert.Equal(t, DefaultShopSettings(), got)
}

func TestShopSettings_Receipt(t *testing.T) {
	settings := ShopSettings{ShopName: "Shop", Phone: "123", Email: "a@b.c"}
	assert.Equal(t, "Shop\nPhone: 123\nEmail: a@b.c\n", settings.ReceiptHeader())
	assert.Equal(t, DefaultFooter, settings.ReceiptFooter())

	settings.FooterMessage = "Bye"
	assert.Equal(t, "Bye", settings.ReceiptFooter())
}

func TestShortcuts_RoundTripAndMerge(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	got, err := s.Shortcuts(ctx)
	require.NoError(t, err)
	assert.Equal(t, "F1", got.PayNow)
	assert.Equal(t, "F12", got.Logout)

	got.PayNow = "F6"
	require.NoError(t, s.SaveShortcuts(ctx, got))

	got, err = s.Shortcuts(ctx)
	require.NoError(t, err)
	assert.Equal(t, "F6", got.PayNow)
	assert.Equal(t, "F2", got.ClearCart)

	bindings := got.Bindings()
	require.Len(t, bindings, 8)
	assert.Equal(t, ShortcutBinding{Action: "payNow", Label: "Pay Now / Complete Sale", Key: "F6"}, bindings[0])
}

func TestShortcuts_BindAndLookup(t *testing.T) {
	sc := DefaultShortcuts()

	b, ok := sc.Lookup("f2")
	require.True(t, ok)
	assert.Equal(t, ActionClearCart, b.Action)

	require.NoError(t, sc.Bind(ActionClearCart, " f6 "))
	assert.Equal(t, "F6", sc.ClearCart)
	_, ok = sc.Lookup("F2")
	assert.False(t, ok)

	// Rebinding an action to its own key is fine.
	require.NoError(t, sc.Bind(ActionClearCart, "F6"))

	err := sc.Bind(ActionPayNow, "F6")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already bound to clearCart")
	assert.Equal(t, "F1", sc.PayNow)

	assert.Error(t, sc.Bind("openDrawer", "F7"))
	assert.Error(t, sc.Bind(ActionLogout, " "))
}

func TestTokens(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	access, refresh, err := s.LoadTokens(ctx)
	require.NoError(t, err)
	assert.Empty(t, access)
	assert.Empty(t, refresh)

	require.NoError(t, s.SaveTokens(ctx, "a1", "r1"))
	require.NoError(t, s.SaveTokens(ctx, "a2", "r2"))
	access, refresh, err = s.LoadTokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a2", access)
	assert.Equal(t, "r2", refresh)

	require.NoError(t, s.ClearTokens(ctx))
	access, _, err = s.LoadTokens(ctx)
	require.NoError(t, err)
	assert.Empty(t, access)
}
