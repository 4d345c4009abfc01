package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Setting keys.
const (
	KeyAutoScan  = "pos_auto_scan_mode"
	KeyShop      = "pos_shop_settings"
	KeyShortcuts = "pos_keyboard_shortcuts"
	KeyTokens    = "auth_tokens"
)

// ShopSettings is printed on receipts.
type ShopSettings struct {
	ShopName      string `json:"shopName"`
	Address       string `json:"address"`
	Phone         string `json:"phone"`
	Email         string `json:"email"`
	FooterMessage string `json:"footerMessage"`
}

// DefaultFooter is used when the stored footer is blank.
const DefaultFooter = "Thank you for your business!"

// DefaultShopSettings returns the settings of a fresh install.
func DefaultShopSettings() ShopSettings {
	return ShopSettings{
		ShopName:      "Hotline Mobile Shop",
		FooterMessage: DefaultFooter,
	}
}

// ReceiptHeader returns the non-empty header lines, newline terminated.
func (s ShopSettings) ReceiptHeader() string {
	var b strings.Builder
	if s.ShopName != "" {
		b.WriteString(s.ShopName + "\n")
	}
	if s.Address != "" {
		b.WriteString(s.Address + "\n")
	}
	if s.Phone != "" {
		b.WriteString("Phone: " + s.Phone + "\n")
	}
	if s.Email != "" {
		b.WriteString("Email: " + s.Email + "\n")
	}
	return b.String()
}

// ReceiptFooter returns the footer message or DefaultFooter.
func (s ShopSettings) ReceiptFooter() string {
	if s.FooterMessage == "" {
		return DefaultFooter
	}
	return s.FooterMessage
}

// Shortcuts maps POS actions to key names.
type Shortcuts struct {
	PayNow           string `json:"payNow"`
	ClearCart        string `json:"clearCart"`
	OpenRepairs      string `json:"openRepairs"`
	OpenSales        string `json:"openSales"`
	FocusSearch      string `json:"focusSearch"`
	PrintLastReceipt string `json:"printLastReceipt"`
	OpenSettings     string `json:"openSettings"`
	Logout           string `json:"logout"`
}

// DefaultShortcuts returns the factory key bindings.
func DefaultShortcuts() Shortcuts {
	return Shortcuts{
		PayNow:           "F1",
		ClearCart:        "F2",
		OpenRepairs:      "F3",
		OpenSales:        "F4",
		FocusSearch:      "F5",
		PrintLastReceipt: "F9",
		OpenSettings:     "F10",
		Logout:           "F12",
	}
}

// Shortcut actions.
const (
	ActionPayNow           = "payNow"
	ActionClearCart        = "clearCart"
	ActionOpenRepairs      = "openRepairs"
	ActionOpenSales        = "openSales"
	ActionFocusSearch      = "focusSearch"
	ActionPrintLastReceipt = "printLastReceipt"
	ActionOpenSettings     = "openSettings"
	ActionLogout           = "logout"
)

// ShortcutBinding is one row of the shortcut table.
type ShortcutBinding struct {
	Action string `json:"action"`
	Label  string `json:"label"`
	Key    string `json:"key"`
}

// Bindings lists the shortcuts in display order.
func (s Shortcuts) Bindings() []ShortcutBinding {
	return []ShortcutBinding{
		{ActionPayNow, "Pay Now / Complete Sale", s.PayNow},
		{ActionClearCart, "Clear Cart", s.ClearCart},
		{ActionOpenRepairs, "Open Repairs Panel", s.OpenRepairs},
		{ActionOpenSales, "Open Sales Panel", s.OpenSales},
		{ActionFocusSearch, "Focus Search Box", s.FocusSearch},
		{ActionPrintLastReceipt, "Print Last Receipt", s.PrintLastReceipt},
		{ActionOpenSettings, "Open Settings", s.OpenSettings},
		{ActionLogout, "Logout", s.Logout},
	}
}

// Lookup returns the binding for key name (e.g. "F2"), ignoring case.
func (s Shortcuts) Lookup(key string) (ShortcutBinding, bool) {
	for _, b := range s.Bindings() {
		if b.Key != "" && strings.EqualFold(b.Key, key) {
			return b, true
		}
	}
	return ShortcutBinding{}, false
}

// Bind assigns key to action. A key can serve only one action.
func (s *Shortcuts) Bind(action, key string) error {
	key = strings.ToUpper(strings.TrimSpace(key))
	if key == "" {
		return fmt.Errorf("no key given for %s", action)
	}
	field := s.field(action)
	if field == nil {
		return fmt.Errorf("unknown shortcut action %q", action)
	}
	if b, ok := s.Lookup(key); ok && b.Action != action {
		return fmt.Errorf("%s is already bound to %s", key, b.Action)
	}
	*field = key
	return nil
}

func (s *Shortcuts) field(action string) *string {
	switch action {
	case ActionPayNow:
		return &s.PayNow
	case ActionClearCart:
		return &s.ClearCart
	case ActionOpenRepairs:
		return &s.OpenRepairs
	case ActionOpenSales:
		return &s.OpenSales
	case ActionFocusSearch:
		return &s.FocusSearch
	case ActionPrintLastReceipt:
		return &s.PrintLastReceipt
	case ActionOpenSettings:
		return &s.OpenSettings
	case ActionLogout:
		return &s.Logout
	}
	return nil
}

// AutoScan returns the stored auto-scan flag. Default: true.
func (s *Store) AutoScan(ctx context.Context) (bool, error) {
	enabled := true
	if _, err := s.getJSON(ctx, KeyAutoScan, &enabled); err != nil {
		return false, err
	}
	return enabled, nil
}

// SetAutoScan persists the auto-scan flag.
func (s *Store) SetAutoScan(ctx context.Context, enabled bool) error {
	return s.putJSON(ctx, KeyAutoScan, enabled)
}

// ShopSettings returns stored shop settings merged over the defaults.
func (s *Store) ShopSettings(ctx context.Context) (ShopSettings, error) {
	settings := DefaultShopSettings()
	if _, err := s.getJSON(ctx, KeyShop, &settings); err != nil {
		return DefaultShopSettings(), err
	}
	return settings, nil
}

// SaveShopSettings persists shop settings.
func (s *Store) SaveShopSettings(ctx context.Context, settings ShopSettings) error {
	return s.putJSON(ctx, KeyShop, settings)
}

// Shortcuts returns stored shortcuts merged over the defaults.
func (s *Store) Shortcuts(ctx context.Context) (Shortcuts, error) {
	shortcuts := DefaultShortcuts()
	if _, err := s.getJSON(ctx, KeyShortcuts, &shortcuts); err != nil {
		return DefaultShortcuts(), err
	}
	return shortcuts, nil
}

// SaveShortcuts persists keyboard shortcuts.
func (s *Store) SaveShortcuts(ctx context.Context, shortcuts Shortcuts) error {
	return s.putJSON(ctx, KeyShortcuts, shortcuts)
}

type storedTokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// LoadTokens returns the stored API tokens. Both are empty when logged out.
func (s *Store) LoadTokens(ctx context.Context) (access, refresh string, err error) {
	var t storedTokens
	if _, err := s.getJSON(ctx, KeyTokens, &t); err != nil {
		return "", "", err
	}
	return t.AccessToken, t.RefreshToken, nil
}

// SaveTokens persists the API tokens.
func (s *Store) SaveTokens(ctx context.Context, access, refresh string) error {
	return s.putJSON(ctx, KeyTokens, storedTokens{AccessToken: access, RefreshToken: refresh})
}

// ClearTokens removes the API tokens.
func (s *Store) ClearTokens(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM settings WHERE key = ?`, KeyTokens); err != nil {
		return fmt.Errorf("clear tokens: %w", err)
	}
	return nil
}

// getJSON decodes the value under key into dst. Reports false, leaving dst
// untouched, when the key is absent.
func (s *Store) getJSON(ctx context.Context, key string, dst any) (bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read setting %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return false, fmt.Errorf("decode setting %s: %w", key, err)
	}
	return true, nil
}

func (s *Store) putJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode setting %s: %w", key, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, string(data), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("write setting %s: %w", key, err)
	}
	return nil
}
