package scanner

import (
	"fmt"
	"unicode"
)

// KeyKind identifies the key in a KeyEvent.
type KeyKind int

const (
	// KeyRune is a printable character (see KeyEvent.Rune).
	KeyRune KeyKind = iota + 1
	KeyEnter
	KeyBackspace
	// KeyOther covers function keys, arrows and the like. Ignored.
	KeyOther
)

// Focus describes what held keyboard focus when a key was pressed.
type Focus int

const (
	// FocusNone: no text field focused (grid, buttons, body).
	FocusNone Focus = iota
	// FocusSearch: the product search input.
	FocusSearch
	// FocusOtherInput: any other text field (quantity box, notes...).
	FocusOtherInput
)

// String returns the focus name used in scenarios and traces.
func (f Focus) String() string {
	switch f {
	case FocusNone:
		return "none"
	case FocusSearch:
		return "search"
	case FocusOtherInput:
		return "other"
	default:
		return fmt.Sprintf("Focus(%d)", int(f))
	}
}

// ParseFocus parses "none", "search" or "other".
func ParseFocus(s string) (Focus, error) {
	switch s {
	case "none", "":
		return FocusNone, nil
	case "search":
		return FocusSearch, nil
	case "other":
		return FocusOtherInput, nil
	default:
		return 0, fmt.Errorf("invalid focus %q: must be none, search or other", s)
	}
}

// KeyEvent is one key press as reported by the host UI.
type KeyEvent struct {
	Kind  KeyKind
	Rune  rune
	Focus Focus
}

// RuneKey builds a printable key event.
func RuneKey(r rune, focus Focus) KeyEvent {
	return KeyEvent{Kind: KeyRune, Rune: r, Focus: focus}
}

// EnterKey builds an Enter key event.
func EnterKey(focus Focus) KeyEvent {
	return KeyEvent{Kind: KeyEnter, Focus: focus}
}

// Printable reports whether the event carries a single printable character.
func (e KeyEvent) Printable() bool {
	return e.Kind == KeyRune && unicode.IsPrint(e.Rune)
}
