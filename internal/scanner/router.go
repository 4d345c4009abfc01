package scanner

// Route says where a printable key goes.
type Route int

const (
	// RoutePassThrough: the key belongs to another text field. The detector
	// does not look at it at all.
	RoutePassThrough Route = iota + 1
	// RouteSearch: the search input already has focus and receives the key.
	RouteSearch
	// RouteRedirect: nothing text-like has focus. The key is appended to the
	// search input, which is focused so the rest of the burst lands there.
	RouteRedirect
)

// RouteKey decides the route for a printable key.
func RouteKey(ev KeyEvent) Route {
	switch ev.Focus {
	case FocusOtherInput:
		return RoutePassThrough
	case FocusSearch:
		return RouteSearch
	default:
		return RouteRedirect
	}
}

// InputSurface is the host's search input. The detector pushes its buffer
// into it after every change and asks for focus on redirect.
type InputSurface interface {
	SetValue(v string)
	Focus()
}
