package ports

// Channel is one live transport channel towards a DApp page.
type Channel interface {
	NotifyEvent(event string, data interface{}) error
	Close() error
}

// UINotifier pushes signals to the extension's own UI surface, eg. to tell
// an already-open unlock window to come to the front.
type UINotifier interface {
	NotifyUI(event string, data interface{})
}
