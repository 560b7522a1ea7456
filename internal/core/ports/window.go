package ports

import "context"

// WindowGeometry is the explicit placement of a UI surface.
type WindowGeometry struct {
	Width  int
	Height int
	Left   int
	Top    int
}

// ScreenBounds is the visible area windows must be clamped to.
type ScreenBounds struct {
	Width  int
	Height int
}

// WindowOpener abstracts the host surface used to show approval and unlock
// prompts. Open returns a window id; WaitClosed yields a channel that closes
// when the window with the given id is closed, whatever the reason.
type WindowOpener interface {
	Open(ctx context.Context, url string, geom WindowGeometry) (int, error)
	Focus(windowID int) error
	Close(windowID int) error
	WaitClosed(windowID int) <-chan struct{}
	ScreenBounds() (ScreenBounds, bool)
}
