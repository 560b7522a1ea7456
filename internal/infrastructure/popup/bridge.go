package popup

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/dappward/walletd/internal/core/ports"
)

const defaultCommandTimeout = 5 * time.Second

// Command is an instruction pushed to the host UI surface, answered by a
// CommandResult with the same id.
type Command struct {
	Type    string      `json:"type"`
	ID      string      `json:"id"`
	Command string      `json:"command"`
	Payload interface{} `json:"payload,omitempty"`
}

// CommandResult answers a Command.
type CommandResult struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// Host command names.
const (
	CommandOpenWindow      = "OPEN_WINDOW"
	CommandFocusWindow     = "FOCUS_WINDOW"
	CommandCloseWindow     = "CLOSE_WINDOW"
	CommandQueryTab        = "QUERY_TAB"
	CommandGetScreenBounds = "GET_SCREEN_BOUNDS"
)

// Sender pushes one message towards the host UI surface.
type Sender interface {
	Send(v interface{}) error
}

// Bridge implements the window, tab and UI-signal ports on top of a
// command/reply exchange with the browser host. The daemon never touches
// windows or tabs itself, the host executes every command and reports
// window lifecycle back.
type Bridge struct {
	lock    *sync.Mutex
	sender  Sender
	timeout time.Duration

	pendingReplies map[string]chan CommandResult
	closedChans    map[int]chan struct{}
}

func NewBridge() *Bridge {
	return &Bridge{
		lock:           &sync.Mutex{},
		timeout:        defaultCommandTimeout,
		pendingReplies: make(map[string]chan CommandResult),
		closedChans:    make(map[int]chan struct{}),
	}
}

// AttachSender wires the live host connection. A nil sender detaches.
func (b *Bridge) AttachSender(sender Sender) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.sender = sender
}

// DetachSender detaches only if the given sender is still the attached one.
// A connection going away must not tear down the one that replaced it.
func (b *Bridge) DetachSender(sender Sender) {
	b.lock.Lock()
	defer b.lock.Unlock()
	if b.sender == sender {
		b.sender = nil
	}
}

// HandleResult delivers a host reply to the command waiting on it.
func (b *Bridge) HandleResult(result CommandResult) {
	b.lock.Lock()
	ch, ok := b.pendingReplies[result.ID]
	b.lock.Unlock()
	if !ok {
		log.WithField("id", result.ID).Debug("reply for unknown command")
		return
	}
	select {
	case ch <- result:
	default:
	}
}

// HandleWindowClosed records that the host closed (or saw the user close)
// the given window.
func (b *Bridge) HandleWindowClosed(windowID int) {
	b.lock.Lock()
	defer b.lock.Unlock()
	if ch, ok := b.closedChans[windowID]; ok {
		close(ch)
		delete(b.closedChans, windowID)
	}
}

// Open implements ports.WindowOpener.
func (b *Bridge) Open(
	ctx context.Context, url string, geom ports.WindowGeometry,
) (int, error) {
	result, err := b.execute(ctx, CommandOpenWindow, map[string]interface{}{
		"url": url, "width": geom.Width, "height": geom.Height,
		"left": geom.Left, "top": geom.Top,
	})
	if err != nil {
		return 0, err
	}

	var reply struct {
		WindowID int `json:"windowId"`
	}
	if err := json.Unmarshal(result, &reply); err != nil {
		return 0, fmt.Errorf("malformed open-window reply: %v", err)
	}

	b.lock.Lock()
	b.closedChans[reply.WindowID] = make(chan struct{})
	b.lock.Unlock()
	return reply.WindowID, nil
}

// Focus implements ports.WindowOpener.
func (b *Bridge) Focus(windowID int) error {
	_, err := b.execute(
		context.Background(), CommandFocusWindow,
		map[string]interface{}{"windowId": windowID},
	)
	return err
}

// Close implements ports.WindowOpener.
func (b *Bridge) Close(windowID int) error {
	_, err := b.execute(
		context.Background(), CommandCloseWindow,
		map[string]interface{}{"windowId": windowID},
	)
	return err
}

// WaitClosed implements ports.WindowOpener.
func (b *Bridge) WaitClosed(windowID int) <-chan struct{} {
	b.lock.Lock()
	defer b.lock.Unlock()
	if ch, ok := b.closedChans[windowID]; ok {
		return ch
	}
	// unknown window, report it closed right away
	ch := make(chan struct{})
	close(ch)
	return ch
}

// ScreenBounds implements ports.WindowOpener.
func (b *Bridge) ScreenBounds() (ports.ScreenBounds, bool) {
	result, err := b.execute(
		context.Background(), CommandGetScreenBounds, nil,
	)
	if err != nil {
		return ports.ScreenBounds{}, false
	}
	var bounds ports.ScreenBounds
	if err := json.Unmarshal(result, &bounds); err != nil {
		return ports.ScreenBounds{}, false
	}
	return bounds, true
}

// IsActive implements ports.TabGateway. An unreachable host answers false:
// when nobody can tell whether the user is looking at the page, no
// credential prompt may be shown.
func (b *Bridge) IsActive(ctx context.Context, tabID int) (bool, error) {
	result, err := b.execute(ctx, CommandQueryTab, map[string]interface{}{
		"tabId": tabID,
	})
	if err != nil {
		return false, nil
	}
	var reply struct {
		Active bool `json:"active"`
	}
	if err := json.Unmarshal(result, &reply); err != nil {
		return false, nil
	}
	return reply.Active, nil
}

// Exists implements ports.TabGateway. An unreachable host answers true so
// the sweeper never drops channels it cannot verify.
func (b *Bridge) Exists(ctx context.Context, tabID int) (bool, error) {
	result, err := b.execute(ctx, CommandQueryTab, map[string]interface{}{
		"tabId": tabID,
	})
	if err != nil {
		return true, nil
	}
	var reply struct {
		Exists bool `json:"exists"`
	}
	if err := json.Unmarshal(result, &reply); err != nil {
		return true, nil
	}
	return reply.Exists, nil
}

// NotifyUI implements ports.UINotifier. Best-effort, a detached host simply
// misses the signal.
func (b *Bridge) NotifyUI(event string, data interface{}) {
	b.lock.Lock()
	sender := b.sender
	b.lock.Unlock()
	if sender == nil {
		return
	}
	if err := sender.Send(map[string]interface{}{
		"type": "SIGNAL", "event": event, "data": data,
	}); err != nil {
		log.WithError(err).Debug("could not push ui signal")
	}
}

func (b *Bridge) execute(
	ctx context.Context, command string, payload interface{},
) (json.RawMessage, error) {
	b.lock.Lock()
	sender := b.sender
	if sender == nil {
		b.lock.Unlock()
		return nil, fmt.Errorf("no host connection")
	}
	id := uuid.NewString()
	replyCh := make(chan CommandResult, 1)
	b.pendingReplies[id] = replyCh
	b.lock.Unlock()

	defer func() {
		b.lock.Lock()
		delete(b.pendingReplies, id)
		b.lock.Unlock()
	}()

	if err := sender.Send(Command{
		Type: "COMMAND", ID: id, Command: command, Payload: payload,
	}); err != nil {
		return nil, err
	}

	timer := time.NewTimer(b.timeout)
	defer timer.Stop()

	select {
	case result := <-replyCh:
		if result.Error != "" {
			return nil, fmt.Errorf("host refused %s: %s", command, result.Error)
		}
		return result.Result, nil
	case <-timer.C:
		return nil, fmt.Errorf("host did not answer %s", command)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
