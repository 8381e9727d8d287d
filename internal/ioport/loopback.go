package ioport

import "sync"

// Loopback is an in-memory CapturePort + SynthesizePort + ScreenProbe
// used by capture/synth tests in place of a real OS hook, mirroring the
// teacher's stub-port convention but feeding synthetic events instead of
// returning "unsupported".
type Loopback struct {
	mu               sync.Mutex
	cb               func(InputEvent)
	capturing        bool
	cursorX, cursorY int
	width, height    int

	Applied []AppliedEvent
}

// AppliedEvent records a call made through the SynthesizePort side of
// Loopback, for assertions in tests.
type AppliedEvent struct {
	Kind            EventKind
	X, Y            int
	DX, DY          int
	Button          uint8
	Pressed         bool
	VK, Scan, Flags uint32
}

// NewLoopback returns a Loopback reporting the given screen size.
func NewLoopback(width, height int) *Loopback {
	return &Loopback{width: width, height: height}
}

func (l *Loopback) Start() error { return nil }
func (l *Loopback) Stop() error  { return nil }

func (l *Loopback) SetCallback(cb func(InputEvent)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cb = cb
}

func (l *Loopback) CaptureInput(on bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.capturing = on
}

func (l *Loopback) Capturing() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.capturing
}

func (l *Loopback) WarpCursor(x, y int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cursorX, l.cursorY = x, y
}

func (l *Loopback) CursorPos() (int, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cursorX, l.cursorY
}

func (l *Loopback) ScreenSize() (int, int) {
	return l.width, l.height
}

// Inject delivers an event to the registered callback as if it came from
// the OS hook.
func (l *Loopback) Inject(ev InputEvent) {
	l.mu.Lock()
	cb := l.cb
	l.mu.Unlock()
	if cb != nil {
		cb(ev)
	}
}

func (l *Loopback) MoveMouse(x, y int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cursorX, l.cursorY = x, y
	l.Applied = append(l.Applied, AppliedEvent{Kind: MouseMove, X: x, Y: y})
}

func (l *Loopback) MoveMouseRelative(dx, dy int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Applied = append(l.Applied, AppliedEvent{Kind: MouseMove, DX: dx, DY: dy})
}

func (l *Loopback) MouseButton(button uint8, pressed bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Applied = append(l.Applied, AppliedEvent{Kind: MouseButton, Button: button, Pressed: pressed})
}

func (l *Loopback) MouseScroll(dx, dy int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Applied = append(l.Applied, AppliedEvent{Kind: MouseScroll, DX: dx, DY: dy})
}

func (l *Loopback) KeyEvent(vk, scan, flags uint32, pressed bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	kind := KeyUp
	if pressed {
		kind = KeyDown
	}
	l.Applied = append(l.Applied, AppliedEvent{Kind: kind, VK: vk, Scan: scan, Flags: flags, Pressed: pressed})
}
