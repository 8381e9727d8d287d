// Package ioport defines the platform capability ports the core consumes
// but does not implement: CapturePort (raw input in, capture toggle,
// cursor warp), SynthesizePort (apply events to the local OS), and
// ScreenProbe (local display resolution). Concrete hook-installation and
// input-synthesis primitives are platform-specific and out of this
// package's scope — see the per-OS stub files.
package ioport

// InputEvent is a raw event delivered by a CapturePort, already decoded
// into the same field set the wire protocol uses downstream.
type InputEvent struct {
	Kind        EventKind
	X, Y        int
	DX, DY      int
	Button      uint8
	Pressed     bool
	VK          uint32
	Scan        uint32
	Flags       uint32
	TimestampMS int64
}

// EventKind discriminates InputEvent's meaningful fields.
type EventKind int

const (
	MouseMove EventKind = iota
	MouseButton
	MouseScroll
	KeyDown
	KeyUp
)

// CapturePort is the host capability that emits raw input and can toggle
// whether that input also reaches the local OS. Implementations must
// preserve emergency keys regardless of the capture flag — see spec §4.4.
type CapturePort interface {
	// Start begins delivering events to the callback registered via
	// SetCallback. It must run the OS hook on a dedicated thread distinct
	// from the caller.
	Start() error
	// Stop releases the hook and any active capture.
	Stop() error
	// SetCallback installs the single handler invoked for every raw
	// input event. Must be called before Start.
	SetCallback(func(InputEvent))
	// CaptureInput toggles whether raw input also reaches the local OS.
	// When true, subsequent events must not reach the OS (except
	// emergency keys).
	CaptureInput(bool)
	// WarpCursor moves the local OS cursor to an absolute position.
	WarpCursor(x, y int)
}

// SynthesizePort applies received events to the local OS.
type SynthesizePort interface {
	MoveMouse(x, y int)
	MoveMouseRelative(dx, dy int)
	MouseButton(button uint8, pressed bool)
	MouseScroll(dx, dy int)
	KeyEvent(vk, scan, flags uint32, pressed bool)
}

// ScreenProbe reports the local primary display's resolution.
type ScreenProbe interface {
	ScreenSize() (width, height int)
}
