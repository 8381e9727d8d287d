// Package synth implements the target-role pipeline: it receives wire
// events, validates them, applies them via the SynthesizePort, and
// maintains an internal cursor position clamped to local screen
// bounds.
package synth

import (
	"fmt"
	"log"
	"sync"
	"time"

	"inputshare/internal/ioport"
	"inputshare/internal/session"
	"inputshare/internal/wire"
)

var logger = log.New(log.Writer(), "Synth: ", log.Flags())

// ReceiveTimeout is how long the recv loop waits for any frame before
// declaring the session transport-fatal.
const ReceiveTimeout = 30 * time.Second

// Pipeline applies received wire frames to the local OS.
type Pipeline struct {
	synth  ioport.SynthesizePort
	screen ioport.ScreenProbe

	mu      sync.Mutex
	cursorX int
	cursorY int
}

// New creates a synth Pipeline bound to the given SynthesizePort and
// ScreenProbe.
func New(synth ioport.SynthesizePort, screen ioport.ScreenProbe) *Pipeline {
	return &Pipeline{synth: synth, screen: screen}
}

// RunRecvLoop drives the recv_exact + dispatch loop for sess until a
// transport-fatal error or a 30s receive timeout, whichever comes
// first. It returns the error that ended the loop.
func (p *Pipeline) RunRecvLoop(sess *session.Session) error {
	header := make([]byte, wire.HeaderSize)
	for {
		deadline := time.Now().Add(ReceiveTimeout)
		if err := sess.Transport().RecvExact(header, deadline); err != nil {
			return fmt.Errorf("synth: recv header: %w", err)
		}
		h, err := wire.DecodeHeader(header)
		if err != nil {
			return fmt.Errorf("synth: invalid header: %w", err)
		}

		payload := make([]byte, h.PayloadSize)
		if len(payload) > 0 {
			if err := sess.Transport().RecvExact(payload, deadline); err != nil {
				return fmt.Errorf("synth: recv payload: %w", err)
			}
		}

		full := append(append([]byte{}, header...), payload...)
		frame, err := wire.Decode(full)
		if err != nil {
			return fmt.Errorf("synth: invalid frame: %w", err)
		}

		p.Apply(sess, frame)
	}
}

// Apply dispatches one decoded frame against sess's state. Exported
// separately from RunRecvLoop so tests can drive it without a real
// transport.
func (p *Pipeline) Apply(sess *session.Session, f wire.Frame) {
	switch f.Header.Type {
	case wire.ScreenInfo:
		sess.SetRemoteScreen(f.ScreenInfo.Width, f.ScreenInfo.Height)

	case wire.SwitchScreen:
		p.enterRemote(sess, f.SwitchScreen)

	case wire.MouseMove:
		if sess.ControlState() != session.Remote {
			return
		}
		p.applyMouseMove(sess, f.MouseMove)

	case wire.MouseButton:
		if sess.ControlState() != session.Remote {
			return
		}
		p.synth.MouseButton(uint8(f.MouseButton.Button), f.MouseButton.Pressed)

	case wire.MouseScroll:
		if sess.ControlState() != session.Remote {
			return
		}
		p.synth.MouseScroll(int(f.MouseScroll.DX), int(f.MouseScroll.DY))

	case wire.KeyPress:
		if sess.ControlState() != session.Remote {
			return
		}
		p.synth.KeyEvent(f.Key.VK, f.Key.Scan, f.Key.Flags, true)

	case wire.KeyRelease:
		if sess.ControlState() != session.Remote {
			return
		}
		p.synth.KeyEvent(f.Key.VK, f.Key.Scan, f.Key.Flags, false)

	case wire.Keepalive, wire.Clipboard:
		// no-op: KEEPALIVE only needs to have been received at all
		// (RunRecvLoop's deadline reset covers that); CLIPBOARD is
		// reserved and must be accepted and ignored.

	default:
		// unknown type: payload already read by RunRecvLoop; its raw
		// bytes in f.Unknown are ignored.
	}
}

// enterRemote is the SWITCH_SCREEN handler: engage REMOTE, record the
// entry edge, and place the cursor on the entering boundary, scaling
// the perpendicular coordinate from the remote axis to the local one.
func (p *Pipeline) enterRemote(sess *session.Session, sw wire.SwitchScreenData) {
	sess.SetControlState(session.Remote)
	sess.SetEntryEdge(sw.Edge)

	w, h := p.screen.ScreenSize()
	remoteW, remoteH := sess.RemoteScreen()

	pos := int(sw.Position)

	p.mu.Lock()
	switch sw.Edge {
	case wire.EdgeLeft:
		p.cursorY = scale(pos, int(remoteH), h)
		p.cursorX = 0
	case wire.EdgeRight:
		p.cursorY = scale(pos, int(remoteH), h)
		p.cursorX = w - 1
	case wire.EdgeTop:
		p.cursorX = scale(pos, int(remoteW), w)
		p.cursorY = 0
	case wire.EdgeBottom:
		p.cursorX = scale(pos, int(remoteW), w)
		p.cursorY = h - 1
	}
	p.cursorX, p.cursorY = clamp(p.cursorX, p.cursorY, w, h)
	x, y := p.cursorX, p.cursorY
	p.mu.Unlock()

	p.synth.MoveMouse(x, y)
}

// applyMouseMove accumulates the relative delta into the internal
// cursor, clamps, applies, and if the result lands back on the entry
// edge, recenters and disengages REMOTE so a subsequent local-side
// crossing can re-trigger cleanly.
func (p *Pipeline) applyMouseMove(sess *session.Session, m wire.MouseMoveData) {
	w, h := p.screen.ScreenSize()

	p.mu.Lock()
	p.cursorX += int(m.DX)
	p.cursorY += int(m.DY)
	p.cursorX, p.cursorY = clamp(p.cursorX, p.cursorY, w, h)
	x, y := p.cursorX, p.cursorY
	p.mu.Unlock()

	p.synth.MoveMouse(x, y)

	if onEntryEdge(sess.EntryEdge(), x, y, w, h) {
		sess.SetControlState(session.Local)
		cx, cy := w/2, h/2
		p.mu.Lock()
		p.cursorX, p.cursorY = cx, cy
		p.mu.Unlock()
		p.synth.MoveMouse(cx, cy)
	}
}

func onEntryEdge(edge wire.Edge, x, y, w, h int) bool {
	switch edge {
	case wire.EdgeLeft:
		return x <= 0
	case wire.EdgeRight:
		return x >= w-1
	case wire.EdgeTop:
		return y <= 0
	case wire.EdgeBottom:
		return y >= h-1
	default:
		return false
	}
}

func scale(pos, remoteSize, localSize int) int {
	if remoteSize <= 0 || remoteSize == localSize {
		return pos
	}
	return pos * localSize / remoteSize
}

func clamp(x, y, w, h int) (int, int) {
	if x < 0 {
		x = 0
	}
	if x > w-1 {
		x = w - 1
	}
	if y < 0 {
		y = 0
	}
	if y > h-1 {
		y = h - 1
	}
	return x, y
}
