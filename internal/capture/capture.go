// Package capture implements the controller-role pipeline: it owns the
// input hook, edge-detection and switch logic, the emergency-key
// allowlist, the activity watchdog, and the outbound event stream.
package capture

import (
	"log"
	"sync"
	"sync/atomic"
	"time"

	"inputshare/internal/ioport"
	"inputshare/internal/layout"
	"inputshare/internal/session"
	"inputshare/internal/wire"
)

var logger = log.New(log.Writer(), "Capture: ", log.Flags())

const (
	watchdogIdleLimit = 30 * time.Second
	watchdogTick      = 1 * time.Second
	keepaliveInterval = 5 * time.Second
	outboundQueueSize = 256
)

// Pipeline drives the OS input hook through CapturePort, decides
// LOCAL/REMOTE transitions via edge detection against the Peer Layout
// Model, and serializes outbound events onto the active Session.
type Pipeline struct {
	cap    ioport.CapturePort
	screen ioport.ScreenProbe
	model  *layout.Model

	localName string
	keys      *keyState

	sessMu sync.Mutex // guards sess; held only for the duration of a send or a close
	sess   *session.Session

	outbound chan []byte

	lastActivity int64 // atomic unix nano, updated on every observed event

	stop chan struct{}
	wg   sync.WaitGroup

	// OnSessionLost is invoked (off any held lock) when the outbound
	// send loop observes a transport-fatal error, so the owning Role
	// Controller can tear the session down and return to Idle.
	OnSessionLost func(err error)
}

// New creates a capture Pipeline bound to the given CapturePort,
// ScreenProbe, and the shared Peer Layout Model. localName is this
// process's key into the model.
func New(cap ioport.CapturePort, screen ioport.ScreenProbe, model *layout.Model, localName string) *Pipeline {
	p := &Pipeline{
		cap:       cap,
		screen:    screen,
		model:     model,
		localName: localName,
		keys:      newKeyState(),
		stop:      make(chan struct{}),
	}
	p.cap.SetCallback(p.handleEvent)
	return p
}

// Start starts the CapturePort (whose callback New already registered)
// and launches the activity watchdog.
// The hook thread runs inside the CapturePort implementation; Start
// only arranges for this process's side of the contract.
func (p *Pipeline) Start() error {
	if err := p.cap.Start(); err != nil {
		return err
	}
	p.wg.Add(1)
	go p.watchdogLoop()
	return nil
}

// Stop releases the hook and joins the watchdog.
func (p *Pipeline) Stop() error {
	close(p.stop)
	err := p.cap.Stop()
	p.wg.Wait()
	return err
}

// AttachSession makes s the active session for outbound forwarding and
// starts its send loop and keepalive ticker. Only one session may be
// attached at a time; callers must DetachSession the previous one
// first (the Role Controller enforces this at a higher level).
func (p *Pipeline) AttachSession(s *session.Session) {
	p.sessMu.Lock()
	p.sess = s
	p.sessMu.Unlock()

	atomic.StoreInt64(&p.lastActivity, time.Now().UnixNano())

	p.outbound = make(chan []byte, outboundQueueSize)
	p.wg.Add(2)
	go p.sendLoop(s, p.outbound)
	go p.keepaliveLoop(s, p.outbound)
}

// DetachSession clears the active session without touching the
// transport; the caller owns closing the socket.
func (p *Pipeline) DetachSession() {
	p.sessMu.Lock()
	p.sess = nil
	outbound := p.outbound
	p.outbound = nil
	p.sessMu.Unlock()
	if outbound != nil {
		close(outbound)
	}
}

func (p *Pipeline) currentSession() (*session.Session, chan []byte) {
	p.sessMu.Lock()
	defer p.sessMu.Unlock()
	return p.sess, p.outbound
}

// handleEvent is the single handler the CapturePort delivers every raw
// input event to. It must be non-reentrant-safe: only atomic loads and
// one bounded lock acquisition per event.
func (p *Pipeline) handleEvent(ev ioport.InputEvent) {
	atomic.StoreInt64(&p.lastActivity, time.Now().UnixNano())

	if ev.Kind == ioport.KeyDown || ev.Kind == ioport.KeyUp {
		name := vkName(ev.VK)
		p.keys.update(name, ev.Kind == ioport.KeyDown)

		sess, _ := p.currentSession()
		if sess == nil {
			return
		}

		if ev.Kind == ioport.KeyDown && name == "SCROLLLOCK" {
			if sess.ControlState() == session.Remote {
				p.transitionRemoteToLocal(sess)
			}
			return
		}
		if ev.Kind == ioport.KeyDown && isEscapeHatch(name, p.keys) {
			if sess.ControlState() == session.Remote {
				p.transitionRemoteToLocal(sess)
			}
			return
		}
		if isEmergencyKey(name, p.keys) {
			return
		}

		if sess.ControlState() == session.Remote {
			p.forwardKey(ev)
		}
		return
	}

	sess, _ := p.currentSession()
	if sess == nil {
		return
	}

	if sess.ControlState() == session.Local {
		if ev.Kind == ioport.MouseMove {
			p.checkEdgeCrossing(sess, ev)
		}
		return
	}

	switch ev.Kind {
	case ioport.MouseMove:
		p.forwardMouseMove(ev)
	case ioport.MouseButton:
		p.forwardMouseButton(ev)
	case ioport.MouseScroll:
		p.forwardMouseScroll(ev)
	}
}

// checkEdgeCrossing implements the boundary + adjacency test. Tie-break
// order is horizontal before vertical; the first matching neighbor
// wins.
func (p *Pipeline) checkEdgeCrossing(sess *session.Session, ev ioport.InputEvent) {
	w, h := p.screen.ScreenSize()

	type candidate struct {
		edge wire.Edge
		pos  int
	}
	var candidates []candidate
	if ev.X <= 0 {
		candidates = append(candidates, candidate{wire.EdgeLeft, ev.Y})
	}
	if ev.X >= w-1 {
		candidates = append(candidates, candidate{wire.EdgeRight, ev.Y})
	}
	if ev.Y <= 0 {
		candidates = append(candidates, candidate{wire.EdgeTop, ev.X})
	}
	if ev.Y >= h-1 {
		candidates = append(candidates, candidate{wire.EdgeBottom, ev.X})
	}
	if len(candidates) == 0 {
		return
	}

	modelEdge := func(e wire.Edge) layout.Edge {
		switch e {
		case wire.EdgeLeft:
			return layout.EdgeLeft
		case wire.EdgeRight:
			return layout.EdgeRight
		case wire.EdgeTop:
			return layout.EdgeTop
		case wire.EdgeBottom:
			return layout.EdgeBottom
		default:
			return layout.EdgeNone
		}
	}

	for _, c := range candidates {
		if _, ok := p.model.Neighbor(p.localName, modelEdge(c.edge), c.pos); ok {
			p.transitionLocalToRemote(sess, c.edge, c.pos)
			return
		}
	}
}

// transitionLocalToRemote enables forwarding, tells the target which
// edge the cursor entered from, and warps the local cursor to center so
// disabling local delivery doesn't leave the cursor pinned at the
// boundary (which would immediately re-trigger once re-enabled).
func (p *Pipeline) transitionLocalToRemote(sess *session.Session, exitEdge wire.Edge, pos int) {
	sess.SetControlState(session.Remote)
	p.cap.CaptureInput(true)

	frame := wire.Encode(wire.Frame{
		Header:       wire.Header{Type: wire.SwitchScreen},
		SwitchScreen: wire.SwitchScreenData{Edge: exitEdge.Opposite(), Position: int32(pos)},
	}, nowMS())
	p.enqueue(frame)

	w, h := p.screen.ScreenSize()
	p.cap.WarpCursor(w/2, h/2)
}

// transitionRemoteToLocal is the only path back; no frame is sent, the
// target deduces return from its own edge check.
func (p *Pipeline) transitionRemoteToLocal(sess *session.Session) {
	sess.SetControlState(session.Local)
	p.cap.CaptureInput(false)
}

func (p *Pipeline) forwardMouseMove(ev ioport.InputEvent) {
	p.enqueue(wire.Encode(wire.Frame{
		Header:    wire.Header{Type: wire.MouseMove},
		MouseMove: wire.MouseMoveData{X: int32(ev.X), Y: int32(ev.Y), DX: int32(ev.DX), DY: int32(ev.DY)},
	}, nowMS()))
}

func (p *Pipeline) forwardMouseButton(ev ioport.InputEvent) {
	p.enqueue(wire.Encode(wire.Frame{
		Header:      wire.Header{Type: wire.MouseButton},
		MouseButton: wire.MouseButtonData{Button: wire.MouseButtonID(ev.Button), Pressed: ev.Pressed},
	}, nowMS()))
}

func (p *Pipeline) forwardMouseScroll(ev ioport.InputEvent) {
	p.enqueue(wire.Encode(wire.Frame{
		Header:      wire.Header{Type: wire.MouseScroll},
		MouseScroll: wire.MouseScrollData{DX: int32(ev.DX), DY: int32(ev.DY)},
	}, nowMS()))
}

func (p *Pipeline) forwardKey(ev ioport.InputEvent) {
	t := wire.KeyPress
	if ev.Kind == ioport.KeyUp {
		t = wire.KeyRelease
	}
	p.enqueue(wire.Encode(wire.Frame{
		Header: wire.Header{Type: t},
		Key:    wire.KeyData{VK: ev.VK, Scan: ev.Scan, Flags: ev.Flags},
	}, nowMS()))
}

// enqueue hands a frame to the outbound queue. The send happens on a
// dedicated goroutine so the hook thread never performs network I/O
// directly; a full queue applies back-pressure by blocking rather than
// dropping the event.
func (p *Pipeline) enqueue(frame []byte) {
	_, outbound := p.currentSession()
	if outbound == nil {
		return
	}
	defer func() { recover() }() // outbound may have been closed concurrently by DetachSession
	outbound <- frame
}

func (p *Pipeline) sendLoop(sess *session.Session, outbound chan []byte) {
	defer p.wg.Done()
	for frame := range outbound {
		if err := sess.Transport().SendFrame(frame); err != nil {
			p.handleSendFailure(sess, err)
			return
		}
	}
}

// handleSendFailure forces ControlState to LOCAL before returning,
// matching the invariant that the next observable state after any
// send failure is LOCAL.
func (p *Pipeline) handleSendFailure(sess *session.Session, err error) {
	sess.SetControlState(session.Local)
	p.cap.CaptureInput(false)
	logger.Printf("send failed, forcing LOCAL: %v", err)
	p.DetachSession()
	if p.OnSessionLost != nil {
		p.OnSessionLost(err)
	}
}

func (p *Pipeline) keepaliveLoop(sess *session.Session, outbound chan []byte) {
	defer p.wg.Done()
	ticker := time.NewTicker(keepaliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.sessMu.Lock()
			stillActive := p.sess == sess
			p.sessMu.Unlock()
			if !stillActive {
				return
			}
			p.enqueue(wire.Encode(wire.Frame{Header: wire.Header{Type: wire.Keepalive}}, nowMS()))
		case <-p.stop:
			return
		}
	}
}

func (p *Pipeline) watchdogLoop() {
	defer p.wg.Done()
	ticker := time.NewTicker(watchdogTick)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			sess, _ := p.currentSession()
			if sess == nil || sess.ControlState() != session.Remote {
				continue
			}
			last := time.Unix(0, atomic.LoadInt64(&p.lastActivity))
			if time.Since(last) > watchdogIdleLimit {
				logger.Printf("activity watchdog elapsed, forcing LOCAL")
				p.transitionRemoteToLocal(sess)
			}
		case <-p.stop:
			return
		}
	}
}

func nowMS() uint32 {
	return uint32(time.Now().UnixMilli())
}
