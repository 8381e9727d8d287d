// Package session holds the live 1:1 transport association between two
// endpoints and the top-level Role Controller state machine that keeps
// controller and target roles mutually exclusive within one process.
package session

import (
	"fmt"
	"sync"
	"sync/atomic"

	"inputshare/internal/transport"
	"inputshare/internal/wire"
)

// ControlState is LOCAL or REMOTE: whether local input currently drives
// the local OS or is being forwarded to the peer.
type ControlState int32

const (
	Local ControlState = iota
	Remote
)

func (c ControlState) String() string {
	if c == Remote {
		return "REMOTE"
	}
	return "LOCAL"
}

// Role is which side of a Session this process is playing.
type Role int

const (
	RoleNone Role = iota
	RoleController
	RoleTarget
)

// Session is a live transport association with one peer. It is created
// on accept or connect and destroyed on any transport failure, normal
// close, or explicit teardown.
type Session struct {
	transport *transport.Session
	role      Role

	control int32 // atomic ControlState

	remoteMu         sync.Mutex
	remoteW, remoteH int32

	entryEdgeMu sync.Mutex
	entryEdge   wire.Edge
}

// New wraps an established transport connection as a Session in the
// given role. ControlState starts LOCAL.
func New(t *transport.Session, role Role) *Session {
	return &Session{
		transport: t,
		role:      role,
	}
}

// Transport returns the underlying framed connection.
func (s *Session) Transport() *transport.Session {
	return s.transport
}

// Role reports whether this session plays the controller or target role.
func (s *Session) Role() Role {
	return s.role
}

// ControlState returns the current control state. Safe for concurrent
// use by any thread without additional locking.
func (s *Session) ControlState() ControlState {
	return ControlState(atomic.LoadInt32(&s.control))
}

// SetControlState installs a new control state. Transitions to Local
// are idempotent and safe from any thread, matching the invariant that
// any transport failure must force LOCAL before the failing operation
// returns.
func (s *Session) SetControlState(cs ControlState) {
	atomic.StoreInt32(&s.control, int32(cs))
}

// SetRemoteScreen records the peer's screen dimensions as learned from
// a SCREEN_INFO event.
func (s *Session) SetRemoteScreen(w, h int32) {
	s.remoteMu.Lock()
	defer s.remoteMu.Unlock()
	s.remoteW, s.remoteH = w, h
}

// RemoteScreen returns the last recorded peer screen dimensions.
func (s *Session) RemoteScreen() (w, h int32) {
	s.remoteMu.Lock()
	defer s.remoteMu.Unlock()
	return s.remoteW, s.remoteH
}

// SetEntryEdge records the entry edge of the current REMOTE period.
// Target-side only.
func (s *Session) SetEntryEdge(e wire.Edge) {
	s.entryEdgeMu.Lock()
	defer s.entryEdgeMu.Unlock()
	s.entryEdge = e
}

// EntryEdge returns the entry edge of the current REMOTE period.
func (s *Session) EntryEdge() wire.Edge {
	s.entryEdgeMu.Lock()
	defer s.entryEdgeMu.Unlock()
	return s.entryEdge
}

// Close performs the unconditional resource-release steps that apply to
// every exit path from a session: force ControlState to LOCAL, then
// half-close and release the socket. Releasing CapturePort capture is
// the caller's responsibility, since the CapturePort is not visible
// from this package.
func (s *Session) Close() error {
	s.SetControlState(Local)
	return s.transport.Close()
}

// Phase is the Role Controller's top-level state.
type Phase int32

const (
	Idle Phase = iota
	Serving
	Joined
	Draining
)

func (p Phase) String() string {
	switch p {
	case Serving:
		return "Serving"
	case Joined:
		return "Joined"
	case Draining:
		return "Draining"
	default:
		return "Idle"
	}
}

// Controller is the process-wide state machine selecting between
// controller and target roles and tracking the single active Session.
// While Serving, BeginJoined is refused and vice versa.
type Controller struct {
	mu      sync.Mutex
	phase   Phase
	session *Session
}

// NewController starts in Idle with no active session.
func NewController() *Controller {
	return &Controller{phase: Idle}
}

// Phase returns the current top-level state.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// BeginServing transitions Idle -> Serving. It fails if a target
// connection (Joined) or another serving session is already active.
func (c *Controller) BeginServing() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != Idle {
		return fmt.Errorf("session: cannot serve while in phase %s", c.phase)
	}
	c.phase = Serving
	return nil
}

// BeginJoined transitions Idle -> Joined. It fails if a serving
// controller is already active.
func (c *Controller) BeginJoined() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != Idle {
		return fmt.Errorf("session: cannot join while in phase %s", c.phase)
	}
	c.phase = Joined
	return nil
}

// SetSession installs the active Session for the current phase.
func (c *Controller) SetSession(s *Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = s
}

// Session returns the currently active Session, or nil.
func (c *Controller) Session() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// BeginDraining marks teardown as started. Sockets should already be
// closing by the time this is called; threads observe Draining and
// exit on their next iteration.
func (c *Controller) BeginDraining() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.phase = Draining
}

// Reset returns the controller to Idle with no active session, the
// final step of the close -> unblock -> join -> reset teardown order.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.phase = Idle
	c.session = nil
}
