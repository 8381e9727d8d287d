// Package transport implements the Session Transport: a single connected
// TCP byte-stream with framed send, exact-length receive with per-call
// deadlines, and idempotent teardown.
package transport

import (
	"context"
	"errors"
	"log"
	"net"
	"sync"
	"time"
)

var logger = log.New(log.Writer(), "Transport: ", log.Flags())

// DefaultConnectTimeout is the deadline connect uses when the caller's
// context carries none.
const DefaultConnectTimeout = 5 * time.Second

// ErrClosed is returned by SendFrame/RecvExact once the session has been
// closed, whether by the local side or by a previous failure.
var ErrClosed = errors.New("transport: session closed")

// Session wraps one TCP connection. All exported methods are safe to
// call from multiple goroutines; concurrent Send calls are serialized,
// Close is idempotent, and RecvExact is intended to be driven from a
// single reader goroutine (per spec, readers are single-threaded per
// session).
type Session struct {
	conn *net.TCPConn

	sendMu sync.Mutex
	closed chan struct{}
	once   sync.Once
}

// newSession configures Nagle-off / keepalive-on tuning and wraps conn.
func newSession(conn *net.TCPConn) *Session {
	conn.SetNoDelay(true)
	conn.SetKeepAlive(true)
	conn.SetKeepAlivePeriod(30 * time.Second)
	return &Session{conn: conn, closed: make(chan struct{})}
}

// Dial connects to addr, applying ctx's deadline or DefaultConnectTimeout
// if ctx carries none.
func Dial(ctx context.Context, addr string) (*Session, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultConnectTimeout)
		defer cancel()
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}

	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		conn.Close()
		return nil, errors.New("transport: expected a TCP connection")
	}

	logger.Printf("connected to %s", addr)
	return newSession(tcpConn), nil
}

// Listener accepts incoming Sessions on a single TCP port.
type Listener struct {
	ln *net.TCPListener
}

// Listen binds port on all interfaces.
func Listen(port int) (*Listener, error) {
	ln, err := net.ListenTCP("tcp", &net.TCPAddr{Port: port})
	if err != nil {
		return nil, err
	}
	logger.Printf("listening on :%d", port)
	return &Listener{ln: ln}, nil
}

// Accept blocks until a peer connects or ctx is done / the listener is
// closed, whichever comes first.
func (l *Listener) Accept(ctx context.Context) (*Session, error) {
	type result struct {
		conn *net.TCPConn
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		conn, err := l.ln.AcceptTCP()
		ch <- result{conn, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return nil, r.err
		}
		logger.Printf("accepted connection from %s", r.conn.RemoteAddr())
		return newSession(r.conn), nil
	}
}

// Close releases the listening socket, unblocking any pending Accept.
func (l *Listener) Close() error {
	return l.ln.Close()
}

// Addr returns the address the listener is bound to, useful when
// Listen was called with port 0.
func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

// SendFrame writes the whole of data to the peer. Concurrent callers are
// serialized; a failed write is session-fatal and the session should be
// closed by the caller.
func (s *Session) SendFrame(data []byte) error {
	select {
	case <-s.closed:
		return ErrClosed
	default:
	}

	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	n, err := s.conn.Write(data)
	if err != nil {
		return err
	}
	if n != len(data) {
		return errors.New("transport: short write")
	}
	return nil
}

// RecvExact reads exactly len(buf) bytes, applying deadline to the whole
// call rather than to each individual read.
func (s *Session) RecvExact(buf []byte, deadline time.Time) error {
	select {
	case <-s.closed:
		return ErrClosed
	default:
	}

	if err := s.conn.SetReadDeadline(deadline); err != nil {
		return err
	}
	defer s.conn.SetReadDeadline(time.Time{})

	total := 0
	for total < len(buf) {
		n, err := s.conn.Read(buf[total:])
		total += n
		if err != nil {
			return err
		}
	}
	return nil
}

// Close performs a half-close followed by releasing the socket. It is
// idempotent and safe to call concurrently with SendFrame/RecvExact.
func (s *Session) Close() error {
	var err error
	s.once.Do(func() {
		close(s.closed)
		_ = s.conn.CloseWrite()
		err = s.conn.Close()
	})
	return err
}

// RemoteAddr returns the peer's network address.
func (s *Session) RemoteAddr() net.Addr {
	return s.conn.RemoteAddr()
}
