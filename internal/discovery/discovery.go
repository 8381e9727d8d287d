// Package discovery implements the UDP announce/receive/expire loop that
// maintains a peer table keyed by host name, independent of any active
// transport session.
package discovery

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"log"
	"net"
	"sync"
	"time"
)

var logger = log.New(log.Writer(), "Discovery: ", log.Flags())

const (
	// DefaultPort is the fixed UDP discovery port.
	DefaultPort = 24801

	magic         = "MSHR"
	typeAnnounce  = 1
	nameFieldSize = 64
	datagramSize  = 4 + 1 + 2 + 4 + 4 + 1 + nameFieldSize

	announceInterval = 3 * time.Second
	staleAfter        = 10 * time.Second
	evictCheckEvery   = 2 * time.Second
)

// Peer is a host known via discovery.
type Peer struct {
	Name      string
	Addr      net.IP
	Port      uint16
	ScreenW   int32
	ScreenH   int32
	IsServer  bool
	LastSeen  time.Time
	Connected bool
	LayoutX   int
	LayoutY   int
}

// Self describes the local endpoint's own announce payload.
type Self struct {
	Name     string
	Port     uint16
	ScreenW  int32
	ScreenH  int32
	IsServer bool
}

func encodeAnnounce(s Self) ([]byte, error) {
	if len(s.Name) > nameFieldSize {
		return nil, fmt.Errorf("discovery: name %q exceeds %d bytes", s.Name, nameFieldSize)
	}
	buf := make([]byte, datagramSize)
	copy(buf[0:4], magic)
	buf[4] = typeAnnounce
	binary.LittleEndian.PutUint16(buf[5:7], s.Port)
	binary.LittleEndian.PutUint32(buf[7:11], uint32(s.ScreenW))
	binary.LittleEndian.PutUint32(buf[11:15], uint32(s.ScreenH))
	if s.IsServer {
		buf[15] = 1
	}
	copy(buf[16:16+nameFieldSize], s.Name)
	return buf, nil
}

func decodeAnnounce(buf []byte) (Peer, error) {
	if len(buf) < datagramSize {
		return Peer{}, fmt.Errorf("discovery: short datagram (%d bytes)", len(buf))
	}
	if !bytes.Equal(buf[0:4], []byte(magic)) {
		return Peer{}, fmt.Errorf("discovery: bad magic")
	}
	if buf[4] != typeAnnounce {
		return Peer{}, fmt.Errorf("discovery: unknown packet type %d", buf[4])
	}
	port := binary.LittleEndian.Uint16(buf[5:7])
	w := int32(binary.LittleEndian.Uint32(buf[7:11]))
	h := int32(binary.LittleEndian.Uint32(buf[11:15]))
	isServer := buf[15] != 0
	name := string(bytes.TrimRight(buf[16:16+nameFieldSize], "\x00"))
	return Peer{
		Name:     name,
		Port:     port,
		ScreenW:  w,
		ScreenH:  h,
		IsServer: isServer,
	}, nil
}

// Beacon runs the announce/receive/expire loop and maintains the peer
// table. The local entry is keyed by Self.Name and is exempt from
// staleness eviction.
type Beacon struct {
	self Self
	conn *net.UDPConn

	mu    sync.Mutex
	peers map[string]Peer

	onChange func()

	stop chan struct{}
	wg   sync.WaitGroup
}

// New creates a Beacon for the given local identity. Call Start to bind
// the socket and begin the announce/receive/expire goroutines.
func New(self Self) *Beacon {
	b := &Beacon{
		self:  self,
		peers: make(map[string]Peer),
		stop:  make(chan struct{}),
	}
	b.peers[self.Name] = Peer{
		Name:     self.Name,
		Port:     self.Port,
		ScreenW:  self.ScreenW,
		ScreenH:  self.ScreenH,
		IsServer: self.IsServer,
		LastSeen: time.Now(),
	}
	return b
}

// OnChange installs a callback invoked (on whichever goroutine changed
// the table, including the discovery goroutines, with no lock held)
// whenever the peer table changes. It is the abstract
// change-notification hook the beacon posts to; the default wiring is
// internal/status's diagnostics server.
func (b *Beacon) OnChange(f func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onChange = f
}

// Start binds the discovery UDP socket and launches the announce,
// receive, and eviction loops. Broadcast sends rely on Go's default
// UDP socket options; SO_REUSEADDR is not set, so a second process
// cannot bind the same discovery port.
func (b *Beacon) Start(port int) error {
	addr := &net.UDPAddr{Port: port}
	conn, err := net.ListenUDP("udp4", addr)
	if err != nil {
		return fmt.Errorf("discovery: listen: %w", err)
	}
	if err := conn.SetReadBuffer(1 << 16); err != nil {
		logger.Printf("set read buffer: %v", err)
	}
	b.conn = conn

	b.mu.Lock()
	b.peers[b.self.Name] = Peer{
		Name:     b.self.Name,
		Port:     b.self.Port,
		ScreenW:  b.self.ScreenW,
		ScreenH:  b.self.ScreenH,
		IsServer: b.self.IsServer,
		LastSeen: time.Now(),
	}
	b.mu.Unlock()

	logger.Printf("listening on :%d", port)

	b.wg.Add(3)
	go b.announceLoop(port)
	go b.receiveLoop()
	go b.evictLoop()

	return nil
}

// Stop closes the discovery socket and joins all loops.
func (b *Beacon) Stop() {
	close(b.stop)
	if b.conn != nil {
		b.conn.Close()
	}
	b.wg.Wait()
}

func (b *Beacon) announceLoop(port int) {
	defer b.wg.Done()
	ticker := time.NewTicker(announceInterval)
	defer ticker.Stop()

	broadcastAddr := &net.UDPAddr{IP: net.IPv4bcast, Port: port}

	send := func() {
		data, err := encodeAnnounce(b.self)
		if err != nil {
			logger.Printf("encode announce: %v", err)
			return
		}
		if _, err := b.conn.WriteToUDP(data, broadcastAddr); err != nil {
			logger.Printf("broadcast: %v", err)
		}
	}

	send()
	for {
		select {
		case <-ticker.C:
			send()
		case <-b.stop:
			return
		}
	}
}

func (b *Beacon) receiveLoop() {
	defer b.wg.Done()
	buf := make([]byte, 256)
	for {
		n, from, err := b.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-b.stop:
				return
			default:
				continue
			}
		}
		peer, err := decodeAnnounce(buf[:n])
		if err != nil {
			continue
		}
		if peer.Name == b.self.Name {
			continue
		}
		peer.Addr = from.IP
		peer.LastSeen = time.Now()
		b.upsert(peer)
	}
}

func (b *Beacon) upsert(peer Peer) {
	b.mu.Lock()
	existing, had := b.peers[peer.Name]
	if had {
		peer.LayoutX, peer.LayoutY = existing.LayoutX, existing.LayoutY
		peer.Connected = existing.Connected
	}
	b.peers[peer.Name] = peer
	cb := b.onChange
	b.mu.Unlock()

	if cb != nil {
		cb()
	}
}

func (b *Beacon) evictLoop() {
	defer b.wg.Done()
	ticker := time.NewTicker(evictCheckEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			b.evictStale()
		case <-b.stop:
			return
		}
	}
}

func (b *Beacon) evictStale() {
	now := time.Now()
	var changed bool

	b.mu.Lock()
	for name, p := range b.peers {
		if name == b.self.Name {
			continue
		}
		if now.Sub(p.LastSeen) > staleAfter {
			delete(b.peers, name)
			changed = true
			logger.Printf("evicted stale peer %q", name)
		}
	}
	cb := b.onChange
	b.mu.Unlock()

	if changed && cb != nil {
		cb()
	}
}

// Peers returns a snapshot of the current peer table, local entry
// included.
func (b *Beacon) Peers() []Peer {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Peer, 0, len(b.peers))
	for _, p := range b.peers {
		out = append(out, p)
	}
	return out
}

// Peer looks up a single entry by name.
func (b *Beacon) Peer(name string) (Peer, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.peers[name]
	return p, ok
}

// SetConnected flags whether name currently has a live Session, so
// peers returned by Peers()/Peer() reflect connection state alongside
// reachability. Set by the Role Controller on session establishment
// and teardown, not by the announce/receive loop.
func (b *Beacon) SetConnected(name string, connected bool) {
	b.mu.Lock()
	p, ok := b.peers[name]
	if !ok {
		b.mu.Unlock()
		return
	}
	p.Connected = connected
	b.peers[name] = p
	cb := b.onChange
	b.mu.Unlock()

	if cb != nil {
		cb()
	}
}

// PeerByAddr finds a known peer whose advertised address matches ip,
// used to correlate an accepted/dialed TCP connection back to its
// discovery identity.
func (b *Beacon) PeerByAddr(ip net.IP) (Peer, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range b.peers {
		if p.Addr.Equal(ip) {
			return p, true
		}
	}
	return Peer{}, false
}
