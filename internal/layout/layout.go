// Package layout holds the arranged positions of known peers so the
// Capture Pipeline can disambiguate an edge crossing to a specific
// neighbor. Arrangement is normally user-mediated by a host GUI (out of
// scope for this package); Model only stores and queries it.
package layout

import "sync"

// Rect is a peer's rectangle in the shared virtual-desktop coordinate
// space, in pixels.
type Rect struct {
	X, Y, W, H int
}

// Model maps peer name to its arranged Rect. All methods are safe for
// concurrent use; per spec §5, holders of the internal lock never
// perform network I/O.
type Model struct {
	mu    sync.Mutex
	rects map[string]Rect
}

// New returns an empty Model.
func New() *Model {
	return &Model{rects: make(map[string]Rect)}
}

// Set records or overwrites a peer's rectangle directly (used when the
// arrangement is loaded from persisted config or pushed by the GUI).
func (m *Model) Set(name string, r Rect) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rects[name] = r
}

// Get returns a peer's rectangle and whether it is known.
func (m *Model) Get(name string) (Rect, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rects[name]
	return r, ok
}

// Remove deletes a peer's rectangle, e.g. on discovery eviction.
func (m *Model) Remove(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rects, name)
}

// All returns a snapshot copy of every known peer's rectangle, keyed by
// name.
func (m *Model) All() map[string]Rect {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]Rect, len(m.rects))
	for k, v := range m.rects {
		out[k] = v
	}
	return out
}

// Place auto-positions a newly discovered peer to the right of the
// rightmost existing rectangle with a 50px gap, and records it.
func (m *Model) Place(name string, w, h int) Rect {
	m.mu.Lock()
	defer m.mu.Unlock()

	rightmost := 0
	found := false
	for _, r := range m.rects {
		if edge := r.X + r.W; !found || edge > rightmost {
			rightmost = edge
			found = true
		}
	}

	x := 0
	if found {
		x = rightmost + 50
	}

	r := Rect{X: x, Y: 0, W: w, H: h}
	m.rects[name] = r
	return r
}

// Adjacent reports whether peer abuts local at edge, at the
// perpendicular coordinate p measured from local's origin, per the four
// formulas below:
//
//	RIGHT:  peer.X == local.X+local.W  && peer.Y <= local.Y+p < peer.Y+peer.H
//	LEFT:   peer.X+peer.W == local.X   && peer.Y <= local.Y+p < peer.Y+peer.H
//	BOTTOM: peer.Y == local.Y+local.H  && peer.X <= local.X+p < peer.X+peer.W
//	TOP:    peer.Y+peer.H == local.Y   && peer.X <= local.X+p < peer.X+peer.W
func (m *Model) Adjacent(localName, peerName string, edge Edge, p int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	local, ok := m.rects[localName]
	if !ok {
		return false
	}
	peer, ok := m.rects[peerName]
	if !ok {
		return false
	}

	switch edge {
	case EdgeRight:
		q := local.Y + p
		return peer.X == local.X+local.W && peer.Y <= q && q < peer.Y+peer.H
	case EdgeLeft:
		q := local.Y + p
		return peer.X+peer.W == local.X && peer.Y <= q && q < peer.Y+peer.H
	case EdgeBottom:
		q := local.X + p
		return peer.Y == local.Y+local.H && peer.X <= q && q < peer.X+peer.W
	case EdgeTop:
		q := local.X + p
		return peer.Y+peer.H == local.Y && peer.X <= q && q < peer.X+peer.W
	default:
		return false
	}
}

// Neighbor scans every other known peer and returns the first (in
// iteration order) that is adjacent to local at edge/p, per spec's
// "first match wins" tie-break applied after the horizontal/vertical
// edge ordering already decided by the caller.
func (m *Model) Neighbor(localName string, edge Edge, p int) (string, bool) {
	m.mu.Lock()
	names := make([]string, 0, len(m.rects))
	for n := range m.rects {
		if n != localName {
			names = append(names, n)
		}
	}
	m.mu.Unlock()

	for _, n := range names {
		if m.Adjacent(localName, n, edge, p) {
			return n, true
		}
	}
	return "", false
}

// Edge mirrors wire.Edge without importing the wire package, keeping
// layout free of protocol concerns.
type Edge uint8

const (
	EdgeNone Edge = iota
	EdgeLeft
	EdgeRight
	EdgeTop
	EdgeBottom
)
