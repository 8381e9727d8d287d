package discovery

import (
	"net"
	"testing"
	"time"
)

func TestEncodeDecodeAnnounceRoundTrip(t *testing.T) {
	self := Self{Name: "workstation-a", Port: 24800, ScreenW: 1920, ScreenH: 1080, IsServer: true}
	data, err := encodeAnnounce(self)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(data) != datagramSize {
		t.Fatalf("got %d bytes, want %d", len(data), datagramSize)
	}

	peer, err := decodeAnnounce(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if peer.Name != self.Name || peer.Port != self.Port || peer.ScreenW != self.ScreenW ||
		peer.ScreenH != self.ScreenH || peer.IsServer != self.IsServer {
		t.Errorf("got %+v, want name/port/screen/isServer matching %+v", peer, self)
	}
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	data, _ := encodeAnnounce(Self{Name: "x", Port: 1})
	data[0] = 'Z'
	if _, err := decodeAnnounce(data); err == nil {
		t.Error("expected error for bad magic")
	}
}

func TestDecodeRejectsShortDatagram(t *testing.T) {
	if _, err := decodeAnnounce(make([]byte, datagramSize-1)); err == nil {
		t.Error("expected error for short datagram")
	}
}

func TestDecodeIgnoresExtraTrailingBytes(t *testing.T) {
	data, _ := encodeAnnounce(Self{Name: "x", Port: 1})
	padded := append(data, 0xFF, 0xFF, 0xFF)
	if _, err := decodeAnnounce(padded); err != nil {
		t.Errorf("expected extra bytes to be ignored, got %v", err)
	}
}

func TestEvictStaleRemovesOldPeerButKeepsLocal(t *testing.T) {
	b := New(Self{Name: "local"})
	b.peers["local"] = Peer{Name: "local", LastSeen: time.Now().Add(-1 * time.Hour)}
	b.peers["stale-peer"] = Peer{Name: "stale-peer", LastSeen: time.Now().Add(-(staleAfter + time.Second))}
	b.peers["fresh-peer"] = Peer{Name: "fresh-peer", LastSeen: time.Now()}

	b.evictStale()

	if _, ok := b.Peer("stale-peer"); ok {
		t.Error("stale-peer should have been evicted")
	}
	if _, ok := b.Peer("fresh-peer"); !ok {
		t.Error("fresh-peer should remain")
	}
	if _, ok := b.Peer("local"); !ok {
		t.Error("local entry must never be evicted regardless of age")
	}
}

func TestUpsertPreservesLayoutPositionAcrossRefresh(t *testing.T) {
	b := New(Self{Name: "local"})
	b.peers["b"] = Peer{Name: "b", LayoutX: 1920, LayoutY: 0, LastSeen: time.Now()}

	b.upsert(Peer{Name: "b", ScreenW: 2560, LastSeen: time.Now()})

	got, ok := b.Peer("b")
	if !ok {
		t.Fatal("peer b missing")
	}
	if got.LayoutX != 1920 || got.LayoutY != 0 {
		t.Errorf("layout position lost on refresh: got (%d,%d)", got.LayoutX, got.LayoutY)
	}
	if got.ScreenW != 2560 {
		t.Errorf("refreshed fields not applied: got ScreenW=%d", got.ScreenW)
	}
}

func TestSetConnectedTogglesFlagAndFiresOnChange(t *testing.T) {
	b := New(Self{Name: "local"})
	b.peers["b"] = Peer{Name: "b", LastSeen: time.Now()}
	calls := 0
	b.OnChange(func() { calls++ })

	b.SetConnected("b", true)
	got, _ := b.Peer("b")
	if !got.Connected {
		t.Error("expected Connected to be true after SetConnected(true)")
	}
	if calls != 1 {
		t.Fatalf("expected 1 callback invocation, got %d", calls)
	}

	b.SetConnected("unknown-peer", true)
	if calls != 1 {
		t.Error("SetConnected on an unknown peer must not fire the callback")
	}
}

func TestPeerByAddrMatchesOnAdvertisedAddress(t *testing.T) {
	b := New(Self{Name: "local"})
	b.peers["b"] = Peer{Name: "b", Addr: net.ParseIP("192.168.1.50"), LastSeen: time.Now()}

	got, ok := b.PeerByAddr(net.ParseIP("192.168.1.50"))
	if !ok || got.Name != "b" {
		t.Fatalf("got (%+v, %v), want peer b", got, ok)
	}

	if _, ok := b.PeerByAddr(net.ParseIP("10.0.0.1")); ok {
		t.Error("expected no match for an unknown address")
	}
}

func TestOnChangeFiresOnUpsertAndEvict(t *testing.T) {
	b := New(Self{Name: "local"})
	calls := 0
	b.OnChange(func() { calls++ })

	b.upsert(Peer{Name: "b", LastSeen: time.Now()})
	if calls != 1 {
		t.Fatalf("expected 1 call after upsert, got %d", calls)
	}

	b.peers["b"] = Peer{Name: "b", LastSeen: time.Now().Add(-(staleAfter + time.Second))}
	b.evictStale()
	if calls != 2 {
		t.Fatalf("expected 2 calls after eviction, got %d", calls)
	}
}
