package session

import (
	"testing"

	"inputshare/internal/wire"
)

func TestControllerMutualExclusionServingThenJoined(t *testing.T) {
	c := NewController()
	if err := c.BeginServing(); err != nil {
		t.Fatalf("BeginServing: %v", err)
	}
	if err := c.BeginJoined(); err == nil {
		t.Error("expected BeginJoined to fail while Serving")
	}
}

func TestControllerMutualExclusionJoinedThenServing(t *testing.T) {
	c := NewController()
	if err := c.BeginJoined(); err != nil {
		t.Fatalf("BeginJoined: %v", err)
	}
	if err := c.BeginServing(); err == nil {
		t.Error("expected BeginServing to fail while Joined")
	}
}

func TestControllerResetReturnsToIdle(t *testing.T) {
	c := NewController()
	_ = c.BeginServing()
	c.SetSession(&Session{})
	c.BeginDraining()
	if c.Phase() != Draining {
		t.Fatalf("got phase %s, want Draining", c.Phase())
	}

	c.Reset()
	if c.Phase() != Idle {
		t.Fatalf("got phase %s, want Idle", c.Phase())
	}
	if c.Session() != nil {
		t.Error("expected nil session after reset")
	}

	if err := c.BeginJoined(); err != nil {
		t.Errorf("BeginJoined should succeed after reset: %v", err)
	}
}

func TestControlStateDefaultsToLocal(t *testing.T) {
	s := &Session{}
	if s.ControlState() != Local {
		t.Errorf("got %s, want LOCAL", s.ControlState())
	}
}

func TestControlStateSetAndRead(t *testing.T) {
	s := &Session{}
	s.SetControlState(Remote)
	if s.ControlState() != Remote {
		t.Errorf("got %s, want REMOTE", s.ControlState())
	}
	s.SetControlState(Local)
	if s.ControlState() != Local {
		t.Errorf("got %s, want LOCAL", s.ControlState())
	}
}

func TestRemoteScreenRoundTrip(t *testing.T) {
	s := &Session{}
	s.SetRemoteScreen(2560, 1440)
	w, h := s.RemoteScreen()
	if w != 2560 || h != 1440 {
		t.Errorf("got (%d,%d)", w, h)
	}
}

func TestEntryEdgeRoundTrip(t *testing.T) {
	s := &Session{}
	s.SetEntryEdge(wire.EdgeLeft)
	if s.EntryEdge() != wire.EdgeLeft {
		t.Errorf("got %v, want EdgeLeft", s.EntryEdge())
	}
}
